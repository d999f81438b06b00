package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/testutil"
)

func Test_schoolApi_regulations(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, app.UserRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	teacher := testutil.CreateUser(t, app.UserRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	adminToken := app.getToken(t, admin)
	seed := app.Regulation(t)

	app.run(t, http.MethodGet, []httpTest{
		{name: "Auth required", path: "/api/regulations/current", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Current regulation", path: "/api/regulations/current", token: app.getToken(t, teacher), wantData: marchallObj(t, seed)},
		{
			name: "History requires permission", path: "/api/regulations/history", token: app.getToken(t, teacher),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "Empty history", path: "/api/regulations/history", token: adminToken, wantData: marchallList(t)},
	})

	app.run(t, http.MethodPost, []httpTest{
		{
			name: "Change requires permission", path: "/api/regulations", token: app.getToken(t, teacher),
			body:     marchallObj(t, school.NewRegulation{MinAge: 15, MaxAge: 20, MaxClassSize: 30}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Invalid bounds", path: "/api/regulations", token: adminToken,
			body:     marchallObj(t, school.NewRegulation{MinAge: 18, MaxAge: 15}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"max_age":        "max_age must be greater than or equal to min_age",
				"max_class_size": "max_class_size must be 1 or greater",
			}),
		},
		{
			name: "Regulation changed", path: "/api/regulations", token: adminToken,
			body:     marchallObj(t, school.NewRegulation{MinAge: 14, MaxAge: 19, MaxClassSize: 30}),
			wantCode: http.StatusCreated,
		},
	})

	t.Run("New version in force", func(t *testing.T) {
		reg := app.Regulation(t)
		assert.Equal(t, seed.Version+1, reg.Version)
		assert.Equal(t, 14, reg.MinAge)
		assert.Equal(t, 19, reg.MaxAge)
		assert.Equal(t, 30, reg.MaxClassSize)
		assert.Equal(t, school.DefaultMaxStudents, reg.MaxStudents)

		req, rec := newAuthRequest(http.MethodGet, "/api/regulations/history", adminToken)
		app.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var history []school.RegulationHistory
		decode(t, rec, &history)
		require.Len(t, history, 1)
		assert.Equal(t, admin.ID, history[0].AdminID)
		assert.Equal(t, reg.ID, history[0].RegulationID)
		require.NotNil(t, history[0].Regulation)
		assert.Equal(t, reg.Version, history[0].Regulation.Version)
	})
}

func Test_schoolApi_catalog(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, app.UserRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	teacher := testutil.CreateUser(t, app.UserRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	adminToken := app.getToken(t, admin)
	teacherToken := app.getToken(t, teacher)

	app.run(t, http.MethodPost, []httpTest{
		{
			name: "Subject requires permission", path: "/api/subjects", token: teacherToken,
			body:     marchallObj(t, school.NewSubject{Name: "Math", Grade: 10}),
			wantCode: http.StatusForbidden,
		},
		{
			name: "Subject name required", path: "/api/subjects", token: adminToken,
			body:     marchallObj(t, school.NewSubject{Name: "  ", Grade: 10}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"name": "this field is required"}),
		},
		{
			name: "Subject created", path: "/api/subjects", token: adminToken,
			body:     marchallObj(t, school.NewSubject{Name: " Math ", Grade: 10}),
			wantCode: http.StatusCreated,
		},
		{
			name: "Subject exists", path: "/api/subjects", token: adminToken,
			body:     marchallObj(t, school.NewSubject{Name: "Math", Grade: 10}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"name": "this subject already exists for this grade"}),
		},
		{
			name: "Same subject in another grade", path: "/api/subjects", token: adminToken,
			body:     marchallObj(t, school.NewSubject{Name: "Math", Grade: 11}),
			wantCode: http.StatusCreated,
		},
		{
			name: "Semester year out of range", path: "/api/semesters", token: adminToken,
			body:     marchallObj(t, school.NewSemester{Name: "S1", Year: 1800}),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "Semester created", path: "/api/semesters", token: adminToken,
			body:     marchallObj(t, school.NewSemester{Name: "S1", Year: 2024}),
			wantCode: http.StatusCreated,
		},
		{
			name: "Semester exists", path: "/api/semesters", token: adminToken,
			body:     marchallObj(t, school.NewSemester{Name: "S1", Year: 2024}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"name": "this semester already exists"}),
		},
	})

	t.Run("Query subjects by grade", func(t *testing.T) {
		for grade, want := range map[string]int{"": 2, "10": 1, "11": 1, "12": 0} {
			path := "/api/subjects"
			if grade != "" {
				path += "?grade=" + grade
			}
			req, rec := newAuthRequest(http.MethodGet, path, teacherToken)
			app.server.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var subjects []school.Subject
			decode(t, rec, &subjects)
			assert.Len(t, subjects, want, "grade=%s", grade)
			for _, sub := range subjects {
				assert.Equal(t, "Math", sub.Name)
			}
		}
	})

	t.Run("Semesters carry their label", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/semesters", teacherToken)
		app.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var semesters []map[string]interface{}
		decode(t, rec, &semesters)
		require.Len(t, semesters, 1)
		assert.Equal(t, "S1-2024", semesters[0]["label"])
	})
}

func Test_schoolApi_assignments(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, app.UserRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	teacher := testutil.CreateUser(t, app.UserRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	other := testutil.CreateUser(t, app.UserRepo, "Other", "other", "other@test.cd", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, app.UserRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	adminToken := app.getToken(t, admin)

	cls := testutil.CreateClass(t, app.EnrollRepo, "10A1", 10, 0)
	sub := testutil.CreateSubject(t, app.SchoolRepo, "Math", 10)
	ta := school.TeachingAssignment{TeacherID: teacher.ID, SubjectID: sub.ID, ClassID: cls.ID}

	body := func(teacherID, classID string) []byte {
		return marchallObj(t, school.NewAssignment{TeacherID: teacherID, SubjectID: sub.ID, ClassID: classID})
	}
	path := "/api/assignments"

	app.run(t, http.MethodPost, []httpTest{
		{name: "Auth required", path: path, body: body(teacher.ID, cls.ID), wantCode: http.StatusUnauthorized},
		{name: "Permission required", path: path, body: body(teacher.ID, cls.ID), token: app.getToken(t, teacher), wantCode: http.StatusForbidden},
		{
			name: "Missing fields", path: path, body: []byte(`{}`), token: adminToken, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"teacher_id": "this field is required",
				"subject_id": "this field is required",
				"class_id":   "this field is required",
			}),
		},
		{name: "Unknown teacher", path: path, body: body("lol", cls.ID), token: adminToken, wantCode: http.StatusNotFound},
		{
			name: "Not a teacher", path: path, body: body(student.ID, cls.ID), token: adminToken, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"teacher_id": "this user is not a teacher"}),
		},
		{
			name: "Unknown class", path: path, body: body(teacher.ID, "lol"), token: adminToken, wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "class not found"}),
		},
		{name: "Assigned", path: path, body: body(teacher.ID, cls.ID), token: adminToken, wantCode: http.StatusCreated, wantData: marchallObj(t, ta)},
		{
			name: "Already assigned", path: path, body: body(teacher.ID, cls.ID), token: adminToken, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"class_id": "this teacher is already assigned to this subject & class"}),
		},
	})

	teacherPath := "/api/teachers/" + teacher.ID + "/assignments"
	app.run(t, http.MethodGet, []httpTest{
		{name: "Own assignments", path: teacherPath, token: app.getToken(t, teacher), wantData: marchallList(t, ta)},
		{name: "Other teacher's assignments", path: teacherPath, token: app.getToken(t, other), wantCode: http.StatusForbidden},
		{name: "Admin sees every teacher", path: teacherPath, token: adminToken, wantData: marchallList(t, ta)},
		{name: "No assignment", path: "/api/teachers/" + other.ID + "/assignments", token: adminToken, wantData: marchallList(t)},
	})
}
