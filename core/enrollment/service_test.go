package enrollment_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/enrollment"
	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/testutil"
)

const dateLayout = "2006-01-02"

func regulation(minAge, maxAge, classSize, maxStudents int) school.Regulation {
	return school.Regulation{Version: 1, MinAge: minAge, MaxAge: maxAge, MaxClassSize: classSize, MaxStudents: maxStudents}
}

// sortedShuffle makes the balancer process students by last name.
func sortedShuffle(t *testing.T) {
	orig := enrollment.ShuffleFunc
	enrollment.ShuffleFunc = func(students []enrollment.Student) {
		sort.Slice(students, func(i, j int) bool { return students[i].LastName < students[j].LastName })
	}
	t.Cleanup(func() { enrollment.ShuffleFunc = orig })
}

func newStudent(uname string, age int) enrollment.NewStudent {
	return enrollment.NewStudent{
		Username:        uname,
		Email:           uname + "@test.cd",
		Password:        "Sup3r$ecret",
		PasswordConfirm: "Sup3r$ecret",
		FirstName:       " " + uname,
		LastName:        "Doe",
		Gender:          "Female",
		Address:         "1 School Road",
		BirthDate:       testutil.BirthDate(age).Format(dateLayout),
	}
}

func Test_service_ValidateAdmission(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	reg := regulation(15, 20, 40, 2)

	tests := []struct {
		name    string
		age     int
		wantErr error
		wantMsg string
	}{
		{name: "lower bound", age: 15},
		{name: "upper bound", age: 20},
		{name: "too young", age: 14, wantErr: enrollment.ErrAgeOutOfRange, wantMsg: "student age (14) must be between 15 and 20"},
		{name: "too old", age: 21, wantErr: enrollment.ErrAgeOutOfRange, wantMsg: "student age (21) must be between 15 and 20"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			age, err := env.EnrollSvc.ValidateAdmission(ctx, reg, testutil.BirthDate(tt.age))
			assert.Equal(t, tt.age, age)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.EqualError(t, err, tt.wantMsg)
		})
	}

	t.Run("school full", func(t *testing.T) {
		testutil.CreateStudent(t, env, "Ada", "Lovelace", testutil.BirthDate(16))
		_, err := env.EnrollSvc.ValidateAdmission(ctx, reg, testutil.BirthDate(16))
		require.NoError(t, err, "1 student for a maximum of 2")

		testutil.CreateStudent(t, env, "Bob", "Dylan", testutil.BirthDate(16))
		_, err = env.EnrollSvc.ValidateAdmission(ctx, reg, testutil.BirthDate(16))
		assert.ErrorIs(t, err, enrollment.ErrCapacityExceeded)
		assert.EqualError(t, err, "the school is full: 2 students for a maximum of 2")
	})

	t.Run("age checked first", func(t *testing.T) {
		_, err := env.EnrollSvc.ValidateAdmission(ctx, reg, testutil.BirthDate(30))
		assert.ErrorIs(t, err, enrollment.ErrAgeOutOfRange)
	})
}

func Test_service_Admit(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	reg := env.Regulation(t)

	t.Run("invalid", func(t *testing.T) {
		ns := newStudent("ada", 16)
		ns.Gender = "robot"
		ns.PasswordConfirm = "lol"
		_, _, err := env.EnrollSvc.Admit(ctx, reg, ns)
		var verrs validator.ValidationErrors
		require.True(t, errors.As(err, &verrs))
		assert.Len(t, verrs, 2)
	})

	t.Run("rejected", func(t *testing.T) {
		_, _, err := env.EnrollSvc.Admit(ctx, reg, newStudent("young", 14))
		assert.ErrorIs(t, err, enrollment.ErrAgeOutOfRange)

		_, err = env.UserSvc.GetByUsernameOrEmail(ctx, "young")
		assert.ErrorIs(t, err, user.ErrNotFound, "no account created")
		count, err := env.EnrollSvc.CountStudents(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("admitted", func(t *testing.T) {
		env.Mail.Reset()

		stu, placements, err := env.EnrollSvc.Admit(ctx, reg, newStudent("Ada", 16))
		require.NoError(t, err)
		assert.Equal(t, "Ada", stu.FirstName)
		assert.Equal(t, "female", stu.Gender)
		assert.Equal(t, "ada@test.cd", stu.Email)
		require.Len(t, placements, 1)
		assert.Equal(t, enrollment.Placement{StudentID: stu.ID, ClassID: stu.ClassID, ClassName: "10A1", Grade: 10, NewClass: true}, placements[0])

		usr, err := env.UserSvc.GetByID(ctx, stu.ID)
		require.NoError(t, err)
		assert.True(t, usr.IsStudent())
		assert.NoError(t, usr.CheckPassword("Sup3r$ecret"))

		sent := env.Mail.SentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, "ada@test.cd", sent[0].To[0].Address)
		assert.Contains(t, sent[0].TextContent, "10A1")
	})

	t.Run("username taken", func(t *testing.T) {
		_, _, err := env.EnrollSvc.Admit(ctx, reg, newStudent("ada", 17))
		assert.Error(t, err)
		count, err := env.EnrollSvc.CountStudents(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("joins the existing class", func(t *testing.T) {
		stu, placements, err := env.EnrollSvc.Admit(ctx, reg, newStudent("bob", 17))
		require.NoError(t, err)
		require.Len(t, placements, 1)
		assert.False(t, placements[0].NewClass)
		cls, err := env.EnrollSvc.GetClass(ctx, stu.ClassID)
		require.NoError(t, err)
		assert.Equal(t, "10A1", cls.Name)
		assert.Equal(t, 2, cls.Quantity)
	})
}

func Test_service_UpdateStudent(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	reg := env.Regulation(t)
	stu := testutil.CreateStudent(t, env, "Ada", "Lovelace", testutil.BirthDate(16))

	_, err := env.EnrollSvc.UpdateStudent(ctx, reg, "lol", enrollment.UpdateStudent{Address: "x"})
	assert.ErrorIs(t, err, enrollment.ErrStudentNotFound)

	_, err = env.EnrollSvc.UpdateStudent(ctx, reg, stu.ID, enrollment.UpdateStudent{BirthDate: testutil.BirthDate(25).Format(dateLayout)})
	assert.ErrorIs(t, err, enrollment.ErrAgeOutOfRange)

	_, err = env.EnrollSvc.UpdateStudent(ctx, reg, stu.ID, enrollment.UpdateStudent{Gender: "robot"})
	assert.Error(t, err)

	updated, err := env.EnrollSvc.UpdateStudent(ctx, reg, stu.ID, enrollment.UpdateStudent{
		Address:   "  2 Main Street ",
		Gender:    "MALE",
		BirthDate: testutil.BirthDate(18).Format(dateLayout),
	})
	require.NoError(t, err)
	assert.Equal(t, "2 Main Street", updated.Address)
	assert.Equal(t, "male", updated.Gender)
	assert.Equal(t, "Ada", updated.FirstName, "empty fields are kept")
	assert.Equal(t, 18, enrollment.CalculateAge(updated.BirthDate, time.Now().UTC()))
}

func Test_service_AssignUnplacedStudents(t *testing.T) {
	sortedShuffle(t)

	t.Run("invalid class size", func(t *testing.T) {
		env := testutil.NewEnv(t)
		_, err := env.EnrollSvc.AssignUnplacedStudents(context.Background(), regulation(15, 20, 0, 100))
		var verr *core.ValidationError
		assert.True(t, errors.As(err, &verr))
	})

	t.Run("nothing to place", func(t *testing.T) {
		env := testutil.NewEnv(t)
		placements, err := env.EnrollSvc.AssignUnplacedStudents(context.Background(), env.Regulation(t))
		require.NoError(t, err)
		assert.Empty(t, placements)
	})

	t.Run("emptiest class first", func(t *testing.T) {
		env := testutil.NewEnv(t)
		ctx := context.Background()
		t0 := time.Now().UTC().Add(-time.Hour)

		a1 := testutil.CreateClass(t, env.EnrollRepo, "10A1", 10, 2, t0)
		a2 := testutil.CreateClass(t, env.EnrollRepo, "10A2", 10, 1, t0.Add(time.Minute))
		for _, last := range []string{"A", "B", "C", "D", "E"} {
			testutil.CreateStudent(t, env, "Student", last, testutil.BirthDate(16))
		}

		placements, err := env.EnrollSvc.AssignUnplacedStudents(ctx, regulation(15, 20, 3, 100))
		require.NoError(t, err)
		require.Len(t, placements, 5)

		got := make([]string, 0, len(placements))
		for _, p := range placements {
			got = append(got, p.ClassName)
		}
		// A: 10A2 (1) -> B: 10A1 (2, oldest) -> C: 10A2 (2) -> D, E: new classes
		assert.Equal(t, []string{"10A2", "10A1", "10A2", "10A3", "10A3"}, got)
		assert.True(t, placements[3].NewClass)
		assert.False(t, placements[4].NewClass, "the new class is reused")

		classes, err := env.EnrollSvc.QueryClasses(ctx, 0)
		require.NoError(t, err)
		require.Len(t, classes, 3)
		quantities := map[string]int{}
		for _, c := range classes {
			quantities[c.ID] = c.Quantity
			assert.LessOrEqual(t, c.Quantity, 3, c.Name)
		}
		assert.Equal(t, 3, quantities[a1.ID])
		assert.Equal(t, 3, quantities[a2.ID])

		unplaced, err := env.EnrollSvc.QueryStudents(ctx, &enrollment.QueryFilter{Unplaced: true}, nil, core.Page{})
		require.NoError(t, err)
		assert.Empty(t, unplaced)

		again, err := env.EnrollSvc.AssignUnplacedStudents(ctx, regulation(15, 20, 3, 100))
		require.NoError(t, err)
		assert.Empty(t, again, "placed students are not moved")
	})

	t.Run("mail carries the class grade", func(t *testing.T) {
		env := testutil.NewEnv(t)
		ctx := context.Background()
		cls := testutil.CreateClass(t, env.EnrollRepo, "11B", 11, 0)

		usr := testutil.CreateUser(t, env.UserRepo, "Ada Doe", "ada", "ada@test.cd", "", []string{user.RoleStudent}, true)
		_, err := env.EnrollRepo.CreateStudent(ctx, enrollment.Student{
			ID:        usr.ID,
			FirstName: "Ada",
			LastName:  "Doe",
			Gender:    "Female",
			Address:   "1 School Road",
			Email:     "ada@test.cd",
			BirthDate: testutil.BirthDate(16),
			CreatedAt: time.Now().UTC(),
		})
		require.NoError(t, err)

		placements, err := env.EnrollSvc.AssignUnplacedStudents(ctx, regulation(15, 20, 3, 100))
		require.NoError(t, err)
		require.Len(t, placements, 1)
		assert.Equal(t, cls.ID, placements[0].ClassID)
		assert.Equal(t, 11, placements[0].Grade)

		sent := env.Mail.SentMessages()
		require.Len(t, sent, 1)
		assert.Contains(t, sent[0].TextContent, "class 11B (grade 11)")
	})

	t.Run("concurrent runs", func(t *testing.T) {
		env := testutil.NewEnv(t)
		ctx := context.Background()
		for i := 0; i < 20; i++ {
			testutil.CreateStudent(t, env, "Student", string(rune('A'+i)), testutil.BirthDate(16))
		}

		var (
			wg    sync.WaitGroup
			mu    sync.Mutex
			total int
		)
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				placements, err := env.EnrollSvc.AssignUnplacedStudents(ctx, regulation(15, 20, 6, 100))
				assert.NoError(t, err)
				mu.Lock()
				total += len(placements)
				mu.Unlock()
			}()
		}
		wg.Wait()
		assert.Equal(t, 20, total, "every student placed exactly once")

		classes, err := env.EnrollSvc.QueryClasses(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, classes, 4)
		sum := 0
		for _, c := range classes {
			assert.LessOrEqual(t, c.Quantity, 6, c.Name)
			sum += c.Quantity
		}
		assert.Equal(t, 20, sum)
	})
}

func Test_service_classes(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	_, err := env.EnrollSvc.CreateClass(ctx, enrollment.NewClass{Grade: 10})
	assert.Error(t, err)

	cls, err := env.EnrollSvc.CreateClass(ctx, enrollment.NewClass{Name: " 10A1 ", Grade: 10})
	require.NoError(t, err)
	assert.Equal(t, "10A1", cls.Name)
	assert.Zero(t, cls.Quantity)

	_, err = env.EnrollSvc.CreateClass(ctx, enrollment.NewClass{Name: "10A1", Grade: 10})
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "name", verr.Fields[0].Field)

	_, err = env.EnrollSvc.CreateClass(ctx, enrollment.NewClass{Name: "11A1", Grade: 11})
	require.NoError(t, err)

	tenth, err := env.EnrollSvc.QueryClasses(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, tenth, 1)

	_, err = env.EnrollSvc.ClassRoster(ctx, "lol")
	assert.ErrorIs(t, err, enrollment.ErrClassNotFound)

	testutil.PlaceStudent(t, env, testutil.CreateStudent(t, env, "Zoe", "Brown", testutil.BirthDate(16)), cls)
	testutil.PlaceStudent(t, env, testutil.CreateStudent(t, env, "Ada", "Brown", testutil.BirthDate(16)), cls)
	testutil.PlaceStudent(t, env, testutil.CreateStudent(t, env, "Bob", "Allen", testutil.BirthDate(16)), cls)
	roster, err := env.EnrollSvc.ClassRoster(ctx, cls.ID)
	require.NoError(t, err)
	require.Len(t, roster, 3)
	assert.Equal(t, []string{"Bob Allen", "Ada Brown", "Zoe Brown"},
		[]string{roster[0].FullName(), roster[1].FullName(), roster[2].FullName()})
}
