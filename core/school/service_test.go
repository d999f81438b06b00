package school_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/testutil"
)

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr), "want a ValidationError, got %v", err)
	flds := make(map[string]string, len(verr.Fields))
	for _, f := range verr.Fields {
		flds[f.Field] = f.Error
	}
	return flds
}

func Test_service_regulation(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	svc := env.SchoolSvc

	seed, err := svc.CurrentRegulation(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, seed.Version)
	assert.Equal(t, 15, seed.MinAge)
	assert.Equal(t, 20, seed.MaxAge)
	assert.Equal(t, 40, seed.MaxClassSize)
	assert.Equal(t, school.DefaultMaxStudents, seed.MaxStudents)

	history, err := svc.QueryRegulationHistory(ctx)
	require.NoError(t, err)
	assert.Empty(t, history, "the seed regulation has no author")

	t.Run("invalid bounds", func(t *testing.T) {
		_, err := svc.ChangeRegulation(ctx, "admin", school.NewRegulation{MinAge: 18, MaxAge: 16, MaxClassSize: 0, MaxStudents: -1})
		assert.Equal(t, map[string]string{
			"max_age":        "max_age must be greater than or equal to min_age",
			"max_class_size": "max_class_size must be 1 or greater",
			"max_students":   "max_students must be 1 or greater",
		}, fieldErrors(t, err))

		reg, err := svc.CurrentRegulation(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, reg.Version, "nothing stored")
	})

	t.Run("versioned", func(t *testing.T) {
		reg, err := svc.ChangeRegulation(ctx, "admin1", school.NewRegulation{MinAge: 14, MaxAge: 19, MaxClassSize: 35})
		require.NoError(t, err)
		assert.Equal(t, 2, reg.Version)
		assert.Equal(t, school.DefaultMaxStudents, reg.MaxStudents, "max_students defaults")

		reg, err = svc.ChangeRegulation(ctx, "admin2", school.NewRegulation{MinAge: 15, MaxAge: 15, MaxClassSize: 1, MaxStudents: 10})
		require.NoError(t, err)
		assert.Equal(t, 3, reg.Version, "min_age may equal max_age")

		current, err := svc.CurrentRegulation(ctx)
		require.NoError(t, err)
		assert.Equal(t, reg, current)

		history, err := svc.QueryRegulationHistory(ctx)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "admin2", history[0].AdminID, "newest first")
		require.NotNil(t, history[0].Regulation)
		assert.Equal(t, 3, history[0].Regulation.Version)
		assert.Equal(t, "admin1", history[1].AdminID)
		assert.Equal(t, 2, history[1].Regulation.Version)
	})

	t.Run("concurrent changes", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.ChangeRegulation(ctx, "admin", school.NewRegulation{MinAge: 15, MaxAge: 20, MaxClassSize: 40})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		current, err := svc.CurrentRegulation(ctx)
		require.NoError(t, err)
		assert.Equal(t, 8, current.Version)

		history, err := svc.QueryRegulationHistory(ctx)
		require.NoError(t, err)
		versions := make(map[int]bool)
		for _, h := range history {
			versions[h.Regulation.Version] = true
		}
		assert.Len(t, versions, 7, "one history entry per version")
	})
}

func Test_service_catalog(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	svc := env.SchoolSvc

	_, err := svc.CreateSubject(ctx, school.NewSubject{Name: "  ", Grade: 10})
	assert.Equal(t, map[string]string{"name": "this field is required"}, fieldErrors(t, err))

	math, err := svc.CreateSubject(ctx, school.NewSubject{Name: " Math ", Grade: 10})
	require.NoError(t, err)
	assert.Equal(t, "Math", math.Name)

	_, err = svc.CreateSubject(ctx, school.NewSubject{Name: "Math", Grade: 10})
	assert.Equal(t, map[string]string{"name": "this subject already exists for this grade"}, fieldErrors(t, err))

	_, err = svc.CreateSubject(ctx, school.NewSubject{Name: "Math", Grade: 11})
	require.NoError(t, err)

	subjects, err := svc.QuerySubjects(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, subjects, 1)
	subjects, err = svc.QuerySubjects(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, subjects, 2)

	got, err := svc.GetSubject(ctx, math.ID)
	require.NoError(t, err)
	assert.Equal(t, math, got)
	_, err = svc.GetSubject(ctx, "lol")
	assert.ErrorIs(t, err, school.ErrSubjectNotFound)

	sem, err := svc.CreateSemester(ctx, school.NewSemester{Name: "S1", Year: 2024})
	require.NoError(t, err)
	assert.Equal(t, "S1-2024", sem.Label())

	_, err = svc.CreateSemester(ctx, school.NewSemester{Name: "S1", Year: 2024})
	assert.Equal(t, map[string]string{"name": "this semester already exists"}, fieldErrors(t, err))

	_, err = svc.CreateSemester(ctx, school.NewSemester{Name: "S1", Year: 2025})
	require.NoError(t, err)

	semesters, err := svc.QuerySemesters(ctx)
	require.NoError(t, err)
	assert.Len(t, semesters, 2)

	_, err = svc.GetSemester(ctx, "lol")
	assert.ErrorIs(t, err, school.ErrSemesterNotFound)
}

func Test_service_assignments(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	svc := env.SchoolSvc

	math := testutil.CreateSubject(t, env.SchoolRepo, "Math", 10)
	physics := testutil.CreateSubject(t, env.SchoolRepo, "Physics", 10)
	cls := testutil.CreateClass(t, env.EnrollRepo, "10A1", 10, 0)

	now := time.Now().UTC()
	past := now.AddDate(0, -6, 0)
	lastMonth := now.AddDate(0, -1, 0)
	nextMonth := now.AddDate(0, 1, 0)

	_, err := svc.AssignTeacher(ctx, school.NewAssignment{TeacherID: "t1", SubjectID: "lol", ClassID: cls.ID})
	assert.ErrorIs(t, err, school.ErrSubjectNotFound)

	_, err = svc.AssignTeacher(ctx, school.NewAssignment{
		TeacherID: "t1", SubjectID: math.ID, ClassID: cls.ID, StartDate: &nextMonth, EndDate: &lastMonth,
	})
	assert.Contains(t, fieldErrors(t, err), "end_date")

	ta, err := svc.AssignTeacher(ctx, school.NewAssignment{TeacherID: "t1", SubjectID: math.ID, ClassID: cls.ID})
	require.NoError(t, err)
	assert.Equal(t, "t1", ta.TeacherID)

	_, err = svc.AssignTeacher(ctx, school.NewAssignment{TeacherID: "t1", SubjectID: math.ID, ClassID: cls.ID})
	assert.Equal(t, map[string]string{"class_id": "this teacher is already assigned to this subject & class"}, fieldErrors(t, err))

	_, err = svc.AssignTeacher(ctx, school.NewAssignment{
		TeacherID: "t1", SubjectID: physics.ID, ClassID: cls.ID, StartDate: &past, EndDate: &lastMonth,
	})
	require.NoError(t, err)
	_, err = svc.AssignTeacher(ctx, school.NewAssignment{
		TeacherID: "t2", SubjectID: physics.ID, ClassID: cls.ID, StartDate: &nextMonth,
	})
	require.NoError(t, err)

	tests := []struct {
		name      string
		teacherID string
		subjectID string
		want      bool
	}{
		{name: "open-ended", teacherID: "t1", subjectID: math.ID, want: true},
		{name: "ended", teacherID: "t1", subjectID: physics.ID, want: false},
		{name: "not started", teacherID: "t2", subjectID: physics.ID, want: false},
		{name: "not assigned", teacherID: "t2", subjectID: math.ID, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := svc.IsAssigned(ctx, tt.teacherID, tt.subjectID, cls.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}

	assignments, err := svc.QueryAssignments(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, assignments, 2)
	assignments, err = svc.QueryAssignments(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, assignments)
}

func TestTeachingAssignment_ActiveAt(t *testing.T) {
	day := func(d int) *time.Time {
		tm := time.Date(2024, time.September, d, 0, 0, 0, 0, time.UTC)
		return &tm
	}
	ta := school.TeachingAssignment{StartDate: day(2), EndDate: day(10)}
	assert.False(t, ta.ActiveAt(*day(1)))
	assert.True(t, ta.ActiveAt(*day(2)), "start is inclusive")
	assert.True(t, ta.ActiveAt(*day(10)), "end is inclusive")
	assert.False(t, ta.ActiveAt(*day(11)))
	assert.True(t, school.TeachingAssignment{}.ActiveAt(*day(1)))
}
