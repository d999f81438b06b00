package grading_test

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/enrollment"
	"github.com/trezcool/darasa/core/grading"
	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/testutil"
)

type fixture struct {
	env  *testutil.Env
	cls  enrollment.Class
	math school.Subject
	sem  school.Semester
	ada  enrollment.Student
	bob  enrollment.Student
}

func setup(t *testing.T) fixture {
	env := testutil.NewEnv(t)
	cls := testutil.CreateClass(t, env.EnrollRepo, "10A1", 10, 0)
	f := fixture{
		env:  env,
		cls:  cls,
		math: testutil.CreateSubject(t, env.SchoolRepo, "Math", 10),
		sem:  testutil.CreateSemester(t, env.SchoolRepo, "S1", 2024),
	}
	f.ada = testutil.PlaceStudent(t, env, testutil.CreateStudent(t, env, "Ada", "Lovelace", testutil.BirthDate(16)), cls)
	f.bob = testutil.PlaceStudent(t, env, testutil.CreateStudent(t, env, "Bob", "Dylan", testutil.BirthDate(17)), cls)
	return f
}

func (f fixture) score(studentID string, typ grading.ScoreType, value float64) grading.NewScore {
	return grading.NewScore{StudentID: studentID, SubjectID: f.math.ID, SemesterID: f.sem.ID, Type: typ, Value: value}
}

func Test_service_RecordScore(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	svc := f.env.GradingSvc

	t.Run("invalid", func(t *testing.T) {
		_, err := svc.RecordScore(ctx, grading.NewScore{Value: 11})
		var verr *core.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Len(t, verr.Fields, 5)
	})

	t.Run("unknown references", func(t *testing.T) {
		_, err := svc.RecordScore(ctx, f.score("lol", grading.Quiz, 5))
		assert.ErrorIs(t, err, enrollment.ErrStudentNotFound)

		ns := f.score(f.ada.ID, grading.Quiz, 5)
		ns.SubjectID = "lol"
		_, err = svc.RecordScore(ctx, ns)
		assert.ErrorIs(t, err, school.ErrSubjectNotFound)

		ns = f.score(f.ada.ID, grading.Quiz, 5)
		ns.SemesterID = "lol"
		_, err = svc.RecordScore(ctx, ns)
		assert.ErrorIs(t, err, school.ErrSemesterNotFound)
	})

	t.Run("quotas", func(t *testing.T) {
		for _, st := range grading.ScoreTypes {
			for i := 0; i < st.Quota(); i++ {
				score, err := svc.RecordScore(ctx, f.score(f.ada.ID, st, float64(i)))
				require.NoError(t, err, "%s #%d", st, i+1)
				assert.NotEmpty(t, score.ID)
				assert.Equal(t, st, score.Type)
				assert.False(t, score.CreatedAt.IsZero())
			}

			_, err := svc.RecordScore(ctx, f.score(f.ada.ID, st, 10))
			require.Error(t, err, "%s beyond quota", st)
			assert.ErrorIs(t, err, grading.ErrQuotaExceeded)

			var perr *core.PolicyError
			require.True(t, errors.As(err, &perr))
			assert.Contains(t, perr.Error(), st.String())

			count, err := f.env.GradingRepo.CountScores(ctx, grading.QueryFilter{StudentID: f.ada.ID, Type: st})
			require.NoError(t, err)
			assert.Equal(t, st.Quota(), count, "rejected %s score not stored", st)
		}
	})

	t.Run("quota is per student", func(t *testing.T) {
		_, err := svc.RecordScore(ctx, f.score(f.bob.ID, grading.Exam, 4))
		assert.NoError(t, err)
	})

	t.Run("quota is per semester", func(t *testing.T) {
		sem2 := testutil.CreateSemester(t, f.env.SchoolRepo, "S2", 2024)
		ns := f.score(f.ada.ID, grading.Exam, 8)
		ns.SemesterID = sem2.ID
		_, err := svc.RecordScore(ctx, ns)
		assert.NoError(t, err)
	})
}

func Test_service_RecordScore_concurrent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.env.GradingSvc.RecordScore(ctx, f.score(f.ada.ID, grading.Test, 7))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var stored, rejected int
	for err := range errs {
		switch {
		case err == nil:
			stored++
		case errors.Is(err, grading.ErrQuotaExceeded):
			rejected++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, grading.Test.Quota(), stored)
	assert.Equal(t, 10-grading.Test.Quota(), rejected)
}

func Test_service_ComputeStudentReport(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	svc := f.env.GradingSvc

	t.Run("no score", func(t *testing.T) {
		rep, err := svc.ComputeStudentReport(ctx, f.ada.ID, f.math.ID, f.sem.ID)
		require.NoError(t, err)
		assert.Nil(t, rep.Average)
		assert.False(t, rep.Passing)
		assert.Empty(t, rep.Quiz)
		assert.Equal(t, "S1-2024", rep.Semester)
		assert.Equal(t, f.cls.ID, rep.ClassID)
	})

	testutil.RecordScores(t, svc, f.ada.ID, f.math.ID, f.sem.ID, grading.Quiz, 8, 6)
	testutil.RecordScores(t, svc, f.ada.ID, f.math.ID, f.sem.ID, grading.Test, 9)
	testutil.RecordScores(t, svc, f.ada.ID, f.math.ID, f.sem.ID, grading.Exam, 6)

	t.Run("weighted average", func(t *testing.T) {
		rep, err := svc.ComputeStudentReport(ctx, f.ada.ID, f.math.ID, f.sem.ID)
		require.NoError(t, err)
		assert.Equal(t, []float64{8, 6}, rep.Quiz)
		assert.Equal(t, []float64{9}, rep.Test)
		assert.Equal(t, []float64{6}, rep.Exam)
		require.NotNil(t, rep.Average)
		assert.InDelta(t, 7.14, *rep.Average, 1e-9)
		assert.True(t, rep.Passing)
		assert.Equal(t, "Ada", rep.FirstName)
	})

	t.Run("other subject ignored", func(t *testing.T) {
		physics := testutil.CreateSubject(t, f.env.SchoolRepo, "Physics", 10)
		rep, err := svc.ComputeStudentReport(ctx, f.ada.ID, physics.ID, f.sem.ID)
		require.NoError(t, err)
		assert.Nil(t, rep.Average)
	})

	t.Run("unknown references", func(t *testing.T) {
		_, err := svc.ComputeStudentReport(ctx, "lol", f.math.ID, f.sem.ID)
		assert.True(t, core.IsNotFound(err))
		_, err = svc.ComputeStudentReport(ctx, f.ada.ID, "lol", f.sem.ID)
		assert.ErrorIs(t, err, school.ErrSubjectNotFound)
		_, err = svc.ComputeStudentReport(ctx, f.ada.ID, f.math.ID, "lol")
		assert.ErrorIs(t, err, school.ErrSemesterNotFound)
	})
}

func Test_service_statistics(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	svc := f.env.GradingSvc

	testutil.RecordScores(t, svc, f.ada.ID, f.math.ID, f.sem.ID, grading.Exam, 5)
	testutil.RecordScores(t, svc, f.bob.ID, f.math.ID, f.sem.ID, grading.Quiz, 2)
	testutil.RecordScores(t, svc, f.bob.ID, f.math.ID, f.sem.ID, grading.Exam, 4)
	empty := testutil.CreateClass(t, f.env.EnrollRepo, "10A2", 10, 0)

	t.Run("class reports", func(t *testing.T) {
		reports, err := svc.ComputeClassReports(ctx, f.cls.ID, f.math.ID, f.sem.ID)
		require.NoError(t, err)
		require.Len(t, reports, 2)
		byID := map[string]grading.StudentReport{}
		for _, r := range reports {
			byID[r.StudentID] = r
		}
		assert.True(t, byID[f.ada.ID].Passing, "5 is a pass")
		require.NotNil(t, byID[f.bob.ID].Average)
		assert.InDelta(t, 3.5, *byID[f.bob.ID].Average, 1e-9)
		assert.False(t, byID[f.bob.ID].Passing)
	})

	t.Run("class statistics", func(t *testing.T) {
		want := grading.ClassStatistics{
			ClassID:  f.cls.ID,
			Class:    "10A1",
			Subject:  "Math",
			Semester: "S1-2024",
			Total:    2,
			Passed:   1,
			Failed:   1,
			PassRate: 50,
		}
		got, err := svc.ComputeClassStatistics(ctx, f.cls.ID, f.math.ID, f.sem.ID)
		require.NoError(t, err)
		assert.Equal(t, want, got)

		again, err := svc.ComputeClassStatistics(ctx, f.cls.ID, f.math.ID, f.sem.ID)
		require.NoError(t, err)
		assert.Equal(t, got, again, "computing statistics does not change them")
	})

	t.Run("empty class", func(t *testing.T) {
		got, err := svc.ComputeClassStatistics(ctx, empty.ID, f.math.ID, f.sem.ID)
		require.NoError(t, err)
		assert.Zero(t, got.Total)
		assert.Zero(t, got.PassRate)
	})

	t.Run("unknown class", func(t *testing.T) {
		_, err := svc.ComputeClassStatistics(ctx, "lol", f.math.ID, f.sem.ID)
		assert.ErrorIs(t, err, enrollment.ErrClassNotFound)
	})

	t.Run("school statistics", func(t *testing.T) {
		testutil.CreateClass(t, f.env.EnrollRepo, "11A1", 11, 0)

		stats, err := svc.ComputeSchoolStatistics(ctx, f.math.ID, f.sem.ID)
		require.NoError(t, err)
		require.Len(t, stats, 2, "only classes of the subject's grade")
		names := []string{stats[0].Class, stats[1].Class}
		assert.ElementsMatch(t, []string{"10A1", "10A2"}, names)
	})
}
