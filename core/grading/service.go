package grading

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/enrollment"
	"github.com/trezcool/darasa/core/school"
)

var (
	// errors
	ErrQuotaExceeded = errors.New("score quota exceeded")
)

type (
	Repository interface {
		// InTx runs fn against a Repository bound to a single serializable unit of work.
		// The unit is rolled back when fn returns an error.
		InTx(ctx context.Context, fn func(repo Repository) error) error

		CountScores(ctx context.Context, filter QueryFilter) (int, error)
		CreateScore(ctx context.Context, s Score) (Score, error)
		// QueryScores applies AND operation on the non-zero QueryFilter fields.
		// Scores are returned in creation order.
		QueryScores(ctx context.Context, filter QueryFilter) ([]Score, error)
	}

	// Roster gives access to students & classes.
	Roster interface {
		GetStudent(ctx context.Context, id string) (enrollment.Student, error)
		GetClass(ctx context.Context, id string) (enrollment.Class, error)
		ClassRoster(ctx context.Context, id string) ([]enrollment.Student, error)
		QueryClasses(ctx context.Context, grade int) ([]enrollment.Class, error)
	}

	// Catalog gives access to subjects & semesters.
	Catalog interface {
		GetSubject(ctx context.Context, id string) (school.Subject, error)
		GetSemester(ctx context.Context, id string) (school.Semester, error)
	}

	ServiceInterface interface {
		RecordScore(ctx context.Context, ns NewScore) (Score, error)
		QueryScores(ctx context.Context, filter QueryFilter) ([]Score, error)
		ComputeStudentReport(ctx context.Context, studentID, subjectID, semesterID string) (StudentReport, error)
		ComputeClassReports(ctx context.Context, classID, subjectID, semesterID string) ([]StudentReport, error)
		ComputeClassStatistics(ctx context.Context, classID, subjectID, semesterID string) (ClassStatistics, error)
		ComputeSchoolStatistics(ctx context.Context, subjectID, semesterID string) ([]ClassStatistics, error)
	}

	service struct {
		repo    Repository
		roster  Roster
		catalog Catalog
		logger  core.Logger
	}
)

var (
	_ ServiceInterface = (*service)(nil) // interface compliance check

	NowFunc = time.Now // mockable
)

func NewService(repo Repository, roster Roster, catalog Catalog, logger core.Logger) ServiceInterface {
	return &service{repo: repo, roster: roster, catalog: catalog, logger: logger}
}

// RecordScore stores ns unless the quota of its type is already reached for the student, subject & semester.
func (svc *service) RecordScore(ctx context.Context, ns NewScore) (Score, error) {
	if err := ns.Check(); err != nil {
		return Score{}, err
	}
	if _, err := svc.roster.GetStudent(ctx, ns.StudentID); err != nil {
		return Score{}, err
	}
	if _, err := svc.catalog.GetSubject(ctx, ns.SubjectID); err != nil {
		return Score{}, err
	}
	if _, err := svc.catalog.GetSemester(ctx, ns.SemesterID); err != nil {
		return Score{}, err
	}

	var score Score
	err := svc.repo.InTx(ctx, func(repo Repository) error {
		count, err := repo.CountScores(ctx, QueryFilter{
			StudentID:  ns.StudentID,
			SubjectID:  ns.SubjectID,
			SemesterID: ns.SemesterID,
			Type:       ns.Type,
		})
		if err != nil {
			return errors.Wrap(err, "counting scores")
		}
		if count >= ns.Type.Quota() {
			return core.NewPolicyError(ErrQuotaExceeded,
				"a student may have at most %d %s score(s) per subject & semester", ns.Type.Quota(), ns.Type)
		}

		score, err = repo.CreateScore(ctx, Score{
			StudentID:  ns.StudentID,
			SubjectID:  ns.SubjectID,
			SemesterID: ns.SemesterID,
			Type:       ns.Type,
			Value:      ns.Value,
			CreatedAt:  NowFunc().UTC(),
		})
		return errors.Wrap(err, "creating score")
	})
	if err != nil {
		return Score{}, err
	}
	return score, nil
}

func (svc *service) QueryScores(ctx context.Context, filter QueryFilter) ([]Score, error) {
	return svc.repo.QueryScores(ctx, filter)
}

func (svc *service) ComputeStudentReport(ctx context.Context, studentID, subjectID, semesterID string) (StudentReport, error) {
	stu, err := svc.roster.GetStudent(ctx, studentID)
	if err != nil {
		return StudentReport{}, err
	}
	if _, err = svc.catalog.GetSubject(ctx, subjectID); err != nil {
		return StudentReport{}, err
	}
	sem, err := svc.catalog.GetSemester(ctx, semesterID)
	if err != nil {
		return StudentReport{}, err
	}
	return svc.studentReport(ctx, stu, subjectID, sem)
}

func (svc *service) studentReport(ctx context.Context, stu enrollment.Student, subjectID string, sem school.Semester) (StudentReport, error) {
	scores, err := svc.repo.QueryScores(ctx, QueryFilter{StudentID: stu.ID, SubjectID: subjectID, SemesterID: sem.ID})
	if err != nil {
		return StudentReport{}, errors.Wrap(err, "querying scores")
	}

	buckets := bucketize(scores)
	avg := WeightedAverage(buckets)
	return StudentReport{
		StudentID: stu.ID,
		FirstName: stu.FirstName,
		LastName:  stu.LastName,
		ClassID:   stu.ClassID,
		Quiz:      buckets[Quiz],
		Test:      buckets[Test],
		Exam:      buckets[Exam],
		Semester:  sem.Label(),
		Average:   avg,
		Passing:   IsPassing(avg),
	}, nil
}

func (svc *service) ComputeClassReports(ctx context.Context, classID, subjectID, semesterID string) ([]StudentReport, error) {
	_, reports, err := svc.classReports(ctx, classID, subjectID, semesterID)
	return reports, err
}

type classContext struct {
	class    enrollment.Class
	subject  school.Subject
	semester school.Semester
}

func (svc *service) classReports(ctx context.Context, classID, subjectID, semesterID string) (classContext, []StudentReport, error) {
	var cc classContext
	var err error
	if cc.class, err = svc.roster.GetClass(ctx, classID); err != nil {
		return cc, nil, err
	}
	if cc.subject, err = svc.catalog.GetSubject(ctx, subjectID); err != nil {
		return cc, nil, err
	}
	if cc.semester, err = svc.catalog.GetSemester(ctx, semesterID); err != nil {
		return cc, nil, err
	}
	reports, err := svc.rosterReports(ctx, cc)
	return cc, reports, err
}

func (svc *service) rosterReports(ctx context.Context, cc classContext) ([]StudentReport, error) {
	students, err := svc.roster.ClassRoster(ctx, cc.class.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying class roster")
	}
	reports := make([]StudentReport, 0, len(students))
	for _, stu := range students {
		rep, err := svc.studentReport(ctx, stu, cc.subject.ID, cc.semester)
		if err != nil {
			return nil, err
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

// ComputeClassStatistics counts the students of the class passing the subject in the semester.
func (svc *service) ComputeClassStatistics(ctx context.Context, classID, subjectID, semesterID string) (ClassStatistics, error) {
	cc, reports, err := svc.classReports(ctx, classID, subjectID, semesterID)
	if err != nil {
		return ClassStatistics{}, err
	}
	return statistics(cc, reports), nil
}

// ComputeSchoolStatistics returns the statistics of every class of the subject's grade.
func (svc *service) ComputeSchoolStatistics(ctx context.Context, subjectID, semesterID string) ([]ClassStatistics, error) {
	sub, err := svc.catalog.GetSubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	sem, err := svc.catalog.GetSemester(ctx, semesterID)
	if err != nil {
		return nil, err
	}
	classes, err := svc.roster.QueryClasses(ctx, sub.Grade)
	if err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}

	stats := make([]ClassStatistics, 0, len(classes))
	for _, cls := range classes {
		cc := classContext{class: cls, subject: sub, semester: sem}
		reports, err := svc.rosterReports(ctx, cc)
		if err != nil {
			return nil, err
		}
		stats = append(stats, statistics(cc, reports))
	}
	return stats, nil
}

func statistics(cc classContext, reports []StudentReport) ClassStatistics {
	st := ClassStatistics{
		ClassID:  cc.class.ID,
		Class:    cc.class.Name,
		Subject:  cc.subject.Name,
		Semester: cc.semester.Label(),
		Total:    len(reports),
	}
	for _, rep := range reports {
		if rep.Passing {
			st.Passed++
		}
	}
	st.Failed = st.Total - st.Passed
	st.PassRate = PassRate(st.Passed, st.Total)
	return st
}
