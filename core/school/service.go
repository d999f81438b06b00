package school

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var (
	// errors
	ErrRegulationNotFound = core.NewNotFoundError("regulation")
	ErrSubjectNotFound    = core.NewNotFoundError("subject")
	ErrSemesterNotFound   = core.NewNotFoundError("semester")
	ErrSubjectExists      = errors.New("this subject already exists for this grade")
	ErrSemesterExists     = errors.New("this semester already exists")
	ErrAssignmentExists   = errors.New("this teacher is already assigned to this subject & class")
)

type (
	Repository interface {
		// InTx runs fn against a Repository bound to a single serializable unit of work.
		// The unit is rolled back when fn returns an error.
		InTx(ctx context.Context, fn func(repo Repository) error) error

		// GetLatestRegulation returns the Regulation with the highest version.
		GetLatestRegulation(ctx context.Context) (Regulation, error)
		CreateRegulation(ctx context.Context, reg Regulation) (Regulation, error)
		QueryRegulations(ctx context.Context) ([]Regulation, error)
		CreateRegulationHistory(ctx context.Context, h RegulationHistory) (RegulationHistory, error)
		// QueryRegulationHistory returns history entries, newest first.
		QueryRegulationHistory(ctx context.Context) ([]RegulationHistory, error)

		CreateSubject(ctx context.Context, sub Subject) (Subject, error)
		// QuerySubjects returns the subjects of grade, or all subjects when grade is 0.
		QuerySubjects(ctx context.Context, grade int) ([]Subject, error)
		GetSubject(ctx context.Context, id string) (Subject, error)

		CreateSemester(ctx context.Context, sem Semester) (Semester, error)
		QuerySemesters(ctx context.Context) ([]Semester, error)
		GetSemester(ctx context.Context, id string) (Semester, error)

		CreateAssignment(ctx context.Context, ta TeachingAssignment) (TeachingAssignment, error)
		QueryAssignments(ctx context.Context, filter AssignmentFilter) ([]TeachingAssignment, error)
	}

	ServiceInterface interface {
		CurrentRegulation(ctx context.Context) (Regulation, error)
		ChangeRegulation(ctx context.Context, adminID string, nr NewRegulation) (Regulation, error)
		QueryRegulationHistory(ctx context.Context) ([]RegulationHistory, error)

		CreateSubject(ctx context.Context, ns NewSubject) (Subject, error)
		QuerySubjects(ctx context.Context, grade int) ([]Subject, error)
		GetSubject(ctx context.Context, id string) (Subject, error)

		CreateSemester(ctx context.Context, ns NewSemester) (Semester, error)
		QuerySemesters(ctx context.Context) ([]Semester, error)
		GetSemester(ctx context.Context, id string) (Semester, error)

		AssignTeacher(ctx context.Context, na NewAssignment) (TeachingAssignment, error)
		QueryAssignments(ctx context.Context, teacherID string) ([]TeachingAssignment, error)
		IsAssigned(ctx context.Context, teacherID, subjectID, classID string) (bool, error)
	}

	service struct {
		repo   Repository
		logger core.Logger
	}
)

var (
	_ ServiceInterface = (*service)(nil) // interface compliance check

	NowFunc = time.Now // mockable
)

func NewService(repo Repository, logger core.Logger) ServiceInterface {
	return &service{repo: repo, logger: logger}
}

// Regulation

func (svc *service) CurrentRegulation(ctx context.Context) (Regulation, error) {
	return svc.repo.GetLatestRegulation(ctx)
}

// ChangeRegulation stores nr as the next Regulation version and records adminID in the history, atomically.
func (svc *service) ChangeRegulation(ctx context.Context, adminID string, nr NewRegulation) (Regulation, error) {
	if err := nr.Check(); err != nil {
		return Regulation{}, err
	}

	var reg Regulation
	err := svc.repo.InTx(ctx, func(repo Repository) error {
		version := 1
		latest, err := repo.GetLatestRegulation(ctx)
		switch {
		case err == nil:
			version = latest.Version + 1
		case errors.Cause(err) != ErrRegulationNotFound:
			return errors.Wrap(err, "getting latest regulation")
		}

		now := NowFunc().UTC()
		reg, err = repo.CreateRegulation(ctx, Regulation{
			Version:      version,
			MinAge:       nr.MinAge,
			MaxAge:       nr.MaxAge,
			MaxClassSize: nr.MaxClassSize,
			MaxStudents:  nr.MaxStudents,
			CreatedAt:    now,
		})
		if err != nil {
			return errors.Wrap(err, "creating regulation")
		}

		_, err = repo.CreateRegulationHistory(ctx, RegulationHistory{
			AdminID:      adminID,
			RegulationID: reg.ID,
			CreatedAt:    now,
		})
		return errors.Wrap(err, "creating regulation history")
	})
	if err != nil {
		return Regulation{}, err
	}

	svc.logger.Info("regulation changed", map[string]interface{}{"admin_id": adminID, "version": reg.Version})
	return reg, nil
}

func (svc *service) QueryRegulationHistory(ctx context.Context) ([]RegulationHistory, error) {
	history, err := svc.repo.QueryRegulationHistory(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying regulation history")
	}
	regs, err := svc.repo.QueryRegulations(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying regulations")
	}

	byID := make(map[string]Regulation, len(regs))
	for _, r := range regs {
		byID[r.ID] = r
	}
	for i := range history {
		if r, ok := byID[history[i].RegulationID]; ok {
			r := r
			history[i].Regulation = &r
		}
	}
	return history, nil
}

// Subjects

func (svc *service) CreateSubject(ctx context.Context, ns NewSubject) (Subject, error) {
	ns.Clean()
	if ns.Name == "" {
		return Subject{}, core.NewValidationError(nil, core.FieldError{Field: "name", Error: "this field is required"})
	}
	sub, err := svc.repo.CreateSubject(ctx, Subject{Name: ns.Name, Grade: ns.Grade, CreatedAt: NowFunc().UTC()})
	if errors.Cause(err) == ErrSubjectExists {
		return Subject{}, core.NewValidationError(err, core.FieldError{Field: "name", Error: err.Error()})
	}
	return sub, err
}

func (svc *service) QuerySubjects(ctx context.Context, grade int) ([]Subject, error) {
	return svc.repo.QuerySubjects(ctx, grade)
}

func (svc *service) GetSubject(ctx context.Context, id string) (Subject, error) {
	return svc.repo.GetSubject(ctx, id)
}

// Semesters

func (svc *service) CreateSemester(ctx context.Context, ns NewSemester) (Semester, error) {
	ns.Clean()
	if ns.Name == "" {
		return Semester{}, core.NewValidationError(nil, core.FieldError{Field: "name", Error: "this field is required"})
	}
	sem, err := svc.repo.CreateSemester(ctx, Semester{Name: ns.Name, Year: ns.Year, CreatedAt: NowFunc().UTC()})
	if errors.Cause(err) == ErrSemesterExists {
		return Semester{}, core.NewValidationError(err, core.FieldError{Field: "name", Error: err.Error()})
	}
	return sem, err
}

func (svc *service) QuerySemesters(ctx context.Context) ([]Semester, error) {
	return svc.repo.QuerySemesters(ctx)
}

func (svc *service) GetSemester(ctx context.Context, id string) (Semester, error) {
	return svc.repo.GetSemester(ctx, id)
}

// Teaching assignments

// AssignTeacher checks the subject reference; teacher & class references are checked by the caller.
func (svc *service) AssignTeacher(ctx context.Context, na NewAssignment) (TeachingAssignment, error) {
	if na.StartDate != nil && na.EndDate != nil && na.EndDate.Before(*na.StartDate) {
		return TeachingAssignment{}, core.NewValidationError(nil,
			core.FieldError{Field: "end_date", Error: "end_date must be after start_date"})
	}
	if _, err := svc.repo.GetSubject(ctx, na.SubjectID); err != nil {
		return TeachingAssignment{}, err
	}

	ta, err := svc.repo.CreateAssignment(ctx, TeachingAssignment{
		TeacherID: na.TeacherID,
		SubjectID: na.SubjectID,
		ClassID:   na.ClassID,
		StartDate: na.StartDate,
		EndDate:   na.EndDate,
	})
	if errors.Cause(err) == ErrAssignmentExists {
		return TeachingAssignment{}, core.NewValidationError(err, core.FieldError{Field: "class_id", Error: err.Error()})
	}
	return ta, err
}

func (svc *service) QueryAssignments(ctx context.Context, teacherID string) ([]TeachingAssignment, error) {
	return svc.repo.QueryAssignments(ctx, AssignmentFilter{TeacherID: teacherID})
}

// IsAssigned reports whether the teacher currently teaches the subject to the class.
func (svc *service) IsAssigned(ctx context.Context, teacherID, subjectID, classID string) (bool, error) {
	assignments, err := svc.repo.QueryAssignments(ctx, AssignmentFilter{
		TeacherID: teacherID,
		SubjectID: subjectID,
		ClassID:   classID,
	})
	if err != nil {
		return false, errors.Wrap(err, "querying assignments")
	}
	now := NowFunc()
	for _, ta := range assignments {
		if ta.ActiveAt(now) {
			return true, nil
		}
	}
	return false, nil
}
