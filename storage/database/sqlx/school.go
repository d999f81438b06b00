package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core/school"
)

const (
	regulationColumns = "id, version, min_age, max_age, max_class_size, max_students, created_at"
	subjectColumns    = "id, name, grade, created_at"
	semesterColumns   = "id, name, year, created_at"
	assignmentColumns = "teacher_id, subject_id, class_id, start_date, end_date"
)

type regulationRow struct {
	ID           string    `db:"id"`
	Version      int       `db:"version"`
	MinAge       int       `db:"min_age"`
	MaxAge       int       `db:"max_age"`
	MaxClassSize int       `db:"max_class_size"`
	MaxStudents  int       `db:"max_students"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r regulationRow) regulation() school.Regulation {
	return school.Regulation(r)
}

type historyRow struct {
	ID           string      `db:"id"`
	AdminID      null.String `db:"admin_id"`
	RegulationID string      `db:"regulation_id"`
	CreatedAt    time.Time   `db:"created_at"`
}

type subjectRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Grade     int       `db:"grade"`
	CreatedAt time.Time `db:"created_at"`
}

type semesterRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Year      int       `db:"year"`
	CreatedAt time.Time `db:"created_at"`
}

type assignmentRow struct {
	TeacherID string    `db:"teacher_id"`
	SubjectID string    `db:"subject_id"`
	ClassID   string    `db:"class_id"`
	StartDate null.Time `db:"start_date"`
	EndDate   null.Time `db:"end_date"`
}

func (r assignmentRow) assignment() school.TeachingAssignment {
	return school.TeachingAssignment{
		TeacherID: r.TeacherID,
		SubjectID: r.SubjectID,
		ClassID:   r.ClassID,
		StartDate: r.StartDate.Ptr(),
		EndDate:   r.EndDate.Ptr(),
	}
}

type schoolRepository struct {
	store
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *sqlx.DB) school.Repository {
	return &schoolRepository{store: newStore(db)}
}

func (repo *schoolRepository) InTx(ctx context.Context, fn func(repo school.Repository) error) error {
	return repo.inTx(ctx, func(tx store) error {
		return fn(&schoolRepository{store: tx})
	})
}

// Regulation

func (repo *schoolRepository) GetLatestRegulation(ctx context.Context) (school.Regulation, error) {
	var r regulationRow
	if err := repo.get(ctx, &r, "SELECT "+regulationColumns+" FROM regulations ORDER BY version DESC LIMIT 1"); err != nil {
		return school.Regulation{}, trapNoRowsErr(err, school.ErrRegulationNotFound, "finding latest regulation")
	}
	return r.regulation(), nil
}

func (repo *schoolRepository) CreateRegulation(ctx context.Context, reg school.Regulation) (school.Regulation, error) {
	reg.ID = uuid.New().String()
	reg.CreatedAt = reg.CreatedAt.UTC()
	err := repo.namedExec(ctx, `INSERT INTO regulations (`+regulationColumns+`)
		VALUES (:id, :version, :min_age, :max_age, :max_class_size, :max_students, :created_at)`,
		regulationRow(reg))
	if err != nil {
		return school.Regulation{}, errors.Wrap(err, "inserting regulation")
	}
	return reg, nil
}

func (repo *schoolRepository) QueryRegulations(ctx context.Context) ([]school.Regulation, error) {
	var rows []regulationRow
	if err := repo.selectAll(ctx, &rows, "SELECT "+regulationColumns+" FROM regulations ORDER BY version"); err != nil {
		return nil, errors.Wrap(err, "querying regulations")
	}
	regs := make([]school.Regulation, 0, len(rows))
	for _, r := range rows {
		regs = append(regs, r.regulation())
	}
	return regs, nil
}

func (repo *schoolRepository) CreateRegulationHistory(ctx context.Context, h school.RegulationHistory) (school.RegulationHistory, error) {
	h.ID = uuid.New().String()
	h.CreatedAt = h.CreatedAt.UTC()
	err := repo.namedExec(ctx, `INSERT INTO regulation_history (id, admin_id, regulation_id, created_at)
		VALUES (:id, :admin_id, :regulation_id, :created_at)`,
		historyRow{
			ID:           h.ID,
			AdminID:      null.NewString(h.AdminID, h.AdminID != ""),
			RegulationID: h.RegulationID,
			CreatedAt:    h.CreatedAt,
		})
	if err != nil {
		return school.RegulationHistory{}, errors.Wrap(err, "inserting regulation history")
	}
	return h, nil
}

func (repo *schoolRepository) QueryRegulationHistory(ctx context.Context) ([]school.RegulationHistory, error) {
	var rows []historyRow
	err := repo.selectAll(ctx, &rows,
		"SELECT id, admin_id, regulation_id, created_at FROM regulation_history ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, errors.Wrap(err, "querying regulation history")
	}
	history := make([]school.RegulationHistory, 0, len(rows))
	for _, r := range rows {
		history = append(history, school.RegulationHistory{
			ID:           r.ID,
			AdminID:      r.AdminID.String,
			RegulationID: r.RegulationID,
			CreatedAt:    r.CreatedAt,
		})
	}
	return history, nil
}

// Subjects

func (repo *schoolRepository) CreateSubject(ctx context.Context, sub school.Subject) (school.Subject, error) {
	sub.ID = uuid.New().String()
	sub.CreatedAt = sub.CreatedAt.UTC()
	err := repo.namedExec(ctx, "INSERT INTO subjects ("+subjectColumns+") VALUES (:id, :name, :grade, :created_at)",
		subjectRow(sub))
	if err != nil {
		if isUniqueViolation(err) {
			return school.Subject{}, school.ErrSubjectExists
		}
		return school.Subject{}, errors.Wrap(err, "inserting subject")
	}
	return sub, nil
}

func (repo *schoolRepository) QuerySubjects(ctx context.Context, grade int) ([]school.Subject, error) {
	var conds conditions
	if grade > 0 {
		conds.add("grade = ?", grade)
	}
	var rows []subjectRow
	if err := repo.selectAll(ctx, &rows, "SELECT "+subjectColumns+" FROM subjects"+conds.where()+" ORDER BY grade, name", conds.args...); err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	subjects := make([]school.Subject, 0, len(rows))
	for _, r := range rows {
		subjects = append(subjects, school.Subject(r))
	}
	return subjects, nil
}

func (repo *schoolRepository) GetSubject(ctx context.Context, id string) (school.Subject, error) {
	var r subjectRow
	if err := repo.get(ctx, &r, "SELECT "+subjectColumns+" FROM subjects WHERE id = ?", id); err != nil {
		return school.Subject{}, trapNoRowsErr(err, school.ErrSubjectNotFound, "finding subject")
	}
	return school.Subject(r), nil
}

// Semesters

func (repo *schoolRepository) CreateSemester(ctx context.Context, sem school.Semester) (school.Semester, error) {
	sem.ID = uuid.New().String()
	sem.CreatedAt = sem.CreatedAt.UTC()
	err := repo.namedExec(ctx, "INSERT INTO semesters ("+semesterColumns+") VALUES (:id, :name, :year, :created_at)",
		semesterRow(sem))
	if err != nil {
		if isUniqueViolation(err) {
			return school.Semester{}, school.ErrSemesterExists
		}
		return school.Semester{}, errors.Wrap(err, "inserting semester")
	}
	return sem, nil
}

func (repo *schoolRepository) QuerySemesters(ctx context.Context) ([]school.Semester, error) {
	var rows []semesterRow
	if err := repo.selectAll(ctx, &rows, "SELECT "+semesterColumns+" FROM semesters ORDER BY year DESC, name"); err != nil {
		return nil, errors.Wrap(err, "querying semesters")
	}
	semesters := make([]school.Semester, 0, len(rows))
	for _, r := range rows {
		semesters = append(semesters, school.Semester(r))
	}
	return semesters, nil
}

func (repo *schoolRepository) GetSemester(ctx context.Context, id string) (school.Semester, error) {
	var r semesterRow
	if err := repo.get(ctx, &r, "SELECT "+semesterColumns+" FROM semesters WHERE id = ?", id); err != nil {
		return school.Semester{}, trapNoRowsErr(err, school.ErrSemesterNotFound, "finding semester")
	}
	return school.Semester(r), nil
}

// Teaching assignments

func (repo *schoolRepository) CreateAssignment(ctx context.Context, ta school.TeachingAssignment) (school.TeachingAssignment, error) {
	err := repo.namedExec(ctx, "INSERT INTO teaching_assignments ("+assignmentColumns+") VALUES (:teacher_id, :subject_id, :class_id, :start_date, :end_date)",
		assignmentRow{
			TeacherID: ta.TeacherID,
			SubjectID: ta.SubjectID,
			ClassID:   ta.ClassID,
			StartDate: null.TimeFromPtr(ta.StartDate),
			EndDate:   null.TimeFromPtr(ta.EndDate),
		})
	if err != nil {
		if isUniqueViolation(err) {
			return school.TeachingAssignment{}, school.ErrAssignmentExists
		}
		return school.TeachingAssignment{}, errors.Wrap(err, "inserting teaching assignment")
	}
	return ta, nil
}

func (repo *schoolRepository) QueryAssignments(ctx context.Context, filter school.AssignmentFilter) ([]school.TeachingAssignment, error) {
	var conds conditions
	if filter.TeacherID != "" {
		conds.add("teacher_id = ?", filter.TeacherID)
	}
	if filter.SubjectID != "" {
		conds.add("subject_id = ?", filter.SubjectID)
	}
	if filter.ClassID != "" {
		conds.add("class_id = ?", filter.ClassID)
	}

	var rows []assignmentRow
	query := "SELECT " + assignmentColumns + " FROM teaching_assignments" + conds.where() + " ORDER BY start_date, subject_id, class_id"
	if err := repo.selectAll(ctx, &rows, query, conds.args...); err != nil {
		return nil, errors.Wrap(err, "querying teaching assignments")
	}
	assignments := make([]school.TeachingAssignment, 0, len(rows))
	for _, r := range rows {
		assignments = append(assignments, r.assignment())
	}
	return assignments, nil
}
