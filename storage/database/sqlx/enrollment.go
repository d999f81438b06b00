package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/enrollment"
)

const (
	studentColumns = "id, first_name, last_name, gender, address, email, birth_date, class_id, created_at"
	classColumns   = "id, name, grade, quantity, created_at"
)

var studentOrderings = map[string]string{
	"first_name": "first_name",
	"last_name":  "last_name",
	"birth_date": "birth_date",
	"created_at": "created_at",
}

type studentRow struct {
	ID        string      `db:"id"`
	FirstName string      `db:"first_name"`
	LastName  string      `db:"last_name"`
	Gender    string      `db:"gender"`
	Address   string      `db:"address"`
	Email     null.String `db:"email"`
	BirthDate null.Time   `db:"birth_date"`
	ClassID   null.String `db:"class_id"`
	CreatedAt time.Time   `db:"created_at"`
}

func toStudentRow(stu enrollment.Student) studentRow {
	return studentRow{
		ID:        stu.ID,
		FirstName: stu.FirstName,
		LastName:  stu.LastName,
		Gender:    stu.Gender,
		Address:   stu.Address,
		Email:     null.NewString(stu.Email, stu.Email != ""),
		BirthDate: null.NewTime(stu.BirthDate, !stu.BirthDate.IsZero()),
		ClassID:   null.NewString(stu.ClassID, stu.ClassID != ""),
		CreatedAt: stu.CreatedAt.UTC(),
	}
}

func (r studentRow) student() enrollment.Student {
	return enrollment.Student{
		ID:        r.ID,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Gender:    r.Gender,
		Address:   r.Address,
		Email:     r.Email.String,
		BirthDate: r.BirthDate.Time,
		ClassID:   r.ClassID.String,
		CreatedAt: r.CreatedAt,
	}
}

type classRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Grade     int       `db:"grade"`
	Quantity  int       `db:"quantity"`
	CreatedAt time.Time `db:"created_at"`
}

func (r classRow) class() enrollment.Class {
	return enrollment.Class{
		ID:        r.ID,
		Name:      r.Name,
		Grade:     r.Grade,
		Quantity:  r.Quantity,
		CreatedAt: r.CreatedAt,
	}
}

type enrollmentRepository struct {
	store
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *sqlx.DB) enrollment.Repository {
	return &enrollmentRepository{store: newStore(db)}
}

func (repo *enrollmentRepository) InTx(ctx context.Context, fn func(repo enrollment.Repository) error) error {
	return repo.inTx(ctx, func(tx store) error {
		return fn(&enrollmentRepository{store: tx})
	})
}

// Students

func (repo *enrollmentRepository) CreateStudent(ctx context.Context, stu enrollment.Student) (enrollment.Student, error) {
	if stu.ID == "" {
		stu.ID = uuid.New().String()
	}
	err := repo.namedExec(ctx, `INSERT INTO students (`+studentColumns+`)
		VALUES (:id, :first_name, :last_name, :gender, :address, :email, :birth_date, :class_id, :created_at)`,
		toStudentRow(stu))
	if err != nil {
		return enrollment.Student{}, errors.Wrap(err, "inserting student")
	}
	return stu, nil
}

func (repo *enrollmentRepository) UpdateStudent(ctx context.Context, stu enrollment.Student) (enrollment.Student, error) {
	r := toStudentRow(stu)
	n, err := repo.execute(ctx, `UPDATE students
		SET first_name = ?, last_name = ?, gender = ?, address = ?, email = ?, birth_date = ?
		WHERE id = ?`,
		r.FirstName, r.LastName, r.Gender, r.Address, r.Email, r.BirthDate, r.ID)
	if err != nil {
		return enrollment.Student{}, errors.Wrap(err, "updating student")
	}
	if n == 0 {
		return enrollment.Student{}, enrollment.ErrStudentNotFound
	}
	return stu, nil
}

func (repo *enrollmentRepository) DeleteStudent(ctx context.Context, id string) error {
	n, err := repo.execute(ctx, "DELETE FROM students WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting student")
	}
	if n == 0 {
		return enrollment.ErrStudentNotFound
	}
	return nil
}

func (repo *enrollmentRepository) GetStudent(ctx context.Context, id string) (enrollment.Student, error) {
	var r studentRow
	if err := repo.get(ctx, &r, "SELECT "+studentColumns+" FROM students WHERE id = ?", id); err != nil {
		return enrollment.Student{}, trapNoRowsErr(err, enrollment.ErrStudentNotFound, "finding student")
	}
	return r.student(), nil
}

func studentConditions(filter *enrollment.QueryFilter) conditions {
	var conds conditions
	if filter == nil {
		return conds
	}
	if filter.Search != "" {
		val := likePattern(filter.Search)
		conds.add("(LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(email) LIKE ?)", val, val, val)
	}
	if filter.ClassID != "" {
		conds.add("class_id = ?", filter.ClassID)
	}
	if filter.Unplaced {
		conds.add("class_id IS NULL")
	}
	return conds
}

func (repo *enrollmentRepository) QueryStudents(ctx context.Context, filter *enrollment.QueryFilter, ordering []core.DBOrdering, page core.Page) ([]enrollment.Student, error) {
	conds := studentConditions(filter)
	query := "SELECT " + studentColumns + " FROM students" + conds.where()
	if order := core.OrderingClause(ordering, studentOrderings); order != "" {
		query += " ORDER BY " + order + ", id"
	} else {
		query += " ORDER BY created_at, id"
	}
	args := conds.args
	if !page.IsZero() {
		query += " LIMIT ? OFFSET ?"
		args = append(args, page.Size, page.Offset())
	}

	var rows []studentRow
	if err := repo.selectAll(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]enrollment.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.student())
	}
	return students, nil
}

func (repo *enrollmentRepository) CountStudents(ctx context.Context, filter *enrollment.QueryFilter) (int, error) {
	conds := studentConditions(filter)
	var n int
	if err := repo.get(ctx, &n, "SELECT COUNT(*) FROM students"+conds.where(), conds.args...); err != nil {
		return 0, errors.Wrap(err, "counting students")
	}
	return n, nil
}

func (repo *enrollmentRepository) PlaceStudent(ctx context.Context, studentID, classID string) error {
	n, err := repo.execute(ctx, "UPDATE students SET class_id = ? WHERE id = ? AND class_id IS NULL", classID, studentID)
	if err != nil {
		return errors.Wrap(err, "placing student")
	}
	if n > 0 {
		return nil
	}
	if _, err = repo.GetStudent(ctx, studentID); err != nil {
		return err
	}
	return enrollment.ErrAlreadyPlaced
}

// Classes

func (repo *enrollmentRepository) CreateClass(ctx context.Context, cls enrollment.Class) (enrollment.Class, error) {
	cls.ID = uuid.New().String()
	cls.CreatedAt = cls.CreatedAt.UTC()
	err := repo.namedExec(ctx, "INSERT INTO classes ("+classColumns+") VALUES (:id, :name, :grade, :quantity, :created_at)",
		classRow{ID: cls.ID, Name: cls.Name, Grade: cls.Grade, Quantity: cls.Quantity, CreatedAt: cls.CreatedAt})
	if err != nil {
		if isUniqueViolation(err) {
			return enrollment.Class{}, enrollment.ErrClassExists
		}
		return enrollment.Class{}, errors.Wrap(err, "inserting class")
	}
	return cls, nil
}

func (repo *enrollmentRepository) GetClass(ctx context.Context, id string) (enrollment.Class, error) {
	var r classRow
	if err := repo.get(ctx, &r, "SELECT "+classColumns+" FROM classes WHERE id = ?", id); err != nil {
		return enrollment.Class{}, trapNoRowsErr(err, enrollment.ErrClassNotFound, "finding class")
	}
	return r.class(), nil
}

func (repo *enrollmentRepository) QueryClasses(ctx context.Context, filter *enrollment.ClassFilter) ([]enrollment.Class, error) {
	var conds conditions
	forUpdate := false
	if filter != nil {
		if filter.Grade > 0 {
			conds.add("grade = ?", filter.Grade)
		}
		forUpdate = filter.ForUpdate
	}

	query := "SELECT " + classColumns + " FROM classes" + conds.where() + " ORDER BY grade, name"
	if forUpdate {
		query += " FOR UPDATE"
	}

	var rows []classRow
	if err := repo.selectAll(ctx, &rows, query, conds.args...); err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	classes := make([]enrollment.Class, 0, len(rows))
	for _, r := range rows {
		classes = append(classes, r.class())
	}
	return classes, nil
}

func (repo *enrollmentRepository) IncrementClassQuantity(ctx context.Context, id string) error {
	n, err := repo.execute(ctx, "UPDATE classes SET quantity = quantity + 1 WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "incrementing class quantity")
	}
	if n == 0 {
		return enrollment.ErrClassNotFound
	}
	return nil
}
