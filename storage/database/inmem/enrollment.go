package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/enrollment"
)

type enrollmentRepository struct {
	session
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *DB) enrollment.Repository {
	return &enrollmentRepository{session: session{db: db}}
}

func (repo *enrollmentRepository) InTx(ctx context.Context, fn func(repo enrollment.Repository) error) error {
	return repo.inTransaction(func(tx session) error {
		return fn(&enrollmentRepository{session: tx})
	})
}

// Students

func (repo *enrollmentRepository) CreateStudent(ctx context.Context, stu enrollment.Student) (enrollment.Student, error) {
	if stu.ID == "" {
		stu.ID = uuid.New().String()
	}
	repo.write(func(t *tables) {
		t.students = append(t.students, stu)
	})
	return stu, nil
}

func (repo *enrollmentRepository) UpdateStudent(ctx context.Context, stu enrollment.Student) (enrollment.Student, error) {
	var err error
	repo.write(func(t *tables) {
		for i := range t.students {
			if t.students[i].ID == stu.ID {
				stu.ClassID = t.students[i].ClassID // placement only changes through PlaceStudent
				t.students[i] = stu
				return
			}
		}
		err = enrollment.ErrStudentNotFound
	})
	if err != nil {
		return enrollment.Student{}, err
	}
	return stu, nil
}

func (repo *enrollmentRepository) DeleteStudent(ctx context.Context, id string) error {
	var err error
	repo.write(func(t *tables) {
		for i := range t.students {
			if t.students[i].ID == id {
				t.students = append(t.students[:i], t.students[i+1:]...)
				return
			}
		}
		err = enrollment.ErrStudentNotFound
	})
	return err
}

func findStudent(t *tables, id string) (int, bool) {
	for i := range t.students {
		if t.students[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

func (repo *enrollmentRepository) GetStudent(ctx context.Context, id string) (enrollment.Student, error) {
	var (
		stu   enrollment.Student
		found bool
	)
	repo.read(func(t *tables) {
		var idx int
		if idx, found = findStudent(t, id); found {
			stu = t.students[idx]
		}
	})
	if !found {
		return enrollment.Student{}, enrollment.ErrStudentNotFound
	}
	return stu, nil
}

func matchStudent(stu enrollment.Student, filter *enrollment.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Search != "" && !containsFold(filter.Search, stu.FirstName, stu.LastName, stu.Email) {
		return false
	}
	if filter.ClassID != "" && stu.ClassID != filter.ClassID {
		return false
	}
	if filter.Unplaced && stu.IsPlaced() {
		return false
	}
	return true
}

func studentSortKey(stu enrollment.Student, field string) string {
	switch field {
	case "first_name":
		return strings.ToLower(stu.FirstName)
	case "last_name":
		return strings.ToLower(stu.LastName)
	case "birth_date":
		return stu.BirthDate.Format("2006-01-02")
	case "created_at":
		return stu.CreatedAt.Format("2006-01-02T15:04:05.000000000")
	}
	return ""
}

func (repo *enrollmentRepository) QueryStudents(ctx context.Context, filter *enrollment.QueryFilter, ordering []core.DBOrdering, page core.Page) ([]enrollment.Student, error) {
	var students []enrollment.Student
	repo.read(func(t *tables) {
		students = make([]enrollment.Student, 0, len(t.students))
		for _, stu := range t.students {
			if matchStudent(stu, filter) {
				students = append(students, stu)
			}
		}
	})

	if len(ordering) > 0 {
		sort.SliceStable(students, func(i, j int) bool {
			for _, ord := range ordering {
				a, b := studentSortKey(students[i], ord.Field), studentSortKey(students[j], ord.Field)
				if a == b {
					continue
				}
				if ord.Ascending {
					return a < b
				}
				return a > b
			}
			return false
		})
	}

	start, end := page.Window(len(students))
	return students[start:end], nil
}

func (repo *enrollmentRepository) CountStudents(ctx context.Context, filter *enrollment.QueryFilter) (int, error) {
	var n int
	repo.read(func(t *tables) {
		for _, stu := range t.students {
			if matchStudent(stu, filter) {
				n++
			}
		}
	})
	return n, nil
}

func (repo *enrollmentRepository) PlaceStudent(ctx context.Context, studentID, classID string) error {
	var err error
	repo.write(func(t *tables) {
		idx, found := findStudent(t, studentID)
		switch {
		case !found:
			err = enrollment.ErrStudentNotFound
		case t.students[idx].IsPlaced():
			err = enrollment.ErrAlreadyPlaced
		default:
			t.students[idx].ClassID = classID
		}
	})
	return err
}

// Classes

func (repo *enrollmentRepository) CreateClass(ctx context.Context, cls enrollment.Class) (enrollment.Class, error) {
	var err error
	repo.write(func(t *tables) {
		for _, c := range t.classes {
			if c.Name == cls.Name {
				err = enrollment.ErrClassExists
				return
			}
		}
		cls.ID = uuid.New().String()
		t.classes = append(t.classes, cls)
	})
	if err != nil {
		return enrollment.Class{}, err
	}
	return cls, nil
}

func (repo *enrollmentRepository) GetClass(ctx context.Context, id string) (enrollment.Class, error) {
	var (
		cls   enrollment.Class
		found bool
	)
	repo.read(func(t *tables) {
		for _, c := range t.classes {
			if c.ID == id {
				cls, found = c, true
				return
			}
		}
	})
	if !found {
		return enrollment.Class{}, enrollment.ErrClassNotFound
	}
	return cls, nil
}

// QueryClasses ignores ClassFilter.ForUpdate: a unit of work already holds the write lock.
func (repo *enrollmentRepository) QueryClasses(ctx context.Context, filter *enrollment.ClassFilter) ([]enrollment.Class, error) {
	var classes []enrollment.Class
	repo.read(func(t *tables) {
		classes = make([]enrollment.Class, 0, len(t.classes))
		for _, c := range t.classes {
			if filter != nil && filter.Grade > 0 && c.Grade != filter.Grade {
				continue
			}
			classes = append(classes, c)
		}
	})
	sort.SliceStable(classes, func(i, j int) bool {
		if classes[i].Grade != classes[j].Grade {
			return classes[i].Grade < classes[j].Grade
		}
		return classes[i].Name < classes[j].Name
	})
	return classes, nil
}

func (repo *enrollmentRepository) IncrementClassQuantity(ctx context.Context, id string) error {
	var err error
	repo.write(func(t *tables) {
		for i := range t.classes {
			if t.classes[i].ID == id {
				t.classes[i].Quantity++
				return
			}
		}
		err = enrollment.ErrClassNotFound
	})
	return err
}
