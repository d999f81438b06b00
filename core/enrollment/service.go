package enrollment

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/core/user"
)

var (
	// errors
	ErrStudentNotFound = core.NewNotFoundError("student")
	ErrClassNotFound   = core.NewNotFoundError("class")
	ErrClassExists     = errors.New("a class with this name already exists")
)

type (
	Repository interface {
		// InTx runs fn against a Repository bound to a single serializable unit of work.
		// The unit is rolled back when fn returns an error.
		InTx(ctx context.Context, fn func(repo Repository) error) error

		CreateStudent(ctx context.Context, stu Student) (Student, error)
		UpdateStudent(ctx context.Context, stu Student) (Student, error)
		DeleteStudent(ctx context.Context, id string) error
		GetStudent(ctx context.Context, id string) (Student, error)
		// QueryStudents applies AND operation on available QueryFilter fields.
		// A zero page returns every match.
		QueryStudents(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Page) ([]Student, error)
		CountStudents(ctx context.Context, filter *QueryFilter) (int, error)
		// PlaceStudent sets the class of an unplaced student, or returns ErrAlreadyPlaced.
		PlaceStudent(ctx context.Context, studentID, classID string) error

		CreateClass(ctx context.Context, cls Class) (Class, error)
		GetClass(ctx context.Context, id string) (Class, error)
		QueryClasses(ctx context.Context, filter *ClassFilter) ([]Class, error)
		IncrementClassQuantity(ctx context.Context, id string) error
	}

	ServiceInterface interface {
		ValidateAdmission(ctx context.Context, reg school.Regulation, birthDate time.Time) (int, error)
		Admit(ctx context.Context, reg school.Regulation, ns NewStudent) (Student, []Placement, error)
		UpdateStudent(ctx context.Context, reg school.Regulation, id string, us UpdateStudent) (Student, error)
		GetStudent(ctx context.Context, id string) (Student, error)
		QueryStudents(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Page) ([]Student, error)
		CountStudents(ctx context.Context) (int, error)

		CreateClass(ctx context.Context, nc NewClass) (Class, error)
		QueryClasses(ctx context.Context, grade int) ([]Class, error)
		GetClass(ctx context.Context, id string) (Class, error)
		ClassRoster(ctx context.Context, id string) ([]Student, error)

		AssignUnplacedStudents(ctx context.Context, reg school.Regulation) ([]Placement, error)
	}

	service struct {
		repo         Repository
		usrSvc       user.ServiceInterface
		mailSvc      core.EmailService
		validate     *validator.Validate
		logger       core.Logger
		defaultGrade int
		pageSize     int
		balanceMu    sync.Mutex
		shuffle      func([]Student)
	}
)

var (
	_ ServiceInterface = (*service)(nil) // interface compliance check

	NowFunc = time.Now // mockable

	// ShuffleFunc randomizes the order in which unplaced students are balanced. mockable
	ShuffleFunc = func(students []Student) {
		rand.Shuffle(len(students), func(i, j int) { students[i], students[j] = students[j], students[i] })
	}
)

func NewService(
	repo Repository,
	usrSvc user.ServiceInterface,
	mailSvc core.EmailService,
	validate *validator.Validate,
	conf *core.Config,
	logger core.Logger,
) ServiceInterface {
	return &service{
		repo:         repo,
		usrSvc:       usrSvc,
		mailSvc:      mailSvc,
		validate:     validate,
		logger:       logger,
		defaultGrade: conf.School.DefaultGrade,
		pageSize:     conf.School.PageSize,
		shuffle:      func(students []Student) { ShuffleFunc(students) },
	}
}

// Students

// Admit validates ns against reg, creates the student account & profile, then balances the newcomer into a class.
func (svc *service) Admit(ctx context.Context, reg school.Regulation, ns NewStudent) (Student, []Placement, error) {
	if err := ns.Validate(ctx, svc.validate, svc.usrSvc); err != nil {
		return Student{}, nil, err
	}
	birth, err := ns.Birth()
	if err != nil {
		return Student{}, nil, err
	}
	if _, err = svc.ValidateAdmission(ctx, reg, birth); err != nil {
		return Student{}, nil, err
	}

	usr, err := svc.usrSvc.Create(ctx, ns.Account())
	if err != nil {
		return Student{}, nil, errors.Wrap(err, "creating student account")
	}

	stu, err := svc.repo.CreateStudent(ctx, Student{
		ID:        usr.ID,
		FirstName: ns.FirstName,
		LastName:  ns.LastName,
		Gender:    ns.Gender,
		Address:   ns.Address,
		Email:     ns.Email,
		BirthDate: birth,
		CreatedAt: NowFunc().UTC(),
	})
	if err != nil {
		if _, delErr := svc.usrSvc.Delete(ctx, usr.ID); delErr != nil {
			svc.logger.Error(fmt.Sprintf("deleting orphan student account %s: %v", usr.ID, delErr), delErr)
		}
		return Student{}, nil, errors.Wrap(err, "creating student")
	}

	placements, err := svc.AssignUnplacedStudents(ctx, reg)
	if err != nil {
		return stu, placements, errors.Wrap(err, "balancing classes")
	}
	if stu, err = svc.repo.GetStudent(ctx, stu.ID); err != nil {
		return Student{}, placements, err
	}
	return stu, placements, nil
}

// UpdateStudent applies the non-empty fields of us. A new birth date is checked against the age bounds of reg.
func (svc *service) UpdateStudent(ctx context.Context, reg school.Regulation, id string, us UpdateStudent) (Student, error) {
	us.Clean()
	if err := svc.validate.Struct(us); err != nil {
		return Student{}, err
	}

	stu, err := svc.repo.GetStudent(ctx, id)
	if err != nil {
		return Student{}, err
	}

	if us.BirthDate != "" {
		birth, err := parseDate("birth_date", us.BirthDate)
		if err != nil {
			return Student{}, err
		}
		if _, err = checkAge(reg, birth, NowFunc()); err != nil {
			return Student{}, err
		}
		stu.BirthDate = birth
	}
	if us.FirstName != "" {
		stu.FirstName = us.FirstName
	}
	if us.LastName != "" {
		stu.LastName = us.LastName
	}
	if us.Gender != "" {
		stu.Gender = us.Gender
	}
	if us.Address != "" {
		stu.Address = us.Address
	}
	if us.Email != "" {
		stu.Email = us.Email
	}
	return svc.repo.UpdateStudent(ctx, stu)
}

func (svc *service) GetStudent(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

func (svc *service) QueryStudents(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Page) ([]Student, error) {
	if filter != nil {
		filter.Clean()
	}
	if !page.IsZero() && page.Size <= 0 {
		page.Size = svc.pageSize
	}
	return svc.repo.QueryStudents(ctx, filter, ordering, page)
}

func (svc *service) CountStudents(ctx context.Context) (int, error) {
	return svc.repo.CountStudents(ctx, nil)
}

// Classes

func (svc *service) CreateClass(ctx context.Context, nc NewClass) (Class, error) {
	nc.Name = core.CleanString(nc.Name)
	if err := svc.validate.Struct(nc); err != nil {
		return Class{}, err
	}
	cls, err := svc.repo.CreateClass(ctx, Class{Name: nc.Name, Grade: nc.Grade, CreatedAt: NowFunc().UTC()})
	if errors.Cause(err) == ErrClassExists {
		return Class{}, core.NewValidationError(err, core.FieldError{Field: "name", Error: err.Error()})
	}
	return cls, err
}

func (svc *service) QueryClasses(ctx context.Context, grade int) ([]Class, error) {
	return svc.repo.QueryClasses(ctx, &ClassFilter{Grade: grade})
}

func (svc *service) GetClass(ctx context.Context, id string) (Class, error) {
	return svc.repo.GetClass(ctx, id)
}

// ClassRoster returns the students of the class, sorted by last & first name.
func (svc *service) ClassRoster(ctx context.Context, id string) ([]Student, error) {
	if _, err := svc.repo.GetClass(ctx, id); err != nil {
		return nil, err
	}
	return svc.repo.QueryStudents(ctx, &QueryFilter{ClassID: id}, []core.DBOrdering{
		{Field: "last_name", Ascending: true},
		{Field: "first_name", Ascending: true},
	}, core.Page{})
}
