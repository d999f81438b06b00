package enrollment

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/core/user"
)

const dateLayout = "2006-01-02"

// Student is the school profile of a "student:" User; both share the same ID.
type Student struct {
	ID        string    `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Gender    string    `json:"gender"`
	Address   string    `json:"address"`
	Email     string    `json:"email"`
	BirthDate time.Time `json:"birth_date"` // zero when unknown
	ClassID   string    `json:"class_id"`   // empty until placed by the balancer
	CreatedAt time.Time `json:"created_at"`
}

func (s Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

func (s Student) IsPlaced() bool { return s.ClassID != "" }

type Class struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Grade     int       `json:"grade"`
	Quantity  int       `json:"quantity"`
	Capacity  int       `json:"capacity"` // max_class_size of the Regulation in force, not stored
	CreatedAt time.Time `json:"created_at"`
}

// WithCapacity fills Capacity from reg.
func (c Class) WithCapacity(reg school.Regulation) Class {
	c.Capacity = reg.MaxClassSize
	return c
}

// Placement is the outcome of balancing one student into a class.
type Placement struct {
	StudentID string `json:"student_id"`
	ClassID   string `json:"class_id"`
	ClassName string `json:"class_name"`
	Grade     int    `json:"grade"`
	NewClass  bool   `json:"new_class"`
}

// NewStudent contains the account & profile information of a student being admitted.
type NewStudent struct {
	Username        string `json:"username" validate:"omitempty,min=3,alphanum_"`
	Email           string `json:"email" validate:"omitempty,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	FirstName       string `json:"first_name" validate:"required,max=50"`
	LastName        string `json:"last_name" validate:"required,max=50"`
	Gender          string `json:"gender" validate:"required,gender"`
	Address         string `json:"address" validate:"required,max=300"`
	BirthDate       string `json:"birth_date" validate:"required,datetime=2006-01-02"`
}

func (ns *NewStudent) Clean() {
	ns.Username = core.CleanString(ns.Username, true /* lower */)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.FirstName = core.CleanString(ns.FirstName)
	ns.LastName = core.CleanString(ns.LastName)
	ns.Gender = core.CleanString(ns.Gender, true /* lower */)
	ns.Address = core.CleanString(ns.Address)
	ns.BirthDate = core.CleanString(ns.BirthDate)
}

// Account returns the User account to create for the student.
func (ns NewStudent) Account() user.NewUser {
	return user.NewUser{
		Name:            strings.TrimSpace(ns.FirstName + " " + ns.LastName),
		Username:        ns.Username,
		Email:           ns.Email,
		Password:        ns.Password,
		PasswordConfirm: ns.PasswordConfirm,
		Roles:           []string{user.RoleStudent},
	}
}

func (ns NewStudent) Birth() (time.Time, error) {
	return parseDate("birth_date", ns.BirthDate)
}

// Validate cleans & validates the profile, then the account (password policy, uniqueness).
func (ns *NewStudent) Validate(ctx context.Context, validate *validator.Validate, usrSvc user.ServiceInterface) error {
	ns.Clean()
	if err := validate.Struct(ns); err != nil {
		return err
	}
	nu := ns.Account()
	return nu.Validate(ctx, validate, usrSvc)
}

// UpdateStudent defines what profile information may be modified; empty fields are kept.
type UpdateStudent struct {
	FirstName string `json:"first_name" validate:"omitempty,max=50"`
	LastName  string `json:"last_name" validate:"omitempty,max=50"`
	Gender    string `json:"gender" validate:"omitempty,gender"`
	Address   string `json:"address" validate:"omitempty,max=300"`
	Email     string `json:"email" validate:"omitempty,email"`
	BirthDate string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
}

func (us *UpdateStudent) Clean() {
	us.FirstName = core.CleanString(us.FirstName)
	us.LastName = core.CleanString(us.LastName)
	us.Gender = core.CleanString(us.Gender, true /* lower */)
	us.Address = core.CleanString(us.Address)
	us.Email = core.CleanString(us.Email, true /* lower */)
	us.BirthDate = core.CleanString(us.BirthDate)
}

type NewClass struct {
	Name  string `json:"name" validate:"required,max=20"`
	Grade int    `json:"grade" validate:"required,min=1,max=13"`
}

type QueryFilter struct {
	Search   string `query:"search"` // first name, last name or email
	ClassID  string `query:"class_id"`
	Unplaced bool   `query:"unplaced"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.ClassID = core.CleanString(qf.ClassID)
}

type ClassFilter struct {
	Grade int `query:"grade"`
	// ForUpdate locks the selected rows until the end of the unit of work.
	ForUpdate bool `query:"-"`
}

func parseDate(field, s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, core.NewValidationError(err, core.FieldError{Field: field, Error: "date must be formatted as YYYY-MM-DD"})
	}
	return t, nil
}
