package school

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

// Regulation is one version of the admission & enrollment policy. The highest Version is in force.
type Regulation struct {
	ID           string    `json:"id"`
	Version      int       `json:"version"`
	MinAge       int       `json:"min_age"`
	MaxAge       int       `json:"max_age"`
	MaxClassSize int       `json:"max_class_size"`
	MaxStudents  int       `json:"max_students"`
	CreatedAt    time.Time `json:"created_at"`
}

func (r Regulation) AgeAllowed(age int) bool {
	return age >= r.MinAge && age <= r.MaxAge
}

// RegulationHistory records which admin created which Regulation version.
type RegulationHistory struct {
	ID           string      `json:"id"`
	AdminID      string      `json:"admin_id"`
	RegulationID string      `json:"regulation_id"`
	CreatedAt    time.Time   `json:"created_at"`
	Regulation   *Regulation `json:"regulation,omitempty"`
}

const DefaultMaxStudents = 1000

// NewRegulation contains the values of the next Regulation version.
type NewRegulation struct {
	MinAge       int `json:"min_age" validate:"min=0"`
	MaxAge       int `json:"max_age" validate:"gtefield=MinAge"`
	MaxClassSize int `json:"max_class_size" validate:"min=1"`
	MaxStudents  int `json:"max_students" validate:"omitempty,min=1"`
}

// Check validates the regulation bounds without a validator instance (CLI, services).
func (nr *NewRegulation) Check() error {
	if nr.MaxStudents == 0 {
		nr.MaxStudents = DefaultMaxStudents
	}

	var flds []core.FieldError
	if nr.MinAge < 0 {
		flds = append(flds, core.FieldError{Field: "min_age", Error: "min_age must be 0 or greater"})
	}
	if nr.MaxAge < nr.MinAge {
		flds = append(flds, core.FieldError{Field: "max_age", Error: "max_age must be greater than or equal to min_age"})
	}
	if nr.MaxClassSize < 1 {
		flds = append(flds, core.FieldError{Field: "max_class_size", Error: "max_class_size must be 1 or greater"})
	}
	if nr.MaxStudents < 1 {
		flds = append(flds, core.FieldError{Field: "max_students", Error: "max_students must be 1 or greater"})
	}
	if flds != nil {
		return core.NewValidationError(errors.New("invalid regulation"), flds...)
	}
	return nil
}

type Subject struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Grade     int       `json:"grade"`
	CreatedAt time.Time `json:"created_at"`
}

type NewSubject struct {
	Name  string `json:"name" validate:"required,max=50"`
	Grade int    `json:"grade" validate:"required,min=1,max=13"`
}

func (ns *NewSubject) Clean() { ns.Name = core.CleanString(ns.Name) }

type Semester struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Year      int       `json:"year"`
	CreatedAt time.Time `json:"created_at"`
}

// Label is the "<name>-<year>" form shown on reports, e.g. "S1-2024".
func (s Semester) Label() string {
	return s.Name + "-" + strconv.Itoa(s.Year)
}

func (s Semester) String() string { return s.Label() }

// MarshalJSON adds the label to the JSON form.
func (s Semester) MarshalJSON() ([]byte, error) {
	type semester Semester
	return json.Marshal(struct {
		semester
		Label string `json:"label"`
	}{semester(s), s.Label()})
}

type NewSemester struct {
	Name string `json:"name" validate:"required,max=20"`
	Year int    `json:"year" validate:"required,min=1900,max=2999"`
}

func (ns *NewSemester) Clean() { ns.Name = core.CleanString(ns.Name) }

// TeachingAssignment states that a teacher teaches a subject to a class.
type TeachingAssignment struct {
	TeacherID string     `json:"teacher_id"`
	SubjectID string     `json:"subject_id"`
	ClassID   string     `json:"class_id"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
}

// ActiveAt reports whether the assignment covers t; open-ended bounds always match.
func (ta TeachingAssignment) ActiveAt(t time.Time) bool {
	if ta.StartDate != nil && t.Before(*ta.StartDate) {
		return false
	}
	if ta.EndDate != nil && t.After(*ta.EndDate) {
		return false
	}
	return true
}

type NewAssignment struct {
	TeacherID string     `json:"teacher_id" validate:"required"`
	SubjectID string     `json:"subject_id" validate:"required"`
	ClassID   string     `json:"class_id" validate:"required"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
}

type AssignmentFilter struct {
	TeacherID string
	SubjectID string
	ClassID   string
}
