package grading

import (
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

const (
	MinScore = 0.0
	MaxScore = 10.0

	// PassMark is the lowest average that passes.
	PassMark = 5.0
)

// ScoreType is the kind of assessment a Score was obtained in.
type ScoreType int

const (
	Quiz ScoreType = iota + 1
	Test
	Exam
)

var (
	ScoreTypes = []ScoreType{Quiz, Test, Exam}

	scoreTypeNames = map[ScoreType]string{Quiz: "quiz", Test: "test", Exam: "exam"}
	scoreTypeLabel = map[ScoreType]string{Quiz: "15-minute", Test: "1-period", Exam: "exam"}
	scoreWeights   = map[ScoreType]int{Quiz: 1, Test: 2, Exam: 3}
	scoreQuotas    = map[ScoreType]int{Quiz: 5, Test: 3, Exam: 1}

	errUnknownScoreType = errors.New("unknown score type")
)

func (st ScoreType) Valid() bool {
	_, ok := scoreTypeNames[st]
	return ok
}

// Weight is the coefficient of the score type in weighted averages.
func (st ScoreType) Weight() int { return scoreWeights[st] }

// Quota is the max number of scores of this type per student, subject & semester.
func (st ScoreType) Quota() int { return scoreQuotas[st] }

func (st ScoreType) String() string {
	if name, ok := scoreTypeNames[st]; ok {
		return name
	}
	return "unknown"
}

// Label is the display name of the score type.
func (st ScoreType) Label() string { return scoreTypeLabel[st] }

func ParseScoreType(s string) (ScoreType, error) {
	s = core.CleanString(s, true /* lower */)
	for st, name := range scoreTypeNames {
		if name == s {
			return st, nil
		}
	}
	return 0, core.NewValidationError(errUnknownScoreType,
		core.FieldError{Field: "type", Error: "type must be one of: quiz, test, exam"})
}

func (st ScoreType) MarshalText() ([]byte, error) {
	if !st.Valid() {
		return nil, errUnknownScoreType
	}
	return []byte(st.String()), nil
}

func (st *ScoreType) UnmarshalText(text []byte) error {
	parsed, err := ParseScoreType(string(text))
	if err != nil {
		return err
	}
	*st = parsed
	return nil
}

// Score is one immutable assessment result.
type Score struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"student_id"`
	SubjectID  string    `json:"subject_id"`
	SemesterID string    `json:"semester_id"`
	Type       ScoreType `json:"type"`
	Value      float64   `json:"value"`
	CreatedAt  time.Time `json:"created_at"`
}

type NewScore struct {
	StudentID  string    `json:"student_id" validate:"required"`
	SubjectID  string    `json:"subject_id" validate:"required"`
	SemesterID string    `json:"semester_id" validate:"required"`
	Type       ScoreType `json:"type" validate:"scoretype"`
	Value      float64   `json:"value" validate:"min=0,max=10"`
}

// Check validates the score without a validator instance.
func (ns NewScore) Check() error {
	var flds []core.FieldError
	if ns.StudentID == "" {
		flds = append(flds, core.FieldError{Field: "student_id", Error: "this field is required"})
	}
	if ns.SubjectID == "" {
		flds = append(flds, core.FieldError{Field: "subject_id", Error: "this field is required"})
	}
	if ns.SemesterID == "" {
		flds = append(flds, core.FieldError{Field: "semester_id", Error: "this field is required"})
	}
	if !ns.Type.Valid() {
		flds = append(flds, core.FieldError{Field: "type", Error: scoreTypeText})
	}
	if ns.Value < MinScore || ns.Value > MaxScore {
		flds = append(flds, core.FieldError{Field: "value", Error: "value must be between 0 and 10"})
	}
	if flds != nil {
		return core.NewValidationError(errors.New("invalid score"), flds...)
	}
	return nil
}

type QueryFilter struct {
	StudentID  string    `query:"student_id"`
	SubjectID  string    `query:"subject_id"`
	SemesterID string    `query:"semester_id"`
	Type       ScoreType `query:"-"` // parsed with ParseScoreType
}

// StudentReport holds the quota-capped scores of a student in a subject & semester, and their weighted average.
type StudentReport struct {
	StudentID string    `json:"student_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	ClassID   string    `json:"class_id"`
	Quiz      []float64 `json:"quiz"`
	Test      []float64 `json:"test"`
	Exam      []float64 `json:"exam"`
	Semester  string    `json:"semester"`
	Average   *float64  `json:"average"` // nil when there is no score
	Passing   bool      `json:"passing"`
}

type ClassStatistics struct {
	ClassID  string  `json:"class_id"`
	Class    string  `json:"class"`
	Subject  string  `json:"subject"`
	Semester string  `json:"semester"`
	Total    int     `json:"total"`
	Passed   int     `json:"passed"`
	Failed   int     `json:"failed"`
	PassRate float64 `json:"pass_rate"` // percentage
}

// bucketize groups scores by type, in order, dropping the scores beyond each type's quota.
func bucketize(scores []Score) map[ScoreType][]float64 {
	buckets := make(map[ScoreType][]float64, len(ScoreTypes))
	for _, st := range ScoreTypes {
		buckets[st] = []float64{}
	}
	for _, s := range scores {
		vals, ok := buckets[s.Type]
		if !ok || len(vals) >= s.Type.Quota() {
			continue
		}
		buckets[s.Type] = append(vals, s.Value)
	}
	return buckets
}

// WeightedAverage returns sum(value*weight)/sum(weight) rounded to 2 decimals, or nil when the buckets are empty.
func WeightedAverage(buckets map[ScoreType][]float64) *float64 {
	var sum float64
	var weights int
	for _, st := range ScoreTypes {
		for _, v := range buckets[st] {
			sum += v * float64(st.Weight())
			weights += st.Weight()
		}
	}
	if weights == 0 {
		return nil
	}
	avg := core.Round2(sum / float64(weights))
	return &avg
}

// IsPassing reports whether avg reaches PassMark.
func IsPassing(avg *float64) bool {
	return avg != nil && *avg >= PassMark
}

// PassRate returns passed/total as a percentage rounded to 2 decimals, 0 for an empty class.
func PassRate(passed, total int) float64 {
	if total == 0 {
		return 0
	}
	return core.Round2(float64(passed) / float64(total) * 100)
}

var (
	scoreTypeTag  = "scoretype"
	scoreTypeText = "type must be one of: " + strings.Join([]string{"quiz", "test", "exam"}, ", ")
)

// InitValidators registers the grading validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(scoreTypeTag, func(fl validator.FieldLevel) bool {
		st, ok := fl.Field().Interface().(ScoreType)
		return ok && st.Valid()
	})
	core.RegisterCustomTranslation(validate, translator, scoreTypeTag, scoreTypeText)
}
