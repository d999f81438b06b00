package enrollment

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/school"
)

var (
	ErrAgeOutOfRange    = errors.New("age out of range")
	ErrCapacityExceeded = errors.New("student capacity exceeded")
)

// CalculateAge returns the age in full years of someone born on birth, on day today.
func CalculateAge(birth, today time.Time) int {
	age := today.Year() - birth.Year()
	if today.Month() < birth.Month() || (today.Month() == birth.Month() && today.Day() < birth.Day()) {
		age--
	}
	return age
}

func checkAge(reg school.Regulation, birth, today time.Time) (int, error) {
	age := CalculateAge(birth, today)
	if !reg.AgeAllowed(age) {
		return age, core.NewPolicyError(ErrAgeOutOfRange,
			"student age (%d) must be between %d and %d", age, reg.MinAge, reg.MaxAge)
	}
	return age, nil
}

// ValidateAdmission checks a newcomer born on birthDate against reg: age bounds first, then the school capacity.
func (svc *service) ValidateAdmission(ctx context.Context, reg school.Regulation, birthDate time.Time) (int, error) {
	age, err := checkAge(reg, birthDate, NowFunc())
	if err != nil {
		return age, err
	}

	count, err := svc.repo.CountStudents(ctx, nil)
	if err != nil {
		return age, errors.Wrap(err, "counting students")
	}
	if count >= reg.MaxStudents {
		return age, core.NewPolicyError(ErrCapacityExceeded,
			"the school is full: %d students for a maximum of %d", count, reg.MaxStudents)
	}
	return age, nil
}
