package enrollment

import (
	"context"
	"fmt"
	"net/mail"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/school"
)

// ErrAlreadyPlaced is returned by Repository.PlaceStudent when the student got a class in the meantime.
var ErrAlreadyPlaced = errors.New("student already placed")

// AssignUnplacedStudents spreads every student without a class over the classes whose quantity is
// below reg.MaxClassSize, always filling the emptiest class first, and opens new classes on overflow.
// Each placement is committed on its own; runs are serialized.
func (svc *service) AssignUnplacedStudents(ctx context.Context, reg school.Regulation) ([]Placement, error) {
	if reg.MaxClassSize < 1 {
		return nil, core.NewValidationError(nil,
			core.FieldError{Field: "max_class_size", Error: "max_class_size must be 1 or greater"})
	}

	svc.balanceMu.Lock()
	defer svc.balanceMu.Unlock()

	students, err := svc.repo.QueryStudents(ctx, &QueryFilter{Unplaced: true}, nil, core.Page{})
	if err != nil {
		return nil, errors.Wrap(err, "querying unplaced students")
	}
	svc.shuffle(students)

	placements := make([]Placement, 0, len(students))
	for _, stu := range students {
		p, err := svc.placeStudent(ctx, stu, reg)
		if err != nil {
			if errors.Cause(err) == ErrAlreadyPlaced {
				continue
			}
			return placements, errors.Wrapf(err, "placing student %s", stu.ID)
		}
		placements = append(placements, p)
		svc.notifyPlacement(stu, p)
	}

	if len(placements) > 0 {
		svc.logger.Info(fmt.Sprintf("balancer placed %d student(s)", len(placements)))
	}
	return placements, nil
}

// placeStudent runs the read-check-increment-write sequence for one student in a single unit of work.
func (svc *service) placeStudent(ctx context.Context, stu Student, reg school.Regulation) (Placement, error) {
	var p Placement
	err := svc.repo.InTx(ctx, func(repo Repository) error {
		classes, err := repo.QueryClasses(ctx, &ClassFilter{ForUpdate: true})
		if err != nil {
			return errors.Wrap(err, "querying classes")
		}

		cls, ok := pickClass(classes, reg.MaxClassSize)
		if !ok {
			cls, err = repo.CreateClass(ctx, Class{
				Name:      nextClassName(classes, svc.defaultGrade),
				Grade:     svc.defaultGrade,
				CreatedAt: NowFunc().UTC(),
			})
			if err != nil {
				return errors.Wrap(err, "creating class")
			}
			p.NewClass = true
		}

		if err = repo.PlaceStudent(ctx, stu.ID, cls.ID); err != nil {
			return err
		}
		if err = repo.IncrementClassQuantity(ctx, cls.ID); err != nil {
			return errors.Wrap(err, "incrementing class quantity")
		}

		p.StudentID = stu.ID
		p.ClassID = cls.ID
		p.ClassName = cls.Name
		p.Grade = cls.Grade
		return nil
	})
	return p, err
}

// pickClass returns the class with the smallest quantity among those below maxSize.
// Ties go to the oldest class, then to the lowest name, then to the lowest ID.
func pickClass(classes []Class, maxSize int) (Class, bool) {
	var (
		best  Class
		found bool
	)
	for _, c := range classes {
		if c.Quantity >= maxSize {
			continue
		}
		if !found || lessLoaded(c, best) {
			best = c
			found = true
		}
	}
	return best, found
}

func lessLoaded(a, b Class) bool {
	if a.Quantity != b.Quantity {
		return a.Quantity < b.Quantity
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.ID < b.ID
}

// nextClassName returns "<grade>A<n>" with n the smallest ordinal not taken by an existing class.
func nextClassName(classes []Class, grade int) string {
	prefix := strconv.Itoa(grade) + "A"
	taken := make([]int, 0, len(classes))
	for _, c := range classes {
		if !strings.HasPrefix(c.Name, prefix) {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimPrefix(c.Name, prefix)); err == nil {
			taken = append(taken, n)
		}
	}
	sort.Ints(taken)

	next := 1
	for _, n := range taken {
		if n == next {
			next++
		} else if n > next {
			break
		}
	}
	return prefix + strconv.Itoa(next)
}

func (svc *service) notifyPlacement(stu Student, p Placement) {
	if stu.Email == "" || svc.mailSvc == nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: stu.FullName(), Address: stu.Email}},
		Subject:      "Your class for this year",
		TemplateName: "class_assigned",
		TemplateData: map[string]interface{}{
			"FirstName": stu.FirstName,
			"ClassName": p.ClassName,
			"Grade":     p.Grade,
		},
	})
}
