// Package testutil wires the services over the in-memory repositories and creates test fixtures.
package testutil

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/enrollment"
	"github.com/trezcool/darasa/core/grading"
	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/core/user"
	appfs "github.com/trezcool/darasa/fs"
	emailsvc "github.com/trezcool/darasa/services/email"
	logsvc "github.com/trezcool/darasa/services/logger"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
)

// Env holds every service of the application, backed by a fresh in-memory DB.
type Env struct {
	Conf       *core.Config
	Logger     core.Logger
	DB         *inmemdb.DB
	Validate   *validator.Validate
	Translator ut.Translator
	Mail       *emailsvc.ConsoleServiceMock

	UserRepo    user.Repository
	SchoolRepo  school.Repository
	EnrollRepo  enrollment.Repository
	GradingRepo grading.Repository

	UserSvc    user.ServiceInterface
	SchoolSvc  school.ServiceInterface
	EnrollSvc  enrollment.ServiceInterface
	GradingSvc grading.ServiceInterface
}

func NewTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// NewValidator returns a validator with every custom validation of the application registered.
func NewValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	grading.InitValidators(validate, translator)
	return validate
}

func NewLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(io.Discard, "TEST", conf)
}

func NewEnv(t *testing.T) *Env {
	t.Helper()

	conf := core.NewTestConfig()
	logger := NewLogger(conf)
	core.ParseEmailTemplates(appfs.FS, conf, logger)

	translator := NewTranslator()
	env := &Env{
		Conf:       conf,
		Logger:     logger,
		DB:         inmemdb.Open(),
		Validate:   NewValidator(translator),
		Translator: translator,
		Mail:       emailsvc.NewConsoleServiceMock(conf, logger),
	}
	env.UserRepo = inmemdb.NewUserRepository(env.DB)
	env.SchoolRepo = inmemdb.NewSchoolRepository(env.DB)
	env.EnrollRepo = inmemdb.NewEnrollmentRepository(env.DB)
	env.GradingRepo = inmemdb.NewGradingRepository(env.DB)

	env.UserSvc = user.NewService(env.UserRepo, env.Mail, conf, logger)
	env.SchoolSvc = school.NewService(env.SchoolRepo, logger)
	env.EnrollSvc = enrollment.NewService(env.EnrollRepo, env.UserSvc, env.Mail, env.Validate, conf, logger)
	env.GradingSvc = grading.NewService(env.GradingRepo, env.EnrollSvc, env.SchoolSvc, logger)
	return env
}

// Regulation returns the Regulation in force.
func (env *Env) Regulation(t *testing.T) school.Regulation {
	t.Helper()
	reg, err := env.SchoolSvc.CurrentRegulation(context.Background())
	if err != nil {
		t.Fatalf("Regulation() failed: %v", err)
	}
	return reg
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateStudent creates an unplaced student profile (and its account) born on birth.
func CreateStudent(t *testing.T, env *Env, first, last string, birth time.Time, createdAt ...time.Time) enrollment.Student {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := CreateUser(t, env.UserRepo, first+" "+last, "", "", "", []string{user.RoleStudent}, true, tstamp)
	stu, err := env.EnrollRepo.CreateStudent(context.Background(), enrollment.Student{
		ID:        usr.ID,
		FirstName: first,
		LastName:  last,
		Gender:    "other",
		Address:   "1 School Road",
		BirthDate: birth,
		CreatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return stu
}

// PlaceStudent puts stu in cls, bypassing the balancer.
func PlaceStudent(t *testing.T, env *Env, stu enrollment.Student, cls enrollment.Class) enrollment.Student {
	t.Helper()

	ctx := context.Background()
	if err := env.EnrollRepo.PlaceStudent(ctx, stu.ID, cls.ID); err != nil {
		t.Fatalf("PlaceStudent() failed: %v", err)
	}
	if err := env.EnrollRepo.IncrementClassQuantity(ctx, cls.ID); err != nil {
		t.Fatalf("PlaceStudent() failed: %v", err)
	}
	stu.ClassID = cls.ID
	return stu
}

func CreateClass(t *testing.T, repo enrollment.Repository, name string, grade, quantity int, createdAt ...time.Time) enrollment.Class {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	ctx := context.Background()
	cls, err := repo.CreateClass(ctx, enrollment.Class{Name: name, Grade: grade, CreatedAt: tstamp})
	if err != nil {
		t.Fatalf("CreateClass() failed: %v", err)
	}
	for i := 0; i < quantity; i++ {
		if err = repo.IncrementClassQuantity(ctx, cls.ID); err != nil {
			t.Fatalf("CreateClass() failed: %v", err)
		}
	}
	cls.Quantity = quantity
	return cls
}

func CreateSubject(t *testing.T, repo school.Repository, name string, grade int) school.Subject {
	t.Helper()
	sub, err := repo.CreateSubject(context.Background(), school.Subject{Name: name, Grade: grade, CreatedAt: time.Now().UTC()})
	if err != nil {
		t.Fatalf("CreateSubject() failed: %v", err)
	}
	return sub
}

func CreateSemester(t *testing.T, repo school.Repository, name string, year int) school.Semester {
	t.Helper()
	sem, err := repo.CreateSemester(context.Background(), school.Semester{Name: name, Year: year, CreatedAt: time.Now().UTC()})
	if err != nil {
		t.Fatalf("CreateSemester() failed: %v", err)
	}
	return sem
}

// RecordScores records values of typ for the student, subject & semester, failing on the first error.
func RecordScores(t *testing.T, svc grading.ServiceInterface, studentID, subjectID, semesterID string, typ grading.ScoreType, values ...float64) {
	t.Helper()
	for _, v := range values {
		_, err := svc.RecordScore(context.Background(), grading.NewScore{
			StudentID:  studentID,
			SubjectID:  subjectID,
			SemesterID: semesterID,
			Type:       typ,
			Value:      v,
		})
		if err != nil {
			t.Fatalf("RecordScores() failed: %v", err)
		}
	}
}

// BirthDate returns the birth date of someone who turned age years old yesterday.
func BirthDate(age int) time.Time {
	return time.Now().UTC().Truncate(24*time.Hour).AddDate(-age, 0, -1)
}
