package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core/school"
)

type schoolRepository struct {
	session
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{session: session{db: db}}
}

func (repo *schoolRepository) InTx(ctx context.Context, fn func(repo school.Repository) error) error {
	return repo.inTransaction(func(tx session) error {
		return fn(&schoolRepository{session: tx})
	})
}

// Regulation

func (repo *schoolRepository) GetLatestRegulation(ctx context.Context) (school.Regulation, error) {
	var (
		latest school.Regulation
		found  bool
	)
	repo.read(func(t *tables) {
		for _, reg := range t.regulations {
			if !found || reg.Version > latest.Version {
				latest, found = reg, true
			}
		}
	})
	if !found {
		return school.Regulation{}, school.ErrRegulationNotFound
	}
	return latest, nil
}

func (repo *schoolRepository) CreateRegulation(ctx context.Context, reg school.Regulation) (school.Regulation, error) {
	reg.ID = uuid.New().String()
	repo.write(func(t *tables) {
		t.regulations = append(t.regulations, reg)
	})
	return reg, nil
}

func (repo *schoolRepository) QueryRegulations(ctx context.Context) ([]school.Regulation, error) {
	var regs []school.Regulation
	repo.read(func(t *tables) {
		regs = append([]school.Regulation(nil), t.regulations...)
	})
	sort.SliceStable(regs, func(i, j int) bool { return regs[i].Version < regs[j].Version })
	return regs, nil
}

func (repo *schoolRepository) CreateRegulationHistory(ctx context.Context, h school.RegulationHistory) (school.RegulationHistory, error) {
	h.ID = uuid.New().String()
	repo.write(func(t *tables) {
		t.history = append(t.history, h)
	})
	return h, nil
}

// QueryRegulationHistory returns entries newest first; insertion order breaks ties.
func (repo *schoolRepository) QueryRegulationHistory(ctx context.Context) ([]school.RegulationHistory, error) {
	var history []school.RegulationHistory
	repo.read(func(t *tables) {
		history = make([]school.RegulationHistory, 0, len(t.history))
		for i := len(t.history) - 1; i >= 0; i-- {
			history = append(history, t.history[i])
		}
	})
	sort.SliceStable(history, func(i, j int) bool { return history[i].CreatedAt.After(history[j].CreatedAt) })
	return history, nil
}

// Subjects

func (repo *schoolRepository) CreateSubject(ctx context.Context, sub school.Subject) (school.Subject, error) {
	var err error
	repo.write(func(t *tables) {
		for _, s := range t.subjects {
			if s.Name == sub.Name && s.Grade == sub.Grade {
				err = school.ErrSubjectExists
				return
			}
		}
		sub.ID = uuid.New().String()
		t.subjects = append(t.subjects, sub)
	})
	if err != nil {
		return school.Subject{}, err
	}
	return sub, nil
}

func (repo *schoolRepository) QuerySubjects(ctx context.Context, grade int) ([]school.Subject, error) {
	var subjects []school.Subject
	repo.read(func(t *tables) {
		subjects = make([]school.Subject, 0, len(t.subjects))
		for _, s := range t.subjects {
			if grade == 0 || s.Grade == grade {
				subjects = append(subjects, s)
			}
		}
	})
	sort.SliceStable(subjects, func(i, j int) bool {
		if subjects[i].Grade != subjects[j].Grade {
			return subjects[i].Grade < subjects[j].Grade
		}
		return subjects[i].Name < subjects[j].Name
	})
	return subjects, nil
}

func (repo *schoolRepository) GetSubject(ctx context.Context, id string) (school.Subject, error) {
	var (
		sub   school.Subject
		found bool
	)
	repo.read(func(t *tables) {
		for _, s := range t.subjects {
			if s.ID == id {
				sub, found = s, true
				return
			}
		}
	})
	if !found {
		return school.Subject{}, school.ErrSubjectNotFound
	}
	return sub, nil
}

// Semesters

func (repo *schoolRepository) CreateSemester(ctx context.Context, sem school.Semester) (school.Semester, error) {
	var err error
	repo.write(func(t *tables) {
		for _, s := range t.semesters {
			if s.Name == sem.Name && s.Year == sem.Year {
				err = school.ErrSemesterExists
				return
			}
		}
		sem.ID = uuid.New().String()
		t.semesters = append(t.semesters, sem)
	})
	if err != nil {
		return school.Semester{}, err
	}
	return sem, nil
}

func (repo *schoolRepository) QuerySemesters(ctx context.Context) ([]school.Semester, error) {
	var semesters []school.Semester
	repo.read(func(t *tables) {
		semesters = append([]school.Semester(nil), t.semesters...)
	})
	sort.SliceStable(semesters, func(i, j int) bool {
		if semesters[i].Year != semesters[j].Year {
			return semesters[i].Year > semesters[j].Year
		}
		return semesters[i].Name < semesters[j].Name
	})
	return semesters, nil
}

func (repo *schoolRepository) GetSemester(ctx context.Context, id string) (school.Semester, error) {
	var (
		sem   school.Semester
		found bool
	)
	repo.read(func(t *tables) {
		for _, s := range t.semesters {
			if s.ID == id {
				sem, found = s, true
				return
			}
		}
	})
	if !found {
		return school.Semester{}, school.ErrSemesterNotFound
	}
	return sem, nil
}

// Teaching assignments

func (repo *schoolRepository) CreateAssignment(ctx context.Context, ta school.TeachingAssignment) (school.TeachingAssignment, error) {
	var err error
	repo.write(func(t *tables) {
		for _, a := range t.assignments {
			if a.TeacherID == ta.TeacherID && a.SubjectID == ta.SubjectID && a.ClassID == ta.ClassID {
				err = school.ErrAssignmentExists
				return
			}
		}
		t.assignments = append(t.assignments, ta)
	})
	if err != nil {
		return school.TeachingAssignment{}, err
	}
	return ta, nil
}

func (repo *schoolRepository) QueryAssignments(ctx context.Context, filter school.AssignmentFilter) ([]school.TeachingAssignment, error) {
	var assignments []school.TeachingAssignment
	repo.read(func(t *tables) {
		assignments = make([]school.TeachingAssignment, 0)
		for _, a := range t.assignments {
			if filter.TeacherID != "" && a.TeacherID != filter.TeacherID {
				continue
			}
			if filter.SubjectID != "" && a.SubjectID != filter.SubjectID {
				continue
			}
			if filter.ClassID != "" && a.ClassID != filter.ClassID {
				continue
			}
			assignments = append(assignments, a)
		}
	})
	return assignments, nil
}
