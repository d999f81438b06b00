package inmemdb

import (
	"sync"
	"time"

	"github.com/trezcool/darasa/core/enrollment"
	"github.com/trezcool/darasa/core/grading"
	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/core/user"
)

// SeedRegulationID is the ID of the Regulation every new DB starts with.
const SeedRegulationID = "00000000-0000-0000-0000-000000000001"

type (
	// DB keeps every table in memory, in insertion order.
	DB struct {
		mu     sync.RWMutex
		tables tables
	}

	tables struct {
		users       []user.User
		students    []enrollment.Student
		classes     []enrollment.Class
		subjects    []school.Subject
		semesters   []school.Semester
		assignments []school.TeachingAssignment
		regulations []school.Regulation
		history     []school.RegulationHistory
		scores      []grading.Score
	}
)

// Open returns an empty DB holding the seed Regulation {15, 20, 40, 1000}.
func Open() *DB {
	return &DB{tables: tables{
		regulations: []school.Regulation{{
			ID:           SeedRegulationID,
			Version:      1,
			MinAge:       15,
			MaxAge:       20,
			MaxClassSize: 40,
			MaxStudents:  school.DefaultMaxStudents,
			CreatedAt:    time.Now().UTC(),
		}},
	}}
}

func (t tables) snapshot() tables {
	return tables{
		users:       append([]user.User(nil), t.users...),
		students:    append([]enrollment.Student(nil), t.students...),
		classes:     append([]enrollment.Class(nil), t.classes...),
		subjects:    append([]school.Subject(nil), t.subjects...),
		semesters:   append([]school.Semester(nil), t.semesters...),
		assignments: append([]school.TeachingAssignment(nil), t.assignments...),
		regulations: append([]school.Regulation(nil), t.regulations...),
		history:     append([]school.RegulationHistory(nil), t.history...),
		scores:      append([]grading.Score(nil), t.scores...),
	}
}

// session gives repositories access to the tables, either directly or inside a unit of work.
// A unit of work holds the write lock until it ends, so its methods must not lock again.
type session struct {
	db   *DB
	inTx bool
}

func (s session) read(fn func(t *tables)) {
	if !s.inTx {
		s.db.mu.RLock()
		defer s.db.mu.RUnlock()
	}
	fn(&s.db.tables)
}

func (s session) write(fn func(t *tables)) {
	if !s.inTx {
		s.db.mu.Lock()
		defer s.db.mu.Unlock()
	}
	fn(&s.db.tables)
}

// inTx runs fn while holding the write lock, restoring every table when fn fails.
func (s session) inTransaction(fn func(tx session) error) error {
	if s.inTx {
		return fn(s)
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	snap := s.db.tables.snapshot()
	if err := fn(session{db: s.db, inTx: true}); err != nil {
		s.db.tables = snap
		return err
	}
	return nil
}
