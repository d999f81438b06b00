package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core/grading"
)

type gradingRepository struct {
	session
}

var _ grading.Repository = (*gradingRepository)(nil) // interface compliance check

func NewGradingRepository(db *DB) grading.Repository {
	return &gradingRepository{session: session{db: db}}
}

func (repo *gradingRepository) InTx(ctx context.Context, fn func(repo grading.Repository) error) error {
	return repo.inTransaction(func(tx session) error {
		return fn(&gradingRepository{session: tx})
	})
}

func matchScore(s grading.Score, filter grading.QueryFilter) bool {
	return (filter.StudentID == "" || s.StudentID == filter.StudentID) &&
		(filter.SubjectID == "" || s.SubjectID == filter.SubjectID) &&
		(filter.SemesterID == "" || s.SemesterID == filter.SemesterID) &&
		(filter.Type == 0 || s.Type == filter.Type)
}

func (repo *gradingRepository) CountScores(ctx context.Context, filter grading.QueryFilter) (int, error) {
	var n int
	repo.read(func(t *tables) {
		for _, s := range t.scores {
			if matchScore(s, filter) {
				n++
			}
		}
	})
	return n, nil
}

func (repo *gradingRepository) CreateScore(ctx context.Context, s grading.Score) (grading.Score, error) {
	s.ID = uuid.New().String()
	repo.write(func(t *tables) {
		t.scores = append(t.scores, s)
	})
	return s, nil
}

func (repo *gradingRepository) QueryScores(ctx context.Context, filter grading.QueryFilter) ([]grading.Score, error) {
	var scores []grading.Score
	repo.read(func(t *tables) {
		scores = make([]grading.Score, 0)
		for _, s := range t.scores {
			if matchScore(s, filter) {
				scores = append(scores, s)
			}
		}
	})
	return scores, nil
}
