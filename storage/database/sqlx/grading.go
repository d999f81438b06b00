package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/grading"
)

const scoreColumns = "id, student_id, subject_id, semester_id, type, value, created_at"

type scoreRow struct {
	ID         string    `db:"id"`
	StudentID  string    `db:"student_id"`
	SubjectID  string    `db:"subject_id"`
	SemesterID string    `db:"semester_id"`
	Type       int       `db:"type"`
	Value      float64   `db:"value"`
	CreatedAt  time.Time `db:"created_at"`
}

func toScoreRow(s grading.Score) scoreRow {
	return scoreRow{
		ID:         s.ID,
		StudentID:  s.StudentID,
		SubjectID:  s.SubjectID,
		SemesterID: s.SemesterID,
		Type:       int(s.Type),
		Value:      s.Value,
		CreatedAt:  s.CreatedAt.UTC(),
	}
}

func (r scoreRow) score() grading.Score {
	return grading.Score{
		ID:         r.ID,
		StudentID:  r.StudentID,
		SubjectID:  r.SubjectID,
		SemesterID: r.SemesterID,
		Type:       grading.ScoreType(r.Type),
		Value:      r.Value,
		CreatedAt:  r.CreatedAt,
	}
}

type gradingRepository struct {
	store
}

var _ grading.Repository = (*gradingRepository)(nil) // interface compliance check

func NewGradingRepository(db *sqlx.DB) grading.Repository {
	return &gradingRepository{store: newStore(db)}
}

func (repo *gradingRepository) InTx(ctx context.Context, fn func(repo grading.Repository) error) error {
	return repo.inTx(ctx, func(tx store) error {
		return fn(&gradingRepository{store: tx})
	})
}

func scoreConditions(filter grading.QueryFilter) conditions {
	var conds conditions
	if filter.StudentID != "" {
		conds.add("student_id = ?", filter.StudentID)
	}
	if filter.SubjectID != "" {
		conds.add("subject_id = ?", filter.SubjectID)
	}
	if filter.SemesterID != "" {
		conds.add("semester_id = ?", filter.SemesterID)
	}
	if filter.Type != 0 {
		conds.add("type = ?", int(filter.Type))
	}
	return conds
}

func (repo *gradingRepository) CountScores(ctx context.Context, filter grading.QueryFilter) (int, error) {
	conds := scoreConditions(filter)
	var n int
	if err := repo.get(ctx, &n, "SELECT COUNT(*) FROM scores"+conds.where(), conds.args...); err != nil {
		return 0, errors.Wrap(err, "counting scores")
	}
	return n, nil
}

func (repo *gradingRepository) CreateScore(ctx context.Context, s grading.Score) (grading.Score, error) {
	s.ID = uuid.New().String()
	s.CreatedAt = s.CreatedAt.UTC()
	err := repo.namedExec(ctx, `INSERT INTO scores (`+scoreColumns+`)
		VALUES (:id, :student_id, :subject_id, :semester_id, :type, :value, :created_at)`,
		toScoreRow(s))
	if err != nil {
		return grading.Score{}, errors.Wrap(err, "inserting score")
	}
	return s, nil
}

func (repo *gradingRepository) QueryScores(ctx context.Context, filter grading.QueryFilter) ([]grading.Score, error) {
	conds := scoreConditions(filter)
	var rows []scoreRow
	if err := repo.selectAll(ctx, &rows, "SELECT "+scoreColumns+" FROM scores"+conds.where()+" ORDER BY created_at, id", conds.args...); err != nil {
		return nil, errors.Wrap(err, "querying scores")
	}
	scores := make([]grading.Score, 0, len(rows))
	for _, r := range rows {
		scores = append(scores, r.score())
	}
	return scores, nil
}
