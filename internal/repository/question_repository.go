package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-adaptive/internal/adaptive"
	"github.com/stemsi/exstem-adaptive/internal/model"
)

const questionColumns = `id, subject_id, grade_id, question_text, question_type, options, correct_answer, difficulty_level`

// QuestionRepository handles question data access and the closest-question search.
type QuestionRepository struct {
	pool *pgxpool.Pool
	rnd  adaptive.Rand
}

// NewQuestionRepository creates a new QuestionRepository. rnd breaks ties
// between equally close questions.
func NewQuestionRepository(pool *pgxpool.Pool, rnd adaptive.Rand) *QuestionRepository {
	return &QuestionRepository{pool: pool, rnd: rnd}
}

// GetByID retrieves a question by its UUID.
func (r *QuestionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = $1`, id)
	q, err := scanQuestion(row)
	if err != nil {
		return nil, translate(err)
	}
	return q, nil
}

// ListByIDs retrieves questions in the order of ids. Missing ids are skipped.
func (r *QuestionRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+`
		 FROM questions q
		 JOIN UNNEST($1::uuid[]) WITH ORDINALITY AS m(id, pos) USING (id)
		 ORDER BY m.pos`, ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, *q)
	}
	return questions, rows.Err()
}

// FindClosest returns the available question nearest to the target
// difficulty, relaxing filters tier by tier. Questions already in the
// assessment's response log are never returned. Returns nil, nil when even
// the last tier is empty.
func (r *QuestionRepository) FindClosest(ctx context.Context, query adaptive.SelectionQuery) (*model.Question, error) {
	for _, tier := range adaptive.SearchTiers {
		candidates, err := r.closestCandidates(ctx, tier, query)
		if err != nil {
			return nil, fmt.Errorf("search tier %s: %w", tier.Name, err)
		}
		if q := adaptive.PickClosest(candidates, query.Target, r.rnd); q != nil {
			return q, nil
		}
	}
	return nil, nil
}

// closestCandidates returns every question of the tier sharing the minimum
// distance to the target.
func (r *QuestionRepository) closestCandidates(ctx context.Context, tier adaptive.SearchTier, query adaptive.SelectionQuery) ([]model.Question, error) {
	where := `subject_id = $1
		AND id NOT IN (SELECT question_id FROM assessment_responses WHERE assessment_id = $3)`
	args := []any{query.SubjectID, query.Target, query.AssessmentID}

	if tier.ByGrade && query.GradeID != nil {
		args = append(args, *query.GradeID)
		where += fmt.Sprintf(" AND (grade_id = $%d OR grade_id IS NULL)", len(args))
	}
	if tier.SessionExclude && len(query.SessionExclude) > 0 {
		args = append(args, query.SessionExclude)
		where += fmt.Sprintf(" AND NOT (id = ANY($%d::uuid[]))", len(args))
	}

	sql := `
		WITH candidates AS (
			SELECT ` + questionColumns + `, ABS(difficulty_level - $2) AS distance
			FROM questions
			WHERE ` + where + `
		)
		SELECT ` + questionColumns + `
		FROM candidates
		WHERE distance = (SELECT MIN(distance) FROM candidates)`

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

func scanQuestion(row pgx.Row) (*model.Question, error) {
	q := &model.Question{}
	err := row.Scan(&q.ID, &q.SubjectID, &q.GradeID, &q.QuestionText, &q.QuestionType,
		&q.Options, &q.CorrectAnswer, &q.DifficultyLevel)
	if err != nil {
		return nil, err
	}
	return q, nil
}
