package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-adaptive/internal/model"
)

const assessmentColumns = `id, student_id, subject_id, grade_id, period, mode, assignment_id, status,
	starting_difficulty, time_limit_minutes, max_questions, rit_score, correct_answers,
	duration_minutes, started_at, completed_at`

// AssessmentRepository handles assessments and their response log.
type AssessmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssessmentRepository creates a new AssessmentRepository.
func NewAssessmentRepository(pool *pgxpool.Pool) *AssessmentRepository {
	return &AssessmentRepository{pool: pool}
}

// Create inserts a new IN_PROGRESS assessment.
func (r *AssessmentRepository) Create(ctx context.Context, a *model.Assessment) error {
	a.Status = model.AssessmentStatusInProgress
	return r.pool.QueryRow(ctx,
		`INSERT INTO assessments (student_id, subject_id, grade_id, period, mode, assignment_id, status,
		                          starting_difficulty, time_limit_minutes, max_questions, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id`,
		a.StudentID, a.SubjectID, a.GradeID, a.Period, a.Mode, a.AssignmentID, a.Status,
		a.StartingDifficulty, a.TimeLimitMinutes, a.MaxQuestions, a.StartedAt,
	).Scan(&a.ID)
}

// GetByID retrieves an assessment by its UUID.
func (r *AssessmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Assessment, error) {
	a := &model.Assessment{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+assessmentColumns+` FROM assessments WHERE id = $1`, id,
	).Scan(&a.ID, &a.StudentID, &a.SubjectID, &a.GradeID, &a.Period, &a.Mode, &a.AssignmentID, &a.Status,
		&a.StartingDifficulty, &a.TimeLimitMinutes, &a.MaxQuestions, &a.RITScore, &a.CorrectAnswers,
		&a.DurationMinutes, &a.StartedAt, &a.CompletedAt)
	if err != nil {
		return nil, translate(err)
	}
	return a, nil
}

// LatestScore returns the student's most recent finalized score for the
// subject within the given calendar year, or nil if there is none.
func (r *AssessmentRepository) LatestScore(ctx context.Context, studentID, subjectID, year int) (*int, error) {
	var score int
	err := r.pool.QueryRow(ctx,
		`SELECT rit_score
		 FROM assessments
		 WHERE student_id = $1 AND subject_id = $2
		   AND status = 'COMPLETED' AND rit_score IS NOT NULL
		   AND EXTRACT(YEAR FROM completed_at) = $3
		 ORDER BY completed_at DESC
		 LIMIT 1`, studentID, subjectID, year,
	).Scan(&score)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &score, nil
}

// InsertResponse appends a row to the response log. A second row with the
// same (assessment_id, question_order) yields ErrDuplicate.
func (r *AssessmentRepository) InsertResponse(ctx context.Context, resp *model.AssessmentResponse) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO assessment_responses (assessment_id, question_id, question_order, answer, is_correct, question_difficulty)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, answered_at`,
		resp.AssessmentID, resp.QuestionID, resp.QuestionOrder, resp.Answer, resp.IsCorrect, resp.QuestionDifficulty,
	).Scan(&resp.ID, &resp.AnsweredAt)
	return translate(err)
}

// ListResponses returns the response log ordered by question_order.
func (r *AssessmentRepository) ListResponses(ctx context.Context, assessmentID uuid.UUID) ([]model.AssessmentResponse, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, assessment_id, question_id, question_order, answer, is_correct, question_difficulty, answered_at
		 FROM assessment_responses
		 WHERE assessment_id = $1
		 ORDER BY question_order`, assessmentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var responses []model.AssessmentResponse
	for rows.Next() {
		var resp model.AssessmentResponse
		if err := rows.Scan(&resp.ID, &resp.AssessmentID, &resp.QuestionID, &resp.QuestionOrder,
			&resp.Answer, &resp.IsCorrect, &resp.QuestionDifficulty, &resp.AnsweredAt); err != nil {
			return nil, err
		}
		responses = append(responses, resp)
	}
	return responses, rows.Err()
}

// Finalize marks an assessment completed with its score. It only touches
// IN_PROGRESS rows, so a repeated finalization is a no-op.
func (r *AssessmentRepository) Finalize(ctx context.Context, id uuid.UUID, score, correct, durationMinutes int, completedAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE assessments
		 SET status = $1, rit_score = $2, correct_answers = $3, duration_minutes = $4, completed_at = $5
		 WHERE id = $6 AND status = $7`,
		model.AssessmentStatusCompleted, score, correct, durationMinutes, completedAt,
		id, model.AssessmentStatusInProgress)
	return err
}
