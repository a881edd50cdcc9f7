package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-adaptive/internal/model"
)

// AssignmentRepository handles assignments, their manifests and completions.
type AssignmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssignmentRepository creates a new AssignmentRepository.
func NewAssignmentRepository(pool *pgxpool.Pool) *AssignmentRepository {
	return &AssignmentRepository{pool: pool}
}

// GetByID retrieves an assignment together with its ordered question manifest.
func (r *AssignmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Assignment, error) {
	a := &model.Assignment{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, subject_id, mode, max_questions, time_limit_minutes
		 FROM assignments WHERE id = $1`, id,
	).Scan(&a.ID, &a.SubjectID, &a.Mode, &a.MaxQuestions, &a.TimeLimitMinutes)
	if err != nil {
		return nil, translate(err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT question_id FROM assignment_questions
		 WHERE assignment_id = $1
		 ORDER BY position`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var qid uuid.UUID
		if err := rows.Scan(&qid); err != nil {
			return nil, err
		}
		a.QuestionIDs = append(a.QuestionIDs, qid)
	}
	return a, rows.Err()
}

// MarkCompleted records that a student completed an assignment.
func (r *AssignmentRepository) MarkCompleted(ctx context.Context, assignmentID uuid.UUID, studentID int, completedAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO assignment_completions (assignment_id, student_id, completed_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (assignment_id, student_id) DO NOTHING`,
		assignmentID, studentID, completedAt)
	return err
}

// MarkCompletedBatch records many completions in one statement.
func (r *AssignmentRepository) MarkCompletedBatch(ctx context.Context, assignmentIDs []uuid.UUID, studentIDs []int, completedAts []time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO assignment_completions (assignment_id, student_id, completed_at)
		 SELECT u.assignment_id, u.student_id, u.completed_at
		 FROM UNNEST($1::uuid[], $2::int[], $3::timestamptz[]) AS u (assignment_id, student_id, completed_at)
		 ON CONFLICT (assignment_id, student_id) DO NOTHING`,
		assignmentIDs, studentIDs, completedAts)
	return err
}
