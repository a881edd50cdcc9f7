package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-adaptive/internal/config"
)

type completionPayload struct {
	AssignmentID uuid.UUID `json:"assignment_id"`
	StudentID    int       `json:"student_id"`
	CompletedAt  time.Time `json:"completed_at"`
}

// CompletionQueue pushes assignment completions onto the Redis queue that
// CompletionWorker drains.
type CompletionQueue struct {
	rdb *redis.Client
}

// NewCompletionQueue creates a new CompletionQueue.
func NewCompletionQueue(rdb *redis.Client) *CompletionQueue {
	return &CompletionQueue{rdb: rdb}
}

// Enqueue records that the student finished the assignment.
func (q *CompletionQueue) Enqueue(ctx context.Context, assignmentID uuid.UUID, studentID int, completedAt time.Time) error {
	return q.push(ctx, completionPayload{AssignmentID: assignmentID, StudentID: studentID, CompletedAt: completedAt})
}

func (q *CompletionQueue) push(ctx context.Context, p completionPayload) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal completion: %w", err)
	}
	if err := q.rdb.RPush(ctx, config.WorkerKey.AssignmentCompletionQueue, raw).Err(); err != nil {
		return fmt.Errorf("enqueue completion: %w", err)
	}
	return nil
}
