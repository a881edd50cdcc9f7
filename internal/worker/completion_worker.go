package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-adaptive/internal/config"
)

const (
	CompletionBatchSize    = 50
	CompletionBatchTimeout = 2 * time.Second
	CompletionPollTimeout  = 1 * time.Second
)

// CompletionWriter persists assignment completions.
type CompletionWriter interface {
	MarkCompleted(ctx context.Context, assignmentID uuid.UUID, studentID int, completedAt time.Time) error
	MarkCompletedBatch(ctx context.Context, assignmentIDs []uuid.UUID, studentIDs []int, completedAts []time.Time) error
}

// CompletionWorker drains assignment_completion_queue into PostgreSQL.
type CompletionWorker struct {
	writer CompletionWriter
	rdb    *redis.Client
	queue  *CompletionQueue
	log    zerolog.Logger
}

// NewCompletionWorker creates a new CompletionWorker.
func NewCompletionWorker(writer CompletionWriter, rdb *redis.Client, log zerolog.Logger) *CompletionWorker {
	return &CompletionWorker{
		writer: writer,
		rdb:    rdb,
		queue:  NewCompletionQueue(rdb),
		log:    log.With().Str("component", "completion_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

// Start begins the worker loop. Call in a goroutine.
func (w *CompletionWorker) Start(ctx context.Context) {
	w.log.Info().Msg("CompletionWorker started")

	batch := make([]completionPayload, 0, CompletionBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= CompletionBatchSize || time.Since(lastFlush) >= CompletionBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, CompletionPollTimeout, config.WorkerKey.AssignmentCompletionQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var p completionPayload
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, p)
		}
	}
}

// flushSafe writes the batch and requeues whatever could not be stored.
func (w *CompletionWorker) flushSafe(ctx context.Context, batch []completionPayload) {
	for _, p := range w.flush(ctx, batch) {
		if err := w.queue.push(ctx, p); err != nil {
			w.log.Error().Err(err).
				Str("assignment_id", p.AssignmentID.String()).
				Int("student_id", p.StudentID).
				Msg("Requeue failed, completion dropped")
		}
	}
}

// flush tries one bulk insert, then falls back to single writes. It returns
// the payloads that failed both.
func (w *CompletionWorker) flush(ctx context.Context, batch []completionPayload) []completionPayload {
	if len(batch) == 0 {
		return nil
	}

	n := len(batch)
	assignmentIDs := make([]uuid.UUID, n)
	studentIDs := make([]int, n)
	completedAts := make([]time.Time, n)
	for i, p := range batch {
		assignmentIDs[i] = p.AssignmentID
		studentIDs[i] = p.StudentID
		completedAts[i] = p.CompletedAt
	}

	err := w.writer.MarkCompletedBatch(ctx, assignmentIDs, studentIDs, completedAts)
	if err == nil {
		w.log.Debug().Int("count", n).Msg("Assignment completions persisted")
		return nil
	}
	w.log.Warn().Err(err).Msg("bulk completion insert failed, using fallback")

	var failed []completionPayload
	for _, p := range batch {
		if err := w.writer.MarkCompleted(ctx, p.AssignmentID, p.StudentID, p.CompletedAt); err != nil {
			w.log.Error().Err(err).Msg("MarkCompleted failed, requeueing")
			failed = append(failed, p)
		}
	}
	return failed
}
