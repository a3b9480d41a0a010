package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/prepstack/mockexam-backend/internal/config"
	"github.com/prepstack/mockexam-backend/internal/model"
	"github.com/prepstack/mockexam-backend/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// AutosaveWorker consumes the persist responses queue and UPSERTs responses
// into PostgreSQL through the attempt service, so section-lock rules apply
// the same way they do on the HTTP path.
type AutosaveWorker struct {
	attemptService *service.AttemptService
	rdb            *redis.Client
	log            zerolog.Logger
}

// NewAutosaveWorker creates a new AutosaveWorker.
func NewAutosaveWorker(attemptService *service.AttemptService, rdb *redis.Client, log zerolog.Logger) *AutosaveWorker {
	return &AutosaveWorker{
		attemptService: attemptService,
		rdb:            rdb,
		log:            log.With().Str("component", "autosave_worker").Logger(),
	}
}

type responsePayload struct {
	AttemptID         string  `json:"attempt_id"`
	StudentID         int64   `json:"student_id"`
	QuestionID        string  `json:"question_id"`
	SelectedAnswer    *string `json:"selected_answer"`
	IsMarkedForReview bool    `json:"is_marked_for_review"`
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *AutosaveWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *AutosaveWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or timeout (1 second).
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.PersistResponsesQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}

	var payload responsePayload
	if err := json.Unmarshal([]byte(result[1]), &payload); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error")
		return
	}

	if err := w.persistResponse(ctx, &payload); err != nil {
		if w.isPermanent(err) {
			// The section locked (or the attempt finished) between autosave
			// and persistence. The write must not land; drop it.
			w.log.Debug().
				Str("attempt_id", payload.AttemptID).
				Str("question_id", payload.QuestionID).
				Err(err).
				Msg("Dropping stale autosave")
			return
		}
		w.log.Error().Err(err).
			Str("attempt_id", payload.AttemptID).
			Str("question_id", payload.QuestionID).
			Msg("Persist error, retrying in 5s")
		// Push back to queue for retry.
		w.rdb.RPush(ctx, config.WorkerKey.PersistResponsesQueue, result[1])
		time.Sleep(5 * time.Second)
	}
}

func (w *AutosaveWorker) persistResponse(ctx context.Context, p *responsePayload) error {
	attemptID, err := uuid.Parse(p.AttemptID)
	if err != nil {
		return err
	}
	if _, err := uuid.Parse(p.QuestionID); err != nil {
		return err
	}

	return w.attemptService.SaveResponse(ctx, attemptID, p.StudentID, &model.SaveResponseRequest{
		QuestionID:        p.QuestionID,
		SelectedAnswer:    p.SelectedAnswer,
		IsMarkedForReview: p.IsMarkedForReview,
	})
}

// isPermanent reports whether retrying the write can never succeed.
func (w *AutosaveWorker) isPermanent(err error) bool {
	return errors.Is(err, service.ErrSectionLocked) ||
		errors.Is(err, service.ErrAttemptSubmitted) ||
		errors.Is(err, service.ErrAttemptNotFound) ||
		errors.Is(err, service.ErrUnknownQuestion) ||
		errors.Is(err, service.ErrNotAttemptOwner)
}

// drain processes all remaining items in the queue before shutdown.
func (w *AutosaveWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.PersistResponsesQueue).Result()
		if err != nil {
			break
		}

		var payload responsePayload
		if err := json.Unmarshal([]byte(result), &payload); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}

		if err := w.persistResponse(ctx, &payload); err != nil {
			if w.isPermanent(err) {
				continue
			}
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, config.WorkerKey.PersistResponsesQueue, result)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
