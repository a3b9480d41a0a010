package worker

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prepstack/mockexam-backend/internal/config"
	"github.com/prepstack/mockexam-backend/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// SectionExpiryWorker sweeps the section deadline sorted set and expires
// attempts whose active section has run out of time. This is what locks a
// section when the student walks away: the clock never depends on a client
// being connected.
type SectionExpiryWorker struct {
	attemptService *service.AttemptService
	rdb            *redis.Client
	tick           time.Duration
	log            zerolog.Logger
}

// NewSectionExpiryWorker creates a new SectionExpiryWorker.
func NewSectionExpiryWorker(attemptService *service.AttemptService, rdb *redis.Client, tick time.Duration, log zerolog.Logger) *SectionExpiryWorker {
	return &SectionExpiryWorker{
		attemptService: attemptService,
		rdb:            rdb,
		tick:           tick,
		log:            log.With().Str("component", "expiry_worker").Logger(),
	}
}

// Prewarm rebuilds the deadline set from PostgreSQL. Call once at startup so
// attempts that expired while the process was down get swept immediately.
func (w *SectionExpiryWorker) Prewarm(ctx context.Context) error {
	return w.attemptService.RebuildDeadlines(ctx)
}

// Start begins the sweep loop. Call in a goroutine.
func (w *SectionExpiryWorker) Start(ctx context.Context) {
	w.log.Info().Dur("tick", w.tick).Msg("Worker started")

	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *SectionExpiryWorker) sweep(ctx context.Context) {
	now := strconv.FormatInt(time.Now().Unix(), 10)

	due, err := w.rdb.ZRangeByScore(ctx, config.WorkerKey.SectionDeadlines, &redis.ZRangeBy{
		Min: "-inf",
		Max: now,
	}).Result()
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Msg("Deadline scan error")
		}
		return
	}

	for _, member := range due {
		attemptID, err := uuid.Parse(member)
		if err != nil {
			// Junk member; remove it so it stops reappearing.
			w.rdb.ZRem(ctx, config.WorkerKey.SectionDeadlines, member)
			w.log.Warn().Str("member", member).Msg("Removed malformed deadline entry")
			continue
		}

		if err := w.attemptService.ExpireDue(ctx, attemptID); err != nil {
			if errors.Is(err, service.ErrAttemptNotFound) {
				// The attempt row is gone; the entry can never resolve.
				w.rdb.ZRem(ctx, config.WorkerKey.SectionDeadlines, member)
				w.log.Warn().Str("attempt_id", member).Msg("Removed deadline for missing attempt")
				continue
			}
			// Leave the entry in place; the next sweep retries.
			w.log.Error().Err(err).
				Str("attempt_id", member).
				Msg("Expiry error, will retry next sweep")
			continue
		}
	}
}
