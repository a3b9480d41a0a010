package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prepstack/mockexam-backend/internal/config"
	"github.com/prepstack/mockexam-backend/internal/model"
	"github.com/prepstack/mockexam-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Attempt lifecycle errors.
var (
	ErrAttemptNotFound   = errors.New("attempt not found")
	ErrNotAttemptOwner   = errors.New("attempt belongs to another student")
	ErrAttemptSubmitted  = errors.New("attempt has already been submitted")
	ErrSectionLocked     = errors.New("section is locked")
	ErrInvalidTransition = errors.New("transition does not match the attempt state")
	ErrTestMisconfigured = errors.New("test has no sections or a non-positive duration")
	ErrUnknownQuestion   = errors.New("question does not belong to this test")
)

// AttemptService is the exam session engine: it creates and resumes
// attempts, gates response writes by section lock, drives section
// transitions (explicit and clock-driven) and finalizes attempts into a
// scored result. The server clock is authoritative throughout; client
// countdowns are cosmetic.
type AttemptService struct {
	attemptRepo *repository.AttemptRepository
	catalog     *CatalogService
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	attemptRepo *repository.AttemptRepository,
	catalog *CatalogService,
	rdb *redis.Client,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		attemptRepo: attemptRepo,
		catalog:     catalog,
		rdb:         rdb,
		log:         log.With().Str("component", "attempt_service").Logger(),
	}
}

// Start creates an attempt for (test, student) or resumes the existing one.
// Returns the attempt, the sanitized test payload and whether this is a
// resume. A submitted attempt cannot be restarted.
func (s *AttemptService) Start(ctx context.Context, testID uuid.UUID, studentID int64) (*model.Attempt, *model.TestPayload, bool, error) {
	payload, err := s.catalog.GetPayload(ctx, testID)
	if err != nil {
		return nil, nil, false, err
	}
	if err := validatePayload(payload); err != nil {
		return nil, nil, false, err
	}

	now := time.Now()

	existing, err := s.attemptRepo.GetByTestAndStudent(ctx, testID, studentID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, false, fmt.Errorf("check existing attempt: %w", err)
	}
	if existing != nil {
		if existing.Status == model.AttemptStatusSubmitted {
			return nil, nil, false, ErrAttemptSubmitted
		}
		refreshRemaining(existing, now)
		s.scheduleDeadline(ctx, existing)
		return existing, payload, true, nil
	}

	attempt := &model.Attempt{
		TestID:    testID,
		StudentID: studentID,
		Status:    model.AttemptStatusInProgress,
		Sections:  model.NewAttemptSections(payload, now),
	}

	if err := s.attemptRepo.Create(ctx, attempt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Concurrent start from another tab — reuse the winner's attempt.
			existing, fetchErr := s.attemptRepo.GetByTestAndStudent(ctx, testID, studentID)
			if fetchErr != nil {
				return nil, nil, false, fmt.Errorf("concurrent start detected, but fetch failed: %w", fetchErr)
			}
			refreshRemaining(existing, now)
			s.scheduleDeadline(ctx, existing)
			return existing, payload, true, nil
		}
		return nil, nil, false, fmt.Errorf("create attempt: %w", err)
	}

	s.scheduleDeadline(ctx, attempt)

	return attempt, payload, false, nil
}

// Get retrieves an attempt for its owner, with live remaining time on the
// active section.
func (s *AttemptService) Get(ctx context.Context, attemptID uuid.UUID, studentID int64) (*model.Attempt, error) {
	a, err := s.attemptRepo.Get(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if a.StudentID != studentID {
		return nil, ErrNotAttemptOwner
	}
	refreshRemaining(a, time.Now())
	return a, nil
}

// SaveResponse writes a single response. The write is applied by a
// conditional upsert that only matches while the owning section is ACTIVE,
// so a response racing a lock can never land after it.
func (s *AttemptService) SaveResponse(ctx context.Context, attemptID uuid.UUID, studentID int64, req *model.SaveResponseRequest) error {
	a, err := s.Get(ctx, attemptID, studentID)
	if err != nil {
		return err
	}
	if a.Status == model.AttemptStatusSubmitted {
		return ErrAttemptSubmitted
	}

	questionID, err := uuid.Parse(req.QuestionID)
	if err != nil {
		return ErrUnknownQuestion
	}

	sectionPos, err := s.sectionForQuestion(ctx, a.TestID, questionID)
	if err != nil {
		return err
	}

	applied, err := s.attemptRepo.UpsertResponse(
		ctx, attemptID, questionID, sectionPos,
		req.SelectedAnswer, req.IsMarkedForReview,
	)
	if err != nil {
		return fmt.Errorf("upsert response: %w", err)
	}
	if !applied {
		return ErrSectionLocked
	}
	return nil
}

// sectionForQuestion resolves the section position owning a question,
// via the cached test payload.
func (s *AttemptService) sectionForQuestion(ctx context.Context, testID, questionID uuid.UUID) (int, error) {
	payload, err := s.catalog.GetPayload(ctx, testID)
	if err != nil {
		return 0, err
	}
	pos, ok := payload.QuestionSections()[questionID]
	if !ok {
		return 0, ErrUnknownQuestion
	}
	return pos, nil
}

// validatePayload rejects tests that cannot be attempted: no sections, or
// a section without a positive duration or any questions.
func validatePayload(p *model.TestPayload) error {
	if len(p.Sections) == 0 {
		return ErrTestMisconfigured
	}
	for _, sec := range p.Sections {
		if sec.DurationMinutes <= 0 || len(sec.Questions) == 0 {
			return ErrTestMisconfigured
		}
	}
	return nil
}

// refreshRemaining overwrites each snapshot with the live server-computed
// value so responses always carry authoritative countdowns.
func refreshRemaining(a *model.Attempt, now time.Time) {
	for i := range a.Sections {
		a.Sections[i].RemainingSeconds = a.Sections[i].RemainingAt(now)
	}
}

// scheduleDeadline keeps the Redis deadline set in sync with the attempt:
// the active section's expiry instant while in progress, removed once
// submitted. Failures are non-fatal — the sweep self-corrects from
// PostgreSQL on the next rebuild.
func (s *AttemptService) scheduleDeadline(ctx context.Context, a *model.Attempt) {
	member := a.ID.String()

	if a.Status == model.AttemptStatusSubmitted {
		if err := s.rdb.ZRem(ctx, config.WorkerKey.SectionDeadlines, member).Err(); err != nil {
			s.log.Warn().Err(err).Str("attempt_id", member).Msg("Failed to clear section deadline")
		}
		if err := s.rdb.Del(ctx, config.CacheKey.StudentActiveAttemptKey(a.StudentID)).Err(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to clear active attempt key")
		}
		return
	}

	active := a.ActiveSection()
	if active == nil {
		return
	}
	deadline, ok := active.Deadline()
	if !ok {
		return
	}

	if err := s.rdb.ZAdd(ctx, config.WorkerKey.SectionDeadlines, redis.Z{
		Score:  float64(deadline.Unix()),
		Member: member,
	}).Err(); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", member).Msg("Failed to schedule section deadline")
	}

	if err := s.rdb.Set(ctx, config.CacheKey.StudentActiveAttemptKey(a.StudentID), member, 0).Err(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to cache active attempt key")
	}
}

// RebuildDeadlines repopulates the deadline set from PostgreSQL. Called at
// startup so attempts that were in flight across a restart keep expiring.
func (s *AttemptService) RebuildDeadlines(ctx context.Context) error {
	attempts, err := s.attemptRepo.ListInProgress(ctx)
	if err != nil {
		return fmt.Errorf("list in-progress attempts: %w", err)
	}

	for i := range attempts {
		s.scheduleDeadline(ctx, &attempts[i])
	}

	s.log.Info().Int("attempts", len(attempts)).Msg("Section deadlines rebuilt")
	return nil
}
