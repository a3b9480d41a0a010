package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prepstack/mockexam-backend/internal/config"
	"github.com/prepstack/mockexam-backend/internal/model"
	"github.com/prepstack/mockexam-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrTestNotFound signals an unknown test ID.
var ErrTestNotFound = errors.New("test not found")

// CatalogService reads test definitions and caches the two derived views
// in Redis: the student-facing payload (no correct answers) and the answer
// key used for scoring. PostgreSQL stays the source of truth; cache misses
// fall back and self-heal.
type CatalogService struct {
	testRepo *repository.TestRepository
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(testRepo *repository.TestRepository, rdb *redis.Client, log zerolog.Logger) *CatalogService {
	return &CatalogService{
		testRepo: testRepo,
		rdb:      rdb,
		log:      log.With().Str("component", "catalog_service").Logger(),
	}
}

// ListPublished returns published tests without section detail, for the
// student lobby.
func (s *CatalogService) ListPublished(ctx context.Context) ([]model.Test, error) {
	return s.testRepo.ListPublished(ctx)
}

// GetPayload returns the student-facing payload for a test.
func (s *CatalogService) GetPayload(ctx context.Context, testID uuid.UUID) (*model.TestPayload, error) {
	key := config.CacheKey.TestPayloadKey(testID.String())

	raw, err := s.rdb.Get(ctx, key).Result()
	if err == nil {
		payload := &model.TestPayload{}
		if jsonErr := json.Unmarshal([]byte(raw), payload); jsonErr == nil {
			return payload, nil
		}
		// Corrupt cache entry; fall through to reload it.
		s.log.Warn().Str("test_id", testID.String()).Msg("Invalid cached payload, reloading")
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis get payload: %w", err)
	}

	payload, _, err := s.loadAndCache(ctx, testID)
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// GetAnswerKey returns the answer key and marking scheme for a test.
// Never exposed through any handler — scoring only.
func (s *CatalogService) GetAnswerKey(ctx context.Context, testID uuid.UUID) (*model.AnswerKey, error) {
	key := config.CacheKey.TestAnswerKey(testID.String())

	raw, err := s.rdb.Get(ctx, key).Result()
	if err == nil {
		answerKey := &model.AnswerKey{}
		if jsonErr := json.Unmarshal([]byte(raw), answerKey); jsonErr == nil {
			return answerKey, nil
		}
		s.log.Warn().Str("test_id", testID.String()).Msg("Invalid cached answer key, reloading")
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis get answer key: %w", err)
	}

	_, answerKey, err := s.loadAndCache(ctx, testID)
	if err != nil {
		return nil, err
	}
	return answerKey, nil
}

// PrewarmPublished loads every published test into Redis before the server
// accepts traffic, so a thundering herd at test start never races the lazy
// cache fill.
func (s *CatalogService) PrewarmPublished(ctx context.Context) error {
	tests, err := s.testRepo.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published: %w", err)
	}

	for _, t := range tests {
		if _, _, err := s.loadAndCache(ctx, t.ID); err != nil {
			s.log.Warn().Err(err).Str("test_id", t.ID.String()).Msg("Prewarm failed for test")
			continue
		}
	}

	s.log.Info().Int("tests", len(tests)).Msg("Catalog caches prewarmed")
	return nil
}

// loadAndCache reads the full test from PostgreSQL, derives both views and
// writes them back to Redis.
func (s *CatalogService) loadAndCache(ctx context.Context, testID uuid.UUID) (*model.TestPayload, *model.AnswerKey, error) {
	t, err := s.testRepo.GetByID(ctx, testID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrTestNotFound
		}
		return nil, nil, fmt.Errorf("get test: %w", err)
	}

	payload := buildPayload(t)
	answerKey := buildAnswerKey(t)

	if raw, err := json.Marshal(payload); err == nil {
		if err := s.rdb.Set(ctx, config.CacheKey.TestPayloadKey(testID.String()), raw, 0).Err(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to cache test payload")
		}
	}
	if raw, err := json.Marshal(answerKey); err == nil {
		if err := s.rdb.Set(ctx, config.CacheKey.TestAnswerKey(testID.String()), raw, 0).Err(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to cache answer key")
		}
	}

	return payload, answerKey, nil
}

func buildPayload(t *model.Test) *model.TestPayload {
	payload := &model.TestPayload{
		TestID:          t.ID,
		Title:           t.Title,
		Instructions:    t.Instructions,
		MarksPerCorrect: t.MarksPerCorrect,
		NegativeMarks:   t.NegativeMarks,
	}
	for _, sec := range t.Sections {
		sp := model.SectionPayload{
			Name:            sec.Name,
			Position:        sec.Position,
			DurationMinutes: sec.DurationMinutes,
			Questions:       make([]model.QuestionPayload, 0, len(sec.Questions)),
		}
		for _, q := range sec.Questions {
			sp.Questions = append(sp.Questions, model.QuestionPayload{
				ID:           q.ID,
				QuestionText: q.QuestionText,
				Options:      q.Options,
				Position:     q.Position,
			})
		}
		payload.Sections = append(payload.Sections, sp)
	}
	return payload
}

func buildAnswerKey(t *model.Test) *model.AnswerKey {
	key := &model.AnswerKey{
		TestID:          t.ID,
		MarksPerCorrect: t.MarksPerCorrect,
		NegativeMarks:   t.NegativeMarks,
	}
	for _, sec := range t.Sections {
		ks := model.AnswerKeySection{
			Name:     sec.Name,
			Position: sec.Position,
			Answers:  make(map[uuid.UUID]string, len(sec.Questions)),
		}
		for _, q := range sec.Questions {
			ks.Answers[q.ID] = q.CorrectAnswer
		}
		key.Sections = append(key.Sections, ks)
	}
	return key
}
