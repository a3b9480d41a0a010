package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prepstack/mockexam-backend/internal/model"
)

// Transition handles an explicit section transition requested by the
// student: lock the from-section (forfeiting any remaining time, which is
// preserved as-is in the snapshot) and activate the next one. A repeated
// transition for an already-locked section is a no-op returning the current
// state, so duplicate expiry notifications and client retries are harmless.
func (s *AttemptService) Transition(ctx context.Context, attemptID uuid.UUID, studentID int64, from, to int) (*model.Attempt, error) {
	var result *model.Attempt

	err := s.attemptRepo.InTx(ctx, func(tx pgx.Tx) error {
		a, err := s.lockAttempt(ctx, tx, attemptID)
		if err != nil {
			return err
		}
		if a.StudentID != studentID {
			return ErrNotAttemptOwner
		}
		if a.Status == model.AttemptStatusSubmitted {
			return ErrAttemptSubmitted
		}

		fromState := a.Section(from)
		if fromState == nil || to != from+1 {
			return ErrInvalidTransition
		}

		now := time.Now()

		if fromState.Phase == model.SectionLocked {
			// Already transitioned (duplicate timer event or retry).
			if a.CurrentSection >= to {
				result = a
				return nil
			}
			return ErrInvalidTransition
		}
		if fromState.Phase != model.SectionActive {
			return ErrInvalidTransition
		}
		if a.Section(to) == nil {
			// Last section: the client must submit instead.
			return ErrInvalidTransition
		}

		if err := s.lockAndAdvance(ctx, tx, a, fromState, fromState.RemainingAt(now), now, model.EndReasonSubmitted); err != nil {
			return err
		}
		result = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.scheduleDeadline(ctx, result)
	refreshRemaining(result, time.Now())
	return result, nil
}

// Submit finalizes the attempt on explicit student action, locking any
// still-open sections with their remaining time preserved, scoring exactly
// once and freezing the attempt. A second submit returns ErrAttemptSubmitted.
func (s *AttemptService) Submit(ctx context.Context, attemptID uuid.UUID, studentID int64) (*model.Attempt, error) {
	var result *model.Attempt

	err := s.attemptRepo.InTx(ctx, func(tx pgx.Tx) error {
		a, err := s.lockAttempt(ctx, tx, attemptID)
		if err != nil {
			return err
		}
		if a.StudentID != studentID {
			return ErrNotAttemptOwner
		}
		if a.Status == model.AttemptStatusSubmitted {
			return ErrAttemptSubmitted
		}

		if err := s.finalize(ctx, tx, a, time.Now(), model.EndReasonSubmitted); err != nil {
			return err
		}
		result = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.scheduleDeadline(ctx, result)
	return result, nil
}

// expiryOutcome classifies what the section clock owes an attempt at a
// given instant.
type expiryOutcome int

const (
	// expiryNoop: the attempt is submitted or has no active section; the
	// deadline entry that fired is stale.
	expiryNoop expiryOutcome = iota
	// expiryPending: the active section still has time on the server clock.
	expiryPending
	// expiryAdvance: the active section is out of time and a later section
	// exists; lock at zero and activate the next one.
	expiryAdvance
	// expiryTimeout: the last open section is out of time; the whole
	// attempt times out.
	expiryTimeout
)

// classifyExpiry recomputes the active section's remaining time at now and
// decides between a stale wakeup, an auto-advance and a timed-out finalize.
// Pure over the in-memory attempt so the decision table is testable without
// a database.
func classifyExpiry(a *model.Attempt, now time.Time) (expiryOutcome, *model.SectionState) {
	if a.Status == model.AttemptStatusSubmitted {
		return expiryNoop, nil
	}
	active := a.ActiveSection()
	if active == nil {
		return expiryNoop, nil
	}
	if active.RemainingAt(now) > 0 {
		return expiryPending, active
	}
	if a.Section(active.Position+1) != nil {
		return expiryAdvance, active
	}
	return expiryTimeout, active
}

// ExpireDue is the section clock's write path, invoked by the expiry worker
// when an attempt's deadline comes due. It recomputes the remaining time
// under the attempt lock: a stale deadline (the student already advanced)
// just reschedules, a truly expired section locks at zero and auto-advances,
// and expiry of the last section finalizes the attempt as timed out.
func (s *AttemptService) ExpireDue(ctx context.Context, attemptID uuid.UUID) error {
	var after *model.Attempt

	err := s.attemptRepo.InTx(ctx, func(tx pgx.Tx) error {
		a, err := s.lockAttempt(ctx, tx, attemptID)
		if err != nil {
			return err
		}
		after = a

		now := time.Now()
		outcome, active := classifyExpiry(a, now)
		if outcome != expiryAdvance && outcome != expiryTimeout {
			return nil
		}
		return s.lockAndAdvance(ctx, tx, a, active, 0, now, model.EndReasonTimedOut)
	})
	if err != nil {
		return err
	}

	s.scheduleDeadline(ctx, after)
	return nil
}

// lockAttempt loads the attempt with its row locked, mapping missing rows
// to ErrAttemptNotFound.
func (s *AttemptService) lockAttempt(ctx context.Context, tx pgx.Tx, attemptID uuid.UUID) (*model.Attempt, error) {
	a, err := s.attemptRepo.LockForUpdate(ctx, tx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("lock attempt: %w", err)
	}
	return a, nil
}

// lockAndAdvance locks section sec with the given remaining snapshot, then
// either activates the next section (cursor to its first question) or, when
// sec was the last open section, finalizes the whole attempt.
func (s *AttemptService) lockAndAdvance(ctx context.Context, tx pgx.Tx, a *model.Attempt, sec *model.SectionState, remaining int, now time.Time, endReason string) error {
	if err := sec.Lock(now, remaining); err != nil {
		return err
	}
	if err := s.attemptRepo.SaveSection(ctx, tx, a.ID, sec); err != nil {
		return fmt.Errorf("save locked section: %w", err)
	}

	next := a.Section(sec.Position + 1)
	if next == nil {
		return s.finalize(ctx, tx, a, now, endReason)
	}

	if err := next.Activate(now); err != nil {
		return err
	}
	if err := s.attemptRepo.SaveSection(ctx, tx, a.ID, next); err != nil {
		return fmt.Errorf("save activated section: %w", err)
	}

	a.CurrentSection = next.Position
	a.CurrentQuestion = 0
	if err := s.attemptRepo.SaveCursor(ctx, tx, a.ID, a.CurrentSection, a.CurrentQuestion); err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}

	s.log.Info().
		Str("attempt_id", a.ID.String()).
		Int("locked_section", sec.Position).
		Int("active_section", next.Position).
		Msg("Section transition")
	return nil
}

// finalize locks every still-open section (remaining time preserved for the
// active one, full duration for never-started ones), scores the attempt and
// freezes it. Runs inside the attempt-lock transaction so it cannot race a
// sync or response write.
func (s *AttemptService) finalize(ctx context.Context, tx pgx.Tx, a *model.Attempt, now time.Time, endReason string) error {
	for i := range a.Sections {
		sec := &a.Sections[i]
		if sec.Phase == model.SectionLocked {
			continue
		}
		if err := sec.Lock(now, sec.RemainingAt(now)); err != nil {
			return err
		}
		if err := s.attemptRepo.SaveSection(ctx, tx, a.ID, sec); err != nil {
			return fmt.Errorf("save section at finalize: %w", err)
		}
	}

	key, err := s.catalog.GetAnswerKey(ctx, a.TestID)
	if err != nil {
		return fmt.Errorf("get answer key: %w", err)
	}

	result := Score(key, a.Responses)

	submittedAt := now.UTC()
	if err := s.attemptRepo.Finalize(ctx, tx, a.ID, result, endReason, submittedAt); err != nil {
		return fmt.Errorf("finalize attempt: %w", err)
	}

	a.Status = model.AttemptStatusSubmitted
	a.SubmittedAt = &submittedAt
	a.EndReason = &endReason
	a.Result = result

	s.log.Info().
		Str("attempt_id", a.ID.String()).
		Str("end_reason", endReason).
		Float64("score", result.TotalScore).
		Msg("Attempt finalized")
	return nil
}
