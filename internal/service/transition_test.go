package service

import (
	"testing"
	"time"

	"github.com/prepstack/mockexam-backend/internal/model"
)

func activeStateAt(position, durationSeconds int, startedAt time.Time) model.SectionState {
	return model.SectionState{
		Position:         position,
		DurationSeconds:  durationSeconds,
		StartedAt:        &startedAt,
		RemainingSeconds: durationSeconds,
		Phase:            model.SectionActive,
	}
}

func lockedStateAt(position int) model.SectionState {
	return model.SectionState{Position: position, Phase: model.SectionLocked}
}

func pendingStateAt(position, durationSeconds int) model.SectionState {
	return model.SectionState{
		Position:         position,
		DurationSeconds:  durationSeconds,
		RemainingSeconds: durationSeconds,
		Phase:            model.SectionPending,
	}
}

func TestClassifyExpiry(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	t.Run("SubmittedAttemptIsStale", func(t *testing.T) {
		a := &model.Attempt{
			Status:   model.AttemptStatusSubmitted,
			Sections: []model.SectionState{lockedStateAt(0), lockedStateAt(1)},
		}
		outcome, sec := classifyExpiry(a, now)
		if outcome != expiryNoop || sec != nil {
			t.Fatalf("outcome = %d, section = %v, want noop/nil", outcome, sec)
		}
	})

	t.Run("NoActiveSectionIsStale", func(t *testing.T) {
		a := &model.Attempt{
			Status:   model.AttemptStatusInProgress,
			Sections: []model.SectionState{lockedStateAt(0), lockedStateAt(1)},
		}
		outcome, sec := classifyExpiry(a, now)
		if outcome != expiryNoop || sec != nil {
			t.Fatalf("outcome = %d, section = %v, want noop/nil", outcome, sec)
		}
	})

	t.Run("TimeLeftIsPending", func(t *testing.T) {
		a := &model.Attempt{
			Status: model.AttemptStatusInProgress,
			Sections: []model.SectionState{
				activeStateAt(0, 600, now.Add(-90*time.Second)),
				pendingStateAt(1, 600),
			},
		}
		outcome, sec := classifyExpiry(a, now)
		if outcome != expiryPending {
			t.Fatalf("outcome = %d, want pending", outcome)
		}
		if sec == nil || sec.Position != 0 {
			t.Fatalf("section = %v, want position 0", sec)
		}
	})

	t.Run("ExpiredWithNextSectionAdvances", func(t *testing.T) {
		a := &model.Attempt{
			Status: model.AttemptStatusInProgress,
			Sections: []model.SectionState{
				activeStateAt(0, 600, now.Add(-601*time.Second)),
				pendingStateAt(1, 600),
			},
		}
		outcome, sec := classifyExpiry(a, now)
		if outcome != expiryAdvance {
			t.Fatalf("outcome = %d, want advance", outcome)
		}
		if sec == nil || sec.Position != 0 {
			t.Fatalf("section = %v, want position 0", sec)
		}
	})

	t.Run("ExpiredLastSectionTimesOut", func(t *testing.T) {
		a := &model.Attempt{
			Status: model.AttemptStatusInProgress,
			Sections: []model.SectionState{
				lockedStateAt(0),
				activeStateAt(1, 600, now.Add(-2*time.Hour)),
			},
		}
		outcome, sec := classifyExpiry(a, now)
		if outcome != expiryTimeout {
			t.Fatalf("outcome = %d, want timeout", outcome)
		}
		if sec == nil || sec.Position != 1 {
			t.Fatalf("section = %v, want position 1", sec)
		}
	})

	t.Run("ExactDeadlineExpires", func(t *testing.T) {
		a := &model.Attempt{
			Status: model.AttemptStatusInProgress,
			Sections: []model.SectionState{
				activeStateAt(0, 600, now.Add(-600*time.Second)),
				pendingStateAt(1, 600),
			},
		}
		outcome, _ := classifyExpiry(a, now)
		if outcome != expiryAdvance {
			t.Fatalf("outcome = %d, want advance at the exact deadline", outcome)
		}
	})
}
