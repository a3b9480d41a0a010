package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prepstack/mockexam-backend/internal/model"
)

// SyncResult is the authoritative state returned to the client after a
// reconciliation: server section states plus the IDs of any response
// updates that were rejected because their section is no longer active.
type SyncResult struct {
	Attempt             *model.Attempt
	RejectedQuestionIDs []uuid.UUID
}

// Sync reconciles a client's optimistic local state with server truth.
// The client's navigation cursor and response content are merged in; the
// server's clock and lock state always win. If the active section has
// already expired by the server clock, the expiry is applied right here —
// before any response merge — so a throttled client cannot smuggle in
// answers past the deadline. A sync arriving after the attempt is already
// submitted still succeeds: it returns the frozen section states with every
// carried write rejected, so the client's final reconcile needs no
// follow-up fetch.
func (s *AttemptService) Sync(ctx context.Context, attemptID uuid.UUID, studentID int64, req *model.SyncRequest) (*SyncResult, error) {
	payload, err := s.payloadForAttempt(ctx, attemptID, studentID)
	if err != nil {
		return nil, err
	}
	questionSections := payload.QuestionSections()

	res := &SyncResult{}

	err = s.attemptRepo.InTx(ctx, func(tx pgx.Tx) error {
		a, err := s.lockAttempt(ctx, tx, attemptID)
		if err != nil {
			return err
		}
		if a.StudentID != studentID {
			return ErrNotAttemptOwner
		}
		if a.Status == model.AttemptStatusSubmitted {
			// The final reconcile after submission: nothing merges, the
			// frozen section states answer and every write is rejected.
			for _, item := range req.Responses {
				if questionID, parseErr := uuid.Parse(item.QuestionID); parseErr == nil {
					res.RejectedQuestionIDs = append(res.RejectedQuestionIDs, questionID)
				}
			}
			res.Attempt = a
			return nil
		}

		now := time.Now()

		// Server clock first: an expired active section locks (and
		// advances or finalizes) before anything from the client lands.
		if outcome, expired := classifyExpiry(a, now); outcome == expiryAdvance || outcome == expiryTimeout {
			if err := s.lockAndAdvance(ctx, tx, a, expired, 0, now, model.EndReasonTimedOut); err != nil {
				return err
			}
		}

		active := a.ActiveSection()

		// Merge the client's cursor, clamped to the active section.
		cursorSection, cursorQuestion := mergeCursor(active, payload,
			*req.CurrentSectionIndex, *req.CurrentQuestionIndex)
		if cursorSection != a.CurrentSection || cursorQuestion != a.CurrentQuestion {
			a.CurrentSection = cursorSection
			a.CurrentQuestion = cursorQuestion
			if err := s.attemptRepo.SaveCursor(ctx, tx, a.ID, cursorSection, cursorQuestion); err != nil {
				return err
			}
		}

		// Merge draft responses. Writes targeting anything but the active
		// section are rejected and reported, never applied.
		for _, item := range req.Responses {
			questionID, parseErr := uuid.Parse(item.QuestionID)
			if parseErr != nil {
				continue
			}
			sectionPos, known := questionSections[questionID]
			if !known || active == nil || sectionPos != active.Position {
				res.RejectedQuestionIDs = append(res.RejectedQuestionIDs, questionID)
				continue
			}
			applied, err := s.attemptRepo.UpsertResponseActive(ctx, tx,
				a.ID, questionID, sectionPos, item.SelectedAnswer, item.IsMarkedForReview)
			if err != nil {
				return err
			}
			if !applied {
				res.RejectedQuestionIDs = append(res.RejectedQuestionIDs, questionID)
			}
		}

		// Snapshot the active countdown so a resume after a crash loses at
		// most one sync interval.
		if active != nil {
			active.RemainingSeconds = active.RemainingAt(now)
			if err := s.attemptRepo.SaveSection(ctx, tx, a.ID, active); err != nil {
				return err
			}
		}

		res.Attempt = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.scheduleDeadline(ctx, res.Attempt)
	refreshRemaining(res.Attempt, time.Now())
	return res, nil
}

// payloadForAttempt loads the cached test payload for an attempt after a
// cheap ownership pre-check outside the transaction.
func (s *AttemptService) payloadForAttempt(ctx context.Context, attemptID uuid.UUID, studentID int64) (*model.TestPayload, error) {
	a, err := s.Get(ctx, attemptID, studentID)
	if err != nil {
		return nil, err
	}
	return s.catalog.GetPayload(ctx, a.TestID)
}

// mergeCursor reconciles the client's navigation cursor with the server's
// authoritative active section. The client's position is accepted as-is
// while it points inside the active section; after a server-side advance
// (or when no section is active) the cursor snaps to the start of the
// authoritative section. Question indexes are clamped to the section's
// question count.
func mergeCursor(active *model.SectionState, payload *model.TestPayload, clientSection, clientQuestion int) (int, int) {
	if active == nil {
		if len(payload.Sections) == 0 {
			return 0, 0
		}
		return payload.Sections[len(payload.Sections)-1].Position, 0
	}
	if clientSection != active.Position {
		return active.Position, 0
	}

	questions := 0
	for _, sec := range payload.Sections {
		if sec.Position == active.Position {
			questions = len(sec.Questions)
			break
		}
	}
	if clientQuestion < 0 {
		clientQuestion = 0
	}
	if questions > 0 && clientQuestion >= questions {
		clientQuestion = questions - 1
	}
	return active.Position, clientQuestion
}
