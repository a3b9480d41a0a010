package model

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates attempt lifecycle states.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "IN_PROGRESS"
	AttemptStatusSubmitted  AttemptStatus = "SUBMITTED"
)

// End reasons recorded when an attempt is finalized.
const (
	EndReasonSubmitted = "SUBMITTED"
	EndReasonTimedOut  = "TIMED_OUT"
)

// SectionPhase is the tagged per-section state. A section starts PENDING,
// becomes ACTIVE exactly once, and ends LOCKED. LOCKED is terminal: no
// response mutation is ever accepted for a locked section and the phase
// never reverts.
type SectionPhase string

const (
	SectionPending SectionPhase = "PENDING"
	SectionActive  SectionPhase = "ACTIVE"
	SectionLocked  SectionPhase = "LOCKED"
)

// Phase transition errors.
var (
	ErrInvalidPhaseTransition = errors.New("invalid section phase transition")
	ErrSectionNotActive       = errors.New("section is not active")
)

// SectionState is one section's progress within an attempt.
//
// RemainingSeconds is a persisted snapshot; while the section is ACTIVE the
// authoritative value is always recomputed from StartedAt and the duration
// (see RemainingAt), so a stalled client cannot stretch its time.
type SectionState struct {
	Name             string
	Position         int
	DurationSeconds  int
	StartedAt        *time.Time
	RemainingSeconds int
	Phase            SectionPhase
	CompletedAt      *time.Time
}

// sectionStateJSON is the wire shape. The booleans are derived from Phase
// for compatibility with the attempt screen, which reads isLocked and
// isCompleted.
type sectionStateJSON struct {
	Name             string       `json:"name"`
	Position         int          `json:"position"`
	DurationSeconds  int          `json:"duration_seconds"`
	StartedAt        *time.Time   `json:"started_at"`
	RemainingSeconds int          `json:"remaining_seconds"`
	Phase            SectionPhase `json:"phase"`
	IsLocked         bool         `json:"is_locked"`
	IsCompleted      bool         `json:"is_completed"`
	CompletedAt      *time.Time   `json:"completed_at"`
}

func (s SectionState) MarshalJSON() ([]byte, error) {
	return json.Marshal(sectionStateJSON{
		Name:             s.Name,
		Position:         s.Position,
		DurationSeconds:  s.DurationSeconds,
		StartedAt:        s.StartedAt,
		RemainingSeconds: s.RemainingSeconds,
		Phase:            s.Phase,
		IsLocked:         s.Phase == SectionLocked,
		IsCompleted:      s.Phase == SectionLocked,
		CompletedAt:      s.CompletedAt,
	})
}

func (s *SectionState) UnmarshalJSON(data []byte) error {
	var w sectionStateJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	s.Name = w.Name
	s.Position = w.Position
	s.DurationSeconds = w.DurationSeconds
	s.StartedAt = w.StartedAt
	s.RemainingSeconds = w.RemainingSeconds
	s.Phase = w.Phase
	s.CompletedAt = w.CompletedAt
	return nil
}

// Activate transitions PENDING → ACTIVE and stamps the section start.
func (s *SectionState) Activate(now time.Time) error {
	if s.Phase != SectionPending {
		return ErrInvalidPhaseTransition
	}
	t := now.UTC()
	s.Phase = SectionActive
	s.StartedAt = &t
	s.RemainingSeconds = s.DurationSeconds
	return nil
}

// Lock transitions the section to its terminal phase, snapshotting the
// remaining seconds (0 on expiry, the actual value on early submit).
// Locking an already-locked section is a no-op so duplicate expiry
// notifications cannot corrupt state.
func (s *SectionState) Lock(now time.Time, remaining int) error {
	if s.Phase == SectionLocked {
		return nil
	}
	if remaining < 0 {
		remaining = 0
	}
	t := now.UTC()
	s.Phase = SectionLocked
	s.RemainingSeconds = remaining
	s.CompletedAt = &t
	return nil
}

// RemainingAt returns the authoritative remaining seconds at the given
// instant. Only an ACTIVE section counts down; every other phase reports
// its stored snapshot.
func (s *SectionState) RemainingAt(now time.Time) int {
	if s.Phase != SectionActive || s.StartedAt == nil {
		return s.RemainingSeconds
	}
	elapsed := int(now.Sub(*s.StartedAt) / time.Second)
	remaining := s.DurationSeconds - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Deadline returns the instant at which an ACTIVE section expires.
// The second return value is false for non-active sections.
func (s *SectionState) Deadline() (time.Time, bool) {
	if s.Phase != SectionActive || s.StartedAt == nil {
		return time.Time{}, false
	}
	return s.StartedAt.Add(time.Duration(s.DurationSeconds) * time.Second), true
}

// Response is a student's answer to one question, owned by an attempt.
type Response struct {
	QuestionID        uuid.UUID `json:"question_id"`
	SectionPosition   int       `json:"section_position"`
	SelectedAnswer    *string   `json:"selected_answer"`
	IsMarkedForReview bool      `json:"is_marked_for_review"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// IsAnswered reports whether the response carries a non-empty answer.
func (r *Response) IsAnswered() bool {
	return r.SelectedAnswer != nil && *r.SelectedAnswer != ""
}

// Attempt is one student's run through one test: section states, responses,
// the navigation cursor and lifecycle timestamps. Immutable once submitted.
type Attempt struct {
	ID              uuid.UUID      `json:"id"`
	TestID          uuid.UUID      `json:"test_id"`
	StudentID       int64          `json:"student_id"`
	Status          AttemptStatus  `json:"status"`
	CurrentSection  int            `json:"current_section_index"`
	CurrentQuestion int            `json:"current_question_index"`
	StartedAt       time.Time      `json:"started_at"`
	SubmittedAt     *time.Time     `json:"submitted_at,omitempty"`
	EndReason       *string        `json:"end_reason,omitempty"`
	Sections        []SectionState `json:"section_states"`
	Responses       []Response     `json:"responses,omitempty"`
	Result          *Result        `json:"result,omitempty"`
}

// NewAttemptSections seeds section states from a test payload: every
// section PENDING with its full duration, then section 0 activated.
func NewAttemptSections(payload *TestPayload, now time.Time) []SectionState {
	states := make([]SectionState, 0, len(payload.Sections))
	for _, sec := range payload.Sections {
		states = append(states, SectionState{
			Name:             sec.Name,
			Position:         sec.Position,
			DurationSeconds:  sec.DurationMinutes * 60,
			RemainingSeconds: sec.DurationMinutes * 60,
			Phase:            SectionPending,
		})
	}
	if len(states) > 0 {
		_ = states[0].Activate(now)
	}
	return states
}

// ActiveSection returns the single ACTIVE section, or nil if none
// (before start or once every section is locked).
func (a *Attempt) ActiveSection() *SectionState {
	for i := range a.Sections {
		if a.Sections[i].Phase == SectionActive {
			return &a.Sections[i]
		}
	}
	return nil
}

// Section returns the section state at the given position, or nil.
func (a *Attempt) Section(position int) *SectionState {
	for i := range a.Sections {
		if a.Sections[i].Position == position {
			return &a.Sections[i]
		}
	}
	return nil
}

// AllSectionsDone reports whether every section has reached its terminal
// phase. Corresponds to the state between the last lock and submission.
func (a *Attempt) AllSectionsDone() bool {
	for i := range a.Sections {
		if a.Sections[i].Phase != SectionLocked {
			return false
		}
	}
	return len(a.Sections) > 0
}

// ResponseFor returns the stored response for a question, or nil.
func (a *Attempt) ResponseFor(questionID uuid.UUID) *Response {
	for i := range a.Responses {
		if a.Responses[i].QuestionID == questionID {
			return &a.Responses[i]
		}
	}
	return nil
}

// ─── Request DTOs ───────────────────────────────────────────────────

// StartAttemptRequest is the payload for creating or resuming an attempt.
type StartAttemptRequest struct {
	TestID string `json:"test_id" binding:"required,uuid"`
}

// SaveResponseRequest is the payload for a single response write.
type SaveResponseRequest struct {
	QuestionID        string  `json:"question_id" binding:"required,uuid"`
	SelectedAnswer    *string `json:"selected_answer" binding:"omitempty,max=100"`
	IsMarkedForReview bool    `json:"is_marked_for_review"`
}

// TransitionRequest is the payload for an explicit section transition.
// Pointers so index 0 survives required validation.
type TransitionRequest struct {
	FromSection *int `json:"from_section" binding:"required,min=0"`
	ToSection   *int `json:"to_section" binding:"required,min=1"`
}

// ClientSectionState is the client's believed view of a section. The sync
// protocol accepts it for diagnostics only; the server never trusts its
// time or lock fields.
type ClientSectionState struct {
	Name             string `json:"name"`
	RemainingSeconds int    `json:"remaining_seconds"`
	IsLocked         bool   `json:"is_locked"`
	IsCompleted      bool   `json:"is_completed"`
}

// SyncResponseItem is one draft response carried by a sync payload.
type SyncResponseItem struct {
	QuestionID        string  `json:"question_id" binding:"required,uuid"`
	SelectedAnswer    *string `json:"selected_answer" binding:"omitempty,max=100"`
	IsAnswered        bool    `json:"is_answered"`
	IsMarkedForReview bool    `json:"is_marked_for_review"`
}

// SyncRequest is the periodic reconciliation payload.
type SyncRequest struct {
	CurrentSectionIndex  *int                 `json:"current_section_index" binding:"required,min=0"`
	CurrentQuestionIndex *int                 `json:"current_question_index" binding:"required,min=0"`
	SectionStates        []ClientSectionState `json:"section_states"`
	Responses            []SyncResponseItem   `json:"responses" binding:"omitempty,dive"`
}
