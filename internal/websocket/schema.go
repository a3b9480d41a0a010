package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave Action = "autosave"
	ActionPing     Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`

	// Autosave fields, inlined so a single ReadJSON suffices.
	QuestionID        string  `json:"question_id"`
	SelectedAnswer    *string `json:"selected_answer"`
	IsMarkedForReview bool    `json:"is_marked_for_review"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError Event = "error"
	EventSaved Event = "saved"
	EventState Event = "state"
	EventPong  Event = "pong"
)

// StateResponse carries the authoritative clock snapshot pushed every tick.
// SectionStates marshals with is_locked/is_completed derived server-side.
type StateResponse struct {
	Event                Event       `json:"event"`
	Status               string      `json:"status"`
	CurrentSectionIndex  int         `json:"current_section_index"`
	CurrentQuestionIndex int         `json:"current_question_index"`
	SectionStates        interface{} `json:"section_states"`
}

type SavedResponse struct {
	Event      Event  `json:"event"`
	QuestionID string `json:"question_id"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
