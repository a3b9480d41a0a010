package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TestStatus enumerates the possible states of a test in the catalog.
type TestStatus string

const (
	TestStatusDraft     TestStatus = "DRAFT"
	TestStatusPublished TestStatus = "PUBLISHED"
	TestStatusArchived  TestStatus = "ARCHIVED"
)

// Test is a sectioned, time-boxed test definition from the catalog.
// The catalog is owned by an external authoring system; this service
// only ever reads it.
type Test struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Status          TestStatus `json:"status"`
	MarksPerCorrect float64    `json:"marks_per_correct"`
	NegativeMarks   float64    `json:"negative_marks"`
	Instructions    string     `json:"instructions,omitempty"`
	Sections        []Section  `json:"sections,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Section is a timed, ordered block of questions within a test.
type Section struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	Position        int        `json:"position"`
	DurationMinutes int        `json:"duration_minutes"`
	Questions       []Question `json:"questions,omitempty"`
}

// Question is a single catalog question including its correct answer.
// Never serialized to students before submission.
type Question struct {
	ID            uuid.UUID       `json:"id"`
	SectionID     uuid.UUID       `json:"section_id"`
	QuestionText  string          `json:"question_text"`
	Options       json.RawMessage `json:"options"`
	CorrectAnswer string          `json:"correct_answer"`
	Position      int             `json:"position"`
}

// TestPayload is the Redis-cached payload sent to students. It carries
// everything the attempt screen needs except correct answers.
type TestPayload struct {
	TestID          uuid.UUID        `json:"test_id"`
	Title           string           `json:"title"`
	Instructions    string           `json:"instructions,omitempty"`
	MarksPerCorrect float64          `json:"marks_per_correct"`
	NegativeMarks   float64          `json:"negative_marks"`
	Sections        []SectionPayload `json:"sections"`
}

// SectionPayload is a section as shown to a student.
type SectionPayload struct {
	Name            string            `json:"name"`
	Position        int               `json:"position"`
	DurationMinutes int               `json:"duration_minutes"`
	Questions       []QuestionPayload `json:"questions"`
}

// QuestionPayload is a question without the correct answer.
type QuestionPayload struct {
	ID           uuid.UUID       `json:"id"`
	QuestionText string          `json:"question_text"`
	Options      json.RawMessage `json:"options"`
	Position     int             `json:"position"`
}

// QuestionSections maps every question ID in the payload to the position
// of its owning section. Used to gate response writes by section lock.
func (p *TestPayload) QuestionSections() map[uuid.UUID]int {
	idx := make(map[uuid.UUID]int)
	for _, sec := range p.Sections {
		for _, q := range sec.Questions {
			idx[q.ID] = sec.Position
		}
	}
	return idx
}

// TotalQuestions returns the question count across all sections.
func (p *TestPayload) TotalQuestions() int {
	n := 0
	for _, sec := range p.Sections {
		n += len(sec.Questions)
	}
	return n
}

// AnswerKey is the Redis-cached marking data for a test: correct answers
// per section plus the marking scheme.
type AnswerKey struct {
	TestID          uuid.UUID          `json:"test_id"`
	MarksPerCorrect float64            `json:"marks_per_correct"`
	NegativeMarks   float64            `json:"negative_marks"`
	Sections        []AnswerKeySection `json:"sections"`
}

// AnswerKeySection holds the correct answers for one section.
type AnswerKeySection struct {
	Name     string               `json:"name"`
	Position int                  `json:"position"`
	Answers  map[uuid.UUID]string `json:"answers"`
}
