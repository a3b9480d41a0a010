package service

import (
	"testing"
	"time"

	"github.com/prepstack/mockexam-backend/internal/model"
)

func syncTestPayload() *model.TestPayload {
	return &model.TestPayload{
		Sections: []model.SectionPayload{
			{Name: "VARC", Position: 0, DurationMinutes: 40, Questions: make([]model.QuestionPayload, 3)},
			{Name: "DILR", Position: 1, DurationMinutes: 40, Questions: make([]model.QuestionPayload, 5)},
			{Name: "QA", Position: 2, DurationMinutes: 40, Questions: make([]model.QuestionPayload, 4)},
		},
	}
}

func activeSection(position int) *model.SectionState {
	now := time.Now()
	s := &model.SectionState{Position: position, DurationSeconds: 2400, RemainingSeconds: 2400, Phase: model.SectionPending}
	if err := s.Activate(now); err != nil {
		panic(err)
	}
	return s
}

func TestMergeCursorAcceptsActiveSection(t *testing.T) {
	payload := syncTestPayload()
	active := activeSection(1)

	sec, q := mergeCursor(active, payload, 1, 3)
	if sec != 1 || q != 3 {
		t.Fatalf("cursor = (%d,%d), want (1,3)", sec, q)
	}
}

func TestMergeCursorSnapsAfterServerAdvance(t *testing.T) {
	payload := syncTestPayload()
	active := activeSection(2)

	// Client still thinks it is in section 1: the server advanced past it,
	// so the cursor snaps to the start of the authoritative section.
	sec, q := mergeCursor(active, payload, 1, 4)
	if sec != 2 || q != 0 {
		t.Fatalf("cursor = (%d,%d), want (2,0)", sec, q)
	}
}

func TestMergeCursorClampsQuestionIndex(t *testing.T) {
	payload := syncTestPayload()
	active := activeSection(0)

	sec, q := mergeCursor(active, payload, 0, 99)
	if sec != 0 || q != 2 {
		t.Fatalf("cursor = (%d,%d), want clamp to (0,2)", sec, q)
	}

	sec, q = mergeCursor(active, payload, 0, -5)
	if sec != 0 || q != 0 {
		t.Fatalf("cursor = (%d,%d), want clamp to (0,0)", sec, q)
	}
}

func TestMergeCursorNoActiveSection(t *testing.T) {
	payload := syncTestPayload()

	// Every section locked: the cursor parks on the last section.
	sec, q := mergeCursor(nil, payload, 0, 2)
	if sec != 2 || q != 0 {
		t.Fatalf("cursor = (%d,%d), want (2,0)", sec, q)
	}
}

func TestValidatePayload(t *testing.T) {
	valid := syncTestPayload()
	if err := validatePayload(valid); err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}

	empty := &model.TestPayload{}
	if err := validatePayload(empty); err == nil {
		t.Fatal("payload with no sections accepted")
	}

	zeroDuration := syncTestPayload()
	zeroDuration.Sections[1].DurationMinutes = 0
	if err := validatePayload(zeroDuration); err == nil {
		t.Fatal("payload with zero-duration section accepted")
	}
}
