package model

import (
	"encoding/json"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestSectionStateActivate(t *testing.T) {
	now := time.Now()
	s := SectionState{Name: "QA", Position: 0, DurationSeconds: 600, RemainingSeconds: 600, Phase: SectionPending}

	if err := s.Activate(now); err != nil {
		t.Fatalf("activate pending: %v", err)
	}
	if s.Phase != SectionActive {
		t.Fatalf("phase = %s, want ACTIVE", s.Phase)
	}
	if s.StartedAt == nil {
		t.Fatal("StartedAt not stamped")
	}

	// ACTIVE and LOCKED sections must not re-activate.
	if err := s.Activate(now); err != ErrInvalidPhaseTransition {
		t.Fatalf("re-activate active: got %v, want ErrInvalidPhaseTransition", err)
	}
	if err := s.Lock(now, 100); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if err := s.Activate(now); err != ErrInvalidPhaseTransition {
		t.Fatalf("activate locked: got %v, want ErrInvalidPhaseTransition", err)
	}
}

func TestSectionStateLockIdempotent(t *testing.T) {
	now := time.Now()
	s := SectionState{DurationSeconds: 600, RemainingSeconds: 600, Phase: SectionPending}
	if err := s.Activate(now); err != nil {
		t.Fatal(err)
	}

	if err := s.Lock(now, 250); err != nil {
		t.Fatalf("first lock: %v", err)
	}
	firstCompleted := *s.CompletedAt

	// A duplicate lock (late expiry notification) must not change anything.
	if err := s.Lock(now.Add(time.Minute), 0); err != nil {
		t.Fatalf("duplicate lock: %v", err)
	}
	if s.RemainingSeconds != 250 {
		t.Fatalf("remaining = %d, want 250 preserved", s.RemainingSeconds)
	}
	if !s.CompletedAt.Equal(firstCompleted) {
		t.Fatal("CompletedAt changed on duplicate lock")
	}
}

func TestSectionStateLockClampsNegative(t *testing.T) {
	now := time.Now()
	s := SectionState{DurationSeconds: 60, RemainingSeconds: 60, Phase: SectionPending}
	if err := s.Activate(now); err != nil {
		t.Fatal(err)
	}
	if err := s.Lock(now, -30); err != nil {
		t.Fatal(err)
	}
	if s.RemainingSeconds != 0 {
		t.Fatalf("remaining = %d, want clamp to 0", s.RemainingSeconds)
	}
}

func TestSectionStateRemainingAt(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := SectionState{DurationSeconds: 600, RemainingSeconds: 600, Phase: SectionPending}
	if err := s.Activate(start); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		at   time.Time
		want int
	}{
		{start, 600},
		{start.Add(90 * time.Second), 510},
		{start.Add(600 * time.Second), 0},
		{start.Add(2 * time.Hour), 0}, // never negative
	}
	for _, tc := range cases {
		if got := s.RemainingAt(tc.at); got != tc.want {
			t.Errorf("RemainingAt(%v) = %d, want %d", tc.at, got, tc.want)
		}
	}

	// Locked sections report their snapshot, not the wall clock.
	if err := s.Lock(start.Add(100*time.Second), 500); err != nil {
		t.Fatal(err)
	}
	if got := s.RemainingAt(start.Add(time.Hour)); got != 500 {
		t.Fatalf("locked RemainingAt = %d, want snapshot 500", got)
	}
}

func TestSectionStateDeadline(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := SectionState{DurationSeconds: 600, RemainingSeconds: 600, Phase: SectionPending}

	if _, ok := s.Deadline(); ok {
		t.Fatal("pending section should have no deadline")
	}
	if err := s.Activate(start); err != nil {
		t.Fatal(err)
	}
	deadline, ok := s.Deadline()
	if !ok {
		t.Fatal("active section should have a deadline")
	}
	if want := start.Add(600 * time.Second); !deadline.Equal(want) {
		t.Fatalf("deadline = %v, want %v", deadline, want)
	}
}

func TestNewAttemptSections(t *testing.T) {
	payload := &TestPayload{
		Sections: []SectionPayload{
			{Name: "VARC", Position: 0, DurationMinutes: 40},
			{Name: "DILR", Position: 1, DurationMinutes: 40},
			{Name: "QA", Position: 2, DurationMinutes: 40},
		},
	}
	now := time.Now()
	states := NewAttemptSections(payload, now)

	if len(states) != 3 {
		t.Fatalf("len = %d, want 3", len(states))
	}
	if states[0].Phase != SectionActive {
		t.Fatalf("section 0 phase = %s, want ACTIVE", states[0].Phase)
	}
	for _, s := range states[1:] {
		if s.Phase != SectionPending {
			t.Fatalf("section %d phase = %s, want PENDING", s.Position, s.Phase)
		}
		if s.StartedAt != nil {
			t.Fatalf("section %d started before activation", s.Position)
		}
	}
	if states[1].DurationSeconds != 2400 {
		t.Fatalf("duration = %d, want 2400", states[1].DurationSeconds)
	}
}

func TestSectionStateJSONDerivedFlags(t *testing.T) {
	now := time.Now()
	s := SectionState{Name: "QA", DurationSeconds: 600, RemainingSeconds: 600, Phase: SectionPending}
	if err := s.Activate(now); err != nil {
		t.Fatal(err)
	}

	raw, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["is_locked"] != false || decoded["is_completed"] != false {
		t.Fatalf("active flags = %v/%v, want false/false", decoded["is_locked"], decoded["is_completed"])
	}

	if err := s.Lock(now, 0); err != nil {
		t.Fatal(err)
	}
	raw, _ = json.Marshal(s)
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["is_locked"] != true || decoded["is_completed"] != true {
		t.Fatalf("locked flags = %v/%v, want true/true", decoded["is_locked"], decoded["is_completed"])
	}
}

func TestAttemptHelpers(t *testing.T) {
	now := time.Now()
	payload := &TestPayload{
		Sections: []SectionPayload{
			{Name: "A", Position: 0, DurationMinutes: 10},
			{Name: "B", Position: 1, DurationMinutes: 10},
		},
	}
	a := &Attempt{Sections: NewAttemptSections(payload, now)}

	active := a.ActiveSection()
	if active == nil || active.Position != 0 {
		t.Fatalf("active = %+v, want position 0", active)
	}
	if a.AllSectionsDone() {
		t.Fatal("AllSectionsDone true with an active section")
	}

	if err := a.Sections[0].Lock(now, 0); err != nil {
		t.Fatal(err)
	}
	if err := a.Sections[1].Activate(now); err != nil {
		t.Fatal(err)
	}
	if err := a.Sections[1].Lock(now, 120); err != nil {
		t.Fatal(err)
	}

	if a.ActiveSection() != nil {
		t.Fatal("active section after all locked")
	}
	if !a.AllSectionsDone() {
		t.Fatal("AllSectionsDone false with every section locked")
	}
}

func TestResponseIsAnswered(t *testing.T) {
	r := Response{}
	if r.IsAnswered() {
		t.Fatal("nil answer counted as answered")
	}
	r.SelectedAnswer = strPtr("")
	if r.IsAnswered() {
		t.Fatal("empty answer counted as answered")
	}
	r.SelectedAnswer = strPtr("B")
	if !r.IsAnswered() {
		t.Fatal("non-empty answer not counted")
	}
}
