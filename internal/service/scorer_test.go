package service

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/prepstack/mockexam-backend/internal/model"
)

func strPtr(s string) *string { return &s }

func TestScoreMarkingScheme(t *testing.T) {
	qIDs := make([]uuid.UUID, 5)
	for i := range qIDs {
		qIDs[i] = uuid.New()
	}

	key := &model.AnswerKey{
		MarksPerCorrect: 3,
		NegativeMarks:   1,
		Sections: []model.AnswerKeySection{
			{
				Name:     "QA",
				Position: 0,
				Answers: map[uuid.UUID]string{
					qIDs[0]: "A",
					qIDs[1]: "B",
					qIDs[2]: "C",
					qIDs[3]: "D",
					qIDs[4]: "A",
				},
			},
		},
	}

	// 3 correct, 1 wrong, 1 never answered.
	responses := []model.Response{
		{QuestionID: qIDs[0], SelectedAnswer: strPtr("A")},
		{QuestionID: qIDs[1], SelectedAnswer: strPtr("B")},
		{QuestionID: qIDs[2], SelectedAnswer: strPtr("X")},
		{QuestionID: qIDs[4], SelectedAnswer: strPtr("A")},
	}

	result := Score(key, responses)

	if result.TotalQuestions != 5 {
		t.Fatalf("TotalQuestions = %d, want 5", result.TotalQuestions)
	}
	if result.TotalCorrect != 3 || result.TotalIncorrect != 1 || result.TotalNotAnswered != 1 {
		t.Fatalf("correct/incorrect/notAnswered = %d/%d/%d, want 3/1/1",
			result.TotalCorrect, result.TotalIncorrect, result.TotalNotAnswered)
	}
	if result.TotalScore != 8 {
		t.Fatalf("TotalScore = %v, want 8 (3*3 - 1*1)", result.TotalScore)
	}
	if result.PositiveMarks != 9 || result.NegativeMarks != 1 {
		t.Fatalf("positive/negative = %v/%v, want 9/1", result.PositiveMarks, result.NegativeMarks)
	}
	if result.MaxScore != 15 {
		t.Fatalf("MaxScore = %v, want 15", result.MaxScore)
	}
	if math.Abs(result.Percentage-(8.0/15.0*100)) > 1e-9 {
		t.Fatalf("Percentage = %v, want %v", result.Percentage, 8.0/15.0*100)
	}
}

func TestScoreEmptyAnswerNotPenalized(t *testing.T) {
	qID := uuid.New()
	key := &model.AnswerKey{
		MarksPerCorrect: 3,
		NegativeMarks:   1,
		Sections: []model.AnswerKeySection{
			{Name: "VARC", Answers: map[uuid.UUID]string{qID: "B"}},
		},
	}

	// A cleared answer (empty string) counts as not answered, never as wrong.
	result := Score(key, []model.Response{{QuestionID: qID, SelectedAnswer: strPtr("")}})

	if result.TotalNotAnswered != 1 || result.TotalIncorrect != 0 {
		t.Fatalf("notAnswered/incorrect = %d/%d, want 1/0",
			result.TotalNotAnswered, result.TotalIncorrect)
	}
	if result.TotalScore != 0 {
		t.Fatalf("TotalScore = %v, want 0", result.TotalScore)
	}
}

func TestScorePerSectionBreakdown(t *testing.T) {
	q1, q2, q3 := uuid.New(), uuid.New(), uuid.New()
	key := &model.AnswerKey{
		MarksPerCorrect: 2,
		NegativeMarks:   0.5,
		Sections: []model.AnswerKeySection{
			{Name: "DILR", Position: 0, Answers: map[uuid.UUID]string{q1: "A", q2: "B"}},
			{Name: "QA", Position: 1, Answers: map[uuid.UUID]string{q3: "C"}},
		},
	}

	responses := []model.Response{
		{QuestionID: q1, SelectedAnswer: strPtr("A")},
		{QuestionID: q2, SelectedAnswer: strPtr("D")},
	}

	result := Score(key, responses)

	if len(result.Sections) != 2 {
		t.Fatalf("sections = %d, want 2", len(result.Sections))
	}
	dilr := result.Sections[0]
	if dilr.Correct != 1 || dilr.Incorrect != 1 || dilr.Score != 1.5 {
		t.Fatalf("DILR = %+v, want 1 correct, 1 incorrect, score 1.5", dilr)
	}
	qa := result.Sections[1]
	if qa.NotAnswered != 1 || qa.Score != 0 {
		t.Fatalf("QA = %+v, want untouched section scored 0", qa)
	}
}

func TestScoreDeterministic(t *testing.T) {
	qID := uuid.New()
	key := &model.AnswerKey{
		MarksPerCorrect: 3,
		NegativeMarks:   1,
		Sections: []model.AnswerKeySection{
			{Name: "QA", Answers: map[uuid.UUID]string{qID: "A"}},
		},
	}
	responses := []model.Response{{QuestionID: qID, SelectedAnswer: strPtr("A")}}

	first := Score(key, responses)
	second := Score(key, responses)
	if first.TotalScore != second.TotalScore || first.Percentage != second.Percentage {
		t.Fatal("Score is not deterministic for identical inputs")
	}
}
