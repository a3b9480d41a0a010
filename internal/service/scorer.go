package service

import (
	"github.com/google/uuid"
	"github.com/prepstack/mockexam-backend/internal/model"
)

// Score computes the final result for an attempt from its stored responses
// and the test's answer key. Pure and deterministic: the same inputs always
// produce the same result, and it is invoked exactly once, inside the
// finalize transaction.
//
// Marking: +marksPerCorrect for a correct answer, -negativeMarks for a
// wrong one, 0 for unanswered.
func Score(key *model.AnswerKey, responses []model.Response) *model.Result {
	byQuestion := make(map[uuid.UUID]*model.Response, len(responses))
	for i := range responses {
		byQuestion[responses[i].QuestionID] = &responses[i]
	}

	result := &model.Result{
		Sections: make([]model.SectionResult, 0, len(key.Sections)),
	}

	for _, sec := range key.Sections {
		sr := model.SectionResult{
			Name:           sec.Name,
			TotalQuestions: len(sec.Answers),
		}

		for questionID, correct := range sec.Answers {
			resp, ok := byQuestion[questionID]
			if !ok || !resp.IsAnswered() {
				sr.NotAnswered++
				continue
			}
			sr.Answered++
			if *resp.SelectedAnswer == correct {
				sr.Correct++
			} else {
				sr.Incorrect++
			}
		}

		sr.Score = float64(sr.Correct)*key.MarksPerCorrect - float64(sr.Incorrect)*key.NegativeMarks
		sr.MaxScore = float64(sr.TotalQuestions) * key.MarksPerCorrect

		result.Sections = append(result.Sections, sr)
		result.TotalQuestions += sr.TotalQuestions
		result.TotalAnswered += sr.Answered
		result.TotalCorrect += sr.Correct
		result.TotalIncorrect += sr.Incorrect
		result.TotalNotAnswered += sr.NotAnswered
		result.TotalScore += sr.Score
		result.MaxScore += sr.MaxScore
	}

	result.PositiveMarks = float64(result.TotalCorrect) * key.MarksPerCorrect
	result.NegativeMarks = float64(result.TotalIncorrect) * key.NegativeMarks

	if result.MaxScore > 0 {
		result.Percentage = result.TotalScore / result.MaxScore * 100
	}

	return result
}
