package model

// SectionResult is the per-section scoring breakdown.
type SectionResult struct {
	Name           string  `json:"name"`
	TotalQuestions int     `json:"total_questions"`
	Answered       int     `json:"answered"`
	Correct        int     `json:"correct"`
	Incorrect      int     `json:"incorrect"`
	NotAnswered    int     `json:"not_answered"`
	Score          float64 `json:"score"`
	MaxScore       float64 `json:"max_score"`
}

// Result is the final scoring of a submitted attempt. Computed exactly once
// at finalization and persisted with the attempt; never recomputed.
type Result struct {
	Sections         []SectionResult `json:"sections"`
	TotalQuestions   int             `json:"total_questions"`
	TotalAnswered    int             `json:"total_answered"`
	TotalCorrect     int             `json:"total_correct"`
	TotalIncorrect   int             `json:"total_incorrect"`
	TotalNotAnswered int             `json:"total_not_answered"`
	PositiveMarks    float64         `json:"positive_marks"`
	NegativeMarks    float64         `json:"negative_marks"`
	TotalScore       float64         `json:"total_score"`
	MaxScore         float64         `json:"max_score"`
	Percentage       float64         `json:"percentage"`
}
