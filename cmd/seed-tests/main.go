package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prepstack/mockexam-backend/internal/config"
	"github.com/prepstack/mockexam-backend/internal/database"
	"github.com/prepstack/mockexam-backend/internal/logger"
)

// seedSection describes one section of the sample mock test.
type seedSection struct {
	name            string
	durationMinutes int
	questions       []seedQuestion
}

type seedQuestion struct {
	text    string
	options string
	correct string
}

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	fmt.Println("=== Seeding Sample Mock Test ===")

	title := "Mock CAT 2026 — Paper 1"

	var existing uuid.UUID
	err = pool.QueryRow(ctx, "SELECT id FROM tests WHERE title = $1", title).Scan(&existing)
	if err == nil {
		fmt.Printf("Test already seeded with ID: %s\n", existing)
		return
	}

	var testID uuid.UUID
	err = pool.QueryRow(ctx,
		`INSERT INTO tests (title, status, marks_per_correct, negative_marks, instructions)
		 VALUES ($1, 'PUBLISHED', 3, 1, $2)
		 RETURNING id`,
		title,
		"Each section is independently timed. Once a section's time expires or you move on, you cannot return to it.",
	).Scan(&testID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to insert test")
	}

	sections := []seedSection{
		{
			name:            "Verbal Ability & Reading Comprehension",
			durationMinutes: 40,
			questions: []seedQuestion{
				{"The author's tone in the passage can best be described as:", `["Analytical", "Sardonic", "Laudatory", "Ambivalent"]`, "Analytical"},
				{"Which of the following weakens the argument most?", `["Option I", "Option II", "Option III", "Option IV"]`, "Option II"},
				{"Choose the pair that best expresses a similar relationship:", `["ephemeral:lasting", "torpid:sluggish", "candid:open", "verbose:wordy"]`, "ephemeral:lasting"},
			},
		},
		{
			name:            "Data Interpretation & Logical Reasoning",
			durationMinutes: 40,
			questions: []seedQuestion{
				{"If sales grew 20% each year from 500 units in 2023, sales in 2025 were:", `["600", "700", "720", "750"]`, "720"},
				{"Five people sit in a row; A is left of B but right of C. Who sits centre?", `["A", "B", "C", "Cannot be determined"]`, "Cannot be determined"},
				{"What fraction of the total does segment Q represent?", `["1/4", "1/3", "2/5", "1/2"]`, "1/3"},
			},
		},
		{
			name:            "Quantitative Ability",
			durationMinutes: 40,
			questions: []seedQuestion{
				{"If x + 1/x = 3, then x^2 + 1/x^2 equals:", `["7", "8", "9", "11"]`, "7"},
				{"A train 240 m long crosses a pole in 12 s. Its speed in km/h is:", `["60", "66", "72", "80"]`, "72"},
				{"The number of positive divisors of 360 is:", `["20", "22", "24", "26"]`, "24"},
			},
		},
	}

	for pos, sec := range sections {
		var sectionID uuid.UUID
		err = pool.QueryRow(ctx,
			`INSERT INTO test_sections (test_id, name, position, duration_minutes)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id`,
			testID, sec.name, pos, sec.durationMinutes,
		).Scan(&sectionID)
		if err != nil {
			log.Fatal().Err(err).Str("section", sec.name).Msg("Failed to insert section")
		}

		for qPos, q := range sec.questions {
			if _, err := pool.Exec(ctx,
				`INSERT INTO questions (section_id, question_text, options, correct_answer, position)
				 VALUES ($1, $2, $3, $4, $5)`,
				sectionID, q.text, q.options, q.correct, qPos,
			); err != nil {
				log.Fatal().Err(err).Str("section", sec.name).Int("question", qPos).Msg("Failed to insert question")
			}
		}

		fmt.Printf("Seeded section %d: %s (%d questions)\n", pos, sec.name, len(sec.questions))
	}

	fmt.Printf("Done. Test ID: %s\n", testID)
}
