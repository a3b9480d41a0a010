package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prepstack/mockexam-backend/internal/model"
)

// TestRepository reads the test catalog. The catalog is authored elsewhere;
// this service never writes to it outside the seed tooling.
type TestRepository struct {
	pool *pgxpool.Pool
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

// ListPublished retrieves all published tests without their sections.
func (r *TestRepository) ListPublished(ctx context.Context) ([]model.Test, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, status, marks_per_correct, negative_marks, instructions, created_at, updated_at
		 FROM tests
		 WHERE status = $1
		 ORDER BY created_at DESC`, model.TestStatusPublished,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tests []model.Test
	for rows.Next() {
		var t model.Test
		if err := rows.Scan(&t.ID, &t.Title, &t.Status, &t.MarksPerCorrect, &t.NegativeMarks,
			&t.Instructions, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	return tests, rows.Err()
}

// GetByID retrieves a full test definition: sections in order, each with
// its questions in order, including correct answers.
func (r *TestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	t := &model.Test{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, status, marks_per_correct, negative_marks, instructions, created_at, updated_at
		 FROM tests
		 WHERE id = $1`, id,
	).Scan(&t.ID, &t.Title, &t.Status, &t.MarksPerCorrect, &t.NegativeMarks,
		&t.Instructions, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	secRows, err := r.pool.Query(ctx,
		`SELECT id, name, position, duration_minutes
		 FROM test_sections
		 WHERE test_id = $1
		 ORDER BY position`, id,
	)
	if err != nil {
		return nil, err
	}
	defer secRows.Close()

	byID := make(map[uuid.UUID]int)
	for secRows.Next() {
		var s model.Section
		if err := secRows.Scan(&s.ID, &s.Name, &s.Position, &s.DurationMinutes); err != nil {
			return nil, err
		}
		byID[s.ID] = len(t.Sections)
		t.Sections = append(t.Sections, s)
	}
	if err := secRows.Err(); err != nil {
		return nil, err
	}

	qRows, err := r.pool.Query(ctx,
		`SELECT q.id, q.section_id, q.question_text, q.options, q.correct_answer, q.position
		 FROM questions q
		 JOIN test_sections s ON q.section_id = s.id
		 WHERE s.test_id = $1
		 ORDER BY s.position, q.position`, id,
	)
	if err != nil {
		return nil, err
	}
	defer qRows.Close()

	for qRows.Next() {
		var q model.Question
		if err := qRows.Scan(&q.ID, &q.SectionID, &q.QuestionText, &q.Options, &q.CorrectAnswer, &q.Position); err != nil {
			return nil, err
		}
		if idx, ok := byID[q.SectionID]; ok {
			t.Sections[idx].Questions = append(t.Sections[idx].Questions, q)
		}
	}
	return t, qRows.Err()
}
