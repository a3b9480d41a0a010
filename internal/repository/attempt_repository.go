package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prepstack/mockexam-backend/internal/model"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so read helpers can
// run inside or outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AttemptRepository handles attempt persistence: the attempt row, its
// per-section states and its responses.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// InTx runs fn inside a transaction, committing on nil error.
func (r *AttemptRepository) InTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const attemptColumns = `id, test_id, student_id, status, current_section, current_question,
	started_at, submitted_at, end_reason, result`

func scanAttempt(row pgx.Row) (*model.Attempt, error) {
	a := &model.Attempt{}
	var resultRaw []byte
	err := row.Scan(&a.ID, &a.TestID, &a.StudentID, &a.Status, &a.CurrentSection,
		&a.CurrentQuestion, &a.StartedAt, &a.SubmittedAt, &a.EndReason, &resultRaw)
	if err != nil {
		return nil, err
	}
	if len(resultRaw) > 0 {
		a.Result = &model.Result{}
		if err := json.Unmarshal(resultRaw, a.Result); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
	}
	return a, nil
}

// Get retrieves a full attempt: row, section states and responses.
func (r *AttemptRepository) Get(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	return r.get(ctx, r.pool, id, false)
}

// LockForUpdate retrieves a full attempt with its row locked for the
// duration of the transaction. All writers take this lock first, so
// section-state writes for one attempt never interleave.
func (r *AttemptRepository) LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Attempt, error) {
	return r.get(ctx, tx, id, true)
}

func (r *AttemptRepository) get(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (*model.Attempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM attempts WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	a, err := scanAttempt(q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadSections(ctx, q, a); err != nil {
		return nil, err
	}
	if err := r.loadResponses(ctx, q, a); err != nil {
		return nil, err
	}
	return a, nil
}

// GetByTestAndStudent retrieves the attempt for a (test, student) pair.
func (r *AttemptRepository) GetByTestAndStudent(ctx context.Context, testID uuid.UUID, studentID int64) (*model.Attempt, error) {
	a, err := scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE test_id = $1 AND student_id = $2`,
		testID, studentID))
	if err != nil {
		return nil, err
	}
	if err := r.loadSections(ctx, r.pool, a); err != nil {
		return nil, err
	}
	if err := r.loadResponses(ctx, r.pool, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *AttemptRepository) loadSections(ctx context.Context, q querier, a *model.Attempt) error {
	rows, err := q.Query(ctx,
		`SELECT position, name, duration_seconds, phase, started_at, remaining_seconds, completed_at
		 FROM attempt_sections
		 WHERE attempt_id = $1
		 ORDER BY position`, a.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	a.Sections = a.Sections[:0]
	for rows.Next() {
		var s model.SectionState
		if err := rows.Scan(&s.Position, &s.Name, &s.DurationSeconds, &s.Phase,
			&s.StartedAt, &s.RemainingSeconds, &s.CompletedAt); err != nil {
			return err
		}
		a.Sections = append(a.Sections, s)
	}
	return rows.Err()
}

func (r *AttemptRepository) loadResponses(ctx context.Context, q querier, a *model.Attempt) error {
	rows, err := q.Query(ctx,
		`SELECT question_id, section_position, selected_answer, is_marked_for_review, updated_at
		 FROM attempt_responses
		 WHERE attempt_id = $1
		 ORDER BY section_position, question_id`, a.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	a.Responses = a.Responses[:0]
	for rows.Next() {
		var resp model.Response
		if err := rows.Scan(&resp.QuestionID, &resp.SectionPosition, &resp.SelectedAnswer,
			&resp.IsMarkedForReview, &resp.UpdatedAt); err != nil {
			return err
		}
		a.Responses = append(a.Responses, resp)
	}
	return rows.Err()
}

// Create inserts a new attempt with its seeded section states. The unique
// (test_id, student_id) constraint makes concurrent starts collapse into
// one attempt; pgx.ErrNoRows signals the caller lost that race.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	return r.InTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO attempts (test_id, student_id, status, current_section, current_question)
			 VALUES ($1, $2, $3, 0, 0)
			 ON CONFLICT (test_id, student_id) DO NOTHING
			 RETURNING id, started_at`,
			a.TestID, a.StudentID, model.AttemptStatusInProgress,
		).Scan(&a.ID, &a.StartedAt)
		if err != nil {
			return err
		}

		for i := range a.Sections {
			s := &a.Sections[i]
			if _, err := tx.Exec(ctx,
				`INSERT INTO attempt_sections
				 (attempt_id, position, name, duration_seconds, phase, started_at, remaining_seconds, completed_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				a.ID, s.Position, s.Name, s.DurationSeconds, s.Phase,
				s.StartedAt, s.RemainingSeconds, s.CompletedAt,
			); err != nil {
				return fmt.Errorf("insert section %d: %w", s.Position, err)
			}
		}
		return nil
	})
}

// SaveSection persists one section state. Callers hold the attempt row lock.
func (r *AttemptRepository) SaveSection(ctx context.Context, q querier, attemptID uuid.UUID, s *model.SectionState) error {
	_, err := q.Exec(ctx,
		`UPDATE attempt_sections
		 SET phase = $1, started_at = $2, remaining_seconds = $3, completed_at = $4
		 WHERE attempt_id = $5 AND position = $6`,
		s.Phase, s.StartedAt, s.RemainingSeconds, s.CompletedAt, attemptID, s.Position)
	return err
}

// SaveCursor persists the navigation cursor.
func (r *AttemptRepository) SaveCursor(ctx context.Context, q querier, attemptID uuid.UUID, section, question int) error {
	_, err := q.Exec(ctx,
		`UPDATE attempts SET current_section = $1, current_question = $2 WHERE id = $3`,
		section, question, attemptID)
	return err
}

// UpsertResponseActive writes a response only if its owning section is still
// ACTIVE. The phase check lives inside the statement, so there is no window
// between reading the lock state and applying the write. Returns false when
// the write was rejected because the section is locked or pending.
func (r *AttemptRepository) UpsertResponseActive(
	ctx context.Context, q querier,
	attemptID, questionID uuid.UUID, sectionPosition int,
	selectedAnswer *string, markedForReview bool,
) (bool, error) {
	tag, err := q.Exec(ctx,
		`INSERT INTO attempt_responses
		   (attempt_id, question_id, section_position, selected_answer, is_marked_for_review)
		 SELECT s.attempt_id, $2, s.position, $3, $4
		 FROM attempt_sections s
		 WHERE s.attempt_id = $1 AND s.position = $5 AND s.phase = $6
		 ON CONFLICT (attempt_id, question_id) DO UPDATE
		 SET selected_answer = EXCLUDED.selected_answer,
		     is_marked_for_review = EXCLUDED.is_marked_for_review,
		     updated_at = NOW()`,
		attemptID, questionID, selectedAnswer, markedForReview, sectionPosition, model.SectionActive,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// UpsertResponse is UpsertResponseActive against the pool, for callers
// outside a transaction (the HTTP response write and the autosave worker).
func (r *AttemptRepository) UpsertResponse(
	ctx context.Context,
	attemptID, questionID uuid.UUID, sectionPosition int,
	selectedAnswer *string, markedForReview bool,
) (bool, error) {
	return r.UpsertResponseActive(ctx, r.pool, attemptID, questionID, sectionPosition, selectedAnswer, markedForReview)
}

// Finalize freezes an attempt: status SUBMITTED, timestamps, end reason and
// the scored result. No mutation is valid afterward.
func (r *AttemptRepository) Finalize(ctx context.Context, q querier, attemptID uuid.UUID, result *model.Result, endReason string, submittedAt time.Time) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = q.Exec(ctx,
		`UPDATE attempts
		 SET status = $1, submitted_at = $2, end_reason = $3, result = $4
		 WHERE id = $5`,
		model.AttemptStatusSubmitted, submittedAt, endReason, raw, attemptID)
	return err
}

// ListInProgress retrieves every in-progress attempt with its section
// states. Used at startup to rebuild the section deadline set.
func (r *AttemptRepository) ListInProgress(ctx context.Context) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE status = $1`,
		model.AttemptStatusInProgress,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range attempts {
		if err := r.loadSections(ctx, r.pool, &attempts[i]); err != nil {
			return nil, err
		}
	}
	return attempts, nil
}
