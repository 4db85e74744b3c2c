package attempt

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

func nowUnix() int64 { return time.Now().Unix() }

// AnswerSQLStore persists answer rows. One transaction per question keeps the
// delete-then-insert replace invisible to concurrent readers.
type AnswerSQLStore struct {
	db *sql.DB
}

func NewAnswerSQLStore(db *sql.DB) *AnswerSQLStore { return &AnswerSQLStore{db: db} }

func (s *AnswerSQLStore) Replace(ctx context.Context, assignmentID, questionID string, rows []Answer) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Re-check the status inside the transaction so a save racing a submit
	// cannot land rows after the score is frozen.
	var status string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM assignments WHERE id=$1`, assignmentID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if Status(status).IsCompleted() {
		return ErrInvalidState
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM answers WHERE assignment_id=$1 AND question_id=$2`,
		assignmentID, questionID); err != nil {
		return fmt.Errorf("clear answers: %w", err)
	}
	for _, r := range rows {
		id := r.ID
		if id == "" {
			id = uuid.NewString()
		}
		var choice, text, feedback sql.NullString
		var score sql.NullFloat64
		if r.ChoiceID != nil {
			choice = sql.NullString{String: *r.ChoiceID, Valid: true}
		}
		if r.Text != nil {
			text = sql.NullString{String: *r.Text, Valid: true}
		}
		if r.Score != nil {
			score = sql.NullFloat64{Float64: *r.Score, Valid: true}
		}
		if r.Feedback != nil {
			feedback = sql.NullString{String: *r.Feedback, Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO answers (id,assignment_id,question_id,choice_id,answer_text,score,feedback)
			 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			id, assignmentID, questionID, choice, text, score, feedback); err != nil {
			return fmt.Errorf("insert answer: %w", err)
		}
	}
	return tx.Commit()
}

func (s *AnswerSQLStore) ListByAssignment(ctx context.Context, assignmentID string) ([]Answer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,assignment_id,question_id,choice_id,answer_text,score,feedback
		 FROM answers WHERE assignment_id=$1 ORDER BY question_id, id`, assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Answer
	for rows.Next() {
		var a Answer
		var choice, text, feedback sql.NullString
		var score sql.NullFloat64
		if err := rows.Scan(&a.ID, &a.AssignmentID, &a.QuestionID, &choice, &text, &score, &feedback); err != nil {
			return nil, err
		}
		if choice.Valid {
			a.ChoiceID = &choice.String
		}
		if text.Valid {
			a.Text = &text.String
		}
		if score.Valid {
			a.Score = &score.Float64
		}
		if feedback.Valid {
			a.Feedback = &feedback.String
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *AnswerSQLStore) ApplyCorrection(ctx context.Context, assignmentID, questionID string, score float64, feedback string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE answers SET score=$1, feedback=$2 WHERE assignment_id=$3 AND question_id=$4`,
		score, feedback, assignmentID, questionID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *AnswerSQLStore) SumScores(ctx context.Context, assignmentID string) (float64, error) {
	// Rows of a multiple-choice question all carry the same score, so the
	// question counts once via MAX per question.
	var sum float64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(qs),0) FROM (
			SELECT MAX(score) AS qs FROM answers
			WHERE assignment_id=$1 AND score IS NOT NULL
			GROUP BY question_id
		 ) t`, assignmentID).Scan(&sum)
	return sum, err
}
