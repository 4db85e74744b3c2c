package exam

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) PutExam(ctx context.Context, e Exam) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var start, end sql.NullInt64
	if e.StartTime != nil {
		start = sql.NullInt64{Int64: e.StartTime.Unix(), Valid: true}
	}
	if e.EndTime != nil {
		end = sql.NullInt64{Int64: e.EndTime.Unix(), Valid: true}
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO exams (id,title,duration_min,start_time,end_time,is_active,teacher_id,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, duration_min=EXCLUDED.duration_min,
			start_time=EXCLUDED.start_time, end_time=EXCLUDED.end_time, is_active=EXCLUDED.is_active`,
		e.ID, e.Title, e.DurationMin, start, end, e.IsActive, e.TeacherID, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("upsert exam: %w", err)
	}

	// Rewrite questions and choices wholesale; answers referencing removed
	// questions cascade away with them.
	if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE exam_id=$1`, e.ID); err != nil {
		return fmt.Errorf("clear questions: %w", err)
	}
	for _, q := range e.Questions {
		_, err := tx.ExecContext(ctx, `INSERT INTO questions (id,exam_id,qtype,prompt,points,position)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			q.ID, e.ID, string(q.Type), q.Prompt, q.Points, q.Position)
		if err != nil {
			return fmt.Errorf("insert question %s: %w", q.ID, err)
		}
		for _, c := range q.Choices {
			_, err := tx.ExecContext(ctx, `INSERT INTO choices (id,question_id,content,is_correct,position)
				VALUES ($1,$2,$3,$4,$5)`,
				c.ID, q.ID, c.Content, c.IsCorrect, c.Position)
			if err != nil {
				return fmt.Errorf("insert choice %s: %w", c.ID, err)
			}
		}
	}
	return tx.Commit()
}

func (s *SQLStore) GetExam(ctx context.Context, id string) (Exam, error) {
	e, err := s.GetExamAdmin(ctx, id)
	if err != nil {
		return Exam{}, err
	}
	// Strip the answer key when serving to students.
	for i := range e.Questions {
		for j := range e.Questions[i].Choices {
			e.Questions[i].Choices[j].IsCorrect = false
		}
	}
	return e, nil
}

func (s *SQLStore) GetExamAdmin(ctx context.Context, id string) (Exam, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,title,duration_min,start_time,end_time,is_active,teacher_id,created_at FROM exams WHERE id=$1`, id)
	var e Exam
	var start, end sql.NullInt64
	if err := row.Scan(&e.ID, &e.Title, &e.DurationMin, &start, &end, &e.IsActive, &e.TeacherID, &e.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Exam{}, ErrNotFound
		}
		return Exam{}, err
	}
	if start.Valid {
		t := time.Unix(start.Int64, 0)
		e.StartTime = &t
	}
	if end.Valid {
		t := time.Unix(end.Int64, 0)
		e.EndTime = &t
	}

	qrows, err := s.db.QueryContext(ctx,
		`SELECT id,qtype,prompt,points,position FROM questions WHERE exam_id=$1 ORDER BY position`, id)
	if err != nil {
		return Exam{}, err
	}
	defer qrows.Close()
	byID := map[string]int{}
	for qrows.Next() {
		var q Question
		var qt string
		if err := qrows.Scan(&q.ID, &qt, &q.Prompt, &q.Points, &q.Position); err != nil {
			return Exam{}, err
		}
		q.Type = QuestionType(qt)
		q.ExamID = id
		byID[q.ID] = len(e.Questions)
		e.Questions = append(e.Questions, q)
	}
	if err := qrows.Err(); err != nil {
		return Exam{}, err
	}

	crows, err := s.db.QueryContext(ctx,
		`SELECT c.id,c.question_id,c.content,c.is_correct,c.position
		 FROM choices c JOIN questions q ON q.id=c.question_id
		 WHERE q.exam_id=$1 ORDER BY c.position`, id)
	if err != nil {
		return Exam{}, err
	}
	defer crows.Close()
	for crows.Next() {
		var c Choice
		if err := crows.Scan(&c.ID, &c.QuestionID, &c.Content, &c.IsCorrect, &c.Position); err != nil {
			return Exam{}, err
		}
		if i, ok := byID[c.QuestionID]; ok {
			e.Questions[i].Choices = append(e.Questions[i].Choices, c)
		}
	}
	return e, crows.Err()
}

func (s *SQLStore) DeleteExam(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM exams WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
