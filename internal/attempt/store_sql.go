package attempt

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

const assignmentCols = `id,exam_id,user_id,status,assigned_at,started_at,submitted_at,auto_score,score,teacher_notes,forced_submission`

func scanAssignment(row interface{ Scan(...any) error }) (Assignment, error) {
	var a Assignment
	var started, submitted sql.NullInt64
	var score sql.NullFloat64
	var status string
	err := row.Scan(&a.ID, &a.ExamID, &a.UserID, &status, &a.AssignedAt,
		&started, &submitted, &a.AutoScore, &score, &a.TeacherNotes, &a.ForcedSubmission)
	if err != nil {
		return Assignment{}, err
	}
	a.Status = Status(status)
	if started.Valid {
		a.StartedAt = &started.Int64
	}
	if submitted.Valid {
		a.SubmittedAt = &submitted.Int64
	}
	if score.Valid {
		a.Score = &score.Float64
	}
	return a, nil
}

func (s *SQLStore) GetOrCreate(ctx context.Context, examID, userID string) (Assignment, error) {
	// The UNIQUE(exam_id,user_id) constraint resolves concurrent first
	// access: one insert wins, the rest fall through to the select.
	_, err := s.db.ExecContext(ctx, `INSERT INTO assignments
		(id,exam_id,user_id,status,assigned_at,auto_score,teacher_notes,forced_submission)
		VALUES ($1,$2,$3,$4,$5,0,'',FALSE)
		ON CONFLICT (exam_id,user_id) DO NOTHING`,
		uuid.NewString(), examID, userID, string(StatusAssigned), nowUnix())
	if err != nil {
		return Assignment{}, fmt.Errorf("create assignment: %w", err)
	}
	return s.GetByExamUser(ctx, examID, userID)
}

func (s *SQLStore) Get(ctx context.Context, id string) (Assignment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+assignmentCols+` FROM assignments WHERE id=$1`, id)
	a, err := scanAssignment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Assignment{}, ErrNotFound
	}
	if err != nil {
		return Assignment{}, err
	}
	a.Violations, err = s.ListViolations(ctx, a.ID)
	return a, err
}

func (s *SQLStore) GetByExamUser(ctx context.Context, examID, userID string) (Assignment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+assignmentCols+` FROM assignments WHERE exam_id=$1 AND user_id=$2`, examID, userID)
	a, err := scanAssignment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Assignment{}, ErrNotFound
	}
	if err != nil {
		return Assignment{}, err
	}
	a.Violations, err = s.ListViolations(ctx, a.ID)
	return a, err
}

func (s *SQLStore) List(ctx context.Context, opts ListOpts) ([]Assignment, error) {
	q := `SELECT ` + assignmentCols + ` FROM assignments WHERE 1=1`
	args := []any{}
	if opts.ExamID != "" {
		args = append(args, opts.ExamID)
		q += fmt.Sprintf(" AND exam_id=$%d", len(args))
	}
	if opts.UserID != "" {
		args = append(args, opts.UserID)
		q += fmt.Sprintf(" AND user_id=$%d", len(args))
	}
	if opts.Status != "" {
		args = append(args, opts.Status)
		q += fmt.Sprintf(" AND status=$%d", len(args))
	}
	q += " ORDER BY assigned_at DESC"
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit)
	q += fmt.Sprintf(" LIMIT $%d", len(args))
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) Start(ctx context.Context, id string, now int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE assignments SET status=$1, started_at=$2 WHERE id=$3 AND status=$4`,
		string(StatusStarted), now, id, string(StatusAssigned))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (s *SQLStore) Submit(ctx context.Context, id string, final Status, autoScore float64, score *float64, forced bool, now int64) (bool, error) {
	var sc sql.NullFloat64
	if score != nil {
		sc = sql.NullFloat64{Float64: *score, Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE assignments SET status=$1, auto_score=$2, score=$3, forced_submission=$4, submitted_at=$5
		 WHERE id=$6 AND status=$7`,
		string(final), autoScore, sc, forced, now, id, string(StatusStarted))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (s *SQLStore) ForceReview(ctx context.Context, id string, v Violation, autoScore float64, now int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE assignments SET status=$1, auto_score=$2, score=NULL, forced_submission=TRUE, submitted_at=$3
		 WHERE id=$4 AND status IN ($5,$6)`,
		string(StatusPendingReview), autoScore, now, id,
		string(StatusAssigned), string(StatusStarted))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		// Already completed: the log stays as-is, no duplicate entries.
		return false, nil
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO assignment_violations (assignment_id,vtype,details,forced_submission,created_at)
		 VALUES ($1,$2,$3,TRUE,$4)`,
		id, v.Type, v.Details, now)
	if err != nil {
		return false, fmt.Errorf("append violation: %w", err)
	}
	return true, tx.Commit()
}

func (s *SQLStore) SetGraded(ctx context.Context, id string, score float64, notes string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE assignments SET status=$1, score=$2, teacher_notes=$3
		 WHERE id=$4 AND status IN ($5,$6,$7)`,
		string(StatusGraded), score, notes, id,
		string(StatusSubmitted), string(StatusPendingReview), string(StatusGraded))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return ErrInvalidState
	}
	return nil
}

func (s *SQLStore) ListViolations(ctx context.Context, assignmentID string) ([]Violation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,assignment_id,vtype,details,forced_submission,created_at
		 FROM assignment_violations WHERE assignment_id=$1 ORDER BY id`, assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Violation
	for rows.Next() {
		var v Violation
		if err := rows.Scan(&v.ID, &v.AssignmentID, &v.Type, &v.Details, &v.ForcedSubmission, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
