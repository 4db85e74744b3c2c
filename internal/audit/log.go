package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// Event is one append-only record of an attempt lifecycle transition.
type Event struct {
	Offset    int64
	Type      string // AttemptStarted | AttemptSubmitted | AttemptViolation
	Key       string // natural key: assignment ID
	DataJSON  string
	CreatedAt int64
}

// Log appends lifecycle events to the audit_log table. Entries are never
// rewritten or truncated.
type Log struct{ db *sql.DB }

func NewLog(db *sql.DB) *Log { return &Log{db: db} }

func (l *Log) Append(ctx context.Context, typ, key string, data any) error {
	buf, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = l.db.ExecContext(ctx,
		`INSERT INTO audit_log (typ, key, data, created_at) VALUES ($1,$2,$3,$4)`,
		typ, key, string(buf), time.Now().Unix())
	return err
}

// Recent returns the latest events for one assignment, oldest first.
func (l *Log) Recent(ctx context.Context, key string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT "offset", typ, key, data, created_at FROM audit_log
		 WHERE key=$1 ORDER BY "offset" DESC LIMIT $2`, key, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Offset, &e.Type, &e.Key, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}
