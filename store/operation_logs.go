package store

import (
	"context"
	"database/sql"
	"time"
)

// OperationLog is one append-only audit row. BeforeValue and AfterValue hold
// JSON documents, or nil when the action has no such side.
type OperationLog struct {
	ID            int64     `json:"id"`
	Module        string    `json:"module"`
	Action        string    `json:"action"`
	Entity        string    `json:"entity"`
	EntityID      *int64    `json:"entity_id"`
	Detail        string    `json:"detail"`
	Operator      string    `json:"operator"`
	BeforeValue   *string   `json:"before_value"`
	AfterValue    *string   `json:"after_value"`
	TraceID       string    `json:"trace_id"`
	RequestSource string    `json:"request_source"`
	CreatedAt     time.Time `json:"created_at"`
}

func nullString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func (db *DB) AppendOperationLog(ctx context.Context, l *OperationLog) error {
	id, err := db.insertID(ctx, `INSERT INTO operation_logs (module, action, entity, entity_id, detail, operator, before_value, after_value, trace_id, request_source) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.Module, l.Action, l.Entity, nullInt64(l.EntityID), l.Detail, l.Operator,
		nullString(l.BeforeValue), nullString(l.AfterValue), l.TraceID, l.RequestSource)
	if err != nil {
		return err
	}
	l.ID = id
	return nil
}

// OperationLogFilter narrows ListOperationLogs; zero fields are ignored.
type OperationLogFilter struct {
	Module   string
	Entity   string
	EntityID int64
	TraceID  string
	Limit    int
}

func (db *DB) ListOperationLogs(ctx context.Context, f OperationLogFilter) ([]*OperationLog, error) {
	q := `SELECT id, module, action, entity, entity_id, detail, operator, before_value, after_value, trace_id, request_source, created_at FROM operation_logs WHERE 1=1`
	var args []any
	if f.Module != "" {
		q += ` AND module = ?`
		args = append(args, f.Module)
	}
	if f.Entity != "" {
		q += ` AND entity = ?`
		args = append(args, f.Entity)
	}
	if f.EntityID > 0 {
		q += ` AND entity_id = ?`
		args = append(args, f.EntityID)
	}
	if f.TraceID != "" {
		q += ` AND trace_id = ?`
		args = append(args, f.TraceID)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 200
	}
	q += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, db.Q(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var logs []*OperationLog
	for rows.Next() {
		var l OperationLog
		var entityID sql.NullInt64
		var before, after sql.NullString
		var createdAt any
		if err := rows.Scan(&l.ID, &l.Module, &l.Action, &l.Entity, &entityID, &l.Detail, &l.Operator,
			&before, &after, &l.TraceID, &l.RequestSource, &createdAt); err != nil {
			return nil, err
		}
		l.EntityID = int64Ptr(entityID)
		if before.Valid {
			l.BeforeValue = &before.String
		}
		if after.Valid {
			l.AfterValue = &after.String
		}
		l.CreatedAt = parseTime(createdAt)
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}
