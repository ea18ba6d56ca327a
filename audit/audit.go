// Package audit records who changed what, after the business transaction
// that made the change has committed.
package audit

import (
	"context"
	"encoding/json"

	"wmscore/logging"
	"wmscore/store"
)

// Entry is one before/after record. Before and After are marshalled to
// JSON; nil leaves the column empty.
type Entry struct {
	Module   string
	Action   string
	Entity   string
	EntityID int64
	Detail   string
	Operator string
	Before   any
	After    any
}

// Sink receives audit entries. Implementations must not fail the caller.
type Sink interface {
	Record(ctx context.Context, e Entry)
}

// Discard drops every entry.
var Discard Sink = discard{}

type discard struct{}

func (discard) Record(context.Context, Entry) {}

// SQLSink writes entries to operation_logs through the connection pool.
type SQLSink struct {
	db *store.DB
}

func NewSQLSink(db *store.DB) *SQLSink {
	return &SQLSink{db: db}
}

func (s *SQLSink) Record(ctx context.Context, e Entry) {
	meta := logging.RequestMetaFrom(ctx)
	l := &store.OperationLog{
		Module:        e.Module,
		Action:        e.Action,
		Entity:        e.Entity,
		Detail:        e.Detail,
		Operator:      e.Operator,
		BeforeValue:   marshal(ctx, e.Before),
		AfterValue:    marshal(ctx, e.After),
		TraceID:       meta.TraceID,
		RequestSource: meta.Source,
	}
	if e.EntityID != 0 {
		id := e.EntityID
		l.EntityID = &id
	}
	// The request may already be finishing; the row should still land.
	if err := s.db.AppendOperationLog(context.WithoutCancel(ctx), l); err != nil {
		logging.Warn(ctx).Err(err).Str("module", e.Module).Str("action", e.Action).Msg("audit: write failed")
	}
}

func marshal(ctx context.Context, v any) *string {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		logging.Warn(ctx).Err(err).Msg("audit: marshal value")
		return nil
	}
	s := string(data)
	return &s
}
