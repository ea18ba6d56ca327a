// Package engine runs every inventory and order mutation as one store
// transaction, then records audit entries and publishes events once the
// transaction has committed.
package engine

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"wmscore/audit"
	"wmscore/logging"
	"wmscore/store"
)

var tracer = otel.Tracer("wmscore/engine")

type Config struct {
	DB    *store.DB
	Audit audit.Sink
}

type Engine struct {
	db     *store.DB
	audit  audit.Sink
	Events *EventBus
}

func New(c Config) *Engine {
	sink := c.Audit
	if sink == nil {
		sink = audit.Discard
	}
	return &Engine{
		db:     c.DB,
		audit:  sink,
		Events: NewEventBus(),
	}
}

func (e *Engine) Start() {
	e.wireEventHandlers()
	logging.Logger.Info().Msg("engine: started")
}

func (e *Engine) Stop() {
	logging.Logger.Info().Msg("engine: stopped")
}

func (e *Engine) DB() *store.DB { return e.db }

// effects collects what a transaction wants to publish. Nothing in it is
// delivered unless the transaction commits.
type effects struct {
	entries []audit.Entry
	events  []Event
}

func (fx *effects) record(en audit.Entry) { fx.entries = append(fx.entries, en) }

func (fx *effects) emit(t EventType, payload any) {
	fx.events = append(fx.events, Event{Type: t, Payload: payload})
}

// run executes fn in one transaction named op.
func (e *Engine) run(ctx context.Context, op string, fn func(tx *store.Tx, fx *effects) error) error {
	ctx, span := tracer.Start(ctx, "engine."+op)
	defer span.End()

	fx := &effects{}
	err := e.db.WithTx(ctx, op, func(tx *store.Tx) error {
		return fn(tx, fx)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if kind := store.KindOf(err); kind != "" {
			span.SetAttributes(attribute.String("wms.error_kind", string(kind)))
			logging.Debug(ctx).Str("op", op).Str("kind", string(kind)).Msg(store.Reason(err))
		} else {
			logging.Error(ctx).Err(err).Str("op", op).Msg("engine: transaction failed")
		}
		return err
	}
	for _, en := range fx.entries {
		e.audit.Record(ctx, en)
	}
	for _, ev := range fx.events {
		e.Events.Emit(ctx, ev)
	}
	return nil
}
