package metrics

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"wmscore/engine"
)

func TestBaseMoveType(t *testing.T) {
	tests := map[string]string{
		"ADJUST:cycle count":      "ADJUST",
		"CONTAINER_ADJUST:manual": "CONTAINER_ADJUST",
		"OUTBOUND_PICK":           "OUTBOUND_PICK",
	}
	for in, want := range tests {
		if got := baseMoveType(in); got != want {
			t.Errorf("baseMoveType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSubscribeCountsEvents(t *testing.T) {
	m := New()
	bus := engine.NewEventBus()
	m.Subscribe(bus)
	ctx := context.Background()

	bus.Emit(ctx, engine.Event{Type: engine.EventStockChanged, Payload: engine.StockChangedEvent{MoveType: "ADJUST:manual", Qty: 5}})
	bus.Emit(ctx, engine.Event{Type: engine.EventStockChanged, Payload: engine.StockChangedEvent{MoveType: "ADJUST:count", Qty: -2}})
	bus.Emit(ctx, engine.Event{Type: engine.EventOrderCreated, Payload: engine.OrderCreatedEvent{OrderType: "outbound"}})
	bus.Emit(ctx, engine.Event{Type: engine.EventOrderStatusChanged, Payload: engine.OrderStatusChangedEvent{OrderType: "outbound", NewStatus: "RESERVED"}})

	body := scrape(t, m)
	for _, want := range []string{
		`wms_ledger_moves_total{move_type="ADJUST"} 2`,
		`wms_ledger_quantity_total{move_type="ADJUST"} 7`,
		`wms_order_transitions_total{order_type="outbound",status="CREATED"} 1`,
		`wms_order_transitions_total{order_type="outbound",status="RESERVED"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("scrape status = %d", rec.Code)
	}
	return rec.Body.String()
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.ObserveRequest("POST", "/api/inventory/adjust", 200, 10*time.Millisecond)
	m.IdempotencyOutcome("replay")
	m.BusinessError("InvalidQuantity")

	body := scrape(t, m)
	for _, want := range []string{
		`wms_http_requests_total{method="POST",route="/api/inventory/adjust",status="200"} 1`,
		`wms_idempotency_outcomes_total{result="replay"} 1`,
		`wms_business_errors_total{kind="InvalidQuantity"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}
