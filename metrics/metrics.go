// Package metrics exposes Prometheus counters for HTTP traffic, ledger
// moves, order transitions and idempotency outcomes.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wmscore/engine"
)

type Metrics struct {
	registry         *prometheus.Registry
	requestCounter   *prometheus.CounterVec
	requestLatency   *prometheus.HistogramVec
	ledgerMoves      *prometheus.CounterVec
	ledgerQuantity   *prometheus.CounterVec
	orderTransitions *prometheus.CounterVec
	idempotency      *prometheus.CounterVec
	businessErrors   *prometheus.CounterVec
}

// New creates the collectors on a private registry, alongside the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wms_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		requestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wms_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		ledgerMoves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wms_ledger_moves_total",
				Help: "Committed stock ledger moves by move type",
			},
			[]string{"move_type"},
		),
		ledgerQuantity: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wms_ledger_quantity_total",
				Help: "Absolute quantity moved by committed ledger moves",
			},
			[]string{"move_type"},
		),
		orderTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wms_order_transitions_total",
				Help: "Order status transitions",
			},
			[]string{"order_type", "status"},
		),
		idempotency: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wms_idempotency_outcomes_total",
				Help: "Idempotency gateway decisions",
			},
			[]string{"result"},
		),
		businessErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wms_business_errors_total",
				Help: "Rejected operations by error kind",
			},
			[]string{"kind"},
		),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestCounter,
		m.requestLatency,
		m.ledgerMoves,
		m.ledgerQuantity,
		m.orderTransitions,
		m.idempotency,
		m.businessErrors,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}


func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.requestCounter.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) IdempotencyOutcome(result string) {
	m.idempotency.WithLabelValues(result).Inc()
}

func (m *Metrics) BusinessError(kind string) {
	m.businessErrors.WithLabelValues(kind).Inc()
}

// Subscribe counts committed ledger moves and order transitions.
func (m *Metrics) Subscribe(bus *engine.EventBus) {
	bus.Subscribe(func(evt engine.Event) {
		ev := evt.Payload.(engine.StockChangedEvent)
		mt := baseMoveType(ev.MoveType)
		m.ledgerMoves.WithLabelValues(mt).Inc()
		qty := ev.Qty
		if qty < 0 {
			qty = -qty
		}
		m.ledgerQuantity.WithLabelValues(mt).Add(float64(qty))
	}, engine.EventStockChanged)

	bus.Subscribe(func(evt engine.Event) {
		switch ev := evt.Payload.(type) {
		case engine.OrderCreatedEvent:
			m.orderTransitions.WithLabelValues(ev.OrderType, "CREATED").Inc()
		case engine.OrderStatusChangedEvent:
			m.orderTransitions.WithLabelValues(ev.OrderType, ev.NewStatus).Inc()
		}
	}, engine.EventOrderCreated, engine.EventOrderStatusChanged)
}

// baseMoveType drops the free-text ":reason" suffix to bound label
// cardinality.
func baseMoveType(mt string) string {
	if i := strings.IndexByte(mt, ':'); i >= 0 {
		return mt[:i]
	}
	return mt
}
