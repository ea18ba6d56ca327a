package engine

import (
	"context"

	"github.com/rs/zerolog"

	"wmscore/logging"
)

// eventLog carries the originating request's trace id onto the log line.
func eventLog(evt Event) *zerolog.Logger {
	return logging.WithContext(logging.WithRequestMeta(context.Background(), evt.Meta))
}

func (e *Engine) wireEventHandlers() {
	// Order lifecycle: log
	e.Events.Subscribe(func(evt Event) {
		ev := evt.Payload.(OrderCreatedEvent)
		eventLog(evt).Info().Int64("order_id", ev.OrderID).Str("order_no", ev.OrderNo).
			Str("order_type", ev.OrderType).Int("lines", ev.Lines).Str("actor", ev.Actor).
			Msg("engine: order created")
	}, EventOrderCreated)

	e.Events.Subscribe(func(evt Event) {
		ev := evt.Payload.(OrderStatusChangedEvent)
		eventLog(evt).Info().Int64("order_id", ev.OrderID).Str("order_no", ev.OrderNo).
			Str("from", ev.OldStatus).Str("to", ev.NewStatus).Str("actor", ev.Actor).
			Msgf("engine: %s order %s", ev.OrderType, ev.NewStatus)
	}, EventOrderStatusChanged)

	// Container changes: log
	e.Events.Subscribe(func(evt Event) {
		ev := evt.Payload.(ContainerChangedEvent)
		eventLog(evt).Info().Int64("container_id", ev.ContainerID).Str("code", ev.Code).
			Int64("from", ev.FromLocationID).Int64("to", ev.ToLocationID).Str("actor", ev.Actor).
			Msgf("engine: container %s", ev.Action)
	}, EventContainerChanged)

	// Ledger moves are frequent; keep them at debug
	e.Events.Subscribe(func(evt Event) {
		ev := evt.Payload.(StockChangedEvent)
		eventLog(evt).Debug().Int64("material_id", ev.MaterialID).Int64("location_id", ev.LocationID).
			Str("move_type", ev.MoveType).Int64("qty", ev.Qty).Msg("engine: stock changed")
	}, EventStockChanged)

	e.Events.Subscribe(func(evt Event) {
		ev := evt.Payload.(MasterDataChangedEvent)
		eventLog(evt).Info().Str("entity", ev.Entity).Int64("id", ev.EntityID).Str("actor", ev.Actor).
			Msgf("engine: %s %s", ev.Entity, ev.Action)
	}, EventMasterDataChanged)
}
