package engine

import (
	"context"

	"wmscore/audit"
	"wmscore/store"
)

type LineRequest struct {
	MaterialID int64 `json:"material_id"`
	Qty        int64 `json:"qty"`
}

type InboundRequest struct {
	OrderNo    string        `json:"order_no"`
	Supplier   string        `json:"supplier"`
	LocationID int64         `json:"location_id"`
	Lines      []LineRequest `json:"lines"`
}

func toLines(reqs []LineRequest) []*store.OrderLine {
	lines := make([]*store.OrderLine, 0, len(reqs))
	for _, l := range reqs {
		lines = append(lines, &store.OrderLine{MaterialID: l.MaterialID, Qty: l.Qty})
	}
	return lines
}

// createOrder is the shared body of CreateInbound and CreateOutbound.
// Every referenced location must exist.
func (e *Engine) createOrder(ctx context.Context, actor, op string, o *store.Order, reqs []LineRequest, locations ...int64) (int64, error) {
	if o.OrderNo == "" {
		return 0, store.Errorf(store.KindInvalid, "order_no is required")
	}
	err := e.run(ctx, op, func(tx *store.Tx, fx *effects) error {
		for _, id := range locations {
			if _, err := tx.GetLocation(ctx, id); err != nil {
				return err
			}
		}
		lines := toLines(reqs)
		if err := tx.CreateOrder(ctx, o, lines); err != nil {
			return err
		}
		fx.record(audit.Entry{
			Module: o.OrderType, Action: "create", Entity: "order", EntityID: o.ID,
			Detail: "order_no=" + o.OrderNo, Operator: actor,
			After: map[string]any{"status": o.Status, "lines": len(lines)},
		})
		fx.emit(EventOrderCreated, OrderCreatedEvent{
			OrderID: o.ID, OrderNo: o.OrderNo, OrderType: o.OrderType, Lines: len(lines), Actor: actor,
		})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return o.ID, nil
}

func (e *Engine) CreateInbound(ctx context.Context, actor string, req InboundRequest) (int64, error) {
	o := &store.Order{
		OrderNo:          req.OrderNo,
		OrderType:        store.OrderInbound,
		Partner:          req.Supplier,
		TargetLocationID: &req.LocationID,
		CreatedBy:        actor,
	}
	return e.createOrder(ctx, actor, "create_inbound", o, req.Lines, req.LocationID)
}

// transition records the status change of o on fx and in order history.
func transition(ctx context.Context, tx *store.Tx, fx *effects, o *store.Order, actor, action, status string) error {
	old := o.Status
	if err := tx.SetOrderStatus(ctx, o, status, action+" by "+actor); err != nil {
		return err
	}
	fx.record(audit.Entry{
		Module: o.OrderType, Action: action, Entity: "order", EntityID: o.ID,
		Detail: "order_no=" + o.OrderNo, Operator: actor,
		Before: map[string]string{"status": old},
		After:  map[string]string{"status": status},
	})
	fx.emit(EventOrderStatusChanged, OrderStatusChangedEvent{
		OrderID: o.ID, OrderNo: o.OrderNo, OrderType: o.OrderType, OldStatus: old, NewStatus: status, Actor: actor,
	})
	return nil
}

func requireStatus(o *store.Order, action string, allowed ...string) error {
	for _, s := range allowed {
		if o.Status == s {
			return nil
		}
	}
	return store.Errorf(store.KindInvalidTransition, "cannot %s %s order %s in status %s", action, o.OrderType, o.OrderNo, o.Status)
}

// ReceiveInbound books every line onto the order's target location. It
// returns "already" without touching the ledger when the order has been
// received before, and "ok" otherwise.
func (e *Engine) ReceiveInbound(ctx context.Context, actor string, id int64) (string, error) {
	result := "ok"
	err := e.run(ctx, "receive_inbound", func(tx *store.Tx, fx *effects) error {
		o, err := tx.LockOrder(ctx, id, store.OrderInbound)
		if err != nil {
			return err
		}
		if o.Status == store.StatusReceived {
			result = "already"
			return nil
		}
		if err := requireStatus(o, "receive", store.StatusCreated); err != nil {
			return err
		}
		if o.TargetLocationID == nil {
			return store.Errorf(store.KindInvalidTransition, "inbound order %s has no target location", o.OrderNo)
		}
		target := *o.TargetLocationID
		loc, err := tx.GetLocation(ctx, target)
		if err != nil {
			return err
		}
		if !loc.Operable() {
			return store.Errorf(store.KindLocationNotOperable, "location %s is %s", loc.Code, loc.Status)
		}
		if err := refuseBound(ctx, tx, target); err != nil {
			return err
		}
		lines, err := tx.OrderLines(ctx, o.ID)
		if err != nil {
			return err
		}
		meta := store.MoveMeta{Operator: actor, RefID: &o.ID}
		for _, l := range lines {
			if _, err := tx.AdjustStock(ctx, l.MaterialID, target, l.Qty, store.MoveInboundReceive, meta); err != nil {
				return err
			}
			fx.emit(EventStockChanged, StockChangedEvent{
				MaterialID: l.MaterialID, LocationID: target, MoveType: store.MoveInboundReceive, Qty: l.Qty, RefID: o.ID,
			})
		}
		return transition(ctx, tx, fx, o, actor, "receive", store.StatusReceived)
	})
	if err != nil {
		return "", err
	}
	return result, nil
}
