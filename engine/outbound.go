package engine

import (
	"context"

	"wmscore/store"
)

type OutboundRequest struct {
	OrderNo           string        `json:"order_no"`
	Customer          string        `json:"customer"`
	SourceLocationID  int64         `json:"source_location_id"`
	StagingLocationID *int64        `json:"staging_location_id"`
	Lines             []LineRequest `json:"lines"`
}

func (e *Engine) CreateOutbound(ctx context.Context, actor string, req OutboundRequest) (int64, error) {
	o := &store.Order{
		OrderNo:          req.OrderNo,
		OrderType:        store.OrderOutbound,
		Partner:          req.Customer,
		SourceLocationID: &req.SourceLocationID,
		TargetLocationID: req.StagingLocationID,
		CreatedBy:        actor,
	}
	locations := []int64{req.SourceLocationID}
	if req.StagingLocationID != nil {
		if *req.StagingLocationID == req.SourceLocationID {
			return 0, store.Errorf(store.KindInvalid, "staging location must differ from the source location")
		}
		locations = append(locations, *req.StagingLocationID)
	}
	return e.createOrder(ctx, actor, "create_outbound", o, req.Lines, locations...)
}

// lockOutbound loads an outbound order, its source location and its lines.
func lockOutbound(ctx context.Context, tx *store.Tx, id int64) (*store.Order, int64, []*store.OrderLine, error) {
	o, err := tx.LockOrder(ctx, id, store.OrderOutbound)
	if err != nil {
		return nil, 0, nil, err
	}
	if o.SourceLocationID == nil {
		return nil, 0, nil, store.Errorf(store.KindInvalidTransition, "outbound order %s has no source location", o.OrderNo)
	}
	lines, err := tx.OrderLines(ctx, o.ID)
	if err != nil {
		return nil, 0, nil, err
	}
	return o, *o.SourceLocationID, lines, nil
}

// Reserve earmarks every line's quantity at the source location. With
// force the reservation may exceed on-hand stock. Reserving again from
// RESERVED first releases what the order already holds.
func (e *Engine) Reserve(ctx context.Context, actor string, id int64, force bool) error {
	return e.run(ctx, "reserve_outbound", func(tx *store.Tx, fx *effects) error {
		o, source, lines, err := lockOutbound(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := requireStatus(o, "reserve", store.StatusCreated, store.StatusReserved); err != nil {
			return err
		}
		if err := refuseBound(ctx, tx, source); err != nil {
			return err
		}
		mode := store.ReserveExact
		if force {
			mode = store.ReserveForce
		}
		meta := store.MoveMeta{Operator: actor, RefID: &o.ID}
		for _, l := range lines {
			if l.ReservedQty > 0 {
				if err := tx.ReleaseReserved(ctx, l.MaterialID, source, l.ReservedQty, store.MoveOutboundRelease, meta); err != nil {
					return err
				}
			}
			reserved, err := tx.ReserveStock(ctx, l.MaterialID, source, l.Qty, mode, meta)
			if err != nil {
				return err
			}
			l.ReservedQty = reserved
			if err := tx.SaveLineWatermarks(ctx, l); err != nil {
				return err
			}
			fx.emit(EventStockChanged, StockChangedEvent{
				MaterialID: l.MaterialID, LocationID: source, MoveType: store.MoveOutboundReserve, Qty: reserved, RefID: o.ID,
			})
		}
		return transition(ctx, tx, fx, o, actor, "reserve", store.StatusReserved)
	})
}

// Pick releases each line's reservation and transfers the reserved
// quantity from the source to the staging location. stagingID of 0 falls
// back to the staging location given at creation.
func (e *Engine) Pick(ctx context.Context, actor string, id, stagingID int64) error {
	return e.run(ctx, "pick_outbound", func(tx *store.Tx, fx *effects) error {
		o, source, lines, err := lockOutbound(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := requireStatus(o, "pick", store.StatusReserved); err != nil {
			return err
		}
		if stagingID == 0 && o.TargetLocationID != nil {
			stagingID = *o.TargetLocationID
		}
		if stagingID == 0 {
			return store.Errorf(store.KindInvalid, "staging_location_id is required")
		}
		staging, err := tx.GetLocation(ctx, stagingID)
		if err != nil {
			return err
		}
		if !staging.Operable() {
			return store.Errorf(store.KindLocationNotOperable, "location %s is %s", staging.Code, staging.Status)
		}
		if err := refuseBound(ctx, tx, source, stagingID); err != nil {
			return err
		}

		meta := store.MoveMeta{Operator: actor, RefID: &o.ID}
		for _, l := range lines {
			row, err := tx.GetStockRow(ctx, l.MaterialID, source)
			if err != nil {
				return err
			}
			if row == nil || row.Reserved < l.ReservedQty {
				return store.Errorf(store.KindInvalidQuantity, "reserved stock of %s at the source is below the order's %d", l.MaterialSKU, l.ReservedQty)
			}
			if err := tx.ReleaseReserved(ctx, l.MaterialID, source, l.ReservedQty, store.MoveOutboundRelease, meta); err != nil {
				return err
			}
			if err := tx.TransferStock(ctx, l.MaterialID, source, stagingID, l.ReservedQty, store.MoveOutboundPick, meta); err != nil {
				return err
			}
			l.PickedQty = l.ReservedQty
			if err := tx.SaveLineWatermarks(ctx, l); err != nil {
				return err
			}
			fx.emit(EventStockChanged, StockChangedEvent{
				MaterialID: l.MaterialID, LocationID: source, MoveType: store.MoveOutboundPick, Qty: -l.PickedQty, RefID: o.ID,
			})
			fx.emit(EventStockChanged, StockChangedEvent{
				MaterialID: l.MaterialID, LocationID: stagingID, MoveType: store.MoveOutboundPick, Qty: l.PickedQty, RefID: o.ID,
			})
		}
		if err := tx.SetOrderTarget(ctx, o, stagingID); err != nil {
			return err
		}
		return transition(ctx, tx, fx, o, actor, "pick", store.StatusPicked)
	})
}

// Pack marks every picked quantity as packed. Packing is always full;
// packAll is accepted for request compatibility.
func (e *Engine) Pack(ctx context.Context, actor string, id int64, packAll bool) error {
	return e.run(ctx, "pack_outbound", func(tx *store.Tx, fx *effects) error {
		o, _, lines, err := lockOutbound(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := requireStatus(o, "pack", store.StatusPicked); err != nil {
			return err
		}
		for _, l := range lines {
			l.PackedQty = l.PickedQty
			if err := tx.SaveLineWatermarks(ctx, l); err != nil {
				return err
			}
		}
		return transition(ctx, tx, fx, o, actor, "pack", store.StatusPacked)
	})
}

// Ship removes the packed quantities from the staging location. Shipments
// are always full; shipAll is accepted for request compatibility.
func (e *Engine) Ship(ctx context.Context, actor string, id int64, shipAll bool) error {
	return e.run(ctx, "ship_outbound", func(tx *store.Tx, fx *effects) error {
		o, _, lines, err := lockOutbound(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := requireStatus(o, "ship", store.StatusPacked); err != nil {
			return err
		}
		if o.TargetLocationID == nil {
			return store.Errorf(store.KindInvalidTransition, "outbound order %s has no staging location", o.OrderNo)
		}
		target := *o.TargetLocationID
		if err := refuseBound(ctx, tx, target); err != nil {
			return err
		}
		meta := store.MoveMeta{Operator: actor, RefID: &o.ID}
		for _, l := range lines {
			if l.PackedQty == 0 {
				continue
			}
			if _, err := tx.AdjustStock(ctx, l.MaterialID, target, -l.PackedQty, store.MoveOutboundShip, meta); err != nil {
				return err
			}
			fx.emit(EventStockChanged, StockChangedEvent{
				MaterialID: l.MaterialID, LocationID: target, MoveType: store.MoveOutboundShip, Qty: -l.PackedQty, RefID: o.ID,
			})
		}
		return transition(ctx, tx, fx, o, actor, "ship", store.StatusShipped)
	})
}
