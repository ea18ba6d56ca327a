package engine

import (
	"context"
	"fmt"

	"wmscore/audit"
	"wmscore/store"
)

type AdjustRequest struct {
	MaterialID int64  `json:"material_id"`
	LocationID int64  `json:"location_id"`
	Delta      int64  `json:"delta"`
	Reason     string `json:"reason"`
}

type AdjustResult struct {
	MaterialID int64 `json:"material_id"`
	LocationID int64 `json:"location_id"`
	Before     int64 `json:"before"`
	Quantity   int64 `json:"quantity"`
}

// AdjustStock applies a manual delta to a location that has no container
// bound to it. Bound locations are adjusted through their container so the
// two ledgers stay mirrored.
func (e *Engine) AdjustStock(ctx context.Context, actor string, req AdjustRequest) (*AdjustResult, error) {
	if req.Delta == 0 {
		return nil, store.Errorf(store.KindInvalidQuantity, "delta must not be zero")
	}
	if req.Reason == "" {
		req.Reason = "manual"
	}
	res := &AdjustResult{MaterialID: req.MaterialID, LocationID: req.LocationID}
	err := e.run(ctx, "adjust_stock", func(tx *store.Tx, fx *effects) error {
		lookup := tx.GetMaterial
		if req.Delta > 0 {
			lookup = tx.ActiveMaterial
		}
		if _, err := lookup(ctx, req.MaterialID); err != nil {
			return err
		}
		loc, err := tx.GetLocation(ctx, req.LocationID)
		if err != nil {
			return err
		}
		if req.Delta > 0 && !loc.Operable() {
			return store.Errorf(store.KindLocationNotOperable, "location %s is %s", loc.Code, loc.Status)
		}
		if err := refuseBound(ctx, tx, req.LocationID); err != nil {
			return err
		}
		if row, err := tx.GetStockRow(ctx, req.MaterialID, req.LocationID); err != nil {
			return err
		} else if row != nil {
			res.Before = row.Quantity
		}

		moveType := store.MoveAdjust + ":" + req.Reason
		res.Quantity, err = tx.AdjustStock(ctx, req.MaterialID, req.LocationID, req.Delta, moveType, store.MoveMeta{Operator: actor})
		if err != nil {
			return err
		}
		fx.record(audit.Entry{
			Module: "inventory", Action: "adjust", Entity: "stock", EntityID: req.LocationID,
			Detail:   fmt.Sprintf("material_id=%d,delta=%d,reason=%s", req.MaterialID, req.Delta, req.Reason),
			Operator: actor,
			Before:   map[string]int64{"quantity": res.Before},
			After:    map[string]int64{"quantity": res.Quantity},
		})
		fx.emit(EventStockChanged, StockChangedEvent{
			MaterialID: req.MaterialID, LocationID: req.LocationID, MoveType: moveType, Qty: req.Delta,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

type ContainerAdjustRequest struct {
	ContainerID int64  `json:"container_id"`
	MaterialID  int64  `json:"material_id"`
	Delta       int64  `json:"delta"`
	Reason      string `json:"reason"`
}

type ContainerAdjustResult struct {
	ContainerID       int64 `json:"container_id"`
	MaterialID        int64 `json:"material_id"`
	LocationID        int64 `json:"location_id"`
	ContainerQuantity int64 `json:"container_quantity"`
	LocationQuantity  int64 `json:"location_quantity"`
}

// AdjustContainerStock changes a bound container's contents and mirrors
// the delta onto its location in the same transaction.
func (e *Engine) AdjustContainerStock(ctx context.Context, actor string, req ContainerAdjustRequest) (*ContainerAdjustResult, error) {
	if req.Delta == 0 {
		return nil, store.Errorf(store.KindInvalidQuantity, "delta must not be zero")
	}
	if req.Reason == "" {
		req.Reason = "manual"
	}
	res := &ContainerAdjustResult{ContainerID: req.ContainerID, MaterialID: req.MaterialID}
	err := e.run(ctx, "adjust_container_stock", func(tx *store.Tx, fx *effects) error {
		c, err := tx.GetContainer(ctx, req.ContainerID)
		if err != nil {
			return err
		}
		cQty, lQty, err := tx.AdjustContainerStock(ctx, req.ContainerID, req.MaterialID, req.Delta, req.Reason, store.MoveMeta{Operator: actor})
		if err != nil {
			return err
		}
		res.LocationID = *c.LocationID
		res.ContainerQuantity, res.LocationQuantity = cQty, lQty

		fx.record(audit.Entry{
			Module: "containers", Action: "stock_adjust", Entity: "container", EntityID: c.ID,
			Detail:   fmt.Sprintf("material_id=%d,delta=%d,reason=%s", req.MaterialID, req.Delta, req.Reason),
			Operator: actor,
			Before:   map[string]int64{"container_quantity": cQty - req.Delta, "location_quantity": lQty - req.Delta},
			After:    map[string]int64{"container_quantity": cQty, "location_quantity": lQty},
		})
		fx.emit(EventStockChanged, StockChangedEvent{
			MaterialID: req.MaterialID, LocationID: res.LocationID,
			MoveType: store.MoveContainerAdjust + ":" + req.Reason, Qty: req.Delta,
		})
		fx.emit(EventContainerChanged, ContainerChangedEvent{
			ContainerID: c.ID, Code: c.Code, Action: "stock_adjusted", ToLocationID: res.LocationID, Actor: actor,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// refuseBound fails when any of the locations has a container bound to it.
// Stock at a bound location only moves through the container so the two
// ledgers stay mirrored.
func refuseBound(ctx context.Context, tx *store.Tx, locationIDs ...int64) error {
	for _, id := range locationIDs {
		bound, err := tx.ContainerAt(ctx, id)
		if err != nil {
			return err
		}
		if bound == 0 {
			continue
		}
		loc, err := tx.GetLocation(ctx, id)
		if err != nil {
			return err
		}
		return store.Errorf(store.KindInvalid, "location %s has a bound container; adjust the container stock instead", loc.Code)
	}
	return nil
}
