package engine

import (
	"context"

	"wmscore/audit"
	"wmscore/store"
)

// Master data writes are single statements (or their own store
// transactions), so they go straight to the store and are audited after.

func (e *Engine) masterChanged(ctx context.Context, actor, entity, action string, id int64, detail string, before, after any) {
	e.audit.Record(ctx, audit.Entry{
		Module: "master_data", Action: action, Entity: entity, EntityID: id,
		Detail: detail, Operator: actor, Before: before, After: after,
	})
	e.Events.Emit(ctx, Event{Type: EventMasterDataChanged, Payload: MasterDataChangedEvent{
		Entity: entity, EntityID: id, Action: action, Actor: actor,
	}})
}

func (e *Engine) CreateWarehouse(ctx context.Context, actor string, w *store.Warehouse) error {
	if w.Code == "" {
		return store.Errorf(store.KindInvalid, "warehouse code is required")
	}
	if err := e.db.CreateWarehouse(ctx, w); err != nil {
		return err
	}
	e.masterChanged(ctx, actor, "warehouse", "created", w.ID, "code="+w.Code, nil, w)
	return nil
}

func (e *Engine) DeleteWarehouse(ctx context.Context, actor string, id int64) error {
	if err := e.db.DeleteWarehouse(ctx, id); err != nil {
		return err
	}
	e.masterChanged(ctx, actor, "warehouse", "deleted", id, "", nil, nil)
	return nil
}

func (e *Engine) CreateLocation(ctx context.Context, actor string, l *store.Location) error {
	if l.Code == "" {
		return store.Errorf(store.KindInvalid, "location code is required")
	}
	if err := e.db.CreateLocation(ctx, l); err != nil {
		return err
	}
	e.masterChanged(ctx, actor, "location", "created", l.ID, "code="+l.Code, nil, l)
	return nil
}

func (e *Engine) SetLocationStatus(ctx context.Context, actor string, id int64, status string) error {
	before, err := e.db.GetLocation(ctx, id)
	if err != nil {
		return err
	}
	if err := e.db.SetLocationStatus(ctx, id, status); err != nil {
		return err
	}
	e.masterChanged(ctx, actor, "location", "updated", id, "code="+before.Code,
		map[string]string{"status": before.Status}, map[string]string{"status": status})
	return nil
}

func (e *Engine) DeleteLocation(ctx context.Context, actor string, id int64) error {
	if err := e.db.DeleteLocation(ctx, id); err != nil {
		return err
	}
	e.masterChanged(ctx, actor, "location", "deleted", id, "", nil, nil)
	return nil
}

func (e *Engine) CreateMaterial(ctx context.Context, actor string, m *store.Material) error {
	if m.SKU == "" || m.Name == "" {
		return store.Errorf(store.KindInvalid, "sku and name are required")
	}
	if err := e.db.CreateMaterial(ctx, m); err != nil {
		return err
	}
	e.masterChanged(ctx, actor, "material", "created", m.ID, "sku="+m.SKU, nil, m)
	return nil
}

// DeleteMaterial deactivates or removes the material as
// store.DecideMaterialDelete rules.
func (e *Engine) DeleteMaterial(ctx context.Context, actor string, id int64, force bool) (store.MaterialDeleteOutcome, error) {
	outcome, err := e.db.DeleteMaterial(ctx, id, force)
	if err != nil {
		return outcome, err
	}
	e.masterChanged(ctx, actor, "material", string(outcome.Kind), id, outcome.Reason, nil, outcome)
	return outcome, nil
}
