package engine

import (
	"context"
	"fmt"

	"wmscore/audit"
	"wmscore/store"
)

type ContainerRequest struct {
	Code          string `json:"code"`
	ContainerType string `json:"container_type"`
	LocationID    *int64 `json:"location_id"`
	Description   string `json:"description"`
}

func locationOf(c *store.Container) int64 {
	if c.LocationID == nil {
		return 0
	}
	return *c.LocationID
}

func containerState(c *store.Container) map[string]any {
	return map[string]any{"status": c.Status, "location_id": c.LocationID}
}

func (e *Engine) CreateContainer(ctx context.Context, actor string, req ContainerRequest) (*store.Container, error) {
	if req.Code == "" {
		return nil, store.Errorf(store.KindInvalid, "container code is required")
	}
	c := &store.Container{Code: req.Code, ContainerType: req.ContainerType, LocationID: req.LocationID, Description: req.Description}
	err := e.run(ctx, "create_container", func(tx *store.Tx, fx *effects) error {
		if err := tx.CreateContainer(ctx, c, actor); err != nil {
			return err
		}
		fx.record(audit.Entry{
			Module: "containers", Action: "create", Entity: "container", EntityID: c.ID,
			Detail: "code=" + c.Code, Operator: actor, After: containerState(c),
		})
		fx.emit(EventContainerChanged, ContainerChangedEvent{
			ContainerID: c.ID, Code: c.Code, Action: "created", ToLocationID: locationOf(c), Actor: actor,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (e *Engine) BindContainer(ctx context.Context, actor string, id, locationID int64) (*store.Container, error) {
	var c *store.Container
	err := e.run(ctx, "bind_container", func(tx *store.Tx, fx *effects) error {
		before, err := tx.GetContainer(ctx, id)
		if err != nil {
			return err
		}
		from := locationOf(before)
		c, err = tx.BindContainer(ctx, id, locationID, actor)
		if err != nil {
			return err
		}
		fx.record(audit.Entry{
			Module: "containers", Action: "bind", Entity: "container", EntityID: c.ID,
			Detail:   fmt.Sprintf("code=%s,location_id=%d", c.Code, locationID),
			Operator: actor, Before: containerState(before), After: containerState(c),
		})
		fx.emit(EventContainerChanged, ContainerChangedEvent{
			ContainerID: c.ID, Code: c.Code, Action: "bound", FromLocationID: from, ToLocationID: locationID, Actor: actor,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// UnbindContainer reports false when the container was already unbound.
func (e *Engine) UnbindContainer(ctx context.Context, actor string, id int64) (bool, error) {
	var changed bool
	err := e.run(ctx, "unbind_container", func(tx *store.Tx, fx *effects) error {
		before, err := tx.GetContainer(ctx, id)
		if err != nil {
			return err
		}
		from := locationOf(before)
		changed, err = tx.UnbindContainer(ctx, id, actor)
		if err != nil || !changed {
			return err
		}
		fx.record(audit.Entry{
			Module: "containers", Action: "unbind", Entity: "container", EntityID: id,
			Detail:   fmt.Sprintf("code=%s,location_id=%d", before.Code, from),
			Operator: actor, Before: containerState(before),
			After: map[string]any{"status": store.ContainerUnbound, "location_id": nil},
		})
		fx.emit(EventContainerChanged, ContainerChangedEvent{
			ContainerID: id, Code: before.Code, Action: "unbound", FromLocationID: from, Actor: actor,
		})
		return nil
	})
	return changed, err
}

func (e *Engine) MoveContainer(ctx context.Context, actor string, id, toLocationID int64, note string) (*store.Container, error) {
	var c *store.Container
	err := e.run(ctx, "move_container", func(tx *store.Tx, fx *effects) error {
		before, err := tx.GetContainer(ctx, id)
		if err != nil {
			return err
		}
		from := locationOf(before)
		c, err = tx.MoveContainer(ctx, id, toLocationID, note, actor)
		if err != nil {
			return err
		}
		fx.record(audit.Entry{
			Module: "container_moves", Action: "move", Entity: "container", EntityID: c.ID,
			Detail:   fmt.Sprintf("code=%s,from=%d,to=%d", c.Code, from, toLocationID),
			Operator: actor, Before: containerState(before), After: containerState(c),
		})
		fx.emit(EventContainerChanged, ContainerChangedEvent{
			ContainerID: c.ID, Code: c.Code, Action: "moved", FromLocationID: from, ToLocationID: toLocationID, Actor: actor,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (e *Engine) DeleteContainer(ctx context.Context, actor string, id int64) error {
	return e.run(ctx, "delete_container", func(tx *store.Tx, fx *effects) error {
		c, err := tx.DeleteContainer(ctx, id)
		if err != nil {
			return err
		}
		fx.record(audit.Entry{
			Module: "containers", Action: "delete", Entity: "container", EntityID: c.ID,
			Detail: "code=" + c.Code, Operator: actor, Before: containerState(c),
		})
		fx.emit(EventContainerChanged, ContainerChangedEvent{ContainerID: c.ID, Code: c.Code, Action: "deleted", Actor: actor})
		return nil
	})
}
