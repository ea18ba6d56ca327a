// Package stockstate keeps a Redis snapshot of every location's stock,
// refreshed from SQL after each committed change. SQL stays the source of
// truth; reads fall back to it whenever the snapshot is missing. Each
// snapshot carries the ledger watermark it was read at and never replaces
// a newer one.
package stockstate

import (
	"context"

	"wmscore/engine"
	"wmscore/logging"
	"wmscore/store"
)

// snapshotStore is the cache side of the Manager. RedisStore is the
// production implementation.
type snapshotStore interface {
	SetLocationStock(ctx context.Context, locationID, watermark int64, items []StockItem) (bool, error)
	GetLocationStock(ctx context.Context, locationID int64) ([]StockItem, bool, error)
	UpdateLocationMeta(ctx context.Context, locationID int64, meta *LocationMeta) error
	GetLocationMeta(ctx context.Context, locationID int64) (*LocationMeta, error)
	GetAllLocationIDs(ctx context.Context) ([]int64, error)
	RemoveLocation(ctx context.Context, locationID int64) error
	FlushAll(ctx context.Context) error
}

// Manager provides write-through location state: SQL first, then Redis.
type Manager struct {
	db    *store.DB
	redis snapshotStore
}

// NewManager builds a Manager. With a nil redis every read goes to SQL.
func NewManager(db *store.DB, redis *RedisStore) *Manager {
	m := &Manager{db: db}
	if redis != nil {
		m.redis = redis
	}
	return m
}

// Subscribe keeps the snapshot current from the engine's committed events.
func (m *Manager) Subscribe(bus *engine.EventBus) {
	if m.redis == nil {
		return
	}
	bus.Subscribe(func(evt engine.Event) {
		ev := evt.Payload.(engine.StockChangedEvent)
		m.refreshStock(context.Background(), ev.LocationID)
	}, engine.EventStockChanged)

	bus.Subscribe(func(evt engine.Event) {
		ev := evt.Payload.(engine.ContainerChangedEvent)
		ctx := context.Background()
		for _, id := range []int64{ev.FromLocationID, ev.ToLocationID} {
			if id != 0 {
				m.RefreshLocationMeta(ctx, id)
			}
		}
	}, engine.EventContainerChanged)

	bus.Subscribe(func(evt engine.Event) {
		ev := evt.Payload.(engine.MasterDataChangedEvent)
		if ev.Entity != "location" {
			return
		}
		ctx := context.Background()
		if ev.Action == "deleted" {
			m.redis.RemoveLocation(ctx, ev.EntityID)
			return
		}
		m.RefreshLocationMeta(ctx, ev.EntityID)
		m.refreshStock(ctx, ev.EntityID)
	}, engine.EventMasterDataChanged)
}

// GetLocationState reads location state from Redis, falls back to SQL.
func (m *Manager) GetLocationState(ctx context.Context, locationID int64) (*LocationState, error) {
	if m.redis != nil {
		meta, err := m.redis.GetLocationMeta(ctx, locationID)
		if err == nil && meta != nil {
			items, ok, err := m.redis.GetLocationStock(ctx, locationID)
			if err == nil && ok {
				return stateFrom(meta, items, "redis"), nil
			}
			if err == nil {
				// Snapshot missing: serve SQL and store what was read.
				watermark, items, err := m.loadStock(ctx, locationID)
				if err != nil {
					return nil, err
				}
				m.storeStock(ctx, locationID, watermark, items)
				return stateFrom(meta, items, "sql"), nil
			}
		}
	}
	return m.getLocationStateFromSQL(ctx, locationID)
}

// GetAllLocationStates reads all location states, preferring Redis.
func (m *Manager) GetAllLocationStates(ctx context.Context) (map[int64]*LocationState, error) {
	states := make(map[int64]*LocationState)

	if m.redis != nil {
		ids, err := m.redis.GetAllLocationIDs(ctx)
		if err == nil && len(ids) > 0 {
			for _, id := range ids {
				state, err := m.GetLocationState(ctx, id)
				if err == nil {
					states[id] = state
				}
			}
			return states, nil
		}
	}

	// Fall back to SQL
	locations, err := m.db.ListLocations(ctx)
	if err != nil {
		return nil, err
	}
	for _, l := range locations {
		state, err := m.getLocationStateFromSQL(ctx, l.ID)
		if err != nil {
			continue
		}
		states[l.ID] = state
	}
	return states, nil
}

// SyncRedisFromSQL rebuilds all Redis state from SQL. Called on startup.
func (m *Manager) SyncRedisFromSQL(ctx context.Context) error {
	if m.redis == nil {
		return nil
	}
	if err := m.redis.FlushAll(ctx); err != nil {
		return err
	}
	locations, err := m.db.ListLocations(ctx)
	if err != nil {
		return err
	}
	for _, l := range locations {
		if err := m.RefreshLocationMeta(ctx, l.ID); err != nil {
			logging.Warn(ctx).Err(err).Int64("location_id", l.ID).Msg("stockstate: sync meta")
			continue
		}
		m.refreshStock(ctx, l.ID)
	}
	logging.Info(ctx).Int("locations", len(locations)).Msg("stockstate: synced locations to redis")
	return nil
}

// RefreshLocationMeta updates the Redis meta for a location from SQL.
func (m *Manager) RefreshLocationMeta(ctx context.Context, locationID int64) error {
	if m.redis == nil {
		return nil
	}
	meta, err := m.metaFromSQL(ctx, locationID)
	if err != nil {
		return err
	}
	return m.redis.UpdateLocationMeta(ctx, locationID, meta)
}

func (m *Manager) refreshStock(ctx context.Context, locationID int64) {
	watermark, items, err := m.loadStock(ctx, locationID)
	if err != nil {
		logging.Warn(ctx).Err(err).Int64("location_id", locationID).Msg("stockstate: refresh stock")
		return
	}
	m.storeStock(ctx, locationID, watermark, items)
}

// loadStock reads the watermark before the items, so the items are never
// older than the watermark they are stored under.
func (m *Manager) loadStock(ctx context.Context, locationID int64) (int64, []StockItem, error) {
	watermark, err := m.db.StockWatermark(ctx, locationID)
	if err != nil {
		return 0, nil, err
	}
	items, err := m.itemsFromSQL(ctx, locationID)
	if err != nil {
		return 0, nil, err
	}
	return watermark, items, nil
}

func (m *Manager) storeStock(ctx context.Context, locationID, watermark int64, items []StockItem) {
	applied, err := m.redis.SetLocationStock(ctx, locationID, watermark, items)
	if err != nil {
		logging.Debug(ctx).Err(err).Int64("location_id", locationID).Msg("stockstate: redis set stock")
		return
	}
	if !applied {
		logging.Debug(ctx).Int64("location_id", locationID).Int64("watermark", watermark).Msg("stockstate: newer snapshot kept")
	}
}

func (m *Manager) metaFromSQL(ctx context.Context, locationID int64) (*LocationMeta, error) {
	l, err := m.db.GetLocation(ctx, locationID)
	if err != nil {
		return nil, err
	}
	meta := &LocationMeta{
		LocationID:    l.ID,
		Code:          l.Code,
		WarehouseID:   l.WarehouseID,
		Status:        l.Status,
		BindingStatus: l.BindingStatus,
	}
	c, err := m.db.ContainerAtLocation(ctx, locationID)
	if err != nil {
		return nil, err
	}
	if c != nil {
		meta.ContainerID = &c.ID
		meta.ContainerCode = c.Code
	}
	return meta, nil
}

func (m *Manager) itemsFromSQL(ctx context.Context, locationID int64) ([]StockItem, error) {
	rows, err := m.db.ListStock(ctx, store.StockFilter{LocationID: locationID})
	if err != nil {
		return nil, err
	}
	items := make([]StockItem, 0, len(rows))
	for _, r := range rows {
		if r.Quantity == 0 && r.Reserved == 0 {
			continue
		}
		items = append(items, StockItem{MaterialID: r.MaterialID, Quantity: r.Quantity, Reserved: r.Reserved, Version: r.Version})
	}
	return items, nil
}

func (m *Manager) getLocationStateFromSQL(ctx context.Context, locationID int64) (*LocationState, error) {
	meta, err := m.metaFromSQL(ctx, locationID)
	if err != nil {
		return nil, err
	}
	items, err := m.itemsFromSQL(ctx, locationID)
	if err != nil {
		return nil, err
	}
	return stateFrom(meta, items, "sql"), nil
}

func stateFrom(meta *LocationMeta, items []StockItem, source string) *LocationState {
	if items == nil {
		items = []StockItem{}
	}
	return &LocationState{
		LocationID:    meta.LocationID,
		Code:          meta.Code,
		WarehouseID:   meta.WarehouseID,
		Status:        meta.Status,
		BindingStatus: meta.BindingStatus,
		ContainerID:   meta.ContainerID,
		ContainerCode: meta.ContainerCode,
		Items:         items,
		ItemCount:     len(items),
		Source:        source,
	}
}
