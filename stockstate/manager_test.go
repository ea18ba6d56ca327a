package stockstate

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"wmscore/config"
	"wmscore/engine"
	"wmscore/store"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestLocationStateFromSQL(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	e := engine.New(engine.Config{DB: db})
	m := NewManager(db, nil)
	m.Subscribe(e.Events)

	wh := &store.Warehouse{Code: "WH1"}
	if err := e.CreateWarehouse(ctx, "tester", wh); err != nil {
		t.Fatalf("warehouse: %v", err)
	}
	src := &store.Location{WarehouseID: wh.ID, Code: "SRC"}
	bin := &store.Location{WarehouseID: wh.ID, Code: "BIN"}
	for _, l := range []*store.Location{src, bin} {
		if err := e.CreateLocation(ctx, "tester", l); err != nil {
			t.Fatalf("location: %v", err)
		}
	}
	mat := &store.Material{SKU: "SKU-1", Name: "Widget"}
	if err := e.CreateMaterial(ctx, "tester", mat); err != nil {
		t.Fatalf("material: %v", err)
	}
	if _, err := e.AdjustStock(ctx, "tester", engine.AdjustRequest{MaterialID: mat.ID, LocationID: src.ID, Delta: 4}); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	c, err := e.CreateContainer(ctx, "tester", engine.ContainerRequest{Code: "TOTE-1", LocationID: &bin.ID})
	if err != nil {
		t.Fatalf("container: %v", err)
	}

	state, err := m.GetLocationState(ctx, src.ID)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.Source != "sql" || state.ItemCount != 1 || state.Items[0].Quantity != 4 {
		t.Errorf("src state = %+v", state)
	}
	state, _ = m.GetLocationState(ctx, bin.ID)
	if state.ContainerID == nil || *state.ContainerID != c.ID || state.ContainerCode != "TOTE-1" {
		t.Errorf("bin container = %v/%q, want %d/TOTE-1", state.ContainerID, state.ContainerCode, c.ID)
	}
	if state.Items == nil || state.ItemCount != 0 {
		t.Errorf("bin items = %v, want empty", state.Items)
	}

	all, err := m.GetAllLocationStates(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("states = %d, want 2", len(all))
	}

	if _, err := m.GetLocationState(ctx, 999); !store.IsKind(err, store.KindNotFound) {
		t.Errorf("missing location err = %v, want NotFound", err)
	}
}

// memStore is an in-memory snapshotStore with the same watermark rule as
// the Redis script.
type memStore struct {
	mu    sync.Mutex
	stock map[int64]memSnapshot
	meta  map[int64]*LocationMeta
}

type memSnapshot struct {
	watermark int64
	items     []StockItem
}

func newMemStore() *memStore {
	return &memStore{stock: map[int64]memSnapshot{}, meta: map[int64]*LocationMeta{}}
}

func (s *memStore) SetLocationStock(_ context.Context, id, watermark int64, items []StockItem) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.stock[id]; ok && cur.watermark > watermark {
		return false, nil
	}
	s.stock[id] = memSnapshot{watermark: watermark, items: items}
	return true, nil
}

func (s *memStore) GetLocationStock(_ context.Context, id int64) ([]StockItem, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.stock[id]
	return cur.items, ok, nil
}

func (s *memStore) UpdateLocationMeta(_ context.Context, id int64, meta *LocationMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta[id] = meta
	return nil
}

func (s *memStore) GetLocationMeta(_ context.Context, id int64) (*LocationMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta[id], nil
}

func (s *memStore) GetAllLocationIDs(context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.meta))
	for id := range s.meta {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *memStore) RemoveLocation(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stock, id)
	delete(s.meta, id)
	return nil
}

func (s *memStore) FlushAll(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock = map[int64]memSnapshot{}
	s.meta = map[int64]*LocationMeta{}
	return nil
}

type cachedFixture struct {
	e   *engine.Engine
	m   *Manager
	mem *memStore
	src *store.Location
	mat *store.Material
}

func newCachedFixture(t *testing.T) cachedFixture {
	t.Helper()
	db := testDB(t)
	ctx := context.Background()
	mem := newMemStore()
	e := engine.New(engine.Config{DB: db})
	m := &Manager{db: db, redis: mem}
	m.Subscribe(e.Events)

	wh := &store.Warehouse{Code: "WH1"}
	if err := e.CreateWarehouse(ctx, "tester", wh); err != nil {
		t.Fatalf("warehouse: %v", err)
	}
	src := &store.Location{WarehouseID: wh.ID, Code: "SRC"}
	if err := e.CreateLocation(ctx, "tester", src); err != nil {
		t.Fatalf("location: %v", err)
	}
	mat := &store.Material{SKU: "SKU-1", Name: "Widget"}
	if err := e.CreateMaterial(ctx, "tester", mat); err != nil {
		t.Fatalf("material: %v", err)
	}
	return cachedFixture{e: e, m: m, mem: mem, src: src, mat: mat}
}

func (f cachedFixture) adjust(t *testing.T, delta int64) {
	t.Helper()
	if _, err := f.e.AdjustStock(context.Background(), "tester", engine.AdjustRequest{
		MaterialID: f.mat.ID, LocationID: f.src.ID, Delta: delta,
	}); err != nil {
		t.Fatalf("adjust %d: %v", delta, err)
	}
}

func TestOlderSnapshotCannotOverwriteNewer(t *testing.T) {
	f := newCachedFixture(t)
	ctx := context.Background()

	f.adjust(t, 5)
	// A refresh that read before the next change finishes last.
	staleMark, staleItems, err := f.m.loadStock(ctx, f.src.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	f.adjust(t, 1)
	f.m.storeStock(ctx, f.src.ID, staleMark, staleItems)

	state, err := f.m.GetLocationState(ctx, f.src.ID)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.Source != "redis" || state.ItemCount != 1 || state.Items[0].Quantity != 6 {
		t.Errorf("state = %+v, want 6 from redis", state)
	}
}

func TestMissingSnapshotIsReloaded(t *testing.T) {
	f := newCachedFixture(t)
	ctx := context.Background()

	f.adjust(t, 3)
	f.mem.mu.Lock()
	delete(f.mem.stock, f.src.ID)
	f.mem.mu.Unlock()

	state, err := f.m.GetLocationState(ctx, f.src.ID)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.Source != "sql" || state.Items[0].Quantity != 3 {
		t.Errorf("first read = %+v, want 3 from sql", state)
	}
	state, _ = f.m.GetLocationState(ctx, f.src.ID)
	if state.Source != "redis" || state.Items[0].Quantity != 3 {
		t.Errorf("second read = %+v, want 3 from redis", state)
	}
}

func TestStockWatermarkGrows(t *testing.T) {
	f := newCachedFixture(t)
	ctx := context.Background()
	db := f.e.DB()

	before, err := db.StockWatermark(ctx, f.src.ID)
	if err != nil {
		t.Fatalf("watermark: %v", err)
	}
	if before != 0 {
		t.Errorf("empty watermark = %d, want 0", before)
	}
	f.adjust(t, 2)
	after, _ := db.StockWatermark(ctx, f.src.ID)
	if after <= before {
		t.Errorf("watermark after adjust = %d, want > %d", after, before)
	}
	f.adjust(t, -1)
	if again, _ := db.StockWatermark(ctx, f.src.ID); again <= after {
		t.Errorf("watermark after second adjust = %d, want > %d", again, after)
	}
}
