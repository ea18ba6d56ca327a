package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"wmscore/config"
)

// testDB creates a temporary SQLite database for testing.
func testDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	db, err := Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: dbPath},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
		os.Remove(dbPath)
	})
	return db
}

type fixture struct {
	wh   *Warehouse
	src  *Location
	dst  *Location
	mat  *Material
	mat2 *Material
}

// seed creates one warehouse with two active locations and two materials.
func seed(t *testing.T, db *DB) fixture {
	t.Helper()
	ctx := context.Background()
	f := fixture{
		wh:   &Warehouse{Code: "WH1", Name: "Main"},
		mat:  &Material{SKU: "SKU-1", Name: "Widget"},
		mat2: &Material{SKU: "SKU-2", Name: "Gadget"},
	}
	if err := db.CreateWarehouse(ctx, f.wh); err != nil {
		t.Fatalf("create warehouse: %v", err)
	}
	f.src = &Location{WarehouseID: f.wh.ID, Code: "SRC"}
	f.dst = &Location{WarehouseID: f.wh.ID, Code: "DST"}
	for _, l := range []*Location{f.src, f.dst} {
		if err := db.CreateLocation(ctx, l); err != nil {
			t.Fatalf("create location %s: %v", l.Code, err)
		}
	}
	for _, m := range []*Material{f.mat, f.mat2} {
		if err := db.CreateMaterial(ctx, m); err != nil {
			t.Fatalf("create material %s: %v", m.SKU, err)
		}
	}
	return f
}

// --- Master data ---

func TestWarehouseAndLocationCRUD(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	f := seed(t, db)

	dup := &Warehouse{Code: "WH1"}
	if err := db.CreateWarehouse(ctx, dup); !IsKind(err, KindConflict) {
		t.Errorf("duplicate warehouse err = %v, want Conflict", err)
	}

	got, err := db.GetLocation(ctx, f.src.ID)
	if err != nil {
		t.Fatalf("get location: %v", err)
	}
	if got.Status != LocationActive {
		t.Errorf("Status = %q, want %q", got.Status, LocationActive)
	}
	if got.BindingStatus != BindingUnbound {
		t.Errorf("BindingStatus = %q, want %q", got.BindingStatus, BindingUnbound)
	}

	if err := db.CreateLocation(ctx, &Location{WarehouseID: f.wh.ID, Code: "SRC"}); !IsKind(err, KindConflict) {
		t.Errorf("duplicate location err = %v, want Conflict", err)
	}
	if err := db.CreateLocation(ctx, &Location{WarehouseID: 999, Code: "X"}); !IsKind(err, KindNotFound) {
		t.Errorf("location in missing warehouse err = %v, want NotFound", err)
	}

	if err := db.SetLocationStatus(ctx, f.src.ID, LocationDisabled); err != nil {
		t.Fatalf("disable: %v", err)
	}
	got, _ = db.GetLocation(ctx, f.src.ID)
	if got.Operable() {
		t.Error("disabled location should not be operable")
	}
	if err := db.SetLocationStatus(ctx, f.src.ID, "BROKEN"); !IsKind(err, KindInvalid) {
		t.Errorf("bad status err = %v, want Invalid", err)
	}

	locs, err := db.ListLocations(ctx)
	if err != nil {
		t.Fatalf("list locations: %v", err)
	}
	if len(locs) != 2 {
		t.Errorf("len(locations) = %d, want 2", len(locs))
	}
}

func TestDeleteGuards(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	f := seed(t, db)

	if err := db.DeleteWarehouse(ctx, f.wh.ID); !IsKind(err, KindConflict) {
		t.Errorf("delete warehouse with locations err = %v, want Conflict", err)
	}

	err := db.WithTx(ctx, "test", func(tx *Tx) error {
		_, err := tx.AdjustStock(ctx, f.mat.ID, f.src.ID, 5, MoveAdjust, MoveMeta{})
		return err
	})
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if err := db.DeleteLocation(ctx, f.src.ID); !IsKind(err, KindConflict) {
		t.Errorf("delete location with stock err = %v, want Conflict", err)
	}

	c := &Container{Code: "C1", LocationID: &f.dst.ID}
	if err := db.WithTx(ctx, "test", func(tx *Tx) error { return tx.CreateContainer(ctx, c, "tester") }); err != nil {
		t.Fatalf("create container: %v", err)
	}
	if err := db.DeleteLocation(ctx, f.dst.ID); !IsKind(err, KindConflict) {
		t.Errorf("delete location with container err = %v, want Conflict", err)
	}

	empty := &Location{WarehouseID: f.wh.ID, Code: "EMPTY"}
	db.CreateLocation(ctx, empty)
	if err := db.DeleteLocation(ctx, empty.ID); err != nil {
		t.Errorf("delete empty location: %v", err)
	}
	if err := db.DeleteLocation(ctx, empty.ID); !IsKind(err, KindNotFound) {
		t.Errorf("delete missing location err = %v, want NotFound", err)
	}
}

func TestMaterialDelete(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	f := seed(t, db)

	if err := db.CreateMaterial(ctx, &Material{SKU: "SKU-1"}); !IsKind(err, KindConflict) {
		t.Errorf("duplicate sku err = %v, want Conflict", err)
	}

	// Unreferenced without force: deactivated.
	out, err := db.DeleteMaterial(ctx, f.mat2.ID, false)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if out.Kind != SoftDeleted || out.Reason != "soft delete by default" {
		t.Errorf("outcome = %+v, want soft delete by default", out)
	}
	m, _ := db.GetMaterial(ctx, f.mat2.ID)
	if m.Active {
		t.Error("material should be inactive")
	}
	active, _ := db.ListMaterials(ctx, false)
	if len(active) != 1 {
		t.Errorf("active materials = %d, want 1", len(active))
	}

	// Unreferenced with force: removed.
	out, err = db.DeleteMaterial(ctx, f.mat2.ID, true)
	if err != nil {
		t.Fatalf("force delete: %v", err)
	}
	if out.Kind != HardDeleted {
		t.Errorf("Kind = %q, want %q", out.Kind, HardDeleted)
	}
	if _, err := db.GetMaterial(ctx, f.mat2.ID); !IsKind(err, KindNotFound) {
		t.Errorf("get deleted material err = %v, want NotFound", err)
	}

	// Holding stock: kept even with force.
	db.WithTx(ctx, "test", func(tx *Tx) error {
		_, err := tx.AdjustStock(ctx, f.mat.ID, f.src.ID, 1, MoveAdjust, MoveMeta{})
		return err
	})
	out, err = db.DeleteMaterial(ctx, f.mat.ID, true)
	if err != nil {
		t.Fatalf("delete stocked: %v", err)
	}
	if out.Kind != SoftDeleted || out.Reason != "inventory exists" {
		t.Errorf("outcome = %+v, want soft delete for inventory", out)
	}
}

func TestDecideMaterialDelete(t *testing.T) {
	tests := []struct {
		inv, lines, force bool
		kind              MaterialDeleteKind
		reason            string
	}{
		{true, false, true, SoftDeleted, "inventory exists"},
		{true, true, false, SoftDeleted, "inventory exists"},
		{false, true, true, SoftDeleted, "order lines exist"},
		{false, false, false, SoftDeleted, "soft delete by default"},
		{false, false, true, HardDeleted, ""},
	}
	for _, tt := range tests {
		got := DecideMaterialDelete(tt.inv, tt.lines, tt.force)
		if got.Kind != tt.kind || got.Reason != tt.reason {
			t.Errorf("DecideMaterialDelete(%v, %v, %v) = %+v, want {%s %s}", tt.inv, tt.lines, tt.force, got, tt.kind, tt.reason)
		}
	}
}

// --- Operation logs ---

func TestOperationLogs(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	orderID := int64(7)
	after := `{"status":"RECEIVED"}`
	entries := []*OperationLog{
		{Module: "inbound", Action: "create", Entity: "order", EntityID: &orderID, Operator: "admin", TraceID: "t-1"},
		{Module: "inbound", Action: "receive", Entity: "order", EntityID: &orderID, Operator: "admin", AfterValue: &after, TraceID: "t-2"},
		{Module: "inventory", Action: "adjust", Entity: "stock", Operator: "bob"},
	}
	for _, e := range entries {
		if err := db.AppendOperationLog(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	all, err := db.ListOperationLogs(ctx, OperationLogFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	if all[0].Action != "adjust" {
		t.Errorf("first action = %q, want %q", all[0].Action, "adjust")
	}

	byOrder, _ := db.ListOperationLogs(ctx, OperationLogFilter{Entity: "order", EntityID: orderID})
	if len(byOrder) != 2 {
		t.Errorf("order entries = %d, want 2", len(byOrder))
	}
	if byOrder[0].AfterValue == nil || *byOrder[0].AfterValue != after {
		t.Errorf("AfterValue = %v, want %s", byOrder[0].AfterValue, after)
	}
	if byOrder[0].BeforeValue != nil {
		t.Errorf("BeforeValue = %v, want nil", *byOrder[0].BeforeValue)
	}

	byTrace, _ := db.ListOperationLogs(ctx, OperationLogFilter{TraceID: "t-1"})
	if len(byTrace) != 1 {
		t.Errorf("trace entries = %d, want 1", len(byTrace))
	}
}

// --- Idempotency records ---

func TestIdempotencyRecordLifecycle(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	scope := IdempotencyScope{UserID: 1, Method: "POST", Path: "/api/inventory/adjust", Key: "k1"}

	rec, err := db.GetIdempotencyRecord(ctx, scope)
	if err != nil || rec != nil {
		t.Fatalf("get before insert = %v, %v; want nil, nil", rec, err)
	}

	ok, err := db.InsertIdempotencyLock(ctx, scope, "hash-a")
	if err != nil || !ok {
		t.Fatalf("first insert = %v, %v; want true", ok, err)
	}
	ok, err = db.InsertIdempotencyLock(ctx, scope, "hash-a")
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if ok {
		t.Error("second insert should report the scope as taken")
	}

	// Another user may use the same key.
	other := scope
	other.UserID = 2
	if ok, _ := db.InsertIdempotencyLock(ctx, other, "hash-b"); !ok {
		t.Error("same key for another user should insert")
	}

	if err := db.FinalizeIdempotency(ctx, scope, "hash-a", 200, []byte(`{"status":"ok"}`)); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	// Release after finalize must keep the record.
	if err := db.ReleaseIdempotencyLock(ctx, scope); err != nil {
		t.Fatalf("release: %v", err)
	}
	rec, err = db.GetIdempotencyRecord(ctx, scope)
	if err != nil || rec == nil {
		t.Fatalf("get after finalize = %v, %v", rec, err)
	}
	if rec.StatusCode != 200 {
		t.Errorf("StatusCode = %d, want 200", rec.StatusCode)
	}
	if string(rec.ResponseBody) != `{"status":"ok"}` {
		t.Errorf("ResponseBody = %s", rec.ResponseBody)
	}

	// An in-flight record is released.
	if err := db.ReleaseIdempotencyLock(ctx, other); err != nil {
		t.Fatalf("release other: %v", err)
	}
	if rec, _ := db.GetIdempotencyRecord(ctx, other); rec != nil {
		t.Error("in-flight record should be deleted on release")
	}

	n, err := db.PurgeIdempotencyRecords(ctx, time.Now().Add(time.Hour), time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Errorf("purged = %d, want 1", n)
	}
}

func TestPurgeRemovesOrphanedLocks(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	done := IdempotencyScope{UserID: 1, Method: "POST", Path: "/api/inventory/adjust", Key: "done"}
	orphan := IdempotencyScope{UserID: 1, Method: "POST", Path: "/api/inventory/adjust", Key: "orphan"}
	for _, s := range []IdempotencyScope{done, orphan} {
		if ok, err := db.InsertIdempotencyLock(ctx, s, "hash"); err != nil || !ok {
			t.Fatalf("insert %s = %v, %v", s.Key, ok, err)
		}
	}
	if err := db.FinalizeIdempotency(ctx, done, "hash", 200, []byte(`{}`)); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	// Within the grace period the in-flight record survives.
	n, err := db.PurgeIdempotencyRecords(ctx, time.Now().Add(-time.Hour), time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 0 {
		t.Errorf("purged = %d, want 0", n)
	}

	n, err = db.PurgeIdempotencyRecords(ctx, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("purge stale: %v", err)
	}
	if n != 1 {
		t.Errorf("purged stale = %d, want 1", n)
	}
	if rec, _ := db.GetIdempotencyRecord(ctx, orphan); rec != nil {
		t.Errorf("orphaned lock still present: %+v", rec)
	}
	if rec, _ := db.GetIdempotencyRecord(ctx, done); rec == nil {
		t.Error("finalized record inside retention was purged")
	}
	if ok, err := db.InsertIdempotencyLock(ctx, orphan, "hash"); err != nil || !ok {
		t.Errorf("reclaim orphaned key = %v, %v; want true", ok, err)
	}
}

// --- Users and roles ---

func TestEnsureAdminAndPermissions(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := db.EnsureAdmin(ctx, "hash"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	// Second call is a no-op.
	if err := db.EnsureAdmin(ctx, "other"); err != nil {
		t.Fatalf("ensure admin again: %v", err)
	}

	admin, err := db.GetUserByName(ctx, "admin")
	if err != nil {
		t.Fatalf("get admin: %v", err)
	}
	if admin.PasswordHash != "hash" {
		t.Errorf("PasswordHash = %q, want %q", admin.PasswordHash, "hash")
	}
	perms, err := db.UserPermissions(ctx, admin.ID)
	if err != nil {
		t.Fatalf("permissions: %v", err)
	}
	if len(perms) != len(PermissionCatalog) {
		t.Errorf("admin permissions = %d, want %d", len(perms), len(PermissionCatalog))
	}

	role := &Role{Name: "viewer", Permissions: []string{PermInventoryRead, PermOrdersRead}}
	if err := db.CreateRole(ctx, role); err != nil {
		t.Fatalf("create role: %v", err)
	}
	if err := db.CreateRole(ctx, &Role{Name: "bad", Permissions: []string{"nope"}}); !IsKind(err, KindInvalid) {
		t.Errorf("unknown permission err = %v, want Invalid", err)
	}
	u := &User{Username: "viewer", PasswordHash: "x", RoleID: &role.ID}
	if err := db.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	perms, _ = db.UserPermissions(ctx, u.ID)
	if len(perms) != 2 || perms[0] != PermInventoryRead || perms[1] != PermOrdersRead {
		t.Errorf("viewer permissions = %v", perms)
	}

	roles, err := db.ListRoles(ctx)
	if err != nil {
		t.Fatalf("list roles: %v", err)
	}
	if len(roles) != 2 {
		t.Errorf("roles = %d, want 2", len(roles))
	}
}

// --- Dialect tests ---

func TestRebind(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"SELECT * FROM t WHERE a=? AND b=?", "SELECT * FROM t WHERE a=$1 AND b=$2"},
		{"INSERT INTO t (a) VALUES (?)", "INSERT INTO t (a) VALUES ($1)"},
		{"SELECT 1", "SELECT 1"},
	}
	for _, tt := range tests {
		got := Rebind(tt.input)
		if got != tt.want {
			t.Errorf("Rebind(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestKindOf(t *testing.T) {
	err := Errorf(KindLocationOccupied, "taken")
	wrapped := fmt.Errorf("bind: %w", err)
	if KindOf(wrapped) != KindLocationOccupied {
		t.Errorf("KindOf = %q, want %q", KindOf(wrapped), KindLocationOccupied)
	}
	if Reason(wrapped) != "taken" {
		t.Errorf("Reason = %q, want %q", Reason(wrapped), "taken")
	}
	if KindOf(os.ErrNotExist) != "" {
		t.Error("plain errors have no kind")
	}
}
