package store

import (
	"context"
	"testing"
)

func inTx(t *testing.T, db *DB, fn func(ctx context.Context, tx *Tx) error) error {
	t.Helper()
	ctx := context.Background()
	return db.WithTx(ctx, "test", func(tx *Tx) error { return fn(ctx, tx) })
}

func TestContainerBindUnbindMove(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	f := seed(t, db)

	c1 := &Container{Code: "TOTE-1"}
	c2 := &Container{Code: "TOTE-2", LocationID: &f.src.ID}
	err := inTx(t, db, func(ctx context.Context, tx *Tx) error {
		if err := tx.CreateContainer(ctx, c1, "tester"); err != nil {
			return err
		}
		return tx.CreateContainer(ctx, c2, "tester")
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c1.Status != ContainerUnbound || c2.Status != ContainerBound {
		t.Errorf("statuses = %s/%s, want UNBOUND/BOUND", c1.Status, c2.Status)
	}
	if loc, _ := db.GetLocation(ctx, f.src.ID); loc.BindingStatus != BindingBound {
		t.Errorf("src binding = %s, want BOUND", loc.BindingStatus)
	}

	// src is held by c2.
	err = inTx(t, db, func(ctx context.Context, tx *Tx) error {
		_, err := tx.BindContainer(ctx, c1.ID, f.src.ID, "tester")
		return err
	})
	if !IsKind(err, KindLocationOccupied) {
		t.Errorf("bind to occupied err = %v, want LocationOccupied", err)
	}

	err = inTx(t, db, func(ctx context.Context, tx *Tx) error {
		_, err := tx.BindContainer(ctx, c1.ID, f.dst.ID, "tester")
		return err
	})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}

	// Move c2 into a fresh location.
	spare := &Location{WarehouseID: f.wh.ID, Code: "SPARE"}
	db.CreateLocation(ctx, spare)
	err = inTx(t, db, func(ctx context.Context, tx *Tx) error {
		_, err := tx.MoveContainer(ctx, c2.ID, spare.ID, "", "tester")
		return err
	})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if loc, _ := db.GetLocation(ctx, f.src.ID); loc.BindingStatus != BindingUnbound {
		t.Errorf("src binding after move = %s, want UNBOUND", loc.BindingStatus)
	}
	if loc, _ := db.GetLocation(ctx, spare.ID); loc.BindingStatus != BindingBound {
		t.Errorf("spare binding after move = %s, want BOUND", loc.BindingStatus)
	}

	var changed bool
	err = inTx(t, db, func(ctx context.Context, tx *Tx) error {
		var err error
		changed, err = tx.UnbindContainer(ctx, c2.ID, "tester")
		return err
	})
	if err != nil || !changed {
		t.Fatalf("unbind = %v, %v; want true", changed, err)
	}
	err = inTx(t, db, func(ctx context.Context, tx *Tx) error {
		var err error
		changed, err = tx.UnbindContainer(ctx, c2.ID, "tester")
		return err
	})
	if err != nil || changed {
		t.Errorf("second unbind = %v, %v; want false", changed, err)
	}

	// Moving an unbound container is a transition error.
	err = inTx(t, db, func(ctx context.Context, tx *Tx) error {
		_, err := tx.MoveContainer(ctx, c2.ID, f.src.ID, "", "tester")
		return err
	})
	if !IsKind(err, KindInvalidTransition) {
		t.Errorf("move unbound err = %v, want InvalidTransition", err)
	}

	moves, err := db.ListContainerMoves(ctx, c2.ID, 0)
	if err != nil {
		t.Fatalf("list moves: %v", err)
	}
	notes := []string{}
	for _, m := range moves {
		notes = append(notes, m.Note)
	}
	want := []string{"unbind", "move", "bind_on_create"}
	if len(notes) != len(want) {
		t.Fatalf("notes = %v, want %v", notes, want)
	}
	for i := range want {
		if notes[i] != want[i] {
			t.Errorf("notes[%d] = %q, want %q", i, notes[i], want[i])
		}
	}
	if moves[0].ToLocationID != nil {
		t.Errorf("unbind to_location = %d, want nil", *moves[0].ToLocationID)
	}
}

func TestBindRequiresOperableLocation(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	f := seed(t, db)
	db.SetLocationStatus(ctx, f.dst.ID, LocationDisabled)

	c := &Container{Code: "TOTE-1"}
	inTx(t, db, func(ctx context.Context, tx *Tx) error { return tx.CreateContainer(ctx, c, "") })

	err := inTx(t, db, func(ctx context.Context, tx *Tx) error {
		_, err := tx.BindContainer(ctx, c.ID, f.dst.ID, "")
		return err
	})
	if !IsKind(err, KindLocationNotOperable) {
		t.Errorf("bind disabled err = %v, want LocationNotOperable", err)
	}
	err = inTx(t, db, func(ctx context.Context, tx *Tx) error {
		_, err := tx.BindContainer(ctx, c.ID, 999, "")
		return err
	})
	if !IsKind(err, KindNotFound) {
		t.Errorf("bind missing location err = %v, want NotFound", err)
	}
	err = inTx(t, db, func(ctx context.Context, tx *Tx) error {
		_, err := tx.BindContainer(ctx, 999, f.src.ID, "")
		return err
	})
	if !IsKind(err, KindNotFound) {
		t.Errorf("bind missing container err = %v, want NotFound", err)
	}
}

func TestContainerStockMirror(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	f := seed(t, db)

	c := &Container{Code: "TOTE-1", LocationID: &f.src.ID}
	inTx(t, db, func(ctx context.Context, tx *Tx) error { return tx.CreateContainer(ctx, c, "") })

	var cQty, lQty int64
	err := inTx(t, db, func(ctx context.Context, tx *Tx) error {
		var err error
		cQty, lQty, err = tx.AdjustContainerStock(ctx, c.ID, f.mat.ID, 5, "count", MoveMeta{Operator: "tester"})
		return err
	})
	if err != nil {
		t.Fatalf("adjust container: %v", err)
	}
	if cQty != 5 || lQty != 5 {
		t.Errorf("quantities = %d/%d, want 5/5", cQty, lQty)
	}

	err = inTx(t, db, func(ctx context.Context, tx *Tx) error {
		var err error
		cQty, lQty, err = tx.AdjustContainerStock(ctx, c.ID, f.mat.ID, -2, "damage", MoveMeta{})
		return err
	})
	if err != nil {
		t.Fatalf("adjust container -2: %v", err)
	}
	rows, _ := db.ListContainerStock(ctx, ContainerStockFilter{ContainerID: c.ID})
	if len(rows) != 1 || rows[0].Quantity != 3 || rows[0].Version != 2 {
		t.Fatalf("container rows = %+v, want one row qty 3 version 2", rows)
	}
	if got := stockOf(t, db, f.mat.ID, f.src.ID).Quantity; got != rows[0].Quantity {
		t.Errorf("location qty = %d, container qty = %d; want equal", got, rows[0].Quantity)
	}

	// Overdraw leaves both ledgers untouched.
	err = inTx(t, db, func(ctx context.Context, tx *Tx) error {
		_, _, err := tx.AdjustContainerStock(ctx, c.ID, f.mat.ID, -4, "", MoveMeta{})
		return err
	})
	if !IsKind(err, KindInvalidQuantity) {
		t.Errorf("overdraw err = %v, want InvalidQuantity", err)
	}
	if got := stockOf(t, db, f.mat.ID, f.src.ID).Quantity; got != 3 {
		t.Errorf("location qty after rejected adjust = %d, want 3", got)
	}

	moves, _ := db.ListStockMoves(ctx, StockMoveFilter{MaterialID: f.mat.ID})
	if len(moves) != 2 || moves[0].MoveType != "CONTAINER_ADJUST:damage" || moves[1].MoveType != "CONTAINER_ADJUST:count" {
		t.Errorf("move types = %v", moves)
	}

	// Holding stock blocks delete; so does being bound.
	err = inTx(t, db, func(ctx context.Context, tx *Tx) error {
		_, err := tx.DeleteContainer(ctx, c.ID)
		return err
	})
	if !IsKind(err, KindConflict) {
		t.Errorf("delete bound err = %v, want Conflict", err)
	}
	inTx(t, db, func(ctx context.Context, tx *Tx) error { _, err := tx.UnbindContainer(ctx, c.ID, ""); return err })
	err = inTx(t, db, func(ctx context.Context, tx *Tx) error {
		_, err := tx.DeleteContainer(ctx, c.ID)
		return err
	})
	if !IsKind(err, KindConflict) {
		t.Errorf("delete stocked err = %v, want Conflict", err)
	}

	// Adjusting an unbound container is refused.
	err = inTx(t, db, func(ctx context.Context, tx *Tx) error {
		_, _, err := tx.AdjustContainerStock(ctx, c.ID, f.mat.ID, -3, "", MoveMeta{})
		return err
	})
	if !IsKind(err, KindInvalidTransition) {
		t.Errorf("adjust unbound err = %v, want InvalidTransition", err)
	}
}

func TestDeleteEmptyContainer(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seed(t, db)

	c := &Container{Code: "TOTE-1"}
	inTx(t, db, func(ctx context.Context, tx *Tx) error { return tx.CreateContainer(ctx, c, "") })
	err := inTx(t, db, func(ctx context.Context, tx *Tx) error {
		_, err := tx.DeleteContainer(ctx, c.ID)
		return err
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.GetContainer(ctx, c.ID); !IsKind(err, KindNotFound) {
		t.Errorf("get deleted err = %v, want NotFound", err)
	}

	dup := &Container{Code: "TOTE-2"}
	inTx(t, db, func(ctx context.Context, tx *Tx) error { return tx.CreateContainer(ctx, dup, "") })
	err = inTx(t, db, func(ctx context.Context, tx *Tx) error {
		return tx.CreateContainer(ctx, &Container{Code: "TOTE-2"}, "")
	})
	if !IsKind(err, KindConflict) {
		t.Errorf("duplicate code err = %v, want Conflict", err)
	}
	list, _ := db.ListContainers(ctx)
	if len(list) != 1 {
		t.Errorf("containers = %d, want 1", len(list))
	}
}
