package store

import (
	"context"
	"testing"
)

func adjust(t *testing.T, db *DB, materialID, locationID, delta int64) (int64, error) {
	t.Helper()
	var qty int64
	err := db.WithTx(context.Background(), "test_adjust", func(tx *Tx) error {
		var err error
		qty, err = tx.AdjustStock(context.Background(), materialID, locationID, delta, MoveAdjust, MoveMeta{Operator: "tester"})
		return err
	})
	return qty, err
}

func stockOf(t *testing.T, db *DB, materialID, locationID int64) *StockRow {
	t.Helper()
	row, err := db.GetStockRow(context.Background(), materialID, locationID)
	if err != nil {
		t.Fatalf("get stock row: %v", err)
	}
	return row
}

func TestAdjustStock(t *testing.T) {
	db := testDB(t)
	f := seed(t, db)

	qty, err := adjust(t, db, f.mat.ID, f.src.ID, 10)
	if err != nil {
		t.Fatalf("adjust +10: %v", err)
	}
	if qty != 10 {
		t.Errorf("qty = %d, want 10", qty)
	}
	qty, err = adjust(t, db, f.mat.ID, f.src.ID, -3)
	if err != nil {
		t.Fatalf("adjust -3: %v", err)
	}
	if qty != 7 {
		t.Errorf("qty = %d, want 7", qty)
	}

	row := stockOf(t, db, f.mat.ID, f.src.ID)
	if row.Version != 2 {
		t.Errorf("Version = %d, want 2", row.Version)
	}

	// Driving quantity negative rolls back and leaves the row untouched.
	if _, err := adjust(t, db, f.mat.ID, f.src.ID, -8); !IsKind(err, KindInvalidQuantity) {
		t.Errorf("adjust -8 err = %v, want InvalidQuantity", err)
	}
	row = stockOf(t, db, f.mat.ID, f.src.ID)
	if row.Quantity != 7 || row.Version != 2 {
		t.Errorf("after rejected adjust: qty=%d version=%d, want 7 and 2", row.Quantity, row.Version)
	}

	moves, err := db.ListStockMoves(context.Background(), StockMoveFilter{MaterialID: f.mat.ID})
	if err != nil {
		t.Fatalf("list moves: %v", err)
	}
	if len(moves) != 2 {
		t.Fatalf("moves = %d, want 2", len(moves))
	}
	// Newest first: the -3 adjust records the source side with a positive qty.
	if moves[0].FromLocationID == nil || *moves[0].FromLocationID != f.src.ID || moves[0].ToLocationID != nil {
		t.Errorf("negative move locations = %v -> %v", moves[0].FromLocationID, moves[0].ToLocationID)
	}
	if moves[0].Qty != 3 {
		t.Errorf("negative move qty = %d, want 3", moves[0].Qty)
	}
	if moves[1].ToLocationID == nil || *moves[1].ToLocationID != f.src.ID || moves[1].FromLocationID != nil {
		t.Errorf("positive move locations = %v -> %v", moves[1].FromLocationID, moves[1].ToLocationID)
	}
	if moves[1].Operator != "tester" {
		t.Errorf("Operator = %q, want %q", moves[1].Operator, "tester")
	}
}

func TestAdjustCannotDipIntoReserved(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	f := seed(t, db)
	adjust(t, db, f.mat.ID, f.src.ID, 10)

	err := db.WithTx(ctx, "test", func(tx *Tx) error {
		_, err := tx.ReserveStock(ctx, f.mat.ID, f.src.ID, 8, ReserveExact, MoveMeta{})
		return err
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := adjust(t, db, f.mat.ID, f.src.ID, -3); !IsKind(err, KindInvalidQuantity) {
		t.Errorf("adjust below reserved err = %v, want InvalidQuantity", err)
	}
	if _, err := adjust(t, db, f.mat.ID, f.src.ID, -2); err != nil {
		t.Errorf("adjust down to reserved: %v", err)
	}
}

func TestReserveModes(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name      string
		mode      ReserveMode
		want      int64
		wantErr   Kind
		wantTotal int64
	}{
		{"exact within available", ReserveExact, 0, KindInvalidQuantity, 0},
		{"partial clamps", ReservePartial, 5, "", 5},
		{"force exceeds on-hand", ReserveForce, 8, "", 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testDB(t)
			f := seed(t, db)
			adjust(t, db, f.mat.ID, f.src.ID, 5)

			var got int64
			err := db.WithTx(ctx, "test", func(tx *Tx) error {
				var err error
				got, err = tx.ReserveStock(ctx, f.mat.ID, f.src.ID, 8, tt.mode, MoveMeta{})
				return err
			})
			if KindOf(err) != tt.wantErr {
				t.Fatalf("err = %v, want kind %q", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("reserved = %d, want %d", got, tt.want)
			}
			row := stockOf(t, db, f.mat.ID, f.src.ID)
			if row.Reserved != tt.wantTotal {
				t.Errorf("row reserved = %d, want %d", row.Reserved, tt.wantTotal)
			}
		})
	}
}

func TestReleaseReserved(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	f := seed(t, db)
	adjust(t, db, f.mat.ID, f.src.ID, 5)

	err := db.WithTx(ctx, "test", func(tx *Tx) error {
		if _, err := tx.ReserveStock(ctx, f.mat.ID, f.src.ID, 4, ReserveExact, MoveMeta{}); err != nil {
			return err
		}
		return tx.ReleaseReserved(ctx, f.mat.ID, f.src.ID, 3, MoveOutboundRelease, MoveMeta{})
	})
	if err != nil {
		t.Fatalf("reserve/release: %v", err)
	}
	row := stockOf(t, db, f.mat.ID, f.src.ID)
	if row.Reserved != 1 {
		t.Errorf("Reserved = %d, want 1", row.Reserved)
	}

	err = db.WithTx(ctx, "test", func(tx *Tx) error {
		return tx.ReleaseReserved(ctx, f.mat.ID, f.src.ID, 2, MoveOutboundRelease, MoveMeta{})
	})
	if !IsKind(err, KindInvalidQuantity) {
		t.Errorf("over-release err = %v, want InvalidQuantity", err)
	}
}

func TestTransferStock(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	f := seed(t, db)
	adjust(t, db, f.mat.ID, f.dst.ID, 6)

	// dst has the higher id; transfer from the higher to the lower location.
	err := db.WithTx(ctx, "test", func(tx *Tx) error {
		return tx.TransferStock(ctx, f.mat.ID, f.dst.ID, f.src.ID, 4, MoveOutboundPick, MoveMeta{})
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := stockOf(t, db, f.mat.ID, f.dst.ID).Quantity; got != 2 {
		t.Errorf("dst qty = %d, want 2", got)
	}
	if got := stockOf(t, db, f.mat.ID, f.src.ID).Quantity; got != 4 {
		t.Errorf("src qty = %d, want 4", got)
	}

	err = db.WithTx(ctx, "test", func(tx *Tx) error {
		return tx.TransferStock(ctx, f.mat.ID, f.dst.ID, f.src.ID, 3, MoveOutboundPick, MoveMeta{})
	})
	if !IsKind(err, KindInvalidQuantity) {
		t.Errorf("overdraw transfer err = %v, want InvalidQuantity", err)
	}
	err = db.WithTx(ctx, "test", func(tx *Tx) error {
		return tx.TransferStock(ctx, f.mat.ID, f.src.ID, f.src.ID, 1, MoveOutboundPick, MoveMeta{})
	})
	if !IsKind(err, KindInvalid) {
		t.Errorf("self transfer err = %v, want Invalid", err)
	}

	moves, _ := db.ListStockMoves(ctx, StockMoveFilter{MoveType: MoveOutboundPick})
	if len(moves) != 1 {
		t.Fatalf("pick moves = %d, want 1", len(moves))
	}
	if *moves[0].FromLocationID != f.dst.ID || *moves[0].ToLocationID != f.src.ID {
		t.Errorf("transfer move = %d -> %d", *moves[0].FromLocationID, *moves[0].ToLocationID)
	}
}

func TestListStock(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	f := seed(t, db)
	adjust(t, db, f.mat.ID, f.src.ID, 1)
	adjust(t, db, f.mat2.ID, f.src.ID, 2)
	adjust(t, db, f.mat.ID, f.dst.ID, 3)

	rows, err := db.ListStock(ctx, StockFilter{LocationID: f.src.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("rows at src = %d, want 2", len(rows))
	}
	rows, _ = db.ListStock(ctx, StockFilter{MaterialID: f.mat.ID})
	if len(rows) != 2 {
		t.Errorf("rows for material = %d, want 2", len(rows))
	}
	if _, err := db.GetStockRow(ctx, f.mat2.ID, f.dst.ID); !IsKind(err, KindNotFound) {
		t.Errorf("missing row err = %v, want NotFound", err)
	}
}
