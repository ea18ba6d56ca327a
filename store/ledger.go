package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// StockRow is the ledger entry for one material at one location.
type StockRow struct {
	ID         int64     `json:"id"`
	MaterialID int64     `json:"material_id"`
	LocationID int64     `json:"location_id"`
	Quantity   int64     `json:"quantity"`
	Reserved   int64     `json:"reserved"`
	Version    int64     `json:"version"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Available is the unreserved on-hand quantity.
func (s *StockRow) Available() int64 { return s.Quantity - s.Reserved }

// MoveMeta is the attribution attached to every StockMove a ledger call writes.
type MoveMeta struct {
	Operator string
	RefID    *int64
}

// ReserveMode selects how ReserveStock treats insufficient availability.
type ReserveMode int

const (
	// ReserveExact fails unless the full quantity is available.
	ReserveExact ReserveMode = iota
	// ReservePartial reserves min(requested, available).
	ReservePartial
	// ReserveForce reserves the full quantity even past on-hand stock.
	ReserveForce
)

const (
	MoveAdjust          = "ADJUST"
	MoveContainerAdjust = "CONTAINER_ADJUST"
	MoveInboundReceive  = "INBOUND_RECEIVE"
	MoveOutboundReserve = "OUTBOUND_RESERVE"
	MoveOutboundRelease = "OUTBOUND_RELEASE"
	MoveOutboundPick    = "OUTBOUND_PICK"
	MoveOutboundShip    = "OUTBOUND_SHIP"
)

const stockSelectCols = `id, material_id, location_id, quantity, reserved, version, updated_at`

func scanStockRow(row interface{ Scan(...any) error }) (*StockRow, error) {
	var s StockRow
	var updatedAt any
	if err := row.Scan(&s.ID, &s.MaterialID, &s.LocationID, &s.Quantity, &s.Reserved, &s.Version, &updatedAt); err != nil {
		return nil, err
	}
	s.UpdatedAt = parseTime(updatedAt)
	return &s, nil
}

// lockStockRow returns the (material, location) row, creating it empty on
// first use, locked for the rest of the transaction.
func (t *Tx) lockStockRow(ctx context.Context, materialID, locationID int64) (*StockRow, error) {
	if _, err := t.exec(ctx, `INSERT INTO stock (material_id, location_id) VALUES (?, ?) ON CONFLICT (material_id, location_id) DO NOTHING`,
		materialID, locationID); err != nil {
		return nil, fmt.Errorf("ensure stock row: %w", err)
	}
	row, err := scanStockRow(t.queryRow(ctx, `SELECT `+stockSelectCols+` FROM stock WHERE material_id = ? AND location_id = ?`+t.db.forUpdate(),
		materialID, locationID))
	if err != nil {
		return nil, fmt.Errorf("lock stock row: %w", err)
	}
	return row, nil
}

// GetStockRow reads an existing row without creating one. It returns nil
// when the pair has never held stock.
func (t *Tx) GetStockRow(ctx context.Context, materialID, locationID int64) (*StockRow, error) {
	row, err := scanStockRow(t.queryRow(ctx, `SELECT `+stockSelectCols+` FROM stock WHERE material_id = ? AND location_id = ?`+t.db.forUpdate(),
		materialID, locationID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return row, err
}

func (t *Tx) saveStockRow(ctx context.Context, s *StockRow) error {
	s.Version++
	_, err := t.exec(ctx, `UPDATE stock SET quantity = ?, reserved = ?, version = ?, updated_at = `+t.db.dialect.Now()+` WHERE id = ?`,
		s.Quantity, s.Reserved, s.Version, s.ID)
	if err != nil {
		return fmt.Errorf("update stock row %d: %w", s.ID, err)
	}
	return nil
}

func checkStockInvariant(s *StockRow, allowOverReserve bool) error {
	if s.Quantity < 0 {
		return Errorf(KindInvalidQuantity, "quantity of material %d at location %d would become %d", s.MaterialID, s.LocationID, s.Quantity)
	}
	if s.Reserved < 0 {
		return Errorf(KindInvalidQuantity, "reserved of material %d at location %d would become %d", s.MaterialID, s.LocationID, s.Reserved)
	}
	if !allowOverReserve && s.Reserved > s.Quantity {
		return Errorf(KindInvalidQuantity, "reserved %d would exceed quantity %d for material %d at location %d",
			s.Reserved, s.Quantity, s.MaterialID, s.LocationID)
	}
	return nil
}

// AdjustStock applies delta to the on-hand quantity and returns the new
// quantity. Negative deltas may not dip into reserved stock.
func (t *Tx) AdjustStock(ctx context.Context, materialID, locationID, delta int64, moveType string, meta MoveMeta) (int64, error) {
	s, err := t.lockStockRow(ctx, materialID, locationID)
	if err != nil {
		return 0, err
	}
	s.Quantity += delta
	// A force reservation may already exceed on-hand; only block deltas
	// that make the shortfall worse.
	if err := checkStockInvariant(s, delta >= 0); err != nil {
		return 0, err
	}
	if err := t.saveStockRow(ctx, s); err != nil {
		return 0, err
	}
	mv := &StockMove{MaterialID: materialID, MoveType: moveType, Operator: meta.Operator, RefID: meta.RefID}
	if delta >= 0 {
		mv.ToLocationID, mv.Qty = &locationID, delta
	} else {
		mv.FromLocationID, mv.Qty = &locationID, -delta
	}
	if err := t.appendStockMove(ctx, mv); err != nil {
		return 0, err
	}
	return s.Quantity, nil
}

// ReserveStock earmarks qty units at the location and returns how many were
// actually reserved.
func (t *Tx) ReserveStock(ctx context.Context, materialID, locationID, qty int64, mode ReserveMode, meta MoveMeta) (int64, error) {
	if qty < 0 {
		return 0, Errorf(KindInvalidQuantity, "reserve quantity must not be negative")
	}
	s, err := t.lockStockRow(ctx, materialID, locationID)
	if err != nil {
		return 0, err
	}
	reserve := qty
	switch mode {
	case ReserveExact:
		if s.Available() < qty {
			return 0, Errorf(KindInvalidQuantity, "available %d is less than requested %d for material %d at location %d",
				s.Available(), qty, materialID, locationID)
		}
	case ReservePartial:
		reserve = min(qty, max(s.Available(), 0))
	case ReserveForce:
	}
	s.Reserved += reserve
	if err := checkStockInvariant(s, mode == ReserveForce); err != nil {
		return 0, err
	}
	if err := t.saveStockRow(ctx, s); err != nil {
		return 0, err
	}
	if err := t.appendStockMove(ctx, &StockMove{
		MaterialID: materialID, FromLocationID: &locationID, ToLocationID: &locationID,
		Qty: reserve, MoveType: MoveOutboundReserve, Operator: meta.Operator, RefID: meta.RefID,
	}); err != nil {
		return 0, err
	}
	return reserve, nil
}

// ReleaseReserved returns qty reserved units to the available pool.
func (t *Tx) ReleaseReserved(ctx context.Context, materialID, locationID, qty int64, moveType string, meta MoveMeta) error {
	if qty < 0 {
		return Errorf(KindInvalidQuantity, "release quantity must not be negative")
	}
	s, err := t.lockStockRow(ctx, materialID, locationID)
	if err != nil {
		return err
	}
	if s.Reserved < qty {
		return Errorf(KindInvalidQuantity, "cannot release %d, only %d reserved for material %d at location %d",
			qty, s.Reserved, materialID, locationID)
	}
	s.Reserved -= qty
	if err := t.saveStockRow(ctx, s); err != nil {
		return err
	}
	return t.appendStockMove(ctx, &StockMove{
		MaterialID: materialID, FromLocationID: &locationID, ToLocationID: &locationID,
		Qty: qty, MoveType: moveType, Operator: meta.Operator, RefID: meta.RefID,
	})
}

// TransferStock moves qty on-hand units between two locations. Rows are
// locked in location id order so concurrent opposite transfers cannot
// deadlock.
func (t *Tx) TransferStock(ctx context.Context, materialID, fromID, toID, qty int64, moveType string, meta MoveMeta) error {
	if qty < 0 {
		return Errorf(KindInvalidQuantity, "transfer quantity must not be negative")
	}
	if fromID == toID {
		return Errorf(KindInvalid, "transfer source and destination are the same location")
	}
	firstID, secondID := fromID, toID
	if secondID < firstID {
		firstID, secondID = secondID, firstID
	}
	first, err := t.lockStockRow(ctx, materialID, firstID)
	if err != nil {
		return err
	}
	second, err := t.lockStockRow(ctx, materialID, secondID)
	if err != nil {
		return err
	}
	src, dst := first, second
	if src.LocationID != fromID {
		src, dst = second, first
	}

	src.Quantity -= qty
	dst.Quantity += qty
	if err := checkStockInvariant(src, false); err != nil {
		return err
	}
	if err := t.saveStockRow(ctx, src); err != nil {
		return err
	}
	if err := t.saveStockRow(ctx, dst); err != nil {
		return err
	}
	return t.appendStockMove(ctx, &StockMove{
		MaterialID: materialID, FromLocationID: &fromID, ToLocationID: &toID,
		Qty: qty, MoveType: moveType, Operator: meta.Operator, RefID: meta.RefID,
	})
}

// --- Reads ---

func (db *DB) GetStockRow(ctx context.Context, materialID, locationID int64) (*StockRow, error) {
	row, err := scanStockRow(db.QueryRowContext(ctx, db.Q(`SELECT `+stockSelectCols+` FROM stock WHERE material_id = ? AND location_id = ?`),
		materialID, locationID))
	if err == sql.ErrNoRows {
		return nil, Errorf(KindNotFound, "no stock for material %d at location %d", materialID, locationID)
	}
	return row, err
}

// StockFilter narrows ListStock; zero fields are ignored.
type StockFilter struct {
	MaterialID int64
	LocationID int64
}

func (db *DB) ListStock(ctx context.Context, f StockFilter) ([]*StockRow, error) {
	q := `SELECT ` + stockSelectCols + ` FROM stock WHERE 1=1`
	var args []any
	if f.MaterialID > 0 {
		q += ` AND material_id = ?`
		args = append(args, f.MaterialID)
	}
	if f.LocationID > 0 {
		q += ` AND location_id = ?`
		args = append(args, f.LocationID)
	}
	rows, err := db.QueryContext(ctx, db.Q(q+` ORDER BY id`), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*StockRow
	for rows.Next() {
		s, err := scanStockRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
