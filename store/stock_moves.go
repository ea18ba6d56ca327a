package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// StockMove is one append-only ledger history entry.
type StockMove struct {
	ID             int64     `json:"id"`
	MaterialID     int64     `json:"material_id"`
	FromLocationID *int64    `json:"from_location_id"`
	ToLocationID   *int64    `json:"to_location_id"`
	Qty            int64     `json:"qty"`
	MoveType       string    `json:"move_type"`
	Operator       string    `json:"operator"`
	RefID          *int64    `json:"ref_id"`
	CreatedAt      time.Time `json:"created_at"`
}

func (t *Tx) appendStockMove(ctx context.Context, m *StockMove) error {
	id, err := t.insertID(ctx, `INSERT INTO stock_moves (material_id, from_location_id, to_location_id, qty, move_type, operator, ref_id) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.MaterialID, nullInt64(m.FromLocationID), nullInt64(m.ToLocationID), m.Qty, m.MoveType, m.Operator, nullInt64(m.RefID))
	if err != nil {
		return fmt.Errorf("append stock move: %w", err)
	}
	m.ID = id
	return nil
}

// StockWatermark returns the id of the newest ledger entry touching
// locationID, or 0 when there is none. It only grows, so it orders
// snapshots of the location's stock.
func (db *DB) StockWatermark(ctx context.Context, locationID int64) (int64, error) {
	var id int64
	err := db.QueryRowContext(ctx, db.Q(`SELECT COALESCE(MAX(id), 0) FROM stock_moves WHERE from_location_id = ? OR to_location_id = ?`),
		locationID, locationID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("stock watermark: %w", err)
	}
	return id, nil
}

// StockMoveFilter narrows ListStockMoves; zero fields are ignored.
type StockMoveFilter struct {
	MaterialID int64
	RefID      int64
	MoveType   string
	Limit      int
}

func (db *DB) ListStockMoves(ctx context.Context, f StockMoveFilter) ([]*StockMove, error) {
	q := `SELECT id, material_id, from_location_id, to_location_id, qty, move_type, operator, ref_id, created_at FROM stock_moves WHERE 1=1`
	var args []any
	if f.MaterialID > 0 {
		q += ` AND material_id = ?`
		args = append(args, f.MaterialID)
	}
	if f.RefID > 0 {
		q += ` AND ref_id = ?`
		args = append(args, f.RefID)
	}
	if f.MoveType != "" {
		q += ` AND move_type = ?`
		args = append(args, f.MoveType)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 200
	}
	q += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, db.Q(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var moves []*StockMove
	for rows.Next() {
		var m StockMove
		var from, to, ref sql.NullInt64
		var createdAt any
		if err := rows.Scan(&m.ID, &m.MaterialID, &from, &to, &m.Qty, &m.MoveType, &m.Operator, &ref, &createdAt); err != nil {
			return nil, err
		}
		m.FromLocationID = int64Ptr(from)
		m.ToLocationID = int64Ptr(to)
		m.RefID = int64Ptr(ref)
		m.CreatedAt = parseTime(createdAt)
		moves = append(moves, &m)
	}
	return moves, rows.Err()
}
