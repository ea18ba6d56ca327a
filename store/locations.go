package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	LocationActive   = "ACTIVE"
	LocationDisabled = "DISABLED"

	BindingBound   = "BOUND"
	BindingUnbound = "UNBOUND"
)

type Warehouse struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Location struct {
	ID            int64     `json:"id"`
	WarehouseID   int64     `json:"warehouse_id"`
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	Status        string    `json:"status"`
	BindingStatus string    `json:"binding_status"`
	CreatedAt     time.Time `json:"created_at"`
}

// Operable reports whether stock and containers may be placed here.
func (l *Location) Operable() bool { return l.Status == LocationActive }

// --- Warehouses ---

func (db *DB) CreateWarehouse(ctx context.Context, w *Warehouse) error {
	id, err := db.insertID(ctx, `INSERT INTO warehouses (code, name) VALUES (?, ?)`, w.Code, w.Name)
	if err != nil {
		if isUniqueViolation(err) {
			return Errorf(KindConflict, "warehouse code %q already exists", w.Code)
		}
		return fmt.Errorf("create warehouse: %w", err)
	}
	w.ID = id
	return nil
}

func (db *DB) ListWarehouses(ctx context.Context) ([]*Warehouse, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, code, name, created_at FROM warehouses ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Warehouse
	for rows.Next() {
		var w Warehouse
		var createdAt any
		if err := rows.Scan(&w.ID, &w.Code, &w.Name, &createdAt); err != nil {
			return nil, err
		}
		w.CreatedAt = parseTime(createdAt)
		out = append(out, &w)
	}
	return out, rows.Err()
}

// DeleteWarehouse refuses while any location still belongs to the warehouse.
func (db *DB) DeleteWarehouse(ctx context.Context, id int64) error {
	return db.WithTx(ctx, "delete_warehouse", func(tx *Tx) error {
		var n int
		if err := tx.queryRow(ctx, `SELECT COUNT(*) FROM warehouses WHERE id = ?`, id).Scan(&n); err != nil {
			return err
		}
		if n == 0 {
			return Errorf(KindNotFound, "warehouse %d not found", id)
		}
		if err := tx.queryRow(ctx, `SELECT COUNT(*) FROM locations WHERE warehouse_id = ?`, id).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return Errorf(KindConflict, "warehouse has %d locations", n)
		}
		_, err := tx.exec(ctx, `DELETE FROM warehouses WHERE id = ?`, id)
		return err
	})
}

// --- Locations ---

const locationSelectCols = `id, warehouse_id, code, name, status, binding_status, created_at`

func scanLocation(row interface{ Scan(...any) error }) (*Location, error) {
	var l Location
	var createdAt any
	if err := row.Scan(&l.ID, &l.WarehouseID, &l.Code, &l.Name, &l.Status, &l.BindingStatus, &createdAt); err != nil {
		return nil, err
	}
	l.CreatedAt = parseTime(createdAt)
	return &l, nil
}

func (db *DB) CreateLocation(ctx context.Context, l *Location) error {
	if l.Status == "" {
		l.Status = LocationActive
	}
	l.BindingStatus = BindingUnbound
	var n int
	if err := db.QueryRowContext(ctx, db.Q(`SELECT COUNT(*) FROM warehouses WHERE id = ?`), l.WarehouseID).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return Errorf(KindNotFound, "warehouse %d not found", l.WarehouseID)
	}
	id, err := db.insertID(ctx, `INSERT INTO locations (warehouse_id, code, name, status, binding_status) VALUES (?, ?, ?, ?, ?)`,
		l.WarehouseID, l.Code, l.Name, l.Status, l.BindingStatus)
	if err != nil {
		if isUniqueViolation(err) {
			return Errorf(KindConflict, "location code %q already exists in warehouse %d", l.Code, l.WarehouseID)
		}
		return fmt.Errorf("create location: %w", err)
	}
	l.ID = id
	return nil
}

func (db *DB) GetLocation(ctx context.Context, id int64) (*Location, error) {
	l, err := scanLocation(db.QueryRowContext(ctx, db.Q(`SELECT `+locationSelectCols+` FROM locations WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, Errorf(KindNotFound, "location %d not found", id)
	}
	return l, err
}

func (db *DB) ListLocations(ctx context.Context) ([]*Location, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+locationSelectCols+` FROM locations ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (db *DB) SetLocationStatus(ctx context.Context, id int64, status string) error {
	if status != LocationActive && status != LocationDisabled {
		return Errorf(KindInvalid, "unknown location status %q", status)
	}
	res, err := db.ExecContext(ctx, db.Q(`UPDATE locations SET status = ? WHERE id = ?`), status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Errorf(KindNotFound, "location %d not found", id)
	}
	return nil
}

// DeleteLocation refuses while a container is bound to the location or any
// stock row there still holds quantity or reservations. Empty stock rows go
// with it.
func (db *DB) DeleteLocation(ctx context.Context, id int64) error {
	return db.WithTx(ctx, "delete_location", func(tx *Tx) error {
		if _, err := tx.GetLocation(ctx, id); err != nil {
			return err
		}
		var n int
		if err := tx.queryRow(ctx, `SELECT COUNT(*) FROM containers WHERE location_id = ?`, id).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return Errorf(KindConflict, "location has a bound container")
		}
		if err := tx.queryRow(ctx, `SELECT COUNT(*) FROM stock WHERE location_id = ? AND (quantity > 0 OR reserved > 0)`, id).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return Errorf(KindConflict, "location still holds stock")
		}
		if _, err := tx.exec(ctx, `DELETE FROM stock WHERE location_id = ?`, id); err != nil {
			return err
		}
		_, err := tx.exec(ctx, `DELETE FROM locations WHERE id = ?`, id)
		return err
	})
}

// GetLocation reads a location inside the transaction, locking it on Postgres.
func (t *Tx) GetLocation(ctx context.Context, id int64) (*Location, error) {
	l, err := scanLocation(t.queryRow(ctx, `SELECT `+locationSelectCols+` FROM locations WHERE id = ?`+t.db.forUpdate(), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, Errorf(KindNotFound, "location %d not found", id)
	}
	return l, err
}

func (t *Tx) setBindingStatus(ctx context.Context, locationID int64, status string) error {
	_, err := t.exec(ctx, `UPDATE locations SET binding_status = ? WHERE id = ?`, status, locationID)
	return err
}
