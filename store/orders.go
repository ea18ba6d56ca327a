package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	OrderInbound  = "inbound"
	OrderOutbound = "outbound"

	StatusCreated  = "CREATED"
	StatusReceived = "RECEIVED"
	StatusReserved = "RESERVED"
	StatusPicked   = "PICKED"
	StatusPacked   = "PACKED"
	StatusShipped  = "SHIPPED"
)

type Order struct {
	ID               int64     `json:"id"`
	OrderNo          string    `json:"order_no"`
	OrderType        string    `json:"order_type"`
	Status           string    `json:"status"`
	Partner          string    `json:"partner"`
	SourceLocationID *int64    `json:"source_location_id"`
	TargetLocationID *int64    `json:"target_location_id"`
	CreatedBy        string    `json:"created_by"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type OrderLine struct {
	ID           int64  `json:"id"`
	OrderID      int64  `json:"order_id"`
	MaterialID   int64  `json:"material_id"`
	MaterialSKU  string `json:"material_sku"`
	MaterialName string `json:"material_name"`
	Qty          int64  `json:"qty"`
	ReservedQty  int64  `json:"reserved_qty"`
	PickedQty    int64  `json:"picked_qty"`
	PackedQty    int64  `json:"packed_qty"`
}

type OrderHistory struct {
	ID        int64     `json:"id"`
	OrderID   int64     `json:"order_id"`
	Status    string    `json:"status"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

const orderSelectCols = `id, order_no, order_type, status, partner, source_location_id, target_location_id, created_by, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*Order, error) {
	var o Order
	var sourceID, targetID sql.NullInt64
	var createdAt, updatedAt any
	err := row.Scan(&o.ID, &o.OrderNo, &o.OrderType, &o.Status, &o.Partner,
		&sourceID, &targetID, &o.CreatedBy, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	o.SourceLocationID = int64Ptr(sourceID)
	o.TargetLocationID = int64Ptr(targetID)
	o.CreatedAt = parseTime(createdAt)
	o.UpdatedAt = parseTime(updatedAt)
	return &o, nil
}

const orderLineSelectCols = `id, order_id, material_id, material_sku, material_name, qty, reserved_qty, picked_qty, packed_qty`

func scanOrderLine(row interface{ Scan(...any) error }) (*OrderLine, error) {
	var l OrderLine
	if err := row.Scan(&l.ID, &l.OrderID, &l.MaterialID, &l.MaterialSKU, &l.MaterialName,
		&l.Qty, &l.ReservedQty, &l.PickedQty, &l.PackedQty); err != nil {
		return nil, err
	}
	return &l, nil
}

func scanOrderLines(rows *sql.Rows) ([]*OrderLine, error) {
	defer rows.Close()
	var lines []*OrderLine
	for rows.Next() {
		l, err := scanOrderLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// CreateOrder inserts the order header and its lines, snapshotting each
// line's material sku and name. The order starts CREATED.
func (t *Tx) CreateOrder(ctx context.Context, o *Order, lines []*OrderLine) error {
	if len(lines) == 0 {
		return Errorf(KindInvalid, "order must have at least one line")
	}
	o.Status = StatusCreated
	id, err := t.insertID(ctx, `INSERT INTO orders (order_no, order_type, status, partner, source_location_id, target_location_id, created_by) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.OrderNo, o.OrderType, o.Status, o.Partner, nullInt64(o.SourceLocationID), nullInt64(o.TargetLocationID), o.CreatedBy)
	if err != nil {
		if isUniqueViolation(err) {
			return Errorf(KindConflict, "order_no already exists")
		}
		return fmt.Errorf("create order: %w", err)
	}
	o.ID = id

	for _, l := range lines {
		if l.Qty <= 0 {
			return Errorf(KindInvalidQuantity, "line quantity must be positive")
		}
		m, err := t.ActiveMaterial(ctx, l.MaterialID)
		if err != nil {
			return err
		}
		l.OrderID = o.ID
		l.MaterialSKU = m.SKU
		l.MaterialName = m.Name
		lineID, err := t.insertID(ctx, `INSERT INTO order_lines (order_id, material_id, material_sku, material_name, qty) VALUES (?, ?, ?, ?, ?)`,
			l.OrderID, l.MaterialID, l.MaterialSKU, l.MaterialName, l.Qty)
		if err != nil {
			return fmt.Errorf("create order line: %w", err)
		}
		l.ID = lineID
	}
	return t.appendOrderHistory(ctx, o.ID, o.Status, "created")
}

// LockOrder loads an order of the given type for the rest of the
// transaction. A missing order or a type mismatch is NotFound.
func (t *Tx) LockOrder(ctx context.Context, id int64, orderType string) (*Order, error) {
	o, err := scanOrder(t.queryRow(ctx, `SELECT `+orderSelectCols+` FROM orders WHERE id = ?`+t.db.forUpdate(), id))
	if errors.Is(err, sql.ErrNoRows) || (err == nil && o.OrderType != orderType) {
		return nil, Errorf(KindNotFound, "%s order %d not found", orderType, id)
	}
	if err != nil {
		return nil, fmt.Errorf("lock order %d: %w", id, err)
	}
	return o, nil
}

func (t *Tx) OrderLines(ctx context.Context, orderID int64) ([]*OrderLine, error) {
	rows, err := t.query(ctx, `SELECT `+orderLineSelectCols+` FROM order_lines WHERE order_id = ? ORDER BY id`+t.db.forUpdate(), orderID)
	if err != nil {
		return nil, err
	}
	return scanOrderLines(rows)
}

// SetOrderStatus updates the status and appends the history row.
func (t *Tx) SetOrderStatus(ctx context.Context, o *Order, status, detail string) error {
	if _, err := t.exec(ctx, `UPDATE orders SET status = ?, updated_at = `+t.db.dialect.Now()+` WHERE id = ?`, status, o.ID); err != nil {
		return fmt.Errorf("update order %d status: %w", o.ID, err)
	}
	o.Status = status
	return t.appendOrderHistory(ctx, o.ID, status, detail)
}

func (t *Tx) SetOrderTarget(ctx context.Context, o *Order, locationID int64) error {
	if _, err := t.exec(ctx, `UPDATE orders SET target_location_id = ? WHERE id = ?`, locationID, o.ID); err != nil {
		return fmt.Errorf("update order %d target: %w", o.ID, err)
	}
	o.TargetLocationID = &locationID
	return nil
}

// SaveLineWatermarks persists the line's reserved, picked and packed
// quantities after checking they stay nested within qty.
func (t *Tx) SaveLineWatermarks(ctx context.Context, l *OrderLine) error {
	if l.ReservedQty < 0 || l.ReservedQty > l.Qty {
		return Errorf(KindInvalidQuantity, "line %d reserved %d outside 0..%d", l.ID, l.ReservedQty, l.Qty)
	}
	if l.PickedQty < 0 || l.PickedQty > l.ReservedQty {
		return Errorf(KindInvalidQuantity, "line %d picked %d exceeds reserved %d", l.ID, l.PickedQty, l.ReservedQty)
	}
	if l.PackedQty < 0 || l.PackedQty > l.PickedQty {
		return Errorf(KindInvalidQuantity, "line %d packed %d exceeds picked %d", l.ID, l.PackedQty, l.PickedQty)
	}
	_, err := t.exec(ctx, `UPDATE order_lines SET reserved_qty = ?, picked_qty = ?, packed_qty = ? WHERE id = ?`,
		l.ReservedQty, l.PickedQty, l.PackedQty, l.ID)
	if err != nil {
		return fmt.Errorf("update order line %d: %w", l.ID, err)
	}
	return nil
}

func (t *Tx) appendOrderHistory(ctx context.Context, orderID int64, status, detail string) error {
	_, err := t.exec(ctx, `INSERT INTO order_history (order_id, status, detail) VALUES (?, ?, ?)`, orderID, status, detail)
	if err != nil {
		return fmt.Errorf("append order history: %w", err)
	}
	return nil
}

// --- Reads ---

func (db *DB) GetOrder(ctx context.Context, id int64) (*Order, error) {
	o, err := scanOrder(db.QueryRowContext(ctx, db.Q(`SELECT `+orderSelectCols+` FROM orders WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, Errorf(KindNotFound, "order %d not found", id)
	}
	return o, err
}

// ListOrders returns orders newest first, optionally filtered by type.
func (db *DB) ListOrders(ctx context.Context, orderType string, limit int) ([]*Order, error) {
	q := `SELECT ` + orderSelectCols + ` FROM orders`
	var args []any
	if orderType != "" {
		q += ` WHERE order_type = ?`
		args = append(args, orderType)
	}
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
	var orders []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (db *DB) ListOrderLines(ctx context.Context, orderID int64) ([]*OrderLine, error) {
	rows, err := db.QueryContext(ctx, db.Q(`SELECT `+orderLineSelectCols+` FROM order_lines WHERE order_id = ? ORDER BY id`), orderID)
	if err != nil {
		return nil, err
	}
	return scanOrderLines(rows)
}

func (db *DB) ListOrderHistory(ctx context.Context, orderID int64) ([]*OrderHistory, error) {
	rows, err := db.QueryContext(ctx, db.Q(`SELECT id, order_id, status, detail, created_at FROM order_history WHERE order_id = ? ORDER BY id`), orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var history []*OrderHistory
	for rows.Next() {
		var h OrderHistory
		var createdAt any
		if err := rows.Scan(&h.ID, &h.OrderID, &h.Status, &h.Detail, &createdAt); err != nil {
			return nil, err
		}
		h.CreatedAt = parseTime(createdAt)
		history = append(history, &h)
	}
	return history, rows.Err()
}
