package store

import (
	"context"
	"fmt"
)

// ContainerStockRow mirrors StockRow for the contents of one container.
type ContainerStockRow struct {
	ID          int64 `json:"id"`
	ContainerID int64 `json:"container_id"`
	MaterialID  int64 `json:"material_id"`
	Quantity    int64 `json:"quantity"`
	Reserved    int64 `json:"reserved"`
	Version     int64 `json:"version"`
}

const containerStockSelectCols = `id, container_id, material_id, quantity, reserved, version`

func scanContainerStock(row interface{ Scan(...any) error }) (*ContainerStockRow, error) {
	var r ContainerStockRow
	if err := row.Scan(&r.ID, &r.ContainerID, &r.MaterialID, &r.Quantity, &r.Reserved, &r.Version); err != nil {
		return nil, err
	}
	return &r, nil
}

func (t *Tx) lockContainerStock(ctx context.Context, containerID, materialID int64) (*ContainerStockRow, error) {
	if _, err := t.exec(ctx, `INSERT INTO container_stock (container_id, material_id) VALUES (?, ?) ON CONFLICT (container_id, material_id) DO NOTHING`,
		containerID, materialID); err != nil {
		return nil, fmt.Errorf("ensure container stock row: %w", err)
	}
	r, err := scanContainerStock(t.queryRow(ctx, `SELECT `+containerStockSelectCols+` FROM container_stock WHERE container_id = ? AND material_id = ?`+t.db.forUpdate(),
		containerID, materialID))
	if err != nil {
		return nil, fmt.Errorf("lock container stock row: %w", err)
	}
	return r, nil
}

// AdjustContainerStock applies delta to the container's row and mirrors the
// same delta onto the stock row of the location it is bound to. It returns
// the new container and location quantities.
func (t *Tx) AdjustContainerStock(ctx context.Context, containerID, materialID, delta int64, reason string, meta MoveMeta) (int64, int64, error) {
	c, err := t.GetContainer(ctx, containerID)
	if err != nil {
		return 0, 0, err
	}
	if c.LocationID == nil {
		return 0, 0, Errorf(KindInvalidTransition, "container is not bound")
	}
	lookup := t.GetMaterial
	if delta > 0 {
		lookup = t.ActiveMaterial
	}
	if _, err := lookup(ctx, materialID); err != nil {
		return 0, 0, err
	}

	r, err := t.lockContainerStock(ctx, containerID, materialID)
	if err != nil {
		return 0, 0, err
	}
	r.Quantity += delta
	if r.Quantity < 0 {
		return 0, 0, Errorf(KindInvalidQuantity, "container %s would hold %d of material %d", c.Code, r.Quantity, materialID)
	}
	if delta < 0 && r.Reserved > r.Quantity {
		return 0, 0, Errorf(KindInvalidQuantity, "reserved %d would exceed quantity %d in container %s", r.Reserved, r.Quantity, c.Code)
	}
	r.Version++
	if _, err := t.exec(ctx, `UPDATE container_stock SET quantity = ?, version = ? WHERE id = ?`, r.Quantity, r.Version, r.ID); err != nil {
		return 0, 0, fmt.Errorf("update container stock %d: %w", r.ID, err)
	}

	moveType := MoveContainerAdjust
	if reason != "" {
		moveType += ":" + reason
	}
	locQty, err := t.AdjustStock(ctx, materialID, *c.LocationID, delta, moveType, meta)
	if err != nil {
		return 0, 0, err
	}
	return r.Quantity, locQty, nil
}

// ContainerStockFilter narrows ListContainerStock; zero fields are ignored.
type ContainerStockFilter struct {
	ContainerID int64
	MaterialID  int64
}

func (db *DB) ListContainerStock(ctx context.Context, f ContainerStockFilter) ([]*ContainerStockRow, error) {
	q := `SELECT ` + containerStockSelectCols + ` FROM container_stock WHERE 1=1`
	var args []any
	if f.ContainerID > 0 {
		q += ` AND container_id = ?`
		args = append(args, f.ContainerID)
	}
	if f.MaterialID > 0 {
		q += ` AND material_id = ?`
		args = append(args, f.MaterialID)
	}
	rows, err := db.QueryContext(ctx, db.Q(q+` ORDER BY id`), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*ContainerStockRow
	for rows.Next() {
		r, err := scanContainerStock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
