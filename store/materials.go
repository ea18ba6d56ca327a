package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type Material struct {
	ID        int64     `json:"id"`
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
	Unit      string    `json:"unit"`
	Category  string    `json:"category"`
	Active    bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

const materialSelectCols = `id, sku, name, unit, category, is_active, created_at`

func scanMaterial(row interface{ Scan(...any) error }) (*Material, error) {
	var m Material
	var active int
	var createdAt any
	if err := row.Scan(&m.ID, &m.SKU, &m.Name, &m.Unit, &m.Category, &active, &createdAt); err != nil {
		return nil, err
	}
	m.Active = active != 0
	m.CreatedAt = parseTime(createdAt)
	return &m, nil
}

func (db *DB) CreateMaterial(ctx context.Context, m *Material) error {
	if m.Unit == "" {
		m.Unit = "pcs"
	}
	if m.Category == "" {
		m.Category = "general"
	}
	m.Active = true
	id, err := db.insertID(ctx, `INSERT INTO materials (sku, name, unit, category, is_active) VALUES (?, ?, ?, ?, ?)`,
		m.SKU, m.Name, m.Unit, m.Category, boolToInt(m.Active))
	if err != nil {
		if isUniqueViolation(err) {
			return Errorf(KindConflict, "sku already exists")
		}
		return fmt.Errorf("create material: %w", err)
	}
	m.ID = id
	return nil
}

func (db *DB) GetMaterial(ctx context.Context, id int64) (*Material, error) {
	m, err := scanMaterial(db.QueryRowContext(ctx, db.Q(`SELECT `+materialSelectCols+` FROM materials WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, Errorf(KindNotFound, "material %d not found", id)
	}
	return m, err
}

func (db *DB) ListMaterials(ctx context.Context, includeInactive bool) ([]*Material, error) {
	q := `SELECT ` + materialSelectCols + ` FROM materials`
	if !includeInactive {
		q += ` WHERE is_active = 1`
	}
	rows, err := db.QueryContext(ctx, q+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (t *Tx) GetMaterial(ctx context.Context, id int64) (*Material, error) {
	m, err := scanMaterial(t.queryRow(ctx, `SELECT `+materialSelectCols+` FROM materials WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, Errorf(KindNotFound, "material %d not found", id)
	}
	return m, err
}

// ActiveMaterial is GetMaterial for callers that add stock or order lines.
// A soft-deleted material is rejected with KindInvalid.
func (t *Tx) ActiveMaterial(ctx context.Context, id int64) (*Material, error) {
	m, err := t.GetMaterial(ctx, id)
	if err != nil {
		return nil, err
	}
	if !m.Active {
		return nil, Errorf(KindInvalid, "material %s is inactive", m.SKU)
	}
	return m, nil
}

// --- Delete decision ---

type MaterialDeleteKind string

const (
	SoftDeleted MaterialDeleteKind = "soft_deleted"
	HardDeleted MaterialDeleteKind = "deleted"
)

type MaterialDeleteOutcome struct {
	Kind   MaterialDeleteKind `json:"status"`
	Reason string             `json:"reason,omitempty"`
}

// DecideMaterialDelete picks between deactivating and removing a material.
// Referenced materials are always kept; unreferenced ones are only removed
// when force is set.
func DecideMaterialDelete(hasInventory, hasOrderLines, force bool) MaterialDeleteOutcome {
	switch {
	case hasInventory:
		return MaterialDeleteOutcome{Kind: SoftDeleted, Reason: "inventory exists"}
	case hasOrderLines:
		return MaterialDeleteOutcome{Kind: SoftDeleted, Reason: "order lines exist"}
	case !force:
		return MaterialDeleteOutcome{Kind: SoftDeleted, Reason: "soft delete by default"}
	default:
		return MaterialDeleteOutcome{Kind: HardDeleted}
	}
}

func (db *DB) DeleteMaterial(ctx context.Context, id int64, force bool) (MaterialDeleteOutcome, error) {
	var outcome MaterialDeleteOutcome
	err := db.WithTx(ctx, "delete_material", func(tx *Tx) error {
		if _, err := tx.GetMaterial(ctx, id); err != nil {
			return err
		}
		var invRows, lineRows int
		if err := tx.queryRow(ctx, `SELECT COUNT(*) FROM stock WHERE material_id = ? AND (quantity > 0 OR reserved > 0)`, id).Scan(&invRows); err != nil {
			return err
		}
		if err := tx.queryRow(ctx, `SELECT COUNT(*) FROM order_lines WHERE material_id = ?`, id).Scan(&lineRows); err != nil {
			return err
		}
		outcome = DecideMaterialDelete(invRows > 0, lineRows > 0, force)
		if outcome.Kind == SoftDeleted {
			_, err := tx.exec(ctx, `UPDATE materials SET is_active = 0 WHERE id = ?`, id)
			return err
		}
		if err := tx.queryRow(ctx, `SELECT COUNT(*) FROM container_stock WHERE material_id = ? AND (quantity > 0 OR reserved > 0)`, id).Scan(&invRows); err != nil {
			return err
		}
		if invRows > 0 {
			outcome = MaterialDeleteOutcome{Kind: SoftDeleted, Reason: "inventory exists"}
			_, err := tx.exec(ctx, `UPDATE materials SET is_active = 0 WHERE id = ?`, id)
			return err
		}
		for _, q := range []string{
			`DELETE FROM stock WHERE material_id = ?`,
			`DELETE FROM container_stock WHERE material_id = ?`,
			`DELETE FROM materials WHERE id = ?`,
		} {
			if _, err := tx.exec(ctx, q, id); err != nil {
				return err
			}
		}
		return nil
	})
	return outcome, err
}
