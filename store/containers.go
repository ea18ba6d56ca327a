package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	ContainerBound   = "BOUND"
	ContainerUnbound = "UNBOUND"
)

// Container is a physical tote or pallet. At most one container may be
// bound to a location at a time.
type Container struct {
	ID            int64     `json:"id"`
	Code          string    `json:"code"`
	ContainerType string    `json:"container_type"`
	Status        string    `json:"status"`
	LocationID    *int64    `json:"location_id"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"created_at"`
}

type ContainerMove struct {
	ID             int64     `json:"id"`
	ContainerID    int64     `json:"container_id"`
	FromLocationID *int64    `json:"from_location_id"`
	ToLocationID   *int64    `json:"to_location_id"`
	Operator       string    `json:"operator"`
	Note           string    `json:"note"`
	CreatedAt      time.Time `json:"created_at"`
}

const containerSelectCols = `id, code, container_type, status, location_id, description, created_at`

func scanContainer(row interface{ Scan(...any) error }) (*Container, error) {
	var c Container
	var locationID sql.NullInt64
	var createdAt any
	if err := row.Scan(&c.ID, &c.Code, &c.ContainerType, &c.Status, &locationID, &c.Description, &createdAt); err != nil {
		return nil, err
	}
	c.LocationID = int64Ptr(locationID)
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}

func (t *Tx) GetContainer(ctx context.Context, id int64) (*Container, error) {
	c, err := scanContainer(t.queryRow(ctx, `SELECT `+containerSelectCols+` FROM containers WHERE id = ?`+t.db.forUpdate(), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, Errorf(KindNotFound, "container %d not found", id)
	}
	return c, err
}

// containerAt returns the id of the container bound to locationID, or 0.
func (t *Tx) containerAt(ctx context.Context, locationID int64) (int64, error) {
	var id int64
	err := t.queryRow(ctx, `SELECT id FROM containers WHERE location_id = ?`, locationID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return id, err
}

// ContainerAt is the exported form used by callers that must refuse plain
// location adjustments on bound locations.
func (t *Tx) ContainerAt(ctx context.Context, locationID int64) (int64, error) {
	return t.containerAt(ctx, locationID)
}

// checkBindTarget validates that containerID may occupy locationID.
func (t *Tx) checkBindTarget(ctx context.Context, containerID, locationID int64) (*Location, error) {
	loc, err := t.GetLocation(ctx, locationID)
	if err != nil {
		return nil, err
	}
	if !loc.Operable() {
		return nil, Errorf(KindLocationNotOperable, "location %s is %s", loc.Code, loc.Status)
	}
	occupant, err := t.containerAt(ctx, locationID)
	if err != nil {
		return nil, err
	}
	if occupant != 0 && occupant != containerID {
		return nil, Errorf(KindLocationOccupied, "location %s is bound to another container", loc.Code)
	}
	return loc, nil
}

func (t *Tx) appendContainerMove(ctx context.Context, m *ContainerMove) error {
	id, err := t.insertID(ctx, `INSERT INTO container_moves (container_id, from_location_id, to_location_id, operator, note) VALUES (?, ?, ?, ?, ?)`,
		m.ContainerID, nullInt64(m.FromLocationID), nullInt64(m.ToLocationID), m.Operator, m.Note)
	if err != nil {
		return fmt.Errorf("append container move: %w", err)
	}
	m.ID = id
	return nil
}

// setContainerLocation writes the binding. A unique violation means another
// transaction bound the location first.
func (t *Tx) setContainerLocation(ctx context.Context, c *Container, locationID *int64) error {
	status := ContainerUnbound
	if locationID != nil {
		status = ContainerBound
	}
	_, err := t.exec(ctx, `UPDATE containers SET location_id = ?, status = ? WHERE id = ?`, nullInt64(locationID), status, c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return Errorf(KindLocationOccupied, "location %d is bound to another container", *locationID)
		}
		return fmt.Errorf("update container %d: %w", c.ID, err)
	}
	c.LocationID = locationID
	c.Status = status
	return nil
}

// CreateContainer inserts a container, binding it immediately when
// c.LocationID is set.
func (t *Tx) CreateContainer(ctx context.Context, c *Container, operator string) error {
	if c.ContainerType == "" {
		c.ContainerType = "TOTE"
	}
	bindTo := c.LocationID
	if bindTo != nil {
		if _, err := t.checkBindTarget(ctx, 0, *bindTo); err != nil {
			return err
		}
	}
	c.Status = ContainerUnbound
	id, err := t.insertID(ctx, `INSERT INTO containers (code, container_type, status, description) VALUES (?, ?, ?, ?)`,
		c.Code, c.ContainerType, c.Status, c.Description)
	if err != nil {
		if isUniqueViolation(err) {
			return Errorf(KindConflict, "container code %q already exists", c.Code)
		}
		return fmt.Errorf("create container: %w", err)
	}
	c.ID = id
	c.LocationID = nil
	if bindTo == nil {
		return nil
	}
	if err := t.setContainerLocation(ctx, c, bindTo); err != nil {
		return err
	}
	if err := t.setBindingStatus(ctx, *bindTo, BindingBound); err != nil {
		return err
	}
	return t.appendContainerMove(ctx, &ContainerMove{ContainerID: c.ID, ToLocationID: bindTo, Operator: operator, Note: "bind_on_create"})
}

// BindContainer binds the container to locationID, releasing whatever
// location it held before.
func (t *Tx) BindContainer(ctx context.Context, containerID, locationID int64, operator string) (*Container, error) {
	c, err := t.GetContainer(ctx, containerID)
	if err != nil {
		return nil, err
	}
	if _, err := t.checkBindTarget(ctx, containerID, locationID); err != nil {
		return nil, err
	}
	from := c.LocationID
	to := locationID
	if err := t.setContainerLocation(ctx, c, &to); err != nil {
		return nil, err
	}
	if from != nil && *from != locationID {
		if err := t.setBindingStatus(ctx, *from, BindingUnbound); err != nil {
			return nil, err
		}
	}
	if err := t.setBindingStatus(ctx, locationID, BindingBound); err != nil {
		return nil, err
	}
	if err := t.appendContainerMove(ctx, &ContainerMove{ContainerID: c.ID, FromLocationID: from, ToLocationID: &to, Operator: operator, Note: "bind"}); err != nil {
		return nil, err
	}
	return c, nil
}

// UnbindContainer clears the binding. It reports false without writing
// anything when the container was already unbound.
func (t *Tx) UnbindContainer(ctx context.Context, containerID int64, operator string) (bool, error) {
	c, err := t.GetContainer(ctx, containerID)
	if err != nil {
		return false, err
	}
	if c.LocationID == nil {
		return false, nil
	}
	from := *c.LocationID
	if err := t.setContainerLocation(ctx, c, nil); err != nil {
		return false, err
	}
	if err := t.setBindingStatus(ctx, from, BindingUnbound); err != nil {
		return false, err
	}
	return true, t.appendContainerMove(ctx, &ContainerMove{ContainerID: c.ID, FromLocationID: &from, Operator: operator, Note: "unbind"})
}

// MoveContainer relocates a bound container.
func (t *Tx) MoveContainer(ctx context.Context, containerID, toLocationID int64, note, operator string) (*Container, error) {
	c, err := t.GetContainer(ctx, containerID)
	if err != nil {
		return nil, err
	}
	if c.LocationID == nil {
		return nil, Errorf(KindInvalidTransition, "container is not bound")
	}
	if _, err := t.checkBindTarget(ctx, containerID, toLocationID); err != nil {
		return nil, err
	}
	from := *c.LocationID
	to := toLocationID
	if err := t.setContainerLocation(ctx, c, &to); err != nil {
		return nil, err
	}
	if from != to {
		if err := t.setBindingStatus(ctx, from, BindingUnbound); err != nil {
			return nil, err
		}
	}
	if err := t.setBindingStatus(ctx, to, BindingBound); err != nil {
		return nil, err
	}
	if note == "" {
		note = "move"
	}
	if err := t.appendContainerMove(ctx, &ContainerMove{ContainerID: c.ID, FromLocationID: &from, ToLocationID: &to, Operator: operator, Note: note}); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteContainer removes an unbound, empty container together with its
// (zero) inventory rows.
func (t *Tx) DeleteContainer(ctx context.Context, containerID int64) (*Container, error) {
	c, err := t.GetContainer(ctx, containerID)
	if err != nil {
		return nil, err
	}
	if c.LocationID != nil {
		return nil, Errorf(KindConflict, "container %s is still bound to a location", c.Code)
	}
	var n int
	if err := t.queryRow(ctx, `SELECT COUNT(*) FROM container_stock WHERE container_id = ? AND (quantity > 0 OR reserved > 0)`, containerID).Scan(&n); err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, Errorf(KindConflict, "container %s still holds stock", c.Code)
	}
	if _, err := t.exec(ctx, `DELETE FROM container_stock WHERE container_id = ?`, containerID); err != nil {
		return nil, err
	}
	if _, err := t.exec(ctx, `DELETE FROM containers WHERE id = ?`, containerID); err != nil {
		return nil, err
	}
	return c, nil
}

// --- Reads ---

func (db *DB) GetContainer(ctx context.Context, id int64) (*Container, error) {
	c, err := scanContainer(db.QueryRowContext(ctx, db.Q(`SELECT `+containerSelectCols+` FROM containers WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, Errorf(KindNotFound, "container %d not found", id)
	}
	return c, err
}

func (db *DB) ListContainers(ctx context.Context) ([]*Container, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+containerSelectCols+` FROM containers ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Container
	for rows.Next() {
		c, err := scanContainer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ContainerAtLocation returns the container bound to the location, or nil.
func (db *DB) ContainerAtLocation(ctx context.Context, locationID int64) (*Container, error) {
	c, err := scanContainer(db.QueryRowContext(ctx, db.Q(`SELECT `+containerSelectCols+` FROM containers WHERE location_id = ?`), locationID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (db *DB) ListContainerMoves(ctx context.Context, containerID int64, limit int) ([]*ContainerMove, error) {
	q := `SELECT id, container_id, from_location_id, to_location_id, operator, note, created_at FROM container_moves`
	var args []any
	if containerID > 0 {
		q += ` WHERE container_id = ?`
		args = append(args, containerID)
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
	var moves []*ContainerMove
	for rows.Next() {
		var m ContainerMove
		var from, to sql.NullInt64
		var createdAt any
		if err := rows.Scan(&m.ID, &m.ContainerID, &from, &to, &m.Operator, &m.Note, &createdAt); err != nil {
			return nil, err
		}
		m.FromLocationID = int64Ptr(from)
		m.ToLocationID = int64Ptr(to)
		m.CreatedAt = parseTime(createdAt)
		moves = append(moves, &m)
	}
	return moves, rows.Err()
}
