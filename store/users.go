package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Permission codes checked by the HTTP gate.
const (
	PermMaterialsRead       = "materials.read"
	PermMaterialsWrite      = "materials.write"
	PermMaterialsDelete     = "materials.delete"
	PermInventoryRead       = "inventory.read"
	PermInventoryAdjust     = "inventory.adjust"
	PermOrdersRead          = "orders.read"
	PermOrdersWrite         = "orders.write"
	PermInboundReceive      = "inbound.receive"
	PermOutboundReserve     = "outbound.reserve"
	PermOutboundPick        = "outbound.pick"
	PermOutboundPack        = "outbound.pack"
	PermOutboundShip        = "outbound.ship"
	PermStockMovesRead      = "stock_moves.read"
	PermUsersRead           = "users.read"
	PermUsersWrite          = "users.write"
	PermRolesRead           = "roles.read"
	PermRolesWrite          = "roles.write"
	PermSystemSetup         = "system.setup"
	PermAreasRead           = "areas.read"
	PermAreasWrite          = "areas.write"
	PermLocationsRead       = "locations.read"
	PermLocationsWrite      = "locations.write"
	PermContainersRead      = "containers.read"
	PermContainersWrite     = "containers.write"
	PermContainerMovesRead  = "container_moves.read"
	PermContainerMovesWrite = "container_moves.write"
)

// PermissionCatalog maps every permission code to its description.
var PermissionCatalog = map[string]string{
	PermMaterialsRead:       "view materials",
	PermMaterialsWrite:      "create and edit materials",
	PermMaterialsDelete:     "delete or deactivate materials",
	PermInventoryRead:       "view inventory",
	PermInventoryAdjust:     "adjust inventory",
	PermOrdersRead:          "view orders",
	PermOrdersWrite:         "create orders",
	PermInboundReceive:      "receive inbound orders",
	PermOutboundReserve:     "reserve outbound stock",
	PermOutboundPick:        "pick outbound orders",
	PermOutboundPack:        "pack outbound orders",
	PermOutboundShip:        "ship outbound orders",
	PermStockMovesRead:      "view stock moves",
	PermUsersRead:           "view users",
	PermUsersWrite:          "manage users",
	PermRolesRead:           "view roles",
	PermRolesWrite:          "manage roles",
	PermSystemSetup:         "system setup",
	PermAreasRead:           "view areas",
	PermAreasWrite:          "manage areas",
	PermLocationsRead:       "view locations",
	PermLocationsWrite:      "manage locations",
	PermContainersRead:      "view containers",
	PermContainersWrite:     "manage containers",
	PermContainerMovesRead:  "view container moves",
	PermContainerMovesWrite: "move containers",
}

// PermissionCodes returns the catalog codes in sorted order.
func PermissionCodes() []string {
	codes := make([]string, 0, len(PermissionCatalog))
	for code := range PermissionCatalog {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

type Role struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	RoleID       *int64    `json:"role_id"`
	Active       bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

const userSelectCols = `id, username, password_hash, role_id, is_active, created_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	var roleID sql.NullInt64
	var active int
	var createdAt any
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &roleID, &active, &createdAt); err != nil {
		return nil, err
	}
	u.RoleID = int64Ptr(roleID)
	u.Active = active != 0
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

func (db *DB) GetUserByName(ctx context.Context, username string) (*User, error) {
	u, err := scanUser(db.QueryRowContext(ctx, db.Q(`SELECT `+userSelectCols+` FROM users WHERE username = ?`), username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, Errorf(KindNotFound, "user %q not found", username)
	}
	return u, err
}

func (db *DB) GetUser(ctx context.Context, id int64) (*User, error) {
	u, err := scanUser(db.QueryRowContext(ctx, db.Q(`SELECT `+userSelectCols+` FROM users WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, Errorf(KindNotFound, "user %d not found", id)
	}
	return u, err
}

func (db *DB) ListUsers(ctx context.Context) ([]*User, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+userSelectCols+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (db *DB) CreateUser(ctx context.Context, u *User) error {
	u.Active = true
	id, err := db.insertID(ctx, `INSERT INTO users (username, password_hash, role_id, is_active) VALUES (?, ?, ?, ?)`,
		u.Username, u.PasswordHash, nullInt64(u.RoleID), boolToInt(u.Active))
	if err != nil {
		if isUniqueViolation(err) {
			return Errorf(KindConflict, "username %q already exists", u.Username)
		}
		return fmt.Errorf("create user: %w", err)
	}
	u.ID = id
	return nil
}

// UserPermissions returns the sorted permission codes granted through the
// user's role. Inactive users have none.
func (db *DB) UserPermissions(ctx context.Context, userID int64) ([]string, error) {
	rows, err := db.QueryContext(ctx, db.Q(`SELECT rp.permission_code FROM users u
		JOIN role_permissions rp ON rp.role_id = u.role_id
		WHERE u.id = ? AND u.is_active = 1 ORDER BY rp.permission_code`), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// --- Roles ---

func (db *DB) CreateRole(ctx context.Context, r *Role) error {
	return db.WithTx(ctx, "create_role", func(tx *Tx) error {
		id, err := tx.insertID(ctx, `INSERT INTO roles (name, description) VALUES (?, ?)`, r.Name, r.Description)
		if err != nil {
			if isUniqueViolation(err) {
				return Errorf(KindConflict, "role %q already exists", r.Name)
			}
			return fmt.Errorf("create role: %w", err)
		}
		r.ID = id
		return tx.grantPermissions(ctx, r.ID, r.Permissions)
	})
}

func (t *Tx) grantPermissions(ctx context.Context, roleID int64, codes []string) error {
	for _, code := range codes {
		if _, ok := PermissionCatalog[code]; !ok {
			return Errorf(KindInvalid, "unknown permission %q", code)
		}
		if _, err := t.exec(ctx, `INSERT INTO role_permissions (role_id, permission_code) VALUES (?, ?) ON CONFLICT (role_id, permission_code) DO NOTHING`,
			roleID, code); err != nil {
			return fmt.Errorf("grant %s: %w", code, err)
		}
	}
	return nil
}

func (db *DB) ListRoles(ctx context.Context) ([]*Role, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, description FROM roles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	var roles []*Role
	byID := map[int64]*Role{}
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.ID, &r.Name, &r.Description); err != nil {
			rows.Close()
			return nil, err
		}
		roles = append(roles, &r)
		byID[r.ID] = &r
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	perms, err := db.QueryContext(ctx, `SELECT role_id, permission_code FROM role_permissions ORDER BY role_id, permission_code`)
	if err != nil {
		return nil, err
	}
	defer perms.Close()
	for perms.Next() {
		var roleID int64
		var code string
		if err := perms.Scan(&roleID, &code); err != nil {
			return nil, err
		}
		if r := byID[roleID]; r != nil {
			r.Permissions = append(r.Permissions, code)
		}
	}
	return roles, perms.Err()
}

// EnsureAdmin creates the admin role with every catalog permission and, when
// no user named admin exists, the admin user with passwordHash.
func (db *DB) EnsureAdmin(ctx context.Context, passwordHash string) error {
	return db.WithTx(ctx, "ensure_admin", func(tx *Tx) error {
		var roleID int64
		err := tx.queryRow(ctx, `SELECT id FROM roles WHERE name = 'admin'`).Scan(&roleID)
		if errors.Is(err, sql.ErrNoRows) {
			roleID, err = tx.insertID(ctx, `INSERT INTO roles (name, description) VALUES ('admin', 'System Administrator')`)
		}
		if err != nil {
			return fmt.Errorf("admin role: %w", err)
		}
		if err := tx.grantPermissions(ctx, roleID, PermissionCodes()); err != nil {
			return err
		}
		var n int
		if err := tx.queryRow(ctx, `SELECT COUNT(*) FROM users WHERE username = 'admin'`).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		_, err = tx.exec(ctx, `INSERT INTO users (username, password_hash, role_id, is_active) VALUES ('admin', ?, ?, 1)`, passwordHash, roleID)
		return err
	})
}
