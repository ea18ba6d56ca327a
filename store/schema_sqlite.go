package store

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS warehouses (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    code        TEXT NOT NULL UNIQUE,
    name        TEXT NOT NULL DEFAULT '',
    created_at  TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);

CREATE TABLE IF NOT EXISTS locations (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    warehouse_id   INTEGER NOT NULL REFERENCES warehouses(id),
    code           TEXT NOT NULL,
    name           TEXT NOT NULL DEFAULT '',
    status         TEXT NOT NULL DEFAULT 'ACTIVE',
    binding_status TEXT NOT NULL DEFAULT 'UNBOUND',
    created_at     TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    UNIQUE (warehouse_id, code)
);
CREATE INDEX IF NOT EXISTS idx_locations_warehouse ON locations(warehouse_id);

CREATE TABLE IF NOT EXISTS materials (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    sku         TEXT NOT NULL UNIQUE,
    name        TEXT NOT NULL DEFAULT '',
    unit        TEXT NOT NULL DEFAULT 'pcs',
    category    TEXT NOT NULL DEFAULT 'general',
    is_active   INTEGER NOT NULL DEFAULT 1,
    created_at  TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);

CREATE TABLE IF NOT EXISTS stock (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    material_id INTEGER NOT NULL REFERENCES materials(id),
    location_id INTEGER NOT NULL REFERENCES locations(id),
    quantity    INTEGER NOT NULL DEFAULT 0,
    reserved    INTEGER NOT NULL DEFAULT 0,
    version     INTEGER NOT NULL DEFAULT 0,
    updated_at  TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    UNIQUE (material_id, location_id)
);
CREATE INDEX IF NOT EXISTS idx_stock_location ON stock(location_id);

CREATE TABLE IF NOT EXISTS containers (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    code           TEXT NOT NULL UNIQUE,
    container_type TEXT NOT NULL DEFAULT 'TOTE',
    status         TEXT NOT NULL DEFAULT 'UNBOUND',
    location_id    INTEGER UNIQUE REFERENCES locations(id),
    description    TEXT NOT NULL DEFAULT '',
    created_at     TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);

CREATE TABLE IF NOT EXISTS container_stock (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    container_id INTEGER NOT NULL REFERENCES containers(id),
    material_id  INTEGER NOT NULL REFERENCES materials(id),
    quantity     INTEGER NOT NULL DEFAULT 0,
    reserved     INTEGER NOT NULL DEFAULT 0,
    version      INTEGER NOT NULL DEFAULT 0,
    UNIQUE (container_id, material_id)
);

CREATE TABLE IF NOT EXISTS container_moves (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    container_id     INTEGER NOT NULL,
    from_location_id INTEGER,
    to_location_id   INTEGER,
    operator         TEXT NOT NULL DEFAULT '',
    note             TEXT NOT NULL DEFAULT '',
    created_at       TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_container_moves_container ON container_moves(container_id);

CREATE TABLE IF NOT EXISTS orders (
    id                 INTEGER PRIMARY KEY AUTOINCREMENT,
    order_no           TEXT NOT NULL UNIQUE,
    order_type         TEXT NOT NULL,
    status             TEXT NOT NULL DEFAULT 'CREATED',
    partner            TEXT NOT NULL DEFAULT '',
    source_location_id INTEGER,
    target_location_id INTEGER,
    created_by         TEXT NOT NULL DEFAULT '',
    created_at         TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    updated_at         TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_orders_type ON orders(order_type);

CREATE TABLE IF NOT EXISTS order_lines (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id      INTEGER NOT NULL REFERENCES orders(id),
    material_id   INTEGER NOT NULL REFERENCES materials(id),
    material_sku  TEXT NOT NULL DEFAULT '',
    material_name TEXT NOT NULL DEFAULT '',
    qty           INTEGER NOT NULL,
    reserved_qty  INTEGER NOT NULL DEFAULT 0,
    picked_qty    INTEGER NOT NULL DEFAULT 0,
    packed_qty    INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_order_lines_order ON order_lines(order_id);
CREATE INDEX IF NOT EXISTS idx_order_lines_material ON order_lines(material_id);

CREATE TABLE IF NOT EXISTS order_history (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id    INTEGER NOT NULL REFERENCES orders(id),
    status      TEXT NOT NULL,
    detail      TEXT NOT NULL DEFAULT '',
    created_at  TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_order_history_order ON order_history(order_id);

CREATE TABLE IF NOT EXISTS stock_moves (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    material_id      INTEGER NOT NULL,
    from_location_id INTEGER,
    to_location_id   INTEGER,
    qty              INTEGER NOT NULL,
    move_type        TEXT NOT NULL,
    operator         TEXT NOT NULL DEFAULT '',
    ref_id           INTEGER,
    created_at       TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_stock_moves_material ON stock_moves(material_id);
CREATE INDEX IF NOT EXISTS idx_stock_moves_ref ON stock_moves(ref_id);
CREATE INDEX IF NOT EXISTS idx_stock_moves_from ON stock_moves(from_location_id);
CREATE INDEX IF NOT EXISTS idx_stock_moves_to ON stock_moves(to_location_id);

CREATE TABLE IF NOT EXISTS idempotency_records (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id         INTEGER NOT NULL,
    method          TEXT NOT NULL,
    path            TEXT NOT NULL,
    idempotency_key TEXT NOT NULL,
    request_hash    TEXT NOT NULL,
    status_code     INTEGER NOT NULL DEFAULT 0,
    response_body   TEXT,
    created_at      TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    UNIQUE (user_id, method, path, idempotency_key)
);

CREATE TABLE IF NOT EXISTS operation_logs (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    module         TEXT NOT NULL,
    action         TEXT NOT NULL,
    entity         TEXT NOT NULL,
    entity_id      INTEGER,
    detail         TEXT NOT NULL DEFAULT '',
    operator       TEXT NOT NULL DEFAULT '',
    before_value   TEXT,
    after_value    TEXT,
    trace_id       TEXT NOT NULL DEFAULT '',
    request_source TEXT NOT NULL DEFAULT '',
    created_at     TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_operation_logs_entity ON operation_logs(entity, entity_id);

CREATE TABLE IF NOT EXISTS roles (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    name        TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS role_permissions (
    role_id         INTEGER NOT NULL REFERENCES roles(id),
    permission_code TEXT NOT NULL,
    PRIMARY KEY (role_id, permission_code)
);

CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    role_id       INTEGER REFERENCES roles(id),
    is_active     INTEGER NOT NULL DEFAULT 1,
    created_at    TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
`
