package store

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS warehouses (
    id          BIGSERIAL PRIMARY KEY,
    code        TEXT NOT NULL UNIQUE,
    name        TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS locations (
    id             BIGSERIAL PRIMARY KEY,
    warehouse_id   BIGINT NOT NULL REFERENCES warehouses(id),
    code           TEXT NOT NULL,
    name           TEXT NOT NULL DEFAULT '',
    status         TEXT NOT NULL DEFAULT 'ACTIVE',
    binding_status TEXT NOT NULL DEFAULT 'UNBOUND',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (warehouse_id, code)
);
CREATE INDEX IF NOT EXISTS idx_locations_warehouse ON locations(warehouse_id);

CREATE TABLE IF NOT EXISTS materials (
    id          BIGSERIAL PRIMARY KEY,
    sku         TEXT NOT NULL UNIQUE,
    name        TEXT NOT NULL DEFAULT '',
    unit        TEXT NOT NULL DEFAULT 'pcs',
    category    TEXT NOT NULL DEFAULT 'general',
    is_active   INTEGER NOT NULL DEFAULT 1,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS stock (
    id          BIGSERIAL PRIMARY KEY,
    material_id BIGINT NOT NULL REFERENCES materials(id),
    location_id BIGINT NOT NULL REFERENCES locations(id),
    quantity    BIGINT NOT NULL DEFAULT 0,
    reserved    BIGINT NOT NULL DEFAULT 0,
    version     BIGINT NOT NULL DEFAULT 0,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (material_id, location_id)
);
CREATE INDEX IF NOT EXISTS idx_stock_location ON stock(location_id);

CREATE TABLE IF NOT EXISTS containers (
    id             BIGSERIAL PRIMARY KEY,
    code           TEXT NOT NULL UNIQUE,
    container_type TEXT NOT NULL DEFAULT 'TOTE',
    status         TEXT NOT NULL DEFAULT 'UNBOUND',
    location_id    BIGINT UNIQUE REFERENCES locations(id),
    description    TEXT NOT NULL DEFAULT '',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS container_stock (
    id           BIGSERIAL PRIMARY KEY,
    container_id BIGINT NOT NULL REFERENCES containers(id),
    material_id  BIGINT NOT NULL REFERENCES materials(id),
    quantity     BIGINT NOT NULL DEFAULT 0,
    reserved     BIGINT NOT NULL DEFAULT 0,
    version      BIGINT NOT NULL DEFAULT 0,
    UNIQUE (container_id, material_id)
);

CREATE TABLE IF NOT EXISTS container_moves (
    id               BIGSERIAL PRIMARY KEY,
    container_id     BIGINT NOT NULL,
    from_location_id BIGINT,
    to_location_id   BIGINT,
    operator         TEXT NOT NULL DEFAULT '',
    note             TEXT NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_container_moves_container ON container_moves(container_id);

CREATE TABLE IF NOT EXISTS orders (
    id                 BIGSERIAL PRIMARY KEY,
    order_no           TEXT NOT NULL UNIQUE,
    order_type         TEXT NOT NULL,
    status             TEXT NOT NULL DEFAULT 'CREATED',
    partner            TEXT NOT NULL DEFAULT '',
    source_location_id BIGINT,
    target_location_id BIGINT,
    created_by         TEXT NOT NULL DEFAULT '',
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_orders_type ON orders(order_type);

CREATE TABLE IF NOT EXISTS order_lines (
    id            BIGSERIAL PRIMARY KEY,
    order_id      BIGINT NOT NULL REFERENCES orders(id),
    material_id   BIGINT NOT NULL REFERENCES materials(id),
    material_sku  TEXT NOT NULL DEFAULT '',
    material_name TEXT NOT NULL DEFAULT '',
    qty           BIGINT NOT NULL,
    reserved_qty  BIGINT NOT NULL DEFAULT 0,
    picked_qty    BIGINT NOT NULL DEFAULT 0,
    packed_qty    BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_order_lines_order ON order_lines(order_id);
CREATE INDEX IF NOT EXISTS idx_order_lines_material ON order_lines(material_id);

CREATE TABLE IF NOT EXISTS order_history (
    id          BIGSERIAL PRIMARY KEY,
    order_id    BIGINT NOT NULL REFERENCES orders(id),
    status      TEXT NOT NULL,
    detail      TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_order_history_order ON order_history(order_id);

CREATE TABLE IF NOT EXISTS stock_moves (
    id               BIGSERIAL PRIMARY KEY,
    material_id      BIGINT NOT NULL,
    from_location_id BIGINT,
    to_location_id   BIGINT,
    qty              BIGINT NOT NULL,
    move_type        TEXT NOT NULL,
    operator         TEXT NOT NULL DEFAULT '',
    ref_id           BIGINT,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_stock_moves_material ON stock_moves(material_id);
CREATE INDEX IF NOT EXISTS idx_stock_moves_ref ON stock_moves(ref_id);
CREATE INDEX IF NOT EXISTS idx_stock_moves_from ON stock_moves(from_location_id);
CREATE INDEX IF NOT EXISTS idx_stock_moves_to ON stock_moves(to_location_id);

CREATE TABLE IF NOT EXISTS idempotency_records (
    id              BIGSERIAL PRIMARY KEY,
    user_id         BIGINT NOT NULL,
    method          TEXT NOT NULL,
    path            TEXT NOT NULL,
    idempotency_key TEXT NOT NULL,
    request_hash    TEXT NOT NULL,
    status_code     INTEGER NOT NULL DEFAULT 0,
    response_body   TEXT,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (user_id, method, path, idempotency_key)
);

CREATE TABLE IF NOT EXISTS operation_logs (
    id             BIGSERIAL PRIMARY KEY,
    module         TEXT NOT NULL,
    action         TEXT NOT NULL,
    entity         TEXT NOT NULL,
    entity_id      BIGINT,
    detail         TEXT NOT NULL DEFAULT '',
    operator       TEXT NOT NULL DEFAULT '',
    before_value   JSONB,
    after_value    JSONB,
    trace_id       TEXT NOT NULL DEFAULT '',
    request_source TEXT NOT NULL DEFAULT '',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_operation_logs_entity ON operation_logs(entity, entity_id);

CREATE TABLE IF NOT EXISTS roles (
    id          BIGSERIAL PRIMARY KEY,
    name        TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS role_permissions (
    role_id         BIGINT NOT NULL REFERENCES roles(id),
    permission_code TEXT NOT NULL,
    PRIMARY KEY (role_id, permission_code)
);

CREATE TABLE IF NOT EXISTS users (
    id            BIGSERIAL PRIMARY KEY,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    role_id       BIGINT REFERENCES roles(id),
    is_active     INTEGER NOT NULL DEFAULT 1,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
