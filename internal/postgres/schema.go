package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// order_items.product_id has no foreign key: the row is a snapshot and must
// outlive the product it was copied from.
const SchemaSQL = `
CREATE TABLE IF NOT EXISTS users (
    id            BIGSERIAL PRIMARY KEY,
    full_name     VARCHAR(120) NOT NULL,
    email         VARCHAR(120) NOT NULL UNIQUE,
    password_hash VARCHAR(255) NOT NULL,
    role          VARCHAR(20)  NOT NULL DEFAULT 'customer' CHECK (role IN ('customer','admin')),
    created_at    TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS categories (
    id   BIGSERIAL PRIMARY KEY,
    name VARCHAR(80) NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS products (
    id          BIGSERIAL PRIMARY KEY,
    name        VARCHAR(140)   NOT NULL,
    description TEXT           NOT NULL DEFAULT '',
    price       NUMERIC(12,2)  NOT NULL CHECK (price >= 0),
    stock       INT            NOT NULL DEFAULT 0 CHECK (stock >= 0),
    image_url   VARCHAR(255)   NOT NULL DEFAULT '',
    category_id BIGINT         NOT NULL REFERENCES categories(id) ON DELETE RESTRICT
);
CREATE INDEX IF NOT EXISTS idx_products_category ON products(category_id);

CREATE TABLE IF NOT EXISTS cart_items (
    id         BIGSERIAL PRIMARY KEY,
    user_id    BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
    qty        INT    NOT NULL CHECK (qty >= 1),
    UNIQUE (user_id, product_id)
);

CREATE TABLE IF NOT EXISTS orders (
    id         BIGSERIAL PRIMARY KEY,
    order_code VARCHAR(30)   NOT NULL UNIQUE,
    user_id    BIGINT        NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
    status     VARCHAR(30)   NOT NULL DEFAULT 'pending'
               CHECK (status IN ('pending','paid','shipped','delivered','canceled')),
    total      NUMERIC(20,2) NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ   NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id);
ALTER TABLE orders ALTER COLUMN total TYPE NUMERIC(20,2);

CREATE TABLE IF NOT EXISTS order_items (
    id             BIGSERIAL PRIMARY KEY,
    order_id       BIGINT        NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    product_id     BIGINT        NOT NULL,
    name_snapshot  VARCHAR(140)  NOT NULL,
    price_snapshot NUMERIC(12,2) NOT NULL,
    qty            INT           NOT NULL CHECK (qty >= 1)
);
CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id);
`

func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, SchemaSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
