package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-storefront/internal/shop"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type queries struct{ db dbtx }

type Store struct {
	DB *pgxpool.Pool
	queries
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db, queries: queries{db: db}}
}

func (s *Store) InTx(ctx context.Context, fn func(q shop.Queries) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(queries{db: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func mapErr(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return shop.NotFound("%s not found", what)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return &shop.Error{Kind: shop.KindConflict, Message: what + " already exists", Err: err}
		case "23503": // foreign_key_violation
			return &shop.Error{Kind: shop.KindConflict, Message: what + " is referenced by other records", Err: err}
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

func mustAffect(tag pgconn.CommandTag, what string) error {
	if tag.RowsAffected() == 0 {
		return shop.NotFound("%s not found", what)
	}
	return nil
}

// ---- users ----

const userCols = `id, full_name, email, password_hash, role, created_at`

func scanUser(row pgx.Row) (shop.User, error) {
	var u shop.User
	var role string
	if err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.PasswordHash, &role, &u.CreatedAt); err != nil {
		return shop.User{}, err
	}
	u.Role = shop.Role(role)
	return u, nil
}

func (q queries) InsertUser(ctx context.Context, u *shop.User) error {
	err := q.db.QueryRow(ctx, `
		INSERT INTO users(full_name, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		u.FullName, u.Email, u.PasswordHash, string(u.Role),
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return mapErr(err, "user")
	}
	return nil
}

func (q queries) UserByID(ctx context.Context, id int64) (shop.User, error) {
	u, err := scanUser(q.db.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, id))
	if err != nil {
		return shop.User{}, mapErr(err, "user")
	}
	return u, nil
}

func (q queries) UserByEmail(ctx context.Context, email string) (shop.User, error) {
	u, err := scanUser(q.db.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE email=$1`, email))
	if err != nil {
		return shop.User{}, mapErr(err, "user")
	}
	return u, nil
}

func (q queries) ListUsers(ctx context.Context) ([]shop.User, error) {
	rows, err := q.db.Query(ctx, `SELECT `+userCols+` FROM users ORDER BY id DESC`)
	if err != nil {
		return nil, mapErr(err, "users")
	}
	defer rows.Close()

	out := []shop.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (q queries) UpdateUser(ctx context.Context, u shop.User) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE users SET full_name=$2, role=$3, password_hash=$4 WHERE id=$1`,
		u.ID, u.FullName, string(u.Role), u.PasswordHash)
	if err != nil {
		return mapErr(err, "user")
	}
	return mustAffect(tag, "user")
}

func (q queries) DeleteUser(ctx context.Context, id int64) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return mapErr(err, "user")
	}
	return mustAffect(tag, "user")
}

// ---- categories ----

func (q queries) InsertCategory(ctx context.Context, c *shop.Category) error {
	err := q.db.QueryRow(ctx, `INSERT INTO categories(name) VALUES ($1) RETURNING id`, c.Name).Scan(&c.ID)
	if err != nil {
		return mapErr(err, "category")
	}
	return nil
}

func (q queries) CategoryByID(ctx context.Context, id int64) (shop.Category, error) {
	var c shop.Category
	if err := q.db.QueryRow(ctx, `SELECT id, name FROM categories WHERE id=$1`, id).Scan(&c.ID, &c.Name); err != nil {
		return shop.Category{}, mapErr(err, "category")
	}
	return c, nil
}

func (q queries) ListCategories(ctx context.Context) ([]shop.Category, error) {
	rows, err := q.db.Query(ctx, `SELECT id, name FROM categories ORDER BY name ASC`)
	if err != nil {
		return nil, mapErr(err, "categories")
	}
	defer rows.Close()

	out := []shop.Category{}
	for rows.Next() {
		var c shop.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q queries) DeleteCategory(ctx context.Context, id int64) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM categories WHERE id=$1`, id)
	if err != nil {
		return mapErr(err, "category")
	}
	return mustAffect(tag, "category")
}

// ---- products ----

const productCols = `p.id, p.name, p.description, p.price, p.stock, p.image_url, p.category_id, c.id, c.name`

const productFrom = ` FROM products p JOIN categories c ON c.id = p.category_id`

func scanProduct(row pgx.Row, extra ...any) (shop.Product, error) {
	var p shop.Product
	var c shop.Category
	dest := append(extra, &p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.ImageURL, &p.CategoryID, &c.ID, &c.Name)
	if err := row.Scan(dest...); err != nil {
		return shop.Product{}, err
	}
	p.Category = &c
	return p, nil
}

func (q queries) InsertProduct(ctx context.Context, p *shop.Product) error {
	err := q.db.QueryRow(ctx, `
		INSERT INTO products(name, description, price, stock, image_url, category_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		p.Name, p.Description, p.Price, p.Stock, p.ImageURL, p.CategoryID,
	).Scan(&p.ID)
	if err != nil {
		return mapErr(err, "product")
	}
	return nil
}

func (q queries) ProductByID(ctx context.Context, id int64) (shop.Product, error) {
	p, err := scanProduct(q.db.QueryRow(ctx, `SELECT `+productCols+productFrom+` WHERE p.id=$1`, id))
	if err != nil {
		return shop.Product{}, mapErr(err, "product")
	}
	return p, nil
}

func (q queries) ListProducts(ctx context.Context, f shop.ProductFilter) ([]shop.Product, error) {
	rows, err := q.db.Query(ctx, `SELECT `+productCols+productFrom+`
		WHERE ($1::bigint = 0 OR p.category_id = $1)
		ORDER BY p.id DESC`, f.CategoryID)
	if err != nil {
		return nil, mapErr(err, "products")
	}
	defer rows.Close()

	out := []shop.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (q queries) CountProducts(ctx context.Context, f shop.ProductFilter) (int, error) {
	var n int
	err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE ($1::bigint = 0 OR category_id = $1)`, f.CategoryID).Scan(&n)
	if err != nil {
		return 0, mapErr(err, "products")
	}
	return n, nil
}

func (q queries) UpdateProduct(ctx context.Context, p shop.Product) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE products
		SET name=$2, description=$3, price=$4, stock=$5, image_url=$6, category_id=$7
		WHERE id=$1`,
		p.ID, p.Name, p.Description, p.Price, p.Stock, p.ImageURL, p.CategoryID)
	if err != nil {
		return mapErr(err, "product")
	}
	return mustAffect(tag, "product")
}

func (q queries) DeleteProduct(ctx context.Context, id int64) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return mapErr(err, "product")
	}
	return mustAffect(tag, "product")
}

// ---- cart ----

func (q queries) AddCartItem(ctx context.Context, userID, productID int64, qty int) (shop.CartItem, error) {
	if qty > shop.MaxLineQty {
		return shop.CartItem{}, shop.InvalidArgument("qty must not exceed %d", shop.MaxLineQty)
	}
	var c shop.CartItem
	err := q.db.QueryRow(ctx, `
		INSERT INTO cart_items(user_id, product_id, qty)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id) DO UPDATE SET qty = cart_items.qty + EXCLUDED.qty
		WHERE cart_items.qty + EXCLUDED.qty <= $4
		RETURNING id, user_id, product_id, qty`,
		userID, productID, qty, shop.MaxLineQty,
	).Scan(&c.ID, &c.UserID, &c.ProductID, &c.Qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return shop.CartItem{}, shop.InvalidArgument("qty must not exceed %d", shop.MaxLineQty)
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return shop.CartItem{}, shop.NotFound("product %d not found", productID)
		}
		return shop.CartItem{}, mapErr(err, "cart item")
	}
	return c, nil
}

const cartLinesSQL = `SELECT ci.id, ci.user_id, ci.product_id, ci.qty, ` + productCols + `
	FROM cart_items ci
	JOIN products p ON p.id = ci.product_id
	JOIN categories c ON c.id = p.category_id
	WHERE ci.user_id = $1
	ORDER BY ci.id`

func (q queries) cartLines(ctx context.Context, sql string, userID int64) ([]shop.CartLine, error) {
	rows, err := q.db.Query(ctx, sql, userID)
	if err != nil {
		return nil, mapErr(err, "cart")
	}
	defer rows.Close()

	out := []shop.CartLine{}
	for rows.Next() {
		var it shop.CartItem
		p, err := scanProduct(rows, &it.ID, &it.UserID, &it.ProductID, &it.Qty)
		if err != nil {
			return nil, err
		}
		out = append(out, shop.CartLine{Item: it, Product: p})
	}
	return out, rows.Err()
}

func (q queries) CartLines(ctx context.Context, userID int64) ([]shop.CartLine, error) {
	return q.cartLines(ctx, cartLinesSQL, userID)
}

// LockCartLines takes row locks on the cart lines and a share lock on their
// products, so a second checkout of the same cart waits and then sees it empty,
// and prices cannot move under the running checkout.
func (q queries) LockCartLines(ctx context.Context, userID int64) ([]shop.CartLine, error) {
	return q.cartLines(ctx, cartLinesSQL+` FOR UPDATE OF ci FOR SHARE OF p`, userID)
}

func (q queries) DeleteCartItem(ctx context.Context, userID, itemID int64) (bool, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM cart_items WHERE id=$1 AND user_id=$2`, itemID, userID)
	if err != nil {
		return false, mapErr(err, "cart item")
	}
	return tag.RowsAffected() == 1, nil
}

func (q queries) DeleteCartItems(ctx context.Context, userID int64, ids []int64) error {
	if _, err := q.db.Exec(ctx, `DELETE FROM cart_items WHERE user_id=$1 AND id = ANY($2)`, userID, ids); err != nil {
		return mapErr(err, "cart items")
	}
	return nil
}

func (q queries) ClearCart(ctx context.Context, userID int64) error {
	if _, err := q.db.Exec(ctx, `DELETE FROM cart_items WHERE user_id=$1`, userID); err != nil {
		return mapErr(err, "cart")
	}
	return nil
}

// ---- orders ----

const orderCols = `id, order_code, user_id, status, total, created_at`

func scanOrder(row pgx.Row) (shop.Order, error) {
	var o shop.Order
	var status string
	if err := row.Scan(&o.ID, &o.Code, &o.UserID, &status, &o.Total, &o.CreatedAt); err != nil {
		return shop.Order{}, err
	}
	o.Status = shop.Status(status)
	return o, nil
}

func (q queries) InsertOrder(ctx context.Context, o *shop.Order) error {
	err := q.db.QueryRow(ctx, `
		INSERT INTO orders(order_code, user_id, status, total)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (order_code) DO NOTHING
		RETURNING id, created_at`,
		o.Code, o.UserID, string(o.Status), o.Total,
	).Scan(&o.ID, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return shop.ErrCodeTaken
	}
	if err != nil {
		return mapErr(err, "order")
	}
	return nil
}

func (q queries) InsertOrderItems(ctx context.Context, orderID int64, items []shop.OrderItem) error {
	for i := range items {
		it := &items[i]
		err := q.db.QueryRow(ctx, `
			INSERT INTO order_items(order_id, product_id, name_snapshot, price_snapshot, qty)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			orderID, it.ProductID, it.Name, it.Price, it.Qty,
		).Scan(&it.ID)
		if err != nil {
			return mapErr(err, "order item")
		}
		it.OrderID = orderID
	}
	return nil
}

// attachItems loads the items of every order in one query.
func (q queries) attachItems(ctx context.Context, orders []shop.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(orders))
	idx := make(map[int64]int, len(orders))
	for i := range orders {
		orders[i].Items = []shop.OrderItem{}
		ids = append(ids, orders[i].ID)
		idx[orders[i].ID] = i
	}
	rows, err := q.db.Query(ctx, `
		SELECT id, order_id, product_id, name_snapshot, price_snapshot, qty
		FROM order_items WHERE order_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return mapErr(err, "order items")
	}
	defer rows.Close()

	for rows.Next() {
		var it shop.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name, &it.Price, &it.Qty); err != nil {
			return err
		}
		o := &orders[idx[it.OrderID]]
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}

func (q queries) oneOrder(ctx context.Context, sql string, arg any) (shop.Order, error) {
	o, err := scanOrder(q.db.QueryRow(ctx, sql, arg))
	if err != nil {
		return shop.Order{}, mapErr(err, "order")
	}
	list := []shop.Order{o}
	if err := q.attachItems(ctx, list); err != nil {
		return shop.Order{}, err
	}
	return list[0], nil
}

func (q queries) OrderByID(ctx context.Context, id int64) (shop.Order, error) {
	return q.oneOrder(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`, id)
}

func (q queries) OrderByCode(ctx context.Context, code string) (shop.Order, error) {
	return q.oneOrder(ctx, `SELECT `+orderCols+` FROM orders WHERE order_code=$1`, code)
}

func (q queries) LockOrder(ctx context.Context, id int64) (shop.Order, error) {
	return q.oneOrder(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1 FOR UPDATE`, id)
}

const orderFilterSQL = ` WHERE ($1::bigint = 0 OR user_id = $1) AND ($2::text = '' OR status = $2)`

func (q queries) ListOrders(ctx context.Context, f shop.OrderFilter) ([]shop.Order, error) {
	rows, err := q.db.Query(ctx, `SELECT `+orderCols+` FROM orders`+orderFilterSQL+` ORDER BY id DESC`,
		f.UserID, string(f.Status))
	if err != nil {
		return nil, mapErr(err, "orders")
	}
	out := []shop.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// rows must be closed before the connection is reused inside a tx
	if err := q.attachItems(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (q queries) CountOrders(ctx context.Context, f shop.OrderFilter) (int, error) {
	var n int
	err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+orderFilterSQL, f.UserID, string(f.Status)).Scan(&n)
	if err != nil {
		return 0, mapErr(err, "orders")
	}
	return n, nil
}

func (q queries) UpdateOrderStatus(ctx context.Context, id int64, s shop.Status) error {
	tag, err := q.db.Exec(ctx, `UPDATE orders SET status=$2 WHERE id=$1`, id, string(s))
	if err != nil {
		return mapErr(err, "order")
	}
	return mustAffect(tag, "order")
}

func (q queries) DeleteOrder(ctx context.Context, id int64) error {
	if _, err := q.db.Exec(ctx, `DELETE FROM order_items WHERE order_id=$1`, id); err != nil {
		return mapErr(err, "order items")
	}
	tag, err := q.db.Exec(ctx, `DELETE FROM orders WHERE id=$1`, id)
	if err != nil {
		return mapErr(err, "order")
	}
	return mustAffect(tag, "order")
}
