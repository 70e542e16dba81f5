package shop

import (
	"context"
)

// Queries is the per-entity access the service needs. Lookups by key return a
// NotFound *Error when the row does not exist; unique violations come back as
// Conflict.
type Queries interface {
	InsertUser(ctx context.Context, u *User) error
	UserByID(ctx context.Context, id int64) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, u User) error
	DeleteUser(ctx context.Context, id int64) error

	InsertCategory(ctx context.Context, c *Category) error
	CategoryByID(ctx context.Context, id int64) (Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
	DeleteCategory(ctx context.Context, id int64) error

	InsertProduct(ctx context.Context, p *Product) error
	ProductByID(ctx context.Context, id int64) (Product, error)
	ListProducts(ctx context.Context, f ProductFilter) ([]Product, error)
	CountProducts(ctx context.Context, f ProductFilter) (int, error)
	UpdateProduct(ctx context.Context, p Product) error
	DeleteProduct(ctx context.Context, id int64) error

	// AddCartItem creates the (user, product) line or adds qty to the existing one.
	// A line that would exceed MaxLineQty is left as is and InvalidArgument returned.
	AddCartItem(ctx context.Context, userID, productID int64, qty int) (CartItem, error)
	CartLines(ctx context.Context, userID int64) ([]CartLine, error)
	// LockCartLines is CartLines for use inside InTx: the returned lines stay
	// locked against other writers until the unit ends.
	LockCartLines(ctx context.Context, userID int64) ([]CartLine, error)
	DeleteCartItem(ctx context.Context, userID, itemID int64) (bool, error)
	DeleteCartItems(ctx context.Context, userID int64, ids []int64) error
	ClearCart(ctx context.Context, userID int64) error

	// InsertOrder sets ID and CreatedAt. A duplicate code yields ErrCodeTaken
	// and leaves the unit usable.
	InsertOrder(ctx context.Context, o *Order) error
	InsertOrderItems(ctx context.Context, orderID int64, items []OrderItem) error
	OrderByID(ctx context.Context, id int64) (Order, error)
	OrderByCode(ctx context.Context, code string) (Order, error)
	LockOrder(ctx context.Context, id int64) (Order, error)
	ListOrders(ctx context.Context, f OrderFilter) ([]Order, error)
	CountOrders(ctx context.Context, f OrderFilter) (int, error)
	UpdateOrderStatus(ctx context.Context, id int64, s Status) error
	DeleteOrder(ctx context.Context, id int64) error
}

// Store runs Queries directly or inside one atomic unit.
type Store interface {
	Queries
	// InTx commits when fn returns nil and rolls everything back otherwise.
	InTx(ctx context.Context, fn func(q Queries) error) error
}

// Publisher delivers order events after the change has been committed.
type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, env Envelope) error
}

// StatusCache fronts TrackOrder. Every Invalidate bumps the code's
// generation; Get returns the current generation even on a miss and only
// hits entries stored under it, so a Set racing an Invalidate is never served.
type StatusCache interface {
	Get(ctx context.Context, code string) (t Tracking, gen int64, ok bool)
	Set(ctx context.Context, t Tracking, gen int64)
	Invalidate(ctx context.Context, code string)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
}
