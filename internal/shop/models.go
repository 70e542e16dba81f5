package shop

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool { return r == RoleCustomer || r == RoleAdmin }

type User struct {
	ID           int64     `json:"id"`
	FullName     string    `json:"full_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	ImageURL    string          `json:"image_url"`
	CategoryID  int64           `json:"category_id"`
	Category    *Category       `json:"category,omitempty"` // filled on listings
}

type CartItem struct {
	ID        int64 `json:"id"`
	UserID    int64 `json:"-"`
	ProductID int64 `json:"product_id"`
	Qty       int   `json:"qty"`
}

// CartLine is a cart item joined with the product as it is right now.
type CartLine struct {
	Item    CartItem
	Product Product
}

type Order struct {
	ID        int64           `json:"id"`
	Code      string          `json:"order_code"`
	UserID    int64           `json:"customer_id"`
	Status    Status          `json:"status"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"created_at"`
	Items     []OrderItem     `json:"items"`
}

// OrderItem copies name and price at checkout time and is never rewritten.
type OrderItem struct {
	ID        int64           `json:"-"`
	OrderID   int64           `json:"-"`
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Qty       int             `json:"qty"`
}

// Subtotal is price × qty.
func (it OrderItem) Subtotal() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Qty)))
}

type ProductFilter struct {
	CategoryID int64
}

type OrderFilter struct {
	UserID int64
	Status Status
}

// ProductInput is what create-product receives regardless of the wire format.
type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	ImageURL    string
	CategoryID  int64
}

// ProductPatch carries only the fields present in an update request.
type ProductPatch struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int
	ImageURL    *string
	CategoryID  *int64
}

type UserPatch struct {
	FullName *string
	Role     *Role
	Password *string
}
