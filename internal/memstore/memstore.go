// Package memstore is an in-process shop.Store. A transaction works on a copy
// of the whole state and swaps it in on commit, so a failed unit leaves no
// trace. All access is serialized by one mutex.
package memstore

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-storefront/internal/shop"
)

type state struct {
	seq        map[string]int64
	users      map[int64]shop.User
	categories map[int64]shop.Category
	products   map[int64]shop.Product
	cart       map[int64]shop.CartItem
	orders     map[int64]shop.Order
	items      map[int64]shop.OrderItem
}

func newState() *state {
	return &state{
		seq:        map[string]int64{},
		users:      map[int64]shop.User{},
		categories: map[int64]shop.Category{},
		products:   map[int64]shop.Product{},
		cart:       map[int64]shop.CartItem{},
		orders:     map[int64]shop.Order{},
		items:      map[int64]shop.OrderItem{},
	}
}

func (s *state) clone() *state {
	return &state{
		seq:        maps.Clone(s.seq),
		users:      maps.Clone(s.users),
		categories: maps.Clone(s.categories),
		products:   maps.Clone(s.products),
		cart:       maps.Clone(s.cart),
		orders:     maps.Clone(s.orders),
		items:      maps.Clone(s.items),
	}
}

func (s *state) next(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

type noLock struct{}

func (noLock) Lock()   {}
func (noLock) Unlock() {}

type queries struct {
	mu sync.Locker
	st *state
}

type Store struct {
	mu sync.Mutex
	*queries
}

func New() *Store {
	s := &Store{}
	s.queries = &queries{mu: &s.mu, st: newState()}
	return s
}

func (s *Store) InTx(ctx context.Context, fn func(q shop.Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&queries{mu: noLock{}, st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (q *queries) InsertUser(_ context.Context, u *shop.User) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, x := range q.st.users {
		if x.Email == u.Email {
			return shop.Conflict("email already exists")
		}
	}
	u.ID = q.st.next("users")
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	q.st.users[u.ID] = *u
	return nil
}

func (q *queries) UserByID(_ context.Context, id int64) (shop.User, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	u, ok := q.st.users[id]
	if !ok {
		return shop.User{}, shop.NotFound("user %d not found", id)
	}
	return u, nil
}

func (q *queries) UserByEmail(_ context.Context, email string) (shop.User, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, u := range q.st.users {
		if u.Email == email {
			return u, nil
		}
	}
	return shop.User{}, shop.NotFound("user %q not found", email)
}

func (q *queries) ListUsers(_ context.Context) ([]shop.User, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]shop.User, 0, len(q.st.users))
	for _, u := range q.st.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (q *queries) UpdateUser(_ context.Context, u shop.User) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.st.users[u.ID]; !ok {
		return shop.NotFound("user %d not found", u.ID)
	}
	q.st.users[u.ID] = u
	return nil
}

func (q *queries) DeleteUser(_ context.Context, id int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.st.users[id]; !ok {
		return shop.NotFound("user %d not found", id)
	}
	for _, o := range q.st.orders {
		if o.UserID == id {
			return shop.Conflict("user %d still owns orders", id)
		}
	}
	for cid, c := range q.st.cart {
		if c.UserID == id {
			delete(q.st.cart, cid)
		}
	}
	delete(q.st.users, id)
	return nil
}

func (q *queries) InsertCategory(_ context.Context, c *shop.Category) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, x := range q.st.categories {
		if x.Name == c.Name {
			return shop.Conflict("category exists")
		}
	}
	c.ID = q.st.next("categories")
	q.st.categories[c.ID] = *c
	return nil
}

func (q *queries) CategoryByID(_ context.Context, id int64) (shop.Category, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	c, ok := q.st.categories[id]
	if !ok {
		return shop.Category{}, shop.NotFound("category %d not found", id)
	}
	return c, nil
}

func (q *queries) ListCategories(_ context.Context) ([]shop.Category, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]shop.Category, 0, len(q.st.categories))
	for _, c := range q.st.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (q *queries) DeleteCategory(_ context.Context, id int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.st.categories[id]; !ok {
		return shop.NotFound("category %d not found", id)
	}
	for _, p := range q.st.products {
		if p.CategoryID == id {
			return shop.Conflict("category %d still has products", id)
		}
	}
	delete(q.st.categories, id)
	return nil
}

func (q *queries) InsertProduct(_ context.Context, p *shop.Product) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.st.categories[p.CategoryID]; !ok {
		return shop.NotFound("category %d not found", p.CategoryID)
	}
	p.ID = q.st.next("products")
	stored := *p
	stored.Category = nil
	q.st.products[p.ID] = stored
	return nil
}

func (q *queries) withCategory(p shop.Product) shop.Product {
	if c, ok := q.st.categories[p.CategoryID]; ok {
		p.Category = &c
	}
	return p
}

func (q *queries) ProductByID(_ context.Context, id int64) (shop.Product, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	p, ok := q.st.products[id]
	if !ok {
		return shop.Product{}, shop.NotFound("product %d not found", id)
	}
	return q.withCategory(p), nil
}

func (q *queries) ListProducts(_ context.Context, f shop.ProductFilter) ([]shop.Product, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := []shop.Product{}
	for _, p := range q.st.products {
		if f.CategoryID != 0 && p.CategoryID != f.CategoryID {
			continue
		}
		out = append(out, q.withCategory(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (q *queries) CountProducts(_ context.Context, f shop.ProductFilter) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, p := range q.st.products {
		if f.CategoryID == 0 || p.CategoryID == f.CategoryID {
			n++
		}
	}
	return n, nil
}

func (q *queries) UpdateProduct(_ context.Context, p shop.Product) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.st.products[p.ID]; !ok {
		return shop.NotFound("product %d not found", p.ID)
	}
	if _, ok := q.st.categories[p.CategoryID]; !ok {
		return shop.NotFound("category %d not found", p.CategoryID)
	}
	p.Category = nil
	q.st.products[p.ID] = p
	return nil
}

func (q *queries) DeleteProduct(_ context.Context, id int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.st.products[id]; !ok {
		return shop.NotFound("product %d not found", id)
	}
	for cid, c := range q.st.cart {
		if c.ProductID == id {
			delete(q.st.cart, cid)
		}
	}
	delete(q.st.products, id)
	return nil
}

func (q *queries) AddCartItem(_ context.Context, userID, productID int64, qty int) (shop.CartItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.st.products[productID]; !ok {
		return shop.CartItem{}, shop.NotFound("product %d not found", productID)
	}
	for id, c := range q.st.cart {
		if c.UserID == userID && c.ProductID == productID {
			if qty > shop.MaxLineQty-c.Qty {
				return shop.CartItem{}, shop.InvalidArgument("qty must not exceed %d", shop.MaxLineQty)
			}
			c.Qty += qty
			q.st.cart[id] = c
			return c, nil
		}
	}
	if qty > shop.MaxLineQty {
		return shop.CartItem{}, shop.InvalidArgument("qty must not exceed %d", shop.MaxLineQty)
	}
	c := shop.CartItem{ID: q.st.next("cart_items"), UserID: userID, ProductID: productID, Qty: qty}
	q.st.cart[c.ID] = c
	return c, nil
}

func (q *queries) cartLines(userID int64) []shop.CartLine {
	out := []shop.CartLine{}
	for _, c := range q.st.cart {
		if c.UserID != userID {
			continue
		}
		out = append(out, shop.CartLine{Item: c, Product: q.withCategory(q.st.products[c.ProductID])})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Item.ID < out[j].Item.ID })
	return out
}

func (q *queries) CartLines(_ context.Context, userID int64) ([]shop.CartLine, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cartLines(userID), nil
}

// LockCartLines needs no row locks here: a unit already holds the store mutex.
func (q *queries) LockCartLines(ctx context.Context, userID int64) ([]shop.CartLine, error) {
	return q.CartLines(ctx, userID)
}

func (q *queries) DeleteCartItem(_ context.Context, userID, itemID int64) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	c, ok := q.st.cart[itemID]
	if !ok || c.UserID != userID {
		return false, nil
	}
	delete(q.st.cart, itemID)
	return true, nil
}

func (q *queries) DeleteCartItems(_ context.Context, userID int64, ids []int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, id := range ids {
		if c, ok := q.st.cart[id]; ok && c.UserID == userID {
			delete(q.st.cart, id)
		}
	}
	return nil
}

func (q *queries) ClearCart(_ context.Context, userID int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for id, c := range q.st.cart {
		if c.UserID == userID {
			delete(q.st.cart, id)
		}
	}
	return nil
}

func (q *queries) InsertOrder(_ context.Context, o *shop.Order) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, x := range q.st.orders {
		if x.Code == o.Code {
			return shop.ErrCodeTaken
		}
	}
	o.ID = q.st.next("orders")
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	stored := *o
	stored.Items = nil
	q.st.orders[o.ID] = stored
	return nil
}

func (q *queries) InsertOrderItems(_ context.Context, orderID int64, items []shop.OrderItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.st.orders[orderID]; !ok {
		return shop.NotFound("order %d not found", orderID)
	}
	for i := range items {
		items[i].ID = q.st.next("order_items")
		items[i].OrderID = orderID
		q.st.items[items[i].ID] = items[i]
	}
	return nil
}

func (q *queries) withItems(o shop.Order) shop.Order {
	o.Items = []shop.OrderItem{}
	for _, it := range q.st.items {
		if it.OrderID == o.ID {
			o.Items = append(o.Items, it)
		}
	}
	sort.Slice(o.Items, func(i, j int) bool { return o.Items[i].ID < o.Items[j].ID })
	return o
}

func (q *queries) OrderByID(_ context.Context, id int64) (shop.Order, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	o, ok := q.st.orders[id]
	if !ok {
		return shop.Order{}, shop.NotFound("order %d not found", id)
	}
	return q.withItems(o), nil
}

func (q *queries) OrderByCode(_ context.Context, code string) (shop.Order, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, o := range q.st.orders {
		if o.Code == code {
			return q.withItems(o), nil
		}
	}
	return shop.Order{}, shop.NotFound("order %q not found", code)
}

func (q *queries) LockOrder(ctx context.Context, id int64) (shop.Order, error) {
	return q.OrderByID(ctx, id)
}

func (q *queries) ListOrders(_ context.Context, f shop.OrderFilter) ([]shop.Order, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := []shop.Order{}
	for _, o := range q.st.orders {
		if matchOrder(o, f) {
			out = append(out, q.withItems(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (q *queries) CountOrders(_ context.Context, f shop.OrderFilter) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, o := range q.st.orders {
		if matchOrder(o, f) {
			n++
		}
	}
	return n, nil
}

func matchOrder(o shop.Order, f shop.OrderFilter) bool {
	if f.UserID != 0 && o.UserID != f.UserID {
		return false
	}
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	return true
}

func (q *queries) UpdateOrderStatus(_ context.Context, id int64, s shop.Status) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	o, ok := q.st.orders[id]
	if !ok {
		return shop.NotFound("order %d not found", id)
	}
	o.Status = s
	q.st.orders[id] = o
	return nil
}

func (q *queries) DeleteOrder(_ context.Context, id int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.st.orders[id]; !ok {
		return shop.NotFound("order %d not found", id)
	}
	for iid, it := range q.st.items {
		if it.OrderID == id {
			delete(q.st.items, iid)
		}
	}
	delete(q.st.orders, id)
	return nil
}
