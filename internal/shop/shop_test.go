package shop_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-storefront/internal/memstore"
	"github.com/ariefcatur/go-storefront/internal/shop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type plainHasher struct{}

func (plainHasher) Hash(pw string) (string, error) { return "hashed:" + pw, nil }

type recordedEvent struct {
	topic string
	key   string
	env   shop.Envelope
}

type fakeBus struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (b *fakeBus) Publish(_ context.Context, topic string, key []byte, env shop.Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{topic: topic, key: string(key), env: env})
	return nil
}

func (b *fakeBus) byType(t string) []recordedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []recordedEvent
	for _, e := range b.events {
		if e.env.EventType == t {
			out = append(out, e)
		}
	}
	return out
}

type cachedEntry struct {
	t   shop.Tracking
	gen int64
}

type fakeCache struct {
	mu   sync.Mutex
	m    map[string]cachedEntry
	gens map[string]int64
	hits int
}

func newFakeCache() *fakeCache {
	return &fakeCache{m: map[string]cachedEntry{}, gens: map[string]int64{}}
}

func (c *fakeCache) Get(_ context.Context, code string) (shop.Tracking, int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	gen := c.gens[code]
	e, ok := c.m[code]
	if !ok || e.gen != gen {
		return shop.Tracking{}, gen, false
	}
	c.hits++
	return e.t, gen, true
}

func (c *fakeCache) Set(_ context.Context, t shop.Tracking, gen int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[t.Code] = cachedEntry{t: t, gen: gen}
}

func (c *fakeCache) Invalidate(_ context.Context, code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[code]++
	delete(c.m, code)
}

type fixture struct {
	ctx      context.Context
	store    *memstore.Store
	svc      *shop.Service
	bus      *fakeBus
	cache    *fakeCache
	admin    shop.Actor
	alice    shop.Actor
	bob      shop.Actor
	category shop.Category
	productA shop.Product
	productB shop.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	f := &fixture{
		ctx:   ctx,
		store: store,
		bus:   &fakeBus{},
		cache: newFakeCache(),
	}
	f.svc = &shop.Service{Store: store, Events: f.bus, Cache: f.cache, Hasher: plainHasher{}, Producer: "shop-test"}

	f.admin = f.user(t, "admin@shop.test", shop.RoleAdmin)
	f.alice = f.user(t, "alice@shop.test", shop.RoleCustomer)
	f.bob = f.user(t, "bob@shop.test", shop.RoleCustomer)

	var err error
	f.category, err = f.svc.CreateCategory(ctx, f.admin, "Phones")
	require.NoError(t, err)
	f.productA = f.product(t, "Phone A", "10")
	f.productB = f.product(t, "Phone B", "5")
	return f
}

func (f *fixture) user(t *testing.T, email string, role shop.Role) shop.Actor {
	t.Helper()
	u := shop.User{FullName: email, Email: email, Role: role, PasswordHash: "x"}
	require.NoError(t, f.store.InsertUser(f.ctx, &u))
	return shop.Actor{UserID: u.ID, Role: role}
}

func (f *fixture) product(t *testing.T, name, price string) shop.Product {
	t.Helper()
	p, err := f.svc.CreateProduct(f.ctx, f.admin, shop.ProductInput{
		Name: name, Price: decimal.RequireFromString(price), Stock: 3, CategoryID: f.category.ID,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) add(t *testing.T, a shop.Actor, p shop.Product, qty int) {
	t.Helper()
	_, err := f.svc.AddToCart(f.ctx, a, p.ID, qty)
	require.NoError(t, err)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCheckoutSnapshotsCart(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.alice, f.productA, 2)
	f.add(t, f.alice, f.productB, 1)

	o, err := f.svc.Checkout(f.ctx, f.alice)
	require.NoError(t, err)

	assert.True(t, o.Total.Equal(dec("25")), "total %s", o.Total)
	assert.Equal(t, shop.StatusPending, o.Status)
	assert.Equal(t, f.alice.UserID, o.UserID)
	assert.Regexp(t, regexp.MustCompile(`^ORD-\d{8}-\d{6}$`), o.Code)
	require.Len(t, o.Items, 2)
	assert.Equal(t, "Phone A", o.Items[0].Name)
	assert.True(t, o.Items[0].Price.Equal(dec("10")))
	assert.Equal(t, 2, o.Items[0].Qty)
	assert.Equal(t, "Phone B", o.Items[1].Name)
	assert.Equal(t, 1, o.Items[1].Qty)

	cart, err := f.svc.Cart(f.ctx, f.alice)
	require.NoError(t, err)
	assert.Empty(t, cart)

	stored, err := f.svc.Order(f.ctx, f.alice, o.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Items, 2)
	assert.True(t, stored.Total.Equal(dec("25")))
}

func TestCheckoutTotalIsSumOfSnapshots(t *testing.T) {
	f := newFixture(t)
	c := f.product(t, "Cable", "0.10")
	f.add(t, f.alice, c, 3)
	f.add(t, f.alice, f.productB, 4)

	o, err := f.svc.Checkout(f.ctx, f.alice)
	require.NoError(t, err)

	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.Subtotal())
	}
	assert.True(t, o.Total.Equal(sum))
	assert.Equal(t, "20.3", o.Total.String())
}

func TestCheckoutRejectsOversizedTotal(t *testing.T) {
	f := newFixture(t)
	prev := shop.MaxOrderTotal
	shop.MaxOrderTotal = dec("50")
	t.Cleanup(func() { shop.MaxOrderTotal = prev })

	f.add(t, f.alice, f.productA, 5)
	_, err := f.svc.Checkout(f.ctx, f.alice)
	assert.True(t, shop.IsKind(err, shop.KindInvalidArgument), "got %v", err)

	cart, err := f.svc.Cart(f.ctx, f.alice)
	require.NoError(t, err)
	assert.Len(t, cart, 1)
}

func TestCheckoutEmptyCart(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Checkout(f.ctx, f.alice)
	require.Error(t, err)
	assert.True(t, shop.IsKind(err, shop.KindInvalidState))
	assert.Equal(t, "cart is empty", shop.Message(err))

	orders, err := f.svc.MyOrders(f.ctx, f.alice)
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Empty(t, f.bus.byType(shop.EventOrderCreated))
}

func TestCheckoutRequiresUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Checkout(f.ctx, shop.Actor{})
	assert.True(t, shop.IsKind(err, shop.KindUnauthorized))
}

func TestSnapshotSurvivesProductChanges(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.alice, f.productA, 1)
	f.add(t, f.alice, f.productB, 1)
	o, err := f.svc.Checkout(f.ctx, f.alice)
	require.NoError(t, err)

	name, price := "Phone A v2", dec("99.99")
	_, err = f.svc.UpdateProduct(f.ctx, f.admin, f.productA.ID, shop.ProductPatch{Name: &name, Price: &price})
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteProduct(f.ctx, f.admin, f.productB.ID))

	got, err := f.svc.Order(f.ctx, f.alice, o.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "Phone A", got.Items[0].Name)
	assert.True(t, got.Items[0].Price.Equal(dec("10")))
	assert.Equal(t, f.productB.ID, got.Items[1].ProductID)
	assert.Equal(t, "Phone B", got.Items[1].Name)
	assert.True(t, got.Items[1].Price.Equal(dec("5")))
	assert.True(t, got.Total.Equal(dec("15")))
}

func TestAddToCartMergesSameProduct(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.alice, f.productA, 1)
	f.add(t, f.alice, f.productA, 4)

	cart, err := f.svc.Cart(f.ctx, f.alice)
	require.NoError(t, err)
	require.Len(t, cart, 1)
	assert.Equal(t, 5, cart[0].Item.Qty)
	assert.Equal(t, f.productA.ID, cart[0].Product.ID)
}

func TestAddToCartValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.AddToCart(f.ctx, f.alice, f.productA.ID, 0)
	assert.True(t, shop.IsKind(err, shop.KindInvalidArgument))
	_, err = f.svc.AddToCart(f.ctx, f.alice, f.productA.ID, -2)
	assert.True(t, shop.IsKind(err, shop.KindInvalidArgument))
	_, err = f.svc.AddToCart(f.ctx, f.alice, 0, 1)
	assert.True(t, shop.IsKind(err, shop.KindInvalidArgument))
	_, err = f.svc.AddToCart(f.ctx, f.alice, 9999, 1)
	assert.True(t, shop.IsKind(err, shop.KindNotFound))
	assert.Equal(t, "product not found", shop.Message(err))
}

func TestAddToCartCapsLineQty(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.AddToCart(f.ctx, f.alice, f.productA.ID, math.MaxInt)
	assert.True(t, shop.IsKind(err, shop.KindInvalidArgument), "got %v", err)
	_, err = f.svc.AddToCart(f.ctx, f.alice, f.productA.ID, shop.MaxLineQty+1)
	assert.True(t, shop.IsKind(err, shop.KindInvalidArgument), "got %v", err)

	f.add(t, f.alice, f.productA, shop.MaxLineQty-1)
	f.add(t, f.alice, f.productA, 1)
	_, err = f.svc.AddToCart(f.ctx, f.alice, f.productA.ID, 1)
	assert.True(t, shop.IsKind(err, shop.KindInvalidArgument), "got %v", err)

	cart, err := f.svc.Cart(f.ctx, f.alice)
	require.NoError(t, err)
	require.Len(t, cart, 1)
	assert.Equal(t, shop.MaxLineQty, cart[0].Item.Qty)

	o, err := f.svc.Checkout(f.ctx, f.alice)
	require.NoError(t, err)
	assert.Equal(t, "100000", o.Total.String())
}

func TestConcurrentAddsStayUnderLineCap(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.alice, f.productA, shop.MaxLineQty-5)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.svc.AddToCart(f.ctx, f.alice, f.productA.ID, 1)
		}()
	}
	wg.Wait()

	cart, err := f.svc.Cart(f.ctx, f.alice)
	require.NoError(t, err)
	assert.Equal(t, shop.MaxLineQty, cart[0].Item.Qty)
}

func TestAddToCartIgnoresStock(t *testing.T) {
	f := newFixture(t)
	// productA has stock 3
	f.add(t, f.alice, f.productA, 50)
	o, err := f.svc.Checkout(f.ctx, f.alice)
	require.NoError(t, err)
	assert.Equal(t, 50, o.Items[0].Qty)
}

func TestRemoveCartItemOwnership(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.alice, f.productA, 1)
	cart, err := f.svc.Cart(f.ctx, f.alice)
	require.NoError(t, err)
	itemID := cart[0].Item.ID

	err = f.svc.RemoveCartItem(f.ctx, f.bob, itemID)
	assert.True(t, shop.IsKind(err, shop.KindNotFound))
	assert.Equal(t, "cart item not found", shop.Message(err))

	require.NoError(t, f.svc.RemoveCartItem(f.ctx, f.alice, itemID))
	err = f.svc.RemoveCartItem(f.ctx, f.alice, itemID)
	assert.True(t, shop.IsKind(err, shop.KindNotFound))
}

func TestClearCartIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.alice, f.productA, 1)
	f.add(t, f.bob, f.productB, 1)

	require.NoError(t, f.svc.ClearCart(f.ctx, f.alice))
	require.NoError(t, f.svc.ClearCart(f.ctx, f.alice))

	cart, _ := f.svc.Cart(f.ctx, f.alice)
	assert.Empty(t, cart)
	cart, _ = f.svc.Cart(f.ctx, f.bob)
	assert.Len(t, cart, 1)
}

func TestCartShowsLiveProduct(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.alice, f.productA, 1)
	price := dec("12.50")
	_, err := f.svc.UpdateProduct(f.ctx, f.admin, f.productA.ID, shop.ProductPatch{Price: &price})
	require.NoError(t, err)

	cart, err := f.svc.Cart(f.ctx, f.alice)
	require.NoError(t, err)
	assert.True(t, cart[0].Product.Price.Equal(price))

	o, err := f.svc.Checkout(f.ctx, f.alice)
	require.NoError(t, err)
	assert.True(t, o.Total.Equal(price))
}

func TestCancelOrder(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.alice, f.productA, 1)
	o, err := f.svc.Checkout(f.ctx, f.alice)
	require.NoError(t, err)

	_, err = f.svc.CancelOrder(f.ctx, f.bob, o.Code)
	assert.True(t, shop.IsKind(err, shop.KindNotFound))

	got, err := f.svc.CancelOrder(f.ctx, f.alice, o.Code)
	require.NoError(t, err)
	assert.Equal(t, shop.StatusCanceled, got.Status)

	_, err = f.svc.CancelOrder(f.ctx, f.alice, o.Code)
	assert.True(t, shop.IsKind(err, shop.KindInvalidState))

	changed := f.bus.byType(shop.EventOrderStatusChanged)
	require.Len(t, changed, 1)
	var p shop.OrderStatusChangedPayload
	require.NoError(t, json.Unmarshal(changed[0].env.Payload, &p))
	assert.Equal(t, shop.StatusPending, p.From)
	assert.Equal(t, shop.StatusCanceled, p.To)
	assert.Equal(t, o.Code, changed[0].key)
}

func TestCancelNonPendingFails(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.alice, f.productA, 1)
	o, err := f.svc.Checkout(f.ctx, f.alice)
	require.NoError(t, err)

	for _, s := range []shop.Status{shop.StatusPaid, shop.StatusShipped, shop.StatusDelivered} {
		_, err = f.svc.SetOrderStatus(f.ctx, f.admin, o.ID, s)
		require.NoError(t, err)
		_, err = f.svc.CancelOrder(f.ctx, f.alice, o.Code)
		assert.True(t, shop.IsKind(err, shop.KindInvalidState), "status %s", s)
	}
}

func TestAdminCanCancelAnyPendingOrder(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.alice, f.productA, 1)
	o, err := f.svc.Checkout(f.ctx, f.alice)
	require.NoError(t, err)

	got, err := f.svc.CancelOrder(f.ctx, f.admin, o.Code)
	require.NoError(t, err)
	assert.Equal(t, shop.StatusCanceled, got.Status)
}

func TestSetOrderStatus(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.alice, f.productA, 1)
	o, err := f.svc.Checkout(f.ctx, f.alice)
	require.NoError(t, err)

	_, err = f.svc.SetOrderStatus(f.ctx, f.alice, o.ID, shop.StatusPaid)
	assert.True(t, shop.IsKind(err, shop.KindForbidden))

	_, err = f.svc.SetOrderStatus(f.ctx, f.admin, o.ID, "refunded")
	assert.True(t, shop.IsKind(err, shop.KindInvalidArgument))

	_, err = f.svc.SetOrderStatus(f.ctx, f.admin, 9999, shop.StatusPaid)
	assert.True(t, shop.IsKind(err, shop.KindNotFound))

	// the admin path has no transition guard
	got, err := f.svc.SetOrderStatus(f.ctx, f.admin, o.ID, shop.StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, shop.StatusDelivered, got.Status)
	got, err = f.svc.SetOrderStatus(f.ctx, f.admin, o.ID, shop.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, shop.StatusPending, got.Status)
}

func TestDeleteOrder(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.alice, f.productA, 1)
	paid, err := f.svc.Checkout(f.ctx, f.alice)
	require.NoError(t, err)
	_, err = f.svc.SetOrderStatus(f.ctx, f.admin, paid.ID, shop.StatusPaid)
	require.NoError(t, err)

	err = f.svc.DeleteOrder(f.ctx, f.alice, paid.ID)
	assert.True(t, shop.IsKind(err, shop.KindInvalidState))

	f.add(t, f.alice, f.productB, 1)
	pending, err := f.svc.Checkout(f.ctx, f.alice)
	require.NoError(t, err)

	err = f.svc.DeleteOrder(f.ctx, f.bob, pending.ID)
	assert.True(t, shop.IsKind(err, shop.KindNotFound))

	require.NoError(t, f.svc.DeleteOrder(f.ctx, f.alice, pending.ID))
	_, err = f.svc.Order(f.ctx, f.alice, pending.ID)
	assert.True(t, shop.IsKind(err, shop.KindNotFound))
	assert.Len(t, f.bus.byType(shop.EventOrderDeleted), 1)

	f.add(t, f.alice, f.productB, 1)
	canceled, err := f.svc.Checkout(f.ctx, f.alice)
	require.NoError(t, err)
	_, err = f.svc.CancelOrder(f.ctx, f.alice, canceled.Code)
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteOrder(f.ctx, f.admin, canceled.ID))
}

func TestOrderVisibility(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.alice, f.productA, 1)
	o, err := f.svc.Checkout(f.ctx, f.alice)
	require.NoError(t, err)

	_, err = f.svc.Order(f.ctx, f.bob, o.ID)
	assert.True(t, shop.IsKind(err, shop.KindNotFound))
	_, err = f.svc.Order(f.ctx, f.admin, o.ID)
	assert.NoError(t, err)

	mine, err := f.svc.MyOrders(f.ctx, f.bob)
	require.NoError(t, err)
	assert.Empty(t, mine)

	all, err := f.svc.AllOrders(f.ctx, f.admin, shop.OrderFilter{Status: shop.StatusPending})
	require.NoError(t, err)
	assert.Len(t, all, 1)
	_, err = f.svc.AllOrders(f.ctx, f.alice, shop.OrderFilter{})
	assert.True(t, shop.IsKind(err, shop.KindForbidden))
}

func TestMyOrdersNewestFirst(t *testing.T) {
	f := newFixture(t)
	var codes []string
	for i := 0; i < 3; i++ {
		f.add(t, f.alice, f.productA, 1)
		o, err := f.svc.Checkout(f.ctx, f.alice)
		require.NoError(t, err)
		codes = append(codes, o.Code)
	}
	orders, err := f.svc.MyOrders(f.ctx, f.alice)
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, codes[2], orders[0].Code)
	assert.Equal(t, codes[0], orders[2].Code)
	assert.Len(t, orders[0].Items, 1)
}

func TestTrackOrderUsesCache(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.alice, f.productA, 1)
	o, err := f.svc.Checkout(f.ctx, f.alice)
	require.NoError(t, err)

	tr, err := f.svc.TrackOrder(f.ctx, f.alice, o.Code)
	require.NoError(t, err)
	assert.Equal(t, shop.StatusPending, tr.Status)
	assert.Equal(t, 0, f.cache.hits)

	_, err = f.svc.TrackOrder(f.ctx, f.alice, o.Code)
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.hits)

	_, err = f.svc.TrackOrder(f.ctx, f.bob, o.Code)
	assert.True(t, shop.IsKind(err, shop.KindNotFound))

	_, err = f.svc.CancelOrder(f.ctx, f.alice, o.Code)
	require.NoError(t, err)
	tr, err = f.svc.TrackOrder(f.ctx, f.alice, o.Code)
	require.NoError(t, err)
	assert.Equal(t, shop.StatusCanceled, tr.Status)

	tr, err = f.svc.TrackOrder(f.ctx, f.admin, o.Code)
	require.NoError(t, err)
	assert.Equal(t, shop.StatusCanceled, tr.Status)
}

func TestTrackOrderForAdminWithColdCache(t *testing.T) {
	f := newFixture(t)
	f.svc.Cache = nil
	f.add(t, f.alice, f.productA, 1)
	o, err := f.svc.Checkout(f.ctx, f.alice)
	require.NoError(t, err)

	tr, err := f.svc.TrackOrder(f.ctx, f.admin, o.Code)
	require.NoError(t, err)
	assert.Equal(t, o.Code, tr.Code)
	assert.Equal(t, f.alice.UserID, tr.UserID)
}

// racingStore runs onRead right after the first OrderByCode returns, the
// window between a tracking read and its cache write.
type racingStore struct {
	shop.Store
	once   sync.Once
	onRead func()
}

func (s *racingStore) OrderByCode(ctx context.Context, code string) (shop.Order, error) {
	o, err := s.Store.OrderByCode(ctx, code)
	s.once.Do(s.onRead)
	return o, err
}

func TestTrackOrderDoesNotCacheStatusOverwrittenMeanwhile(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.alice, f.productA, 1)
	o, err := f.svc.Checkout(f.ctx, f.alice)
	require.NoError(t, err)

	slow := *f.svc
	slow.Store = &racingStore{Store: f.store, onRead: func() {
		_, err := f.svc.SetOrderStatus(f.ctx, f.admin, o.ID, shop.StatusPaid)
		require.NoError(t, err)
	}}
	tr, err := slow.TrackOrder(f.ctx, f.alice, o.Code)
	require.NoError(t, err)
	assert.Equal(t, shop.StatusPending, tr.Status)

	tr, err = f.svc.TrackOrder(f.ctx, f.alice, o.Code)
	require.NoError(t, err)
	assert.Equal(t, shop.StatusPaid, tr.Status)
}

func sequenceCodes(codes ...string) func(time.Time) (string, error) {
	var mu sync.Mutex
	i := 0
	return func(time.Time) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		c := codes[len(codes)-1]
		if i < len(codes) {
			c = codes[i]
		}
		i++
		return c, nil
	}
}

func TestCheckoutRetriesOnCodeCollision(t *testing.T) {
	f := newFixture(t)
	f.svc.NewCode = sequenceCodes("ORD-20260101-111111", "ORD-20260101-111111", "ORD-20260101-111111", "ORD-20260101-222222")

	f.add(t, f.alice, f.productA, 1)
	first, err := f.svc.Checkout(f.ctx, f.alice)
	require.NoError(t, err)
	f.add(t, f.bob, f.productA, 1)
	second, err := f.svc.Checkout(f.ctx, f.bob)
	require.NoError(t, err)

	assert.Equal(t, "ORD-20260101-111111", first.Code)
	assert.Equal(t, "ORD-20260101-222222", second.Code)
}

func TestCheckoutGivesUpAfterRepeatedCollisions(t *testing.T) {
	f := newFixture(t)
	f.svc.NewCode = sequenceCodes("ORD-20260101-111111")

	f.add(t, f.alice, f.productA, 1)
	_, err := f.svc.Checkout(f.ctx, f.alice)
	require.NoError(t, err)

	f.add(t, f.bob, f.productA, 2)
	_, err = f.svc.Checkout(f.ctx, f.bob)
	require.Error(t, err)
	assert.True(t, shop.IsKind(err, shop.KindConflict))
	assert.True(t, errors.Is(err, shop.ErrCodeTaken))

	cart, _ := f.svc.Cart(f.ctx, f.bob)
	require.Len(t, cart, 1)
	assert.Equal(t, 2, cart[0].Item.Qty)
	orders, _ := f.svc.MyOrders(f.ctx, f.bob)
	assert.Empty(t, orders)
}

// failingItemsStore breaks InsertOrderItems inside every unit.
type failingItemsStore struct{ shop.Store }

type failingItemsQueries struct{ shop.Queries }

func (failingItemsQueries) InsertOrderItems(context.Context, int64, []shop.OrderItem) error {
	return errors.New("disk full")
}

func (s failingItemsStore) InTx(ctx context.Context, fn func(shop.Queries) error) error {
	return s.Store.InTx(ctx, func(q shop.Queries) error { return fn(failingItemsQueries{q}) })
}

func TestCheckoutIsAtomic(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.alice, f.productA, 2)
	f.add(t, f.alice, f.productB, 1)

	broken := *f.svc
	broken.Store = failingItemsStore{f.store}
	_, err := broken.Checkout(f.ctx, f.alice)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	orders, err := f.store.ListOrders(f.ctx, shop.OrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, orders)
	cart, err := f.svc.Cart(f.ctx, f.alice)
	require.NoError(t, err)
	require.Len(t, cart, 2)
	assert.Equal(t, 2, cart[0].Item.Qty)
	assert.Empty(t, f.bus.byType(shop.EventOrderCreated))
}

func TestConcurrentCheckoutsHaveUniqueCodes(t *testing.T) {
	f := newFixture(t)
	const n = 64
	actors := make([]shop.Actor, n)
	for i := range actors {
		actors[i] = f.user(t, fmt.Sprintf("u%d@shop.test", i), shop.RoleCustomer)
		f.add(t, actors[i], f.productA, i+1)
	}

	codes := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range actors {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			o, err := f.svc.Checkout(f.ctx, actors[i])
			codes[i], errs[i] = o.Code, err
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i := range codes {
		require.NoError(t, errs[i])
		assert.False(t, seen[codes[i]], "duplicate code %s", codes[i])
		seen[codes[i]] = true
	}
	assert.Len(t, f.bus.byType(shop.EventOrderCreated), n)
}

func TestConcurrentCheckoutOfOneCartMakesOneOrder(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.alice, f.productA, 2)
	f.add(t, f.alice, f.productB, 1)

	const n = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, empty := 0, 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Checkout(f.ctx, f.alice)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case shop.IsKind(err, shop.KindInvalidState):
				empty++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, empty)
	orders, _ := f.svc.MyOrders(f.ctx, f.alice)
	require.Len(t, orders, 1)
	assert.True(t, orders[0].Total.Equal(dec("25")))
}

func TestCheckoutPublishesOrderCreated(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.alice, f.productA, 2)
	ctx := shop.WithTraceID(f.ctx, "req-1")
	o, err := f.svc.Checkout(ctx, f.alice)
	require.NoError(t, err)

	created := f.bus.byType(shop.EventOrderCreated)
	require.Len(t, created, 1)
	ev := created[0]
	assert.Equal(t, shop.TopicOrderCreated, ev.topic)
	assert.Equal(t, o.Code, ev.env.CorrelationID)
	assert.Equal(t, "req-1", ev.env.TraceID)
	assert.Equal(t, "shop-test", ev.env.Producer)
	assert.Equal(t, 1, ev.env.EventVersion)

	var p shop.OrderCreatedPayload
	require.NoError(t, json.Unmarshal(ev.env.Payload, &p))
	assert.Equal(t, o.ID, p.OrderID)
	assert.True(t, p.Total.Equal(dec("20")))
	require.Len(t, p.Items, 1)
	assert.Equal(t, "Phone A", p.Items[0].Name)
}

func TestDeleteCategory(t *testing.T) {
	f := newFixture(t)

	err := f.svc.DeleteCategory(f.ctx, f.admin, f.category.ID)
	require.Error(t, err)
	assert.True(t, shop.IsKind(err, shop.KindConflict))
	assert.Equal(t, "category has 2 products", shop.Message(err))

	empty, err := f.svc.CreateCategory(f.ctx, f.admin, "Laptops")
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteCategory(f.ctx, f.admin, empty.ID))

	err = f.svc.DeleteCategory(f.ctx, f.admin, empty.ID)
	assert.True(t, shop.IsKind(err, shop.KindNotFound))
	err = f.svc.DeleteCategory(f.ctx, f.alice, f.category.ID)
	assert.True(t, shop.IsKind(err, shop.KindForbidden))
}

func TestCreateCategoryDuplicate(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateCategory(f.ctx, f.admin, " Phones ")
	assert.True(t, shop.IsKind(err, shop.KindConflict))
	_, err = f.svc.CreateCategory(f.ctx, f.admin, "  ")
	assert.True(t, shop.IsKind(err, shop.KindInvalidArgument))
}

func TestProductValidation(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name string
		in   shop.ProductInput
		kind shop.Kind
	}{
		{"no name", shop.ProductInput{Price: dec("1"), CategoryID: f.category.ID}, shop.KindInvalidArgument},
		{"negative price", shop.ProductInput{Name: "x", Price: dec("-1"), CategoryID: f.category.ID}, shop.KindInvalidArgument},
		{"sub-cent price", shop.ProductInput{Name: "x", Price: dec("10.005"), CategoryID: f.category.ID}, shop.KindInvalidArgument},
		{"price too large", shop.ProductInput{Name: "x", Price: dec("1e12"), CategoryID: f.category.ID}, shop.KindInvalidArgument},
		{"price at limit", shop.ProductInput{Name: "x", Price: dec("10000000000"), CategoryID: f.category.ID}, shop.KindInvalidArgument},
		{"negative stock", shop.ProductInput{Name: "x", Price: dec("1"), Stock: -1, CategoryID: f.category.ID}, shop.KindInvalidArgument},
		{"no category", shop.ProductInput{Name: "x", Price: dec("1")}, shop.KindInvalidArgument},
		{"unknown category", shop.ProductInput{Name: "x", Price: dec("1"), CategoryID: 777}, shop.KindNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateProduct(f.ctx, f.admin, tc.in)
			assert.True(t, shop.IsKind(err, tc.kind), "got %v", err)
		})
	}

	p, err := f.svc.CreateProduct(f.ctx, f.admin, shop.ProductInput{Name: "edge", Price: dec("9999999999.990"), CategoryID: f.category.ID})
	require.NoError(t, err)
	assert.Equal(t, "9999999999.99", p.Price.StringFixed(2))

	bad := dec("1.001")
	_, err = f.svc.UpdateProduct(f.ctx, f.admin, p.ID, shop.ProductPatch{Price: &bad})
	assert.True(t, shop.IsKind(err, shop.KindInvalidArgument), "got %v", err)

	_, err = f.svc.CreateProduct(f.ctx, f.alice, shop.ProductInput{Name: "x", Price: dec("1"), CategoryID: f.category.ID})
	assert.True(t, shop.IsKind(err, shop.KindForbidden))
}

func TestUpdateProductPatch(t *testing.T) {
	f := newFixture(t)
	other, err := f.svc.CreateCategory(f.ctx, f.admin, "Accessories")
	require.NoError(t, err)

	stock := 9
	p, err := f.svc.UpdateProduct(f.ctx, f.admin, f.productA.ID, shop.ProductPatch{Stock: &stock, CategoryID: &other.ID})
	require.NoError(t, err)
	assert.Equal(t, 9, p.Stock)
	assert.Equal(t, "Phone A", p.Name)
	assert.Equal(t, other.ID, p.CategoryID)

	list, err := f.svc.Products(f.ctx, shop.ProductFilter{CategoryID: other.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Accessories", list[0].Category.Name)

	bad := int64(404)
	_, err = f.svc.UpdateProduct(f.ctx, f.admin, f.productA.ID, shop.ProductPatch{CategoryID: &bad})
	assert.True(t, shop.IsKind(err, shop.KindNotFound))
	_, err = f.svc.UpdateProduct(f.ctx, f.admin, 404, shop.ProductPatch{Stock: &stock})
	assert.True(t, shop.IsKind(err, shop.KindNotFound))
}

func TestDeleteProductDropsItFromCarts(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.alice, f.productA, 1)
	f.add(t, f.alice, f.productB, 1)
	require.NoError(t, f.svc.DeleteProduct(f.ctx, f.admin, f.productA.ID))

	cart, err := f.svc.Cart(f.ctx, f.alice)
	require.NoError(t, err)
	require.Len(t, cart, 1)
	assert.Equal(t, f.productB.ID, cart[0].Product.ID)
}

func TestRegisterAndCreateUser(t *testing.T) {
	f := newFixture(t)

	u, err := f.svc.Register(f.ctx, shop.NewUser{FullName: " Carol ", Email: "Carol@Shop.test", Password: "pw", Role: shop.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, shop.RoleCustomer, u.Role)
	assert.Equal(t, "carol@shop.test", u.Email)
	assert.Equal(t, "Carol", u.FullName)
	assert.Equal(t, "hashed:pw", u.PasswordHash)

	_, err = f.svc.Register(f.ctx, shop.NewUser{FullName: "C", Email: "carol@shop.test", Password: "pw"})
	assert.True(t, shop.IsKind(err, shop.KindConflict))
	_, err = f.svc.Register(f.ctx, shop.NewUser{Email: "d@shop.test", Password: "pw"})
	assert.True(t, shop.IsKind(err, shop.KindInvalidArgument))

	_, err = f.svc.CreateUser(f.ctx, f.admin, shop.NewUser{FullName: "E", Email: "e@shop.test", Password: "pw", Role: "root"})
	assert.True(t, shop.IsKind(err, shop.KindInvalidArgument))
	admin2, err := f.svc.CreateUser(f.ctx, f.admin, shop.NewUser{FullName: "E", Email: "e@shop.test", Password: "pw", Role: shop.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, shop.RoleAdmin, admin2.Role)
	_, err = f.svc.CreateUser(f.ctx, f.alice, shop.NewUser{FullName: "F", Email: "f@shop.test", Password: "pw"})
	assert.True(t, shop.IsKind(err, shop.KindForbidden))
}

func TestUpdateUser(t *testing.T) {
	f := newFixture(t)
	role, pw := shop.RoleAdmin, "new"
	u, err := f.svc.UpdateUser(f.ctx, f.admin, f.alice.UserID, shop.UserPatch{Role: &role, Password: &pw})
	require.NoError(t, err)
	assert.Equal(t, shop.RoleAdmin, u.Role)
	assert.Equal(t, "hashed:new", u.PasswordHash)

	bad := shop.Role("owner")
	_, err = f.svc.UpdateUser(f.ctx, f.admin, f.alice.UserID, shop.UserPatch{Role: &bad})
	assert.True(t, shop.IsKind(err, shop.KindInvalidArgument))
	_, err = f.svc.UpdateUser(f.ctx, f.admin, 9999, shop.UserPatch{})
	assert.True(t, shop.IsKind(err, shop.KindNotFound))
}

func TestDeleteUser(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.alice, f.productA, 1)
	_, err := f.svc.Checkout(f.ctx, f.alice)
	require.NoError(t, err)
	f.add(t, f.bob, f.productA, 1)

	err = f.svc.DeleteUser(f.ctx, f.admin, f.alice.UserID)
	assert.True(t, shop.IsKind(err, shop.KindConflict))
	assert.Equal(t, "user has 1 orders", shop.Message(err))

	err = f.svc.DeleteUser(f.ctx, f.admin, f.admin.UserID)
	assert.True(t, shop.IsKind(err, shop.KindInvalidArgument))

	require.NoError(t, f.svc.DeleteUser(f.ctx, f.admin, f.bob.UserID))
	lines, err := f.store.CartLines(f.ctx, f.bob.UserID)
	require.NoError(t, err)
	assert.Empty(t, lines)

	err = f.svc.DeleteUser(f.ctx, f.admin, f.bob.UserID)
	assert.True(t, shop.IsKind(err, shop.KindNotFound))
}
