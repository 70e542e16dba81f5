package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/shop"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memDedup struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (d *memDedup) Claim(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen[id] {
		return false, nil
	}
	d.seen[id] = true
	return true, nil
}

func (d *memDedup) Release(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, id)
	return nil
}

type memSender struct {
	sent []Notification
	fail error
}

func (s *memSender) Send(_ context.Context, n Notification) error {
	if s.fail != nil {
		return s.fail
	}
	s.sent = append(s.sent, n)
	return nil
}

type users map[int64]shop.User

func (u users) UserByID(_ context.Context, id int64) (shop.User, error) {
	if x, ok := u[id]; ok {
		return x, nil
	}
	return shop.User{}, shop.NotFound("user not found")
}

func message(t *testing.T, topic, eventType string, payload any) kafkago.Message {
	t.Helper()
	env, err := shop.NewEnvelope(context.Background(), "shop-api", eventType, "ORD-20260101-100001", payload)
	require.NoError(t, err)
	m, err := kafkax.NewMessage(topic, shop.PartitionKey(env.CorrelationID), env)
	require.NoError(t, err)
	return m
}

func TestOrderCreatedNotification(t *testing.T) {
	sender := &memSender{}
	s := &Service{Dedup: &memDedup{seen: map[string]bool{}}, Users: users{3: {ID: 3, Email: "a@shop.test"}}, Sender: sender}

	m := message(t, shop.TopicOrderCreated, shop.EventOrderCreated, shop.OrderCreatedPayload{
		OrderID: 1, OrderCode: "ORD-20260101-100001", UserID: 3,
		Items: []shop.ItemPrice{{ProductID: 1, Qty: 2}, {ProductID: 2, Qty: 1}},
		Total: decimal.RequireFromString("25"),
	})
	require.NoError(t, s.HandleOrderEvent(context.Background(), m))
	require.NoError(t, s.HandleOrderEvent(context.Background(), m))

	require.Len(t, sender.sent, 1)
	n := sender.sent[0]
	assert.Equal(t, "a@shop.test", n.To)
	assert.Equal(t, "Order ORD-20260101-100001 placed", n.Subject)
	assert.Contains(t, n.Body, "3 item(s)")
	assert.Contains(t, n.Body, "25.00")
}

func TestStatusChangedNotification(t *testing.T) {
	sender := &memSender{}
	s := &Service{Sender: sender}

	m := message(t, shop.TopicOrderStatusChanged, shop.EventOrderStatusChanged, shop.OrderStatusChangedPayload{
		OrderCode: "ORD-20260101-100001", UserID: 9, From: shop.StatusPaid, To: shop.StatusShipped,
	})
	require.NoError(t, s.HandleOrderEvent(context.Background(), m))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "user:9", sender.sent[0].To)
	assert.Equal(t, "Order ORD-20260101-100001 is now shipped", sender.sent[0].Subject)
}

func TestUnknownEventIgnored(t *testing.T) {
	sender := &memSender{}
	s := &Service{Sender: sender}
	m := message(t, "other", "StockReserved", map[string]string{"x": "y"})
	require.NoError(t, s.HandleOrderEvent(context.Background(), m))
	assert.Empty(t, sender.sent)
}

func TestBadMessageIsAnError(t *testing.T) {
	s := &Service{Sender: &memSender{}}
	err := s.HandleOrderEvent(context.Background(), kafkago.Message{Value: []byte("nope")})
	assert.Error(t, err)
}

func TestFailedSendCanBeRetried(t *testing.T) {
	dedup := &memDedup{seen: map[string]bool{}}
	sender := &memSender{fail: errors.New("smtp down")}
	s := &Service{Dedup: dedup, Sender: sender}

	m := message(t, shop.TopicOrderDeleted, shop.EventOrderDeleted, shop.OrderDeletedPayload{OrderCode: "ORD-20260101-100001", UserID: 1})
	require.Error(t, s.HandleOrderEvent(context.Background(), m))

	sender.fail = nil
	require.NoError(t, s.HandleOrderEvent(context.Background(), m))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Order ORD-20260101-100001 removed", sender.sent[0].Subject)
}
