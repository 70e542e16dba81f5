package shop

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventOrderDeleted       = "OrderDeleted"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order code
	Payload       json.RawMessage `json:"payload"`
}

type ItemPrice struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Qty       int             `json:"qty"`
	Price     decimal.Decimal `json:"price"`
}

type OrderCreatedPayload struct {
	OrderID   int64           `json:"order_id"`
	OrderCode string          `json:"order_code"`
	UserID    int64           `json:"user_id"`
	Items     []ItemPrice     `json:"items"`
	Total     decimal.Decimal `json:"total"`
}

type OrderStatusChangedPayload struct {
	OrderID   int64  `json:"order_id"`
	OrderCode string `json:"order_code"`
	UserID    int64  `json:"user_id"`
	From      Status `json:"from"`
	To        Status `json:"to"`
	ChangedBy int64  `json:"changed_by"`
}

type OrderDeletedPayload struct {
	OrderID   int64  `json:"order_id"`
	OrderCode string `json:"order_code"`
	UserID    int64  `json:"user_id"`
	DeletedBy int64  `json:"deleted_by"`
}

type traceKey struct{}

// WithTraceID tags events published under ctx with a request id.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

func traceID(ctx context.Context) string {
	s, _ := ctx.Value(traceKey{}).(string)
	return s
}

func NewEnvelope(ctx context.Context, producer, eventType, correlation string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID(ctx),
		CorrelationID: correlation,
		Payload:       b,
	}, nil
}

func orderCreatedPayload(o Order) OrderCreatedPayload {
	items := make([]ItemPrice, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ItemPrice{ProductID: it.ProductID, Name: it.Name, Qty: it.Qty, Price: it.Price})
	}
	return OrderCreatedPayload{
		OrderID:   o.ID,
		OrderCode: o.Code,
		UserID:    o.UserID,
		Items:     items,
		Total:     o.Total,
	}
}
