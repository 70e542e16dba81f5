package shop

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Checkout turns the caller's cart into a pending order. Lines are read and
// locked, priced, copied into the order and removed from the cart in one
// unit; on any failure nothing is written and the cart is left as it was.
func (s *Service) Checkout(ctx context.Context, a Actor) (Order, error) {
	if err := requireUser(a); err != nil {
		return Order{}, err
	}

	var order Order
	err := s.Store.InTx(ctx, func(q Queries) error {
		lines, err := q.LockCartLines(ctx, a.UserID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return InvalidState("cart is empty")
		}

		// price comes from the rows just locked, never from the client or a cache
		total := decimal.Zero
		items := make([]OrderItem, 0, len(lines))
		consumed := make([]int64, 0, len(lines))
		for _, l := range lines {
			it := OrderItem{
				ProductID: l.Product.ID,
				Name:      l.Product.Name,
				Price:     l.Product.Price,
				Qty:       l.Item.Qty,
			}
			total = total.Add(it.Subtotal())
			items = append(items, it)
			consumed = append(consumed, l.Item.ID)
		}

		if total.GreaterThanOrEqual(MaxOrderTotal) {
			return InvalidArgument("order total must be below %s", MaxOrderTotal.String())
		}

		order = Order{UserID: a.UserID, Status: StatusPending, Total: total}
		if err := s.insertWithFreshCode(ctx, q, &order); err != nil {
			return err
		}
		if err := q.InsertOrderItems(ctx, order.ID, items); err != nil {
			return fmt.Errorf("insert order items: %w", err)
		}
		order.Items = items

		// only the lines priced above; a line added concurrently stays for next time
		return q.DeleteCartItems(ctx, a.UserID, consumed)
	})
	if err != nil {
		return Order{}, err
	}

	s.publish(ctx, TopicOrderCreated, EventOrderCreated, order.Code, orderCreatedPayload(order))
	return order, nil
}

func (s *Service) insertWithFreshCode(ctx context.Context, q Queries, o *Order) error {
	for attempt := 1; ; attempt++ {
		code, err := s.newCode(s.now())
		if err != nil {
			return err
		}
		o.Code = code
		err = q.InsertOrder(ctx, o)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrCodeTaken) {
			return fmt.Errorf("insert order: %w", err)
		}
		if attempt >= maxCodeAttempts {
			return &Error{Kind: KindConflict, Message: "could not allocate a unique order code", Err: err}
		}
	}
}
