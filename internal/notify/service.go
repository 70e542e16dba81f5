// Package notify turns order events into customer notifications.
package notify

import (
	"context"
	"fmt"
	"log"

	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/shop"
	kafkago "github.com/segmentio/kafka-go"
)

type Deduper interface {
	Claim(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

type UserFinder interface {
	UserByID(ctx context.Context, id int64) (shop.User, error)
}

type Notification struct {
	To        string
	UserID    int64
	OrderCode string
	Subject   string
	Body      string
}

type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// LogSender writes notifications to the process log.
type LogSender struct{}

func (LogSender) Send(_ context.Context, n Notification) error {
	log.Printf("notify to=%s order=%s subject=%q body=%q", n.To, n.OrderCode, n.Subject, n.Body)
	return nil
}

type Service struct {
	Dedup  Deduper    // optional
	Users  UserFinder // optional; without it recipients are user ids
	Sender Sender
}

// HandleOrderEvent is the consumer handler. Events it does not know are
// skipped, and an event id is processed at most once while its dedup key lives.
func (s *Service) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.DecodeEnvelope(m.Value)
	if err != nil {
		return err
	}

	var n Notification
	switch env.EventType {
	case shop.EventOrderCreated:
		p, err := kafkax.UnwrapPayload[shop.OrderCreatedPayload](env.Payload)
		if err != nil {
			return err
		}
		n = Notification{
			UserID:    p.UserID,
			OrderCode: p.OrderCode,
			Subject:   fmt.Sprintf("Order %s placed", p.OrderCode),
			Body:      fmt.Sprintf("We received your order of %d item(s). Total: %s.", countItems(p.Items), p.Total.StringFixed(2)),
		}
	case shop.EventOrderStatusChanged:
		p, err := kafkax.UnwrapPayload[shop.OrderStatusChangedPayload](env.Payload)
		if err != nil {
			return err
		}
		n = Notification{
			UserID:    p.UserID,
			OrderCode: p.OrderCode,
			Subject:   fmt.Sprintf("Order %s is now %s", p.OrderCode, p.To),
			Body:      fmt.Sprintf("Your order %s moved from %s to %s.", p.OrderCode, p.From, p.To),
		}
	case shop.EventOrderDeleted:
		p, err := kafkax.UnwrapPayload[shop.OrderDeletedPayload](env.Payload)
		if err != nil {
			return err
		}
		n = Notification{
			UserID:    p.UserID,
			OrderCode: p.OrderCode,
			Subject:   fmt.Sprintf("Order %s removed", p.OrderCode),
			Body:      fmt.Sprintf("Your order %s has been removed.", p.OrderCode),
		}
	default:
		return nil
	}

	if s.Dedup != nil {
		first, err := s.Dedup.Claim(ctx, env.EventID)
		if err != nil {
			log.Printf("dedup %s: %v", env.EventID, err)
		} else if !first {
			return nil
		}
	}

	n.To = s.recipient(ctx, n.UserID)
	if err := s.Sender.Send(ctx, n); err != nil {
		if s.Dedup != nil {
			if rerr := s.Dedup.Release(ctx, env.EventID); rerr != nil {
				log.Printf("dedup release %s: %v", env.EventID, rerr)
			}
		}
		return fmt.Errorf("send %s: %w", env.EventID, err)
	}
	return nil
}

func (s *Service) recipient(ctx context.Context, userID int64) string {
	if s.Users != nil {
		if u, err := s.Users.UserByID(ctx, userID); err == nil {
			return u.Email
		}
	}
	return fmt.Sprintf("user:%d", userID)
}

func countItems(items []shop.ItemPrice) int {
	n := 0
	for _, it := range items {
		n += it.Qty
	}
	return n
}
