package shop

import (
	"context"
	"log"
	"time"

	"github.com/shopspring/decimal"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID int64
	Role   Role
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

func (a Actor) owns(o Order) bool { return a.UserID != 0 && a.UserID == o.UserID }

// Tracking is the public view of an order returned by TrackOrder.
type Tracking struct {
	Code      string          `json:"order_code"`
	UserID    int64           `json:"-"`
	Status    Status          `json:"status"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"created_at"`
}

type Service struct {
	Store    Store
	Events   Publisher      // optional
	Cache    StatusCache    // optional
	Hasher   PasswordHasher // required for user creation and password changes
	Producer string         // name stamped on published events

	// NewCode and Now default to NewOrderCode and time.Now.
	NewCode func(time.Time) (string, error)
	Now     func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) newCode(t time.Time) (string, error) {
	if s.NewCode != nil {
		return s.NewCode(t)
	}
	return NewOrderCode(t)
}

func requireUser(a Actor) error {
	if a.UserID <= 0 {
		return Unauthorized("authentication required")
	}
	return nil
}

func requireAdmin(a Actor) error {
	if err := requireUser(a); err != nil {
		return err
	}
	if !a.IsAdmin() {
		return Forbidden("admin only")
	}
	return nil
}

// publish is fire-and-forget: the change is already committed.
func (s *Service) publish(ctx context.Context, topic, eventType, code string, payload any) {
	if s.Events == nil {
		return
	}
	env, err := NewEnvelope(ctx, s.Producer, eventType, code, payload)
	if err != nil {
		log.Printf("event %s %s: %v", eventType, code, err)
		return
	}
	if err := s.Events.Publish(ctx, topic, PartitionKey(code), env); err != nil {
		log.Printf("publish %s %s: %v", eventType, code, err)
	}
}

func (s *Service) invalidate(ctx context.Context, code string) {
	if s.Cache != nil {
		s.Cache.Invalidate(ctx, code)
	}
}
