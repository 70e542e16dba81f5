package shop

import (
	"context"
	"strings"
)

// MyOrders lists the caller's orders, newest first, with their items.
func (s *Service) MyOrders(ctx context.Context, a Actor) ([]Order, error) {
	if err := requireUser(a); err != nil {
		return nil, err
	}
	return s.Store.ListOrders(ctx, OrderFilter{UserID: a.UserID})
}

// Order returns one order to its owner or to an admin.
func (s *Service) Order(ctx context.Context, a Actor, id int64) (Order, error) {
	if err := requireUser(a); err != nil {
		return Order{}, err
	}
	o, err := s.Store.OrderByID(ctx, id)
	if err != nil {
		return Order{}, hideMissing(err)
	}
	if !a.owns(o) && !a.IsAdmin() {
		return Order{}, NotFound("order not found")
	}
	return o, nil
}

// TrackOrder looks an order up by code for its owner or an admin, through
// the status cache.
func (s *Service) TrackOrder(ctx context.Context, a Actor, code string) (Tracking, error) {
	if err := requireUser(a); err != nil {
		return Tracking{}, err
	}
	code = strings.TrimSpace(code)
	var gen int64
	if s.Cache != nil {
		t, g, ok := s.Cache.Get(ctx, code)
		if ok && (t.UserID == a.UserID || a.IsAdmin()) {
			return t, nil
		}
		gen = g
	}
	o, err := s.Store.OrderByCode(ctx, code)
	if err != nil {
		return Tracking{}, hideMissing(err)
	}
	if !a.owns(o) && !a.IsAdmin() {
		return Tracking{}, NotFound("order not found")
	}
	t := Tracking{Code: o.Code, UserID: o.UserID, Status: o.Status, Total: o.Total, CreatedAt: o.CreatedAt}
	if s.Cache != nil {
		s.Cache.Set(ctx, t, gen)
	}
	return t, nil
}

// CancelOrder moves a pending order to canceled. Owner or admin only.
func (s *Service) CancelOrder(ctx context.Context, a Actor, code string) (Order, error) {
	if err := requireUser(a); err != nil {
		return Order{}, err
	}
	found, err := s.Store.OrderByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return Order{}, hideMissing(err)
	}
	if !a.owns(found) && !a.IsAdmin() {
		return Order{}, NotFound("order not found")
	}

	var o Order
	err = s.Store.InTx(ctx, func(q Queries) error {
		var err error
		o, err = q.LockOrder(ctx, found.ID)
		if err != nil {
			return hideMissing(err)
		}
		if !CanTransition(o.Status, StatusCanceled) {
			return InvalidState("order is %s; only pending orders can be canceled", o.Status)
		}
		return q.UpdateOrderStatus(ctx, o.ID, StatusCanceled)
	})
	if err != nil {
		return Order{}, err
	}

	from := o.Status
	o.Status = StatusCanceled
	s.invalidate(ctx, o.Code)
	s.publish(ctx, TopicOrderStatusChanged, EventOrderStatusChanged, o.Code, OrderStatusChangedPayload{
		OrderID: o.ID, OrderCode: o.Code, UserID: o.UserID, From: from, To: o.Status, ChangedBy: a.UserID,
	})
	return o, nil
}

// SetOrderStatus is the admin override: any known status, no transition guard.
func (s *Service) SetOrderStatus(ctx context.Context, a Actor, id int64, status Status) (Order, error) {
	if err := requireAdmin(a); err != nil {
		return Order{}, err
	}
	status = Status(strings.TrimSpace(string(status)))
	if !status.Valid() {
		return Order{}, InvalidArgument("status must be one of %v", AllStatuses)
	}

	var o Order
	err := s.Store.InTx(ctx, func(q Queries) error {
		var err error
		o, err = q.LockOrder(ctx, id)
		if err != nil {
			return hideMissing(err)
		}
		return q.UpdateOrderStatus(ctx, id, status)
	})
	if err != nil {
		return Order{}, err
	}

	from := o.Status
	o.Status = status
	s.invalidate(ctx, o.Code)
	s.publish(ctx, TopicOrderStatusChanged, EventOrderStatusChanged, o.Code, OrderStatusChangedPayload{
		OrderID: o.ID, OrderCode: o.Code, UserID: o.UserID, From: from, To: status, ChangedBy: a.UserID,
	})
	return o, nil
}

// DeleteOrder removes a pending or canceled order with its items.
func (s *Service) DeleteOrder(ctx context.Context, a Actor, id int64) error {
	if err := requireUser(a); err != nil {
		return err
	}

	var o Order
	err := s.Store.InTx(ctx, func(q Queries) error {
		var err error
		o, err = q.LockOrder(ctx, id)
		if err != nil {
			return hideMissing(err)
		}
		if !a.owns(o) && !a.IsAdmin() {
			return NotFound("order not found")
		}
		if !o.Status.Deletable() {
			return InvalidState("order is %s; only pending or canceled orders can be deleted", o.Status)
		}
		return q.DeleteOrder(ctx, id)
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, o.Code)
	s.publish(ctx, TopicOrderDeleted, EventOrderDeleted, o.Code, OrderDeletedPayload{
		OrderID: o.ID, OrderCode: o.Code, UserID: o.UserID, DeletedBy: a.UserID,
	})
	return nil
}

// AllOrders is the admin listing, optionally filtered by owner or status.
func (s *Service) AllOrders(ctx context.Context, a Actor, f OrderFilter) ([]Order, error) {
	if err := requireAdmin(a); err != nil {
		return nil, err
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, InvalidArgument("status must be one of %v", AllStatuses)
	}
	return s.Store.ListOrders(ctx, f)
}

func hideMissing(err error) error {
	if IsKind(err, KindNotFound) {
		return NotFound("order not found")
	}
	return err
}
