package shop

import (
	"context"
)

// MaxLineQty caps the quantity of one cart line, merged adds included.
const MaxLineQty = 10000

// AddToCart adds qty of a product to the caller's cart, merging with an
// existing line for the same product. Stock is not checked here.
func (s *Service) AddToCart(ctx context.Context, a Actor, productID int64, qty int) (CartItem, error) {
	if err := requireUser(a); err != nil {
		return CartItem{}, err
	}
	if productID <= 0 || qty <= 0 {
		return CartItem{}, InvalidArgument("product_id and qty must be valid")
	}
	if qty > MaxLineQty {
		return CartItem{}, InvalidArgument("qty must not exceed %d", MaxLineQty)
	}
	if _, err := s.Store.ProductByID(ctx, productID); err != nil {
		if IsKind(err, KindNotFound) {
			return CartItem{}, NotFound("product not found")
		}
		return CartItem{}, err
	}
	return s.Store.AddCartItem(ctx, a.UserID, productID, qty)
}

// RemoveCartItem deletes one of the caller's lines. Lines of other users
// are reported as missing.
func (s *Service) RemoveCartItem(ctx context.Context, a Actor, itemID int64) error {
	if err := requireUser(a); err != nil {
		return err
	}
	if itemID <= 0 {
		return NotFound("cart item not found")
	}
	ok, err := s.Store.DeleteCartItem(ctx, a.UserID, itemID)
	if err != nil {
		return err
	}
	if !ok {
		return NotFound("cart item not found")
	}
	return nil
}

func (s *Service) ClearCart(ctx context.Context, a Actor) error {
	if err := requireUser(a); err != nil {
		return err
	}
	return s.Store.ClearCart(ctx, a.UserID)
}

// Cart lists the caller's lines with live product data, oldest line first.
func (s *Service) Cart(ctx context.Context, a Actor) ([]CartLine, error) {
	if err := requireUser(a); err != nil {
		return nil, err
	}
	return s.Store.CartLines(ctx, a.UserID)
}
