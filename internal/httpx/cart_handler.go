package httpx

import (
	"net/http"

	"github.com/ariefcatur/go-storefront/internal/shop"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type CartHandler struct {
	Shop *shop.Service
}

type addToCartReq struct {
	ProductID int64 `json:"product_id"`
	Qty       *int  `json:"qty"`
}

type cartProduct struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"image_url"`
}

type cartLine struct {
	ID      int64       `json:"id"`
	Qty     int         `json:"qty"`
	Product cartProduct `json:"product"`
}

func (h *CartHandler) Register(r chi.Router) {
	r.Get("/cart", h.list)
	r.Post("/cart/add", h.add)
	r.Delete("/cart/remove/{itemID}", h.remove)
	r.Delete("/cart/clear", h.clear)
}

func (h *CartHandler) list(w http.ResponseWriter, r *http.Request) {
	lines, err := h.Shop.Cart(r.Context(), actorFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]cartLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, cartLine{
			ID:  l.Item.ID,
			Qty: l.Item.Qty,
			Product: cartProduct{
				ID: l.Product.ID, Name: l.Product.Name, Price: l.Product.Price, ImageURL: l.Product.ImageURL,
			},
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *CartHandler) add(w http.ResponseWriter, r *http.Request) {
	var req addToCartReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	qty := 1
	if req.Qty != nil {
		qty = *req.Qty
	}
	if _, err := h.Shop.AddToCart(r.Context(), actorFrom(r.Context()), req.ProductID, qty); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Added to cart")
}

func (h *CartHandler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "itemID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Shop.RemoveCartItem(r.Context(), actorFrom(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Removed")
}

func (h *CartHandler) clear(w http.ResponseWriter, r *http.Request) {
	if err := h.Shop.ClearCart(r.Context(), actorFrom(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Cart cleared")
}
