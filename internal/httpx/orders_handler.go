package httpx

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/ariefcatur/go-storefront/internal/invoice"
	"github.com/ariefcatur/go-storefront/internal/shop"
	"github.com/go-chi/chi/v5"
)

type OrdersHandler struct {
	Shop     *shop.Service
	ShopName string
}

type checkoutResp struct {
	Message   string `json:"message"`
	OrderID   int64  `json:"order_id"`
	OrderCode string `json:"order_code"`
	Total     string `json:"total"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders/checkout", h.checkout)
	r.Get("/orders", h.listMine)
	r.Get("/orders/track/{code}", h.track)
	r.Get("/orders/track/{code}/qr", h.trackQR)
	r.Get("/orders/{id:[0-9]+}", h.getOrder)
	r.Get("/orders/{id:[0-9]+}/invoice", h.invoice)
	r.Delete("/orders/{id:[0-9]+}", h.deleteOrder)
	r.Post("/orders/{code}/cancel", h.cancel)
}

func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	o, err := h.Shop.Checkout(r.Context(), actorFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, checkoutResp{
		Message: "Order created", OrderID: o.ID, OrderCode: o.Code, Total: o.Total.StringFixed(2),
	})
}

func (h *OrdersHandler) listMine(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Shop.MyOrders(r.Context(), actorFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.Shop.Order(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) track(w http.ResponseWriter, r *http.Request) {
	t, err := h.Shop.TrackOrder(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *OrdersHandler) trackQR(w http.ResponseWriter, r *http.Request) {
	t, err := h.Shop.TrackOrder(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	size := invoice.DefaultQRSize
	if s := r.URL.Query().Get("size"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 64 && n <= 1024 {
			size = n
		}
	}
	png, err := invoice.TrackingQR(t.Code, size)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *OrdersHandler) invoice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.Shop.Order(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := invoice.Render(&buf, h.ShopName, o); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=invoice-"+o.Code+".pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *OrdersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	o, err := h.Shop.CancelOrder(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Order canceled", "order_code": o.Code, "status": o.Status})
}

func (h *OrdersHandler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Shop.DeleteOrder(r.Context(), actorFrom(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Order deleted")
}
