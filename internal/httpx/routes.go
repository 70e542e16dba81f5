package httpx

import (
	"context"
	"io"
	"time"

	"github.com/ariefcatur/go-storefront/internal/auth"
	"github.com/ariefcatur/go-storefront/internal/shop"
	"github.com/go-chi/chi/v5"
)

type ImageStore interface {
	StoreImage(ctx context.Context, r io.Reader, name string) (string, error)
	Remove(url string) error
}

type Deps struct {
	Shop        *shop.Service
	Credentials *auth.Credentials
	Tokens      *auth.Tokens
	Images      ImageStore
	ShopName    string

	// LoginLimiter throttles login attempts; nil allows 5 a minute per IP.
	LoginLimiter *IPLimiter
}

// Mount registers the /api routes on r.
func Mount(r chi.Router, d Deps) {
	limiter := d.LoginLimiter
	if limiter == nil {
		limiter = NewIPLimiter(12*time.Second, 5)
	}
	ah := &AuthHandler{Shop: d.Shop, Credentials: d.Credentials, Limiter: limiter}
	ch := &CatalogHandler{Shop: d.Shop}
	cart := &CartHandler{Shop: d.Shop}
	oh := &OrdersHandler{Shop: d.Shop, ShopName: d.ShopName}
	adm := &AdminHandler{Shop: d.Shop, Images: d.Images}

	r.Route("/api", func(r chi.Router) {
		r.Use(Authenticate(d.Tokens), TraceEvents)
		ah.Register(r)
		ch.Register(r)
		r.Group(func(r chi.Router) {
			r.Use(RequireActor)
			cart.Register(r)
			oh.Register(r)
			adm.Register(r)
		})
	})
}
