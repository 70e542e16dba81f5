package httpx

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/filestore"
	"github.com/ariefcatur/go-storefront/internal/shop"
	"github.com/go-chi/chi/v5"
)

// AdminHandler serves /api/admin. Every operation checks the admin
// capability itself, so the routes carry no role guard.
type AdminHandler struct {
	Shop   *shop.Service
	Images ImageStore
}

type createUserReq struct {
	FullName string    `json:"full_name"`
	Email    string    `json:"email"`
	Password string    `json:"password"`
	Role     shop.Role `json:"role"`
}

type updateUserReq struct {
	FullName *string    `json:"full_name"`
	Role     *shop.Role `json:"role"`
	Password *string    `json:"password"`
}

type categoryReq struct {
	Name string `json:"name"`
}

type statusReq struct {
	Status shop.Status `json:"status"`
}

func (h *AdminHandler) Register(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Get("/users", h.listUsers)
		r.Post("/users", h.createUser)
		r.Put("/users/{id}", h.updateUser)
		r.Delete("/users/{id}", h.deleteUser)

		r.Post("/categories", h.createCategory)
		r.Delete("/categories/{id}", h.deleteCategory)

		r.Post("/products", h.createProduct)
		r.Put("/products/{id}", h.updateProduct)
		r.Delete("/products/{id}", h.deleteProduct)

		r.Get("/orders", h.listOrders)
		r.Put("/orders/{id}/status", h.setOrderStatus)

		r.Post("/uploads", h.upload)
	})
}

func (h *AdminHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	us, err := h.Shop.Users(r.Context(), actorFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, us)
}

func (h *AdminHandler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.Shop.CreateUser(r.Context(), actorFrom(r.Context()), shop.NewUser{
		FullName: req.FullName, Email: req.Email, Password: req.Password, Role: req.Role,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "User created", "id": u.ID})
}

func (h *AdminHandler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateUserReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	_, err = h.Shop.UpdateUser(r.Context(), actorFrom(r.Context()), id, shop.UserPatch{
		FullName: req.FullName, Role: req.Role, Password: req.Password,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "User updated")
}

func (h *AdminHandler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Shop.DeleteUser(r.Context(), actorFrom(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "User deleted")
}

func (h *AdminHandler) createCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.Shop.CreateCategory(r.Context(), actorFrom(r.Context()), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Category created", "id": c.ID})
}

func (h *AdminHandler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Shop.DeleteCategory(r.Context(), actorFrom(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Category deleted")
}

func (h *AdminHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	f, err := h.readProduct(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in, err := f.input()
	if err != nil {
		h.dropImage(f.uploaded)
		writeError(w, r, err)
		return
	}
	p, err := h.Shop.CreateProduct(r.Context(), actorFrom(r.Context()), in)
	if err != nil {
		h.dropImage(f.uploaded)
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Product created", "id": p.ID, "image_url": p.ImageURL})
}

func (h *AdminHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := h.readProduct(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	before, _ := h.Shop.Product(r.Context(), id)
	p, err := h.Shop.UpdateProduct(r.Context(), actorFrom(r.Context()), id, f.patch())
	if err != nil {
		h.dropImage(f.uploaded)
		writeError(w, r, err)
		return
	}
	if before.ImageURL != p.ImageURL {
		h.dropImage(before.ImageURL)
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Product updated", "product": p})
}

func (h *AdminHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	before, _ := h.Shop.Product(r.Context(), id)
	if err := h.Shop.DeleteProduct(r.Context(), actorFrom(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	h.dropImage(before.ImageURL)
	writeMessage(w, http.StatusOK, "Product deleted")
}

// dropImage removes a replaced or orphaned upload; failures only leak a file.
func (h *AdminHandler) dropImage(url string) {
	if h.Images == nil || url == "" {
		return
	}
	if err := h.Images.Remove(url); err != nil {
		log.Printf("remove image %s: %v", url, err)
	}
}

func (h *AdminHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := shop.OrderFilter{Status: shop.Status(strings.TrimSpace(q.Get("status")))}
	if s := q.Get("user_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			writeError(w, r, shop.InvalidArgument("invalid user_id"))
			return
		}
		f.UserID = id
	}
	orders, err := h.Shop.AllOrders(r.Context(), actorFrom(r.Context()), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *AdminHandler) setOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req statusReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.Shop.SetOrderStatus(r.Context(), actorFrom(r.Context()), id, req.Status); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Order status updated")
}

// upload stores a standalone image and returns its URL for later use as image_url.
func (h *AdminHandler) upload(w http.ResponseWriter, r *http.Request) {
	if !actorFrom(r.Context()).IsAdmin() {
		writeError(w, r, shop.Forbidden("admin only"))
		return
	}
	if h.Images == nil {
		writeError(w, r, shop.InvalidArgument("image uploads are disabled"))
		return
	}
	if err := r.ParseMultipartForm(filestore.MaxUploadSize); err != nil {
		writeError(w, r, shop.InvalidArgument("invalid multipart form"))
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, shop.InvalidArgument("file required"))
		return
	}
	defer file.Close()
	url, err := h.Images.StoreImage(r.Context(), file, hdr.Filename)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"url": url})
}
