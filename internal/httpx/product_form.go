package httpx

import (
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/filestore"
	"github.com/ariefcatur/go-storefront/internal/shop"
	"github.com/shopspring/decimal"
)

// productFields is the wire form of a product write. JSON bodies and forms
// both decode into it; absent fields stay nil.
type productFields struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock"`
	ImageURL    *string          `json:"image_url"`
	CategoryID  *int64           `json:"category_id"`

	// uploaded is the URL of an image stored while reading the request.
	uploaded string
}

func (f productFields) input() (shop.ProductInput, error) {
	if f.Name == nil || f.Price == nil || f.Stock == nil || f.CategoryID == nil {
		return shop.ProductInput{}, shop.InvalidArgument("name, price, stock, category_id required")
	}
	in := shop.ProductInput{Name: *f.Name, Price: *f.Price, Stock: *f.Stock, CategoryID: *f.CategoryID}
	if f.Description != nil {
		in.Description = *f.Description
	}
	if f.ImageURL != nil {
		in.ImageURL = *f.ImageURL
	}
	return in, nil
}

func (f productFields) patch() shop.ProductPatch {
	return shop.ProductPatch{
		Name:        f.Name,
		Description: f.Description,
		Price:       f.Price,
		Stock:       f.Stock,
		ImageURL:    f.ImageURL,
		CategoryID:  f.CategoryID,
	}
}

// readProduct decodes a product write from JSON, a urlencoded form or a
// multipart form. A multipart "image" file is stored and its URL replaces
// image_url.
func (h *AdminHandler) readProduct(r *http.Request) (productFields, error) {
	var f productFields
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mt {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(filestore.MaxUploadSize); err != nil {
			return f, shop.InvalidArgument("invalid multipart form")
		}
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return f, shop.InvalidArgument("invalid form")
		}
	default:
		return f, decodeJSON(r, &f)
	}

	if err := formFields(r, &f); err != nil {
		return f, err
	}
	if mt == "multipart/form-data" {
		file, hdr, err := r.FormFile("image")
		if err == nil {
			defer file.Close()
			if !actorFrom(r.Context()).IsAdmin() {
				return f, shop.Forbidden("admin only")
			}
			if h.Images == nil {
				return f, shop.InvalidArgument("image uploads are disabled")
			}
			url, err := h.Images.StoreImage(r.Context(), file, hdr.Filename)
			if err != nil {
				return f, err
			}
			f.ImageURL = &url
			f.uploaded = url
		} else if !errors.Is(err, http.ErrMissingFile) {
			return f, shop.InvalidArgument("invalid image upload")
		}
	}
	return f, nil
}

func formFields(r *http.Request, f *productFields) error {
	get := func(k string) (string, bool) {
		vs, ok := r.PostForm[k]
		if !ok || len(vs) == 0 {
			return "", false
		}
		return strings.TrimSpace(vs[0]), true
	}
	if v, ok := get("name"); ok {
		f.Name = &v
	}
	if v, ok := get("description"); ok {
		f.Description = &v
	}
	if v, ok := get("image_url"); ok {
		f.ImageURL = &v
	}
	if v, ok := get("price"); ok {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return shop.InvalidArgument("price must be a number")
		}
		f.Price = &d
	}
	if v, ok := get("stock"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return shop.InvalidArgument("stock must be an integer")
		}
		f.Stock = &n
	}
	if v, ok := get("category_id"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return shop.InvalidArgument("category_id must be an integer")
		}
		f.CategoryID = &n
	}
	return nil
}
