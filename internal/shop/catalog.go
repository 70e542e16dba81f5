package shop

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxPrice is the first price the products table can no longer hold.
var MaxPrice = decimal.New(1, 10)

// MaxOrderTotal bounds a checkout total the same way.
var MaxOrderTotal = decimal.New(1, 18)

func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	return s.Store.ListCategories(ctx)
}

func (s *Service) Products(ctx context.Context, f ProductFilter) ([]Product, error) {
	return s.Store.ListProducts(ctx, f)
}

func (s *Service) Product(ctx context.Context, id int64) (Product, error) {
	p, err := s.Store.ProductByID(ctx, id)
	if IsKind(err, KindNotFound) {
		return Product{}, NotFound("product not found")
	}
	return p, err
}

func (s *Service) CreateCategory(ctx context.Context, a Actor, name string) (Category, error) {
	if err := requireAdmin(a); err != nil {
		return Category{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Category{}, InvalidArgument("name required")
	}
	c := Category{Name: name}
	if err := s.Store.InsertCategory(ctx, &c); err != nil {
		if IsKind(err, KindConflict) {
			return Category{}, Conflict("category exists")
		}
		return Category{}, err
	}
	return c, nil
}

// DeleteCategory refuses while products still reference the category.
func (s *Service) DeleteCategory(ctx context.Context, a Actor, id int64) error {
	if err := requireAdmin(a); err != nil {
		return err
	}
	return s.Store.InTx(ctx, func(q Queries) error {
		if _, err := q.CategoryByID(ctx, id); err != nil {
			if IsKind(err, KindNotFound) {
				return NotFound("category not found")
			}
			return err
		}
		n, err := q.CountProducts(ctx, ProductFilter{CategoryID: id})
		if err != nil {
			return err
		}
		if n > 0 {
			return Conflict("category has %d products", n)
		}
		return q.DeleteCategory(ctx, id)
	})
}

func (s *Service) CreateProduct(ctx context.Context, a Actor, in ProductInput) (Product, error) {
	if err := requireAdmin(a); err != nil {
		return Product{}, err
	}
	p := Product{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Price:       in.Price,
		Stock:       in.Stock,
		ImageURL:    strings.TrimSpace(in.ImageURL),
		CategoryID:  in.CategoryID,
	}
	if err := validateProduct(p); err != nil {
		return Product{}, err
	}
	if err := s.categoryExists(ctx, p.CategoryID); err != nil {
		return Product{}, err
	}
	if err := s.Store.InsertProduct(ctx, &p); err != nil {
		return Product{}, err
	}
	return p, nil
}

// UpdateProduct applies only the fields set in patch. Orders already placed
// keep their own copies of name and price.
func (s *Service) UpdateProduct(ctx context.Context, a Actor, id int64, patch ProductPatch) (Product, error) {
	if err := requireAdmin(a); err != nil {
		return Product{}, err
	}
	p, err := s.Product(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if patch.Name != nil {
		p.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		p.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.ImageURL != nil {
		p.ImageURL = strings.TrimSpace(*patch.ImageURL)
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
	if patch.CategoryID != nil && *patch.CategoryID != p.CategoryID {
		if err := s.categoryExists(ctx, *patch.CategoryID); err != nil {
			return Product{}, err
		}
		p.CategoryID = *patch.CategoryID
	}
	if err := validateProduct(p); err != nil {
		return Product{}, err
	}
	p.Category = nil
	if err := s.Store.UpdateProduct(ctx, p); err != nil {
		return Product{}, err
	}
	return p, nil
}

// DeleteProduct also drops the product from every cart. Order items are untouched.
func (s *Service) DeleteProduct(ctx context.Context, a Actor, id int64) error {
	if err := requireAdmin(a); err != nil {
		return err
	}
	err := s.Store.DeleteProduct(ctx, id)
	if IsKind(err, KindNotFound) {
		return NotFound("product not found")
	}
	return err
}

func (s *Service) categoryExists(ctx context.Context, id int64) error {
	if id <= 0 {
		return InvalidArgument("category_id required")
	}
	if _, err := s.Store.CategoryByID(ctx, id); err != nil {
		if IsKind(err, KindNotFound) {
			return NotFound("category not found")
		}
		return err
	}
	return nil
}

func validateProduct(p Product) error {
	switch {
	case p.Name == "":
		return InvalidArgument("name required")
	case p.Price.IsNegative():
		return InvalidArgument("price must not be negative")
	case !p.Price.Equal(p.Price.Round(2)):
		return InvalidArgument("price must have at most 2 decimal places")
	case p.Price.GreaterThanOrEqual(MaxPrice):
		return InvalidArgument("price must be below %s", MaxPrice.String())
	case p.Stock < 0:
		return InvalidArgument("stock must not be negative")
	}
	return nil
}
