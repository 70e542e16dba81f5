// Package seed loads the demo admin and catalog into an empty store.
package seed

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-storefront/internal/shop"
	"github.com/shopspring/decimal"
)

const (
	AdminEmail    = "admin@ecom.com"
	AdminPassword = "admin123"
)

type product struct {
	name, description, price string
	stock                    int
}

var catalog = []struct {
	category string
	products []product
}{
	{"Phones", []product{{"iPhone X", "Used", "199", 10}}},
	{"Laptops", []product{{"ThinkPad", "Business laptop", "399", 5}}},
}

type Report struct {
	AdminCreated bool
	Categories   int
	Products     int
}

// Run is idempotent: the admin is created only when its email is free and
// the catalog only when there are no categories yet.
func Run(ctx context.Context, svc *shop.Service) (Report, error) {
	var rep Report

	_, err := svc.Store.UserByEmail(ctx, AdminEmail)
	switch {
	case shop.IsKind(err, shop.KindNotFound):
		if _, err := svc.CreateAdmin(ctx, shop.NewUser{FullName: "Admin", Email: AdminEmail, Password: AdminPassword}); err != nil {
			return rep, fmt.Errorf("admin: %w", err)
		}
		rep.AdminCreated = true
	case err != nil:
		return rep, err
	}

	err = svc.Store.InTx(ctx, func(q shop.Queries) error {
		existing, err := q.ListCategories(ctx)
		if err != nil || len(existing) > 0 {
			return err
		}
		for _, c := range catalog {
			cat := shop.Category{Name: c.category}
			if err := q.InsertCategory(ctx, &cat); err != nil {
				return fmt.Errorf("category %s: %w", c.category, err)
			}
			rep.Categories++
			for _, p := range c.products {
				prod := shop.Product{
					Name:        p.name,
					Description: p.description,
					Price:       decimal.RequireFromString(p.price),
					Stock:       p.stock,
					CategoryID:  cat.ID,
				}
				if err := q.InsertProduct(ctx, &prod); err != nil {
					return fmt.Errorf("product %s: %w", p.name, err)
				}
				rep.Products++
			}
		}
		return nil
	})
	if err != nil {
		return Report{AdminCreated: rep.AdminCreated}, err
	}
	return rep, nil
}
