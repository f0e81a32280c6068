package main

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/plantomart/plantomart-backend/pkg/db/models"
)

// seedNamespace keeps demo ids stable across runs so seeding is repeatable.
var seedNamespace = uuid.MustParse("6f1c7c1e-2a51-4f0e-9a53-0d5b8f2f7a10")

type demoProduct struct {
	title    string
	price    string
	discount string
	stock    int
}

var demoProducts = []demoProduct{
	{title: "Monstera Deliciosa", price: "899.00", discount: "749.00", stock: 25},
	{title: "Snake Plant", price: "449.00", stock: 40},
	{title: "Fiddle Leaf Fig", price: "1299.00", stock: 10},
	{title: "Terracotta Pot 8in", price: "249.50", stock: 100},
}

type seededCatalog struct {
	BuyerID    uuid.UUID
	VendorID   uuid.UUID
	ProductIDs []uuid.UUID
	Titles     []string
}

func seedID(name string) uuid.UUID {
	return uuid.NewSHA1(seedNamespace, []byte(name))
}

func seedCatalog(ctx context.Context, conn *gorm.DB) (*seededCatalog, error) {
	phone := "+919999900000"
	buyer := models.User{
		ID:    seedID("user:demo"),
		Name:  "Demo Buyer",
		Email: "buyer@plantomart.dev",
		Phone: &phone,
	}
	vendor := models.Vendor{
		ID:   seedID("vendor:green-leaf"),
		Name: "Green Leaf Nursery",
		Slug: "green-leaf",
	}
	catalog := &seededCatalog{BuyerID: buyer.ID, VendorID: vendor.ID}

	err := conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ignore := tx.Clauses(clause.OnConflict{DoNothing: true})
		if err := ignore.Create(&buyer).Error; err != nil {
			return fmt.Errorf("seed user: %w", err)
		}
		if err := ignore.Create(&vendor).Error; err != nil {
			return fmt.Errorf("seed vendor: %w", err)
		}
		for _, p := range demoProducts {
			product := models.Product{
				ID:       seedID("product:" + p.title),
				VendorID: vendor.ID,
				Title:    p.title,
				Price:    decimal.RequireFromString(p.price),
				Stock:    p.stock,
			}
			if p.discount != "" {
				d := decimal.RequireFromString(p.discount)
				product.DiscountPrice = &d
			}
			if err := ignore.Create(&product).Error; err != nil {
				return fmt.Errorf("seed product %q: %w", p.title, err)
			}
			catalog.ProductIDs = append(catalog.ProductIDs, product.ID)
			catalog.Titles = append(catalog.Titles, product.Title)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return catalog, nil
}

func (c *seededCatalog) print(w io.Writer) {
	fmt.Fprintf(w, "buyer:  %s\n", c.BuyerID)
	fmt.Fprintf(w, "vendor: %s\n", c.VendorID)
	for i, id := range c.ProductIDs {
		fmt.Fprintf(w, "product %s  %s\n", id, c.Titles[i])
	}
}
