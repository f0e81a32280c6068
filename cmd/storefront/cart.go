package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/plantomart/plantomart-backend/internal/cartstore"
)

type productFlags struct {
	product  string
	vendor   string
	title    string
	price    string
	discount string
}

func (p *productFlags) bind(fs *flag.FlagSet) {
	fs.StringVar(&p.product, "product", "", "product id")
	fs.StringVar(&p.vendor, "vendor", "", "vendor id")
	fs.StringVar(&p.title, "title", "", "product title")
	fs.StringVar(&p.price, "price", "", "unit price")
	fs.StringVar(&p.discount, "discount", "", "discount price")
}

func (p *productFlags) prices() (decimal.Decimal, *decimal.Decimal, error) {
	if p.product == "" {
		return decimal.Zero, nil, errors.New("-product is required")
	}
	price, err := decimal.NewFromString(p.price)
	if err != nil {
		return decimal.Zero, nil, fmt.Errorf("invalid -price %q", p.price)
	}
	if p.discount == "" {
		return price, nil, nil
	}
	discount, err := decimal.NewFromString(p.discount)
	if err != nil {
		return decimal.Zero, nil, fmt.Errorf("invalid -discount %q", p.discount)
	}
	return price, &discount, nil
}

func (a *app) cart(ctx context.Context, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}
	fs := flag.NewFlagSet("cart "+args[0], flag.ContinueOnError)
	fs.SetOutput(a.out)
	var (
		p   productFlags
		qty int
	)
	p.bind(fs)
	fs.IntVar(&qty, "qty", 1, "quantity")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	switch args[0] {
	case "list":
	case "add":
		price, discount, err := p.prices()
		if err != nil {
			return err
		}
		if qty < 1 {
			return errors.New("-qty must be at least 1")
		}
		a.store.AddOrIncrement(ctx, cartstore.CartLine{
			ProductID:     p.product,
			VendorID:      p.vendor,
			Title:         p.title,
			UnitPrice:     price,
			DiscountPrice: discount,
		})
		if qty > 1 {
			a.store.SetQuantity(ctx, p.product, quantityOf(a.store, p.product)+qty-1)
		}
	case "set":
		if p.product == "" {
			return errors.New("-product is required")
		}
		a.store.SetQuantity(ctx, p.product, qty)
	case "remove":
		if p.product == "" {
			return errors.New("-product is required")
		}
		a.store.Remove(ctx, p.product)
	case "clear":
		a.store.Clear(ctx)
	default:
		return fmt.Errorf("unknown cart command %q", args[0])
	}
	printCart(a.out, a.store)
	return nil
}

func (a *app) wishlist(ctx context.Context, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}
	fs := flag.NewFlagSet("wishlist "+args[0], flag.ContinueOnError)
	fs.SetOutput(a.out)
	var p productFlags
	p.bind(fs)
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	switch args[0] {
	case "list":
	case "add":
		price, discount, err := p.prices()
		if err != nil {
			return err
		}
		a.store.AddToWishlist(ctx, cartstore.WishlistEntry{
			ProductID:     p.product,
			VendorID:      p.vendor,
			Title:         p.title,
			Price:         price,
			DiscountPrice: discount,
		})
	case "remove":
		if p.product == "" {
			return errors.New("-product is required")
		}
		a.store.RemoveFromWishlist(ctx, p.product)
	case "move":
		if p.product == "" {
			return errors.New("-product is required")
		}
		if !a.store.MoveWishlistItemToCart(ctx, p.product) {
			return fmt.Errorf("product %s is not on the wishlist", p.product)
		}
		printCart(a.out, a.store)
	default:
		return fmt.Errorf("unknown wishlist command %q", args[0])
	}
	printWishlist(a.out, a.store)
	return nil
}

func quantityOf(store *cartstore.Store, productID string) int {
	for _, l := range store.Lines() {
		if l.ProductID == productID {
			return l.Quantity
		}
	}
	return 0
}

func printCart(w io.Writer, store *cartstore.Store) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tTITLE\tQTY\tPRICE")
	for _, l := range store.Lines() {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", l.ProductID, l.Title, l.Quantity, l.EffectivePrice().StringFixed(2))
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "items: %d  subtotal: %s\n", store.Count(), store.Subtotal().StringFixed(2))
}

func printWishlist(w io.Writer, store *cartstore.Store) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tTITLE\tPRICE")
	for _, e := range store.Wishlist() {
		price := e.Price
		if e.DiscountPrice != nil {
			price = *e.DiscountPrice
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.ProductID, e.Title, price.StringFixed(2))
	}
	_ = tw.Flush()
}
