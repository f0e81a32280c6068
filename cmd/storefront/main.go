package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/plantomart/plantomart-backend/internal/cartstore"
	"github.com/plantomart/plantomart-backend/pkg/config"
	"github.com/plantomart/plantomart-backend/pkg/logger"
)

const usage = `usage: storefront [global flags] <command> [args]

commands:
  cart list | add | set | remove | clear
  wishlist list | add | remove | move
  checkout

global flags:
`

type globals struct {
	dir       string
	buyerID   string
	name      string
	email     string
	phone     string
	token     string
	logLevel  string
	simulated bool
}

func main() {
	_ = godotenv.Load()

	var g globals
	fs := flag.NewFlagSet("storefront", flag.ExitOnError)
	fs.StringVar(&g.dir, "dir", defaultDataDir(), "directory holding the local cart and wishlist")
	fs.StringVar(&g.buyerID, "buyer", os.Getenv("PLANTOMART_BUYER_ID"), "buyer id used for checkout")
	fs.StringVar(&g.name, "name", "", "buyer name for the payment form")
	fs.StringVar(&g.email, "email", "", "buyer email for the payment form")
	fs.StringVar(&g.phone, "phone", "", "buyer phone for the payment form")
	fs.StringVar(&g.token, "token", os.Getenv("PLANTOMART_ACCESS_TOKEN"), "bearer token; minted from the JWT config when empty")
	fs.StringVar(&g.logLevel, "log-level", "warn", "log level")
	fs.BoolVar(&g.simulated, "simulate-payment", false, "sign the gateway result locally instead of prompting")
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[1:])

	args := fs.Args()
	if len(args) == 0 {
		fs.Usage()
		os.Exit(2)
	}

	logg := logger.New(logger.Options{
		ServiceName: "storefront",
		Level:       logger.ParseLevel(g.logLevel),
		Output:      os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage, err := cartstore.NewFileStorage(g.dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open cart storage: %v\n", err)
		os.Exit(1)
	}
	store := cartstore.New(storage, logg)
	store.Load(ctx)

	app := &app{out: os.Stdout, in: os.Stdin, store: store, logg: logg, globals: g, loadConfig: config.Load}
	if err := app.run(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir + string(os.PathSeparator) + "plantomart"
	}
	return ".plantomart"
}

type app struct {
	out        io.Writer
	in         io.Reader
	store      *cartstore.Store
	logg       *logger.Logger
	globals    globals
	loadConfig func() (*config.Config, error)
}

func (a *app) run(ctx context.Context, args []string) error {
	switch args[0] {
	case "cart":
		return a.cart(ctx, args[1:])
	case "wishlist":
		return a.wishlist(ctx, args[1:])
	case "checkout":
		return a.checkout(ctx, args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}
