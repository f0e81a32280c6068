package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/plantomart/plantomart-backend/internal/checkout"
	"github.com/plantomart/plantomart-backend/internal/reconciliation"
	"github.com/plantomart/plantomart-backend/pkg/auth"
	"github.com/plantomart/plantomart-backend/pkg/config"
	"github.com/plantomart/plantomart-backend/pkg/enums"
	"github.com/plantomart/plantomart-backend/pkg/metrics"
	"github.com/plantomart/plantomart-backend/pkg/razorpay"
	"github.com/plantomart/plantomart-backend/pkg/redis"
)

func (a *app) checkout(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("checkout", flag.ContinueOnError)
	fs.SetOutput(a.out)
	var in checkout.StartInput
	fs.StringVar(&in.ShippingAddress, "shipping", "", "shipping address")
	fs.StringVar(&in.BillingAddress, "billing", "", "billing address")
	fs.StringVar(&in.Notes, "notes", "", "order notes")
	fs.StringVar(&in.Currency, "currency", "", "currency code")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	buyerID, err := uuid.Parse(strings.TrimSpace(a.globals.buyerID))
	if err != nil {
		return errors.New("-buyer must be a valid id")
	}
	in.Buyer = checkout.Buyer{ID: buyerID, Name: a.globals.name, Email: a.globals.email, Phone: a.globals.phone}

	token := a.globals.token
	if token == "" {
		token, err = auth.MintAccessToken(cfg.JWT, time.Now(), auth.AccessTokenPayload{
			UserID: buyerID,
			Name:   in.Buyer.Name,
			Email:  in.Buyer.Email,
			Phone:  in.Buyer.Phone,
		})
		if err != nil {
			return fmt.Errorf("mint access token: %w", err)
		}
	}

	store, queue, closeFn, err := a.sessionBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	orchestrator, err := checkout.NewOrchestrator(checkout.Params{
		Gateway:        checkout.NewGatewayClient(cfg.Checkout.APIBaseURL, nil),
		Recorder:       checkout.NewHTTPRecorder(cfg.Checkout.APIBaseURL, token, nil),
		Store:          store,
		Queue:          queue,
		Logger:         a.logg,
		Metrics:        metrics.NewCheckoutMetrics(nil),
		StepTimeout:    cfg.Checkout.StepTimeout,
		PaymentMethod:  cfg.Checkout.PaymentMethod,
		SupportContact: cfg.Checkout.SupportContact,
	})
	if err != nil {
		return err
	}

	var collector checkout.PaymentCollector = &promptCollector{in: bufio.NewReader(a.in), out: a.out}
	if a.globals.simulated {
		if !cfg.Razorpay.Enabled() {
			return errors.New("-simulate-payment needs " + config.EnvRazorpayKeySecret)
		}
		collector = &signingCollector{secret: cfg.Razorpay.KeySecret, out: a.out}
	}

	session, err := orchestrator.RunCart(ctx, a.store, in, collector)
	if session != nil {
		printSession(a.out, session)
	}
	return err
}

// sessionBackends uses Redis when configured and falls back to process memory plus a
// local reconciliation file.
func (a *app) sessionBackends(ctx context.Context, cfg *config.Config) (checkout.SessionStore, checkout.ReconciliationQueue, func(), error) {
	if cfg.Redis.URL == "" && cfg.Redis.Address == "" {
		return checkout.NewMemoryStore(), &fileQueue{path: filepath.Join(a.globals.dir, "pending-orders.jsonl")}, func() {}, nil
	}
	client, err := redis.New(ctx, cfg.Redis, a.logg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	closeFn := func() { _ = client.Close() }
	store, err := checkout.NewRedisStore(client, cfg.Checkout.SessionTTL)
	if err != nil {
		closeFn()
		return nil, nil, nil, err
	}
	queue, err := reconciliation.NewQueue(client)
	if err != nil {
		closeFn()
		return nil, nil, nil, err
	}
	return store, queue, closeFn, nil
}

// fileQueue appends reconciliation entries as JSON lines.
type fileQueue struct {
	mu   sync.Mutex
	path string
}

func (q *fileQueue) Enqueue(_ context.Context, entry reconciliation.Entry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(q.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(raw, '\n')); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// promptCollector asks for the gateway result on the terminal. A blank payment id
// dismisses the form.
type promptCollector struct {
	in  *bufio.Reader
	out io.Writer
}

func (p *promptCollector) Collect(_ context.Context, s *checkout.Session) (*checkout.GatewayResult, error) {
	fmt.Fprintf(p.out, "pay %s %s (order %s, key %s)\n", s.Total.StringFixed(2), s.Currency, s.PaymentOrderID, s.PublicKey)
	paymentID, err := p.ask("payment id (blank to cancel): ")
	if err != nil {
		return nil, err
	}
	if paymentID == "" {
		return nil, checkout.ErrPaymentDismissed
	}
	signature, err := p.ask("signature: ")
	if err != nil {
		return nil, err
	}
	return &checkout.GatewayResult{PaymentID: paymentID, Signature: signature}, nil
}

func (p *promptCollector) ask(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	line = strings.TrimSpace(line)
	switch {
	case err == nil:
		return line, nil
	case errors.Is(err, io.EOF) && line != "":
		return line, nil
	case errors.Is(err, io.EOF):
		return "", checkout.ErrPaymentDismissed
	default:
		return "", err
	}
}

// signingCollector plays the gateway in test mode: it invents a payment id and signs it
// with the key secret.
type signingCollector struct {
	secret string
	out    io.Writer
}

func (c *signingCollector) Collect(_ context.Context, s *checkout.Session) (*checkout.GatewayResult, error) {
	buf := make([]byte, 7)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	paymentID := "pay_" + hex.EncodeToString(buf)
	fmt.Fprintf(c.out, "simulated payment %s for order %s\n", paymentID, s.PaymentOrderID)
	return &checkout.GatewayResult{
		PaymentID: paymentID,
		Signature: razorpay.SignPayment(c.secret, s.PaymentOrderID, paymentID),
	}, nil
}

func printSession(w io.Writer, s *checkout.Session) {
	fmt.Fprintf(w, "checkout %s: %s\n", s.ID, s.State)
	switch s.State {
	case enums.CheckoutPersisted:
		if s.OrderID != nil {
			fmt.Fprintf(w, "order %s placed, payment %s\n", *s.OrderID, s.PaymentID)
		}
	case enums.CheckoutFailed, enums.CheckoutPartialFailure:
		fmt.Fprintf(w, "%s: %s\n", s.FailureKind, s.FailureMessage)
		if s.SupportReference != "" {
			fmt.Fprintf(w, "support reference %s\n", s.SupportReference)
		}
	}
}
