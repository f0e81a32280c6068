package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/plantomart/plantomart-backend/internal/orders"
	"github.com/plantomart/plantomart-backend/internal/reconciliation"
	"github.com/plantomart/plantomart-backend/pkg/enums"
	pkgerrors "github.com/plantomart/plantomart-backend/pkg/errors"
	"github.com/plantomart/plantomart-backend/pkg/logger"
	"github.com/plantomart/plantomart-backend/pkg/metrics"
)

const (
	stepCreatePaymentOrder = "create_payment_order"
	stepVerifyPayment      = "verify_payment"
	stepRecordOrder        = "record_order"

	defaultStepTimeout   = 30 * time.Second
	defaultPaymentMethod = "razorpay"
)

// ReconciliationQueue receives paid checkouts whose order could not be recorded.
type ReconciliationQueue interface {
	Enqueue(ctx context.Context, entry reconciliation.Entry) error
}

type Params struct {
	Gateway        PaymentGateway
	Recorder       OrderRecorder
	Store          SessionStore
	Queue          ReconciliationQueue
	Logger         *logger.Logger
	Metrics        *metrics.CheckoutMetrics
	StepTimeout    time.Duration
	PaymentMethod  string
	SupportContact string
}

// Orchestrator drives the checkout saga: payment order, gateway result, verification,
// order recording. Steps are never retried automatically.
type Orchestrator struct {
	gateway        PaymentGateway
	recorder       OrderRecorder
	store          SessionStore
	queue          ReconciliationQueue
	logg           *logger.Logger
	metrics        *metrics.CheckoutMetrics
	stepTimeout    time.Duration
	paymentMethod  string
	supportContact string

	now       func() time.Time
	newID     func() uuid.UUID
	reference func() string
}

func NewOrchestrator(p Params) (*Orchestrator, error) {
	if p.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if p.Recorder == nil {
		return nil, fmt.Errorf("order recorder required")
	}
	if p.Store == nil {
		return nil, fmt.Errorf("session store required")
	}
	if p.Queue == nil {
		return nil, fmt.Errorf("reconciliation queue required")
	}
	logg := p.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	timeout := p.StepTimeout
	if timeout <= 0 {
		timeout = defaultStepTimeout
	}
	method := strings.TrimSpace(p.PaymentMethod)
	if method == "" {
		method = defaultPaymentMethod
	}
	return &Orchestrator{
		gateway:        p.Gateway,
		recorder:       p.Recorder,
		store:          p.Store,
		queue:          p.Queue,
		logg:           logg,
		metrics:        p.Metrics,
		stepTimeout:    timeout,
		paymentMethod:  method,
		supportContact: p.SupportContact,
		now:            func() time.Time { return time.Now().UTC() },
		newID:          uuid.New,
		reference:      newSupportReference,
	}, nil
}

// newSupportReference returns PM- followed by 8 upper-case hex characters.
func newSupportReference() string {
	id := uuid.New()
	return fmt.Sprintf("PM-%X", id[:4])
}

func (o *Orchestrator) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout id required")
	}
	return o.store.Get(ctx, id)
}

// GetForBuyer hides sessions that belong to someone else behind NotFound.
func (o *Orchestrator) GetForBuyer(ctx context.Context, id, buyerID uuid.UUID) (*Session, error) {
	s, err := o.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if buyerID == uuid.Nil || s.BuyerID != buyerID {
		return nil, sessionNotFound()
	}
	return s, nil
}

// Start validates the cart, opens a session and creates the provider payment order.
func (o *Orchestrator) Start(ctx context.Context, in StartInput) (*Session, error) {
	session, err := o.newSession(in)
	if err != nil {
		return nil, err
	}
	if err := o.store.Create(ctx, session); err != nil {
		return nil, err
	}
	logCtx := o.logg.WithUserID(o.logg.WithCheckoutID(ctx, session.ID.String()), session.BuyerID.String())

	var order *PaymentOrder
	timedOut, err := o.step(ctx, stepCreatePaymentOrder, func(stepCtx context.Context) error {
		var err error
		order, err = o.gateway.CreatePaymentOrder(WithIdempotencyKey(stepCtx, "checkout-"+session.ID.String()), PaymentOrderRequest{
			Amount:   session.AmountMinor,
			Currency: session.Currency.String(),
			Receipt:  session.Receipt,
			Notes:    paymentNotes(session),
		})
		if err == nil && (order == nil || order.ID == "" || order.Key == "") {
			err = pkgerrors.New(pkgerrors.CodeInvalidResponse, "payment order missing id or key")
		}
		return err
	})
	if err != nil {
		kind := failureKind(err, timedOut)
		o.logg.Error(logCtx, "create payment order failed", err)
		return session, o.fail(ctx, session, enums.CheckoutAwaitingPaymentOrder, kind, err)
	}

	session.PaymentOrderID = order.ID
	session.PublicKey = order.Key
	if err := o.advance(ctx, session, enums.CheckoutAwaitingPaymentOrder, enums.CheckoutAwaitingGatewayResult); err != nil {
		return nil, err
	}
	o.logg.Info(o.logg.WithField(logCtx, "payment_order_id", order.ID), "checkout awaiting gateway result")
	return session, nil
}

func (o *Orchestrator) newSession(in StartInput) (*Session, error) {
	if in.Buyer.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in required")
	}
	if len(in.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	vendorID, err := uuid.Parse(strings.TrimSpace(in.VendorID))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	currency := enums.CurrencyINR
	if raw := strings.TrimSpace(in.Currency); raw != "" {
		currency, err = enums.ParseCurrency(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported currency")
		}
	}

	lines := make([]Line, 0, len(in.Lines))
	var amountMinor int64
	total := decimal.Zero
	for i, l := range in.Lines {
		productID, err := uuid.Parse(strings.TrimSpace(l.ProductID))
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid product id").WithDetails(map[string]any{"index": i})
		}
		if l.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").WithDetails(map[string]any{"index": i})
		}
		if l.UnitPrice.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price must not be negative").WithDetails(map[string]any{"index": i})
		}
		if !orders.WholeMinorUnits(l.UnitPrice) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price must have at most 2 decimal places").WithDetails(map[string]any{"index": i})
		}
		amountMinor += MinorUnits(l.UnitPrice, l.Quantity)
		total = total.Add(orders.LineTotal(l.UnitPrice, l.Quantity))
		lines = append(lines, Line{ProductID: productID, Title: strings.TrimSpace(l.Title), UnitPrice: l.UnitPrice, Quantity: l.Quantity})
	}
	if amountMinor <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid amount")
	}

	now := o.now()
	id := o.newID()
	name := strings.TrimSpace(in.Buyer.Name)
	if name == "" {
		name = in.Buyer.Email
	}
	if name == "" {
		name = "Customer"
	}
	return &Session{
		ID:              id,
		BuyerID:         in.Buyer.ID,
		VendorID:        vendorID,
		State:           enums.CheckoutAwaitingPaymentOrder,
		Lines:           lines,
		Currency:        currency,
		AmountMinor:     amountMinor,
		Total:           total,
		Receipt:         "chk_" + strings.ReplaceAll(id.String(), "-", ""),
		Prefill:         Prefill{Name: name, Email: in.Buyer.Email, Contact: in.Buyer.Phone},
		ShippingAddress: strings.TrimSpace(in.ShippingAddress),
		BillingAddress:  strings.TrimSpace(in.BillingAddress),
		Notes:           strings.TrimSpace(in.Notes),
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// MinorUnits is round(unit × qty × 100) for INR.
func MinorUnits(unit decimal.Decimal, qty int) int64 {
	return unit.Mul(decimal.NewFromInt(int64(qty))).Shift(enums.CurrencyINR.MinorUnitDigits()).Round(0).IntPart()
}

func paymentNotes(s *Session) map[string]string {
	ids := make([]string, 0, len(s.Lines))
	titles := make([]string, 0, len(s.Lines))
	qty := 0
	for _, l := range s.Lines {
		ids = append(ids, l.ProductID.String())
		if l.Title != "" {
			titles = append(titles, l.Title)
		}
		qty += l.Quantity
	}
	return map[string]string{
		"checkout_id":   s.ID.String(),
		"product_id":    truncate(strings.Join(ids, ","), 256),
		"product_title": truncate(strings.Join(titles, ", "), 256),
		"quantity":      strconv.Itoa(qty),
		"user_id":       s.BuyerID.String(),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Complete verifies the gateway result and records the order.
func (o *Orchestrator) Complete(ctx context.Context, id uuid.UUID, result GatewayResult) (*Session, error) {
	result.PaymentID = strings.TrimSpace(result.PaymentID)
	result.Signature = strings.TrimSpace(result.Signature)
	if result.PaymentID == "" || result.Signature == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paymentId and signature are required")
	}
	session, err := o.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.State != enums.CheckoutAwaitingGatewayResult {
		return session, stateConflict(session.State)
	}
	logCtx := o.logg.WithFields(o.logg.WithCheckoutID(ctx, session.ID.String()), map[string]any{
		"payment_order_id": session.PaymentOrderID,
		"payment_id":       result.PaymentID,
	})

	session.PaymentID = result.PaymentID
	if err := o.advance(ctx, session, enums.CheckoutAwaitingGatewayResult, enums.CheckoutAwaitingVerification); err != nil {
		return nil, err
	}

	var verified bool
	timedOut, err := o.step(ctx, stepVerifyPayment, func(stepCtx context.Context) error {
		var err error
		verified, err = o.gateway.VerifyPayment(stepCtx, session.PaymentOrderID, result)
		return err
	})
	if err != nil || !verified {
		kind := enums.CheckoutFailureVerification
		cause := pkgerrors.New(pkgerrors.CodePaymentVerification, "payment verification failed")
		if timedOut {
			kind = enums.CheckoutFailureTimeout
			cause = pkgerrors.Wrap(pkgerrors.CodeTimeout, err, "payment verification timed out")
		} else if err != nil {
			cause = pkgerrors.Wrap(pkgerrors.CodePaymentVerification, err, "payment verification failed")
		}
		o.logg.Warn(o.logg.WithField(logCtx, "error", cause.Error()), "payment verification failed")
		return session, o.fail(ctx, session, enums.CheckoutAwaitingVerification, kind, cause)
	}

	input := o.orderInput(session)
	var recorded *RecordedOrder
	timedOut, err = o.step(ctx, stepRecordOrder, func(stepCtx context.Context) error {
		var err error
		recorded, err = o.recorder.RecordOrder(stepCtx, input)
		return err
	})
	if err != nil {
		return session, o.partialFailure(ctx, session, input, timedOut, err)
	}

	orderID := recorded.ID
	session.OrderID = &orderID
	if err := o.advance(ctx, session, enums.CheckoutAwaitingVerification, enums.CheckoutPersisted); err != nil {
		return nil, err
	}
	o.metrics.IncOutcome(string(enums.CheckoutPersisted))
	o.logg.Info(o.logg.WithOrderID(logCtx, orderID.String()), "checkout persisted")
	return session, nil
}

func (o *Orchestrator) orderInput(s *Session) orders.CreateInput {
	items := make([]orders.ItemInput, 0, len(s.Lines))
	for _, l := range s.Lines {
		items = append(items, orders.ItemInput{
			ProductID:    l.ProductID.String(),
			ProductTitle: l.Title,
			Quantity:     l.Quantity,
			UnitPrice:    l.UnitPrice,
		})
	}
	total := s.Total
	notes := s.Notes
	if notes == "" {
		notes = "Razorpay order: " + s.PaymentOrderID
	}
	return orders.CreateInput{
		UserID:          s.BuyerID.String(),
		VendorID:        s.VendorID.String(),
		Items:           items,
		TotalAmount:     &total,
		Currency:        s.Currency.String(),
		PaymentID:       s.PaymentID,
		PaymentOrderID:  s.PaymentOrderID,
		PaymentMethod:   o.paymentMethod,
		PaymentStatus:   string(enums.PaymentStatusPaid),
		ShippingAddress: s.ShippingAddress,
		BillingAddress:  s.BillingAddress,
		Notes:           notes,
	}
}

func (o *Orchestrator) partialFailure(ctx context.Context, s *Session, input orders.CreateInput, timedOut bool, cause error) error {
	ref := o.reference()
	kind := enums.CheckoutFailureOrderRecordingFailed
	if timedOut {
		kind = enums.CheckoutFailureTimeout
	}
	logCtx := o.logg.WithFields(o.logg.WithCheckoutID(ctx, s.ID.String()), map[string]any{
		"reference":  ref,
		"payment_id": s.PaymentID,
	})
	o.logg.Error(logCtx, "payment captured but order not recorded", cause)

	if err := o.queue.Enqueue(ctx, reconciliation.Entry{
		Reference:      ref,
		CheckoutID:     s.ID,
		PaymentOrderID: s.PaymentOrderID,
		PaymentID:      s.PaymentID,
		Order:          input,
		Reason:         cause.Error(),
	}); err != nil {
		o.logg.Error(logCtx, "enqueue reconciliation entry failed", err)
	}

	msg := fmt.Sprintf("Payment received but the order could not be recorded. Quote reference %s to support", ref)
	if o.supportContact != "" {
		msg += " at " + o.supportContact
	}
	msg += "."

	s.State = enums.CheckoutPartialFailure
	s.FailureKind = kind
	s.FailureMessage = msg
	s.SupportReference = ref
	s.UpdatedAt = o.now()
	if err := o.store.Update(ctx, enums.CheckoutAwaitingVerification, s); err != nil {
		o.logg.Error(logCtx, "persist partial failure state failed", err)
	}
	o.metrics.IncOutcome(string(enums.CheckoutPartialFailure))

	return pkgerrors.Wrap(pkgerrors.CodePartialFailure, cause, msg).WithDetails(map[string]any{
		"reference":   ref,
		"checkout_id": s.ID.String(),
		"payment_id":  s.PaymentID,
	})
}

// Dismiss aborts a session the buyer walked away from. Nothing is compensated since no
// payment was captured.
func (o *Orchestrator) Dismiss(ctx context.Context, id uuid.UUID) (*Session, error) {
	session, err := o.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	from := session.State
	if from != enums.CheckoutAwaitingPaymentOrder && from != enums.CheckoutAwaitingGatewayResult {
		return session, stateConflict(from)
	}
	if err := o.advance(ctx, session, from, enums.CheckoutAborted); err != nil {
		return nil, err
	}
	o.metrics.IncOutcome(string(enums.CheckoutAborted))
	o.logg.Info(o.logg.WithCheckoutID(ctx, session.ID.String()), "checkout dismissed")
	return session, nil
}

func (o *Orchestrator) advance(ctx context.Context, s *Session, from, to enums.CheckoutState) error {
	prev := s.State
	s.State = to
	s.UpdatedAt = o.now()
	if err := o.store.Update(ctx, from, s); err != nil {
		s.State = prev
		return err
	}
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, s *Session, from enums.CheckoutState, kind enums.CheckoutFailureKind, cause error) error {
	if kind == enums.CheckoutFailureTimeout && !pkgerrors.Is(cause, pkgerrors.CodeTimeout) {
		cause = pkgerrors.Wrap(pkgerrors.CodeTimeout, cause, "checkout step timed out")
	}
	s.State = enums.CheckoutFailed
	s.FailureKind = kind
	s.FailureMessage = pkgerrors.PublicMessage(cause)
	s.UpdatedAt = o.now()
	if err := o.store.Update(ctx, from, s); err != nil {
		o.logg.Error(o.logg.WithCheckoutID(ctx, s.ID.String()), "persist failed state failed", err)
	}
	o.metrics.IncOutcome(string(enums.CheckoutFailed))
	return cause
}

// step runs fn under the per-step deadline. timedOut is true when the deadline, not the
// caller, ended the step.
func (o *Orchestrator) step(ctx context.Context, name string, fn func(ctx context.Context) error) (timedOut bool, err error) {
	stepCtx, cancel := context.WithTimeout(ctx, o.stepTimeout)
	defer cancel()
	start := time.Now()
	err = fn(stepCtx)
	o.metrics.ObserveStep(name, time.Since(start))
	if err == nil {
		return false, nil
	}
	timedOut = errors.Is(err, context.DeadlineExceeded) ||
		pkgerrors.Is(err, pkgerrors.CodeTimeout) ||
		(errors.Is(stepCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil)
	return timedOut, err
}

func failureKind(err error, timedOut bool) enums.CheckoutFailureKind {
	switch {
	case timedOut:
		return enums.CheckoutFailureTimeout
	case pkgerrors.Is(err, pkgerrors.CodeInvalidResponse):
		return enums.CheckoutFailureInvalidResponse
	default:
		return enums.CheckoutFailureGateway
	}
}
