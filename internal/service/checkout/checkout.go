// Package checkout turns a cart into a paid order: form validation, totals, the per-shopper
// checkout state machine and a single-flight order placement.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/metrics"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/service/cart"
	"github.com/Skotchmaster/storefront/internal/service/order"
	"github.com/Skotchmaster/storefront/internal/service/payment"
)

var (
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrInvalidTransition  = errors.New("invalid checkout state transition")
)

type State string

const (
	StateIdle           State = "idle"
	StateMethodSelected State = "payment_method_selected"
	StateProcessing     State = "processing"
	StateSuccess        State = "success"
	StateFailed         State = "failed"
)

var allowed = map[State][]State{
	StateIdle:           {StateMethodSelected},
	StateMethodSelected: {StateMethodSelected, StateProcessing},
	StateProcessing:     {StateSuccess, StateFailed},
	StateSuccess:        {StateIdle},
	StateFailed:         {StateMethodSelected},
}

func canMove(from, to State) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Status is what the UI needs to render the checkout page.
type Status struct {
	State     State              `json:"state"`
	Method    payment.MethodKind `json:"method,omitempty"`
	LastError string             `json:"lastError,omitempty"`
	OrderID   string             `json:"orderId,omitempty"`
}

type flow struct {
	busy atomic.Bool

	// guarded by Service.mu
	touched time.Time

	mu      sync.Mutex
	state   State
	method  *payment.Method
	lastErr string
	orderID string
}

func (f *flow) move(to State) error {
	if f.state == StateSuccess && to != StateIdle {
		f.state = StateIdle
		f.orderID = ""
	}
	if !canMove(f.state, to) {
		return fmt.Errorf("%s -> %s: %w", f.state, to, ErrInvalidTransition)
	}
	f.state = to
	return nil
}

func (f *flow) status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := Status{State: f.state, LastError: f.lastErr, OrderID: f.orderID}
	if f.method != nil {
		st.Method = f.method.Kind
	}
	return st
}

type Orders interface {
	Place(ctx context.Context, o models.Order) error
}

type Notifier interface {
	NotifyOrderCompleted(ctx context.Context, o models.Order) error
}

type PlaceOrderRequest struct {
	Customer CustomerForm    `json:"customerData"`
	Method   *payment.Method `json:"method,omitempty"`
}

type Quote struct {
	Items  []models.CartItem `json:"items"`
	Totals models.Totals     `json:"totals"`
}

const (
	clearAttempts  = 3
	processTimeout = 30 * time.Second
	notifyTimeout  = 5 * time.Second
)

type Deps struct {
	Carts   *cart.Registry
	Gateway payment.Gateway
	Orders  Orders
	Remote  Notifier
	Metrics *metrics.Metrics
}

type Service struct {
	carts   *cart.Registry
	gateway payment.Gateway
	orders  Orders
	remote  Notifier
	metrics *metrics.Metrics
	now     func() time.Time

	// pause between cart clear attempts
	clearBackoff time.Duration

	mu    sync.Mutex
	flows map[string]*flow

	bg sync.WaitGroup
}

func New(d Deps) *Service {
	return &Service{
		carts:        d.Carts,
		gateway:      d.Gateway,
		orders:       d.Orders,
		remote:       d.Remote,
		metrics:      d.Metrics,
		now:          time.Now,
		clearBackoff: 50 * time.Millisecond,
		flows:        make(map[string]*flow),
	}
}

func (s *Service) flow(owner string) *flow {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flows[owner]
	if !ok {
		f = &flow{state: StateIdle}
		s.flows[owner] = f
	}
	f.touched = s.now()
	return f
}

// Prune forgets flows untouched for idle. A flow with a payment in flight is kept.
func (s *Service) Prune(idle time.Duration) int {
	cutoff := s.now().Add(-idle)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for owner, f := range s.flows {
		if f.touched.After(cutoff) || f.busy.Load() {
			continue
		}
		f.mu.Lock()
		processing := f.state == StateProcessing
		f.mu.Unlock()
		if processing {
			continue
		}
		delete(s.flows, owner)
		n++
	}
	return n
}

func (s *Service) State(owner string) Status {
	return s.flow(owner).status()
}

func (s *Service) Quote(ctx context.Context, owner string) Quote {
	items := s.carts.Get(ctx, owner).Items()
	return Quote{Items: items, Totals: ComputeTotals(items)}
}

// SelectMethod records the payment method. It is refused while a payment is processing.
func (s *Service) SelectMethod(owner string, m payment.Method) (Status, error) {
	if !m.Kind.Valid() {
		return Status{}, fmt.Errorf("%w: %q", payment.ErrInvalidMethod, m.Kind)
	}
	f := s.flow(owner)
	f.mu.Lock()
	if f.state == StateProcessing {
		f.mu.Unlock()
		return Status{}, ErrCheckoutInProgress
	}
	if err := f.move(StateMethodSelected); err != nil {
		f.mu.Unlock()
		return Status{}, err
	}
	mc := m
	f.method = &mc
	f.lastErr = ""
	f.mu.Unlock()
	return f.status(), nil
}

// PlaceOrder charges the owner's cart and records the order. Only one submission per owner
// runs at a time; a concurrent one gets ErrCheckoutInProgress. On any failure the cart is
// left untouched.
func (s *Service) PlaceOrder(ctx context.Context, owner string, req PlaceOrderRequest) (models.Order, error) {
	l := logging.FromContext(ctx).With("svc", "checkout.place_order", "owner", owner)

	f := s.flow(owner)
	if !f.busy.CompareAndSwap(false, true) {
		l.Warn("checkout_rejected", "reason", "in progress")
		s.metrics.Checkout("in_progress")
		return models.Order{}, ErrCheckoutInProgress
	}
	defer f.busy.Store(false)

	if err := req.Customer.Validate(); err != nil {
		s.metrics.Checkout("invalid")
		return models.Order{}, err
	}
	if req.Method != nil {
		if _, err := s.SelectMethod(owner, *req.Method); err != nil {
			return models.Order{}, err
		}
	}

	f.mu.Lock()
	if f.method == nil {
		f.mu.Unlock()
		s.metrics.Checkout("invalid")
		return models.Order{}, &ValidationError{Fields: map[string]string{"method": "required"}}
	}
	method := *f.method
	f.mu.Unlock()

	cartMgr, release := s.carts.Acquire(ctx, owner)
	defer release()
	items := cartMgr.Items()
	if len(items) == 0 {
		s.metrics.Checkout("empty_cart")
		return models.Order{}, ErrEmptyCart
	}
	totals := ComputeTotals(items)

	f.mu.Lock()
	if f.state != StateMethodSelected {
		if err := f.move(StateMethodSelected); err != nil {
			f.mu.Unlock()
			return models.Order{}, err
		}
	}
	if err := f.move(StateProcessing); err != nil {
		f.mu.Unlock()
		return models.Order{}, err
	}
	f.mu.Unlock()

	// the charge and the order write must not be cut short by the caller going away
	work, cancel := context.WithTimeout(context.WithoutCancel(ctx), processTimeout)
	defer cancel()

	receipt, err := s.gateway.Charge(work, decimal.NewFromFloat(totals.Total), method)
	if err != nil {
		s.fail(f, err)
		var de *payment.DeclineError
		if errors.As(err, &de) {
			l.Warn("payment_declined", "reason", de.Reason)
			s.metrics.Checkout("declined")
		} else {
			l.Error("payment_failed", "error", err)
			s.metrics.Checkout("error")
		}
		return models.Order{}, err
	}

	o := models.Order{
		ID:       order.NewID(),
		OwnerID:  owner,
		Items:    items,
		Customer: req.Customer.Customer(),
		Totals:   totals,
		Payment: models.PaymentDetails{
			PaymentID: receipt.PaymentID,
			Method:    string(receipt.Method),
			Status:    receipt.Status,
			Amount:    receipt.Amount,
			Currency:  receipt.Currency,
			PayerID:   receipt.PayerID,
			CreatedAt: receipt.CreatedAt,
		},
		CreatedAt: s.now().UTC(),
		Status:    models.OrderCompleted,
	}

	if err := s.orders.Place(work, o); err != nil {
		l.Error("order_write_failed", "order_id", o.ID, "payment_id", receipt.PaymentID, "error", err)
		s.fail(f, err)
		s.metrics.Checkout("error")
		return models.Order{}, fmt.Errorf("save order: %w", err)
	}

	s.clearCart(work, cartMgr, items, o.ID)
	s.notify(ctx, o)

	f.mu.Lock()
	_ = f.move(StateSuccess)
	f.lastErr = ""
	f.orderID = o.ID
	f.mu.Unlock()

	s.metrics.Checkout("success")
	l.Info("order_placed", "order_id", o.ID, "total", o.Totals.Total)
	return o, nil
}

func (s *Service) fail(f *flow, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_ = f.move(StateFailed)
	f.lastErr = err.Error()
}

// clearCart removes the ordered lines. Anything added while the payment ran stays in the cart.
func (s *Service) clearCart(ctx context.Context, m *cart.Manager, ordered []models.CartItem, orderID string) {
	l := logging.FromContext(ctx).With("svc", "checkout.clear_cart", "order_id", orderID)
	var err error
	for attempt := 1; attempt <= clearAttempts; attempt++ {
		if _, err = m.Deduct(ctx, ordered); err == nil {
			return
		}
		l.Warn("cart_clear_failed", "attempt", attempt, "error", err)
		if attempt < clearAttempts {
			time.Sleep(time.Duration(attempt) * s.clearBackoff)
		}
	}
	l.Error("cart_clear_gave_up", "error", err)
}

func (s *Service) notify(ctx context.Context, o models.Order) {
	if s.remote == nil {
		return
	}
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		if err := s.remote.NotifyOrderCompleted(nctx, o); err != nil {
			logging.FromContext(ctx).Warn("order_webhook_failed", "order_id", o.ID, "error", err)
			s.metrics.RemoteFailure("order_webhook")
		}
	}()
}

// Wait blocks until background order notifications have finished.
func (s *Service) Wait() {
	s.bg.Wait()
}
