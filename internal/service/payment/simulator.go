package payment

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/metrics"
	"github.com/Skotchmaster/storefront/internal/store"
)

const (
	StatusCreated   = "CREATED"
	StatusApproved  = "APPROVED"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"

	Currency = "EUR"

	paypalFailRate = 0.10
	cardFailRate   = 0.05

	createDelay   = 1000 * time.Millisecond
	approveDelay  = 500 * time.Millisecond
	completeDelay = 2000 * time.Millisecond
	cardDelay     = 1500 * time.Millisecond
)

type Rand interface {
	Float64() float64
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

type ProviderOrder struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	Amount     Amount `json:"amount"`
	CreateTime string `json:"create_time"`
	Payer      Payer  `json:"payer"`
	Method     string `json:"method,omitempty"`
}

type Amount struct {
	Value        string `json:"value"`
	CurrencyCode string `json:"currency_code"`
}

type Payer struct {
	Email string    `json:"email"`
	Name  PayerName `json:"name"`
}

type PayerName struct {
	GivenName string `json:"given_name"`
	Surname   string `json:"surname"`
}

type Simulator struct {
	Store   store.KeyValueStore
	Rand    Rand
	Now     func() time.Time
	Delay   float64
	Metrics *metrics.Metrics

	mu sync.Mutex
}

func NewSimulator(s store.KeyValueStore, delayScale float64, m *metrics.Metrics) *Simulator {
	return &Simulator{
		Store:   s,
		Rand:    globalRand{},
		Now:     time.Now,
		Delay:   delayScale,
		Metrics: m,
	}
}

func (s *Simulator) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *Simulator) wait(ctx context.Context, base time.Duration) error {
	d := time.Duration(float64(base) * s.Delay)
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Simulator) fails(rate float64) bool {
	r := s.Rand
	if r == nil {
		r = globalRand{}
	}
	return r.Float64() < rate
}

func (s *Simulator) Charge(ctx context.Context, amount decimal.Decimal, m Method) (Receipt, error) {
	var (
		rec Receipt
		err error
	)
	switch m.Kind {
	case MethodPayPal:
		rec, err = s.chargePayPal(ctx, amount, m)
	case MethodCard:
		rec, err = s.ProcessCard(ctx, amount, m.Card)
	default:
		return Receipt{}, fmt.Errorf("%w: %q", ErrInvalidMethod, m.Kind)
	}

	status := "completed"
	var de *DeclineError
	switch {
	case errors.As(err, &de):
		status = "declined"
	case err != nil:
		status = "error"
	}
	s.Metrics.Payment(string(m.Kind), status)
	return rec, err
}

func (s *Simulator) chargePayPal(ctx context.Context, amount decimal.Decimal, m Method) (Receipt, error) {
	order, err := s.CreateOrder(ctx, amount, m.PayerEmail)
	if err != nil {
		return Receipt{}, err
	}
	if _, err := s.Approve(ctx, order.ID); err != nil {
		return Receipt{}, err
	}
	done, err := s.Complete(ctx, order.ID)
	if err != nil {
		return Receipt{}, err
	}
	return receiptOf(done, MethodPayPal, s.now()), nil
}

// CreateOrder opens a PayPal-like order in CREATED state.
func (s *Simulator) CreateOrder(ctx context.Context, amount decimal.Decimal, payerEmail string) (ProviderOrder, error) {
	if err := s.wait(ctx, createDelay); err != nil {
		return ProviderOrder{}, err
	}
	if payerEmail == "" {
		payerEmail = "buyer@example.com"
	}
	o := ProviderOrder{
		ID:         newPaymentID(),
		Status:     StatusCreated,
		Amount:     Amount{Value: amount.StringFixed(2), CurrencyCode: Currency},
		CreateTime: s.now().UTC().Format(time.RFC3339),
		Payer:      Payer{Email: payerEmail, Name: PayerName{GivenName: "Test", Surname: "User"}},
		Method:     string(MethodPayPal),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	orders, err := s.loadList(ctx, store.KeyPaypalOrders)
	if err != nil {
		return ProviderOrder{}, err
	}
	orders = append(orders, o)
	if err := store.SetJSON(ctx, s.Store, store.KeyPaypalOrders, orders); err != nil {
		return ProviderOrder{}, fmt.Errorf("save provider order: %w", err)
	}
	return o, nil
}

func (s *Simulator) Approve(ctx context.Context, id string) (ProviderOrder, error) {
	if err := s.wait(ctx, approveDelay); err != nil {
		return ProviderOrder{}, err
	}
	return s.transition(ctx, id, StatusCreated, StatusApproved)
}

// Complete captures an approved order. It is declined roughly one time in ten.
func (s *Simulator) Complete(ctx context.Context, id string) (ProviderOrder, error) {
	if err := s.wait(ctx, completeDelay); err != nil {
		return ProviderOrder{}, err
	}
	if s.fails(paypalFailRate) {
		if _, err := s.transition(ctx, id, StatusApproved, StatusFailed); err != nil && !errors.Is(err, ErrOrderNotFound) {
			logging.FromContext(ctx).Warn("payment_mark_failed_error", "payment_id", id, "error", err)
		}
		return ProviderOrder{}, decline("insufficient funds")
	}
	o, err := s.transition(ctx, id, StatusApproved, StatusCompleted)
	if err != nil {
		return ProviderOrder{}, err
	}
	if err := s.appendCompleted(ctx, o); err != nil {
		return ProviderOrder{}, err
	}
	return o, nil
}

func (s *Simulator) transition(ctx context.Context, id, from, to string) (ProviderOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders, err := s.loadList(ctx, store.KeyPaypalOrders)
	if err != nil {
		return ProviderOrder{}, err
	}
	for i := range orders {
		if orders[i].ID != id {
			continue
		}
		if orders[i].Status != from {
			return ProviderOrder{}, decline(fmt.Sprintf("order is %s, expected %s", orders[i].Status, from))
		}
		orders[i].Status = to
		if err := store.SetJSON(ctx, s.Store, store.KeyPaypalOrders, orders); err != nil {
			return ProviderOrder{}, fmt.Errorf("save provider order: %w", err)
		}
		return orders[i], nil
	}
	return ProviderOrder{}, fmt.Errorf("%s: %w", id, ErrOrderNotFound)
}

// ProcessCard runs the single-phase card flow.
func (s *Simulator) ProcessCard(ctx context.Context, amount decimal.Decimal, card *CardDetails) (Receipt, error) {
	if card == nil {
		return Receipt{}, fmt.Errorf("%w: card details required", ErrInvalidMethod)
	}
	if err := s.wait(ctx, cardDelay); err != nil {
		return Receipt{}, err
	}
	if !ValidCardNumber(card.Number) {
		return Receipt{}, decline("invalid card number")
	}
	if CardExpired(card.ExpiryMonth, card.ExpiryYear, s.now()) {
		return Receipt{}, decline("card expired")
	}
	if s.fails(cardFailRate) {
		return Receipt{}, decline("rejected by issuing bank")
	}

	given, surname := splitHolder(card.Holder)
	o := ProviderOrder{
		ID:         newPaymentID(),
		Status:     StatusCompleted,
		Amount:     Amount{Value: amount.StringFixed(2), CurrencyCode: Currency},
		CreateTime: s.now().UTC().Format(time.RFC3339),
		Payer:      Payer{Email: "cardholder@example.com", Name: PayerName{GivenName: given, Surname: surname}},
		Method:     string(MethodCard),
	}
	s.mu.Lock()
	err := s.appendCompletedLocked(ctx, o)
	s.mu.Unlock()
	if err != nil {
		return Receipt{}, err
	}
	return receiptOf(o, MethodCard, s.now()), nil
}

func (s *Simulator) appendCompleted(ctx context.Context, o ProviderOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendCompletedLocked(ctx, o)
}

func (s *Simulator) appendCompletedLocked(ctx context.Context, o ProviderOrder) error {
	payments, err := s.loadList(ctx, store.KeyCompletedPayments)
	if err != nil {
		return err
	}
	payments = append(payments, o)
	if err := store.SetJSON(ctx, s.Store, store.KeyCompletedPayments, payments); err != nil {
		return fmt.Errorf("save completed payment: %w", err)
	}
	return nil
}

func (s *Simulator) loadList(ctx context.Context, key string) ([]ProviderOrder, error) {
	var list []ProviderOrder
	err := store.GetJSON(ctx, s.Store, key, &list)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return []ProviderOrder{}, nil
	case errors.Is(err, store.ErrMalformed):
		backup, qerr := store.Quarantine(ctx, s.Store, key, s.now())
		if qerr != nil {
			return nil, fmt.Errorf("read %s: %w", key, qerr)
		}
		logging.FromContext(ctx).Warn("payment_list_quarantined", "key", key, "backup", backup, "error", err)
		return []ProviderOrder{}, nil
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return list, nil
}

func ValidCardNumber(number string) bool {
	n := 0
	for _, r := range number {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n >= 13 && n <= 19
}

// CardExpired reports whether a card expiring at month/year is unusable at now.
// Cards stay valid through the last day of their expiry month.
func CardExpired(month, year int, now time.Time) bool {
	if month < 1 || month > 12 || year <= 0 {
		return true
	}
	if year < 100 {
		year += 2000
	}
	endOfMonth := time.Date(year, time.Month(month)+1, 1, 0, 0, 0, 0, now.Location())
	return !now.Before(endOfMonth)
}

func splitHolder(name string) (string, string) {
	parts := strings.Fields(name)
	given, surname := "Card", "Holder"
	if len(parts) > 0 {
		given = parts[0]
	}
	if len(parts) > 1 {
		surname = parts[1]
	}
	return given, surname
}

func receiptOf(o ProviderOrder, kind MethodKind, now time.Time) Receipt {
	amt, _ := decimal.NewFromString(o.Amount.Value)
	created, err := time.Parse(time.RFC3339, o.CreateTime)
	if err != nil {
		created = now
	}
	return Receipt{
		PaymentID: o.ID,
		Status:    o.Status,
		Amount:    amt.InexactFloat64(),
		Currency:  o.Amount.CurrencyCode,
		Method:    kind,
		PayerID:   o.Payer.Email,
		CreatedAt: created,
	}
}

func newPaymentID() string {
	return "PAY-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:16])
}
