// Package payment simulates the two supported payment providers behind one Gateway.
package payment

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrPaymentDeclined = errors.New("payment declined")
	ErrInvalidMethod   = errors.New("invalid payment method")
	ErrOrderNotFound   = errors.New("payment order not found")
)

// DeclineError carries the provider's reason. errors.Is(err, ErrPaymentDeclined) holds.
type DeclineError struct {
	Reason string
}

func (e *DeclineError) Error() string { return "payment declined: " + e.Reason }

func (e *DeclineError) Unwrap() error { return ErrPaymentDeclined }

func decline(reason string) error { return &DeclineError{Reason: reason} }

type MethodKind string

const (
	MethodPayPal MethodKind = "paypal"
	MethodCard   MethodKind = "card"
)

func (k MethodKind) Valid() bool {
	return k == MethodPayPal || k == MethodCard
}

type CardDetails struct {
	Number      string `json:"number"`
	ExpiryMonth int    `json:"expiryMonth"`
	ExpiryYear  int    `json:"expiryYear"`
	CVV         string `json:"cvv"`
	Holder      string `json:"name"`
}

type Method struct {
	Kind       MethodKind   `json:"kind"`
	Card       *CardDetails `json:"card,omitempty"`
	PayerEmail string       `json:"payerEmail,omitempty"`
}

type Receipt struct {
	PaymentID string     `json:"paymentId"`
	Status    string     `json:"status"`
	Amount    float64    `json:"amount"`
	Currency  string     `json:"currency"`
	Method    MethodKind `json:"method"`
	PayerID   string     `json:"payerId,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Gateway charges an amount with a method. Declines are returned as *DeclineError.
type Gateway interface {
	Charge(ctx context.Context, amount decimal.Decimal, method Method) (Receipt, error)
}
