// Package store persists the storefront's JSON blobs behind a key-value interface.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound  = errors.New("key not found")
	ErrMalformed = errors.New("malformed value")
)

const (
	KeyAdminProducts     = "admin:products"
	KeyAdminCategories   = "admin:categories"
	KeyCompletedOrders   = "completed_orders"
	KeyPaypalOrders      = "paypal_orders"
	KeyCompletedPayments = "completed_payments"
	KeyRegisteredUsers   = "auth:users"

	cartPrefix    = "cart:storefront:"
	sessionPrefix = "auth:session:"
)

func CartKey(owner string) string { return cartPrefix + owner }

func SessionKey(id string) string { return sessionPrefix + id }

type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// GetJSON decodes the value stored at key into v. Missing keys return ErrNotFound.
func GetJSON(ctx context.Context, s KeyValueStore, key string, v any) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w: %w", key, ErrMalformed, err)
	}
	return nil
}

func SetJSON(ctx context.Context, s KeyValueStore, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}

// Quarantine moves the value at key to a timestamped backup key and removes the original,
// so a blob that no longer decodes is kept for inspection instead of being overwritten.
func Quarantine(ctx context.Context, s KeyValueStore, key string, now time.Time) (string, error) {
	raw, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	backup := fmt.Sprintf("%s:corrupt:%s", key, now.UTC().Format("20060102T150405.000000000"))
	if err := s.Set(ctx, backup, raw); err != nil {
		return "", fmt.Errorf("quarantine %s: %w", key, err)
	}
	if err := s.Delete(ctx, key); err != nil {
		return "", fmt.Errorf("quarantine %s: %w", key, err)
	}
	return backup, nil
}
