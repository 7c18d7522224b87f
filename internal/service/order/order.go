// Package order owns the completed-order history and its status transitions.
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/metrics"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/mykafka"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

type Remote interface {
	ListOrders(ctx context.Context, bearer string) ([]models.Order, error)
	CancelOrder(ctx context.Context, bearer, id string) error
}

// NewID returns an order id of the form ORD-<12 hex>.
func NewID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "ORD-" + strings.ToUpper(raw[:12])
}

var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderCompleted:  {models.OrderProcessing, models.OrderCancelled},
	models.OrderPending:    {models.OrderProcessing, models.OrderCancelled},
	models.OrderProcessing: {models.OrderShipped, models.OrderCancelled},
	models.OrderShipped:    {models.OrderDelivered},
}

func CanTransition(from, to models.OrderStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Service struct {
	Repo    *Repository
	Remote  Remote
	Events  mykafka.Publisher
	Metrics *metrics.Metrics
	Now     func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) Place(ctx context.Context, o models.Order) error {
	if err := s.Repo.Append(ctx, o); err != nil {
		return err
	}
	mykafka.Emit(ctx, s.Events, mykafka.TopicOrder, o.ID, map[string]any{
		"type":     "order_created",
		"order_id": o.ID,
		"owner_id": o.OwnerID,
		"total":    o.Totals.Total,
		"items":    len(o.Items),
	})
	return nil
}

// Fetch prefers the remote list and falls back to the locally stored orders of owner.
func (s *Service) Fetch(ctx context.Context, bearer, owner string) ([]models.Order, error) {
	l := logging.FromContext(ctx).With("svc", "order.fetch")
	if s.Remote != nil {
		list, err := s.Remote.ListOrders(ctx, bearer)
		if err == nil && list != nil {
			return list, nil
		}
		if err != nil {
			l.Warn("remote_call_failed", "call", "order_list", "error", err)
			s.Metrics.RemoteFailure("order_list")
		}
	}
	return s.Repo.ListByOwner(ctx, owner)
}

// Get returns the order only to its owner; admins pass an empty owner.
func (s *Service) Get(ctx context.Context, owner, id string) (models.Order, error) {
	o, err := s.Repo.Get(ctx, id)
	if err != nil {
		return models.Order{}, err
	}
	if owner != "" && o.OwnerID != owner {
		return models.Order{}, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return o, nil
}

// Cancel moves an order to cancelled. The remote is told first on a best-effort basis; the
// local transition is applied regardless of its answer.
func (s *Service) Cancel(ctx context.Context, bearer, owner, id string) (models.Order, error) {
	l := logging.FromContext(ctx).With("svc", "order.cancel", "order_id", id)

	current, err := s.Get(ctx, owner, id)
	if err != nil {
		return models.Order{}, err
	}
	if !CanTransition(current.Status, models.OrderCancelled) {
		return models.Order{}, fmt.Errorf("%s -> %s: %w", current.Status, models.OrderCancelled, ErrInvalidTransition)
	}

	if s.Remote != nil {
		if err := s.Remote.CancelOrder(ctx, bearer, id); err != nil {
			l.Warn("remote_call_failed", "call", "order_cancel", "error", err)
			s.Metrics.RemoteFailure("order_cancel")
		}
	}

	o, err := s.transition(ctx, id, models.OrderCancelled, "")
	if err != nil {
		return models.Order{}, err
	}
	l.Info("order_cancelled")
	return o, nil
}

// SetStatus is the back-office transition used for fulfilment.
func (s *Service) SetStatus(ctx context.Context, id string, to models.OrderStatus, tracking string) (models.Order, error) {
	return s.transition(ctx, id, to, tracking)
}

func (s *Service) transition(ctx context.Context, id string, to models.OrderStatus, tracking string) (models.Order, error) {
	var from models.OrderStatus
	o, err := s.Repo.Update(ctx, id, func(o *models.Order) error {
		if !CanTransition(o.Status, to) {
			return fmt.Errorf("%s -> %s: %w", o.Status, to, ErrInvalidTransition)
		}
		from = o.Status
		now := s.now()
		o.Status = to
		o.UpdatedAt = &now
		switch to {
		case models.OrderShipped:
			o.ShippedAt = &now
			if tracking != "" {
				o.TrackingNumber = tracking
			}
		case models.OrderDelivered:
			o.DeliveredAt = &now
		}
		return nil
	})
	if err != nil {
		return models.Order{}, err
	}
	mykafka.Emit(ctx, s.Events, mykafka.TopicOrder, o.ID, map[string]any{
		"type":     "order_status_changed",
		"order_id": o.ID,
		"from":     string(from),
		"to":       string(to),
	})
	return o, nil
}
