package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shopcore/order-inventory/internal/apperr"
	kafkax "github.com/shopcore/order-inventory/internal/kafka"
)

// Store is the persistence surface the lifecycle manager needs. *Repo
// is the Postgres implementation; tests supply an in-memory fake.
type Store interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, orderID string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	Cancel(ctx context.Context, orderID, actor string) (*Order, error)
	Delete(ctx context.Context, orderID, actor string) (*Order, error)
	UpdateStatus(ctx context.Context, orderID string, from, to Status) error
	SetPaymentStatus(ctx context.Context, orderID string, ps PaymentStatus) error
}

// UserStats is the aggregate bookkeeping surface. Failures from it are
// logged, never propagated.
type UserStats interface {
	Increment(ctx context.Context, userID string, orders int, spentCents int64) error
}

type Generator interface {
	Generate(ctx context.Context) (string, error)
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Service struct {
	store    Store
	users    UserStats
	numbers  Generator
	producer Publisher
	log      *zap.Logger
	name     string
	now      func() time.Time
}

func NewService(store Store, users UserStats, numbers Generator, producer Publisher, log *zap.Logger, name string) *Service {
	return &Service{
		store:    store,
		users:    users,
		numbers:  numbers,
		producer: producer,
		log:      log,
		name:     name,
		now:      time.Now,
	}
}

// CreateOrder validates the cart, draws an order number, and persists
// the order with stock decremented in the same transaction. The user
// aggregate bump afterwards is best-effort: the order is already
// durable, so a stats failure is logged and swallowed.
func (s *Service) CreateOrder(ctx context.Context, userID string, items []ItemInput, addr ShippingAddress, paymentMethod, notes string) (*Order, error) {
	if userID == "" {
		return nil, apperr.Validation("user id is required")
	}
	if len(items) == 0 {
		return nil, apperr.Validation("order requires at least one item")
	}
	for _, it := range items {
		if it.ProductID == "" {
			return nil, apperr.Validation("item product id is required")
		}
		if it.Quantity < 1 {
			return nil, apperr.Validation("item quantity must be at least 1")
		}
	}
	if err := validateAddress(addr); err != nil {
		return nil, err
	}
	if paymentMethod == "" {
		return nil, apperr.Validation("payment method is required")
	}

	number, err := s.numbers.Generate(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	o := &Order{
		ID:              uuid.NewString(),
		OrderNumber:     number,
		UserID:          userID,
		Status:          StatusPending,
		Items:           make([]OrderItem, 0, len(items)),
		ShippingAddress: addr,
		PaymentMethod:   paymentMethod,
		PaymentStatus:   PaymentPending,
		Notes:           notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, it := range items {
		o.Items = append(o.Items, OrderItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Size:      it.Size,
			Color:     it.Color,
		})
	}

	if err := s.store.Create(ctx, o); err != nil {
		return nil, err
	}

	if err := s.users.Increment(ctx, userID, 1, o.TotalCents); err != nil {
		s.log.Warn("user stats update failed after order create",
			zap.String("order_id", o.ID),
			zap.String("user_id", userID),
			zap.Error(err))
	}

	items2 := make([]ItemPayload, 0, len(o.Items))
	for _, it := range o.Items {
		items2 = append(items2, ItemPayload{ProductID: it.ProductID, Quantity: it.Quantity, PriceCents: it.PriceCents})
	}
	s.publish(EventOrderCreated, o.ID, OrderCreatedPayload{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		Items:       items2,
		TotalCents:  o.TotalCents,
	})

	s.log.Info("order created",
		zap.String("order_id", o.ID),
		zap.String("order_number", o.OrderNumber),
		zap.Int64("total_cents", o.TotalCents))
	return o, nil
}

// CancelOrder reverses a pending order: stock goes back, aggregates go
// down. The status gate lives in the store so it is atomic with the
// restore.
func (s *Service) CancelOrder(ctx context.Context, orderID string, actor Actor) (*Order, error) {
	o, err := s.store.Cancel(ctx, orderID, actor.ID)
	if err != nil {
		return nil, err
	}

	if err := s.users.Increment(ctx, o.UserID, -1, -o.TotalCents); err != nil {
		s.log.Warn("user stats update failed after order cancel",
			zap.String("order_id", o.ID),
			zap.String("user_id", o.UserID),
			zap.Error(err))
	}

	s.publish(EventOrderCancelled, o.ID, OrderCancelledPayload{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		TotalCents:  o.TotalCents,
	})

	s.log.Info("order cancelled",
		zap.String("order_id", o.ID),
		zap.String("actor", actor.ID))
	return o, nil
}

// DeleteOrder removes a settled order for good. Admin only; completed
// orders give their aggregates back here since cancellation never
// touched them.
func (s *Service) DeleteOrder(ctx context.Context, orderID string, actor Actor) error {
	if !actor.IsAdmin() {
		return apperr.Validation("order deletion requires an admin actor")
	}
	o, err := s.store.Delete(ctx, orderID, actor.ID)
	if err != nil {
		return err
	}

	if o.Status == StatusCompleted {
		if err := s.users.Increment(ctx, o.UserID, -1, -o.TotalCents); err != nil {
			s.log.Warn("user stats update failed after order delete",
				zap.String("order_id", o.ID),
				zap.String("user_id", o.UserID),
				zap.Error(err))
		}
	}

	s.publish(EventOrderDeleted, o.ID, OrderDeletedPayload{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		LastStatus:  string(o.Status),
	})

	s.log.Info("order deleted",
		zap.String("order_id", o.ID),
		zap.String("last_status", string(o.Status)),
		zap.String("actor", actor.ID))
	return nil
}

// UpdateStatus walks the order along pending -> processing -> completed.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, next Status) (*Order, error) {
	if !ValidStatus(next) {
		return nil, apperr.Validation("unknown status %q", next)
	}
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, next) {
		return nil, apperr.State("cannot transition order from %s to %s", o.Status, next)
	}
	if err := s.store.UpdateStatus(ctx, orderID, o.Status, next); err != nil {
		return nil, err
	}

	s.publish(EventOrderStatusChanged, o.ID, OrderStatusChangedPayload{
		OrderID: o.ID,
		From:    string(o.Status),
		To:      string(next),
	})
	o.Status = next
	return o, nil
}

func (s *Service) SetPaymentStatus(ctx context.Context, orderID string, ps PaymentStatus) error {
	switch ps {
	case PaymentPending, PaymentPaid, PaymentFailed:
	default:
		return apperr.Validation("unknown payment status %q", ps)
	}
	return s.store.SetPaymentStatus(ctx, orderID, ps)
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	return s.store.Get(ctx, orderID)
}

func (s *Service) ListOrdersByUser(ctx context.Context, userID string) ([]Order, error) {
	return s.store.ListByUser(ctx, userID)
}

func validateAddress(addr ShippingAddress) error {
	switch "" {
	case addr.Name:
		return apperr.Validation("shipping address name is required")
	case addr.Phone:
		return apperr.Validation("shipping address phone is required")
	case addr.Address:
		return apperr.Validation("shipping address is required")
	case addr.City:
		return apperr.Validation("shipping address city is required")
	case addr.District:
		return apperr.Validation("shipping address district is required")
	}
	return nil
}

func (s *Service) publish(eventType, orderID string, payload any) {
	if s.producer == nil {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    s.now().UTC(),
		Producer:      s.name,
		CorrelationID: orderID,
	}
	ev.Payload = kafkax.MustMarshal(payload)
	s.producer.Publish(PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
