package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shopcore/order-inventory/internal/apperr"
	kafkax "github.com/shopcore/order-inventory/internal/kafka"
	"github.com/shopcore/order-inventory/internal/orders"
)

// Store is the persistence surface for products and categories. *Repo
// is the Postgres implementation; tests supply an in-memory fake.
type Store interface {
	CreateProduct(ctx context.Context, p *Product) error
	GetProduct(ctx context.Context, id string) (*Product, error)
	ListProducts(ctx context.Context, categoryID string) ([]Product, error)
	UpdateProduct(ctx context.Context, p *Product) (string, error)
	DeleteProduct(ctx context.Context, id string) (*Product, error)
	CreateCategory(ctx context.Context, c *Category) error
	GetCategory(ctx context.Context, id string) (*Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Service struct {
	store    Store
	producer Publisher
	log      *zap.Logger
	name     string
	now      func() time.Time
}

func NewService(store Store, producer Publisher, log *zap.Logger, name string) *Service {
	return &Service{store: store, producer: producer, log: log, name: name, now: time.Now}
}

func (s *Service) CreateProduct(ctx context.Context, p *Product) (*Product, error) {
	if p.SKU == "" {
		return nil, apperr.Validation("product sku is required")
	}
	if p.Name == "" {
		return nil, apperr.Validation("product name is required")
	}
	if p.PriceCents < 0 {
		return nil, apperr.Validation("product price must not be negative")
	}
	if p.Stock < 0 {
		return nil, apperr.Validation("product stock must not be negative")
	}
	if p.CategoryID != "" {
		if _, err := s.store.GetCategory(ctx, p.CategoryID); err != nil {
			return nil, err
		}
	}

	p.ID = uuid.NewString()
	p.Active = true
	if err := s.store.CreateProduct(ctx, p); err != nil {
		return nil, err
	}

	s.publishChange(p.ID, "created", p.CategoryID)
	s.log.Info("product created",
		zap.String("product_id", p.ID),
		zap.String("sku", p.SKU))
	return p, nil
}

// UpdateProduct announces both the old and the new category so the
// projector refreshes each side of a move.
func (s *Service) UpdateProduct(ctx context.Context, p *Product) (*Product, error) {
	if p.ID == "" {
		return nil, apperr.Validation("product id is required")
	}
	if p.CategoryID != "" {
		if _, err := s.store.GetCategory(ctx, p.CategoryID); err != nil {
			return nil, err
		}
	}

	prev, err := s.store.UpdateProduct(ctx, p)
	if err != nil {
		return nil, err
	}

	s.publishChange(p.ID, "updated", p.CategoryID, prev)
	s.log.Info("product updated", zap.String("product_id", p.ID))
	return p, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	p, err := s.store.DeleteProduct(ctx, id)
	if err != nil {
		return err
	}

	s.publishChange(id, "deleted", p.CategoryID)
	s.log.Info("product deleted", zap.String("product_id", id))
	return nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (*Product, error) {
	return s.store.GetProduct(ctx, id)
}

func (s *Service) ListProducts(ctx context.Context, categoryID string) ([]Product, error) {
	return s.store.ListProducts(ctx, categoryID)
}

func (s *Service) CreateCategory(ctx context.Context, name string) (*Category, error) {
	if name == "" {
		return nil, apperr.Validation("category name is required")
	}
	c := &Category{ID: uuid.NewString(), Name: name}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) GetCategory(ctx context.Context, id string) (*Category, error) {
	return s.store.GetCategory(ctx, id)
}

func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.store.ListCategories(ctx)
}

func (s *Service) publishChange(productID, change string, categoryIDs ...string) {
	if s.producer == nil {
		return
	}
	cats := make([]string, 0, len(categoryIDs))
	for _, c := range categoryIDs {
		if c != "" && !contains(cats, c) {
			cats = append(cats, c)
		}
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventProductChanged,
		EventVersion:  1,
		OccurredAt:    s.now().UTC(),
		Producer:      s.name,
		CorrelationID: productID,
	}
	ev.Payload = kafkax.MustMarshal(ProductChangedPayload{
		ProductID:   productID,
		Change:      change,
		CategoryIDs: cats,
	})
	s.producer.Publish([]byte(productID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(EventProductChanged)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
