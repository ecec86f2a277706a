package catalog

import (
	"context"
	"encoding/json"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shopcore/order-inventory/internal/apperr"
	kafkax "github.com/shopcore/order-inventory/internal/kafka"
	"github.com/shopcore/order-inventory/internal/orders"
)

// CountStore is the slice of the repo the projector needs.
type CountStore interface {
	CountActiveProducts(ctx context.Context, categoryID string) (int, error)
	SetProductCount(ctx context.Context, categoryID string, n int) error
}

// Deduper reports whether an event id was already processed and marks
// it in the same step.
type Deduper interface {
	SeenAndMark(ctx context.Context, eventID string) (bool, error)
}

// Projector keeps categories.product_count in step with the products
// table. The count is recomputed from scratch on every event rather
// than incremented, so a lost or replayed message can only leave the
// count stale, never wrong forever.
type Projector struct {
	store CountStore
	dedup Deduper
	log   *zap.Logger
}

func NewProjector(store CountStore, dedup Deduper, log *zap.Logger) *Projector {
	return &Projector{store: store, dedup: dedup, log: log}
}

// HandleMessage is the kafka consumer handler for product-change
// events. A non-nil return leaves the offset uncommitted for retry.
func (p *Projector) HandleMessage(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		p.log.Warn("dropping undecodable event",
			zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != EventProductChanged {
		return nil
	}

	if p.dedup != nil {
		seen, err := p.dedup.SeenAndMark(ctx, env.EventID)
		if err != nil {
			return err
		}
		if seen {
			p.log.Debug("skipping duplicate event", zap.String("event_id", env.EventID))
			return nil
		}
	}

	payload, err := kafkax.UnwrapPayload[ProductChangedPayload](env.Payload)
	if err != nil {
		p.log.Warn("dropping malformed payload",
			zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}

	for _, cat := range payload.CategoryIDs {
		err := p.Recompute(ctx, cat)
		if apperr.IsKind(err, apperr.KindNotFound) {
			// category was deleted under us; retrying would never succeed
			p.log.Warn("skipping count refresh for missing category",
				zap.String("category_id", cat))
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Recompute counts active products in the category and writes the
// result back.
func (p *Projector) Recompute(ctx context.Context, categoryID string) error {
	n, err := p.store.CountActiveProducts(ctx, categoryID)
	if err != nil {
		return err
	}
	if err := p.store.SetProductCount(ctx, categoryID, n); err != nil {
		return err
	}
	p.log.Debug("category count refreshed",
		zap.String("category_id", categoryID), zap.Int("count", n))
	return nil
}
