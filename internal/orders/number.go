package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/shopcore/order-inventory/internal/apperr"
)

const (
	orderNumberPrefix = "ORD"
	maxNumberAttempts = 10
)

// SequenceStore hands out per-day sequence values. NextSequence must be
// atomic (increment-and-return in one round trip) so two concurrent
// checkouts never see the same value.
type SequenceStore interface {
	NextSequence(ctx context.Context, day time.Time) (int, error)
	NumberTaken(ctx context.Context, number string) (bool, error)
}

// NumberGenerator produces date-scoped human-readable order numbers:
// ORD<yyyymmdd><seq3>, e.g. ORD20240115001.
type NumberGenerator struct {
	store SequenceStore
	now   func() time.Time
}

func NewNumberGenerator(store SequenceStore) *NumberGenerator {
	return &NumberGenerator{store: store, now: time.Now}
}

// Generate draws sequence values until one yields an unused number. The
// atomic counter makes collisions exceptional (a manually inserted
// number, a restored backup), so the retry bound is a safety valve, not
// the normal path.
func (g *NumberGenerator) Generate(ctx context.Context) (string, error) {
	day := g.now().UTC()
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		seq, err := g.store.NextSequence(ctx, day)
		if err != nil {
			return "", err
		}
		number := FormatOrderNumber(day, seq)
		taken, err := g.store.NumberTaken(ctx, number)
		if err != nil {
			return "", err
		}
		if !taken {
			return number, nil
		}
	}
	return "", apperr.Conflict("unable to generate unique order number")
}

func FormatOrderNumber(day time.Time, seq int) string {
	return fmt.Sprintf("%s%s%03d", orderNumberPrefix, day.Format("20060102"), seq)
}
