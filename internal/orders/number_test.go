package orders

import (
	"context"
	"testing"
	"time"

	"github.com/shopcore/order-inventory/internal/apperr"
)

type fakeSequenceStore struct {
	seqs  map[string]int
	taken map[string]bool
}

func newFakeSequenceStore() *fakeSequenceStore {
	return &fakeSequenceStore{seqs: map[string]int{}, taken: map[string]bool{}}
}

func (f *fakeSequenceStore) NextSequence(_ context.Context, day time.Time) (int, error) {
	key := day.Format("20060102")
	f.seqs[key]++
	return f.seqs[key], nil
}

func (f *fakeSequenceStore) NumberTaken(_ context.Context, number string) (bool, error) {
	return f.taken[number], nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestGenerateSequentialNumbers(t *testing.T) {
	store := newFakeSequenceStore()
	g := NewNumberGenerator(store)
	g.now = fixedClock(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC))

	first, err := g.Generate(context.Background())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if first != "ORD20240115001" {
		t.Errorf("first = %s, want ORD20240115001", first)
	}

	second, err := g.Generate(context.Background())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if second != "ORD20240115002" {
		t.Errorf("second = %s, want ORD20240115002", second)
	}
}

func TestGenerateScopesSequencePerDay(t *testing.T) {
	store := newFakeSequenceStore()
	g := NewNumberGenerator(store)

	g.now = fixedClock(time.Date(2024, 1, 15, 23, 0, 0, 0, time.UTC))
	if n, _ := g.Generate(context.Background()); n != "ORD20240115001" {
		t.Errorf("day one = %s", n)
	}

	g.now = fixedClock(time.Date(2024, 1, 16, 0, 30, 0, 0, time.UTC))
	if n, _ := g.Generate(context.Background()); n != "ORD20240116001" {
		t.Errorf("day two = %s", n)
	}
}

func TestGenerateSkipsTakenNumbers(t *testing.T) {
	store := newFakeSequenceStore()
	// the first three candidates are already occupied
	store.taken["ORD20240115001"] = true
	store.taken["ORD20240115002"] = true
	store.taken["ORD20240115003"] = true

	g := NewNumberGenerator(store)
	g.now = fixedClock(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC))

	n, err := g.Generate(context.Background())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if n != "ORD20240115004" {
		t.Errorf("number = %s, want ORD20240115004", n)
	}
}

func TestGenerateExhaustsAttempts(t *testing.T) {
	store := newFakeSequenceStore()
	for i := 1; i <= 20; i++ {
		store.taken[FormatOrderNumber(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), i)] = true
	}
	g := NewNumberGenerator(store)
	g.now = fixedClock(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC))

	_, err := g.Generate(context.Background())
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
	if store.seqs["20240115"] != maxNumberAttempts {
		t.Errorf("drew %d sequences, want %d", store.seqs["20240115"], maxNumberAttempts)
	}
}

func TestFormatOrderNumber(t *testing.T) {
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	if got := FormatOrderNumber(day, 7); got != "ORD20240115007" {
		t.Errorf("got %s", got)
	}
	if got := FormatOrderNumber(day, 123); got != "ORD20240115123" {
		t.Errorf("got %s", got)
	}
}
