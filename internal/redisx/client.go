package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	r := redis.NewClient(&redis.Options{Addr: addr})
	_ = r.WithTimeout(2 * time.Second)
	return r
}

func Exists(ctx context.Context, rdb *redis.Client, key string) (bool, error) {
	n, err := rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// Dedup marks events as seen for one consumer group. SETNX makes the
// check-and-mark atomic, so two workers racing on the same event id
// agree on a single winner.
type Dedup struct {
	Client   *redis.Client
	Consumer string
}

// SeenAndMark reports whether eventID was already processed and records
// it if not.
func (d *Dedup) SeenAndMark(ctx context.Context, eventID string) (bool, error) {
	key := fmt.Sprintf(KeyDedup, d.Consumer, eventID)
	set, err := d.Client.SetNX(ctx, key, "1", TTLDedup).Result()
	if err != nil {
		return false, err
	}
	return !set, nil
}
