package redisx

import (
	"context"
	"fmt"
	"github.com/redis/go-redis/v9"
	"time"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Dedup claims event ids so a redelivered event is processed once.
type Dedup struct {
	Redis   *redis.Client
	Service string
}

// Claim returns true only for the first caller of a given id within TTLDedup.
func (d *Dedup) Claim(ctx context.Context, id string) (bool, error) {
	return d.Redis.SetNX(ctx, fmt.Sprintf(KeyDedup, d.Service, id), "1", TTLDedup).Result()
}

// Release undoes a claim whose processing failed, so a redelivery is retried.
func (d *Dedup) Release(ctx context.Context, id string) error {
	return d.Redis.Del(ctx, fmt.Sprintf(KeyDedup, d.Service, id)).Err()
}

// Idempotency maps a client Idempotency-Key to the reservation it created.
// The first request claims the key with a pending marker; concurrent repeats
// wait for it to resolve instead of racing it to the room.
type Idempotency struct {
	Redis *redis.Client
	Poll  time.Duration
}

const idemPending = "pending"

func (i *Idempotency) poll() time.Duration {
	if i.Poll > 0 {
		return i.Poll
	}
	return 25 * time.Millisecond
}

// Claim returns claimed=true when the caller owns the key and must create the
// reservation, then Remember or Forget it. Otherwise it waits while the owner is
// still pending and returns the owner's reservation id.
func (i *Idempotency) Claim(ctx context.Context, guestID, key string) (string, bool, error) {
	k := fmt.Sprintf(KeyIdemCheckout, guestID, key)
	for {
		ok, err := i.Redis.SetNX(ctx, k, idemPending, TTLIdempotencyPending).Result()
		if err != nil {
			return "", false, err
		}
		if ok {
			return "", true, nil
		}
		v, err := i.Redis.Get(ctx, k).Result()
		switch {
		case err == redis.Nil:
			continue // pemilik sebelumnya gagal dan melepas key
		case err != nil:
			return "", false, err
		case v != idemPending:
			return v, false, nil
		}
		t := time.NewTimer(i.poll())
		select {
		case <-ctx.Done():
			t.Stop()
			return "", false, ctx.Err()
		case <-t.C:
		}
	}
}

// Remember resolves a claimed key to the reservation it created.
func (i *Idempotency) Remember(ctx context.Context, guestID, key, reservationID string) error {
	return i.Redis.Set(ctx, fmt.Sprintf(KeyIdemCheckout, guestID, key), reservationID, TTLIdempotency).Err()
}

// Forget releases a claimed key whose request failed, so a repeat may try again.
func (i *Idempotency) Forget(ctx context.Context, guestID, key string) error {
	return i.Redis.Del(ctx, fmt.Sprintf(KeyIdemCheckout, guestID, key)).Err()
}
