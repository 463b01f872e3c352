package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

const holdKeyPrefix = "seat_hold:"

// SeatLock fronts the database seat constraint with a short-lived
// distributed hold. A hold is advisory: it cheapens the common race, but
// the unique index remains the authority. Holds lapse by TTL, so a paid
// order never needs an explicit release.
type SeatLock struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSeatLock(client *redis.Client, ttl time.Duration) *SeatLock {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SeatLock{client: client, ttl: ttl}
}

// HoldSeat claims the seat key for orderRef. It returns false when another
// in-flight order already holds the seat.
func (l *SeatLock) HoldSeat(ctx context.Context, seatKey, orderRef string) (bool, error) {
	return l.client.SetNX(ctx, holdKeyPrefix+seatKey, orderRef, l.ttl).Result()
}

// ReleaseSeat drops the hold, but only when orderRef still owns it. A hold
// that expired and was re-taken by another order is left alone.
func (l *SeatLock) ReleaseSeat(ctx context.Context, seatKey, orderRef string) error {
	key := holdKeyPrefix + seatKey

	val, err := l.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	if val != orderRef {
		return nil
	}
	_, err = l.client.Del(ctx, key).Result()
	return err
}
