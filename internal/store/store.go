package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key schema of the agent's durable local record. Only this package
// touches these keys.
const (
	identityKey   = "current_user_id"
	counterPrefix = "session_count_"
	historyPrefix = "tracking_data_"
	intervalKey   = "sample_interval_ms"
)

var ErrUnavailable = errors.New("local store unavailable")

// Store is the agent's durable local storage: the identity slot, the
// per-identity session counter, the per-identity sample history (kept in
// callback-arrival order) and the sampling interval override.
type Store struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) CurrentIdentity(ctx context.Context) (string, error) {
	if s.rdb == nil {
		return "", ErrUnavailable
	}
	id, err := s.rdb.Get(ctx, identityKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return id, err
}

func (s *Store) SetCurrentIdentity(ctx context.Context, identity string) error {
	if s.rdb == nil {
		return ErrUnavailable
	}
	return s.rdb.Set(ctx, identityKey, identity, 0).Err()
}

func (s *Store) SessionCount(ctx context.Context, identity string) (int, error) {
	if s.rdb == nil {
		return 0, ErrUnavailable
	}
	raw, err := s.rdb.Get(ctx, counterPrefix+identity).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(raw)
}

// IncrSessionCount bumps and persists the counter, returning the new value.
func (s *Store) IncrSessionCount(ctx context.Context, identity string) (int, error) {
	if s.rdb == nil {
		return 0, ErrUnavailable
	}
	n, err := s.rdb.Incr(ctx, counterPrefix+identity).Result()
	return int(n), err
}

// AppendHistory adds one serialized sample to the identity's local log.
func (s *Store) AppendHistory(ctx context.Context, identity string, entry []byte) error {
	if s.rdb == nil {
		return ErrUnavailable
	}
	return s.rdb.RPush(ctx, historyPrefix+identity, entry).Err()
}

func (s *Store) History(ctx context.Context, identity string) ([]string, error) {
	if s.rdb == nil {
		return nil, ErrUnavailable
	}
	return s.rdb.LRange(ctx, historyPrefix+identity, 0, -1).Result()
}

func (s *Store) HistoryLen(ctx context.Context, identity string) (int64, error) {
	if s.rdb == nil {
		return 0, ErrUnavailable
	}
	return s.rdb.LLen(ctx, historyPrefix+identity).Result()
}

// SampleInterval returns the user-configured interval override, if any.
func (s *Store) SampleInterval(ctx context.Context) (time.Duration, bool, error) {
	if s.rdb == nil {
		return 0, false, ErrUnavailable
	}
	raw, err := s.rdb.Get(ctx, intervalKey).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms <= 0 {
		return 0, false, nil
	}
	return time.Duration(ms) * time.Millisecond, true, nil
}

func (s *Store) SetSampleInterval(ctx context.Context, d time.Duration) error {
	if s.rdb == nil {
		return ErrUnavailable
	}
	return s.rdb.Set(ctx, intervalKey, strconv.Itoa(int(d.Milliseconds())), 0).Err()
}
