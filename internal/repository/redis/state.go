// Package redis implements repository.StateRepository on Redis, for
// deployments that run more than one server instance behind a load balancer.
// A login started on one instance can then complete on another.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sakif/repo-dashboard/internal/model"
	"github.com/sakif/repo-dashboard/internal/repository"
)

var _ repository.StateRepository = (*StateStore)(nil)

const keyPrefix = "oauth_state:"

// NewClient connects to addr and pings it once.
func NewClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:            addr,
		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		PoolSize:        10,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}
	return client, nil
}

// StateStore keeps each state under its own key with a TTL, so Redis does the
// expiry and DeleteExpired has nothing to do.
type StateStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStateStore(client *redis.Client) *StateStore {
	return &StateStore{client: client, ttl: model.OAuthStateTTL}
}

func (s *StateStore) Create(ctx context.Context, state string, createdAt time.Time) error {
	ok, err := s.client.SetNX(ctx, keyPrefix+state, strconv.FormatInt(createdAt.UnixNano(), 10), s.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis: creating oauth state: %w", err)
	}
	if !ok {
		return fmt.Errorf("redis: oauth state %q already exists", state)
	}
	return nil
}

// Consume uses GETDEL so the read and the delete are one atomic command.
// The stored creation time is still checked against now in case the key
// outlived its TTL by a few milliseconds.
func (s *StateStore) Consume(ctx context.Context, state string, now time.Time) (bool, error) {
	val, err := s.client.GetDel(ctx, keyPrefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis: consuming oauth state: %w", err)
	}

	nanos, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return false, fmt.Errorf("redis: corrupt oauth state value %q: %w", val, err)
	}
	rec := model.OAuthState{State: state, CreatedAt: time.Unix(0, nanos)}
	return !rec.Expired(now), nil
}

func (s *StateStore) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}
