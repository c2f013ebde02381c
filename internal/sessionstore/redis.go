// Package sessionstore keeps session carts in Redis with a sliding expiry.
package sessionstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/webshop/internal/domain/cart"
)

var _ cart.Store = (*Store)(nil)

// Store implements cart.Store on Redis. Every Save refreshes the TTL, so a
// cart expires after TTL of inactivity.
type Store struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// New creates a Store. Keys are prefix + session id.
func New(client redis.Cmdable, prefix string, ttl time.Duration) *Store {
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + sessionID
}

// Load returns the cart of sessionID, or an empty cart if none is stored or
// it expired.
func (s *Store) Load(ctx context.Context, sessionID string) (*cart.Cart, error) {
	data, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return cart.New(sessionID), nil
		}
		return nil, errors.Wrapf(err, "get cart %q", sessionID)
	}

	c := cart.New(sessionID)
	if err := json.Unmarshal(data, c); err != nil {
		return nil, errors.Wrapf(err, "decode cart %q", sessionID)
	}
	c.SessionID = sessionID
	if c.Lines == nil {
		c.Lines = make(map[int64]*cart.Line)
	}
	return c, nil
}

// Save stores c and resets its expiry.
func (s *Store) Save(ctx context.Context, c *cart.Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return errors.Wrapf(err, "encode cart %q", c.SessionID)
	}
	if err := s.client.Set(ctx, s.key(c.SessionID), data, s.ttl).Err(); err != nil {
		return errors.Wrapf(err, "set cart %q", c.SessionID)
	}
	return nil
}

// End deletes the cart of sessionID.
func (s *Store) End(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return errors.Wrapf(err, "delete cart %q", sessionID)
	}
	return nil
}

// Ping checks the Redis connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
