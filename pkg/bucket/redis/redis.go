// Package redis provides a bucket store on a redis server.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/mandelsoft/logging"
	"github.com/redis/go-redis/v9"

	"github.com/mandelsoft/vergraph/pkg/bucket"
)

var REALM = logging.DefineRealm("vergraph/bucket/redis", "redis based bucket store")

var log = logging.DynamicLogger(logging.DefaultContext(), REALM)

// Store keeps entries as redis string values under <prefix><id>.
type Store struct {
	client redis.UniversalClient
	prefix string
}

var _ bucket.Store = (*Store)(nil)

func New(client redis.UniversalClient, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

// Connect creates a store for a redis server and checks the connection.
func Connect(ctx context.Context, address, password string, db int, prefix string) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting redis %s: %w", address, err)
	}
	log.Info("connected bucket store {{address}}", "address", address, "prefix", prefix)
	return New(client, prefix), nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Put(ctx context.Context, id string, data []byte) error {
	return s.client.Set(ctx, s.prefix+id, data, 0).Err()
}

func (s *Store) Get(ctx context.Context, id string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", bucket.ErrNotFound, id)
		}
		return nil, err
	}
	return data, nil
}

// Reset deletes all keys with the store's prefix.
func (s *Store) Reset(ctx context.Context) error {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == 100 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) > 0 {
		return s.client.Del(ctx, keys...).Err()
	}
	return nil
}
