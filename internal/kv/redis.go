package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisStore backs the document store with a managed Redis instance.
// Each document is a hash holding the payload and its version stamp;
// compare-and-swap rides on WATCH/MULTI so a concurrent writer aborts
// the transaction instead of clobbering it.
type RedisStore struct {
	client *redis.Client
}

const (
	fieldVersion = "v"
	fieldValue   = "d"
)

// OpenRedis connects to the Redis instance at addr and verifies the
// connection with a ping.
func OpenRedis(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (Document, error) {
	vals, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return Document{}, fmt.Errorf("get document %q: %w", key, err)
	}
	if len(vals) == 0 {
		return Document{}, ErrNotFound
	}

	var doc Document
	doc.Key = key
	doc.Value = json.RawMessage(vals[fieldValue])
	if _, err := fmt.Sscanf(vals[fieldVersion], "%d", &doc.Version); err != nil {
		return Document{}, fmt.Errorf("parse version for %q: %w", key, err)
	}
	return doc, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, value json.RawMessage, expectedVersion int64) (int64, error) {
	var newVersion int64

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, fieldVersion).Int64()
		switch {
		case err == redis.Nil:
			current = 0
		case err != nil:
			return fmt.Errorf("read version: %w", err)
		}

		if current != expectedVersion {
			if current == 0 {
				return ErrNotFound
			}
			return ErrVersionConflict
		}

		newVersion = current + 1
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fieldVersion, newVersion, fieldValue, string(value))
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return 0, ErrVersionConflict
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrVersionConflict) {
			return 0, err
		}
		return 0, fmt.Errorf("put document %q: %w", key, err)
	}
	return newVersion, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string, expectedVersion int64) error {
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, fieldVersion).Int64()
		if err == redis.Nil {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("read version: %w", err)
		}
		if current != expectedVersion {
			return ErrVersionConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return ErrVersionConflict
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrVersionConflict) {
			return err
		}
		return fmt.Errorf("delete document %q: %w", key, err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, prefix string) ([]Document, error) {
	var docs []Document

	iter := s.client.Scan(ctx, 0, prefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		doc, err := s.Get(ctx, iter.Val())
		if err == ErrNotFound {
			// Deleted between scan and read.
			continue
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list documents %q: %w", prefix, err)
	}
	return docs, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
