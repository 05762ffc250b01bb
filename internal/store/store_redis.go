package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/go-redis/redis/v8"

	"github.com/harmwatch/harmwatch/internal/harm"
)

const (
	redisKeyPrefix  = "harm:aggregate:"
	redisEncounters = "harm:encounters"
)

type storeRedis struct {
	client *redis.Client
}

// NewRedisStore returns an AggregateStore that keeps one JSON document per
// encounter key plus a set of known encounter ids for the timer loop.
func NewRedisStore(client *redis.Client) AggregateStore {
	return &storeRedis{client: client}
}

func (s *storeRedis) Get(ctx context.Context, encounterID string) (*harm.Aggregate, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+encounterID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get aggregate %s: %w", encounterID, err)
	}

	var agg harm.Aggregate
	if err := json.Unmarshal([]byte(raw), &agg); err != nil {
		return nil, fmt.Errorf("decode aggregate %s: %w", encounterID, err)
	}
	return &agg, nil
}

func (s *storeRedis) Put(ctx context.Context, agg *harm.Aggregate) error {
	raw, err := json.Marshal(agg)
	if err != nil {
		return fmt.Errorf("encode aggregate %s: %w", agg.EncounterID, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, redisKeyPrefix+agg.EncounterID, raw, 0)
	pipe.SAdd(ctx, redisEncounters, agg.EncounterID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("put aggregate %s: %w", agg.EncounterID, err)
	}
	return nil
}

func (s *storeRedis) Delete(ctx context.Context, encounterID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, redisKeyPrefix+encounterID)
	pipe.SRem(ctx, redisEncounters, encounterID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete aggregate %s: %w", encounterID, err)
	}
	return nil
}

func (s *storeRedis) ListEncounterIDs(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, redisEncounters).Result()
	if err != nil {
		return nil, fmt.Errorf("list aggregates: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}
