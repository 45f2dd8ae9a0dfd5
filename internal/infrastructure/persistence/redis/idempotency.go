package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xiebiao/storefront/pkg/idempotency"
)

// processing 占位值：请求已被接收但尚未完成
const processing = "processing"

// IdempotencyStore 基于SETNX的幂等键存储
//
//	SET key "processing" NX EX ttl   → 抢到的请求继续执行
//	SET key <响应JSON> EX ttl          → 执行成功后保存响应，重放时直接返回
//	DEL key                           → 执行失败，允许客户端用同一个key重试
type IdempotencyStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewIdempotencyStore 创建幂等键存储
func NewIdempotencyStore(rdb *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb, ttl: ttl}
}

func (s *IdempotencyStore) Acquire(ctx context.Context, key string) (bool, *idempotency.Record, error) {
	ok, err := s.rdb.SetNX(ctx, key, processing, s.ttl).Result()
	if err != nil {
		return false, nil, err
	}
	if ok {
		return true, nil, nil
	}

	val, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// 占位恰好过期，下一次请求会重新抢占
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	if val == processing {
		return false, nil, nil
	}

	var rec idempotency.Record
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return false, nil, err
	}
	return false, &rec, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, key string, rec idempotency.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, data, s.ttl).Err()
}

func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}
