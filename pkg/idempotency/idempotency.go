// Package idempotency 幂等键存储
//
// 客户端在请求头携带Idempotency-Key，同一个key在TTL内只会被执行一次：
// 第一次请求抢占key并执行，成功后保存响应；重复请求直接重放保存的响应；
// 第一次请求尚未完成时，重复请求返回"请求正在处理中"。
// 保存的响应带有请求体指纹，同一个key携带不同请求体时拒绝重放。
package idempotency

import (
	"context"
	"sync"
	"time"
)

// Record 保存的响应
type Record struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
	// Fingerprint 第一次请求的请求体指纹，为空时不校验
	Fingerprint string `json:"fingerprint,omitempty"`
}

// Matches 请求体指纹是否与保存的响应一致
func (r *Record) Matches(fingerprint string) bool {
	return r.Fingerprint == "" || r.Fingerprint == fingerprint
}

// Store 幂等键存储
type Store interface {
	// Acquire 抢占key
	// 抢到时acquired=true；未抢到时rec为已保存的响应，rec为nil表示第一次请求仍在处理中
	Acquire(ctx context.Context, key string) (acquired bool, rec *Record, err error)
	// Save 保存响应，key的有效期重新计算
	Save(ctx context.Context, key string, rec Record) error
	// Release 放弃key，允许用同一个key重试
	Release(ctx context.Context, key string) error
}

type entry struct {
	rec       *Record
	expiresAt time.Time
}

// MemoryStore 进程内实现，用于单实例部署和测试
// 过期的key在Acquire时清理，每个TTL周期最多全量扫描一次
type MemoryStore struct {
	mu        sync.Mutex
	ttl       time.Duration
	entries   map[string]entry
	nextSweep time.Time
	now       func() time.Time
}

// NewMemoryStore 创建进程内幂等键存储
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (m *MemoryStore) Acquire(_ context.Context, key string) (bool, *Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)
	if e, ok := m.entries[key]; ok && now.Before(e.expiresAt) {
		return false, e.rec, nil
	}
	m.entries[key] = entry{expiresAt: now.Add(m.ttl)}
	return true, nil, nil
}

func (m *MemoryStore) Save(_ context.Context, key string, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = entry{rec: &rec, expiresAt: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

// Len 未清理的key数量
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.entries)
}

func (m *MemoryStore) sweep(now time.Time) {
	if now.Before(m.nextSweep) {
		return
	}
	for k, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, k)
		}
	}
	m.nextSweep = now.Add(m.ttl)
}
