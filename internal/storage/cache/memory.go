// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"mini-rag/pkg/errors"
)

// DefaultMaxEntries 内存缓存默认容量，向量较大，不宜无限增长
const DefaultMaxEntries = 4096

// MemoryStore 内存 LRU 缓存，超出容量时淘汰最久未使用的条目；进程退出即失效
type MemoryStore struct {
	items *lru.Cache[string, cacheItem]
	now   func() time.Time
}

type cacheItem struct {
	value      []byte
	expiration time.Time
}

func (i cacheItem) expired(now time.Time) bool {
	return !i.expiration.IsZero() && now.After(i.expiration)
}

// NewMemoryStore 创建内存缓存，maxEntries <= 0 时使用 DefaultMaxEntries
func NewMemoryStore(maxEntries ...int) *MemoryStore {
	n := DefaultMaxEntries
	if len(maxEntries) > 0 && maxEntries[0] > 0 {
		n = maxEntries[0]
	}
	// 容量为正时 lru.New 不会出错
	items, _ := lru.New[string, cacheItem](n)
	return &MemoryStore{items: items, now: time.Now}
}

// Set 设置缓存，expiration <= 0 表示不过期
func (s *MemoryStore) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	item := cacheItem{value: data}
	if expiration > 0 {
		item.expiration = s.now().Add(expiration)
	}
	s.items.Add(key, item)
	return nil
}

// Get 获取缓存，未命中或已过期返回 ErrNotFound
func (s *MemoryStore) Get(ctx context.Context, key string, dest interface{}) error {
	item, ok := s.items.Get(key)
	if ok && item.expired(s.now()) {
		s.items.Remove(key)
		ok = false
	}
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "cache key %s", key)
	}
	if err := json.Unmarshal(item.value, dest); err != nil {
		return fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return nil
}

// Delete 删除缓存，键不存在不报错
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.items.Remove(key)
	return nil
}

// Exists 检查缓存是否存在且未过期，不影响淘汰顺序
func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	item, ok := s.items.Peek(key)
	return ok && !item.expired(s.now()), nil
}

// Len 当前条目数（含未清理的过期条目）
func (s *MemoryStore) Len() int {
	return s.items.Len()
}

// Clear 清除所有缓存
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.items.Purge()
	return nil
}

// Close 关闭缓存连接
func (s *MemoryStore) Close() error {
	return nil
}
