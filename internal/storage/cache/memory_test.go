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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini-rag/pkg/config"
	"mini-rag/pkg/errors"
)

func TestMemoryStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "k1", []float64{0.1, 0.2}, 0))

	var v []float64
	require.NoError(t, s.Get(ctx, "k1", &v))
	assert.Equal(t, []float64{0.1, 0.2}, v)

	require.NoError(t, s.Delete(ctx, "k1"))
	err := s.Get(ctx, "k1", &v)
	assert.True(t, errors.IsNotFound(err))
	require.NoError(t, s.Delete(ctx, "k1"))
}

func TestMemoryStore_Expiration(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Unix(1000, 0)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, "k", "v", time.Minute))
	ok, err := s.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = s.Exists(ctx, "k")
	assert.False(t, ok)
	var v string
	assert.True(t, errors.IsNotFound(s.Get(ctx, "k", &v)))
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_Eviction(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)
	require.NoError(t, s.Set(ctx, "a", 1, 0))
	require.NoError(t, s.Set(ctx, "b", 2, 0))
	require.NoError(t, s.Set(ctx, "a", 3, 0)) // 重写 a，b 变为最早
	require.NoError(t, s.Set(ctx, "c", 4, 0))

	assert.Equal(t, 2, s.Len())
	ok, _ := s.Exists(ctx, "b")
	assert.False(t, ok)
	var v int
	require.NoError(t, s.Get(ctx, "a", &v))
	assert.Equal(t, 3, v)
}

func TestMemoryStore_GetRefreshesRecency(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)
	require.NoError(t, s.Set(ctx, "a", 1, 0))
	require.NoError(t, s.Set(ctx, "b", 2, 0))
	var v int
	require.NoError(t, s.Get(ctx, "a", &v))
	require.NoError(t, s.Set(ctx, "c", 3, 0))

	ok, _ := s.Exists(ctx, "a")
	assert.True(t, ok)
	ok, _ = s.Exists(ctx, "b")
	assert.False(t, ok)
}

func TestMemoryStore_Clear(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Set(ctx, "a", 1, 0)
	require.NoError(t, s.Clear(ctx))
	assert.Equal(t, 0, s.Len())
	assert.NoError(t, s.Close())
}

func TestNewCache(t *testing.T) {
	s, err := NewCache(config.CacheConfig{Type: "none"})
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = NewCache(config.CacheConfig{Type: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = NewCache(config.CacheConfig{Type: "redis"})
	assert.Error(t, err)

	s, err = NewCache(config.CacheConfig{Type: "redis", Addr: "127.0.0.1:0", Prefix: "t:"})
	require.NoError(t, err)
	assert.Equal(t, "t:k", s.(*RedisStore).key("k"))
	assert.NoError(t, s.Close())

	_, err = NewCache(config.CacheConfig{Type: "memcached"})
	assert.ErrorIs(t, err, errors.ErrUnsupported)
}
