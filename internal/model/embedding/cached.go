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

package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"mini-rag/internal/storage/cache"
	"mini-rag/pkg/errors"
	"mini-rag/pkg/log"
	"mini-rag/pkg/metrics"
)

// Cached 以 cache.Store 缓存向量，key 为 模型名 + 文本 sha256。缓存读写失败只告警，不影响结果。
type Cached struct {
	inner  Embedder
	store  cache.Store
	ttl    time.Duration
	logger *log.Logger
}

// NewCached store 为 nil 时直接返回 inner
func NewCached(inner Embedder, store cache.Store, ttl time.Duration, logger *log.Logger) Embedder {
	if store == nil {
		return inner
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Cached{inner: inner, store: store, ttl: ttl, logger: logger}
}

func (c *Cached) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "embedding:" + c.inner.Model() + ":" + hex.EncodeToString(sum[:])
}

func (c *Cached) Embed(ctx context.Context, text string) ([]float64, error) {
	key := c.key(text)
	var cached []float64
	err := c.store.Get(ctx, key, &cached)
	switch {
	case err == nil && len(cached) > 0:
		metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
		return cached, nil
	case err == nil:
		c.logger.Warn("向量缓存内容为空", "key", key)
	case !errors.IsNotFound(err):
		c.logger.Warn("读取向量缓存失败", "error", err)
	}
	metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if serr := c.store.Set(ctx, key, vec, c.ttl); serr != nil {
		c.logger.Warn("写入向量缓存失败", "error", serr)
	}
	return vec, nil
}

func (c *Cached) Model() string { return c.inner.Model() }
