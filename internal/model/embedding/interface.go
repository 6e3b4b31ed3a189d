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
	"errors"
	"time"

	"golang.org/x/time/rate"

	"mini-rag/pkg/metrics"
)

// ErrEmptyVector 模型服务返回了空向量
var ErrEmptyVector = errors.New("embedding: empty vector")

// Embedder 文本向量化接口，返回值必须非空
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	// Model 返回模型名称
	Model() string
}

// RateLimited 在调用前等待限流器
type RateLimited struct {
	inner   Embedder
	limiter *rate.Limiter
}

// NewRateLimited limiter 为 nil 时直接返回 inner
func NewRateLimited(inner Embedder, limiter *rate.Limiter) Embedder {
	if limiter == nil {
		return inner
	}
	return &RateLimited{inner: inner, limiter: limiter}
}

func (e *RateLimited) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return e.inner.Embed(ctx, text)
}

func (e *RateLimited) Model() string { return e.inner.Model() }

func observe(model string, start time.Time) {
	metrics.ModelRequestDuration.WithLabelValues("embedding", model).Observe(time.Since(start).Seconds())
}
