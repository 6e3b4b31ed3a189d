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

package llm

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"mini-rag/pkg/metrics"
)

// Client 对话模型接口：单轮 prompt -> 回答
type Client interface {
	// Complete 发送单条用户消息并返回回答文本
	Complete(ctx context.Context, prompt string) (string, error)
	// Model 返回模型名称
	Model() string
}

// RateLimitedClient 调用前等待限流器
type RateLimitedClient struct {
	inner   Client
	limiter *rate.Limiter
}

// NewRateLimitedClient limiter 为 nil 时直接返回 inner
func NewRateLimitedClient(inner Client, limiter *rate.Limiter) Client {
	if limiter == nil {
		return inner
	}
	return &RateLimitedClient{inner: inner, limiter: limiter}
}

func (c *RateLimitedClient) Complete(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return c.inner.Complete(ctx, prompt)
}

func (c *RateLimitedClient) Model() string { return c.inner.Model() }

func observe(model string, start time.Time) {
	metrics.ModelRequestDuration.WithLabelValues("chat", model).Observe(time.Since(start).Seconds())
}
