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

package app

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"mini-rag/internal/model/embedding"
	"mini-rag/internal/model/llm"
	"mini-rag/internal/model/vision"
	"mini-rag/internal/storage/cache"
	"mini-rag/pkg/config"
	"mini-rag/pkg/log"
)

// Models 模型服务客户端；三者共用同一个限流器
type Models struct {
	Answer   llm.Client
	Vision   vision.Client
	Embedder embedding.Embedder
}

// newLimiter requestsPerMinute <= 0 表示不限流
func newLimiter(requestsPerMinute float64) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	burst := int(requestsPerMinute / 60 * 2) // 2 秒的配额
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(requestsPerMinute/60), burst)
}

// NewModels 根据 config.Model 创建客户端；store 非 nil 时缓存向量
func NewModels(ctx context.Context, cfg *config.Config, store cache.Store, logger *log.Logger) (*Models, error) {
	if logger == nil {
		logger = log.Discard()
	}
	mc := cfg.Model
	limiter := newLimiter(mc.RequestsPerMinute)

	var (
		answer   llm.Client
		embedder embedding.Embedder
		visual   vision.Client
	)
	switch mc.Provider {
	case "", "ollama":
		answer = llm.NewOllamaClient(mc.AnswerModel, mc.BaseURL, mc.Timeout)
		embedder = embedding.NewOllamaEmbedder(mc.EmbeddingModel, mc.BaseURL, mc.Timeout)
		visual = vision.NewOllamaClient(mc.VisionModel, mc.BaseURL, mc.Timeout, limiter)
	case "openai":
		c, err := llm.NewOpenAIClient(ctx, mc.AnswerModel, mc.APIKey, mc.BaseURL, mc.Timeout)
		if err != nil {
			return nil, err
		}
		answer = c
		embedder = embedding.NewOpenAIEmbedder(mc.EmbeddingModel, mc.APIKey, mc.BaseURL, mc.Timeout)
		// OpenAI 兼容接口不提供视觉描述，图片以空文本替换
		visual = &vision.StubClient{}
		if cfg.Ingest.DescribeImages {
			logger.Warn("provider openai 不支持图片描述，图片将被忽略")
		}
	default:
		return nil, fmt.Errorf("不支持的模型 provider: %s", mc.Provider)
	}
	if !cfg.Ingest.DescribeImages {
		visual = &vision.StubClient{}
	}

	embedder = embedding.NewRateLimited(embedder, limiter)
	embedder = embedding.NewCached(embedder, store, cfg.Storage.Cache.TTL, logger)
	return &Models{
		Answer:   llm.NewRateLimitedClient(answer, limiter),
		Vision:   visual,
		Embedder: embedder,
	}, nil
}
