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

package vision

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"mini-rag/internal/model/llm"
	"mini-rag/pkg/metrics"
)

// Client 图像描述接口
type Client interface {
	// Describe 按 prompt 描述 base64 编码的图片
	Describe(ctx context.Context, imageBase64, prompt string) (string, error)
	// Name 返回模型名称
	Name() string
}

// OllamaClient 通过 Ollama /api/chat 的 images 字段调用视觉模型
type OllamaClient struct {
	chat    *llm.OllamaClient
	limiter *rate.Limiter
}

// NewOllamaClient limiter 可为 nil
func NewOllamaClient(model, baseURL string, timeout time.Duration, limiter *rate.Limiter) *OllamaClient {
	return &OllamaClient{chat: llm.NewOllamaClient(model, baseURL, timeout), limiter: limiter}
}

func (c *OllamaClient) Describe(ctx context.Context, imageBase64, prompt string) (string, error) {
	if imageBase64 == "" {
		return "", fmt.Errorf("vision: 图片内容为空")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	start := time.Now()
	out, err := c.chat.Chat(ctx, []llm.ChatMessage{{Role: "user", Content: prompt, Images: []string{imageBase64}}})
	metrics.ModelRequestDuration.WithLabelValues("vision", c.Name()).Observe(time.Since(start).Seconds())
	return out, err
}

func (c *OllamaClient) Name() string { return c.chat.Model() }

// StubClient 不调用模型，返回固定描述；用于关闭图片描述时
type StubClient struct {
	Text string
}

func (s *StubClient) Describe(ctx context.Context, imageBase64, prompt string) (string, error) {
	return s.Text, nil
}

func (s *StubClient) Name() string {
	return "stub"
}
