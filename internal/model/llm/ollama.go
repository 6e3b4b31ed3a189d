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
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// OllamaClient 调用 Ollama /api/chat（非流式）
type OllamaClient struct {
	model   string
	baseURL string
	client  *resty.Client
}

// ChatMessage Ollama 对话消息；Images 为 base64 编码的图片
type ChatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// NewOllamaClient baseURL 如 http://localhost:11434
func NewOllamaClient(model, baseURL string, timeout time.Duration) *OllamaClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRetryCount(2)
	client.SetRetryWaitTime(500 * time.Millisecond)
	client.SetRetryMaxWaitTime(5 * time.Second)

	return &OllamaClient{model: model, baseURL: strings.TrimSuffix(baseURL, "/"), client: client}
}

func (c *OllamaClient) Complete(ctx context.Context, prompt string) (string, error) {
	defer observe(c.model, time.Now())
	return c.Chat(ctx, []ChatMessage{{Role: "user", Content: prompt}})
}

// Chat 发送多条消息
func (c *OllamaClient) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	var result struct {
		Message ChatMessage `json:"message"`
		Error   string      `json:"error"`
	}
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{"model": c.model, "messages": messages, "stream": false}).
		SetResult(&result).
		Post(c.baseURL + "/api/chat")
	if err != nil {
		return "", fmt.Errorf("调用 Ollama chat 失败: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("Ollama chat 返回错误 %d: %s", resp.StatusCode(), resp.String())
	}
	if result.Error != "" {
		return "", fmt.Errorf("Ollama chat 返回错误: %s", result.Error)
	}
	return result.Message.Content, nil
}

func (c *OllamaClient) Model() string { return c.model }
