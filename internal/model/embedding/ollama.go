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
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// OllamaEmbedder 调用 Ollama /api/embed
type OllamaEmbedder struct {
	model   string
	baseURL string
	client  *resty.Client
}

// NewOllamaEmbedder 创建客户端，baseURL 如 http://localhost:11434
func NewOllamaEmbedder(model, baseURL string, timeout time.Duration) *OllamaEmbedder {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaEmbedder{
		model:   model,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  newRestyClient(timeout),
	}
}

func newRestyClient(timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRetryCount(2)
	client.SetRetryWaitTime(500 * time.Millisecond)
	client.SetRetryMaxWaitTime(5 * time.Second)
	return client
}

// Embed 单条文本向量化
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	defer observe(e.model, time.Now())

	var result struct {
		Embeddings [][]float64 `json:"embeddings"`
	}
	resp, err := e.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{"model": e.model, "input": text}).
		SetResult(&result).
		Post(e.baseURL + "/api/embed")
	if err != nil {
		return nil, fmt.Errorf("调用 Ollama embed 失败: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("Ollama embed 返回错误 %d: %s", resp.StatusCode(), resp.String())
	}
	if len(result.Embeddings) == 0 || len(result.Embeddings[0]) == 0 {
		return nil, ErrEmptyVector
	}
	return result.Embeddings[0], nil
}

func (e *OllamaEmbedder) Model() string { return e.model }
