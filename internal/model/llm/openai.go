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
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// OpenAIClient 通过 Eino openai ChatModel 调用 OpenAI 兼容接口
type OpenAIClient struct {
	model string
	chat  model.BaseChatModel
}

// NewOpenAIClient baseURL 为空时使用官方地址
func NewOpenAIClient(ctx context.Context, modelName, apiKey, baseURL string, timeout time.Duration) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: api_key 未配置")
	}
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		Model:   modelName,
		APIKey:  apiKey,
		BaseURL: baseURL,
		Timeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 OpenAI ChatModel failed: %w", err)
	}
	return &OpenAIClient{model: modelName, chat: cm}, nil
}

// NewChatModelClient 包装任意 Eino ChatModel
func NewChatModelClient(modelName string, cm model.BaseChatModel) *OpenAIClient {
	return &OpenAIClient{model: modelName, chat: cm}
}

func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	defer observe(c.model, time.Now())
	msg, err := c.chat.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return "", fmt.Errorf("调用 ChatModel 失败: %w", err)
	}
	if msg == nil {
		return "", fmt.Errorf("ChatModel 没有返回结果")
	}
	return msg.Content, nil
}

func (c *OpenAIClient) Model() string { return c.model }
