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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini-rag/internal/model/llm"
)

func TestOllamaClient_Describe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model    string            `json:"model"`
			Messages []llm.ChatMessage `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "qwen2.5vl:3b", body.Model)
		require.Len(t, body.Messages, 1)
		assert.Equal(t, "describe", body.Messages[0].Content)
		assert.Equal(t, []string{"aW1n"}, body.Messages[0].Images)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"A bar chart."}}`))
	}))
	defer srv.Close()

	c := NewOllamaClient("qwen2.5vl:3b", srv.URL, 0, nil)
	out, err := c.Describe(context.Background(), "aW1n", "describe")
	require.NoError(t, err)
	assert.Equal(t, "A bar chart.", out)
	assert.Equal(t, "qwen2.5vl:3b", c.Name())

	_, err = c.Describe(context.Background(), "", "describe")
	assert.Error(t, err)
}

func TestStubClient(t *testing.T) {
	out, err := (&StubClient{Text: "image"}).Describe(context.Background(), "x", "p")
	require.NoError(t, err)
	assert.Equal(t, "image", out)
}
