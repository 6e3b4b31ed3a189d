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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"mini-rag/internal/storage/cache"
)

func TestOllamaEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "qwen3-embedding:4b", body["model"])
		assert.Equal(t, "hello", body["input"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"qwen3-embedding:4b","embeddings":[[0.1,0.2,0.3]]}`))
	}))
	defer srv.Close()

	e := NewOllamaEmbedder("qwen3-embedding:4b", srv.URL+"/", 0)
	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, "qwen3-embedding:4b", e.Model())
}

func TestOllamaEmbedder_EmptyVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embeddings":[]}`))
	}))
	defer srv.Close()

	_, err := NewOllamaEmbedder("m", srv.URL, 0).Embed(context.Background(), "x")
	assert.ErrorIs(t, err, ErrEmptyVector)
}

func TestOllamaEmbedder_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaEmbedder("m", srv.URL, 0).Embed(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestOpenAIEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"embedding":[1,0]}]}`))
	}))
	defer srv.Close()

	vec, err := NewOpenAIEmbedder("text-embedding-3-small", "sk-test", srv.URL+"/v1", 0).Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, vec)
}

type countingEmbedder struct {
	calls int
	vec   []float64
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	c.calls++
	return c.vec, nil
}

func (c *countingEmbedder) Model() string { return "fake" }

func TestCached(t *testing.T) {
	inner := &countingEmbedder{vec: []float64{0.5, 0.5}}
	e := NewCached(inner, cache.NewMemoryStore(), 0, nil)

	for i := 0; i < 3; i++ {
		vec, err := e.Embed(context.Background(), "same text")
		require.NoError(t, err)
		assert.Equal(t, []float64{0.5, 0.5}, vec)
	}
	assert.Equal(t, 1, inner.calls)

	_, err := e.Embed(context.Background(), "other text")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, "fake", e.Model())
}

func TestDecoratorsPassThroughWhenDisabled(t *testing.T) {
	inner := &countingEmbedder{vec: []float64{1}}
	assert.Same(t, inner, NewCached(inner, nil, 0, nil))
	assert.Same(t, inner, NewRateLimited(inner, nil))
}

func TestRateLimited(t *testing.T) {
	inner := &countingEmbedder{vec: []float64{1}}
	e := NewRateLimited(inner, rate.NewLimiter(rate.Inf, 1))
	_, err := e.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	blocked := NewRateLimited(inner, rate.NewLimiter(rate.Limit(0.001), 1))
	_, _ = blocked.Embed(context.Background(), "first")
	_, err = blocked.Embed(ctx, "second")
	assert.Error(t, err)
	assert.Equal(t, 2, inner.calls)
}
