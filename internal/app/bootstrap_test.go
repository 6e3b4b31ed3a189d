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
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini-rag/internal/document"
	"mini-rag/internal/model/vision"
	"mini-rag/internal/pipeline"
	"mini-rag/internal/runlog"
	"mini-rag/pkg/config"
)

type fakeParser struct{}

func (fakeParser) Parse(ctx context.Context, path string) (*document.Document, error) {
	return &document.Document{Source: path, Pages: 1, Items: []document.Item{
		{Kind: document.ItemHeading, Text: "Annual Report", Level: 1},
		{Kind: document.ItemHeading, Text: "Revenue", Level: 2},
		{Kind: document.ItemText, Text: "Revenue grew by ten percent."},
		{Kind: document.ItemPicture, Image: &document.Image{MIME: "image/png", Data: []byte{1}}},
	}}, nil
}

// keywordEmbedder 按关键词出现次数构造向量
type keywordEmbedder struct {
	err error
}

func (e keywordEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if e.err != nil {
		return nil, e.err
	}
	lower := strings.ToLower(text)
	return []float64{float64(strings.Count(lower, "revenue")), float64(strings.Count(lower, "cost")), 1}, nil
}

func (keywordEmbedder) Model() string { return "keyword" }

type echoLLM struct{}

func (echoLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return "Revenue grew by ten percent.", nil
}

func (echoLLM) Model() string { return "echo" }

func testConfig(dir string) *config.Config {
	cfg := &config.Config{DataFolder: dir}
	cfg.Ingest = config.IngestConfig{
		ChunkSize:    1000,
		ChunkOverlap: 200,
		HeadersToSplitOn: []config.HeaderRule{
			{Prefix: "#", Name: "Header 1"},
			{Prefix: "##", Name: "Header 2"},
		},
		ImageToTextPrompt: "describe",
		DescribeImages:    true,
	}
	cfg.Storage.Vector = config.VectorConfig{
		Type: "local", Path: filepath.Join(dir, "vectordb"), Collection: "embeddings_collection",
		DistanceThreshold: 0.35, TopK: 3,
	}
	cfg.Storage.Lexical = config.LexicalConfig{
		Type: "file", Path: filepath.Join(dir, "retriever"), Key: "tfidf_retriever.json", TopK: 3,
	}
	cfg.Storage.Cache = config.CacheConfig{Type: "memory"}
	return cfg
}

func newTestBuilder(t *testing.T, models *Models) (*Builder, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	b, err := NewBuilder(context.Background(), testConfig(t.TempDir()), nil,
		WithModels(models), WithParser(fakeParser{}), WithOutput(&out), WithProgress(false))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b, &out
}

func TestBuilder_EndToEnd(t *testing.T) {
	ctx := context.Background()
	b, out := newTestBuilder(t, &Models{
		Answer:   echoLLM{},
		Vision:   &vision.StubClient{Text: "A revenue chart."},
		Embedder: keywordEmbedder{},
	})

	ingest := b.IngestionPipeline("report.pdf")
	assert.Equal(t, "Ingesting file: report.pdf", ingest.Label())
	assert.Len(t, ingest.Plan(), 7)
	ingest.Execute(ctx)
	require.NoError(t, ingest.Err())

	docs := b.DocumentsPipeline()
	docs.Execute(ctx)
	require.NoError(t, docs.Err())
	listing, err := pipeline.Get[string](docs.Context(), pipeline.KeyOutput)
	require.NoError(t, err)
	assert.Contains(t, listing, "| 1 | report.pdf |")

	ask := b.AskPipeline("How did revenue change?")
	assert.Equal(t, "Planning answer", ask.Label())
	ask.Execute(ctx)
	require.NoError(t, ask.Err())
	answer, err := pipeline.Get[string](ask.Context(), pipeline.KeyOutput)
	require.NoError(t, err)
	assert.Contains(t, answer, "# Response \nRevenue grew by ten percent.")
	assert.Contains(t, answer, "| report.pdf | Annual Report Revenue |")
	assert.Empty(t, out.String())

	data, err := os.ReadFile(b.RunLogPath())
	require.NoError(t, err)
	assert.Equal(t, 3, bytes.Count(data, []byte("\n")))

	rec, err := runlog.Find(b.RunLogPath(), ask.TraceID())
	require.NoError(t, err)
	assert.Equal(t, ask.Plan(), rec.Plan())
	retrieval, ok := rec.Field("retrieval")
	require.True(t, ok)
	assert.NotEmpty(t, retrieval)
}

func TestBuilder_FailureNotice(t *testing.T) {
	b, out := newTestBuilder(t, &Models{
		Answer:   echoLLM{},
		Vision:   &vision.StubClient{},
		Embedder: keywordEmbedder{err: errors.New("ollama unreachable")},
	})

	ask := b.AskPipeline("anything")
	ask.Execute(context.Background())
	require.Error(t, ask.Err())
	assert.Contains(t, out.String(), "There was an issue while processing the request trace_id: "+ask.TraceID())

	rec, err := runlog.Find(b.RunLogPath(), ask.TraceID())
	require.NoError(t, err)
	require.Len(t, rec.Errors(), 1)
	assert.Contains(t, rec.Errors()[0].Message, "ollama unreachable")
	assert.Equal(t, 1, rec.Latency().Len())
}

func TestNewBuilder_InvalidBackends(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Storage.Vector.Type = "milvus"
	_, err := NewBuilder(context.Background(), cfg, nil, WithModels(&Models{}), WithParser(fakeParser{}))
	assert.Error(t, err)

	cfg = testConfig(t.TempDir())
	cfg.Ingest.ChunkOverlap = cfg.Ingest.ChunkSize
	_, err = NewBuilder(context.Background(), cfg, nil, WithModels(&Models{}), WithParser(fakeParser{}))
	assert.Error(t, err)
}

func TestNewModels(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Model = config.ModelConfig{Provider: "ollama", AnswerModel: "qwen3:4b", VisionModel: "qwen2.5vl:3b", EmbeddingModel: "qwen3-embedding:4b", RequestsPerMinute: 120}
	m, err := NewModels(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "qwen3:4b", m.Answer.Model())
	assert.Equal(t, "qwen3-embedding:4b", m.Embedder.Model())
	assert.Equal(t, "qwen2.5vl:3b", m.Vision.Name())

	cfg.Ingest.DescribeImages = false
	m, err = NewModels(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "stub", m.Vision.Name())

	cfg.Model.Provider = "bedrock"
	_, err = NewModels(context.Background(), cfg, nil, nil)
	assert.Error(t, err)
}
