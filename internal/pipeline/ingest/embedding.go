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

package ingest

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"
	"golang.org/x/sync/errgroup"

	"mini-rag/internal/model/embedding"
	"mini-rag/internal/pipeline"
)

// GenerateEmbeddingsStep 为 documents 中每个 chunk 生成稠密向量
type GenerateEmbeddingsStep struct {
	embedder    embedding.Embedder
	concurrency int
}

// NewGenerateEmbeddingsStep concurrency <= 0 时为 4
func NewGenerateEmbeddingsStep(embedder embedding.Embedder, concurrency int) *GenerateEmbeddingsStep {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &GenerateEmbeddingsStep{embedder: embedder, concurrency: concurrency}
}

func (s *GenerateEmbeddingsStep) Label() string { return "Embedding generation" }

// Execute 任一 chunk 失败则整步失败，已生成的向量不回滚
func (s *GenerateEmbeddingsStep) Execute(ctx context.Context, pc *pipeline.Context) error {
	docs, err := pipeline.Get[[]*schema.Document](pc, pipeline.KeyDocuments)
	if err != nil {
		return err
	}
	vecs := make([][]float64, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, d := range docs {
		g.Go(func() error {
			vec, err := s.embedder.Embed(gctx, d.Content)
			if err != nil {
				return fmt.Errorf("vectorize chunk %d failed: %w", i, err)
			}
			vecs[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, d := range docs {
		d.WithDenseVector(vecs[i])
	}
	if rec, ok := pc.Record(); ok {
		_ = rec.Set("embedding_model", s.embedder.Model())
	}
	return nil
}
