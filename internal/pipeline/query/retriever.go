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

// Package query 问答 pipeline 的 step：问题向量化、向量检索、TF-IDF 兜底检索、记录检索结果、生成回答
package query

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"mini-rag/internal/model/embedding"
	"mini-rag/internal/pipeline"
	"mini-rag/internal/storage/vector"
)

// DefaultTopK 问答检索的文档数
const DefaultTopK = 3

// QuestionEmbeddingStep 将 question 向量化，写入 embedding
type QuestionEmbeddingStep struct {
	embedder embedding.Embedder
}

func NewQuestionEmbeddingStep(embedder embedding.Embedder) *QuestionEmbeddingStep {
	return &QuestionEmbeddingStep{embedder: embedder}
}

func (s *QuestionEmbeddingStep) Label() string { return "Embedding generation" }

func (s *QuestionEmbeddingStep) Execute(ctx context.Context, pc *pipeline.Context) error {
	question, err := pipeline.Get[string](pc, pipeline.KeyQuestion)
	if err != nil {
		return err
	}
	vec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return fmt.Errorf("问题向量化失败: %w", err)
	}
	pc.Set(pipeline.KeyEmbedding, vec)
	return nil
}

// VectorRetrieveStep 按 embedding 检索向量库，写入 documents
type VectorRetrieveStep struct {
	store vector.Store
	topK  int
}

// NewVectorRetrieveStep topK <= 0 时为 DefaultTopK
func NewVectorRetrieveStep(store vector.Store, topK int) *VectorRetrieveStep {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &VectorRetrieveStep{store: store, topK: topK}
}

func (s *VectorRetrieveStep) Label() string { return "Document Retrieval" }

func (s *VectorRetrieveStep) Execute(ctx context.Context, pc *pipeline.Context) error {
	vec, err := pipeline.Get[[]float64](pc, pipeline.KeyEmbedding)
	if err != nil {
		return err
	}
	docs, err := s.store.Query(ctx, vec, s.topK)
	if err != nil {
		return fmt.Errorf("向量检索失败: %w", err)
	}
	if docs == nil {
		docs = []*schema.Document{}
	}
	pc.Set(pipeline.KeyDocuments, docs)
	return nil
}
