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

	"mini-rag/internal/pipeline"
	"mini-rag/internal/storage/lexical"
	"mini-rag/internal/storage/vector"
)

// PersistChangesStep 将 documents 写入向量库
type PersistChangesStep struct {
	store vector.Store
}

func NewPersistChangesStep(store vector.Store) *PersistChangesStep {
	return &PersistChangesStep{store: store}
}

func (s *PersistChangesStep) Label() string { return "Persisting changes to vector db" }

func (s *PersistChangesStep) Execute(ctx context.Context, pc *pipeline.Context) error {
	docs, err := pipeline.Get[[]*schema.Document](pc, pipeline.KeyDocuments)
	if err != nil {
		return err
	}
	if err := s.store.SaveAll(ctx, docs); err != nil {
		return fmt.Errorf("写入向量库失败: %w", err)
	}
	return nil
}

// IndexUpdater 将新 chunk 合并进已持久化的词法索引
type IndexUpdater interface {
	Update(ctx context.Context, added []*schema.Document) (*lexical.Index, error)
}

// UpdateLexicalIndexStep 加载旧索引（若存在），与 documents 合并后重建并保存
type UpdateLexicalIndexStep struct {
	repo IndexUpdater
}

func NewUpdateLexicalIndexStep(repo IndexUpdater) *UpdateLexicalIndexStep {
	return &UpdateLexicalIndexStep{repo: repo}
}

func (s *UpdateLexicalIndexStep) Label() string { return "update tf idf retriever model" }

func (s *UpdateLexicalIndexStep) Execute(ctx context.Context, pc *pipeline.Context) error {
	docs, err := pipeline.Get[[]*schema.Document](pc, pipeline.KeyDocuments)
	if err != nil {
		return err
	}
	idx, err := s.repo.Update(ctx, docs)
	if err != nil {
		return fmt.Errorf("更新 TF-IDF 检索器失败: %w", err)
	}
	if rec, ok := pc.Record(); ok {
		_ = rec.Set("lexical_docs", len(idx.Docs()))
	}
	return nil
}
