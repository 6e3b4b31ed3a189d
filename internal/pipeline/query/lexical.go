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

package query

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"mini-rag/internal/pipeline"
	"mini-rag/internal/storage/lexical"
)

// SearcherOpener 打开持久化的词法检索器；不存在时 found 为 false
type SearcherOpener interface {
	Open(ctx context.Context) (s lexical.Searcher, found bool, err error)
}

// LexicalRetrieveStep 向量检索不足 topK 时用 TF-IDF 补齐，跳过已有的 chunk id
type LexicalRetrieveStep struct {
	opener SearcherOpener
	topK   int
}

// NewLexicalRetrieveStep topK <= 0 时为 DefaultTopK
func NewLexicalRetrieveStep(opener SearcherOpener, topK int) *LexicalRetrieveStep {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &LexicalRetrieveStep{opener: opener, topK: topK}
}

func (s *LexicalRetrieveStep) Label() string { return "Document Retrieval" }

// Execute 检索器未建立时直接返回
func (s *LexicalRetrieveStep) Execute(ctx context.Context, pc *pipeline.Context) error {
	docs, err := pipeline.GetOr(pc, pipeline.KeyDocuments, []*schema.Document{})
	if err != nil {
		return err
	}
	if len(docs) >= s.topK {
		return nil
	}
	question, err := pipeline.Get[string](pc, pipeline.KeyQuestion)
	if err != nil {
		return err
	}
	searcher, found, err := s.opener.Open(ctx)
	if err != nil {
		return fmt.Errorf("加载 TF-IDF 检索器失败: %w", err)
	}
	if !found {
		return nil
	}

	seen := make(map[string]bool, len(docs))
	for _, d := range docs {
		seen[d.ID] = true
	}
	added := 0
	for _, hit := range searcher.Query(question) {
		if len(docs) >= s.topK {
			break
		}
		if seen[hit.ID] {
			continue
		}
		seen[hit.ID] = true
		docs = append(docs, hit)
		added++
	}
	pc.Set(pipeline.KeyDocuments, docs)
	if rec, ok := pc.Record(); ok {
		_ = rec.Set("lexical_hits", added)
	}
	return nil
}
