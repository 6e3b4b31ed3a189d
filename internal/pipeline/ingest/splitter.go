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
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"mini-rag/internal/pipeline"
	"mini-rag/internal/splitter"
	"mini-rag/internal/storage/vector"
)

// 标题元数据名，headers 由这两级拼接
const (
	header1 = "Header 1"
	header2 = "Header 2"
)

// MarkdownChunkStep 先按标题分节再按长度切分，写入 documents（[]*schema.Document）
type MarkdownChunkStep struct {
	headers *splitter.HeaderSplitter
	chars   *splitter.RecursiveSplitter
	newID   func() string
}

// NewMarkdownChunkStep 标题行不进入 chunk 内容
func NewMarkdownChunkStep(rules []splitter.HeaderRule, chunkSize, chunkOverlap int) (*MarkdownChunkStep, error) {
	chars, err := splitter.NewRecursiveSplitter(chunkSize, chunkOverlap)
	if err != nil {
		return nil, err
	}
	return &MarkdownChunkStep{
		headers: splitter.NewHeaderSplitter(rules, true),
		chars:   chars,
		newID:   uuid.NewString,
	}, nil
}

func (s *MarkdownChunkStep) Label() string { return "Splitting Markdown into chunks" }

func (s *MarkdownChunkStep) Execute(ctx context.Context, pc *pipeline.Context) error {
	markdown, err := pipeline.Get[string](pc, pipeline.KeyMarkdown)
	if err != nil {
		return err
	}
	filePath, err := pipeline.Get[string](pc, pipeline.KeyFilePath)
	if err != nil {
		return err
	}

	var chunks []*schema.Document
	for _, section := range s.headers.Split(markdown) {
		headers := joinHeaders(section.Metadata[header1], section.Metadata[header2])
		for _, text := range s.chars.Split(section.Content) {
			chunks = append(chunks, &schema.Document{
				ID:      s.newID(),
				Content: text,
				MetaData: map[string]any{
					vector.MetaFilePath: filePath,
					vector.MetaHeaders:  headers,
				},
			})
		}
	}
	pc.Set(pipeline.KeyDocuments, chunks)
	if rec, ok := pc.Record(); ok {
		_ = rec.Set("chunk_count", len(chunks))
	}
	return nil
}

func joinHeaders(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
