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

// Package catalog 列出已入库文档的 step
package catalog

import (
	"context"
	"fmt"
	"strings"

	"mini-rag/internal/pipeline"
)

// DocumentLister 列出向量库中的源文件
type DocumentLister interface {
	ListDocuments(ctx context.Context) ([]string, error)
}

// ListDocumentsStep 写入 documents（[]string，去重排序）
type ListDocumentsStep struct {
	store DocumentLister
}

func NewListDocumentsStep(store DocumentLister) *ListDocumentsStep {
	return &ListDocumentsStep{store: store}
}

func (s *ListDocumentsStep) Label() string { return "Searching vector store for documents" }

func (s *ListDocumentsStep) Execute(ctx context.Context, pc *pipeline.Context) error {
	files, err := s.store.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("查询文档列表失败: %w", err)
	}
	if files == nil {
		files = []string{}
	}
	pc.Set(pipeline.KeyDocuments, files)
	return nil
}

// DisplayOutputStep 将 documents 渲染为 Markdown 表格写入 output
type DisplayOutputStep struct{}

func NewDisplayOutputStep() *DisplayOutputStep { return &DisplayOutputStep{} }

func (s *DisplayOutputStep) Label() string { return "Create output" }

func (s *DisplayOutputStep) Execute(ctx context.Context, pc *pipeline.Context) error {
	files, err := pipeline.GetOr(pc, pipeline.KeyDocuments, []string{})
	if err != nil {
		return err
	}
	pc.Set(pipeline.KeyOutput, RenderTable(files))
	return nil
}

// RenderTable 文档列表的 Markdown 表格，序号从 1 开始
func RenderTable(files []string) string {
	lines := []string{"", "# Documents", "| idx | Document |", "|-----------|---------|"}
	for i, f := range files {
		lines = append(lines, fmt.Sprintf("| %d | %s |", i+1, f))
	}
	lines = append(lines, "----", "")
	return strings.Join(lines, "\n")
}
