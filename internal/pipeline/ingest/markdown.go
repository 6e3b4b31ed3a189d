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

	"mini-rag/internal/document"
	"mini-rag/internal/pipeline"
)

// MarkdownConvertStep 将 pdf 导出为 Markdown，写入 markdown。剩余图片直接省略
type MarkdownConvertStep struct{}

func NewMarkdownConvertStep() *MarkdownConvertStep { return &MarkdownConvertStep{} }

func (s *MarkdownConvertStep) Label() string { return "Convert pdf to markdown" }

func (s *MarkdownConvertStep) Execute(ctx context.Context, pc *pipeline.Context) error {
	doc, err := pipeline.Get[*document.Document](pc, pipeline.KeyPDF)
	if err != nil {
		return err
	}
	pc.Set(pipeline.KeyMarkdown, doc.Markdown(""))
	return nil
}
