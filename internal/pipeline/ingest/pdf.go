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

// Package ingest 入库 pipeline 的 step：解析 PDF、图片转文字、转 Markdown、切片、向量化、写入向量库、更新 TF-IDF 检索器
package ingest

import (
	"context"
	"fmt"
	"path/filepath"

	"mini-rag/internal/document"
	"mini-rag/internal/pipeline"
)

// PDFParseStep 解析 file_path 指向的 PDF，写入 pdf
type PDFParseStep struct {
	parser document.Parser
}

// NewPDFParseStep 创建 PDF 解析 step
func NewPDFParseStep(parser document.Parser) *PDFParseStep {
	return &PDFParseStep{parser: parser}
}

func (s *PDFParseStep) Label() string { return "Parsing Pdf file" }

// Execute 相对路径按当前工作目录解析
func (s *PDFParseStep) Execute(ctx context.Context, pc *pipeline.Context) error {
	path, err := pipeline.Get[string](pc, pipeline.KeyFilePath)
	if err != nil {
		return err
	}
	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("解析文件路径失败: %w", err)
		}
		path = abs
	}
	doc, err := s.parser.Parse(ctx, path)
	if err != nil {
		return fmt.Errorf("解析 PDF %s 失败: %w", path, err)
	}
	pc.Set(pipeline.KeyPDF, doc)
	if rec, ok := pc.Record(); ok {
		_ = rec.Set("pages", doc.Pages)
	}
	return nil
}
