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
	"encoding/base64"
	"fmt"

	"mini-rag/internal/document"
	"mini-rag/internal/model/vision"
	"mini-rag/internal/pipeline"
)

// ImageReplaceStep 把 pdf 中的每张图片交给视觉模型描述，并就地替换为文本
type ImageReplaceStep struct {
	vision vision.Client
	prompt string
}

// NewImageReplaceStep prompt 为发给视觉模型的指令
func NewImageReplaceStep(client vision.Client, prompt string) *ImageReplaceStep {
	return &ImageReplaceStep{vision: client, prompt: prompt}
}

func (s *ImageReplaceStep) Label() string { return "Replacing images on pdf with text" }

func (s *ImageReplaceStep) Execute(ctx context.Context, pc *pipeline.Context) error {
	doc, err := pipeline.Get[*document.Document](pc, pipeline.KeyPDF)
	if err != nil {
		return err
	}
	pictures := doc.Pictures()
	for _, i := range pictures {
		img := doc.Items[i].Image
		if img == nil || len(img.Data) == 0 {
			if err := doc.ReplaceWithText(i, ""); err != nil {
				return err
			}
			continue
		}
		text, err := s.vision.Describe(ctx, base64.StdEncoding.EncodeToString(img.Data), s.prompt)
		if err != nil {
			return fmt.Errorf("描述第 %d 页图片失败: %w", doc.Items[i].Page, err)
		}
		if err := doc.ReplaceWithText(i, text); err != nil {
			return err
		}
	}
	if rec, ok := pc.Record(); ok {
		_ = rec.Set("images_replaced", len(pictures))
	}
	return nil
}
