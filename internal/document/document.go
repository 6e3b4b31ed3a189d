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

// Package document 解析后的 PDF 文档模型：按阅读顺序排列的标题、段落与图片
package document

import (
	"context"
	"fmt"
	"strings"
)

// ItemKind 文档元素类型
type ItemKind int

const (
	ItemText ItemKind = iota
	ItemHeading
	ItemPicture
)

func (k ItemKind) String() string {
	switch k {
	case ItemText:
		return "text"
	case ItemHeading:
		return "heading"
	case ItemPicture:
		return "picture"
	}
	return "unknown"
}

// Image 图片原始数据
type Image struct {
	MIME string
	Data []byte
}

// Item 文档元素
type Item struct {
	Kind  ItemKind
	Text  string
	Level int // 标题层级，从 1 开始
	Page  int
	Image *Image
}

// Document 解析结果
type Document struct {
	Source string
	Pages  int
	Items  []Item
}

// Parser 将文件解析为 Document
type Parser interface {
	Parse(ctx context.Context, path string) (*Document, error)
}

// Pictures 返回图片元素的下标
func (d *Document) Pictures() []int {
	var idx []int
	for i, it := range d.Items {
		if it.Kind == ItemPicture {
			idx = append(idx, i)
		}
	}
	return idx
}

// ReplaceWithText 将下标 i 处的元素替换为文本，页码保持不变
func (d *Document) ReplaceWithText(i int, text string) error {
	if i < 0 || i >= len(d.Items) {
		return fmt.Errorf("item index %d out of range [0,%d)", i, len(d.Items))
	}
	d.Items[i] = Item{Kind: ItemText, Text: text, Page: d.Items[i].Page}
	return nil
}

// Markdown 导出 Markdown；ImagePlaceholder 为图片的替代文本，空串表示直接省略
func (d *Document) Markdown(imagePlaceholder string) string {
	var blocks []string
	for _, it := range d.Items {
		switch it.Kind {
		case ItemHeading:
			level := it.Level
			if level < 1 {
				level = 1
			}
			if level > 6 {
				level = 6
			}
			blocks = append(blocks, strings.Repeat("#", level)+" "+strings.TrimSpace(it.Text))
		case ItemText:
			if t := strings.TrimSpace(it.Text); t != "" {
				blocks = append(blocks, t)
			}
		case ItemPicture:
			if imagePlaceholder != "" {
				blocks = append(blocks, imagePlaceholder)
			}
		}
	}
	if len(blocks) == 0 {
		return ""
	}
	return strings.Join(blocks, "\n\n") + "\n"
}
