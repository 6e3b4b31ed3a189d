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

package document

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"
	"sync"

	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"

	"mini-rag/pkg/log"
)

var licenseOnce sync.Once

// PDFParser 基于 unipdf 的 PDF 解析器：逐页提取文本并推断标题，可选提取内嵌图片
type PDFParser struct {
	extractImages bool
	logger        *log.Logger
}

// NewPDFParser 创建解析器；licenseKey 非空时注册 unipdf metered key（进程内仅一次）
func NewPDFParser(licenseKey string, extractImages bool, logger *log.Logger) (*PDFParser, error) {
	if logger == nil {
		logger = log.Discard()
	}
	var licErr error
	if licenseKey != "" {
		licenseOnce.Do(func() {
			licErr = license.SetMeteredKey(licenseKey)
		})
	}
	if licErr != nil {
		return nil, fmt.Errorf("设置 unipdf license 失败: %w", licErr)
	}
	return &PDFParser{extractImages: extractImages, logger: logger}, nil
}

// Parse 读取并解析 PDF 文件
func (p *PDFParser) Parse(ctx context.Context, path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取 PDF 失败: %w", err)
	}
	doc, err := p.ParseBytes(ctx, data)
	if err != nil {
		return nil, err
	}
	doc.Source = path
	return doc, nil
}

// ParseBytes 解析 PDF 二进制数据
func (p *PDFParser) ParseBytes(ctx context.Context, data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("PDF 内容为空")
	}
	reader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("打开 PDF 失败: %w", err)
	}
	numPages, err := reader.GetNumPages()
	if err != nil {
		return nil, fmt.Errorf("获取页数失败: %w", err)
	}

	doc := &Document{Pages: numPages}
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := reader.GetPage(i)
		if err != nil {
			return nil, fmt.Errorf("获取第 %d 页失败: %w", i, err)
		}
		ex, err := extractor.New(page)
		if err != nil {
			return nil, fmt.Errorf("创建第 %d 页提取器失败: %w", i, err)
		}
		text, err := ex.ExtractText()
		if err != nil {
			return nil, fmt.Errorf("提取第 %d 页文本失败: %w", i, err)
		}
		doc.Items = append(doc.Items, pageItems(text, i)...)

		if p.extractImages {
			doc.Items = append(doc.Items, p.pageImages(ctx, ex, i)...)
		}
	}
	return doc, nil
}

// pageImages 提取页内图片并编码为 PNG；单张图片失败只记日志
func (p *PDFParser) pageImages(ctx context.Context, ex *extractor.Extractor, page int) []Item {
	images, err := ex.ExtractPageImages(nil)
	if err != nil {
		p.logger.WarnContext(ctx, "提取页面图片失败", "page", page, "error", err)
		return nil
	}
	var items []Item
	for idx, mark := range images.Images {
		if mark.Image == nil {
			continue
		}
		img, err := mark.Image.ToGoImage()
		if err != nil {
			p.logger.WarnContext(ctx, "图片解码失败", "page", page, "index", idx, "error", err)
			continue
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			p.logger.WarnContext(ctx, "图片编码失败", "page", page, "index", idx, "error", err)
			continue
		}
		items = append(items, Item{Kind: ItemPicture, Page: page, Image: &Image{MIME: "image/png", Data: buf.Bytes()}})
	}
	return items
}
