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

package vector

import (
	"context"
	"fmt"
	"math"

	"github.com/cloudwego/eino/schema"
)

// chunk 元数据键
const (
	MetaFilePath = "file_path"
	MetaHeaders  = "headers"
)

// Store 向量存储接口。chunk 为 *schema.Document：ID、Content、MetaData[file_path|headers]、DenseVector。
// Query 只返回余弦距离不超过阈值的结果，Score() 为 1 - distance。
type Store interface {
	// SaveAll 写入 chunk，ID 相同则覆盖
	SaveAll(ctx context.Context, docs []*schema.Document) error
	// Query 返回最相近的 topK 个 chunk（再按阈值过滤）
	Query(ctx context.Context, embedding []float64, topK int) ([]*schema.Document, error)
	// ListDocuments 返回去重排序后的源文件路径
	ListDocuments(ctx context.Context) ([]string, error)
	// Close 关闭存储连接
	Close() error
}

// StringMeta 读取字符串元数据，缺失或类型不符返回空串
func StringMeta(doc *schema.Document, key string) string {
	if doc == nil || doc.MetaData == nil {
		return ""
	}
	s, _ := doc.MetaData[key].(string)
	return s
}

// HasScore 是否带有检索得分
func HasScore(doc *schema.Document) bool {
	if doc == nil || doc.MetaData == nil {
		return false
	}
	_, ok := doc.MetaData["_score"]
	return ok
}

// CosineDistance 1 - cos(a, b)；零向量视为最远
func CosineDistance(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimension %d does not match %d", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 1, nil
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb)), nil
}

// withinThreshold 距离不超过阈值才保留；NaN 距离一律丢弃
func withinThreshold(dist, threshold float64) bool {
	return dist <= threshold
}

// newHit 构造检索结果，不携带向量
func newHit(id, content, filePath, headers string, distance float64) *schema.Document {
	doc := &schema.Document{
		ID:      id,
		Content: content,
		MetaData: map[string]any{
			MetaFilePath: filePath,
			MetaHeaders:  headers,
		},
	}
	return doc.WithScore(1 - distance)
}
