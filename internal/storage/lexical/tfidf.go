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

package lexical

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// DefaultK 每次查询返回的文档数
const DefaultK = 3

// tokenPattern 两个及以上的词字符
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// Searcher 词法检索接口
type Searcher interface {
	Query(text string) []*schema.Document
}

// Index TF-IDF 检索器：平滑 idf = ln((1+n)/(1+df)) + 1，向量 L2 归一化，按余弦相似度排序。
// Index 构建后只读，可并发查询。
type Index struct {
	k      int
	docs   []*schema.Document
	vocab  map[string]int
	idf    []float64
	matrix []map[int]float64
}

// Build 基于 docs 构建索引；k <= 0 时使用 DefaultK
func Build(docs []*schema.Document, k int) *Index {
	if k <= 0 {
		k = DefaultK
	}
	idx := &Index{k: k, docs: docs, vocab: map[string]int{}}

	counts := make([]map[int]int, len(docs))
	var df []int
	for i, d := range docs {
		counts[i] = map[int]int{}
		for _, tok := range tokenize(d.Content) {
			id, ok := idx.vocab[tok]
			if !ok {
				id = len(idx.vocab)
				idx.vocab[tok] = id
				df = append(df, 0)
			}
			if counts[i][id] == 0 {
				df[id]++
			}
			counts[i][id]++
		}
	}

	n := float64(len(docs))
	idx.idf = make([]float64, len(df))
	for id, f := range df {
		idx.idf[id] = math.Log((1+n)/(1+float64(f))) + 1
	}

	idx.matrix = make([]map[int]float64, len(docs))
	for i, c := range counts {
		idx.matrix[i] = idx.weigh(c)
	}
	return idx
}

func tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// weigh tf * idf 后 L2 归一化；词表外的词忽略
func (idx *Index) weigh(counts map[int]int) map[int]float64 {
	vec := make(map[int]float64, len(counts))
	var norm float64
	for id, c := range counts {
		w := float64(c) * idx.idf[id]
		vec[id] = w
		norm += w * w
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for id := range vec {
		vec[id] /= norm
	}
	return vec
}

// Query 返回与 text 最相似的至多 k 个文档；相似度为 0 的不返回
func (idx *Index) Query(text string) []*schema.Document {
	counts := map[int]int{}
	for _, tok := range tokenize(text) {
		if id, ok := idx.vocab[tok]; ok {
			counts[id]++
		}
	}
	if len(counts) == 0 {
		return nil
	}
	q := idx.weigh(counts)

	type scored struct {
		i   int
		sim float64
	}
	var hits []scored
	for i, row := range idx.matrix {
		var sim float64
		for id, w := range q {
			sim += w * row[id]
		}
		if sim > 0 {
			hits = append(hits, scored{i: i, sim: sim})
		}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].sim > hits[b].sim })
	if len(hits) > idx.k {
		hits = hits[:idx.k]
	}
	out := make([]*schema.Document, len(hits))
	for j, h := range hits {
		out[j] = idx.docs[h.i]
	}
	return out
}

// Docs 索引中的全部文档
func (idx *Index) Docs() []*schema.Document {
	return idx.docs
}

// K 查询返回上限
func (idx *Index) K() int {
	return idx.k
}

// Merge 旧文档在前、新文档在后；新文档覆盖同 ID 的旧文档
func Merge(old, added []*schema.Document) []*schema.Document {
	replaced := make(map[string]bool, len(added))
	for _, d := range added {
		replaced[d.ID] = true
	}
	out := make([]*schema.Document, 0, len(old)+len(added))
	for _, d := range old {
		if !replaced[d.ID] {
			out = append(out, d)
		}
	}
	return append(out, added...)
}
