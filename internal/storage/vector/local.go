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
	"bufio"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/cloudwego/eino/schema"
)

// LocalStore 本地文件向量存储：collection 为 <dir>/<name>.jsonl，每行一个 chunk，追加写入；
// 首次访问时整体加载到内存，同一 ID 以最后一行为准。检索为全量余弦距离扫描。
type LocalStore struct {
	dir       string
	name      string
	threshold float64

	mu        sync.RWMutex
	loaded    bool
	order     []string
	chunks    map[string]*storedChunk
	dimension int
}

type storedChunk struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	FilePath  string    `json:"file_path"`
	Headers   string    `json:"headers"`
	Embedding []float64 `json:"embedding"`
}

// NewLocalStore 创建本地存储；threshold 为最大余弦距离
func NewLocalStore(dir, collection string, threshold float64) (*LocalStore, error) {
	if dir == "" || collection == "" {
		return nil, fmt.Errorf("local vector store: dir 与 collection 不能为空")
	}
	return &LocalStore{dir: dir, name: collection, threshold: threshold, chunks: map[string]*storedChunk{}}, nil
}

func (s *LocalStore) path() string {
	return filepath.Join(s.dir, s.name+".jsonl")
}

// load 调用方持有写锁
func (s *LocalStore) load() error {
	if s.loaded {
		return nil
	}
	f, err := os.Open(s.path())
	if stderrors.Is(err, fs.ErrNotExist) {
		s.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("打开向量集合失败: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 1<<20), 64<<20)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var c storedChunk
		if err := json.Unmarshal(sc.Bytes(), &c); err != nil {
			return fmt.Errorf("解析向量集合第 %d 行失败: %w", line, err)
		}
		s.put(&c)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("读取向量集合失败: %w", err)
	}
	s.loaded = true
	return nil
}

func (s *LocalStore) put(c *storedChunk) {
	if _, ok := s.chunks[c.ID]; !ok {
		s.order = append(s.order, c.ID)
	}
	s.chunks[c.ID] = c
	if s.dimension == 0 {
		s.dimension = len(c.Embedding)
	}
}

// SaveAll 写入 chunk
func (s *LocalStore) SaveAll(ctx context.Context, docs []*schema.Document) error {
	if len(docs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return err
	}

	batch := make([]*storedChunk, 0, len(docs))
	dim := s.dimension
	for _, d := range docs {
		vec := d.DenseVector()
		if len(vec) == 0 {
			return fmt.Errorf("chunk %s 缺少向量", d.ID)
		}
		if dim == 0 {
			dim = len(vec)
		}
		if len(vec) != dim {
			return fmt.Errorf("chunk %s 向量维度 %d 与集合维度 %d 不一致", d.ID, len(vec), dim)
		}
		batch = append(batch, &storedChunk{
			ID:        d.ID,
			Content:   d.Content,
			FilePath:  StringMeta(d, MetaFilePath),
			Headers:   StringMeta(d, MetaHeaders),
			Embedding: vec,
		})
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("创建向量目录失败: %w", err)
	}
	f, err := os.OpenFile(s.path(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("打开向量集合失败: %w", err)
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, c := range batch {
		if err := enc.Encode(c); err != nil {
			f.Close()
			return fmt.Errorf("写入 chunk %s 失败: %w", c.ID, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("写入向量集合失败: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	for _, c := range batch {
		s.put(c)
	}
	return nil
}

// Query 余弦距离最近的 topK，再丢弃距离超过阈值的结果
func (s *LocalStore) Query(ctx context.Context, embedding []float64, topK int) ([]*schema.Document, error) {
	if topK <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	err := s.load()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.chunks) > 0 && len(embedding) != s.dimension {
		return nil, fmt.Errorf("查询向量维度 %d 与集合维度 %d 不一致", len(embedding), s.dimension)
	}

	type scored struct {
		c    *storedChunk
		dist float64
	}
	all := make([]scored, 0, len(s.chunks))
	for _, id := range s.order {
		c := s.chunks[id]
		d, err := CosineDistance(embedding, c.Embedding)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", id, err)
		}
		all = append(all, scored{c: c, dist: d})
	}
	// NaN 排在最后，不挤占 topK
	sort.SliceStable(all, func(i, j int) bool {
		if math.IsNaN(all[j].dist) {
			return !math.IsNaN(all[i].dist)
		}
		return all[i].dist < all[j].dist
	})
	if len(all) > topK {
		all = all[:topK]
	}

	var out []*schema.Document
	for _, sc := range all {
		if !withinThreshold(sc.dist, s.threshold) {
			continue
		}
		out = append(out, newHit(sc.c.ID, sc.c.Content, sc.c.FilePath, sc.c.Headers, sc.dist))
	}
	return out, nil
}

// ListDocuments 去重排序后的源文件
func (s *LocalStore) ListDocuments(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var files []string
	for _, c := range s.chunks {
		if c.FilePath != "" && !seen[c.FilePath] {
			seen[c.FilePath] = true
			files = append(files, c.FilePath)
		}
	}
	sort.Strings(files)
	return files, nil
}

// Close 无需释放资源
func (s *LocalStore) Close() error {
	return nil
}
