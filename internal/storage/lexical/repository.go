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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"

	"mini-rag/internal/storage/object"
	"mini-rag/internal/storage/vector"
	"mini-rag/pkg/errors"
)

// snapshotVersion 持久化格式版本
const snapshotVersion = 1

// snapshot 持久化格式：只保存文档，加载时重建索引
type snapshot struct {
	Version   int           `json:"version"`
	K         int           `json:"k"`
	UpdatedAt time.Time     `json:"updated_at"`
	Docs      []snapshotDoc `json:"docs"`
}

type snapshotDoc struct {
	ID       string `json:"id"`
	Content  string `json:"content"`
	FilePath string `json:"file_path"`
	Headers  string `json:"headers"`
}

// Repository 将 TF-IDF 检索器保存在对象存储的一个 key 下
type Repository struct {
	store object.Store
	key   string
	k     int
	now   func() time.Time
}

// NewRepository 创建仓库；k 为查询返回上限
func NewRepository(store object.Store, key string, k int) *Repository {
	if key == "" {
		key = "tfidf_retriever.json"
	}
	return &Repository{store: store, key: key, k: k, now: time.Now}
}

// Load 读取并重建索引；不存在时返回 (nil, false, nil)
func (r *Repository) Load(ctx context.Context) (*Index, bool, error) {
	rc, err := r.store.Get(ctx, r.key)
	if errors.IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "读取检索器失败")
	}
	defer rc.Close()

	var snap snapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return nil, false, errors.Wrap(err, "解析检索器失败")
	}
	if snap.Version != snapshotVersion {
		return nil, false, fmt.Errorf("检索器版本 %d 不受支持", snap.Version)
	}
	docs := make([]*schema.Document, len(snap.Docs))
	for i, d := range snap.Docs {
		docs[i] = &schema.Document{
			ID:       d.ID,
			Content:  d.Content,
			MetaData: map[string]any{vector.MetaFilePath: d.FilePath, vector.MetaHeaders: d.Headers},
		}
	}
	k := r.k
	if k <= 0 {
		k = snap.K
	}
	return Build(docs, k), true, nil
}

// Open 同 Load，返回 Searcher 接口
func (r *Repository) Open(ctx context.Context) (Searcher, bool, error) {
	idx, ok, err := r.Load(ctx)
	if err != nil || !ok {
		return nil, ok, err
	}
	return idx, true, nil
}

// Save 覆盖写入
func (r *Repository) Save(ctx context.Context, idx *Index) error {
	snap := snapshot{Version: snapshotVersion, K: idx.K(), UpdatedAt: r.now().UTC()}
	for _, d := range idx.Docs() {
		snap.Docs = append(snap.Docs, snapshotDoc{
			ID:       d.ID,
			Content:  d.Content,
			FilePath: vector.StringMeta(d, vector.MetaFilePath),
			Headers:  vector.StringMeta(d, vector.MetaHeaders),
		})
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "序列化检索器失败")
	}
	if err := r.store.Put(ctx, r.key, bytes.NewReader(data), int64(len(data))); err != nil {
		return errors.Wrap(err, "保存检索器失败")
	}
	return nil
}

// Update 加载旧文档并与 added 合并后重建、保存
func (r *Repository) Update(ctx context.Context, added []*schema.Document) (*Index, error) {
	old, _, err := r.Load(ctx)
	if err != nil {
		return nil, err
	}
	var docs []*schema.Document
	if old != nil {
		docs = old.Docs()
	}
	idx := Build(Merge(docs, added), r.k)
	if err := r.Save(ctx, idx); err != nil {
		return nil, err
	}
	return idx, nil
}
