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

package object

import (
	"context"
	"io"
	"time"
)

// Store 对象存储接口；Get 不存在的对象返回 errors.ErrNotFound
type Store interface {
	// Put 上传对象，已存在则覆盖
	Put(ctx context.Context, key string, data io.Reader, size int64) error
	// Get 下载对象
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete 删除对象，不存在不报错
	Delete(ctx context.Context, key string) error
	// List 列出 prefix 下的对象，按 key 排序
	List(ctx context.Context, prefix string) ([]*ObjectInfo, error)
	// Exists 检查对象是否存在
	Exists(ctx context.Context, key string) (bool, error)
	// Close 关闭存储连接
	Close() error
}

// ObjectInfo 对象信息
type ObjectInfo struct {
	Key     string    `json:"key"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}
