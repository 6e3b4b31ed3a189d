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

package pipeline

import (
	"fmt"
	"reflect"
	"sort"

	"mini-rag/internal/runlog"
)

// 约定的 Context 键
const (
	KeyLogRecord = "log_record"
	KeyFilePath  = "file_path"
	KeyPDF       = "pdf"
	KeyMarkdown  = "markdown"
	KeyDocuments = "documents"
	KeyQuestion  = "question"
	KeyEmbedding = "embedding"
	KeyOutput    = "output"
)

// Context 一次执行内所有 step 共享的键值表，只属于一个 Pipeline
type Context struct {
	values map[string]any
}

// NewContext 以 seed 为初始内容创建 Context（浅拷贝）
func NewContext(seed map[string]any) *Context {
	c := &Context{values: make(map[string]any, len(seed)+1)}
	for k, v := range seed {
		c.values[k] = v
	}
	return c
}

// Set 写入键值
func (c *Context) Set(key string, value any) {
	c.values[key] = value
}

// Lookup 读取原始值
func (c *Context) Lookup(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Delete 删除键
func (c *Context) Delete(key string) {
	delete(c.values, key)
}

// Keys 返回排序后的键
func (c *Context) Keys() []string {
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Record 返回当前运行记录；键缺失或被替换为其它类型时返回 false
func (c *Context) Record() (*runlog.Record, bool) {
	rec, err := Get[*runlog.Record](c, KeyLogRecord)
	return rec, err == nil && rec != nil
}

// Get 按类型读取键；缺失或类型不符时返回 *KeyError
func Get[T any](c *Context, key string) (T, error) {
	var zero T
	v, ok := c.values[key]
	if !ok {
		return zero, &KeyError{Key: key, Reason: ReasonMissing, Want: typeName[T]()}
	}
	t, ok := v.(T)
	if !ok {
		return zero, &KeyError{Key: key, Reason: ReasonWrongType, Want: typeName[T](), Got: fmt.Sprintf("%T", v)}
	}
	return t, nil
}

// GetOr 键缺失时返回 def；类型不符仍返回错误
func GetOr[T any](c *Context, key string, def T) (T, error) {
	if _, ok := c.values[key]; !ok {
		return def, nil
	}
	return Get[T](c, key)
}

func typeName[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}
