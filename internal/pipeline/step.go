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
	"context"
	"fmt"
	"reflect"
)

// Step pipeline 中的一个处理单元；输出全部通过修改 Context 或外部 I/O 完成。
// 返回 error 即视为致命失败，pipeline 停止后续 step。
type Step interface {
	Label() string
	Execute(ctx context.Context, pc *Context) error
}

// Kinder 可选接口，自定义 step kind；默认取 Go 类型名
type Kinder interface {
	Kind() string
}

// KindOf 返回 step kind
func KindOf(s Step) string {
	if k, ok := s.(Kinder); ok {
		return k.Kind()
	}
	t := reflect.TypeOf(s)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

// StepID "<idx>-<label>(<kind>)"
func StepID(idx int, s Step) string {
	return fmt.Sprintf("%d-%s(%s)", idx, s.Label(), KindOf(s))
}

// Func 以函数构造 step，测试与简单 step 使用
type Func struct {
	label string
	kind  string
	fn    func(ctx context.Context, pc *Context) error
}

// NewFunc 创建函数式 step；kind 为空时为 "Func"
func NewFunc(label, kind string, fn func(ctx context.Context, pc *Context) error) *Func {
	if kind == "" {
		kind = "Func"
	}
	return &Func{label: label, kind: kind, fn: fn}
}

// Label 实现 Step
func (f *Func) Label() string { return f.label }

// Kind 实现 Kinder
func (f *Func) Kind() string { return f.kind }

// Execute 实现 Step
func (f *Func) Execute(ctx context.Context, pc *Context) error {
	return f.fn(ctx, pc)
}
