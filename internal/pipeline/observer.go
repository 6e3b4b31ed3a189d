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
	"time"

	"mini-rag/internal/runlog"
)

// RunInfo 一次执行的概要
type RunInfo struct {
	TraceID string
	Label   string
	Plan    []string
	Elapsed time.Duration // 仅 RunFinished 填充
	Err     error         // 仅 RunFinished 填充，成功为 nil
}

// StepEvent step 开始或结束事件
type StepEvent struct {
	TraceID string
	Label   string // pipeline label
	Index   int
	Total   int
	StepID  string
	Kind    string
	Elapsed time.Duration // 仅 StepFinished 填充
	Err     error         // 仅 StepFinished 填充
}

// Observer 观察执行进度；返回的 context 传给后续 step（用于 span 传递）
type Observer interface {
	RunStarted(ctx context.Context, info RunInfo) context.Context
	StepStarted(ctx context.Context, ev StepEvent) context.Context
	StepFinished(ctx context.Context, ev StepEvent)
	RunFinished(ctx context.Context, info RunInfo)
}

// NopObserver 空实现，可嵌入以只覆盖关心的方法
type NopObserver struct{}

func (NopObserver) RunStarted(ctx context.Context, _ RunInfo) context.Context    { return ctx }
func (NopObserver) StepStarted(ctx context.Context, _ StepEvent) context.Context { return ctx }
func (NopObserver) StepFinished(context.Context, StepEvent)                      {}
func (NopObserver) RunFinished(context.Context, RunInfo)                         {}

// Sink 接收每次执行结束时的运行记录
type Sink interface {
	Log(ctx context.Context, rec *runlog.Record)
}
