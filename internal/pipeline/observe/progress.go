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

// Package observe pipeline 观察者：终端进度条与失败提示、Prometheus 指标、OpenTelemetry span
package observe

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"mini-rag/internal/pipeline"
)

// FailureNotice 执行失败时给用户的提示，详细信息在运行记录里
func FailureNotice(traceID string) string {
	return fmt.Sprintf("There was an issue while processing the request trace_id: %s", traceID)
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	stepStyle   = lipgloss.NewStyle().Faint(true)
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

// Progress 每个 step 结束时推进一格进度条；失败时输出带 trace_id 的提示
type Progress struct {
	pipeline.NopObserver

	mu  sync.Mutex
	out io.Writer
	bar progress.Model
}

// NewProgress 创建进度观察者，输出到 out
func NewProgress(out io.Writer) *Progress {
	return &Progress{
		out: out,
		bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(30)),
	}
}

// RunStarted 输出 pipeline 名称
func (p *Progress) RunStarted(ctx context.Context, info pipeline.RunInfo) context.Context {
	p.mu.Lock()
	defer p.mu.Unlock()
	if info.Label != "" {
		fmt.Fprintln(p.out, titleStyle.Render(info.Label))
	}
	return ctx
}

// StepFinished 推进进度条
func (p *Progress) StepFinished(_ context.Context, ev pipeline.StepEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	percent := 1.0
	if ev.Total > 0 {
		percent = float64(ev.Index+1) / float64(ev.Total)
	}
	fmt.Fprintf(p.out, "%s %d/%d %s\n", p.bar.ViewAs(percent), ev.Index+1, ev.Total, stepStyle.Render(ev.StepID))
}

// RunFinished 失败时输出提示
func (p *Progress) RunFinished(_ context.Context, info pipeline.RunInfo) {
	if info.Err == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, noticeStyle.Render(FailureNotice(info.TraceID)))
}

// Notice 只输出失败提示，不画进度条
type Notice struct {
	pipeline.NopObserver
	out io.Writer
}

// NewNotice 创建失败提示观察者
func NewNotice(out io.Writer) *Notice {
	return &Notice{out: out}
}

// RunFinished 失败时输出提示
func (n *Notice) RunFinished(_ context.Context, info pipeline.RunInfo) {
	if info.Err != nil {
		fmt.Fprintln(n.out, noticeStyle.Render(FailureNotice(info.TraceID)))
	}
}
