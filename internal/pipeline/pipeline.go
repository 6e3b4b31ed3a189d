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

// Package pipeline 顺序执行 step 的引擎：共享 Context、逐步计时、隔离失败，
// 每次执行结束时把运行记录交给 Sink，且只交一次。
package pipeline

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"mini-rag/internal/runlog"
	"mini-rag/pkg/log"
)

// State pipeline 状态
type State int

const (
	StateCreated State = iota
	StateRunning
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	}
	return "unknown"
}

// Pipeline 一组有序 step 及其共享 Context
type Pipeline struct {
	traceID   string
	label     string
	steps     []Step
	plan      []string
	pc        *Context
	sink      Sink
	observers []Observer
	logger    *log.Logger
	now       func() time.Time

	state State
	err   error
}

// Option Pipeline 选项
type Option func(*Pipeline)

// WithObservers 追加观察者，按顺序通知
func WithObservers(obs ...Observer) Option {
	return func(p *Pipeline) { p.observers = append(p.observers, obs...) }
}

// WithLogger 设置诊断日志
func WithLogger(logger *log.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock 替换计时时钟，测试用
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New 创建 pipeline：生成 trace id、固定执行计划，并把运行记录放入 Context
func New(label string, seed map[string]any, steps []Step, sink Sink, opts ...Option) *Pipeline {
	p := &Pipeline{
		traceID: uuid.NewString(),
		label:   label,
		steps:   append([]Step(nil), steps...),
		pc:      NewContext(seed),
		sink:    sink,
		logger:  log.Discard(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	p.plan = make([]string, len(p.steps))
	for i, s := range p.steps {
		p.plan[i] = StepID(i, s)
	}

	rec := runlog.NewRecord(p.traceID, p.plan)
	rec.SetInputs(seed)
	p.pc.Set(KeyLogRecord, rec)
	return p
}

// TraceID 返回 trace id
func (p *Pipeline) TraceID() string { return p.traceID }

// Label 返回 pipeline 名称
func (p *Pipeline) Label() string { return p.label }

// Plan 返回执行计划的拷贝
func (p *Pipeline) Plan() []string { return append([]string(nil), p.plan...) }

// Context 返回共享 Context
func (p *Pipeline) Context() *Context { return p.pc }

// State 返回当前状态
func (p *Pipeline) State() State { return p.state }

// Err 上一次执行的致命错误，成功为 nil
func (p *Pipeline) Err() error { return p.err }

// Execute 顺序执行所有 step。任何 step 的错误或 panic 都会被捕获并记录，
// 不会从这里传出；执行结束时运行记录恰好交给 Sink 一次。
// 重复执行会清空上一次的耗时与错误，trace id 与 plan 不变。
func (p *Pipeline) Execute(ctx context.Context) {
	p.state = StateRunning
	p.err = nil
	if rec, ok := p.pc.Record(); ok {
		rec.Reset()
	}

	info := RunInfo{TraceID: p.traceID, Label: p.label, Plan: p.Plan()}
	runCtx := ctx
	for _, o := range p.observers {
		runCtx = o.RunStarted(runCtx, info)
	}

	start := p.now()
	for idx, step := range p.steps {
		if err := p.runStep(runCtx, idx, step); err != nil {
			p.err = err
			break
		}
	}

	rec, ok := p.pc.Record()
	if !ok {
		// step 覆盖或删除了 log_record
		rec = runlog.NewRecord(p.traceID, p.plan)
		if p.err != nil {
			rec.AddError(p.err)
		}
	}
	if p.sink != nil {
		p.sink.Log(ctx, rec)
	}
	p.state = StateCompleted

	info.Elapsed = p.now().Sub(start)
	info.Err = p.err
	for _, o := range p.observers {
		o.RunFinished(runCtx, info)
	}
}

// runStep 执行单个 step，返回包装后的致命错误
func (p *Pipeline) runStep(ctx context.Context, idx int, step Step) error {
	stepID := p.plan[idx]
	ev := StepEvent{
		TraceID: p.traceID,
		Label:   p.label,
		Index:   idx,
		Total:   len(p.steps),
		StepID:  stepID,
		Kind:    KindOf(step),
	}
	stepCtx := ctx
	for _, o := range p.observers {
		stepCtx = o.StepStarted(stepCtx, ev)
	}

	p.logger.DebugContext(ctx, "step 开始", "trace_id", p.traceID, "step", stepID)
	start := p.now()
	err := p.invoke(stepCtx, step)
	elapsed := p.now().Sub(start)

	if rec, ok := p.pc.Record(); ok {
		rec.Latency().Record(stepID, elapsed)
	}

	if err != nil {
		err = &StepError{StepID: stepID, Err: err}
		if rec, ok := p.pc.Record(); ok {
			rec.AddError(err)
		}
		p.logger.ErrorContext(ctx, "step 失败", "trace_id", p.traceID, "step", stepID, "error", err)
	}

	ev.Elapsed = elapsed
	ev.Err = err
	for _, o := range p.observers {
		o.StepFinished(stepCtx, ev)
	}
	return err
}

// invoke 执行 step 并把 panic 转为 *PanicError
func (p *Pipeline) invoke(ctx context.Context, step Step) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: string(debug.Stack())}
		}
	}()
	return step.Execute(ctx, p.pc)
}
