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

package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"mini-rag/internal/pipeline"
	"mini-rag/pkg/tracing"
)

// Tracing 每次执行一个 span，每个 step 一个子 span
type Tracing struct {
	mu    sync.Mutex
	runs  map[string]trace.Span
	steps map[string]trace.Span
}

// NewTracing 创建 tracing 观察者；span 走全局 TracerProvider
func NewTracing() *Tracing {
	return &Tracing{runs: map[string]trace.Span{}, steps: map[string]trace.Span{}}
}

// RunStarted 实现 pipeline.Observer
func (t *Tracing) RunStarted(ctx context.Context, info pipeline.RunInfo) context.Context {
	ctx, span := tracing.StartPipelineSpan(ctx, info.TraceID, info.Label)
	t.mu.Lock()
	t.runs[info.TraceID] = span
	t.mu.Unlock()
	return ctx
}

// StepStarted 实现 pipeline.Observer
func (t *Tracing) StepStarted(ctx context.Context, ev pipeline.StepEvent) context.Context {
	ctx, span := tracing.StartStepSpan(ctx, ev.StepID, ev.Kind)
	t.mu.Lock()
	t.steps[ev.TraceID+"/"+ev.StepID] = span
	t.mu.Unlock()
	return ctx
}

// StepFinished 实现 pipeline.Observer
func (t *Tracing) StepFinished(_ context.Context, ev pipeline.StepEvent) {
	key := ev.TraceID + "/" + ev.StepID
	t.mu.Lock()
	span, ok := t.steps[key]
	delete(t.steps, key)
	t.mu.Unlock()
	if ok {
		tracing.EndSpan(span, ev.Err)
	}
}

// RunFinished 实现 pipeline.Observer
func (t *Tracing) RunFinished(_ context.Context, info pipeline.RunInfo) {
	t.mu.Lock()
	span, ok := t.runs[info.TraceID]
	delete(t.runs, info.TraceID)
	t.mu.Unlock()
	if ok {
		tracing.EndSpan(span, info.Err)
	}
}
