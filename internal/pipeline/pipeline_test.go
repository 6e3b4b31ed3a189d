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
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini-rag/internal/runlog"
)

type recordingSink struct {
	records []*runlog.Record
}

func (s *recordingSink) Log(_ context.Context, rec *runlog.Record) {
	s.records = append(s.records, rec)
}

type echoStep struct{ label string }

func (s *echoStep) Label() string { return s.label }
func (s *echoStep) Execute(_ context.Context, pc *Context) error {
	pc.Set("echo", s.label)
	return nil
}

func okStep(label string, calls *[]string) Step {
	return NewFunc(label, "", func(context.Context, *Context) error {
		*calls = append(*calls, label)
		return nil
	})
}

func TestPipeline_PlanAndTraceID(t *testing.T) {
	steps := []Step{&echoStep{label: "Parsing Pdf file"}, NewFunc("Draft response", "DraftResponseStep", nil)}
	p := New("test", nil, steps, nil)

	assert.Equal(t, []string{"0-Parsing Pdf file(echoStep)", "1-Draft response(DraftResponseStep)"}, p.Plan())
	rec, ok := p.Context().Record()
	require.True(t, ok)
	assert.Equal(t, p.Plan(), rec.Plan())
	assert.Equal(t, p.TraceID(), rec.TraceID())
	assert.Equal(t, StateCreated, p.State())

	other := New("test", nil, steps, nil)
	assert.NotEqual(t, p.TraceID(), other.TraceID())
}

func TestPipeline_TraceIDsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		p := New("x", nil, nil, nil)
		require.False(t, seen[p.TraceID()])
		seen[p.TraceID()] = true
	}
}

func TestPipeline_ExecuteSuccess(t *testing.T) {
	var calls []string
	sink := &recordingSink{}
	steps := []Step{okStep("a", &calls), okStep("b", &calls), &echoStep{label: "c"}}
	p := New("ok", map[string]any{"question": "q"}, steps, sink)
	plan := p.Plan()

	p.Execute(context.Background())

	assert.Equal(t, []string{"a", "b"}, calls)
	assert.Equal(t, StateCompleted, p.State())
	assert.NoError(t, p.Err())
	require.Len(t, sink.records, 1)
	rec := sink.records[0]
	assert.Equal(t, plan, rec.Plan())
	assert.Equal(t, plan, rec.Latency().Keys())
	assert.Empty(t, rec.Errors())
	assert.Equal(t, map[string]any{"question": "q"}, rec.Inputs())

	echo, err := Get[string](p.Context(), "echo")
	require.NoError(t, err)
	assert.Equal(t, "c", echo)
}

func TestPipeline_FailureIsolation(t *testing.T) {
	var calls []string
	sink := &recordingSink{}
	steps := []Step{
		okStep("A", &calls),
		NewFunc("B", "", func(context.Context, *Context) error { return errors.New("boom") }),
		okStep("C", &calls),
	}
	p := New("iso", nil, steps, sink)

	assert.NotPanics(t, func() { p.Execute(context.Background()) })

	assert.Equal(t, []string{"A"}, calls)
	require.Len(t, sink.records, 1)
	rec := sink.records[0]
	assert.Equal(t, []string{"0-A(Func)", "1-B(Func)"}, rec.Latency().Keys())
	_, ranC := rec.Latency().Get("2-C(Func)")
	assert.False(t, ranC)

	errs := rec.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, "pipeline.StepError", errs[0].Exception)
	assert.Contains(t, errs[0].Message, "boom")

	stepErr, ok := GetStepError(p.Err())
	require.True(t, ok)
	assert.Equal(t, "1-B(Func)", stepErr.StepID)
}

func TestPipeline_PanicIsolation(t *testing.T) {
	sink := &recordingSink{}
	steps := []Step{
		NewFunc("explode", "", func(context.Context, *Context) error { panic("kaboom") }),
		NewFunc("never", "", func(context.Context, *Context) error { t.Fatal("must not run"); return nil }),
	}
	p := New("panic", nil, steps, sink)
	p.Execute(context.Background())

	require.Len(t, sink.records, 1)
	errs := sink.records[0].Errors()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "panic: kaboom")
	assert.Contains(t, errs[0].Stacktrace, "goroutine")
	assert.Equal(t, 1, sink.records[0].Latency().Len())

	var pe *PanicError
	require.ErrorAs(t, p.Err(), &pe)
	assert.Equal(t, "kaboom", pe.Value)
}

func TestPipeline_EmptyPlan(t *testing.T) {
	sink := &recordingSink{}
	p := New("empty", nil, nil, sink)
	p.Execute(context.Background())

	require.Len(t, sink.records, 1)
	rec := sink.records[0]
	assert.Empty(t, rec.Plan())
	assert.Equal(t, 0, rec.Latency().Len())
	assert.Empty(t, rec.Errors())
}

func TestPipeline_FailingStepLatencyRecorded(t *testing.T) {
	clock := time.Unix(0, 0)
	now := func() time.Time {
		clock = clock.Add(1234 * time.Millisecond)
		return clock
	}
	sink := &recordingSink{}
	steps := []Step{NewFunc("slow", "", func(context.Context, *Context) error { return errors.New("late") })}
	p := New("clock", nil, steps, sink, WithClock(now))
	p.Execute(context.Background())

	sec, ok := sink.records[0].Latency().Get("0-slow(Func)")
	require.True(t, ok)
	assert.Equal(t, 1.23, sec)
}

func TestPipeline_ReExecuteResetsLatency(t *testing.T) {
	sink := &recordingSink{}
	fail := true
	steps := []Step{
		NewFunc("flaky", "", func(context.Context, *Context) error {
			if fail {
				return errors.New("first run")
			}
			return nil
		}),
		NewFunc("after", "", func(context.Context, *Context) error { return nil }),
	}
	p := New("rerun", nil, steps, sink)
	p.Execute(context.Background())
	fail = false
	p.Execute(context.Background())

	require.Len(t, sink.records, 2)
	rec := sink.records[1]
	assert.Equal(t, p.TraceID(), rec.TraceID())
	assert.Equal(t, 2, rec.Latency().Len())
	assert.Empty(t, rec.Errors())
	assert.NoError(t, p.Err())
}

func TestPipeline_StepReplacesLogRecord(t *testing.T) {
	sink := &recordingSink{}
	steps := []Step{NewFunc("clobber", "", func(_ context.Context, pc *Context) error {
		pc.Set(KeyLogRecord, "oops")
		return errors.New("then fail")
	})}
	p := New("clobber", nil, steps, sink)
	p.Execute(context.Background())

	require.Len(t, sink.records, 1)
	rec := sink.records[0]
	assert.Equal(t, p.TraceID(), rec.TraceID())
	assert.Equal(t, p.Plan(), rec.Plan())
	require.Len(t, rec.Errors(), 1)
}

func TestPipeline_ContextVisibleToLaterSteps(t *testing.T) {
	var seen string
	steps := []Step{
		NewFunc("write", "", func(_ context.Context, pc *Context) error {
			pc.Set(KeyMarkdown, "# Title")
			return nil
		}),
		NewFunc("read", "", func(_ context.Context, pc *Context) error {
			md, err := Get[string](pc, KeyMarkdown)
			seen = md
			return err
		}),
	}
	p := New("vis", nil, steps, &recordingSink{})
	p.Execute(context.Background())
	assert.Equal(t, "# Title", seen)
	assert.NoError(t, p.Err())
}

type eventObserver struct {
	NopObserver
	events []string
}

func (o *eventObserver) RunStarted(ctx context.Context, info RunInfo) context.Context {
	o.events = append(o.events, "run:"+info.Label)
	return ctx
}

func (o *eventObserver) StepFinished(_ context.Context, ev StepEvent) {
	status := "ok"
	if ev.Err != nil {
		status = "err"
	}
	o.events = append(o.events, ev.StepID+":"+status)
}

func (o *eventObserver) RunFinished(_ context.Context, info RunInfo) {
	o.events = append(o.events, "done:"+strings.Repeat("!", boolInt(info.Err != nil)))
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func TestPipeline_Observers(t *testing.T) {
	obs := &eventObserver{}
	steps := []Step{
		NewFunc("a", "", func(context.Context, *Context) error { return nil }),
		NewFunc("b", "", func(context.Context, *Context) error { return errors.New("x") }),
	}
	p := New("obs", nil, steps, nil, WithObservers(obs))
	p.Execute(context.Background())
	assert.Equal(t, []string{"run:obs", "0-a(Func):ok", "1-b(Func):err", "done:!"}, obs.events)
}
