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

package runlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stackErr struct{ msg string }

func (e *stackErr) Error() string      { return e.msg }
func (e *stackErr) StackTrace() string { return "goroutine 1 [running]:\nmain.main()" }

func TestRecord_PlanIsCopied(t *testing.T) {
	plan := []string{"0-a(A)", "1-b(B)"}
	rec := NewRecord("t1", plan)
	plan[0] = "changed"
	got := rec.Plan()
	got[1] = "changed too"
	assert.Equal(t, []string{"0-a(A)", "1-b(B)"}, rec.Plan())
}

func TestRecord_AddError(t *testing.T) {
	rec := NewRecord("t1", nil)
	rec.AddError(nil)
	assert.Empty(t, rec.Errors())

	base := &stackErr{msg: "boom"}
	rec.AddError(fmt.Errorf("step 1-b(B): %w", base))
	errs := rec.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, "fmt.wrapError", errs[0].Exception)
	assert.Equal(t, "step 1-b(B): boom", errs[0].Message)
	assert.Contains(t, errs[0].Stacktrace, "runlog.stackErr: boom")
	assert.Contains(t, errs[0].Stacktrace, "goroutine 1 [running]")
}

func TestRecord_Extensions(t *testing.T) {
	rec := NewRecord("t1", nil)
	require.ErrorIs(t, rec.Set("plan", 1), ErrReservedField)
	require.ErrorIs(t, rec.Append("errors", 1), ErrReservedField)

	require.NoError(t, rec.Set("draft_tokens", 12))
	require.NoError(t, rec.Append("retrieval", map[string]any{"id": "a"}))
	require.NoError(t, rec.Append("retrieval", map[string]any{"id": "b"}))
	require.NoError(t, rec.Set("draft_tokens", 13))
	assert.Equal(t, []string{"draft_tokens", "retrieval"}, rec.Fields())

	v, ok := rec.Field("retrieval")
	require.True(t, ok)
	assert.Len(t, v, 2)

	require.Error(t, rec.Append("draft_tokens", 1))
}

func TestRecord_MarshalOrder(t *testing.T) {
	rec := NewRecord("t1", []string{"0-a(A)", "1-b(B)"})
	rec.SetInputs(map[string]any{"question": "why?"})
	rec.Latency().Record("1-b(B)", 1234*time.Millisecond)
	rec.Latency().Record("0-a(A)", 5*time.Millisecond)
	require.NoError(t, rec.Set("zeta", true))
	require.NoError(t, rec.Set("alpha", "x"))

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Equal(t,
		`{"trace_id":"t1","plan":["0-a(A)","1-b(B)"],"latency":{"1-b(B)":1.23,"0-a(A)":0.01},"errors":[],"inputs":{"question":"why?"},"zeta":true,"alpha":"x"}`,
		string(data))

	var back Record
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "t1", back.TraceID())
	assert.Equal(t, []string{"1-b(B)", "0-a(A)"}, back.Latency().Keys())
	assert.Equal(t, []string{"zeta", "alpha"}, back.Fields())
	sec, ok := back.Latency().Get("1-b(B)")
	require.True(t, ok)
	assert.InDelta(t, 1.23, sec, 1e-9)
}

func TestRecord_MarshalUnserializableFields(t *testing.T) {
	rec := NewRecord("t1", nil)
	require.NoError(t, rec.Set("retrieval", []any{map[string]any{"file": "a.pdf", "score": math.NaN()}}))
	require.NoError(t, rec.Set("scores", []float64{0.9, math.Inf(1)}))
	require.NoError(t, rec.Set("callback", func() {}))
	require.NoError(t, rec.Set("after", "ok"))

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var back Record
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, []string{"retrieval", "scores", "callback", "after"}, back.Fields())

	retrieval, _ := back.Field("retrieval")
	hit := retrieval.([]any)[0].(map[string]any)
	assert.Equal(t, "a.pdf", hit["file"])
	assert.Nil(t, hit["score"])

	scores, _ := back.Field("scores")
	assert.Nil(t, scores.([]any)[1])

	callback, _ := back.Field("callback")
	assert.Contains(t, callback.(map[string]any)[FieldUnserializable], "func()")

	after, _ := back.Field("after")
	assert.Equal(t, "ok", after)
}

func TestRecord_Reset(t *testing.T) {
	rec := NewRecord("t1", []string{"0-a(A)"})
	rec.Latency().Record("0-a(A)", time.Second)
	rec.AddError(errors.New("x"))
	rec.Reset()
	assert.Equal(t, 0, rec.Latency().Len())
	assert.Empty(t, rec.Errors())
	assert.Equal(t, []string{"0-a(A)"}, rec.Plan())
}

func TestRound(t *testing.T) {
	assert.Equal(t, 0.0, Round(4*time.Millisecond))
	assert.Equal(t, 0.01, Round(5*time.Millisecond))
	assert.Equal(t, 2.5, Round(2499*time.Millisecond+600*time.Microsecond))
}
