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

// Package runlog 一次 pipeline 执行的结构化运行记录及其持久化。
// 每条记录包含 trace_id、执行计划、逐步耗时、错误列表、输入快照，以及各 step 写入的扩展字段；
// 记录以一行 JSON 追加到 <data_folder>/logs，可按 trace_id 回放。
package runlog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
)

// 核心字段名，扩展字段不能与之重名
const (
	FieldTraceID = "trace_id"
	FieldPlan    = "plan"
	FieldLatency = "latency"
	FieldErrors  = "errors"
	FieldInputs  = "inputs"
)

// ErrReservedField 扩展字段名与核心字段冲突
var ErrReservedField = errors.New("reserved log record field")

func isReserved(key string) bool {
	switch key {
	case FieldTraceID, FieldPlan, FieldLatency, FieldErrors, FieldInputs:
		return true
	}
	return false
}

// ErrorEntry 一条捕获的错误
type ErrorEntry struct {
	Exception  string `json:"exception"`
	Message    string `json:"message"`
	Stacktrace string `json:"stacktrace"`
}

// StackTracer 可提供调用栈的错误（如 step panic）
type StackTracer interface {
	StackTrace() string
}

// Record 一次执行的运行记录；plan 在构造后不可变
type Record struct {
	traceID string
	plan    []string
	latency *Latency
	errors  []ErrorEntry
	inputs  map[string]any

	extKeys []string
	ext     map[string]any
}

// NewRecord 创建运行记录，plan 会被拷贝
func NewRecord(traceID string, plan []string) *Record {
	return &Record{
		traceID: traceID,
		plan:    append([]string(nil), plan...),
		latency: NewLatency(),
		inputs:  map[string]any{},
		ext:     map[string]any{},
	}
}

// TraceID 返回 trace id
func (r *Record) TraceID() string { return r.traceID }

// Plan 返回执行计划的拷贝
func (r *Record) Plan() []string { return append([]string(nil), r.plan...) }

// Latency 返回逐步耗时表
func (r *Record) Latency() *Latency { return r.latency }

// Errors 返回错误列表的拷贝
func (r *Record) Errors() []ErrorEntry { return append([]ErrorEntry(nil), r.errors...) }

// Inputs 返回输入快照
func (r *Record) Inputs() map[string]any { return r.inputs }

// SetInputs 记录输入快照（浅拷贝）
func (r *Record) SetInputs(in map[string]any) {
	r.inputs = make(map[string]any, len(in))
	for k, v := range in {
		r.inputs[k] = v
	}
}

// Reset 清空耗时与错误，重复执行同一 pipeline 时使用
func (r *Record) Reset() {
	r.latency = NewLatency()
	r.errors = nil
}

// AddError 追加一条结构化错误
func (r *Record) AddError(err error) {
	if err == nil {
		return
	}
	r.errors = append(r.errors, ErrorEntry{
		Exception:  errorKind(err),
		Message:    err.Error(),
		Stacktrace: stacktrace(err),
	})
}

// errorKind 错误的 Go 类型名，去掉指针前缀
func errorKind(err error) string {
	return strings.TrimPrefix(reflect.TypeOf(err).String(), "*")
}

// stacktrace 展开错误链；链上任一错误带调用栈时附在末尾
func stacktrace(err error) string {
	var b strings.Builder
	var stack string
	for e := err; e != nil; e = errors.Unwrap(e) {
		fmt.Fprintf(&b, "%s: %s\n", errorKind(e), e.Error())
		if st, ok := e.(StackTracer); ok && stack == "" {
			stack = st.StackTrace()
		}
	}
	if stack != "" {
		b.WriteString(stack)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Set 写入扩展字段，已存在则覆盖并保留原位置
func (r *Record) Set(key string, value any) error {
	if isReserved(key) {
		return fmt.Errorf("%w: %s", ErrReservedField, key)
	}
	if _, ok := r.ext[key]; !ok {
		r.extKeys = append(r.extKeys, key)
	}
	r.ext[key] = value
	return nil
}

// Append 向列表型扩展字段追加元素，字段不存在时创建
func (r *Record) Append(key string, value any) error {
	if isReserved(key) {
		return fmt.Errorf("%w: %s", ErrReservedField, key)
	}
	cur, ok := r.ext[key]
	if !ok {
		return r.Set(key, []any{value})
	}
	list, ok := cur.([]any)
	if !ok {
		return fmt.Errorf("log record field %q is %T, not a list", key, cur)
	}
	r.ext[key] = append(list, value)
	return nil
}

// Field 读取扩展字段
func (r *Record) Field(key string) (any, bool) {
	v, ok := r.ext[key]
	return v, ok
}

// Fields 扩展字段名，按写入顺序
func (r *Record) Fields() []string {
	return append([]string(nil), r.extKeys...)
}

// MarshalJSON 核心字段在前，扩展字段按写入顺序在后。
// 单个字段无法序列化时不影响整条记录，见 marshalField
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	write := func(key string, value any) {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(marshalField(value))
	}

	errs := r.errors
	if errs == nil {
		errs = []ErrorEntry{}
	}
	plan := r.plan
	if plan == nil {
		plan = []string{}
	}
	write(FieldTraceID, r.traceID)
	write(FieldPlan, plan)
	write(FieldLatency, r.latency)
	write(FieldErrors, errs)
	write(FieldInputs, r.inputs)
	for _, k := range r.extKeys {
		write(k, r.ext[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// FieldUnserializable 无法序列化的字段被替换为 {"unserializable": "<type>: <error>"}
const FieldUnserializable = "unserializable"

// marshalField NaN/Inf 写为 null；其余无法序列化的值写为占位对象
func marshalField(value any) []byte {
	data, err := json.Marshal(value)
	if err == nil {
		return data
	}
	if data, ferr := json.Marshal(finite(reflect.ValueOf(value))); ferr == nil {
		return data
	}
	data, _ = json.Marshal(map[string]string{FieldUnserializable: fmt.Sprintf("%T: %v", value, err)})
	return data
}

// finite 拷贝 map/slice/指针结构，非有限浮点数替换为 nil；struct 原样返回
func finite(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		if f := v.Float(); math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		return finite(v.Elem())
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return nil
		}
		out := make([]any, v.Len())
		for i := range out {
			out[i] = finite(v.Index(i))
		}
		return out
	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		if v.Type().Key().Kind() != reflect.String {
			break
		}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = finite(iter.Value())
		}
		return out
	}
	if !v.CanInterface() {
		return nil
	}
	return v.Interface()
}

// UnmarshalJSON 回放时解析，保留 plan、latency 与扩展字段的顺序
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	*r = Record{latency: NewLatency(), inputs: map[string]any{}, ext: map[string]any{}}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		switch key {
		case FieldTraceID:
			err = dec.Decode(&r.traceID)
		case FieldPlan:
			err = dec.Decode(&r.plan)
		case FieldLatency:
			err = dec.Decode(r.latency)
		case FieldErrors:
			err = dec.Decode(&r.errors)
		case FieldInputs:
			err = dec.Decode(&r.inputs)
		default:
			var v any
			if err = dec.Decode(&v); err == nil {
				if _, dup := r.ext[key]; !dup {
					r.extKeys = append(r.extKeys, key)
				}
				r.ext[key] = v
			}
		}
		if err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
	}
	return expectDelim(dec, '}')
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}
