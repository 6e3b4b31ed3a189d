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
	"errors"
	"fmt"
)

// StepError 某个 step 执行失败
type StepError struct {
	StepID string
	Err    error
}

// Error 实现 error 接口
func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.StepID, e.Err)
}

// Unwrap 实现 errors.Unwrap 接口
func (e *StepError) Unwrap() error {
	return e.Err
}

// GetStepError 从错误链中取出 StepError
func GetStepError(err error) (*StepError, bool) {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr, true
	}
	return nil, false
}

// PanicError step 发生 panic，Value 为 recover 的值
type PanicError struct {
	Value any
	Stack string
}

// Error 实现 error 接口
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap panic 值本身是 error 时可继续展开
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// StackTrace 返回 panic 时的 goroutine 栈
func (e *PanicError) StackTrace() string {
	return e.Stack
}

// KeyReason 读取 Context 键失败的原因
type KeyReason string

const (
	ReasonMissing   KeyReason = "missing"
	ReasonWrongType KeyReason = "wrong type"
)

// KeyError Context 中缺少某键，或值类型不符
type KeyError struct {
	Key    string
	Reason KeyReason
	Want   string
	Got    string
}

// Error 实现 error 接口
func (e *KeyError) Error() string {
	if e.Reason == ReasonWrongType {
		return fmt.Sprintf("context key %q: wrong type: want %s, got %s", e.Key, e.Want, e.Got)
	}
	return fmt.Sprintf("context key %q: missing (want %s)", e.Key, e.Want)
}

// IsMissingKey 检查是否为缺键错误
func IsMissingKey(err error) bool {
	var keyErr *KeyError
	return errors.As(err, &keyErr) && keyErr.Reason == ReasonMissing
}
