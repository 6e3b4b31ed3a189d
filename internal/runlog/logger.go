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
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"

	"mini-rag/pkg/log"
)

// StructuredLogger 将运行记录以 JSON 行追加写入文件，verbose 时同时输出到控制台。
// 写入失败只记诊断日志，不向调用方返回错误。
type StructuredLogger struct {
	path    string
	console io.Writer
	logger  *log.Logger

	mu      sync.Mutex
	verbose bool
}

// Option StructuredLogger 选项
type Option func(*StructuredLogger)

// WithConsole 设置控制台输出，默认 os.Stdout
func WithConsole(w io.Writer) Option {
	return func(l *StructuredLogger) { l.console = w }
}

// WithDiagnostics 设置诊断日志
func WithDiagnostics(logger *log.Logger) Option {
	return func(l *StructuredLogger) { l.logger = logger }
}

// NewStructuredLogger 创建写入 path 的记录器；目录与文件在首次写入时创建
func NewStructuredLogger(path string, verbose bool, opts ...Option) *StructuredLogger {
	l := &StructuredLogger{
		path:    path,
		console: os.Stdout,
		logger:  log.Discard(),
		verbose: verbose,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Path 记录文件路径
func (l *StructuredLogger) Path() string { return l.path }

// SetVerbose 切换控制台镜像
func (l *StructuredLogger) SetVerbose(v bool) {
	l.mu.Lock()
	l.verbose = v
	l.mu.Unlock()
}

// Log 写入一条记录
func (l *StructuredLogger) Log(ctx context.Context, rec *Record) {
	if rec == nil {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		l.logger.WarnContext(ctx, "序列化运行记录失败", "trace_id", rec.TraceID(), "error", err)
		return
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.verbose {
		if _, err := l.console.Write(data); err != nil {
			l.logger.WarnContext(ctx, "输出运行记录到控制台失败", "error", err)
		}
	}
	if err := l.appendLine(data); err != nil {
		l.logger.WarnContext(ctx, "写入运行记录失败", "path", l.path, "trace_id", rec.TraceID(), "error", err)
	}
}

func (l *StructuredLogger) appendLine(data []byte) error {
	if dir := filepath.Dir(l.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
