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

// minirag 命令行：入库 PDF、问答、列出文档、回放运行记录
package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"mini-rag/internal/app"
	"mini-rag/internal/pipeline"
	"mini-rag/internal/runlog"
	"mini-rag/pkg/config"
	"mini-rag/pkg/log"
	"mini-rag/pkg/metrics"
	"mini-rag/pkg/tracing"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// usageError 参数错误，退出码 2
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: minirag [-config path] [-v] [-metrics] <command> [args]")
	fmt.Fprintln(w, "  documents          - 列出已入库的文档")
	fmt.Fprintln(w, "  ingest <file_path> - 入库 PDF 文件")
	fmt.Fprintln(w, "  ask <question>     - 基于已入库文档回答问题")
	fmt.Fprintln(w, "  trace <trace_id>   - 输出某次运行的记录")
	fmt.Fprintln(w, "  metrics            - 输出本进程的 Prometheus 指标")
	fmt.Fprintln(w, "  repl               - 交互模式（默认）")
}

// run 解析全局参数、装配依赖并执行一条命令，返回退出码
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("minirag", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { printUsage(stderr) }
	configPath := fs.String("config", "", "配置文件路径，默认 "+config.DefaultConfigPath)
	verbose := fs.Bool("v", false, "在控制台输出运行记录")
	dumpMetrics := fs.Bool("metrics", false, "退出前把 Prometheus 指标写到 stderr")
	if err := fs.Parse(args); err != nil {
		if stderrors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "加载配置失败: %v\n", err)
		return exitError
	}
	logger, err := log.NewLogger(&log.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	if err != nil {
		fmt.Fprintf(stderr, "初始化日志失败: %v\n", err)
		return exitError
	}
	defer logger.Close()

	if cfg.Monitoring.Tracing.Enable {
		tp, err := tracing.InitTracer(ctx, tracing.OTelConfig{
			ServiceName:    cfg.Monitoring.Tracing.ServiceName,
			ExportEndpoint: cfg.Monitoring.Tracing.ExportEndpoint,
			Insecure:       cfg.Monitoring.Tracing.Insecure,
		})
		if err != nil {
			logger.Warn("初始化 tracing 失败", "error", err)
		} else {
			defer func() {
				if err := tp.Shutdown(context.Background()); err != nil {
					logger.Warn("关闭 tracing 失败", "error", err)
				}
			}()
		}
	}

	b, err := app.NewBuilder(ctx, cfg, logger, app.WithOutput(stderr))
	if err != nil {
		fmt.Fprintf(stderr, "初始化失败: %v\n", err)
		return exitError
	}
	defer b.Close()

	c := newCLI(b, cfg.ShowLogs || *verbose, stdin, stdout, stderr)
	code := c.exec(ctx, fs.Args())
	if *dumpMetrics {
		if err := metrics.WritePrometheus(stderr); err != nil {
			logger.Warn("输出指标失败", "error", err)
		}
	}
	return code
}

// cli 在同一组协作者上执行命令；REPL 的每一行也经由这里
type cli struct {
	builder *app.Builder
	verbose bool

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func newCLI(b *app.Builder, verbose bool, stdin io.Reader, stdout, stderr io.Writer) *cli {
	return &cli{builder: b, verbose: verbose, stdin: stdin, stdout: stdout, stderr: stderr}
}

// exec 执行一条命令并把错误映射为退出码
func (c *cli) exec(ctx context.Context, args []string) int {
	c.builder.SetVerbose(c.verbose)
	if len(args) == 0 {
		args = []string{"repl"}
	}
	err := c.dispatch(ctx, args)
	if err == nil {
		return exitOK
	}
	var ue *usageError
	if stderrors.As(err, &ue) {
		fmt.Fprintln(c.stderr, ue.msg)
		return exitUsage
	}
	fmt.Fprintf(c.stderr, "%s: %v\n", args[0], err)
	return exitError
}

func (c *cli) dispatch(ctx context.Context, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "documents":
		if len(rest) != 0 {
			return usagef("Usage: minirag documents")
		}
		c.runPipeline(ctx, c.builder.DocumentsPipeline())
		return nil
	case "ingest":
		if len(rest) != 1 {
			return usagef("Usage: minirag ingest <file_path>")
		}
		c.runPipeline(ctx, c.builder.IngestionPipeline(rest[0]))
		return nil
	case "ask":
		question := strings.TrimSpace(strings.Join(rest, " "))
		if question == "" {
			return usagef("Usage: minirag ask <question>")
		}
		c.runPipeline(ctx, c.builder.AskPipeline(question))
		return nil
	case "trace":
		if len(rest) != 1 {
			return usagef("Usage: minirag trace <trace_id>")
		}
		return c.runTrace(rest[0])
	case "metrics":
		return metrics.WritePrometheus(c.stdout)
	case "repl":
		return c.runREPL(ctx)
	case "help":
		printUsage(c.stdout)
		return nil
	default:
		return usagef("unknown command %q, run 'minirag help'", cmd)
	}
}

// runPipeline 执行 pipeline 并打印 output；失败只体现在运行记录和提示里
func (c *cli) runPipeline(ctx context.Context, p *pipeline.Pipeline) {
	p.Execute(ctx)
	out, err := pipeline.GetOr(p.Context(), pipeline.KeyOutput, "")
	if err != nil || out == "" {
		return
	}
	fmt.Fprintln(c.stdout, out)
}

func (c *cli) runTrace(traceID string) error {
	rec, err := runlog.Find(c.builder.RunLogPath(), traceID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, string(data))
	return nil
}
