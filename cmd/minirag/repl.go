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

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/kballard/go-shellquote"
)

const prompt = "> "

// runREPL 逐行读取命令；每一行按一次独立调用解析，错误与 panic 都不会结束循环
func (c *cli) runREPL(ctx context.Context) error {
	reader := bufio.NewReader(c.stdin)
	for {
		fmt.Fprint(c.stdout, prompt)
		line, err := reader.ReadString('\n')
		if strings.TrimSpace(line) != "" {
			if quit := c.evalLine(ctx, line); quit {
				return nil
			}
		}
		if err != nil {
			if err != io.EOF {
				return err
			}
			fmt.Fprintln(c.stdout)
			return nil
		}
	}
}

// evalLine 执行一行输入，返回是否退出
func (c *cli) evalLine(ctx context.Context, line string) (quit bool) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(c.stderr, "error: %v\n", r)
		}
	}()

	args, err := splitArgs(strings.TrimSpace(line))
	if err != nil {
		fmt.Fprintf(c.stderr, "error: %v\n", err)
		return false
	}
	if len(args) == 0 {
		return false
	}

	fs := flag.NewFlagSet("minirag", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	verbose := fs.Bool("v", c.verbose, "在控制台输出运行记录")
	if err := fs.Parse(args); err != nil {
		return false
	}
	args = fs.Args()
	if len(args) == 0 {
		return false
	}
	switch args[0] {
	case "exit", "quit":
		return true
	case "repl":
		fmt.Fprintln(c.stderr, "already in repl")
		return false
	}

	// -v 只对本行生效
	sub := *c
	sub.verbose = *verbose
	sub.exec(ctx, args)
	c.builder.SetVerbose(c.verbose)
	return false
}

// splitArgs 按 POSIX shell 规则切分一行输入（引号、反斜杠转义）
func splitArgs(line string) ([]string, error) {
	args, err := shellquote.Split(line)
	if err != nil {
		return nil, fmt.Errorf("parse command line: %w", err)
	}
	return args, nil
}
