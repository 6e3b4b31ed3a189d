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

// Package splitter Markdown 切片：先按标题分节，再按字符长度递归切分
package splitter

import (
	"sort"
	"strings"
)

// HeaderRule 标题前缀及其元数据名，如 {"##", "Header 2"}
type HeaderRule struct {
	Prefix string
	Name   string
}

// Section 一个标题下的连续内容；Metadata 为所在各级标题
type Section struct {
	Content  string
	Metadata map[string]string
}

// HeaderSplitter 按 Markdown 标题分节
type HeaderSplitter struct {
	rules        []HeaderRule
	stripHeaders bool
}

// NewHeaderSplitter 创建标题切分器；stripHeaders 为 true 时标题行不进入内容
func NewHeaderSplitter(rules []HeaderRule, stripHeaders bool) *HeaderSplitter {
	sorted := append([]HeaderRule(nil), rules...)
	// 长前缀优先匹配，"##" 不会被 "#" 吃掉
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i].Prefix) > len(sorted[j].Prefix) })
	return &HeaderSplitter{rules: sorted, stripHeaders: stripHeaders}
}

type activeHeader struct {
	level int
	name  string
}

// Split 分节；同一组标题下的相邻段落合并为一个 Section
func (s *HeaderSplitter) Split(markdown string) []Section {
	var (
		lines    []Section
		content  []string
		stack    []activeHeader
		meta     = map[string]string{}
		inFence  bool
		fenceTok string
	)
	flush := func() {
		if len(content) > 0 {
			lines = append(lines, Section{Content: strings.Join(content, "\n"), Metadata: copyMeta(meta)})
			content = nil
		}
	}

	for _, raw := range strings.Split(markdown, "\n") {
		line := strings.TrimSpace(raw)

		if !inFence && (strings.HasPrefix(line, "```") || strings.HasPrefix(line, "~~~")) {
			inFence, fenceTok = true, line[:3]
		} else if inFence && strings.HasPrefix(line, fenceTok) {
			inFence = false
		}

		if !inFence {
			if rule, ok := s.match(line); ok {
				// 先按旧标题输出已有内容
				flush()
				level := strings.Count(rule.Prefix, "#")
				for len(stack) > 0 && stack[len(stack)-1].level >= level {
					delete(meta, stack[len(stack)-1].name)
					stack = stack[:len(stack)-1]
				}
				stack = append(stack, activeHeader{level: level, name: rule.Name})
				meta[rule.Name] = strings.TrimSpace(line[len(rule.Prefix):])
				if !s.stripHeaders {
					content = append(content, line)
				}
				continue
			}
		}

		if line != "" {
			content = append(content, line)
		} else {
			flush()
		}
	}
	flush()

	return aggregate(lines)
}

func (s *HeaderSplitter) match(line string) (HeaderRule, bool) {
	for _, r := range s.rules {
		if strings.HasPrefix(line, r.Prefix) && (len(line) == len(r.Prefix) || line[len(r.Prefix)] == ' ') {
			return r, true
		}
	}
	return HeaderRule{}, false
}

// aggregate 合并元数据相同的相邻块
func aggregate(blocks []Section) []Section {
	var out []Section
	for _, b := range blocks {
		if n := len(out); n > 0 && sameMeta(out[n-1].Metadata, b.Metadata) {
			out[n-1].Content += "\n\n" + b.Content
			continue
		}
		out = append(out, b)
	}
	return out
}

func copyMeta(m map[string]string) map[string]string {
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func sameMeta(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}
