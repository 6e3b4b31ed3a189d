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

package query

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/cloudwego/eino/schema"

	"mini-rag/internal/model/llm"
	"mini-rag/internal/pipeline"
	"mini-rag/internal/storage/vector"
)

// RetrievalEntry 写入运行记录的检索结果；词法检索命中没有得分
type RetrievalEntry struct {
	File  string   `json:"file"`
	ID    string   `json:"id"`
	Score *float64 `json:"score"`
}

// RetrievalLogStep 把 documents 逐条追加到运行记录的 retrieval 字段
type RetrievalLogStep struct{}

func NewRetrievalLogStep() *RetrievalLogStep { return &RetrievalLogStep{} }

func (s *RetrievalLogStep) Label() string { return "Append retrieval info to log record" }

func (s *RetrievalLogStep) Execute(ctx context.Context, pc *pipeline.Context) error {
	docs, err := pipeline.GetOr(pc, pipeline.KeyDocuments, []*schema.Document{})
	if err != nil {
		return err
	}
	rec, ok := pc.Record()
	if !ok {
		return &pipeline.KeyError{Key: pipeline.KeyLogRecord, Reason: pipeline.ReasonMissing, Want: "*runlog.Record"}
	}
	if _, exists := rec.Field("retrieval"); !exists {
		if err := rec.Set("retrieval", []any{}); err != nil {
			return err
		}
	}
	for _, d := range docs {
		entry := RetrievalEntry{File: vector.StringMeta(d, vector.MetaFilePath), ID: d.ID}
		if vector.HasScore(d) {
			score := d.Score()
			entry.Score = &score
		}
		if err := rec.Append("retrieval", entry); err != nil {
			return err
		}
	}
	return nil
}

const instruction = `
You are a Retrieval-Augmented Generation answering system.
Your task is to answer the given question based only on information from the provided context, which is uploaded in the format of relevant pages extracted using RAG.
`

var tokenSplit = regexp.MustCompile(`[\s,!?]+`)

// DraftResponseStep 以检索内容为上下文调用对话模型，写入带引用表的 Markdown 到 output
type DraftResponseStep struct {
	client llm.Client
}

func NewDraftResponseStep(client llm.Client) *DraftResponseStep {
	return &DraftResponseStep{client: client}
}

func (s *DraftResponseStep) Label() string { return "Draft response" }

func (s *DraftResponseStep) Execute(ctx context.Context, pc *pipeline.Context) error {
	docs, err := pipeline.GetOr(pc, pipeline.KeyDocuments, []*schema.Document{})
	if err != nil {
		return err
	}
	question, err := pipeline.Get[string](pc, pipeline.KeyQuestion)
	if err != nil {
		return err
	}

	draft, err := s.client.Complete(ctx, BuildPrompt(question, docs))
	if err != nil {
		return fmt.Errorf("生成回答失败: %w", err)
	}
	if rec, ok := pc.Record(); ok {
		_ = rec.Set("draft_tokens", len(tokenSplit.Split(draft, -1)))
	}
	pc.Set(pipeline.KeyOutput, RenderResponse(draft, docs))
	return nil
}

// BuildPrompt 拼接指令、上下文与问题
func BuildPrompt(question string, docs []*schema.Document) string {
	contents := make([]string, len(docs))
	for i, d := range docs {
		contents[i] = d.Content
	}
	var b strings.Builder
	b.WriteString(instruction)
	b.WriteString("---\nHere is the context:\n\"\"\"\n")
	fmt.Fprintf(&b, "%q", contents)
	b.WriteString("\n\"\"\"\n\n---\n\nHere is the question:\n")
	fmt.Fprintf(&b, "%q\n\n", question)
	b.WriteString("- Your response can be a markdown string if needed, for example to display tables.\n")
	return b.String()
}

// RenderResponse 回答加引用表，相同 (文件, 章节) 只列一次
func RenderResponse(draft string, docs []*schema.Document) string {
	var b strings.Builder
	b.WriteString("\n# Response \n")
	b.WriteString(draft)
	b.WriteString("\n\n| Document | Section | \n|-----------|---------|\n")
	seen := map[string]bool{}
	for _, d := range docs {
		row := fmt.Sprintf("| %s | %s |\n", vector.StringMeta(d, vector.MetaFilePath), vector.StringMeta(d, vector.MetaHeaders))
		if !seen[row] {
			seen[row] = true
			b.WriteString(row)
		}
	}
	b.WriteString("----\n")
	return b.String()
}
