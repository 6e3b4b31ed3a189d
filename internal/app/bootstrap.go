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

// Package app 组合根：按配置创建全部协作者，并装配入库、问答、文档列表三条 pipeline
package app

import (
	"context"
	stderrors "errors"
	"io"
	"os"

	"mini-rag/internal/document"
	"mini-rag/internal/pipeline"
	"mini-rag/internal/pipeline/catalog"
	"mini-rag/internal/pipeline/ingest"
	"mini-rag/internal/pipeline/observe"
	"mini-rag/internal/pipeline/query"
	"mini-rag/internal/runlog"
	"mini-rag/internal/splitter"
	"mini-rag/internal/storage/cache"
	"mini-rag/internal/storage/lexical"
	"mini-rag/internal/storage/object"
	"mini-rag/internal/storage/vector"
	"mini-rag/pkg/config"
	"mini-rag/pkg/errors"
	"mini-rag/pkg/log"
)

// pipeline 名称，用于指标标签
const (
	IngestPipeline    = "ingest"
	AskPipeline       = "ask"
	DocumentsPipeline = "documents"
)

// Builder 持有所有协作者；step 在构造时创建一次，之后每次运行复用
type Builder struct {
	cfg    *config.Config
	logger *log.Logger

	runLog  *runlog.StructuredLogger
	vectors vector.Store
	objects object.Store
	lexical *lexical.Repository
	cache   cache.Store
	models  *Models
	parser  document.Parser

	out      io.Writer
	progress bool
	tracing  bool

	ingestSteps    []pipeline.Step
	askSteps       []pipeline.Step
	documentsSteps []pipeline.Step
}

// Option Builder 选项
type Option func(*Builder)

// WithModels 替换模型客户端，测试用
func WithModels(m *Models) Option {
	return func(b *Builder) { b.models = m }
}

// WithParser 替换 PDF 解析器
func WithParser(p document.Parser) Option {
	return func(b *Builder) { b.parser = p }
}

// WithOutput 进度与失败提示的输出，默认 os.Stderr；运行记录的控制台镜像也写到这里
func WithOutput(w io.Writer) Option {
	return func(b *Builder) { b.out = w }
}

// WithProgress 是否绘制进度条；关闭时只输出失败提示
func WithProgress(on bool) Option {
	return func(b *Builder) { b.progress = on }
}

// NewBuilder 按配置创建协作者
func NewBuilder(ctx context.Context, cfg *config.Config, logger *log.Logger, opts ...Option) (*Builder, error) {
	if logger == nil {
		logger = log.Discard()
	}
	b := &Builder{
		cfg:      cfg,
		logger:   logger,
		out:      os.Stderr,
		progress: true,
		tracing:  cfg.Monitoring.Tracing.Enable,
	}
	for _, o := range opts {
		o(b)
	}

	b.runLog = runlog.NewStructuredLogger(cfg.LogsPath(), cfg.ShowLogs,
		runlog.WithConsole(b.out), runlog.WithDiagnostics(logger))

	var err error
	if b.vectors, err = vector.NewStore(ctx, cfg.Storage.Vector); err != nil {
		return nil, errors.Wrap(err, "初始化向量存储失败")
	}
	if b.objects, err = object.NewStore(ctx, cfg.Storage.Lexical); err != nil {
		b.Close()
		return nil, errors.Wrap(err, "初始化检索器存储失败")
	}
	b.lexical = lexical.NewRepository(b.objects, cfg.Storage.Lexical.Key, cfg.Storage.Lexical.TopK)
	if b.cache, err = cache.NewCache(cfg.Storage.Cache); err != nil {
		b.Close()
		return nil, errors.Wrap(err, "初始化向量缓存失败")
	}
	if b.models == nil {
		if b.models, err = NewModels(ctx, cfg, b.cache, logger); err != nil {
			b.Close()
			return nil, errors.Wrap(err, "初始化模型失败")
		}
	}
	if b.parser == nil {
		if b.parser, err = document.NewPDFParser(cfg.PDF.LicenseKey, cfg.PDF.ExtractImages, logger); err != nil {
			b.Close()
			return nil, err
		}
	}
	if err := b.buildSteps(); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

func (b *Builder) buildSteps() error {
	rules := make([]splitter.HeaderRule, len(b.cfg.Ingest.HeadersToSplitOn))
	for i, r := range b.cfg.Ingest.HeadersToSplitOn {
		rules[i] = splitter.HeaderRule{Prefix: r.Prefix, Name: r.Name}
	}
	chunk, err := ingest.NewMarkdownChunkStep(rules, b.cfg.Ingest.ChunkSize, b.cfg.Ingest.ChunkOverlap)
	if err != nil {
		return errors.Wrap(err, "切片配置无效")
	}
	topK := b.cfg.Storage.Vector.TopK

	b.ingestSteps = []pipeline.Step{
		ingest.NewPDFParseStep(b.parser),
		ingest.NewImageReplaceStep(b.models.Vision, b.cfg.Ingest.ImageToTextPrompt),
		ingest.NewMarkdownConvertStep(),
		chunk,
		ingest.NewGenerateEmbeddingsStep(b.models.Embedder, 4),
		ingest.NewPersistChangesStep(b.vectors),
		ingest.NewUpdateLexicalIndexStep(b.lexical),
	}
	b.askSteps = []pipeline.Step{
		query.NewQuestionEmbeddingStep(b.models.Embedder),
		query.NewVectorRetrieveStep(b.vectors, topK),
		query.NewLexicalRetrieveStep(b.lexical, topK),
		query.NewRetrievalLogStep(),
		query.NewDraftResponseStep(b.models.Answer),
	}
	b.documentsSteps = []pipeline.Step{
		catalog.NewListDocumentsStep(b.vectors),
		catalog.NewDisplayOutputStep(),
	}
	return nil
}

func (b *Builder) options(name string) []pipeline.Option {
	obs := []pipeline.Observer{observe.NewMetrics(name)}
	if b.tracing {
		obs = append(obs, observe.NewTracing())
	}
	if b.progress {
		obs = append(obs, observe.NewProgress(b.out))
	} else {
		obs = append(obs, observe.NewNotice(b.out))
	}
	return []pipeline.Option{pipeline.WithObservers(obs...), pipeline.WithLogger(b.logger)}
}

// IngestionPipeline 入库 file_path 指向的 PDF
func (b *Builder) IngestionPipeline(filePath string) *pipeline.Pipeline {
	return pipeline.New("Ingesting file: "+filePath,
		map[string]any{pipeline.KeyFilePath: filePath},
		b.ingestSteps, b.runLog, b.options(IngestPipeline)...)
}

// AskPipeline 回答 question
func (b *Builder) AskPipeline(question string) *pipeline.Pipeline {
	return pipeline.New("Planning answer",
		map[string]any{pipeline.KeyQuestion: question},
		b.askSteps, b.runLog, b.options(AskPipeline)...)
}

// DocumentsPipeline 列出已入库文档
func (b *Builder) DocumentsPipeline() *pipeline.Pipeline {
	return pipeline.New("Listing documents", map[string]any{},
		b.documentsSteps, b.runLog, b.options(DocumentsPipeline)...)
}

// SetVerbose 切换运行记录的控制台镜像
func (b *Builder) SetVerbose(v bool) {
	b.runLog.SetVerbose(v)
}

// RunLogPath 运行记录文件
func (b *Builder) RunLogPath() string {
	return b.runLog.Path()
}

// Close 释放存储连接
func (b *Builder) Close() error {
	var errs []error
	for _, c := range []io.Closer{b.vectors, b.objects, b.cache} {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
