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

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultConfigPath 未指定 -config 时尝试读取的配置文件
const DefaultConfigPath = "configs/minirag.yaml"

// Config 应用配置结构体
type Config struct {
	DataFolder string           `mapstructure:"data_folder"`
	ShowLogs   bool             `mapstructure:"show_logs"`
	Log        LogConfig        `mapstructure:"log"`
	PDF        PDFConfig        `mapstructure:"pdf"`
	Ingest     IngestConfig     `mapstructure:"ingest"`
	Model      ModelConfig      `mapstructure:"model"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// LogConfig 诊断日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// PDFConfig PDF 解析配置
type PDFConfig struct {
	LicenseKey    string `mapstructure:"license_key"` // unipdf metered key，空则使用未授权模式
	ExtractImages bool   `mapstructure:"extract_images"`
}

// HeaderRule 按 Markdown 标题切分的规则，如 {"#", "Header 1"}
type HeaderRule struct {
	Prefix string `mapstructure:"prefix"`
	Name   string `mapstructure:"name"`
}

// IngestConfig 入库配置
type IngestConfig struct {
	ChunkSize         int          `mapstructure:"chunk_size"`
	ChunkOverlap      int          `mapstructure:"chunk_overlap"`
	HeadersToSplitOn  []HeaderRule `mapstructure:"headers_to_split_on"`
	ImageToTextPrompt string       `mapstructure:"image_to_text_prompt"`
	DescribeImages    bool         `mapstructure:"describe_images"`
}

// ModelConfig 模型配置：回答、视觉、向量化共用同一服务端
type ModelConfig struct {
	Provider          string        `mapstructure:"provider"` // ollama | openai
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	AnswerModel       string        `mapstructure:"answer_model"`
	VisionModel       string        `mapstructure:"vision_model"`
	EmbeddingModel    string        `mapstructure:"embedding_model"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerMinute float64       `mapstructure:"requests_per_minute"` // 0 表示不限流
}

// StorageConfig 存储配置
type StorageConfig struct {
	Vector  VectorConfig  `mapstructure:"vector"`
	Lexical LexicalConfig `mapstructure:"lexical"`
	Cache   CacheConfig   `mapstructure:"cache"`
}

// VectorConfig 向量存储配置
type VectorConfig struct {
	Type              string  `mapstructure:"type"` // local | postgres
	Path              string  `mapstructure:"path"`
	DSN               string  `mapstructure:"dsn"`
	Collection        string  `mapstructure:"collection"`
	DistanceThreshold float64 `mapstructure:"distance_threshold"`
	TopK              int     `mapstructure:"top_k"`
}

// LexicalConfig TF-IDF 检索器存储配置
type LexicalConfig struct {
	Type      string `mapstructure:"type"` // file | minio | memory
	Path      string `mapstructure:"path"`
	Endpoint  string `mapstructure:"endpoint"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Key       string `mapstructure:"key"`
	TopK      int    `mapstructure:"top_k"`
}

// CacheConfig 向量缓存配置
type CacheConfig struct {
	Type     string        `mapstructure:"type"` // none | memory | redis
	Addr     string        `mapstructure:"addr"`
	DB       int           `mapstructure:"db"`
	Password string        `mapstructure:"password"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Tracing TracingConfig `mapstructure:"tracing"`
}

// TracingConfig 链路追踪配置
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// LogsPath 运行记录文件路径
func (c *Config) LogsPath() string {
	return filepath.Join(c.DataFolder, "logs")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_folder", "data")
	v.SetDefault("show_logs", false)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
	v.SetDefault("pdf.extract_images", true)
	v.SetDefault("ingest.chunk_size", 1000)
	v.SetDefault("ingest.chunk_overlap", 200)
	v.SetDefault("ingest.headers_to_split_on", []map[string]string{
		{"prefix": "#", "name": "Header 1"},
		{"prefix": "##", "name": "Header 2"},
	})
	v.SetDefault("ingest.image_to_text_prompt",
		"Describe this image in detail. If it is a chart or a table, list the values it shows.")
	v.SetDefault("ingest.describe_images", true)
	v.SetDefault("model.provider", "ollama")
	v.SetDefault("model.base_url", "http://localhost:11434")
	v.SetDefault("model.answer_model", "qwen3:4b")
	v.SetDefault("model.vision_model", "qwen2.5vl:3b")
	v.SetDefault("model.embedding_model", "qwen3-embedding:4b")
	v.SetDefault("model.timeout", "120s")
	v.SetDefault("model.requests_per_minute", 0)
	v.SetDefault("storage.vector.type", "local")
	v.SetDefault("storage.vector.path", "")
	v.SetDefault("storage.vector.collection", "embeddings_collection")
	v.SetDefault("storage.vector.distance_threshold", 0.35)
	v.SetDefault("storage.vector.top_k", 3)
	v.SetDefault("storage.lexical.type", "file")
	v.SetDefault("storage.lexical.path", "")
	v.SetDefault("storage.lexical.bucket", "minirag")
	v.SetDefault("storage.lexical.key", "tfidf_retriever.json")
	v.SetDefault("storage.lexical.top_k", 3)
	v.SetDefault("storage.cache.type", "none")
	v.SetDefault("storage.cache.prefix", "minirag:")
	v.SetDefault("storage.cache.ttl", "0s")
	v.SetDefault("monitoring.tracing.service_name", "minirag")

	// 无默认值的键也需登记，否则 Unmarshal 读不到对应的环境变量
	for _, key := range []string{
		"log.file", "pdf.license_key", "model.api_key", "storage.vector.dsn",
		"storage.lexical.endpoint", "storage.lexical.region", "storage.lexical.access_key",
		"storage.lexical.secret_key", "storage.lexical.use_ssl", "storage.cache.addr",
		"storage.cache.db", "storage.cache.password", "monitoring.tracing.enable",
		"monitoring.tracing.export_endpoint", "monitoring.tracing.insecure",
	} {
		v.SetDefault(key, "")
	}
}

// LoadConfig 加载配置：.env -> 默认值 -> 配置文件 -> MINIRAG_ 环境变量。
// configPath 为空时仅在 DefaultConfigPath 存在时读取；显式指定但不存在则报错。
func LoadConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("无法读取 .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("MINIRAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := configPath
	if path == "" {
		if _, err := os.Stat(DefaultConfigPath); err == nil {
			path = DefaultConfigPath
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("无法读取配置文件: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	replaceEnvVars(&config)
	fillDerived(&config)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// replaceEnvVars 替换 ${ENV} 形式的密钥
func replaceEnvVars(config *Config) {
	for _, s := range []*string{
		&config.Model.APIKey,
		&config.Storage.Vector.DSN,
		&config.Storage.Lexical.AccessKey,
		&config.Storage.Lexical.SecretKey,
		&config.Storage.Cache.Password,
		&config.PDF.LicenseKey,
	} {
		if strings.HasPrefix(*s, "${") && strings.HasSuffix(*s, "}") {
			envVar := strings.TrimSuffix(strings.TrimPrefix(*s, "${"), "}")
			*s = os.Getenv(envVar)
		}
	}
}

// fillDerived 未配置的存储路径挂在 data_folder 下
func fillDerived(config *Config) {
	if config.Storage.Vector.Path == "" {
		config.Storage.Vector.Path = filepath.Join(config.DataFolder, "vectordb")
	}
	if config.Storage.Lexical.Path == "" {
		config.Storage.Lexical.Path = filepath.Join(config.DataFolder, "retriever")
	}
}

// Validate 校验数值配置
func (c *Config) Validate() error {
	if c.DataFolder == "" {
		return errors.New("data_folder 不能为空")
	}
	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("ingest.chunk_size 必须为正数: %d", c.Ingest.ChunkSize)
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap 必须在 [0, chunk_size) 内: %d", c.Ingest.ChunkOverlap)
	}
	if c.Storage.Vector.TopK <= 0 {
		return fmt.Errorf("storage.vector.top_k 必须为正数: %d", c.Storage.Vector.TopK)
	}
	return nil
}
