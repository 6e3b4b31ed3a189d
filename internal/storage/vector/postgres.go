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

package vector

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/schema"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PostgresStore pgvector 向量存储，distance 为 <=> 余弦距离
type PostgresStore struct {
	pool      *pgxpool.Pool
	table     string
	threshold float64

	schemaMu   sync.Mutex
	schemaDone bool
}

// NewPostgresStore 创建连接池；表在首次使用时创建
func NewPostgresStore(ctx context.Context, dsn, collection string, threshold float64) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres vector store: dsn 不能为空")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("连接 postgres 失败: %w", err)
	}
	return &PostgresStore{
		pool:      pool,
		table:     pgx.Identifier{collection}.Sanitize(),
		threshold: threshold,
	}, nil
}

// ensureSchema 建表；失败不缓存，下次调用重试
func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	if s.schemaDone {
		return nil
	}
	for _, stmt := range s.schemaStatements() {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("初始化向量表失败: %w", err)
		}
	}
	s.schemaDone = true
	return nil
}

func (s *PostgresStore) schemaStatements() []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			file_path TEXT NOT NULL DEFAULT '',
			headers TEXT NOT NULL DEFAULT '',
			embedding vector NOT NULL
		)`, s.table),
	}
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

// SaveAll 批量 upsert
func (s *PostgresStore) SaveAll(ctx context.Context, docs []*schema.Document) error {
	if len(docs) == 0 {
		return nil
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, content, file_path, headers, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content, file_path = EXCLUDED.file_path,
			headers = EXCLUDED.headers, embedding = EXCLUDED.embedding`, s.table)

	batch := &pgx.Batch{}
	for _, d := range docs {
		vec := d.DenseVector()
		if len(vec) == 0 {
			return fmt.Errorf("chunk %s 缺少向量", d.ID)
		}
		batch.Queue(query, d.ID, d.Content, StringMeta(d, MetaFilePath), StringMeta(d, MetaHeaders),
			pgvector.NewVector(toFloat32(vec)))
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for _, d := range docs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("写入 chunk %s 失败: %w", d.ID, err)
		}
	}
	return nil
}

// Query 按余弦距离取 topK，再按阈值过滤
func (s *PostgresStore) Query(ctx context.Context, embedding []float64, topK int) ([]*schema.Document, error) {
	if topK <= 0 {
		return nil, nil
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT id, content, file_path, headers, embedding <=> $1 AS distance
		FROM %s ORDER BY distance LIMIT $2`, s.table), pgvector.NewVector(toFloat32(embedding)), topK)
	if err != nil {
		return nil, fmt.Errorf("向量检索失败: %w", err)
	}
	defer rows.Close()

	var out []*schema.Document
	for rows.Next() {
		var id, content, filePath, headers string
		var dist float64
		if err := rows.Scan(&id, &content, &filePath, &headers, &dist); err != nil {
			return nil, fmt.Errorf("读取检索结果失败: %w", err)
		}
		if !withinThreshold(dist, s.threshold) {
			continue
		}
		out = append(out, newHit(id, content, filePath, headers, dist))
	}
	return out, rows.Err()
}

// ListDocuments 去重排序后的源文件
func (s *PostgresStore) ListDocuments(ctx context.Context) ([]string, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT DISTINCT file_path FROM %s WHERE file_path <> '' ORDER BY file_path`, s.table))
	if err != nil {
		return nil, fmt.Errorf("查询文档列表失败: %w", err)
	}
	files, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("读取文档列表失败: %w", err)
	}
	return files, nil
}

// Close 关闭连接池
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
