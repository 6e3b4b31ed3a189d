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

	"mini-rag/pkg/config"
	"mini-rag/pkg/errors"
)

// NewStore 根据配置创建向量存储：local（本地 jsonl 集合）| postgres（pgvector）
func NewStore(ctx context.Context, cfg config.VectorConfig) (Store, error) {
	switch cfg.Type {
	case "", "local":
		s, err := NewLocalStore(cfg.Path, cfg.Collection, cfg.DistanceThreshold)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := NewPostgresStore(ctx, cfg.DSN, cfg.Collection, cfg.DistanceThreshold)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, errors.Unsupported("vector store", cfg.Type)
	}
}
