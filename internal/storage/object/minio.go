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

package object

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"mini-rag/pkg/errors"
)

// MinioConfig MinIO / S3 兼容存储配置
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// MinioStore 基于 minio-go 的对象存储；bucket 在首次写入时创建
type MinioStore struct {
	mc     *minio.Client
	bucket string
	region string

	bucketOnce sync.Once
	bucketErr  error
}

// NewMinioStore 创建客户端，不发起网络请求
func NewMinioStore(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio: endpoint 与 bucket 不能为空")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinioStore{mc: mc, bucket: cfg.Bucket, region: cfg.Region}, nil
}

func (s *MinioStore) ensureBucket(ctx context.Context) error {
	s.bucketOnce.Do(func() {
		exists, err := s.mc.BucketExists(ctx, s.bucket)
		if err != nil {
			s.bucketErr = fmt.Errorf("check bucket: %w", err)
			return
		}
		if !exists {
			if err := s.mc.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
				s.bucketErr = fmt.Errorf("create bucket: %w", err)
			}
		}
	})
	return s.bucketErr
}

func isNoSuchKey(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchBucket"
}

// Put 上传对象
func (s *MinioStore) Put(ctx context.Context, key string, data io.Reader, size int64) error {
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	_, err := s.mc.PutObject(ctx, s.bucket, key, data, size, minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("upload object %s: %w", key, err)
	}
	return nil
}

// Get 下载对象；先 Stat 以便把不存在映射为 ErrNotFound
func (s *MinioStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if _, err := s.mc.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return nil, errors.Wrapf(errors.ErrNotFound, "object %s", key)
		}
		return nil, fmt.Errorf("stat object %s: %w", key, err)
	}
	obj, err := s.mc.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("download object %s: %w", key, err)
	}
	return obj, nil
}

// Delete 删除对象
func (s *MinioStore) Delete(ctx context.Context, key string) error {
	err := s.mc.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && !isNoSuchKey(err) {
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}

// List 列出对象
func (s *MinioStore) List(ctx context.Context, prefix string) ([]*ObjectInfo, error) {
	var out []*ObjectInfo
	for obj := range s.mc.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			if isNoSuchKey(obj.Err) {
				return nil, nil
			}
			return nil, fmt.Errorf("list objects: %w", obj.Err)
		}
		out = append(out, &ObjectInfo{Key: obj.Key, Size: obj.Size, ModTime: obj.LastModified})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Exists 检查对象是否存在
func (s *MinioStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.mc.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isNoSuchKey(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat object %s: %w", key, err)
}

// Close minio 客户端无需关闭
func (s *MinioStore) Close() error {
	return nil
}
