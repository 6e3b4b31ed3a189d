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

package lexical

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini-rag/internal/storage/object"
	"mini-rag/internal/storage/vector"
)

func doc(id, content string) *schema.Document {
	return &schema.Document{
		ID:       id,
		Content:  content,
		MetaData: map[string]any{vector.MetaFilePath: id + ".pdf", vector.MetaHeaders: "H"},
	}
}

func ids(docs []*schema.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func TestIndex_Query(t *testing.T) {
	idx := Build([]*schema.Document{
		doc("cats", "Cats are small domesticated felines. Cats purr."),
		doc("dogs", "Dogs are loyal animals that bark."),
		doc("fish", "Fish swim in water."),
		doc("mixed", "Cats and dogs can live together."),
	}, 3)

	hits := idx.Query("why do cats purr?")
	require.NotEmpty(t, hits)
	assert.Equal(t, "cats", hits[0].ID)
	assert.NotContains(t, ids(hits), "fish")

	assert.Empty(t, idx.Query("quantum chromodynamics"))
	assert.Empty(t, idx.Query("a"))
}

func TestIndex_LimitsToK(t *testing.T) {
	var docs []*schema.Document
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		docs = append(docs, doc(id, "shared term "+id+id))
	}
	idx := Build(docs, 0)
	assert.Equal(t, DefaultK, idx.K())
	assert.Len(t, idx.Query("shared"), DefaultK)
}

func TestIndex_CaseInsensitive(t *testing.T) {
	idx := Build([]*schema.Document{doc("x", "Kubernetes Operators"), doc("y", "unrelated text")}, 3)
	hits := idx.Query("KUBERNETES")
	require.Len(t, hits, 1)
	assert.Equal(t, "x", hits[0].ID)
}

func TestMerge(t *testing.T) {
	merged := Merge(
		[]*schema.Document{doc("1", "old one"), doc("2", "old two")},
		[]*schema.Document{doc("2", "new two"), doc("3", "new three")},
	)
	assert.Equal(t, []string{"1", "2", "3"}, ids(merged))
	assert.Equal(t, "new two", merged[1].Content)
}

func TestRepository_LoadSaveUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(object.NewMemoryStore(), "", 3)

	idx, ok, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, idx)

	s, ok, err := repo.Open(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, s)

	_, err = repo.Update(ctx, []*schema.Document{doc("a", "alpha beta")})
	require.NoError(t, err)
	_, err = repo.Update(ctx, []*schema.Document{doc("b", "gamma delta")})
	require.NoError(t, err)

	idx, ok, err = repo.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, ids(idx.Docs()))

	hits := idx.Query("gamma")
	require.Len(t, hits, 1)
	assert.Equal(t, "b.pdf", vector.StringMeta(hits[0], vector.MetaFilePath))
	assert.Equal(t, "H", vector.StringMeta(hits[0], vector.MetaHeaders))
	assert.False(t, vector.HasScore(hits[0]))
}

func TestRepository_FileStore(t *testing.T) {
	ctx := context.Background()
	store, err := object.NewFileStore(t.TempDir())
	require.NoError(t, err)
	repo := NewRepository(store, "tfidf_retriever.json", 3)

	require.NoError(t, repo.Save(ctx, Build([]*schema.Document{doc("a", "alpha beta")}, 3)))
	ok, err := store.Exists(ctx, "tfidf_retriever.json")
	require.NoError(t, err)
	assert.True(t, ok)

	idx, ok, err := repo.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, idx.Docs(), 1)
}
