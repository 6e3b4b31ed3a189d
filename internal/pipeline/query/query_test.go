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
	"encoding/json"
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini-rag/internal/pipeline"
	"mini-rag/internal/runlog"
	"mini-rag/internal/storage/lexical"
	"mini-rag/internal/storage/vector"
)

func chunk(id, file, headers string) *schema.Document {
	return &schema.Document{ID: id, Content: "text " + id, MetaData: map[string]any{vector.MetaFilePath: file, vector.MetaHeaders: headers}}
}

type countingSearcher struct {
	queries int
	hits    []*schema.Document
}

func (s *countingSearcher) Query(text string) []*schema.Document {
	s.queries++
	return s.hits
}

type fakeOpener struct {
	opens    int
	searcher *countingSearcher
	found    bool
	err      error
}

func (o *fakeOpener) Open(ctx context.Context) (lexical.Searcher, bool, error) {
	o.opens++
	if o.err != nil || !o.found {
		return nil, false, o.err
	}
	return o.searcher, true, nil
}

func askContext(docs []*schema.Document) *pipeline.Context {
	pc := pipeline.NewContext(map[string]any{pipeline.KeyQuestion: "what grew?"})
	pc.Set(pipeline.KeyLogRecord, runlog.NewRecord("trace", nil))
	if docs != nil {
		pc.Set(pipeline.KeyDocuments, docs)
	}
	return pc
}

func documents(t *testing.T, pc *pipeline.Context) []*schema.Document {
	t.Helper()
	docs, err := pipeline.Get[[]*schema.Document](pc, pipeline.KeyDocuments)
	require.NoError(t, err)
	return docs
}

func TestLexicalRetrieveStep_EnoughDocuments(t *testing.T) {
	opener := &fakeOpener{found: true, searcher: &countingSearcher{}}
	pc := askContext([]*schema.Document{chunk("1", "a", ""), chunk("2", "a", ""), chunk("3", "a", "")})

	require.NoError(t, NewLexicalRetrieveStep(opener, 3).Execute(context.Background(), pc))
	assert.Equal(t, 0, opener.opens)
	assert.Equal(t, 0, opener.searcher.queries)
	assert.Len(t, documents(t, pc), 3)
}

func TestLexicalRetrieveStep_FillsUpToTopK(t *testing.T) {
	searcher := &countingSearcher{hits: []*schema.Document{
		chunk("1", "a", ""), chunk("4", "b", ""), chunk("4", "b", ""), chunk("5", "c", ""), chunk("6", "d", ""),
	}}
	opener := &fakeOpener{found: true, searcher: searcher}
	pc := askContext([]*schema.Document{chunk("1", "a", "")})

	require.NoError(t, NewLexicalRetrieveStep(opener, 3).Execute(context.Background(), pc))
	assert.Equal(t, 1, searcher.queries)
	docs := documents(t, pc)
	require.Len(t, docs, 3)
	assert.Equal(t, []string{"1", "4", "5"}, []string{docs[0].ID, docs[1].ID, docs[2].ID})

	rec, _ := pc.Record()
	hits, _ := rec.Field("lexical_hits")
	assert.Equal(t, 2, hits)
}

func TestLexicalRetrieveStep_NoIndex(t *testing.T) {
	opener := &fakeOpener{found: false}
	pc := askContext(nil)
	require.NoError(t, NewLexicalRetrieveStep(opener, 3).Execute(context.Background(), pc))
	assert.Equal(t, 1, opener.opens)
	_, ok := pc.Lookup(pipeline.KeyDocuments)
	assert.False(t, ok)
}

func TestLexicalRetrieveStep_OpenError(t *testing.T) {
	opener := &fakeOpener{err: errors.New("bucket unreachable")}
	err := NewLexicalRetrieveStep(opener, 3).Execute(context.Background(), askContext(nil))
	assert.ErrorContains(t, err, "bucket unreachable")
}

type fakeStore struct {
	vector.Store
	hits  []*schema.Document
	gotK  int
	gotVe []float64
}

func (s *fakeStore) Query(ctx context.Context, vec []float64, topK int) ([]*schema.Document, error) {
	s.gotK, s.gotVe = topK, vec
	return s.hits, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) { return []float64{1, 0}, nil }
func (fakeEmbedder) Model() string                                          { return "fake" }

func TestEmbeddingAndVectorRetrieve(t *testing.T) {
	pc := askContext(nil)
	require.NoError(t, NewQuestionEmbeddingStep(fakeEmbedder{}).Execute(context.Background(), pc))

	store := &fakeStore{}
	require.NoError(t, NewVectorRetrieveStep(store, 0).Execute(context.Background(), pc))
	assert.Equal(t, DefaultTopK, store.gotK)
	assert.Equal(t, []float64{1, 0}, store.gotVe)
	assert.NotNil(t, documents(t, pc))
	assert.Empty(t, documents(t, pc))
}

func TestVectorRetrieve_MissingEmbedding(t *testing.T) {
	err := NewVectorRetrieveStep(&fakeStore{}, 3).Execute(context.Background(), askContext(nil))
	assert.True(t, pipeline.IsMissingKey(err))
}

func TestRetrievalLogStep(t *testing.T) {
	scored := chunk("v1", "a.pdf", "Intro").WithScore(0.9)
	pc := askContext([]*schema.Document{scored, chunk("l1", "b.pdf", "")})

	require.NoError(t, NewRetrievalLogStep().Execute(context.Background(), pc))
	rec, _ := pc.Record()
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var got struct {
		Retrieval []struct {
			File  string   `json:"file"`
			ID    string   `json:"id"`
			Score *float64 `json:"score"`
		} `json:"retrieval"`
	}
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got.Retrieval, 2)
	assert.Equal(t, "a.pdf", got.Retrieval[0].File)
	assert.Equal(t, "v1", got.Retrieval[0].ID)
	require.NotNil(t, got.Retrieval[0].Score)
	assert.InDelta(t, 0.9, *got.Retrieval[0].Score, 1e-9)
	assert.Nil(t, got.Retrieval[1].Score)
	assert.Contains(t, string(data), `"score":null`)
}

func TestRetrievalLogStep_NoDocuments(t *testing.T) {
	pc := askContext(nil)
	require.NoError(t, NewRetrievalLogStep().Execute(context.Background(), pc))
	rec, _ := pc.Record()
	v, ok := rec.Field("retrieval")
	require.True(t, ok)
	assert.Empty(t, v)
}

type fakeLLM struct {
	prompt string
	reply  string
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.reply, nil
}

func (f *fakeLLM) Model() string { return "fake" }

func TestDraftResponseStep(t *testing.T) {
	model := &fakeLLM{reply: "Revenue grew, a lot! Really?"}
	pc := askContext([]*schema.Document{
		chunk("1", "a.pdf", "Intro"), chunk("2", "a.pdf", "Intro"), chunk("3", "b.pdf", "Costs"),
	})

	require.NoError(t, NewDraftResponseStep(model).Execute(context.Background(), pc))
	assert.Contains(t, model.prompt, "text 1")
	assert.Contains(t, model.prompt, `"what grew?"`)

	out, err := pipeline.Get[string](pc, pipeline.KeyOutput)
	require.NoError(t, err)
	want := "\n# Response \nRevenue grew, a lot! Really?\n\n" +
		"| Document | Section | \n|-----------|---------|\n" +
		"| a.pdf | Intro |\n| b.pdf | Costs |\n----\n"
	assert.Equal(t, want, out)

	rec, _ := pc.Record()
	tokens, _ := rec.Field("draft_tokens")
	// "Revenue grew, a lot! Really?" -> [Revenue grew a lot Really ""]
	assert.Equal(t, 6, tokens)
}

func TestRenderResponse_NoDocuments(t *testing.T) {
	assert.Equal(t, "\n# Response \nnone\n\n| Document | Section | \n|-----------|---------|\n----\n", RenderResponse("none", nil))
}
