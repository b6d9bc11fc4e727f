package qdrant

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"pdf-chat-be/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePoint struct {
	Vector  []float64      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// fakeQdrant implements the handful of endpoints the index uses.
type fakeQdrant struct {
	mu          sync.Mutex
	collections map[string][]fakePoint
	aliases     map[string]string
	failUpsert  bool
	reverseTies bool
	lastLimit   int
	deleted     []string
}

func newFakeQdrant() *fakeQdrant {
	return &fakeQdrant{collections: map[string][]fakePoint{}, aliases: map[string]string{}}
}

func (f *fakeQdrant) resolve(name string) (string, bool) {
	if target, ok := f.aliases[name]; ok {
		name = target
	}
	_, ok := f.collections[name]
	return name, ok
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/aliases":
		type alias struct {
			AliasName      string `json:"alias_name"`
			CollectionName string `json:"collection_name"`
		}
		var list []alias
		for a, c := range f.aliases {
			list = append(list, alias{a, c})
		}
		json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"aliases": list}})

	case r.Method == http.MethodPost && r.URL.Path == "/collections/aliases":
		var body struct {
			Actions []map[string]map[string]string `json:"actions"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		for _, action := range body.Actions {
			if del, ok := action["delete_alias"]; ok {
				delete(f.aliases, del["alias_name"])
			}
			if create, ok := action["create_alias"]; ok {
				f.aliases[create["alias_name"]] = create["collection_name"]
			}
		}
		w.Write([]byte(`{"result":true}`))

	case r.Method == http.MethodPut && len(parts) == 2:
		f.collections[parts[1]] = []fakePoint{}
		w.Write([]byte(`{"result":true}`))

	case r.Method == http.MethodDelete && len(parts) == 2:
		delete(f.collections, parts[1])
		f.deleted = append(f.deleted, parts[1])
		w.Write([]byte(`{"result":true}`))

	case r.Method == http.MethodPut && len(parts) == 3 && parts[2] == "points":
		if f.failUpsert {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var body struct {
			Points []fakePoint `json:"points"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.collections[parts[1]] = append(f.collections[parts[1]], body.Points...)
		w.Write([]byte(`{"result":{"status":"completed"}}`))

	case r.Method == http.MethodPost && len(parts) == 4 && parts[3] == "search":
		name, ok := f.resolve(parts[1])
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var body struct {
			Vector []float64 `json:"vector"`
			Limit  int       `json:"limit"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.lastLimit = body.Limit
		type hit struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		}
		var hits []hit
		for _, p := range f.collections[name] {
			hits = append(hits, hit{cosine64(body.Vector, p.Vector), p.Payload})
		}
		if f.reverseTies {
			for i, j := 0, len(hits)-1; i < j; i, j = i+1, j-1 {
				hits[i], hits[j] = hits[j], hits[i]
			}
		}
		sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
		if len(hits) > body.Limit {
			hits = hits[:body.Limit]
		}
		json.NewEncoder(w).Encode(map[string]any{"result": hits})

	case r.Method == http.MethodPost && len(parts) == 4 && parts[3] == "count":
		name, ok := f.resolve(parts[1])
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"count": len(f.collections[name])}})

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeQdrant) aliasOf(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.aliases[name]
}

func (f *fakeQdrant) state() (collections []string, deleted []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for name := range f.collections {
		collections = append(collections, name)
	}
	return collections, append([]string(nil), f.deleted...)
}

func (f *fakeQdrant) setReverseTies(v bool) {
	f.mu.Lock()
	f.reverseTies = v
	f.mu.Unlock()
}

func (f *fakeQdrant) searchLimit() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastLimit
}

func (f *fakeQdrant) setFailUpsert(v bool) {
	f.mu.Lock()
	f.failUpsert = v
	f.mu.Unlock()
}

func cosine64(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func newIndex(t *testing.T) (*VectorIndex, *fakeQdrant) {
	t.Helper()
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return NewVectorIndex(Config{URL: srv.URL, Collection: "pdf_chat", Dimension: 2}), fake
}

func chunk(text string, index int, vec ...float32) entity.IndexedChunk {
	return entity.IndexedChunk{
		Chunk:     entity.Chunk{Text: text, SourceRef: entity.SourceRef{Document: "doc.pdf", Page: 1, Index: index}},
		Embedding: vec,
	}
}

func TestQueryBeforeFirstIngest(t *testing.T) {
	idx, _ := newIndex(t)

	got, err := idx.Query(context.Background(), []float32{1, 0}, 4)
	require.NoError(t, err)
	assert.Empty(t, got)

	count, err := idx.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestReplaceAllSwapsAliasAndDropsOldCollection(t *testing.T) {
	ctx := context.Background()
	idx, fake := newIndex(t)

	require.NoError(t, idx.ReplaceAll(ctx, []entity.IndexedChunk{chunk("old", 0, 1, 0)}))
	first := fake.aliasOf("pdf_chat")
	require.NotEmpty(t, first)

	require.NoError(t, idx.ReplaceAll(ctx, []entity.IndexedChunk{
		chunk("alpha", 0, 1, 0),
		chunk("beta", 1, 0, 1),
	}))

	second := fake.aliasOf("pdf_chat")
	assert.NotEqual(t, first, second)
	collections, deleted := fake.state()
	assert.Contains(t, deleted, first)
	assert.Equal(t, []string{second}, collections)

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	got, err := idx.Query(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "alpha", got[0].Chunk.Text)
	assert.Equal(t, entity.SourceRef{Document: "doc.pdf", Page: 1, Index: 0}, got[0].Chunk.SourceRef)
}

func TestReplaceAllFailureKeepsPreviousCollection(t *testing.T) {
	ctx := context.Background()
	idx, fake := newIndex(t)
	require.NoError(t, idx.ReplaceAll(ctx, []entity.IndexedChunk{chunk("keep", 0, 1, 0)}))
	live := fake.aliasOf("pdf_chat")

	fake.setFailUpsert(true)
	err := idx.ReplaceAll(ctx, []entity.IndexedChunk{chunk("lost", 0, 0, 1)})
	require.Error(t, err)

	assert.Equal(t, live, fake.aliasOf("pdf_chat"))
	collections, _ := fake.state()
	assert.Equal(t, []string{live}, collections)

	got, err := idx.Query(ctx, []float32{1, 0}, 4)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "keep", got[0].Chunk.Text)
}

func TestReplaceAllWithNoChunksEmptiesIndex(t *testing.T) {
	ctx := context.Background()
	idx, _ := newIndex(t)
	require.NoError(t, idx.ReplaceAll(ctx, []entity.IndexedChunk{chunk("a", 0, 1, 0)}))

	require.NoError(t, idx.ReplaceAll(ctx, nil))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestQueryTiesFollowChunkIndex(t *testing.T) {
	ctx := context.Background()
	idx, _ := newIndex(t)
	require.NoError(t, idx.ReplaceAll(ctx, []entity.IndexedChunk{
		chunk("c0", 0, 1, 0),
		chunk("c1", 1, 2, 0),
		chunk("c2", 2, 3, 0),
	}))

	got, err := idx.Query(ctx, []float32{1, 0}, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"c0", "c1", "c2"}, []string{got[0].Chunk.Text, got[1].Chunk.Text, got[2].Chunk.Text})
}

func TestQueryTiesAtLimitBoundaryFollowChunkIndex(t *testing.T) {
	ctx := context.Background()
	idx, fake := newIndex(t)
	require.NoError(t, idx.ReplaceAll(ctx, []entity.IndexedChunk{
		chunk("c0", 0, 1, 0),
		chunk("c1", 1, 1, 0),
		chunk("c2", 2, 1, 0),
	}))
	// The server hands back equal scores newest first.
	fake.setReverseTies(true)

	got, err := idx.Query(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"c0", "c1"}, []string{got[0].Chunk.Text, got[1].Chunk.Text})
	assert.Greater(t, fake.searchLimit(), 2)
}

func TestConcurrentReplaceAllLeavesOneCollection(t *testing.T) {
	ctx := context.Background()
	idx, fake := newIndex(t)
	require.NoError(t, idx.ReplaceAll(ctx, []entity.IndexedChunk{chunk("seed", 0, 1, 0)}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, idx.ReplaceAll(ctx, []entity.IndexedChunk{chunk("doc", i, 1, 0)}))
		}(i)
	}
	wg.Wait()

	collections, _ := fake.state()
	assert.Equal(t, []string{fake.aliasOf("pdf_chat")}, collections)

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
