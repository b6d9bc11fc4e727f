package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"pdf-chat-be/internal/entity"
	"pdf-chat-be/internal/repository/contract"

	"github.com/google/uuid"
)

const (
	upsertBatchSize = 256
	// Extra hits fetched per query so ties at the k boundary are cut by
	// chunk index instead of server order.
	overFetchFactor = 2
)

var errNotFound = errors.New("qdrant: not found")

type Config struct {
	URL        string
	APIKey     string
	Collection string // alias the readers query
	Dimension  int    // used when a replace carries no vectors
	Timeout    time.Duration
}

// VectorIndex is a REST client for Qdrant. Readers always go through the
// alias; ReplaceAll fills a fresh physical collection and then repoints the
// alias in one request, so a query sees the old or the new collection.
type VectorIndex struct {
	url       string
	apiKey    string
	alias     string
	dimension int
	client    *http.Client

	// replaceMu serializes ReplaceAll so each call drops the collection the
	// previous call published.
	replaceMu sync.Mutex
}

var _ contract.VectorIndex = &VectorIndex{}

func NewVectorIndex(cfg Config) *VectorIndex {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &VectorIndex{
		url:       strings.TrimRight(cfg.URL, "/"),
		apiKey:    cfg.APIKey,
		alias:     cfg.Collection,
		dimension: cfg.Dimension,
		client:    &http.Client{Timeout: timeout},
	}
}

func (q *VectorIndex) ReplaceAll(ctx context.Context, chunks []entity.IndexedChunk) error {
	dimension := q.dimension
	if len(chunks) > 0 {
		dimension = len(chunks[0].Embedding)
	}
	if dimension <= 0 {
		return errors.New("qdrant: invalid dimension")
	}

	q.replaceMu.Lock()
	defer q.replaceMu.Unlock()

	previous, err := q.aliasTarget(ctx)
	if err != nil {
		return fmt.Errorf("resolve alias: %w", err)
	}

	physical := fmt.Sprintf("%s_%s", q.alias, strings.ReplaceAll(uuid.NewString(), "-", ""))
	if err := q.createCollection(ctx, physical, dimension); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	if err := q.upsert(ctx, physical, chunks); err != nil {
		q.dropCollection(physical)
		return fmt.Errorf("upsert points: %w", err)
	}

	if err := q.swapAlias(ctx, previous, physical); err != nil {
		q.dropCollection(physical)
		return fmt.Errorf("swap alias: %w", err)
	}

	if previous != "" && previous != physical {
		q.dropCollection(previous)
	}
	return nil
}

func (q *VectorIndex) Query(ctx context.Context, embedding []float32, k int) ([]entity.ScoredChunk, error) {
	if k <= 0 {
		k = contract.DefaultTopK
	}

	req := map[string]any{
		"vector":       embedding,
		"limit":        k * overFetchFactor,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	err := q.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/search", q.alias), req, &resp)
	if errors.Is(err, errNotFound) {
		return []entity.ScoredChunk{}, nil
	}
	if err != nil {
		return nil, err
	}

	results := make([]entity.ScoredChunk, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, entity.ScoredChunk{
			Chunk:      chunkFromPayload(r.Payload),
			Similarity: r.Score,
		})
	}

	// Qdrant does not promise an order among equal scores. A tie group larger
	// than the over-fetch margin can still be cut in server order.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].Chunk.SourceRef.Index < results[j].Chunk.SourceRef.Index
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (q *VectorIndex) Count(ctx context.Context) (int64, error) {
	var resp struct {
		Result struct {
			Count int64 `json:"count"`
		} `json:"result"`
	}
	err := q.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/count", q.alias), map[string]any{"exact": true}, &resp)
	if errors.Is(err, errNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func (q *VectorIndex) aliasTarget(ctx context.Context) (string, error) {
	var resp struct {
		Result struct {
			Aliases []struct {
				AliasName      string `json:"alias_name"`
				CollectionName string `json:"collection_name"`
			} `json:"aliases"`
		} `json:"result"`
	}
	if err := q.do(ctx, http.MethodGet, "/aliases", nil, &resp); err != nil {
		return "", err
	}
	for _, a := range resp.Result.Aliases {
		if a.AliasName == q.alias {
			return a.CollectionName, nil
		}
	}
	return "", nil
}

func (q *VectorIndex) createCollection(ctx context.Context, name string, dimension int) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return q.do(ctx, http.MethodPut, "/collections/"+name, body, nil)
}

func (q *VectorIndex) upsert(ctx context.Context, collection string, chunks []entity.IndexedChunk) error {
	for start := 0; start < len(chunks); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		points := make([]map[string]any, 0, end-start)
		for i := start; i < end; i++ {
			c := chunks[i]
			points = append(points, map[string]any{
				"id":     uuid.NewString(),
				"vector": c.Embedding,
				"payload": map[string]any{
					"text":     c.Chunk.Text,
					"document": c.Chunk.SourceRef.Document,
					"page":     c.Chunk.SourceRef.Page,
					"index":    c.Chunk.SourceRef.Index,
					"position": i,
				},
			})
		}

		body := map[string]any{"points": points}
		if err := q.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/points?wait=true", collection), body, nil); err != nil {
			return err
		}
	}
	return nil
}

func (q *VectorIndex) swapAlias(ctx context.Context, previous, next string) error {
	var actions []map[string]any
	if previous != "" {
		actions = append(actions, map[string]any{
			"delete_alias": map[string]any{"alias_name": q.alias},
		})
	}
	actions = append(actions, map[string]any{
		"create_alias": map[string]any{
			"collection_name": next,
			"alias_name":      q.alias,
		},
	})
	return q.do(ctx, http.MethodPost, "/collections/aliases", map[string]any{"actions": actions}, nil)
}

// dropCollection is best-effort and detached from the request context so a
// cancelled ingest still cleans up.
func (q *VectorIndex) dropCollection(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), q.client.Timeout)
	defer cancel()
	_ = q.do(ctx, http.MethodDelete, "/collections/"+name, nil, nil)
}

func (q *VectorIndex) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, q.url+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("qdrant %s %s failed: %s %s", method, path, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func chunkFromPayload(payload map[string]any) entity.Chunk {
	var c entity.Chunk
	if v, ok := payload["text"].(string); ok {
		c.Text = v
	}
	if v, ok := payload["document"].(string); ok {
		c.SourceRef.Document = v
	}
	if v, ok := payload["page"].(float64); ok {
		c.SourceRef.Page = int(v)
	}
	if v, ok := payload["index"].(float64); ok {
		c.SourceRef.Index = int(v)
	}
	return c
}
