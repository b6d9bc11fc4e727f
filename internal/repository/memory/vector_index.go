package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"pdf-chat-be/internal/entity"
	"pdf-chat-be/internal/repository/contract"
)

type snapshot struct {
	chunks []entity.IndexedChunk
	norms  []float64
}

// VectorIndex is an in-process index. Each ReplaceAll builds a new snapshot
// and swaps it in, so a Query runs against one collection from start to end.
type VectorIndex struct {
	mu      sync.RWMutex
	current *snapshot
}

var _ contract.VectorIndex = &VectorIndex{}

func NewVectorIndex() *VectorIndex {
	return &VectorIndex{current: &snapshot{}}
}

func (v *VectorIndex) ReplaceAll(ctx context.Context, chunks []entity.IndexedChunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	next := &snapshot{
		chunks: make([]entity.IndexedChunk, len(chunks)),
		norms:  make([]float64, len(chunks)),
	}
	dim := -1
	for i, c := range chunks {
		if dim == -1 {
			dim = len(c.Embedding)
		} else if len(c.Embedding) != dim {
			return fmt.Errorf("chunk %d has dimension %d, expected %d", i, len(c.Embedding), dim)
		}
		vec := make([]float32, len(c.Embedding))
		copy(vec, c.Embedding)
		next.chunks[i] = entity.IndexedChunk{Chunk: c.Chunk, Embedding: vec}
		next.norms[i] = l2norm(vec)
	}

	v.mu.Lock()
	v.current = next
	v.mu.Unlock()
	return nil
}

func (v *VectorIndex) Query(ctx context.Context, embedding []float32, k int) ([]entity.ScoredChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = contract.DefaultTopK
	}

	v.mu.RLock()
	snap := v.current
	v.mu.RUnlock()

	if len(snap.chunks) == 0 {
		return []entity.ScoredChunk{}, nil
	}
	if len(embedding) != len(snap.chunks[0].Embedding) {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(embedding), len(snap.chunks[0].Embedding))
	}

	qnorm := l2norm(embedding)
	scored := make([]entity.ScoredChunk, len(snap.chunks))
	for i, c := range snap.chunks {
		scored[i] = entity.ScoredChunk{
			Chunk:      c.Chunk,
			Similarity: cosine(embedding, c.Embedding, qnorm, snap.norms[i]),
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

func (v *VectorIndex) Count(ctx context.Context) (int64, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return int64(len(v.current.chunks)), nil
}

func l2norm(vec []float32) float64 {
	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// A zero vector has similarity 0 with everything.
func cosine(a, b []float32, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (na * nb)
}
