package store

import (
	"encoding/gob"
	"math"
	"os"
	"sync"

	"github.com/coder/hnsw"

	"github.com/qmd-dev/qmd/internal/qmderr"
)

// vectorIndex is the companion nearest-neighbour structure: a hnsw
// graph, persisted as a file next to the main SQL database and
// parameterised by a single embedding dimension. Keys are "hash:seq"
// strings so the graph and the content_vectors metadata table can be
// reconciled key-for-key.
type vectorIndex struct {
	mu      sync.RWMutex
	path    string
	dim     int
	graph   *hnsw.Graph[string]
	vectors map[string][]float32 // kept in memory so the graph can be rebuilt/persisted without relying on hnsw's internal wire format
	dirty   bool
}

type persistedVectorIndex struct {
	Dim     int
	Vectors map[string][]float32
}

func openVectorIndex(path string) (*vectorIndex, error) {
	vi := &vectorIndex{path: path, vectors: make(map[string][]float32), graph: hnsw.NewGraph[string]()}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return vi, nil
	}
	if err != nil {
		return nil, qmderr.External(qmderr.CodeIO, err)
	}
	defer f.Close()

	var p persistedVectorIndex
	if err := gob.NewDecoder(f).Decode(&p); err != nil {
		return nil, qmderr.External(qmderr.CodeIO, err)
	}
	vi.dim = p.Dim
	vi.vectors = p.Vectors
	if vi.vectors == nil {
		vi.vectors = make(map[string][]float32)
	}
	for key, vec := range vi.vectors {
		vi.graph.Add(hnsw.MakeNode(key, vec))
	}
	return vi, nil
}

func (vi *vectorIndex) save() error {
	vi.mu.Lock()
	defer vi.mu.Unlock()
	if !vi.dirty {
		return nil
	}
	f, err := os.Create(vi.path)
	if err != nil {
		return qmderr.External(qmderr.CodeIO, err)
	}
	defer f.Close()
	p := persistedVectorIndex{Dim: vi.dim, Vectors: vi.vectors}
	if err := gob.NewEncoder(f).Encode(&p); err != nil {
		return qmderr.External(qmderr.CodeIO, err)
	}
	vi.dirty = false
	return nil
}

func (vi *vectorIndex) dimension() int {
	vi.mu.RLock()
	defer vi.mu.RUnlock()
	return vi.dim
}

func (vi *vectorIndex) setDimension(dim int) {
	vi.mu.Lock()
	defer vi.mu.Unlock()
	vi.dim = dim
}

// ensureDimension records the dimension on first use; if an
// incompatible dimension is requested, the graph is dropped and
// rebuilt.
func (vi *vectorIndex) ensureDimension(dim int) (rebuilt bool) {
	vi.mu.Lock()
	defer vi.mu.Unlock()
	if vi.dim == 0 {
		vi.dim = dim
		return false
	}
	if vi.dim == dim {
		return false
	}
	vi.dim = dim
	vi.graph = hnsw.NewGraph[string]()
	vi.vectors = make(map[string][]float32)
	vi.dirty = true
	return true
}

func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = v / norm
	}
	return out
}

func (vi *vectorIndex) insert(key string, vec []float32) error {
	vi.mu.Lock()
	defer vi.mu.Unlock()
	if vi.dim != 0 && len(vec) != vi.dim {
		return &ErrDimensionMismatch{Expected: vi.dim, Got: len(vec)}
	}
	normed := normalize(vec)
	vi.graph.Add(hnsw.MakeNode(key, normed))
	vi.vectors[key] = normed
	vi.dirty = true
	return nil
}

func (vi *vectorIndex) delete(key string) {
	vi.mu.Lock()
	defer vi.mu.Unlock()
	vi.graph.Delete(key) // lazy deletion tolerated by coder/hnsw
	delete(vi.vectors, key)
	vi.dirty = true
}

// reset drops the graph and dimension entirely, used by the force-embed
// path, which rediscovers the dimension from the first freshly embedded
// chunk rather than keeping the old dimension, against which insert
// rejects a mismatched vector.
func (vi *vectorIndex) reset() {
	vi.mu.Lock()
	defer vi.mu.Unlock()
	vi.dim = 0
	vi.graph = hnsw.NewGraph[string]()
	vi.vectors = make(map[string][]float32)
	vi.dirty = true
}

func (vi *vectorIndex) keys() map[string]bool {
	vi.mu.RLock()
	defer vi.mu.RUnlock()
	out := make(map[string]bool, len(vi.vectors))
	for k := range vi.vectors {
		out[k] = true
	}
	return out
}

type vectorHit struct {
	Key   string
	Score float64 // cosine similarity mapped to [0,1] via (1+cos)/2
}

func (vi *vectorIndex) search(queryVec []float32, k int) ([]vectorHit, error) {
	vi.mu.RLock()
	defer vi.mu.RUnlock()
	if vi.dim != 0 && len(queryVec) != vi.dim {
		return nil, &ErrDimensionMismatch{Expected: vi.dim, Got: len(queryVec)}
	}
	normed := normalize(queryVec)
	nodes := vi.graph.Search(normed, k)
	hits := make([]vectorHit, 0, len(nodes))
	for _, n := range nodes {
		vec, ok := vi.vectors[n.Key]
		if !ok {
			continue // lazily-deleted node still resident in the graph
		}
		cos := dot(normed, vec)
		hits = append(hits, vectorHit{Key: n.Key, Score: (1 + cos) / 2})
	}
	return hits, nil
}

func dot(a, b []float32) float64 {
	var sum float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
