// Package flat provides an exact nearest-neighbour vector index with
// tombstone removal and on-disk persistence.
//
// Vectors are held in a dense in-memory slab addressed by position; an
// explicit ID-to-position mapping is maintained alongside because the
// slab addresses entries by position, not by book ID. Removal marks a
// tombstone which is filtered from search results; compaction reclaims
// the slots on Save once the garbage ratio is high enough.
package flat

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/yexubai/BookBrain/internal/core/domain"
	"github.com/yexubai/BookBrain/internal/core/ports/driven"
	"github.com/yexubai/BookBrain/internal/logger"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// compactGarbageRatio is the tombstone fraction above which Save
// compacts the slab before writing.
const compactGarbageRatio = 0.25

const (
	manifestFile = "manifest.json"
	vectorsFile  = "vectors.bin"
)

// manifest is the persisted ID-mapping table. It is invalid without
// its companion vectors.bin, and rejected when the recorded model does
// not match the active configuration.
type manifest struct {
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions"`
	IDs        []string `json:"ids"`
	Tombstones []int    `json:"tombstones,omitempty"`
}

// Index is a flat cosine-similarity index.
type Index struct {
	mu        sync.RWMutex
	dir       string
	model     string
	dim       int
	vectors   [][]float32
	ids       []string       // position -> book ID
	positions map[string]int // book ID -> position
	dead      map[int]bool   // tombstoned positions
	closed    bool
}

// New creates an empty index persisting under dir. The model name and
// dimensionality are recorded and validated on Load.
func New(dir, model string, dimensions int) (*Index, error) {
	if dir == "" {
		return nil, fmt.Errorf("flat: %w: directory is empty", domain.ErrInvalidInput)
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("flat: %w: dimensions must be positive", domain.ErrInvalidInput)
	}
	return &Index{
		dir:       dir,
		model:     model,
		dim:       dimensions,
		positions: make(map[string]int),
		dead:      make(map[int]bool),
	}, nil
}

// Upsert inserts or replaces the vector for the given book ID.
// The vector is L2-normalised on insert so search reduces to a dot
// product.
func (idx *Index) Upsert(_ context.Context, id string, embedding []float32) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return domain.ErrIndexClosed
	}
	if id == "" {
		return fmt.Errorf("flat: %w: empty id", domain.ErrInvalidInput)
	}
	if len(embedding) != idx.dim {
		return fmt.Errorf("flat: %w: got %d, index has %d",
			domain.ErrDimensionMismatch, len(embedding), idx.dim)
	}

	vec := normalize(embedding)

	if pos, ok := idx.positions[id]; ok {
		idx.vectors[pos] = vec
		delete(idx.dead, pos)
		return nil
	}

	idx.vectors = append(idx.vectors, vec)
	idx.ids = append(idx.ids, id)
	idx.positions[id] = len(idx.vectors) - 1
	return nil
}

// Remove tombstones the entry for the given book ID. Removing an
// unknown ID is a no-op.
func (idx *Index) Remove(_ context.Context, id string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return domain.ErrIndexClosed
	}

	pos, ok := idx.positions[id]
	if !ok {
		return nil
	}
	idx.dead[pos] = true
	delete(idx.positions, id)
	return nil
}

// Search returns the k most similar live entries, best first, ties
// broken by ascending ID.
func (idx *Index) Search(_ context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return nil, domain.ErrIndexClosed
	}
	if len(query) != idx.dim {
		return nil, fmt.Errorf("flat: %w: query has %d, index has %d",
			domain.ErrDimensionMismatch, len(query), idx.dim)
	}
	if k <= 0 {
		return nil, nil
	}

	q := normalize(query)

	hits := make([]driven.VectorHit, 0, len(idx.vectors))
	for pos, vec := range idx.vectors {
		if idx.dead[pos] {
			continue
		}
		hits = append(hits, driven.VectorHit{
			ID:         idx.ids[pos],
			Similarity: clampScore(dot(q, vec)),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ID < hits[j].ID
	})

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Rebuild replaces the entire index contents with the given entries.
func (idx *Index) Rebuild(_ context.Context, entries []driven.VectorEntry) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return domain.ErrIndexClosed
	}

	vectors := make([][]float32, 0, len(entries))
	ids := make([]string, 0, len(entries))
	positions := make(map[string]int, len(entries))

	for _, e := range entries {
		if len(e.Embedding) != idx.dim {
			return fmt.Errorf("flat: rebuild entry %s: %w", e.ID, domain.ErrDimensionMismatch)
		}
		if _, dup := positions[e.ID]; dup {
			return fmt.Errorf("flat: rebuild: %w: duplicate id %s", domain.ErrInvalidInput, e.ID)
		}
		positions[e.ID] = len(vectors)
		vectors = append(vectors, normalize(e.Embedding))
		ids = append(ids, e.ID)
	}

	idx.vectors = vectors
	idx.ids = ids
	idx.positions = positions
	idx.dead = make(map[int]bool)

	logger.Info("Vector index rebuilt: %d entries", len(entries))
	return nil
}

// Len returns the number of live entries.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors) - len(idx.dead)
}

// ModelName returns the embedding model identifier for this index.
func (idx *Index) ModelName() string {
	return idx.model
}

// Save persists the slab and ID mapping. Both files are written
// together; a manifest without its vectors is invalid.
func (idx *Index) Save() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return domain.ErrIndexClosed
	}

	if len(idx.vectors) > 0 &&
		float64(len(idx.dead))/float64(len(idx.vectors)) > compactGarbageRatio {
		idx.compactLocked()
	}

	if err := os.MkdirAll(idx.dir, 0o755); err != nil {
		return fmt.Errorf("flat: creating index dir: %w", err)
	}

	tombstones := make([]int, 0, len(idx.dead))
	for pos := range idx.dead {
		tombstones = append(tombstones, pos)
	}
	sort.Ints(tombstones)

	m := manifest{
		Model:      idx.model,
		Dimensions: idx.dim,
		IDs:        idx.ids,
		Tombstones: tombstones,
	}
	manifestJSON, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("flat: encoding manifest: %w", err)
	}

	buf := make([]byte, 0, len(idx.vectors)*idx.dim*4)
	for _, vec := range idx.vectors {
		buf = append(buf, float32SliceToBytes(vec)...)
	}

	if err := writeAtomic(filepath.Join(idx.dir, vectorsFile), buf); err != nil {
		return fmt.Errorf("flat: writing vectors: %w", err)
	}
	if err := writeAtomic(filepath.Join(idx.dir, manifestFile), manifestJSON); err != nil {
		return fmt.Errorf("flat: writing manifest: %w", err)
	}

	logger.Debug("Vector index saved: %d vectors, %d tombstones", len(idx.vectors), len(idx.dead))
	return nil
}

// Load restores persisted state. A missing index is not an error; the
// index simply starts empty. A model or dimensionality mismatch
// returns domain.ErrIndexModelMismatch and leaves the index unchanged.
func (idx *Index) Load() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return domain.ErrIndexClosed
	}

	manifestJSON, err := os.ReadFile(filepath.Join(idx.dir, manifestFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("flat: reading manifest: %w", err)
	}

	var m manifest
	if err := json.Unmarshal(manifestJSON, &m); err != nil {
		return fmt.Errorf("flat: decoding manifest: %w", err)
	}

	if m.Model != idx.model || m.Dimensions != idx.dim {
		return fmt.Errorf("flat: index has model %q dim %d, active config is %q dim %d: %w",
			m.Model, m.Dimensions, idx.model, idx.dim, domain.ErrIndexModelMismatch)
	}

	blob, err := os.ReadFile(filepath.Join(idx.dir, vectorsFile))
	if err != nil {
		return fmt.Errorf("flat: reading vectors: %w", err)
	}
	if len(blob) != len(m.IDs)*idx.dim*4 {
		return fmt.Errorf("flat: vectors file has %d bytes, manifest expects %d entries of dim %d",
			len(blob), len(m.IDs), idx.dim)
	}

	vectors := make([][]float32, len(m.IDs))
	positions := make(map[string]int, len(m.IDs))
	dead := make(map[int]bool, len(m.Tombstones))
	for _, pos := range m.Tombstones {
		if pos < 0 || pos >= len(m.IDs) {
			return fmt.Errorf("flat: manifest tombstone %d out of range", pos)
		}
		dead[pos] = true
	}
	stride := idx.dim * 4
	for pos, id := range m.IDs {
		vectors[pos] = bytesToFloat32Slice(blob[pos*stride : (pos+1)*stride])
		if !dead[pos] {
			positions[id] = pos
		}
	}

	idx.vectors = vectors
	idx.ids = m.IDs
	idx.positions = positions
	idx.dead = dead

	logger.Debug("Vector index loaded: %d vectors, %d tombstones", len(vectors), len(dead))
	return nil
}

// Close releases resources. The index is not saved implicitly.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.closed = true
	return nil
}

// compactLocked rewrites the slab without tombstoned slots.
// Caller must hold the write lock.
func (idx *Index) compactLocked() {
	live := len(idx.vectors) - len(idx.dead)
	vectors := make([][]float32, 0, live)
	ids := make([]string, 0, live)
	positions := make(map[string]int, live)

	for pos, vec := range idx.vectors {
		if idx.dead[pos] {
			continue
		}
		positions[idx.ids[pos]] = len(vectors)
		vectors = append(vectors, vec)
		ids = append(ids, idx.ids[pos])
	}

	idx.vectors = vectors
	idx.ids = ids
	idx.positions = positions
	idx.dead = make(map[int]bool)
}

// normalize returns an L2-normalised copy of the vector.
func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(vec))
	if norm == 0 {
		copy(out, vec)
		return out
	}
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// clampScore maps raw cosine similarity into [0,1]. Negative
// similarities are meaningless for ranking here and clamp to zero.
func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// float32SliceToBytes converts a []float32 to little-endian bytes.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// writeAtomic writes data via a temp file and rename so a crash
// mid-write never leaves a torn file behind.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
