package logbackend

import "sync"

// HeapBackend stores, per id, an ordered version history (append-only
// slice, newest at the tail), keyed in an ordinary Go map. Queries are
// O(1) amortised on the map lookup.
type HeapBackend struct {
	mu    sync.Mutex
	table map[uint64][][]byte
}

// NewHeap builds an empty heap-backed log.
func NewHeap() *HeapBackend {
	return &HeapBackend{table: make(map[uint64][][]byte)}
}

// Write appends content to id's version history, creating it if absent.
func (h *HeapBackend) Write(id uint64, content []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	cp := append([]byte(nil), content...)
	h.table[id] = append(h.table[id], cp)
	return nil
}

// Query returns the most recent version written for id.
func (h *HeapBackend) Query(id uint64) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	versions, ok := h.table[id]
	if !ok || len(versions) == 0 {
		return nil, ErrNotFound
	}
	return versions[len(versions)-1], nil
}

// Versions returns a copy of id's full version history, oldest first.
// Exposed for tests asserting that later writes accumulate onto the
// same id rather than replacing it.
func (h *HeapBackend) Versions(id uint64) [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([][]byte, len(h.table[id]))
	copy(out, h.table[id])
	return out
}
