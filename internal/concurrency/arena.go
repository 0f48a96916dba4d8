package concurrency

import "github.com/dkoes-labs/pharmsearch/pkg/types/pharma"

// Arena is a per-worker bump allocator for CorrespondenceResult. Results are
// allocated here by a corresponder worker and read, by pointer, by a
// different goroutine (the ranker) after crossing Q₂. The arena must not be
// reset until a ShardHandle confirms the ranker has drained every result for
// that shard (§9's design note on bump arenas crossing thread boundaries).
type Arena struct {
	results []pharma.CorrespondenceResult
}

// NewArena constructs an Arena with room for an expected number of results,
// to minimize reallocation on the hot path.
func NewArena(expected int) *Arena {
	return &Arena{results: make([]pharma.CorrespondenceResult, 0, expected)}
}

// Alloc appends a zero-value CorrespondenceResult and returns a pointer to
// it. The pointer remains valid until Reset is called — growth of the
// backing slice only happens inside Alloc itself, never concurrently with a
// read of a previously-returned pointer, because each Arena is owned by
// exactly one producer goroutine.
func (a *Arena) Alloc() *pharma.CorrespondenceResult {
	a.results = append(a.results, pharma.CorrespondenceResult{})
	return &a.results[len(a.results)-1]
}

// Reset discards every allocation made so far. Callers must only call this
// after a ShardHandle confirms no consumer still holds a pointer into this
// arena.
func (a *Arena) Reset() {
	a.results = a.results[:0]
}

// ShardHandle tracks how many results a shard's workers have produced and
// how many the ranker has drained, so the arena backing those results is
// only reset once every CorrespondenceResult emitted for the shard has been
// consumed.
type ShardHandle struct {
	arena    *Arena
	produced int
	drained  int
}

// NewShardHandle binds a ShardHandle to the Arena it will eventually reset.
func NewShardHandle(arena *Arena) *ShardHandle {
	return &ShardHandle{arena: arena}
}

// NoteProduced records that one more result was allocated from this handle's
// arena and pushed to Q₂.
func (h *ShardHandle) NoteProduced() {
	h.produced++
}

// NoteDrained records that the ranker has finished reading one more result.
// Once every produced result has been drained, the arena is reset.
func (h *ShardHandle) NoteDrained() {
	h.drained++
	if h.drained >= h.produced {
		h.arena.Reset()
	}
}
