package listview

import (
	"context"
	"sync"
	"time"
)

// Fetch loads the authoritative source collection.
type Fetch[T any] func(ctx context.Context) ([]T, error)

// WorkingSets holds one fetched source per key (a session and a view). Local
// mutations apply to the held copy; a refetch after the staleness window, or
// an explicit Invalidate, reconciles with the backend.
//
// A fetch that was in flight when a mutation touched its key never replaces
// the held set: its snapshot may predate the mutation.
type WorkingSets[T any] struct {
	mu        sync.Mutex
	sets      map[string]*workingSet[T]
	seq       uint64
	inflight  map[string]int
	marks     map[string]uint64 // last mutation per key, kept only while fetching
	staleness time.Duration
	now       func() time.Time
}

type workingSet[T any] struct {
	items     []T
	fetchedAt time.Time
	usedAt    time.Time
	stale     bool
}

// NewWorkingSets creates an empty registry. staleness is the tolerance
// window during which local mutations stand in for the backend state.
func NewWorkingSets[T any](staleness time.Duration) *WorkingSets[T] {
	return &WorkingSets[T]{
		sets:      map[string]*workingSet[T]{},
		inflight:  map[string]int{},
		marks:     map[string]uint64{},
		staleness: staleness,
		now:       time.Now,
	}
}

// Key builds a working-set key for one session and view.
func Key(session, view string) string {
	if session == "" {
		session = "public"
	}
	return session + "|" + view
}

// Load returns a copy of the working set, fetching when it is missing,
// stale, older than the staleness window, or force is set. A failed fetch
// leaves any held set untouched. When the key was mutated while the fetch
// ran, the held set wins and the fetched snapshot is not kept.
func (w *WorkingSets[T]) Load(ctx context.Context, key string, fetch Fetch[T], force bool) ([]T, error) {
	now := w.now()
	w.mu.Lock()
	ws, ok := w.sets[key]
	if ok && !force && !ws.stale && now.Sub(ws.fetchedAt) < w.staleness {
		ws.usedAt = now
		items := clone(ws.items)
		w.mu.Unlock()
		return items, nil
	}
	start := w.seq
	w.inflight[key]++
	w.mu.Unlock()

	items, err := fetch(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	raced := w.marks[key] > start
	if w.inflight[key]--; w.inflight[key] == 0 {
		delete(w.inflight, key)
		delete(w.marks, key)
	}
	if err != nil {
		return nil, err
	}
	if raced {
		if ws, ok := w.sets[key]; ok && !ws.stale {
			ws.usedAt = now
			return clone(ws.items), nil
		}
		return items, nil
	}
	w.sets[key] = &workingSet[T]{items: clone(items), fetchedAt: now, usedAt: now}
	return items, nil
}

// mark records a mutation of key for fetches still in flight. Callers hold mu.
func (w *WorkingSets[T]) mark(key string) {
	if w.inflight[key] > 0 {
		w.seq++
		w.marks[key] = w.seq
	}
}

// Update applies fn to the first held item matching match. It reports
// whether an item was changed.
func (w *WorkingSets[T]) Update(key string, match func(T) bool, fn func(*T)) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.mark(key)
	ws, ok := w.sets[key]
	if !ok {
		return false
	}
	for i := range ws.items {
		if match(ws.items[i]) {
			fn(&ws.items[i])
			return true
		}
	}
	return false
}

// Remove drops held items matching match, preserving the order of the rest.
func (w *WorkingSets[T]) Remove(key string, match func(T) bool) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.mark(key)
	ws, ok := w.sets[key]
	if !ok {
		return false
	}
	kept := ws.items[:0:0]
	for _, it := range ws.items {
		if !match(it) {
			kept = append(kept, it)
		}
	}
	removed := len(kept) != len(ws.items)
	ws.items = kept
	return removed
}

// Find returns a copy of the first held item matching match.
func (w *WorkingSets[T]) Find(key string, match func(T) bool) (T, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var zero T
	ws, ok := w.sets[key]
	if !ok {
		return zero, false
	}
	for _, it := range ws.items {
		if match(it) {
			return it, true
		}
	}
	return zero, false
}

// Invalidate marks the set stale; the next Load refetches.
func (w *WorkingSets[T]) Invalidate(key string) {
	w.mu.Lock()
	w.mark(key)
	if ws, ok := w.sets[key]; ok {
		ws.stale = true
	}
	w.mu.Unlock()
}

// Prune drops sets unused for longer than idle and returns how many went.
// Sets with a fetch in flight are kept.
func (w *WorkingSets[T]) Prune(idle time.Duration) int {
	cutoff := w.now().Add(-idle)
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for k, ws := range w.sets {
		if ws.usedAt.Before(cutoff) && w.inflight[k] == 0 {
			delete(w.sets, k)
			n++
		}
	}
	return n
}

// Len returns the number of held sets.
func (w *WorkingSets[T]) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.sets)
}

func clone[T any](in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	return out
}
