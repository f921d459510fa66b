package physics

import "sync"

// OwnerKind names the higher level system a body belongs to.
type OwnerKind uint8

const (
	OwnerNone OwnerKind = iota
	OwnerComponent
	OwnerScript
)

func (k OwnerKind) String() string {
	switch k {
	case OwnerNone:
		return "none"
	case OwnerComponent:
		return "component"
	case OwnerScript:
		return "script"
	default:
		return "unknown"
	}
}

// Owner is an advisory back reference: a kind plus a handle into that kind's
// registry. It never keeps the owner alive.
type Owner struct {
	Kind   OwnerKind
	Handle uint64
}

func (o Owner) IsZero() bool { return o.Kind == OwnerNone }

// OwnerRegistry maps owner handles of one kind to values, so event and query
// results carrying a body can be traced back to the object that wraps it.
type OwnerRegistry[T any] struct {
	kind  OwnerKind
	mu    sync.RWMutex
	next  uint64
	items map[uint64]T
}

func NewOwnerRegistry[T any](kind OwnerKind) *OwnerRegistry[T] {
	return &OwnerRegistry[T]{
		kind:  kind,
		items: make(map[uint64]T),
	}
}

func (r *OwnerRegistry[T]) Kind() OwnerKind { return r.kind }

// Register stores v and returns the owner tag pointing at it.
func (r *OwnerRegistry[T]) Register(v T) Owner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.items[r.next] = v
	return Owner{Kind: r.kind, Handle: r.next}
}

// Resolve looks the tag up. Tags of another kind never resolve.
func (r *OwnerRegistry[T]) Resolve(o Owner) (T, bool) {
	var zero T
	if o.Kind != r.kind {
		return zero, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.items[o.Handle]
	return v, ok
}

func (r *OwnerRegistry[T]) Release(o Owner) {
	if o.Kind != r.kind {
		return
	}
	r.mu.Lock()
	delete(r.items, o.Handle)
	r.mu.Unlock()
}

// ResolveBody resolves the owner of kind r.Kind() recorded on body.
func (r *OwnerRegistry[T]) ResolveBody(body Internal) (T, bool) {
	o, ok := body.Owner(r.kind)
	if !ok {
		var zero T
		return zero, false
	}
	return r.Resolve(o)
}
