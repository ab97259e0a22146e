package crdt

// Version is the causal metadata attached to every replicated write. It is a
// Lamport counter paired with the writing replica's actor ID. Versions are
// totally ordered (counter first, actor as tie-break), which makes every
// last-writer-wins slot converge to one deterministic winner regardless of
// arrival order.
type Version struct {
	Counter uint64 `cbor:"c" json:"counter"`
	Actor   string `cbor:"a" json:"actor"`
}

func (v Version) IsZero() bool {
	return v.Counter == 0 && v.Actor == ""
}

// Less reports whether v is ordered before o.
func (v Version) Less(o Version) bool {
	if v.Counter != o.Counter {
		return v.Counter < o.Counter
	}
	return v.Actor < o.Actor
}

// register is a last-writer-wins slot. Each scalar field of a component is an
// independent register, so concurrent writes to different fields never
// clobber each other.
type register struct {
	value any
	ver   Version
}

// set applies a write if its version wins. Applying the same write twice is a
// no-op the second time, which keeps merge idempotent.
func (r *register) set(value any, ver Version) bool {
	if !r.ver.Less(ver) {
		return false
	}
	r.value = value
	r.ver = ver
	return true
}
