package fanout

// idRing remembers the last len(ids) message ids of a room.
type idRing struct {
	ids  []string
	next int
	set  map[string]struct{}
}

func newIDRing(size int) *idRing {
	if size <= 0 {
		size = DefaultDedupWindow
	}
	return &idRing{
		ids: make([]string, size),
		set: make(map[string]struct{}, size),
	}
}

func (r *idRing) Contains(id string) bool {
	_, ok := r.set[id]
	return ok
}

// Add records id, evicting the oldest remembered id once full.
func (r *idRing) Add(id string) {
	if old := r.ids[r.next]; old != "" {
		delete(r.set, old)
	}
	r.ids[r.next] = id
	r.set[id] = struct{}{}
	r.next = (r.next + 1) % len(r.ids)
}
