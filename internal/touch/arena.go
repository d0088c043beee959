package touch

// Handle addresses a slot in an Arena. A handle whose generation no longer
// matches the slot refers to a released value and never resolves.
type Handle struct {
	Index      uint32
	Generation uint32
}

// IsZero reports whether h is the zero handle, which never resolves.
func (h Handle) IsZero() bool { return h.Generation == 0 }

type slot[T any] struct {
	value      T
	generation uint32
	live       bool
}

// Arena stores values addressed by generational handles.
type Arena[T any] struct {
	slots []slot[T]
	free  []uint32
	count int
}

// Insert stores v and returns its handle.
func (a *Arena[T]) Insert(v T) Handle {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		a.slots = append(a.slots, slot[T]{})
		idx = uint32(len(a.slots) - 1)
	}
	s := &a.slots[idx]
	s.generation++
	s.value = v
	s.live = true
	a.count++
	return Handle{Index: idx, Generation: s.generation}
}

// Get resolves h. Arenas are normally instantiated with pointer types so
// the resolved value stays addressable across later inserts.
func (a *Arena[T]) Get(h Handle) (T, bool) {
	var zero T
	if int(h.Index) >= len(a.slots) {
		return zero, false
	}
	s := &a.slots[h.Index]
	if !s.live || s.generation != h.Generation {
		return zero, false
	}
	return s.value, true
}

// Remove releases h. Removing a stale handle is a no-op and returns false.
func (a *Arena[T]) Remove(h Handle) bool {
	if _, ok := a.Get(h); !ok {
		return false
	}
	s := &a.slots[h.Index]
	var zero T
	s.value = zero
	s.live = false
	a.free = append(a.free, h.Index)
	a.count--
	return true
}

// Len returns the number of live values.
func (a *Arena[T]) Len() int { return a.count }

// Each calls fn for every live value in slot order until fn returns false.
func (a *Arena[T]) Each(fn func(Handle, T) bool) {
	for i := range a.slots {
		s := &a.slots[i]
		if !s.live {
			continue
		}
		if !fn(Handle{Index: uint32(i), Generation: s.generation}, s.value) {
			return
		}
	}
}
