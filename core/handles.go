package core

import "sync"

// handleTable hands out opaque uint64 handles for resources. Each
// handle packs a slot index in the low half and a generation counter
// in the high half; the generation bumps on release so a stale handle
// from a disposed resource never resolves to a recycled slot. Handle
// zero is never issued and always resolves to nothing.
type handleTable struct {
	mu    sync.Mutex
	slots []handleSlot
	free  []uint32
}

type handleSlot struct {
	generation uint32
	live       bool
	value      interface{}
}

func newHandleTable() *handleTable {
	// Slot 0 is burned so the zero handle stays invalid.
	return &handleTable{slots: make([]handleSlot, 1)}
}

// acquire stores value and returns its handle.
func (t *handleTable) acquire(value interface{}) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var index uint32
	if n := len(t.free); n > 0 {
		index = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		index = uint32(len(t.slots))
		t.slots = append(t.slots, handleSlot{})
	}
	slot := &t.slots[index]
	slot.live = true
	slot.value = value
	return uint64(slot.generation)<<32 | uint64(index)
}

// lookup resolves a handle, returning false for the zero handle, a
// released handle, or a handle from a previous generation.
func (t *handleTable) lookup(handle uint64) (interface{}, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	index := uint32(handle)
	generation := uint32(handle >> 32)
	if index == 0 || index >= uint32(len(t.slots)) {
		return nil, false
	}
	slot := &t.slots[index]
	if !slot.live || slot.generation != generation {
		return nil, false
	}
	return slot.value, true
}

// release frees the slot behind the handle and returns its value so the
// caller can tear the resource down. Releasing an invalid or already
// released handle returns false.
func (t *handleTable) release(handle uint64) (interface{}, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	index := uint32(handle)
	generation := uint32(handle >> 32)
	if index == 0 || index >= uint32(len(t.slots)) {
		return nil, false
	}
	slot := &t.slots[index]
	if !slot.live || slot.generation != generation {
		return nil, false
	}
	value := slot.value
	slot.live = false
	slot.value = nil
	slot.generation++
	t.free = append(t.free, index)
	return value, true
}

// each visits every live resource. The callback runs under the table
// lock and must not call back into the table.
func (t *handleTable) each(fn func(handle uint64, value interface{})) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := 1; i < len(t.slots); i++ {
		if t.slots[i].live {
			fn(uint64(t.slots[i].generation)<<32|uint64(i), t.slots[i].value)
		}
	}
}

// count reports the number of live resources.
func (t *handleTable) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for i := 1; i < len(t.slots); i++ {
		if t.slots[i].live {
			n++
		}
	}
	return n
}
