// Package keyindex implements the secondary key index: a per-slot set of the keys
// that are live in at least one type namespace of the slot.
//
// The index lets a cluster enumerate keys per slot without an engine scan over
// every namespace. Writers call Add after a successful command that creates or
// refreshes a key and Remove after one that deletes it. Both calls are idempotent.
package keyindex

import (
	"sort"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/tidwall/match"
)

// IKeyIndex is the interface of the secondary key index
type IKeyIndex interface {
	// Add records that key is live in slot. Adding a present key is a no-op.
	Add(slot uint64, key string)
	// Remove forgets key in slot. Removing an absent key is a no-op.
	Remove(slot uint64, key string)
	// Has reports whether key is recorded in slot.
	Has(slot uint64, key string) bool
	// Keys returns the sorted keys of slot matching the glob pattern.
	Keys(slot uint64, pattern string) []string
	// Len returns the number of keys recorded in slot.
	Len(slot uint64) int
	// Slots returns the sorted ids of all slots holding at least one key.
	Slots() []uint64
}

type keySet = xsync.MapOf[string, struct{}]

// Index is the concurrent in-memory IKeyIndex
type Index struct {
	slots *xsync.MapOf[uint64, *keySet]
}

// New creates an empty index
func New() *Index {
	return &Index{
		slots: xsync.NewMapOf[uint64, *keySet](),
	}
}

func (idx *Index) set(slot uint64) *keySet {
	s, _ := idx.slots.LoadOrCompute(slot, func() *keySet {
		return xsync.NewMapOf[string, struct{}]()
	})
	return s
}

func (idx *Index) Add(slot uint64, key string) {
	idx.set(slot).Store(key, struct{}{})
}

func (idx *Index) Remove(slot uint64, key string) {
	if s, ok := idx.slots.Load(slot); ok {
		s.Delete(key)
	}
}

func (idx *Index) Has(slot uint64, key string) bool {
	s, ok := idx.slots.Load(slot)
	if !ok {
		return false
	}
	_, ok = s.Load(key)
	return ok
}

func (idx *Index) Keys(slot uint64, pattern string) []string {
	s, ok := idx.slots.Load(slot)
	if !ok {
		return []string{}
	}
	keys := make([]string, 0, s.Size())
	s.Range(func(key string, _ struct{}) bool {
		if match.Match(key, pattern) {
			keys = append(keys, key)
		}
		return true
	})
	sort.Strings(keys)
	return keys
}

func (idx *Index) Len(slot uint64) int {
	s, ok := idx.slots.Load(slot)
	if !ok {
		return 0
	}
	return s.Size()
}

func (idx *Index) Slots() []uint64 {
	ids := make([]uint64, 0, idx.slots.Size())
	idx.slots.Range(func(id uint64, s *keySet) bool {
		if s.Size() > 0 {
			ids = append(ids, id)
		}
		return true
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
