package cluster

import (
	"hash/crc32"

	"github.com/ValentinKolb/sKV/lib/command"
)

// Router maps keys to slots
type Router struct {
	slots uint64
}

// NewRouter creates a router over n slots (at least one)
func NewRouter(n uint64) *Router {
	if n == 0 {
		n = 1
	}
	return &Router{slots: n}
}

// Slots returns the number of slots
func (r *Router) Slots() uint64 { return r.slots }

// SlotFor returns the slot owning key
func (r *Router) SlotFor(key string) uint64 {
	return uint64(crc32.ChecksumIEEE([]byte(command.HashTag(key)))) % r.slots
}

// group splits the keys of a multi-key command per slot. Groups are ordered by
// the first appearance of their slot, hints are the positions in keys.
func (r *Router) group(keys []string) ([]uint64, []command.HintKeys) {
	var (
		ids    []uint64
		groups []command.HintKeys
	)
	pos := make(map[uint64]int)
	for i, key := range keys {
		slot := r.SlotFor(key)
		g, ok := pos[slot]
		if !ok {
			g = len(groups)
			pos[slot] = g
			ids = append(ids, slot)
			groups = append(groups, command.HintKeys{})
		}
		groups[g].Keys = append(groups[g].Keys, key)
		groups[g].Hints = append(groups[g].Hints, i)
	}
	return ids, groups
}
