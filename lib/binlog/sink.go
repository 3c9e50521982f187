package binlog

import (
	"sync"

	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("binlog")

// --------------------------------------------------------------------------
// Interface
// --------------------------------------------------------------------------

// ISink receives the canonical entries of executed write commands.
// Append is called synchronously before the command is reported as done, a
// returned error fails the command. Entries of one call belong to one slot
// and have to be kept in order.
type ISink interface {
	Append(slotID uint64, entries [][]byte) error
}

// --------------------------------------------------------------------------
// Discard
// --------------------------------------------------------------------------

type discard struct{}

func (discard) Append(uint64, [][]byte) error { return nil }

// Discard is a sink that drops every entry
var Discard ISink = discard{}

// --------------------------------------------------------------------------
// Memory Log
// --------------------------------------------------------------------------

// MemoryLog keeps the entries per slot in memory
type MemoryLog struct {
	mu      sync.Mutex
	entries map[uint64][][]byte
}

// NewMemoryLog creates an empty memory log
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{entries: make(map[uint64][][]byte)}
}

func (m *MemoryLog) Append(slotID uint64, entries [][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.entries[slotID] = append(m.entries[slotID], append([]byte(nil), e...))
	}
	return nil
}

// Entries returns a copy of the entries of the slot in append order
func (m *MemoryLog) Entries(slotID uint64) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.entries[slotID]))
	copy(out, m.entries[slotID])
	return out
}

// Len returns the number of entries over all slots
func (m *MemoryLog) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, entries := range m.entries {
		n += len(entries)
	}
	return n
}
