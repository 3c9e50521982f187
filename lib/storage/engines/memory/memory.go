package memory

import (
	"bytes"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/sKV/lib/storage"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/tidwall/match"
	"github.com/zhangyunhao116/skipmap"
)

// --------------------------------------------------------------------------
// Core structures
// --------------------------------------------------------------------------

// entry is a value with its absolute expiration (unix seconds, 0 = none)
type entry struct {
	value    []byte
	expireAt int64
}

// alive reports whether the entry is not expired at now
func (e entry) alive(now int64) bool {
	return e.expireAt == 0 || e.expireAt > now
}

type namespace = skipmap.FuncMap[string, entry]

// cursorState is the position a scan cursor continues from
type cursorState struct {
	typeIdx  int
	startKey string
}

// Slot is an in-memory multi-column-family engine.
// Every namespace is an ordered concurrent skip list, so reads never block.
// Writes are serialized by a single mutex which makes every conditional
// write atomic with respect to its check.
type Slot struct {
	mu         sync.Mutex
	namespaces map[storage.DataType]*namespace
	clock      func() time.Time

	cursors    *xsync.MapOf[int64, cursorState]
	nextCursor atomic.Int64
	cursorMu   sync.Mutex
	cursorFIFO []int64 // issued cursors, oldest first
	maxCursors int
}

// DefaultMaxCursors is the number of SCAN cursors a slot remembers
const DefaultMaxCursors = 5000

// Options configures the memory engine
type Options struct {
	Clock      func() time.Time // Wall clock used for expiration (nil = time.Now)
	MaxCursors int              // Cached SCAN cursors, the oldest is evicted first (<= 0 = DefaultMaxCursors)
}

// DefaultOptions returns the default memory engine options
func DefaultOptions() *Options {
	return &Options{
		Clock:      time.Now,
		MaxCursors: DefaultMaxCursors,
	}
}

// NewMemorySlot creates an empty slot with the given options (optional)
func NewMemorySlot(opts *Options) *Slot {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	maxCursors := opts.MaxCursors
	if maxCursors <= 0 {
		maxCursors = DefaultMaxCursors
	}

	namespaces := make(map[storage.DataType]*namespace, len(storage.ResolutionOrder))
	for _, dt := range storage.ResolutionOrder {
		namespaces[dt] = skipmap.NewFunc[string, entry](func(a, b string) bool {
			return a < b
		})
	}

	return &Slot{
		namespaces: namespaces,
		clock:      opts.Clock,
		cursors:    xsync.NewMapOf[int64, cursorState](),
		maxCursors: maxCursors,
	}
}

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

func (s *Slot) now() int64 {
	return s.clock().Unix()
}

func (s *Slot) strings() *namespace {
	return s.namespaces[storage.DataTypeStrings]
}

// load returns the live entry of key in the namespace
func (s *Slot) load(dt storage.DataType, key string, now int64) (entry, bool) {
	e, ok := s.namespaces[dt].Load(key)
	if !ok || !e.alive(now) {
		return entry{}, false
	}
	return e, true
}

// liveAnywhere reports whether the key is live in at least one namespace
func (s *Slot) liveAnywhere(key string, now int64) bool {
	for _, dt := range storage.ResolutionOrder {
		if _, ok := s.load(dt, key, now); ok {
			return true
		}
	}
	return false
}

// store writes a copy of value, ttl > 0 sets the expiration relative to now
func (s *Slot) store(key string, value []byte, ttl int64, now int64) {
	e := entry{value: copyBytes(value)}
	if ttl > 0 {
		e.expireAt = now + ttl
	}
	s.strings().Store(key, e)
}

func copyBytes(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

func notFound() error {
	return storage.NewError(storage.RetCNotFound, "")
}

// Put stores a value in any namespace. The non-string namespaces are opaque to
// the command layer, Put is the only way to populate them.
func (s *Slot) Put(dt storage.DataType, key string, value []byte, ttl int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := entry{value: copyBytes(value)}
	if ttl > 0 {
		e.expireAt = s.now() + ttl
	}
	s.namespaces[dt].Store(key, e)
}

// --------------------------------------------------------------------------
// ISlot Interface Methods - Strings Write Operations (docs see storage.ISlot)
// --------------------------------------------------------------------------

func (s *Slot) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store(key, value, 0, s.now())
	return nil
}

func (s *Slot) Setxx(key string, value []byte, ttl int64) (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if _, ok := s.load(storage.DataTypeStrings, key, now); !ok {
		return 0, nil
	}
	s.store(key, value, ttl, now)
	return 1, nil
}

func (s *Slot) Setnx(key string, value []byte, ttl int64) (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if _, ok := s.load(storage.DataTypeStrings, key, now); ok {
		return 0, nil
	}
	s.store(key, value, ttl, now)
	return 1, nil
}

func (s *Slot) Setvx(key string, target, value []byte, ttl int64) (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	old, ok := s.load(storage.DataTypeStrings, key, now)
	if !ok {
		return 0, nil
	}
	if !bytes.Equal(old.value, target) {
		return -1, nil
	}
	s.store(key, value, ttl, now)
	return 1, nil
}

func (s *Slot) Setex(key string, value []byte, ttl int64) error {
	if ttl <= 0 {
		return storage.NewError(storage.RetCInvalidArgument, "invalid expire time")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store(key, value, ttl, s.now())
	return nil
}

func (s *Slot) PKSetexAt(key string, value []byte, timestamp int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timestamp <= s.now() {
		s.strings().Delete(key)
		return nil
	}
	s.strings().Store(key, entry{value: copyBytes(value), expireAt: timestamp})
	return nil
}

func (s *Slot) GetSet(key string, value []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var old []byte
	if e, ok := s.load(storage.DataTypeStrings, key, now); ok {
		old = e.value
	}
	s.store(key, value, 0, now)
	return old, nil
}

func (s *Slot) Incrby(key string, by int64) (int64, error) {
	return s.add(key, by)
}

func (s *Slot) Decrby(key string, by int64) (int64, error) {
	if by == math.MinInt64 {
		return 0, storage.NewError(storage.RetCOverflow, "Overflow")
	}
	return s.add(key, -by)
}

// add is the shared implementation of Incrby and Decrby, the expiration of the key is kept
func (s *Slot) add(key string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	e, ok := s.load(storage.DataTypeStrings, key, now)
	var current int64
	if ok {
		v, err := strconv.ParseInt(string(e.value), 10, 64)
		if err != nil {
			return 0, storage.NewError(storage.RetCNotInteger, "Value is not a integer")
		}
		current = v
	}

	if (delta > 0 && current > math.MaxInt64-delta) || (delta < 0 && current < math.MinInt64-delta) {
		return 0, storage.NewError(storage.RetCOverflow, "Overflow")
	}

	current += delta
	e.value = strconv.AppendInt(nil, current, 10)
	s.strings().Store(key, e)
	return current, nil
}

func (s *Slot) Incrbyfloat(key string, by string) (string, error) {
	delta, err := strconv.ParseFloat(by, 64)
	if err != nil {
		return "", storage.NewError(storage.RetCNotFloat, "Value is not a valid float")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	e, ok := s.load(storage.DataTypeStrings, key, now)
	var current float64
	if ok {
		v, err := strconv.ParseFloat(string(e.value), 64)
		if err != nil {
			return "", storage.NewError(storage.RetCNotFloat, "Value is not a valid float")
		}
		current = v
	}

	result := current + delta
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return "", storage.NewError(storage.RetCOverflow, "Overflow")
	}

	formatted := strconv.FormatFloat(result, 'f', -1, 64)
	e.value = []byte(formatted)
	s.strings().Store(key, e)
	return formatted, nil
}

func (s *Slot) Append(key string, value []byte) (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	e, _ := s.load(storage.DataTypeStrings, key, now)
	if len(e.value) > storage.MaxStringSize-len(value) {
		return 0, storage.NewError(storage.RetCInvalidArgument, "string exceeds maximum allowed size")
	}
	merged := make([]byte, 0, len(e.value)+len(value))
	merged = append(merged, e.value...)
	merged = append(merged, value...)
	e.value = merged
	s.strings().Store(key, e)
	return int32(len(merged)), nil
}

func (s *Slot) Setrange(key string, offset int64, value []byte) (int32, error) {
	if offset < 0 {
		return 0, storage.NewError(storage.RetCInvalidArgument, "offset is out of range")
	}
	if offset > storage.MaxStringSize-int64(len(value)) {
		return 0, storage.NewError(storage.RetCInvalidArgument, "string exceeds maximum allowed size")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	e, ok := s.load(storage.DataTypeStrings, key, now)
	if !ok && len(value) == 0 {
		return 0, nil
	}

	size := int64(len(e.value))
	if end := offset + int64(len(value)); end > size {
		size = end
	}
	buf := make([]byte, size)
	copy(buf, e.value)
	copy(buf[offset:], value)
	e.value = buf
	s.strings().Store(key, e)
	return int32(len(buf)), nil
}

func (s *Slot) Delvx(key string, value []byte) (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.load(storage.DataTypeStrings, key, s.now())
	if !ok {
		return 0, notFound()
	}
	if !bytes.Equal(e.value, value) {
		return 0, nil
	}
	s.strings().Delete(key)
	return 1, nil
}

func (s *Slot) MSet(kvs []storage.KeyValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for _, kv := range kvs {
		s.store(kv.Key, kv.Value, 0, now)
	}
	return nil
}

func (s *Slot) MSetnx(kvs []storage.KeyValue) (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for _, kv := range kvs {
		if _, ok := s.load(storage.DataTypeStrings, kv.Key, now); ok {
			return 0, nil
		}
	}
	for _, kv := range kvs {
		s.store(kv.Key, kv.Value, 0, now)
	}
	return 1, nil
}

// --------------------------------------------------------------------------
// ISlot Interface Methods - Strings Read Operations
// --------------------------------------------------------------------------

func (s *Slot) Get(key string) ([]byte, error) {
	e, ok := s.load(storage.DataTypeStrings, key, s.now())
	if !ok {
		return nil, notFound()
	}
	return copyBytes(e.value), nil
}

func (s *Slot) MGet(keys []string) ([]storage.ValueStatus, error) {
	now := s.now()
	values := make([]storage.ValueStatus, len(keys))
	for i, key := range keys {
		if e, ok := s.load(storage.DataTypeStrings, key, now); ok {
			values[i] = storage.ValueStatus{Value: copyBytes(e.value)}
		} else {
			values[i] = storage.ValueStatus{Err: notFound()}
		}
	}
	return values, nil
}

func (s *Slot) Getrange(key string, start, end int64) ([]byte, error) {
	e, ok := s.load(storage.DataTypeStrings, key, s.now())
	if !ok {
		return []byte{}, notFound()
	}

	length := int64(len(e.value))
	if start < 0 {
		start = length + start
	}
	if end < 0 {
		end = length + end
	}
	if start < 0 {
		start = 0
	}
	if end < 0 {
		end = 0
	}
	if end >= length {
		end = length - 1
	}
	if length == 0 || start > end {
		return []byte{}, nil
	}
	return copyBytes(e.value[start : end+1]), nil
}

func (s *Slot) Strlen(key string) (int32, error) {
	e, ok := s.load(storage.DataTypeStrings, key, s.now())
	if !ok {
		return 0, notFound()
	}
	return int32(len(e.value)), nil
}

// --------------------------------------------------------------------------
// ISlot Interface Methods - Keyspace Operations
// --------------------------------------------------------------------------

func (s *Slot) Del(keys []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	var count int64
	for _, key := range keys {
		if s.liveAnywhere(key, now) {
			count++
		}
		for _, ns := range s.namespaces {
			ns.Delete(key)
		}
	}
	return count, nil
}

func (s *Slot) Exists(keys []string) (int64, error) {
	now := s.now()
	var count int64
	for _, key := range keys {
		if s.liveAnywhere(key, now) {
			count++
		}
	}
	return count, nil
}

func (s *Slot) Expire(key string, ttl int64) (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if ttl <= 0 {
		return s.deleteEverywhere(key, now), nil
	}
	return s.setExpireAt(key, now+ttl, now), nil
}

func (s *Slot) Expireat(key string, timestamp int64) (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if timestamp <= now {
		return s.deleteEverywhere(key, now), nil
	}
	return s.setExpireAt(key, timestamp, now), nil
}

// deleteEverywhere removes the key from all namespaces, 1 if it was live somewhere
func (s *Slot) deleteEverywhere(key string, now int64) int32 {
	var res int32
	if s.liveAnywhere(key, now) {
		res = 1
	}
	for _, ns := range s.namespaces {
		ns.Delete(key)
	}
	return res
}

// setExpireAt sets the expiration on every namespace holding the key
func (s *Slot) setExpireAt(key string, expireAt int64, now int64) int32 {
	var res int32
	for _, dt := range storage.ResolutionOrder {
		if e, ok := s.load(dt, key, now); ok {
			e.expireAt = expireAt
			s.namespaces[dt].Store(key, e)
			res = 1
		}
	}
	return res
}

func (s *Slot) Persist(key string) (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	var res int32
	for _, dt := range storage.ResolutionOrder {
		if e, ok := s.load(dt, key, now); ok && e.expireAt != 0 {
			e.expireAt = 0
			s.namespaces[dt].Store(key, e)
			res = 1
		}
	}
	return res, nil
}

func (s *Slot) TTL(key string) (map[storage.DataType]int64, error) {
	now := s.now()
	ttl := make(map[storage.DataType]int64, len(storage.ResolutionOrder))
	for _, dt := range storage.ResolutionOrder {
		e, ok := s.load(dt, key, now)
		switch {
		case !ok:
			ttl[dt] = storage.TTLNotFound
		case e.expireAt == 0:
			ttl[dt] = storage.TTLPersisted
		default:
			ttl[dt] = e.expireAt - now
		}
	}
	return ttl, nil
}

func (s *Slot) GetType(key string, single bool) ([]string, error) {
	now := s.now()
	var types []string
	for _, dt := range storage.ResolutionOrder {
		if _, ok := s.load(dt, key, now); ok {
			types = append(types, dt.String())
			if single {
				break
			}
		}
	}
	if len(types) == 0 {
		types = []string{"none"}
	}
	return types, nil
}

// --------------------------------------------------------------------------
// ISlot Interface Methods - Scan Operations
// --------------------------------------------------------------------------

// scanTypes returns the namespaces a scan of dt walks in order
func scanTypes(dt storage.DataType) []storage.DataType {
	if dt == storage.DataTypeAll {
		return storage.ResolutionOrder
	}
	return []storage.DataType{dt}
}

func (s *Slot) Scan(dt storage.DataType, cursor int64, pattern string, count int64) (int64, []string, error) {
	if count <= 0 {
		return 0, nil, storage.NewError(storage.RetCInvalidArgument, "count must be positive")
	}

	// an unknown cursor restarts the scan
	state := cursorState{}
	if cursor != 0 {
		if st, ok := s.cursors.Load(cursor); ok {
			state = st
		}
	}

	now := s.now()
	types := scanTypes(dt)
	keys := make([]string, 0, count)

	for idx := state.typeIdx; idx < len(types); idx++ {
		startKey := ""
		if idx == state.typeIdx {
			startKey = state.startKey
		}

		var resume string
		interrupted := false
		s.namespaces[types[idx]].Range(func(key string, e entry) bool {
			if key < startKey || !e.alive(now) || !match.Match(key, pattern) {
				return true
			}
			if int64(len(keys)) == count {
				resume = key
				interrupted = true
				return false
			}
			keys = append(keys, key)
			return true
		})

		if interrupted {
			return s.storeCursor(cursorState{typeIdx: idx, startKey: resume}), keys, nil
		}
	}

	return 0, keys, nil
}

// storeCursor remembers state under a new cursor and evicts the oldest cursors beyond maxCursors
func (s *Slot) storeCursor(state cursorState) int64 {
	next := s.nextCursor.Add(1)

	s.cursorMu.Lock()
	defer s.cursorMu.Unlock()
	s.cursors.Store(next, state)
	s.cursorFIFO = append(s.cursorFIFO, next)
	for len(s.cursorFIFO) > s.maxCursors {
		s.cursors.Delete(s.cursorFIFO[0])
		s.cursorFIFO = s.cursorFIFO[1:]
	}
	return next
}

func (s *Slot) Scanx(dt storage.DataType, startKey, pattern string, count int64) ([]string, string, error) {
	if dt == storage.DataTypeAll {
		return nil, "", storage.NewError(storage.RetCInvalidArgument, "invalid data type")
	}

	now := s.now()
	var (
		keys    []string
		nextKey string
	)
	s.namespaces[dt].Range(func(key string, e entry) bool {
		if key < startKey || !e.alive(now) || !match.Match(key, pattern) {
			return true
		}
		if int64(len(keys)) == count {
			nextKey = key
			return false
		}
		keys = append(keys, key)
		return true
	})
	return keys, nextKey, nil
}

// rangeEntry is a key in a range scan (value only set for strings)
type rangeEntry struct {
	key   string
	value []byte
}

// collectRange returns all live matching entries of the namespace between lo and hi ("" = unbounded)
func (s *Slot) collectRange(dt storage.DataType, lo, hi, pattern string) []rangeEntry {
	now := s.now()
	var out []rangeEntry
	s.namespaces[dt].Range(func(key string, e entry) bool {
		if lo != "" && key < lo {
			return true
		}
		if hi != "" && key > hi {
			return false
		}
		if e.alive(now) && match.Match(key, pattern) {
			out = append(out, rangeEntry{key: key, value: e.value})
		}
		return true
	})
	return out
}

// pageRange cuts a page of limit entries from the collected range
func pageRange(dt storage.DataType, entries []rangeEntry, limit int64) ([]string, []storage.KeyValue, string) {
	var (
		keys    []string
		kvs     []storage.KeyValue
		nextKey string
	)
	for i, re := range entries {
		if int64(i) == limit {
			nextKey = re.key
			break
		}
		if dt == storage.DataTypeStrings {
			kvs = append(kvs, storage.KeyValue{Key: re.key, Value: copyBytes(re.value)})
		} else {
			keys = append(keys, re.key)
		}
	}
	return keys, kvs, nextKey
}

func (s *Slot) PKScanRange(dt storage.DataType, start, end, pattern string, limit int64) ([]string, []storage.KeyValue, string, error) {
	if dt == storage.DataTypeAll {
		return nil, nil, "", storage.NewError(storage.RetCInvalidArgument, "invalid data type")
	}
	if start != "" && end != "" && start > end {
		return nil, nil, "", storage.NewError(storage.RetCInvalidArgument, "error in given range")
	}
	keys, kvs, next := pageRange(dt, s.collectRange(dt, start, end, pattern), limit)
	return keys, kvs, next, nil
}

func (s *Slot) PKRScanRange(dt storage.DataType, start, end, pattern string, limit int64) ([]string, []storage.KeyValue, string, error) {
	if dt == storage.DataTypeAll {
		return nil, nil, "", storage.NewError(storage.RetCInvalidArgument, "invalid data type")
	}
	if start != "" && end != "" && start < end {
		return nil, nil, "", storage.NewError(storage.RetCInvalidArgument, "error in given range")
	}

	// start is the upper bound of a reverse scan
	entries := s.collectRange(dt, end, start, pattern)
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	keys, kvs, next := pageRange(dt, entries, limit)
	return keys, kvs, next, nil
}
