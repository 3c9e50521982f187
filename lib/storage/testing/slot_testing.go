package testing

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/sKV/lib/storage"
)

// SlotFactory creates a new, empty ISlot implementation using the given clock
type SlotFactory func(clock func() time.Time) storage.ISlot

// epoch is the start time of every test clock
var epoch = time.Unix(1_700_000_000, 0)

// RunSlotTests runs a comprehensive test suite for an ISlot implementation.
func RunSlotTests(t *testing.T, name string, factory SlotFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory)
		})

		t.Run("ConditionalSet", func(t *testing.T) {
			testConditionalSet(t, factory)
		})

		t.Run("Expiration", func(t *testing.T) {
			testExpiration(t, factory)
		})

		t.Run("Counters", func(t *testing.T) {
			testCounters(t, factory)
		})

		t.Run("Ranges", func(t *testing.T) {
			testRanges(t, factory)
		})

		t.Run("Batch", func(t *testing.T) {
			testBatch(t, factory)
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory)
		})

		t.Run("Scan", func(t *testing.T) {
			testScan(t, factory)
		})

		t.Run("RangeScan", func(t *testing.T) {
			testRangeScan(t, factory)
		})

		t.Run("ConcurrentIncr", func(t *testing.T) {
			testConcurrentIncr(t, factory)
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func newSlot(factory SlotFactory) (storage.ISlot, *Clock) {
	clock := NewClock(epoch)
	return factory(clock.Now), clock
}

func mustGet(t *testing.T, slot storage.ISlot, key string, want string) {
	t.Helper()
	got, err := slot.Get(key)
	if err != nil {
		t.Fatalf("Get(%q) error = %v", key, err)
	}
	if string(got) != want {
		t.Errorf("Get(%q) = %q, want %q", key, got, want)
	}
}

func mustMiss(t *testing.T, slot storage.ISlot, key string) {
	t.Helper()
	if _, err := slot.Get(key); !storage.IsNotFound(err) {
		t.Errorf("Get(%q) error = %v, want NotFound", key, err)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, factory SlotFactory) {
	slot, _ := newSlot(factory)

	mustMiss(t, slot, "k")

	if err := slot.Set("k", []byte("v1")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	mustGet(t, slot, "k", "v1")

	_ = slot.Set("k", []byte("v2"))
	mustGet(t, slot, "k", "v2")

	got, _ := slot.Get("k")
	got[0] = 'X'
	mustGet(t, slot, "k", "v2")

	old, err := slot.GetSet("k", []byte("v3"))
	if err != nil || string(old) != "v2" {
		t.Errorf("GetSet() = %q, %v, want %q", old, err, "v2")
	}
	old, err = slot.GetSet("fresh", []byte("v"))
	if err != nil || old != nil {
		t.Errorf("GetSet() on missing key = %q, %v, want nil", old, err)
	}

	// the empty value is a value
	_ = slot.Set("empty", []byte{})
	if v, err := slot.Get("empty"); err != nil || len(v) != 0 {
		t.Errorf("Get(empty) = %q, %v", v, err)
	}
}

func testConditionalSet(t *testing.T, factory SlotFactory) {
	slot, _ := newSlot(factory)

	tests := []struct {
		name string
		op   func() (int32, error)
		want int32
	}{
		{"xx on missing", func() (int32, error) { return slot.Setxx("a", []byte("1"), 0) }, 0},
		{"nx on missing", func() (int32, error) { return slot.Setnx("a", []byte("1"), 0) }, 1},
		{"nx on existing", func() (int32, error) { return slot.Setnx("a", []byte("2"), 0) }, 0},
		{"xx on existing", func() (int32, error) { return slot.Setxx("a", []byte("3"), 0) }, 1},
		{"vx mismatch", func() (int32, error) { return slot.Setvx("a", []byte("x"), []byte("4"), 0) }, -1},
		{"vx match", func() (int32, error) { return slot.Setvx("a", []byte("3"), []byte("4"), 0) }, 1},
		{"vx missing", func() (int32, error) { return slot.Setvx("b", []byte("3"), []byte("4"), 0) }, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.op()
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if got != tt.want {
				t.Errorf("res = %d, want %d", got, tt.want)
			}
		})
	}

	mustGet(t, slot, "a", "4")

	res, err := slot.Delvx("a", []byte("nope"))
	if err != nil || res != 0 {
		t.Errorf("Delvx(mismatch) = %d, %v, want 0", res, err)
	}
	res, err = slot.Delvx("a", []byte("4"))
	if err != nil || res != 1 {
		t.Errorf("Delvx(match) = %d, %v, want 1", res, err)
	}
	mustMiss(t, slot, "a")
	if res, err := slot.Delvx("a", []byte("4")); res != 0 || !storage.IsNotFound(err) {
		t.Errorf("Delvx(missing) = %d, %v, want 0, NotFound", res, err)
	}
}

func testExpiration(t *testing.T, factory SlotFactory) {
	slot, clock := newSlot(factory)

	if err := slot.Setex("k", []byte("v"), 0); storage.Code(err) != storage.RetCInvalidArgument {
		t.Errorf("Setex(ttl=0) error = %v, want InvalidArgument", err)
	}

	_ = slot.Setex("k", []byte("v"), 10)
	ttl, _ := slot.TTL("k")
	if ttl[storage.DataTypeStrings] != 10 {
		t.Errorf("TTL() = %d, want 10", ttl[storage.DataTypeStrings])
	}
	if ttl[storage.DataTypeHashes] != storage.TTLNotFound {
		t.Errorf("TTL(hash) = %d, want %d", ttl[storage.DataTypeHashes], storage.TTLNotFound)
	}

	clock.Advance(9 * time.Second)
	mustGet(t, slot, "k", "v")
	clock.Advance(time.Second)
	mustMiss(t, slot, "k")

	// expire, persist
	_ = slot.Set("p", []byte("v"))
	if ttl, _ := slot.TTL("p"); ttl[storage.DataTypeStrings] != storage.TTLPersisted {
		t.Errorf("TTL(persisted) = %d, want -1", ttl[storage.DataTypeStrings])
	}
	if res, _ := slot.Expire("p", 100); res != 1 {
		t.Errorf("Expire() = %d, want 1", res)
	}
	if res, _ := slot.Expire("missing", 100); res != 0 {
		t.Errorf("Expire(missing) = %d, want 0", res)
	}
	if res, _ := slot.Persist("p"); res != 1 {
		t.Errorf("Persist() = %d, want 1", res)
	}
	if res, _ := slot.Persist("p"); res != 0 {
		t.Errorf("Persist(no ttl) = %d, want 0", res)
	}

	// a non positive ttl deletes
	if res, _ := slot.Expire("p", 0); res != 1 {
		t.Errorf("Expire(0) = %d, want 1", res)
	}
	mustMiss(t, slot, "p")

	// absolute timestamps use the clock
	now := clock.Now().Unix()
	_ = slot.Set("at", []byte("v"))
	if res, _ := slot.Expireat("at", now+5); res != 1 {
		t.Errorf("Expireat() = %d, want 1", res)
	}
	if ttl, _ := slot.TTL("at"); ttl[storage.DataTypeStrings] != 5 {
		t.Errorf("TTL(at) = %d, want 5", ttl[storage.DataTypeStrings])
	}
	if res, _ := slot.Expireat("at", now-1); res != 1 {
		t.Errorf("Expireat(past) = %d, want 1", res)
	}
	mustMiss(t, slot, "at")

	_ = slot.PKSetexAt("pk", []byte("v"), now+3)
	mustGet(t, slot, "pk", "v")
	clock.Advance(3 * time.Second)
	mustMiss(t, slot, "pk")

	// setnx succeeds on expired keys
	_ = slot.Setex("nx", []byte("old"), 1)
	clock.Advance(2 * time.Second)
	if res, _ := slot.Setnx("nx", []byte("new"), 0); res != 1 {
		t.Errorf("Setnx(expired) = %d, want 1", res)
	}
	mustGet(t, slot, "nx", "new")
}

func testCounters(t *testing.T, factory SlotFactory) {
	slot, _ := newSlot(factory)

	if v, err := slot.Incrby("n", 5); err != nil || v != 5 {
		t.Errorf("Incrby() = %d, %v, want 5", v, err)
	}
	if v, err := slot.Decrby("n", 7); err != nil || v != -2 {
		t.Errorf("Decrby() = %d, %v, want -2", v, err)
	}

	_ = slot.Set("max", []byte(fmt.Sprint(int64(math.MaxInt64))))
	if _, err := slot.Incrby("max", 1); storage.Code(err) != storage.RetCOverflow {
		t.Errorf("Incrby(overflow) error = %v, want Overflow", err)
	}
	mustGet(t, slot, "max", fmt.Sprint(int64(math.MaxInt64)))

	_ = slot.Set("str", []byte("abc"))
	if _, err := slot.Incrby("str", 1); storage.Code(err) != storage.RetCNotInteger {
		t.Errorf("Incrby(not integer) error = %v, want NotInteger", err)
	}

	if v, err := slot.Incrbyfloat("f", "1.5"); err != nil || v != "1.5" {
		t.Errorf("Incrbyfloat() = %q, %v, want 1.5", v, err)
	}
	if v, err := slot.Incrbyfloat("f", "2"); err != nil || v != "3.5" {
		t.Errorf("Incrbyfloat() = %q, %v, want 3.5", v, err)
	}
	if _, err := slot.Incrbyfloat("str", "1"); storage.Code(err) != storage.RetCNotFloat {
		t.Errorf("Incrbyfloat(not float) error = %v, want NotFloat", err)
	}
	_ = slot.Set("big", []byte("1.7e308"))
	if _, err := slot.Incrbyfloat("big", "1.7e308"); storage.Code(err) != storage.RetCOverflow {
		t.Errorf("Incrbyfloat(inf) error = %v, want Overflow", err)
	}
}

func testRanges(t *testing.T, factory SlotFactory) {
	slot, _ := newSlot(factory)
	_ = slot.Set("s", []byte("Hello World"))

	tests := []struct {
		start, end int64
		want       string
	}{
		{0, 4, "Hello"},
		{-5, -1, "World"},
		{0, -1, "Hello World"},
		{0, 100, "Hello World"},
		{5, 2, ""},
		{-100, 2, "Hel"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("getrange %d %d", tt.start, tt.end), func(t *testing.T) {
			got, err := slot.Getrange("s", tt.start, tt.end)
			if err != nil {
				t.Fatalf("Getrange() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Getrange() = %q, want %q", got, tt.want)
			}
		})
	}

	if n, _ := slot.Setrange("s", 6, []byte("Redis")); n != 11 {
		t.Errorf("Setrange() = %d, want 11", n)
	}
	mustGet(t, slot, "s", "Hello Redis")

	if n, _ := slot.Setrange("pad", 3, []byte("x")); n != 4 {
		t.Errorf("Setrange(pad) = %d, want 4", n)
	}
	mustGet(t, slot, "pad", "\x00\x00\x00x")

	for _, offset := range []int64{math.MaxInt64, 1 << 40, storage.MaxStringSize} {
		if _, err := slot.Setrange("s", offset, []byte("x")); storage.Code(err) != storage.RetCInvalidArgument {
			t.Errorf("Setrange(offset %d) error = %v, want RetCInvalidArgument", offset, err)
		}
	}
	mustGet(t, slot, "s", "Hello Redis")
	if _, err := slot.Setrange("huge", math.MaxInt64, []byte("x")); storage.Code(err) != storage.RetCInvalidArgument {
		t.Errorf("Setrange(missing, max offset) error = %v, want RetCInvalidArgument", err)
	}
	mustMiss(t, slot, "huge")

	if n, _ := slot.Append("pad", []byte("yz")); n != 6 {
		t.Errorf("Append() = %d, want 6", n)
	}
	if n, _ := slot.Strlen("pad"); n != 6 {
		t.Errorf("Strlen() = %d, want 6", n)
	}
	if n, _ := slot.Strlen("missing"); n != 0 {
		t.Errorf("Strlen(missing) = %d, want 0", n)
	}
}

func testBatch(t *testing.T, factory SlotFactory) {
	slot, _ := newSlot(factory)

	_ = slot.MSet([]storage.KeyValue{{Key: "a", Value: []byte("1")}, {Key: "b", Value: []byte("2")}})
	values, err := slot.MGet([]string{"a", "missing", "b"})
	if err != nil {
		t.Fatalf("MGet() error = %v", err)
	}
	if len(values) != 3 || !values[0].Found() || values[1].Found() || string(values[2].Value) != "2" {
		t.Errorf("MGet() = %+v", values)
	}

	if res, _ := slot.MSetnx([]storage.KeyValue{{Key: "a", Value: []byte("x")}, {Key: "c", Value: []byte("3")}}); res != 0 {
		t.Errorf("MSetnx(existing) = %d, want 0", res)
	}
	mustMiss(t, slot, "c")
	if res, _ := slot.MSetnx([]storage.KeyValue{{Key: "c", Value: []byte("3")}, {Key: "d", Value: []byte("4")}}); res != 1 {
		t.Errorf("MSetnx() = %d, want 1", res)
	}
	mustGet(t, slot, "d", "4")
}

func testDelete(t *testing.T, factory SlotFactory) {
	slot, _ := newSlot(factory)

	_ = slot.Set("a", []byte("1"))
	_ = slot.Set("b", []byte("2"))

	if n, _ := slot.Exists([]string{"a", "b", "c", "a"}); n != 3 {
		t.Errorf("Exists() = %d, want 3", n)
	}
	if n, _ := slot.Del([]string{"a", "c"}); n != 1 {
		t.Errorf("Del() = %d, want 1", n)
	}
	mustMiss(t, slot, "a")
	mustGet(t, slot, "b", "2")

	types, _ := slot.GetType("b", true)
	if len(types) != 1 || types[0] != "string" {
		t.Errorf("GetType() = %v, want [string]", types)
	}
	types, _ = slot.GetType("a", true)
	if len(types) != 1 || types[0] != "none" {
		t.Errorf("GetType(missing) = %v, want [none]", types)
	}
}

func testScan(t *testing.T, factory SlotFactory) {
	slot, _ := newSlot(factory)

	want := make([]string, 0, 25)
	for i := 0; i < 25; i++ {
		key := fmt.Sprintf("key-%02d", i)
		want = append(want, key)
		_ = slot.Set(key, []byte("v"))
	}
	_ = slot.Set("other", []byte("v"))

	var (
		got    []string
		cursor int64
		rounds int
	)
	for {
		next, keys, err := slot.Scan(storage.DataTypeStrings, cursor, "key-*", 10)
		if err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		if len(keys) > 10 {
			t.Errorf("Scan() returned %d keys, want <= 10", len(keys))
		}
		got = append(got, keys...)
		rounds++
		if next == 0 {
			break
		}
		cursor = next
		if rounds > 10 {
			t.Fatal("Scan() did not terminate")
		}
	}

	sort.Strings(got)
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Scan() keys = %v, want %v", got, want)
	}

	// resuming a cursor twice yields the same page
	first, page, _ := slot.Scan(storage.DataTypeStrings, 0, "key-*", 10)
	if first == 0 {
		t.Fatal("Scan() finished in one page, want a cursor")
	}
	_, once, _ := slot.Scan(storage.DataTypeStrings, first, "key-*", 10)
	_, twice, _ := slot.Scan(storage.DataTypeStrings, first, "key-*", 10)
	if fmt.Sprint(once) != fmt.Sprint(twice) {
		t.Errorf("Scan(cursor) = %v, then %v, want the same page", once, twice)
	}
	if len(once) > 0 && len(page) > 0 && once[0] <= page[len(page)-1] {
		t.Errorf("Scan(cursor) = %v, want keys after %v", once, page)
	}

	keys, next, err := slot.Scanx(storage.DataTypeStrings, "key-20", "*", 3)
	if err != nil {
		t.Fatalf("Scanx() error = %v", err)
	}
	if fmt.Sprint(keys) != "[key-20 key-21 key-22]" || next != "key-23" {
		t.Errorf("Scanx() = %v, %q", keys, next)
	}
}

func testRangeScan(t *testing.T, factory SlotFactory) {
	slot, _ := newSlot(factory)
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		_ = slot.Set(k, []byte("v-"+k))
	}

	_, kvs, next, err := slot.PKScanRange(storage.DataTypeStrings, "b", "d", "*", 2)
	if err != nil {
		t.Fatalf("PKScanRange() error = %v", err)
	}
	if len(kvs) != 2 || kvs[0].Key != "b" || !bytes.Equal(kvs[1].Value, []byte("v-c")) || next != "d" {
		t.Errorf("PKScanRange() = %+v, %q", kvs, next)
	}

	_, kvs, next, _ = slot.PKScanRange(storage.DataTypeStrings, "", "", "*", 10)
	if len(kvs) != 5 || next != "" {
		t.Errorf("PKScanRange(unbounded) = %d entries, next %q", len(kvs), next)
	}

	_, kvs, next, err = slot.PKRScanRange(storage.DataTypeStrings, "d", "b", "*", 2)
	if err != nil {
		t.Fatalf("PKRScanRange() error = %v", err)
	}
	if len(kvs) != 2 || kvs[0].Key != "d" || kvs[1].Key != "c" || next != "b" {
		t.Errorf("PKRScanRange() = %+v, %q", kvs, next)
	}

	if _, _, _, err := slot.PKScanRange(storage.DataTypeStrings, "d", "b", "*", 2); err == nil {
		t.Error("PKScanRange(start > end) should fail")
	}
}

func testConcurrentIncr(t *testing.T, factory SlotFactory) {
	slot, _ := newSlot(factory)

	const workers, perWorker = 10, 100
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if _, err := slot.Incrby("counter", 1); err != nil {
					t.Errorf("Incrby() error = %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	mustGet(t, slot, "counter", fmt.Sprint(workers*perWorker))
}
