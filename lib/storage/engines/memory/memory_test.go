package memory

import (
	"fmt"
	"testing"
	"time"

	"github.com/ValentinKolb/sKV/lib/storage"
	slottesting "github.com/ValentinKolb/sKV/lib/storage/testing"
)

func Test(t *testing.T) {
	slottesting.RunSlotTests(t, "MemorySlot", func(clock func() time.Time) storage.ISlot {
		return NewMemorySlot(&Options{Clock: clock})
	})
}

func Benchmark(b *testing.B) {
	slottesting.RunSlotBenchmarks(b, "MemorySlot", func(clock func() time.Time) storage.ISlot {
		return NewMemorySlot(&Options{Clock: clock})
	})
}

func TestNamespaces(t *testing.T) {
	clock := slottesting.NewClock(time.Unix(1_700_000_000, 0))
	slot := NewMemorySlot(&Options{Clock: clock.Now})

	slot.Put(storage.DataTypeHashes, "k", []byte("h"), 0)
	slot.Put(storage.DataTypeSets, "k", []byte("s"), 50)
	_ = slot.Set("k", []byte("v"))

	types, _ := slot.GetType("k", false)
	if fmt.Sprint(types) != "[string hash set]" {
		t.Errorf("GetType() = %v, want [string hash set]", types)
	}
	types, _ = slot.GetType("k", true)
	if fmt.Sprint(types) != "[string]" {
		t.Errorf("GetType(single) = %v, want [string]", types)
	}

	ttl, _ := slot.TTL("k")
	if ttl[storage.DataTypeStrings] != -1 || ttl[storage.DataTypeSets] != 50 || ttl[storage.DataTypeLists] != -2 {
		t.Errorf("TTL() = %v", ttl)
	}

	// del counts the key once no matter how many namespaces hold it
	if n, _ := slot.Del([]string{"k"}); n != 1 {
		t.Errorf("Del() = %d, want 1", n)
	}
	if n, _ := slot.Exists([]string{"k"}); n != 0 {
		t.Errorf("Exists() = %d, want 0", n)
	}
}

func TestScanAllTypes(t *testing.T) {
	slot := NewMemorySlot(nil)
	slot.Put(storage.DataTypeHashes, "h1", []byte("x"), 0)
	slot.Put(storage.DataTypeZSets, "z1", []byte("x"), 0)
	for i := 0; i < 3; i++ {
		_ = slot.Set(fmt.Sprintf("s%d", i), []byte("x"))
	}

	tests := []struct {
		name  string
		count int64
	}{
		{"one per round", 1},
		{"two per round", 2},
		{"all at once", 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				got    []string
				cursor int64
			)
			for {
				next, keys, err := slot.Scan(storage.DataTypeAll, cursor, "*", tt.count)
				if err != nil {
					t.Fatalf("Scan() error = %v", err)
				}
				got = append(got, keys...)
				if next == 0 {
					break
				}
				cursor = next
			}
			if fmt.Sprint(got) != "[s0 s1 s2 h1 z1]" {
				t.Errorf("Scan() = %v, want [s0 s1 s2 h1 z1]", got)
			}
		})
	}
}

func TestScanUnknownCursorRestarts(t *testing.T) {
	slot := NewMemorySlot(nil)
	_ = slot.Set("a", []byte("1"))
	_ = slot.Set("b", []byte("2"))

	next, keys, _ := slot.Scan(storage.DataTypeStrings, 4242, "*", 10)
	if next != 0 || fmt.Sprint(keys) != "[a b]" {
		t.Errorf("Scan(unknown cursor) = %d, %v", next, keys)
	}
}

func TestScanCursorReuse(t *testing.T) {
	slot := NewMemorySlot(nil)
	for _, k := range []string{"a", "b", "c"} {
		_ = slot.Set(k, []byte("1"))
	}

	next, keys, _ := slot.Scan(storage.DataTypeStrings, 0, "*", 2)
	if next == 0 || fmt.Sprint(keys) != "[a b]" {
		t.Fatalf("Scan() = %d, %v", next, keys)
	}
	for i := 0; i < 3; i++ {
		again, keys, _ := slot.Scan(storage.DataTypeStrings, next, "*", 2)
		if again != 0 || fmt.Sprint(keys) != "[c]" {
			t.Errorf("Scan(next) #%d = %d, %v, want 0, [c]", i, again, keys)
		}
	}
	if _, ok := slot.cursors.Load(next); !ok {
		t.Error("resumed cursor should stay cached")
	}
}

func TestScanCursorEviction(t *testing.T) {
	slot := NewMemorySlot(&Options{MaxCursors: 4})
	for i := 0; i < 10; i++ {
		_ = slot.Set(fmt.Sprintf("k%02d", i), []byte("1"))
	}

	var cursors []int64
	for i := 0; i < 100; i++ {
		next, _, _ := slot.Scan(storage.DataTypeStrings, 0, "*", 1)
		cursors = append(cursors, next)
	}
	if n := slot.cursors.Size(); n != 4 {
		t.Errorf("cached cursors = %d, want 4", n)
	}
	if _, ok := slot.cursors.Load(cursors[0]); ok {
		t.Error("oldest cursor should be evicted")
	}

	// the newest cursor still resumes after k00
	_, keys, _ := slot.Scan(storage.DataTypeStrings, cursors[len(cursors)-1], "*", 2)
	if fmt.Sprint(keys) != "[k01 k02]" {
		t.Errorf("Scan(newest) = %v, want [k01 k02]", keys)
	}
	// an evicted cursor restarts
	_, keys, _ = slot.Scan(storage.DataTypeStrings, cursors[0], "*", 2)
	if fmt.Sprint(keys) != "[k00 k01]" {
		t.Errorf("Scan(evicted) = %v, want [k00 k01]", keys)
	}
}

func TestDefaultMaxCursors(t *testing.T) {
	slot := NewMemorySlot(nil)
	_ = slot.Set("a", []byte("1"))
	_ = slot.Set("b", []byte("1"))
	for i := 0; i < DefaultMaxCursors+100; i++ {
		_, _, _ = slot.Scan(storage.DataTypeStrings, 0, "*", 1)
	}
	if n := slot.cursors.Size(); n != DefaultMaxCursors {
		t.Errorf("cached cursors = %d, want %d", n, DefaultMaxCursors)
	}
}
