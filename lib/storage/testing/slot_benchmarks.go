package testing

import (
	"fmt"
	"testing"
	"time"

	"github.com/ValentinKolb/sKV/lib/storage"
)

// RunSlotBenchmarks runs the benchmarks for an ISlot implementation
func RunSlotBenchmarks(b *testing.B, name string, factory SlotFactory) {

	b.Run("Set", func(b *testing.B) {
		benchmarkSet(b, factory(time.Now))
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, factory(time.Now))
	})

	b.Run("Incrby", func(b *testing.B) {
		benchmarkIncrby(b, factory(time.Now))
	})

	b.Run("Scan", func(b *testing.B) {
		benchmarkScan(b, factory(time.Now))
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

func benchmarkSet(b *testing.B, slot storage.ISlot) {
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d", counter)
			_ = slot.Set(key, []byte("test-value"))
			counter++
		}
	})
}

func benchmarkGet(b *testing.B, slot storage.ISlot) {
	numKeys := 10000
	for i := 0; i < numKeys; i++ {
		_ = slot.Set(fmt.Sprintf("test-key-%d", i), []byte("test-value"))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			_, _ = slot.Get(fmt.Sprintf("test-key-%d", counter%numKeys))
			counter++
		}
	})
}

func benchmarkIncrby(b *testing.B, slot storage.ISlot) {
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = slot.Incrby("counter", 1)
		}
	})
}

// Scans are not parallelized, every iteration walks the whole namespace
func benchmarkScan(b *testing.B, slot storage.ISlot) {
	for i := 0; i < 10000; i++ {
		_ = slot.Set(fmt.Sprintf("test-key-%d", i), []byte("test-value"))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var cursor int64
		for {
			next, _, err := slot.Scan(storage.DataTypeStrings, cursor, "*", 1000)
			if err != nil {
				b.Fatal(err)
			}
			if next == 0 {
				break
			}
			cursor = next
		}
	}
}
