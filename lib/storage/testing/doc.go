// Package testing provides standardised tests and benchmarks for
// storage engines that satisfy the storage.ISlot interface.
//
// The package contains:
//   - slot_testing: A conformance suite for the ISlot contract (strings and keyspace operations)
//   - slot_benchmarks: Performance tests for the hot string operations
//   - clock: A manually advanced clock so expirations can be tested without sleeping
//
// Example usage:
//
//	factory := func(clock func() time.Time) storage.ISlot {
//		return NewMySlot(clock)
//	}
//
//	slottesting.RunSlotTests(t, "MySlot", factory)
//	slottesting.RunSlotBenchmarks(b, "MySlot", factory)
package testing
