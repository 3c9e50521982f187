// Package memory implements storage.ISlot entirely in memory.
//
// The package focuses on:
//   - Ordered namespaces so SCAN, SCANX and the range scans walk keys in
//     lexicographic order without sorting
//   - Lock free reads: every namespace is a concurrent skip list
//   - Atomic conditional writes: all writes of a slot are serialized
//   - Lazy expiration driven by an injectable clock
//
// Key Components:
//
//   - Slot: The engine. Each data type owns a skip list mapping keys to an entry
//     (value plus absolute expiration in unix seconds). Expired entries are invisible
//     to every read and are overwritten or removed by the next write touching them.
//
//   - Cursor cache: SCAN cursors are opaque integers. The position a cursor resumes
//     from (namespace and first key) is kept in a concurrent map. A cursor can be
//     resumed any number of times and always yields the same continuation. The slot
//     keeps the last MaxCursors cursors, older or unknown cursors restart the scan
//     from the beginning.
//
//   - Put: Populates the namespaces other than strings. The command layer treats
//     them as opaque, they only take part in TYPE, TTL, EXISTS, DEL, EXPIRE and scans.
package memory
