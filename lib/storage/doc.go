// Package storage defines the contract between the command layer and the
// storage engine of a slot.
//
// A slot is one shard of the keyspace. Its engine keeps an independent namespace
// (column family) per data type: strings, hashes, lists, sorted sets and sets.
// Namespaces share key names but not key liveness, so the same key may be a
// string and a hash at the same time, each with its own expiration.
//
// Key Components:
//
//   - ISlot: point reads and writes, conditional writes, numeric increments,
//     range mutation, batch operations, expiration handling, type resolution
//     and cursor based scans. The command layer never reaches behind this interface.
//
//   - Error / RetCode: engines classify their failures (not found, not an integer,
//     not a float, overflow, invalid argument, internal). The command layer maps these
//     codes onto protocol errors; the message is forwarded verbatim for internal errors.
//
//   - DataType / ResolutionOrder: ambiguous same-named keys resolve in the order
//     strings, hashes, lists, sorted sets, sets.
//
// Implementations:
//
//	- Memory engine ("github.com/ValentinKolb/sKV/lib/storage/engines/memory"):
//	  ordered in-memory namespaces with per-key expiration and an injectable clock.
//
// The conformance suite in "github.com/ValentinKolb/sKV/lib/storage/testing" can be
// run against every implementation.
package storage
