// Package cluster routes commands to the slots of a node and drives their
// lifecycle.
//
// A node owns a fixed number of slots. In cluster mode every key belongs to the
// slot CRC32(hash tag) mod slots, where the hash tag is the content of the
// first non-empty {...} section of the key (the whole key otherwise). Keys
// sharing a hash tag always live on the same slot. In classic mode the node
// has a single slot 0.
//
// The Executor runs a request in three steps:
//
//  1. Parse: the argument vector is resolved to a command and validated.
//
//  2. Execute: single key commands run on the slot owning their key, keyless
//     commands on slot 0 (or the slot given to ExecuteOn). Multi-key commands
//     whose keys span several slots are scattered: the keys are grouped per
//     slot together with their original positions, Split runs concurrently
//     for every group and Merge combines the partial results once all of
//     them returned.
//
//  3. Replicate: the executor reads the clock, encodes the command and hands
//     the entries, grouped by the slot owning their key, to the binlog sink.
//     The request is only done once the sink accepted the entries. A sink
//     failure turns the reply into an error, the executed command is not
//     rolled back.
package cluster
