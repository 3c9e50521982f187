// Package binlog implements the replication log of sKV.
//
// Executed write commands are translated into canonical entries (see
// command.Binlog) which are handed to an ISink together with the id of the
// slot that owns the entry's key. An entry is the RESP array encoding of a
// command, the same framing clients use, so that log replay and live requests
// share one parser.
//
// Sinks:
//
//   - MemoryLog: keeps the entries of every slot in memory. Used by tests and
//     when replication is disabled.
//
//   - FileLog: appends the entries to one file per slot. Replay re-reads the
//     files on restart and applies them in order.
//
//   - RaftSink: proposes every entry to the raft shard of its slot using
//     Dragonboat. The StateMachine of the shard replays the entries on every
//     replica by parsing and executing them against the local slot.
//
// Replay never re-encodes: entries are parsed and executed, their own binlog
// output is discarded. Relative expirations never reach the log, so replay at
// any later time reproduces the same absolute expiration instants.
package binlog
