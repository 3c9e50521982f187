// Package server runs a sKV node: the RESP listener clients talk to and the
// admin HTTP api used to inspect the slots.
//
// On start the server creates one in-memory slot per configured slot (a single
// slot in classic mode) and an executor routing every request to them. The
// replication mode of the config selects where binlog entries go:
//
//   - none: entries are discarded.
//
//   - file: entries are appended to one file per slot in BinlogPath. The files
//     are replayed into the slots before the listeners open.
//
//   - raft: every slot is replicated by its own dragonboat shard. Entries are
//     proposed to the shard and replayed by the state machines of the other
//     replicas. RAFT configuration (RTTMillisecond, SnapshotEntries,
//     CompactionOverhead, DataDir, ReplicaID and ClusterMembers) must be set.
//
// Admin api:
//
//	GET  /health                   liveness probe
//	GET  /metrics                  Prometheus metrics of the node
//	GET  /stats                    split latency and fan-out statistics (JSON)
//	GET  /slots                    slots holding indexed keys with their key count
//	GET  /slots/{slotID}/keys      indexed keys of a slot (?pattern=glob)
//	POST /slots/{slotID}/command   run a JSON argument vector on one slot
//
// Usage Example:
//
//	s := server.NewServer(common.ServerConfig{
//	  Endpoint:      "0.0.0.0:6379",
//	  AdminEndpoint: "0.0.0.0:8080",
//	  Replication:   common.ReplicationNone,
//	  LogLevel:      "info",
//	})
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
package server
