package common

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/lni/dragonboat/v4/config"
)

// --------------------------------------------------------------------------
// helper functions for to interface with Dragonboat (for the server util)
// --------------------------------------------------------------------------

// Dragonboat uses RTT (Round Trip Time) to determine the timing of elections and heartbeats.
// These default values are selected according to the RAFT Paper
const (
	electionRTTFactor  = 10
	heartbeatRTTFactor = 1
)

// ToDragonboatConfig converts the ServerConfig to the Dragonboat Config of a shard
func (c *ServerConfig) ToDragonboatConfig(shardId uint64) config.Config {
	return config.Config{
		ReplicaID:          c.ReplicaID,
		ShardID:            shardId,
		ElectionRTT:        electionRTTFactor,
		HeartbeatRTT:       heartbeatRTTFactor,
		CheckQuorum:        true,
		SnapshotEntries:    c.SnapshotEntries,
		CompactionOverhead: c.CompactionOverhead,
		MaxInMemLogSize:    0,
	}
}

// ToNodeHostConfig creates a NodeHostConfig for Dragonboat
func (c *ServerConfig) ToNodeHostConfig() config.NodeHostConfig {
	return config.NodeHostConfig{
		WALDir:         c.DataDir,
		NodeHostDir:    c.DataDir,
		RTTMillisecond: c.RTTMillisecond,
		RaftAddress:    c.ClusterMembers[c.ReplicaID],
	}
}

// --------------------------------------------------------------------------
// Server configuration struct
// --------------------------------------------------------------------------

// ReplicationMode selects the binlog sink of the server
type ReplicationMode string

const (
	ReplicationNone ReplicationMode = "none" // entries are discarded
	ReplicationFile ReplicationMode = "file" // entries are appended to per slot files and replayed on start
	ReplicationRaft ReplicationMode = "raft" // entries are proposed to one raft shard per slot
)

// ParseReplicationMode converts the flag value to a ReplicationMode
func ParseReplicationMode(s string) (ReplicationMode, error) {
	switch m := ReplicationMode(strings.ToLower(s)); m {
	case ReplicationNone, ReplicationFile, ReplicationRaft:
		return m, nil
	default:
		return "", fmt.Errorf("invalid replication mode: %s (expected one of: none, file, raft)", s)
	}
}

// ServerConfig holds all configuration parameters of a server
type ServerConfig struct {
	// RESP and admin api settings
	Endpoint      string
	AdminEndpoint string

	// Command execution
	ClusterMode           bool
	Slots                 uint64
	MaxClientResponseSize int

	// Replication
	Replication ReplicationMode
	BinlogPath  string
	BinlogFsync bool

	// Dragonboat parameters
	RTTMillisecond     uint64
	SnapshotEntries    uint64
	CompactionOverhead uint64
	DataDir            string
	ReplicaID          uint64
	ClusterMembers     map[uint64]string
	TimeoutSecond      int64

	// Logging configuration
	LogLevel string
}

// Timeout returns the raft proposal timeout
func (c *ServerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecond) * time.Second
}

// SlotCount returns the number of slots the server owns
func (c *ServerConfig) SlotCount() uint64 {
	if !c.ClusterMode || c.Slots == 0 {
		return 1
	}
	return c.Slots
}

// Validate checks the settings required by the selected modes
func (c *ServerConfig) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	if c.ClusterMode && c.Slots == 0 {
		return fmt.Errorf("cluster mode requires at least one slot")
	}
	if c.MaxClientResponseSize < 0 {
		return fmt.Errorf("max client response size must not be negative")
	}
	switch c.Replication {
	case ReplicationFile:
		if c.BinlogPath == "" {
			return fmt.Errorf("binlog path is required for file replication")
		}
	case ReplicationRaft:
		if c.ReplicaID == 0 {
			return fmt.Errorf("ReplicaId is required for raft replication")
		}
		if len(c.ClusterMembers) == 0 {
			return fmt.Errorf("ClusterMembers is required for raft replication")
		}
		if _, ok := c.ClusterMembers[c.ReplicaID]; !ok {
			return fmt.Errorf("no address found for replica ID %d in cluster members", c.ReplicaID)
		}
		if c.TimeoutSecond <= 0 {
			return fmt.Errorf("timeout must be positive for raft replication")
		}
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Server")
	addField("Endpoint", c.Endpoint)
	addField("Admin Endpoint", c.AdminEndpoint)

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	addSection("Execution")
	addField("Cluster Mode", strconv.FormatBool(c.ClusterMode))
	addField("Slots", strconv.FormatUint(c.SlotCount(), 10))
	addField("Max Response Size", fmt.Sprintf("%d bytes", c.MaxClientResponseSize))

	addSection("Replication")
	addField("Mode", string(c.Replication))
	switch c.Replication {
	case ReplicationFile:
		addField("Binlog Path", c.BinlogPath)
		addField("Fsync", strconv.FormatBool(c.BinlogFsync))
	case ReplicationRaft:
		// Node Identity
		addSection("Node Identity")
		addField("RAFT Address", c.ClusterMembers[c.ReplicaID])
		addField("Node ID", strconv.FormatUint(c.ReplicaID, 10))

		// RAFT parameters
		addSection("RAFT Parameters")
		addField("Round Trip Time (ms)", fmt.Sprintf("%d ms", c.RTTMillisecond))
		addField("Election RTT (ms)", fmt.Sprintf("%d", c.RTTMillisecond*electionRTTFactor))
		addField("Heartbeat RTT (ms)", fmt.Sprintf("%d", c.RTTMillisecond*heartbeatRTTFactor))
		addField("Check Quorum", fmt.Sprintf("%t", true))
		addField("Snapshot Entries", fmt.Sprintf("%d", c.SnapshotEntries))
		addField("Compaction Overhead", fmt.Sprintf("%d", c.CompactionOverhead))
		addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
		addField("Data Directory", c.DataDir)

		addSection("Cluster")
		sb.WriteString("  Initial Cluster Members:\n")

		// Sort keys for consistent output
		var keys []uint64
		for k := range c.ClusterMembers {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("    Node %d: %s\n", k, c.ClusterMembers[k]))
		}
	}
	return sb.String()
}

// ParseNodeID converts a replica name to its raft replica id. Numeric names are
// used as they are, other names (e.g. "node-1") are hashed.
func ParseNodeID(name string) uint64 {
	if id, err := strconv.ParseUint(name, 10, 64); err == nil {
		return id
	}
	return xxhash.Sum64String(name)
}

// ParseClusterMembers parses a comma-separated list of ID=address pairs
func ParseClusterMembers(s string) (map[uint64]string, error) {
	members := make(map[uint64]string)
	for _, member := range strings.Split(s, ",") {
		member = strings.TrimSpace(member)
		if member == "" {
			continue
		}
		parts := strings.Split(member, "=")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid cluster member format: %s (expected ID=address)", member)
		}
		members[ParseNodeID(parts[0])] = parts[1]
	}
	return members, nil
}

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	Endpoint      string
	TimeoutSecond int
	RetryCount    int
	Connections   int
}

// Timeout returns the dial and io timeout of the client
func (c *ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecond) * time.Second
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder
	sb.WriteString("\nCLIENT CONFIGURATION\n")
	sb.WriteString(fmt.Sprintf("  %-22s: %s\n", "Endpoint", c.Endpoint))
	sb.WriteString(fmt.Sprintf("  %-22s: %d sec\n", "Timeout", c.TimeoutSecond))
	sb.WriteString(fmt.Sprintf("  %-22s: %d\n", "Retry Count", c.RetryCount))
	sb.WriteString(fmt.Sprintf("  %-22s: %d\n", "Connections", max(1, c.Connections)))
	return sb.String()
}

// SplitEndpoint returns the network and address of an endpoint. Endpoints
// prefixed with "unix:" or starting with "/" are unix sockets, all others
// tcp addresses.
func SplitEndpoint(endpoint string) (network, address string) {
	switch {
	case strings.HasPrefix(endpoint, "unix:"):
		return "unix", strings.TrimPrefix(endpoint, "unix:")
	case strings.HasPrefix(endpoint, "/"):
		return "unix", endpoint
	default:
		return "tcp", endpoint
	}
}
