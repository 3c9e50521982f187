package common

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lni/dragonboat/v4/logger"
)

func TestParseReplicationMode(t *testing.T) {
	tests := []struct {
		in      string
		want    ReplicationMode
		wantErr bool
	}{
		{"none", ReplicationNone, false},
		{"FILE", ReplicationFile, false},
		{"raft", ReplicationRaft, false},
		{"paxos", "", true},
	}
	for _, tt := range tests {
		got, err := ParseReplicationMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseReplicationMode(%q) = %q, %v, want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	valid := func() ServerConfig {
		return ServerConfig{Endpoint: ":6379", Replication: ReplicationNone, LogLevel: "info"}
	}

	tests := []struct {
		name    string
		modify  func(c *ServerConfig)
		wantErr bool
	}{
		{"defaults", func(c *ServerConfig) {}, false},
		{"no endpoint", func(c *ServerConfig) { c.Endpoint = "" }, true},
		{"cluster without slots", func(c *ServerConfig) { c.ClusterMode = true }, true},
		{"cluster", func(c *ServerConfig) { c.ClusterMode = true; c.Slots = 16 }, false},
		{"negative response size", func(c *ServerConfig) { c.MaxClientResponseSize = -1 }, true},
		{"file without path", func(c *ServerConfig) { c.Replication = ReplicationFile }, true},
		{"file", func(c *ServerConfig) { c.Replication = ReplicationFile; c.BinlogPath = "binlog" }, false},
		{"raft without replica", func(c *ServerConfig) { c.Replication = ReplicationRaft }, true},
		{"raft without own address", func(c *ServerConfig) {
			c.Replication = ReplicationRaft
			c.ReplicaID = 1
			c.ClusterMembers = map[uint64]string{2: "localhost:63002"}
			c.TimeoutSecond = 5
		}, true},
		{"raft", func(c *ServerConfig) {
			c.Replication = ReplicationRaft
			c.ReplicaID = 1
			c.ClusterMembers = map[uint64]string{1: "localhost:63001"}
			c.TimeoutSecond = 5
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.modify(&c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSlotCount(t *testing.T) {
	c := ServerConfig{Slots: 16}
	if got := c.SlotCount(); got != 1 {
		t.Errorf("SlotCount() in classic mode = %d, want 1", got)
	}
	c.ClusterMode = true
	if got := c.SlotCount(); got != 16 {
		t.Errorf("SlotCount() in cluster mode = %d, want 16", got)
	}
}

func TestDragonboatConfig(t *testing.T) {
	c := ServerConfig{
		ReplicaID:          3,
		RTTMillisecond:     50,
		SnapshotEntries:    100,
		CompactionOverhead: 10,
		DataDir:            "data",
		ClusterMembers:     map[uint64]string{3: "localhost:63003"},
		Replication:        ReplicationRaft,
	}
	rc := c.ToDragonboatConfig(7)
	if rc.ShardID != 7 || rc.ReplicaID != 3 || rc.SnapshotEntries != 100 || !rc.CheckQuorum {
		t.Errorf("ToDragonboatConfig() = %+v", rc)
	}
	nh := c.ToNodeHostConfig()
	if nh.RaftAddress != "localhost:63003" || nh.RTTMillisecond != 50 || nh.NodeHostDir != "data" {
		t.Errorf("ToNodeHostConfig() = %+v", nh)
	}
	if s := c.String(); !strings.Contains(s, "Node 3: localhost:63003") {
		t.Errorf("String() does not list the cluster members:\n%s", s)
	}
}

func TestReadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skv.yaml")
	content := `
endpoint: 0.0.0.0:7000
cluster-mode: true
slots: 8
Log-Level: debug
raft:
  rtt-millisecond: 20
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ReadConfigFile(path)
	if err != nil {
		t.Fatalf("ReadConfigFile() error = %v", err)
	}
	tests := map[string]string{
		"endpoint":             "0.0.0.0:7000",
		"cluster-mode":         "true",
		"slots":                "8",
		"log-level":            "debug",
		"raft-rtt-millisecond": "20",
	}
	for key, want := range tests {
		if v, ok := got[key]; !ok || fmt.Sprint(v) != want {
			t.Errorf("key %q = %v, want %s", key, v, want)
		}
	}

	if _, err := ReadConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("ReadConfigFile() of a missing file should fail")
	}
	_ = os.WriteFile(path, []byte("endpoint: [unclosed"), 0o644)
	if _, err := ReadConfigFile(path); err == nil {
		t.Error("ReadConfigFile() of invalid yaml should fail")
	}
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]logger.LogLevel{
		"debug": logger.DEBUG,
		"INFO":  logger.INFO,
		"warn":  logger.WARNING,
		"error": logger.ERROR,
	} {
		if got, err := ParseLogLevel(in); err != nil || got != want {
			t.Errorf("ParseLogLevel(%q) = %v, %v, want %v", in, got, err, want)
		}
	}
	if _, err := ParseLogLevel("loud"); err == nil {
		t.Error("ParseLogLevel(loud) should fail")
	}
}

func TestLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	output = &buf
	defer func() { output = os.Stdout }()

	l := CreateLogger("cluster")
	l.Infof("started %d slots", 4)
	l.Debugf("hidden")
	l.SetLevel(logger.DEBUG)
	l.Debugf("visible")

	out := buf.String()
	if !strings.Contains(out, fmt.Sprintf("%-5s | %-15s | %s", "INFO", "cluster", "started 4 slots")) {
		t.Errorf("unexpected log output %q", out)
	}
	if strings.Contains(out, "hidden") || !strings.Contains(out, "visible") {
		t.Errorf("log levels not applied: %q", out)
	}
}

func TestParseClusterMembers(t *testing.T) {
	got, err := ParseClusterMembers("1=localhost:63001, node-2=localhost:63002,")
	if err != nil {
		t.Fatalf("ParseClusterMembers() error = %v", err)
	}
	if len(got) != 2 || got[1] != "localhost:63001" || got[ParseNodeID("node-2")] != "localhost:63002" {
		t.Errorf("ParseClusterMembers() = %v", got)
	}
	if ParseNodeID("node-2") == ParseNodeID("node-3") {
		t.Error("ParseNodeID() maps different names to the same id")
	}

	for _, in := range []string{"1", "1=", "=addr", "1=a=b"} {
		if _, err := ParseClusterMembers(in); err == nil {
			t.Errorf("ParseClusterMembers(%q) should fail", in)
		}
	}
}

func TestSplitEndpoint(t *testing.T) {
	tests := []struct {
		in, network, address string
	}{
		{"localhost:6379", "tcp", "localhost:6379"},
		{"unix:/tmp/skv.sock", "unix", "/tmp/skv.sock"},
		{"/tmp/skv.sock", "unix", "/tmp/skv.sock"},
	}
	for _, tt := range tests {
		if network, address := SplitEndpoint(tt.in); network != tt.network || address != tt.address {
			t.Errorf("SplitEndpoint(%q) = %s, %s, want %s, %s", tt.in, network, address, tt.network, tt.address)
		}
	}
}
