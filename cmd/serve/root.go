package serve

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cmdUtil "github.com/ValentinKolb/sKV/cmd/util"
	"github.com/ValentinKolb/sKV/rpc/common"
	"github.com/ValentinKolb/sKV/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the sKV server",
		Long:    `Start the sKV server with the specified configuration. The configuration can be set via command line flags, environment variables or a YAML file (--config). The format of the environment variables is SKV_<flag> (e.g. SKV_LOG_LEVEL=debug)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "config"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Optional YAML file with the configuration. The keys are the flag names, flags and environment variables take precedence"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:6379", cmdUtil.WrapString("The address on which the RESP server will listen"))

	key = "admin-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("The address of the admin HTTP api (metrics, slot inspection). Empty disables the api"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	key = "cluster-mode"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Route keys over --slots slots by the CRC32 of their hash tag. In classic mode a single slot holds all keys"))

	key = "slots"
	ServeCmd.PersistentFlags().Uint64(key, 16, cmdUtil.WrapString("(Cluster Mode) Number of slots of the node"))

	key = "max-client-response-size"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Maximum size in bytes of a KEYS or SCAN reply (0 uses the default of 1 GiB)"))

	key = "replication"
	ServeCmd.PersistentFlags().String(key, "none", cmdUtil.WrapString("Where the binlog entries of write commands go: none, file (append to per slot files and replay them on start) or raft (one dragonboat shard per slot)"))

	key = "binlog-path"
	ServeCmd.PersistentFlags().String(key, "binlog", cmdUtil.WrapString("(File Replication) Directory of the binlog files"))

	key = "binlog-fsync"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("(File Replication) Sync the binlog files after every write command"))

	key = "rtt-millisecond"
	ServeCmd.PersistentFlags().Int(key, 100, cmdUtil.WrapString("(Raft Replication) RTTMillisecond defines the average Round Trip Time (RTT) in milliseconds between two NodeHost instances. \nOther raft configuration parameters (ElectionRTT=value*10, HeartbeatRTT=value) are derived from this value"))

	key = "snapshot-entries"
	ServeCmd.PersistentFlags().Int(key, 10000, cmdUtil.WrapString("(Raft Replication) SnapshotEntries defines how often the state machine should be snapshotted automatically. It is defined in terms of the number of applied Raft log entries. SnapshotEntries can be set to 0 to disable such automatic snapshotting (not recommended)"))

	key = "compaction-overhead"
	ServeCmd.PersistentFlags().Int(key, 5000, cmdUtil.WrapString("(Raft Replication) CompactionOverhead defines the number of log entries to keep after compaction. Recommended value is about 1/2 of SnapshotEntries"))

	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, "data", cmdUtil.WrapString("(Raft Replication) DataDir is the directory used for storing the raft log and snapshots"))

	key = "replica-id"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(Raft Replication) ReplicaID is the unique identifier for this NodeHost instance (e.g. 'node-1')"))

	key = "cluster-members"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(Raft Replication) ClusterMembers is a comma-separated list of NodeHost addresses in the format 'node-1=localhost:63001,node-2=localhost:63002,...'"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("(Raft Replication) Timeout of a proposal in seconds"))
}

// processConfig reads the configuration from the config file, the command line flags and
// environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// merge the config file below flags and environment variables
	if path := viper.GetString("config"); path != "" {
		values, err := common.ReadConfigFile(path)
		if err != nil {
			return err
		}
		if err := viper.MergeConfigMap(values); err != nil {
			return fmt.Errorf("failed to merge config file %s: %w", path, err)
		}
	}

	return loadServerConfig(serveCmdConfig)
}

// loadServerConfig fills config from viper and validates it
func loadServerConfig(config *common.ServerConfig) error {
	mode, err := common.ParseReplicationMode(viper.GetString("replication"))
	if err != nil {
		return err
	}

	config.Endpoint = viper.GetString("endpoint")
	config.AdminEndpoint = viper.GetString("admin-endpoint")
	config.LogLevel = viper.GetString("log-level")
	config.ClusterMode = viper.GetBool("cluster-mode")
	config.Slots = viper.GetUint64("slots")
	config.MaxClientResponseSize = viper.GetInt("max-client-response-size")
	config.Replication = mode
	config.BinlogPath = viper.GetString("binlog-path")
	config.BinlogFsync = viper.GetBool("binlog-fsync")
	config.RTTMillisecond = viper.GetUint64("rtt-millisecond")
	config.SnapshotEntries = viper.GetUint64("snapshot-entries")
	config.CompactionOverhead = viper.GetUint64("compaction-overhead")
	config.DataDir = viper.GetString("data-dir")
	config.TimeoutSecond = viper.GetInt64("timeout")

	// parse replica id
	if id := viper.GetString("replica-id"); id != "" {
		config.ReplicaID = common.ParseNodeID(id)
	}

	// parse cluster members
	if members := viper.GetString("cluster-members"); members != "" {
		if config.ClusterMembers, err = common.ParseClusterMembers(members); err != nil {
			return err
		}
	}

	return config.Validate()
}

// run starts the sKV server and stops it on SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	serv := server.NewServer(*serveCmdConfig)
	if err := serv.Start(); err != nil {
		return err
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	server.Logger.Infof("shutting down")
	return serv.Close()
}
