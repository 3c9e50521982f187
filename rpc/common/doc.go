// Package common provides the configuration and logging shared by the sKV
// server, client and command line tools.
//
// Key Components:
//
//   - ServerConfig: settings of a server node, covering the RESP and admin
//     endpoints, slot layout, the replication mode and the dragonboat (RAFT)
//     parameters used when binlog entries are replicated through raft.
//     Provides converters to the Dragonboat configuration types.
//
//   - ClientConfig: endpoint, timeout, retry and pool settings of a client.
//
//   - ReadConfigFile: loads a YAML file whose keys mirror the command line
//     flags so it can be merged into viper.
//
//   - Logger: a dragonboat ILogger implementation used by every package of
//     the server, keeping one log format across raft internals and sKV.
package common
