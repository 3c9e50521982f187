// Package cmd implements the command-line interface of sKV. It provides a
// hierarchical command structure for running the server and talking to it as
// a client.
//
// The package is organized into several subpackages:
//
//   - kv: Commands sending RESP commands to a server (exec, get, set, scan, perf, ...)
//   - serve: Commands for starting and configuring the sKV server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See skv -help for a list of all commands.
package cmd
