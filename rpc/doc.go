// Package rpc provides the network surface of sKV.
//
// The package is organized into several subpackages:
//
//   - common: Configuration structures of server and client, the YAML config
//     file loader and the logger shared with dragonboat.
//
//   - server: The RESP server executing commands on the slots of a node and the
//     admin HTTP api.
//
//   - client: A pooled RESP client used by the command line tools.
package rpc
