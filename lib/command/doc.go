// Package command implements the command execution core: parsing, execution
// against a storage slot, scatter/gather for multi-key commands and the
// canonical replication log entries of every write.
//
// Lifecycle:
//
//	c, err := command.New("set")         // Created
//	err = command.Initial(c, argv)       // Parsed or Failed (arity, options, integers)
//	err = command.Execute(c, env)        // Executed or Failed
//	entries, err := command.Binlog(c, t) // Encoded
//
// Multi-key commands (DEL, EXISTS, MGET, MSET, MSETNX) may instead be split
// over the slots owning their keys. Split is called once per slot with the
// keys of that slot and their original positions (HintKeys); Merge renders the
// reply after all splits returned. Both paths produce identical replies.
//
// Replication:
//
// Binlog translates the executed command into entries that replay to the same
// state at any later time. Relative expirations (SET EX/PX, SETEX, PSETEX,
// EXPIRE, PEXPIRE, PEXPIREAT) are rewritten to absolute timestamps computed from
// the time passed to Binlog; MSET and MSETNX are logged as one set per pair and
// DEL as one delete per key. Read commands produce no entries.
//
// Key index:
//
// Successful writes that create a key register it in the secondary key index
// of their slot, deletes deregister it. The index is optional (Env.Index).
package command
