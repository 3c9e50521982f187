// Package resp builds RESP replies and encodes commands in the canonical
// array-of-bulk-strings form used both on the wire and in the replication log.
//
// The framing itself is delegated to redcon, so the reader used for live client
// requests is the same one that replays log entries.
package resp

import (
	"io"
	"strconv"

	"github.com/tidwall/redcon"
)

// --------------------------------------------------------------------------
// Reply
// --------------------------------------------------------------------------

// Reply accumulates the serialized reply of one command.
// The zero value is an empty reply ready to use.
type Reply struct {
	buf   []byte
	isErr bool
}

// AppendInteger appends an integer reply (":n")
func (r *Reply) AppendInteger(n int64) {
	r.buf = redcon.AppendInt(r.buf, n)
}

// AppendBulk appends a bulk string reply ("$len value")
func (r *Reply) AppendBulk(b []byte) {
	r.buf = redcon.AppendBulk(r.buf, b)
}

// AppendBulkString appends a bulk string reply
func (r *Reply) AppendBulkString(s string) {
	r.buf = redcon.AppendBulkString(r.buf, s)
}

// AppendNull appends the null bulk string ("$-1")
func (r *Reply) AppendNull() {
	r.buf = redcon.AppendNull(r.buf)
}

// AppendArrayLen appends an array header, the elements follow
func (r *Reply) AppendArrayLen(n int) {
	r.buf = redcon.AppendArray(r.buf, n)
}

// AppendStatus appends a simple string reply ("+status")
func (r *Reply) AppendStatus(s string) {
	r.buf = redcon.AppendString(r.buf, s)
}

// AppendRaw appends pre-serialized reply fragments
func (r *Reply) AppendRaw(raw []byte) {
	r.buf = append(r.buf, raw...)
}

// SetOK replaces the reply with "+OK"
func (r *Reply) SetOK() {
	r.buf = redcon.AppendOK(r.buf[:0])
	r.isErr = false
}

// SetError replaces the reply with the error ("-msg")
func (r *Reply) SetError(msg string) {
	r.buf = redcon.AppendError(r.buf[:0], msg)
	r.isErr = true
}

// IsError reports whether the reply is an error reply
func (r *Reply) IsError() bool {
	return r.isErr
}

// Bytes returns the serialized reply
func (r *Reply) Bytes() []byte {
	return r.buf
}

// Len returns the size of the serialized reply in bytes
func (r *Reply) Len() int {
	return len(r.buf)
}

// Reset clears the reply
func (r *Reply) Reset() {
	r.buf = r.buf[:0]
	r.isErr = false
}

// AppendBulkRaw serializes s as a bulk string onto raw. Used to build
// large array bodies without an intermediate Reply.
func AppendBulkRaw(raw []byte, s string) []byte {
	return redcon.AppendBulkString(raw, s)
}

// --------------------------------------------------------------------------
// Canonical command encoding
// --------------------------------------------------------------------------

// EncodeCommand serializes args as an array of bulk strings
func EncodeCommand(args []string) []byte {
	size := 1 + len(strconv.Itoa(len(args))) + 2
	for _, a := range args {
		size += 1 + len(strconv.Itoa(len(a))) + 2 + len(a) + 2
	}
	b := make([]byte, 0, size)
	b = redcon.AppendArray(b, len(args))
	for _, a := range args {
		b = redcon.AppendBulkString(b, a)
	}
	return b
}

// --------------------------------------------------------------------------
// Reader
// --------------------------------------------------------------------------

// Reader reads commands from a stream of RESP arrays (or inline commands)
type Reader struct {
	rd *redcon.Reader
}

// NewReader creates a reader on r
func NewReader(r io.Reader) *Reader {
	return &Reader{rd: redcon.NewReader(r)}
}

// ReadCommand returns the next command as its argument vector.
// io.EOF is returned once the stream is exhausted.
func (r *Reader) ReadCommand() ([]string, error) {
	cmd, err := r.rd.ReadCommand()
	if err != nil {
		return nil, err
	}
	return Args(cmd), nil
}

// Args converts a parsed redcon command to its argument vector
func Args(cmd redcon.Command) []string {
	argv := make([]string, len(cmd.Args))
	for i, a := range cmd.Args {
		argv[i] = string(a)
	}
	return argv
}
