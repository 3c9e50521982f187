package binlog

import (
	"encoding/binary"
	"errors"
	"time"
)

// A raft proposal carries the origin of the entry in front of the RESP
// encoded command:
//
//	| origin (8 byte, big endian) | entry |
//
// The origin identifies the process that executed the command. Its own state
// machine skips the entry because the command already ran on the local slot.
const originSize = 8

var errShortProposal = errors.New("binlog: proposal shorter than its header")

// NewOrigin returns an origin id unique to this process incarnation.
// Entries written by an earlier run of the same replica carry a different
// origin and are applied on restart.
func NewOrigin() uint64 {
	return uint64(time.Now().UnixNano()) | 1
}

func encodeProposal(origin uint64, entry []byte) []byte {
	b := make([]byte, originSize+len(entry))
	binary.BigEndian.PutUint64(b, origin)
	copy(b[originSize:], entry)
	return b
}

func decodeProposal(b []byte) (uint64, []byte, error) {
	if len(b) < originSize {
		return 0, nil, errShortProposal
	}
	return binary.BigEndian.Uint64(b), b[originSize:], nil
}
