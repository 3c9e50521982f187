package binlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/client"
	"github.com/puzpuzpuz/xsync/v3"
)

var retries = 5

// ShardID returns the raft shard replicating a slot (shard 0 is reserved by dragonboat)
func ShardID(slotID uint64) uint64 {
	return slotID + 1
}

// RaftSink proposes the entries of every slot to its raft shard
type RaftSink struct {
	nh       *dragonboat.NodeHost
	origin   uint64
	timeout  time.Duration
	sessions *xsync.MapOf[uint64, *client.Session]
}

// NewRaftSink creates a sink on a started node host. The shards of all slots
// have to be started with a state machine created by CreateStateMachineFactory
// using the same origin.
func NewRaftSink(nh *dragonboat.NodeHost, origin uint64, timeout time.Duration) *RaftSink {
	return &RaftSink{
		nh:       nh,
		origin:   origin,
		timeout:  timeout,
		sessions: xsync.NewMapOf[uint64, *client.Session](),
	}
}

func (r *RaftSink) session(shardID uint64) *client.Session {
	cs, _ := r.sessions.LoadOrCompute(shardID, func() *client.Session {
		return r.nh.GetNoOPSession(shardID)
	})
	return cs
}

func (r *RaftSink) Append(slotID uint64, entries [][]byte) error {
	shardID := ShardID(slotID)
	for _, e := range entries {
		if err := r.propose(shardID, encodeProposal(r.origin, e)); err != nil {
			return fmt.Errorf("replicate entry of slot %d: %w", slotID, err)
		}
	}
	return nil
}

// propose sends one proposal via SyncPropose and retries while the system is busy
func (r *RaftSink) propose(shardID uint64, proposal []byte) error {
	cs := r.session(shardID)
	for i := 0; i < retries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		res, err := r.nh.SyncPropose(ctx, cs, proposal)
		cancel()

		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncPropose: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(r.timeout / 10)
			continue
		}
		if err != nil {
			return err
		}
		if res.Value == resultFailed {
			return errors.New(string(res.Data))
		}
		return nil
	}
	return errors.New("timeout")
}
