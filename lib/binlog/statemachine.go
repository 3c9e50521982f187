package binlog

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/ValentinKolb/sKV/lib/command"
	"github.com/ValentinKolb/sKV/lib/resp"
	"github.com/ValentinKolb/sKV/lib/storage"
	sm "github.com/lni/dragonboat/v4/statemachine"
)

// Result values of applied proposals
const (
	resultApplied uint64 = iota // the entry was replayed on the slot
	resultSkipped               // the entry originates from this process
	resultFailed                // the entry could not be decoded or replayed
)

// snapshotPage is the number of keys read per range scan while saving a snapshot
const snapshotPage = 1000

// --------------------------------------------------------------------------
// State Machine Implementation
// --------------------------------------------------------------------------

// StateMachine replays the entries of one slot on a replica
type StateMachine struct {
	replicaID uint64
	shardID   uint64
	origin    uint64
	env       *command.Env
	clock     func() time.Time
}

// CreateStateMachineFactory returns a function that can be used by dragonboat to create the
// state machine of a shard. envFor returns the execution environment of the slot the shard
// replicates, clock is used to resolve remaining ttls in snapshots (time.Now if nil).
func CreateStateMachineFactory(origin uint64, envFor func(slotID uint64) *command.Env, clock func() time.Time) func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
	if clock == nil {
		clock = time.Now
	}
	return func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
		return &StateMachine{
			replicaID: replicaID,
			shardID:   shardID,
			origin:    origin,
			env:       envFor(shardID - 1),
			clock:     clock,
		}
	}
}

// Lookup executes a read command given as argument vector and returns its reply
func (fsm *StateMachine) Lookup(itf interface{}) (interface{}, error) {
	argv, ok := itf.([]string)
	if !ok {
		return nil, fmt.Errorf("invalid query type: %T", itf)
	}
	c, err := command.Parse(argv)
	if c == nil {
		return nil, err
	}
	if c.IsWrite() {
		return nil, fmt.Errorf("%s is not a read command", c.Name())
	}
	if err == nil {
		_ = command.Execute(c, fsm.env)
	}
	return c.Response(), nil
}

// Update replays the committed entries. Entries proposed by this process are
// skipped since they were executed before they were proposed.
func (fsm *StateMachine) Update(entries []sm.Entry) ([]sm.Entry, error) {

	// Nothing to do
	if len(entries) == 0 {
		return entries, nil
	}

	start := time.Now()
	for idx, e := range entries {
		origin, entry, err := decodeProposal(e.Cmd)
		if err != nil {
			entries[idx].Result = sm.Result{Value: resultFailed, Data: []byte(err.Error())}
			continue
		}
		if origin == fsm.origin {
			entries[idx].Result = sm.Result{Value: resultSkipped}
			continue
		}

		argv, err := resp.NewReader(bytes.NewReader(entry)).ReadCommand()
		if err != nil {
			entries[idx].Result = sm.Result{Value: resultFailed, Data: []byte(fmt.Sprintf("failed to decode entry: %v", err))}
			continue
		}
		if err := Apply(fsm.env, argv); err != nil {
			log.Warningf("shard %d replica %d: %v", fsm.shardID, fsm.replicaID, err)
			entries[idx].Result = sm.Result{Value: resultFailed, Data: []byte(err.Error())}
			continue
		}
		entries[idx].Result = sm.Result{Value: resultApplied}
	}

	// Log if the update took long
	if elapsed := time.Since(start); elapsed > time.Millisecond {
		log.Infof("State machine took long to update. Batch updated %d entries, took %.2fms", len(entries), float64(elapsed)/float64(time.Millisecond))
	}
	return entries, nil
}

// PrepareSnapshot is not used, snapshots are fuzzy
func (fsm *StateMachine) PrepareSnapshot() (interface{}, error) {
	return nil, nil
}

// SaveSnapshot writes the strings namespace of the slot as a stream of set and
// pksetexat entries
func (fsm *StateMachine) SaveSnapshot(_ interface{}, writer io.Writer, _ sm.ISnapshotFileCollection, done <-chan struct{}) error {
	w := bufio.NewWriter(writer)
	start := ""
	for {
		select {
		case <-done:
			return sm.ErrSnapshotStopped
		default:
		}

		_, kvs, next, err := fsm.env.Slot.PKScanRange(storage.DataTypeStrings, start, "", "*", snapshotPage)
		if err != nil {
			return fmt.Errorf("scan slot for snapshot: %w", err)
		}
		for _, kv := range kvs {
			if _, err := w.Write(fsm.snapshotEntry(kv)); err != nil {
				return err
			}
		}
		if next == "" {
			return w.Flush()
		}
		start = next
	}
}

func (fsm *StateMachine) snapshotEntry(kv storage.KeyValue) []byte {
	ttls, err := fsm.env.Slot.TTL(kv.Key)
	if err == nil {
		if ttl := ttls[storage.DataTypeStrings]; ttl > 0 {
			at := strconv.FormatInt(fsm.clock().Unix()+ttl, 10)
			return resp.EncodeCommand([]string{"pksetexat", kv.Key, at, string(kv.Value)})
		}
	}
	return resp.EncodeCommand([]string{"set", kv.Key, string(kv.Value)})
}

// RecoverFromSnapshot clears the slot and replays the snapshot stream
func (fsm *StateMachine) RecoverFromSnapshot(r io.Reader, _ []sm.SnapshotFile, done <-chan struct{}) error {
	if err := fsm.clear(); err != nil {
		return err
	}

	rd := resp.NewReader(bufio.NewReader(r))
	for n := 0; ; n++ {
		select {
		case <-done:
			return sm.ErrSnapshotStopped
		default:
		}

		argv, err := rd.ReadCommand()
		if err == io.EOF {
			log.Infof("shard %d recovered %d keys from snapshot", fsm.shardID, n)
			return nil
		}
		if err != nil {
			return fmt.Errorf("corrupt snapshot after %d entries: %w", n, err)
		}
		if err := Apply(fsm.env, argv); err != nil {
			return err
		}
	}
}

// clear deletes every key of the slot
func (fsm *StateMachine) clear() error {
	var cursor int64
	for {
		next, keys, err := fsm.env.Slot.Scan(storage.DataTypeAll, cursor, "*", snapshotPage)
		if err != nil {
			return fmt.Errorf("scan slot: %w", err)
		}
		if len(keys) > 0 {
			if _, err := fsm.env.Slot.Del(keys); err != nil {
				return fmt.Errorf("clear slot: %w", err)
			}
			if fsm.env.Index != nil {
				for _, key := range keys {
					fsm.env.Index.Remove(fsm.env.SlotID, key)
				}
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Close performs any necessary cleanup.
func (fsm *StateMachine) Close() error {
	return nil
}
