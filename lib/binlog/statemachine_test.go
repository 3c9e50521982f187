package binlog

import (
	"bytes"
	"testing"
	"time"

	"github.com/ValentinKolb/sKV/lib/command"
	"github.com/ValentinKolb/sKV/lib/storage"
	slottesting "github.com/ValentinKolb/sKV/lib/storage/testing"
	sm "github.com/lni/dragonboat/v4/statemachine"
)

const localOrigin = 7

func newStateMachine(env *command.Env, clock *slottesting.Clock) *StateMachine {
	factory := CreateStateMachineFactory(localOrigin, func(slotID uint64) *command.Env {
		if slotID != env.SlotID {
			panic("state machine created for the wrong slot")
		}
		return env
	}, clock.Now)
	return factory(ShardID(env.SlotID), 1).(*StateMachine)
}

func TestStateMachineUpdate(t *testing.T) {
	clock := slottesting.NewClock(epoch)
	env := newEnv(2, clock)
	fsm := newStateMachine(env, clock)

	entries := []sm.Entry{
		{Index: 1, Cmd: encodeProposal(99, encode("set", "remote", "1"))},
		{Index: 2, Cmd: encodeProposal(localOrigin, encode("set", "local", "1"))},
		{Index: 3, Cmd: encodeProposal(99, encode("incrby", "remote", "9"))},
		{Index: 4, Cmd: []byte{1}},
		{Index: 5, Cmd: encodeProposal(99, []byte("garbage\r\n"))},
		{Index: 6, Cmd: encodeProposal(99, encode("get", "remote"))},
	}
	res, err := fsm.Update(entries)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	want := []uint64{resultApplied, resultSkipped, resultApplied, resultFailed, resultFailed, resultFailed}
	for i, e := range res {
		if e.Result.Value != want[i] {
			t.Errorf("entry %d result = %d (%s), want %d", e.Index, e.Result.Value, e.Result.Data, want[i])
		}
	}

	if got := get(t, env, "remote"); got != "$2\r\n10\r\n" {
		t.Errorf("get remote = %q, want 10", got)
	}
	if got := get(t, env, "local"); got != "$-1\r\n" {
		t.Errorf("entries of the local origin must not be applied, get local = %q", got)
	}
	if !env.Index.Has(2, "remote") {
		t.Error("replayed key not indexed")
	}

	if res, err := fsm.Update(nil); err != nil || len(res) != 0 {
		t.Errorf("Update(nil) = %v, %v", res, err)
	}
}

func TestStateMachineLookup(t *testing.T) {
	clock := slottesting.NewClock(epoch)
	env := newEnv(0, clock)
	fsm := newStateMachine(env, clock)
	_ = env.Slot.Set("k", []byte("v"))

	tests := []struct {
		name    string
		query   interface{}
		want    string
		wantErr bool
	}{
		{"get", []string{"get", "k"}, "$1\r\nv\r\n", false},
		{"exists", []string{"exists", "k", "x"}, ":1\r\n", false},
		{"arity", []string{"get"}, "-ERR wrong number of arguments for 'get' command\r\n", false},
		{"write", []string{"set", "k", "w"}, "", true},
		{"unknown", []string{"nosuch"}, "", true},
		{"type", "get k", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fsm.Lookup(tt.query)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Lookup() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && string(got.([]byte)) != tt.want {
				t.Errorf("Lookup() = %q, want %q", got, tt.want)
			}
		})
	}
	if v, _ := env.Slot.Get("k"); string(v) != "v" {
		t.Errorf("Lookup() modified the slot, k = %q", v)
	}
}

func TestStateMachineSnapshot(t *testing.T) {
	clock := slottesting.NewClock(epoch)
	source := newEnv(0, clock)
	fsm := newStateMachine(source, clock)

	_ = source.Slot.Set("plain", []byte("p"))
	_ = source.Slot.Setex("timed", []byte("t"), 100)
	for i := 0; i < snapshotPage+5; i++ {
		_ = source.Slot.Set("bulk:"+string(rune('a'+i%26))+string(rune('a'+i/26)), []byte("b"))
	}

	var buf bytes.Buffer
	if err := fsm.SaveSnapshot(nil, &buf, nil, make(chan struct{})); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}

	// recover on a replica that already holds stale data, 30s later
	later := slottesting.NewClock(epoch.Add(30 * time.Second))
	target := newEnv(0, later)
	_ = target.Slot.Set("stale", []byte("s"))
	target.Index.Add(0, "stale")
	replica := newStateMachine(target, later)

	if err := replica.RecoverFromSnapshot(&buf, nil, make(chan struct{})); err != nil {
		t.Fatalf("RecoverFromSnapshot() error = %v", err)
	}

	if got := get(t, target, "plain"); got != "$1\r\np\r\n" {
		t.Errorf("get plain = %q", got)
	}
	if got := get(t, target, "stale"); got != "$-1\r\n" || target.Index.Has(0, "stale") {
		t.Errorf("stale key survived the recovery, get stale = %q", got)
	}
	ttl, _ := target.Slot.TTL("timed")
	if got := ttl[storage.DataTypeStrings]; got != 70 {
		t.Errorf("ttl of timed = %d, want 70", got)
	}
	ttl, _ = target.Slot.TTL("plain")
	if got := ttl[storage.DataTypeStrings]; got != storage.TTLPersisted {
		t.Errorf("ttl of plain = %d, want %d", got, storage.TTLPersisted)
	}

	n, _ := target.Slot.Exists(target.Index.Keys(0, "*"))
	if want := int64(snapshotPage + 7); n != want || int64(target.Index.Len(0)) != want {
		t.Errorf("recovered %d keys (%d indexed), want %d", n, target.Index.Len(0), want)
	}
}

func TestSaveSnapshotStopped(t *testing.T) {
	clock := slottesting.NewClock(epoch)
	fsm := newStateMachine(newEnv(0, clock), clock)

	done := make(chan struct{})
	close(done)
	if err := fsm.SaveSnapshot(nil, &bytes.Buffer{}, nil, done); err != sm.ErrSnapshotStopped {
		t.Errorf("SaveSnapshot() error = %v, want ErrSnapshotStopped", err)
	}
}

func TestShardID(t *testing.T) {
	if got := ShardID(0); got != 1 {
		t.Errorf("ShardID(0) = %d, want 1", got)
	}
}
