package binlog

import (
	"testing"
	"time"

	"github.com/ValentinKolb/sKV/lib/command"
	"github.com/ValentinKolb/sKV/lib/keyindex"
	"github.com/ValentinKolb/sKV/lib/resp"
	"github.com/ValentinKolb/sKV/lib/storage/engines/memory"
	slottesting "github.com/ValentinKolb/sKV/lib/storage/testing"
)

var epoch = time.Unix(1_700_000_000, 0)

func newEnv(slotID uint64, clock *slottesting.Clock) *command.Env {
	return &command.Env{
		SlotID: slotID,
		Slot:   memory.NewMemorySlot(&memory.Options{Clock: clock.Now}),
		Index:  keyindex.New(),
	}
}

// run executes argv on env and returns the encoded binlog entries
func run(t *testing.T, env *command.Env, now time.Time, argv ...string) [][]byte {
	t.Helper()
	c, err := command.Parse(argv)
	if err != nil {
		t.Fatalf("Parse(%q) error = %v", argv, err)
	}
	if err := command.Execute(c, env); err != nil {
		t.Fatalf("Execute(%q) error = %v", argv, err)
	}
	entries, err := command.Binlog(c, now)
	if err != nil {
		t.Fatalf("Binlog(%q) error = %v", argv, err)
	}
	out := make([][]byte, len(entries))
	for i, e := range entries {
		out[i] = e.Bytes()
	}
	return out
}

// get returns the reply of a GET on env
func get(t *testing.T, env *command.Env, key string) string {
	t.Helper()
	c, _ := command.Parse([]string{"get", key})
	_ = command.Execute(c, env)
	return string(c.Response())
}

func encode(args ...string) []byte {
	return resp.EncodeCommand(args)
}
