package command

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/sKV/lib/keyindex"
	"github.com/ValentinKolb/sKV/lib/storage/engines/memory"
	slottesting "github.com/ValentinKolb/sKV/lib/storage/testing"
)

var epoch = time.Unix(1_700_000_000, 0)

// fixture is one slot with its key index and a manual clock
type fixture struct {
	slot  *memory.Slot
	index *keyindex.Index
	clock *slottesting.Clock
	env   *Env
}

func newFixture() *fixture {
	clock := slottesting.NewClock(epoch)
	slot := memory.NewMemorySlot(&memory.Options{Clock: clock.Now})
	index := keyindex.New()
	return &fixture{
		slot:  slot,
		index: index,
		clock: clock,
		env:   &Env{SlotID: 0, Slot: slot, Index: index},
	}
}

// exec parses and executes args, a parse failure leaves the command failed
func (f *fixture) exec(t *testing.T, args ...string) Command {
	t.Helper()
	c, err := Parse(args)
	if c == nil {
		t.Fatalf("Parse(%q) error = %v", args, err)
	}
	if err == nil {
		if err := Execute(c, f.env); err == ErrInvalidState {
			t.Fatalf("Execute(%q) error = %v", args, err)
		}
	}
	return c
}

// reply executes args and returns the serialized reply
func (f *fixture) reply(t *testing.T, args ...string) string {
	t.Helper()
	return string(f.exec(t, args...).Response())
}

// binlog executes args and encodes the command at the current clock
func (f *fixture) binlog(t *testing.T, args ...string) []string {
	t.Helper()
	c := f.exec(t, args...)
	if c.Failed() {
		t.Fatalf("%q failed: %q", args, c.Response())
	}
	entries, err := Binlog(c, f.clock.Now())
	if err != nil {
		t.Fatalf("Binlog(%q) error = %v", args, err)
	}
	return render(entries)
}

func render(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = strings.Join(e.Args, " ")
	}
	return out
}

func bulk(s string) string {
	return "$" + strconv.Itoa(len(s)) + "\r\n" + s + "\r\n"
}

func integer(n int64) string {
	return ":" + strconv.FormatInt(n, 10) + "\r\n"
}

func ts(offset int64) string {
	return strconv.FormatInt(epoch.Unix()+offset, 10)
}

// decodeCursorReply splits a "*2 cursor *n keys..." reply
func decodeCursorReply(t *testing.T, reply string) (string, []string) {
	t.Helper()
	lines := strings.Split(strings.TrimSuffix(reply, "\r\n"), "\r\n")
	if len(lines) < 4 || lines[0] != "*2" {
		t.Fatalf("malformed cursor reply %q", reply)
	}
	cursor := lines[2]
	n, err := strconv.Atoi(strings.TrimPrefix(lines[3], "*"))
	if err != nil {
		t.Fatalf("malformed cursor reply %q", reply)
	}
	keys := make([]string, 0, n)
	for i := 0; i < n; i++ {
		keys = append(keys, lines[5+2*i])
	}
	return cursor, keys
}
