package command

import (
	"fmt"
	"strings"
	"testing"

	"github.com/ValentinKolb/sKV/lib/keyindex"
	"github.com/ValentinKolb/sKV/lib/storage/engines/memory"
)

// shards is a set of slots sharing one key index
type shards struct {
	envs  []*Env
	index *keyindex.Index
}

func newShards(n int) *shards {
	s := &shards{index: keyindex.New()}
	for i := 0; i < n; i++ {
		s.envs = append(s.envs, &Env{SlotID: uint64(i), Slot: memory.NewMemorySlot(nil), Index: s.index})
	}
	return s
}

// scatter splits c over the shards following assign (key position -> shard)
// and merges the partial results in reverse order
func (s *shards) scatter(t *testing.T, c Command, assign []int) error {
	t.Helper()
	groups := make([]HintKeys, len(s.envs))
	for pos, key := range c.Keys() {
		g := &groups[assign[pos]]
		g.Keys = append(g.Keys, key)
		g.Hints = append(g.Hints, pos)
	}

	var parts []Partial
	for i := len(groups) - 1; i >= 0; i-- {
		if len(groups[i].Keys) == 0 {
			continue
		}
		p, err := Split(c, s.envs[i], groups[i])
		if err == ErrInvalidState || err == ErrNotMultiKey {
			t.Fatalf("Split() error = %v", err)
		}
		parts = append(parts, p)
	}
	return Merge(c, parts)
}

func TestMSetSplitEquivalence(t *testing.T) {
	argv := []string{"mset", "k1", "v1", "k2", "v2", "k3", "v3"}

	partitions := [][]int{
		{0, 0, 0},
		{0, 1, 0},
		{1, 0, 1},
		{0, 1, 2},
		{2, 1, 0},
	}

	direct := newFixture()
	dc := direct.exec(t, argv...)
	directEntries, _ := Binlog(dc, epoch)

	for _, assign := range partitions {
		t.Run(fmt.Sprint(assign), func(t *testing.T) {
			s := newShards(3)
			c, err := Parse(argv)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if err := s.scatter(t, c, assign); err != nil {
				t.Fatalf("scatter error = %v", err)
			}
			if string(c.Response()) != string(dc.Response()) {
				t.Errorf("split reply = %q, direct reply = %q", c.Response(), dc.Response())
			}

			for pos, key := range c.Keys() {
				value, err := s.envs[assign[pos]].Slot.Get(key)
				if err != nil || string(value) != "v"+key[1:] {
					t.Errorf("slot %d Get(%q) = %q, %v", assign[pos], key, value, err)
				}
				if !s.index.Has(uint64(assign[pos]), key) {
					t.Errorf("key %q not indexed on slot %d", key, assign[pos])
				}
			}

			entries, err := Binlog(c, epoch)
			if err != nil {
				t.Fatalf("Binlog() error = %v", err)
			}
			if strings.Join(render(entries), "|") != strings.Join(render(directEntries), "|") {
				t.Errorf("split binlog = %v, direct binlog = %v", render(entries), render(directEntries))
			}
		})
	}
}

func TestMGetSplitKeepsOrder(t *testing.T) {
	argv := []string{"mget", "k1", "k2", "k3", "k4"}
	assign := []int{1, 0, 1, 0}

	direct := newFixture()
	direct.exec(t, "mset", "k1", "v1", "k3", "v3", "k4", "v4")
	want := direct.reply(t, argv...)

	s := newShards(2)
	_ = s.envs[1].Slot.Set("k1", []byte("v1"))
	_ = s.envs[1].Slot.Set("k3", []byte("v3"))
	_ = s.envs[0].Slot.Set("k4", []byte("v4"))

	c, _ := Parse(argv)
	if err := s.scatter(t, c, assign); err != nil {
		t.Fatalf("scatter error = %v", err)
	}
	if string(c.Response()) != want {
		t.Errorf("split reply = %q, want %q", c.Response(), want)
	}
	if want != "*4\r\n"+bulk("v1")+"$-1\r\n"+bulk("v3")+bulk("v4") {
		t.Errorf("direct reply = %q", want)
	}
}

func TestCountingSplit(t *testing.T) {
	tests := []struct {
		name string
		argv []string
		want string
	}{
		{"del", []string{"del", "a", "b", "c", "d"}, integer(3)},
		{"exists", []string{"exists", "a", "b", "c", "d"}, integer(3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newShards(2)
			_ = s.envs[0].Slot.Set("a", []byte("1"))
			_ = s.envs[1].Slot.Set("b", []byte("1"))
			_ = s.envs[1].Slot.Set("c", []byte("1"))

			c, _ := Parse(tt.argv)
			if err := s.scatter(t, c, []int{0, 1, 1, 0}); err != nil {
				t.Fatalf("scatter error = %v", err)
			}
			if got := string(c.Response()); got != tt.want {
				t.Errorf("reply = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMSetnx(t *testing.T) {
	f := newFixture()
	f.exec(t, "set", "b", "old")

	c := f.exec(t, "msetnx", "a", "1", "b", "2")
	if got := string(c.Response()); got != integer(0) {
		t.Errorf("msetnx with existing key = %q, want 0", got)
	}
	entries, err := Binlog(c, epoch)
	if err != nil || len(entries) != 0 {
		t.Errorf("Binlog() = %v, %v, want no entries", render(entries), err)
	}
	if v, _ := f.slot.Get("b"); string(v) != "old" {
		t.Errorf("b = %q, want old", v)
	}
	if n, _ := f.slot.Exists([]string{"a"}); n != 0 {
		t.Error("msetnx wrote a although b existed")
	}
	if f.index.Has(0, "a") {
		t.Error("msetnx indexed a although nothing applied")
	}

	got := f.binlog(t, "msetnx", "x", "1", "y", "2")
	if strings.Join(got, "|") != "set x 1|set y 2" {
		t.Errorf("Binlog() = %v, want [set x 1, set y 2]", got)
	}
}

func TestMSetnxSplitPartialApply(t *testing.T) {
	s := newShards(2)
	_ = s.envs[1].Slot.Set("b", []byte("old"))

	c, _ := Parse([]string{"msetnx", "a", "1", "b", "2", "c", "3"})
	if err := s.scatter(t, c, []int{0, 1, 0}); err != nil {
		t.Fatalf("scatter error = %v", err)
	}
	if got := string(c.Response()); got != integer(0) {
		t.Errorf("reply = %q, want 0", got)
	}

	entries, _ := Binlog(c, epoch)
	if got := strings.Join(render(entries), "|"); got != "set a 1|set c 3" {
		t.Errorf("Binlog() = %q, want the pairs of the slot that applied", got)
	}
}

func TestMergeFailure(t *testing.T) {
	c, _ := Parse([]string{"mget", "a", "b"})
	err := Merge(c, []Partial{
		{Hints: []int{0}, Values: nil, Err: errOther("slot unavailable")},
	})
	if err == nil || !c.Failed() {
		t.Fatalf("Merge() error = %v, Failed() = %v", err, c.Failed())
	}
	if got := string(c.Response()); got != "-ERR slot unavailable\r\n" {
		t.Errorf("reply = %q", got)
	}
	if _, err := Binlog(c, epoch); err != ErrInvalidState {
		t.Errorf("Binlog() after failed merge error = %v, want ErrInvalidState", err)
	}
}

func TestMergeMissingKey(t *testing.T) {
	s := newShards(1)
	c, _ := Parse([]string{"mget", "a", "b"})
	p, err := Split(c, s.envs[0], HintKeys{Keys: []string{"a"}, Hints: []int{0}})
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if err := Merge(c, []Partial{p}); err == nil {
		t.Error("Merge() with a missing position should fail")
	}
}

func TestSplitHintMismatch(t *testing.T) {
	s := newShards(1)
	c, _ := Parse([]string{"mset", "a", "1", "b", "2"})

	if _, err := Split(c, s.envs[0], HintKeys{Keys: []string{"a", "b"}, Hints: []int{0}}); err == nil {
		t.Error("Split() with mismatched hints should fail")
	}
	if _, err := Split(c, s.envs[0], HintKeys{Keys: []string{"b"}, Hints: []int{0}}); err == nil {
		t.Error("Split() with a wrong hint should fail")
	}
	if n, _ := s.envs[0].Slot.Exists([]string{"a", "b"}); n != 0 {
		t.Errorf("failed split wrote %d keys", n)
	}
}
