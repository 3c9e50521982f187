package command

import (
	"testing"
	"time"

	"github.com/ValentinKolb/sKV/lib/storage"
)

func TestTTLAndPersist(t *testing.T) {
	f := newFixture()
	f.exec(t, "set", "p", "v")
	f.exec(t, "setex", "e", "100", "v")
	f.exec(t, "setex", "short", "5", "v")
	f.slot.Put(storage.DataTypeHashes, "h", []byte("x"), 50)
	f.slot.Put(storage.DataTypeSets, "h", []byte("x"), 0)

	tests := []struct {
		name    string
		advance time.Duration // clock step before the command
		argv    []string
		want    string
	}{
		{"ttl missing", 0, []string{"ttl", "none"}, integer(-2)},
		{"ttl persisted", 0, []string{"ttl", "p"}, integer(-1)},
		{"ttl", 0, []string{"ttl", "e"}, integer(100)},
		{"pttl", 0, []string{"pttl", "e"}, integer(100000)},
		{"pttl persisted", 0, []string{"pttl", "p"}, integer(-1)},
		{"pttl missing", 0, []string{"pttl", "none"}, integer(-2)},
		{"ttl resolves hashes before sets", 0, []string{"ttl", "h"}, integer(50)},
		{"persist", 0, []string{"persist", "e"}, integer(1)},
		{"persist again", 0, []string{"persist", "e"}, integer(0)},
		{"ttl after persist", 0, []string{"ttl", "e"}, integer(-1)},
		{"persist expired", 200 * time.Second, []string{"persist", "short"}, integer(0)},
		{"ttl expired", 0, []string{"ttl", "short"}, integer(-2)},
		{"get expired", 0, []string{"get", "short"}, "$-1\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.clock.Advance(tt.advance)
			if got := f.reply(t, tt.argv...); got != tt.want {
				t.Errorf("reply = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExpireFamily(t *testing.T) {
	f := newFixture()
	for _, k := range []string{"a", "b", "c", "d"} {
		f.exec(t, "set", k, "v")
	}

	tests := []struct {
		name string
		argv []string
		want string
	}{
		{"expire", []string{"expire", "a", "10"}, integer(1)},
		{"expire missing", []string{"expire", "none", "10"}, integer(0)},
		{"expire invalid", []string{"expire", "a", "ten"}, "-ERR value is not an integer or out of range\r\n"},
		{"pexpire", []string{"pexpire", "b", "20000"}, integer(1)},
		{"expireat", []string{"expireat", "c", ts(30)}, integer(1)},
		{"pexpireat", []string{"pexpireat", "d", ts(40) + "000"}, integer(1)},
		{"ttl a", []string{"ttl", "a"}, integer(10)},
		{"ttl b", []string{"ttl", "b"}, integer(20)},
		{"ttl c", []string{"ttl", "c"}, integer(30)},
		{"ttl d", []string{"ttl", "d"}, integer(40)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.reply(t, tt.argv...); got != tt.want {
				t.Errorf("reply = %q, want %q", got, tt.want)
			}
		})
	}

	f.clock.Advance(10 * time.Second)
	if got := f.reply(t, "exists", "a", "b"); got != integer(1) {
		t.Errorf("exists after expiry = %q, want 1", got)
	}
}

func TestType(t *testing.T) {
	f := newFixture()
	f.exec(t, "set", "k", "v")
	f.slot.Put(storage.DataTypeHashes, "k", []byte("x"), 0)
	f.slot.Put(storage.DataTypeZSets, "z", []byte("x"), 0)

	tests := []struct {
		name string
		argv []string
		want string
	}{
		{"type string", []string{"type", "k"}, "+string\r\n"},
		{"type zset", []string{"type", "z"}, "+zset\r\n"},
		{"type missing", []string{"type", "none"}, "+none\r\n"},
		{"ptype", []string{"ptype", "k"}, "*2\r\n" + bulk("string") + bulk("hash")},
		{"ptype missing", []string{"ptype", "none"}, "*1\r\n" + bulk("none")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.reply(t, tt.argv...); got != tt.want {
				t.Errorf("reply = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDelAndExists(t *testing.T) {
	f := newFixture()
	f.exec(t, "set", "a", "1")
	f.exec(t, "set", "b", "2")
	f.slot.Put(storage.DataTypeLists, "l", []byte("x"), 0)
	f.index.Add(0, "l")

	if got := f.reply(t, "exists", "a", "b", "c", "l"); got != integer(3) {
		t.Errorf("exists = %q, want 3", got)
	}
	if got := f.reply(t, "del", "a", "b", "c", "l"); got != integer(3) {
		t.Errorf("del = %q, want 3", got)
	}
	for _, k := range []string{"a", "b", "l"} {
		if f.index.Has(0, k) {
			t.Errorf("key %q still indexed after del", k)
		}
	}
	if got := f.reply(t, "exists", "a", "b", "l"); got != integer(0) {
		t.Errorf("exists after del = %q, want 0", got)
	}
}

func TestKeyIndexMaintenance(t *testing.T) {
	f := newFixture()

	writes := [][]string{
		{"set", "set", "v"},
		{"setnx", "setnx", "v"},
		{"setex", "setex", "10", "v"},
		{"psetex", "psetex", "10000", "v"},
		{"pksetexat", "pksetexat", ts(10), "v"},
		{"mset", "mset1", "v", "mset2", "v"},
		{"msetnx", "msetnx1", "v", "msetnx2", "v"},
		{"append", "append", "v"},
		{"setrange", "setrange", "0", "v"},
		{"getset", "getset", "v"},
		{"incr", "incr"},
		{"incrby", "incrby", "2"},
		{"incrbyfloat", "incrbyfloat", "2.5"},
		{"decr", "decr"},
		{"decrby", "decrby", "2"},
	}
	for _, argv := range writes {
		t.Run(argv[0], func(t *testing.T) {
			c := f.exec(t, argv...)
			if c.Failed() {
				t.Fatalf("%q failed: %q", argv, c.Response())
			}
			for _, key := range c.Keys() {
				if !f.index.Has(0, key) {
					t.Errorf("key %q not indexed after %s", key, argv[0])
				}
			}
		})
	}

	// failed conditional writes do not index
	f.exec(t, "set", "cond", "v", "xx")
	f.exec(t, "setnx", "set", "v")
	if f.index.Has(0, "cond") {
		t.Error("set xx on a missing key indexed the key")
	}

	// delvx removes, expire with a non positive ttl removes
	f.exec(t, "delvx", "set", "v")
	if f.index.Has(0, "set") {
		t.Error("delvx did not deregister the key")
	}
	f.exec(t, "expire", "append", "0")
	if f.index.Has(0, "append") {
		t.Error("expire 0 did not deregister the key")
	}

	// delvx keeps the key indexed if it still lives in another namespace
	f.exec(t, "set", "shared", "v")
	f.slot.Put(storage.DataTypeHashes, "shared", []byte("x"), 0)
	f.exec(t, "delvx", "shared", "v")
	if !f.index.Has(0, "shared") {
		t.Error("delvx deregistered a key that is still live as a hash")
	}

	// a timestamp in the past deletes instead of indexing
	f.exec(t, "pksetexat", "past", ts(-1), "v")
	if f.index.Has(0, "past") {
		t.Error("pksetexat in the past indexed the key")
	}
}
