package command

import (
	"errors"
	"sort"
	"strings"
	"testing"
)

func TestNewIsCaseInsensitive(t *testing.T) {
	for _, name := range []string{"set", "SET", "SeT"} {
		c, err := New(name)
		if err != nil {
			t.Fatalf("New(%q) error = %v", name, err)
		}
		if c.Name() != "set" {
			t.Errorf("New(%q).Name() = %q, want set", name, c.Name())
		}
	}
}

func TestUnknownCommand(t *testing.T) {
	_, err := New("frobnicate")
	var cerr *Error
	if !errors.As(err, &cerr) || cerr.Code != CodeUnknownCommand {
		t.Fatalf("New() error = %v, want CodeUnknownCommand", err)
	}
	if cerr.Msg != "ERR unknown command 'frobnicate'" {
		t.Errorf("Msg = %q", cerr.Msg)
	}
}

func TestRegistry(t *testing.T) {
	want := []string{
		"append", "decr", "decrby", "del", "delvx", "exists", "expire", "expireat", "get", "getrange",
		"getset", "incr", "incrby", "incrbyfloat", "keys", "mget", "mset", "msetnx", "persist", "pexpire",
		"pexpireat", "pkrscanrange", "pkscanrange", "pksetexat", "psetex", "pttl", "ptype", "scan", "scanx",
		"set", "setex", "setnx", "setrange", "strlen", "ttl", "type",
	}
	got := Names()
	sort.Strings(got)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestArity(t *testing.T) {
	for _, name := range Names() {
		def := table[name]
		t.Run(name, func(t *testing.T) {
			required := def.arity
			if required < 0 {
				required = -required
			}
			argv := []string{name}
			for len(argv) < required-1 {
				argv = append(argv, "x")
			}

			c, err := Parse(argv)
			var cerr *Error
			if !errors.As(err, &cerr) || cerr.Code != CodeWrongNumberOfArguments {
				t.Fatalf("Parse(%q) error = %v, want CodeWrongNumberOfArguments", argv, err)
			}
			want := "-ERR wrong number of arguments for '" + name + "' command\r\n"
			if string(c.Response()) != want {
				t.Errorf("Response() = %q, want %q", c.Response(), want)
			}
			if !c.Failed() {
				t.Error("Failed() = false")
			}
		})
	}
}

func TestFixedArityRejectsExtraArguments(t *testing.T) {
	f := newFixture()
	tests := [][]string{
		{"get", "a", "b"},
		{"incr", "a", "1"},
		{"ttl", "a", "b"},
		{"setex", "a", "1", "v", "x"},
	}
	for _, argv := range tests {
		t.Run(argv[0], func(t *testing.T) {
			want := "-ERR wrong number of arguments for '" + argv[0] + "' command\r\n"
			if got := f.reply(t, argv...); got != want {
				t.Errorf("reply = %q, want %q", got, want)
			}
		})
	}
}

func TestMSetRequiresPairs(t *testing.T) {
	f := newFixture()
	for _, name := range []string{"mset", "msetnx"} {
		want := "-ERR wrong number of arguments for '" + name + "' command\r\n"
		if got := f.reply(t, name, "a", "1", "b"); got != want {
			t.Errorf("%s reply = %q, want %q", name, got, want)
		}
	}
}

func TestLifecycleOrder(t *testing.T) {
	f := newFixture()

	c, _ := New("set")
	if err := Execute(c, f.env); err != ErrInvalidState {
		t.Errorf("Execute() before Initial error = %v, want ErrInvalidState", err)
	}
	if _, err := Binlog(c, epoch); err != ErrInvalidState {
		t.Errorf("Binlog() before Execute error = %v, want ErrInvalidState", err)
	}
	if err := Initial(c, []string{"set", "k", "v"}); err != nil {
		t.Fatalf("Initial() error = %v", err)
	}
	if err := Initial(c, []string{"set", "k", "v"}); err != ErrInvalidState {
		t.Errorf("second Initial() error = %v, want ErrInvalidState", err)
	}
	if err := Execute(c, f.env); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if err := Execute(c, f.env); err != ErrInvalidState {
		t.Errorf("second Execute() error = %v, want ErrInvalidState", err)
	}
	if _, err := Binlog(c, epoch); err != nil {
		t.Fatalf("Binlog() error = %v", err)
	}
	if _, err := Binlog(c, epoch); err != ErrInvalidState {
		t.Errorf("second Binlog() error = %v, want ErrInvalidState", err)
	}
}

func TestFailedCommandDoesNotExecute(t *testing.T) {
	f := newFixture()

	c, err := Parse([]string{"set", "k", "v", "bogus"})
	if err == nil {
		t.Fatal("Parse() should fail")
	}
	if err := Execute(c, f.env); err != ErrInvalidState {
		t.Errorf("Execute() on failed command error = %v, want ErrInvalidState", err)
	}
	if _, err := f.slot.Get("k"); err == nil {
		t.Error("failed command mutated the slot")
	}
	if _, err := Binlog(c, epoch); err != ErrInvalidState {
		t.Errorf("Binlog() on failed command error = %v, want ErrInvalidState", err)
	}
}

func TestSplitRequiresMultiKey(t *testing.T) {
	f := newFixture()
	c, _ := Parse([]string{"get", "k"})
	if _, err := Split(c, f.env, HintKeys{Keys: []string{"k"}, Hints: []int{0}}); err != ErrNotMultiKey {
		t.Errorf("Split() error = %v, want ErrNotMultiKey", err)
	}
	if err := Merge(c, nil); err != ErrNotMultiKey {
		t.Errorf("Merge() error = %v, want ErrNotMultiKey", err)
	}
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"0", 0, true},
		{"42", 42, true},
		{"-42", -42, true},
		{"9223372036854775807", 9223372036854775807, true},
		{"-9223372036854775808", -9223372036854775808, true},
		{"9223372036854775808", 0, false},
		{"+1", 0, false},
		{"01", 0, false},
		{"-0", 0, false},
		{" 1", 0, false},
		{"1 ", 0, false},
		{"", 0, false},
		{"-", 0, false},
		{"1.5", 0, false},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseInt(tt.in)
			if got != tt.want || ok != tt.ok {
				t.Errorf("parseInt(%q) = %d, %v, want %d, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestParseFloat(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"1.5", true},
		{"-3", true},
		{"5.0e3", true},
		{"nan", false},
		{"inf", false},
		{"abc", false},
		{" 1", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if _, ok := parseFloat(tt.in); ok != tt.ok {
				t.Errorf("parseFloat(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			}
		})
	}
}

func TestHashTag(t *testing.T) {
	tests := []struct {
		key, want string
	}{
		{"user:1", "user:1"},
		{"{user}:1", "user"},
		{"a{b}c{d}", "b"},
		{"{}x", "{}x"},
		{"x{y", "x{y"},
	}
	for _, tt := range tests {
		if got := HashTag(tt.key); got != tt.want {
			t.Errorf("HashTag(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}
