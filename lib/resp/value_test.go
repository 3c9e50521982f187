package resp

import (
	"bufio"
	"strings"
	"testing"
)

func TestReadReply(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"status", "+OK\r\n", "OK"},
		{"error", "-ERR syntax error\r\n", "(error) ERR syntax error"},
		{"integer", ":-12\r\n", "(integer) -12"},
		{"bulk", "$5\r\nhe\r\no\r\n", `"he\r\no"`},
		{"empty bulk", "$0\r\n\r\n", `""`},
		{"null", "$-1\r\n", "(nil)"},
		{"empty array", "*0\r\n", "(empty array)"},
		{"array", "*3\r\n$1\r\na\r\n$-1\r\n:3\r\n", "1) \"a\"\n2) (nil)\n3) (integer) 3"},
		{"nested", "*2\r\n$1\r\n0\r\n*2\r\n$1\r\nk\r\n$1\r\nj\r\n", "1) \"0\"\n2) 1) \"k\"\n   2) \"j\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rd := bufio.NewReader(strings.NewReader(tt.raw))
			v, err := ReadReply(rd)
			if err != nil {
				t.Fatalf("ReadReply() error = %v", err)
			}
			if got := v.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
			if rd.Buffered() != 0 {
				t.Errorf("ReadReply() left %d bytes unread", rd.Buffered())
			}
		})
	}
}

func TestReadReplyErrors(t *testing.T) {
	for _, raw := range []string{
		"?\r\n",
		":abc\r\n",
		"$-2\r\n",
		"$3\r\nab\r\n",
		"+OK\n",
		"*2\r\n:1\r\n",
	} {
		if _, err := ReadReply(bufio.NewReader(strings.NewReader(raw))); err == nil {
			t.Errorf("ReadReply(%q) should fail", raw)
		}
	}
}

func TestReadReplyOfEncodedCommand(t *testing.T) {
	v, err := ReadReply(bufio.NewReader(strings.NewReader(string(EncodeCommand([]string{"set", "k", "v"})))))
	if err != nil || v.Kind != KindArray || len(v.Array) != 3 || v.Array[2].Str != "v" {
		t.Errorf("ReadReply() = %+v, %v", v, err)
	}
	if v.IsError() {
		t.Error("IsError() = true for an array")
	}
}
