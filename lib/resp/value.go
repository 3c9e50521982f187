package resp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Kind is the type of a reply value
type Kind byte

const (
	KindStatus  Kind = '+'
	KindError   Kind = '-'
	KindInteger Kind = ':'
	KindBulk    Kind = '$'
	KindArray   Kind = '*'
)

// maxBulkLen caps bulk and array lengths accepted from a peer
const maxBulkLen = 512 << 20

var errProtocol = errors.New("resp: protocol error")

// Value is one decoded reply
type Value struct {
	Kind  Kind
	Str   string  // status, error and bulk content
	Int   int64   // integer value
	Null  bool    // null bulk string or null array
	Array []Value // array elements
}

// ReadReply reads one complete reply from rd (client side)
func ReadReply(rd *bufio.Reader) (Value, error) {
	line, err := rd.ReadString('\n')
	if err != nil {
		return Value{}, err
	}
	if len(line) < 3 || line[len(line)-2] != '\r' {
		return Value{}, errProtocol
	}
	kind, body := Kind(line[0]), line[1:len(line)-2]

	switch kind {
	case KindStatus, KindError:
		return Value{Kind: kind, Str: body}, nil
	case KindInteger:
		n, err := strconv.ParseInt(body, 10, 64)
		if err != nil {
			return Value{}, errProtocol
		}
		return Value{Kind: kind, Int: n}, nil
	case KindBulk:
		n, err := length(body)
		if err != nil {
			return Value{}, err
		}
		if n < 0 {
			return Value{Kind: kind, Null: true}, nil
		}
		buf := make([]byte, n+2)
		if _, err := io.ReadFull(rd, buf); err != nil {
			return Value{}, err
		}
		if buf[n] != '\r' || buf[n+1] != '\n' {
			return Value{}, errProtocol
		}
		return Value{Kind: kind, Str: string(buf[:n])}, nil
	case KindArray:
		n, err := length(body)
		if err != nil {
			return Value{}, err
		}
		if n < 0 {
			return Value{Kind: kind, Null: true}, nil
		}
		v := Value{Kind: kind, Array: make([]Value, 0, n)}
		for i := 0; i < n; i++ {
			elem, err := ReadReply(rd)
			if err != nil {
				return Value{}, err
			}
			v.Array = append(v.Array, elem)
		}
		return v, nil
	default:
		return Value{}, errProtocol
	}
}

func length(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < -1 || n > maxBulkLen {
		return 0, errProtocol
	}
	return n, nil
}

// IsError reports whether the value is an error reply
func (v Value) IsError() bool { return v.Kind == KindError }

// String formats the value the way redis-cli prints it
func (v Value) String() string {
	var sb strings.Builder
	v.format(&sb, "")
	return sb.String()
}

func (v Value) format(sb *strings.Builder, indent string) {
	switch {
	case v.Null:
		sb.WriteString("(nil)")
	case v.Kind == KindStatus:
		sb.WriteString(v.Str)
	case v.Kind == KindError:
		sb.WriteString("(error) " + v.Str)
	case v.Kind == KindInteger:
		sb.WriteString("(integer) " + strconv.FormatInt(v.Int, 10))
	case v.Kind == KindBulk:
		sb.WriteString(strconv.Quote(v.Str))
	case v.Kind == KindArray:
		if len(v.Array) == 0 {
			sb.WriteString("(empty array)")
			return
		}
		width := len(strconv.Itoa(len(v.Array)))
		for i, elem := range v.Array {
			if i > 0 {
				sb.WriteString("\n" + indent)
			}
			prefix := fmt.Sprintf("%*d) ", width, i+1)
			sb.WriteString(prefix)
			elem.format(sb, indent+strings.Repeat(" ", len(prefix)))
		}
	}
}
