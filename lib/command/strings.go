package command

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/sKV/lib/storage"
)

// absolute returns the unix timestamp sec seconds after now as log argument
func absolute(now time.Time, sec int64) string {
	return strconv.FormatInt(now.Unix()+sec, 10)
}

// --------------------------------------------------------------------------
// SET key value [NX | XX | VX target] [EX seconds | PX milliseconds]
// --------------------------------------------------------------------------

type setCondition uint8

const (
	condNone setCondition = iota
	condNX
	condXX
	condVX
	condEXorPX
)

type setCmd struct {
	base
	key, value, target string
	condition          setCondition
	timed              bool
	sec                int64

	applied bool
	vxRes   int32
}

// parse reads the options left to right. A later conditional overrides an
// earlier one, EX and PX only become the condition if none is set yet.
func (c *setCmd) parse() *Error {
	c.key = c.argv[1]
	c.value = c.argv[2]
	c.condition = condNone
	c.sec = 0

	for i := 3; i < len(c.argv); i++ {
		opt := strings.ToLower(c.argv[i])
		switch opt {
		case "xx":
			c.condition = condXX
		case "nx":
			c.condition = condNX
		case "vx":
			c.condition = condVX
			target, ok := optionArg(c.argv, i)
			if !ok {
				return errSyntax()
			}
			c.target = target
			i++
		case "ex", "px":
			if c.condition == condNone {
				c.condition = condEXorPX
			}
			arg, ok := optionArg(c.argv, i)
			if !ok {
				return errSyntax()
			}
			sec, ok := parseInt(arg)
			if !ok {
				return errInvalidInt()
			}
			if opt == "px" {
				sec /= 1000
			}
			c.sec = sec
			c.timed = true
			i++
		default:
			return errSyntax()
		}
	}
	return nil
}

func (c *setCmd) do(env *Env) *Error {
	var (
		res int32 = 1
		err error
	)
	value := []byte(c.value)

	switch c.condition {
	case condXX:
		res, err = env.Slot.Setxx(c.key, value, c.sec)
	case condNX:
		res, err = env.Slot.Setnx(c.key, value, c.sec)
	case condVX:
		c.vxRes, err = env.Slot.Setvx(c.key, []byte(c.target), value, c.sec)
	case condEXorPX:
		err = env.Slot.Setex(c.key, value, c.sec)
	default:
		err = env.Slot.Set(c.key, value)
	}
	if err != nil && !storage.IsNotFound(err) {
		return fromStorage(err)
	}

	if c.condition == condVX {
		c.reply.AppendInteger(int64(c.vxRes))
		c.applied = c.vxRes == 1
	} else if res == 1 {
		c.reply.SetOK()
		c.applied = true
	} else {
		c.reply.AppendNull()
	}

	if c.applied {
		env.addKey(c.key)
	}
	return nil
}

func (c *setCmd) binlog(now time.Time) []Entry {
	switch {
	case c.condition == condEXorPX:
		return []Entry{c.pksetexat(now)}
	case c.timed && c.applied:
		return []Entry{c.pksetexat(now)}
	case c.timed:
		// a timed conditional set that did not apply changed nothing, an absolute
		// entry would recreate the key on replicas
		return nil
	default:
		return c.verbatim()
	}
}

func (c *setCmd) pksetexat(now time.Time) Entry {
	return Entry{Key: c.key, Args: []string{"pksetexat", c.key, absolute(now, c.sec), c.value}}
}

// --------------------------------------------------------------------------
// GET key
// --------------------------------------------------------------------------

type getCmd struct {
	base
}

func (c *getCmd) parse() *Error { return nil }

func (c *getCmd) do(env *Env) *Error {
	value, err := env.Slot.Get(c.argv[1])
	switch {
	case err == nil:
		c.reply.AppendBulk(value)
	case storage.IsNotFound(err):
		c.reply.AppendNull()
	default:
		return fromStorage(err)
	}
	return nil
}

func (c *getCmd) binlog(time.Time) []Entry { return nil }

// --------------------------------------------------------------------------
// GETSET key value
// --------------------------------------------------------------------------

type getsetCmd struct {
	base
}

func (c *getsetCmd) parse() *Error { return nil }

func (c *getsetCmd) do(env *Env) *Error {
	old, err := env.Slot.GetSet(c.argv[1], []byte(c.argv[2]))
	if err != nil {
		return fromStorage(err)
	}
	if old == nil {
		c.reply.AppendNull()
	} else {
		c.reply.AppendBulk(old)
	}
	env.addKey(c.argv[1])
	return nil
}

func (c *getsetCmd) binlog(time.Time) []Entry { return c.verbatim() }

// --------------------------------------------------------------------------
// SETNX key value
// --------------------------------------------------------------------------

type setnxCmd struct {
	base
}

func (c *setnxCmd) parse() *Error { return nil }

func (c *setnxCmd) do(env *Env) *Error {
	res, err := env.Slot.Setnx(c.argv[1], []byte(c.argv[2]), 0)
	if err != nil {
		return fromStorage(err)
	}
	c.reply.AppendInteger(int64(res))
	if res == 1 {
		env.addKey(c.argv[1])
	}
	return nil
}

// binlog logs the write regardless of its outcome, replicas evaluate the condition themselves
func (c *setnxCmd) binlog(time.Time) []Entry {
	return []Entry{{Key: c.argv[1], Args: []string{"setnx", c.argv[1], c.argv[2]}}}
}

// --------------------------------------------------------------------------
// SETEX key seconds value / PSETEX key milliseconds value
// --------------------------------------------------------------------------

type setexCmd struct {
	base
	sec int64
}

func (c *setexCmd) parse() *Error {
	sec, ok := parseInt(c.argv[2])
	if !ok {
		return errInvalidInt()
	}
	c.sec = sec
	return nil
}

func (c *setexCmd) do(env *Env) *Error {
	return doSetex(env, &c.base, c.argv[1], c.argv[3], c.sec)
}

func (c *setexCmd) binlog(now time.Time) []Entry {
	return []Entry{{Key: c.argv[1], Args: []string{"pksetexat", c.argv[1], absolute(now, c.sec), c.argv[3]}}}
}

type psetexCmd struct {
	base
	msec int64
}

func (c *psetexCmd) parse() *Error {
	msec, ok := parseInt(c.argv[2])
	if !ok {
		return errInvalidInt()
	}
	c.msec = msec
	return nil
}

func (c *psetexCmd) do(env *Env) *Error {
	return doSetex(env, &c.base, c.argv[1], c.argv[3], c.msec/1000)
}

func (c *psetexCmd) binlog(now time.Time) []Entry {
	return []Entry{{Key: c.argv[1], Args: []string{"pksetexat", c.argv[1], absolute(now, c.msec/1000), c.argv[3]}}}
}

func doSetex(env *Env, b *base, key, value string, sec int64) *Error {
	if err := env.Slot.Setex(key, []byte(value), sec); err != nil {
		return fromStorage(err)
	}
	b.reply.SetOK()
	env.addKey(key)
	return nil
}

// --------------------------------------------------------------------------
// PKSETEXAT key timestamp value
// --------------------------------------------------------------------------

type pksetexatCmd struct {
	base
	timestamp int64
}

func (c *pksetexatCmd) parse() *Error {
	ts, ok := parseInt(c.argv[2])
	if !ok || ts >= math.MaxInt32 {
		return errInvalidInt()
	}
	c.timestamp = ts
	return nil
}

func (c *pksetexatCmd) do(env *Env) *Error {
	if err := env.Slot.PKSetexAt(c.argv[1], []byte(c.argv[3]), c.timestamp); err != nil {
		return fromStorage(err)
	}
	c.reply.SetOK()
	// a timestamp in the past deletes the key
	env.addKey(c.argv[1])
	env.forgetIfGone(c.argv[1])
	return nil
}

func (c *pksetexatCmd) binlog(time.Time) []Entry { return c.verbatim() }

// --------------------------------------------------------------------------
// DELVX key value
// --------------------------------------------------------------------------

type delvxCmd struct {
	base
}

func (c *delvxCmd) parse() *Error { return nil }

func (c *delvxCmd) do(env *Env) *Error {
	res, err := env.Slot.Delvx(c.argv[1], []byte(c.argv[2]))
	if err != nil && !storage.IsNotFound(err) {
		return fromStorage(err)
	}
	c.reply.AppendInteger(int64(res))
	if res == 1 {
		env.forgetIfGone(c.argv[1])
	}
	return nil
}

func (c *delvxCmd) binlog(time.Time) []Entry { return c.verbatim() }

// --------------------------------------------------------------------------
// INCR key / INCRBY key n / DECR key / DECRBY key n
// --------------------------------------------------------------------------

type incrCmd struct {
	base
	by   int64
	decr bool
}

func (c *incrCmd) parse() *Error {
	if len(c.argv) == 3 {
		by, ok := parseInt(c.argv[2])
		if !ok {
			return errInvalidInt()
		}
		c.by = by
	}
	return nil
}

func (c *incrCmd) do(env *Env) *Error {
	var (
		value int64
		err   error
	)
	if c.decr {
		value, err = env.Slot.Decrby(c.argv[1], c.by)
	} else {
		value, err = env.Slot.Incrby(c.argv[1], c.by)
	}
	if err != nil {
		return fromStorageNumeric(err, false)
	}
	c.reply.AppendInteger(value)
	env.addKey(c.argv[1])
	return nil
}

func (c *incrCmd) binlog(time.Time) []Entry { return c.verbatim() }

// --------------------------------------------------------------------------
// INCRBYFLOAT key increment
// --------------------------------------------------------------------------

type incrbyfloatCmd struct {
	base
}

func (c *incrbyfloatCmd) parse() *Error {
	if _, ok := parseFloat(c.argv[2]); !ok {
		return errInvalidFloat()
	}
	return nil
}

func (c *incrbyfloatCmd) do(env *Env) *Error {
	value, err := env.Slot.Incrbyfloat(c.argv[1], c.argv[2])
	if err != nil {
		return fromStorageNumeric(err, true)
	}
	c.reply.AppendBulkString(value)
	env.addKey(c.argv[1])
	return nil
}

func (c *incrbyfloatCmd) binlog(time.Time) []Entry { return c.verbatim() }

// --------------------------------------------------------------------------
// APPEND key value
// --------------------------------------------------------------------------

type appendCmd struct {
	base
}

func (c *appendCmd) parse() *Error { return nil }

func (c *appendCmd) do(env *Env) *Error {
	length, err := env.Slot.Append(c.argv[1], []byte(c.argv[2]))
	if err != nil && !storage.IsNotFound(err) {
		return fromStorage(err)
	}
	c.reply.AppendInteger(int64(length))
	env.addKey(c.argv[1])
	return nil
}

func (c *appendCmd) binlog(time.Time) []Entry { return c.verbatim() }

// --------------------------------------------------------------------------
// GETRANGE key start end / SETRANGE key offset value / STRLEN key
// --------------------------------------------------------------------------

type getrangeCmd struct {
	base
	start, end int64
}

func (c *getrangeCmd) parse() *Error {
	var ok bool
	if c.start, ok = parseInt(c.argv[2]); !ok {
		return errInvalidInt()
	}
	if c.end, ok = parseInt(c.argv[3]); !ok {
		return errInvalidInt()
	}
	return nil
}

func (c *getrangeCmd) do(env *Env) *Error {
	value, err := env.Slot.Getrange(c.argv[1], c.start, c.end)
	if err != nil && !storage.IsNotFound(err) {
		return fromStorage(err)
	}
	c.reply.AppendBulk(value)
	return nil
}

func (c *getrangeCmd) binlog(time.Time) []Entry { return nil }

type setrangeCmd struct {
	base
	offset int64
}

func (c *setrangeCmd) parse() *Error {
	offset, ok := parseInt(c.argv[2])
	if !ok {
		return errInvalidInt()
	}
	c.offset = offset
	return nil
}

func (c *setrangeCmd) do(env *Env) *Error {
	length, err := env.Slot.Setrange(c.argv[1], c.offset, []byte(c.argv[3]))
	if err != nil {
		return fromStorage(err)
	}
	c.reply.AppendInteger(int64(length))
	// an empty write to a missing key creates nothing
	if length > 0 {
		env.addKey(c.argv[1])
	}
	return nil
}

func (c *setrangeCmd) binlog(time.Time) []Entry { return c.verbatim() }

type strlenCmd struct {
	base
}

func (c *strlenCmd) parse() *Error { return nil }

func (c *strlenCmd) do(env *Env) *Error {
	length, err := env.Slot.Strlen(c.argv[1])
	if err != nil && !storage.IsNotFound(err) {
		return fromStorage(err)
	}
	c.reply.AppendInteger(int64(length))
	return nil
}

func (c *strlenCmd) binlog(time.Time) []Entry { return nil }
