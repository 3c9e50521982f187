package command

import (
	"strconv"
	"time"

	"github.com/ValentinKolb/sKV/lib/storage"
)

// --------------------------------------------------------------------------
// EXPIRE key seconds / PEXPIRE key milliseconds
// --------------------------------------------------------------------------

type expireCmd struct {
	base
	millis bool
	sec    int64
}

func (c *expireCmd) parse() *Error {
	v, ok := parseInt(c.argv[2])
	if !ok {
		return errInvalidInt()
	}
	if c.millis {
		v /= 1000
	}
	c.sec = v
	return nil
}

func (c *expireCmd) do(env *Env) *Error {
	res, err := env.Slot.Expire(c.argv[1], c.sec)
	if err != nil {
		return errOther("expire internal error")
	}
	c.reply.AppendInteger(int64(res))
	if res == 1 && c.sec <= 0 {
		env.forgetIfGone(c.argv[1])
	}
	return nil
}

func (c *expireCmd) binlog(now time.Time) []Entry {
	return []Entry{{Key: c.argv[1], Args: []string{"expireat", c.argv[1], absolute(now, c.sec)}}}
}

// --------------------------------------------------------------------------
// EXPIREAT key timestamp / PEXPIREAT key milliseconds-timestamp
// --------------------------------------------------------------------------

type expireatCmd struct {
	base
	millis    bool
	timestamp int64
}

func (c *expireatCmd) parse() *Error {
	v, ok := parseInt(c.argv[2])
	if !ok {
		return errInvalidInt()
	}
	if c.millis {
		v /= 1000
	}
	c.timestamp = v
	return nil
}

func (c *expireatCmd) do(env *Env) *Error {
	res, err := env.Slot.Expireat(c.argv[1], c.timestamp)
	if err != nil {
		return errOther(c.name + " internal error")
	}
	c.reply.AppendInteger(int64(res))
	if res == 1 {
		env.forgetIfGone(c.argv[1])
	}
	return nil
}

func (c *expireatCmd) binlog(time.Time) []Entry {
	if !c.millis {
		return c.verbatim()
	}
	return []Entry{{Key: c.argv[1], Args: []string{"expireat", c.argv[1], strconv.FormatInt(c.timestamp, 10)}}}
}

// --------------------------------------------------------------------------
// TTL key / PTTL key
// --------------------------------------------------------------------------

type ttlCmd struct {
	base
	millis bool
}

func (c *ttlCmd) parse() *Error { return nil }

// do reports the ttl of the first namespace holding the key
func (c *ttlCmd) do(env *Env) *Error {
	ttls, err := env.Slot.TTL(c.argv[1])
	if err != nil {
		return errOther("ttl internal error")
	}

	ttl := storage.TTLNotFound
	for _, dt := range storage.ResolutionOrder {
		if v, ok := ttls[dt]; ok && v != storage.TTLNotFound {
			ttl = v
			break
		}
	}
	if c.millis && ttl > 0 {
		ttl *= 1000
	}
	c.reply.AppendInteger(ttl)
	return nil
}

func (c *ttlCmd) binlog(time.Time) []Entry { return nil }

// --------------------------------------------------------------------------
// PERSIST key
// --------------------------------------------------------------------------

type persistCmd struct {
	base
}

func (c *persistCmd) parse() *Error { return nil }

func (c *persistCmd) do(env *Env) *Error {
	res, err := env.Slot.Persist(c.argv[1])
	if err != nil {
		return errOther("persist internal error")
	}
	c.reply.AppendInteger(int64(res))
	return nil
}

func (c *persistCmd) binlog(time.Time) []Entry { return c.verbatim() }

// --------------------------------------------------------------------------
// TYPE key / PTYPE key
// --------------------------------------------------------------------------

type typeCmd struct {
	base
	single bool
}

func (c *typeCmd) parse() *Error { return nil }

func (c *typeCmd) do(env *Env) *Error {
	types, err := env.Slot.GetType(c.argv[1], c.single)
	if err != nil {
		return fromStorage(err)
	}
	if c.single {
		name := "none"
		if len(types) > 0 {
			name = types[0]
		}
		c.reply.AppendStatus(name)
		return nil
	}
	c.reply.AppendArrayLen(len(types))
	for _, t := range types {
		c.reply.AppendBulkString(t)
	}
	return nil
}

func (c *typeCmd) binlog(time.Time) []Entry { return nil }
