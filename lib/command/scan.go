package command

import (
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/sKV/lib/resp"
	"github.com/ValentinKolb/sKV/lib/storage"
)

const (
	// scanStepLength is the number of keys requested from the engine per scan step
	scanStepLength = 1000
	// defaultScanCount is the default COUNT of SCAN and SCANX and the LIMIT of the range scans
	defaultScanCount = 10
)

const (
	errResponseTooLarge = "Response exceeds the max-client-response-size limit"
	errCrossSlotScan    = "unbounded scans are not supported across slots, run the scan on one slot"
)

// A SCAN cursor carries the walk position of the slot in its high bits and the
// engine cursor of that slot in the low cursorSlotShift bits
const (
	cursorSlotShift = 40
	cursorMask      = 1<<cursorSlotShift - 1
)

func splitCursor(cursor int64) (pos int, engine int64) {
	return int(cursor >> cursorSlotShift), cursor & cursorMask
}

func joinCursor(pos int, engine int64) int64 {
	return int64(pos)<<cursorSlotShift | engine&cursorMask
}

// --------------------------------------------------------------------------
// KEYS pattern [string | hash | list | zset | set]
// --------------------------------------------------------------------------

type keysCmd struct {
	base
	pattern  string
	dataType storage.DataType
}

func (c *keysCmd) Keys() []string { return nil }

func (c *keysCmd) parse() *Error {
	c.pattern = c.argv[1]
	c.dataType = storage.DataTypeAll
	switch len(c.argv) {
	case 2:
	case 3:
		dt, ok := parseType(c.argv[2])
		if !ok {
			return errSyntax()
		}
		c.dataType = dt
	default:
		return errSyntax()
	}
	return nil
}

// do walks the namespace of every slot until the engine reports the end of the scan
func (c *keysCmd) do(env *Env) *Error {
	limit := env.maxResponseSize()

	var (
		raw   []byte
		total int
	)
	for _, slot := range env.walk() {
		var cursor int64
		for {
			next, keys, err := slot.Scan(c.dataType, cursor, c.pattern, scanStepLength)
			if err != nil {
				return fromStorage(err)
			}
			for _, key := range keys {
				raw = resp.AppendBulkRaw(raw, key)
			}
			if len(raw) >= limit {
				return errOther(errResponseTooLarge)
			}
			total += len(keys)
			cursor = next
			if cursor == 0 {
				break
			}
		}
	}

	c.reply.AppendArrayLen(total)
	c.reply.AppendRaw(raw)
	return nil
}

func (c *keysCmd) binlog(time.Time) []Entry { return nil }

// --------------------------------------------------------------------------
// SCAN cursor [MATCH pattern] [COUNT count] [TYPE type]
// --------------------------------------------------------------------------

type scanCmd struct {
	base
	cursor   int64
	pattern  string
	count    int64
	dataType storage.DataType
}

func (c *scanCmd) Keys() []string { return nil }

func (c *scanCmd) parse() *Error {
	cursor, ok := parseInt(c.argv[1])
	if !ok {
		return errInvalidInt()
	}
	c.cursor = cursor
	c.pattern = "*"
	c.count = defaultScanCount
	c.dataType = storage.DataTypeAll

	for i := 2; i < len(c.argv); i++ {
		opt := strings.ToLower(c.argv[i])
		if opt != "match" && opt != "count" && opt != "type" {
			return errSyntax()
		}
		arg, ok := optionArg(c.argv, i)
		if !ok {
			return errSyntax()
		}
		i++

		switch opt {
		case "match":
			c.pattern = arg
		case "type":
			dt, ok := parseType(arg)
			if !ok {
				return errSyntax()
			}
			c.dataType = dt
		case "count":
			count, ok := parseInt(arg)
			if !ok || count <= 0 {
				return errInvalidInt()
			}
			c.count = count
		}
	}
	return nil
}

// do requests the keys in steps of at most scanStepLength until the count is
// used up or the last slot of the walk completed
func (c *scanCmd) do(env *Env) *Error {
	limit := env.maxResponseSize()
	slots := env.walk()

	// an unknown position restarts the scan
	pos, cursor := splitCursor(c.cursor)
	if pos < 0 || pos >= len(slots) {
		pos, cursor = 0, 0
	}

	var (
		raw   []byte
		total int
	)
	left := c.count
	for left > 0 {
		batch := left
		if batch > scanStepLength {
			batch = scanStepLength
		}

		next, keys, err := slots[pos].Scan(c.dataType, cursor, c.pattern, batch)
		if err != nil {
			return fromStorage(err)
		}
		for _, key := range keys {
			raw = resp.AppendBulkRaw(raw, key)
		}
		if len(raw) >= limit {
			return errOther(errResponseTooLarge)
		}
		total += len(keys)
		left -= int64(len(keys))
		cursor = next

		if cursor != 0 {
			continue
		}
		if pos++; pos == len(slots) {
			break
		}
	}

	next := int64(0)
	if pos < len(slots) {
		next = joinCursor(pos, cursor)
	}
	c.reply.AppendArrayLen(2)
	c.reply.AppendBulkString(strconv.FormatInt(next, 10))
	c.reply.AppendArrayLen(total)
	c.reply.AppendRaw(raw)
	return nil
}

func (c *scanCmd) binlog(time.Time) []Entry { return nil }

// --------------------------------------------------------------------------
// SCANX type start_key [MATCH pattern] [COUNT count]
// --------------------------------------------------------------------------

type scanxCmd struct {
	base
	dataType storage.DataType
	startKey string
	pattern  string
	count    int64
}

func (c *scanxCmd) Keys() []string { return nil }

func (c *scanxCmd) parse() *Error {
	dt, ok := parseType(c.argv[1])
	if !ok {
		return errInvalidType()
	}
	c.dataType = dt
	c.startKey = c.argv[2]
	c.pattern = "*"
	c.count = defaultScanCount

	for i := 3; i < len(c.argv); i++ {
		opt := strings.ToLower(c.argv[i])
		if opt != "match" && opt != "count" {
			return errSyntax()
		}
		arg, ok := optionArg(c.argv, i)
		if !ok {
			return errSyntax()
		}
		i++

		if opt == "match" {
			c.pattern = arg
			continue
		}
		count, ok := parseInt(arg)
		if !ok || count <= 0 {
			return errInvalidInt()
		}
		c.count = count
	}
	return nil
}

func (c *scanxCmd) do(env *Env) *Error {
	if len(env.walk()) > 1 {
		return errOther(errCrossSlotScan)
	}
	keys, next, err := env.Slot.Scanx(c.dataType, c.startKey, c.pattern, c.count)
	if err != nil {
		return fromStorage(err)
	}
	c.reply.AppendArrayLen(2)
	c.reply.AppendBulkString(next)
	c.reply.AppendArrayLen(len(keys))
	for _, key := range keys {
		c.reply.AppendBulkString(key)
	}
	return nil
}

func (c *scanxCmd) binlog(time.Time) []Entry { return nil }

// --------------------------------------------------------------------------
// PKSCANRANGE / PKRSCANRANGE type start end [MATCH pattern] [LIMIT limit]
// --------------------------------------------------------------------------

type rangeScanCmd struct {
	base
	reverse   bool
	dataType  storage.DataType
	withValue bool
	start     string
	end       string
	pattern   string
	limit     int64
}

// Keys routes by whichever bound is set, both share a hash tag in cluster mode
func (c *rangeScanCmd) Keys() []string {
	switch {
	case c.start != "":
		return []string{c.start}
	case c.end != "":
		return []string{c.end}
	default:
		return nil
	}
}

func (c *rangeScanCmd) parse() *Error {
	if strings.EqualFold(c.argv[1], "string_with_value") {
		c.dataType = storage.DataTypeStrings
		c.withValue = true
	} else {
		dt, ok := parseType(c.argv[1])
		if !ok {
			return errInvalidType()
		}
		c.dataType = dt
	}
	c.start = c.argv[2]
	c.end = c.argv[3]
	c.pattern = "*"
	c.limit = defaultScanCount

	for i := 4; i < len(c.argv); i++ {
		opt := strings.ToLower(c.argv[i])
		if opt != "match" && opt != "limit" {
			return errSyntax()
		}
		arg, ok := optionArg(c.argv, i)
		if !ok {
			return errSyntax()
		}
		i++

		if opt == "match" {
			c.pattern = arg
			continue
		}
		limit, ok := parseInt(arg)
		if !ok || limit <= 0 {
			return errInvalidInt()
		}
		c.limit = limit
	}
	return nil
}

func (c *rangeScanCmd) do(env *Env) *Error {
	if env.ClusterMode && c.start != "" && c.end != "" && HashTag(c.start) != HashTag(c.end) {
		return errHashtag()
	}
	if len(env.walk()) > 1 {
		return errOther(errCrossSlotScan)
	}

	var (
		keys []string
		kvs  []storage.KeyValue
		next string
		err  error
	)
	if c.reverse {
		keys, kvs, next, err = env.Slot.PKRScanRange(c.dataType, c.start, c.end, c.pattern, c.limit)
	} else {
		keys, kvs, next, err = env.Slot.PKScanRange(c.dataType, c.start, c.end, c.pattern, c.limit)
	}
	if err != nil {
		return fromStorage(err)
	}

	c.reply.AppendArrayLen(2)
	c.reply.AppendBulkString(next)
	if c.dataType != storage.DataTypeStrings {
		c.reply.AppendArrayLen(len(keys))
		for _, key := range keys {
			c.reply.AppendBulkString(key)
		}
		return nil
	}

	if c.withValue {
		c.reply.AppendArrayLen(2 * len(kvs))
	} else {
		c.reply.AppendArrayLen(len(kvs))
	}
	for _, kv := range kvs {
		c.reply.AppendBulkString(kv.Key)
		if c.withValue {
			c.reply.AppendBulk(kv.Value)
		}
	}
	return nil
}

func (c *rangeScanCmd) binlog(time.Time) []Entry { return nil }
