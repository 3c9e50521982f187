package command

import (
	"sort"
	"time"

	"github.com/ValentinKolb/sKV/lib/storage"
)

// Multi-key commands run either as a whole on one slot (do) or scattered over
// several slots (split per slot, merge once all splits returned). Both paths
// render the same reply for the same keys.

// --------------------------------------------------------------------------
// DEL key [key ...]
// --------------------------------------------------------------------------

type delCmd struct {
	base
	keys []string
}

func (c *delCmd) Keys() []string { return c.keys }

func (c *delCmd) parse() *Error {
	c.keys = c.argv[1:]
	return nil
}

func (c *delCmd) do(env *Env) *Error {
	count, err := env.Slot.Del(c.keys)
	if err != nil {
		return errOther("delete error")
	}
	c.reply.AppendInteger(count)
	for _, key := range c.keys {
		env.removeKey(key)
	}
	return nil
}

func (c *delCmd) split(env *Env, hk HintKeys) Partial {
	count, err := env.Slot.Del(hk.Keys)
	if err != nil {
		return Partial{Err: errOther("delete error")}
	}
	for _, key := range hk.Keys {
		env.removeKey(key)
	}
	return Partial{Hints: hk.Hints, Count: count}
}

func (c *delCmd) merge(parts []Partial) *Error {
	c.reply.AppendInteger(sumCounts(parts))
	return nil
}

// binlog logs one delete per key, keeping the command token as received
func (c *delCmd) binlog(time.Time) []Entry {
	entries := make([]Entry, 0, len(c.keys))
	for _, key := range c.keys {
		entries = append(entries, Entry{Key: key, Args: []string{c.argv[0], key}})
	}
	return entries
}

// --------------------------------------------------------------------------
// EXISTS key [key ...]
// --------------------------------------------------------------------------

type existsCmd struct {
	base
	keys []string
}

func (c *existsCmd) Keys() []string { return c.keys }

func (c *existsCmd) parse() *Error {
	c.keys = c.argv[1:]
	return nil
}

func (c *existsCmd) do(env *Env) *Error {
	count, err := env.Slot.Exists(c.keys)
	if err != nil {
		return errOther("exists internal error")
	}
	c.reply.AppendInteger(count)
	return nil
}

func (c *existsCmd) split(env *Env, hk HintKeys) Partial {
	count, err := env.Slot.Exists(hk.Keys)
	if err != nil {
		return Partial{Err: errOther("exists internal error")}
	}
	return Partial{Hints: hk.Hints, Count: count}
}

func (c *existsCmd) merge(parts []Partial) *Error {
	c.reply.AppendInteger(sumCounts(parts))
	return nil
}

func (c *existsCmd) binlog(time.Time) []Entry { return nil }

// --------------------------------------------------------------------------
// MGET key [key ...]
// --------------------------------------------------------------------------

type mgetCmd struct {
	base
	keys []string
}

func (c *mgetCmd) Keys() []string { return c.keys }

func (c *mgetCmd) parse() *Error {
	c.keys = c.argv[1:]
	return nil
}

func (c *mgetCmd) do(env *Env) *Error {
	values, err := env.Slot.MGet(c.keys)
	if err != nil {
		return fromStorage(err)
	}
	c.render(values)
	return nil
}

func (c *mgetCmd) split(env *Env, hk HintKeys) Partial {
	values, err := env.Slot.MGet(hk.Keys)
	if err != nil {
		return Partial{Err: fromStorage(err)}
	}
	if len(values) != len(hk.Hints) {
		return Partial{Err: errOther("internal Mget return size invalid")}
	}
	return Partial{Hints: hk.Hints, Values: values}
}

// merge places every value at its original position
func (c *mgetCmd) merge(parts []Partial) *Error {
	values := make([]storage.ValueStatus, len(c.keys))
	filled := make([]bool, len(c.keys))
	for _, p := range parts {
		for i, hint := range p.Hints {
			if hint < 0 || hint >= len(values) || i >= len(p.Values) {
				return errOther("internal Mget hint out of range")
			}
			values[hint] = p.Values[i]
			filled[hint] = true
		}
	}
	for _, ok := range filled {
		if !ok {
			return errOther("internal Mget missing key")
		}
	}
	c.render(values)
	return nil
}

func (c *mgetCmd) render(values []storage.ValueStatus) {
	c.reply.AppendArrayLen(len(values))
	for _, vs := range values {
		if vs.Found() {
			c.reply.AppendBulk(vs.Value)
		} else {
			c.reply.AppendNull()
		}
	}
}

func (c *mgetCmd) binlog(time.Time) []Entry { return nil }

// --------------------------------------------------------------------------
// MSET key value [key value ...] / MSETNX key value [key value ...]
// --------------------------------------------------------------------------

// pairs holds the parsed pairs of MSET and MSETNX
type pairs struct {
	kvs  []storage.KeyValue
	keys []string
}

func (p *pairs) parsePairs(b *base) *Error {
	if len(b.argv)%2 == 0 {
		return errWrongArgs(b.name)
	}
	p.kvs = make([]storage.KeyValue, 0, len(b.argv)/2)
	p.keys = make([]string, 0, len(b.argv)/2)
	for i := 1; i < len(b.argv); i += 2 {
		p.kvs = append(p.kvs, storage.KeyValue{Key: b.argv[i], Value: []byte(b.argv[i+1])})
		p.keys = append(p.keys, b.argv[i])
	}
	return nil
}

// subset returns the pairs addressed by the hint keys
func (p *pairs) subset(hk HintKeys) ([]storage.KeyValue, *Error) {
	kvs := make([]storage.KeyValue, 0, len(hk.Keys))
	for i, key := range hk.Keys {
		hint := hk.Hints[i]
		if hint < 0 || hint >= len(p.kvs) || p.kvs[hint].Key != key {
			return nil, errOther("SplitError hint key: " + key)
		}
		kvs = append(kvs, p.kvs[hint])
	}
	return kvs, nil
}

// setEntries renders the pairs at the given positions as single key set entries
func (p *pairs) setEntries(hints []int) []Entry {
	entries := make([]Entry, 0, len(hints))
	for _, hint := range hints {
		kv := p.kvs[hint]
		entries = append(entries, Entry{Key: kv.Key, Args: []string{"set", kv.Key, string(kv.Value)}})
	}
	return entries
}

func allHints(n int) []int {
	hints := make([]int, n)
	for i := range hints {
		hints[i] = i
	}
	return hints
}

type msetCmd struct {
	base
	pairs
}

func (c *msetCmd) Keys() []string { return c.keys }

func (c *msetCmd) parse() *Error { return c.parsePairs(&c.base) }

func (c *msetCmd) do(env *Env) *Error {
	if err := env.Slot.MSet(c.kvs); err != nil {
		return fromStorage(err)
	}
	c.reply.SetOK()
	for _, key := range c.keys {
		env.addKey(key)
	}
	return nil
}

func (c *msetCmd) split(env *Env, hk HintKeys) Partial {
	kvs, perr := c.subset(hk)
	if perr != nil {
		return Partial{Err: perr}
	}
	if err := env.Slot.MSet(kvs); err != nil {
		return Partial{Err: fromStorage(err)}
	}
	for _, kv := range kvs {
		env.addKey(kv.Key)
	}
	return Partial{Hints: hk.Hints}
}

func (c *msetCmd) merge([]Partial) *Error {
	c.reply.SetOK()
	return nil
}

// binlog logs every pair as an independent set
func (c *msetCmd) binlog(time.Time) []Entry {
	return c.setEntries(allHints(len(c.kvs)))
}

type msetnxCmd struct {
	base
	pairs
	applied []int
}

func (c *msetnxCmd) Keys() []string { return c.keys }

func (c *msetnxCmd) parse() *Error { return c.parsePairs(&c.base) }

func (c *msetnxCmd) do(env *Env) *Error {
	res, err := env.Slot.MSetnx(c.kvs)
	if err != nil {
		return fromStorage(err)
	}
	c.reply.AppendInteger(int64(res))
	if res == 1 {
		c.applied = allHints(len(c.kvs))
		for _, key := range c.keys {
			env.addKey(key)
		}
	}
	return nil
}

// split is atomic per slot only, slots that applied stay applied
func (c *msetnxCmd) split(env *Env, hk HintKeys) Partial {
	kvs, perr := c.subset(hk)
	if perr != nil {
		return Partial{Err: perr}
	}
	res, err := env.Slot.MSetnx(kvs)
	if err != nil {
		return Partial{Err: fromStorage(err)}
	}
	if res == 1 {
		for _, kv := range kvs {
			env.addKey(kv.Key)
		}
	}
	return Partial{Hints: hk.Hints, Count: int64(res)}
}

// merge replies 1 only if every slot applied its pairs
func (c *msetnxCmd) merge(parts []Partial) *Error {
	var res int64 = 1
	c.applied = c.applied[:0]
	for _, p := range parts {
		if p.Count == 1 {
			c.applied = append(c.applied, p.Hints...)
		} else {
			res = 0
		}
	}
	sort.Ints(c.applied)
	c.reply.AppendInteger(res)
	return nil
}

// binlog logs the applied pairs only, nothing if none applied
func (c *msetnxCmd) binlog(time.Time) []Entry {
	if len(c.applied) == 0 {
		return nil
	}
	return c.setEntries(c.applied)
}

func sumCounts(parts []Partial) int64 {
	var sum int64
	for _, p := range parts {
		sum += p.Count
	}
	return sum
}
