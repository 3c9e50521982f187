package command

import (
	"errors"
	"strings"
	"time"

	"github.com/ValentinKolb/sKV/lib/keyindex"
	"github.com/ValentinKolb/sKV/lib/resp"
	"github.com/ValentinKolb/sKV/lib/storage"
)

// --------------------------------------------------------------------------
// Interfaces
// --------------------------------------------------------------------------

// Command is one parsed client request. The set of implementations is closed,
// new commands are added in this package and registered in the command table.
//
// A command is driven through its lifecycle by the package level functions
// Initial, Execute (or Split and Merge) and Binlog, which enforce the order
// Created -> Parsed -> {Failed | Executed} -> {Failed | Encoded}.
type Command interface {
	// Name returns the lower case registry name of the command
	Name() string
	// Argv returns the argument vector (including the name) given to Initial
	Argv() []string
	// Response returns the serialized reply
	Response() []byte
	// Failed reports whether the command ended in the failed state
	Failed() bool
	// IsWrite reports whether the command mutates the slot
	IsWrite() bool
	// IsMultiKey reports whether the command supports Split and Merge
	IsMultiKey() bool
	// Keys returns the keys the command routes by (nil for keyless commands)
	Keys() []string

	common() *base
	parse() *Error
	do(env *Env) *Error
	binlog(now time.Time) []Entry
}

// multiKey is implemented by commands that can be scattered across slots
type multiKey interface {
	Command
	split(env *Env, hk HintKeys) Partial
	merge(parts []Partial) *Error
}

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

// Env is the execution environment of one slot
type Env struct {
	SlotID          uint64             // Id of the slot the command runs on
	Slot            storage.ISlot      // Storage handle of the slot
	Index           keyindex.IKeyIndex // Secondary key index (optional)
	MaxResponseSize int                // Cap of accumulated KEYS/SCAN replies in bytes
	ClusterMode     bool               // Whether the node runs sharded
	Walk            []storage.ISlot    // Slots a keyless KEYS or SCAN visits in order (nil = Slot only)
}

// DefaultMaxResponseSize is the default of Env.MaxResponseSize (1 GiB)
const DefaultMaxResponseSize = 1 << 30

func (env *Env) maxResponseSize() int {
	if env.MaxResponseSize <= 0 {
		return DefaultMaxResponseSize
	}
	return env.MaxResponseSize
}

// walk returns the slots a keyless scan visits
func (env *Env) walk() []storage.ISlot {
	if len(env.Walk) == 0 {
		return []storage.ISlot{env.Slot}
	}
	return env.Walk
}

func (env *Env) addKey(key string) {
	if env.Index != nil {
		env.Index.Add(env.SlotID, key)
	}
}

func (env *Env) removeKey(key string) {
	if env.Index != nil {
		env.Index.Remove(env.SlotID, key)
	}
}

// forgetIfGone removes key from the index once it is not live in any namespace
func (env *Env) forgetIfGone(key string) {
	if env.Index == nil {
		return
	}
	if n, err := env.Slot.Exists([]string{key}); err == nil && n == 0 {
		env.Index.Remove(env.SlotID, key)
	}
}

// HintKeys are the keys of a multi-key command owned by one slot together with
// their positions in the full key list
type HintKeys struct {
	Keys  []string
	Hints []int
}

// Partial is the result of one Split call
type Partial struct {
	Hints  []int                 // Positions of the keys handled
	Count  int64                 // Running sum (DEL, EXISTS, MSETNX)
	Values []storage.ValueStatus // Values per hint (MGET)
	Err    *Error                // Set if the split failed
}

// Entry is one canonical replication log entry
type Entry struct {
	Key  string   // Key the entry is routed by
	Args []string // Command name and arguments
}

// Bytes returns the canonical serialization of the entry
func (e Entry) Bytes() []byte {
	return resp.EncodeCommand(e.Args)
}

// --------------------------------------------------------------------------
// Base
// --------------------------------------------------------------------------

type state uint8

const (
	stateCreated state = iota
	stateParsed
	stateFailed
	stateExecuted
	stateEncoded
)

// flag describes static properties of a command
type flag uint8

const (
	flagRead flag = 1 << iota
	flagWrite
	flagMultiKey
)

// base is embedded in every command
type base struct {
	name  string
	arity int
	flags flag
	argv  []string
	state state
	reply resp.Reply
}

func (b *base) common() *base { return b }
func (b *base) Name() string { return b.name }
func (b *base) Argv() []string { return b.argv }
func (b *base) Response() []byte { return b.reply.Bytes() }
func (b *base) Failed() bool { return b.state == stateFailed }
func (b *base) IsWrite() bool { return b.flags&flagWrite != 0 }
func (b *base) IsMultiKey() bool { return b.flags&flagMultiKey != 0 }

// Keys defaults to the first argument
func (b *base) Keys() []string {
	if len(b.argv) < 2 {
		return nil
	}
	return b.argv[1:2]
}

// checkArity validates the argument count, a negative arity means at least -arity
func (b *base) checkArity(n int) bool {
	if b.arity >= 0 {
		return n == b.arity
	}
	return n >= -b.arity
}

func (b *base) fail(err *Error) {
	b.reply.SetError(err.Error())
	b.state = stateFailed
}

// verbatim is the default binlog rule: the argument vector as received
func (b *base) verbatim() []Entry {
	key := ""
	if len(b.argv) > 1 {
		key = b.argv[1]
	}
	args := make([]string, len(b.argv))
	copy(args, b.argv)
	return []Entry{{Key: key, Args: args}}
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

var (
	// ErrInvalidState is returned when a lifecycle stage is called out of order
	ErrInvalidState = errors.New("command: lifecycle stage called out of order")
	// ErrNotMultiKey is returned by Split and Merge for single key commands
	ErrNotMultiKey = errors.New("command: command does not support split")
)

// New resolves a command by name (case-insensitive)
func New(name string) (Command, error) {
	def, ok := table[strings.ToLower(name)]
	if !ok {
		return nil, newError(CodeUnknownCommand, "ERR unknown command '"+name+"'")
	}
	c := def.create()
	b := c.common()
	b.name = def.name
	b.arity = def.arity
	b.flags = def.flags
	return c, nil
}

// Parse is New followed by Initial
func Parse(argv []string) (Command, error) {
	if len(argv) == 0 {
		return nil, newError(CodeUnknownCommand, "ERR empty command")
	}
	c, err := New(argv[0])
	if err != nil {
		return nil, err
	}
	if err := Initial(c, argv); err != nil {
		return c, err
	}
	return c, nil
}

// Initial validates the arity and parses the arguments. A returned *Error
// leaves the command in the failed state with the error as reply.
func Initial(c Command, argv []string) error {
	b := c.common()
	if b.state != stateCreated {
		return ErrInvalidState
	}
	b.argv = argv

	if !b.checkArity(len(argv)) {
		err := errWrongArgs(b.name)
		b.fail(err)
		return err
	}
	if err := c.parse(); err != nil {
		b.fail(err)
		return err
	}
	b.state = stateParsed
	return nil
}

// Execute runs the command against the slot of env
func Execute(c Command, env *Env) error {
	b := c.common()
	if b.state != stateParsed {
		return ErrInvalidState
	}
	if err := c.do(env); err != nil {
		b.fail(err)
		return err
	}
	b.state = stateExecuted
	return nil
}

// Split runs a multi-key command for the keys one slot owns. Split does not
// modify the command and may be called concurrently for different slots.
func Split(c Command, env *Env, hk HintKeys) (Partial, error) {
	m, ok := c.(multiKey)
	if !ok {
		return Partial{}, ErrNotMultiKey
	}
	if c.common().state != stateParsed {
		return Partial{}, ErrInvalidState
	}
	if len(hk.Keys) != len(hk.Hints) {
		return Partial{}, newError(CodeOther, "ERR split hint keys size does not match")
	}
	p := m.split(env, hk)
	if p.Err != nil {
		return p, p.Err
	}
	return p, nil
}

// Merge combines the partial results of all slots into the reply. It must
// only be called once every Split has returned. The order of parts is irrelevant.
func Merge(c Command, parts []Partial) error {
	m, ok := c.(multiKey)
	if !ok {
		return ErrNotMultiKey
	}
	b := c.common()
	if b.state != stateParsed {
		return ErrInvalidState
	}
	for _, p := range parts {
		if p.Err != nil {
			b.fail(p.Err)
			return p.Err
		}
	}
	if err := m.merge(parts); err != nil {
		b.fail(err)
		return err
	}
	b.state = stateExecuted
	return nil
}

// Binlog returns the replication entries of an executed command, now is the
// wall clock relative expirations are resolved against
func Binlog(c Command, now time.Time) ([]Entry, error) {
	b := c.common()
	if b.state != stateExecuted {
		return nil, ErrInvalidState
	}
	var entries []Entry
	if b.IsWrite() {
		entries = c.binlog(now)
	}
	b.state = stateEncoded
	return entries, nil
}

// --------------------------------------------------------------------------
// Command table
// --------------------------------------------------------------------------

type definition struct {
	name   string
	arity  int
	flags  flag
	create func() Command
}

var table = map[string]definition{}

func register(name string, arity int, flags flag, create func() Command) {
	table[name] = definition{name: name, arity: arity, flags: flags, create: create}
}

// Names returns the names of all registered commands
func Names() []string {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	return names
}

func init() {
	// strings
	register("set", -3, flagWrite, func() Command { return &setCmd{} })
	register("get", 2, flagRead, func() Command { return &getCmd{} })
	register("getset", 3, flagWrite, func() Command { return &getsetCmd{} })
	register("setnx", 3, flagWrite, func() Command { return &setnxCmd{} })
	register("setex", 4, flagWrite, func() Command { return &setexCmd{} })
	register("psetex", 4, flagWrite, func() Command { return &psetexCmd{} })
	register("pksetexat", 4, flagWrite, func() Command { return &pksetexatCmd{} })
	register("delvx", 3, flagWrite, func() Command { return &delvxCmd{} })
	register("incr", 2, flagWrite, func() Command { return &incrCmd{by: 1} })
	register("incrby", 3, flagWrite, func() Command { return &incrCmd{} })
	register("decr", 2, flagWrite, func() Command { return &incrCmd{by: 1, decr: true} })
	register("decrby", 3, flagWrite, func() Command { return &incrCmd{decr: true} })
	register("incrbyfloat", 3, flagWrite, func() Command { return &incrbyfloatCmd{} })
	register("append", 3, flagWrite, func() Command { return &appendCmd{} })
	register("getrange", 4, flagRead, func() Command { return &getrangeCmd{} })
	register("setrange", 4, flagWrite, func() Command { return &setrangeCmd{} })
	register("strlen", 2, flagRead, func() Command { return &strlenCmd{} })

	// multi key
	register("del", -2, flagWrite|flagMultiKey, func() Command { return &delCmd{} })
	register("exists", -2, flagRead|flagMultiKey, func() Command { return &existsCmd{} })
	register("mget", -2, flagRead|flagMultiKey, func() Command { return &mgetCmd{} })
	register("mset", -3, flagWrite|flagMultiKey, func() Command { return &msetCmd{} })
	register("msetnx", -3, flagWrite|flagMultiKey, func() Command { return &msetnxCmd{} })

	// keyspace
	register("expire", 3, flagWrite, func() Command { return &expireCmd{} })
	register("pexpire", 3, flagWrite, func() Command { return &expireCmd{millis: true} })
	register("expireat", 3, flagWrite, func() Command { return &expireatCmd{} })
	register("pexpireat", 3, flagWrite, func() Command { return &expireatCmd{millis: true} })
	register("ttl", 2, flagRead, func() Command { return &ttlCmd{} })
	register("pttl", 2, flagRead, func() Command { return &ttlCmd{millis: true} })
	register("persist", 2, flagWrite, func() Command { return &persistCmd{} })
	register("type", 2, flagRead, func() Command { return &typeCmd{single: true} })
	register("ptype", 2, flagRead, func() Command { return &typeCmd{} })

	// scans
	register("keys", -2, flagRead, func() Command { return &keysCmd{} })
	register("scan", -2, flagRead, func() Command { return &scanCmd{} })
	register("scanx", -3, flagRead, func() Command { return &scanxCmd{} })
	register("pkscanrange", -4, flagRead, func() Command { return &rangeScanCmd{} })
	register("pkrscanrange", -4, flagRead, func() Command { return &rangeScanCmd{reverse: true} })
}
