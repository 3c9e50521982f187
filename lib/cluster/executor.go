package cluster

import (
	"fmt"
	"sync"
	"time"

	"github.com/ValentinKolb/sKV/lib/binlog"
	"github.com/ValentinKolb/sKV/lib/command"
	"github.com/ValentinKolb/sKV/lib/keyindex"
	"github.com/ValentinKolb/sKV/lib/resp"
	"github.com/ValentinKolb/sKV/lib/storage"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var log = logger.GetLogger("cluster")

// Options configures an Executor
type Options struct {
	ClusterMode     bool             // Route keys over Slots slots (classic mode uses a single slot)
	Slots           uint64           // Number of slots in cluster mode
	MaxResponseSize int              // Cap of KEYS/SCAN replies in bytes (0 = default)
	Clock           func() time.Time // Clock used to encode the binlog (time.Now if nil)
	Sink            binlog.ISink     // Receives the binlog entries (binlog.Discard if nil)
	Index           keyindex.IKeyIndex
}

// DefaultOptions returns the options of a classic single slot node
func DefaultOptions() *Options {
	return &Options{
		ClusterMode:     false,
		Slots:           1,
		MaxResponseSize: command.DefaultMaxResponseSize,
		Clock:           time.Now,
		Sink:            binlog.Discard,
	}
}

// Executor executes requests on the slots of a node
type Executor struct {
	cluster bool
	router  *Router
	envs    *xsync.MapOf[uint64, *command.Env]
	all     *command.Env // runs keyless requests over every slot
	index   keyindex.IKeyIndex
	clock   func() time.Time
	sink    binlog.ISink
	metrics *executorMetrics
}

// NewExecutor creates the slots of a node with newSlot and returns their executor
func NewExecutor(opts *Options, newSlot func(slotID uint64) storage.ISlot) *Executor {
	if opts == nil {
		opts = DefaultOptions()
	}
	n := opts.Slots
	if !opts.ClusterMode {
		n = 1
	}
	e := &Executor{
		cluster: opts.ClusterMode,
		router:  NewRouter(n),
		envs:    xsync.NewMapOf[uint64, *command.Env](),
		index:   opts.Index,
		clock:   opts.Clock,
		sink:    opts.Sink,
		metrics: newExecutorMetrics(),
	}
	if e.index == nil {
		e.index = keyindex.New()
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	if e.sink == nil {
		e.sink = binlog.Discard
	}

	walk := make([]storage.ISlot, 0, e.router.Slots())
	for id := uint64(0); id < e.router.Slots(); id++ {
		env := &command.Env{
			SlotID:          id,
			Slot:            newSlot(id),
			Index:           e.index,
			MaxResponseSize: opts.MaxResponseSize,
			ClusterMode:     opts.ClusterMode,
		}
		e.envs.Store(id, env)
		walk = append(walk, env.Slot)
	}
	all := *e.Env(0)
	all.Walk = walk
	e.all = &all
	log.Infof("executor started with %d slot(s), cluster mode %v", e.router.Slots(), e.cluster)
	return e
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

// Router returns the key router of the node
func (e *Executor) Router() *Router { return e.router }

// Env returns the execution environment of a slot (nil if the slot does not exist)
func (e *Executor) Env(slotID uint64) *command.Env {
	env, _ := e.envs.Load(slotID)
	return env
}

// SlotKeys returns the indexed keys of a slot matching pattern
func (e *Executor) SlotKeys(slotID uint64, pattern string) []string {
	return e.index.Keys(slotID, pattern)
}

// IndexedSlots returns the slots holding at least one indexed key
func (e *Executor) IndexedSlots() []uint64 {
	return e.index.Slots()
}

// SlotLen returns the number of indexed keys of a slot
func (e *Executor) SlotLen(slotID uint64) int {
	return e.index.Len(slotID)
}

// --------------------------------------------------------------------------
// Execution
// --------------------------------------------------------------------------

// Execute runs one request and returns the serialized reply
func (e *Executor) Execute(argv []string) []byte {
	c, ok, reply := e.parse(argv)
	if !ok {
		return reply
	}

	keys := c.Keys()
	switch {
	case !e.cluster:
		return e.run(c, e.Env(0))
	case len(keys) == 0:
		return e.run(c, e.all)
	case c.IsMultiKey():
		ids, groups := e.router.group(keys)
		if len(groups) == 1 {
			return e.run(c, e.Env(ids[0]))
		}
		return e.scatter(c, ids, groups)
	default:
		return e.run(c, e.Env(e.router.SlotFor(keys[0])))
	}
}

// ExecuteOn runs one request as a whole on the given slot, keyless scans only visit that slot
func (e *Executor) ExecuteOn(slotID uint64, argv []string) []byte {
	c, ok, reply := e.parse(argv)
	if !ok {
		return reply
	}
	env := e.Env(slotID)
	if env == nil {
		return e.fail(c.Name(), fmt.Sprintf("ERR slot %d does not exist", slotID))
	}
	return e.run(c, env)
}

func (e *Executor) parse(argv []string) (command.Command, bool, []byte) {
	c, err := command.Parse(argv)
	if c == nil {
		// unknown names share one series
		return nil, false, e.fail("unknown", err.Error())
	}
	e.metrics.command(c.Name())
	if err != nil {
		e.metrics.failure(c.Name())
		return nil, false, c.Response()
	}
	return c, true, nil
}

func (e *Executor) run(c command.Command, env *command.Env) []byte {
	if err := command.Execute(c, env); err != nil {
		e.metrics.failure(c.Name())
		return c.Response()
	}
	return e.replicate(c)
}

// scatter runs Split for every group concurrently and merges after all returned
func (e *Executor) scatter(c command.Command, ids []uint64, groups []command.HintKeys) []byte {
	start := time.Now()
	parts := make([]command.Partial, len(groups))

	var wg sync.WaitGroup
	for i := range groups {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := command.Split(c, e.Env(ids[i]), groups[i])
			if err != nil && p.Err == nil {
				// lifecycle misuse, surfaces as a failed part
				p.Err = &command.Error{Code: command.CodeOther, Msg: "ERR " + err.Error()}
			}
			parts[i] = p
		}(i)
	}
	wg.Wait()
	e.metrics.scattered(len(groups), start)

	if err := command.Merge(c, parts); err != nil {
		e.metrics.failure(c.Name())
		return c.Response()
	}
	return e.replicate(c)
}

// replicate encodes the executed command and hands the entries to the sink
func (e *Executor) replicate(c command.Command) []byte {
	entries, err := command.Binlog(c, e.clock())
	if err != nil {
		return e.fail(c.Name(), "ERR "+err.Error())
	}
	if len(entries) == 0 {
		return c.Response()
	}

	var (
		ids     []uint64
		batches = make(map[uint64][][]byte)
	)
	for _, entry := range entries {
		slot := uint64(0)
		if e.cluster {
			slot = e.router.SlotFor(entry.Key)
		}
		if _, ok := batches[slot]; !ok {
			ids = append(ids, slot)
		}
		batches[slot] = append(batches[slot], entry.Bytes())
	}

	for _, slot := range ids {
		if err := e.sink.Append(slot, batches[slot]); err != nil {
			log.Errorf("binlog append of %s on slot %d failed: %v", c.Name(), slot, err)
			return e.fail(c.Name(), "ERR binlog: "+err.Error())
		}
		e.metrics.binlog.Add(len(batches[slot]))
	}
	return c.Response()
}

func (e *Executor) fail(name, msg string) []byte {
	e.metrics.failure(name)
	var r resp.Reply
	r.SetError(msg)
	return r.Bytes()
}
