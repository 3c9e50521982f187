package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/ValentinKolb/sKV/lib/binlog"
	"github.com/ValentinKolb/sKV/lib/cluster"
	"github.com/ValentinKolb/sKV/lib/storage"
	"github.com/ValentinKolb/sKV/lib/storage/engines/memory"
	"github.com/ValentinKolb/sKV/rpc/common"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/tidwall/redcon"
)

var Logger = logger.GetLogger("server")

// shutdownTimeout bounds the graceful shutdown of the admin api
const shutdownTimeout = 5 * time.Second

// Server serves the RESP protocol and the admin api of one node
type Server struct {
	config  common.ServerConfig
	newSlot func(slotID uint64) storage.ISlot

	executor *cluster.Executor
	nodeHost *dragonboat.NodeHost
	fileLog  *binlog.FileLog

	resp    *redcon.Server
	admin   *http.Server
	adminLn net.Listener
	metrics *serverMetrics

	closeOnce sync.Once
	done      chan struct{}
}

// NewServer creates a server for the given config. The slots are held by the
// in-memory engine.
//
// Usage:
//
//	s := server.NewServer(*config)
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewServer(config common.ServerConfig) *Server {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	return &Server{
		config: config,
		newSlot: func(uint64) storage.ISlot {
			return memory.NewMemorySlot(nil)
		},
		metrics: newServerMetrics(),
		done:    make(chan struct{}),
	}
}

// Executor returns the executor of the node (nil before Start)
func (s *Server) Executor() *cluster.Executor {
	return s.executor
}

// Addr returns the address of the RESP listener (nil before Start)
func (s *Server) Addr() net.Addr {
	if s.resp == nil {
		return nil
	}
	return s.resp.Addr()
}

// AdminAddr returns the address of the admin api (nil if disabled)
func (s *Server) AdminAddr() net.Addr {
	if s.adminLn == nil {
		return nil
	}
	return s.adminLn.Addr()
}

// --------------------------------------------------------------------------
// Setup
// --------------------------------------------------------------------------

func (s *Server) init() error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := common.InitLoggers(s.config); err != nil {
		return err
	}
	Logger.Infof(s.config.String())

	opts := &cluster.Options{
		ClusterMode:     s.config.ClusterMode,
		Slots:           s.config.SlotCount(),
		MaxResponseSize: s.config.MaxClientResponseSize,
		Clock:           time.Now,
	}

	origin := binlog.NewOrigin()

	switch s.config.Replication {
	case common.ReplicationFile:
		fileLog, err := binlog.OpenFileLog(s.config.BinlogPath, s.config.BinlogFsync)
		if err != nil {
			return err
		}
		s.fileLog = fileLog
		opts.Sink = fileLog

	case common.ReplicationRaft:
		nodeHost, err := dragonboat.NewNodeHost(s.config.ToNodeHostConfig())
		if err != nil {
			return fmt.Errorf("failed to create node host: %w", err)
		}
		s.nodeHost = nodeHost
		opts.Sink = binlog.NewRaftSink(nodeHost, origin, s.config.Timeout())

	default:
		opts.Sink = binlog.Discard
	}

	s.executor = cluster.NewExecutor(opts, s.newSlot)

	switch s.config.Replication {
	case common.ReplicationFile:
		n, err := binlog.Replay(s.config.BinlogPath, s.replayEntry)
		if err != nil {
			return fmt.Errorf("failed to replay binlog: %w", err)
		}
		Logger.Infof("replayed %d binlog entries from %s", n, s.config.BinlogPath)

	case common.ReplicationRaft:
		factory := binlog.CreateStateMachineFactory(origin, s.executor.Env, nil)
		for slot := uint64(0); slot < s.executor.Router().Slots(); slot++ {
			shardID := binlog.ShardID(slot)
			if err := s.nodeHost.StartConcurrentReplica(s.config.ClusterMembers, false, factory, s.config.ToDragonboatConfig(shardID)); err != nil {
				return fmt.Errorf("failed to start shard %d of slot %d: %w", shardID, slot, err)
			}
		}
		Logger.Infof("started %d raft shard(s)", s.executor.Router().Slots())
	}

	Logger.Infof("sKV setup completed successfully")
	return nil
}

// replayEntry applies one binlog entry read from the file of slotID
func (s *Server) replayEntry(slotID uint64, argv []string) error {
	env := s.executor.Env(slotID)
	if env == nil {
		return fmt.Errorf("slot %d does not exist", slotID)
	}
	return binlog.Apply(env, argv)
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Start initializes the node and opens the listeners. It returns once both
// listeners accept connections.
func (s *Server) Start() error {
	if err := s.init(); err != nil {
		s.release()
		return err
	}

	network, address := common.SplitEndpoint(s.config.Endpoint)
	if network == "unix" {
		// Remove existing socket file if it exists
		if err := os.RemoveAll(address); err != nil {
			s.release()
			return fmt.Errorf("failed to remove existing socket: %w", err)
		}
	}
	s.resp = redcon.NewServerNetwork(network, address, s.handle, s.accept, s.closed)
	listening := make(chan error, 1)
	go func() {
		if err := s.resp.ListenServeAndSignal(listening); err != nil {
			Logger.Errorf("RESP server stopped: %v", err)
		}
	}()
	if err := <-listening; err != nil {
		s.release()
		return fmt.Errorf("failed to listen on %s: %w", s.config.Endpoint, err)
	}
	Logger.Infof("Starting RESP server on %s", s.Addr())

	if s.config.AdminEndpoint != "" {
		ln, err := net.Listen("tcp", s.config.AdminEndpoint)
		if err != nil {
			_ = s.resp.Close()
			s.release()
			return fmt.Errorf("failed to listen on %s: %w", s.config.AdminEndpoint, err)
		}
		s.adminLn = ln
		s.admin = &http.Server{Handler: s.adminRouter()}
		go func() {
			if err := s.admin.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				Logger.Errorf("admin api stopped: %v", err)
			}
		}()
		Logger.Infof("Starting admin api on %s", ln.Addr())
	}
	return nil
}

// Serve starts the server and blocks until it is closed
func (s *Server) Serve() error {
	if err := s.Start(); err != nil {
		return err
	}
	<-s.done
	return nil
}

// Close stops the listeners and releases the replication resources
func (s *Server) Close() error {
	var errs []error
	s.closeOnce.Do(func() {
		if s.resp != nil {
			errs = append(errs, s.resp.Close())
		}
		if s.admin != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			errs = append(errs, s.admin.Shutdown(ctx))
			cancel()
		}
		errs = append(errs, s.release())
		close(s.done)
	})
	return errors.Join(errs...)
}

// release closes the binlog sinks
func (s *Server) release() error {
	var err error
	if s.fileLog != nil {
		err = s.fileLog.Close()
		s.fileLog = nil
	}
	if s.nodeHost != nil {
		s.nodeHost.Close()
		s.nodeHost = nil
	}
	return err
}
