package client

import (
	"bufio"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/sKV/lib/resp"
	"github.com/ValentinKolb/sKV/rpc/common"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("rpc")

// ErrClosed is returned by Do after Close
var ErrClosed = errors.New("client is closed")

// --------------------------------------------------------------------------
// Connection
// --------------------------------------------------------------------------

// connection is one RESP connection. Replies arrive in request order, so a
// request holds the connection until its reply was read.
type connection struct {
	mu       sync.Mutex
	endpoint string
	timeout  time.Duration
	conn     net.Conn
	rd       *bufio.Reader
}

// reconnect establishes or restores the connection (mu must be held)
func (c *connection) reconnect() error {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}

	network, address := common.SplitEndpoint(c.endpoint)
	conn, err := net.DialTimeout(network, address, c.dialTimeout())
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.endpoint, err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}
	c.conn = conn
	c.rd = bufio.NewReader(conn)
	return nil
}

func (c *connection) dialTimeout() time.Duration {
	if c.timeout > 0 {
		return c.timeout
	}
	return 5 * time.Second
}

// do sends one request and reads its reply
func (c *connection) do(req []byte) (resp.Value, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		if err := c.reconnect(); err != nil {
			return resp.Value{}, err
		}
	}
	if c.timeout > 0 {
		_ = c.conn.SetDeadline(time.Now().Add(c.timeout))
	}

	if _, err := c.conn.Write(req); err != nil {
		c.drop()
		return resp.Value{}, fmt.Errorf("failed to send request: %w", err)
	}
	v, err := resp.ReadReply(c.rd)
	if err != nil {
		// the stream is out of sync after a partial read
		c.drop()
		return resp.Value{}, fmt.Errorf("failed to read reply: %w", err)
	}
	return v, nil
}

func (c *connection) drop() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func (c *connection) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// --------------------------------------------------------------------------
// Client
// --------------------------------------------------------------------------

// Client sends commands to a sKV server over a pool of RESP connections
type Client struct {
	config      common.ClientConfig
	connections []*connection
	next        atomic.Uint64
	closed      atomic.Bool
}

// Dial connects to the endpoint of the config. Every connection of the pool
// is established before Dial returns.
func Dial(config common.ClientConfig) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("no endpoint provided")
	}

	n := max(1, config.Connections)
	c := &Client{
		config:      config,
		connections: make([]*connection, n),
	}
	for i := range c.connections {
		conn := &connection{endpoint: config.Endpoint, timeout: config.Timeout()}
		conn.mu.Lock()
		err := conn.reconnect()
		conn.mu.Unlock()
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		c.connections[i] = conn
	}

	Logger.Debugf("Connected to %s with %d connection(s)", config.Endpoint, n)
	return c, nil
}

// Do sends one command and returns its reply. Error replies of the server are
// returned as value (see resp.Value.IsError), the error reports transport
// failures that remained after all retries.
func (c *Client) Do(args ...string) (resp.Value, error) {
	if c.closed.Load() {
		return resp.Value{}, ErrClosed
	}
	if len(args) == 0 {
		return resp.Value{}, fmt.Errorf("empty command")
	}
	req := resp.EncodeCommand(args)

	maxRetries := max(1, c.config.RetryCount)
	backoffMs := 50

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		v, err := c.nextConnection().do(req)
		if err == nil {
			return v, nil
		}
		lastErr = err
		Logger.Debugf("Request attempt %d/%d failed: %v", i+1, maxRetries, err)

		if i < maxRetries-1 {
			// Exponential backoff with a small random jitter (+-10%)
			jitter := float64(backoffMs) * (0.9 + 0.2*rand.Float64())
			time.Sleep(time.Duration(jitter) * time.Millisecond)
			backoffMs *= 2
		}
		if c.closed.Load() {
			return resp.Value{}, ErrClosed
		}
	}
	return resp.Value{}, fmt.Errorf("failed to send request after %d attempts: %w", maxRetries, lastErr)
}

// Ping checks the server answers
func (c *Client) Ping() error {
	v, err := c.Do("PING")
	if err != nil {
		return err
	}
	if v.Kind != resp.KindStatus || v.Str != "PONG" {
		return fmt.Errorf("unexpected ping reply: %s", v)
	}
	return nil
}

// Close closes all connections of the pool
func (c *Client) Close() error {
	c.closed.Store(true)
	var errs []error
	for _, conn := range c.connections {
		if conn != nil {
			errs = append(errs, conn.close())
		}
	}
	return errors.Join(errs...)
}

// nextConnection selects the next connection via Round Robin
func (c *Client) nextConnection() *connection {
	if len(c.connections) == 1 {
		return c.connections[0]
	}
	return c.connections[c.next.Add(1)%uint64(len(c.connections))]
}
