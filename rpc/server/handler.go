package server

import (
	"strings"

	"github.com/ValentinKolb/sKV/lib/resp"
	"github.com/tidwall/redcon"
)

// --------------------------------------------------------------------------
// RESP Handler
// --------------------------------------------------------------------------

// handle serves one request of a connection. Connection commands are
// answered here, everything else is executed on the slots.
func (s *Server) handle(conn redcon.Conn, cmd redcon.Command) {
	if len(cmd.Args) == 0 {
		return
	}
	s.metrics.requests.Inc()

	switch strings.ToLower(string(cmd.Args[0])) {
	case "ping":
		switch len(cmd.Args) {
		case 1:
			conn.WriteString("PONG")
		case 2:
			conn.WriteBulk(cmd.Args[1])
		default:
			conn.WriteError("ERR wrong number of arguments for 'ping' command")
		}
	case "echo":
		if len(cmd.Args) != 2 {
			conn.WriteError("ERR wrong number of arguments for 'echo' command")
			return
		}
		conn.WriteBulk(cmd.Args[1])
	case "quit":
		conn.WriteString("OK")
		_ = conn.Close()
	default:
		conn.WriteRaw(s.executor.Execute(resp.Args(cmd)))
	}
}

func (s *Server) accept(conn redcon.Conn) bool {
	s.metrics.connections.Inc()
	Logger.Debugf("accepted connection from %s", conn.RemoteAddr())
	return true
}

func (s *Server) closed(conn redcon.Conn, err error) {
	s.metrics.connections.Dec()
	if err != nil {
		Logger.Debugf("connection from %s closed: %v", conn.RemoteAddr(), err)
	}
}
