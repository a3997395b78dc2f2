package server

import (
	"net"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"goredis/internal/config"
	"goredis/internal/metrics"
	"goredis/internal/replication"
	"goredis/internal/resp"
	"goredis/internal/store"
)

// connState is the per-connection state machine of spec.md §4.8.
type connState int

const (
	stateServing connState = iota
	statePendingPromotion
	statePromoted
)

// readChunk is the reference read-buffer sizing from spec.md §5; the
// connection's accumulation buffer grows beyond this as needed when a
// frame spans more than one read.
const readChunk = 512

// Connection runs the read → decode → dispatch → write loop for one
// accepted socket and drives its state machine through to promotion,
// per spec.md §4.8 and §9's cyclic-reference-avoidance note: the
// supervisor moves the socket into a Replica record and exits, rather
// than holding a reference back to it.
type Connection struct {
	conn     net.Conn
	ks       *store.Keyspace
	repl     *replication.Manager
	cfg      *config.Config
	metric   *metrics.Registry
	dispatch *Dispatcher
	log      *zap.SugaredLogger

	state             connState
	pendingListenPort int
}

func NewConnection(conn net.Conn, ks *store.Keyspace, repl *replication.Manager, cfg *config.Config, metric *metrics.Registry, dispatch *Dispatcher, log *zap.SugaredLogger) *Connection {
	return &Connection{
		conn:     conn,
		ks:       ks,
		repl:     repl,
		cfg:      cfg,
		metric:   metric,
		dispatch: dispatch,
		log:      log.With("conn", uuid.NewString(), "remote", conn.RemoteAddr().String()),
	}
}

// Serve runs the connection until it closes, an unrecoverable socket
// error occurs, or it is promoted to a replica (at which point Serve
// returns and the caller must not touch conn again: the Replica
// record in the roster now owns it).
func (c *Connection) Serve() {
	defer func() {
		if c.state != statePromoted {
			c.conn.Close()
		}
	}()

	var buf []byte
	chunk := make([]byte, readChunk)
	for {
		v, consumed, ok, err := resp.DecodeOne(buf)
		if err != nil {
			c.log.Warnw("decode error, treating as unknown command", "error", err)
			if c.state != statePromoted {
				writeError(c.conn, "ERR unknown command")
			}
			buf = nil
			continue
		}
		if !ok {
			n, rerr := c.conn.Read(chunk)
			if rerr != nil {
				return
			}
			buf = append(buf, chunk[:n]...)
			continue
		}
		raw := append([]byte(nil), buf[:consumed]...)
		buf = buf[consumed:]

		if c.handleFrame(v, raw) {
			return
		}
	}
}

// handleFrame dispatches one decoded value and returns true if the
// connection should stop being served here (promoted to a replica).
func (c *Connection) handleFrame(v resp.Value, raw []byte) bool {
	args, ok := v.StringsIfArray()
	if !ok {
		writeError(c.conn, "ERR unknown command")
		return false
	}

	p := &Params{
		Args:        args,
		Keyspace:    c.ks,
		Writer:      c.conn,
		ShouldReply: c.state != statePromoted,
		Repl:        c.repl,
		Cfg:         c.cfg,
		Conn:        c.conn,
		Log:         c.log,
		Metric:      c.metric,
		RawCommand:  raw,
	}

	res := c.dispatch.Dispatch(p)
	switch res.Outcome {
	case OutcomeHandshakeStarted:
		c.pendingListenPort = res.Port
		c.state = statePendingPromotion
	case OutcomeHandshakeCompleted:
		c.promote()
		return true
	}
	return false
}

// promote hands the socket off to the replication roster, per
// spec.md §4.8: host = peer address, port = the earlier
// listening-port value.
func (c *Connection) promote() {
	host := c.conn.RemoteAddr().String()
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	port := c.pendingListenPort
	c.repl.AddReplica(host, port, c.conn)
	c.state = statePromoted
	if c.metric != nil {
		c.metric.ConnectedReplicas.Set(float64(c.repl.ConnectedSlaves()))
	}
	c.log.Infow("connection promoted to replica", "host", host, "port", port)
}

