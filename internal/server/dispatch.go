// Package server implements command dispatch, the per-command
// handlers, the per-connection state machine, and the expiration
// sweep task — spec.md §4.4, §4.8, and §4.7.
package server

import (
	"io"
	"net"
	"strings"

	"go.uber.org/zap"

	"goredis/internal/config"
	"goredis/internal/metrics"
	"goredis/internal/replication"
	"goredis/internal/store"
)

// Outcome is the handler outcome enum spec.md §4.4 names. Only the
// REPLCONF and PSYNC handlers ever return a non-Ok/Error replication
// variant; every other handler returns Ok or Error.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeError
	OutcomeHandshakeStarted
	OutcomeHandshakeCapaReceived
	OutcomeHandshakeCompleted
)

// Result is a handler's return value. Port is only meaningful when
// Outcome is OutcomeHandshakeStarted.
type Result struct {
	Outcome Outcome
	Port    int
}

// Params is the uniform parameter record passed to every handler
// (spec.md §4.4, §9): one capability, one record shape, no
// polymorphic handler interface.
type Params struct {
	Args        []string
	Keyspace    *store.Keyspace
	Writer      io.Writer
	ShouldReply bool

	Repl   *replication.Manager
	Cfg    *config.Config
	Conn   net.Conn
	Log    *zap.SugaredLogger
	Metric *metrics.Registry

	// RawCommand is the exact encoded bytes of the inbound command
	// array, propagated to replicas verbatim by write-handlers —
	// including XADD, which propagates the literal `*`/`<ms>-*` form
	// the client sent rather than the id it allocated (spec.md §4.3).
	RawCommand []byte
}

// Handler is the one capability every command implements.
type Handler func(p *Params) Result

// Dispatcher maps an uppercased command name to its handler.
type Dispatcher struct {
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	d := &Dispatcher{handlers: make(map[string]Handler)}
	d.register("PING", handlePing)
	d.register("ECHO", handleEcho)
	d.register("GET", handleGet)
	d.register("SET", handleSet)
	d.register("DEL", handleDel)
	d.register("TYPE", handleType)
	d.register("KEYS", handleKeys)
	d.register("CONFIG", handleConfig)
	d.register("INFO", handleInfo)
	d.register("REPLCONF", handleReplConf)
	d.register("PSYNC", handlePSync)
	d.register("WAIT", handleWait)
	d.register("XADD", handleXAdd)
	d.register("XRANGE", handleXRange)
	d.register("XREAD", handleXRead)
	return d
}

func (d *Dispatcher) register(name string, h Handler) {
	d.handlers[name] = h
}

// Dispatch uppercases args[0] to select a handler and invokes it.
// Unknown commands reply with a generic error when ShouldReply, or
// are silently dropped otherwise (spec.md §4.4 step 3).
func (d *Dispatcher) Dispatch(p *Params) Result {
	if len(p.Args) == 0 {
		return Result{Outcome: OutcomeError}
	}
	name := strings.ToUpper(p.Args[0])
	h, ok := d.handlers[name]
	if !ok {
		if p.ShouldReply {
			writeError(p.Writer, "ERR unknown command")
		}
		return Result{Outcome: OutcomeError}
	}
	if p.Metric != nil {
		p.Metric.CommandsTotal.WithLabelValues(name).Inc()
	}
	return h(p)
}

// IsWriteCommand reports whether cmd mutates the keyspace and so
// should be propagated to replicas on success (spec.md §2's data-flow
// description: "encoded command replicated to every connected
// replica").
func IsWriteCommand(name string) bool {
	switch strings.ToUpper(name) {
	case "SET", "DEL", "XADD":
		return true
	default:
		return false
	}
}
