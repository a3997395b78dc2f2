package server

import (
	"context"
	"fmt"
	"net"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"goredis/internal/config"
	"goredis/internal/metrics"
	"goredis/internal/replication"
	"goredis/internal/store"
)

// Server owns the listener and wires together the keyspace,
// replication manager, and dispatcher for every accepted connection —
// the "connection supervisor" component of spec.md §2.
type Server struct {
	cfg    *config.Config
	ks     *store.Keyspace
	repl   *replication.Manager
	metric *metrics.Registry
	log    *zap.SugaredLogger

	dispatch *Dispatcher
	listener net.Listener
}

func New(cfg *config.Config, ks *store.Keyspace, repl *replication.Manager, metric *metrics.Registry, log *zap.SugaredLogger) *Server {
	return &Server{
		cfg:      cfg,
		ks:       ks,
		repl:     repl,
		metric:   metric,
		log:      log,
		dispatch: NewDispatcher(),
	}
}

// ListenAndServe binds the configured port and accepts connections
// until ctx is cancelled, spawning one Connection per accepted
// socket (a task per connection, per spec.md §5's scheduling model).
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return errors.Wrap(err, "bind listener")
	}
	s.listener = ln
	s.log.Infow("listening", "port", s.cfg.Port)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				s.log.Warnw("accept error", "error", err)
				return errors.Wrap(err, "accept")
			}
		}
		c := NewConnection(conn, s.ks, s.repl, s.cfg, s.metric, s.dispatch, s.log)
		go c.Serve()
	}
}

// Dispatcher exposes the server's dispatch table, used by the replica
// steady-state loop too so both directions share one command table.
func (s *Server) Dispatcher() *Dispatcher { return s.dispatch }
