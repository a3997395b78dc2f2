package server

import (
	"net"

	"go.uber.org/zap"

	"goredis/internal/config"
	"goredis/internal/metrics"
	"goredis/internal/replication"
	"goredis/internal/resp"
	"goredis/internal/store"
)

// RunReplicaStream drives the slave's steady-state propagation loop
// after the handshake completes: every inbound command is applied
// with should_reply=false, and slave_read_repl_offset is advanced by
// each command's encoded byte length (spec.md §2, §4.6). REPLCONF
// GETACK is the one inbound command answered even though
// should_reply is false (handled inside handleReplConf itself).
func RunReplicaStream(conn net.Conn, leftover []byte, ks *store.Keyspace, repl *replication.Manager, cfg *config.Config, metric *metrics.Registry, dispatch *Dispatcher, log *zap.SugaredLogger) {
	buf := leftover
	chunk := make([]byte, readChunk)
	for {
		v, consumed, ok, err := resp.DecodeOne(buf)
		if err != nil {
			log.Warnw("replica stream decode error, dropping buffered bytes", "error", err)
			buf = nil
			continue
		}
		if !ok {
			n, rerr := conn.Read(chunk)
			if rerr != nil {
				log.Warnw("replication stream from master closed", "error", rerr)
				return
			}
			buf = append(buf, chunk[:n]...)
			continue
		}
		raw := buf[:consumed]
		buf = buf[consumed:]

		args, ok := v.StringsIfArray()
		if !ok {
			continue
		}

		p := &Params{
			Args:        args,
			Keyspace:    ks,
			Writer:      conn,
			ShouldReply: false,
			Repl:        repl,
			Cfg:         cfg,
			Conn:        conn,
			Log:         log,
			Metric:      metric,
			RawCommand:  raw,
		}
		dispatch.Dispatch(p)
		repl.AdvanceSlaveReadOffset(len(raw))
	}
}
