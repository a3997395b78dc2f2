package replication

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"goredis/internal/resp"
)

// DialMaster opens a connection to the upstream master and performs
// the slave's outbound handshake exactly as spec.md §4.5 lays out:
// PING, REPLCONF listening-port, REPLCONF capa psync2, PSYNC ? -1,
// with a read between each message. It returns the live connection
// (left open as the propagation channel) plus the bytes already read
// past the PSYNC reply that belong to the steady-state stream (the
// reader is not guaranteed to stop exactly at the FULLRESYNC boundary).
func DialMaster(host string, port int, ownPort int, log *zap.SugaredLogger) (conn net.Conn, leftover []byte, err error) {
	conn, err = net.Dial("tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, nil, errors.Wrap(err, "dial master")
	}

	hs := &handshakeConn{conn: conn}

	if err := hs.roundtrip(resp.StringArray("PING").Encode()); err != nil {
		conn.Close()
		return nil, nil, errors.Wrap(err, "PING")
	}
	if err := hs.roundtrip(resp.StringArray("REPLCONF", "listening-port", fmt.Sprintf("%d", ownPort)).Encode()); err != nil {
		conn.Close()
		return nil, nil, errors.Wrap(err, "REPLCONF listening-port")
	}
	if err := hs.roundtrip(resp.StringArray("REPLCONF", "capa", "psync2").Encode()); err != nil {
		conn.Close()
		return nil, nil, errors.Wrap(err, "REPLCONF capa psync2")
	}
	if err := hs.sendPSync(); err != nil {
		conn.Close()
		return nil, nil, errors.Wrap(err, "PSYNC")
	}

	log.Infow("handshake with master completed", "master", fmt.Sprintf("%s:%d", host, port))
	return conn, hs.buf, nil
}

type handshakeConn struct {
	conn net.Conn
	buf  []byte
}

// roundtrip writes msg and blocks for one decoded reply, discarding
// its content (the handshake only cares that the master answered).
func (h *handshakeConn) roundtrip(msg []byte) error {
	if _, err := h.conn.Write(msg); err != nil {
		return err
	}
	_, err := h.readOne()
	return err
}

// sendPSync writes the PSYNC request, then consumes the
// +FULLRESYNC ...\r\n line followed by the RDB Bytes frame, leaving
// the connection positioned at the start of the steady-state
// propagation stream.
func (h *handshakeConn) sendPSync() error {
	if _, err := h.conn.Write(resp.StringArray("PSYNC", "?", "-1").Encode()); err != nil {
		return err
	}
	v, err := h.readOne()
	if err != nil {
		return err
	}
	if v.Kind != resp.KindSimpleString || !strings.HasPrefix(v.Str, "FULLRESYNC") {
		return errors.Errorf("unexpected PSYNC reply: %+v", v)
	}
	// The RDB payload follows immediately as a Bytes frame.
	_, err = h.readOne()
	return err
}

// readOne blocks (re-reading from the socket as needed) until exactly
// one RESP value can be decoded from the accumulated buffer, returning
// it and leaving any further bytes — including any later frames a
// single Read coalesced alongside it, such as the first propagated
// command arriving right after FULLRESYNC's RDB payload — buffered for
// the caller rather than discarded.
func (h *handshakeConn) readOne() (resp.Value, error) {
	for {
		v, consumed, ok, err := resp.DecodeOne(h.buf)
		if err != nil {
			return resp.Value{}, err
		}
		if ok {
			h.buf = h.buf[consumed:]
			return v, nil
		}
		chunk := make([]byte, 4096)
		h.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		n, err := h.conn.Read(chunk)
		if err != nil {
			return resp.Value{}, err
		}
		h.buf = append(h.buf, chunk[:n]...)
	}
}
