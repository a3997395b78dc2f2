// Package replication implements the master/slave role, handshake,
// write propagation, and WAIT consistency primitive of spec.md §4.5
// and §4.6.
package replication

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"goredis/internal/resp"
)

type Role int

const (
	RoleMaster Role = iota
	RoleSlave
)

func (r Role) String() string {
	if r == RoleSlave {
		return "slave"
	}
	return "master"
}

// Replica is the master-side record of one connected slave: the
// roster owns the socket outright (spec.md §9's cyclic-reference
// avoidance), identified from the supervisor's side by (host, port).
type Replica struct {
	Host string
	Port int

	mu   sync.Mutex
	conn net.Conn
	buf  []byte
}

func newReplica(host string, port int, conn net.Conn) *Replica {
	return &Replica{Host: host, Port: port, conn: conn}
}

// write sends b on the replica's socket, serialized against any
// concurrent GETACK round, matching spec.md §6's "does not fragment
// writes and does not interleave writes to the same replica."
func (r *Replica) write(b []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.conn.Write(b)
	return err
}

// sendGetAckAndReadOffset writes a GETACK frame and waits up to
// timeout for a REPLCONF ACK <n> reply on the same socket, returning
// the offset the replica reported.
func (r *Replica) sendGetAckAndReadOffset(getack []byte, timeout time.Duration) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conn.SetWriteDeadline(time.Now().Add(timeout))
	if _, err := r.conn.Write(getack); err != nil {
		return 0, err
	}

	r.conn.SetReadDeadline(time.Now().Add(timeout))
	chunk := make([]byte, 256)
	for {
		values, consumed, err := resp.DecodeBuffer(r.buf)
		if err != nil {
			r.buf = nil
			return 0, err
		}
		r.buf = r.buf[consumed:]

		for _, v := range values {
			parts, ok := v.StringsIfArray()
			if !ok || len(parts) != 3 || !strings.EqualFold(parts[0], "REPLCONF") || !strings.EqualFold(parts[1], "ACK") {
				continue
			}
			offset, err := strconv.ParseUint(parts[2], 10, 64)
			if err != nil {
				continue
			}
			return offset, nil
		}

		n, err := r.conn.Read(chunk)
		if err != nil {
			return 0, err
		}
		r.buf = append(r.buf, chunk[:n]...)
	}
}

// Manager owns the replication-related share of the shared keyspace
// resource: role, replid, offsets, and the replica roster. It is
// guarded by the same reader-writer discipline as the keyspace
// (spec.md §5): GetInfo and the getters take shared access, Propagate/Wait/
// AddReplica take exclusive access for their bookkeeping.
type Manager struct {
	mu sync.RWMutex

	role   Role
	replID string

	masterOffset    uint64
	slaveReadOffset uint64

	replicas []*Replica

	log *zap.SugaredLogger
}

func NewManager(isReplica bool, log *zap.SugaredLogger) *Manager {
	role := RoleMaster
	if isReplica {
		role = RoleSlave
	}
	return &Manager{
		role:   role,
		replID: generateReplID(),
		log:    log,
	}
}

// generateReplID produces a 40-character lowercase-hex identifier,
// the shape faizanhussain2310-GoRedis/internal/replication/replication.go's
// generateReplID also targets (crypto/rand → hex).
func generateReplID() string {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is a startup-fatal condition in practice;
		// fall back to a fixed placeholder rather than panic here so
		// callers can still log and exit cleanly.
		return strings.Repeat("0", 40)
	}
	return hex.EncodeToString(buf)
}

func (m *Manager) Role() Role {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.role
}

func (m *Manager) ReplID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.replID
}

func (m *Manager) MasterOffset() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.masterOffset
}

func (m *Manager) SlaveReadOffset() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.slaveReadOffset
}

// AddReplica registers a newly-promoted connection as a replica,
// called by the connection supervisor on HandshakeCompleted.
func (m *Manager) AddReplica(host string, port int, conn net.Conn) *Replica {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := newReplica(host, port, conn)
	m.replicas = append(m.replicas, r)
	m.log.Infow("replica registered", "host", host, "port", port, "connected_slaves", len(m.replicas))
	return r
}

func (m *Manager) ConnectedSlaves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.replicas)
}

// Propagate writes raw (the exact encoded command bytes) to every
// replica and advances master_repl_offset by len(raw), once,
// regardless of how many replicas received it or whether there are
// any at all (spec.md §4.6 step 3; mirrors
// original_source/src/redis/replication/mod.rs's propagate_message,
// which increments master_repl_offset unconditionally).
func (m *Manager) Propagate(raw []byte) {
	m.mu.Lock()
	replicas := append([]*Replica(nil), m.replicas...)
	m.masterOffset += uint64(len(raw))
	m.mu.Unlock()

	var failed []*Replica
	for _, r := range replicas {
		if err := r.write(raw); err != nil {
			failed = append(failed, r)
		}
	}
	if len(failed) == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.replicas[:0]
	for _, r := range m.replicas {
		drop := false
		for _, f := range failed {
			if f == r {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, r)
		} else {
			m.log.Warnw("replica write failed, removing from roster", "host", r.Host, "port", r.Port)
		}
	}
	m.replicas = kept
}

var getAckFrame = resp.StringArray("REPLCONF", "GETACK", "*").Encode()

// Wait implements spec.md §4.6's WAIT algorithm: a zero-offset
// shortcut, then round-based GETACK polling with the lock released
// between rounds (the I/O itself happens on each Replica's own mutex,
// not the Manager's).
func (m *Manager) Wait(target int, timeoutMs int) int {
	m.mu.RLock()
	offset := m.masterOffset
	replicas := append([]*Replica(nil), m.replicas...)
	m.mu.RUnlock()

	if offset == 0 {
		return len(replicas)
	}

	need := target
	if need > len(replicas) {
		need = len(replicas)
	}

	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	synced := 0
	for {
		synced = 0
		for _, r := range replicas {
			n, err := r.sendGetAckAndReadOffset(getAckFrame, 50*time.Millisecond)
			if err == nil && n >= offset {
				synced++
			}
		}

		m.mu.Lock()
		m.masterOffset += uint64(len(getAckFrame))
		m.mu.Unlock()

		if synced >= need || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	return synced
}

// GetInfo renders the "# Replication" block spec.md §4.6 specifies,
// byte for byte (no trailing newline after the last line), matching
// original_source/src/redis/replication/mod.rs's Display impl.
func (m *Manager) GetInfo() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var b strings.Builder
	b.WriteString("# Replication\n")
	fmt.Fprintf(&b, "role:%s\n", m.role)
	fmt.Fprintf(&b, "connected_slaves:%d\n", len(m.replicas))
	fmt.Fprintf(&b, "master_replid:%s\n", m.replID)
	fmt.Fprintf(&b, "master_repl_offset:%d\n", m.masterOffset)
	b.WriteString("second_repl_offset:0\n")
	b.WriteString("repl_backlog_active:0\n")
	b.WriteString("repl_backlog_size:0\n")
	b.WriteString("repl_backlog_first_byte_offset:0\n")
	b.WriteString("repl_backlog_histlen:0")
	return b.String()
}

// AdvanceSlaveReadOffset bumps slave_read_repl_offset by n, called by
// the replica-upstream connection loop after each inbound command is
// fully consumed.
func (m *Manager) AdvanceSlaveReadOffset(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slaveReadOffset += uint64(n)
}
