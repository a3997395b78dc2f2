package replication

import (
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"goredis/internal/resp"
)

func testLog() *zap.SugaredLogger { return zap.NewNop().Sugar() }

func TestReplIDFormat(t *testing.T) {
	m := NewManager(false, testLog())
	assert.Len(t, m.ReplID(), 40)
}

func TestPropagateAdvancesOffsetRegardlessOfReplicaCount(t *testing.T) {
	m := NewManager(false, testLog())
	cmd := resp.StringArray("SET", "a", "b").Encode()
	m.Propagate(cmd)
	assert.Equal(t, uint64(len(cmd)), m.MasterOffset())

	cmd2 := resp.StringArray("SET", "c", "d").Encode()
	m.Propagate(cmd2)
	assert.Equal(t, uint64(len(cmd)+len(cmd2)), m.MasterOffset())
}

func TestWaitZeroOffsetShortcut(t *testing.T) {
	m := NewManager(false, testLog())
	_, serverSide := net.Pipe()
	defer serverSide.Close()
	m.AddReplica("127.0.0.1", 1, serverSide)
	m.AddReplica("127.0.0.1", 2, serverSide)

	synced := m.Wait(10, 100)
	assert.Equal(t, 2, synced)
}

func TestWaitCountsAckedReplicas(t *testing.T) {
	m := NewManager(false, testLog())
	cmd := resp.StringArray("SET", "a", "b").Encode()
	m.Propagate(cmd)

	client, serverSide := net.Pipe()
	m.AddReplica("127.0.0.1", 1, serverSide)

	go func() {
		buf := make([]byte, 256)
		n, err := client.Read(buf)
		if err != nil {
			return
		}
		values, _, _ := resp.DecodeBuffer(buf[:n])
		if len(values) == 0 {
			return
		}
		_ = values[0]
		ack := resp.StringArray("REPLCONF", "ACK", strconv.FormatUint(m.MasterOffset(), 10)).Encode()
		client.Write(ack)
	}()

	synced := m.Wait(1, 200)
	assert.Equal(t, 1, synced)
}

func TestGetInfoFormat(t *testing.T) {
	m := NewManager(false, testLog())
	info := m.GetInfo()
	assert.Contains(t, info, "# Replication\n")
	assert.Contains(t, info, "role:master\n")
	assert.Contains(t, info, "master_repl_offset:0\n")
	assert.NotContains(t, info, "repl_backlog_histlen:0\n")
	assert.Contains(t, info, "repl_backlog_histlen:0")
}

func TestRoleFromReplicaOf(t *testing.T) {
	m := NewManager(true, testLog())
	assert.Equal(t, RoleSlave, m.Role())
}

func TestSlaveReadOffsetAdvances(t *testing.T) {
	m := NewManager(true, testLog())
	m.AdvanceSlaveReadOffset(37)
	assert.Equal(t, uint64(37), m.SlaveReadOffset())
}
