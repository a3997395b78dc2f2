package server

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"goredis/internal/config"
	"goredis/internal/replication"
	"goredis/internal/resp"
	"goredis/internal/store"
)

func newTestParams(args ...string) (*Params, *bytes.Buffer) {
	var buf bytes.Buffer
	p := &Params{
		Args:        args,
		Keyspace:    store.NewKeyspace(),
		Writer:      &buf,
		ShouldReply: true,
		Repl:        replication.NewManager(false, zap.NewNop().Sugar()),
		Cfg:         config.Default(),
		Log:         zap.NewNop().Sugar(),
	}
	p.RawCommand = resp.StringArray(args...).Encode()
	return p, &buf
}

func decodeReply(t *testing.T, buf *bytes.Buffer) resp.Value {
	t.Helper()
	values, _, err := resp.DecodeBuffer(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, values, 1)
	return values[0]
}

func TestPing(t *testing.T) {
	p, buf := newTestParams("PING")
	res := handlePing(p)
	assert.Equal(t, OutcomeOK, res.Outcome)
	assert.True(t, decodeReply(t, buf).Equal(resp.SimpleString("PONG")))
}

func TestSetGet(t *testing.T) {
	p, buf := newTestParams("SET", "foo", "bar")
	handleSet(p)
	assert.True(t, decodeReply(t, buf).Equal(resp.SimpleString("OK")))

	p2, buf2 := newTestParams("GET", "foo")
	p2.Keyspace = p.Keyspace
	handleGet(p2)
	assert.True(t, decodeReply(t, buf2).Equal(resp.BulkString("bar")))
}

func TestGetWrongType(t *testing.T) {
	ks := store.NewKeyspace()
	_, err := ks.XAdd("s", "1-1", map[string]string{"f": "v"})
	require.NoError(t, err)

	p, buf := newTestParams("GET", "s")
	p.Keyspace = ks
	res := handleGet(p)
	assert.Equal(t, OutcomeError, res.Outcome)
	assert.True(t, decodeReply(t, buf).Equal(resp.SimpleError(store.ErrWrongType.Error())))
}

func TestDelCounts(t *testing.T) {
	ks := store.NewKeyspace()
	ks.Set("a", store.StringBody("1"), nil)
	ks.Set("b", store.StringBody("2"), nil)

	p, buf := newTestParams("DEL", "a", "b", "c")
	p.Keyspace = ks
	handleDel(p)
	assert.True(t, decodeReply(t, buf).Equal(resp.Integer(2)))
}

func TestXAddAutoSeq(t *testing.T) {
	ks := store.NewKeyspace()

	p1, buf1 := newTestParams("XADD", "s", "5-*", "f", "v")
	p1.Keyspace = ks
	handleXAdd(p1)
	assert.True(t, decodeReply(t, buf1).Equal(resp.BulkString("5-0")))

	p2, buf2 := newTestParams("XADD", "s", "5-*", "f", "v")
	p2.Keyspace = ks
	handleXAdd(p2)
	assert.True(t, decodeReply(t, buf2).Equal(resp.BulkString("5-1")))
}

func TestXAddRejectPastID(t *testing.T) {
	ks := store.NewKeyspace()
	p1, _ := newTestParams("XADD", "s", "2-10", "f", "v")
	p1.Keyspace = ks
	handleXAdd(p1)

	p2, buf2 := newTestParams("XADD", "s", "2-0", "f", "v")
	p2.Keyspace = ks
	res := handleXAdd(p2)
	assert.Equal(t, OutcomeError, res.Outcome)
	assert.True(t, decodeReply(t, buf2).Equal(resp.SimpleError(store.ErrIDTooSmall.Error())))
}

func TestWaitZeroOffsetShortcut(t *testing.T) {
	repl := replication.NewManager(false, zap.NewNop().Sugar())
	p, buf := newTestParams("WAIT", "2", "100")
	p.Repl = repl
	handleWait(p)
	assert.True(t, decodeReply(t, buf).Equal(resp.Integer(0)))
}

func TestConfigGetStar(t *testing.T) {
	cfg := config.Default()
	cfg.Dir = "/data"
	cfg.DBFilename = "dump.rdb"
	p, buf := newTestParams("CONFIG", "GET", "*")
	p.Cfg = cfg
	handleConfig(p)
	v := decodeReply(t, buf)
	require.Equal(t, resp.KindArray, v.Kind)
	assert.Len(t, v.Elems, 8)
}

func TestUnknownCommand(t *testing.T) {
	d := NewDispatcher()
	p, buf := newTestParams("NOPE")
	d.Dispatch(p)
	assert.True(t, decodeReply(t, buf).Equal(resp.SimpleError("ERR unknown command")))
}
