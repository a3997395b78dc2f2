package snapshot

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"goredis/internal/store"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func lengthEncoded(n uint32) []byte {
	if n < 64 {
		return []byte{byte(n)}
	}
	buf := make([]byte, 5)
	buf[0] = 0x80
	binary.BigEndian.PutUint32(buf[1:], n)
	return buf
}

func stringEncoded(s string) []byte {
	buf := lengthEncoded(uint32(len(s)))
	return append(buf, []byte(s)...)
}

func buildSnapshot(t *testing.T, entries int, withExpiry bool) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("REDIS")
	buf.Write([]byte{0x00, 0x00, 0x00, 0x03})
	buf.Write([]byte{opSelectDB, 0x00, opResizeDB})
	buf.Write(lengthEncoded(uint32(entries)))
	buf.Write(lengthEncoded(0))

	for i := 0; i < entries; i++ {
		if withExpiry && i == 0 {
			buf.WriteByte(opExpireMillis)
			ts := make([]byte, 8)
			binary.LittleEndian.PutUint64(ts, 9999999999999)
			buf.Write(ts)
		}
		buf.WriteByte(valueTypeString)
		buf.Write(stringEncoded("key" + string(rune('a'+i))))
		buf.Write(stringEncoded("value"))
	}
	return buf.Bytes()
}

func TestLoad_MissingFileIsNotError(t *testing.T) {
	ks := store.NewKeyspace()
	err := Load(filepath.Join(t.TempDir(), "nope.rdb"), ks, testLogger())
	require.NoError(t, err)
	assert.Empty(t, ks.Keys())
}

func TestLoad_MaterializesStrings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dump.rdb")
	require.NoError(t, os.WriteFile(path, buildSnapshot(t, 3, false), 0o644))

	ks := store.NewKeyspace()
	require.NoError(t, Load(path, ks, testLogger()))
	assert.Len(t, ks.Keys(), 3)
	v, ok := ks.Get("keya")
	require.True(t, ok)
	assert.Equal(t, "value", v.Body.Str)
}

func TestLoad_EmptyPathIsNoop(t *testing.T) {
	ks := store.NewKeyspace()
	require.NoError(t, Load("", ks, testLogger()))
	assert.Empty(t, ks.Keys())
}
