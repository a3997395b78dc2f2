package resp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBuffer_MixedFrame(t *testing.T) {
	buf := []byte("+OK\r\n$-1\r\n$10\r\n09481nf8a-$5\r\nhello\r\n-Error\r\n:100\r\n:-3214\r\n")
	values, consumed, err := DecodeBuffer(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), consumed)

	want := []Value{
		SimpleString("OK"),
		NullBulkString(),
		Bytes([]byte("09481nf8a-")),
		BulkString("hello"),
		SimpleError("Error"),
		Integer(100),
		Integer(-3214),
	}
	require.Len(t, values, len(want))
	for i := range want {
		assert.True(t, values[i].Equal(want[i]), "index %d: got %+v want %+v", i, values[i], want[i])
	}
}

func TestDecodeBuffer_RoundTrip(t *testing.T) {
	vals := []Value{
		SimpleString("PONG"),
		SimpleError("WRONGTYPE bad"),
		Integer(42),
		Integer(-1),
		BulkString("hello world"),
		NullBulkString(),
		Array([]Value{BulkString("SET"), BulkString("foo"), BulkString("bar")}),
		NullArray(),
	}
	for _, v := range vals {
		encoded := v.Encode()
		decoded, consumed, err := DecodeBuffer(encoded)
		require.NoError(t, err)
		require.Equal(t, len(encoded), consumed)
		require.Len(t, decoded, 1)
		assert.True(t, decoded[0].Equal(v))
	}
}

func TestDecodeBuffer_PartialFrameWaits(t *testing.T) {
	full := Array([]Value{BulkString("GET"), BulkString("foo")}).Encode()
	partial := full[:len(full)-3]
	values, consumed, err := DecodeBuffer(partial)
	require.NoError(t, err)
	assert.Equal(t, 0, consumed)
	assert.Empty(t, values)

	values, consumed, err = DecodeBuffer(full)
	require.NoError(t, err)
	assert.Equal(t, len(full), consumed)
	require.Len(t, values, 1)
}

func TestDecodeBuffer_BytesAtEndOfBuffer(t *testing.T) {
	buf := []byte("$5\r\nhello")
	values, consumed, err := DecodeBuffer(buf)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, KindBytes, values[0].Kind)
	assert.Equal(t, "hello", string(values[0].Raw))
	assert.Equal(t, len(buf), consumed)
}

func TestDecodeBuffer_FullResyncPreamble(t *testing.T) {
	rdb := make([]byte, 88)
	for i := range rdb {
		rdb[i] = byte(i)
	}
	buf := []byte("+FULLRESYNC abc123 0\r\n")
	buf = append(buf, []byte("$88\r\n")...)
	buf = append(buf, rdb...)
	buf = append(buf, Array([]Value{BulkString("SET"), BulkString("a"), BulkString("b")}).Encode()...)

	values, consumed, err := DecodeBuffer(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), consumed)
	require.Len(t, values, 3)
	assert.Equal(t, KindSimpleString, values[0].Kind)
	assert.Equal(t, KindBytes, values[1].Kind)
	assert.Equal(t, rdb, values[1].Raw)
	assert.Equal(t, KindArray, values[2].Kind)
}

func TestDecodeBuffer_MalformedPrefix(t *testing.T) {
	_, _, err := DecodeBuffer([]byte("!notaresptag\r\n"))
	assert.Error(t, err)
}

func TestDecodeBuffer_ConcatenatedSimple(t *testing.T) {
	buf := []byte("+PONG\r\n+PONG\r\n")
	values, consumed, err := DecodeBuffer(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), consumed)
	assert.Len(t, values, 2)
}

func TestValue_StringsIfArray(t *testing.T) {
	v := Array([]Value{BulkString("SET"), BulkString("k"), BulkString("v")})
	ss, ok := v.StringsIfArray()
	require.True(t, ok)
	assert.Equal(t, []string{"SET", "k", "v"}, ss)

	_, ok = Integer(5).StringsIfArray()
	assert.False(t, ok)
}
