package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetDelete(t *testing.T) {
	ks := NewKeyspace()
	ks.Set("foo", StringBody("bar"), nil)
	v, ok := ks.Get("foo")
	require.True(t, ok)
	assert.Equal(t, "bar", v.Body.Str)

	assert.True(t, ks.Delete("foo"))
	assert.False(t, ks.Delete("foo"))
	_, ok = ks.Get("foo")
	assert.False(t, ok)
}

func TestExpiration(t *testing.T) {
	ks := NewKeyspace()
	ttl := 50 * time.Millisecond
	ks.Set("k", StringBody("v"), &ttl)
	time.Sleep(100 * time.Millisecond)

	_, ok := ks.Get("k")
	assert.False(t, ok)
	assert.NotContains(t, ks.Keys(), "k")

	removed := ks.ExpireSweep()
	assert.Equal(t, 1, removed)
}

func TestWrongTypeDiscipline(t *testing.T) {
	ks := NewKeyspace()
	ks.Set("k", StringBody("v"), nil)
	_, err := ks.XAdd("k", "*", map[string]string{"f": "v"})
	assert.ErrorIs(t, err, ErrWrongType)

	ks2 := NewKeyspace()
	_, err = ks2.XAdd("s", "1-1", map[string]string{"f": "v"})
	require.NoError(t, err)
	assert.Equal(t, "stream", ks2.Type("s"))
}

func TestXAddMonotonicity(t *testing.T) {
	ks := NewKeyspace()
	id1, err := ks.XAdd("s", "5-*", map[string]string{"f": "v"})
	require.NoError(t, err)
	assert.Equal(t, StreamID{Ms: 5, Seq: 0}, id1)

	id2, err := ks.XAdd("s", "5-*", map[string]string{"f": "v"})
	require.NoError(t, err)
	assert.Equal(t, StreamID{Ms: 5, Seq: 1}, id2)

	_, err = ks.XAdd("s", "5-0", map[string]string{"f": "v"})
	assert.ErrorIs(t, err, ErrIDTooSmall)

	_, err = ks.XAdd("zero", "0-0", map[string]string{"f": "v"})
	assert.ErrorIs(t, err, ErrIDZero)
}

func TestXAddRejectPastID(t *testing.T) {
	ks := NewKeyspace()
	_, err := ks.XAdd("s", "2-10", map[string]string{"f": "v"})
	require.NoError(t, err)
	_, err = ks.XAdd("s", "2-0", map[string]string{"f": "v"})
	assert.ErrorIs(t, err, ErrIDTooSmall)
}

func TestXRangeComponentWise(t *testing.T) {
	ks := NewKeyspace()
	_, _ = ks.XAdd("s", "1-1", map[string]string{"f": "a"})
	_, _ = ks.XAdd("s", "1-2", map[string]string{"f": "b"})
	_, _ = ks.XAdd("s", "2-1", map[string]string{"f": "c"})

	entries, ok, err := ks.XRange("s", StreamID{Ms: 0, Seq: 0}, StreamID{Ms: 1, Seq: 1})
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, entries, 1)
	assert.Equal(t, StreamID{Ms: 1, Seq: 1}, entries[0].ID)

	_, ok, _ = ks.XRange("missing", StreamID{}, StreamID{Ms: ^uint64(0), Seq: ^uint64(0)})
	assert.False(t, ok)
}

func TestXReadStrictlyGreater(t *testing.T) {
	ks := NewKeyspace()
	_, _ = ks.XAdd("s", "1-1", map[string]string{"f": "a"})
	_, _ = ks.XAdd("s", "1-2", map[string]string{"f": "b"})

	result, found := ks.XRead([]XReadQuery{{Key: "s", After: StreamID{Ms: 1, Seq: 1}}}, 0)
	require.True(t, found)
	require.Len(t, result["s"], 1)
	assert.Equal(t, StreamID{Ms: 1, Seq: 2}, result["s"][0].ID)

	_, found = ks.XRead([]XReadQuery{{Key: "nope", After: StreamID{}}}, 0)
	assert.False(t, found)
}
