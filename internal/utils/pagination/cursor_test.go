package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	ts := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	token, err := Encode(At("u-42", ts))
	require.NoError(t, err)

	c, err := Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "u-42", c.ID)
	assert.Equal(t, ts, c.Time())
}

func TestDecodeEmptyAndGarbage(t *testing.T) {
	c, err := Decode("")
	require.NoError(t, err)
	assert.True(t, c.IsZero())

	_, err = Decode("%%%not-base64")
	assert.Error(t, err)

	_, err = Decode("bm90LWpzb24=") // "not-json"
	assert.Error(t, err)
}

func TestAfter(t *testing.T) {
	ts := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	c := At("m", ts)

	assert.True(t, c.After(ts.Add(-time.Second), "z"))
	assert.True(t, c.After(ts, "a"))
	assert.False(t, c.After(ts, "m"))
	assert.False(t, c.After(ts, "z"))
	assert.False(t, c.After(ts.Add(time.Second), "a"))
	assert.True(t, Cursor{}.After(ts, "anything"))
}

func TestSubMillisecondOrdering(t *testing.T) {
	ts := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	c := At("m", ts.Add(300*time.Microsecond))

	token, err := Encode(c)
	require.NoError(t, err)
	decoded, err := Decode(token)
	require.NoError(t, err)
	assert.Equal(t, ts.Add(300*time.Microsecond), decoded.Time())

	// same millisecond, different microseconds
	assert.True(t, decoded.After(ts.Add(200*time.Microsecond), "z"))
	assert.False(t, decoded.After(ts.Add(400*time.Microsecond), "a"))
	assert.True(t, decoded.After(ts.Add(300*time.Microsecond), "a"))
}
