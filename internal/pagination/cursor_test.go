package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursor_RoundTrip(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 123456789, time.UTC)
	token := EncodeCursor(Cursor{LastID: "7f9c1c4e-0000-4000-8000-000000000001", Timestamp: ts})
	require.NotEmpty(t, token)

	c, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, "7f9c1c4e-0000-4000-8000-000000000001", c.LastID)
	assert.True(t, ts.Equal(c.Timestamp))
}

func TestEncodeCursor_EmptyID(t *testing.T) {
	assert.Empty(t, EncodeCursor(Cursor{Timestamp: time.Now()}))
}

func TestDecodeCursor(t *testing.T) {
	c, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, c)

	invalid := []string{
		"not base64!",
		base64.RawURLEncoding.EncodeToString([]byte("no-separator")),
		base64.RawURLEncoding.EncodeToString([]byte("abc|id")),
		base64.RawURLEncoding.EncodeToString([]byte("123|")),
	}
	for _, token := range invalid {
		_, err := DecodeCursor(token)
		assert.ErrorIs(t, err, ErrInvalidCursor, token)
	}
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, ClampLimit(0))
	assert.Equal(t, DefaultLimit, ClampLimit(-3))
	assert.Equal(t, 7, ClampLimit(7))
	assert.Equal(t, MaxLimit, ClampLimit(MaxLimit+1))
}

type item struct {
	id string
	at time.Time
}

func itemKey(i item) Cursor { return Cursor{LastID: i.id, Timestamp: i.at} }

func TestNewPage(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []item{{"c", base.Add(2 * time.Second)}, {"b", base.Add(time.Second)}, {"a", base}}

	page := NewPage(rows, 2, itemKey)
	assert.Len(t, page.Items, 2)
	assert.True(t, page.HasMore)

	c, err := DecodeCursor(page.Cursor)
	require.NoError(t, err)
	assert.Equal(t, "b", c.LastID)

	last := NewPage(rows[2:], 2, itemKey)
	assert.Len(t, last.Items, 1)
	assert.False(t, last.HasMore)
	assert.Empty(t, last.Cursor)

	empty := NewPage[item](nil, 2, itemKey)
	assert.NotNil(t, empty.Items)
	assert.Empty(t, empty.Items)
}
