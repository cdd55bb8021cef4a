package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	token, err := EncodeCursor(Cursor{ID: "lic-1", CreatedAt: at})
	require.NoError(t, err)

	c, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, "lic-1", c.ID)
	assert.True(t, c.CreatedAt.Equal(at))

	_, err = DecodeCursor("%%%")
	assert.ErrorIs(t, err, ErrInvalidPageToken)
}

func TestBuildCursorPage(t *testing.T) {
	rows := []string{"a", "b", "c"}
	page, info, err := BuildCursorPage(rows, 2, func(s string) Cursor { return Cursor{ID: s} })
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, page)
	assert.True(t, info.HasMore)

	c, err := DecodeCursor(info.NextPageToken)
	require.NoError(t, err)
	assert.Equal(t, "b", c.ID)

	page, info, err = BuildCursorPage(rows, 5, func(s string) Cursor { return Cursor{ID: s} })
	require.NoError(t, err)
	assert.Len(t, page, 3)
	assert.False(t, info.HasMore)
}

func TestLimit(t *testing.T) {
	assert.Equal(t, 20, Pagination{}.Limit())
	assert.Equal(t, 100, Pagination{PageSize: 1000}.Limit())
	assert.Equal(t, 7, Pagination{PageSize: 7}.Limit())
}
