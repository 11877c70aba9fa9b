package persistence

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdriehuys/timetracker/internal/domain"
)

func TestCursorRoundTrip(t *testing.T) {
	in := &domain.Cursor{
		CreatedAt: time.Date(2025, time.May, 4, 10, 30, 0, 123456000, time.UTC),
		ID:        "0b8f8e4e-6a55-4b53-8a3b-0e1f7c3f1d2a",
	}

	out, err := DecodeCursor(EncodeCursor(in))
	require.NoError(t, err)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.Equal(t, in.ID, out.ID)
}

func TestDecodeCursorEmpty(t *testing.T) {
	c, err := DecodeCursor("  ")
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.Equal(t, "", EncodeCursor(nil))
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	_, err := DecodeCursor("%%%")
	assert.Error(t, err)

	_, err = DecodeCursor(base64.RawURLEncoding.EncodeToString([]byte("no-separator")))
	assert.Error(t, err)
}

func TestNextCursor(t *testing.T) {
	now := time.Now().UTC()
	page := []domain.Activity{{ID: "a", CreatedAt: now}, {ID: "b", CreatedAt: now.Add(time.Second)}}

	assert.Nil(t, NextCursor(page, 0))
	assert.Nil(t, NextCursor(page, 3))

	next := NextCursor(page, 2)
	require.NotNil(t, next)
	assert.Equal(t, "b", next.ID)
}
