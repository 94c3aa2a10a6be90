package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionManager(t *testing.T) {
	m := NewSessionManager()
	first := m.Current()
	require.NotEmpty(t, first.ID)
	assert.True(t, first.Anonymous())

	require.NoError(t, m.Identify("user-1"))
	require.NoError(t, m.Identify("user-1"))
	assert.Equal(t, "user-1", m.Current().UserID)
	assert.Equal(t, first.ID, m.Current().ID)

	assert.ErrorIs(t, m.Identify(""), ErrEmptyUserID)
	assert.Equal(t, "user-1", m.Current().UserID)

	next := m.Reset()
	assert.NotEqual(t, first.ID, next.ID)
	assert.True(t, next.Anonymous())
	assert.Equal(t, next, m.Current())
}

func TestSessionManagerClock(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	m := NewSessionManager(WithSessionClock(func() time.Time { return now }))
	assert.Contains(t, m.Current().ID, "session_1700000000000_")
}
