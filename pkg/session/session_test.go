package session

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeedsIndex(t *testing.T) {
	s := New("col")

	assert.True(t, s.NeedsIndex("https://example.com"))

	s.SetIndexed("https://example.com")
	assert.False(t, s.NeedsIndex("https://example.com"))
	assert.True(t, s.NeedsIndex("https://other.com"))
	assert.Equal(t, "https://example.com", s.IndexedURL())
}

func TestHistoryLabels(t *testing.T) {
	s := New("col")
	s.Append("user", "hello")
	s.Append("assistant", "hi there")

	assert.Equal(t, "Human: hello\nAI: hi there\n", s.History())
}

func TestHistoryWindow(t *testing.T) {
	s := New("col")
	for i := 0; i < 8; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		s.Append(role, fmt.Sprintf("message %d", i))
	}

	history := s.History()

	// Only the trailing window feeds the prompt.
	assert.NotContains(t, history, "message 2")
	assert.Contains(t, history, "message 3")
	assert.Contains(t, history, "message 7")

	// The full transcript is still available.
	assert.Len(t, s.Messages(), 8)
}

func TestClearMessagesKeepsIndex(t *testing.T) {
	s := New("col")
	s.SetIndexed("https://example.com")
	s.Append("user", "hello")

	s.ClearMessages()

	assert.Empty(t, s.Messages())
	assert.False(t, s.NeedsIndex("https://example.com"))
}

func TestReset(t *testing.T) {
	s := New("col")
	s.SetIndexed("https://example.com")
	s.Append("user", "hello")

	s.Reset()

	assert.Empty(t, s.Messages())
	assert.True(t, s.NeedsIndex("https://example.com"))
}

func TestManagerReturnsSameSession(t *testing.T) {
	m := NewManager("site")

	first := m.Get("")
	require.NotEmpty(t, first.ID)

	again := m.Get(first.ID)
	assert.Same(t, first, again)
}

func TestManagerIsolatesCollections(t *testing.T) {
	m := NewManager("site")

	a := m.Get("")
	b := m.Get("")

	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.CollectionName, b.CollectionName)
	assert.Equal(t, "site_"+a.ID, a.CollectionName)
}

func TestManagerDelete(t *testing.T) {
	m := NewManager("site")

	s := m.Get("")
	m.Delete(s.ID)

	recreated := m.Get(s.ID)
	assert.NotSame(t, s, recreated)
	assert.Equal(t, s.ID, recreated.ID)
}
