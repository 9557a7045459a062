package notiflist

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notification-monitor/internal/keys"
	"github.com/nhle/notification-monitor/internal/model"
)

func sample() []model.DisplayRecord {
	return []model.DisplayRecord{
		{ID: "a1", Recipient: "x@y.com", Status: "delivered", RelativeTime: "5 minutes ago"},
		{ID: "b2", Recipient: "z@y.com", Status: "pending"},
		{ID: "c3", Recipient: "w@y.com", Status: "failed", RelativeTime: "1 hour ago"},
	}
}

func TestEmptyListShowsLoading(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 100, 20)

	assert.False(t, m.HasData())
	assert.Contains(t, m.View(), "Loading notifications")
}

func TestSetRecordsRendersInOrder(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 100, 20)
	assert.Nil(t, m.SetRecords(sample()))

	require.True(t, m.HasData())
	view := m.View()
	assert.NotContains(t, view, "Loading")
	assert.Contains(t, view, "3 notifications")

	ix := func(s string) int {
		for i := 0; i+len(s) <= len(view); i++ {
			if view[i:i+len(s)] == s {
				return i
			}
		}
		return -1
	}
	assert.Less(t, ix("x@y.com"), ix("z@y.com"))
	assert.Less(t, ix("z@y.com"), ix("w@y.com"))
}

func TestClearingListRestartsSpinner(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 100, 20)
	m.SetRecords(sample())

	cmd := m.SetRecords([]model.DisplayRecord{})
	assert.NotNil(t, cmd)
	assert.False(t, m.HasData())

	view := m.View()
	assert.Contains(t, view, "Loading notifications")
	assert.NotContains(t, view, "x@y.com")
	assert.NotContains(t, view, "failed")
}

func TestNavigationAndCursorClamp(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 100, 20)
	m.SetRecords(sample())

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("G")})
	sel, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "c3", sel.ID)

	m.SetRecords(sample()[:1])
	sel, ok = m.Selected()
	require.True(t, ok)
	assert.Equal(t, "a1", sel.ID)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	sel, _ = m.Selected()
	assert.Equal(t, "a1", sel.ID)
}

func TestSelectedOnEmptyList(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 100, 20)
	_, ok := m.Selected()
	assert.False(t, ok)
}
