package main

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microbank/internal/economy"
)

func watchFixture() watchModel {
	return newWatchModel([]economy.Stock{
		{Symbol: "SAFE", Name: "Safe Co", Price: decimal.NewFromInt(100)},
		{Symbol: "TECH", Name: "Tech Corp", Price: decimal.NewFromInt(200)},
	})
}

func TestWatchAppliesTicks(t *testing.T) {
	m := watchFixture()
	require.Len(t, m.table.Rows(), 2)
	assert.Equal(t, "waiting for prices", m.status)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	next, cmd := m.Update(ticksMsg{
		{Symbol: "SAFE", Price: decimal.NewFromInt(105), At: at},
		{Symbol: "NOPE", Price: decimal.NewFromInt(1), At: at},
	})
	assert.Nil(t, cmd)
	m = next.(watchModel)

	rows := m.table.Rows()
	assert.Equal(t, "¤105.00", rows[0][2])
	assert.Equal(t, "▲ 5.00%", rows[0][3])
	assert.Equal(t, "▲ 5.00%", rows[0][4])
	assert.Equal(t, "¤200.00", rows[1][2])
	assert.Equal(t, "live", m.status)
	assert.Equal(t, 1, m.ticks)
	assert.Equal(t, at, m.updated)

	next, _ = m.Update(ticksMsg{{Symbol: "SAFE", Price: decimal.NewFromInt(84), At: at.Add(time.Minute)}})
	m = next.(watchModel)
	rows = m.table.Rows()
	assert.Equal(t, "▼ 20.00%", rows[0][3])
	assert.Equal(t, "▼ 16.00%", rows[0][4])
}

func TestWatchStreamDone(t *testing.T) {
	m := watchFixture()
	next, _ := m.Update(streamDoneMsg{err: errors.New("read price stream: eof")})
	m = next.(watchModel)
	assert.Equal(t, "disconnected", m.status)
	assert.Contains(t, m.View(), "read price stream: eof")
}

func TestWatchQuits(t *testing.T) {
	_, cmd := watchFixture().Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
