package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	cl "microbank/internal/cli"
	"microbank/internal/economy"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	boxStyle    = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
)

type ticksMsg []cl.Tick

type streamDoneMsg struct{ err error }

type quote struct {
	symbol string
	name   string
	open   decimal.Decimal
	last   decimal.Decimal
	prev   decimal.Decimal
}

type watchModel struct {
	table   table.Model
	quotes  []*quote
	bySym   map[string]*quote
	updated time.Time
	ticks   int
	status  string
	err     error
}

func newWatchModel(stocks []economy.Stock) watchModel {
	m := watchModel{bySym: make(map[string]*quote, len(stocks)), status: "waiting for prices"}
	for _, st := range stocks {
		q := &quote{symbol: st.Symbol, name: st.Name, open: st.Price, last: st.Price, prev: st.Price}
		m.quotes = append(m.quotes, q)
		m.bySym[st.Symbol] = q
	}

	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Symbol", Width: 8},
			{Title: "Name", Width: 20},
			{Title: "Price", Width: 14},
			{Title: "Tick", Width: 10},
			{Title: "Session", Width: 10},
		}),
		table.WithFocused(true),
		table.WithHeight(len(stocks)+1),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).Bold(true)
	s.Selected = s.Selected.Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	t.SetStyles(s)
	m.table = t
	m.refresh()
	return m
}

func (m *watchModel) refresh() {
	rows := make([]table.Row, 0, len(m.quotes))
	for _, q := range m.quotes {
		rows = append(rows, table.Row{
			q.symbol,
			truncate(q.name, 20),
			formatAmount(q.last),
			pctMove(q.prev, q.last),
			pctMove(q.open, q.last),
		})
	}
	m.table.SetRows(rows)
}

func pctMove(from, to decimal.Decimal) string {
	if from.IsZero() {
		return "-"
	}
	pct := to.Sub(from).Div(from).Mul(decimal.NewFromInt(100)).Round(2)
	switch {
	case pct.IsPositive():
		return "▲ " + pct.StringFixed(2) + "%"
	case pct.IsNegative():
		return "▼ " + pct.Abs().StringFixed(2) + "%"
	default:
		return "  0.00%"
	}
}

func (m watchModel) Init() tea.Cmd {
	return nil
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	case ticksMsg:
		for _, t := range msg {
			q, ok := m.bySym[t.Symbol]
			if !ok {
				continue
			}
			q.prev, q.last = q.last, t.Price
			if t.At.After(m.updated) {
				m.updated = t.At
			}
		}
		m.ticks++
		m.status = "live"
		m.refresh()
		return m, nil
	case streamDoneMsg:
		m.err = msg.err
		m.status = "disconnected"
		return m, nil
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m watchModel) View() string {
	header := titleStyle.Render("microbank market")
	footer := fmt.Sprintf("%s · %d repricings", m.status, m.ticks)
	if !m.updated.IsZero() {
		footer += " · last " + m.updated.Local().Format("15:04:05")
	}
	footer = statusStyle.Render(footer + " · q to quit")
	if m.err != nil {
		footer += "\n" + errorStyle.Render(m.err.Error())
	}
	return header + "\n" + boxStyle.Render(m.table.View()) + "\n" + footer + "\n"
}

func runWatch(ctx context.Context, client *cl.Client) error {
	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	stocks, err := client.Stocks(loadCtx)
	cancel()
	if err != nil {
		return err
	}

	streamCtx, stop := context.WithCancel(ctx)
	defer stop()

	p := tea.NewProgram(newWatchModel(stocks), tea.WithContext(ctx), tea.WithAltScreen())
	go func() {
		err := client.Stream(streamCtx, func(batch []cl.Tick) {
			p.Send(ticksMsg(batch))
		})
		p.Send(streamDoneMsg{err: err})
	}()

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
