// Package tui is the thin terminal front end. It holds no ledger state of
// its own: every screen renders the string arrays produced by the ledger
// view API.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jask/balancebook/internal/config"
	"github.com/jask/balancebook/internal/ledger"
)

// App ties together views.
type App struct {
	ctx      context.Context
	db       *ledger.DB
	cfg      config.Config
	state    appState
	scope    ledger.Scope
	month    time.Time
	rows     [][]string
	balances [][]string
	income   [][]string
	expense  [][]string
	history  []ledger.Activity
	cursor   int
	status   string
	currency string
}

type appState string

const (
	viewLedger  appState = "ledger"
	viewHistory appState = "history"
)

func New(ctx context.Context, cfg config.Config, db *ledger.DB) *App {
	return &App{
		ctx:      ctx,
		db:       db,
		cfg:      cfg,
		state:    viewLedger,
		scope:    ledger.Monthly,
		month:    time.Now().UTC(),
		currency: cfg.UI.CurrencySymbol,
	}
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.loadView(), a.loadHistory())
}

type viewMsg struct {
	rows     [][]string
	balances [][]string
	income   [][]string
	expense  [][]string
}

type historyMsg []ledger.Activity

type errMsg struct{ err error }

func (a *App) loadView() tea.Cmd {
	return func() tea.Msg {
		v, err := a.db.List(a.ctx, a.month, a.scope)
		if err != nil {
			return errMsg{err}
		}
		balances, err := v.BalancesAsTable(a.ctx, a.db)
		if err != nil {
			return errMsg{err}
		}
		return viewMsg{rows: v.Rows(), balances: balances, income: v.Income(), expense: v.Expense()}
	}
}

func (a *App) loadHistory() tea.Cmd {
	return func() tea.Msg {
		acts, err := a.db.Activities(a.ctx, a.month.Year(), a.month.Month())
		if err != nil {
			return errMsg{err}
		}
		return historyMsg(acts)
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case viewMsg:
		a.rows, a.balances, a.income, a.expense = m.rows, m.balances, m.income, m.expense
		if a.cursor >= len(a.rows) {
			a.cursor = 0
		}
		return a, nil
	case historyMsg:
		a.history = m
		return a, nil
	case errMsg:
		a.status = m.err.Error()
		return a, nil
	case tea.KeyMsg:
		return a.handleKey(m)
	}
	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return a, tea.Quit
	case "h", "left":
		a.month = a.month.AddDate(0, -1, 0)
		return a, tea.Batch(a.loadView(), a.loadHistory())
	case "l", "right":
		a.month = a.month.AddDate(0, 1, 0)
		return a, tea.Batch(a.loadView(), a.loadHistory())
	case "j", "down":
		if a.cursor < len(a.rows)-1 {
			a.cursor++
		}
		return a, nil
	case "k", "up":
		if a.cursor > 0 {
			a.cursor--
		}
		return a, nil
	case "m":
		a.scope = ledger.Monthly
		return a, a.loadView()
	case "y":
		a.scope = ledger.Yearly
		return a, a.loadView()
	case "a":
		a.scope = ledger.All
		return a, a.loadView()
	case "tab":
		if a.state == viewLedger {
			a.state = viewHistory
		} else {
			a.state = viewLedger
		}
		return a, nil
	}
	return a, nil
}

func (a *App) View() string {
	var body string
	switch a.state {
	case viewHistory:
		body = a.renderHistory()
	default:
		body = a.renderLedger()
	}
	if a.status != "" {
		body += "\n" + a.status
	}
	return body
}

// styles
var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	cursorStyle = lipgloss.NewStyle().Reverse(true)
)

func (a *App) renderLedger() string {
	title := titleStyle.Render("Balancebook - " + a.month.Format("January 2006") + " (" + scopeLabel(a.scope) + ")")

	var b strings.Builder
	b.WriteString(title + "\n")
	for i, row := range a.rows {
		line := fmt.Sprintf("%-10s  %-28s  %-18s  %s%10s  %-8s  %s",
			row[0], clip(row[1], 28), clip(row[2], 18), a.currency, row[3], row[4], row[5])
		if i == a.cursor {
			line = cursorStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	if len(a.rows) == 0 {
		b.WriteString("no transactions\n")
	}

	b.WriteString("\nBalances (method / closing / final):\n")
	for _, row := range a.balances {
		b.WriteString(fmt.Sprintf("  %-18s %s%12s  %s%12s\n", row[0], a.currency, row[1], a.currency, row[2]))
	}
	if len(a.income) == 2 {
		b.WriteString("Income:  " + joinRow(a.income[0], a.income[1]) + "\n")
		b.WriteString("Expense: " + joinRow(a.expense[0], a.expense[1]) + "\n")
	}
	b.WriteString("[h/l] month  [m/y/a] scope  [tab] history  [q] quit")
	return b.String()
}

func (a *App) renderHistory() string {
	title := titleStyle.Render("Activity - " + a.month.Format("January 2006"))
	var b strings.Builder
	b.WriteString(title + "\n")
	for _, act := range a.history {
		b.WriteString(fmt.Sprintf("%-10s  %-12s", act.Date.Format("2006-01-02"), act.Kind))
		for _, snap := range act.Txs {
			b.WriteString(fmt.Sprintf("  [%s %s %s %s]", snap.Date, snap.FromMethod, snap.Amount, snap.Kind))
		}
		b.WriteString("\n")
	}
	if len(a.history) == 0 {
		b.WriteString("no activity\n")
	}
	b.WriteString("[tab] ledger  [q] quit")
	return b.String()
}

func scopeLabel(s ledger.Scope) string {
	switch s {
	case ledger.Yearly:
		return "year"
	case ledger.All:
		return "all"
	}
	return "month"
}

func joinRow(names, values []string) string {
	parts := make([]string, 0, len(names))
	for i := range names {
		parts = append(parts, names[i]+" "+values[i])
	}
	return strings.Join(parts, "  ")
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
