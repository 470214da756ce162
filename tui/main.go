package main

import (
	"fmt"
	"os"
	"time"

	"tui/db"
	"tui/styles"
	"tui/views"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
)

type tab int

const (
	tabRuns tab = iota
	tabLogs
)

type model struct {
	activeTab     tab
	width, height int
	notification  string
	notifyUntil   time.Time

	runs views.Runs
	logs views.Logs
}

type tickMsg time.Time

func initialModel(dbClient *db.Client) model {
	return model{
		activeTab: tabRuns,
		runs:      views.NewRuns(dbClient),
		logs:      views.NewLogs(dbClient),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.runs.Init(), m.logs.Init(), tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(10*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "1":
			m.activeTab = tabRuns
			return m, nil
		case "2":
			m.activeTab = tabLogs
			return m, nil
		case "tab":
			m.activeTab = (m.activeTab + 1) % 2
			return m, nil
		case "r":
			m.notification = "Refreshed"
			m.notifyUntil = time.Now().Add(2 * time.Second)
			return m, tea.Batch(m.runs.Refresh(), m.logs.Refresh())
		case "enter":
			if m.activeTab == tabRuns {
				if run, ok := m.runs.Selected(); ok {
					var cmd tea.Cmd
					m.logs, cmd = m.logs.ForRun(run.ID)
					m.activeTab = tabLogs
					return m, cmd
				}
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.runs = m.runs.SetSize(msg.Width, msg.Height-4)
		m.logs = m.logs.SetSize(msg.Width, msg.Height-4)
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.runs.Refresh(), m.logs.Refresh(), tickCmd())
	}

	// Key messages go to the active tab only, data messages to both.
	switch msg.(type) {
	case tea.KeyMsg:
		switch m.activeTab {
		case tabRuns:
			newRuns, cmd := m.runs.Update(msg)
			m.runs = newRuns.(views.Runs)
			cmds = append(cmds, cmd)
		case tabLogs:
			newLogs, cmd := m.logs.Update(msg)
			m.logs = newLogs.(views.Logs)
			cmds = append(cmds, cmd)
		}
	default:
		newRuns, cmd1 := m.runs.Update(msg)
		m.runs = newRuns.(views.Runs)
		newLogs, cmd2 := m.logs.Update(msg)
		m.logs = newLogs.(views.Logs)
		cmds = append(cmds, cmd1, cmd2)
	}

	return m, tea.Batch(cmds...)
}

func (m model) View() string {
	return lipgloss.JoinVertical(lipgloss.Left, m.renderTabs(), m.renderContent(), m.renderStatusBar())
}

func (m model) renderTabs() string {
	var rendered []string
	for i, name := range []string{"Runs", "Logs"} {
		if tab(i) == m.activeTab {
			rendered = append(rendered, styles.TabActive.Render(name))
		} else {
			rendered = append(rendered, styles.TabInactive.Render(name))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...) + "\n"
}

func (m model) renderContent() string {
	if m.activeTab == tabLogs {
		return m.logs.View()
	}
	return m.runs.View()
}

func (m model) renderStatusBar() string {
	left := "1 Runs  2 Logs  enter Open run  r Refresh  q Quit"
	right := ""
	if time.Now().Before(m.notifyUntil) {
		right = styles.StatusSuccess.Render(m.notification)
	}

	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right)-2, 0)
	return styles.StatusBar.Render(left) + lipgloss.NewStyle().Width(gap).Render("") + right
}

func main() {
	_ = godotenv.Load() // Load .env if present

	ledgerPath := os.Getenv("LEDGER_PATH")
	if ledgerPath == "" {
		ledgerPath = "crexi_sync.db"
	}

	dbClient, err := db.New(ledgerPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening run ledger %s: %v\n", ledgerPath, err)
		os.Exit(1)
	}
	defer dbClient.Close()

	p := tea.NewProgram(initialModel(dbClient), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
