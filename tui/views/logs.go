package views

import (
	"fmt"
	"strings"

	"tui/db"
	"tui/styles"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var logLevels = []string{"all", "info", "warn", "error"}

type logsMsg struct {
	runID string
	logs  []db.SyncLog
}

// Logs shows the ledger log lines of one run.
type Logs struct {
	db            *db.Client
	width, height int
	runID         string
	logs          []db.SyncLog
	levelIndex    int
	scrollOffset  int
}

func NewLogs(dbClient *db.Client) Logs {
	return Logs{db: dbClient}
}

func (l Logs) Init() tea.Cmd {
	return nil
}

// ForRun switches the view to runID and loads its logs.
func (l Logs) ForRun(runID string) (Logs, tea.Cmd) {
	if runID != l.runID {
		l.scrollOffset = 0
	}
	l.runID = runID
	return l, l.Refresh()
}

func (l Logs) Refresh() tea.Cmd {
	if l.runID == "" {
		return nil
	}
	runID := l.runID
	level := logLevels[l.levelIndex]
	return func() tea.Msg {
		var levelPtr *string
		if level != "all" {
			levelPtr = &level
		}
		logs, _ := l.db.GetRunLogs(runID, levelPtr)
		return logsMsg{runID: runID, logs: logs}
	}
}

func (l Logs) SetSize(w, h int) Logs {
	l.width = w
	l.height = h
	return l
}

func (l Logs) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case logsMsg:
		if msg.runID == l.runID {
			l.logs = msg.logs
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "left", "h":
			if l.levelIndex > 0 {
				l.levelIndex--
				l.scrollOffset = 0
				return l, l.Refresh()
			}
		case "right", "l":
			if l.levelIndex < len(logLevels)-1 {
				l.levelIndex++
				l.scrollOffset = 0
				return l, l.Refresh()
			}
		case "up", "k":
			if l.scrollOffset > 0 {
				l.scrollOffset--
			}
		case "down", "j":
			if l.scrollOffset < l.maxScroll() {
				l.scrollOffset++
			}
		case "g":
			l.scrollOffset = 0
		case "G":
			l.scrollOffset = l.maxScroll()
		}
	}
	return l, nil
}

func (l Logs) visibleLines() int {
	if l.height-6 < 1 {
		return 10
	}
	return l.height - 6
}

func (l Logs) maxScroll() int {
	return max(len(l.logs)-l.visibleLines(), 0)
}

func (l Logs) View() string {
	title := "Logs"
	if l.runID != "" {
		title = "Logs for " + l.runID
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		styles.Title.Render(title),
		l.renderFilter(),
		"",
		l.renderLogs(),
	)
}

func (l Logs) renderFilter() string {
	var parts []string
	for i, level := range logLevels {
		if i == l.levelIndex {
			parts = append(parts, styles.TabActive.Render("["+level+"]"))
		} else {
			parts = append(parts, styles.TabInactive.Render(level))
		}
	}
	return "Filter: " + strings.Join(parts, " ") + "  (←/→ to change)"
}

func (l Logs) renderLogs() string {
	if l.runID == "" {
		return styles.Muted.Render("Select a run on the Runs tab and press enter")
	}
	if len(l.logs) == 0 {
		return styles.Muted.Render("No logs")
	}

	start := l.scrollOffset
	end := min(start+l.visibleLines(), len(l.logs))

	var lines []string
	for i := start; i < end; i++ {
		lines = append(lines, l.formatLog(l.logs[i]))
	}

	header := styles.Muted.Render(fmt.Sprintf("  [%d-%d of %d]", start+1, end, len(l.logs)))
	return header + "\n" + strings.Join(lines, "\n")
}

func (l Logs) formatLog(entry db.SyncLog) string {
	var levelStyle lipgloss.Style
	switch entry.Level {
	case "info":
		levelStyle = styles.StatusSuccess
	case "warn":
		levelStyle = styles.StatusPending
	case "error":
		levelStyle = styles.StatusError
	default:
		levelStyle = lipgloss.NewStyle()
	}

	msg := entry.Message
	if maxLen := l.width - 25; maxLen > 3 && len(msg) > maxLen {
		msg = msg[:maxLen-3] + "..."
	}

	return fmt.Sprintf("%s %s %s%s",
		styles.Muted.Render(entry.Timestamp.Local().Format("15:04:05")),
		levelStyle.Render(fmt.Sprintf("%-5s", entry.Level)),
		styles.Muted.Render("["+entry.Source+"] "),
		msg,
	)
}
