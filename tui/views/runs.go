package views

import (
	"fmt"
	"strings"
	"time"

	"tui/db"
	"tui/styles"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type runsMsg struct {
	runs []db.SyncRun
	err  error
}

// Runs lists recent sync runs, newest first.
type Runs struct {
	db            *db.Client
	width, height int
	runs          []db.SyncRun
	cursor        int
	err           error
}

func NewRuns(dbClient *db.Client) Runs {
	return Runs{db: dbClient}
}

func (r Runs) Init() tea.Cmd {
	return r.Refresh()
}

func (r Runs) Refresh() tea.Cmd {
	return func() tea.Msg {
		runs, err := r.db.GetRecentRuns(100)
		return runsMsg{runs: runs, err: err}
	}
}

func (r Runs) SetSize(w, h int) Runs {
	r.width = w
	r.height = h
	return r
}

// Selected returns the run under the cursor, if any.
func (r Runs) Selected() (db.SyncRun, bool) {
	if r.cursor < 0 || r.cursor >= len(r.runs) {
		return db.SyncRun{}, false
	}
	return r.runs[r.cursor], true
}

func (r Runs) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runsMsg:
		r.runs, r.err = msg.runs, msg.err
		if r.cursor >= len(r.runs) {
			r.cursor = max(len(r.runs)-1, 0)
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if r.cursor > 0 {
				r.cursor--
			}
		case "down", "j":
			if r.cursor < len(r.runs)-1 {
				r.cursor++
			}
		case "g":
			r.cursor = 0
		case "G":
			r.cursor = max(len(r.runs)-1, 0)
		}
	}
	return r, nil
}

func (r Runs) View() string {
	if r.err != nil {
		return styles.StatusError.Render(fmt.Sprintf("Error: %v", r.err))
	}
	if len(r.runs) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, styles.Title.Render("Runs"), styles.Muted.Render("No runs recorded yet"))
	}

	header := styles.TableHeader.Render(fmt.Sprintf("%-19s  %-10s  %-24s  %6s  %11s  %8s",
		"Started", "Status", "Market", "Props", "Suites", "Took"))

	visible := r.height - 10
	if visible < 1 {
		visible = 10
	}
	start := 0
	if r.cursor >= visible {
		start = r.cursor - visible + 1
	}
	end := min(start+visible, len(r.runs))

	var lines []string
	for i := start; i < end; i++ {
		line := r.formatRun(r.runs[i])
		if i == r.cursor {
			line = styles.TableSelected.Render(line)
		}
		lines = append(lines, line)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		styles.Title.Render("Runs"),
		header,
		strings.Join(lines, "\n"),
		"",
		r.renderDetail(),
	)
}

func (r Runs) formatRun(run db.SyncRun) string {
	market := run.MarketArea
	if run.PropertyType != "" {
		market += " / " + run.PropertyType
	}
	if len(market) > 24 {
		market = market[:21] + "..."
	}

	suites := fmt.Sprintf("%d/%d", run.SuitesSaved, run.Suites)
	took := "-"
	if d := run.Duration(); d > 0 {
		took = d.Round(100 * time.Millisecond).String()
	}

	return fmt.Sprintf("%-19s  %s  %-24s  %6d  %11s  %8s",
		run.StartedAt.Local().Format("2006-01-02 15:04:05"),
		styles.RunStatus(run.Status).Render(fmt.Sprintf("%-10s", run.Status)),
		market, run.Properties, suites, took)
}

func (r Runs) renderDetail() string {
	run, ok := r.Selected()
	if !ok {
		return ""
	}

	lines := []string{
		styles.Muted.Render("Run:      ") + run.ID,
		styles.Muted.Render("Endpoint: ") + orDash(run.Endpoint),
	}
	if run.SnapshotDate != nil {
		lines = append(lines, styles.Muted.Render("Snapshot: ")+run.SnapshotDate.UTC().Format(time.RFC3339Nano))
	}
	if run.ErrorMessage != "" {
		lines = append(lines, styles.Muted.Render("Error:    ")+styles.StatusError.Render(run.ErrorMessage))
	}
	return strings.Join(lines, "\n")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
