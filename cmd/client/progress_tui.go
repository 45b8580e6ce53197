package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dustin/go-humanize"
	"github.com/openmined/syftdrop/internal/transfer"
)

const (
	refreshInterval = 100 * time.Millisecond
	nameWidth       = 28

	txtUploading = "Uploading"
	txtPausing   = "Pausing, waiting for in-flight parts..."
	txtHelp      = "Press 'Ctrl+C' or 'q' to pause. Run 'syftdrop resume' to continue later."
)

// Styles
var (
	titleStyle   = cyan.Bold(true)
	helpStyle    = gray
	spinnerStyle = cyan
	sizeStyle    = lightGray
)

// --- Messages ---
type tickMsg time.Time
type workDoneMsg struct{}

type progressModel struct {
	orch    *transfer.Orchestrator
	watched mapset.Set[string]
	pause   func()

	spinner spinner.Model
	bar     progress.Model
	views   []transfer.FileView

	pausing bool
	width   int
}

func newProgressModel(orch *transfer.Orchestrator, watched mapset.Set[string], pause func()) progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	return progressModel{
		orch:    orch,
		watched: watched,
		pause:   pause,
		spinner: s,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(30), progress.WithoutPercentage()),
	}
}

func (m progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case msg.Type == tea.KeyCtrlC, msg.String() == "q":
			if !m.pausing {
				m.pausing = true
				m.pause()
			}
		}
		return m, nil

	case tickMsg:
		m.refresh()
		return m, tick()

	case workDoneMsg:
		m.refresh()
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
	}
	return m, nil
}

func (m progressModel) View() string {
	var b strings.Builder

	title := txtUploading
	if m.pausing {
		title = txtPausing
	}
	b.WriteString(m.spinner.View() + " " + titleStyle.Render(title) + "\n\n")

	for _, v := range m.views {
		sent := uint64(float64(v.Size) * v.Progress / 100)
		fmt.Fprintf(&b, "  %s %s %s %s\n",
			statusStyle(v.Status).Render(fmt.Sprintf("%-9s", v.Status)),
			truncate(v.Name, nameWidth),
			m.bar.ViewAs(v.Progress/100),
			sizeStyle.Render(humanize.IBytes(sent)+" / "+humanize.IBytes(uint64(v.Size))),
		)
		if v.Error != "" {
			b.WriteString("    " + red.Render(v.Error) + "\n")
		}
	}

	b.WriteString("\n" + helpStyle.Render(txtHelp) + "\n")
	return b.String()
}

func (m *progressModel) refresh() {
	var views []transfer.FileView
	for _, v := range m.orch.Files() {
		if m.watched == nil || m.watched.Contains(v.ID) {
			views = append(views, v)
		}
	}
	m.views = views
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s + strings.Repeat(" ", n-len(r))
}
