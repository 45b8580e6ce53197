package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/openmined/syftdrop/internal/transfer"
	"github.com/spf13/cobra"
)

// runWithProgress runs work while reporting the files in watched. A nil set watches every file.
// Interrupts pause the uploads instead of failing them, so they stay resumable.
func runWithProgress(cmd *cobra.Command, sess *uploadSession, watched mapset.Set[string], plain bool, work func(context.Context) error) error {
	ctx, cancel := context.WithCancelCause(context.WithoutCancel(cmd.Context()))
	defer cancel(nil)
	stop := context.AfterFunc(cmd.Context(), func() { cancel(transfer.ErrPaused) })
	defer stop()

	if plain || !isatty.IsTerminal(os.Stdout.Fd()) {
		printer := newPlainPrinter(cmd.OutOrStdout(), watched)
		sess.OnUpdate(printer.update)
		defer sess.OnUpdate(nil)
		return work(ctx)
	}

	prev := consoleLevel.Level()
	consoleLevel.Set(slog.LevelError + 4)
	defer consoleLevel.Set(prev)

	model := newProgressModel(sess.orch, watched, func() { cancel(transfer.ErrPaused) })
	p := tea.NewProgram(model, tea.WithOutput(cmd.OutOrStdout()))

	errc := make(chan error, 1)
	go func() {
		err := work(ctx)
		errc <- err
		p.Send(workDoneMsg{})
	}()

	if _, err := p.Run(); err != nil {
		slog.Warn("progress display", "error", err)
		cancel(transfer.ErrPaused)
	}
	return <-errc
}

// plainPrinter writes one line per status change
type plainPrinter struct {
	out     io.Writer
	watched mapset.Set[string]
	last    map[string]transfer.Status
	mu      sync.Mutex
}

func newPlainPrinter(out io.Writer, watched mapset.Set[string]) *plainPrinter {
	return &plainPrinter{out: out, watched: watched, last: make(map[string]transfer.Status)}
}

func (p *plainPrinter) update(v transfer.FileView) {
	if p.watched != nil && !p.watched.Contains(v.ID) {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last[v.ID] == v.Status {
		return
	}
	p.last[v.ID] = v.Status

	line := fmt.Sprintf("%-9s %s (%s)", v.Status, v.Name, humanize.IBytes(uint64(v.Size)))
	if v.Error != "" {
		line += ": " + v.Error
	}
	fmt.Fprintln(p.out, statusStyle(v.Status).Render(line))
}
