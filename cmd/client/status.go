package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/openmined/syftdrop/internal/client/workspace"
	"github.com/openmined/syftdrop/internal/transfer"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func init() {
	rootCmd.AddCommand(newStatusCmd())
}

type statusEntry struct {
	ID          string          `json:"id" yaml:"id"`
	TransferID  string          `json:"transferId,omitempty" yaml:"transferId,omitempty"`
	Name        string          `json:"name" yaml:"name"`
	Size        int64           `json:"size" yaml:"size"`
	Progress    float64         `json:"progress" yaml:"progress"`
	Status      transfer.Status `json:"status" yaml:"status"`
	Parts       int             `json:"parts" yaml:"parts"`
	PartCount   int             `json:"partCount" yaml:"partCount"`
	SourcePath  string          `json:"sourcePath,omitempty" yaml:"sourcePath,omitempty"`
	DownloadURL string          `json:"downloadUrl,omitempty" yaml:"downloadUrl,omitempty"`
	ExpiresAt   *time.Time      `json:"expiresAt,omitempty" yaml:"expiresAt,omitempty"`
	UpdatedAt   time.Time       `json:"updatedAt" yaml:"updatedAt"`
	Error       string          `json:"error,omitempty" yaml:"error,omitempty"`
}

func newStatusCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "List unfinished uploads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch output {
			case "table", "json", "yaml":
			default:
				return fmt.Errorf("unknown output format %q, want table, json or yaml", output)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			// read only, no workspace lock
			ws, err := workspace.NewWorkspace(cfg.DataDir)
			if err != nil {
				return err
			}
			store, err := transfer.NewFileSnapshotStore(ws.SnapshotsDir)
			if err != nil {
				return err
			}
			snaps, err := store.List()
			if err != nil {
				return err
			}

			entries := make([]statusEntry, 0, len(snaps))
			for _, snap := range snaps {
				entries = append(entries, newStatusEntry(snap))
			}
			return writeStatus(cmd.OutOrStdout(), output, entries)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table, json or yaml")
	return cmd
}

func newStatusEntry(snap *transfer.Snapshot) statusEntry {
	// what a restore would turn it into
	state := transfer.RestoreFileUploadState(snap)
	view := state.View()

	e := statusEntry{
		ID:          snap.ID,
		TransferID:  snap.Session.TransferID,
		Name:        snap.Name,
		Size:        snap.Size,
		Progress:    view.Progress,
		Status:      view.Status,
		Parts:       len(snap.Parts),
		PartCount:   state.PartCount(),
		SourcePath:  snap.SourcePath,
		DownloadURL: snap.Session.DownloadURL,
		UpdatedAt:   snap.UpdatedAt,
		Error:       view.Error,
	}
	if !snap.Session.ExpiresAt.IsZero() {
		expires := snap.Session.ExpiresAt
		e.ExpiresAt = &expires
	}
	return e
}

func writeStatus(w io.Writer, format string, entries []statusEntry) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err

	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return err
		}
		return enc.Close()
	}

	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No unfinished uploads")
		return err
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(gray).
		Headers("ID", "NAME", "SIZE", "PROGRESS", "PARTS", "STATUS", "UPDATED").
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return s.Bold(true)
			}
			if col == 5 && row >= 0 && row < len(entries) {
				return statusStyle(entries[row].Status).Padding(0, 1)
			}
			return s
		})

	for _, e := range entries {
		t.Row(
			shortID(e.ID),
			e.Name,
			humanize.IBytes(uint64(e.Size)),
			fmt.Sprintf("%.0f%%", e.Progress),
			fmt.Sprintf("%d/%d", e.Parts, e.PartCount),
			string(e.Status),
			humanize.Time(e.UpdatedAt),
		)
	}
	_, err := fmt.Fprintln(w, t.Render())
	if err != nil {
		return err
	}

	for _, e := range entries {
		if e.Error != "" {
			fmt.Fprintf(w, "%s %s: %s\n", red.Render(shortID(e.ID)), e.Name, e.Error)
		}
	}
	return nil
}

func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
