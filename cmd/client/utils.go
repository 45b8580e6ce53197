package main

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/openmined/syftdrop/internal/transfer"
)

var (
	// https://github.com/muesli/termenv/blob/master/ansicolors.go
	// https://github.com/fidian/ansi
	red       = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	green     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	yellow    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	cyan      = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	gray      = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	lightGray = lipgloss.NewStyle().Foreground(lipgloss.Color("248"))
)

func statusStyle(s transfer.Status) lipgloss.Style {
	switch s {
	case transfer.StatusCompleted:
		return green
	case transfer.StatusError:
		return red
	case transfer.StatusPaused:
		return yellow
	case transfer.StatusUploading:
		return cyan
	default:
		return lightGray
	}
}
