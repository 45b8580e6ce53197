package transfer

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/openmined/syftdrop/internal/server/email"
)

//go:embed transfer_ready.html.tmpl
var transferReadyTemplate string

var readyTemplate = template.Must(template.New("transferReady").Parse(transferReadyTemplate))

const notifyTimeout = 15 * time.Second

func renderReadyEmail(t *Transfer, files []*File, downloadURL string) (string, error) {
	var total int64
	names := make([]string, 0, len(files))
	for _, f := range files {
		total += f.Size
		names = append(names, f.Filename)
	}

	var buf bytes.Buffer
	if err := readyTemplate.Execute(&buf, map[string]any{
		"FileCount":   len(files),
		"TotalSize":   humanize.IBytes(uint64(total)),
		"Files":       names,
		"Message":     t.Message,
		"DownloadURL": downloadURL,
		"ExpiresAt":   t.ExpiresAt.Format(time.RFC1123),
	}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// notifyRecipient emails the download link. Failures are logged, the transfer stays complete.
func (s *TransferService) notifyRecipient(ctx context.Context, t *Transfer, files []*File) {
	if t.Recipient == "" || s.email == nil || !s.email.IsEnabled() {
		return
	}

	body, err := renderReadyEmail(t, files, s.downloadPageURL(t.ID))
	if err != nil {
		slog.Error("render transfer email", "transferId", t.ID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if err := s.email.Send(ctx, &email.EmailInfo{
		ToEmail:  t.Recipient,
		Subject:  fmt.Sprintf("%d file(s) sent to you", len(files)),
		HTMLBody: body,
	}); err != nil {
		slog.Error("send transfer email", "transferId", t.ID, "to", t.Recipient, "error", err)
		return
	}
	slog.Info("transfer email sent", "transferId", t.ID, "to", t.Recipient)
}
