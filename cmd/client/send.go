package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/openmined/syftdrop/internal/client/sources"
	"github.com/openmined/syftdrop/internal/transfer"
	"github.com/openmined/syftdrop/internal/utils"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newSendCmd())
}

func newSendCmd() *cobra.Command {
	var recipient string
	var message string
	var plain bool

	cmd := &cobra.Command{
		Use:   "send <path|glob>...",
		Short: "Upload files and print a download link",
		Example: `  syftdrop send report.pdf
  syftdrop send ./photos "data/**/*.csv" --to alice@example.org`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if recipient != "" {
				if err := utils.ValidateEmail(recipient); err != nil {
					return fmt.Errorf("--to: %w", err)
				}
			}
			if len(message) > 2000 {
				return fmt.Errorf("--message is longer than 2000 characters")
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			paths, err := sources.Collect(args)
			if err != nil {
				return err
			}

			cmd.SilenceUsage = true

			sess, err := openSession(cfg)
			if err != nil {
				return err
			}
			defer sess.Close()

			contents, err := sess.Open(paths)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sending %d file(s), %s\n", len(contents), humanize.IBytes(uint64(totalSize(contents))))

			t, err := sess.orch.Submit(cmd.Context(), contents, transfer.SubmitOptions{
				Recipient: recipient,
				Message:   message,
			})
			if err != nil {
				return err
			}
			slog.Debug("transfer submitted", "transfer", t.ID, "files", len(t.FileIDs))

			var res *transfer.Result
			err = runWithProgress(cmd, sess, nil, plain, func(ctx context.Context) error {
				var err error
				res, err = sess.orch.Run(ctx, t.ID)
				return err
			})
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVar(&recipient, "to", "", "Email the download link to this address")
	cmd.Flags().StringVarP(&message, "message", "m", "", "Message for the recipient")
	cmd.Flags().BoolVar(&plain, "plain", false, "Print status lines instead of the progress display")

	return cmd
}

func totalSize(contents []transfer.Content) int64 {
	var n int64
	for _, c := range contents {
		n += c.Size()
	}
	return n
}

// printResult reports the outcome of one transfer run. Failed files make it return an error.
func printResult(w io.Writer, res *transfer.Result) error {
	var paused int
	for _, f := range res.Files {
		if f.Status == transfer.StatusPaused {
			paused++
		}
	}

	if res.DownloadURL != "" {
		fmt.Fprintf(w, "%s %s\n", green.Render("Download link:"), res.DownloadURL)
	}
	if paused > 0 {
		fmt.Fprintln(w, yellow.Render(fmt.Sprintf("%d file(s) paused. Run 'syftdrop resume' to continue.", paused)))
	}

	if err := res.Err(); err != nil {
		fmt.Fprintln(w, red.Render("Some files failed to upload. Run 'syftdrop resume' to retry them."))
		return err
	}
	return nil
}
