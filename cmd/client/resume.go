package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/openmined/syftdrop/internal/transfer"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func init() {
	rootCmd.AddCommand(newResumeCmd())
}

type resumeOutcome struct {
	name        string
	status      transfer.Status
	downloadURL string
	restarted   bool
	err         error
}

func newResumeCmd() *cobra.Command {
	var restart bool
	var plain bool

	cmd := &cobra.Command{
		Use:   "resume [file-or-transfer-id...]",
		Short: "Resume paused or failed uploads",
		Long: `Resume paused or failed uploads from the recorded source files.

Without arguments every unfinished file is resumed. Ids may be shortened to a unique prefix.
A file whose upload session expired on the server is only uploaded again, as a new transfer,
with --restart.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			sess, err := openSession(cfg)
			if err != nil {
				return err
			}
			defer sess.Close()

			views, err := sess.orch.Restore()
			if err != nil {
				return err
			}
			targets, err := selectFiles(views, args)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(targets) == 0 {
				fmt.Fprintln(out, "Nothing to resume")
				return nil
			}

			watched := mapset.NewSet[string]()
			var ready []transfer.FileView
			for _, v := range targets {
				if err := sess.Reattach(v.ID); err != nil {
					fmt.Fprintf(out, "%s %s: %v\n", red.Render("skipped"), v.Name, err)
					continue
				}
				watched.Add(v.ID)
				ready = append(ready, v)
			}

			var outcomes []resumeOutcome
			var mu sync.Mutex
			err = runWithProgress(cmd, sess, watched, plain, func(ctx context.Context) error {
				var g errgroup.Group
				for _, v := range ready {
					g.Go(func() error {
						o := resumeFile(ctx, sess, watched, v, restart)
						mu.Lock()
						outcomes = append(outcomes, o)
						mu.Unlock()
						return nil
					})
				}
				return g.Wait()
			})
			if err != nil {
				return err
			}

			return printOutcomes(out, outcomes)
		},
	}

	cmd.Flags().BoolVar(&restart, "restart", false, "Upload files with an expired session again as new transfers")
	cmd.Flags().BoolVar(&plain, "plain", false, "Print status lines instead of the progress display")

	return cmd
}

func resumeFile(ctx context.Context, sess *uploadSession, watched mapset.Set[string], v transfer.FileView, restart bool) resumeOutcome {
	o := resumeOutcome{name: v.Name}

	state, err := sess.orch.Get(v.ID)
	if err != nil {
		o.err = err
		return o
	}
	url := state.Session().DownloadURL

	res, err := sess.orch.Resume(ctx, v.ID)
	switch {
	case err == nil:
		o.status, o.err = res.Status, res.Err
		if o.status == transfer.StatusCompleted {
			o.downloadURL = url
		}
		return o

	case errors.Is(err, transfer.ErrSessionInvalid) && restart:
		t, err := sess.orch.Restart(ctx, v.ID)
		if err != nil {
			o.status, o.err = transfer.StatusError, err
			return o
		}
		watched.Append(t.FileIDs...)

		r, err := sess.orch.Run(ctx, t.ID)
		if err != nil {
			o.status, o.err = transfer.StatusError, err
			return o
		}
		o.restarted = true
		o.downloadURL = r.DownloadURL
		if len(r.Files) > 0 {
			o.status, o.err = r.Files[0].Status, r.Files[0].Err
		}
		return o

	default:
		o.status, o.err = state.Status(), err
		return o
	}
}

func printOutcomes(w io.Writer, outcomes []resumeOutcome) error {
	var errs []error
	var invalid bool
	for _, o := range outcomes {
		switch {
		case o.status == transfer.StatusCompleted:
			line := fmt.Sprintf("%s %s", green.Render("completed"), o.name)
			if o.restarted {
				line += " (new transfer)"
			}
			if o.downloadURL != "" {
				line += " " + o.downloadURL
			}
			fmt.Fprintln(w, line)

		case o.err == nil || transfer.IsInterrupted(o.err):
			fmt.Fprintf(w, "%s %s\n", yellow.Render("paused"), o.name)

		default:
			if errors.Is(o.err, transfer.ErrSessionInvalid) {
				invalid = true
			}
			fmt.Fprintf(w, "%s %s: %v\n", red.Render("error"), o.name, o.err)
			errs = append(errs, fmt.Errorf("%s: %w", o.name, o.err))
		}
	}

	if invalid {
		fmt.Fprintln(w, yellow.Render("Run 'syftdrop resume --restart' to upload expired files as new transfers."))
	}
	return errors.Join(errs...)
}

// selectFiles picks the unfinished files named by ids. An id matches a file or a transfer,
// exactly or by unique prefix. No ids selects every unfinished file.
func selectFiles(views []transfer.FileView, ids []string) ([]transfer.FileView, error) {
	var open []transfer.FileView
	for _, v := range views {
		if v.Status != transfer.StatusCompleted {
			open = append(open, v)
		}
	}
	if len(ids) == 0 {
		return open, nil
	}

	seen := mapset.NewThreadUnsafeSet[string]()
	var selected []transfer.FileView
	for _, id := range ids {
		matches, err := matchID(open, id)
		if err != nil {
			return nil, err
		}
		for _, v := range matches {
			if seen.Add(v.ID) {
				selected = append(selected, v)
			}
		}
	}
	return selected, nil
}

func matchID(views []transfer.FileView, id string) ([]transfer.FileView, error) {
	var exact, prefixed []transfer.FileView
	targets := mapset.NewThreadUnsafeSet[string]()
	for _, v := range views {
		switch {
		case v.ID == id || v.TransferID == id:
			exact = append(exact, v)
		case strings.HasPrefix(v.ID, id):
			prefixed = append(prefixed, v)
			targets.Add("file:" + v.ID)
		case v.TransferID != "" && strings.HasPrefix(v.TransferID, id):
			prefixed = append(prefixed, v)
			targets.Add("transfer:" + v.TransferID)
		}
	}

	switch {
	case len(exact) > 0:
		return exact, nil
	case targets.Cardinality() == 1:
		return prefixed, nil
	case targets.Cardinality() > 1:
		return nil, fmt.Errorf("id %q is ambiguous", id)
	default:
		return nil, fmt.Errorf("no unfinished file or transfer matches %q", id)
	}
}
