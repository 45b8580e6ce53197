package transfer

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

const reapBatch = 256

func (s *TransferService) runReaper(ctx context.Context) {
	ticker := time.NewTicker(s.config.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.Reap(ctx); err != nil {
				slog.Error("transfer reaper", "error", err)
			} else if n > 0 {
				slog.Info("transfer reaper", "expired", n)
			}
		}
	}
}

// Reap expires open transfers past their expiry and aborts their multipart sessions.
// It returns the number of transfers expired.
func (s *TransferService) Reap(ctx context.Context) (int, error) {
	total := 0
	for {
		expired, err := s.store.Expired(ctx, s.now(), reapBatch)
		if err != nil {
			return total, err
		}
		if len(expired) == 0 {
			return total, nil
		}

		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(s.config.ReapConcurrency)

		closed := make([]bool, len(expired))
		for i, t := range expired {
			eg.Go(func() error {
				files, err := s.store.Files(egCtx, t.ID)
				if err != nil {
					return err
				}
				ok, err := s.store.Close(egCtx, t.ID, TransferExpired)
				if err != nil || !ok {
					return err
				}
				closed[i] = true
				aborted := s.abortSessions(egCtx, files)
				slog.Debug("transfer expired", "transferId", t.ID, "aborted", len(aborted))
				return nil
			})
		}

		err = eg.Wait()
		for _, ok := range closed {
			if ok {
				total++
			}
		}
		if err != nil {
			return total, err
		}
		if len(expired) < reapBatch {
			return total, nil
		}
	}
}
