package transfer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	mapset "github.com/deckarep/golang-set/v2"
)

const DefaultConcurrency = 4

// ConcurrencyLimiter runs part uploads with at most limit in flight
type ConcurrencyLimiter struct {
	limit int
}

func NewConcurrencyLimiter(limit int) *ConcurrencyLimiter {
	if limit < 1 {
		limit = 1
	}
	return &ConcurrencyLimiter{limit: limit}
}

func (l *ConcurrencyLimiter) Limit() int {
	return l.limit
}

// Run calls fn for every part whose number is not in skip.
//
// After the first failure that is not a pause or cancel, no further part is started; parts already
// in flight run to completion and all failures are returned joined. When ctx is done, dispatch stops
// and the context cause is returned.
func (l *ConcurrencyLimiter) Run(ctx context.Context, parts []PartRange, skip mapset.Set[int], fn func(context.Context, PartRange) error) error {
	pending := make([]PartRange, 0, len(parts))
	for _, part := range parts {
		if skip != nil && skip.Contains(part.PartNumber) {
			continue
		}
		pending = append(pending, part)
	}
	if len(pending) == 0 {
		return nil
	}

	var (
		wg       sync.WaitGroup
		errsMu   sync.Mutex
		errs     []error
		halted   atomic.Bool
		haltOnce sync.Once
	)
	halt := make(chan struct{})
	jobs := make(chan PartRange)

	workers := min(l.limit, len(pending))
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for part := range jobs {
				if halted.Load() || ctx.Err() != nil {
					continue
				}

				err := fn(ctx, part)
				if err == nil || IsInterrupted(err) || ctx.Err() != nil {
					continue
				}

				errsMu.Lock()
				errs = append(errs, err)
				errsMu.Unlock()

				halted.Store(true)
				haltOnce.Do(func() { close(halt) })
			}
		}()
	}

dispatch:
	for _, part := range pending {
		select {
		case <-halt:
			break dispatch
		case <-ctx.Done():
			break dispatch
		default:
		}

		select {
		case <-halt:
			break dispatch
		case <-ctx.Done():
			break dispatch
		case jobs <- part:
		}
	}
	close(jobs)
	wg.Wait()

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	return nil
}
