package integration

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Outcome is the settled result of one sub-fetch in a fan-out poll.
type Outcome struct {
	Value any
	Err   error
}

// FanOut runs every fetch concurrently and collects all outcomes before
// returning. It never short-circuits: a failing sub-fetch does not cancel
// its siblings, so callers can keep last-known-good values for the fields
// that failed and fresh values for the ones that succeeded.
func FanOut(ctx context.Context, fetches map[string]func(context.Context) (any, error)) map[string]Outcome {
	outcomes := make(map[string]Outcome, len(fetches))

	var mu sync.Mutex
	var g errgroup.Group
	for field, fetch := range fetches {
		g.Go(func() error {
			value, err := fetch(ctx)
			mu.Lock()
			outcomes[field] = Outcome{Value: value, Err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// AllFailed reports whether no sub-fetch succeeded. A poll cycle where
// everything failed must raise instead of serving a fully cached composite
// that looks fresh.
func AllFailed(outcomes map[string]Outcome) bool {
	for _, o := range outcomes {
		if o.Err == nil {
			return false
		}
	}
	return len(outcomes) > 0
}

// FirstError returns one of the failed outcomes' errors, preferring auth
// and config failures so the most actionable code surfaces.
func FirstError(outcomes map[string]Outcome) error {
	var fallback error
	for _, o := range outcomes {
		if o.Err == nil {
			continue
		}
		if IsCode(o.Err, CodeAuthFailed) || IsCode(o.Err, CodeConfigInvalid) {
			return o.Err
		}
		if fallback == nil {
			fallback = o.Err
		}
	}
	return fallback
}
