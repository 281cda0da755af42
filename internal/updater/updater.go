// Package updater coordinates incremental downloads: it inspects the last
// stored timestamp per symbol, fetches only the missing suffix and commits
// it through the storage catalog. Symbols are processed independently so
// one failure never aborts the rest of the batch.
package updater

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rxtech-lab/stockpile/internal/logger"
	"github.com/rxtech-lab/stockpile/internal/types"
	"github.com/rxtech-lab/stockpile/pkg/marketdata"
	"github.com/rxtech-lab/stockpile/pkg/storage"
)

// Outcome records the result of processing one symbol.
type Outcome struct {
	Symbol    string
	RowsAdded int
	UpToDate  bool
	Err       error
}

// Summary aggregates per-symbol outcomes for one run.
type Summary struct {
	Outcomes []Outcome
	Duration time.Duration
}

// Updated returns the number of symbols that gained at least one row.
func (s Summary) Updated() int {
	count := 0

	for _, outcome := range s.Outcomes {
		if outcome.Err == nil && outcome.RowsAdded > 0 {
			count++
		}
	}

	return count
}

// Failed returns the number of symbols that errored.
func (s Summary) Failed() int {
	count := 0

	for _, outcome := range s.Outcomes {
		if outcome.Err != nil {
			count++
		}
	}

	return count
}

// AllFailed reports whether every symbol in the run errored. The CLI exits
// non-zero only in this case.
func (s Summary) AllFailed() bool {
	return len(s.Outcomes) > 0 && s.Failed() == len(s.Outcomes)
}

// Updater runs fetch-and-store passes over a list of symbols.
type Updater struct {
	fetcher      *marketdata.Fetcher
	store        *storage.Store
	logger       *logger.Logger
	defaultStart time.Time
	now          func() time.Time
}

// New creates an Updater. defaultStart is the beginning of history for the
// initial daily fetch of a symbol with no stored data.
func New(fetcher *marketdata.Fetcher, store *storage.Store, log *logger.Logger, defaultStart time.Time) *Updater {
	return &Updater{
		fetcher:      fetcher,
		store:        store,
		logger:       log,
		defaultStart: defaultStart,
		now:          time.Now,
	}
}

// Download fetches an explicit date range for each symbol and commits it.
func (u *Updater) Download(ctx context.Context, symbols []string, start time.Time, end time.Time, interval types.Interval) Summary {
	began := u.now()
	outcomes := make([]Outcome, 0, len(symbols))

	for _, symbol := range symbols {
		outcomes = append(outcomes, u.fetchAndSave(ctx, symbol, start, end, interval))
	}

	return Summary{
		Outcomes: outcomes,
		Duration: u.now().Sub(began),
	}
}

// Update incrementally refreshes stored data for each symbol: from the day
// after the last stored daily bar, or from the last intraday bar bounded by
// the interval's maximum lookback. Symbols with no stored data get a full
// initial fetch.
func (u *Updater) Update(ctx context.Context, symbols []string, interval types.Interval) Summary {
	began := u.now()
	outcomes := make([]Outcome, 0, len(symbols))

	for _, symbol := range symbols {
		outcomes = append(outcomes, u.updateOne(ctx, symbol, interval))
	}

	return Summary{
		Outcomes: outcomes,
		Duration: u.now().Sub(began),
	}
}

func (u *Updater) updateOne(ctx context.Context, symbol string, interval types.Interval) Outcome {
	now := u.now()

	last, err := u.store.LastTimestamp(symbol, interval)
	if err != nil {
		return Outcome{Symbol: symbol, Err: err}
	}

	start := u.fetchStart(last.TakeOr(time.Time{}), last.IsSome(), interval, now)

	if !start.Before(now) {
		u.logger.Info("symbol is up to date", zap.String("symbol", symbol))

		return Outcome{Symbol: symbol, UpToDate: true}
	}

	return u.fetchAndSave(ctx, symbol, start, now, interval)
}

// fetchStart computes the incremental fetch window start for a symbol.
func (u *Updater) fetchStart(last time.Time, hasLast bool, interval types.Interval, now time.Time) time.Time {
	earliest, bounded := interval.EarliestStart(now)

	if !hasLast {
		if bounded {
			return earliest
		}

		return u.defaultStart
	}

	if interval.IsIntraday() {
		// Refetch from the last stored bar so upstream revisions of the
		// most recent bar are picked up, clamped to the available history.
		start := last
		if bounded && start.Before(earliest) {
			start = earliest
		}

		return start
	}

	// Daily: the day after the last stored bar.
	lastDay := last.UTC().Truncate(24 * time.Hour)

	return lastDay.Add(24 * time.Hour)
}

func (u *Updater) fetchAndSave(ctx context.Context, symbol string, start time.Time, end time.Time, interval types.Interval) Outcome {
	bars, err := u.fetcher.Fetch(ctx, marketdata.FetchParams{
		Symbol:   symbol,
		Start:    start,
		End:      end,
		Interval: interval,
	})
	if err != nil {
		u.logger.Error("fetch failed",
			zap.String("symbol", symbol),
			zap.Error(err))

		return Outcome{Symbol: symbol, Err: err}
	}

	// An empty result for a valid range (holidays, weekends) is recorded
	// as zero rows added, not a failure.
	added, err := u.store.Save(symbol, interval, bars)
	if err != nil {
		u.logger.Error("save failed",
			zap.String("symbol", symbol),
			zap.Error(err))

		return Outcome{Symbol: symbol, Err: err}
	}

	return Outcome{Symbol: symbol, RowsAdded: added}
}
