package marketdata

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-playground/validator/v10"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/rxtech-lab/stockpile/internal/logger"
	"github.com/rxtech-lab/stockpile/internal/types"
	"github.com/rxtech-lab/stockpile/pkg/errors"
	"github.com/rxtech-lab/stockpile/pkg/marketdata/provider"
)

// symbolPattern matches exchange tickers: uppercase alphanumerics with an
// optional class suffix (BRK.A, BF-B).
var symbolPattern = regexp.MustCompile(`^[A-Z0-9]{1,12}([.\-][A-Z0-9]{1,4})?$`)

// FetchParams holds the parameters for a single-symbol fetch request.
type FetchParams struct {
	Symbol   string         `validate:"required"`
	Start    time.Time      `validate:"required"`
	End      time.Time      `validate:"required,gtefield=Start"`
	Interval types.Interval `validate:"required"`
}

// FetcherConfig holds the retry policy for upstream requests.
type FetcherConfig struct {
	// MaxRetries is the number of additional attempts after the first
	// failed request.
	MaxRetries int `validate:"min=0"`
	// RetryDelay is the fixed delay between attempts.
	RetryDelay time.Duration `validate:"min=0"`
	// ShowProgress enables a terminal progress bar during batch fetches.
	ShowProgress bool
}

// Result is the per-symbol outcome of a batch fetch. Either Bars or Err is
// set; an empty Bars slice with a nil Err means no trading data in range.
type Result struct {
	Symbol string
	Bars   []types.MarketData
	Err    error
}

// Fetcher downloads OHLCV bars through a Provider with bounded retry on
// transient upstream failures. Definitive failures (unknown symbol, invalid
// parameters) are never retried.
type Fetcher struct {
	provider provider.Provider
	config   FetcherConfig
	validate *validator.Validate
	logger   *logger.Logger
}

// NewFetcher creates a new Fetcher with the given provider and retry policy.
func NewFetcher(p provider.Provider, config FetcherConfig, log *logger.Logger) (*Fetcher, error) {
	if p == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "provider is required")
	}

	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid fetcher configuration", err)
	}

	return &Fetcher{
		provider: p,
		config:   config,
		validate: validate,
		logger:   log,
	}, nil
}

// ValidateParams checks a fetch request without touching the network.
// Unsupported interval/lookback combinations are configuration errors, not
// retryable failures.
func (f *Fetcher) ValidateParams(params FetchParams) error {
	if err := f.validate.Struct(params); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "invalid fetch parameters", err)
	}

	if !symbolPattern.MatchString(params.Symbol) {
		return errors.Newf(errors.ErrCodeInvalidSymbol, "invalid symbol format: %q", params.Symbol)
	}

	if !params.Interval.Valid() {
		return errors.Newf(errors.ErrCodeInvalidInterval, "unsupported interval: %s", params.Interval)
	}

	if lookback, bounded := params.Interval.MaxLookback(); bounded {
		if age := time.Since(params.Start); age > lookback {
			return errors.Newf(errors.ErrCodeUnsupportedLookback,
				"interval %s supports at most %d days of history, requested start is %d days ago",
				params.Interval, int(lookback.Hours()/24), int(age.Hours()/24))
		}
	}

	return nil
}

// Fetch downloads bars for one symbol, retrying transient failures up to the
// configured maximum with a fixed delay between attempts.
func (f *Fetcher) Fetch(ctx context.Context, params FetchParams) ([]types.MarketData, error) {
	if err := f.ValidateParams(params); err != nil {
		return nil, err
	}

	attempt := 0

	operation := func() ([]types.MarketData, error) {
		attempt++

		bars, err := f.provider.FetchAggs(ctx, params.Symbol, params.Start, params.End, params.Interval)
		if err != nil {
			if !isRetryable(err) {
				return nil, backoff.Permanent(err)
			}

			f.logger.Warn("fetch attempt failed",
				zap.String("symbol", params.Symbol),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", f.config.MaxRetries+1),
				zap.Error(err))

			return nil, err
		}

		return bars, nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(f.config.RetryDelay), uint64(f.config.MaxRetries)),
		ctx)

	bars, err := backoff.RetryWithData(operation, policy)
	if err != nil {
		return nil, err
	}

	f.logger.Info("fetched bars",
		zap.String("symbol", params.Symbol),
		zap.String("interval", string(params.Interval)),
		zap.Int("rows", len(bars)))

	return bars, nil
}

// FetchBatch downloads bars for a list of symbols over the same range and
// interval. Symbols are processed sequentially and independently: a failure
// on one symbol is recorded in its Result and does not stop the rest.
func (f *Fetcher) FetchBatch(ctx context.Context, symbols []string, start time.Time, end time.Time, interval types.Interval) []Result {
	var bar *progressbar.ProgressBar
	if f.config.ShowProgress {
		bar = progressbar.NewOptions(len(symbols),
			progressbar.OptionSetDescription(fmt.Sprintf("Downloading %d symbols", len(symbols))),
			progressbar.OptionShowCount())
	}

	results := make([]Result, 0, len(symbols))

	for _, symbol := range symbols {
		bars, err := f.Fetch(ctx, FetchParams{
			Symbol:   symbol,
			Start:    start,
			End:      end,
			Interval: interval,
		})

		results = append(results, Result{
			Symbol: symbol,
			Bars:   bars,
			Err:    err,
		})

		if bar != nil {
			bar.Add(1)
		}
	}

	if bar != nil {
		bar.Finish()
	}

	return results
}

// isRetryable reports whether an upstream failure is transient. Unknown
// symbols and invalid request parameters are definitive and retrying them
// would only burn the rate limit.
func isRetryable(err error) bool {
	switch errors.GetCode(err) {
	case errors.ErrCodeSymbolNotFound,
		errors.ErrCodeInvalidSymbol,
		errors.ErrCodeInvalidInterval,
		errors.ErrCodeUnsupportedLookback,
		errors.ErrCodeInvalidParameter,
		errors.ErrCodeInvalidConfiguration:
		return false
	default:
		return true
	}
}
