package provider

import (
	"context"
	"time"

	"github.com/rxtech-lab/stockpile/internal/types"
)

// Provider fetches historical OHLCV bars from an upstream market data API.
type Provider interface {
	// Name returns the provider identifier (e.g. "yahoo").
	Name() string
	// FetchAggs downloads the bars for the given symbol and date range.
	// The context can be used to cancel the request. An empty slice with a
	// nil error means the range contained no trading data, which is not a
	// failure. Unknown symbols are reported with ErrCodeSymbolNotFound.
	//
	// example:
	// FetchAggs(ctx, "AAPL", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), types.IntervalOneDay)
	FetchAggs(ctx context.Context, symbol string, startDate time.Time, endDate time.Time, interval types.Interval) ([]types.MarketData, error)
}
