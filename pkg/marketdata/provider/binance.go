package provider

import (
	"context"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"

	"github.com/rxtech-lab/stockpile/internal/types"
	"github.com/rxtech-lab/stockpile/pkg/errors"
)

// binancePageSize is the maximum number of klines Binance returns per request.
const binancePageSize = 500

// BinanceClient implements Provider using the Binance public klines API.
// Public market data requires no authentication.
type BinanceClient struct {
	client *binance.Client
}

// NewBinanceClient creates a new Binance provider.
func NewBinanceClient() (Provider, error) {
	return &BinanceClient{
		client: binance.NewClient("", ""),
	}, nil
}

func (c *BinanceClient) Name() string { return "binance" }

// FetchAggs implements Provider. It pages through the klines endpoint until
// the full range has been covered.
func (c *BinanceClient) FetchAggs(ctx context.Context, symbol string, startDate time.Time, endDate time.Time, interval types.Interval) ([]types.MarketData, error) {
	binanceInterval, err := binanceIntervalFor(interval)
	if err != nil {
		return nil, err
	}

	startMillis := startDate.UnixMilli()
	endMillis := endDate.UnixMilli()

	bars := []types.MarketData{}
	currentStart := startMillis

	for {
		klines, err := c.client.NewKlinesService().
			Symbol(symbol).
			Interval(binanceInterval).
			StartTime(currentStart).
			EndTime(endMillis).
			Do(ctx)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeFetchFailed, err, "failed to fetch klines from binance for %s", symbol)
		}

		for _, k := range klines {
			open, _ := strconv.ParseFloat(k.Open, 64)
			high, _ := strconv.ParseFloat(k.High, 64)
			low, _ := strconv.ParseFloat(k.Low, 64)
			closePrice, _ := strconv.ParseFloat(k.Close, 64)
			volume, _ := strconv.ParseFloat(k.Volume, 64)

			bars = append(bars, types.MarketData{
				Time:   time.UnixMilli(k.OpenTime).UTC(),
				Symbol: symbol,
				Open:   open,
				High:   high,
				Low:    low,
				Close:  closePrice,
				Volume: volume,
			})
		}

		// Last page: no data or a partial page.
		if len(klines) < binancePageSize {
			break
		}

		// Continue from just past the close of the last kline to avoid
		// refetching the same bar.
		currentStart = klines[len(klines)-1].CloseTime + 1
		if currentStart >= endMillis {
			break
		}
	}

	types.SortByTime(bars)

	return bars, nil
}

// binanceIntervalFor converts an interval to the Binance kline interval string.
// Ref: https://binance-docs.github.io/apidocs/spot/en/#kline-candlestick-data
func binanceIntervalFor(interval types.Interval) (string, error) {
	switch interval {
	case types.IntervalOneMinute, types.IntervalFiveMinutes, types.IntervalFifteenMinutes,
		types.IntervalThirtyMinutes, types.IntervalOneHour, types.IntervalOneDay:
		return string(interval), nil
	default:
		// Binance has no 2m klines.
		return "", errors.Newf(errors.ErrCodeInvalidInterval, "unsupported interval for binance: %s", interval)
	}
}
