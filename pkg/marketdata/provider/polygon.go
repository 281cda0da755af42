package provider

import (
	"context"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"

	"github.com/rxtech-lab/stockpile/internal/types"
	"github.com/rxtech-lab/stockpile/pkg/errors"
)

// PolygonClient implements Provider using the Polygon.io aggregates API.
type PolygonClient struct {
	client *polygon.Client
}

// NewPolygonClient creates a new Polygon.io provider.
func NewPolygonClient(apiKey string) (Provider, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "polygon apiKey is required")
	}

	return &PolygonClient{
		client: polygon.New(apiKey),
	}, nil
}

func (c *PolygonClient) Name() string { return "polygon" }

// FetchAggs implements Provider.
func (c *PolygonClient) FetchAggs(ctx context.Context, symbol string, startDate time.Time, endDate time.Time, interval types.Interval) ([]types.MarketData, error) {
	multiplier, timespan, err := polygonAggParams(interval)
	if err != nil {
		return nil, err
	}

	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     symbol,
		Multiplier: multiplier,
		Timespan:   timespan,
		From:       models.Millis(startDate),
		To:         models.Millis(endDate),
	}.WithLimit(50000)

	iter := c.client.ListAggs(ctx, params)

	bars := []types.MarketData{}

	for iter.Next() {
		agg := iter.Item()
		bars = append(bars, types.MarketData{
			Time:   time.Time(agg.Timestamp).UTC(),
			Symbol: symbol,
			Open:   agg.Open,
			High:   agg.High,
			Low:    agg.Low,
			Close:  agg.Close,
			Volume: agg.Volume,
		})
	}

	if iter.Err() != nil {
		return nil, errors.Wrapf(errors.ErrCodeFetchFailed, iter.Err(), "error iterating polygon aggregates for %s", symbol)
	}

	types.SortByTime(bars)

	return bars, nil
}

// polygonAggParams converts an interval to the polygon multiplier and timespan pair.
func polygonAggParams(interval types.Interval) (int, models.Timespan, error) {
	switch interval {
	case types.IntervalOneMinute:
		return 1, models.Minute, nil
	case types.IntervalTwoMinutes:
		return 2, models.Minute, nil
	case types.IntervalFiveMinutes:
		return 5, models.Minute, nil
	case types.IntervalFifteenMinutes:
		return 15, models.Minute, nil
	case types.IntervalThirtyMinutes:
		return 30, models.Minute, nil
	case types.IntervalOneHour:
		return 1, models.Hour, nil
	case types.IntervalOneDay:
		return 1, models.Day, nil
	default:
		return 0, "", errors.Newf(errors.ErrCodeInvalidInterval, "unsupported interval for polygon: %s", interval)
	}
}
