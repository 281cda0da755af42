package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rxtech-lab/stockpile/internal/types"
	"github.com/rxtech-lab/stockpile/pkg/errors"
)

const defaultYahooBaseURL = "https://query1.finance.yahoo.com"

// YahooClient implements Provider using the Yahoo Finance public chart API.
// No authentication is required.
type YahooClient struct {
	client  *http.Client
	baseURL string
}

// NewYahooClient creates a new Yahoo Finance provider with the given
// request timeout.
func NewYahooClient(timeout time.Duration) (Provider, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &YahooClient{
		client: &http.Client{
			Timeout: timeout,
		},
		baseURL: defaultYahooBaseURL,
	}, nil
}

func (c *YahooClient) Name() string { return "yahoo" }

// yahooChart is the response envelope of the Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchAggs implements Provider.
func (c *YahooClient) FetchAggs(ctx context.Context, symbol string, startDate time.Time, endDate time.Time, interval types.Interval) ([]types.MarketData, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&period1=%d&period2=%d",
		c.baseURL, url.PathEscape(symbol), interval, startDate.Unix(), endDate.Unix())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeFetchFailed, err, "failed to build request for %s", symbol)
	}

	// Yahoo rejects requests without a browser user agent.
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeFetchFailed, err, "yahoo request failed for %s", symbol)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeFetchFailed, err, "failed to read yahoo response for %s", symbol)
	}

	var chart yahooChart
	if decodeErr := json.Unmarshal(body, &chart); decodeErr != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, errors.Newf(errors.ErrCodeFetchFailed, "yahoo returned status %d for %s", resp.StatusCode, symbol)
		}

		return nil, errors.Wrapf(errors.ErrCodeResponseParseFailed, decodeErr, "failed to decode yahoo response for %s", symbol)
	}

	if chart.Chart.Error != nil {
		if isYahooNotFound(chart.Chart.Error.Code) {
			return nil, errors.Newf(errors.ErrCodeSymbolNotFound, "symbol %s not found: %s", symbol, chart.Chart.Error.Description)
		}

		return nil, errors.Newf(errors.ErrCodeFetchFailed, "yahoo api error for %s: %s", symbol, chart.Chart.Error.Description)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf(errors.ErrCodeFetchFailed, "yahoo returned status %d for %s", resp.StatusCode, symbol)
	}

	// A valid symbol with no trading data in range yields an empty result,
	// not an error.
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return []types.MarketData{}, nil
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return []types.MarketData{}, nil
	}

	quote := result.Indicators.Quote[0]
	bars := make([]types.MarketData, 0, len(result.Timestamp))

	for i, ts := range result.Timestamp {
		open := deref(quote.Open, i)
		high := deref(quote.High, i)
		low := deref(quote.Low, i)
		closePrice := deref(quote.Close, i)

		if open == 0 && high == 0 && low == 0 && closePrice == 0 {
			continue // null bars (holidays, halts)
		}

		bars = append(bars, types.MarketData{
			Time:   time.Unix(ts, 0).UTC(),
			Symbol: symbol,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: deref(quote.Volume, i),
		})
	}

	types.SortByTime(bars)

	return bars, nil
}

func isYahooNotFound(code string) bool {
	return strings.EqualFold(code, "Not Found")
}

func deref(values []*float64, i int) float64 {
	if i >= len(values) || values[i] == nil {
		return 0
	}

	return *values[i]
}
