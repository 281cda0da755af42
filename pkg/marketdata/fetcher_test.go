package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/rxtech-lab/stockpile/internal/logger"
	"github.com/rxtech-lab/stockpile/internal/types"
	"github.com/rxtech-lab/stockpile/mocks"
	"github.com/rxtech-lab/stockpile/pkg/errors"
)

type FetcherTestSuite struct {
	suite.Suite
	ctrl         *gomock.Controller
	mockProvider *mocks.MockProvider
	logger       *logger.Logger
}

func TestFetcherSuite(t *testing.T) {
	suite.Run(t, new(FetcherTestSuite))
}

func (suite *FetcherTestSuite) SetupSuite() {
	log, err := logger.NewLogger()
	suite.Require().NoError(err)
	suite.logger = log
}

func (suite *FetcherTestSuite) SetupTest() {
	suite.ctrl = gomock.NewController(suite.T())
	suite.mockProvider = mocks.NewMockProvider(suite.ctrl)
}

func (suite *FetcherTestSuite) TearDownTest() {
	suite.ctrl.Finish()
}

func (suite *FetcherTestSuite) newFetcher(maxRetries int) *Fetcher {
	fetcher, err := NewFetcher(suite.mockProvider, FetcherConfig{
		MaxRetries: maxRetries,
		RetryDelay: time.Millisecond,
	}, suite.logger)
	suite.Require().NoError(err)

	return fetcher
}

func testBars(symbol string, count int) []types.MarketData {
	gen := mocks.NewDataGenerator(1)

	config := mocks.DefaultConfig()
	config.Symbol = symbol
	config.Count = count

	return gen.Generate(config)
}

func dailyParams(symbol string) FetchParams {
	return FetchParams{
		Symbol:   symbol,
		Start:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:      time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		Interval: types.IntervalOneDay,
	}
}

func (suite *FetcherTestSuite) TestNewFetcherRequiresProvider() {
	_, err := NewFetcher(nil, FetcherConfig{}, suite.logger)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *FetcherTestSuite) TestFetchSuccess() {
	params := dailyParams("AAPL")
	expected := testBars("AAPL", 20)

	suite.mockProvider.EXPECT().
		FetchAggs(gomock.Any(), "AAPL", params.Start, params.End, types.IntervalOneDay).
		Return(expected, nil).
		Times(1)

	bars, err := suite.newFetcher(3).Fetch(context.Background(), params)
	suite.Require().NoError(err)
	suite.Equal(expected, bars)
}

func (suite *FetcherTestSuite) TestFetchEmptyResultIsNotAnError() {
	params := dailyParams("AAPL")

	suite.mockProvider.EXPECT().
		FetchAggs(gomock.Any(), "AAPL", params.Start, params.End, types.IntervalOneDay).
		Return([]types.MarketData{}, nil).
		Times(1)

	bars, err := suite.newFetcher(3).Fetch(context.Background(), params)
	suite.Require().NoError(err)
	suite.Empty(bars)
}

func (suite *FetcherTestSuite) TestFetchSingleDayRangeIsValid() {
	// Date ranges are inclusive, so start == end is a one-day request.
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	params := FetchParams{
		Symbol:   "AAPL",
		Start:    day,
		End:      day,
		Interval: types.IntervalOneDay,
	}

	suite.mockProvider.EXPECT().
		FetchAggs(gomock.Any(), "AAPL", day, day, types.IntervalOneDay).
		Return(testBars("AAPL", 1), nil).
		Times(1)

	bars, err := suite.newFetcher(3).Fetch(context.Background(), params)
	suite.Require().NoError(err)
	suite.Len(bars, 1)
}

func (suite *FetcherTestSuite) TestFetchRetriesTransientFailure() {
	params := dailyParams("AAPL")
	expected := testBars("AAPL", 5)

	gomock.InOrder(
		suite.mockProvider.EXPECT().
			FetchAggs(gomock.Any(), "AAPL", params.Start, params.End, types.IntervalOneDay).
			Return(nil, errors.New(errors.ErrCodeFetchFailed, "upstream unavailable")).
			Times(2),
		suite.mockProvider.EXPECT().
			FetchAggs(gomock.Any(), "AAPL", params.Start, params.End, types.IntervalOneDay).
			Return(expected, nil).
			Times(1),
	)

	bars, err := suite.newFetcher(3).Fetch(context.Background(), params)
	suite.Require().NoError(err)
	suite.Equal(expected, bars)
}

func (suite *FetcherTestSuite) TestFetchGivesUpAfterMaxRetries() {
	params := dailyParams("AAPL")

	// First attempt plus two retries.
	suite.mockProvider.EXPECT().
		FetchAggs(gomock.Any(), "AAPL", params.Start, params.End, types.IntervalOneDay).
		Return(nil, errors.New(errors.ErrCodeFetchFailed, "upstream unavailable")).
		Times(3)

	_, err := suite.newFetcher(2).Fetch(context.Background(), params)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeFetchFailed))
}

func (suite *FetcherTestSuite) TestFetchDoesNotRetrySymbolNotFound() {
	params := dailyParams("ZZZZINVALID")

	suite.mockProvider.EXPECT().
		FetchAggs(gomock.Any(), "ZZZZINVALID", params.Start, params.End, types.IntervalOneDay).
		Return(nil, errors.New(errors.ErrCodeSymbolNotFound, "symbol not found")).
		Times(1)

	_, err := suite.newFetcher(3).Fetch(context.Background(), params)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeSymbolNotFound))
}

func (suite *FetcherTestSuite) TestValidationRejectsBeforeAnyNetworkCall() {
	// No EXPECT on the mock: a provider call would fail the test.
	fetcher := suite.newFetcher(3)

	testCases := []struct {
		name     string
		params   FetchParams
		expected errors.ErrorCode
	}{
		{
			name: "malformed symbol",
			params: FetchParams{
				Symbol:   "not a symbol",
				Start:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
				End:      time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
				Interval: types.IntervalOneDay,
			},
			expected: errors.ErrCodeInvalidSymbol,
		},
		{
			name: "end before start",
			params: FetchParams{
				Symbol:   "AAPL",
				Start:    time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
				End:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
				Interval: types.IntervalOneDay,
			},
			expected: errors.ErrCodeInvalidParameter,
		},
		{
			name: "unknown interval",
			params: FetchParams{
				Symbol:   "AAPL",
				Start:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
				End:      time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
				Interval: types.Interval("90m"),
			},
			expected: errors.ErrCodeInvalidInterval,
		},
		{
			name: "lookback beyond upstream history",
			params: FetchParams{
				Symbol:   "AAPL",
				Start:    time.Now().UTC().Add(-30 * 24 * time.Hour),
				End:      time.Now().UTC(),
				Interval: types.IntervalOneMinute,
			},
			expected: errors.ErrCodeUnsupportedLookback,
		},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			_, err := fetcher.Fetch(context.Background(), tc.params)
			suite.Require().Error(err)
			suite.True(errors.HasCode(err, tc.expected))
		})
	}
}

func (suite *FetcherTestSuite) TestFetchBatchIsolatesFailures() {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	suite.mockProvider.EXPECT().
		FetchAggs(gomock.Any(), "AAPL", start, end, types.IntervalOneDay).
		Return(testBars("AAPL", 5), nil).
		Times(1)
	suite.mockProvider.EXPECT().
		FetchAggs(gomock.Any(), "ZZZZINVALID", start, end, types.IntervalOneDay).
		Return(nil, errors.New(errors.ErrCodeSymbolNotFound, "symbol not found")).
		Times(1)
	suite.mockProvider.EXPECT().
		FetchAggs(gomock.Any(), "MSFT", start, end, types.IntervalOneDay).
		Return(testBars("MSFT", 5), nil).
		Times(1)

	results := suite.newFetcher(3).FetchBatch(
		context.Background(),
		[]string{"AAPL", "ZZZZINVALID", "MSFT"},
		start, end, types.IntervalOneDay)

	suite.Require().Len(results, 3)

	suite.Equal("AAPL", results[0].Symbol)
	suite.NoError(results[0].Err)
	suite.Len(results[0].Bars, 5)

	suite.Equal("ZZZZINVALID", results[1].Symbol)
	suite.Require().Error(results[1].Err)
	suite.True(errors.HasCode(results[1].Err, errors.ErrCodeSymbolNotFound))

	// The failure above must not prevent the remaining symbol.
	suite.Equal("MSFT", results[2].Symbol)
	suite.NoError(results[2].Err)
	suite.Len(results[2].Bars, 5)
}
