package provider

import (
	"testing"

	"github.com/polygon-io/client-go/rest/models"
	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/stockpile/internal/types"
	"github.com/rxtech-lab/stockpile/pkg/errors"
)

type ProviderTestSuite struct {
	suite.Suite
}

func TestProviderSuite(t *testing.T) {
	suite.Run(t, new(ProviderTestSuite))
}

func (suite *ProviderTestSuite) TestNewPolygonClientRequiresAPIKey() {
	_, err := NewPolygonClient("")
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))

	client, err := NewPolygonClient("test-key")
	suite.Require().NoError(err)
	suite.Equal("polygon", client.Name())
}

func (suite *ProviderTestSuite) TestPolygonAggParams() {
	testCases := []struct {
		interval       types.Interval
		wantMultiplier int
		wantTimespan   models.Timespan
		wantErr        bool
	}{
		{interval: types.IntervalOneMinute, wantMultiplier: 1, wantTimespan: models.Minute},
		{interval: types.IntervalTwoMinutes, wantMultiplier: 2, wantTimespan: models.Minute},
		{interval: types.IntervalFiveMinutes, wantMultiplier: 5, wantTimespan: models.Minute},
		{interval: types.IntervalFifteenMinutes, wantMultiplier: 15, wantTimespan: models.Minute},
		{interval: types.IntervalThirtyMinutes, wantMultiplier: 30, wantTimespan: models.Minute},
		{interval: types.IntervalOneHour, wantMultiplier: 1, wantTimespan: models.Hour},
		{interval: types.IntervalOneDay, wantMultiplier: 1, wantTimespan: models.Day},
		{interval: types.Interval("90m"), wantErr: true},
	}

	for _, tc := range testCases {
		suite.Run(string(tc.interval), func() {
			multiplier, timespan, err := polygonAggParams(tc.interval)
			if tc.wantErr {
				suite.Require().Error(err)
				suite.True(errors.HasCode(err, errors.ErrCodeInvalidInterval))

				return
			}

			suite.Require().NoError(err)
			suite.Equal(tc.wantMultiplier, multiplier)
			suite.Equal(tc.wantTimespan, timespan)
		})
	}
}

func (suite *ProviderTestSuite) TestBinanceIntervalFor() {
	for _, interval := range []types.Interval{
		types.IntervalOneMinute,
		types.IntervalFiveMinutes,
		types.IntervalFifteenMinutes,
		types.IntervalThirtyMinutes,
		types.IntervalOneHour,
		types.IntervalOneDay,
	} {
		got, err := binanceIntervalFor(interval)
		suite.Require().NoError(err)
		suite.Equal(string(interval), got)
	}

	// Binance has no 2m klines.
	_, err := binanceIntervalFor(types.IntervalTwoMinutes)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidInterval))
}
