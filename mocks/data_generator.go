package mocks

import (
	"math"
	"math/rand"
	"time"

	"github.com/rxtech-lab/stockpile/internal/types"
)

// DataGenerator generates realistic OHLCV bars for testing.
type DataGenerator struct {
	rng *rand.Rand
}

// NewDataGenerator creates a new DataGenerator with the given seed.
// Use a fixed seed for reproducible results in tests.
func NewDataGenerator(seed int64) *DataGenerator {
	return &DataGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// GeneratorConfig configures how bars are generated.
type GeneratorConfig struct {
	// Symbol is the trading symbol (e.g., "AAPL", "SPY")
	Symbol string
	// StartTime is the beginning of the series
	StartTime time.Time
	// Interval is the duration between each bar
	Interval time.Duration
	// Count is the number of bars to generate
	Count int
	// InitialPrice is the starting price
	InitialPrice float64
	// Volatility controls price movement (0.01 = 1% typical move per bar)
	Volatility float64
	// Trend is the drift factor (-0.01 to 0.01 for bearish to bullish)
	Trend float64
	// VolumeBase is the average volume per bar
	VolumeBase float64
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Symbol:       "TEST",
		StartTime:    time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC),
		Interval:     24 * time.Hour,
		Count:        100,
		InitialPrice: 100.0,
		Volatility:   0.01,
		Trend:        0.0,
		VolumeBase:   10000,
	}
}

// Generate produces a series of bars following a random walk.
func (g *DataGenerator) Generate(config GeneratorConfig) []types.MarketData {
	bars := make([]types.MarketData, 0, config.Count)
	price := config.InitialPrice

	for i := 0; i < config.Count; i++ {
		move := g.rng.NormFloat64()*config.Volatility + config.Trend
		open := price
		closePrice := open * (1 + move)

		high := math.Max(open, closePrice) * (1 + g.rng.Float64()*config.Volatility/2)
		low := math.Min(open, closePrice) * (1 - g.rng.Float64()*config.Volatility/2)

		volume := config.VolumeBase * (0.5 + g.rng.Float64())

		bars = append(bars, types.MarketData{
			Time:   config.StartTime.Add(time.Duration(i) * config.Interval),
			Symbol: config.Symbol,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: math.Floor(volume),
		})

		price = closePrice
	}

	return bars
}
