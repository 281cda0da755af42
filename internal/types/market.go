package types

import (
	"sort"
	"time"
)

// MarketData represents a single OHLCV bar for one symbol.
// Bars are uniquely keyed by Time within a (symbol, interval) series.
type MarketData struct {
	Time   time.Time `csv:"time"`
	Symbol string    `csv:"symbol"`
	Open   float64   `csv:"open"`
	High   float64   `csv:"high"`
	Low    float64   `csv:"low"`
	Close  float64   `csv:"close"`
	Volume float64   `csv:"volume"`
}

// SortByTime sorts bars ascending by timestamp in place. The sort is
// stable so bars with equal timestamps keep their input order, which
// dedupeSorted relies on to keep the later occurrence.
func SortByTime(bars []MarketData) {
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Time.Before(bars[j].Time)
	})
}

// MergeSeries merges previously stored bars with freshly fetched bars.
// The result is sorted ascending by timestamp and contains no duplicate
// timestamps. When both slices carry a bar for the same timestamp, the
// fresh bar wins: upstream sources revise recent bars and the latest
// fetch is treated as authoritative.
func MergeSeries(stored []MarketData, fresh []MarketData) []MarketData {
	if len(stored) == 0 {
		merged := make([]MarketData, len(fresh))
		copy(merged, fresh)
		SortByTime(merged)

		return dedupeSorted(merged)
	}

	if len(fresh) == 0 {
		merged := make([]MarketData, len(stored))
		copy(merged, stored)
		SortByTime(merged)

		return dedupeSorted(merged)
	}

	byTime := make(map[int64]MarketData, len(stored)+len(fresh))
	for _, bar := range stored {
		byTime[bar.Time.UnixNano()] = bar
	}

	for _, bar := range fresh {
		byTime[bar.Time.UnixNano()] = bar
	}

	merged := make([]MarketData, 0, len(byTime))
	for _, bar := range byTime {
		merged = append(merged, bar)
	}

	SortByTime(merged)

	return merged
}

// dedupeSorted removes duplicate timestamps from an ascending slice,
// keeping the later occurrence.
func dedupeSorted(bars []MarketData) []MarketData {
	if len(bars) < 2 {
		return bars
	}

	out := bars[:0]

	for i, bar := range bars {
		if i+1 < len(bars) && bars[i+1].Time.Equal(bar.Time) {
			continue
		}

		out = append(out, bar)
	}

	return out
}

// LastTimestamp returns the maximum timestamp in the series and whether
// the series is non-empty. The input does not need to be sorted.
func LastTimestamp(bars []MarketData) (time.Time, bool) {
	if len(bars) == 0 {
		return time.Time{}, false
	}

	last := bars[0].Time
	for _, bar := range bars[1:] {
		if bar.Time.After(last) {
			last = bar.Time
		}
	}

	return last, true
}
