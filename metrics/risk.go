// Copyright 2021-2023
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/penny-vault/pv-metrics/dataframe"
)

const (
	TradingDaysYear = 252
	MinHistoryDays  = 2 * TradingDaysYear
)

// analysisWindow returns the most recent MinHistoryDays closes or nil when
// the series is too short for risk statistics
func analysisWindow(prices *dataframe.Series) []float64 {
	if prices.Len() < MinHistoryDays {
		return nil
	}
	return prices.Tail(MinHistoryDays).Vals
}

func dailyReturns(closes []float64) []float64 {
	rets := make([]float64, len(closes)-1)
	for ii := 1; ii < len(closes); ii++ {
		rets[ii-1] = closes[ii]/closes[ii-1] - 1
	}
	return rets
}

func excessReturns(rets []float64, annualRate float64) []float64 {
	dailyRate := annualRate / TradingDaysYear
	excess := make([]float64, len(rets))
	for ii, r := range rets {
		excess[ii] = r - dailyRate
	}
	return excess
}

// Volatility is the annualized sample standard deviation of daily returns
// over the trailing two years
func Volatility(prices *dataframe.Series) Result {
	closes := analysisWindow(prices)
	if closes == nil {
		return Unavailable()
	}

	return Computed(stat.StdDev(dailyReturns(closes), nil) * math.Sqrt(TradingDaysYear))
}

// MaxDrawdown is the largest peak to trough decline over the trailing two
// years. Peaks before the window are ignored.
func MaxDrawdown(prices *dataframe.Series) Result {
	closes := analysisWindow(prices)
	if closes == nil {
		return Unavailable()
	}

	peak := closes[0]
	drawdowns := make([]float64, len(closes))
	for ii, price := range closes {
		if price > peak {
			peak = price
		}
		drawdowns[ii] = (price - peak) / peak
	}

	return Computed(floats.Min(drawdowns))
}

// SharpeRatio measures excess return per unit of total risk over the trailing
// two years. The denominator is the deviation of raw daily returns.
//
// Sharpe = sqrt(252) * mean(R - Rf/252) / std(R)
func SharpeRatio(prices *dataframe.Series, annualRate float64) Result {
	closes := analysisWindow(prices)
	if closes == nil {
		return Unavailable()
	}

	rets := dailyReturns(closes)
	stdev := stat.StdDev(rets, nil)
	if stdev == 0 {
		return Unavailable()
	}

	sharpe := math.Sqrt(TradingDaysYear) * stat.Mean(excessReturns(rets, annualRate), nil) / stdev
	return Computed(math.Round(sharpe*100) / 100)
}

// SortinoRatio is like SharpeRatio but only penalizes downside volatility.
// Downside deviation is the root mean square of the negative excess returns.
func SortinoRatio(prices *dataframe.Series, annualRate float64) Result {
	closes := analysisWindow(prices)
	if closes == nil {
		return Unavailable()
	}

	excess := excessReturns(dailyReturns(closes), annualRate)

	downside := make([]float64, 0, len(excess))
	for _, r := range excess {
		if r < 0 {
			downside = append(downside, r*r)
		}
	}

	if len(downside) == 0 {
		return Unavailable()
	}

	downsideDeviation := math.Sqrt(stat.Mean(downside, nil))
	if downsideDeviation == 0 {
		return Unavailable()
	}

	return Computed(math.Sqrt(TradingDaysYear) * stat.Mean(excess, nil) / downsideDeviation)
}

// ValueAtRisk returns the daily return that is not exceeded on the downside
// with the given confidence over the trailing two years, e.g. confidence 0.95
// returns the 5th percentile of daily returns
func ValueAtRisk(prices *dataframe.Series, confidence float64) Result {
	closes := analysisWindow(prices)
	if closes == nil || confidence <= 0 || confidence >= 1 {
		return Unavailable()
	}

	rets := dailyReturns(closes)
	sort.Float64s(rets)

	return Computed(percentile(rets, 1-confidence))
}

// percentile linearly interpolates between the order statistics that
// surround p * (n - 1)
func percentile(sorted []float64, p float64) float64 {
	pos := p * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	frac := pos - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*frac
}
