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
	"time"

	"github.com/penny-vault/pv-metrics/dataframe"
)

const (
	DailyPeriods   = 1
	WeeklyPeriods  = 5
	MonthlyPeriods = 21
)

// PeriodReturn computes the simple return over the last periods observations.
// At least periods+1 observations are required.
//
// R = P(t) / P(t - periods) - 1
func PeriodReturn(prices *dataframe.Series, periods int) Result {
	n := prices.Len()
	if periods < 1 || n < periods+1 {
		return Unavailable()
	}

	return Computed(prices.Vals[n-1]/prices.Vals[n-periods-1] - 1)
}

// YTDReturn is the return from the first to the last observation in the
// calendar year of now
func YTDReturn(prices *dataframe.Series, now time.Time) Result {
	ytd := yearSlice(prices, now.Year())
	if ytd.Len() < 2 {
		return Unavailable()
	}
	return Computed(ytd.Vals[ytd.Len()-1]/ytd.Vals[0] - 1)
}

// CalendarYearReturn is the return from the first to the last observation of
// the given year
func CalendarYearReturn(prices *dataframe.Series, year int) Result {
	obs := yearSlice(prices, year)
	if obs.Len() == 0 {
		return Unavailable()
	}
	return Computed(obs.Vals[obs.Len()-1]/obs.Vals[0] - 1)
}

// AnnualizedReturn converts the total return of the series to a compound
// annual rate using calendar days between the first and last observation
//
// R = (1 + total) ^ (365.25 / days) - 1
func AnnualizedReturn(prices *dataframe.Series) Result {
	n := prices.Len()
	if n < 2 {
		return Unavailable()
	}

	days := math.Floor(prices.Dates[n-1].Sub(prices.Dates[0]).Hours() / 24)
	if days < 1 {
		return Unavailable()
	}

	total := prices.Vals[n-1]/prices.Vals[0] - 1
	return Computed(math.Pow(1+total, 365.25/days) - 1)
}

func yearSlice(prices *dataframe.Series, year int) *dataframe.Series {
	if prices.Len() == 0 {
		return prices
	}

	begin := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	return prices.Trim(begin, end)
}
