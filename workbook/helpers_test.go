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

package workbook_test

import (
	"math"
	"time"

	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-metrics/dataframe"
)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func weekdays(begin time.Time, n int) []time.Time {
	dates := make([]time.Time, 0, n)
	for dt := begin; len(dates) < n; dt = dt.AddDate(0, 0, 1) {
		if dt.Weekday() == time.Saturday || dt.Weekday() == time.Sunday {
			continue
		}
		dates = append(dates, dt)
	}
	return dates
}

// prices returns n weekday closes starting at begin that rise by one per day
func prices(ticker string, begin time.Time, n int, base float64) *dataframe.Series {
	dates := weekdays(begin, n)
	vals := make([]float64, n)
	for idx := range vals {
		vals[idx] = base + float64(idx) + 0.125
	}
	return dataframe.NewSeries(ticker, dates, vals)
}

func dividends(ticker string, dates []time.Time, amounts []float64) *dataframe.Series {
	return dataframe.NewSeries(ticker, dates, amounts)
}

// expectTable compares tables treating NaN as equal to NaN
func expectTable(actual, expected *dataframe.DataFrame, tolerance float64) {
	ExpectWithOffset(1, actual.ColNames).To(Equal(expected.ColNames))
	ExpectWithOffset(1, actual.Dates).To(Equal(expected.Dates))
	for colIdx, col := range expected.Vals {
		ExpectWithOffset(1, actual.Vals[colIdx]).To(HaveLen(len(col)))
		for rowIdx, val := range col {
			if math.IsNaN(val) {
				ExpectWithOffset(1, math.IsNaN(actual.Vals[colIdx][rowIdx])).To(BeTrue(), "%s on %s", expected.ColNames[colIdx], expected.Dates[rowIdx])
				continue
			}
			ExpectWithOffset(1, actual.Vals[colIdx][rowIdx]).To(BeNumerically("~", val, tolerance), "%s on %s", expected.ColNames[colIdx], expected.Dates[rowIdx])
		}
	}
}
