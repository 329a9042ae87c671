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

package metrics_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-metrics/dataframe"
	"github.com/penny-vault/pv-metrics/metrics"
)

var _ = Describe("Returns", func() {
	Context("with five daily closes", func() {
		var prices *dataframe.Series

		BeforeEach(func() {
			prices = series(day(2023, 3, 6), 100, 102, 101, 105, 103)
		})

		It("computes the daily return from the last two closes", func() {
			res := metrics.PeriodReturn(prices, metrics.DailyPeriods)
			Expect(res.Available).To(BeTrue())
			Expect(res.Value).To(BeNumerically("~", -0.019048, 1e-6))
		})

		It("does not compute a weekly return from fewer than six closes", func() {
			Expect(metrics.PeriodReturn(prices, metrics.WeeklyPeriods).Available).To(BeFalse())
		})

		It("reports the one month return as unavailable", func() {
			Expect(metrics.PeriodReturn(prices, metrics.MonthlyPeriods)).To(Equal(metrics.Unavailable()))
		})

		It("uses the first close of the window for the four day return", func() {
			res := metrics.PeriodReturn(prices, 4)
			Expect(res.Value).To(BeNumerically("~", 0.03, 1e-12))
		})
	})

	Context("with calendar year history", func() {
		var prices *dataframe.Series

		BeforeEach(func() {
			dates := weekdays(day(2022, 1, 3), 520)
			vals := make([]float64, len(dates))
			for ii := range vals {
				vals[ii] = 100
			}

			first2022, last2022, first2023, last2023 := -1, -1, -1, -1
			for ii, dt := range dates {
				switch dt.Year() {
				case 2022:
					if first2022 == -1 {
						first2022 = ii
					}
					last2022 = ii
				case 2023:
					if first2023 == -1 {
						first2023 = ii
					}
					last2023 = ii
				}
			}

			vals[first2022] = 100
			vals[last2022] = 90
			vals[first2023] = 90
			vals[last2023] = 99

			prices = dataframe.NewSeries("TEST", dates, vals)
		})

		It("computes a loss of 10% for 2022", func() {
			res := metrics.CalendarYearReturn(prices, 2022)
			Expect(res.Available).To(BeTrue())
			Expect(res.Value).To(BeNumerically("~", -0.10, 1e-12))
		})

		It("computes a gain of 10% for 2023", func() {
			res := metrics.CalendarYearReturn(prices, 2023)
			Expect(res.Available).To(BeTrue())
			Expect(res.Value).To(BeNumerically("~", 0.10, 1e-12))
		})

		It("reports years without observations as unavailable", func() {
			Expect(metrics.CalendarYearReturn(prices, 2021).Available).To(BeFalse())
		})
	})

	Describe("year to date", func() {
		It("needs at least two observations in the current year", func() {
			prices := series(day(2023, 12, 28), 100, 101, 102)
			now := time.Date(2024, 1, 2, 18, 0, 0, 0, time.UTC)
			Expect(metrics.YTDReturn(prices, now).Available).To(BeFalse())
		})

		It("compares the last close of the year to the first", func() {
			prices := series(day(2023, 12, 28), 100, 101, 102, 104)
			now := time.Date(2024, 1, 3, 18, 0, 0, 0, time.UTC)
			res := metrics.YTDReturn(prices, now)
			Expect(res.Available).To(BeTrue())
			Expect(res.Value).To(BeNumerically("~", 104.0/102.0-1, 1e-12))
		})
	})

	Describe("annualized return", func() {
		It("compounds the total return over calendar days", func() {
			prices := dataframe.NewSeries("TEST", []time.Time{day(2021, 1, 1), day(2023, 1, 1)}, []float64{100, 121})
			res := metrics.AnnualizedReturn(prices)
			Expect(res.Available).To(BeTrue())
			Expect(res.Value).To(BeNumerically("~", 0.1, 1e-3))
		})

		It("is unavailable for a single observation", func() {
			prices := series(day(2023, 1, 3), 100)
			Expect(metrics.AnnualizedReturn(prices).Available).To(BeFalse())
		})
	})
})
