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
	"context"
	"time"

	"github.com/goccy/go-json"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-metrics/dataframe"
	"github.com/penny-vault/pv-metrics/metrics"
)

type fixedRate struct {
	rate  float64
	calls int
}

func (f *fixedRate) GetCurrentRate(ctx context.Context) float64 {
	f.calls++
	return f.rate
}

var _ = Describe("Engine", func() {
	var (
		rates  *fixedRate
		engine *metrics.Engine
	)

	BeforeEach(func() {
		rates = &fixedRate{rate: 0.045}
		engine = metrics.NewEngine(rates, metrics.WithNow(func() time.Time {
			return time.Date(2023, 3, 13, 16, 0, 0, 0, time.UTC)
		}))
	})

	Describe("When computing trailing yield", func() {
		It("divides a year of dividends by the last close", func() {
			prices := dataframe.NewSeries("TEST", []time.Time{day(2022, 12, 30), day(2023, 3, 10)}, []float64{98, 100})
			dividends := dataframe.NewSeries("TEST",
				[]time.Time{day(2022, 3, 9), day(2022, 3, 10), day(2022, 6, 10), day(2022, 9, 9), day(2022, 12, 9)},
				[]float64{5.0, 1.0, 1.0, 1.0, 1.0})

			res := metrics.TrailingYield(prices, dividends)
			Expect(res.Available).To(BeTrue())
			Expect(res.Value).To(BeNumerically("~", 0.04, 1e-12))
		})

		It("is zero without dividends", func() {
			prices := series(day(2023, 3, 6), 100, 101)
			Expect(metrics.TrailingYield(prices, nil)).To(Equal(metrics.Computed(0)))
		})

		It("is unavailable without prices", func() {
			Expect(metrics.TrailingYield(nil, nil).Available).To(BeFalse())
		})
	})

	Describe("When computing a record", func() {
		It("computes short history metrics independently", func() {
			prices := series(day(2023, 3, 6), 100, 102, 101, 105, 103)
			rec := engine.Compute(context.Background(), "VFIAX", "Vanguard 500", prices, nil)

			Expect(rec.Ticker).To(Equal("VFIAX"))
			Expect(rec.Name).To(Equal("Vanguard 500"))
			Expect(rec.RiskFreeRate).To(Equal(0.045))
			Expect(rec.Get(metrics.DailyReturn).Value).To(BeNumerically("~", -0.019048, 1e-6))
			Expect(rec.Get(metrics.YearToDateReturn).Value).To(BeNumerically("~", 0.03, 1e-12))
			Expect(rec.Get(metrics.Yield)).To(Equal(metrics.Computed(0)))

			for _, metric := range []string{metrics.MonthlyReturn, metrics.OneYearReturn, metrics.PriorYearReturn,
				metrics.Sharpe, metrics.Sortino, metrics.AnnualVolatility, metrics.Drawdown, metrics.VaR95} {
				Expect(rec.Get(metric).Available).To(BeFalse(), metric)
			}
		})

		It("requests the risk free rate once", func() {
			prices := sawtooth(504)
			engine.Compute(context.Background(), "A", "", prices, nil)
			rec := engine.Compute(context.Background(), "B", "", prices, nil)

			Expect(rates.calls).To(Equal(1))
			Expect(rec.Name).To(Equal("B"))
			Expect(rec.Get(metrics.Sharpe).Available).To(BeTrue())
		})

		It("falls back to the default rate without a provider", func() {
			eng := metrics.NewEngine(nil)
			Expect(eng.RiskFreeRate(context.Background())).To(Equal(metrics.DefaultRiskFreeRate))
		})
	})

	Describe("When presenting records", func() {
		It("names the prior year columns after the calendar years", func() {
			headers := metrics.Headers(2024)
			Expect(headers[0]).To(Equal("Ticker"))
			Expect(headers).To(ContainElements("2023%", "2022%"))
			Expect(headers[len(headers)-1]).To(Equal("RF Rate"))
			Expect(headers).To(HaveLen(len(metrics.Order) + 3))
		})

		It("encodes unavailable metrics as null", func() {
			rec := metrics.NewRecord("VFIAX", "Vanguard 500", 2023)
			rec.Values[metrics.DailyReturn] = metrics.Computed(0.5)
			rec.Values[metrics.Sharpe] = metrics.Unavailable()

			buf, err := json.Marshal(rec)
			Expect(err).To(BeNil())
			Expect(string(buf)).To(ContainSubstring(`"Day%":0.5`))
			Expect(string(buf)).To(ContainSubstring(`"Sharpe 2Y":null`))
		})

		It("renders a table row per ticker", func() {
			rec := metrics.NewRecord("VFIAX", "Vanguard 500", 2023)
			rec.Values[metrics.DailyReturn] = metrics.Computed(0.0123)
			table := metrics.Table([]*metrics.Record{rec})
			Expect(table).To(ContainSubstring("VFIAX"))
			Expect(table).To(ContainSubstring("1.2%"))
		})
	})
})
