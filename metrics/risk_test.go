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
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-metrics/dataframe"
	"github.com/penny-vault/pv-metrics/metrics"
)

var _ = Describe("Risk", func() {
	DescribeTable("gates two year statistics on 504 observations",
		func(n int, available bool) {
			prices := sawtooth(n)
			Expect(metrics.Volatility(prices).Available).To(Equal(available))
			Expect(metrics.MaxDrawdown(prices).Available).To(Equal(available))
			Expect(metrics.SharpeRatio(prices, 0.03).Available).To(Equal(available))
			Expect(metrics.SortinoRatio(prices, 0.03).Available).To(Equal(available))
			Expect(metrics.ValueAtRisk(prices, 0.95).Available).To(Equal(available))
		},
		Entry("with 503 observations", 503, false),
		Entry("with 504 observations", 504, true),
		Entry("with 600 observations", 600, true),
	)

	Context("with a sawtooth price history", func() {
		var prices *dataframe.Series

		BeforeEach(func() {
			prices = sawtooth(600)
		})

		It("measures drawdown from the highest close in the window", func() {
			res := metrics.MaxDrawdown(prices)
			Expect(res.Value).To(BeNumerically("~", 100.0/102.0-1, 1e-12))
		})

		It("rounds the Sharpe ratio to two decimals", func() {
			res := metrics.SharpeRatio(prices, 0.03)
			Expect(res.Value * 100).To(BeNumerically("~", math.Round(res.Value*100), 1e-9))
		})

		It("lowers the Sharpe ratio as the risk free rate rises", func() {
			low := metrics.SharpeRatio(prices, 0)
			high := metrics.SharpeRatio(prices, 0.10)
			Expect(high.Value).To(BeNumerically("<", low.Value))
		})

		It("uses the 5th percentile of daily returns as value at risk", func() {
			res := metrics.ValueAtRisk(prices, 0.95)
			Expect(res.Value).To(BeNumerically("~", 100.0/102.0-1, 1e-12))
		})

		It("computes an annualized volatility", func() {
			res := metrics.Volatility(prices)
			Expect(res.Value).To(BeNumerically(">", 0))
		})
	})

	Context("with steadily rising prices", func() {
		It("does not compute a Sortino ratio without downside returns", func() {
			vals := make([]float64, 504)
			for ii := range vals {
				vals[ii] = 100 * math.Pow(1.001, float64(ii))
			}
			prices := series(day(2021, 1, 4), vals...)

			Expect(metrics.SortinoRatio(prices, 0).Available).To(BeFalse())
			Expect(metrics.MaxDrawdown(prices).Value).To(BeNumerically("~", 0, 1e-12))
		})
	})

	Context("with constant prices", func() {
		It("does not divide by a zero deviation", func() {
			vals := make([]float64, 504)
			for ii := range vals {
				vals[ii] = 50
			}
			prices := series(day(2021, 1, 4), vals...)

			Expect(metrics.SharpeRatio(prices, 0.03).Available).To(BeFalse())
			Expect(metrics.Volatility(prices).Value).To(Equal(0.0))
		})
	})
})
