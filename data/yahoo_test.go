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

package data_test

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jarcoal/httpmock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/viper"

	"github.com/penny-vault/pv-metrics/common"
	"github.com/penny-vault/pv-metrics/data"
)

// marketOpen returns the unix timestamp of the 9:30 open on the given date
func marketOpen(dt time.Time) int64 {
	return dt.Add(14*time.Hour + 30*time.Minute).Unix()
}

func chartResponse(symbol string, dates []time.Time, closes, adjCloses []string, dividends map[time.Time]float64) string {
	timestamps := make([]string, len(dates))
	for idx, dt := range dates {
		timestamps[idx] = fmt.Sprintf("%d", marketOpen(dt))
	}

	divs := make([]string, 0, len(dividends))
	for dt, amount := range dividends {
		ts := marketOpen(dt)
		divs = append(divs, fmt.Sprintf(`"%d": {"amount": %g, "date": %d}`, ts, amount, ts))
	}

	return fmt.Sprintf(`{"chart": {"result": [{
		"meta": {"symbol": "%s", "longName": "Vanguard 500 Index Fund Admiral Shares", "shortName": "Vanguard 500", "exchangeTimezoneName": "America/New_York", "gmtoffset": -18000},
		"timestamp": [%s],
		"events": {"dividends": {%s}},
		"indicators": {"quote": [{"close": [%s]}], "adjclose": [{"adjclose": [%s]}]}
	}], "error": null}}`, symbol, strings.Join(timestamps, ","), strings.Join(divs, ","), strings.Join(closes, ","), strings.Join(adjCloses, ","))
}

var _ = Describe("Yahoo", func() {
	var (
		yahoo    *data.Yahoo
		interval *data.Interval
		dates    []time.Time
	)

	BeforeEach(func() {
		httpmock.Activate()

		viper.Set("cache.redis_url", "")
		Expect(common.SetupCache()).To(Succeed())

		yahoo = data.NewYahoo(
			data.WithRateLimiter(data.NewRateLimiter(0)),
			data.WithRetry(3, time.Millisecond),
		)

		interval = span(day(2023, 1, 1), day(2023, 1, 31))
		dates = []time.Time{day(2023, 1, 3), day(2023, 1, 4), day(2023, 1, 5), day(2023, 1, 6)}
	})

	AfterEach(func() {
		httpmock.DeactivateAndReset()
	})

	Describe("When downloading security history", func() {
		Context("with a successful response", func() {
			BeforeEach(func() {
				body := chartResponse("VFIAX", dates,
					[]string{"100.0", "101.0", "null", "103.0"},
					[]string{"99.0", "100.0", "null", "102.0"},
					map[time.Time]float64{
						day(2023, 1, 4): 1.25,
						day(2023, 1, 6): 0,
					})
				httpmock.RegisterResponder("GET", `=~^https://query1\.finance\.yahoo\.com/v8/finance/chart/VFIAX`,
					httpmock.NewStringResponder(200, body))
			})

			It("returns adjusted and unadjusted closes keyed by trading date", func() {
				hist, err := yahoo.FetchHistory(context.Background(), "VFIAX", interval)
				Expect(err).To(BeNil())

				Expect(hist.Ticker).To(Equal("VFIAX"))
				Expect(hist.Name).To(Equal("Vanguard 500 Index Fund Admiral Shares"))

				Expect(hist.Adjusted.Dates).To(Equal([]time.Time{day(2023, 1, 3), day(2023, 1, 4), day(2023, 1, 6)}))
				Expect(hist.Adjusted.Vals).To(Equal([]float64{99.0, 100.0, 102.0}))
				Expect(hist.Unadjusted.Vals).To(Equal([]float64{100.0, 101.0, 103.0}))
				Expect(hist.Adjusted.Name).To(Equal("VFIAX"))
			})

			It("drops dividends that are not positive", func() {
				hist, err := yahoo.FetchHistory(context.Background(), "VFIAX", interval)
				Expect(err).To(BeNil())

				Expect(hist.Dividends.Dates).To(Equal([]time.Time{day(2023, 1, 4)}))
				Expect(hist.Dividends.Vals).To(Equal([]float64{1.25}))
			})

			It("rejects an interval that ends before it begins", func() {
				_, err := yahoo.FetchHistory(context.Background(), "VFIAX", span(day(2023, 2, 1), day(2023, 1, 1)))
				Expect(err).To(MatchError(data.ErrBeginAfterEnd))
				Expect(httpmock.GetTotalCallCount()).To(Equal(0))
			})
		})

		Context("with transient failures", func() {
			It("retries until the request succeeds", func() {
				body := chartResponse("VFIAX", dates[:2], []string{"100.0", "101.0"}, []string{"99.0", "100.0"}, nil)
				calls := 0
				httpmock.RegisterResponder("GET", `=~^https://query1\.finance\.yahoo\.com/v8/finance/chart/VFIAX`,
					func(req *http.Request) (*http.Response, error) {
						calls++
						if calls < 3 {
							return httpmock.NewStringResponse(500, "internal error"), nil
						}
						return httpmock.NewStringResponse(200, body), nil
					})

				hist, err := yahoo.FetchHistory(context.Background(), "VFIAX", interval)
				Expect(err).To(BeNil())
				Expect(hist.Adjusted.Len()).To(Equal(2))
				Expect(calls).To(Equal(3))
			})

			It("gives up after the maximum number of attempts", func() {
				httpmock.RegisterResponder("GET", `=~^https://query1\.finance\.yahoo\.com/v8/finance/chart/VFIAX`,
					httpmock.NewStringResponder(503, "unavailable"))

				_, err := yahoo.FetchHistory(context.Background(), "VFIAX", interval)
				Expect(err).To(MatchError(data.ErrAcquisition))
				Expect(httpmock.GetTotalCallCount()).To(Equal(data.MaxAttempts))
			})
		})

		Context("with an unknown ticker", func() {
			It("does not retry", func() {
				httpmock.RegisterResponder("GET", `=~^https://query1\.finance\.yahoo\.com/v8/finance/chart/NOPE`,
					httpmock.NewStringResponder(404, `{"chart": {"result": null, "error": {"code": "Not Found", "description": "No data found, symbol may be delisted"}}}`))

				_, err := yahoo.FetchHistory(context.Background(), "NOPE", interval)
				Expect(err).To(MatchError(data.ErrAcquisition))
				Expect(httpmock.GetTotalCallCount()).To(Equal(1))
			})
		})
	})

	Describe("When the same history is requested twice", func() {
		var calls int

		BeforeEach(func() {
			calls = 0
			body := chartResponse("VTSAX", dates, []string{"100.0", "101.0", "102.0", "103.0"}, []string{"99.0", "100.0", "101.0", "102.0"}, nil)
			httpmock.RegisterResponder("GET", `=~^https://query1\.finance\.yahoo\.com/v8/finance/chart/VTSAX`,
				func(req *http.Request) (*http.Response, error) {
					calls++
					return httpmock.NewStringResponse(200, body), nil
				})
		})

		It("reuses the response for an interval that has closed", func() {
			for ii := 0; ii < 2; ii++ {
				hist, err := yahoo.FetchHistory(context.Background(), "VTSAX", interval)
				Expect(err).To(BeNil())
				Expect(hist.Adjusted.Len()).To(Equal(4))
			}
			Expect(calls).To(Equal(1))
		})

		It("downloads again while the interval includes today", func() {
			live := data.NewYahoo(
				data.WithRateLimiter(data.NewRateLimiter(0)),
				data.WithRetry(3, time.Millisecond),
				data.WithYahooClock(func() time.Time {
					return time.Date(2023, 1, 31, 11, 0, 0, 0, common.GetTimezone())
				}),
			)

			for ii := 0; ii < 2; ii++ {
				_, err := live.FetchHistory(context.Background(), "VTSAX", interval)
				Expect(err).To(BeNil())
			}
			Expect(calls).To(Equal(2))
		})
	})

	Describe("When downloading treasury bill rates", func() {
		It("converts percents to decimals", func() {
			body := chartResponse("^IRX", dates[:2], []string{"4.25", "4.5"}, []string{"4.25", "4.5"}, nil)
			httpmock.RegisterResponder("GET", `=~IRX`, httpmock.NewStringResponder(200, body))

			rates, err := yahoo.FetchRates(context.Background(), interval)
			Expect(err).To(BeNil())
			Expect(rates.Dates).To(Equal(dates[:2]))
			Expect(rates.Vals[0]).To(BeNumerically("~", 0.0425, 1e-12))
			Expect(rates.Vals[1]).To(BeNumerically("~", 0.045, 1e-12))
		})

		It("reports the rate as unavailable on failure", func() {
			httpmock.RegisterResponder("GET", `=~IRX`, httpmock.NewStringResponder(404, "not found"))

			_, err := yahoo.FetchRates(context.Background(), interval)
			Expect(err).To(MatchError(data.ErrRateUnavailable))
		})
	})
})
