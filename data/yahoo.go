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

package data

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/penny-vault/pv-metrics/common"
	"github.com/penny-vault/pv-metrics/dataframe"
	"github.com/penny-vault/pv-metrics/observability/opentelemetry"
)

const (
	DefaultRequestDelay = 4 * time.Second
	TreasuryBillSymbol  = "^IRX"
	userAgent           = "Mozilla/5.0 (X11; Linux x86_64) pvmetrics"
)

var yahooURL = "https://query1.finance.yahoo.com"

// Yahoo downloads daily history from the Yahoo Finance chart API
type Yahoo struct {
	client   *http.Client
	limiter  *RateLimiter
	baseURL  string
	attempts int
	backoff  time.Duration
	now      func() time.Time
}

type YahooOption func(*Yahoo)

func WithHTTPClient(client *http.Client) YahooOption {
	return func(y *Yahoo) {
		y.client = client
	}
}

func WithRateLimiter(limiter *RateLimiter) YahooOption {
	return func(y *Yahoo) {
		y.limiter = limiter
	}
}

// WithYahooClock replaces the wall clock used to decide whether a response
// may be cached
func WithYahooClock(now func() time.Time) YahooOption {
	return func(y *Yahoo) {
		y.now = now
	}
}

// WithRetry sets the number of attempts per request and the initial wait between them
func WithRetry(attempts int, initial time.Duration) YahooOption {
	return func(y *Yahoo) {
		y.attempts = attempts
		y.backoff = initial
	}
}

func NewYahoo(opts ...YahooOption) *Yahoo {
	y := &Yahoo{
		client:   &http.Client{Timeout: 30 * time.Second},
		limiter:  NewRateLimiter(DefaultRequestDelay),
		baseURL:  yahooURL,
		attempts: MaxAttempts,
		backoff:  2 * time.Second,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(y)
	}

	return y
}

type yahooChart struct {
	Chart struct {
		Result []*yahooResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type yahooResult struct {
	Meta struct {
		Symbol               string `json:"symbol"`
		LongName             string `json:"longName"`
		ShortName            string `json:"shortName"`
		ExchangeTimezoneName string `json:"exchangeTimezoneName"`
		GmtOffset            int    `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp []int64 `json:"timestamp"`
	Events    struct {
		Dividends map[string]struct {
			Amount float64 `json:"amount"`
			Date   int64   `json:"date"`
		} `json:"dividends"`
	} `json:"events"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// FetchHistory downloads adjusted closes, unadjusted closes and dividends
// for ticker over interval
func (y *Yahoo) FetchHistory(ctx context.Context, ticker string, interval *Interval) (*History, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "yahoo.FetchHistory")
	defer span.End()

	span.SetAttributes(
		attribute.String("Ticker", ticker),
		attribute.String("Begin", interval.Begin.Format("2006-01-02")),
		attribute.String("End", interval.End.Format("2006-01-02")),
	)

	if err := interval.Valid(); err != nil {
		opentelemetry.Fail(span, err, "invalid interval")
		return nil, err
	}

	result, err := y.chart(ctx, ticker, interval)
	if err != nil {
		opentelemetry.Fail(span, err, "download failed")
		return nil, fmt.Errorf("%w: %s: %v", ErrAcquisition, ticker, err)
	}

	hist := result.history(ticker)
	log.Info().Str("Ticker", ticker).Int("NumPrices", hist.Adjusted.Len()).Int("NumDividends", hist.Dividends.Len()).Msg("downloaded history")

	return hist, nil
}

// FetchRates downloads the 13 week treasury bill yield over interval
func (y *Yahoo) FetchRates(ctx context.Context, interval *Interval) (*dataframe.Series, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "yahoo.FetchRates")
	defer span.End()

	if err := interval.Valid(); err != nil {
		return nil, err
	}

	result, err := y.chart(ctx, TreasuryBillSymbol, interval)
	if err != nil {
		opentelemetry.Fail(span, err, "download failed")
		return nil, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
	}

	closes := result.closes(false)
	for idx := range closes.Vals {
		closes.Vals[idx] /= 100.0
	}

	return closes, nil
}

func (y *Yahoo) chart(ctx context.Context, ticker string, interval *Interval) (*yahooResult, error) {
	begin := dataframe.DateOf(interval.Begin)
	end := dataframe.DateOf(interval.End).AddDate(0, 0, 1)

	u := fmt.Sprintf("%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d&events=div&includeAdjustedClose=true",
		y.baseURL, url.PathEscape(ticker), begin.Unix(), end.Unix())

	// a response for an interval that includes today can still change
	key := common.CacheKey("yahoo", u)
	cacheable := y.closed(interval)
	if cacheable {
		if body, err := common.CacheGet(ctx, key); err == nil {
			if result, err := decodeChart(body); err == nil {
				log.Debug().Str("Ticker", ticker).Msg("using cached chart response")
				return result, nil
			}
		}
	}

	var (
		body   []byte
		result *yahooResult
	)

	err := retry(ctx, y.attempts, y.backoff, func() error {
		if err := y.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		var err error
		body, err = y.get(ctx, u)
		if err != nil {
			return err
		}

		result, err = decodeChart(body)
		return err
	})
	if err != nil {
		return nil, err
	}

	if !cacheable {
		return result, nil
	}

	if err := common.CacheSet(ctx, key, body); err != nil && !errors.Is(err, common.ErrCacheDisabled) {
		log.Warn().Err(err).Str("Ticker", ticker).Msg("could not cache chart response")
	}

	return result, nil
}

// closed reports whether interval ended before the current market day
func (y *Yahoo) closed(interval *Interval) bool {
	today := dataframe.DateOf(y.now().In(common.GetTimezone()))
	return dataframe.DateOf(interval.End).Before(today)
}

func (y *Yahoo) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, backoff.Permanent(fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode))
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	return body, nil
}

func decodeChart(body []byte) (*yahooResult, error) {
	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("could not decode chart response: %w", err))
	}

	if chart.Chart.Error != nil {
		return nil, backoff.Permanent(fmt.Errorf("%s: %s", chart.Chart.Error.Code, chart.Chart.Error.Description))
	}

	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return nil, ErrNoData
	}

	return chart.Chart.Result[0], nil
}

func (result *yahooResult) location() *time.Location {
	if result.Meta.ExchangeTimezoneName != "" {
		if loc, err := time.LoadLocation(result.Meta.ExchangeTimezoneName); err == nil {
			return loc
		}
	}
	return time.FixedZone("exchange", result.Meta.GmtOffset)
}

// closes converts the quote (or adjusted) closes to a series keyed by the
// exchange's calendar date. Null closes are skipped and a repeated date
// keeps its final observation.
func (result *yahooResult) closes(adjusted bool) *dataframe.Series {
	var vals []*float64
	if adjusted && len(result.Indicators.AdjClose) > 0 {
		vals = result.Indicators.AdjClose[0].AdjClose
	} else if len(result.Indicators.Quote) > 0 {
		vals = result.Indicators.Quote[0].Close
	}

	loc := result.location()
	series := dataframe.NewSeries(result.Meta.Symbol, make([]time.Time, 0, len(vals)), make([]float64, 0, len(vals)))
	for idx, ts := range result.Timestamp {
		if idx >= len(vals) || vals[idx] == nil {
			continue
		}

		dt := dataframe.DateOf(time.Unix(ts, 0).In(loc))
		if n := len(series.Dates); n > 0 && !series.Dates[n-1].Before(dt) {
			series.Vals[n-1] = *vals[idx]
			continue
		}

		series.Dates = append(series.Dates, dt)
		series.Vals = append(series.Vals, *vals[idx])
	}

	return series
}

func (result *yahooResult) dividends() *dataframe.Series {
	loc := result.location()

	type event struct {
		date   time.Time
		amount float64
	}

	events := make([]event, 0, len(result.Events.Dividends))
	for _, div := range result.Events.Dividends {
		if div.Amount <= 0 {
			continue
		}
		events = append(events, event{date: dataframe.DateOf(time.Unix(div.Date, 0).In(loc)), amount: div.Amount})
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].date.Before(events[j].date)
	})

	series := dataframe.NewSeries(result.Meta.Symbol, make([]time.Time, 0, len(events)), make([]float64, 0, len(events)))
	for _, ev := range events {
		if n := len(series.Dates); n > 0 && series.Dates[n-1].Equal(ev.date) {
			continue
		}
		series.Dates = append(series.Dates, ev.date)
		series.Vals = append(series.Vals, ev.amount)
	}

	return series
}

func (result *yahooResult) history(ticker string) *History {
	name := strings.TrimSpace(result.Meta.LongName)
	if name == "" {
		name = strings.TrimSpace(result.Meta.ShortName)
	}
	if name == "" {
		name = ticker
	}

	hist := &History{
		Ticker:     ticker,
		Name:       name,
		Adjusted:   result.closes(true),
		Unadjusted: result.closes(false),
		Dividends:  result.dividends(),
	}

	hist.Adjusted.Name = ticker
	hist.Unadjusted.Name = ticker
	hist.Dividends.Name = ticker

	return hist
}
