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
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	dataframe "github.com/rocketlaunchr/dataframe-go"
	imports "github.com/rocketlaunchr/dataframe-go/imports"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/penny-vault/pv-metrics/common"
	pvdataframe "github.com/penny-vault/pv-metrics/dataframe"
	"github.com/penny-vault/pv-metrics/observability/opentelemetry"
)

const (
	FredTreasuryBill = "DTB3"
	FredRequestDelay = time.Second
	fredDateColumn   = "observation_date"
)

var fredURL = "https://fred.stlouisfed.org"

// Fred downloads a daily rate series from the St. Louis Fed
type Fred struct {
	client   *http.Client
	symbol   string
	limiter  *RateLimiter
	attempts int
	backoff  time.Duration
}

type FredOption func(*Fred)

func WithFredRateLimiter(limiter *RateLimiter) FredOption {
	return func(f *Fred) {
		f.limiter = limiter
	}
}

// WithFredRetry sets the number of attempts per download and the initial wait between them
func WithFredRetry(attempts int, initial time.Duration) FredOption {
	return func(f *Fred) {
		f.attempts = attempts
		f.backoff = initial
	}
}

// NewFred creates a FRED rate source for the given series; an empty symbol selects DTB3
func NewFred(client *http.Client, symbol string, opts ...FredOption) *Fred {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if symbol == "" {
		symbol = FredTreasuryBill
	}

	f := &Fred{
		client:   client,
		symbol:   symbol,
		limiter:  NewRateLimiter(FredRequestDelay),
		attempts: MaxAttempts,
		backoff:  2 * time.Second,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// FetchRates downloads the series over interval and converts percents to decimals.
// FRED marks holidays with "." which are skipped.
func (f *Fred) FetchRates(ctx context.Context, interval *Interval) (*pvdataframe.Series, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "fred.FetchRates")
	defer span.End()

	span.SetAttributes(attribute.String("Symbol", f.symbol))

	if err := interval.Valid(); err != nil {
		return nil, err
	}

	df, dateName, err := f.loadDataForPeriod(ctx, interval)
	if err != nil {
		opentelemetry.Fail(span, err, "download failed")
		return nil, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
	}

	dateCol, err := df.NameToColumn(dateName)
	if err != nil {
		return nil, fmt.Errorf("%w: no date column in FRED response", ErrRateUnavailable)
	}

	valCol, err := df.NameToColumn(f.symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: no %s column in FRED response", ErrRateUnavailable, f.symbol)
	}

	series := pvdataframe.NewSeries(f.symbol, []time.Time{}, []float64{})
	dates := df.Series[dateCol]
	vals := df.Series[valCol]

	iterator := vals.ValuesIterator(dataframe.ValuesOptions{InitialRow: 0, Step: 1, DontReadLock: true})
	for {
		row, val, _ := iterator()
		if row == nil {
			break
		}

		rate, ok := val.(float64)
		if !ok || math.IsNaN(rate) {
			continue
		}

		dt, ok := dates.Value(*row, dataframe.Options{DontLock: true}).(time.Time)
		if !ok {
			continue
		}

		series.Dates = append(series.Dates, dt)
		series.Vals = append(series.Vals, rate/100.0)
	}

	log.Debug().Str("Symbol", f.symbol).Int("NumRates", series.Len()).Msg("downloaded FRED series")
	return series, nil
}

// loadDataForPeriod returns the parsed CSV along with the name of its date
// column; FRED has published both DATE and observation_date headers
func (f *Fred) loadDataForPeriod(ctx context.Context, interval *Interval) (*dataframe.DataFrame, string, error) {
	body, err := f.download(ctx, interval)
	if err != nil {
		return nil, "", err
	}

	dateName := common.DateIdx
	if header := strings.SplitN(string(body), "\n", 2)[0]; strings.Contains(header, fredDateColumn) {
		dateName = fredDateColumn
	}

	df, err := imports.LoadFromCSV(ctx, bytes.NewReader(body), imports.CSVLoadOptions{
		DictateDataType: map[string]interface{}{
			dateName: imports.Converter{
				ConcreteType: time.Time{},
				ConverterFunc: func(in interface{}) (interface{}, error) {
					return time.Parse("2006-01-02", strings.TrimSpace(in.(string)))
				},
			},
			f.symbol: imports.Converter{
				ConcreteType: float64(0),
				ConverterFunc: func(in interface{}) (interface{}, error) {
					v, err := strconv.ParseFloat(strings.TrimSpace(in.(string)), 64)
					if err != nil {
						return math.NaN(), nil
					}
					return v, nil
				},
			},
		},
	})

	return df, dateName, err
}

// download fetches the CSV, waiting on the rate limiter before every attempt
func (f *Fred) download(ctx context.Context, interval *Interval) ([]byte, error) {
	url := fmt.Sprintf("%s/graph/fredgraph.csv?mode=fred&id=%s&cosd=%s&coed=%s&fq=Daily&fam=avg", fredURL, f.symbol, interval.Begin.Format("2006-01-02"), interval.End.Format("2006-01-02"))

	var body []byte
	err := retry(ctx, f.attempts, f.backoff, func() error {
		if err := f.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode))
		case resp.StatusCode >= 400:
			return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
		}

		body, err = io.ReadAll(resp.Body)
		return err
	})

	return body, err
}
