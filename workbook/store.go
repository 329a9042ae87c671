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

package workbook

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/penny-vault/pv-metrics/dataframe"
	"github.com/penny-vault/pv-metrics/metrics"
	"github.com/penny-vault/pv-metrics/observability/opentelemetry"
)

// Kind identifies one of the three price tables of a workbook
type Kind int

const (
	Adjusted Kind = iota
	Unadjusted
	Dividends
)

const (
	AdjustedSheet   = "Daily Prices"
	UnadjustedSheet = "Unadjusted Prices"
	DividendsSheet  = "Dividends"
	MetricsSheet    = "Metrics"
)

// SheetName returns the name of the sheet that stores the table
func (k Kind) SheetName() string {
	switch k {
	case Unadjusted:
		return UnadjustedSheet
	case Dividends:
		return DividendsSheet
	default:
		return AdjustedSheet
	}
}

var kinds = []Kind{Adjusted, Unadjusted, Dividends}

// TickerData is the history of one ticker with missing dates removed
type TickerData struct {
	Ticker     string
	Name       string
	Adjusted   *dataframe.Series
	Unadjusted *dataframe.Series
	Dividends  *dataframe.Series
}

// Store owns the price tables of every ticker kept in one workbook. All
// changes are made in memory and persisted by Write, which replaces the whole
// file.
type Store struct {
	path    string
	engine  *metrics.Engine
	tables  map[Kind]*dataframe.DataFrame
	names   map[string]string
	metrics []*metrics.Record
}

// New creates a store bound to path. Metrics are computed with engine when
// the store is written.
func New(path string, engine *metrics.Engine) *Store {
	s := &Store{
		path:   path,
		engine: engine,
		names:  make(map[string]string),
	}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.tables = map[Kind]*dataframe.DataFrame{
		Adjusted:   dataframe.New(),
		Unadjusted: dataframe.New(),
		Dividends:  dataframe.New(),
	}
	s.names = make(map[string]string)
	s.metrics = nil
}

func (s *Store) Path() string {
	return s.path
}

// Load replaces the in-memory tables with the contents of the backing file.
// A missing file empties the store; a file that cannot be read returns an
// error and keeps the current tables.
func (s *Store) Load() error {
	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		log.Debug().Str("Path", s.path).Msg("workbook does not exist; starting empty")
		s.reset()
		return nil
	}

	// an unreadable file leaves the in-memory tables as they were
	contents, err := readWorkbook(s.path)
	if err != nil {
		return err
	}

	names := make(map[string]string, len(contents.records))
	for _, rec := range contents.records {
		names[rec.Ticker] = rec.Name
	}

	s.tables = contents.tables
	s.names = names
	s.metrics = contents.records

	log.Info().Str("Path", s.path).Int("NumTickers", len(s.Tickers())).Int("NumDates", s.tables[Adjusted].Len()).Msg("loaded workbook")
	return nil
}

// MergeTicker upserts the ticker's column in each table. Other tickers keep
// their values and are NaN on dates only the incoming ticker has. Dividends
// that are not positive are dropped. An invalid series rejects the whole
// update and leaves every table unchanged.
func (s *Store) MergeTicker(ticker string, adjusted, unadjusted, dividends *dataframe.Series) error {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return fmt.Errorf("%w: empty ticker", ErrInvalidSeries)
	}

	if adjusted.Len() == 0 {
		return fmt.Errorf("%w: %s has no adjusted prices", ErrInvalidSeries, ticker)
	}

	incoming := map[Kind]*dataframe.Series{
		Adjusted:   normalize(ticker, adjusted),
		Unadjusted: normalize(ticker, unadjusted),
		Dividends: normalize(ticker, dividends).Filter(func(_ time.Time, amount float64) bool {
			return amount > 0
		}),
	}

	for _, kind := range kinds {
		if err := incoming[kind].Validate(kind != Dividends); err != nil {
			return fmt.Errorf("%w: %s %s: %v", ErrInvalidSeries, ticker, kind.SheetName(), err)
		}
	}

	merged := make(map[Kind]*dataframe.DataFrame, len(kinds))
	for _, kind := range kinds {
		merged[kind] = s.tables[kind].Upsert(incoming[kind])
	}
	s.tables = merged

	log.Debug().Str("Ticker", ticker).Int("NumPrices", incoming[Adjusted].Len()).Int("NumDividends", incoming[Dividends].Len()).Msg("merged ticker")
	return nil
}

// SetName records the display name used for the ticker in the metrics table
func (s *Store) SetName(ticker, name string) {
	s.names[strings.ToUpper(strings.TrimSpace(ticker))] = name
}

// Write computes metrics for every ticker and replaces the backing file
func (s *Store) Write(ctx context.Context) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "workbook.Write")
	defer span.End()

	span.SetAttributes(attribute.String("Path", s.path))

	tickers := s.Tickers()
	records := make([]*metrics.Record, 0, len(tickers))
	for _, ticker := range tickers {
		records = append(records, s.engine.Compute(ctx, ticker, s.names[ticker], s.tables[Adjusted].Column(ticker), s.tables[Dividends].Column(ticker)))
	}

	if err := writeWorkbook(s.path, s.tables, records); err != nil {
		opentelemetry.Fail(span, err, "write failed")
		return err
	}

	s.metrics = records
	log.Info().Str("Path", s.path).Int("NumTickers", len(tickers)).Msg("saved workbook")
	return nil
}

// ReadTicker returns the ticker's series or ErrTickerNotFound
func (s *Store) ReadTicker(ticker string) (*TickerData, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	adjusted := s.tables[Adjusted].Column(ticker)
	if adjusted == nil {
		return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, ticker)
	}

	data := &TickerData{
		Ticker:     ticker,
		Name:       s.names[ticker],
		Adjusted:   adjusted,
		Unadjusted: s.tables[Unadjusted].Column(ticker),
		Dividends:  s.tables[Dividends].Column(ticker),
	}

	if data.Unadjusted == nil {
		data.Unadjusted = dataframe.NewSeries(ticker, []time.Time{}, []float64{})
	}
	if data.Dividends == nil {
		data.Dividends = dataframe.NewSeries(ticker, []time.Time{}, []float64{})
	}

	return data, nil
}

// Tickers lists tickers in the order of the adjusted price columns
func (s *Store) Tickers() []string {
	tickers := make([]string, len(s.tables[Adjusted].ColNames))
	copy(tickers, s.tables[Adjusted].ColNames)
	return tickers
}

// Metrics returns the records of the last load or write
func (s *Store) Metrics() []*metrics.Record {
	return s.metrics
}

// Table returns a copy of the requested table
func (s *Store) Table(kind Kind) *dataframe.DataFrame {
	return s.tables[kind].Copy()
}

// normalize copies series under the ticker's name with time of day removed
func normalize(ticker string, series *dataframe.Series) *dataframe.Series {
	if series == nil {
		return dataframe.NewSeries(ticker, []time.Time{}, []float64{})
	}

	res := dataframe.NewSeries(ticker, make([]time.Time, len(series.Dates)), make([]float64, len(series.Vals)))

	for idx, dt := range series.Dates {
		res.Dates[idx] = dataframe.DateOf(dt)
	}
	copy(res.Vals, series.Vals)
	return res
}
