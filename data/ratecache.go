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
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog/log"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/penny-vault/pv-metrics/dataframe"
)

const (
	DefaultRiskFreeRate = 0.03
	RateCacheFileName   = "treasury_rates.parquet"

	currentRateLookback = 5
)

type rateRecord struct {
	Date string  `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Rate float64 `parquet:"name=rate, type=DOUBLE"`
}

// RateCache keeps a local copy of the risk free rate history. The cache is
// only ever extended forward; dates already cached are never fetched again.
type RateCache struct {
	path   string
	source RateSource
	now    func() time.Time
}

type RateCacheOption func(*RateCache)

// WithRateClock replaces the clock used to determine the current rate
func WithRateClock(now func() time.Time) RateCacheOption {
	return func(rc *RateCache) {
		rc.now = now
	}
}

func NewRateCache(path string, source RateSource, opts ...RateCacheOption) *RateCache {
	rc := &RateCache{
		path:   path,
		source: source,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(rc)
	}

	return rc
}

// Path returns the location of the parquet file backing the cache
func (rc *RateCache) Path() string {
	return rc.path
}

// GetRates returns the rates between begin and end (inclusive). When the
// cache ends more than a day before end the missing days are downloaded,
// appended, and persisted. An empty series is returned if there is neither
// cached nor downloadable data.
func (rc *RateCache) GetRates(ctx context.Context, begin, end time.Time) *dataframe.Series {
	begin = dataframe.DateOf(begin)
	end = dataframe.DateOf(end)

	cached, err := rc.Load()
	if err != nil {
		log.Warn().Err(err).Str("Path", rc.path).Msg("ignoring unreadable rate cache")
		cached = dataframe.NewSeries(TreasuryBillSymbol, []time.Time{}, []float64{})
	}

	gap := &Interval{Begin: begin, End: end}
	if cached.Len() > 0 {
		last, _ := cached.Last()
		served := &Interval{Begin: cached.Dates[0], End: last.AddDate(0, 0, 1)}
		if served.Contains(&Interval{Begin: end, End: end}) {
			return cached.Trim(begin, end)
		}
		gap.Begin = last.AddDate(0, 0, 1)
	}

	if gap.Valid() != nil || rc.source == nil {
		return cached.Trim(begin, end)
	}

	log.Info().Object("Interval", gap).Msg("downloading risk free rates")
	fetched, err := rc.source.FetchRates(ctx, gap)
	if err != nil {
		log.Warn().Err(err).Object("Interval", gap).Msg("could not download risk free rates")
		return cached.Trim(begin, end)
	}

	combined := appendForward(cached, fetched)
	if combined.Len() > cached.Len() {
		if err := rc.save(combined); err != nil {
			log.Error().Err(err).Str("Path", rc.path).Msg("could not save rate cache")
		}
	}

	return combined.Trim(begin, end)
}

// GetCurrentRate returns the most recent rate of the last few days or
// DefaultRiskFreeRate when none is available
func (rc *RateCache) GetCurrentRate(ctx context.Context) float64 {
	now := rc.now()
	rates := rc.GetRates(ctx, now.AddDate(0, 0, -currentRateLookback), now)
	if rates.Len() == 0 {
		log.Warn().Float64("Rate", DefaultRiskFreeRate).Err(ErrRateUnavailable).Msg("using default risk free rate")
		return DefaultRiskFreeRate
	}

	_, rate := rates.Last()
	return rate
}

// Load reads the cached series; a missing cache file is an empty series
func (rc *RateCache) Load() (*dataframe.Series, error) {
	series := dataframe.NewSeries(TreasuryBillSymbol, []time.Time{}, []float64{})

	if _, err := os.Stat(rc.path); errors.Is(err, fs.ErrNotExist) {
		return series, nil
	}

	fr, err := local.NewLocalFileReader(rc.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRateCacheCorrupt, err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(rateRecord), 1)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRateCacheCorrupt, err)
	}
	defer pr.ReadStop()

	records := make([]rateRecord, int(pr.GetNumRows()))
	if err := pr.Read(&records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRateCacheCorrupt, err)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date < records[j].Date
	})

	for _, rec := range records {
		dt, err := time.Parse("2006-01-02", rec.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRateCacheCorrupt, err)
		}

		if n := series.Len(); n > 0 && series.Dates[n-1].Equal(dt) {
			continue
		}

		series.Dates = append(series.Dates, dt)
		series.Vals = append(series.Vals, rec.Rate)
	}

	return series, nil
}

// save writes the series to a pending file next to the cache and atomically
// replaces the cache with it
func (rc *RateCache) save(series *dataframe.Series) error {
	dir := filepath.Dir(rc.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	pending, err := renameio.NewPendingFile(rc.path, renameio.WithTempDir(dir), renameio.WithPermissions(0o644))
	if err != nil {
		return err
	}
	defer pending.Cleanup()

	pw, err := writer.NewParquetWriterFromWriter(pending, new(rateRecord), 1)
	if err != nil {
		return err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for idx, dt := range series.Dates {
		if err := pw.Write(rateRecord{Date: dt.Format("2006-01-02"), Rate: series.Vals[idx]}); err != nil {
			return err
		}
	}

	if err := pw.WriteStop(); err != nil {
		return err
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return err
	}

	log.Debug().Str("Path", rc.path).Int("NumRates", series.Len()).Msg("saved rate cache")
	return nil
}

// appendForward returns cached extended with the observations of fetched
// that are strictly after the last cached date
func appendForward(cached, fetched *dataframe.Series) *dataframe.Series {
	res := dataframe.NewSeries(cached.Name, append([]time.Time{}, cached.Dates...), append([]float64{}, cached.Vals...))

	for idx, dt := range fetched.Dates {
		dt = dataframe.DateOf(dt)
		if n := res.Len(); n > 0 && !res.Dates[n-1].Before(dt) {
			continue
		}
		res.Dates = append(res.Dates, dt)
		res.Vals = append(res.Vals, fetched.Vals[idx])
	}

	return res
}
