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

package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/penny-vault/pv-metrics/common"
	"github.com/penny-vault/pv-metrics/data"
	"github.com/penny-vault/pv-metrics/dataframe"
	"github.com/penny-vault/pv-metrics/metrics"
	"github.com/penny-vault/pv-metrics/workbook"
)

const (
	defaultStartDate = "2020-01-01"

	opFetch  = "fetch"
	opMerge  = "merge"
	opWrite  = "write"
	opReload = "reload"
)

var ErrBatchAborted = errors.New("batch aborted after the workbook could not be reloaded")

// Storage is the workbook store an update writes into
type Storage interface {
	Path() string
	Load() error
	MergeTicker(ticker string, adjusted, unadjusted, dividends *dataframe.Series) error
	SetName(ticker, name string)
	Write(ctx context.Context) error
}

var (
	updateCmdStart string
	updateCmdFile  string
)

func init() {
	updateCmd.Flags().StringVar(&updateCmdStart, "start", defaultStartDate, "First date to download, specified as YYYY-MM-DD")
	updateCmd.Flags().StringVar(&updateCmdFile, "file", "", "Existing workbook to update; a new workbook is created in --output-dir when blank")
	rootCmd.AddCommand(updateCmd)
}

var updateCmd = &cobra.Command{
	Use:   "update <ticker> [ticker...]",
	Short: "Download prices for the tickers and save them with their metrics",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		shutdown := setup()
		defer shutdown()

		start, err := time.Parse("2006-01-02", updateCmdStart)
		if err != nil {
			log.Fatal().Err(err).Str("InputStr", updateCmdStart).Msg("could not parse start date - expected format 2006-01-02")
		}

		return runUpdate(cmd.Context(), args, start, updateCmdFile)
	},
}

// Failure records why one ticker of a batch could not be saved
type Failure struct {
	Ticker string
	Op     string
	Err    error
}

// Summary is the outcome of a batch update
type Summary struct {
	RunID    string
	Total    int
	Saved    []string
	Failures []*Failure
}

// ExitCode is 0 when every ticker was saved, 1 when none were, and 2 otherwise
func (s *Summary) ExitCode() int {
	switch {
	case len(s.Saved) == s.Total:
		return 0
	case len(s.Saved) == 0:
		return 1
	default:
		return 2
	}
}

func runUpdate(ctx context.Context, tickers []string, start time.Time, file string) error {
	common.ArrToUpper(tickers)

	yahoo := newYahoo()
	rates, err := newRateCache(yahoo)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid rate source")
	}

	path := file
	if path == "" {
		path = workbook.NewFileName(viper.GetString("output.dir"), tickers, time.Now().In(common.GetTimezone()))
	}

	store := workbook.New(path, metrics.NewEngine(rates))
	if err := store.Load(); err != nil {
		log.Error().Err(err).Str("Path", path).Msg("could not load workbook")
		return err
	}

	interval := &data.Interval{Begin: start, End: time.Now().In(common.GetTimezone())}
	summary := Update(ctx, yahoo, store, tickers, interval)

	if code := summary.ExitCode(); code != 0 {
		return &exitError{code: code, msg: fmt.Sprintf("saved %d of %d tickers", len(summary.Saved), summary.Total)}
	}
	return nil
}

// Update downloads each ticker, merges it into the store and writes the
// workbook. A failing ticker is logged and skipped; the remaining tickers
// are still processed. When a failed write cannot be rolled back by
// reloading the workbook the rest of the batch is abandoned so the saved
// tickers are never overwritten.
func Update(ctx context.Context, acquirer data.Acquirer, store Storage, tickers []string, interval *data.Interval) *Summary {
	summary := &Summary{
		RunID: uuid.New().String(),
		Total: len(tickers),
		Saved: make([]string, 0, len(tickers)),
	}

	runLog := log.With().Str("RunID", summary.RunID).Str("Path", store.Path()).Logger()
	runLog.Info().Strs("Tickers", tickers).Object("Interval", interval).Msg("starting update")

	for idx, ticker := range tickers {
		subLog := runLog.With().Str("Ticker", ticker).Logger()

		fail := func(op string, err error) {
			subLog.Error().Err(err).Str("Op", op).Msg("skipping ticker")
			summary.Failures = append(summary.Failures, &Failure{Ticker: ticker, Op: op, Err: err})
		}

		hist, err := acquirer.FetchHistory(ctx, ticker, interval)
		if err != nil {
			fail(opFetch, err)
			continue
		}

		if err := store.MergeTicker(ticker, hist.Adjusted, hist.Unadjusted, hist.Dividends); err != nil {
			fail(opMerge, err)
			continue
		}
		store.SetName(ticker, hist.Name)

		if err := store.Write(ctx); err != nil {
			fail(opWrite, err)
			if errors.Is(err, workbook.ErrStorageLocked) {
				subLog.Warn().Msg("close the workbook in any other program before running again")
			}

			// discard the unsaved merge so later writes only contain saved tickers
			if err := store.Load(); err != nil {
				subLog.Error().Err(err).Msg("could not reload workbook; abandoning remaining tickers")
				for _, remaining := range tickers[idx+1:] {
					summary.Failures = append(summary.Failures, &Failure{
						Ticker: remaining,
						Op:     opReload,
						Err:    fmt.Errorf("%w: %v", ErrBatchAborted, err),
					})
				}
				break
			}
			continue
		}

		summary.Saved = append(summary.Saved, ticker)
		subLog.Info().Int("NumPrices", hist.Adjusted.Len()).Msg("saved ticker")
	}

	runLog.Info().Int("Saved", len(summary.Saved)).Int("Total", summary.Total).Msgf("saved %d of %d tickers", len(summary.Saved), summary.Total)
	return summary
}
