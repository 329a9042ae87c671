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
	"fmt"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/penny-vault/pv-metrics/metrics"
	"github.com/penny-vault/pv-metrics/workbook"
)

var (
	metricCmdFormat    string
	metricCmdRecompute bool
	metricCmdPrices    int
)

func init() {
	metricCmd.Flags().StringVar(&metricCmdFormat, "format", "table", "Output format, one of: `table` or `json`")
	metricCmd.Flags().BoolVar(&metricCmdRecompute, "recompute", false, "Compute metrics from the prices instead of reading the metrics sheet")
	metricCmd.Flags().IntVar(&metricCmdPrices, "prices", 0, "Also print the last N adjusted prices")
	rootCmd.AddCommand(metricCmd)
}

var metricCmd = &cobra.Command{
	Use:   "metrics <workbook>",
	Short: "Print the metrics stored in a workbook",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		shutdown := setup()
		defer shutdown()

		yahoo := newYahoo()
		rates, err := newRateCache(yahoo)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid rate source")
		}

		engine := metrics.NewEngine(rates)
		store := workbook.New(args[0], engine)
		if err := store.Load(); err != nil {
			log.Fatal().Err(err).Str("Path", args[0]).Msg("could not load workbook")
		}

		records := store.Metrics()
		if metricCmdRecompute || len(records) == 0 {
			records = make([]*metrics.Record, 0, len(store.Tickers()))
			for _, ticker := range store.Tickers() {
				hist, err := store.ReadTicker(ticker)
				if err != nil {
					log.Error().Err(err).Str("Ticker", ticker).Msg("could not read ticker")
					continue
				}
				records = append(records, engine.Compute(cmd.Context(), ticker, hist.Name, hist.Adjusted, hist.Dividends))
			}
		}

		switch metricCmdFormat {
		case "json":
			out, err := json.MarshalIndent(records, "", "  ")
			if err != nil {
				log.Fatal().Err(err).Msg("could not encode metrics")
			}
			fmt.Println(string(out))
		default:
			fmt.Println(metrics.Table(records))
		}

		if metricCmdPrices > 0 {
			fmt.Println(store.Table(workbook.Adjusted).Tail(metricCmdPrices).Table())
		}
	},
}
