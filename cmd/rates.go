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
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/penny-vault/pv-metrics/dataframe"
)

var ratesCmdHistory int

func init() {
	ratesCmd.Flags().IntVar(&ratesCmdHistory, "history", 0, "Print the last N cached rates")
	rootCmd.AddCommand(ratesCmd)
}

var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "Update the risk free rate cache and print the current rate",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		shutdown := setup()
		defer shutdown()

		cache, err := newRateCache(newYahoo())
		if err != nil {
			log.Fatal().Err(err).Msg("invalid rate source")
		}

		rate := cache.GetCurrentRate(cmd.Context())

		cached, err := cache.Load()
		if err != nil {
			log.Fatal().Err(err).Str("Path", cache.Path()).Msg("could not read rate cache")
		}

		fmt.Printf("Risk free rate: %.2f%%\n", rate*100)
		fmt.Printf("Cache: %s\n", cache.Path())
		if cached.Len() > 0 {
			last, _ := cached.Last()
			fmt.Printf("Cached: %s to %s (%d rates)\n", cached.Dates[0].Format("2006-01-02"), last.Format("2006-01-02"), cached.Len())
		}

		if ratesCmdHistory > 0 {
			df := dataframe.New().Upsert(cached)
			fmt.Println(df.Tail(ratesCmdHistory).Table())
		}

		log.Debug().Time("Now", time.Now()).Float64("Rate", rate).Msg("rates command finished")
	},
}
