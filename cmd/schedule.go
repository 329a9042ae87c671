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
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/penny-vault/pv-metrics/common"
)

var scheduleCmdSpec string

func init() {
	scheduleCmd.Flags().StringVar(&scheduleCmdSpec, "cron", "30 18 * * 1-5", "When to run the update, as a cron spec in New York time")
	scheduleCmd.Flags().StringVar(&updateCmdStart, "start", defaultStartDate, "First date to download, specified as YYYY-MM-DD")
	scheduleCmd.Flags().StringVar(&updateCmdFile, "file", "", "Workbook to keep up to date; each run creates a new workbook in --output-dir when blank")
	rootCmd.AddCommand(scheduleCmd)
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule <ticker> [ticker...]",
	Short: "Run the update on a schedule until interrupted",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		shutdown := setup()
		defer shutdown()

		start, err := time.Parse("2006-01-02", updateCmdStart)
		if err != nil {
			log.Fatal().Err(err).Str("InputStr", updateCmdStart).Msg("could not parse start date - expected format 2006-01-02")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		scheduler := cron.New(cron.WithLocation(common.GetTimezone()))
		_, err = scheduler.AddFunc(scheduleCmdSpec, func() {
			if err := runUpdate(ctx, append([]string{}, args...), start, updateCmdFile); err != nil {
				log.Error().Err(err).Msg("scheduled update did not save every ticker")
			}
		})
		if err != nil {
			log.Fatal().Err(err).Str("Spec", scheduleCmdSpec).Msg("invalid cron spec")
		}

		scheduler.Start()
		log.Info().Str("Spec", scheduleCmdSpec).Strs("Tickers", args).Msg("waiting for scheduled updates")

		<-ctx.Done()
		log.Info().Msg("stopping scheduler")
		<-scheduler.Stop().Done()
	},
}
