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
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/penny-vault/pv-metrics/common"
	"github.com/penny-vault/pv-metrics/data"
)

// exitError carries a process exit code other than 1
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string {
	return e.msg
}

func init() {
	// Logging configuration
	viper.BindEnv("log.level", "PVM_LOG_LEVEL")
	rootCmd.PersistentFlags().String("log-level", "info", "Logging level")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	viper.BindEnv("log.report_caller", "PVM_LOG_REPORT_CALLER")
	rootCmd.PersistentFlags().Bool("log-report-caller", false, "Log function name that called log statement")
	viper.BindPFlag("log.report_caller", rootCmd.PersistentFlags().Lookup("log-report-caller"))

	viper.BindEnv("log.output", "PVM_LOG_OUTPUT")
	rootCmd.PersistentFlags().String("log-output", "stderr", "Write logs to specified output one of: file path, `stdout`, or `stderr`")
	viper.BindPFlag("log.output", rootCmd.PersistentFlags().Lookup("log-output"))

	viper.BindEnv("log.pretty", "PVM_LOG_PRETTY")
	rootCmd.PersistentFlags().Bool("log-pretty", true, "Format logs for humans instead of JSON")
	viper.BindPFlag("log.pretty", rootCmd.PersistentFlags().Lookup("log-pretty"))

	// Output
	viper.BindEnv("output.dir", "PVM_OUTPUT_DIR")
	rootCmd.PersistentFlags().String("output-dir", ".", "Directory new workbooks are saved in")
	viper.BindPFlag("output.dir", rootCmd.PersistentFlags().Lookup("output-dir"))

	// Risk free rate
	viper.BindEnv("rate.cache", "PVM_RATE_CACHE")
	rootCmd.PersistentFlags().String("rate-cache", data.RateCacheFileName, "Parquet file the risk free rate history is cached in")
	viper.BindPFlag("rate.cache", rootCmd.PersistentFlags().Lookup("rate-cache"))

	viper.BindEnv("rate.source", "PVM_RATE_SOURCE")
	rootCmd.PersistentFlags().String("rate-source", "yahoo", "Where to download the risk free rate from, one of: `yahoo` or `fred`")
	viper.BindPFlag("rate.source", rootCmd.PersistentFlags().Lookup("rate-source"))

	// Acquisition
	viper.SetDefault("acquisition.request_delay", data.DefaultRequestDelay)
	viper.BindEnv("acquisition.request_delay", "PVM_REQUEST_DELAY")

	// Response cache
	viper.BindEnv("cache.redis_url", "REDIS_URL")
	rootCmd.PersistentFlags().String("redis-url", "", "Redis connection string used to share downloaded quotes")
	viper.BindPFlag("cache.redis_url", rootCmd.PersistentFlags().Lookup("redis-url"))

	// Tracing
	viper.BindEnv("otlp.endpoint", "OTLP_ENDPOINT")
	rootCmd.PersistentFlags().String("otlp-endpoint", "", "OpenTelemetry collector to send traces to, if blank tracing is disabled")
	viper.BindPFlag("otlp.endpoint", rootCmd.PersistentFlags().Lookup("otlp-endpoint"))
}

var rootCmd = &cobra.Command{
	Use:     common.ProgramName,
	Version: common.CurrentVersion.String(),
	Short:   "Download security prices and compute performance metrics",
	Long: `pvmetrics downloads daily prices and dividends, keeps them in a workbook
together with the unadjusted prices, and computes returns and risk metrics
for every ticker in the workbook.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		var exitErr *exitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		os.Exit(1)
	}
}
