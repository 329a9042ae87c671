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
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/penny-vault/pv-metrics/common"
	"github.com/penny-vault/pv-metrics/data"
	"github.com/penny-vault/pv-metrics/observability/opentelemetry"
)

// setup configures logging, the response cache and tracing. The returned
// function flushes traces and must be called before the command exits.
func setup() func() {
	common.SetupLogging()

	if err := common.SetupCache(); err != nil {
		log.Fatal().Err(err).Msg("could not initialize cache")
	}

	shutdown, err := opentelemetry.Setup()
	if err != nil {
		log.Fatal().Err(err).Msg("could not initialize tracing")
	}

	return func() {
		if err := shutdown(context.Background()); err != nil {
			log.Error().Err(err).Msg("could not flush traces")
		}
	}
}

func newYahoo() *data.Yahoo {
	delay := viper.GetDuration("acquisition.request_delay")
	return data.NewYahoo(data.WithRateLimiter(data.NewRateLimiter(delay)))
}

// newRateCache creates the risk free rate cache for the configured source.
// The yahoo source shares the client (and its rate limiter) with acquisition.
func newRateCache(yahoo *data.Yahoo) (*data.RateCache, error) {
	var source data.RateSource

	switch strings.ToLower(viper.GetString("rate.source")) {
	case "", "yahoo":
		source = yahoo
	case "fred":
		source = data.NewFred(nil, data.FredTreasuryBill)
	default:
		return nil, fmt.Errorf("%w: %s", data.ErrUnknownRateSource, viper.GetString("rate.source"))
	}

	return data.NewRateCache(viper.GetString("rate.cache"), source), nil
}
