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

	"github.com/penny-vault/pv-metrics/dataframe"
)

// History is the daily history of a single security. All three series use
// calendar dates with the time of day stripped.
type History struct {
	Ticker     string
	Name       string
	Adjusted   *dataframe.Series
	Unadjusted *dataframe.Series
	Dividends  *dataframe.Series
}

// Acquirer downloads security history from a quote provider
type Acquirer interface {
	FetchHistory(ctx context.Context, ticker string, interval *Interval) (*History, error)
}

// RateSource downloads the annualized risk free rate as a decimal (0.0422 for 4.22%)
type RateSource interface {
	FetchRates(ctx context.Context, interval *Interval) (*dataframe.Series, error)
}
