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

package metrics

import (
	"gonum.org/v1/gonum/floats"

	"github.com/penny-vault/pv-metrics/dataframe"
)

// TrailingYield sums the dividends paid in the year ending on the last price
// date (both ends inclusive) and divides by the last close. A security without
// dividends yields 0.
func TrailingYield(prices, dividends *dataframe.Series) Result {
	if prices.Len() == 0 {
		return Unavailable()
	}

	lastDate, lastClose := prices.Last()
	if dividends.Len() == 0 {
		return Computed(0)
	}

	window := dividends.Trim(lastDate.AddDate(-1, 0, 0), lastDate)
	if window.Len() == 0 {
		return Computed(0)
	}

	return Computed(floats.Sum(window.Vals) / lastClose)
}
