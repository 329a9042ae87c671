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

package dataframe

import (
	"errors"
	"time"
)

// DataFrame stores a table of values organized by date. Vals is column
// major and math.NaN() marks a missing observation, e.g.:
//
//	Date        VFIAX  PRIDX
//	2023-01-03  1      4
//	2023-01-04  2      NaN
//	2023-01-05  3      6
//
// Vals[0][1] = 2
// Vals[1][1] = NaN
type DataFrame struct {
	Dates    []time.Time
	ColNames []string
	Vals     [][]float64
}

// Series is a single named column of date ordered observations
type Series struct {
	Name  string
	Dates []time.Time
	Vals  []float64
}

var (
	ErrDateIndexNotAligned = errors.New("date index does not align with values")
	ErrDateIndexNotSorted  = errors.New("date index must be strictly increasing")
	ErrNonFiniteValue      = errors.New("value is NaN or infinite")
	ErrNonPositiveValue    = errors.New("value must be greater than zero")
)
