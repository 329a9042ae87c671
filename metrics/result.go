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
	"math"
	"strconv"
)

// Result is the outcome of a single metric. A metric that lacks enough data
// is unavailable rather than zero.
type Result struct {
	Value     float64
	Available bool
}

// Computed wraps v as an available result; non-finite values are unavailable
func Computed(v float64) Result {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Unavailable()
	}
	return Result{Value: v, Available: true}
}

func Unavailable() Result {
	return Result{}
}

// MarshalJSON encodes unavailable results as null
func (r Result) MarshalJSON() ([]byte, error) {
	if !r.Available {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(r.Value, 'g', -1, 64)), nil
}

func (r Result) String() string {
	if !r.Available {
		return "N/A"
	}
	return strconv.FormatFloat(r.Value, 'f', 4, 64)
}
