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

package workbook

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const (
	filePrefix     = "dashboard_data"
	maxNameTickers = 3
)

// NewFileName returns the path of a new workbook in dir named after the
// time of the run and up to the first three tickers, e.g.
// dashboard_data_20230313_1605_VFIAX_PRIDX_VUSTX.xlsx
func NewFileName(dir string, tickers []string, now time.Time) string {
	parts := []string{filePrefix, now.Format("20060102_1504")}
	for idx, ticker := range tickers {
		if idx == maxNameTickers {
			break
		}
		ticker = strings.ToUpper(strings.TrimSpace(ticker))
		ticker = strings.NewReplacer("^", "", "/", "-", "\\", "-", ".", "-").Replace(ticker)
		if ticker != "" {
			parts = append(parts, ticker)
		}
	}
	return filepath.Join(dir, fmt.Sprintf("%s.xlsx", strings.Join(parts, "_")))
}
