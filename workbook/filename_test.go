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

package workbook_test

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-metrics/workbook"
)

var _ = Describe("NewFileName", func() {
	now := time.Date(2023, 3, 13, 16, 5, 0, 0, time.UTC)

	DescribeTable("names workbooks after the run",
		func(tickers []string, expected string) {
			Expect(workbook.NewFileName("out", tickers, now)).To(Equal(filepath.Join("out", expected)))
		},
		Entry("without tickers", nil, "dashboard_data_20230313_1605.xlsx"),
		Entry("with one ticker", []string{"vfiax"}, "dashboard_data_20230313_1605_VFIAX.xlsx"),
		Entry("with more than three tickers", []string{"A", "B", "C", "D"}, "dashboard_data_20230313_1605_A_B_C.xlsx"),
		Entry("with index symbols", []string{"^IRX", "BRK.B"}, "dashboard_data_20230313_1605_IRX_BRK-B.xlsx"),
	)
})
