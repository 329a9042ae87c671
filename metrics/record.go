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
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// Metric columns in the order they appear in the metrics table
const (
	Yield                 = "%Yield"
	Sharpe                = "Sharpe 2Y"
	DailyReturn           = "Day%"
	WeeklyReturn          = "Week%"
	MonthlyReturn         = "1MTH%"
	YearToDateReturn      = "YTD%"
	OneYearReturn         = "1YR%"
	PriorYearReturn       = "PriorYear%"
	SecondPriorYearReturn = "SecondPriorYear%"
	Annualized            = "Annualized%"
	AnnualVolatility      = "Volatility"
	Drawdown              = "Max_Drawdown"
	Sortino               = "Sortino"
	VaR95                 = "VaR 95%"

	TickerHeader = "Ticker"
	NameHeader   = "Name"
	RateHeader   = "RF Rate"
)

var Order = []string{
	Yield, Sharpe, DailyReturn, WeeklyReturn, MonthlyReturn, YearToDateReturn, OneYearReturn,
	PriorYearReturn, SecondPriorYearReturn, Annualized, AnnualVolatility, Drawdown, Sortino, VaR95,
}

// Record holds every metric of one ticker. Year is the calendar year the
// record was computed in; the prior year columns are relative to it.
type Record struct {
	Ticker       string            `json:"ticker"`
	Name         string            `json:"name"`
	Year         int               `json:"year"`
	Values       map[string]Result `json:"metrics"`
	RiskFreeRate float64           `json:"riskFreeRate"`
}

func NewRecord(ticker, name string, year int) *Record {
	return &Record{
		Ticker: ticker,
		Name:   name,
		Year:   year,
		Values: make(map[string]Result, len(Order)),
	}
}

// Get returns the named metric; metrics that were never set are unavailable
func (r *Record) Get(metric string) Result {
	return r.Values[metric]
}

// IsPercent reports whether the metric is a fraction displayed as a percentage
func IsPercent(metric string) bool {
	return metric != Sharpe && metric != Sortino
}

// Header returns the column title of metric for records computed in year
func Header(metric string, year int) string {
	switch metric {
	case PriorYearReturn:
		return fmt.Sprintf("%d%%", year-1)
	case SecondPriorYearReturn:
		return fmt.Sprintf("%d%%", year-2)
	default:
		return metric
	}
}

// Headers returns the full header row of the metrics table
func Headers(year int) []string {
	headers := make([]string, 0, len(Order)+3)
	headers = append(headers, TickerHeader, NameHeader)
	for _, metric := range Order {
		headers = append(headers, Header(metric, year))
	}
	return append(headers, RateHeader)
}

func formatResult(metric string, res Result) string {
	switch {
	case !res.Available:
		return ""
	case IsPercent(metric):
		return fmt.Sprintf("%.1f%%", res.Value*100)
	default:
		return fmt.Sprintf("%.2f", res.Value)
	}
}

// Table renders records as an ASCII table
func Table(records []*Record) string {
	if len(records) == 0 {
		return "<NO DATA>"
	}

	s := &strings.Builder{}
	table := tablewriter.NewWriter(s)
	table.SetHeader(Headers(records[0].Year))
	table.SetBorder(false)
	table.SetAutoFormatHeaders(false)

	for _, rec := range records {
		row := make([]string, 0, len(Order)+3)
		row = append(row, rec.Ticker, rec.Name)
		for _, metric := range Order {
			row = append(row, formatResult(metric, rec.Get(metric)))
		}
		row = append(row, fmt.Sprintf("%.2f%%", rec.RiskFreeRate*100))
		table.Append(row)
	}

	table.Render()
	return s.String()
}
