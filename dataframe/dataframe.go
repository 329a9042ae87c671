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
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
)

// New creates an empty dataframe with the given columns
func New(colNames ...string) *DataFrame {
	df := &DataFrame{
		Dates:    []time.Time{},
		ColNames: make([]string, len(colNames)),
		Vals:     make([][]float64, len(colNames)),
	}

	copy(df.ColNames, colNames)
	for idx := range df.Vals {
		df.Vals[idx] = []float64{}
	}

	return df
}

// ColIndex returns the index of the specified column or -1 if the column doesn't exist
func (df *DataFrame) ColIndex(colName string) int {
	for idx, val := range df.ColNames {
		if colName == val {
			return idx
		}
	}

	return -1
}

// ColCount returns the number of columns in the dataframe
func (df *DataFrame) ColCount() int {
	return len(df.ColNames)
}

// Column returns the named column as a series with all missing observations
// removed, or nil if the column does not exist
func (df *DataFrame) Column(colName string) *Series {
	colIdx := df.ColIndex(colName)
	if colIdx == -1 {
		return nil
	}

	series := &Series{
		Name:  colName,
		Dates: make([]time.Time, 0, len(df.Dates)),
		Vals:  make([]float64, 0, len(df.Dates)),
	}

	for rowIdx, val := range df.Vals[colIdx] {
		if math.IsNaN(val) {
			continue
		}
		series.Dates = append(series.Dates, df.Dates[rowIdx])
		series.Vals = append(series.Vals, val)
	}

	return series
}

// Copy creates a deep copy of the dataframe
func (df *DataFrame) Copy() *DataFrame {
	df2 := &DataFrame{
		ColNames: make([]string, len(df.ColNames)),
		Dates:    make([]time.Time, len(df.Dates)),
		Vals:     make([][]float64, len(df.Vals)),
	}

	copy(df2.ColNames, df.ColNames)
	copy(df2.Dates, df.Dates)

	for idx := range df2.Vals {
		df2.Vals[idx] = make([]float64, len(df.Vals[idx]))
		copy(df2.Vals[idx], df.Vals[idx])
	}

	return df2
}

// End returns the last date in the dataframe
func (df *DataFrame) End() time.Time {
	if len(df.Dates) == 0 {
		return time.Time{}
	}
	return df.Dates[len(df.Dates)-1]
}

// Len returns the number of rows in the dataframe
func (df *DataFrame) Len() int {
	return len(df.Dates)
}

// Sort orders the rows of the dataframe by date. Rows with equal dates keep
// their relative order.
func (df *DataFrame) Sort() *DataFrame {
	if sort.SliceIsSorted(df.Dates, func(i, j int) bool { return df.Dates[i].Before(df.Dates[j]) }) {
		return df
	}

	perm := make([]int, len(df.Dates))
	for idx := range perm {
		perm[idx] = idx
	}

	sort.SliceStable(perm, func(i, j int) bool {
		return df.Dates[perm[i]].Before(df.Dates[perm[j]])
	})

	dates := make([]time.Time, len(df.Dates))
	for newIdx, oldIdx := range perm {
		dates[newIdx] = df.Dates[oldIdx]
	}

	for colIdx, col := range df.Vals {
		sorted := make([]float64, len(col))
		for newIdx, oldIdx := range perm {
			sorted[newIdx] = col[oldIdx]
		}
		df.Vals[colIdx] = sorted
	}

	df.Dates = dates
	return df
}

// Start returns the first date of the dataframe
func (df *DataFrame) Start() time.Time {
	if len(df.Dates) == 0 {
		return time.Time{}
	}
	return df.Dates[0]
}

// Table prints an ASCII formatted table
func (df *DataFrame) Table() string {
	if len(df.Dates) == 0 {
		return "<NO DATA>"
	}

	tableCols := append([]string{"Date"}, df.ColNames...)

	s := &strings.Builder{}
	table := tablewriter.NewWriter(s)
	table.SetHeader(tableCols)
	footer := make([]string, len(tableCols))
	footer[0] = "Num Rows"
	if len(footer) > 1 {
		footer[1] = fmt.Sprintf("%d", df.Len())
	}
	table.SetFooter(footer)
	table.SetBorder(false)

	for idx, date := range df.Dates {
		row := make([]string, 0, len(df.Vals)+1)
		row = append(row, date.Format("2006-01-02"))

		for _, col := range df.Vals {
			if math.IsNaN(col[idx]) {
				row = append(row, "NA")
			} else {
				row = append(row, fmt.Sprintf("%.4f", col[idx]))
			}
		}

		table.Append(row)
	}

	table.Render()
	return s.String()
}

// Tail returns a new dataframe with the last n rows of df
func (df *DataFrame) Tail(n int) *DataFrame {
	if n >= df.Len() {
		return df.Copy()
	}
	if n < 0 {
		n = 0
	}

	start := df.Len() - n
	df2 := &DataFrame{
		ColNames: df.ColNames,
		Dates:    df.Dates[start:],
		Vals:     make([][]float64, len(df.Vals)),
	}

	for colIdx, col := range df.Vals {
		df2.Vals[colIdx] = col[start:]
	}

	return df2.Copy()
}

// Trim the dataframe to the specified date range (inclusive)
func (df *DataFrame) Trim(begin, end time.Time) *DataFrame {
	df2 := &DataFrame{
		ColNames: df.ColNames,
		Dates:    []time.Time{},
		Vals:     make([][]float64, len(df.Vals)),
	}

	for idx := range df2.Vals {
		df2.Vals[idx] = []float64{}
	}

	if end.Before(begin) || df.Len() == 0 || end.Before(df.Start()) || begin.After(df.End()) {
		return df2
	}

	beginIdx, endIdx := searchRange(df.Dates, begin, end)

	df2.Dates = df.Dates[beginIdx:endIdx]
	for colIdx, col := range df.Vals {
		df2.Vals[colIdx] = col[beginIdx:endIdx]
	}

	return df2
}

// Upsert merges series into the dataframe and returns the result as a new
// dataframe. The date index of the result is the sorted union of both
// indexes; other columns are NaN on dates they have never seen. Existing
// values of the series' column are overwritten on dates present in the
// series and kept everywhere else.
func (df *DataFrame) Upsert(series *Series) *DataFrame {
	dates := unionDates(df.Dates, series.Dates)

	res := &DataFrame{
		Dates:    dates,
		ColNames: make([]string, len(df.ColNames)),
		Vals:     make([][]float64, len(df.ColNames)),
	}
	copy(res.ColNames, df.ColNames)

	rowMap := positions(dates, df.Dates)
	for colIdx, col := range df.Vals {
		newCol := nanSlice(len(dates))
		for rowIdx, val := range col {
			newCol[rowMap[rowIdx]] = val
		}
		res.Vals[colIdx] = newCol
	}

	colIdx := res.ColIndex(series.Name)
	if colIdx == -1 {
		res.ColNames = append(res.ColNames, series.Name)
		res.Vals = append(res.Vals, nanSlice(len(dates)))
		colIdx = len(res.ColNames) - 1
	}

	rowMap = positions(dates, series.Dates)
	for rowIdx, val := range series.Vals {
		res.Vals[colIdx][rowMap[rowIdx]] = val
	}

	return res
}

// Validate checks that the date index is strictly increasing and that every
// column has one value per date
func (df *DataFrame) Validate() error {
	if len(df.ColNames) != len(df.Vals) {
		return fmt.Errorf("%w: %d column names for %d columns", ErrDateIndexNotAligned, len(df.ColNames), len(df.Vals))
	}

	for colIdx, col := range df.Vals {
		if len(col) != len(df.Dates) {
			return fmt.Errorf("%w: column %s has %d values for %d dates", ErrDateIndexNotAligned, df.ColNames[colIdx], len(col), len(df.Dates))
		}
	}

	for idx := 1; idx < len(df.Dates); idx++ {
		if !df.Dates[idx-1].Before(df.Dates[idx]) {
			return fmt.Errorf("%w: %s follows %s", ErrDateIndexNotSorted, df.Dates[idx].Format("2006-01-02"), df.Dates[idx-1].Format("2006-01-02"))
		}
	}

	return nil
}

// searchRange uses a binary search to find the half open index range [begin, end]
// covers in a sorted date index
func searchRange(dates []time.Time, begin, end time.Time) (int, int) {
	beginIdx := sort.Search(len(dates), func(i int) bool {
		return !dates[i].Before(begin)
	})

	endIdx := sort.Search(len(dates), func(i int) bool {
		return dates[i].After(end)
	})

	return beginIdx, endIdx
}

// unionDates merges two sorted date indexes into a sorted index without duplicates
func unionDates(a, b []time.Time) []time.Time {
	res := make([]time.Time, 0, len(a)+len(b))
	ii, jj := 0, 0
	for ii < len(a) || jj < len(b) {
		switch {
		case jj == len(b) || (ii < len(a) && a[ii].Before(b[jj])):
			res = append(res, a[ii])
			ii++
		case ii == len(a) || b[jj].Before(a[ii]):
			res = append(res, b[jj])
			jj++
		default:
			res = append(res, a[ii])
			ii++
			jj++
		}
	}
	return res
}

// positions maps each date of subset to its row in the sorted superset
func positions(superset, subset []time.Time) []int {
	res := make([]int, len(subset))
	jj := 0
	for ii, dt := range subset {
		for !superset[jj].Equal(dt) {
			jj++
		}
		res[ii] = jj
	}
	return res
}

func nanSlice(n int) []float64 {
	vals := make([]float64, n)
	for idx := range vals {
		vals[idx] = math.NaN()
	}
	return vals
}
