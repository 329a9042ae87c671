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
	"time"
)

// DateOf strips the time of day from t, keeping the calendar date of t in
// its own location. The result is always midnight UTC.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NewSeries creates a series from parallel date and value slices
func NewSeries(name string, dates []time.Time, vals []float64) *Series {
	return &Series{
		Name:  name,
		Dates: dates,
		Vals:  vals,
	}
}

// Len returns the number of observations in the series
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Dates)
}

// Last returns the final observation of the series
func (s *Series) Last() (time.Time, float64) {
	if s.Len() == 0 {
		return time.Time{}, math.NaN()
	}
	return s.Dates[len(s.Dates)-1], s.Vals[len(s.Vals)-1]
}

// Filter returns a new series with the observations for which keep returns true
func (s *Series) Filter(keep func(time.Time, float64) bool) *Series {
	res := &Series{
		Name:  s.Name,
		Dates: make([]time.Time, 0, s.Len()),
		Vals:  make([]float64, 0, s.Len()),
	}

	for idx, dt := range s.Dates {
		if keep(dt, s.Vals[idx]) {
			res.Dates = append(res.Dates, dt)
			res.Vals = append(res.Vals, s.Vals[idx])
		}
	}

	return res
}

// PctChange returns the simple period over period returns of the series. The
// result has one fewer element than the series.
func (s *Series) PctChange() []float64 {
	if s.Len() < 2 {
		return []float64{}
	}

	res := make([]float64, len(s.Vals)-1)
	for idx := 1; idx < len(s.Vals); idx++ {
		res[idx-1] = s.Vals[idx]/s.Vals[idx-1] - 1
	}
	return res
}

// Tail returns the last n observations of the series
func (s *Series) Tail(n int) *Series {
	if n >= s.Len() {
		return s
	}
	if n < 0 {
		n = 0
	}

	start := s.Len() - n
	return &Series{
		Name:  s.Name,
		Dates: s.Dates[start:],
		Vals:  s.Vals[start:],
	}
}

// Trim the series to the specified date range (inclusive)
func (s *Series) Trim(begin, end time.Time) *Series {
	if s.Len() == 0 || end.Before(begin) {
		return &Series{Name: s.Name, Dates: []time.Time{}, Vals: []float64{}}
	}

	beginIdx, endIdx := searchRange(s.Dates, begin, end)
	return &Series{
		Name:  s.Name,
		Dates: s.Dates[beginIdx:endIdx],
		Vals:  s.Vals[beginIdx:endIdx],
	}
}

// Validate checks that dates are strictly increasing and that every value is
// finite. When positive is set every value must also be greater than zero.
func (s *Series) Validate(positive bool) error {
	if len(s.Dates) != len(s.Vals) {
		return fmt.Errorf("%w: %d dates for %d values", ErrDateIndexNotAligned, len(s.Dates), len(s.Vals))
	}

	for idx, val := range s.Vals {
		if idx > 0 && !s.Dates[idx-1].Before(s.Dates[idx]) {
			return fmt.Errorf("%w: %s follows %s", ErrDateIndexNotSorted, s.Dates[idx].Format("2006-01-02"), s.Dates[idx-1].Format("2006-01-02"))
		}

		if math.IsNaN(val) || math.IsInf(val, 0) {
			return fmt.Errorf("%w: %s", ErrNonFiniteValue, s.Dates[idx].Format("2006-01-02"))
		}

		if positive && val <= 0 {
			return fmt.Errorf("%w: %.4f on %s", ErrNonPositiveValue, val, s.Dates[idx].Format("2006-01-02"))
		}
	}

	return nil
}
