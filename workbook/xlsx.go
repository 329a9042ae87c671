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
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog/log"
	"github.com/tealeg/xlsx/v3"

	"github.com/penny-vault/pv-metrics/dataframe"
	"github.com/penny-vault/pv-metrics/metrics"
)

const (
	dateHeader    = "Date"
	percentFormat = "0.0%"
	ratioFormat   = "0.00"
	rateFormat    = "0.00%"
	naFormula     = "NA()"
)

var (
	// day zero of the 1900 date system as used by spreadsheets
	excelEpoch  = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)
	dateLayouts = []string{"2006-01-02", "01/02/2006", "1/2/2006", "1/2/06", "2006-01-02 15:04:05"}
)

type contents struct {
	tables  map[Kind]*dataframe.DataFrame
	records []*metrics.Record
}

func readWorkbook(path string) (*contents, error) {
	wb, err := xlsx.OpenFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, storageError(path, err)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrStorageCorrupt, path, err)
	}

	res := &contents{
		tables: make(map[Kind]*dataframe.DataFrame, len(kinds)),
	}

	for _, kind := range kinds {
		sheet, ok := wb.Sheet[kind.SheetName()]
		if !ok {
			return nil, fmt.Errorf("%w: %s: missing sheet %q", ErrStorageCorrupt, path, kind.SheetName())
		}

		df, err := readTable(sheet)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: sheet %q: %v", ErrStorageCorrupt, path, kind.SheetName(), err)
		}
		res.tables[kind] = df
	}

	if sheet, ok := wb.Sheet[MetricsSheet]; ok {
		records, err := readMetrics(sheet)
		if err != nil {
			log.Warn().Err(err).Str("Path", path).Msg("ignoring unreadable metrics sheet")
		}
		res.records = records
	}

	return res, nil
}

func readTable(sheet *xlsx.Sheet) (*dataframe.DataFrame, error) {
	var df *dataframe.DataFrame

	err := sheet.ForEachRow(func(row *xlsx.Row) error {
		if df == nil {
			cols, err := readHeader(row)
			if err != nil {
				return err
			}
			df = dataframe.New(cols...)
			return nil
		}

		first := row.GetCell(0)
		if strings.TrimSpace(first.Value) == "" {
			return nil
		}

		dt, err := cellDate(first)
		if err != nil {
			return err
		}

		df.Dates = append(df.Dates, dt)
		for idx := range df.ColNames {
			df.Vals[idx] = append(df.Vals[idx], cellFloat(row.GetCell(idx+1)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if df == nil {
		return dataframe.New(), nil
	}

	df.Sort()
	if err := df.Validate(); err != nil {
		return nil, err
	}

	return df, nil
}

// readHeader returns the ticker columns of a table header
func readHeader(row *xlsx.Row) ([]string, error) {
	cells := []string{}
	err := row.ForEachCell(func(cell *xlsx.Cell) error {
		cells = append(cells, strings.TrimSpace(cell.Value))
		return nil
	})
	if err != nil {
		return nil, err
	}

	for len(cells) > 0 && cells[len(cells)-1] == "" {
		cells = cells[:len(cells)-1]
	}

	if len(cells) == 0 || !strings.EqualFold(cells[0], dateHeader) {
		return nil, errors.New("first column must be Date")
	}

	seen := make(map[string]bool, len(cells))
	for _, ticker := range cells[1:] {
		if ticker == "" || seen[ticker] {
			return nil, fmt.Errorf("invalid ticker column %q", ticker)
		}
		seen[ticker] = true
	}

	return cells[1:], nil
}

func cellDate(cell *xlsx.Cell) (time.Time, error) {
	if serial, err := cell.Float(); err == nil {
		return excelEpoch.AddDate(0, 0, int(math.Round(serial))), nil
	}

	val := strings.TrimSpace(cell.Value)
	for _, layout := range dateLayouts {
		if dt, err := time.Parse(layout, val); err == nil {
			return dataframe.DateOf(dt), nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid date %q", val)
}

// cellFloat returns the cell's number or NaN for blanks, errors and text
func cellFloat(cell *xlsx.Cell) float64 {
	val, err := cell.Float()
	if err != nil || math.IsInf(val, 0) {
		return math.NaN()
	}
	return val
}

func readMetrics(sheet *xlsx.Sheet) ([]*metrics.Record, error) {
	records := []*metrics.Record{}
	width := len(metrics.Order) + 3
	year := time.Now().Year()
	first := true

	err := sheet.ForEachRow(func(row *xlsx.Row) error {
		if first {
			first = false
			prior := strings.TrimSuffix(strings.TrimSpace(row.GetCell(2+metricIndex(metrics.PriorYearReturn)).Value), "%")
			if y, err := strconv.Atoi(prior); err == nil {
				year = y + 1
			}
			if strings.TrimSpace(row.GetCell(width-1).Value) != metrics.RateHeader {
				return errors.New("unexpected metrics header")
			}
			return nil
		}

		ticker := strings.TrimSpace(row.GetCell(0).Value)
		if ticker == "" {
			return nil
		}

		rec := metrics.NewRecord(ticker, strings.TrimSpace(row.GetCell(1).Value), year)
		for idx, metric := range metrics.Order {
			cell := row.GetCell(idx + 2)
			if strings.TrimSpace(cell.Value) == "" {
				rec.Values[metric] = metrics.Unavailable()
				continue
			}
			rec.Values[metric] = metrics.Computed(cellFloat(cell))
		}

		if rate, err := row.GetCell(width - 1).Float(); err == nil {
			rec.RiskFreeRate = rate
		}

		records = append(records, rec)
		return nil
	})

	return records, err
}

func metricIndex(metric string) int {
	for idx, name := range metrics.Order {
		if name == metric {
			return idx
		}
	}
	return -1
}

func writeWorkbook(path string, tables map[Kind]*dataframe.DataFrame, records []*metrics.Record) error {
	wb := xlsx.NewFile()

	for _, kind := range kinds {
		sheet, err := wb.AddSheet(kind.SheetName())
		if err != nil {
			return err
		}
		writeTable(sheet, tables[kind])
	}

	sheet, err := wb.AddSheet(MetricsSheet)
	if err != nil {
		return err
	}
	writeMetrics(sheet, records)

	return save(wb, path)
}

func writeTable(sheet *xlsx.Sheet, df *dataframe.DataFrame) {
	header := sheet.AddRow()
	header.AddCell().SetString(dateHeader)
	for _, ticker := range df.ColNames {
		header.AddCell().SetString(ticker)
	}

	for rowIdx, dt := range df.Dates {
		row := sheet.AddRow()
		row.AddCell().SetDate(dt)
		for _, col := range df.Vals {
			cell := row.AddCell()
			if math.IsNaN(col[rowIdx]) {
				cell.SetFormula(naFormula)
				continue
			}
			cell.SetFloat(col[rowIdx])
		}
	}
}

func writeMetrics(sheet *xlsx.Sheet, records []*metrics.Record) {
	year := time.Now().Year()
	if len(records) > 0 {
		year = records[0].Year
	}

	header := sheet.AddRow()
	for _, title := range metrics.Headers(year) {
		header.AddCell().SetString(title)
	}

	for _, rec := range records {
		row := sheet.AddRow()
		row.AddCell().SetString(rec.Ticker)
		row.AddCell().SetString(rec.Name)

		for _, metric := range metrics.Order {
			cell := row.AddCell()
			res := rec.Get(metric)
			if !res.Available {
				continue
			}

			if metrics.IsPercent(metric) {
				cell.SetFloatWithFormat(res.Value, percentFormat)
			} else {
				cell.SetFloatWithFormat(res.Value, ratioFormat)
			}
		}

		row.AddCell().SetFloatWithFormat(rec.RiskFreeRate, rateFormat)
	}
}

// save writes the workbook to a pending file in the destination directory
// and atomically replaces path once the data is on disk
func save(wb *xlsx.File, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return storageError(path, err)
	}

	if err := checkWritable(path); err != nil {
		return err
	}

	pending, err := renameio.NewPendingFile(path, renameio.WithTempDir(dir), renameio.WithPermissions(0o644))
	if err != nil {
		return storageError(path, err)
	}
	defer pending.Cleanup()

	if err := wb.Write(pending); err != nil {
		return fmt.Errorf("could not serialize workbook: %w", err)
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return storageError(path, err)
	}

	return nil
}

// checkWritable opens an existing workbook for writing without truncating it
func checkWritable(path string) error {
	fh, err := os.OpenFile(path, os.O_WRONLY, 0)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return storageError(path, err)
	}
	return fh.Close()
}

func storageError(path string, err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %s is open in another program or is read-only; close it and try again: %v", ErrStorageLocked, path, err)
	}
	return fmt.Errorf("could not save %s: %w", path, err)
}
