package historical

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/hrpfolio/internal/modules/optimization"
)

// ErrInvalidCSV is returned for malformed CSV input.
var ErrInvalidCSV = errors.New("invalid csv")

type csvTable struct {
	columns []string
	dates   []string
	rows    [][]float64
}

// readCSVTable reads a header of "date,<asset>..." followed by one row per
// date. Empty and NaN cells are kept as NaN. Rows are returned sorted by date.
func readCSVTable(r io.Reader) (*csvTable, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidCSV)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("%w: header needs a date column and at least one asset", ErrInvalidCSV)
	}

	columns := make([]string, len(header)-1)
	seen := make(map[string]struct{}, len(columns))
	for i, h := range header[1:] {
		name := strings.TrimSpace(h)
		if name == "" {
			return nil, fmt.Errorf("%w: empty asset name in column %d", ErrInvalidCSV, i+2)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: duplicate asset %q", ErrInvalidCSV, name)
		}
		seen[name] = struct{}{}
		columns[i] = name
	}

	type row struct {
		date   time.Time
		raw    string
		values []float64
	}
	var rows []row
	dates := make(map[string]struct{})
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
		}
		line, _ := reader.FieldPos(0)

		t, err := ParseDate(strings.TrimSpace(record[0]))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: bad date %q", ErrInvalidCSV, line, record[0])
		}
		key := FormatDate(t)
		if _, dup := dates[key]; dup {
			return nil, fmt.Errorf("%w: line %d: duplicate date %s", ErrInvalidCSV, line, key)
		}
		dates[key] = struct{}{}

		values := make([]float64, len(columns))
		for i, cell := range record[1:] {
			values[i], err = parseCell(cell)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d, column %s: %v", ErrInvalidCSV, line, columns[i], err)
			}
		}
		rows = append(rows, row{date: t, raw: key, values: values})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].date.Before(rows[j].date) })

	table := &csvTable{columns: columns}
	for _, r := range rows {
		table.dates = append(table.dates, r.raw)
		table.rows = append(table.rows, r.values)
	}
	return table, nil
}

func parseCell(cell string) (float64, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" || strings.EqualFold(cell, "nan") {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", cell)
	}
	if math.IsInf(v, 0) {
		return 0, fmt.Errorf("infinite value")
	}
	return v, nil
}

func (t *csvTable) column(i int) []float64 {
	col := make([]float64, len(t.rows))
	for r, values := range t.rows {
		col[r] = values[i]
	}
	return col
}

// ReadPricesCSV reads closing prices, one column per asset, into a TimeSeries.
func ReadPricesCSV(r io.Reader) (TimeSeries, error) {
	table, err := readCSVTable(r)
	if err != nil {
		return TimeSeries{}, err
	}

	ts := TimeSeries{
		Symbols: table.columns,
		Dates:   table.dates,
		Data:    make(map[string][]float64, len(table.columns)),
	}
	for i, symbol := range table.columns {
		ts.Data[symbol] = table.column(i)
	}
	return ts, nil
}

// ReadReturnsCSV reads periodic returns, one column per asset.
func ReadReturnsCSV(r io.Reader) (optimization.ReturnsMatrix, error) {
	table, err := readCSVTable(r)
	if err != nil {
		return optimization.ReturnsMatrix{}, err
	}

	dates := make([]time.Time, len(table.dates))
	for i, d := range table.dates {
		// Already validated by readCSVTable.
		dates[i], _ = ParseDate(d)
	}
	series := make(map[string][]float64, len(table.columns))
	for i, asset := range table.columns {
		series[asset] = table.column(i)
	}
	return optimization.NewReturnsMatrix(dates, table.columns, series)
}
