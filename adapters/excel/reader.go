package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"lakeattr/adapters/stats/temporal"
	"lakeattr/domain/series"
	"lakeattr/internal/errors"
	"lakeattr/ports"
)

// DataReader handles reading Excel and CSV files
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	logger   *zap.Logger
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(filePath string, logger *zap.Logger) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" || ext == ".txt" {
		fileType = "csv"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DataReader{filePath: filePath, fileType: fileType, logger: logger}
}

// ReadData reads a table from the file. sheet is ignored for CSV; for Excel
// an empty sheet selects the first one.
func (r *DataReader) ReadData(sheet string) (*Table, error) {
	r.logger.Debug("reading table", zap.String("type", r.fileType), zap.String("path", r.filePath))

	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, errors.IOError(fmt.Sprintf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath), err)
	}

	switch r.fileType {
	case "csv":
		return r.readCSVData()
	case "xlsx":
		return r.readExcelData(sheet)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
}

// readExcelData reads one sheet into structured format
func (r *DataReader) readExcelData(sheet string) (*Table, error) {
	startTime := time.Now()
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, errors.IOError("failed to open Excel file", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.InvalidInput(fmt.Sprintf("%s has no sheets", r.filePath))
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.IOError(fmt.Sprintf("failed to read sheet %q", sheet), err)
	}
	r.logger.Debug("sheet read",
		zap.String("sheet", sheet),
		zap.Int("rows", len(rows)),
		zap.Duration("elapsed", time.Since(startTime)))

	if len(rows) < 2 {
		return nil, errors.InvalidInput("Excel sheet must have at least a header row and one data row")
	}

	return r.processRows(rows)
}

// readCSVData reads CSV data into structured format
func (r *DataReader) readCSVData() (*Table, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, errors.IOError("failed to open CSV file", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.IOError("failed to read CSV file", err)
	}

	if len(rows) < 2 {
		return nil, errors.InvalidInput("CSV file must have at least a header row and one data row")
	}

	return r.processRows(rows)
}

// processRows converts raw string rows into a Table. Fully blank rows are
// dropped.
func (r *DataReader) processRows(rows [][]string) (*Table, error) {
	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	for i, header := range headerRow {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(header, "\ufeff"))
	}

	table := &Table{Headers: headers}
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		rowData := make(RawRowData)
		blank := true

		for j, cell := range row {
			if j < len(headers) {
				value := strings.TrimSpace(cell)
				rowData[headers[j]] = value
				if value != "" {
					blank = false
				}
			}
		}
		if blank {
			continue
		}

		table.Rows = append(table.Rows, rowData)
		table.Lines = append(table.Lines, i+1)
	}

	r.logger.Debug("table processed",
		zap.String("type", r.fileType),
		zap.Int("columns", len(headers)),
		zap.Int("rows", len(table.Rows)))

	return table, nil
}

// SeriesReader loads annual series from CSV or Excel tables.
type SeriesReader struct {
	logger *zap.Logger
}

var _ ports.SeriesReaderPort = (*SeriesReader)(nil)

// NewSeriesReader creates a series reader.
func NewSeriesReader(logger *zap.Logger) *SeriesReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeriesReader{logger: logger.Named("excel")}
}

// ReadSeries reads the year and value columns of src. Rows outside
// src.Window and rows with a blank value are skipped; a value that is not a
// number is an error. With src.Aggregate set the time column holds dates
// and the rows of each year are collapsed into one value.
func (s *SeriesReader) ReadSeries(ctx context.Context, src ports.SeriesSource) (*series.AnnualSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if src.Path == "" || src.Column == "" {
		return nil, errors.InvalidInput("series source needs a path and a column")
	}

	table, err := NewDataReader(src.Path, s.logger).ReadData(src.Sheet)
	if err != nil {
		return nil, err
	}

	yearColumn := src.YearColumn
	if yearColumn == "" {
		yearColumn = table.Headers[0]
	}
	for _, col := range []string{yearColumn, src.Column} {
		if !table.HasColumn(col) {
			return nil, errors.InvalidInput(fmt.Sprintf("%s: column %q not found (have %s)",
				src.Path, col, strings.Join(table.Headers, ", ")))
		}
	}

	name := src.Name
	if name == "" {
		name = src.Column
	}

	agg, err := temporal.ParseAggregation(src.Aggregate)
	if err != nil {
		return nil, errors.InvalidInput(fmt.Sprintf("%s: %v", src.Path, err))
	}

	var (
		points  = make([]series.Point, 0, len(table.Rows))
		obs     []temporal.Observation
		skipped int
	)
	for i, row := range table.Rows {
		line := table.Lines[i]
		rawTime := row[yearColumn]
		if rawTime == "" {
			skipped++
			continue
		}
		var (
			year int
			at   time.Time
		)
		if agg == "" {
			year, err = parseYear(rawTime)
		} else {
			at, err = parseTime(rawTime)
			year = at.Year()
		}
		if err != nil {
			return nil, errors.InvalidInput(fmt.Sprintf("%s row %d: %v", src.Path, line, err))
		}
		if !src.Window.Contains(year) {
			continue
		}

		rawValue := row[src.Column]
		if rawValue == "" {
			skipped++
			continue
		}
		value, err := strconv.ParseFloat(rawValue, 64)
		if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
			return nil, errors.InvalidInput(fmt.Sprintf("%s row %d: %s value %q is not a finite number",
				src.Path, line, src.Column, rawValue))
		}
		if agg == "" {
			points = append(points, series.Point{Year: year, Value: value})
		} else {
			obs = append(obs, temporal.Observation{Time: at, Value: value})
		}
	}

	if skipped > 0 {
		s.logger.Debug("blank cells skipped", zap.String("series", name), zap.Int("rows", skipped))
	}

	var out *series.AnnualSeries
	if agg == "" {
		out, err = series.New(name, src.Unit, points)
	} else {
		out, err = temporal.AggregateAnnual(name, src.Unit, obs, temporal.AggregateConfig{
			Func:            agg,
			MinObservations: src.MinObservations,
		})
		s.logger.Debug("observations aggregated",
			zap.String("series", name),
			zap.String("func", string(agg)),
			zap.Int("observations", len(obs)))
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build series from %s", src.Path)
	}
	first, last, _ := out.Span()
	s.logger.Info("series loaded",
		zap.String("series", name),
		zap.String("path", src.Path),
		zap.Int("years", out.Len()),
		zap.Int("first", first),
		zap.Int("last", last))
	return out, nil
}

// parseYear accepts integers and integral floats, as spreadsheets often
// store years as "1897.0".
func parseYear(raw string) (int, error) {
	if year, err := strconv.Atoi(raw); err == nil {
		return year, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > 1e6 {
		return 0, fmt.Errorf("year %q is not an integer", raw)
	}
	return int(f), nil
}

// timeLayouts are the date formats accepted for dated rows. "01-02-06" is
// how excelize renders date-formatted cells by default.
var timeLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
	"02/01/2006",
	"01-02-06",
	"2006-01",
}

// parseTime reads a dated row. A plain number is a (decimal) year.
func parseTime(raw string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.Abs(f) > 1e6 {
		return time.Time{}, fmt.Errorf("time %q is neither a date nor a year", raw)
	}
	year := math.Floor(f)
	start := time.Date(int(year), time.January, 1, 0, 0, 0, 0, time.UTC)
	days := (f - year) * float64(start.AddDate(1, 0, 0).Sub(start)/(24*time.Hour))
	return start.Add(time.Duration(days * float64(24*time.Hour))), nil
}
