package excel

// RawRowData represents a row of raw cell text keyed by column header
type RawRowData map[string]string

// Table represents a header row and the data rows below it
type Table struct {
	Headers []string     // Column headers
	Rows    []RawRowData // Data rows
	// Lines holds the 1-based source line or sheet row of each data row
	Lines []int
}

// HasColumn reports whether header is present.
func (t *Table) HasColumn(header string) bool {
	for _, h := range t.Headers {
		if h == header {
			return true
		}
	}
	return false
}
