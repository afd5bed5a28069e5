// Package export renders report and progress data into downloadable
// documents (CSV and PDF).
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// ErrNoRows is returned when an export is requested over an empty dataset.
// Callers surface this instead of producing a header-only file.
var ErrNoRows = errors.New("export: no rows to export")

// WriteCSV writes header plus rows to w as RFC 4180 CSV. Every row must have
// the same number of fields as the header.
func WriteCSV(w io.Writer, header []string, rows [][]string) error {
	if len(rows) == 0 {
		return ErrNoRows
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i, row := range rows {
		if len(row) != len(header) {
			return fmt.Errorf("csv row %d has %d fields, header has %d", i, len(row), len(header))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
