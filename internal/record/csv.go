package record

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// WriteCSV writes rows with a header of "frame" followed by the sorted
// remaining keys. Missing cells are written empty.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	header := Columns(rows)

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	line := make([]string, len(header))
	for i, row := range rows {
		for j, key := range header {
			line[j] = row[key]
		}
		if err := cw.Write(line); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV reads rows written by WriteCSV (or any CSV with a header row).
// Cells are kept as text; use Coerce to read numbers.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	var rows []Row
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(rows), err)
		}

		row := make(Row, len(header))
		for i, key := range header {
			if i < len(fields) {
				row[key] = fields[i]
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}
