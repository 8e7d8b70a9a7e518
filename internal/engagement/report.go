package engagement

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// Report is a parsed CSV file: a header and its data rows. Missing trailing cells
// read as empty strings.
type Report struct {
	Name   string
	Header []string
	Rows   [][]string
}

func ParseReport(name string, r io.Reader) (Report, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Report{}, fmt.Errorf("report %s is empty", name)
		}
		return Report{}, fmt.Errorf("read header of %s: %w", name, err)
	}

	rep := Report{Name: name, Header: header, Rows: make([][]string, 0)}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Report{}, fmt.Errorf("read %s: %w", name, err)
		}
		rep.Rows = append(rep.Rows, record)
	}
	return rep, nil
}

// ColumnIndex returns the position of name in the header.
func (r Report) ColumnIndex(name string) (int, bool) {
	for i, h := range r.Header {
		if h == name {
			return i, true
		}
	}
	return -1, false
}

func (r Report) Cell(row, col int) string {
	if row < 0 || row >= len(r.Rows) || col < 0 || col >= len(r.Rows[row]) {
		return ""
	}
	return r.Rows[row][col]
}
