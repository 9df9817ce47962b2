// Package dataset reads generation rows and turns each one into an output
// name and a set of typed parameter values.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Row is one data record keyed by column name.
type Row struct {
	// Index is the 1-based position among data rows.
	Index int
	// Line is the line in the source file where the record starts.
	Line   int
	Values map[string]string
}

// Get returns the value of a column.
func (r Row) Get(column string) (string, bool) {
	v, ok := r.Values[column]
	return v, ok
}

// Table is a parsed CSV file.
type Table struct {
	Header []string
	Rows   []Row
}

// HasColumn reports whether the header declares column.
func (t *Table) HasColumn(column string) bool {
	for _, h := range t.Header {
		if h == column {
			return true
		}
	}
	return false
}

// LoadCSV reads a CSV file with a header line.
func LoadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open data file: %w", err)
	}
	defer f.Close()

	table, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

// ReadCSV parses CSV from r. A leading UTF-8 or UTF-16 byte order mark is
// honored and stripped. Every record must have as many fields as the header.
func ReadCSV(r io.Reader) (*Table, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	reader := csv.NewReader(decoded)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("data file is empty: a header line is required")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	header, err = cleanHeader(header)
	if err != nil {
		return nil, err
	}

	table := &Table{Header: header}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read data: %w", err)
		}

		line, _ := reader.FieldPos(0)
		row := Row{
			Index:  len(table.Rows) + 1,
			Line:   line,
			Values: make(map[string]string, len(header)),
		}
		for i, col := range header {
			row.Values[col] = record[i]
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// cleanHeader trims column names and rejects empty or repeated ones.
func cleanHeader(header []string) ([]string, error) {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		// Some spreadsheet exports leave a BOM decoded as Latin-1 in front.
		h = strings.TrimPrefix(h, "\u00ef\u00bb\u00bf")
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			return nil, fmt.Errorf("header column %d has no name", i+1)
		}
		if prev, ok := seen[h]; ok {
			return nil, fmt.Errorf("header column %q appears twice (columns %d and %d)", h, prev+1, i+1)
		}
		seen[h] = i
		out[i] = h
	}
	return out, nil
}
