package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"orderrpa/internal/orders"
)

// CSVSource reads order rows from a headered CSV file.
type CSVSource struct {
	Path string
}

// Rows returns one RawRow per data record, keyed by the trimmed,
// lower-cased header. Short records simply lack the trailing keys.
func (s CSVSource) Rows(ctx context.Context) ([]orders.RawRow, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", orders.ErrSourceUnavailable, err)
	}
	defer f.Close()
	return ReadRows(ctx, f)
}

// ReadRows parses CSV from r.
func ReadRows(ctx context.Context, r io.Reader) ([]orders.RawRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", orders.ErrSourceUnavailable)
		}
		return nil, fmt.Errorf("%w: read header: %v", orders.ErrSourceUnavailable, err)
	}
	for i, h := range header {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}

	var rows []orders.RawRow
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				// Keep row numbering aligned with the validator; the empty
				// row is rejected there as missing every field.
				rows = append(rows, orders.RawRow{})
				continue
			}
			return nil, fmt.Errorf("%w: line %d: %v", orders.ErrSourceUnavailable, line, err)
		}
		row := make(orders.RawRow, len(header))
		for i, v := range rec {
			if i < len(header) && header[i] != "" {
				row[header[i]] = v
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Writer emits rows with a fixed header, in the order of RequiredFields.
type Writer struct {
	w      *csv.Writer
	header []string
}

func NewWriter(w io.Writer) (*Writer, error) {
	cw := csv.NewWriter(w)
	header := append([]string(nil), orders.RequiredFields...)
	if err := cw.Write(header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	return &Writer{w: cw, header: header}, nil
}

// Write writes one row; missing keys become empty cells.
func (w *Writer) Write(row map[string]string) error {
	rec := make([]string, len(w.header))
	for i, h := range w.header {
		rec[i] = row[h]
	}
	return w.w.Write(rec)
}

func (w *Writer) Flush() error {
	w.w.Flush()
	return w.w.Error()
}
