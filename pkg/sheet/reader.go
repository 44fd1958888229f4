// Package sheet turns uploaded spreadsheets (CSV or XLSX) into import rows
// and generates intake templates from schema definitions.
package sheet

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/openmigrate/mfdata/pkg/importer"
	"github.com/openmigrate/mfdata/pkg/serrors"
)

var ErrUnsupportedFormat = serrors.NewError("SHEET_UNSUPPORTED_FORMAT", "unsupported spreadsheet format", "")

// ReadFile parses path into import rows. The format is chosen by extension:
// .csv and .xlsx are supported. Row indexes are zero-based over data rows
// and assigned once, at parse time.
func ReadFile(path string) ([]importer.Row, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()
		return ReadCSV(f)
	case ".xlsx":
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()
		return readWorkbook(f)
	default:
		return nil, ErrUnsupportedFormat.WithDetail("%s", filepath.Ext(path))
	}
}

// ReadCSV parses CSV content. A UTF-8 BOM is stripped, ragged rows are
// tolerated, and fully empty lines are skipped.
func ReadCSV(r io.Reader) ([]importer.Row, error) {
	br := stripUTF8BOM(bufio.NewReader(r))

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1

	header, err := readHeader(cr)
	if err != nil {
		return nil, err
	}

	var rows []importer.Row
	for {
		rec, err := cr.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		cells := make(map[string]string, len(header))
		empty := true
		for i, h := range header {
			if h == "" {
				continue
			}
			var v string
			if i < len(rec) {
				v = rec[i]
			}
			cells[h] = v
			if strings.TrimSpace(v) != "" {
				empty = false
			}
		}
		if empty {
			continue
		}
		rows = append(rows, importer.Row{Index: len(rows), Cells: cells})
	}
	return rows, nil
}

// ReadXLSX parses the first sheet of a workbook supplied as a stream.
func ReadXLSX(r io.Reader) ([]importer.Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return readWorkbook(f)
}

func readWorkbook(f *excelize.File) ([]importer.Row, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	all, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("missing header row")
	}

	header := make([]string, len(all[0]))
	for i, h := range all[0] {
		header[i] = strings.TrimSpace(h)
	}

	var rows []importer.Row
	for _, rec := range all[1:] {
		cells := make(map[string]string, len(header))
		empty := true
		for i, h := range header {
			if h == "" {
				continue
			}
			var v string
			if i < len(rec) {
				v = rec[i]
			}
			cells[h] = v
			if strings.TrimSpace(v) != "" {
				empty = false
			}
		}
		if empty {
			continue
		}
		rows = append(rows, importer.Row{Index: len(rows), Cells: cells})
	}
	return rows, nil
}

func stripUTF8BOM(r *bufio.Reader) *bufio.Reader {
	b, err := r.Peek(3)
	if err == nil && len(b) == 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		_, _ = r.Discard(3)
	}
	return r
}

func readHeader(r *csv.Reader) ([]string, error) {
	h, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("missing header row")
		}
		return nil, err
	}
	for i := range h {
		h[i] = strings.TrimSpace(h[i])
		if !utf8.ValidString(h[i]) {
			return nil, fmt.Errorf("invalid header encoding")
		}
	}
	return h, nil
}
