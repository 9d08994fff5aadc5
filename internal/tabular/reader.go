// Package tabular reads the owner and transaction source files (CSV or
// Excel) through an explicit schema mapping, and writes the pipeline's CSV
// artifacts. Column mappings are validated up front so a missing required
// column fails the run before any matching begins.
package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ColumnMap maps canonical field names to source column headers.
type ColumnMap map[string]string

// Row holds one source row keyed by canonical field name. Fields whose
// mapping is empty or whose column is absent from a short row are "".
type Row map[string]string

// SchemaError reports required source columns missing from a file. It is
// fatal to the run, unlike per-value coercion warnings.
type SchemaError struct {
	Path    string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: missing required columns: %s", e.Path, strings.Join(e.Missing, ", "))
}

// ReadSource loads a CSV or Excel file and maps its columns to canonical
// fields. required lists the canonical fields whose source columns must be
// present; their absence returns a *SchemaError.
func ReadSource(path string, cols ColumnMap, required []string) ([]Row, error) {
	var records [][]string
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		records, err = readExcel(path)
	case ".csv", ".txt":
		records, err = readCSV(path)
	default:
		return nil, fmt.Errorf("unsupported source format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: empty file, no header row", path)
	}

	header := records[0]
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[normalizeHeader(h)] = i
	}

	// Resolve the mapping against the header, collecting required fields
	// whose source column does not exist.
	fieldCol := make(map[string]int, len(cols))
	var missing []string
	requiredSet := make(map[string]bool, len(required))
	for _, f := range required {
		requiredSet[f] = true
	}
	for field, column := range cols {
		if column == "" {
			continue
		}
		idx, ok := index[normalizeHeader(column)]
		if !ok {
			if requiredSet[field] {
				missing = append(missing, fmt.Sprintf("%s (%s)", column, field))
			}
			continue
		}
		fieldCol[field] = idx
	}
	for _, f := range required {
		if cols[f] == "" {
			missing = append(missing, fmt.Sprintf("<unmapped> (%s)", f))
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Path: path, Missing: missing}
	}

	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(Row, len(fieldCol))
		for field, idx := range fieldCol {
			if idx < len(rec) {
				row[field] = rec[idx]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	var records [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func readExcel(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s: workbook has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q in %s: %w", sheets[0], path, err)
	}
	return rows, nil
}

// Source headers arrive with inconsistent case and padding (one real
// export used " Size " as a column name), so matching is case-insensitive
// and trimmed.
func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}
