package units

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// csvTable reads a CSV with a header row and resolves columns by name.
type csvTable struct {
	r       *csv.Reader
	columns map[string]int
	line    int
}

func newCSVTable(r io.Reader, required ...string) (*csvTable, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	t := &csvTable{r: cr, columns: make(map[string]int, len(header)), line: 1}
	for i, h := range header {
		t.columns[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	var missing []string
	for _, col := range required {
		if _, ok := t.columns[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing column(s): %s", strings.Join(missing, ", "))
	}
	return t, nil
}

// next returns the following non-empty record, or io.EOF.
func (t *csvTable) next() (csvRow, error) {
	for {
		rec, err := t.r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return csvRow{}, io.EOF
			}
			return csvRow{}, fmt.Errorf("line %d: %w", t.line+1, err)
		}
		t.line++
		if isBlank(rec) {
			continue
		}
		return csvRow{table: t, record: rec, line: t.line}, nil
	}
}

type csvRow struct {
	table  *csvTable
	record []string
	line   int
}

func (r csvRow) get(col string) string {
	i := r.table.columns[col]
	if i >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[i])
}

// float parses col as a finite number.
func (r csvRow) float(col string) (float64, error) {
	v, err := strconv.ParseFloat(r.get(col), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("line %d: invalid %s %q", r.line, col, r.get(col))
	}
	return v, nil
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
