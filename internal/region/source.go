package region

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/costmap/internal/fetcher"
)

// Supported dataset formats.
const (
	FormatAuto     = "auto"
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatXLSX     = "xlsx"
	FormatPostgres = "postgres"
)

// LoadJSON decodes a JSON array of records.
func LoadJSON(r io.Reader) (*Dataset, error) {
	var records []Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, eris.Wrap(err, "region: decode json dataset")
	}
	return NewDataset(records), nil
}

// LoadCSV reads a CSV dataset. See FromTable for the column layout.
func LoadCSV(ctx context.Context, r io.Reader) (*Dataset, error) {
	tbl, err := fetcher.ReadCSV(ctx, r)
	if err != nil {
		return nil, eris.Wrap(err, "region: read csv dataset")
	}
	return FromTable(tbl)
}

// LoadXLSX reads a spreadsheet dataset from the named sheet (first when empty).
func LoadXLSX(path, sheet string) (*Dataset, error) {
	tbl, err := fetcher.ReadXLSX(path, sheet)
	if err != nil {
		return nil, eris.Wrap(err, "region: read xlsx dataset")
	}
	return FromTable(tbl)
}

// LoadFile loads a dataset file in the given format; FormatAuto picks by extension.
func LoadFile(ctx context.Context, path, format, sheet string) (*Dataset, error) {
	if format == "" || format == FormatAuto {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}

	switch format {
	case FormatXLSX:
		return LoadXLSX(path, sheet)
	case FormatJSON, FormatCSV:
	default:
		return nil, eris.Errorf("region: unsupported dataset format %q", format)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "region: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	if format == FormatCSV {
		return LoadCSV(ctx, f)
	}
	return LoadJSON(f)
}

// FromTable builds a dataset from a header + rows table. The id, name and fips
// columns carry identity; any other column is a dotted metric path such as
// "allCosts.total". Numeric cells become float64, blank cells are left absent,
// anything else is kept as a string.
func FromTable(tbl *fetcher.Table) (*Dataset, error) {
	idCol, nameCol, fipsCol := tbl.Column("id"), tbl.Column("name"), tbl.Column("fips")
	if nameCol < 0 || fipsCol < 0 {
		return nil, eris.New("region: table needs name and fips columns")
	}

	records := make([]Record, 0, len(tbl.Rows))
	for i, row := range tbl.Rows {
		rec := Record{
			ID:      cell(row, idCol),
			Name:    cell(row, nameCol),
			RawID:   cell(row, fipsCol),
			Metrics: make(map[string]any),
		}
		if rec.ID == "" {
			rec.ID = strconv.Itoa(i + 1)
		}
		for col, header := range tbl.Header {
			if col == idCol || col == nameCol || col == fipsCol || header == "" {
				continue
			}
			v := cell(row, col)
			if v == "" {
				continue
			}
			setPath(rec.Metrics, header, parseCell(v))
		}
		records = append(records, rec)
	}
	return NewDataset(records), nil
}

func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

func parseCell(v string) any {
	cleaned := strings.NewReplacer("$", "", ",", "").Replace(v)
	if f, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return f
	}
	return v
}

// setPath stores v under a dotted path, creating intermediate objects.
func setPath(m map[string]any, path string, v any) {
	parts := strings.Split(path, ".")
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[p] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = v
}
