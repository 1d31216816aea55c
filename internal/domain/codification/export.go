package codification

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// ExportCSV writes the given records as semicolon-separated CSV, the format
// the rest of the GRD tooling consumes. Columns are the union of all field
// names, with the identity columns first and the remainder sorted for a
// stable layout. Nil values become empty cells.
func ExportCSV(w io.Writer, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	seen := make(map[string]struct{})
	var rest []string
	for _, rec := range records {
		for field := range rec {
			if _, ok := seen[field]; ok {
				continue
			}
			seen[field] = struct{}{}
			if _, fixed := protectedFields[field]; !fixed {
				rest = append(rest, field)
			}
		}
	}
	sort.Strings(rest)

	headers := make([]string, 0, len(seen))
	for _, fixed := range []string{"id", "batchId", "createdAt", "updatedAt"} {
		if _, ok := seen[fixed]; ok {
			headers = append(headers, fixed)
		}
	}
	headers = append(headers, rest...)

	cw := csv.NewWriter(w)
	cw.Comma = ';'

	if err := cw.Write(headers); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	row := make([]string, len(headers))
	for _, rec := range records {
		for i, field := range headers {
			row[i] = formatCell(rec[field])
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row %s: %w", rec.ID(), err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatCell(v interface{}) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(value)
	default:
		return fmt.Sprintf("%v", value)
	}
}
