package profile

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"schemaprof/internal/schema"
)

// WriteTable renders one row per field of s, then a one-line footer.
func WriteTable(w io.Writer, s schema.Snapshot) error {
	table := tablewriter.NewWriter(w)
	table.Header("Field", "Type", "Conf", "Nullable", "Semantic", "PII", "Null %", "Distinct", "Mean")
	for _, f := range s.Fields {
		typ := f.DataType
		if f.IsArray && f.ArrayItemType != "" {
			typ += "[" + f.ArrayItemType + "]"
		}
		row := []string{
			f.Path,
			typ,
			strconv.FormatFloat(f.TypeConfidence, 'f', 1, 64),
			strconv.FormatBool(f.IsNullable),
			dash(f.SemanticType),
			dash(f.PIIType),
			strconv.FormatFloat(f.NullPercentage, 'f', 2, 64),
			strconv.Itoa(f.DistinctCount),
			optFloat(f.Mean),
		}
		if err := table.Append(row); err != nil {
			return fmt.Errorf("profile: table row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("profile: render table: %w", err)
	}
	_, err := fmt.Fprintf(w, "records=%d fields=%d hash=%s\n", s.Records, len(s.Fields), s.Hash)
	return err
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func optFloat(f *float64) string {
	if f == nil {
		return "-"
	}
	return strconv.FormatFloat(*f, 'g', 6, 64)
}
