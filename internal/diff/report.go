package diff

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// WriteTable renders r as a text table followed by a one-line summary.
func WriteTable(w io.Writer, r Result) error {
	table := tablewriter.NewWriter(w)
	table.Header("Field", "Change", "Breaking", "Details")
	for _, c := range r.Changes() {
		if err := table.Append([]string{c.FieldPath, string(c.ChangeType), strconv.FormatBool(c.IsBreaking), c.Description}); err != nil {
			return fmt.Errorf("diff: table row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("diff: render table: %w", err)
	}
	_, err := fmt.Fprintf(w, "added=%d removed=%d modified=%d breaking=%d\n",
		r.Summary.FieldsAdded, r.Summary.FieldsRemoved, r.Summary.FieldsModified, r.Summary.BreakingChanges)
	return err
}
