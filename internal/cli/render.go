package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"hajj-assistant/internal/models"
)

// renderPayload prints a reply as text, then its table, then the reference
// number of a filed report.
func renderPayload(w io.Writer, p models.ResponsePayload) error {
	if _, err := fmt.Fprintln(w, p.Text); err != nil {
		return err
	}
	if p.Table != nil && len(p.Table.Rows) > 0 {
		if err := writeTable(w, p.Table.Columns, p.Table.Rows); err != nil {
			return err
		}
	}
	if p.ReferenceID != "" {
		if _, err := fmt.Fprintf(w, "reference: %s\n", p.ReferenceID); err != nil {
			return err
		}
	}
	return nil
}

func writeTable(w io.Writer, header []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if len(header) > 0 {
		fmt.Fprintln(tw, strings.Join(header, "\t"))
	}
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}
