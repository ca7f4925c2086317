package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/voca9204/db3-sub002/pkg/db3"
)

// printResult renders an execution result as a table or JSON. Statements
// that return no rows report the affected-row count instead.
func printResult(w io.Writer, res *db3.Result, asJSON bool) error {
	if asJSON {
		rows := res.Rows
		if rows == nil {
			rows = []db3.Row{}
		}
		return printJSON(w, rows)
	}

	if len(res.Rows) == 0 {
		if res.RowsAffected > 0 {
			fmt.Fprintf(w, "(%d rows affected)\n", res.RowsAffected)
			return nil
		}
		fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	if err := printTable(w, res.Rows); err != nil {
		return err
	}
	fmt.Fprintf(w, "(%d rows)\n", len(res.Rows))
	return nil
}

// printTable writes rows as an aligned table. Columns are sorted by name
// so output is stable across runs.
func printTable(w io.Writer, rows []map[string]any) error {
	if len(rows) == 0 {
		return nil
	}

	cols := make([]string, 0, len(rows[0]))
	for c := range rows[0] {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(cols, "\t"))

	cells := make([]string, len(cols))
	for _, row := range rows {
		for i, c := range cols {
			cells[i] = formatValue(row[c])
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return fmt.Sprintf("\\x%x", v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}
