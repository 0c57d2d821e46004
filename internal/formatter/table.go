package formatter

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// Table renders the fixed-width columnar output used by scan and status:
// a header row, a dashed separator sized to each header, then one row per
// gate result or timeline event.
type Table struct {
	w           *tabwriter.Writer
	headers     []string
	colMaxWidth map[int]int // column index -> max display width (0/absent = unlimited)
	started     bool
}

// NewTable creates a table that writes to w with the given column headers.
func NewTable(w io.Writer, headers ...string) *Table {
	return &Table{
		w:           tabwriter.NewWriter(w, 0, 0, 2, ' ', 0),
		headers:     headers,
		colMaxWidth: make(map[int]int),
	}
}

// SetMaxWidth caps column col (0-indexed) at width display characters,
// truncating longer values with a trailing "...". Used for status's PAYLOAD
// column, whose values are unbounded event payload dumps.
func (t *Table) SetMaxWidth(col, width int) *Table {
	t.colMaxWidth[col] = width
	return t
}

// AddRow appends a data row. Extra values beyond the header count are
// ignored; missing values are filled with empty strings. The header and its
// separator are written lazily, on the first row, so a table that never
// receives a row (an empty scan, an empty timeline) produces no output.
func (t *Table) AddRow(values ...string) {
	if !t.started {
		t.started = true
		t.writeRow(t.headers)
		t.writeRow(separatorRow(t.headers))
	}

	cells := make([]string, len(t.headers))
	for i := range cells {
		if i < len(values) {
			cells[i] = t.truncate(i, values[i])
		}
	}
	t.writeRow(cells)
}

// Render flushes the underlying tabwriter. Must be called after all AddRow calls.
func (t *Table) Render() error {
	return t.w.Flush()
}

func (t *Table) writeRow(cells []string) {
	for i, cell := range cells {
		if i > 0 {
			//nolint:errcheck // tabwriter output to stdout
			fmt.Fprint(t.w, "\t")
		}
		//nolint:errcheck // tabwriter output to stdout
		fmt.Fprint(t.w, cell)
	}
	//nolint:errcheck // tabwriter output to stdout
	fmt.Fprintln(t.w)
}

func (t *Table) truncate(col int, s string) string {
	max, ok := t.colMaxWidth[col]
	if !ok || max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

// separatorRow builds one dash-filled cell per header, matching its length.
func separatorRow(headers []string) []string {
	row := make([]string, len(headers))
	for i, h := range headers {
		row[i] = dashes(len(h))
	}
	return row
}

// dashes returns a string of n dashes.
func dashes(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '-'
	}
	return string(b)
}
