package cmd

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// renderTable prints rows under header.
func renderTable(w io.Writer, header []string, rows [][]string) error {
	table := tablewriter.NewWriter(w)
	cols := make([]any, len(header))
	for i, h := range header {
		cols[i] = h
	}
	table.Header(cols...)
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

// renderPairs prints a two column key/value table.
func renderPairs(w io.Writer, pairs [][2]string) error {
	rows := make([][]string, len(pairs))
	for i, p := range pairs {
		rows[i] = []string{p[0], p[1]}
	}
	return renderTable(w, []string{"Field", "Value"}, rows)
}
