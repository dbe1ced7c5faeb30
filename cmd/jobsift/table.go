package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// maxCellWidth wraps long URLs and messages instead of widening the table.
const maxCellWidth = 60

type tableColumn struct {
	header string
	align  columnAlignment
}

func columns(headers ...string) []tableColumn {
	out := make([]tableColumn, len(headers))
	for i, h := range headers {
		out[i] = tableColumn{header: h}
	}
	return out
}

func rightAligned(cols []tableColumn, indexes ...int) []tableColumn {
	for _, i := range indexes {
		if i >= 0 && i < len(cols) {
			cols[i].align = alignRight
		}
	}
	return cols
}

func renderTable(cols []tableColumn, rows [][]string) string {
	if len(cols) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(cols))
	configs := make([]table.ColumnConfig, len(cols))
	for i, col := range cols {
		header[i] = col.header
		align := text.AlignLeft
		if col.align == alignRight {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
			WidthMax:    maxCellWidth,
		}
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(cols))
		for i := range cols {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}
	tw.SetColumnConfigs(configs)

	return tw.Render() + "\n"
}
