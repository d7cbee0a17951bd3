// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

// Package render turns typed results into table, JSON or TSV output.
//
// Render never mutates the value it is given. JSON output is the value's
// own encoding unless the columns were chosen explicitly; table and TSV
// output always project each Record onto the requested columns.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/termenv"
)

// Supported formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatTSV   = "tsv"
)

// Record is a single renderable row.
type Record interface {
	// Field returns the display value of a column. ok is false when the
	// record has no such column.
	Field(name string) (value string, ok bool)
}

// Columnar values suggest the columns to show when the caller asked for
// none.
type Columnar interface {
	DefaultColumns() []string
}

// Options controls rendering.
type Options struct {
	Format  string
	Columns []string
	Color   bool

	// Select limits JSON output to Columns, one string field per column.
	Select bool
}

// Render writes v to w. v is a Record, a slice of Records, or nil for
// commands that produce no output.
func Render(w io.Writer, v any, opts Options) error {
	if v == nil {
		return nil
	}

	switch opts.Format {
	case FormatJSON:
		if !opts.Select || len(opts.Columns) == 0 {
			return renderJSON(w, v)
		}
	case FormatTable, FormatTSV, "":
	default:
		return fmt.Errorf("unsupported output format %q", opts.Format)
	}

	records, err := Records(v)
	if err != nil {
		return err
	}
	columns := opts.Columns
	if len(columns) == 0 {
		if c, ok := v.(Columnar); ok {
			columns = c.DefaultColumns()
		}
	}
	if len(columns) == 0 {
		return fmt.Errorf("no columns selected for %T", v)
	}

	rows, err := project(records, columns)
	if err != nil {
		return err
	}

	if opts.Format == FormatJSON {
		objects := make([]selection, len(rows))
		for i, row := range rows {
			objects[i] = selection{columns: columns, values: row}
		}
		if _, single := v.(Record); single {
			return renderJSON(w, objects[0])
		}
		return renderJSON(w, objects)
	}

	if opts.Format == FormatTSV {
		return renderTSV(w, columns, rows)
	}
	return renderTable(w, columns, rows, opts.Color)
}

// Records flattens v into its rows. A single Record is one row; a slice
// or array yields one row per element.
func Records(v any) ([]Record, error) {
	if r, ok := v.(Record); ok {
		return []Record{r}, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("cannot render %T as rows", v)
	}
	records := make([]Record, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		elem := rv.Index(i)
		if r, ok := elem.Interface().(Record); ok {
			records = append(records, r)
			continue
		}
		if elem.CanAddr() {
			if r, ok := elem.Addr().Interface().(Record); ok {
				records = append(records, r)
				continue
			}
		}
		return nil, fmt.Errorf("cannot render element %d of %T as a row", i, v)
	}
	return records, nil
}

func project(records []Record, columns []string) ([][]string, error) {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		row := make([]string, len(columns))
		for i, col := range columns {
			value, ok := r.Field(col)
			if !ok {
				return nil, fmt.Errorf("unknown column %q", col)
			}
			row[i] = value
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func renderJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// selection is one projected row encoded as a JSON object whose keys
// keep the column order.
type selection struct {
	columns []string
	values  []string
}

func (s selection) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, col := range s.columns {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(s.values[i])
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(value)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

var tsvEscaper = strings.NewReplacer(`\`, `\\`, "\t", `\t`, "\n", `\n`, "\r", `\r`)

func renderTSV(w io.Writer, columns []string, rows [][]string) error {
	var b strings.Builder
	writeLine := func(fields []string) {
		for i, f := range fields {
			if i > 0 {
				b.WriteByte('\t')
			}
			b.WriteString(tsvEscaper.Replace(f))
		}
		b.WriteByte('\n')
	}

	writeLine(columns)
	for _, row := range rows {
		writeLine(row)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func renderTable(w io.Writer, columns []string, rows [][]string, color bool) error {
	r := lipgloss.NewRenderer(w)
	if !color {
		r.SetColorProfile(termenv.Ascii)
	}

	headers := make([]string, len(columns))
	for i, c := range columns {
		headers[i] = strings.ToUpper(c)
	}

	// Cells are single-line; a newline would break row alignment.
	flat := make([][]string, len(rows))
	for i, row := range rows {
		flat[i] = make([]string, len(row))
		for j, cell := range row {
			flat[i][j] = strings.Join(strings.Fields(cell), " ")
		}
	}

	headerStyle := r.NewStyle().Bold(true).Padding(0, 2, 0, 0)
	if color {
		headerStyle = headerStyle.Foreground(lipgloss.Color("6"))
	}
	cellStyle := r.NewStyle().Padding(0, 2, 0, 0)

	t := table.New().
		Headers(headers...).
		Rows(flat...).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderHeader(false).
		BorderRow(false).
		BorderColumn(false).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	_, err := fmt.Fprintln(w, t.String())
	return err
}
