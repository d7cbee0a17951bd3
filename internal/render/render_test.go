// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

package render

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Tags  []string
}

func (i item) Field(name string) (string, bool) {
	switch name {
	case "id":
		return strconv.Itoa(i.ID), true
	case "title":
		return i.Title, true
	case "tags":
		return strings.Join(i.Tags, "; "), true
	}
	return "", false
}

type items []item

func (items) DefaultColumns() []string { return []string{"id", "title"} }

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, item{ID: 42, Title: "Fix bug"}, Options{Format: FormatTable, Columns: []string{"id", "title"}})
	require.NoError(t, err)

	out := buf.String()
	assert.NotContains(t, out, "\x1b[", "color off must not emit escape sequences")
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 2, "header plus one row:\n%s", out)
	assert.Contains(t, lines[0], "ID")
	assert.Contains(t, lines[0], "TITLE")
	assert.Contains(t, lines[1], "42")
	assert.Contains(t, lines[1], "Fix bug")
}

func TestRenderTableFlattensNewlines(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, []item{{ID: 1, Title: "line one\nline two"}}, Options{Format: FormatTable, Columns: []string{"title"}})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "line one line two")
}

func TestRenderDefaultColumns(t *testing.T) {
	var buf bytes.Buffer
	list := items{{ID: 1, Title: "a", Tags: []string{"x"}}, {ID: 2, Title: "b"}}
	require.NoError(t, Render(&buf, list, Options{Format: FormatTSV}))
	assert.Equal(t, "id\ttitle\n1\ta\n2\tb\n", buf.String())
}

func TestRenderTSVEscapes(t *testing.T) {
	var buf bytes.Buffer
	list := []item{{ID: 7, Title: "tab\there\nnewline \\ slash"}}
	require.NoError(t, Render(&buf, list, Options{Format: FormatTSV, Columns: []string{"id", "title"}}))
	assert.Equal(t, "id\ttitle\n7\ttab\\there\\nnewline \\\\ slash\n", buf.String())
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	list := []item{{ID: 1, Title: "a"}}
	require.NoError(t, Render(&buf, list, Options{Format: FormatJSON, Columns: []string{"id"}}))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "a", decoded[0]["title"], "default columns do not limit JSON")
	assert.True(t, strings.HasPrefix(buf.String(), "[\n  {"), "JSON is indented")
}

func TestRenderJSONSelectedColumns(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		var buf bytes.Buffer
		list := []item{{ID: 1, Title: "a", Tags: []string{"x", "y"}}, {ID: 2, Title: "b"}}
		require.NoError(t, Render(&buf, list, Options{Format: FormatJSON, Columns: []string{"title", "tags"}, Select: true}))
		assert.JSONEq(t, `[{"title":"a","tags":"x; y"},{"title":"b","tags":""}]`, buf.String())
		assert.Less(t, strings.Index(buf.String(), `"title"`), strings.Index(buf.String(), `"tags"`), "keys follow column order")
	})

	t.Run("single record", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Render(&buf, item{ID: 42, Title: "Fix bug"}, Options{Format: FormatJSON, Columns: []string{"id"}, Select: true}))
		assert.JSONEq(t, `{"id":"42"}`, buf.String())
	})

	t.Run("unknown column", func(t *testing.T) {
		var buf bytes.Buffer
		err := Render(&buf, []item{{ID: 1}}, Options{Format: FormatJSON, Columns: []string{"nope"}, Select: true})
		require.Error(t, err)
		assert.Empty(t, buf.String())
	})
}

func TestRenderDoesNotMutate(t *testing.T) {
	list := []item{{ID: 1, Title: "multi\nline", Tags: []string{"b", "a"}}}
	before, _ := json.Marshal(list)

	for _, format := range []string{FormatTable, FormatTSV, FormatJSON} {
		var buf bytes.Buffer
		require.NoError(t, Render(&buf, list, Options{Format: format, Columns: []string{"id", "title", "tags"}}))
	}

	after, _ := json.Marshal(list)
	assert.Equal(t, string(before), string(after))
}

func TestRenderErrors(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		opts    Options
		wantErr string
	}{
		{"unknown column", item{}, Options{Format: FormatTable, Columns: []string{"owner"}}, `unknown column "owner"`},
		{"unknown format", item{}, Options{Format: "xml", Columns: []string{"id"}}, "unsupported output format"},
		{"no columns", item{}, Options{Format: FormatTSV}, "no columns selected"},
		{"not a record", 42, Options{Format: FormatTSV, Columns: []string{"id"}}, "cannot render int"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Render(&bytes.Buffer{}, tt.value, tt.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRenderNil(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, nil, Options{Format: FormatTable}))
	assert.Empty(t, buf.String())
}

func TestRenderEmptyList(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, items{}, Options{Format: FormatTSV}))
	assert.Equal(t, "id\ttitle\n", buf.String())
}
