package output

import (
	"bytes"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type extents struct {
	Strategy string  `json:"strategy" yaml:"strategy"`
	Offsets  []int64 `json:"offsets" yaml:"offsets"`
}

func (e extents) Headers() []string { return []string{"Extent", "File Offset"} }

func (e extents) Rows() [][]string {
	rows := make([][]string, len(e.Offsets))
	for i, off := range e.Offsets {
		rows[i] = []string{strconv.Itoa(i), strconv.FormatInt(off, 10)}
	}
	return rows
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{input: "table", want: FormatTable},
		{input: "", want: FormatTable},
		{input: "JSON", want: FormatJSON},
		{input: " yml ", want: FormatYAML},
		{input: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrinter(t *testing.T) {
	data := extents{Strategy: "rows", Offsets: []int64{40, 50}}

	t.Run("Table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewPrinter(&buf, FormatTable).Print(data))
		out := buf.String()
		assert.Contains(t, out, "EXTENT")
		assert.Contains(t, out, "FILE OFFSET")
		assert.Contains(t, out, "40")
		assert.Contains(t, out, "50")
	})

	t.Run("TableFallsBackToJSON", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewPrinter(&buf, FormatTable).Print(map[string]int{"bytes": 20}))
		assert.JSONEq(t, `{"bytes":20}`, buf.String())
	})

	t.Run("JSON", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewPrinter(&buf, FormatJSON).Print(data))
		assert.JSONEq(t, `{"strategy":"rows","offsets":[40,50]}`, buf.String())
	})

	t.Run("YAML", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewPrinter(&buf, FormatYAML).Print(data))

		var back extents
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
		assert.Equal(t, data, back)
	})

	t.Run("UnknownFormat", func(t *testing.T) {
		assert.Error(t, NewPrinter(&bytes.Buffer{}, Format("csv")).Print(data))
	})
}

func TestSimpleTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SimpleTable(&buf, [][2]string{
		{"Strategy", "planes"},
		{"Bytes", "4096"},
	}))

	out := buf.String()
	assert.Contains(t, out, "Strategy")
	assert.Contains(t, out, "planes")
	assert.Contains(t, out, "4096")
}
