package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan_Fields(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantLabel string
		wantValue string
		wantField bool
	}{
		{
			name:      "simple field",
			line:      "**Stage**: 5",
			wantLabel: "Stage",
			wantValue: "5",
			wantField: true,
		},
		{
			name:      "field with annotation before colon",
			line:      "**Summary** (2-3 sentences): All tests pass",
			wantLabel: "Summary",
			wantValue: "All tests pass",
			wantField: true,
		},
		{
			name:      "field with empty value",
			line:      "**Summary**:",
			wantLabel: "Summary",
			wantValue: "",
			wantField: true,
		},
		{
			name:      "bold text without colon is not a field",
			line:      "**Important** note here",
			wantField: false,
		},
		{
			name:      "plain prose is not a field",
			line:      "The gate was approved yesterday.",
			wantField: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Scan(tt.line)
			if !tt.wantField {
				assert.Empty(t, d.Fields)
				return
			}
			require.Len(t, d.Fields, 1)
			assert.Equal(t, tt.wantLabel, d.Fields[0].Label)
			assert.Equal(t, tt.wantValue, d.Fields[0].Value)
		})
	}
}

func TestScan_Rows(t *testing.T) {
	text := `| Agent | Invoked |
| --- | --- |
| Backend-Agent | YES |
| QA-Agent | NO |
not a row | half pipe
`
	d := Scan(text)

	require.Len(t, d.Rows, 3, "separator row should be dropped")
	assert.Equal(t, []string{"Agent", "Invoked"}, d.Rows[0].Cells)
	assert.Equal(t, []string{"Backend-Agent", "YES"}, d.Rows[1].Cells)
	assert.Equal(t, []string{"QA-Agent", "NO"}, d.Rows[2].Cells)
	assert.Equal(t, 3, d.Rows[2].Line)
}

func TestScan_Headings(t *testing.T) {
	text := `# Title
## Section 1: Agent Invocation Evidence
### Backend-Agent Response
#notaheading
`
	d := Scan(text)

	require.Len(t, d.Headings, 3)
	assert.Equal(t, 1, d.Headings[0].Level)
	assert.Equal(t, "Title", d.Headings[0].Text)
	assert.Equal(t, 2, d.Headings[1].Level)
	assert.Equal(t, "Section 1: Agent Invocation Evidence", d.Headings[1].Text)
	assert.Equal(t, 3, d.Headings[2].Level)
}

func TestDoc_FieldLookup(t *testing.T) {
	text := `**Status**: OK
**Status**: CONCERN
**Decision**: PASS
`
	d := Scan(text)

	first, ok := d.Field("Status")
	require.True(t, ok)
	assert.Equal(t, "OK", first.Value)

	all := d.FieldsNamed("Status")
	require.Len(t, all, 2)
	assert.Equal(t, "CONCERN", all[1].Value)

	_, ok = d.Field("Nonexistent")
	assert.False(t, ok)
}
