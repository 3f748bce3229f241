package gate

import "strings"

// Field is a labeled metadata field extracted from a document line.
//
// Fields follow the template convention of a bold label and a value on one
// line, e.g. `**Stage**: 5`. The scanner tokenizes them so validators never
// have to pattern-match prose.
type Field struct {
	// Label is the text between the bold markers, without the colon.
	Label string

	// Value is the trimmed text after the colon. May be empty when the
	// value continues on following lines (e.g. Summary fields).
	Value string

	// Line is the zero-based line index in the scanned text.
	Line int
}

// Row is one pipe-delimited table row.
type Row struct {
	// Cells are the trimmed cell values, outer empty cells removed.
	Cells []string

	// Line is the zero-based line index in the scanned text.
	Line int
}

// Heading is a markdown-style heading line.
type Heading struct {
	// Level is the number of leading '#' characters.
	Level int

	// Text is the heading text without the marker.
	Text string

	// Line is the zero-based line index in the scanned text.
	Line int
}

// Doc is the token stream produced by [Scan]: the raw lines plus every
// field, table row, and heading found in them, in document order.
type Doc struct {
	Lines    []string
	Fields   []Field
	Rows     []Row
	Headings []Heading
}

// Scan tokenizes text line by line.
//
// A line is classified as at most one of heading, field, or table row;
// everything else stays available through Lines for free-text checks.
func Scan(text string) *Doc {
	lines := strings.Split(text, "\n")
	d := &Doc{Lines: lines}

	for i, raw := range lines {
		line := strings.TrimSpace(raw)

		if strings.HasPrefix(line, "#") {
			level := 0
			for level < len(line) && line[level] == '#' {
				level++
			}
			if level < len(line) && line[level] == ' ' {
				d.Headings = append(d.Headings, Heading{
					Level: level,
					Text:  strings.TrimSpace(line[level:]),
					Line:  i,
				})
				continue
			}
		}

		if strings.HasPrefix(line, "|") && strings.HasSuffix(line, "|") && len(line) > 1 {
			cells := splitRow(line)
			if len(cells) > 0 && !isSeparatorRow(cells) {
				d.Rows = append(d.Rows, Row{Cells: cells, Line: i})
			}
			continue
		}

		if label, value, ok := parseField(line); ok {
			d.Fields = append(d.Fields, Field{Label: label, Value: value, Line: i})
		}
	}

	return d
}

// Field returns the first field with the given label.
func (d *Doc) Field(label string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Label == label {
			return f, true
		}
	}
	return Field{}, false
}

// FieldsNamed returns every field with the given label, in order.
func (d *Doc) FieldsNamed(label string) []Field {
	var out []Field
	for _, f := range d.Fields {
		if f.Label == label {
			out = append(out, f)
		}
	}
	return out
}

// parseField recognizes `**Label**: value` lines, tolerating trailing
// annotation between the closing bold marker and the colon, e.g.
// `**Summary** (2-3 sentences):`.
func parseField(line string) (label, value string, ok bool) {
	if !strings.HasPrefix(line, "**") {
		return "", "", false
	}
	rest := line[2:]
	end := strings.Index(rest, "**")
	if end <= 0 {
		return "", "", false
	}
	label = rest[:end]
	tail := rest[end+2:]
	colon := strings.Index(tail, ":")
	if colon < 0 {
		return "", "", false
	}
	return label, strings.TrimSpace(tail[colon+1:]), true
}

func splitRow(line string) []string {
	parts := strings.Split(line, "|")
	// Leading and trailing pipes produce empty outer parts.
	if len(parts) < 3 {
		return nil
	}
	parts = parts[1 : len(parts)-1]
	cells := make([]string, len(parts))
	for i, p := range parts {
		cells[i] = strings.TrimSpace(p)
	}
	return cells
}

// isSeparatorRow reports whether every cell is a markdown alignment rule
// like `---` or `:---:`.
func isSeparatorRow(cells []string) bool {
	for _, c := range cells {
		if c == "" {
			continue
		}
		trimmed := strings.Trim(c, ":-")
		if trimmed != "" || !strings.Contains(c, "-") {
			return false
		}
	}
	return true
}
