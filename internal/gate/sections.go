package gate

import "strings"

// Section is one named slice of a gate record.
type Section struct {
	// Name is the section header text as configured, without the `## ` marker.
	Name string

	// Found reports whether the header appeared in the document. A found
	// section with empty content is distinct from an absent section, so
	// downstream checks can tell "empty" from "missing".
	Found bool

	// Text is the document substring from the section header up to the
	// next section header (or end of document).
	Text string
}

// Sections holds the extracted sections of a document keyed by header text.
type Sections struct {
	byName map[string]Section
}

// ExtractSections slices content into named sections.
//
// Headers are matched as `## ` headings at the start of a line, so prose
// that merely mentions a section name does not anchor a slice. Each
// section runs until the next present heading in the given order, or the
// end of the document. Slicing by section keeps field checks scoped, so a
// field mentioned in the wrong section cannot satisfy a check for another
// section.
func ExtractSections(content string, headers []string) *Sections {
	s := &Sections{byName: make(map[string]Section, len(headers))}

	starts := make([]int, len(headers))
	for i, h := range headers {
		starts[i] = headingIndex(content, h)
	}

	for i, h := range headers {
		if starts[i] < 0 {
			s.byName[h] = Section{Name: h}
			continue
		}
		end := len(content)
		for j := i + 1; j < len(headers); j++ {
			if starts[j] >= 0 {
				end = starts[j]
				break
			}
		}
		if end < starts[i] {
			end = len(content)
		}
		s.byName[h] = Section{Name: h, Found: true, Text: content[starts[i]:end]}
	}

	return s
}

// headingIndex locates `## <header>` at the start of a line.
func headingIndex(content, header string) int {
	marker := "## " + header
	from := 0
	for {
		i := strings.Index(content[from:], marker)
		if i < 0 {
			return -1
		}
		i += from
		if i == 0 || content[i-1] == '\n' {
			return i
		}
		from = i + 1
	}
}

// Get returns the section for the given header text.
func (s *Sections) Get(name string) Section {
	return s.byName[name]
}
