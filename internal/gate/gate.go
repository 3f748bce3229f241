// Package gate validates gate-record documents.
//
// A gate record is a markdown-like document asserting that a development
// phase's readiness criteria were verified by the required agents. The
// package combines three layers:
//   - [Scan] and [ExtractSections] turn the document into a token stream
//     sliced by section, so field checks are unambiguous
//   - [Validator.ValidateFile] runs the schema checks (required sections,
//     metadata, invocation evidence, responses, checklist, sign-offs,
//     decision cross-validation, placeholders)
//   - anti-fabrication heuristics flag forged or copy-pasted evidence
//     (timestamp ordering, duplicate summaries, unknown sign-off identities,
//     sequence gaps, missing checkpoint references)
//
// Validity is derived: a record is valid iff no errors accumulated.
// Warnings and info never affect validity.
package gate

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// Result accumulates the outcome of all checks over one gate record.
//
// Create it empty, let every check append, and read [Result.Valid] at the
// end. Order of errors follows check order, which follows document order.
type Result struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	Info     []string `json:"info"`
}

// Valid reports whether the record passed: true iff no errors accumulated.
func (r *Result) Valid() bool {
	return len(r.Errors) == 0
}

func (r *Result) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Result) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *Result) infof(format string, args ...any) {
	r.Info = append(r.Info, fmt.Sprintf(format, args...))
}

// readRecord reads and sanity-checks a gate record file.
func readRecord(path string, maxSize int64) (string, os.FileInfo, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, fmt.Errorf("gate record not found: %s", path)
		}
		return "", nil, fmt.Errorf("cannot stat gate record %s: %w", path, err)
	}

	if maxSize > 0 && fi.Size() > maxSize {
		return "", nil, fmt.Errorf("file too large: %d bytes (max %d)", fi.Size(), maxSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("cannot read gate record %s: %w", path, err)
	}

	if !utf8.Valid(data) {
		return "", nil, fmt.Errorf("file encoding error: %s is not valid UTF-8", path)
	}

	content := string(data)
	if strings.TrimSpace(content) == "" {
		return "", nil, fmt.Errorf("gate record file is empty: %s", path)
	}

	return content, fi, nil
}
