package gate

import (
	"os"
	"regexp"
	"strings"
	"time"

	"gatewarden/internal/config"
)

var (
	intRe       = regexp.MustCompile(`^\d+`)
	dateRe      = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	timestampRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}`)
	statusRe    = regexp.MustCompile(`(?i)^(PENDING|PASS(?:ED)?(?:\s*\([^)]+\))?|FAIL(?:ED)?)`)
	hashRe      = regexp.MustCompile(`^[a-f0-9]{7,40}$`)
	placeholder = regexp.MustCompile(`\[REQUIRED[^\]]*\]`)
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02T15:04:05"
)

// Validator runs all schema and anti-fabrication checks over a gate record.
//
// Create with [NewValidator]. The rule set is immutable after construction;
// optional collaborators (git verifier, gates directory, clock) have working
// defaults and can be replaced for testing.
type Validator struct {
	rules    config.Rules
	gatesDir string
	git      GitVerifier
	now      func() time.Time
}

// NewValidator creates a Validator with the given rule set.
//
// The gatesDir is used by the sequential-consistency check to look for
// sibling input-gate records; pass the configured gates directory.
func NewValidator(rules config.Rules, gatesDir string) *Validator {
	return &Validator{
		rules:    rules,
		gatesDir: gatesDir,
		git:      ExecGitVerifier{Timeout: 5 * time.Second},
		now:      time.Now,
	}
}

// SetGitVerifier replaces the git collaborator. Pass nil to disable commit
// existence verification; checkpoint references are then noted as info.
func (v *Validator) SetGitVerifier(g GitVerifier) { v.git = g }

// SetNow replaces the clock used by timestamp checks.
func (v *Validator) SetNow(now func() time.Time) { v.now = now }

// ValidateFile reads and validates the gate record at path.
//
// A file that cannot be read at all (missing, oversized, not UTF-8, empty)
// yields a Result with that single error. Otherwise every check runs and
// accumulates into one Result; no check aborts the rest.
func (v *Validator) ValidateFile(path string) *Result {
	res := &Result{}

	content, fi, err := readRecord(path, v.rules.MaxFileSize)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res
	}

	v.validate(content, fi, res)
	return res
}

// ValidateContent validates already-loaded document text. File-metadata
// checks (modification time) are skipped when fi is nil.
func (v *Validator) ValidateContent(content string, fi os.FileInfo) *Result {
	res := &Result{}
	v.validate(content, fi, res)
	return res
}

func (v *Validator) validate(content string, fi os.FileInfo, res *Result) {
	doc := Scan(content)
	sections := ExtractSections(content, v.rules.RequiredSections)

	v.checkRequiredSections(content, res)
	v.checkMetadata(doc, res)
	v.checkAgentInvocation(sections.Get(v.sectionName(0)), res)
	v.checkAgentResponses(sections.Get(v.sectionName(1)), res)
	v.checkChecklist(sections.Get(v.sectionName(2)), res)
	v.checkUnresolvedIssues(sections.Get(v.sectionName(3)), doc, res)
	v.checkSignoffs(sections.Get(v.sectionName(4)), res)
	v.checkGateDecision(sections.Get(v.sectionName(5)), doc, res)
	v.checkValidationSection(sections.Get(v.sectionName(6)), res)
	v.checkPlaceholders(content, res)

	v.checkTimestamps(doc, fi, res)
	v.checkContentIntegrity(doc, res)
	v.checkSequentialConsistency(doc, res)
	v.checkGitCheckpoint(content, doc, res)
}

// sectionName returns the i-th configured section header, or "" when the
// rule set defines fewer sections.
func (v *Validator) sectionName(i int) string {
	if i >= len(v.rules.RequiredSections) {
		return ""
	}
	return v.rules.RequiredSections[i]
}

func (v *Validator) checkRequiredSections(content string, res *Result) {
	for _, section := range v.rules.RequiredSections {
		if !strings.Contains(content, section) {
			res.errorf("Missing required section: '%s'. Copy from template: %s",
				section, v.rules.TemplatePath)
		} else {
			res.infof("Found section: '%s'", section)
		}
	}
}

func (v *Validator) checkMetadata(doc *Doc, res *Result) {
	if f, ok := doc.Field("Stage"); !ok || !intRe.MatchString(f.Value) {
		res.errorf("Missing or invalid Stage number. Add: **Stage**: N")
	}

	if f, ok := doc.Field("Phase"); !ok || !intRe.MatchString(f.Value) {
		res.errorf("Missing or invalid Phase number. Add: **Phase**: N")
	}

	if f, ok := doc.Field("Gate Type"); !ok || gateTypeOf(f.Value) == "" {
		res.errorf("Missing or invalid Gate Type. Add: **Gate Type**: Input or Output")
	}

	if f, ok := doc.Field("Date"); !ok || !dateRe.MatchString(f.Value) {
		res.errorf("Missing or invalid Date. Add: **Date**: YYYY-MM-DD")
	} else {
		raw := dateRe.FindString(f.Value)
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			res.errorf("Invalid date format: %s", raw)
		} else if parsed.After(v.now().AddDate(1, 0, 0)) {
			res.warnf("Date %s is more than 1 year in future", raw)
		}
	}

	if f, ok := doc.Field("Status"); !ok || !statusRe.MatchString(f.Value) {
		res.errorf("Missing or invalid Status. Add: **Status**: PENDING, PASS, or FAIL")
	}
}

func (v *Validator) checkAgentInvocation(sec Section, res *Result) {
	if !sec.Found {
		res.errorf("Cannot parse %s", sec.Name)
		return
	}

	sd := Scan(sec.Text)

	tsField, ok := sd.Field("Invocation Timestamp")
	if !ok || !timestampRe.MatchString(tsField.Value) {
		res.errorf("Missing Invocation Timestamp. Add: **Invocation Timestamp**: ISO 8601")
	} else {
		raw := timestampRe.FindString(tsField.Value)
		if _, err := time.Parse(timestampLayout, raw); err != nil {
			res.errorf("Invalid timestamp format: %s", raw)
		}
	}

	invoked := 0
	required := len(v.rules.RequiredAgents)
	for _, agent := range v.rules.RequiredAgents {
		row, found := findAgentRow(sd.Rows, agent)
		switch {
		case !found || len(row.Cells) < 2:
			res.errorf("Agent '%s' not listed in invocation table", agent)
		case row.Cells[1] == "YES":
			invoked++
		case row.Cells[1] != "NO":
			res.errorf("Agent '%s' not listed in invocation table", agent)
		}
	}

	// Hard gate: every required agent must be invoked, no exceptions.
	if invoked < required {
		res.errorf("BLOCKING: Only %d/%d agents invoked. All %d required agents must be invoked.",
			invoked, required, required)
	}

	if unchecked := strings.Count(sec.Text, "[ ]"); unchecked > 0 {
		res.errorf("Unchecked verification items in Section 1 (%d items)", unchecked)
	}
}

func (v *Validator) checkAgentResponses(sec Section, res *Result) {
	if !sec.Found {
		res.errorf("Cannot parse %s", sec.Name)
		return
	}

	for _, agent := range v.rules.RequiredAgents {
		block, found := responseBlock(sec.Text, agent)
		if !found {
			res.errorf("Missing response section for '%s'", agent)
			continue
		}

		bd := Scan(block)

		status, ok := bd.Field("Status")
		switch {
		case !ok:
			res.errorf("Missing Status for '%s'", agent)
		case !containsString(validAgentStatuses, firstWord(status.Value)):
			res.errorf("Invalid Status '%s' for '%s'", firstWord(status.Value), agent)
		}

		summaryField, ok := bd.Field("Summary")
		if !ok {
			res.errorf("Missing Summary for '%s'", agent)
			continue
		}
		summary := collectFieldText(bd, summaryField)
		if strings.Contains(summary, "[REQUIRED") {
			res.errorf("'%s' summary contains unfilled placeholder", agent)
		} else if len(summary) < v.rules.MinSummaryLength {
			res.warnf("'%s' summary too short (%d chars)", agent, len(summary))
		}
	}
}

func (v *Validator) checkChecklist(sec Section, res *Result) {
	if !sec.Found {
		res.errorf("Cannot parse %s", sec.Name)
		return
	}

	sd := Scan(sec.Text)
	rows := numberedRows(sd.Rows, 5)

	if len(rows) == 0 {
		res.warnf("No checklist items found in Section 3")
	} else {
		res.infof("Found %d checklist items", len(rows))
		coordinatorKey := strings.TrimSuffix(v.rules.Coordinator, "-Agent")
		for i, row := range rows {
			text := strings.Join(row.Cells, " | ")
			if strings.Contains(text, "[REQUIRED]") {
				res.errorf("Checklist item #%d contains unfilled placeholder", i+1)
			}
			if !v.hasKnownSource(text, coordinatorKey) {
				res.warnf("Checklist item #%d may be missing source agent", i+1)
			}
		}
	}

	if f, ok := sd.Field("Total Items"); !ok || !intRe.MatchString(f.Value) {
		res.errorf("Missing Total Items count")
	}
}

func (v *Validator) hasKnownSource(rowText, coordinatorKey string) bool {
	for _, agent := range v.rules.RequiredAgents {
		if strings.Contains(rowText, agent) {
			return true
		}
	}
	return strings.Contains(rowText, coordinatorKey)
}

func (v *Validator) checkUnresolvedIssues(sec Section, doc *Doc, res *Result) {
	if !sec.Found {
		res.errorf("Cannot parse %s", sec.Name)
		return
	}

	hasConcerns := false
	for _, f := range doc.FieldsNamed("Status") {
		w := firstWord(f.Value)
		if w == "CONCERN" || w == "QUESTION" {
			hasConcerns = true
			break
		}
	}

	sd := Scan(sec.Text)
	hasIssues := len(numberedRows(sd.Rows, 5)) > 0 || strings.Contains(sec.Text, "None")

	if hasConcerns && !hasIssues {
		res.errorf("Agents raised CONCERN/QUESTION but Section 4 has no issues listed")
	}
}

func (v *Validator) checkSignoffs(sec Section, res *Result) {
	if !sec.Found {
		res.errorf("Cannot parse %s", sec.Name)
		return
	}

	sd := Scan(sec.Text)

	if !hasSignoffRow(sd.Rows, v.rules.Coordinator, validCoordinatorSignoffs) {
		res.errorf("%s sign-off missing or invalid", v.rules.Coordinator)
	}

	for _, agent := range v.rules.RequiredAgents {
		if !hasSignoffRow(sd.Rows, agent, validSignoffValues) {
			res.errorf("'%s' sign-off missing or invalid", agent)
		}
	}
}

func (v *Validator) checkGateDecision(sec Section, doc *Doc, res *Result) {
	if !sec.Found {
		res.errorf("Cannot parse %s", sec.Name)
		return
	}

	sd := Scan(sec.Text)

	f, ok := sd.Field("Decision")
	if !ok || firstWord(f.Value) == "" {
		res.errorf("Missing Gate Decision. Add: **Decision**: PASS, FAIL, or CONDITIONAL")
		return
	}

	decision := firstWord(f.Value)
	if !containsString(validGateDecisions, decision) {
		res.errorf("Invalid Decision '%s'", decision)
		return
	}

	// Cross-validation: a PASS decision cannot coexist with a REJECTED
	// coordinator sign-off anywhere in the document.
	if decision == "PASS" && hasSignoffRow(doc.Rows, v.rules.Coordinator, []string{"REJECTED"}) {
		res.errorf("INCONSISTENCY: Decision is PASS but %s signed REJECTED", v.rules.Coordinator)
	}
	if decision == "FAIL" && !strings.Contains(sec.Text, "Blocking Issues") {
		res.warnf("Decision is FAIL but no Blocking Issues documented")
	}
	if decision == "CONDITIONAL" && !strings.Contains(sec.Text, "Conditions") {
		res.warnf("Decision is CONDITIONAL but no Conditions documented")
	}
}

func (v *Validator) checkValidationSection(sec Section, res *Result) {
	if !sec.Found {
		res.errorf("Cannot parse %s", sec.Name)
		return
	}

	sd := Scan(sec.Text)

	// Both tolerated as not-yet-filled: the validation section is written
	// by this tool after the fact.
	if f, ok := sd.Field("Validation Result"); !ok ||
		(firstWord(f.Value) != "VALID" && firstWord(f.Value) != "INVALID") {
		res.warnf("Validation Result not yet filled")
	}

	if f, ok := sd.Field("Validation Timestamp"); !ok || !timestampRe.MatchString(f.Value) {
		res.warnf("Validation Timestamp not yet filled")
	}
}

func (v *Validator) checkPlaceholders(content string, res *Result) {
	found := placeholder.FindAllString(content, -1)
	if len(found) == 0 {
		return
	}

	res.errorf("Found %d unfilled [REQUIRED] placeholders", len(found))

	seen := make(map[string]bool)
	for _, p := range found {
		if seen[p] {
			continue
		}
		seen[p] = true
		res.infof("  Placeholder: %s", p)
		if len(seen) == 5 {
			break
		}
	}
}

// Enumerations the template allows. These are part of the document format,
// not operator configuration, so they stay fixed here.
var (
	validAgentStatuses       = []string{"OK", "CONCERN", "QUESTION", "STANDBY"}
	validGateDecisions       = []string{"PASS", "FAIL", "CONDITIONAL"}
	validCoordinatorSignoffs = []string{"APPROVED", "REJECTED", "CONDITIONAL"}
	validSignoffValues       = []string{"APPROVED", "REJECTED", "CONDITIONAL", "N/A"}
)

// gateTypeOf normalizes a Gate Type field value to "Input", "Output", or "".
func gateTypeOf(value string) string {
	switch firstWord(value) {
	case "Input", "input", "INPUT":
		return "Input"
	case "Output", "output", "OUTPUT":
		return "Output"
	}
	return ""
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func containsString(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}

// findAgentRow locates the table row whose first cell names the agent.
func findAgentRow(rows []Row, agent string) (Row, bool) {
	for _, row := range rows {
		if len(row.Cells) > 0 && row.Cells[0] == agent {
			return row, true
		}
	}
	return Row{}, false
}

// hasSignoffRow reports whether a row exists with the agent in the first
// cell and one of the allowed values in the second.
func hasSignoffRow(rows []Row, agent string, allowed []string) bool {
	for _, row := range rows {
		if len(row.Cells) >= 2 && row.Cells[0] == agent && containsString(allowed, row.Cells[1]) {
			return true
		}
	}
	return false
}

// numberedRows filters rows to checklist/issue rows: a numeric first cell
// and at least minCells columns.
func numberedRows(rows []Row, minCells int) []Row {
	var out []Row
	for _, row := range rows {
		if len(row.Cells) >= minCells && row.Cells[0] != "" && intRe.MatchString(row.Cells[0]) &&
			intRe.FindString(row.Cells[0]) == row.Cells[0] {
			out = append(out, row)
		}
	}
	return out
}

// responseBlock extracts the `### <agent> Response` block from section text,
// running until the next level-3 heading or end of section.
func responseBlock(text, agent string) (string, bool) {
	marker := "### " + agent + " Response"
	start := strings.Index(text, marker)
	if start < 0 {
		return "", false
	}
	rest := text[start+len(marker):]
	if end := strings.Index(rest, "\n###"); end >= 0 {
		rest = rest[:end]
	}
	return rest, true
}

// collectFieldText gathers a field's value plus its continuation lines, for
// fields whose text starts on the line after the label (e.g. Summary).
// Collection stops at the next field, heading, table row, or blank line
// following non-blank content.
func collectFieldText(d *Doc, f Field) string {
	parts := []string{f.Value}
	for i := f.Line + 1; i < len(d.Lines); i++ {
		line := strings.TrimSpace(d.Lines[i])
		if line == "" {
			if strings.TrimSpace(strings.Join(parts, "")) != "" {
				break
			}
			continue
		}
		if strings.HasPrefix(line, "**") || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "|") {
			break
		}
		parts = append(parts, line)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
