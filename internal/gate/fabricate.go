package gate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Anti-fabrication heuristics. These run over the whole document plus file
// metadata and flag evidence of forged or low-effort gate documentation.
// Heuristic matches are warnings; unknown sign-off identities and
// future-dated timestamps are unambiguous integrity violations and escalate
// to errors.

const (
	summaryDupePrefix   = 100
	checklistDupePrefix = 50
)

var checkpointPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\*\*Git Checkpoint\*\*:\s*([a-f0-9]{7,40})`),
	regexp.MustCompile(`(?i)\*\*Commit\*\*:\s*([a-f0-9]{7,40})`),
	regexp.MustCompile(`(?i)commit[:\s]+([a-f0-9]{7,40})`),
	regexp.MustCompile(`(?i)\b([a-f0-9]{7,40})\s+Stage`),
}

func (v *Validator) checkTimestamps(doc *Doc, fi os.FileInfo, res *Result) {
	now := v.now()

	var gateDate time.Time
	haveDate := false
	if f, ok := doc.Field("Date"); ok && dateRe.MatchString(f.Value) {
		if parsed, err := time.Parse(dateLayout, dateRe.FindString(f.Value)); err == nil {
			gateDate = parsed
			haveDate = true
			if dayOf(parsed).After(dayOf(now)) {
				res.errorf("FABRICATION INDICATOR: Gate date %s is in the future",
					parsed.Format(dateLayout))
			}
		}
	}

	var invocTime time.Time
	haveInvoc := false
	if f, ok := doc.Field("Invocation Timestamp"); ok && timestampRe.MatchString(f.Value) {
		if parsed, err := time.Parse(timestampLayout, timestampRe.FindString(f.Value)); err == nil {
			invocTime = parsed
			haveInvoc = true
			if parsed.After(now) {
				res.errorf("FABRICATION INDICATOR: Invocation timestamp is in the future")
			}
		}
	}

	if f, ok := doc.Field("Validation Timestamp"); ok && haveInvoc && timestampRe.MatchString(f.Value) {
		if parsed, err := time.Parse(timestampLayout, timestampRe.FindString(f.Value)); err == nil {
			if parsed.Before(invocTime) {
				res.errorf("FABRICATION INDICATOR: Validation timestamp is before invocation timestamp")
			}
		}
	}

	// A file written long before its claimed gate date suggests backdating.
	if fi != nil && haveDate {
		mtime := dayOf(fi.ModTime())
		if mtime.Before(dayOf(gateDate)) {
			days := int(dayOf(gateDate).Sub(mtime).Hours() / 24)
			if days > v.rules.BackdateGraceDays {
				res.warnf("SUSPICIOUS: File mtime is %d days before claimed gate date", days)
			}
		}
	}
}

func (v *Validator) checkContentIntegrity(doc *Doc, res *Result) {
	// Copy-pasted agent responses: summaries that collapse to too few
	// distinct prefixes.
	var summaries []string
	for _, f := range doc.FieldsNamed("Summary") {
		summaries = append(summaries, collectFieldText(doc, f))
	}
	if len(summaries) > 2 {
		distinct := distinctPrefixes(summaries, summaryDupePrefix)
		if 2*distinct < len(summaries) {
			res.warnf("FABRICATION INDICATOR: Multiple agent responses appear identical (%d duplicates)",
				len(summaries)-distinct)
		}
	}

	// Checklist rows with low variety.
	var items []string
	for _, row := range doc.Rows {
		if len(row.Cells) >= 2 && intRe.MatchString(row.Cells[0]) &&
			intRe.FindString(row.Cells[0]) == row.Cells[0] {
			items = append(items, row.Cells[1])
		}
	}
	if len(items) > 5 {
		distinct := distinctPrefixes(items, checklistDupePrefix)
		if 3*distinct < len(items) {
			res.warnf("FABRICATION INDICATOR: Checklist items show low variety (possible copy-paste)")
		}
	}

	// Sign-off rows naming agents nobody has heard of.
	known := append([]string{v.rules.Coordinator}, v.rules.RequiredAgents...)
	for _, row := range doc.Rows {
		if len(row.Cells) < 2 || !strings.Contains(row.Cells[0], "Agent") ||
			!containsString(validSignoffValues, row.Cells[1]) {
			continue
		}
		name := row.Cells[0]
		if !knownAgentName(known, name) {
			res.errorf("FABRICATION INDICATOR: Unknown agent '%s' in sign-off", name)
		}
	}
}

func (v *Validator) checkSequentialConsistency(doc *Doc, res *Result) {
	gateType, phase, stage, ok := gateCoordinates(doc)
	if !ok || gateType != "Output" {
		return
	}

	// An output gate should reference or sit beside its input gate.
	ref := fmt.Sprintf("phase%d-input-gate", phase)
	referenced := strings.Contains(strings.ToLower(strings.Join(doc.Lines, "\n")), ref)

	inputPath := filepath.Join(v.gatesDir, fmt.Sprintf("stage%d", stage), ref+".md")
	_, statErr := os.Stat(inputPath)

	if !referenced && statErr != nil {
		res.warnf("SEQUENCE WARNING: Phase %d Output gate has no corresponding Input gate", phase)
	}
}

func (v *Validator) checkGitCheckpoint(content string, doc *Doc, res *Result) {
	gateType, phase, _, ok := gateCoordinates(doc)
	if !ok || gateType != "Output" || phase < 2 {
		return
	}

	var hash string
	for _, re := range checkpointPatterns {
		if m := re.FindStringSubmatch(content); m != nil {
			hash = strings.ToLower(m[1])
			break
		}
	}

	if hash == "" {
		res.warnf("Phase %d Output gate should reference a git checkpoint commit hash", phase)
		return
	}

	if !hashRe.MatchString(hash) {
		res.warnf("Invalid commit hash format: %s", hash)
		return
	}

	// Advisory only: absence of git must never fail the record.
	if v.git == nil {
		res.infof("Git checkpoint referenced: %s", shortHash(hash))
		return
	}
	found, available := v.git.VerifyCommit(hash)
	switch {
	case !available:
		res.infof("Git checkpoint referenced: %s", shortHash(hash))
	case found:
		res.infof("Git checkpoint verified: %s", shortHash(hash))
	default:
		res.warnf("Commit hash %s not found in git history", shortHash(hash))
	}
}

// gateCoordinates reads the Gate Type, Phase, and Stage metadata fields.
func gateCoordinates(doc *Doc) (gateType string, phase, stage int, ok bool) {
	typeField, haveType := doc.Field("Gate Type")
	phaseField, havePhase := doc.Field("Phase")
	stageField, haveStage := doc.Field("Stage")
	if !haveType || !havePhase || !haveStage {
		return "", 0, 0, false
	}

	gateType = gateTypeOf(typeField.Value)
	if gateType == "" {
		return "", 0, 0, false
	}

	phase, err := strconv.Atoi(intRe.FindString(phaseField.Value))
	if err != nil {
		return "", 0, 0, false
	}
	stage, err = strconv.Atoi(intRe.FindString(stageField.Value))
	if err != nil {
		return "", 0, 0, false
	}

	return gateType, phase, stage, true
}

func distinctPrefixes(values []string, n int) int {
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		s := strings.TrimSpace(v)
		if len(s) > n {
			s = s[:n]
		}
		seen[s] = true
	}
	return len(seen)
}

// knownAgentName matches exactly, or as a substring in either direction to
// tolerate formatting variations like bold markers around the name.
func knownAgentName(known []string, name string) bool {
	for _, k := range known {
		if name == k || strings.Contains(name, k) || strings.Contains(k, name) {
			return true
		}
	}
	return false
}

func shortHash(h string) string {
	if len(h) > 7 {
		return h[:7]
	}
	return h
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
