// Package extract turns conversational text into lead fields.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/leadsync/internal/model"
)

var (
	emailRe  = regexp.MustCompile(`[\p{L}\p{N}_.\-]+@[\p{L}\p{N}_.\-]+\.[\p{L}\p{N}_]+`)
	budgetRe = regexp.MustCompile(`(?i)\bbudget[:\s]+([$€]\d+(?:[.,]\d+)*)`)

	// labelRes capture the run of word characters and whitespace after a label.
	labelRes = map[model.Field]*regexp.Regexp{
		model.FieldName:     labelRe(`name`),
		model.FieldCompany:  labelRe(`company`),
		model.FieldTimeline: labelRe(`timeline`),
		model.FieldNeeds:    labelRe(`(?:needs|description)`),
	}

	// nextLabelRe finds where a captured run runs into the following label.
	nextLabelRe = regexp.MustCompile(`(?i)\b(?:name|company|budget|timeline|needs|description|e-?mail)\s*[:$€]`)
)

func labelRe(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + label + `[:\s]+([\p{L}\p{N}_\s]+)`)
}

// structuredKeys are the keys the structured fast path requires.
var structuredKeys = model.CanonicalFields

// Extractor extracts lead fields from text. The zero value is ready to use.
type Extractor struct{}

// Extract is a convenience wrapper around Extractor.Extract.
func Extract(text string) model.ExtractionResult {
	return Extractor{}.Extract(text)
}

// Extract returns the fields recognized in text. A complete structured record
// (a JSON object with all canonical keys) is returned verbatim; anything else
// is scanned for labelled values, taking the leftmost match per field. Fields
// that are not found are absent from the result.
func (Extractor) Extract(text string) model.ExtractionResult {
	if res, ok := parseStructured(text); ok {
		return res
	}

	res := make(model.ExtractionResult)

	if m := emailRe.FindString(text); m != "" {
		res[model.FieldEmail] = m
	}
	for f, re := range labelRes {
		if v, ok := scanLabel(text, re); ok {
			res[f] = v
		}
	}
	if m := budgetRe.FindStringSubmatch(text); m != nil {
		res[model.FieldBudget] = strings.TrimSpace(m[1])
	}

	zap.L().Debug("extract: scanned text",
		zap.Int("fields", len(res)),
		zap.Int("text_len", len(text)),
	)
	return res
}

// scanLabel returns the value following the first match of re, cut short at
// the next label so adjacent fields on one line do not bleed together.
func scanLabel(text string, re *regexp.Regexp) (string, bool) {
	loc := re.FindStringSubmatchIndex(text)
	if loc == nil {
		return "", false
	}
	start, end := loc[2], loc[3]
	if next := nextLabelRe.FindStringIndex(text[start:]); next != nil && start+next[0] < end {
		end = start + next[0]
	}
	return strings.TrimSpace(text[start:end]), true
}

func parseStructured(text string) (model.ExtractionResult, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		return nil, false
	}

	res := make(model.ExtractionResult, len(structuredKeys)+1)
	for _, f := range structuredKeys {
		v, ok := raw[string(f)]
		if !ok {
			return nil, false
		}
		res[f] = rawString(v)
	}
	for _, key := range []string{"needs", "description"} {
		if v, ok := raw[key]; ok {
			res[model.FieldNeeds] = rawString(v)
			break
		}
	}
	return res, true
}

// rawString returns JSON strings unquoted and any other value as its JSON text.
func rawString(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	if string(v) == "null" {
		return ""
	}
	return string(v)
}
