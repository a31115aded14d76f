// Package template implements the single-pass "{field}" replacement
// language used for dashboard status names, URLs, and descriptions.
package template

import (
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

var fieldRe = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

type partKind int

const (
	literalPart partKind = iota
	fieldPart
)

type part struct {
	kind partKind
	text string // literal text, or field name
}

// String is a parsed template. Replacement never recurses: a field's
// looked-up value is inserted verbatim, even if it itself contains "{...}".
type String struct {
	parts []part
}

// New parses a template string. Malformed field references (e.g. an empty
// "{}" or one containing characters outside [A-Za-z0-9_]) are treated as
// literal text rather than rejected.
func New(s string) String {
	var parts []part
	last := 0
	for _, loc := range fieldRe.FindAllStringSubmatchIndex(s, -1) {
		start, end := loc[0], loc[1]
		name := s[loc[2]:loc[3]]
		if start > last {
			parts = append(parts, part{kind: literalPart, text: s[last:start]})
		}
		parts = append(parts, part{kind: fieldPart, text: name})
		last = end
	}
	if last < len(s) {
		parts = append(parts, part{kind: literalPart, text: s[last:]})
	}
	return String{parts: parts}
}

// Replace expands every named field reference against data. A reference to
// an unknown field expands to the empty string and logs a warning.
func (t String) Replace(data map[string]string) string {
	var b strings.Builder
	for _, p := range t.parts {
		switch p.kind {
		case literalPart:
			b.WriteString(p.text)
		case fieldPart:
			value, ok := data[p.text]
			if !ok {
				logrus.WithField("field", p.text).Warn("template references unknown field")
				continue
			}
			b.WriteString(value)
		}
	}
	return b.String()
}
