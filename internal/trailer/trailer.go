// Package trailer extracts RFC-2822-style "Token: value" trailers from the
// tail of commit and comment messages, and derives implicit trailers from
// comment shorthands and award-emoji reactions.
package trailer

import (
	"regexp"
	"strings"
)

// Trailer is a single "Token: value" pair extracted from a message, or
// synthesized from a shorthand/award.
type Trailer struct {
	Token string
	Value string
}

var trailerLineRe = regexp.MustCompile(`^([A-Za-z-]+):\s+(.+?)\s*$`)

// Extract returns the maximal tail run of consecutive "Token: value" lines
// in message, or nil if there is none. No blank line is required between
// the run and the body before it.
//
// Lines are walked from the end of the message backwards. Exactly-empty
// trailing lines are skipped first (they represent a blank line after the
// last trailer, or trailing blank lines with no trailers at all); once a
// non-empty line is reached, lines are consumed for as long as they match
// the trailer pattern. A line that is merely whitespace (not exactly
// empty), or any other non-matching line, stops the scan immediately
// without being skipped.
func Extract(message string) []Trailer {
	lines := strings.Split(message, "\n")

	i := len(lines) - 1
	for i >= 0 && lines[i] == "" {
		i--
	}

	var reversed []Trailer
	for i >= 0 {
		m := trailerLineRe.FindStringSubmatch(lines[i])
		if m == nil {
			break
		}
		reversed = append(reversed, Trailer{Token: m[1], Value: m[2]})
		i--
	}
	if len(reversed) == 0 {
		return nil
	}

	trailers := make([]Trailer, len(reversed))
	for j, t := range reversed {
		trailers[len(reversed)-1-j] = t
	}
	return trailers
}

// shortcut tokens recognized in comment bodies, see spec.md §3.
var shortcutTrailers = map[string]string{
	"+1":          "Acked-by",
	":+1:":        "Acked-by",
	":thumbsup:":  "Acked-by",
	"+2":          "Reviewed-by",
	"+3":          "Tested-by",
	"-1":          "Rejected-by",
	":-1:":        "Rejected-by",
	":thumbsdown:": "Rejected-by",
}

// awardTrailers maps a normalized award emoji name (tone suffix stripped)
// to the trailer token it implies.
var awardTrailers = map[string]string{
	"100":       "Acked-by",
	"clap":      "Acked-by",
	"tada":      "Acked-by",
	"thumbsup":  "Acked-by",
	"no_good":   "Rejected-by",
	"thumbsdown": "Rejected-by",
}

var toneSuffixRe = regexp.MustCompile(`_tone[1-5]$`)

// ShortcutTrailer returns the implicit trailer token for a comment body that
// is exactly one of the recognized shorthand reactions, and whether one
// matched.
func ShortcutTrailer(commentBody string) (string, bool) {
	token, ok := shortcutTrailers[strings.TrimSpace(commentBody)]
	return token, ok
}

// AwardTrailer returns the implicit trailer token for an award emoji name
// (e.g. "thumbsup", "clap_tone3"), and whether one matched.
func AwardTrailer(name string) (string, bool) {
	normalized := toneSuffixRe.ReplaceAllString(name, "")
	token, ok := awardTrailers[normalized]
	return token, ok
}
