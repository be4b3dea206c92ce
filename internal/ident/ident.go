// Package ident maps raw, dialect-specific figure/table markers to the two
// identifier schemes used across the pipeline:
//
//   - storage ids: [appendix_](fig|tab)<n>, with subfigure image keys
//     <id>_<letter> (used for file names, sidecar keys, remote keys)
//   - display ids: <n> or <n>.<letter> (used in placeholder tokens and the
//     REST surface)
//
// The two grammars are deliberately kept as separate functions. Structured
// ids coming from the document always win over numbers recovered from
// caption text.
package ident

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ar5iv element ids look like S3.F2, A4.T1, S3.F2.sf1. A leading A
	// marks appendix sections.
	structuredRe = regexp.MustCompile(`^([SA])(\d+)\.([FT])(\d+)`)

	// Loose display-id grammar: a number optionally followed by a single
	// letter separated by "." or "_" (or nothing).
	looseRe = regexp.MustCompile(`(\d+)(?:[._]?([a-zA-Z]))?`)

	// Explicit panel index, e.g. the "1" in S3.F2.sf1.
	panelSuffixRe = regexp.MustCompile(`(?:sf|sub)?(\d+)$`)

	canonicalRe = regexp.MustCompile(`^(appendix_)?(fig|tab)(\d+)(?:_([a-z]))?$`)
)

// NormalizeRawID converts a structured ar5iv element id to a storage id.
// "S3.F2" -> "fig2", "A4.T1" -> "appendix_tab1". The second return value is
// false when the input does not match the structured grammar; callers fall
// back to positional numbering.
func NormalizeRawID(raw string) (string, bool) {
	m := structuredRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return "", false
	}
	var b strings.Builder
	if m[1] == "A" {
		b.WriteString("appendix_")
	}
	if m[3] == "T" {
		b.WriteString("tab")
	} else {
		b.WriteString("fig")
	}
	b.WriteString(m[4])
	return b.String(), true
}

// ToDisplayID converts a loosely formatted reference ("figure3", "fig1_a",
// "appendix_fig2", "3.a") to a display id. Known prefix tokens are stripped
// before the numeric token is extracted. Returns false when no number is
// present.
func ToDisplayID(raw string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	for _, prefix := range []string{"appendix", "figure", "fig", "table", "tab", "_"} {
		s = strings.TrimPrefix(s, prefix)
	}
	m := looseRe.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	if m[2] != "" {
		return m[1] + "." + strings.ToLower(m[2]), true
	}
	return m[1], true
}

// ParseDisplayID splits a display id into its number and optional subfigure
// letter. "3" -> (3, ""), "3.a" -> (3, "a").
func ParseDisplayID(display string) (num int, letter string, ok bool) {
	d, ok := ToDisplayID(display)
	if !ok {
		return 0, "", false
	}
	numPart, letterPart, found := strings.Cut(d, ".")
	n, err := strconv.Atoi(numPart)
	if err != nil {
		return 0, "", false
	}
	if found {
		return n, letterPart, true
	}
	return n, "", true
}

// ParseCanonical decomposes a storage id. "appendix_tab1" -> (1, "tab",
// true, "", true); "fig3_a" -> (3, "fig", false, "a", true).
func ParseCanonical(id string) (num int, kind string, appendix bool, letter string, ok bool) {
	m := canonicalRe.FindStringSubmatch(id)
	if m == nil {
		return 0, "", false, "", false
	}
	n, err := strconv.Atoi(m[3])
	if err != nil {
		return 0, "", false, "", false
	}
	return n, m[2], m[1] != "", m[4], true
}

// PositionalID builds the fallback storage id from the enumeration index
// (1-based) when no structured id could be recovered.
func PositionalID(isTable bool, index int) string {
	if isTable {
		return fmt.Sprintf("tab%d", index)
	}
	return fmt.Sprintf("fig%d", index)
}

// LetterForIndex maps a 1-based index to a subfigure letter (1 -> a).
// Indexes past z return "" and the caller falls back to sequence position.
func LetterForIndex(i int) string {
	if i < 1 || i > 26 {
		return ""
	}
	return string(rune('a' + i - 1))
}

// SubfigureLetter derives a panel's letter. An explicit numeric suffix in
// the panel's own id (the 2 in "S3.F1.sf2") maps deterministically to a
// letter; otherwise the 0-based sequence position is used.
func SubfigureLetter(rawID string, seq int) string {
	segments := strings.Split(strings.TrimSpace(rawID), ".")
	last := segments[len(segments)-1]
	if m := panelSuffixRe.FindStringSubmatch(last); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			if l := LetterForIndex(n); l != "" {
				return l
			}
		}
	}
	if l := LetterForIndex(seq + 1); l != "" {
		return l
	}
	// Past z; keep ids unique rather than correct-looking.
	return fmt.Sprintf("z%d", seq+1)
}

// SubfigureKey is the storage key for a materialized subfigure image.
func SubfigureKey(parentID, letter string) string {
	return parentID + "_" + letter
}
