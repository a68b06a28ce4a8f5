package note

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ehr/notewriter/internal/domain/catalog"
	"github.com/ehr/notewriter/internal/domain/selection"
)

var (
	markerPattern = regexp.MustCompile(`^\+\s*`)
	nlPattern     = regexp.MustCompile(`(?i)(^|\s)nl(\s|$)`)
)

// BuildPositivePhrase renders a positive chip: side, base text, grade label,
// tags, then free text.
func BuildPositivePhrase(item catalog.ItemDef, v selection.Value, gradeLabels []string) string {
	base := item.AbnText
	if base == "" {
		base = item.Label
	}
	if base == "" {
		base = item.ID
	}
	base = strings.TrimSpace(stripMarker(base))

	var parts []string
	if v.Side != "" {
		parts = append(parts, catalog.SideLabel(v.Side))
	}
	parts = append(parts, base)

	var tagOrder []string
	if item.Mods != nil {
		tagOrder = item.Mods.Tags
		if v.Grade != nil && item.Mods.Grades != "" {
			if g := *v.Grade; g >= 0 && g < len(gradeLabels) {
				parts = append(parts, gradeLabels[g])
			}
		}
	}
	parts = append(parts, v.ActiveTags(tagOrder)...)

	if text := strings.TrimSpace(v.Text); text != "" {
		parts = append(parts, text)
	}
	return strings.Join(parts, " ")
}

// BuildNegativePhrase renders a negative chip. An explicit negText wins;
// otherwise the label is lower-cased and prefixed with leadIn.
func BuildNegativePhrase(item catalog.ItemDef, leadIn string) string {
	if item.NegText != "" {
		return item.NegText
	}
	label := item.Label
	if label == "" {
		label = item.ID
	}
	label = lowerFirst(strings.TrimSpace(stripMarker(label)))
	if leadIn == "" {
		return label
	}
	return leadIn + " " + label
}

// NormalizeCheckLabel cleans a checkbox label for output: drops the "+"
// marker, expands a standalone "nl" to "Normal" and capitalises.
func NormalizeCheckLabel(raw string) string {
	s := stripMarker(strings.TrimSpace(raw))
	if loc := nlPattern.FindStringSubmatchIndex(s); loc != nil {
		s = s[:loc[0]] + s[loc[2]:loc[3]] + "Normal" + s[loc[4]:loc[5]] + s[loc[1]:]
	}
	return upperFirst(s)
}

func stripMarker(s string) string {
	return markerPattern.ReplaceAllString(s, "")
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}
