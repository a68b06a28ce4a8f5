package note

import (
	"regexp"
	"strings"
)

var (
	deniesLeadIn = regexp.MustCompile(`(?i)^denies\b`)
	anyLeadIn    = regexp.MustCompile(`(?i)^(?:denies|no)\s+`)
)

// ComposePanel builds the sentence block for one panel: positives, then
// "Denies ..." and "No ..." negatives, then checks. Returns "" when every list
// is empty.
func ComposePanel(title string, positives, negatives, checks []string) string {
	if len(positives) == 0 && len(negatives) == 0 && len(checks) == 0 {
		return ""
	}

	var sentences []string
	if len(positives) > 0 {
		sentences = append(sentences, upperFirst(strings.Join(positives, "; "))+".")
	}

	var denies, nos []string
	for _, phrase := range negatives {
		phrase = strings.TrimSpace(phrase)
		isDenies := deniesLeadIn.MatchString(phrase)
		// Any other lead-in lands in the "No" bucket.
		item := lowerFirst(strings.TrimSpace(anyLeadIn.ReplaceAllString(phrase, "")))
		if item == "" {
			continue
		}
		if isDenies {
			denies = append(denies, item)
		} else {
			nos = append(nos, item)
		}
	}
	if len(denies) > 0 {
		sentences = append(sentences, "Denies "+OxfordJoin(denies, "and")+".")
	}
	if len(nos) > 0 {
		sentences = append(sentences, "No "+OxfordJoin(nos, "or")+".")
	}
	if len(checks) > 0 {
		sentences = append(sentences, strings.Join(checks, "; ")+".")
	}

	if len(sentences) == 0 {
		return ""
	}
	if title == "" {
		return strings.Join(sentences, " ")
	}
	return title + ": " + strings.Join(sentences, " ")
}

// OxfordJoin joins items as prose with a serial comma before conj.
func OxfordJoin(items []string, conj string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " " + conj + " " + items[1]
	}
	return strings.Join(items[:len(items)-1], ", ") + ", " + conj + " " + items[len(items)-1]
}
