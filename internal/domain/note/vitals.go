package note

import (
	"regexp"
	"strings"
)

// Vitals is the canonical two-line rendering of a vital signs field.
type Vitals struct {
	Line1 string
	Line2 string
}

// Lines returns the non-empty lines in order.
func (v *Vitals) Lines() []string {
	if v == nil {
		return nil
	}
	var out []string
	if v.Line1 != "" {
		out = append(out, v.Line1)
	}
	if v.Line2 != "" {
		out = append(out, v.Line2)
	}
	return out
}

var (
	tempPattern     = regexp.MustCompile(`(?i)Temp\s*:?\s*([\d.]+)\s*°?\s*([FC])(?:\s*\(([^)]+)\))?`)
	bpPattern       = regexp.MustCompile(`(?i)BP\s*:?\s*(\(!\))?\s*([0-9]{2,3})\s*/\s*([0-9]{2,3})`)
	pulsePattern    = regexp.MustCompile(`(?i)\b(?:Pulse|HR)\s*:?\s*([0-9]{1,3})`)
	respPattern     = regexp.MustCompile(`(?i)\b(?:Resp|RR)\s*:?\s*([0-9]{1,3})`)
	spo2Pattern     = regexp.MustCompile(`(?i)(?:SpO2|O2\s*Sat|Oxygen\s*Sat)\s*:?\s*([0-9]{1,3})\s*%`)
	bareO2Pattern   = regexp.MustCompile(`(?i)\bO2\b\s*([0-9]{1,3})\s*%`)
	bmiUnitPattern  = regexp.MustCompile(`(?i)BMI\s*:?\s*([\d.]+)\s*kg/m(?:2|²)`)
	bmiPattern      = regexp.MustCompile(`(?i)BMI\s*:?\s*([\d.]+)`)
	legacyO2Token   = regexp.MustCompile(`(?i)\bOxygen sat \(O2\)`)
	legacyO2Removal = regexp.MustCompile(`(?i)\s*,?\s*\bOxygen sat \(O2\)`)
	doubleComma     = regexp.MustCompile(`,\s*,`)
	leadingComma    = regexp.MustCompile(`^\s*,\s*`)
	trailingComma   = regexp.MustCompile(`,\s*$`)
)

// ScrubVitalSigns extracts vitals from free text. Each vital is matched on its
// own so a missing one never hides the rest. Returns nil when nothing was found.
func ScrubVitalSigns(raw string) *Vitals {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	spo2 := extractSpO2(raw)
	var parts []string
	for _, p := range []string{
		extractTemperature(raw),
		extractBloodPressure(raw),
		extractPulse(raw),
		extractRespiratoryRate(raw),
		spo2Phrase(spo2),
	} {
		if p != "" {
			parts = append(parts, p)
		}
	}

	line1 := strings.Join(parts, ", ")
	// Legacy layout keeps two spaces before the heart rate.
	line1 = strings.Replace(line1, ", HR", ",  HR", 1)
	line1 = replaceLegacySpO2Token(line1, spo2)

	var line2 string
	if bmi := extractBMI(raw); bmi != "" {
		line2 = "BMI: " + bmi
	}

	if line1 == "" && line2 == "" {
		return nil
	}
	return &Vitals{Line1: line1, Line2: line2}
}

func extractTemperature(s string) string {
	m := tempPattern.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	out := "Temp " + m[1] + " °" + strings.ToUpper(m[2])
	if site := strings.TrimSpace(m[3]); site != "" {
		out += " (" + site + ")"
	}
	return out
}

func extractBloodPressure(s string) string {
	m := bpPattern.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	out := "BP "
	if m[1] != "" {
		out += "(!) "
	}
	return out + m[2] + "/" + m[3]
}

func extractPulse(s string) string {
	if m := pulsePattern.FindStringSubmatch(s); m != nil {
		return "HR " + m[1]
	}
	return ""
}

func extractRespiratoryRate(s string) string {
	if m := respPattern.FindStringSubmatch(s); m != nil {
		return "RR " + m[1]
	}
	return ""
}

func extractSpO2(s string) string {
	if m := spo2Pattern.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	if m := bareO2Pattern.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

func spo2Phrase(value string) string {
	if value == "" {
		return ""
	}
	return "SpO2 " + value + "%"
}

func extractBMI(s string) string {
	if m := bmiUnitPattern.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	if m := bmiPattern.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

// replaceLegacySpO2Token swaps the old "Oxygen sat (O2)" placeholder for the
// SpO2 phrase, or drops it with its comma when no saturation was found.
func replaceLegacySpO2Token(line, spo2 string) string {
	if !legacyO2Token.MatchString(line) {
		return line
	}
	if spo2 != "" {
		return legacyO2Token.ReplaceAllString(line, spo2Phrase(spo2))
	}
	line = legacyO2Removal.ReplaceAllString(line, "")
	line = doubleComma.ReplaceAllString(line, ", ")
	line = leadingComma.ReplaceAllString(line, "")
	return trailingComma.ReplaceAllString(line, "")
}
