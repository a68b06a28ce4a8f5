package note

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ehr/notewriter/internal/domain/catalog"
	"github.com/ehr/notewriter/internal/domain/selection"
)

var (
	multilineIDs = map[string]bool{
		"pastMedical": true,
		"surgicalHx":  true,
		"meds":        true,
		"allergies":   true,
		"social":      true,
		"lmp":         true,
		"familyHx":    true,
	}
	multilineLabelPrefixes = []string{
		"past medical",
		"surgical hx",
		"meds",
		"allergies",
		"social",
		"lmp",
		"family hx",
		"family history",
	}
	lineBreak = regexp.MustCompile(`\r\n|\n|\r`)
)

// SectionText renders one section as plain text. Unknown sections render as "".
func (a *Assembler) SectionText(mode catalog.Mode, title string) string {
	def := a.catalog.ResolveSection(mode, title)
	if def == nil {
		return ""
	}
	p := a.policy(mode)
	b := a.space.Peek(mode, title)

	lines := a.headerLines(mode, def, b, title, p)

	panels := a.visiblePanels(def, p)
	for _, panel := range panels {
		if p.NarrativeFields && len(panel.Fields) > 0 {
			lines = append(lines, a.narrativePanelLines(panel, b, p)...)
			continue
		}
		if s := a.composeExamPanel(mode, def, panel, b, p); s != "" {
			lines = append(lines, s)
		}
	}

	if p.NarrativeFields && len(lines) == 0 {
		lines = fallbackFieldLines(def, panels, b)
	}
	return strings.Join(lines, "\n")
}

// visiblePanels drops the acuity-gated panel while the toggle is off.
func (a *Assembler) visiblePanels(def *catalog.SectionDef, p Policy) []catalog.PanelDef {
	all := def.EffectivePanels()
	if p.AcuityGate == "" || a.acute() {
		return all
	}
	out := make([]catalog.PanelDef, 0, len(all))
	for _, panel := range all {
		if panel.Title == p.AcuityGate {
			continue
		}
		out = append(out, panel)
	}
	return out
}

func (a *Assembler) headerLines(mode catalog.Mode, def *catalog.SectionDef, b *selection.Bucket, title string, p Policy) []string {
	var (
		vitals    []string
		textParts []string
		checks    []string
	)
	emittedVitals := false

	for _, item := range append(append([]catalog.ItemDef(nil), def.HeaderItems...), def.HeaderToggles...) {
		if isCheckbox(item) {
			if b.Checked(item.ID) {
				checks = append(checks, NormalizeCheckLabel(labelOf(item)))
			}
			continue
		}
		val := strings.TrimSpace(b.Field(item.ID))
		if val == "" {
			continue
		}
		if p.VitalsFieldID != "" && item.ID == p.VitalsFieldID {
			if v := ScrubVitalSigns(val); v != nil {
				vitals = append(vitals, v.Lines()...)
				emittedVitals = true
			}
			continue
		}
		textParts = append(textParts, labelOf(item)+": "+val+".")
	}

	lines := append(vitals, textParts...)
	if !emittedVitals && len(checks) > 0 {
		lines = append(lines, title+": "+strings.Join(checks, ". ")+".")
	}
	return lines
}

func (a *Assembler) narrativePanelLines(panel catalog.PanelDef, b *selection.Bucket, p Policy) []string {
	var lines []string
	for _, f := range catalog.FlattenFields(panel.Fields) {
		if !fieldVisible(f, b) || f.Type == catalog.FieldBoolean {
			continue
		}
		val := strings.TrimSpace(b.Field(f.ID))
		if val == "" {
			continue
		}
		label := fieldLabel(f)
		if isMultiline(f) && lineBreak.MatchString(val) {
			var bullets []string
			for _, piece := range lineBreak.Split(val, -1) {
				if piece = strings.TrimSpace(piece); piece != "" {
					bullets = append(bullets, "- "+piece)
				}
			}
			if len(bullets) > 0 {
				lines = append(lines, label+":")
				lines = append(lines, bullets...)
			}
			continue
		}
		lines = append(lines, label+": "+val+".")
	}

	if checks := checkedLabels(panel.Checkboxes, b); len(checks) > 0 {
		lines = append(lines, panel.Title+": "+strings.Join(checks, ". ")+".")
	}

	if len(lines) > 0 {
		if heading := p.PanelHeadings[panel.Title]; heading != "" {
			lines = append([]string{heading}, lines...)
		}
	}
	return lines
}

func (a *Assembler) composeExamPanel(mode catalog.Mode, def *catalog.SectionDef, panel catalog.PanelDef, b *selection.Bucket, p Policy) string {
	chips := append([]catalog.ItemDef(nil), panel.Chips...)
	checkboxes := append([]catalog.ItemDef(nil), panel.Checkboxes...)
	for _, ss := range panel.Subsections {
		chips = append(chips, ss.Chips...)
		checkboxes = append(checkboxes, ss.Checkboxes...)
		checkboxes = append(checkboxes, ss.Items...)
	}

	var positives, negatives []string
	for _, it := range chips {
		v := b.Chip(it.ID)
		if v.IsNeutral() {
			continue
		}
		// Nested duplicates resolve to the most specific definition.
		item := catalog.FindItemDefinition(def, it.ID)
		switch v.State {
		case selection.Positive:
			var labels []string
			if item.Mods != nil {
				labels = a.catalog.GradeLabels(mode, item.Mods.Grades)
			}
			positives = append(positives, BuildPositivePhrase(item, v, labels))
		case selection.Negative:
			negatives = append(negatives, BuildNegativePhrase(item, p.NegationLeadIn))
		}
	}

	checks := checkedLabels(checkboxes, b)
	checks = append(checks, a.matrixClauses(mode, panel, b)...)
	return ComposePanel(panel.Title, positives, negatives, checks)
}

// matrixClauses renders graded rows as "Row: Col grade, Col grade".
func (a *Assembler) matrixClauses(mode catalog.Mode, panel catalog.PanelDef, b *selection.Bucket) []string {
	m := panel.Matrix
	if m == nil {
		return nil
	}
	panelID := panel.ID
	if panelID == "" {
		panelID = panel.Title
	}
	labels := a.catalog.GradeLabels(mode, m.Grades)
	if len(labels) == 0 {
		labels = a.catalog.GradeLabels(mode, "pulses")
	}

	var clauses []string
	for r, row := range m.Rows {
		var cells []string
		for c, col := range m.Columns() {
			g := b.MatrixCell(panelID, r, c)
			if g == nil {
				continue
			}
			grade := strconv.Itoa(*g)
			if *g >= 0 && *g < len(labels) {
				grade = labels[*g]
			}
			cells = append(cells, col+" "+grade)
		}
		if len(cells) > 0 {
			clauses = append(clauses, row+": "+strings.Join(cells, ", "))
		}
	}
	return clauses
}

// fallbackFieldLines echoes every visible field of the section, ignoring
// panel grouping and multiline layout.
func fallbackFieldLines(def *catalog.SectionDef, panels []catalog.PanelDef, b *selection.Bucket) []string {
	fields := catalog.FlattenFields(def.Fields)
	if len(def.Panels) > 0 {
		for _, panel := range panels {
			fields = append(fields, catalog.FlattenFields(panel.Fields)...)
		}
	}
	var lines []string
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f.ID] {
			continue
		}
		seen[f.ID] = true
		if !fieldVisible(f, b) || f.Type == catalog.FieldBoolean {
			continue
		}
		if val := strings.TrimSpace(b.Field(f.ID)); val != "" {
			lines = append(lines, fieldLabel(f)+": "+val+".")
		}
	}
	return lines
}

func checkedLabels(items []catalog.ItemDef, b *selection.Bucket) []string {
	var out []string
	for _, it := range items {
		if b.Checked(it.ID) {
			out = append(out, NormalizeCheckLabel(labelOf(it)))
		}
	}
	return out
}

// fieldVisible evaluates a showIf gate against the stored value of the field
// it depends on.
func fieldVisible(f catalog.FieldDef, b *selection.Bucket) bool {
	if f.ShowIf == nil {
		return true
	}
	return b.Field(f.ShowIf.Field) == string(f.ShowIf.Equals)
}

func isMultiline(f catalog.FieldDef) bool {
	if f.Multiline || multilineIDs[f.ID] {
		return true
	}
	name := strings.ToLower(fieldLabel(f))
	for _, prefix := range multilineLabelPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func isCheckbox(item catalog.ItemDef) bool {
	return item.Type == "" || item.Type == catalog.ItemCheckbox
}

func labelOf(item catalog.ItemDef) string {
	if item.Label != "" {
		return item.Label
	}
	return item.ID
}

func fieldLabel(f catalog.FieldDef) string {
	if f.Label != "" {
		return f.Label
	}
	return f.ID
}
