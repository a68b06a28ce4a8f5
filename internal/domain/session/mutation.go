package session

import (
	"fmt"

	"github.com/ehr/notewriter/internal/domain/catalog"
	"github.com/ehr/notewriter/internal/domain/note"
	"github.com/ehr/notewriter/internal/domain/selection"
)

// Mutation operations.
const (
	OpCycleChip      = "cycle_chip"
	OpToggleNegative = "toggle_negative"
	OpMarkPositive   = "mark_positive"
	OpMarkNegative   = "mark_negative"
	OpClearChip      = "clear_chip"
	OpSetText        = "set_text"
	OpSetSide        = "set_side"
	OpSetGrade       = "set_grade"
	OpSetTag         = "set_tag"
	OpSetField       = "set_field"
	OpSetCheckbox    = "set_checkbox"
	OpSetMatrix      = "set_matrix"
	OpSetMatrixAll   = "set_matrix_all"
	OpClearMatrix    = "clear_matrix"
	OpApplyDefaults  = "apply_defaults"
	OpNegatePanel    = "negate_panel"
	OpClearSection   = "clear_section"
	OpClearAll       = "clear_all"
	OpSetAcute       = "set_acute"
)

// Mutation is one edit to a session's selections. Which fields matter
// depends on Op: ID names the chip, field, checkbox, or panel; Value carries
// text, side, field value, or tag; On carries booleans.
type Mutation struct {
	Op      string       `json:"op"`
	Mode    catalog.Mode `json:"mode,omitempty"`
	Section string       `json:"section,omitempty"`
	ID      string       `json:"id,omitempty"`
	Value   string       `json:"value,omitempty"`
	On      *bool        `json:"on,omitempty"`
	Grade   *int         `json:"grade,omitempty"`
	Row     int          `json:"row,omitempty"`
	Col     int          `json:"col,omitempty"`
}

// ValidationError reports a malformed mutation.
type ValidationError struct {
	Index int
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("mutation %d: %s", e.Index, e.Msg)
}

func (m Mutation) on() bool { return m.On == nil || *m.On }

// scoped reports whether the op targets a single section.
func (m Mutation) scoped() bool {
	return m.Op != OpClearAll && m.Op != OpSetAcute
}

// Apply performs one mutation against space. touched is the section the
// mutation changed, or "" for space-wide operations.
func Apply(space *selection.Space, cat *catalog.Catalog, m Mutation) (touched string, err error) {
	if !m.scoped() {
		switch m.Op {
		case OpClearAll:
			space.ClearAll()
		case OpSetAcute:
			if m.On == nil {
				return "", fmt.Errorf("%s requires on", m.Op)
			}
			space.Globals.SetAcute(*m.On)
		}
		return "", nil
	}

	mode, ok := catalog.ParseMode(string(m.Mode))
	if !ok {
		return "", fmt.Errorf("unknown mode %q", m.Mode)
	}
	if m.Section == "" {
		return "", fmt.Errorf("%s requires section", m.Op)
	}
	if m.Op == OpClearSection {
		space.ClearSection(mode, m.Section)
		return catalog.Key(mode, m.Section), nil
	}

	b := space.Bucket(mode, m.Section)
	def := cat.ResolveSection(mode, m.Section)

	needID := func() error {
		if m.ID == "" {
			return fmt.Errorf("%s requires id", m.Op)
		}
		return nil
	}

	switch m.Op {
	case OpCycleChip:
		if err := needID(); err != nil {
			return "", err
		}
		if b.CycleChip(m.ID).IsPositive() {
			clearNegChecks(mode, b)
		}
	case OpToggleNegative:
		if err := needID(); err != nil {
			return "", err
		}
		b.ToggleNegative(m.ID)
	case OpMarkPositive:
		if err := needID(); err != nil {
			return "", err
		}
		b.MarkPositive(m.ID)
		clearNegChecks(mode, b)
	case OpMarkNegative:
		if err := needID(); err != nil {
			return "", err
		}
		b.MarkNegative(m.ID)
	case OpClearChip:
		if err := needID(); err != nil {
			return "", err
		}
		b.ClearChip(m.ID)
	case OpSetText:
		if err := needID(); err != nil {
			return "", err
		}
		b.SetChipText(m.ID, m.Value)
		clearNegChecks(mode, b)
	case OpSetSide:
		if err := needID(); err != nil {
			return "", err
		}
		b.SetChipSide(m.ID, m.Value)
		clearNegChecks(mode, b)
	case OpSetGrade:
		if err := needID(); err != nil {
			return "", err
		}
		b.SetChipGrade(m.ID, m.Grade)
		clearNegChecks(mode, b)
	case OpSetTag:
		if err := needID(); err != nil {
			return "", err
		}
		if m.Value == "" {
			return "", fmt.Errorf("%s requires value", m.Op)
		}
		b.SetChipTag(m.ID, m.Value, m.on())
		clearNegChecks(mode, b)
	case OpSetField:
		if err := needID(); err != nil {
			return "", err
		}
		b.SetField(m.ID, m.Value)
	case OpSetCheckbox:
		if err := needID(); err != nil {
			return "", err
		}
		b.SetCheckbox(m.ID, m.on())
	case OpSetMatrix:
		if err := needID(); err != nil {
			return "", err
		}
		if m.Row < 0 || m.Col < 0 {
			return "", fmt.Errorf("%s: negative cell index", m.Op)
		}
		b.SetMatrixCell(m.ID, m.Row, m.Col, m.Grade)
	case OpSetMatrixAll, OpClearMatrix:
		if err := needID(); err != nil {
			return "", err
		}
		spec := matrixFor(def, m.ID)
		if spec == nil {
			return "", fmt.Errorf("no matrix %q in %s", m.ID, m.Section)
		}
		rows, cols := len(spec.Rows), len(spec.Columns())
		if m.Op == OpClearMatrix {
			b.ClearMatrix(m.ID, rows, cols)
		} else {
			b.SetMatrixAll(m.ID, rows, cols, m.Grade)
		}
	case OpApplyDefaults:
		if def == nil || def.Defaults == nil {
			return "", nil
		}
		b.ApplyNegativeDefaults(def.Defaults.NegChips)
	case OpNegatePanel:
		ids := panelChipIDs(def, m.ID)
		if ids == nil {
			return "", fmt.Errorf("no panel %q in %s", m.ID, m.Section)
		}
		b.NegateNeutral(ids)
	default:
		return "", fmt.Errorf("unknown op %q", m.Op)
	}
	return catalog.Key(mode, m.Section), nil
}

// clearNegChecks applies the mode's rule for "_neg" checkboxes once a chip
// turns positive.
func clearNegChecks(mode catalog.Mode, b *selection.Bucket) {
	if note.PolicyFor(mode).ClearNegChecksOnPositive {
		b.ClearNegativeChecks()
	}
}

func findPanel(def *catalog.SectionDef, id string) *catalog.PanelDef {
	panels := def.EffectivePanels()
	for i := range panels {
		p := &panels[i]
		if p.ID == id || (id != "" && p.Title == id) {
			return p
		}
	}
	if id == "" && len(panels) == 1 {
		return &panels[0]
	}
	return nil
}

func matrixFor(def *catalog.SectionDef, id string) *catalog.MatrixSpec {
	if p := findPanel(def, id); p != nil {
		return p.Matrix
	}
	return nil
}

// panelChipIDs lists the chips of a panel, including its subsections. An
// empty panel id targets the section's only panel.
func panelChipIDs(def *catalog.SectionDef, id string) []string {
	p := findPanel(def, id)
	if p == nil {
		return nil
	}
	ids := []string{}
	for _, it := range p.Chips {
		ids = append(ids, it.ID)
	}
	for _, ss := range p.Subsections {
		for _, it := range ss.Chips {
			ids = append(ids, it.ID)
		}
	}
	return ids
}
