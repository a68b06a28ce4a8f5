package selection

import "strings"

// Bucket holds every item value of one section. A hidden field keeps its value;
// visibility is decided at render time.
type Bucket struct {
	Fields     FieldValues                    `json:"fields"`
	Checkboxes map[string]bool                `json:"checkboxes"`
	Chips      map[string]Value               `json:"chips"`
	Matrix     map[string]map[int]map[int]*int `json:"matrix,omitempty"`
}

// NewBucket returns an empty bucket.
func NewBucket() *Bucket {
	return &Bucket{
		Fields:     FieldValues{},
		Checkboxes: map[string]bool{},
		Chips:      map[string]Value{},
	}
}

func (b *Bucket) ensure() {
	if b.Fields == nil {
		b.Fields = FieldValues{}
	}
	if b.Checkboxes == nil {
		b.Checkboxes = map[string]bool{}
	}
	if b.Chips == nil {
		b.Chips = map[string]Value{}
	}
}

// Field returns the stored text for id. Safe on a nil bucket.
func (b *Bucket) Field(id string) string {
	if b == nil {
		return ""
	}
	return b.Fields[id]
}

// Checked reports whether checkbox id is set. Safe on a nil bucket.
func (b *Bucket) Checked(id string) bool {
	if b == nil {
		return false
	}
	return b.Checkboxes[id]
}

// Chip returns the value of chip id, Neutral when unset. Safe on a nil bucket.
func (b *Bucket) Chip(id string) Value {
	if b == nil {
		return NeutralValue()
	}
	v, ok := b.Chips[id]
	if !ok {
		return NeutralValue()
	}
	return v
}

// MatrixCell returns the grade index at row/col of panel, or nil.
func (b *Bucket) MatrixCell(panelID string, row, col int) *int {
	if b == nil {
		return nil
	}
	return b.Matrix[panelID][row][col]
}

func (b *Bucket) SetField(id, value string) {
	b.ensure()
	b.Fields[id] = value
}

func (b *Bucket) SetCheckbox(id string, on bool) {
	b.ensure()
	b.Checkboxes[id] = on
}

// CycleChip advances chip id through Neutral, Positive, Negative and back.
func (b *Bucket) CycleChip(id string) Value {
	b.ensure()
	var next Value
	switch b.Chip(id).State {
	case Neutral:
		next = PositiveValue()
	case Positive:
		next = NegativeValue()
	default:
		next = NeutralValue()
	}
	b.Chips[id] = next
	return next
}

// ToggleNegative flips chip id between Negative and Neutral. A positive chip
// becomes Negative.
func (b *Bucket) ToggleNegative(id string) Value {
	b.ensure()
	next := NegativeValue()
	if b.Chip(id).IsNegative() {
		next = NeutralValue()
	}
	b.Chips[id] = next
	return next
}

// MarkPositive makes chip id Positive, keeping its modifiers if it already was.
func (b *Bucket) MarkPositive(id string) Value {
	b.ensure()
	cur := b.Chip(id)
	if !cur.IsPositive() {
		cur = PositiveValue()
	}
	b.Chips[id] = cur
	return cur
}

func (b *Bucket) MarkNegative(id string) {
	b.ensure()
	b.Chips[id] = NegativeValue()
}

func (b *Bucket) ClearChip(id string) {
	b.ensure()
	b.Chips[id] = NeutralValue()
}

// The modifier setters below make the chip Positive first.

func (b *Bucket) SetChipText(id, text string) {
	v := b.MarkPositive(id)
	v.Text = text
	b.Chips[id] = v
}

func (b *Bucket) SetChipSide(id, side string) {
	v := b.MarkPositive(id)
	v.Side = side
	b.Chips[id] = v
}

func (b *Bucket) SetChipGrade(id string, grade *int) {
	v := b.MarkPositive(id).Clone()
	v.Grade = grade
	b.Chips[id] = v
}

func (b *Bucket) SetChipTag(id, tag string, on bool) {
	v := b.MarkPositive(id).Clone()
	if v.Tags == nil {
		v.Tags = map[string]bool{}
	}
	v.Tags[tag] = on
	b.Chips[id] = v
}

// ClearNegativeChecks unchecks every checkbox whose id ends in "_neg".
func (b *Bucket) ClearNegativeChecks() {
	b.ensure()
	for id := range b.Checkboxes {
		if strings.HasSuffix(id, "_neg") {
			b.Checkboxes[id] = false
		}
	}
}

// ApplyNegativeDefaults marks each listed chip Negative if it has never been
// set. Returns how many chips changed.
func (b *Bucket) ApplyNegativeDefaults(ids []string) int {
	b.ensure()
	n := 0
	for _, id := range ids {
		if _, ok := b.Chips[id]; ok {
			continue
		}
		b.Chips[id] = NegativeValue()
		n++
	}
	return n
}

// NegateNeutral marks every listed chip that is currently Neutral as Negative.
func (b *Bucket) NegateNeutral(ids []string) int {
	b.ensure()
	n := 0
	for _, id := range ids {
		if b.Chip(id).IsNeutral() {
			b.Chips[id] = NegativeValue()
			n++
		}
	}
	return n
}

// SetMatrixCell grades one cell; a nil grade marks it ungraded.
func (b *Bucket) SetMatrixCell(panelID string, row, col int, grade *int) {
	if b.Matrix == nil {
		b.Matrix = map[string]map[int]map[int]*int{}
	}
	if b.Matrix[panelID] == nil {
		b.Matrix[panelID] = map[int]map[int]*int{}
	}
	if b.Matrix[panelID][row] == nil {
		b.Matrix[panelID][row] = map[int]*int{}
	}
	if grade != nil {
		g := *grade
		grade = &g
	}
	b.Matrix[panelID][row][col] = grade
}

// SetMatrixAll grades every cell of a rows x cols grid.
func (b *Bucket) SetMatrixAll(panelID string, rows, cols int, grade *int) {
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			b.SetMatrixCell(panelID, r, c, grade)
		}
	}
}

func (b *Bucket) ClearMatrix(panelID string, rows, cols int) {
	b.SetMatrixAll(panelID, rows, cols, nil)
}

// Clone returns a deep copy.
func (b *Bucket) Clone() *Bucket {
	if b == nil {
		return nil
	}
	out := NewBucket()
	for k, v := range b.Fields {
		out.Fields[k] = v
	}
	for k, v := range b.Checkboxes {
		out.Checkboxes[k] = v
	}
	for k, v := range b.Chips {
		out.Chips[k] = v.Clone()
	}
	for panel, rows := range b.Matrix {
		for r, cols := range rows {
			for c, g := range cols {
				out.SetMatrixCell(panel, r, c, g)
			}
		}
	}
	return out
}
