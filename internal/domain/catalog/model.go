package catalog

import (
	"bytes"
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"
)

// Mode is a top-level note category with its own template and selection namespace.
type Mode string

const (
	ModeSubjective Mode = "SUBJECTIVE"
	ModeROS        Mode = "ROS"
	ModePE         Mode = "PE"
	ModeMSE        Mode = "MSE"
)

// Modes returns every mode in note order.
func Modes() []Mode {
	return []Mode{ModeSubjective, ModeROS, ModePE, ModeMSE}
}

// Label returns the heading used for the mode's block in a composite note.
func (m Mode) Label() string {
	switch m {
	case ModeSubjective:
		return "Subjective"
	case ModeROS:
		return "ROS"
	case ModePE:
		return "Physical Exam"
	case ModeMSE:
		return "MSE"
	}
	return string(m)
}

// Valid reports whether m is one of the declared modes.
func (m Mode) Valid() bool {
	for _, known := range Modes() {
		if m == known {
			return true
		}
	}
	return false
}

// ParseMode accepts a mode name in any case.
func ParseMode(s string) (Mode, bool) {
	m := Mode(strings.ToUpper(strings.TrimSpace(s)))
	return m, m.Valid()
}

// Key builds the canonical "mode:title" key used for section definitions and
// selection buckets.
func Key(mode Mode, title string) string {
	return string(mode) + ":" + title
}

// SectionKind describes the primary content of a section.
type SectionKind string

const (
	KindChips       SectionKind = "chips"
	KindCheckboxes  SectionKind = "checkboxes"
	KindFields      SectionKind = "fields"
	KindSubsections SectionKind = "subsections"
	KindMatrix      SectionKind = "matrix"
	KindHeader      SectionKind = "header"
)

// Item types used by header items.
const (
	ItemCheckbox = "checkbox"
	ItemText     = "text"
)

// Field types.
const (
	FieldText     = "text"
	FieldTextarea = "textarea"
	FieldBoolean  = "boolean"
	FieldRange    = "range"
	FieldGroup    = "group"
)

// Document is one mode's template: the ordered section titles per mode and the
// section definitions keyed by "mode:title" or bare title.
type Document struct {
	SectionsByMode map[Mode][]string      `json:"sectionsByMode" yaml:"sectionsByMode"`
	SectionDefs    map[string]*SectionDef `json:"sectionDefs" yaml:"sectionDefs"`
	GradeLabels    map[string][]string    `json:"gradeLabels,omitempty" yaml:"gradeLabels,omitempty"`
}

type SectionDef struct {
	Title         string           `json:"title" yaml:"title"`
	Kind          SectionKind      `json:"kind,omitempty" yaml:"kind,omitempty"`
	Panels        []PanelDef       `json:"panels,omitempty" yaml:"panels,omitempty"`
	HeaderItems   []ItemDef        `json:"headerItems,omitempty" yaml:"headerItems,omitempty"`
	HeaderToggles []ItemDef        `json:"headerToggles,omitempty" yaml:"headerToggles,omitempty"`
	Items         []ItemDef        `json:"items,omitempty" yaml:"items,omitempty"`
	Checkboxes    []ItemDef        `json:"checkboxes,omitempty" yaml:"checkboxes,omitempty"`
	Chips         []ItemDef        `json:"chips,omitempty" yaml:"chips,omitempty"`
	Groups        []GroupDef       `json:"groups,omitempty" yaml:"groups,omitempty"`
	Subsections   []SubsectionDef  `json:"subsections,omitempty" yaml:"subsections,omitempty"`
	Fields        []FieldDef       `json:"fields,omitempty" yaml:"fields,omitempty"`
	Matrix        *MatrixSpec      `json:"matrix,omitempty" yaml:"matrix,omitempty"`
	Defaults      *SectionDefaults `json:"defaults,omitempty" yaml:"defaults,omitempty"`
}

// PanelDef is a titled item group; each panel produces one sentence block.
type PanelDef struct {
	ID          string          `json:"id,omitempty" yaml:"id,omitempty"`
	Title       string          `json:"title" yaml:"title"`
	Chips       []ItemDef       `json:"chips,omitempty" yaml:"chips,omitempty"`
	Checkboxes  []ItemDef       `json:"checkboxes,omitempty" yaml:"checkboxes,omitempty"`
	Fields      []FieldDef      `json:"fields,omitempty" yaml:"fields,omitempty"`
	Subsections []SubsectionDef `json:"subsections,omitempty" yaml:"subsections,omitempty"`
	Matrix      *MatrixSpec     `json:"matrix,omitempty" yaml:"matrix,omitempty"`
}

type SubsectionDef struct {
	Title      string      `json:"title" yaml:"title"`
	Items      []ItemDef   `json:"items,omitempty" yaml:"items,omitempty"`
	Checkboxes []ItemDef   `json:"checkboxes,omitempty" yaml:"checkboxes,omitempty"`
	Chips      []ItemDef   `json:"chips,omitempty" yaml:"chips,omitempty"`
	Matrix     *MatrixSpec `json:"matrix,omitempty" yaml:"matrix,omitempty"`
}

type GroupDef struct {
	Title string    `json:"title" yaml:"title"`
	Items []ItemDef `json:"items,omitempty" yaml:"items,omitempty"`
}

// ItemDef is a chip, checkbox, or header item.
type ItemDef struct {
	ID        string     `json:"id" yaml:"id"`
	Label     string     `json:"label" yaml:"label"`
	Type      string     `json:"type,omitempty" yaml:"type,omitempty"`
	Mods      *Modifiers `json:"mods,omitempty" yaml:"mods,omitempty"`
	AbnText   string     `json:"abnText,omitempty" yaml:"abnText,omitempty"`
	NegText   string     `json:"negText,omitempty" yaml:"negText,omitempty"`
	Critical  bool       `json:"critical,omitempty" yaml:"critical,omitempty"`
	AllowText bool       `json:"allowText,omitempty" yaml:"allowText,omitempty"`
}

// Modifiers names the grade label set and tag list a chip accepts.
type Modifiers struct {
	Grades string   `json:"grades,omitempty" yaml:"grades,omitempty"`
	Tags   []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Sides  bool     `json:"sides,omitempty" yaml:"sides,omitempty"`
}

type FieldDef struct {
	ID          string     `json:"id" yaml:"id"`
	Label       string     `json:"label" yaml:"label"`
	Type        string     `json:"type,omitempty" yaml:"type,omitempty"`
	Multiline   bool       `json:"multiline,omitempty" yaml:"multiline,omitempty"`
	Placeholder string     `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	ShowIf      *ShowIf    `json:"showIf,omitempty" yaml:"showIf,omitempty"`
	Fields      []FieldDef `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// ShowIf gates a field on another field's stored value.
type ShowIf struct {
	Field  string `json:"field" yaml:"field"`
	Equals Scalar `json:"equals" yaml:"equals"`
}

// MatrixSpec describes a graded rows x cols grid such as peripheral pulses.
type MatrixSpec struct {
	Rows    []string `json:"rows" yaml:"rows"`
	Cols    []string `json:"cols,omitempty" yaml:"cols,omitempty"`
	Grades  string   `json:"grades,omitempty" yaml:"grades,omitempty"`
	Actions []string `json:"actions,omitempty" yaml:"actions,omitempty"`
}

// Columns returns the matrix columns, defaulting to Right/Left.
func (m *MatrixSpec) Columns() []string {
	if m == nil || len(m.Cols) == 0 {
		return []string{"Right", "Left"}
	}
	return m.Cols
}

// SectionDefaults lists what ApplyNegativeDefaults fills in for a section.
type SectionDefaults struct {
	NegChips []string `json:"negChips,omitempty" yaml:"negChips,omitempty"`
}

// Scalar holds a template scalar (string, bool, or number) in its textual form
// so showIf comparisons work against stored field strings.
type Scalar string

func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Scalar(str)
		return nil
	}
	if string(data) == "null" {
		*s = ""
		return nil
	}
	*s = Scalar(data)
	return nil
}

func (s *Scalar) UnmarshalYAML(n *yaml.Node) error {
	if n.Tag == "!!null" {
		*s = ""
		return nil
	}
	*s = Scalar(n.Value)
	return nil
}
