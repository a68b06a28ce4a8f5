package note

import "github.com/ehr/notewriter/internal/domain/catalog"

const (
	// VitalsFieldID is the header field parsed by ScrubVitalSigns.
	VitalsFieldID = "vital_signs_text"
	// HPIPanelTitle names the panel gated by the acuity toggle.
	HPIPanelTitle = "History of Present Illness"
)

// Policy captures everything that differs between modes when assembling text.
type Policy struct {
	Mode catalog.Mode
	// NegationLeadIn prefixes generated negative phrases ("No", "Denies").
	NegationLeadIn string
	// NarrativeFields renders free-text fields as "Label: value." lines.
	NarrativeFields bool
	// AcuityGate names a panel hidden while the acuity toggle is off.
	AcuityGate string
	// Preamble is emitted as its own line before the mode's block.
	Preamble string
	// PanelHeadings adds a heading line before the named panels.
	PanelHeadings map[string]string
	// ClearNegChecksOnPositive unchecks "_neg" checkboxes when a chip turns positive.
	ClearNegChecksOnPositive bool
	VitalsFieldID            string
}

// DefaultPolicies returns the policies for every mode in note order.
func DefaultPolicies() []Policy {
	return []Policy{
		{
			Mode:            catalog.ModeSubjective,
			NegationLeadIn:  "No",
			NarrativeFields: true,
			AcuityGate:      HPIPanelTitle,
			PanelHeadings:   map[string]string{HPIPanelTitle: "HPI:"},
			VitalsFieldID:   VitalsFieldID,
		},
		{
			Mode:                     catalog.ModeROS,
			NegationLeadIn:           "Denies",
			ClearNegChecksOnPositive: true,
			VitalsFieldID:            VitalsFieldID,
		},
		{
			Mode:           catalog.ModePE,
			NegationLeadIn: "No",
			Preamble:       "Objective:",
			VitalsFieldID:  VitalsFieldID,
		},
		{
			Mode:           catalog.ModeMSE,
			NegationLeadIn: "No",
			VitalsFieldID:  VitalsFieldID,
		},
	}
}

// PolicyFor returns the default policy for mode.
func PolicyFor(mode catalog.Mode) Policy {
	for _, p := range DefaultPolicies() {
		if p.Mode == mode {
			return p
		}
	}
	return Policy{Mode: mode, NegationLeadIn: "No", VitalsFieldID: VitalsFieldID}
}
