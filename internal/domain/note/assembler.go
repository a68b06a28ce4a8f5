// Package note turns a template catalog and a selection space into plain-text
// clinical notes. Everything here is synchronous and side-effect free: the
// same catalog and space always produce the same text.
package note

import (
	"strings"

	"github.com/ehr/notewriter/internal/domain/catalog"
	"github.com/ehr/notewriter/internal/domain/selection"
)

// Assembler renders section previews and the composite note for one space.
type Assembler struct {
	catalog  *catalog.Catalog
	space    *selection.Space
	policies []Policy
}

// NewAssembler binds a catalog and a selection space using the default
// per-mode policies.
func NewAssembler(cat *catalog.Catalog, space *selection.Space) *Assembler {
	return NewAssemblerWithPolicies(cat, space, DefaultPolicies())
}

// NewAssemblerWithPolicies is NewAssembler with explicit policies. Modes are
// rendered in the order the policies are given.
func NewAssemblerWithPolicies(cat *catalog.Catalog, space *selection.Space, policies []Policy) *Assembler {
	return &Assembler{catalog: cat, space: space, policies: policies}
}

func (a *Assembler) policy(mode catalog.Mode) Policy {
	for _, p := range a.policies {
		if p.Mode == mode {
			return p
		}
	}
	return PolicyFor(mode)
}

func (a *Assembler) acute() bool {
	if a.space == nil {
		return true
	}
	return a.space.Globals.Acute()
}

// ModeText joins the non-empty section texts of mode in template order.
func (a *Assembler) ModeText(mode catalog.Mode) string {
	var sections []string
	for _, title := range a.catalog.Sections(mode) {
		if txt := a.SectionText(mode, title); txt != "" {
			sections = append(sections, txt)
		}
	}
	return strings.TrimSpace(strings.Join(sections, "\n"))
}

// Note renders the composite note across every mode. Modes with no content
// are left out entirely.
func (a *Assembler) Note() string {
	var parts []string
	narrativeSeen := false
	for _, p := range a.policies {
		txt := a.ModeText(p.Mode)
		if txt == "" {
			continue
		}
		if p.Preamble != "" {
			parts = append(parts, p.Preamble+"\n")
		}
		block := p.Mode.Label() + ":\n" + txt + "\n"
		if p.NarrativeFields && !narrativeSeen {
			block += "\n"
			narrativeSeen = true
		}
		parts = append(parts, block)
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}
