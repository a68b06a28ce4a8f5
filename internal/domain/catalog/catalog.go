package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrInvalidDocument is returned when a template document lacks its
// sectionsByMode or sectionDefs maps.
var ErrInvalidDocument = errors.New("invalid template document")

var builtinGradeLabels = map[string][]string{
	"pulses": {"0", "1+", "2+", "3+"},
	"s3s4":   {"1", "2", "3", "4", "5", "6"},
	"edema":  {"1+", "2+", "3+", "4+"},
}

var sideLabels = map[string]string{
	"R": "R",
	"L": "L",
	"B": "bilateral",
}

// SideLabel returns the word form of a laterality code.
func SideLabel(side string) string {
	if w, ok := sideLabels[side]; ok {
		return w
	}
	return side
}

// Parse decodes a template document. JSON input is decoded as JSON, anything
// else as YAML.
func Parse(data []byte) (*Document, error) {
	doc := &Document{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, doc); err != nil {
			return nil, fmt.Errorf("decode template json: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, doc); err != nil {
			return nil, fmt.Errorf("decode template yaml: %w", err)
		}
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// Validate checks the two maps every document must carry.
func (d *Document) Validate() error {
	if d == nil || d.SectionsByMode == nil || d.SectionDefs == nil {
		return ErrInvalidDocument
	}
	return nil
}

// Catalog is the read-only set of template documents, one per mode.
type Catalog struct {
	docs map[Mode]*Document
}

// New builds a catalog from per-mode documents. Nil documents are skipped.
func New(docs map[Mode]*Document) *Catalog {
	c := &Catalog{docs: make(map[Mode]*Document, len(docs))}
	for m, d := range docs {
		if d != nil {
			c.docs[m] = d
		}
	}
	return c
}

// Document returns the template for mode, or nil.
func (c *Catalog) Document(mode Mode) *Document {
	if c == nil {
		return nil
	}
	return c.docs[mode]
}

// Sections returns the template-declared section titles for mode.
func (c *Catalog) Sections(mode Mode) []string {
	doc := c.Document(mode)
	if doc == nil {
		return nil
	}
	return doc.SectionsByMode[mode]
}

// GradeLabels returns the label set named set. A template document for mode
// may override the built-in sets.
func (c *Catalog) GradeLabels(mode Mode, set string) []string {
	if set == "" {
		return nil
	}
	if doc := c.Document(mode); doc != nil {
		if labels, ok := doc.GradeLabels[set]; ok {
			return labels
		}
	}
	return builtinGradeLabels[set]
}
