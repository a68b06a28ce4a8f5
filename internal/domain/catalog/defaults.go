package catalog

import (
	"embed"
	"fmt"
	"strings"
)

//go:embed templates/*.yaml
var defaultTemplates embed.FS

// FileBase is the file name, without extension, of mode's template document.
func FileBase(mode Mode) string {
	return "template_" + strings.ToLower(string(mode))
}

// DefaultDocument returns the embedded template for mode.
func DefaultDocument(mode Mode) (*Document, error) {
	data, err := defaultTemplates.ReadFile("templates/" + FileBase(mode) + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded template %s: %w", mode, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse embedded template %s: %w", mode, err)
	}
	return doc, nil
}

// Defaults builds a catalog from the embedded templates for every mode.
func Defaults() (*Catalog, error) {
	docs := make(map[Mode]*Document, len(Modes()))
	for _, m := range Modes() {
		doc, err := DefaultDocument(m)
		if err != nil {
			return nil, err
		}
		docs[m] = doc
	}
	return New(docs), nil
}
