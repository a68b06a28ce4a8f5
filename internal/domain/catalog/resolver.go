package catalog

// ResolveSection finds the definition for title under mode. It tries the
// canonical "mode:title" key, then the bare title, then any definition whose
// own title matches. Returns nil when nothing matches.
func (c *Catalog) ResolveSection(mode Mode, title string) *SectionDef {
	doc := c.Document(mode)
	if doc == nil {
		return nil
	}
	if def := doc.SectionDefs[Key(mode, title)]; def != nil {
		return def
	}
	if def := doc.SectionDefs[title]; def != nil {
		return def
	}
	// Map order is random; scan the declared section list first so the result
	// is stable when several definitions share a title.
	for _, t := range doc.SectionsByMode[mode] {
		for _, key := range []string{Key(mode, t), t} {
			if def := doc.SectionDefs[key]; def != nil && def.Title == title {
				return def
			}
		}
	}
	for _, def := range doc.SectionDefs {
		if def != nil && def.Title == title {
			return def
		}
	}
	return nil
}

// CollectItemIDs lists every item id the section controls, in declaration
// order. Ids repeated at different nesting levels appear more than once.
func CollectItemIDs(def *SectionDef) []string {
	if def == nil {
		return nil
	}
	var ids []string
	addItems := func(items []ItemDef) {
		for _, it := range items {
			ids = append(ids, it.ID)
		}
	}
	addMatrix := func(m *MatrixSpec) {
		if m != nil {
			ids = append(ids, m.Rows...)
		}
	}

	addItems(def.HeaderItems)
	addItems(def.HeaderToggles)
	addItems(def.Items)
	addItems(def.Checkboxes)
	addItems(def.Chips)
	for _, g := range def.Groups {
		addItems(g.Items)
	}
	addMatrix(def.Matrix)
	for _, p := range def.Panels {
		addItems(p.Checkboxes)
		addItems(p.Chips)
		for _, ss := range p.Subsections {
			addItems(ss.Items)
			addItems(ss.Checkboxes)
			addItems(ss.Chips)
			addMatrix(ss.Matrix)
		}
		addMatrix(p.Matrix)
	}
	if def.Kind == KindSubsections {
		for _, ss := range def.Subsections {
			addItems(ss.Items)
			addItems(ss.Checkboxes)
			addItems(ss.Chips)
			addMatrix(ss.Matrix)
		}
	}
	return ids
}

// FindItemDefinition returns the item with id, preferring the most deeply
// nested definition when an id is declared at several levels. Unknown ids get
// a synthetic definition labelled with the id itself.
func FindItemDefinition(def *SectionDef, id string) ItemDef {
	if def == nil {
		return ItemDef{ID: id, Label: id}
	}
	var (
		best      ItemDef
		bestDepth = -1
	)
	consider := func(items []ItemDef, depth int) {
		if depth <= bestDepth {
			return
		}
		for _, it := range items {
			if it.ID == id {
				best, bestDepth = it, depth
				return
			}
		}
	}

	consider(def.HeaderItems, 0)
	consider(def.HeaderToggles, 0)
	consider(def.Items, 0)
	consider(def.Checkboxes, 0)
	consider(def.Chips, 0)
	for _, g := range def.Groups {
		consider(g.Items, 1)
	}
	for _, ss := range def.Subsections {
		consider(ss.Items, 1)
		consider(ss.Checkboxes, 1)
		consider(ss.Chips, 1)
	}
	for _, p := range def.Panels {
		consider(p.Checkboxes, 1)
		consider(p.Chips, 1)
		for _, ss := range p.Subsections {
			consider(ss.Items, 2)
			consider(ss.Checkboxes, 2)
			consider(ss.Chips, 2)
		}
	}

	if bestDepth < 0 {
		return ItemDef{ID: id, Label: id}
	}
	return best
}

// EffectivePanels returns the section's panels. Sections without explicit
// panels get one implicit panel, titled after the section, holding the
// top-level items.
func (d *SectionDef) EffectivePanels() []PanelDef {
	if d == nil {
		return nil
	}
	if len(d.Panels) > 0 {
		return d.Panels
	}
	p := PanelDef{
		ID:         d.Title,
		Title:      d.Title,
		Fields:     d.Fields,
		Matrix:     d.Matrix,
		Checkboxes: append([]ItemDef(nil), d.Checkboxes...),
		Chips:      append([]ItemDef(nil), d.Chips...),
	}
	loose := append([]ItemDef(nil), d.Items...)
	for _, g := range d.Groups {
		loose = append(loose, g.Items...)
	}
	if d.Kind == KindChips {
		p.Chips = append(p.Chips, loose...)
	} else {
		p.Checkboxes = append(p.Checkboxes, loose...)
	}
	if d.Kind == KindSubsections {
		p.Subsections = d.Subsections
	}
	if len(p.Fields) == 0 && len(p.Checkboxes) == 0 && len(p.Chips) == 0 &&
		len(p.Subsections) == 0 && p.Matrix == nil {
		return nil
	}
	return []PanelDef{p}
}

// AllFields flattens the section's fields, including group children, across
// every panel in declaration order.
func (d *SectionDef) AllFields() []FieldDef {
	var out []FieldDef
	for _, p := range d.EffectivePanels() {
		out = append(out, FlattenFields(p.Fields)...)
	}
	return out
}

// FlattenFields expands group fields into their children.
func FlattenFields(fields []FieldDef) []FieldDef {
	var out []FieldDef
	for _, f := range fields {
		if f.Type == FieldGroup || len(f.Fields) > 0 {
			out = append(out, FlattenFields(f.Fields)...)
			continue
		}
		out = append(out, f)
	}
	return out
}
