package catalog

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func testCatalog() *Catalog {
	doc := &Document{
		SectionsByMode: map[Mode][]string{ModePE: {"General", "Skin", "Neuro"}},
		SectionDefs: map[string]*SectionDef{
			"PE:General": {Title: "General"},
			"Skin":       {Title: "Skin"},
			"neuro-def":  {Title: "Neuro"},
		},
	}
	return New(map[Mode]*Document{ModePE: doc})
}

func TestResolveSection_CanonicalKey(t *testing.T) {
	def := testCatalog().ResolveSection(ModePE, "General")
	if def == nil || def.Title != "General" {
		t.Fatalf("expected General definition, got %+v", def)
	}
}

func TestResolveSection_BareTitle(t *testing.T) {
	def := testCatalog().ResolveSection(ModePE, "Skin")
	if def == nil || def.Title != "Skin" {
		t.Fatalf("expected Skin definition, got %+v", def)
	}
}

func TestResolveSection_ScanByStoredTitle(t *testing.T) {
	def := testCatalog().ResolveSection(ModePE, "Neuro")
	if def == nil || def.Title != "Neuro" {
		t.Fatalf("expected Neuro definition, got %+v", def)
	}
}

func TestResolveSection_NotFound(t *testing.T) {
	c := testCatalog()
	if def := c.ResolveSection(ModePE, "Missing"); def != nil {
		t.Errorf("expected nil, got %+v", def)
	}
	if def := c.ResolveSection(ModeROS, "General"); def != nil {
		t.Errorf("expected nil for mode without a document, got %+v", def)
	}

	var nilCatalog *Catalog
	if def := nilCatalog.ResolveSection(ModePE, "General"); def != nil {
		t.Errorf("expected nil from nil catalog, got %+v", def)
	}
}

func TestCollectItemIDs_Order(t *testing.T) {
	def := &SectionDef{
		Title:       "General",
		Kind:        KindSubsections,
		HeaderItems: []ItemDef{{ID: "vital_signs_text"}},
		Chips:       []ItemDef{{ID: "top"}},
		Groups:      []GroupDef{{Title: "g", Items: []ItemDef{{ID: "grouped"}}}},
		Panels: []PanelDef{{
			ID:         "heent",
			Checkboxes: []ItemDef{{ID: "heent_nl"}},
			Chips:      []ItemDef{{ID: "icterus"}},
			Subsections: []SubsectionDef{{
				Title: "Ears",
				Chips: []ItemDef{{ID: "tm_bulging"}},
			}},
			Matrix: &MatrixSpec{Rows: []string{"Radial"}},
		}},
		Subsections: []SubsectionDef{{
			Title: "Head",
			Items: []ItemDef{{ID: "head_nl"}, {ID: "top"}},
		}},
	}

	want := []string{
		"vital_signs_text", "top", "grouped",
		"heent_nl", "icterus", "tm_bulging", "Radial",
		"head_nl", "top",
	}
	if diff := cmp.Diff(want, CollectItemIDs(def)); diff != "" {
		t.Errorf("CollectItemIDs mismatch (-want +got):\n%s", diff)
	}
}

func TestCollectItemIDs_SubsectionsOnlyForSubsectionKind(t *testing.T) {
	def := &SectionDef{
		Kind:        KindChips,
		Subsections: []SubsectionDef{{Items: []ItemDef{{ID: "hidden"}}}},
	}
	if ids := CollectItemIDs(def); len(ids) != 0 {
		t.Errorf("expected no ids, got %v", ids)
	}
	if ids := CollectItemIDs(nil); ids != nil {
		t.Errorf("expected nil for nil def, got %v", ids)
	}
}

func TestFindItemDefinition_PrefersDeepest(t *testing.T) {
	def := &SectionDef{
		Chips: []ItemDef{{ID: "edema", Label: "Edema (section)"}},
		Panels: []PanelDef{{
			Chips: []ItemDef{{ID: "edema", Label: "Edema (panel)"}},
			Subsections: []SubsectionDef{{
				Chips: []ItemDef{{ID: "edema", Label: "Edema (subsection)"}},
			}},
		}},
	}
	got := FindItemDefinition(def, "edema")
	if got.Label != "Edema (subsection)" {
		t.Errorf("expected subsection definition, got %q", got.Label)
	}
}

func TestFindItemDefinition_Fallback(t *testing.T) {
	got := FindItemDefinition(&SectionDef{}, "mystery")
	if got.ID != "mystery" || got.Label != "mystery" {
		t.Errorf("expected synthetic definition, got %+v", got)
	}
	got = FindItemDefinition(nil, "x")
	if got.Label != "x" {
		t.Errorf("expected synthetic definition for nil section, got %+v", got)
	}
}

func TestEffectivePanels_Implicit(t *testing.T) {
	def := &SectionDef{
		Title: "Skin",
		Kind:  KindChips,
		Items: []ItemDef{{ID: "rash"}},
	}
	panels := def.EffectivePanels()
	if len(panels) != 1 {
		t.Fatalf("expected one implicit panel, got %d", len(panels))
	}
	if panels[0].Title != "Skin" {
		t.Errorf("expected panel titled Skin, got %q", panels[0].Title)
	}
	if len(panels[0].Chips) != 1 || panels[0].Chips[0].ID != "rash" {
		t.Errorf("expected items to become chips, got %+v", panels[0].Chips)
	}

	if got := (&SectionDef{Title: "Empty"}).EffectivePanels(); got != nil {
		t.Errorf("expected no panels for empty section, got %+v", got)
	}
}

func TestFlattenFields(t *testing.T) {
	fields := []FieldDef{
		{ID: "a"},
		{ID: "grp", Type: FieldGroup, Fields: []FieldDef{{ID: "b"}, {ID: "c"}}},
	}
	var ids []string
	for _, f := range FlattenFields(fields) {
		ids = append(ids, f.ID)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, ids); diff != "" {
		t.Errorf("FlattenFields mismatch (-want +got):\n%s", diff)
	}
}
