package rf2

import (
	"testing"

	"github.com/eldrix/snomed-engine/component"
)

func TestParseConceptRow(t *testing.T) {
	row := []string{"24700007", "20020131", "1", "900000000000207008", "900000000000074008"}
	c, err := ParseConceptRow(row)
	if err != nil {
		t.Fatal(err)
	}
	if c.ID != 24700007 || !c.Active || !c.IsPrimitive() {
		t.Errorf("unexpected concept: %+v", c)
	}
}

func TestParseDescriptionRow(t *testing.T) {
	row := []string{"84923010", "20020131", "1", "900000000000207008", "24700007", "en",
		"900000000000003001", "Multiple sclerosis (disorder)", "900000000000448009"}
	d, err := ParseDescriptionRow(row)
	if err != nil {
		t.Fatal(err)
	}
	if d.Term != "Multiple sclerosis (disorder)" || !d.IsFullySpecifiedName() {
		t.Errorf("unexpected description: %+v", d)
	}
}

func TestParseRelationshipRow(t *testing.T) {
	row := []string{"123456029", "20020131", "1", "900000000000207008", "24700007", "6118003",
		"0", "116680003", "900000000000011006", "900000000000451002"}
	r, err := ParseRelationshipRow(row)
	if err != nil {
		t.Fatal(err)
	}
	if r.SourceID != 24700007 || r.DestinationID != 6118003 || r.TypeID != component.IsA {
		t.Errorf("unexpected relationship: %+v", r)
	}
}

func TestParseRowRejectsInvalidIdentifier(t *testing.T) {
	// 24700008 fails the Verhoeff check; 84923010 carries a description
	// partition and so cannot be a concept id
	for _, id := range []string{"24700008", "84923010"} {
		row := []string{id, "20020131", "1", "900000000000207008", "900000000000074008"}
		if _, err := ParseConceptRow(row); err == nil {
			t.Errorf("expected %s to be rejected as a concept id", id)
		}
	}
}

func TestParseRefsetRowSimpleMap(t *testing.T) {
	row := []string{"bba5806d-8d8e-5295-ac6a-962b67c8ed50", "20040131", "1",
		"999000011000000103", "447562003", "24700007", "G35"}
	item, err := ParseRefsetRow("s", "SimpleMap", row)
	if err != nil {
		t.Fatal(err)
	}
	if item.StringField("mapTarget") != "G35" {
		t.Errorf("expected mapTarget G35, got %+v", item.Fields)
	}
}

func TestParseRefsetRowLanguage(t *testing.T) {
	row := []string{"bba5806d-8d8e-5295-ac6a-962b67c8ed50", "20040131", "1",
		"999000011000000103", "900000000000508004", "999002221000000116", "900000000000548007"}
	item, err := ParseRefsetRow("c", "Language", row)
	if err != nil {
		t.Fatal(err)
	}
	if item.ConceptField("acceptabilityId") != component.Preferred {
		t.Errorf("expected preferred acceptability, got %+v", item.Fields)
	}
}

func TestParseRefsetRowAssociationReference(t *testing.T) {
	// association files ship as "...AssociationReferenceSnapshot...", so the
	// filename-derived name is "AssociationReference", not "Association"
	row := []string{"bba5806d-8d8e-5295-ac6a-962b67c8ed50", "20040131", "1",
		"900000000000207008", "900000000000527005", "192928003", "24700007"}
	item, err := ParseRefsetRow("c", "AssociationReference", row)
	if err != nil {
		t.Fatal(err)
	}
	if item.ConceptField("targetComponentId") != 24700007 {
		t.Errorf("expected targetComponentId 24700007, got %+v", item.Fields)
	}
}

func TestParseRefsetRowKnownNameByPrefix(t *testing.T) {
	row := []string{"bba5806d-8d8e-5295-ac6a-962b67c8ed50", "20040131", "1",
		"900000000000207008", "723604009", "363698007",
		"723597001", "1", "0..*", "0..1", "723597001", "723596005"}
	item, err := ParseRefsetRow("cssscc", "MRCMAttributeDomainInternational", row)
	if err != nil {
		t.Fatal(err)
	}
	if item.ConceptField("domainId") != 723597001 {
		t.Errorf("expected MRCM layout resolved by prefix, got %+v", item.Fields)
	}
}

func TestParseRefsetRowUnknownNameFallsBackToGenericFieldNames(t *testing.T) {
	row := []string{"bba5806d-8d8e-5295-ac6a-962b67c8ed50", "20040131", "1",
		"999000011000000103", "900000000000490003", "24700007", "42"}
	item, err := ParseRefsetRow("i", "SomeBespokeExtension", row)
	if err != nil {
		t.Fatal(err)
	}
	if item.IntField("field1") != 42 {
		t.Errorf("expected generic field1=42, got %+v", item.Fields)
	}
}

func TestParseRefsetRowTooFewColumns(t *testing.T) {
	if _, err := ParseRefsetRow("cc", "Association", []string{"1", "20040131", "1", "10", "20"}); err == nil {
		t.Errorf("expected error for short row")
	}
}
