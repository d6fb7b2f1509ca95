package rf2

import "testing"

func TestParseFilenameConcept(t *testing.T) {
	d, ok := ParseFilename("sct2_Concept_Snapshot_INT_20240101.txt")
	if !ok {
		t.Fatal("expected match")
	}
	if d.ComponentKind != "Concept" || d.ReleaseType != "Snapshot" || d.Namespace != "INT" {
		t.Errorf("unexpected descriptor: %+v", d)
	}
	if !d.Importable() {
		t.Errorf("expected concept snapshot to be importable")
	}
	if d.ParserID() != "Concept" {
		t.Errorf("ParserID() = %q, want Concept", d.ParserID())
	}
}

func TestParseFilenameDescriptionWithLanguage(t *testing.T) {
	d, ok := ParseFilename("sct2_Description_Snapshot-en_INT_20240101.txt")
	if !ok {
		t.Fatal("expected match")
	}
	if d.ComponentKind != "Description" || d.LanguageCode != "en" {
		t.Errorf("unexpected descriptor: %+v", d)
	}
}

func TestParseFilenameRefsetPattern(t *testing.T) {
	d, ok := ParseFilename("der2_iisssciRefset_ExtendedMapSnapshot_INT_20240101.txt")
	if !ok {
		t.Fatal("expected match")
	}
	if d.ComponentKind != "Refset" || d.Pattern != "iisssci" || d.RefsetName != "ExtendedMap" {
		t.Errorf("unexpected descriptor: %+v", d)
	}
	if d.ParserID() != "Refset" {
		t.Errorf("ParserID() = %q, want Refset", d.ParserID())
	}
}

func TestParseFilenameSimpleRefset(t *testing.T) {
	d, ok := ParseFilename("der2_Refset_SimpleSnapshot_INT_20240101.txt")
	if !ok {
		t.Fatal("expected match")
	}
	if d.Pattern != "" || d.RefsetName != "Simple" {
		t.Errorf("unexpected descriptor: %+v", d)
	}
}

func TestParseFilenameLanguageRefset(t *testing.T) {
	d, ok := ParseFilename("der2_cRefset_LanguageSnapshot-en_INT_20240101.txt")
	if !ok {
		t.Fatal("expected match")
	}
	if d.Pattern != "c" || d.RefsetName != "Language" || d.LanguageCode != "en" {
		t.Errorf("unexpected descriptor: %+v", d)
	}
}

func TestParseFilenameDeltaNotImportable(t *testing.T) {
	d, ok := ParseFilename("sct2_Concept_Delta_INT_20240101.txt")
	if !ok {
		t.Fatal("expected match")
	}
	if d.Importable() {
		t.Errorf("delta release should not be importable")
	}
}

func TestParseFilenameNoMatch(t *testing.T) {
	if _, ok := ParseFilename("README.md"); ok {
		t.Errorf("expected no match for non-RF2 filename")
	}
	if _, ok := ParseFilename("sct2_Concept_Snapshot_INT.txt"); ok {
		t.Errorf("expected no match when version date is missing")
	}
}
