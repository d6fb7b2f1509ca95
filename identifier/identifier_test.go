package identifier

import "testing"

func TestPartitionKind(t *testing.T) {
	// 24700007 = Multiple sclerosis, a concept identifier.
	id := ID(24700007)
	if !id.Valid() {
		t.Fatalf("expected %d to be Verhoeff-valid", id)
	}
	if got := id.Partition(); got != KindConcept {
		t.Errorf("Partition() = %v, want KindConcept", got)
	}
	if !id.MatchesKind(KindConcept) {
		t.Errorf("MatchesKind(KindConcept) = false, want true")
	}
	if id.MatchesKind(KindDescription) {
		t.Errorf("MatchesKind(KindDescription) = true, want false")
	}
}

func TestValidRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "abc", "1", "12"} {
		id, err := Parse(s)
		if err == nil && id.Valid() {
			t.Errorf("Parse(%q) unexpectedly valid", s)
		}
	}
}

func TestAppendCheckDigit(t *testing.T) {
	full := AppendCheckDigit("2470000")
	id, err := Parse(full)
	if err != nil {
		t.Fatal(err)
	}
	if !id.Valid() {
		t.Errorf("generated identifier %s did not validate", full)
	}
}

func TestParseItemID(t *testing.T) {
	valid := "bba5806d-8d8e-5295-ac6a-962b67c8ed50"
	if _, err := ParseItemID(valid); err != nil {
		t.Errorf("expected valid UUID to parse: %v", err)
	}
	if _, err := ParseItemID("not-a-uuid"); err == nil {
		t.Errorf("expected invalid UUID to fail")
	}
}
