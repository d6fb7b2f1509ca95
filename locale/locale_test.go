package locale

import (
	"testing"
	"time"

	"golang.org/x/text/language"

	"github.com/eldrix/snomed-engine/component"
	"github.com/eldrix/snomed-engine/store"
)

const (
	gbRefset = 999001261000000100
	usRefset = 900000000000509007
)

func newResolver(t *testing.T) (*Resolver, store.Store) {
	t.Helper()
	s, err := store.Open(t.TempDir(), false)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	now := time.Now()
	items := []component.RefsetItem{
		{ID: "11111111-0000-0000-0000-000000000001", EffectiveTime: now, Active: true,
			RefsetID: gbRefset, ReferencedComponentID: 41398015, Pattern: "c",
			Fields: []component.Field{{Name: "acceptabilityId", Kind: component.FieldConcept, Concept: component.Preferred}}},
		{ID: "11111111-0000-0000-0000-000000000002", EffectiveTime: now, Active: true,
			RefsetID: usRefset, ReferencedComponentID: 41398015, Pattern: "c",
			Fields: []component.Field{{Name: "acceptabilityId", Kind: component.FieldConcept, Concept: component.Preferred}}},
	}
	if err := store.PutRefsetItems(s, items); err != nil {
		t.Fatal(err)
	}
	r, err := Open(s, language.BritishEnglish)
	if err != nil {
		t.Fatal(err)
	}
	return r, s
}

func TestMatchPrefersExactRegion(t *testing.T) {
	r, _ := newResolver(t)
	ids := r.Match("en-GB", false)
	if len(ids) != 2 || ids[0] != gbRefset {
		t.Errorf("expected en-GB to rank the British refset first, got %v", ids)
	}
	ids = r.Match("en-US", false)
	if len(ids) != 2 || ids[0] != usRefset {
		t.Errorf("expected en-US to rank the American refset first, got %v", ids)
	}
}

func TestMatchNoMatchIsNotAnError(t *testing.T) {
	r, _ := newResolver(t)
	if ids := r.Match("zh", false); len(ids) != 0 {
		t.Errorf("expected no match for an uninstalled language, got %v", ids)
	}
	if ids := r.Match("zh", true); len(ids) != 1 || ids[0] != gbRefset {
		t.Errorf("expected fallback to the default locale, got %v", ids)
	}
}

func TestMatchPriorityList(t *testing.T) {
	r, _ := newResolver(t)
	ids := r.Match("fr;q=0.9,en-GB;q=0.8", false)
	if len(ids) == 0 || ids[0] != gbRefset {
		t.Errorf("expected the installed language from the priority list, got %v", ids)
	}
}

func TestPreferredSynonym(t *testing.T) {
	_, s := newResolver(t)
	now := time.Now()
	descs := []component.Description{
		{ID: 41398015, EffectiveTime: now, Active: true, ConceptID: 24700007,
			TypeID: component.Synonym, Term: "Multiple sclerosis", LanguageCode: "en"},
		{ID: 84923010, EffectiveTime: now, Active: true, ConceptID: 24700007,
			TypeID: component.FullySpecifiedName, Term: "Multiple sclerosis (disorder)", LanguageCode: "en"},
	}
	if err := store.PutDescriptions(s, descs); err != nil {
		t.Fatal(err)
	}
	d, ok, err := PreferredSynonym(s, 24700007, []int64{gbRefset})
	if err != nil {
		t.Fatal(err)
	}
	if !ok || d.Term != "Multiple sclerosis" {
		t.Errorf("expected preferred synonym, got %+v ok=%v", d, ok)
	}
}
