package search

import (
	"testing"
	"time"

	"github.com/eldrix/snomed-engine/component"
)

func newDescriptionIndex(t *testing.T) *DescriptionIndex {
	t.Helper()
	di, err := OpenDescriptionIndex(t.TempDir()+"/search.db", false)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { di.Close() })
	return di
}

func fixtureDescriptions() []Description {
	return []Description{
		{
			DescriptionID: 41398015, ConceptID: 24700007, Term: "Multiple sclerosis",
			Active: true, ConceptActive: true,
			DirectParents:    []int64{6118003},
			RecursiveParents: []int64{24700007, 6118003, 138875005},
			ConceptRefsets:   []int64{447562003},
			PreferredIn:      []int64{999001261000000100},
		},
		{
			DescriptionID: 84923010, ConceptID: 24700007, Term: "Multiple sclerosis (disorder)",
			IsFSN: true, Active: true, ConceptActive: true,
			DirectParents:    []int64{6118003},
			RecursiveParents: []int64{24700007, 6118003, 138875005},
		},
		{
			DescriptionID: 760601000000113, ConceptID: 73211009, Term: "Diabetes mellitus",
			Active: true, ConceptActive: true,
			RecursiveParents: []int64{73211009, 138875005},
		},
	}
}

func TestSearchRanksShorterTermsFirst(t *testing.T) {
	di := newDescriptionIndex(t)
	if err := di.Index(fixtureDescriptions()); err != nil {
		t.Fatal(err)
	}
	hits, err := di.Search(Query{Text: "multiple sclerosis", ShowFSN: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].DescriptionID != 41398015 {
		t.Errorf("expected the shorter term ranked first, got %v", hits)
	}
}

func TestSearchExcludesFSNByDefault(t *testing.T) {
	di := newDescriptionIndex(t)
	if err := di.Index(fixtureDescriptions()); err != nil {
		t.Fatal(err)
	}
	hits, err := di.Search(Query{Text: "multiple sclerosis"})
	if err != nil {
		t.Fatal(err)
	}
	for _, h := range hits {
		if h.DescriptionID == 84923010 {
			t.Errorf("expected FSN to be excluded, got %v", hits)
		}
	}
}

func TestSearchPrefixTokens(t *testing.T) {
	di := newDescriptionIndex(t)
	if err := di.Index(fixtureDescriptions()); err != nil {
		t.Fatal(err)
	}
	hits, err := di.Search(Query{Text: "mult scl"})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) == 0 || hits[0].DescriptionID != 41398015 {
		t.Errorf("expected prefix tokens to match 'Multiple sclerosis', got %v", hits)
	}
}

func TestSearchIsAFilter(t *testing.T) {
	di := newDescriptionIndex(t)
	if err := di.Index(fixtureDescriptions()); err != nil {
		t.Fatal(err)
	}
	hits, err := di.Search(Query{Text: "multiple", IsA: []int64{6118003}})
	if err != nil {
		t.Fatal(err)
	}
	for _, h := range hits {
		if h.DescriptionID == 760601000000113 {
			t.Errorf("expected diabetes to be filtered out, got %v", hits)
		}
	}
}

func TestSearchFuzzyFallback(t *testing.T) {
	di := newDescriptionIndex(t)
	if err := di.Index(fixtureDescriptions()); err != nil {
		t.Fatal(err)
	}
	hits, err := di.Search(Query{Text: "sclerosos", Fuzzy: FuzzyFallback})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) == 0 {
		t.Errorf("expected fuzzy fallback to rescue the misspelling")
	}
}

func newMembersIndex(t *testing.T) *MembersIndex {
	t.Helper()
	mi, err := OpenMembersIndex(t.TempDir()+"/members.db", false)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { mi.Close() })
	return mi
}

func TestMembersIndexQueries(t *testing.T) {
	mi := newMembersIndex(t)
	now := time.Now()
	items := []component.RefsetItem{
		{
			ID: "bba5806d-8d8e-5295-ac6a-962b67c8ed50", EffectiveTime: now, Active: true,
			RefsetID: 447562003, ReferencedComponentID: 24700007, Pattern: "s",
			Fields: []component.Field{{Name: "mapTarget", Kind: component.FieldString, Str: "G35"}},
		},
		{
			ID: "bba5806d-8d8e-5295-ac6a-962b67c8ed51", EffectiveTime: now, Active: true,
			RefsetID: 447562003, ReferencedComponentID: 73211009, Pattern: "s",
			Fields: []component.Field{{Name: "mapTarget", Kind: component.FieldString, Str: "E10"}},
		},
		{
			ID: "bba5806d-8d8e-5295-ac6a-962b67c8ed52", EffectiveTime: now, Active: false,
			RefsetID: 447562003, ReferencedComponentID: 6118003, Pattern: "s",
			Fields: []component.Field{{Name: "mapTarget", Kind: component.FieldString, Str: "G37"}},
		},
	}
	if err := mi.Index(447562003, items); err != nil {
		t.Fatal(err)
	}

	all, err := mi.QueryRefsetID(447562003)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 active members (inactive skipped), got %v", all)
	}

	g35, err := mi.MemberField(447562003, "mapTarget", "G35")
	if err != nil {
		t.Fatal(err)
	}
	if len(g35) != 1 || g35[0] != 24700007 {
		t.Errorf("expected MS for mapTarget G35, got %v", g35)
	}

	prefixed, err := mi.MemberFieldPrefix(447562003, "mapTarget", "G")
	if err != nil {
		t.Fatal(err)
	}
	if len(prefixed) != 1 {
		t.Errorf("expected only the active G-code, got %v", prefixed)
	}

	wild, err := mi.MemberFieldWildcard(447562003, "mapTarget", "E1?")
	if err != nil {
		t.Fatal(err)
	}
	if len(wild) != 1 || wild[0] != 73211009 {
		t.Errorf("expected diabetes for wildcard E1?, got %v", wild)
	}
}
