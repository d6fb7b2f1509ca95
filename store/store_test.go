package store

import (
	"testing"
	"time"

	"github.com/eldrix/snomed-engine/component"
)

func mustOpen(t *testing.T) Store {
	t.Helper()
	s, err := Open(t.TempDir(), false)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutConceptsLatestWins(t *testing.T) {
	s := mustOpen(t)
	old := component.Concept{ID: 24700007, EffectiveTime: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), Active: true}
	newer := component.Concept{ID: 24700007, EffectiveTime: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), Active: false}

	if err := PutConcepts(s, []component.Concept{newer, old}); err != nil {
		t.Fatal(err)
	}
	var got component.Concept
	if err := s.View(func(b Batch) error { return b.Get(BucketConcepts, Int64Key(24700007), &got) }); err != nil {
		t.Fatal(err)
	}
	if got.Active {
		t.Errorf("expected older record to have been superseded, got %+v", got)
	}
}

func TestPutDescriptionsMaintainsIndex(t *testing.T) {
	s := mustOpen(t)
	ds := []component.Description{
		{ID: 1, ConceptID: 24700007, Term: "Multiple sclerosis", EffectiveTime: time.Now(), Active: true},
		{ID: 2, ConceptID: 24700007, Term: "Multiple sclerosis (disorder)", EffectiveTime: time.Now(), Active: true},
	}
	if err := PutDescriptions(s, ds); err != nil {
		t.Fatal(err)
	}
	var entries [][]byte
	err := s.View(func(b Batch) error {
		var err error
		entries, err = b.GetIndexEntries(IndexConceptDescriptions, Int64Key(24700007))
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 descriptions indexed, got %d", len(entries))
	}
}

func TestPutRelationshipsBuildsParentChildClosureEdges(t *testing.T) {
	s := mustOpen(t)
	rs := []component.Relationship{
		{ID: 100, SourceID: 24700007, DestinationID: 6118003, TypeID: component.IsA, Active: true, EffectiveTime: time.Now()},
	}
	if err := PutRelationships(s, rs); err != nil {
		t.Fatal(err)
	}
	var parents [][]byte
	err := s.View(func(b Batch) error {
		var err error
		parents, err = b.GetIndexEntries(IndexConceptParentsOfType, compoundKey(Int64Key(24700007), Int64Key(component.IsA)))
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(parents) != 1 || DecodeInt64Key(parents[0]) != 6118003 {
		t.Errorf("expected parent 6118003, got %v", parents)
	}
}

func TestPutRefsetItemsReverseMapIndex(t *testing.T) {
	s := mustOpen(t)
	items := []component.RefsetItem{
		{
			ID: "bba5806d-8d8e-5295-ac6a-962b67c8ed50", RefsetID: 447562003, ReferencedComponentID: 24700007,
			Active: true, EffectiveTime: time.Now(), Pattern: "s",
			Fields: []component.Field{{Name: "mapTarget", Kind: component.FieldString, Str: "G35"}},
		},
	}
	if err := PutRefsetItems(s, items); err != nil {
		t.Fatal(err)
	}
	var entries [][]byte
	err := s.View(func(b Batch) error {
		var err error
		entries, err = b.GetIndexEntries(IndexRefsetFieldItems,
			compoundKey(Int64Key(447562003), []byte("mapTarget"), []byte{0}, []byte("G35")))
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || string(entries[0]) != items[0].ID {
		t.Errorf("expected reverse map to find item %s, got %v", items[0].ID, entries)
	}
}

func TestIndexRebuildIsIdempotent(t *testing.T) {
	s := mustOpen(t)
	rs := []component.Relationship{
		{ID: 100, SourceID: 24700007, DestinationID: 6118003, TypeID: component.IsA, Active: true, EffectiveTime: time.Now()},
	}
	if err := PutRelationships(s, rs); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := Index(s); err != nil {
			t.Fatal(err)
		}
	}
	var parents [][]byte
	err := s.View(func(b Batch) error {
		var err error
		parents, err = b.GetIndexEntries(IndexConceptParentsOfType, compoundKey(Int64Key(24700007), Int64Key(component.IsA)))
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(parents) != 1 {
		t.Errorf("expected rebuild to be idempotent, found %d parent entries", len(parents))
	}
}

func TestStats(t *testing.T) {
	s := mustOpen(t)
	if err := PutConcepts(s, []component.Concept{{ID: 24700007, EffectiveTime: time.Now(), Active: true}}); err != nil {
		t.Fatal(err)
	}
	st, err := Stats(s)
	if err != nil {
		t.Fatal(err)
	}
	if st.Concepts != 1 {
		t.Errorf("expected 1 concept, got %d", st.Concepts)
	}
}
