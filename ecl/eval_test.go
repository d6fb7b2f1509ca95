package ecl

import (
	"testing"
	"time"

	"github.com/eldrix/snomed-engine/component"
	"github.com/eldrix/snomed-engine/search"
	"github.com/eldrix/snomed-engine/store"
)

func newEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	s, err := store.Open(t.TempDir(), false)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	di, err := search.OpenDescriptionIndex(t.TempDir(), false)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { di.Close() })

	mi, err := search.OpenMembersIndex(t.TempDir(), false)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { mi.Close() })

	now := time.Now()
	rels := []component.Relationship{
		{ID: 1, SourceID: 24700007, DestinationID: 6118003, TypeID: component.IsA, Active: true, EffectiveTime: now},
		{ID: 2, SourceID: 6118003, DestinationID: 118940003, TypeID: component.IsA, Active: true, EffectiveTime: now},
	}
	if err := store.PutRelationships(s, rels); err != nil {
		t.Fatal(err)
	}
	items := []component.RefsetItem{
		{ID: "bba5806d-8d8e-5295-ac6a-962b67c8ed50", RefsetID: 991411000000109, ReferencedComponentID: 24700007,
			Active: true, EffectiveTime: now, Pattern: ""},
	}
	if err := store.PutRefsetItems(s, items); err != nil {
		t.Fatal(err)
	}
	if err := mi.Index(991411000000109, items); err != nil {
		t.Fatal(err)
	}

	return &Evaluator{Store: s, Descriptions: di, Members: mi}
}

func TestExpandDescendantOrSelf(t *testing.T) {
	e := newEvaluator(t)
	result, err := e.ExpandString("<<24700007")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := result[24700007]; !ok {
		t.Errorf("expected <<24700007 to include 24700007, got %v", result.Sorted())
	}
}

func TestExpandDescendantOfExcludesSelf(t *testing.T) {
	e := newEvaluator(t)
	result, err := e.ExpandString("<6118003")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := result[6118003]; ok {
		t.Errorf("expected <6118003 to exclude 6118003, got %v", result.Sorted())
	}
	if _, ok := result[24700007]; !ok {
		t.Errorf("expected <6118003 to include descendant 24700007, got %v", result.Sorted())
	}
}

func TestExpandMemberOf(t *testing.T) {
	e := newEvaluator(t)
	result, err := e.ExpandString("^991411000000109")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := result[24700007]; !ok {
		t.Errorf("expected ^991411000000109 to include 24700007, got %v", result.Sorted())
	}
}

func TestExpandSetOperations(t *testing.T) {
	e := newEvaluator(t)
	result, err := e.ExpandString(">>24700007 MINUS 6118003")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := result[6118003]; ok {
		t.Errorf("expected MINUS to exclude 6118003, got %v", result.Sorted())
	}
	if _, ok := result[24700007]; !ok {
		t.Errorf("expected result to retain 24700007, got %v", result.Sorted())
	}
}
