// Copyright 2018 Mark Wardle / Eldrix Ltd
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.
//

package store

import (
	"context"

	"github.com/eldrix/snomed-engine/component"
)

// GetConcept returns the concept with the given id.
func GetConcept(s Store, id int64) (component.Concept, error) {
	var c component.Concept
	err := s.View(func(b Batch) error { return b.Get(BucketConcepts, Int64Key(id), &c) })
	return c, err
}

// GetDescription returns the description with the given id.
func GetDescription(s Store, id int64) (component.Description, error) {
	var d component.Description
	err := s.View(func(b Batch) error { return b.Get(BucketDescriptions, Int64Key(id), &d) })
	return d, err
}

// GetRelationship returns the relationship with the given id.
func GetRelationship(s Store, id int64) (component.Relationship, error) {
	var r component.Relationship
	err := s.View(func(b Batch) error { return b.Get(BucketRelationships, Int64Key(id), &r) })
	return r, err
}

// GetRefsetItem returns the reference set item with the given UUID.
func GetRefsetItem(s Store, itemID string) (component.RefsetItem, error) {
	var r component.RefsetItem
	err := s.View(func(b Batch) error { return b.Get(BucketRefsetItems, []byte(itemID), &r) })
	return r, err
}

// DescriptionsForConcept returns every description of conceptID, active or not.
func DescriptionsForConcept(s Store, conceptID int64) ([]component.Description, error) {
	var out []component.Description
	err := s.View(func(b Batch) error {
		entries, err := b.GetIndexEntries(IndexConceptDescriptions, Int64Key(conceptID))
		if err != nil {
			return err
		}
		for _, key := range entries {
			var d component.Description
			if err := b.Get(BucketDescriptions, key, &d); err != nil {
				return err
			}
			out = append(out, d)
		}
		return nil
	})
	return out, err
}

// ParentRelationshipIDs returns the ids of every relationship (active or not) sourced at conceptID.
func ParentRelationshipIDs(s Store, conceptID int64) ([][]byte, error) {
	var out [][]byte
	err := s.View(func(b Batch) error {
		var err error
		out, err = b.GetIndexEntries(IndexConceptParentRelationships, Int64Key(conceptID))
		return err
	})
	return out, err
}

// ChildRelationshipIDs returns the ids of every relationship (active or not) destined at conceptID.
func ChildRelationshipIDs(s Store, conceptID int64) ([][]byte, error) {
	var out [][]byte
	err := s.View(func(b Batch) error {
		var err error
		out, err = b.GetIndexEntries(IndexConceptChildRelationships, Int64Key(conceptID))
		return err
	})
	return out, err
}

// ParentRelationships returns every relationship (active or not) sourced at conceptID.
func ParentRelationships(s Store, conceptID int64) ([]component.Relationship, error) {
	var out []component.Relationship
	err := s.View(func(b Batch) error {
		entries, err := b.GetIndexEntries(IndexConceptParentRelationships, Int64Key(conceptID))
		if err != nil {
			return err
		}
		for _, key := range entries {
			var r component.Relationship
			if err := b.Get(BucketRelationships, key, &r); err != nil {
				return err
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// ChildRelationships returns every relationship (active or not) destined at conceptID.
func ChildRelationships(s Store, conceptID int64) ([]component.Relationship, error) {
	var out []component.Relationship
	err := s.View(func(b Batch) error {
		entries, err := b.GetIndexEntries(IndexConceptChildRelationships, Int64Key(conceptID))
		if err != nil {
			return err
		}
		for _, key := range entries {
			var r component.Relationship
			if err := b.Get(BucketRelationships, key, &r); err != nil {
				return err
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// Parents returns the direct active destinations of conceptID's type-t edges.
func Parents(s Store, conceptID, typeID int64) ([]int64, error) {
	var out []int64
	err := s.View(func(b Batch) error {
		entries, err := b.GetIndexEntries(IndexConceptParentsOfType, compoundKey(Int64Key(conceptID), Int64Key(typeID)))
		if err != nil {
			return err
		}
		for _, e := range entries {
			out = append(out, DecodeInt64Key(e))
		}
		return nil
	})
	return out, err
}

// Children returns the direct active sources of type-t edges destined at conceptID.
func Children(s Store, conceptID, typeID int64) ([]int64, error) {
	var out []int64
	err := s.View(func(b Batch) error {
		entries, err := b.GetIndexEntries(IndexConceptChildrenOfType, compoundKey(Int64Key(conceptID), Int64Key(typeID)))
		if err != nil {
			return err
		}
		for _, e := range entries {
			out = append(out, DecodeInt64Key(e))
		}
		return nil
	})
	return out, err
}

// AllParents returns the transitive closure of conceptID's type-t parent
// edges, including conceptID itself (the closure is reflexive).
func AllParents(s Store, conceptID, typeID int64) ([]int64, error) {
	return walkClosure(s, conceptID, typeID, Parents)
}

// AllChildren returns the transitive closure of conceptID's type-t child
// edges, including conceptID itself.
func AllChildren(s Store, conceptID, typeID int64) ([]int64, error) {
	return walkClosure(s, conceptID, typeID, Children)
}

func walkClosure(s Store, conceptID, typeID int64, step func(Store, int64, int64) ([]int64, error)) ([]int64, error) {
	seen := map[int64]struct{}{conceptID: {}}
	queue := []int64{conceptID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		next, err := step(s, id, typeID)
		if err != nil {
			return nil, err
		}
		for _, n := range next {
			if _, ok := seen[n]; !ok {
				seen[n] = struct{}{}
				queue = append(queue, n)
			}
		}
	}
	out := make([]int64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out, nil
}

// ParentTypes returns the distinct relationship type ids of conceptID's
// active direct parent edges, used to build the per-type transitive-closure
// fields of the description index.
func ParentTypes(s Store, conceptID int64) ([]int64, error) {
	rels, err := ParentRelationships(s, conceptID)
	if err != nil {
		return nil, err
	}
	seen := map[int64]struct{}{}
	var out []int64
	for _, r := range rels {
		if !r.Active {
			continue
		}
		if _, ok := seen[r.TypeID]; !ok {
			seen[r.TypeID] = struct{}{}
			out = append(out, r.TypeID)
		}
	}
	return out, nil
}

// IsA reports whether parent is in the transitive Is-A closure of child,
// including child itself.
func IsA(s Store, child, parent int64) (bool, error) {
	if child == parent {
		return true, nil
	}
	closure, err := AllParents(s, child, component.IsA)
	if err != nil {
		return false, err
	}
	for _, id := range closure {
		if id == parent {
			return true, nil
		}
	}
	return false, nil
}

// RefsetIDsForComponent returns the distinct refset ids that componentID is
// an active member of.
func RefsetIDsForComponent(s Store, componentID int64) ([]int64, error) {
	var out []int64
	err := s.View(func(b Batch) error {
		entries, err := b.GetIndexEntries(IndexComponentRefsets, Int64Key(componentID))
		if err != nil {
			return err
		}
		for _, e := range entries {
			out = append(out, DecodeInt64Key(e))
		}
		return nil
	})
	return out, err
}

// ItemsForComponent returns the active refset items referencing componentID.
// If refsetID is non-zero, results are restricted to that refset.
func ItemsForComponent(s Store, componentID, refsetID int64) ([]component.RefsetItem, error) {
	var out []component.RefsetItem
	err := s.View(func(b Batch) error {
		refsetIDs := []int64{refsetID}
		if refsetID == 0 {
			entries, err := b.GetIndexEntries(IndexComponentRefsets, Int64Key(componentID))
			if err != nil {
				return err
			}
			refsetIDs = refsetIDs[:0]
			for _, e := range entries {
				refsetIDs = append(refsetIDs, DecodeInt64Key(e))
			}
		}
		for _, rs := range refsetIDs {
			items, err := b.GetIndexEntries(IndexRefsetComponentItems, compoundKey(Int64Key(rs), Int64Key(componentID)))
			if err != nil {
				return err
			}
			for _, itemKey := range items {
				var item component.RefsetItem
				if err := b.Get(BucketRefsetItems, itemKey, &item); err != nil {
					return err
				}
				out = append(out, item)
			}
		}
		return nil
	})
	return out, err
}

// ConcreteValuesForConcept returns every concrete-value edge (active or not)
// sourced at conceptID, used to evaluate ECL concrete-value comparisons.
func ConcreteValuesForConcept(s Store, conceptID int64) ([]component.ConcreteValue, error) {
	var out []component.ConcreteValue
	err := s.View(func(b Batch) error {
		entries, err := b.GetIndexEntries(IndexConceptConcreteValues, Int64Key(conceptID))
		if err != nil {
			return err
		}
		for _, key := range entries {
			var v component.ConcreteValue
			if err := b.Get(BucketConcreteValues, key, &v); err != nil {
				return err
			}
			out = append(out, v)
		}
		return nil
	})
	return out, err
}

// AllConceptIDs returns every concept id in the store, used by the ECL
// wildcard ("*") constraint.
func AllConceptIDs(s Store) ([]int64, error) {
	var out []int64
	err := s.View(func(b Batch) error {
		return b.Iterate(BucketConcepts, nil, func(key, _ []byte) error {
			out = append(out, DecodeInt64Key(key))
			return nil
		})
	})
	return out, err
}

// StreamAllConcepts pushes every concept in the store onto ch, in storage
// order, closing ch when the scan completes. The scan stops early if ctx is
// cancelled, returning ctx.Err().
func StreamAllConcepts(ctx context.Context, s Store, ch chan<- component.Concept) error {
	defer close(ch)
	return s.View(func(b Batch) error {
		return b.Iterate(BucketConcepts, nil, func(_, value []byte) error {
			var c component.Concept
			if err := decode(value, &c); err != nil {
				return err
			}
			select {
			case ch <- c:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	})
}

// IterateDescriptions calls f for every description in the store.
func IterateDescriptions(s Store, f func(component.Description) error) error {
	return s.View(func(b Batch) error {
		return b.Iterate(BucketDescriptions, nil, func(_, value []byte) error {
			var d component.Description
			if err := decode(value, &d); err != nil {
				return err
			}
			return f(d)
		})
	})
}

// IterateRefsetItems calls f for every reference set item in the store.
func IterateRefsetItems(s Store, f func(component.RefsetItem) error) error {
	return s.View(func(b Batch) error {
		return b.Iterate(BucketRefsetItems, nil, func(_, value []byte) error {
			var item component.RefsetItem
			if err := decode(value, &item); err != nil {
				return err
			}
			return f(item)
		})
	})
}

// InstalledRefsets returns every refset id with at least one active member.
func InstalledRefsets(s Store) ([]int64, error) {
	var out []int64
	err := s.View(func(b Batch) error {
		entries, err := b.GetIndexEntries(IndexInstalledRefsets, nil)
		if err != nil {
			return err
		}
		for _, e := range entries {
			out = append(out, DecodeInt64Key(e))
		}
		return nil
	})
	return out, err
}

// ReverseMap returns the active refset items of refsetID whose named string
// field exactly matches value (the component->map-target reverse index).
// The scan under the hood is a prefix scan, so an entry only matches exactly
// when its trailing bytes are nothing but the fixed-width item id.
func ReverseMap(s Store, refsetID int64, field, value string) ([]component.RefsetItem, error) {
	var out []component.RefsetItem
	err := s.View(func(b Batch) error {
		entries, err := b.GetIndexEntries(IndexRefsetFieldItems,
			compoundKey(Int64Key(refsetID), []byte(field), []byte{0}, []byte(value)))
		if err != nil {
			return err
		}
		for _, itemKey := range entries {
			if len(itemKey) != itemIDLength {
				continue
			}
			var item component.RefsetItem
			if err := b.Get(BucketRefsetItems, itemKey, &item); err != nil {
				return err
			}
			out = append(out, item)
		}
		return nil
	})
	return out, err
}

// itemIDLength is the fixed width of a canonical UUID string (the reference
// set item identifier), used to split a reverse-map prefix scan's trailing
// bytes back into (value remainder, item id).
const itemIDLength = 36

// ReverseMapPrefix returns the active refset items of refsetID whose named
// string field begins with prefix. It exploits IndexRefsetFieldItems storing
// the field value inside the scanned key: a prefix scan over a partial value
// matches every entry whose value starts with prefix, each trailing the
// fixed-width item id.
func ReverseMapPrefix(s Store, refsetID int64, field, prefix string) ([]component.RefsetItem, error) {
	var out []component.RefsetItem
	err := s.View(func(b Batch) error {
		entries, err := b.GetIndexEntries(IndexRefsetFieldItems,
			compoundKey(Int64Key(refsetID), []byte(field), []byte{0}, []byte(prefix)))
		if err != nil {
			return err
		}
		for _, tail := range entries {
			if len(tail) < itemIDLength {
				continue
			}
			itemKey := tail[len(tail)-itemIDLength:]
			var item component.RefsetItem
			if err := b.Get(BucketRefsetItems, itemKey, &item); err != nil {
				return err
			}
			out = append(out, item)
		}
		return nil
	})
	return out, err
}
