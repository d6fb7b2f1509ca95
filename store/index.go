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
	"encoding/binary"

	"github.com/eldrix/snomed-engine/component"
)

// Int64Key returns the big-endian 8-byte encoding of id, used as the key for
// every bucket keyed by a SNOMED CT identifier.
func Int64Key(id int64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(id))
	return k
}

// DecodeInt64Key reverses Int64Key.
func DecodeInt64Key(k []byte) int64 { return int64(binary.BigEndian.Uint64(k)) }

// PutConcepts persists concepts, keeping the existing record whenever its
// effectiveTime is not older than the incoming one ("latest effectiveTime
// wins" snapshot semantics).
func PutConcepts(s Store, concepts []component.Concept) error {
	return s.Update(func(batch Batch) error {
		for _, c := range concepts {
			key := Int64Key(c.ID)
			var existing component.Concept
			err := batch.Get(BucketConcepts, key, &existing)
			if err == ErrNotFound || c.EffectiveTime.After(existing.EffectiveTime) {
				if err := batch.Put(BucketConcepts, key, c); err != nil {
					return err
				}
			} else if err != nil {
				return err
			}
		}
		return nil
	})
}

// PutDescriptions persists descriptions with latest-wins semantics and
// maintains the concept->descriptions index.
func PutDescriptions(s Store, descriptions []component.Description) error {
	return s.Update(func(batch Batch) error {
		for _, d := range descriptions {
			key := Int64Key(d.ID)
			var existing component.Description
			err := batch.Get(BucketDescriptions, key, &existing)
			if err == ErrNotFound || d.EffectiveTime.After(existing.EffectiveTime) {
				if err := batch.Put(BucketDescriptions, key, d); err != nil {
					return err
				}
				batch.AddIndexEntry(IndexConceptDescriptions, Int64Key(d.ConceptID), key)
			} else if err != nil {
				return err
			}
		}
		return nil
	})
}

// PutRelationships persists relationships with latest-wins semantics and
// maintains the parent/child relationship indices, plus the direct
// parent/child-by-type closure edges used for subsumption testing.
func PutRelationships(s Store, relationships []component.Relationship) error {
	return s.Update(func(batch Batch) error {
		for _, r := range relationships {
			key := Int64Key(r.ID)
			var existing component.Relationship
			err := batch.Get(BucketRelationships, key, &existing)
			if err != ErrNotFound && err != nil {
				return err
			}
			if err == ErrNotFound || r.EffectiveTime.After(existing.EffectiveTime) {
				if err := batch.Put(BucketRelationships, key, r); err != nil {
					return err
				}
			}
			sourceKey := Int64Key(r.SourceID)
			destKey := Int64Key(r.DestinationID)
			batch.AddIndexEntry(IndexConceptParentRelationships, sourceKey, key)
			batch.AddIndexEntry(IndexConceptChildRelationships, destKey, key)
			if r.Active {
				typeKey := compoundKey(sourceKey, Int64Key(r.TypeID))
				batch.AddIndexEntry(IndexConceptParentsOfType, typeKey, destKey)
				childTypeKey := compoundKey(destKey, Int64Key(r.TypeID))
				batch.AddIndexEntry(IndexConceptChildrenOfType, childTypeKey, sourceKey)
			}
		}
		return nil
	})
}

// PutConcreteValues persists concrete-value relationships with the same
// latest-wins rule, and maintains the concept->concrete-values index used to
// evaluate ECL concrete-value comparisons.
func PutConcreteValues(s Store, values []component.ConcreteValue) error {
	return s.Update(func(batch Batch) error {
		for _, v := range values {
			key := Int64Key(v.ID)
			var existing component.ConcreteValue
			err := batch.Get(BucketConcreteValues, key, &existing)
			if err != nil && err != ErrNotFound {
				return err
			}
			if err == ErrNotFound || v.EffectiveTime.After(existing.EffectiveTime) {
				if err := batch.Put(BucketConcreteValues, key, v); err != nil {
					return err
				}
			}
			batch.AddIndexEntry(IndexConceptConcreteValues, Int64Key(v.SourceID), key)
		}
		return nil
	})
}

// PutRefsetItems persists reference set items (keyed by UUID string) with
// latest-wins semantics, and maintains every refset-derived index: component
// membership, refset->component->item lookup, the reverse-map field index,
// and the installed-refsets set.
func PutRefsetItems(s Store, items []component.RefsetItem) error {
	return s.Update(func(batch Batch) error {
		for _, item := range items {
			key := []byte(item.ID)
			var existing component.RefsetItem
			err := batch.Get(BucketRefsetItems, key, &existing)
			if err != nil && err != ErrNotFound {
				return err
			}
			if err == ErrNotFound || item.EffectiveTime.After(existing.EffectiveTime) {
				if err := batch.Put(BucketRefsetItems, key, item); err != nil {
					return err
				}
			}
			if !item.Active {
				continue
			}
			refsetKey := Int64Key(item.RefsetID)
			componentKey := Int64Key(item.ReferencedComponentID)
			batch.AddIndexEntry(IndexComponentRefsets, componentKey, refsetKey)
			batch.AddIndexEntry(IndexRefsetComponentItems, compoundKey(refsetKey, componentKey), key)
			batch.AddIndexEntry(IndexInstalledRefsets, nil, refsetKey)
			for _, f := range item.Fields {
				if f.Kind != component.FieldString {
					continue
				}
				fieldKey := compoundKey(refsetKey, []byte(f.Name), []byte{0}, []byte(f.Str))
				batch.AddIndexEntry(IndexRefsetFieldItems, fieldKey, key)
			}
		}
		return nil
	})
}

// Index rebuilds every derived index from the core buckets. It is
// idempotent: clearing each index bucket first means re-running it after a
// partial or repeated import yields exactly the same indices as a single
// clean import would.
func Index(s Store) error {
	return s.Update(func(batch Batch) error {
		for _, b := range []Bucket{
			IndexConceptDescriptions, IndexConceptParentRelationships, IndexConceptChildRelationships,
			IndexConceptParentsOfType, IndexConceptChildrenOfType, IndexComponentRefsets,
			IndexRefsetComponentItems, IndexRefsetFieldItems, IndexInstalledRefsets,
			IndexConceptConcreteValues,
		} {
			if err := batch.ClearIndexEntries(b, nil); err != nil {
				return err
			}
		}

		if err := batch.Iterate(BucketDescriptions, nil, func(key, value []byte) error {
			var d component.Description
			if err := decode(value, &d); err != nil {
				return err
			}
			batch.AddIndexEntry(IndexConceptDescriptions, Int64Key(d.ConceptID), key)
			return nil
		}); err != nil {
			return err
		}

		if err := batch.Iterate(BucketRelationships, nil, func(key, value []byte) error {
			var r component.Relationship
			if err := decode(value, &r); err != nil {
				return err
			}
			sourceKey := Int64Key(r.SourceID)
			destKey := Int64Key(r.DestinationID)
			batch.AddIndexEntry(IndexConceptParentRelationships, sourceKey, key)
			batch.AddIndexEntry(IndexConceptChildRelationships, destKey, key)
			if r.Active {
				batch.AddIndexEntry(IndexConceptParentsOfType, compoundKey(sourceKey, Int64Key(r.TypeID)), destKey)
				batch.AddIndexEntry(IndexConceptChildrenOfType, compoundKey(destKey, Int64Key(r.TypeID)), sourceKey)
			}
			return nil
		}); err != nil {
			return err
		}

		if err := batch.Iterate(BucketRefsetItems, nil, func(key, value []byte) error {
			var item component.RefsetItem
			if err := decode(value, &item); err != nil {
				return err
			}
			if !item.Active {
				return nil
			}
			refsetKey := Int64Key(item.RefsetID)
			componentKey := Int64Key(item.ReferencedComponentID)
			batch.AddIndexEntry(IndexComponentRefsets, componentKey, refsetKey)
			batch.AddIndexEntry(IndexRefsetComponentItems, compoundKey(refsetKey, componentKey), key)
			batch.AddIndexEntry(IndexInstalledRefsets, nil, refsetKey)
			for _, f := range item.Fields {
				if f.Kind != component.FieldString {
					continue
				}
				batch.AddIndexEntry(IndexRefsetFieldItems,
					compoundKey(refsetKey, []byte(f.Name), []byte{0}, []byte(f.Str)), key)
			}
			return nil
		}); err != nil {
			return err
		}

		return batch.Iterate(BucketConcreteValues, nil, func(key, value []byte) error {
			var v component.ConcreteValue
			if err := decode(value, &v); err != nil {
				return err
			}
			batch.AddIndexEntry(IndexConceptConcreteValues, Int64Key(v.SourceID), key)
			return nil
		})
	})
}

// Stats computes store-wide Statistics by scanning the core buckets and the
// installed-refsets index.
func Stats(s Store) (Statistics, error) {
	var st Statistics
	err := s.View(func(batch Batch) error {
		if err := batch.Iterate(BucketConcepts, nil, func(_, _ []byte) error { st.Concepts++; return nil }); err != nil {
			return err
		}
		if err := batch.Iterate(BucketDescriptions, nil, func(_, _ []byte) error { st.Descriptions++; return nil }); err != nil {
			return err
		}
		if err := batch.Iterate(BucketRelationships, nil, func(_, _ []byte) error { st.Relationships++; return nil }); err != nil {
			return err
		}
		if err := batch.Iterate(BucketRefsetItems, nil, func(_, _ []byte) error { st.RefsetItems++; return nil }); err != nil {
			return err
		}
		entries, err := batch.GetIndexEntries(IndexInstalledRefsets, nil)
		if err != nil {
			return err
		}
		for _, e := range entries {
			st.Refsets = append(st.Refsets, DecodeInt64Key(e))
		}
		return nil
	})
	return st, err
}
