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

package search

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/eldrix/snomed-engine/component"
)

// MembersIndex is the inverted index over active reference set items: one
// document per item, with RefsetID plus every column of its refset pattern,
// typed as numeric ('i', 'c') or string ('s'). Only active items are
// indexed.
type MembersIndex struct {
	index bleve.Index
}

// OpenMembersIndex opens or creates the members index at path.
func OpenMembersIndex(path string, readOnly bool) (*MembersIndex, error) {
	idx, err := bleve.OpenUsing(path, map[string]interface{}{"read_only": readOnly})
	if err == nil {
		return &MembersIndex{index: idx}, nil
	}
	if err != bleve.ErrorIndexPathDoesNotExist && err != bleve.ErrorIndexMetaMissing {
		return nil, fmt.Errorf("search: open members index: %w", err)
	}
	if readOnly {
		return nil, fmt.Errorf("search: cannot open members index read-only: %w", err)
	}
	idx, err = bleve.New(path, membersIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("search: create members index: %w", err)
	}
	return &MembersIndex{index: idx}, nil
}

func membersIndexMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = keyword.Name // refset field values are matched exactly or by prefix, never tokenized
	return im
}

// Index indexes every active member of refsetID. Each refset item becomes a
// document whose fields are named directly after its pattern's field names
// (e.g. "mapTarget", "acceptabilityId") rather than nested under a fixed
// struct shape: refsets vary their extra columns by pattern, so the
// document itself must be schema-flexible. Inactive items are skipped and
// no document is ever deleted: an item indexed while active keeps its
// document after a later release makes it inactive.
func (mi *MembersIndex) Index(refsetID int64, items []component.RefsetItem) error {
	batch := mi.index.NewBatch()
	for _, item := range items {
		if !item.Active {
			continue
		}
		doc := map[string]interface{}{
			"RefsetID":              float64(refsetID),
			"ReferencedComponentID": float64(item.ReferencedComponentID),
		}
		for _, f := range item.Fields {
			switch f.Kind {
			case component.FieldString:
				doc[f.Name] = f.Str
			case component.FieldInt:
				doc[f.Name] = float64(f.Int)
			case component.FieldConcept:
				doc[f.Name] = float64(f.Concept)
			}
		}
		if err := batch.Index(item.ID, doc); err != nil {
			return err
		}
	}
	return mi.index.Batch(batch)
}

// IndexItems indexes a mixed batch of refset items, routing each by its own
// RefsetID; the terminology package's members-index build streams every
// active refset item through this in batches.
func (mi *MembersIndex) IndexItems(items []component.RefsetItem) error {
	byRefset := make(map[int64][]component.RefsetItem)
	for _, item := range items {
		byRefset[item.RefsetID] = append(byRefset[item.RefsetID], item)
	}
	for refsetID, batch := range byRefset {
		if err := mi.Index(refsetID, batch); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the index's resources.
func (mi *MembersIndex) Close() error { return mi.index.Close() }

// membersPageSize bounds each round trip when draining an unbounded member
// query; results are sets, so every page is fetched.
const membersPageSize = 1000

// referencedComponentIDs resolves a query's matching documents to the
// referencedComponentId of each matching item; member queries always answer
// in terms of components, not item ids. Results are a set: unbounded,
// unordered and de-duplicated.
func (mi *MembersIndex) referencedComponentIDs(q query.Query) ([]int64, error) {
	var out []int64
	seen := make(map[int64]struct{})
	for from := 0; ; from += membersPageSize {
		req := bleve.NewSearchRequestOptions(q, membersPageSize, from, false)
		req.Fields = []string{"ReferencedComponentID"}
		result, err := mi.index.Search(req)
		if err != nil {
			return nil, err
		}
		for _, h := range result.Hits {
			v, ok := h.Fields["ReferencedComponentID"].(float64)
			if !ok {
				continue
			}
			id := int64(v)
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
		if len(result.Hits) < membersPageSize {
			return out, nil
		}
	}
}

func refsetQuery(refsetIDs ...int64) query.Query {
	disj := bleve.NewDisjunctionQuery()
	for _, id := range refsetIDs {
		disj.AddQuery(numericEquals("RefsetID", id))
	}
	return disj
}

// QueryRefsetID answers q_refset_id(r): every component that is a member of refset r.
func (mi *MembersIndex) QueryRefsetID(refsetID int64) ([]int64, error) {
	return mi.referencedComponentIDs(refsetQuery(refsetID))
}

// QueryRefsetIDs answers q_refset_ids({r}): every component that is a member of any of refsetIDs.
func (mi *MembersIndex) QueryRefsetIDs(refsetIDs ...int64) ([]int64, error) {
	return mi.referencedComponentIDs(refsetQuery(refsetIDs...))
}

// QueryTerm answers q_term(field, value): an exact string-field match.
func (mi *MembersIndex) QueryTerm(field, value string) ([]int64, error) {
	return mi.referencedComponentIDs(termEquals(field, value))
}

// QueryPrefix answers q_prefix(field, value): a string-field prefix match.
func (mi *MembersIndex) QueryPrefix(field, value string) ([]int64, error) {
	q := bleve.NewPrefixQuery(value)
	q.SetField(field)
	return mi.referencedComponentIDs(q)
}

// QueryWildcard answers q_wildcard(field, pattern): '*'/'?' glob matching on a string field.
func (mi *MembersIndex) QueryWildcard(field, pattern string) ([]int64, error) {
	q := bleve.NewWildcardQuery(pattern)
	q.SetField(field)
	return mi.referencedComponentIDs(q)
}

// MemberField answers member_field(refsetId, field, value): refset filter AND field filter.
func (mi *MembersIndex) MemberField(refsetID int64, field, value string) ([]int64, error) {
	return mi.referencedComponentIDs(bleve.NewConjunctionQuery(refsetQuery(refsetID), termEquals(field, value)))
}

// MemberFieldPrefix answers member_field_prefix(refsetId, field, prefix).
func (mi *MembersIndex) MemberFieldPrefix(refsetID int64, field, prefix string) ([]int64, error) {
	pq := bleve.NewPrefixQuery(prefix)
	pq.SetField(field)
	return mi.referencedComponentIDs(bleve.NewConjunctionQuery(refsetQuery(refsetID), pq))
}

// MemberFieldWildcard answers member_field_wildcard(refsetId, field, pattern).
func (mi *MembersIndex) MemberFieldWildcard(refsetID int64, field, pattern string) ([]int64, error) {
	wq := bleve.NewWildcardQuery(pattern)
	wq.SetField(field)
	return mi.referencedComponentIDs(bleve.NewConjunctionQuery(refsetQuery(refsetID), wq))
}

// MemberFieldNumber restricts any of refsetIDs to items whose numeric field
// (an 'i' or 'c' typed column, e.g. an association's targetComponentId)
// equals value. Used to walk historical associations backwards: the items
// whose targetComponentId is a given concept identify its predecessors.
func (mi *MembersIndex) MemberFieldNumber(refsetIDs []int64, field string, value int64) ([]int64, error) {
	return mi.referencedComponentIDs(bleve.NewConjunctionQuery(refsetQuery(refsetIDs...), numericEquals(field, value)))
}

func termEquals(field, value string) query.Query {
	q := bleve.NewTermQuery(value)
	q.SetField(field)
	return q
}
