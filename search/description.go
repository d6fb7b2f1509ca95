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

// Package search implements the two bleve-backed inverted indices: the
// Description Index (free-text search over descriptions) and the Members
// Index (field search over reference set items).
package search

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	_ "github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Description is the unit of work indexed by the DescriptionIndex: a
// description extended with the concept/closure data needed to filter and
// rank it.
type Description struct {
	DescriptionID      int64
	ConceptID          int64
	Term               string
	IsFSN              bool
	Active             bool
	ConceptActive      bool
	DirectParents      []int64
	RecursiveParents   []int64 // transitive IS-A closure, for <concept/<<concept ECL constraints
	ConceptRefsets     []int64
	DescriptionRefsets []int64
	PreferredIn        []int64 // language refset ids where this is the preferred term
	AcceptableIn       []int64 // language refset ids where this is merely acceptable
}

type descriptionDoc struct {
	Term               string
	TermLength         float64
	IsFSN              bool
	Active             bool
	ConceptActive      bool
	ConceptID          []float64
	DirectParents      []float64
	RecursiveParents   []float64
	ConceptRefsets     []float64
	DescriptionRefsets []float64
	PreferredIn        []float64
	AcceptableIn       []float64
}

// DescriptionIndex is the free-text search index over descriptions.
type DescriptionIndex struct {
	index bleve.Index
}

// OpenDescriptionIndex opens or creates the description index at path.
func OpenDescriptionIndex(path string, readOnly bool) (*DescriptionIndex, error) {
	idx, err := bleve.OpenUsing(path, map[string]interface{}{"read_only": readOnly})
	if err == nil {
		return &DescriptionIndex{index: idx}, nil
	}
	if err != bleve.ErrorIndexPathDoesNotExist && err != bleve.ErrorIndexMetaMissing {
		return nil, fmt.Errorf("search: open description index: %w", err)
	}
	if readOnly {
		return nil, fmt.Errorf("search: cannot open description index read-only: %w", err)
	}
	idx, err = bleve.New(path, descriptionIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("search: create description index: %w", err)
	}
	return &DescriptionIndex{index: idx}, nil
}

func descriptionIndexMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	doc := bleve.NewDocumentMapping()

	term := bleve.NewTextFieldMapping()
	term.Analyzer = "en"
	term.Store = true
	doc.AddFieldMappingsAt("Term", term)

	kw := bleve.NewTextFieldMapping()
	kw.Analyzer = keyword.Name
	kw.Store = false
	kw.IncludeInAll = false

	num := bleve.NewNumericFieldMapping()
	num.Store = false
	num.IncludeInAll = false

	boolMapping := bleve.NewBooleanFieldMapping()
	boolMapping.Store = false
	boolMapping.IncludeInAll = false

	// stored: fetched per hit to apply the length boost at query time
	termLength := bleve.NewNumericFieldMapping()
	termLength.Store = true
	termLength.IncludeInAll = false
	doc.AddFieldMappingsAt("TermLength", termLength)
	doc.AddFieldMappingsAt("IsFSN", boolMapping)
	doc.AddFieldMappingsAt("Active", boolMapping)
	doc.AddFieldMappingsAt("ConceptActive", boolMapping)
	for _, f := range []string{"ConceptID", "DirectParents", "RecursiveParents", "ConceptRefsets",
		"DescriptionRefsets", "PreferredIn", "AcceptableIn"} {
		doc.AddFieldMappingsAt(f, num)
	}

	im.AddDocumentMapping("description", doc)
	im.DefaultType = "description"
	return im
}

// Index adds or replaces a batch of descriptions in the index.
func (di *DescriptionIndex) Index(descriptions []Description) error {
	batch := di.index.NewBatch()
	for _, d := range descriptions {
		doc := descriptionDoc{
			Term:               d.Term,
			TermLength:         float64(len([]rune(d.Term))),
			IsFSN:              d.IsFSN,
			Active:             d.Active,
			ConceptActive:      d.ConceptActive,
			ConceptID:          []float64{float64(d.ConceptID)},
			DirectParents:      toFloats(d.DirectParents),
			RecursiveParents:   toFloats(d.RecursiveParents),
			ConceptRefsets:     toFloats(d.ConceptRefsets),
			DescriptionRefsets: toFloats(d.DescriptionRefsets),
			PreferredIn:        toFloats(d.PreferredIn),
			AcceptableIn:       toFloats(d.AcceptableIn),
		}
		if err := batch.Index(strconv.FormatInt(d.DescriptionID, 10), doc); err != nil {
			return err
		}
	}
	return di.index.Batch(batch)
}

func toFloats(ids []int64) []float64 {
	out := make([]float64, len(ids))
	for i, id := range ids {
		out[i] = float64(id)
	}
	return out
}

// Close releases the index's resources.
func (di *DescriptionIndex) Close() error { return di.index.Close() }

// Fuzziness controls how a Query falls back to edit-distance matching.
type Fuzziness int

// Supported fuzziness strategies.
const (
	FuzzyNever Fuzziness = iota
	FuzzyAlways
	FuzzyFallback // retry with fuzzy matching only if the strict query returns no hits
)

// Query describes a free-text search against the DescriptionIndex.
// MaximumHits of 0 applies the default of 200 ranked hits; a negative value
// returns every match, still ordered by score, for use by set-valued callers
// such as the ECL evaluator.
type Query struct {
	Text               string
	IsA                []int64 // constrain to descendants of (any of) these concepts; recursive
	DirectParents      []int64
	ConceptRefsets     []int64
	DescriptionRefsets []int64
	PreferredIn        []int64

	IncludeInactive             bool // include descriptions of inactive concepts
	IncludeInactiveDescriptions bool

	ShowFSN     bool
	Fuzzy       Fuzziness
	MaximumHits int
}

// Hit is one ranked search result.
type Hit struct {
	DescriptionID int64
	Score         float64
}

// Search executes q against the index, returning description ids ranked by
// a blend of bleve's relevance score and an inverse-length boost: between
// two descriptions matching equally well, the shorter (closer to a
// preferred term than a fully qualified synonym) ranks first.
func (di *DescriptionIndex) Search(q Query) ([]Hit, error) {
	bq := buildTextQuery(q.Text, q.Fuzzy == FuzzyAlways)
	filters := buildFilterQuery(q)
	var top query.Query
	if filters != nil {
		top = bleve.NewConjunctionQuery(bq, filters)
	} else {
		top = bq
	}

	var hits []Hit
	max := q.MaximumHits
	if max == 0 {
		max = 200
	}
	pageSize := max
	if max < 0 {
		pageSize = 1000
	}
	for from := 0; ; from += pageSize {
		req := bleve.NewSearchRequestOptions(top, pageSize, from, false)
		req.Fields = []string{"TermLength"}
		result, err := di.index.Search(req)
		if err != nil {
			return nil, err
		}
		for _, h := range result.Hits {
			id, err := strconv.ParseInt(h.ID, 10, 64)
			if err != nil {
				return nil, err
			}
			score := h.Score
			if tl, ok := h.Fields["TermLength"].(float64); ok && tl > 0 {
				score = score / math.Sqrt(tl)
			}
			hits = append(hits, Hit{DescriptionID: id, Score: score})
		}
		if max > 0 || len(result.Hits) < pageSize {
			break
		}
	}
	if len(hits) == 0 && q.Fuzzy == FuzzyFallback {
		fallback := q
		fallback.Fuzzy = FuzzyAlways
		return di.Search(fallback)
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return hits, nil
}

// buildTextQuery tokenises the search string on whitespace, lowercasing each
// token: prefix and fuzzy queries bypass the index analyzer, so the token
// must already be in the index's letter case.
func buildTextQuery(text string, alwaysFuzzy bool) query.Query {
	conj := bleve.NewConjunctionQuery()
	for _, token := range strings.Fields(strings.ToLower(text)) {
		match := bleve.NewMatchQuery(token)
		match.SetField("Term")
		if len([]rune(token)) < 3 {
			conj.AddQuery(match)
			continue
		}
		disj := bleve.NewDisjunctionQuery(match)
		prefix := bleve.NewPrefixQuery(token)
		prefix.SetField("Term")
		disj.AddQuery(prefix)
		if alwaysFuzzy {
			fuzzy := bleve.NewFuzzyQuery(token)
			fuzzy.SetField("Term")
			fuzzy.SetFuzziness(2)
			disj.AddQuery(fuzzy)
		}
		conj.AddQuery(disj)
	}
	return conj
}

func buildFilterQuery(q Query) query.Query {
	conj := bleve.NewConjunctionQuery()
	any := false
	add := func(field string, ids []int64) {
		if len(ids) == 0 {
			return
		}
		disj := bleve.NewDisjunctionQuery()
		for _, id := range ids {
			disj.AddQuery(numericEquals(field, id))
		}
		conj.AddQuery(disj)
		any = true
	}
	add("RecursiveParents", q.IsA)
	add("DirectParents", q.DirectParents)
	add("ConceptRefsets", q.ConceptRefsets)
	add("DescriptionRefsets", q.DescriptionRefsets)
	add("PreferredIn", q.PreferredIn)

	if !q.IncludeInactive {
		conj.AddQuery(boolEquals("ConceptActive", true))
		any = true
	}
	if !q.IncludeInactiveDescriptions {
		conj.AddQuery(boolEquals("Active", true))
		any = true
	}
	if !q.ShowFSN {
		conj.AddQuery(boolEquals("IsFSN", false))
		any = true
	}
	if !any {
		return nil
	}
	return conj
}

func numericEquals(field string, value int64) query.Query {
	v := float64(value)
	q := bleve.NewNumericRangeInclusiveQuery(&v, &v, boolPtr(true), boolPtr(true))
	q.SetField(field)
	return q
}

func boolEquals(field string, value bool) query.Query {
	q := bleve.NewBoolFieldQuery(value)
	q.SetField(field)
	return q
}

func boolPtr(b bool) *bool { return &b }
