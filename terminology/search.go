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

package terminology

import (
	"errors"
	"fmt"

	"github.com/eldrix/snomed-engine/component"
	"github.com/eldrix/snomed-engine/search"
	"github.com/eldrix/snomed-engine/store"
)

// SearchRequest carries the parameters of a free-text search.
type SearchRequest struct {
	S          string // the search string
	Constraint string // optional ECL constraint restricting results

	MaximumHits   int // ranked hit ceiling; 0 applies the default of 200
	Fuzzy         int // edit distance applied to every token; 0 disables
	FallbackFuzzy int // edit distance for a retry when the strict query finds nothing

	ShowFSN              bool
	InactiveConcepts     bool
	InactiveDescriptions bool

	// Properties constrains results to concepts with an attribute of each
	// key type whose destination closure intersects the given values.
	Properties map[int64][]int64

	ConceptRefsets []int64

	// AcceptLanguage selects the language refsets used to resolve each
	// result's preferred term; LanguageRefsetIDs overrides it when set.
	AcceptLanguage    string
	LanguageRefsetIDs []int64

	RemoveDuplicates bool // keep only the best-ranked description per concept
}

// SearchResult is one ranked hit, with the description that matched and the
// preferred term of its concept in the requested locale.
type SearchResult struct {
	DescriptionID int64
	ConceptID     int64
	Term          string
	PreferredTerm string
	Score         float64
}

// Search executes a free-text search, optionally restricted by an ECL
// constraint, properties and reference set membership, resolving each hit's
// preferred term against the requested language.
func (svc *Svc) Search(req SearchRequest) ([]SearchResult, error) {
	if req.S == "" {
		return nil, fmt.Errorf("search: no search string in request")
	}

	var constraint map[int64]struct{}
	if req.Constraint != "" {
		set, err := svc.evaluator().ExpandString(req.Constraint)
		if err != nil {
			return nil, err
		}
		constraint = set
	}

	fuzzy := search.FuzzyNever
	if req.Fuzzy > 0 {
		fuzzy = search.FuzzyAlways
	} else if req.FallbackFuzzy > 0 {
		fuzzy = search.FuzzyFallback
	}
	q := search.Query{
		Text:                        req.S,
		ConceptRefsets:              req.ConceptRefsets,
		IncludeInactive:             req.InactiveConcepts,
		IncludeInactiveDescriptions: req.InactiveDescriptions,
		ShowFSN:                     req.ShowFSN,
		Fuzzy:                       fuzzy,
		MaximumHits:                 req.MaximumHits,
	}
	hits, err := svc.search.Search(q)
	if err != nil {
		return nil, err
	}

	langRefsets := req.LanguageRefsetIDs
	if len(langRefsets) == 0 {
		langRefsets = svc.locale.Match(req.AcceptLanguage, true)
	}

	seenConcepts := make(map[int64]struct{})
	out := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		d, err := store.GetDescription(svc.store, h.DescriptionID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if constraint != nil {
			if _, ok := constraint[d.ConceptID]; !ok {
				continue
			}
		}
		if len(req.Properties) > 0 {
			ok, err := svc.matchesProperties(d.ConceptID, req.Properties)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		if req.RemoveDuplicates {
			if _, dup := seenConcepts[d.ConceptID]; dup {
				continue
			}
			seenConcepts[d.ConceptID] = struct{}{}
		}
		preferred := d.Term
		if pd, ok, err := localePreferred(svc, d.ConceptID, langRefsets); err != nil {
			return nil, err
		} else if ok {
			preferred = pd.Term
		}
		out = append(out, SearchResult{
			DescriptionID: d.ID,
			ConceptID:     d.ConceptID,
			Term:          d.Term,
			PreferredTerm: preferred,
			Score:         h.Score,
		})
	}
	return out, nil
}

func localePreferred(svc *Svc, conceptID int64, langRefsets []int64) (component.Description, bool, error) {
	d, err := svc.PreferredSynonymByRefsets(conceptID, langRefsets)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return component.Description{}, false, nil
		}
		return component.Description{}, false, err
	}
	return d, true, nil
}

// matchesProperties reports whether conceptID has, for every property type,
// an active attribute of that type whose destination (or any ancestor of it)
// is among the wanted values.
func (svc *Svc) matchesProperties(conceptID int64, properties map[int64][]int64) (bool, error) {
	rels, err := store.ParentRelationships(svc.store, conceptID)
	if err != nil {
		return false, err
	}
	for typeID, values := range properties {
		wanted := make(map[int64]struct{}, len(values))
		for _, v := range values {
			wanted[v] = struct{}{}
		}
		matched := false
		for _, r := range rels {
			if !r.Active || r.TypeID != typeID {
				continue
			}
			closure, err := store.AllParents(svc.store, r.DestinationID, component.IsA)
			if err != nil {
				return false, err
			}
			for _, c := range closure {
				if _, ok := wanted[c]; ok {
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
		if !matched {
			return false, nil
		}
	}
	return true, nil
}
