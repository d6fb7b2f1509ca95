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
	"fmt"

	"github.com/eldrix/snomed-engine/component"
	"github.com/eldrix/snomed-engine/store"
)

// HistoryProfile selects how aggressively historical associations are
// followed when expanding a set of concepts to include their predecessors.
type HistoryProfile int

const (
	// HistoryMin follows only SAME-AS associations.
	HistoryMin HistoryProfile = iota
	// HistoryMod adds REPLACED-BY, POSSIBLY-EQUIVALENT-TO and WAS-A.
	HistoryMod
	// HistoryMax follows every installed historical association refset.
	HistoryMax
)

// RefsetIDs resolves the profile to the historical association refsets it
// follows. HistoryMax consults the installed refsets of svc, returning every
// descendant of the historical association root.
func (p HistoryProfile) RefsetIDs(svc *Svc) ([]int64, error) {
	switch p {
	case HistoryMin:
		return []int64{component.SameAsAssociation}, nil
	case HistoryMod:
		return []int64{
			component.SameAsAssociation,
			component.ReplacedByAssociation,
			component.PossiblyEquivalentTo,
			component.WasAAssociation,
		}, nil
	case HistoryMax:
		return svc.historicalAssociationRefsets()
	}
	return nil, fmt.Errorf("unknown history profile %d", p)
}

// historicalAssociationRefsets returns the installed refsets that are
// descendants of the historical association root concept.
func (svc *Svc) historicalAssociationRefsets() ([]int64, error) {
	installed, err := store.InstalledRefsets(svc.store)
	if err != nil {
		return nil, err
	}
	var out []int64
	for _, refsetID := range installed {
		ok, err := store.IsA(svc.store, refsetID, component.HistoricalAssociationRoot)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, refsetID)
		}
	}
	return out, nil
}

// HistoricalAssociations returns the active historical associations *of*
// componentID: where an inactive component points to its modern replacements.
func (svc *Svc) HistoricalAssociations(componentID int64) (map[int64][]int64, error) {
	refsets, err := svc.historicalAssociationRefsets()
	if err != nil {
		return nil, err
	}
	assocRefsets := make(map[int64]struct{}, len(refsets))
	for _, id := range refsets {
		assocRefsets[id] = struct{}{}
	}
	items, err := store.ItemsForComponent(svc.store, componentID, 0)
	if err != nil {
		return nil, err
	}
	out := make(map[int64][]int64)
	for _, item := range items {
		if !item.Active {
			continue
		}
		if _, ok := assocRefsets[item.RefsetID]; !ok {
			continue
		}
		target := item.ConceptField("targetComponentId")
		if target == 0 {
			continue
		}
		out[item.RefsetID] = append(out[item.RefsetID], target)
	}
	return out, nil
}

// SourceHistoricalAssociations returns the inverse of
// HistoricalAssociations: the components whose associations point *to*
// componentID, keyed by association refset. This is a query against the
// members index, never a pointer walk.
func (svc *Svc) SourceHistoricalAssociations(componentID int64) (map[int64][]int64, error) {
	refsets, err := svc.historicalAssociationRefsets()
	if err != nil {
		return nil, err
	}
	out := make(map[int64][]int64)
	for _, refsetID := range refsets {
		sources, err := svc.members.MemberFieldNumber([]int64{refsetID}, "targetComponentId", componentID)
		if err != nil {
			return nil, err
		}
		if len(sources) > 0 {
			out[refsetID] = sources
		}
	}
	return out, nil
}

// SourceHistorical returns every component reachable by walking the given
// association refsets backwards from componentID, transitively: the set of
// predecessors whose history leads to componentID. componentID itself is not
// included.
func (svc *Svc) SourceHistorical(componentID int64, refsetIDs ...int64) ([]int64, error) {
	if len(refsetIDs) == 0 {
		var err error
		refsetIDs, err = svc.historicalAssociationRefsets()
		if err != nil {
			return nil, err
		}
	}
	seen := map[int64]struct{}{componentID: {}}
	queue := []int64{componentID}
	var out []int64
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		sources, err := svc.members.MemberFieldNumber(refsetIDs, "targetComponentId", id)
		if err != nil {
			return nil, err
		}
		for _, s := range sources {
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
			queue = append(queue, s)
		}
	}
	return out, nil
}

// WithHistorical expands conceptIDs with the historical predecessors of each
// member, so matching against the result also matches content recorded under
// now-inactive concepts. The input ids are always included.
func (svc *Svc) WithHistorical(conceptIDs []int64, refsetIDs ...int64) ([]int64, error) {
	seen := make(map[int64]struct{}, len(conceptIDs))
	out := make([]int64, 0, len(conceptIDs))
	for _, id := range conceptIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range conceptIDs {
		historic, err := svc.SourceHistorical(id, refsetIDs...)
		if err != nil {
			return nil, err
		}
		for _, h := range historic {
			if _, dup := seen[h]; dup {
				continue
			}
			seen[h] = struct{}{}
			out = append(out, h)
		}
	}
	return out, nil
}
