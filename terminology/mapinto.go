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
	"strconv"
	"strings"

	"github.com/eldrix/snomed-engine/component"
	"github.com/eldrix/snomed-engine/store"
)

// MapInto maps each source concept into the target set: the intersection of
// the source's transitive Is-A closure (including itself) with the target,
// reduced to leaves so that no returned concept is a proper ancestor of
// another. A source with no ancestor in the target maps to an empty set.
func (svc *Svc) MapInto(sourceIDs []int64, target map[int64]struct{}) ([][]int64, error) {
	out := make([][]int64, len(sourceIDs))
	for i, sourceID := range sourceIDs {
		closure, err := store.AllParents(svc.store, sourceID, component.IsA)
		if err != nil {
			return nil, err
		}
		var candidates []int64
		for _, c := range closure {
			if _, ok := target[c]; ok {
				candidates = append(candidates, c)
			}
		}
		leaves, err := svc.leavesOnly(candidates)
		if err != nil {
			return nil, err
		}
		out[i] = leaves
	}
	return out, nil
}

// MapIntoTarget resolves target before mapping: a refset identifier maps via
// that refset's membership, an ECL expression via its expansion, and a
// comma-separated list of concept ids via the explicit set.
func (svc *Svc) MapIntoTarget(sourceIDs []int64, target string) ([][]int64, error) {
	set, err := svc.resolveTarget(target)
	if err != nil {
		return nil, err
	}
	return svc.MapInto(sourceIDs, set)
}

func (svc *Svc) resolveTarget(target string) (map[int64]struct{}, error) {
	set := make(map[int64]struct{})
	if !strings.ContainsAny(target, "<>^*|({") {
		// a bare id, or a comma-separated list of them
		ids := make([]int64, 0, 1)
		plain := true
		for _, part := range strings.Split(target, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				plain = false
				break
			}
			ids = append(ids, id)
		}
		if plain {
			if len(ids) == 1 {
				// a single id names a refset when one is installed under
				// that id, otherwise an explicit one-concept target set
				members, err := svc.members.QueryRefsetID(ids[0])
				if err != nil {
					return nil, err
				}
				if len(members) > 0 {
					for _, m := range members {
						set[m] = struct{}{}
					}
					return set, nil
				}
			}
			for _, id := range ids {
				set[id] = struct{}{}
			}
			return set, nil
		}
	}
	expanded, err := svc.evaluator().ExpandString(target)
	if err != nil {
		return nil, err
	}
	for id := range expanded {
		set[id] = struct{}{}
	}
	return set, nil
}

// leavesOnly removes every candidate that is a proper ancestor of another
// candidate, leaving the most specific concepts of the set.
func (svc *Svc) leavesOnly(candidates []int64) ([]int64, error) {
	if len(candidates) <= 1 {
		return candidates, nil
	}
	ancestors := make(map[int64]struct{})
	for _, c := range candidates {
		closure, err := store.AllParents(svc.store, c, component.IsA)
		if err != nil {
			return nil, err
		}
		for _, a := range closure {
			if a != c {
				ancestors[a] = struct{}{}
			}
		}
	}
	var out []int64
	for _, c := range candidates {
		if _, isAncestor := ancestors[c]; !isAncestor {
			out = append(out, c)
		}
	}
	return out, nil
}
