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
	"github.com/eldrix/snomed-engine/ecl"
)

// ExpandECL evaluates an ECL expression, returning the matching concept ids
// in ascending order. maxHits of 0 returns the full result set; otherwise the
// result is truncated to maxHits concepts.
func (svc *Svc) ExpandECL(expression string, maxHits int) ([]int64, error) {
	set, err := svc.evaluator().ExpandString(expression)
	if err != nil {
		return nil, err
	}
	ids := set.Sorted()
	if maxHits > 0 && len(ids) > maxHits {
		ids = ids[:maxHits]
	}
	return ids, nil
}

// ExpandECLHistoric evaluates an ECL expression and then augments the result
// with the historical predecessors of every matching concept, so that a
// query over current content also finds content recorded against concepts
// since made inactive.
func (svc *Svc) ExpandECLHistoric(expression string) ([]int64, error) {
	set, err := svc.evaluator().ExpandString(expression)
	if err != nil {
		return nil, err
	}
	return svc.WithHistorical(set.Sorted())
}

// IntersectECL returns the subset of ids that satisfy the ECL expression.
// The result is always a subset of the input.
func (svc *Svc) IntersectECL(ids []int64, expression string) ([]int64, error) {
	set, err := svc.evaluator().ExpandString(expression)
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := set[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

// ValidECL reports whether s parses as a valid ECL expression, without
// evaluating it.
func (svc *Svc) ValidECL(s string) bool {
	return ecl.Valid(s)
}
