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

package ecl

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/eldrix/snomed-engine/component"
	"github.com/eldrix/snomed-engine/locale"
	"github.com/eldrix/snomed-engine/search"
	"github.com/eldrix/snomed-engine/store"
)

// IDSet is an unordered set of concept (or, for ^, arbitrary component) ids.
type IDSet map[int64]struct{}

func newSet(ids ...int64) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func union(a, b IDSet) IDSet {
	out := make(IDSet, len(a)+len(b))
	for id := range a {
		out[id] = struct{}{}
	}
	for id := range b {
		out[id] = struct{}{}
	}
	return out
}

func intersect(a, b IDSet) IDSet {
	out := make(IDSet, minInt(len(a), len(b)))
	for id := range a {
		if _, ok := b[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}

func minus(a, b IDSet) IDSet {
	out := make(IDSet, len(a))
	for id := range a {
		if _, ok := b[id]; !ok {
			out[id] = struct{}{}
		}
	}
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Sorted returns the set's members in ascending order.
func (s IDSet) Sorted() []int64 {
	out := make([]int64, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Evaluator compiles and evaluates parsed ECL expressions against a store
// and its search indices.
type Evaluator struct {
	Store        store.Store
	Descriptions *search.DescriptionIndex
	Members      *search.MembersIndex
	Locale       *locale.Resolver // resolves term-filter dialects; may be nil
}

// Expand evaluates an already-parsed ECL expression to its full result set.
func (e *Evaluator) Expand(n Node) (IDSet, error) {
	return e.eval(n)
}

// ExpandString parses and evaluates an ECL expression in one step.
func (e *Evaluator) ExpandString(s string) (IDSet, error) {
	n, err := Parse(s)
	if err != nil {
		return nil, err
	}
	return e.eval(n)
}

func (e *Evaluator) eval(n Node) (IDSet, error) {
	switch v := n.(type) {
	case Focus:
		return e.evalFocus(v)
	case SetExpr:
		left, err := e.eval(v.Left)
		if err != nil {
			return nil, err
		}
		right, err := e.eval(v.Right)
		if err != nil {
			return nil, err
		}
		switch v.Op {
		case SetAnd:
			return intersect(left, right), nil
		case SetOr:
			return union(left, right), nil
		case SetMinus:
			return minus(left, right), nil
		}
		return nil, fmt.Errorf("ecl: unknown set operator %v", v.Op)
	case Refined:
		return e.evalRefined(v)
	case Dotted:
		return e.evalDotted(v)
	case TermFiltered:
		return e.evalTermFiltered(v)
	default:
		return nil, fmt.Errorf("ecl: unsupported node type %T", n)
	}
}

func (e *Evaluator) evalFocus(f Focus) (IDSet, error) {
	var base IDSet
	switch {
	case f.Sub != nil:
		sub, err := e.eval(f.Sub)
		if err != nil {
			return nil, err
		}
		base = sub
	case f.Wildcard:
		ids, err := e.wildcardIDs(f)
		if err != nil {
			return nil, err
		}
		base = newSet(ids...)
	case f.Concept != nil:
		base = newSet(f.Concept.ConceptID)
	default:
		return nil, fmt.Errorf("ecl: empty focus expression")
	}

	switch f.Operator {
	case OpNone:
		return base, nil
	case OpMemberOf:
		out := make(IDSet)
		for id := range base {
			members, err := e.Members.QueryRefsetID(id)
			if err != nil {
				return nil, err
			}
			for _, m := range members {
				out[m] = struct{}{}
			}
		}
		return out, nil
	case OpDescendantOf, OpDescendantOrSelfOf, OpAncestorOf, OpAncestorOrSelfOf:
		out := make(IDSet)
		for id := range base {
			closure, err := e.closure(id, f.Operator)
			if err != nil {
				return nil, err
			}
			for _, c := range closure {
				out[c] = struct{}{}
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("ecl: unknown operator %v", f.Operator)
}

// closure returns the descendant/ancestor closure of id per the operator,
// excluding id itself for the strict ("<" / ">") forms.
func (e *Evaluator) closure(id int64, op Operator) ([]int64, error) {
	switch op {
	case OpDescendantOf:
		all, err := store.AllChildren(e.Store, id, component.IsA)
		if err != nil {
			return nil, err
		}
		return excluding(all, id), nil
	case OpDescendantOrSelfOf:
		return store.AllChildren(e.Store, id, component.IsA)
	case OpAncestorOf:
		all, err := store.AllParents(e.Store, id, component.IsA)
		if err != nil {
			return nil, err
		}
		return excluding(all, id), nil
	case OpAncestorOrSelfOf:
		return store.AllParents(e.Store, id, component.IsA)
	}
	return nil, fmt.Errorf("ecl: closure: unknown operator %v", op)
}

func excluding(ids []int64, exclude int64) []int64 {
	out := ids[:0:0]
	for _, id := range ids {
		if id != exclude {
			out = append(out, id)
		}
	}
	return out
}

func (e *Evaluator) wildcardIDs(f Focus) ([]int64, error) {
	if f.Concept != nil && f.Concept.Term != "" {
		return e.wildcardMatch(f.Concept.Term)
	}
	return store.AllConceptIDs(e.Store)
}

// wildcardMatch implements `wild:"pattern"` by glob-matching every active
// description's term, returning the distinct concept ids that match.
func (e *Evaluator) wildcardMatch(pattern string) ([]int64, error) {
	seen := make(map[int64]struct{})
	var out []int64
	ids, err := store.AllConceptIDs(e.Store)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		descs, err := store.DescriptionsForConcept(e.Store, id)
		if err != nil {
			return nil, err
		}
		for _, d := range descs {
			if !d.Active {
				continue
			}
			if ok, _ := filepath.Match(pattern, d.Term); ok {
				if _, dup := seen[id]; !dup {
					seen[id] = struct{}{}
					out = append(out, id)
				}
				break
			}
		}
	}
	return out, nil
}

func (e *Evaluator) evalRefined(r Refined) (IDSet, error) {
	base, err := e.eval(r.Base)
	if err != nil {
		return nil, err
	}
	out := make(IDSet, len(base))
	for id := range base {
		ok, err := e.satisfiesRefinement(id, r.Refinement)
		if err != nil {
			return nil, err
		}
		if ok {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func (e *Evaluator) satisfiesRefinement(conceptID int64, r Refinement) (bool, error) {
	for _, clause := range r.Clauses {
		ok, err := e.satisfiesClause(conceptID, clause)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (e *Evaluator) satisfiesClause(conceptID int64, clause RefinementClause) (bool, error) {
	if clause.Group != nil {
		return e.satisfiesGroup(conceptID, clause.Group)
	}
	rels, err := store.ParentRelationships(e.Store, conceptID)
	if err != nil {
		return false, err
	}
	return e.satisfiesAttributeWithin(conceptID, rels, clause.Attribute)
}

// satisfiesGroup requires that some single relationship group number
// satisfies every clause in the group simultaneously.
func (e *Evaluator) satisfiesGroup(conceptID int64, g *Group) (bool, error) {
	rels, err := store.ParentRelationships(e.Store, conceptID)
	if err != nil {
		return false, err
	}
	byGroup := make(map[int32][]component.Relationship)
	for _, r := range rels {
		if r.Active {
			byGroup[r.RelationshipGroup] = append(byGroup[r.RelationshipGroup], r)
		}
	}
	for _, grouped := range byGroup {
		allMatch := true
		for _, clause := range g.Clauses {
			var ok bool
			var err error
			if clause.Group != nil {
				ok, err = e.satisfiesGroup(conceptID, clause.Group)
			} else {
				ok, err = e.satisfiesAttributeWithin(conceptID, grouped, clause.Attribute)
			}
			if err != nil {
				return false, err
			}
			if !ok {
				allMatch = false
				break
			}
		}
		if allMatch {
			return true, nil
		}
	}
	return false, nil
}

func (e *Evaluator) satisfiesAttributeWithin(conceptID int64, rels []component.Relationship, attr *Attribute) (bool, error) {
	if attr.HasNumber {
		return e.satisfiesConcreteAttribute(conceptID, attr)
	}
	var typeIDs IDSet
	if !(attr.Name.Wildcard && attr.Name.Operator == OpNone && attr.Name.Concept == nil) {
		var err error
		typeIDs, err = e.evalFocus(attr.Name)
		if err != nil {
			return false, err
		}
	}
	var valueIDs IDSet
	if attr.Value != nil {
		var err error
		valueIDs, err = e.eval(attr.Value)
		if err != nil {
			return false, err
		}
	}
	if attr.Reversed {
		// a reverse attribute examines edges arriving at the concept: the
		// candidate values are the sources, not the destinations
		var err error
		rels, err = store.ChildRelationships(e.Store, conceptID)
		if err != nil {
			return false, err
		}
	}
	matches := 0
	for _, r := range rels {
		if !r.Active {
			continue
		}
		if typeIDs != nil {
			if _, ok := typeIDs[r.TypeID]; !ok {
				continue
			}
		}
		candidate := r.DestinationID
		if attr.Reversed {
			candidate = r.SourceID
		}
		if valueIDs != nil {
			if _, ok := valueIDs[candidate]; !ok {
				continue
			}
		}
		matches++
	}
	if c := attr.Cardinality; c != nil {
		return matches >= c.Min && (c.Max < 0 || matches <= c.Max), nil
	}
	return matches > 0, nil
}

func (e *Evaluator) satisfiesConcreteAttribute(conceptID int64, attr *Attribute) (bool, error) {
	values, err := store.ConcreteValuesForConcept(e.Store, conceptID)
	if err != nil {
		return false, err
	}
	var typeIDs IDSet
	if attr.Name.Concept != nil {
		typeIDs = newSet(attr.Name.Concept.ConceptID)
	}
	for _, v := range values {
		if !v.Active {
			continue
		}
		if typeIDs != nil {
			if _, ok := typeIDs[v.TypeID]; !ok {
				continue
			}
		}
		n, err := parseConcreteNumber(v.Value)
		if err != nil {
			continue
		}
		if compareNumbers(n, attr.Op, attr.Number) {
			return true, nil
		}
	}
	return false, nil
}

func compareNumbers(a float64, op ComparisonOp, b float64) bool {
	switch op {
	case CmpEquals:
		return a == b
	case CmpNotEquals:
		return a != b
	case CmpLess:
		return a < b
	case CmpLessOrEqual:
		return a <= b
	case CmpGreater:
		return a > b
	case CmpGreaterOrEqual:
		return a >= b
	}
	return false
}

func (e *Evaluator) evalDotted(d Dotted) (IDSet, error) {
	base, err := e.eval(d.Base)
	if err != nil {
		return nil, err
	}
	typeIDs, err := e.evalFocus(d.Attribute)
	if err != nil {
		return nil, err
	}
	out := make(IDSet)
	for id := range base {
		rels, err := store.ParentRelationships(e.Store, id)
		if err != nil {
			return nil, err
		}
		for _, r := range rels {
			if !r.Active {
				continue
			}
			if _, ok := typeIDs[r.TypeID]; ok {
				out[r.DestinationID] = struct{}{}
			}
		}
	}
	return out, nil
}

func (e *Evaluator) evalTermFiltered(t TermFiltered) (IDSet, error) {
	base, err := e.eval(t.Base)
	if err != nil {
		return nil, err
	}
	q := search.Query{
		Text:        t.Filter.Term,
		ShowFSN:     t.Filter.Type == TermFilterFSN,
		MaximumHits: -1,
	}
	if d := t.Filter.Dialect; d != "" {
		if id, err := strconv.ParseInt(d, 10, 64); err == nil {
			q.PreferredIn = []int64{id}
		} else if e.Locale != nil {
			q.PreferredIn = e.Locale.Match(d, false)
		}
	}
	hits, err := e.Descriptions.Search(q)
	if err != nil {
		return nil, err
	}
	out := make(IDSet)
	for _, h := range hits {
		d, err := store.GetDescription(e.Store, h.DescriptionID)
		if err != nil {
			continue
		}
		if t.Filter.Type == TermFilterFSN && !d.IsFullySpecifiedName() {
			continue
		}
		if t.Filter.Type == TermFilterSynonym && !d.IsSynonym() {
			continue
		}
		if t.Filter.Type == TermFilterDefinition && d.TypeID != component.Definition {
			continue
		}
		if _, ok := base[d.ConceptID]; ok {
			out[d.ConceptID] = struct{}{}
		}
	}
	return out, nil
}

func parseConcreteNumber(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(s, "%g", &f)
	return f, err
}
