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
	"container/list"
	"sync"

	"github.com/eldrix/snomed-engine/component"
	"github.com/eldrix/snomed-engine/store"
)

// ExtendedConcept bundles a concept with everything usually needed to render
// or reason about it in one round trip: its descriptions, its direct parents,
// the transitive closure of each parent-relationship type, any concrete
// values, and its reference set memberships.
type ExtendedConcept struct {
	Concept             component.Concept
	Descriptions        []component.Description
	DirectParents       map[int64][]int64 // relationship type -> direct destinations
	ParentRelationships map[int64][]int64 // relationship type -> full closure of destinations
	ConcreteValues      []component.ConcreteValue
	RefsetIDs           []int64
}

// ExtendedConcept assembles the bundle for conceptID. Results are served
// from a bounded in-memory cache; the cache is invalidated only by reopening
// the service, which is safe because importing into an open queryable
// service is not a supported configuration.
func (svc *Svc) ExtendedConcept(conceptID int64) (*ExtendedConcept, error) {
	if cached, ok := svc.cache.get(conceptID); ok {
		return cached, nil
	}
	c, err := svc.Concept(conceptID)
	if err != nil {
		return nil, err
	}
	descs, err := store.DescriptionsForConcept(svc.store, conceptID)
	if err != nil {
		return nil, err
	}
	types, err := store.ParentTypes(svc.store, conceptID)
	if err != nil {
		return nil, err
	}
	direct := make(map[int64][]int64, len(types))
	for _, t := range types {
		parents, err := store.Parents(svc.store, conceptID, t)
		if err != nil {
			return nil, err
		}
		direct[t] = parents
	}
	expanded, err := svc.ParentRelationshipsExpanded(conceptID, 0)
	if err != nil {
		return nil, err
	}
	values, err := store.ConcreteValuesForConcept(svc.store, conceptID)
	if err != nil {
		return nil, err
	}
	refsetIDs, err := store.RefsetIDsForComponent(svc.store, conceptID)
	if err != nil {
		return nil, err
	}
	ec := &ExtendedConcept{
		Concept:             c,
		Descriptions:        descs,
		DirectParents:       direct,
		ParentRelationships: expanded,
		ConcreteValues:      values,
		RefsetIDs:           refsetIDs,
	}
	svc.cache.put(conceptID, ec)
	return ec, nil
}

// conceptCache is a bounded LRU of recently assembled extended concepts.
type conceptCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently used
	entries  map[int64]*list.Element
}

type cacheEntry struct {
	id    int64
	value *ExtendedConcept
}

func newConceptCache(capacity int) *conceptCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &conceptCache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[int64]*list.Element, capacity),
	}
}

func (cc *conceptCache) get(id int64) (*ExtendedConcept, bool) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	el, ok := cc.entries[id]
	if !ok {
		return nil, false
	}
	cc.order.MoveToFront(el)
	return el.Value.(*cacheEntry).value, true
}

func (cc *conceptCache) put(id int64, value *ExtendedConcept) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if el, ok := cc.entries[id]; ok {
		el.Value.(*cacheEntry).value = value
		cc.order.MoveToFront(el)
		return
	}
	cc.entries[id] = cc.order.PushFront(&cacheEntry{id: id, value: value})
	for cc.order.Len() > cc.capacity {
		oldest := cc.order.Back()
		cc.order.Remove(oldest)
		delete(cc.entries, oldest.Value.(*cacheEntry).id)
	}
}
