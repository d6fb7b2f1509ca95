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

// Package terminology composes the component store, the two search indices
// and the locale resolver into a practical SNOMED CT API: concept lookup,
// subsumption, free-text and ECL search, preferred term selection, reference
// set queries, reverse maps and historical association expansion.
package terminology

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/text/language"

	"github.com/eldrix/snomed-engine/component"
	"github.com/eldrix/snomed-engine/ecl"
	"github.com/eldrix/snomed-engine/locale"
	"github.com/eldrix/snomed-engine/search"
	"github.com/eldrix/snomed-engine/store"
)

// Svc is an opened terminology service: a handle threaded explicitly through
// every operation, never a singleton. It is safe for concurrent readers.
type Svc struct {
	path     string
	manifest Manifest
	store    store.Store
	search   *search.DescriptionIndex
	members  *search.MembersIndex
	locale   *locale.Resolver
	mrcm     *mrcmClassifier
	logger   *log.Logger
	cache    *conceptCache

	closeOnce sync.Once
}

// Option configures a service at open time.
type Option func(*options)

type options struct {
	logger          *log.Logger
	defaultLanguage language.Tag
	readOnly        bool
	cacheSize       int
}

// WithLogger directs the service's operational logging to logger.
func WithLogger(logger *log.Logger) Option { return func(o *options) { o.logger = logger } }

// WithDefaultLanguage sets the locale used when language matching falls back.
func WithDefaultLanguage(tag language.Tag) Option {
	return func(o *options) { o.defaultLanguage = tag }
}

// withWritable opens the underlying store and indices read-write; used by the
// administration entry points, not the query path.
func withWritable() Option { return func(o *options) { o.readOnly = false } }

// WithCacheSize bounds the extended-concept cache to n entries.
func WithCacheSize(n int) Option { return func(o *options) { o.cacheSize = n } }

// Open opens the database directory at path read-only. It fails fast with
// ErrNotFound if no database exists there, ErrCorruptManifest if the manifest
// cannot be read, and ErrIncompatibleVersion on a version mismatch.
func Open(path string, opts ...Option) (*Svc, error) {
	o := options{
		logger:          log.Default(),
		defaultLanguage: language.BritishEnglish,
		readOnly:        true,
		cacheSize:       4096,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.readOnly {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: no database at %s", ErrNotFound, path)
		}
	} else if err := os.MkdirAll(path, 0771); err != nil {
		return nil, err
	}
	manifest, err := createOrOpenManifest(path, !o.readOnly)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(filepath.Join(path, manifest.Store), o.readOnly)
	if err != nil {
		return nil, err
	}
	descriptions, err := search.OpenDescriptionIndex(filepath.Join(path, manifest.Search), o.readOnly)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("%w: %v", ErrIndex, err)
	}
	members, err := search.OpenMembersIndex(filepath.Join(path, manifest.Members), o.readOnly)
	if err != nil {
		descriptions.Close()
		st.Close()
		return nil, fmt.Errorf("%w: %v", ErrIndex, err)
	}
	resolver, err := locale.Open(st, o.defaultLanguage)
	if err != nil {
		members.Close()
		descriptions.Close()
		st.Close()
		return nil, err
	}
	svc := &Svc{
		path:     path,
		manifest: *manifest,
		store:    st,
		search:   descriptions,
		members:  members,
		locale:   resolver,
		logger:   o.logger,
		cache:    newConceptCache(o.cacheSize),
	}
	svc.mrcm = newMRCMClassifier(svc)
	return svc, nil
}

// Close releases both index readers and then the store. Closing twice is a
// no-op.
func (svc *Svc) Close() error {
	var err error
	svc.closeOnce.Do(func() {
		if e := svc.search.Close(); e != nil {
			err = e
		}
		if e := svc.members.Close(); e != nil && err == nil {
			err = e
		}
		if e := svc.store.Close(); e != nil && err == nil {
			err = e
		}
	})
	return err
}

// Store exposes the underlying component store for collaborating packages.
func (svc *Svc) Store() store.Store { return svc.store }

// evaluator builds an ECL evaluator bound to this service's store and indices.
func (svc *Svc) evaluator() *ecl.Evaluator {
	return &ecl.Evaluator{
		Store:        svc.store,
		Descriptions: svc.search,
		Members:      svc.members,
		Locale:       svc.locale,
	}
}

func notFound(err error, kind string, id interface{}) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s %v", ErrNotFound, kind, id)
	}
	return err
}

// Concept returns the concept with the given identifier.
func (svc *Svc) Concept(conceptID int64) (component.Concept, error) {
	c, err := store.GetConcept(svc.store, conceptID)
	return c, notFound(err, "concept", conceptID)
}

// Description returns the description with the given identifier.
func (svc *Svc) Description(descriptionID int64) (component.Description, error) {
	d, err := store.GetDescription(svc.store, descriptionID)
	return d, notFound(err, "description", descriptionID)
}

// Relationship returns the relationship with the given identifier.
func (svc *Svc) Relationship(relationshipID int64) (component.Relationship, error) {
	r, err := store.GetRelationship(svc.store, relationshipID)
	return r, notFound(err, "relationship", relationshipID)
}

// RefsetItem returns the reference set item with the given UUID.
func (svc *Svc) RefsetItem(itemID string) (component.RefsetItem, error) {
	item, err := store.GetRefsetItem(svc.store, itemID)
	return item, notFound(err, "refset item", itemID)
}

// Descriptions returns every description of conceptID, active or not.
func (svc *Svc) Descriptions(conceptID int64) ([]component.Description, error) {
	return store.DescriptionsForConcept(svc.store, conceptID)
}

// Synonyms returns conceptID's active synonym descriptions. When
// langRefsetIDs is non-empty, only synonyms that are preferred or acceptable
// in at least one of the given language reference sets are returned.
func (svc *Svc) Synonyms(conceptID int64, langRefsetIDs ...int64) ([]component.Description, error) {
	descs, err := store.DescriptionsForConcept(svc.store, conceptID)
	if err != nil {
		return nil, err
	}
	var out []component.Description
	for _, d := range descs {
		if !d.Active || !d.IsSynonym() {
			continue
		}
		if len(langRefsetIDs) > 0 {
			accepted := false
			for _, refsetID := range langRefsetIDs {
				items, err := store.ItemsForComponent(svc.store, d.ID, refsetID)
				if err != nil {
					return nil, err
				}
				for _, item := range items {
					a := item.ConceptField("acceptabilityId")
					if item.Active && (a == component.Preferred || a == component.Acceptable) {
						accepted = true
						break
					}
				}
				if accepted {
					break
				}
			}
			if !accepted {
				continue
			}
		}
		out = append(out, d)
	}
	return out, nil
}

// MatchLanguage resolves an Accept-Language-style priority list to the
// ordered installed language refset ids that best satisfy it.
func (svc *Svc) MatchLanguage(languageRange string, fallback bool) []int64 {
	return svc.locale.Match(languageRange, fallback)
}

// PreferredSynonym returns conceptID's preferred synonym for the given
// language range, falling back to the service's default locale when no
// installed language refset matches and fallback is set.
func (svc *Svc) PreferredSynonym(conceptID int64, languageRange string, fallback bool) (component.Description, error) {
	refsetIDs := svc.locale.Match(languageRange, fallback)
	return svc.PreferredSynonymByRefsets(conceptID, refsetIDs)
}

// PreferredSynonymByRefsets returns the first active synonym of conceptID
// marked preferred in any of langRefsetIDs, in list order.
func (svc *Svc) PreferredSynonymByRefsets(conceptID int64, langRefsetIDs []int64) (component.Description, error) {
	d, ok, err := locale.PreferredSynonym(svc.store, conceptID, langRefsetIDs)
	if err != nil {
		return component.Description{}, err
	}
	if !ok {
		return component.Description{}, fmt.Errorf("%w: no preferred synonym for concept %d", ErrNotFound, conceptID)
	}
	return d, nil
}

// FullySpecifiedName returns conceptID's FSN for the given language range,
// falling back to any active FSN when no language refset marks one preferred.
func (svc *Svc) FullySpecifiedName(conceptID int64, languageRange string) (component.Description, error) {
	refsetIDs := svc.locale.Match(languageRange, true)
	d, ok, err := locale.FullySpecifiedName(svc.store, conceptID, refsetIDs)
	if err != nil {
		return component.Description{}, err
	}
	if ok {
		return d, nil
	}
	descs, err := store.DescriptionsForConcept(svc.store, conceptID)
	if err != nil {
		return component.Description{}, err
	}
	for _, desc := range descs {
		if desc.Active && desc.IsFullySpecifiedName() {
			return desc, nil
		}
	}
	return component.Description{}, fmt.Errorf("%w: no fully specified name for concept %d", ErrNotFound, conceptID)
}

// Parents returns the direct active Is-A parents of conceptID.
func (svc *Svc) Parents(conceptID int64) ([]int64, error) {
	return store.Parents(svc.store, conceptID, component.IsA)
}

// Children returns the direct active Is-A children of conceptID.
func (svc *Svc) Children(conceptID int64) ([]int64, error) {
	return store.Children(svc.store, conceptID, component.IsA)
}

// AllParents returns the union of the transitive typeID-parent closures of
// ids, each closure including its own starting concept.
func (svc *Svc) AllParents(ids []int64, typeID int64) ([]int64, error) {
	seen := make(map[int64]struct{})
	var out []int64
	for _, id := range ids {
		closure, err := store.AllParents(svc.store, id, typeID)
		if err != nil {
			return nil, err
		}
		for _, p := range closure {
			if _, dup := seen[p]; !dup {
				seen[p] = struct{}{}
				out = append(out, p)
			}
		}
	}
	return out, nil
}

// AllChildren returns the transitive typeID-child closure of conceptID,
// including conceptID itself.
func (svc *Svc) AllChildren(conceptID int64, typeID int64) ([]int64, error) {
	return store.AllChildren(svc.store, conceptID, typeID)
}

// ParentRelationships returns every relationship sourced at conceptID.
func (svc *Svc) ParentRelationships(conceptID int64) ([]component.Relationship, error) {
	return store.ParentRelationships(svc.store, conceptID)
}

// ParentRelationshipsExpanded returns, for each active parent-relationship
// type of conceptID (or just typeID when non-zero), the full transitive
// closure of destination concepts reachable by edges of that type.
func (svc *Svc) ParentRelationshipsExpanded(conceptID int64, typeID int64) (map[int64][]int64, error) {
	var types []int64
	if typeID != 0 {
		types = []int64{typeID}
	} else {
		var err error
		types, err = store.ParentTypes(svc.store, conceptID)
		if err != nil {
			return nil, err
		}
	}
	out := make(map[int64][]int64, len(types))
	for _, t := range types {
		direct, err := store.Parents(svc.store, conceptID, t)
		if err != nil {
			return nil, err
		}
		seen := make(map[int64]struct{})
		var closure []int64
		for _, d := range direct {
			all, err := store.AllParents(svc.store, d, t)
			if err != nil {
				return nil, err
			}
			for _, p := range all {
				if _, dup := seen[p]; !dup {
					seen[p] = struct{}{}
					closure = append(closure, p)
				}
			}
		}
		out[t] = closure
	}
	return out, nil
}

// ChildRelationshipsOfType returns the direct active children of conceptID
// linked by edges of the given type.
func (svc *Svc) ChildRelationshipsOfType(conceptID, typeID int64) ([]int64, error) {
	return store.Children(svc.store, conceptID, typeID)
}

// SubsumedBy reports whether conceptID is subsumed by parentID: parentID is
// in conceptID's transitive Is-A closure, which includes conceptID itself.
func (svc *Svc) SubsumedBy(conceptID, parentID int64) (bool, error) {
	return store.IsA(svc.store, conceptID, parentID)
}

// AreAny reports whether any of ids is subsumed by any of parentIDs.
func (svc *Svc) AreAny(ids []int64, parentIDs []int64) (bool, error) {
	parents := make(map[int64]struct{}, len(parentIDs))
	for _, p := range parentIDs {
		parents[p] = struct{}{}
	}
	for _, id := range ids {
		closure, err := store.AllParents(svc.store, id, component.IsA)
		if err != nil {
			return false, err
		}
		for _, c := range closure {
			if _, ok := parents[c]; ok {
				return true, nil
			}
		}
	}
	return false, nil
}

// StreamAllConcepts pushes every concept onto ch, closing it when done.
func (svc *Svc) StreamAllConcepts(ctx context.Context, ch chan<- component.Concept) error {
	return store.StreamAllConcepts(ctx, svc.store, ch)
}
