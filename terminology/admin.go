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
	"context"
	"log"

	"golang.org/x/text/language"

	"github.com/eldrix/snomed-engine/component"
	"github.com/eldrix/snomed-engine/importer"
	"github.com/eldrix/snomed-engine/search"
	"github.com/eldrix/snomed-engine/store"
)

// ImportSnomed imports RF2 distribution directories into the database at
// root, creating it on first import. The search indices are not rebuilt;
// run IndexDatabase afterwards, or use CreateService for the full pipeline.
func ImportSnomed(ctx context.Context, root string, dirs []string, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}
	svc, err := Open(root, withWritable(), WithLogger(logger))
	if err != nil {
		return err
	}
	defer svc.Close()
	im := importer.New(svc.store, logger)
	for _, dir := range dirs {
		if err := im.Import(ctx, dir); err != nil {
			return err
		}
	}
	return nil
}

// IndexDatabase rebuilds the store's derived indices and both search indices
// from the current component tables. It is idempotent: re-running it over an
// unchanged store produces the same indices.
func IndexDatabase(root string, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}
	svc, err := Open(root, withWritable(), WithLogger(logger))
	if err != nil {
		return err
	}
	defer svc.Close()

	logger.Printf("index: rebuilding store indices")
	if err := store.Index(svc.store); err != nil {
		return err
	}
	logger.Printf("index: building description index")
	if err := svc.buildDescriptionIndex(); err != nil {
		return err
	}
	logger.Printf("index: building members index")
	return svc.buildMembersIndex()
}

// CompactDatabase asks the storage engine to reclaim space after an import.
func CompactDatabase(root string, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}
	svc, err := Open(root, withWritable(), WithLogger(logger))
	if err != nil {
		return err
	}
	defer svc.Close()
	logger.Printf("compact: compacting store")
	return svc.store.Compact()
}

// CreateService is the one-shot pipeline: import every distribution
// directory, build all indices, compact, and return the opened service.
func CreateService(root string, importFrom []string, defaultLanguage language.Tag, logger *log.Logger) (*Svc, error) {
	if err := ImportSnomed(context.Background(), root, importFrom, logger); err != nil {
		return nil, err
	}
	if err := IndexDatabase(root, logger); err != nil {
		return nil, err
	}
	if err := CompactDatabase(root, logger); err != nil {
		return nil, err
	}
	return Open(root, WithDefaultLanguage(defaultLanguage), WithLogger(logger))
}

const indexBatchSize = 1000

// buildDescriptionIndex streams every concept and indexes each of its
// descriptions with the closure, refset and acceptability data the search
// layer filters and ranks on.
func (svc *Svc) buildDescriptionIndex() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := make(chan component.Concept, indexBatchSize)
	errCh := make(chan error, 1)
	go func() {
		errCh <- store.StreamAllConcepts(ctx, svc.store, ch)
	}()

	batch := make([]search.Description, 0, indexBatchSize)
	n := 0
	for c := range ch {
		docs, err := svc.descriptionDocs(c)
		if err != nil {
			return err
		}
		batch = append(batch, docs...)
		if len(batch) >= indexBatchSize {
			if err := svc.search.Index(batch); err != nil {
				return err
			}
			n += len(batch)
			batch = batch[:0]
		}
	}
	if err := <-errCh; err != nil {
		return err
	}
	if len(batch) > 0 {
		if err := svc.search.Index(batch); err != nil {
			return err
		}
		n += len(batch)
	}
	svc.logger.Printf("index: indexed %d descriptions", n)
	return nil
}

func (svc *Svc) descriptionDocs(c component.Concept) ([]search.Description, error) {
	descs, err := store.DescriptionsForConcept(svc.store, c.ID)
	if err != nil {
		return nil, err
	}
	if len(descs) == 0 {
		return nil, nil
	}
	directParents, err := store.Parents(svc.store, c.ID, component.IsA)
	if err != nil {
		return nil, err
	}
	recursiveParents, err := store.AllParents(svc.store, c.ID, component.IsA)
	if err != nil {
		return nil, err
	}
	conceptRefsets, err := store.RefsetIDsForComponent(svc.store, c.ID)
	if err != nil {
		return nil, err
	}
	out := make([]search.Description, 0, len(descs))
	for _, d := range descs {
		descriptionRefsets, err := store.RefsetIDsForComponent(svc.store, d.ID)
		if err != nil {
			return nil, err
		}
		items, err := store.ItemsForComponent(svc.store, d.ID, 0)
		if err != nil {
			return nil, err
		}
		var preferredIn, acceptableIn []int64
		for _, item := range items {
			if !item.Active {
				continue
			}
			switch item.ConceptField("acceptabilityId") {
			case component.Preferred:
				preferredIn = append(preferredIn, item.RefsetID)
			case component.Acceptable:
				acceptableIn = append(acceptableIn, item.RefsetID)
			}
		}
		out = append(out, search.Description{
			DescriptionID:      d.ID,
			ConceptID:          c.ID,
			Term:               d.Term,
			IsFSN:              d.IsFullySpecifiedName(),
			Active:             d.Active,
			ConceptActive:      c.Active,
			DirectParents:      directParents,
			RecursiveParents:   recursiveParents,
			ConceptRefsets:     conceptRefsets,
			DescriptionRefsets: descriptionRefsets,
			PreferredIn:        preferredIn,
			AcceptableIn:       acceptableIn,
		})
	}
	return out, nil
}

// buildMembersIndex indexes every active reference set item.
func (svc *Svc) buildMembersIndex() error {
	batch := make([]component.RefsetItem, 0, indexBatchSize)
	n := 0
	err := store.IterateRefsetItems(svc.store, func(item component.RefsetItem) error {
		if !item.Active {
			return nil
		}
		batch = append(batch, item)
		if len(batch) >= indexBatchSize {
			if err := svc.members.IndexItems(batch); err != nil {
				return err
			}
			n += len(batch)
			batch = batch[:0]
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(batch) > 0 {
		if err := svc.members.IndexItems(batch); err != nil {
			return err
		}
		n += len(batch)
	}
	svc.logger.Printf("index: indexed %d refset items", n)
	return nil
}
