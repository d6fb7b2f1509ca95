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

// Package importer drives the staged, concurrent ingest of an RF2 release
// tree into a store.Store: core component files first, then the derived
// indices are rebuilt, then every reference set file.
package importer

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eldrix/snomed-engine/component"
	"github.com/eldrix/snomed-engine/rf2"
	"github.com/eldrix/snomed-engine/store"
)

// Importer streams an RF2 release tree into a store.Store.
type Importer struct {
	Store     store.Store
	Logger    *log.Logger
	BatchSize int // rows per Put batch, default 5000
	Workers   int // concurrent file workers per phase, default runtime.NumCPU()

	nConcepts, nDescriptions, nRelationships, nConcreteValues, nRefsetItems int64
}

// New creates an Importer with the default batch size and one worker per
// available processor.
func New(s store.Store, logger *log.Logger) *Importer {
	if logger == nil {
		logger = log.Default()
	}
	return &Importer{Store: s, Logger: logger, BatchSize: 5000, Workers: runtime.NumCPU()}
}

// Import walks root for RF2 release files and imports them in three phases:
// core files (concepts, descriptions, relationships, concrete values and the
// refset descriptor refset), then a full index rebuild, then every remaining
// reference set file. The split exists because refset content may depend on
// the descriptor rows being present and indexed before it is decoded.
func (im *Importer) Import(ctx context.Context, root string) error {
	start := time.Now()
	files, err := scan(root)
	if err != nil {
		return fmt.Errorf("importer: scan %s: %w", root, err)
	}
	if len(files.core) == 0 && len(files.refset) == 0 {
		return fmt.Errorf("importer: no importable RF2 files found under %s", root)
	}
	logReleasePackageInfo(im.Logger, root)

	im.Logger.Printf("importer: found %d core files, %d refset files", len(files.core), len(files.refset))

	if err := im.runPhase(ctx, "core", files.core); err != nil {
		return err
	}
	im.Logger.Printf("importer: rebuilding indices")
	if err := store.Index(im.Store); err != nil {
		return fmt.Errorf("importer: index rebuild: %w", err)
	}
	if err := im.runPhase(ctx, "refset", files.refset); err != nil {
		return err
	}

	im.Logger.Printf("importer: rebuilding indices (post-refset)")
	if err := store.Index(im.Store); err != nil {
		return fmt.Errorf("importer: index rebuild: %w", err)
	}

	im.Logger.Printf("importer: complete in %s: %d concepts, %d descriptions, %d relationships, %d concrete values, %d refset items",
		time.Since(start), atomic.LoadInt64(&im.nConcepts), atomic.LoadInt64(&im.nDescriptions),
		atomic.LoadInt64(&im.nRelationships), atomic.LoadInt64(&im.nConcreteValues), atomic.LoadInt64(&im.nRefsetItems))
	return nil
}

// runPhase distributes files across Workers goroutines pulling from a
// bounded channel, each importing whole files independently.
func (im *Importer) runPhase(ctx context.Context, name string, files []taggedFile) error {
	if len(files) == 0 {
		return nil
	}
	workers := im.Workers
	if workers <= 0 {
		workers = 4
	}
	work := make(chan taggedFile, len(files))
	for _, f := range files {
		work <- f
	}
	close(work)

	// the first failure cancels the phase: sibling workers observe the
	// cancelled context at their next file or batch boundary and stop
	// rather than importing the remaining files
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range work {
				select {
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				default:
				}
				if err := im.importFile(ctx, f); err != nil {
					errs <- err
					cancel()
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	// siblings that stopped on the cancelled context report context.Canceled;
	// surface the failure that triggered the cancellation instead
	var firstErr error
	for err := range errs {
		if err == nil {
			continue
		}
		if firstErr == nil || firstErr == context.Canceled {
			firstErr = err
		}
	}
	if firstErr != nil {
		return fmt.Errorf("importer: phase %s: %w", name, firstErr)
	}
	return nil
}

func (im *Importer) importFile(ctx context.Context, f taggedFile) error {
	im.Logger.Printf("importer: processing %s", filepath.Base(f.path))
	return forEachBatch(f.path, im.BatchSize, func(firstLine int, rows [][]string) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		switch f.descriptor.ParserID() {
		case "Concept":
			batch, err := parseRows(f.path, firstLine, rows, rf2.ParseConceptRow)
			if err != nil {
				return err
			}
			atomic.AddInt64(&im.nConcepts, int64(len(batch)))
			return store.PutConcepts(im.Store, batch)
		case "Description":
			batch, err := parseRows(f.path, firstLine, rows, rf2.ParseDescriptionRow)
			if err != nil {
				return err
			}
			atomic.AddInt64(&im.nDescriptions, int64(len(batch)))
			return store.PutDescriptions(im.Store, batch)
		case "Relationship":
			batch, err := parseRows(f.path, firstLine, rows, rf2.ParseRelationshipRow)
			if err != nil {
				return err
			}
			atomic.AddInt64(&im.nRelationships, int64(len(batch)))
			return store.PutRelationships(im.Store, batch)
		case "ConcreteValue":
			batch, err := parseRows(f.path, firstLine, rows, rf2.ParseConcreteValueRow)
			if err != nil {
				return err
			}
			atomic.AddInt64(&im.nConcreteValues, int64(len(batch)))
			return store.PutConcreteValues(im.Store, batch)
		case "Refset":
			pattern, refsetName := f.descriptor.Pattern, f.descriptor.RefsetName
			batch, err := parseRows(f.path, firstLine, rows, func(row []string) (component.RefsetItem, error) {
				return rf2.ParseRefsetRow(pattern, refsetName, row)
			})
			if err != nil {
				return err
			}
			atomic.AddInt64(&im.nRefsetItems, int64(len(batch)))
			return store.PutRefsetItems(im.Store, batch)
		}
		return fmt.Errorf("importer: no row parser for %s", f.path)
	})
}

// parseRows parses every row with parse. A row that fails to parse fails
// the whole batch, and with it the whole import: the error identifies the
// file and 1-based line so the distribution can be corrected, rather than
// silently importing an incomplete store. Contrast the per-row *write*
// fallback in the store, which is deliberately lenient.
func parseRows[T any](path string, firstLine int, rows [][]string, parse func([]string) (T, error)) ([]T, error) {
	out := make([]T, 0, len(rows))
	for i, row := range rows {
		v, err := parse(row)
		if err != nil {
			return nil, &rf2.ParseError{File: path, Line: firstLine + i, Cause: err}
		}
		out = append(out, v)
	}
	return out, nil
}
