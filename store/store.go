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

// Package store implements the content-addressed key-value store and its
// derived indices: a goleveldb-backed database divided into logical
// buckets, holding the five core component kinds plus every index needed to
// answer terminological queries without a full table scan.
package store

import (
	"bytes"
	"errors"
	"fmt"
)

// Bucket identifies one logical partition of the key-value store.
type Bucket int

// Core buckets hold one encoded component per key; index buckets hold a
// one-byte marker value per (prefix, entry) pair, so GetIndexEntries can
// recover every entry sharing a prefix via a range scan.
const (
	BucketConcepts Bucket = iota
	BucketDescriptions
	BucketRelationships
	BucketConcreteValues
	BucketRefsetItems

	IndexConceptDescriptions    // concept_id -> description_id
	IndexConceptParentRelationships // source_id -> relationship_id
	IndexConceptChildRelationships  // destination_id -> relationship_id
	IndexConceptParentsOfType       // concept_id+type_id -> parent_id (active IS-A-like edges)
	IndexConceptChildrenOfType      // concept_id+type_id -> child_id

	IndexComponentRefsets       // component_id -> refset_id
	IndexRefsetComponentItems   // refset_id+component_id -> item_id
	IndexRefsetFieldItems       // refset_id+field_name+NUL+field_value -> item_id (reverse map)
	IndexInstalledRefsets       // refset_id -> (marker)

	IndexConceptConcreteValues // source_id -> concrete_value_id

	lastBucket
)

var bucketNames = [...][]byte{
	[]byte("con"),
	[]byte("des"),
	[]byte("rel"),
	[]byte("cva"),
	[]byte("ref"),

	[]byte("i.cds"),
	[]byte("i.cpr"),
	[]byte("i.ccr"),
	[]byte("i.cpt"),
	[]byte("i.cct"),

	[]byte("i.crs"),
	[]byte("i.rci"),
	[]byte("i.rfc"),
	[]byte("i.irs"),

	[]byte("i.ccv"),
}

func (b Bucket) name() []byte {
	if int(b) < 0 || b >= lastBucket {
		panic(fmt.Sprintf("store: invalid bucket %d", b))
	}
	return bucketNames[b]
}

func compoundKey(parts ...[]byte) []byte { return bytes.Join(parts, nil) }

// ErrNotFound is returned by Get when no value exists for a key.
var ErrNotFound = errors.New("store: not found")

// Batch represents an abstract set of operations against the key-value
// store, executed either read-only (View) or read-write (Update).
type Batch interface {
	// Get decodes the value for key in bucket b into out (a pointer).
	Get(b Bucket, key []byte, out interface{}) error

	// Put encodes value and stores it for key in bucket b.
	Put(b Bucket, key []byte, value interface{}) error

	// AddIndexEntry records that entry belongs to the set keyed by key in
	// index bucket b.
	AddIndexEntry(b Bucket, key, entry []byte)

	// GetIndexEntries returns every entry recorded against key in bucket b.
	GetIndexEntries(b Bucket, key []byte) ([][]byte, error)

	// ClearIndexEntries deletes every entry recorded against key in bucket b.
	ClearIndexEntries(b Bucket, key []byte) error

	// Iterate walks every (key, value) pair in bucket b whose key has the
	// given prefix, stopping early if f returns an error.
	Iterate(b Bucket, keyPrefix []byte, f func(key, value []byte) error) error
}

// Store is the abstract key-value store, divided into logical buckets.
type Store interface {
	View(func(Batch) error) error
	Update(func(Batch) error) error

	// Compact requests the underlying engine reclaim space and optimise
	// layout after a bulk import.
	Compact() error

	Close() error
}

// Statistics summarises the contents of the store for status reporting.
type Statistics struct {
	Concepts      int
	Descriptions  int
	Relationships int
	RefsetItems   int
	Refsets       []int64
}
