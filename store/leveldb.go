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

package store

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// levelStore is the goleveldb-backed implementation of Store. Values are
// gob-encoded: the component types are plain Go structs read back only by
// this module, so a Go-to-Go binary format needs no schema compiler.
type levelStore struct {
	db *leveldb.DB
}

// Open opens (or creates) a goleveldb database at path.
func Open(path string, readOnly bool) (Store, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{ReadOnly: readOnly})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	return &levelStore{db: db}, nil
}

func (ls *levelStore) Close() error { return ls.db.Close() }

func (ls *levelStore) Compact() error {
	return ls.db.CompactRange(util.Range{Start: nil, Limit: nil})
}

func (ls *levelStore) View(f func(Batch) error) error {
	return f(&levelBatch{store: ls})
}

// Update runs f against a staged batch and commits it atomically on
// success. See writeBatchWithFallback for the retry behaviour used when the
// committed batch itself fails part-way, e.g. a single malformed row among
// many thousands in one RF2 file.
func (ls *levelStore) Update(f func(Batch) error) error {
	lb := &levelBatch{store: ls}
	if err := f(lb); err != nil {
		return err
	}
	if len(lb.encodeErrs) > 0 {
		return fmt.Errorf("store: %d encode errors in batch: %v", len(lb.encodeErrs), lb.encodeErrs[0])
	}
	return ls.writeBatchWithFallback(&lb.batch)
}

// writeBatchWithFallback writes batch in one shot; if the engine rejects it
// (e.g. a corrupt key from a prior partial write), it retries put-by-put so
// that one bad entry does not lose an entire import batch's worth of work.
func (ls *levelStore) writeBatchWithFallback(batch *leveldb.Batch) error {
	if err := ls.db.Write(batch, nil); err == nil {
		return nil
	}
	var failed int
	batch.Replay(batchReplayFunc(func(key, value []byte) {
		if err := ls.db.Put(key, value, nil); err != nil {
			failed++
		}
	}))
	if failed > 0 {
		return fmt.Errorf("store: %d entries failed during fallback write", failed)
	}
	return nil
}

// batchReplayFunc adapts a plain put-callback to leveldb.BatchReplay, which
// also requires a Delete method; deletes never occur in an import batch.
type batchReplayFunc func(key, value []byte)

func (f batchReplayFunc) Put(key, value []byte) { f(key, value) }
func (f batchReplayFunc) Delete(key []byte)      {}

type levelBatch struct {
	store      *levelStore
	batch      leveldb.Batch
	staged     map[string][]byte // values Put in this batch, visible to Get before commit
	encodeErrs []error
}

func encode(value interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(data []byte, out interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(out)
}

func (lb *levelBatch) Get(b Bucket, key []byte, out interface{}) error {
	k := compoundKey(b.name(), key)
	if d, ok := lb.staged[string(k)]; ok {
		return decode(d, out)
	}
	d, err := lb.store.db.Get(k, nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return ErrNotFound
		}
		return err
	}
	return decode(d, out)
}

func (lb *levelBatch) Put(b Bucket, key []byte, value interface{}) error {
	d, err := encode(value)
	if err != nil {
		lb.encodeErrs = append(lb.encodeErrs, err)
		return err
	}
	k := compoundKey(b.name(), key)
	if lb.staged == nil {
		lb.staged = make(map[string][]byte)
	}
	lb.staged[string(k)] = d
	lb.batch.Put(k, d)
	return nil
}

func (lb *levelBatch) AddIndexEntry(b Bucket, key, entry []byte) {
	lb.batch.Put(compoundKey(b.name(), key, entry), []byte{'.'})
}

func (lb *levelBatch) GetIndexEntries(b Bucket, key []byte) ([][]byte, error) {
	prefix := compoundKey(b.name(), key)
	lp := len(prefix)
	iter := lb.store.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	var result [][]byte
	for iter.Next() {
		entry := make([]byte, len(iter.Key())-lp)
		copy(entry, iter.Key()[lp:])
		result = append(result, entry)
	}
	return result, iter.Error()
}

func (lb *levelBatch) ClearIndexEntries(b Bucket, key []byte) error {
	prefix := compoundKey(b.name(), key)
	iter := lb.store.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	del := new(leveldb.Batch)
	for iter.Next() {
		del.Delete(append([]byte(nil), iter.Key()...))
	}
	if err := iter.Error(); err != nil {
		return err
	}
	return lb.store.db.Write(del, nil)
}

func (lb *levelBatch) Iterate(b Bucket, keyPrefix []byte, f func(key, value []byte) error) error {
	prefix := compoundKey(b.name(), keyPrefix)
	iter := lb.store.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	for iter.Next() {
		if err := f(iter.Key()[len(b.name()):], iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}
