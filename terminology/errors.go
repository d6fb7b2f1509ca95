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

import "errors"

// Sentinel errors surfaced by the service lifecycle and query paths. Errors
// from lower layers are wrapped so callers can test with errors.Is.
var (
	// ErrNotFound is returned when opening a non-existent database
	// read-only, or when a point lookup misses.
	ErrNotFound = errors.New("terminology: not found")

	// ErrIncompatibleVersion is returned when the manifest's version does
	// not match the version this code expects.
	ErrIncompatibleVersion = errors.New("terminology: incompatible database version")

	// ErrCorruptManifest is returned when the manifest exists but cannot
	// be read or parsed.
	ErrCorruptManifest = errors.New("terminology: corrupt manifest")

	// ErrIndex is returned when a search index cannot be opened or read.
	ErrIndex = errors.New("terminology: index failure")
)
