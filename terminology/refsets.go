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
	"github.com/eldrix/snomed-engine/component"
	"github.com/eldrix/snomed-engine/store"
)

// InstalledRefsets returns every reference set with at least one active member.
func (svc *Svc) InstalledRefsets() ([]int64, error) {
	return store.InstalledRefsets(svc.store)
}

// RefsetMembers returns the referenced components of every active member of
// refsetID.
func (svc *Svc) RefsetMembers(refsetID int64) ([]int64, error) {
	return svc.members.QueryRefsetID(refsetID)
}

// ComponentRefsetIDs returns the distinct reference sets that componentID is
// an active member of.
func (svc *Svc) ComponentRefsetIDs(componentID int64) ([]int64, error) {
	return store.RefsetIDsForComponent(svc.store, componentID)
}

// ComponentRefsetItems returns the active reference set items referencing
// componentID, restricted to refsetID when non-zero.
func (svc *Svc) ComponentRefsetItems(componentID, refsetID int64) ([]component.RefsetItem, error) {
	return store.ItemsForComponent(svc.store, componentID, refsetID)
}

// MemberField returns the components of refsetID whose named field exactly
// matches value.
func (svc *Svc) MemberField(refsetID int64, field, value string) ([]int64, error) {
	return svc.members.MemberField(refsetID, field, value)
}

// MemberFieldPrefix returns the components of refsetID whose named field
// starts with prefix.
func (svc *Svc) MemberFieldPrefix(refsetID int64, field, prefix string) ([]int64, error) {
	return svc.members.MemberFieldPrefix(refsetID, field, prefix)
}

// MemberFieldWildcard returns the components of refsetID whose named field
// matches a '*'/'?' glob pattern.
func (svc *Svc) MemberFieldWildcard(refsetID int64, field, pattern string) ([]int64, error) {
	return svc.members.MemberFieldWildcard(refsetID, field, pattern)
}

// ReverseMap returns the active map-refset items of refsetID whose mapTarget
// exactly matches code: the reverse mapping from an external code system
// back into SNOMED CT.
func (svc *Svc) ReverseMap(refsetID int64, code string) ([]component.RefsetItem, error) {
	return store.ReverseMap(svc.store, refsetID, "mapTarget", code)
}

// ReverseMapPrefix is ReverseMap for a target-code prefix, so a caller can
// resolve a truncated or family-level external code.
func (svc *Svc) ReverseMapPrefix(refsetID int64, prefix string) ([]component.RefsetItem, error) {
	return store.ReverseMapPrefix(svc.store, refsetID, "mapTarget", prefix)
}
