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

// Package identifier implements the SNOMED CT identifier (SCTID) codec:
// Verhoeff check-digit validation and partition-identifier decoding, plus
// parsing of UUID-keyed reference set item identifiers.
package identifier

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/eldrix/snomed-engine/verhoeff"
)

// ID is a SNOMED CT identifier: a 64-bit positive integer whose penultimate
// two digits are the partition identifier and whose final digit is a
// Verhoeff check digit.
type ID int64

// Kind identifies the component kind declared by an identifier's partition.
type Kind int

// Supported kinds of component identifier.
const (
	KindUnknown Kind = iota
	KindConcept
	KindDescription
	KindRelationship
)

func (k Kind) String() string {
	switch k {
	case KindConcept:
		return "concept"
	case KindDescription:
		return "description"
	case KindRelationship:
		return "relationship"
	}
	return "unknown"
}

// Parse converts a string into an identifier without validating it.
func Parse(s string) (ID, error) {
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return ID(i), nil
}

// ParseValid converts a string into an identifier, returning an error if it
// does not validate under Verhoeff.
func ParseValid(s string) (ID, error) {
	id, err := Parse(s)
	if err != nil {
		return 0, err
	}
	if !id.Valid() {
		return 0, fmt.Errorf("invalid SNOMED CT identifier %q", s)
	}
	return id, nil
}

// Valid reports whether id is Verhoeff-valid. Non-digit characters or a
// length too short to carry a partition never reach this far, because the
// identifier is already a parsed int64; a value that cannot be represented
// validly (e.g. negative, or fewer than 3 digits) simply fails validation
// rather than panicking.
func (id ID) Valid() bool {
	if id <= 0 {
		return false
	}
	s := strconv.FormatInt(int64(id), 10)
	if len(s) < 3 {
		return false
	}
	return verhoeff.ValidateString(s)
}

// AppendCheckDigit returns a new identifier string formed by appending a
// Verhoeff check digit to prefix.
func AppendCheckDigit(prefix string) string {
	return verhoeff.AppendCheckDigit(prefix)
}

// partition returns the two-digit partition identifier preceding the check digit.
func (id ID) partition() string {
	s := strconv.FormatInt(int64(id), 10)
	l := len(s)
	if l < 3 {
		return ""
	}
	return s[l-3 : l-1]
}

// Partition returns the component kind declared by this identifier's
// partition digits, or KindUnknown if the identifier is malformed or does
// not match a recognised partition.
func (id ID) Partition() Kind {
	switch id.partition() {
	case "00", "10":
		return KindConcept
	case "01", "11":
		return KindDescription
	case "02", "12":
		return KindRelationship
	}
	return KindUnknown
}

// MatchesKind reports whether id both validates and declares the given kind.
func (id ID) MatchesKind(k Kind) bool {
	return id.Valid() && id.Partition() == k
}

// Int64 returns the plain integer value of the identifier.
func (id ID) Int64() int64 { return int64(id) }

// String returns the decimal representation of the identifier.
func (id ID) String() string { return strconv.FormatInt(int64(id), 10) }

// ParseItemID parses a reference set item identifier, which is a UUID,
// returning its canonical string form. An invalid UUID is rejected rather
// than silently accepted, mirroring the way a malformed SCTID is rejected.
func ParseItemID(s string) (string, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid reference set item identifier %q: %w", s, err)
	}
	return u.String(), nil
}
