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

// Package rf2 classifies SNOMED CT RF2 release files by filename and parses
// their tab-separated rows into typed components.
package rf2

import (
	"path/filepath"
	"regexp"
	"time"
)

// Descriptor is what the filename parser extracts from an RF2 release
// filename. A filename that does not match the RF2 naming convention yields
// a zero Descriptor rather than an error: see ParseFilename.
type Descriptor struct {
	ComponentKind string // "Concept", "Description", "Relationship", "Refset"
	RefsetName    string // e.g. "Simple", "Language", "ComplexMap"; empty for core files
	ReleaseType   string // "Full", "Snapshot" or "Delta"
	LanguageCode  string // e.g. "en"; empty when not encoded in the filename
	Namespace     string // country code or namespace identifier, e.g. "INT"
	VersionDate   time.Time
	Pattern       string // refset pattern letters, e.g. "ccs"; empty for core files
}

// ParserID names the row parser this descriptor should be routed to.
// Concept, Description and Relationship route by ComponentKind; all refset
// files route to "Refset" and are then decoded generically by Pattern.
func (d Descriptor) ParserID() string {
	switch d.ComponentKind {
	case "Concept", "Description":
		return d.ComponentKind
	case "Relationship", "StatedRelationship":
		return "Relationship"
	case "RelationshipConcreteValues":
		return "ConcreteValue"
	case "Refset":
		return "Refset"
	}
	return ""
}

// Importable reports whether this descriptor names a Snapshot file whose
// component kind has an associated row parser.
func (d Descriptor) Importable() bool {
	return d.ReleaseType == "Snapshot" && d.ParserID() != ""
}

// filenamePattern is the single regex governing the RF2 naming convention:
//
//	<prefix>_<part2>_<part3>[-<lang>]_<namespace>_<date>.txt
//
// For core files (prefix "sct2") part2 is the component kind and part3 is
// the release type. For refset files (prefix "der2") part2 is the pattern
// letters followed by the literal "Refset", and part3 is the refset name
// concatenated with the release type, e.g. "LanguageSnapshot".
var filenamePattern = regexp.MustCompile(
	`^(sct2|der2)_([A-Za-z]+)_([A-Za-z]+)(?:-([A-Za-z]+))?_([A-Za-z0-9]+)_(\d{8})\.txt$`)

var releaseTypeSuffix = regexp.MustCompile(`^(.*?)(Full|Snapshot|Delta)$`)

// ParseFilename classifies an RF2 release filename. A filename that does not
// match the naming convention yields a zero Descriptor and ok=false; this is
// never treated as an error, matching the way a non-matching file is simply
// skipped during a directory walk.
func ParseFilename(path string) (Descriptor, bool) {
	name := filepath.Base(path)
	m := filenamePattern.FindStringSubmatch(name)
	if m == nil {
		return Descriptor{}, false
	}
	prefix, part2, part3, lang, namespace, dateStr := m[1], m[2], m[3], m[4], m[5], m[6]

	date, err := time.Parse("20060102", dateStr)
	if err != nil {
		return Descriptor{}, false
	}

	d := Descriptor{LanguageCode: lang, Namespace: namespace, VersionDate: date}

	switch prefix {
	case "sct2":
		d.ComponentKind = part2
		d.ReleaseType = part3
	case "der2":
		pattern, ok := stripSuffix(part2, "Refset")
		if !ok {
			return Descriptor{}, false
		}
		d.ComponentKind = "Refset"
		d.Pattern = pattern
		sm := releaseTypeSuffix.FindStringSubmatch(part3)
		if sm == nil {
			return Descriptor{}, false
		}
		d.RefsetName = sm[1]
		d.ReleaseType = sm[2]
	default:
		return Descriptor{}, false
	}
	return d, true
}

func stripSuffix(s, suffix string) (string, bool) {
	if len(s) < len(suffix) || s[len(s)-len(suffix):] != suffix {
		return "", false
	}
	return s[:len(s)-len(suffix)], true
}
