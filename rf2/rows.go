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

package rf2

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/eldrix/snomed-engine/component"
	"github.com/eldrix/snomed-engine/identifier"
)

// ParseError records a row that failed to parse, identifying the file and
// the 1-based line number so the importer can report it without having to
// reconstruct the context itself.
type ParseError struct {
	File  string
	Line  int
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

func parseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// parseComponentID parses a row's own identifier, enforcing both the
// Verhoeff check digit and the partition declared by the component kind:
// a row whose id fails either check never enters the store.
func parseComponentID(s string, kind identifier.Kind) (int64, error) {
	id, err := identifier.Parse(s)
	if err != nil {
		return 0, err
	}
	if !id.MatchesKind(kind) {
		return 0, fmt.Errorf("identifier %q is not a valid %s id", s, kind)
	}
	return id.Int64(), nil
}

func parseBool(s string) (bool, error) {
	switch s {
	case "1":
		return true, nil
	case "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}

func parseBasicISODate(s string) (time.Time, error) {
	return time.Parse("20060102", s)
}

const coreColumns = 5  // id, effectiveTime, active, moduleId, <subject>
const refsetHeaderColumns = 6 // id, effectiveTime, active, moduleId, refsetId, referencedComponentId

// ParseConceptRow converts one tab-separated Concept row into a Concept.
// row layout: id, effectiveTime, active, moduleId, definitionStatusId.
func ParseConceptRow(row []string) (component.Concept, error) {
	if len(row) < coreColumns {
		return component.Concept{}, fmt.Errorf("concept row: expected %d columns, got %d", coreColumns, len(row))
	}
	id, err := parseComponentID(row[0], identifier.KindConcept)
	if err != nil {
		return component.Concept{}, err
	}
	et, err := parseBasicISODate(row[1])
	if err != nil {
		return component.Concept{}, err
	}
	active, err := parseBool(row[2])
	if err != nil {
		return component.Concept{}, err
	}
	moduleID, err := parseID(row[3])
	if err != nil {
		return component.Concept{}, err
	}
	defStatus, err := parseID(row[4])
	if err != nil {
		return component.Concept{}, err
	}
	return component.Concept{
		ID:                 id,
		EffectiveTime:      et,
		Active:             active,
		ModuleID:           moduleID,
		DefinitionStatusID: defStatus,
	}, nil
}

// ParseDescriptionRow converts one tab-separated Description row.
// row layout: id, effectiveTime, active, moduleId, conceptId, languageCode, typeId, term, caseSignificanceId.
func ParseDescriptionRow(row []string) (component.Description, error) {
	if len(row) < 9 {
		return component.Description{}, fmt.Errorf("description row: expected 9 columns, got %d", len(row))
	}
	id, err := parseComponentID(row[0], identifier.KindDescription)
	if err != nil {
		return component.Description{}, err
	}
	et, err := parseBasicISODate(row[1])
	if err != nil {
		return component.Description{}, err
	}
	active, err := parseBool(row[2])
	if err != nil {
		return component.Description{}, err
	}
	moduleID, err := parseID(row[3])
	if err != nil {
		return component.Description{}, err
	}
	conceptID, err := parseID(row[4])
	if err != nil {
		return component.Description{}, err
	}
	typeID, err := parseID(row[6])
	if err != nil {
		return component.Description{}, err
	}
	caseSig, err := parseID(row[8])
	if err != nil {
		return component.Description{}, err
	}
	return component.Description{
		ID:               id,
		EffectiveTime:    et,
		Active:           active,
		ModuleID:         moduleID,
		ConceptID:        conceptID,
		LanguageCode:     row[5],
		TypeID:           typeID,
		Term:             row[7],
		CaseSignificance: caseSig,
	}, nil
}

// ParseRelationshipRow converts one tab-separated Relationship row.
// row layout: id, effectiveTime, active, moduleId, sourceId, destinationId, relationshipGroup, typeId, characteristicTypeId, modifierId.
func ParseRelationshipRow(row []string) (component.Relationship, error) {
	if len(row) < 10 {
		return component.Relationship{}, fmt.Errorf("relationship row: expected 10 columns, got %d", len(row))
	}
	id, err := parseComponentID(row[0], identifier.KindRelationship)
	if err != nil {
		return component.Relationship{}, err
	}
	et, err := parseBasicISODate(row[1])
	if err != nil {
		return component.Relationship{}, err
	}
	active, err := parseBool(row[2])
	if err != nil {
		return component.Relationship{}, err
	}
	moduleID, err := parseID(row[3])
	if err != nil {
		return component.Relationship{}, err
	}
	sourceID, err := parseID(row[4])
	if err != nil {
		return component.Relationship{}, err
	}
	destID, err := parseID(row[5])
	if err != nil {
		return component.Relationship{}, err
	}
	group, err := strconv.ParseInt(row[6], 10, 32)
	if err != nil {
		return component.Relationship{}, err
	}
	typeID, err := parseID(row[7])
	if err != nil {
		return component.Relationship{}, err
	}
	charTypeID, err := parseID(row[8])
	if err != nil {
		return component.Relationship{}, err
	}
	modifierID, err := parseID(row[9])
	if err != nil {
		return component.Relationship{}, err
	}
	return component.Relationship{
		ID:                   id,
		EffectiveTime:        et,
		Active:               active,
		ModuleID:             moduleID,
		SourceID:             sourceID,
		DestinationID:        destID,
		RelationshipGroup:    int32(group),
		TypeID:               typeID,
		CharacteristicTypeID: charTypeID,
		ModifierID:           modifierID,
	}, nil
}

// ParseConcreteValueRow converts one tab-separated RelationshipConcreteValues
// row. Layout mirrors ParseRelationshipRow but the destination column (row[5])
// carries a literal value rather than a concept id, conventionally prefixed
// with '#' for a number or wrapped in double quotes for a string; both
// prefixes are stripped, leaving the raw value text.
func ParseConcreteValueRow(row []string) (component.ConcreteValue, error) {
	if len(row) < 10 {
		return component.ConcreteValue{}, fmt.Errorf("concrete value row: expected 10 columns, got %d", len(row))
	}
	id, err := parseComponentID(row[0], identifier.KindRelationship)
	if err != nil {
		return component.ConcreteValue{}, err
	}
	et, err := parseBasicISODate(row[1])
	if err != nil {
		return component.ConcreteValue{}, err
	}
	active, err := parseBool(row[2])
	if err != nil {
		return component.ConcreteValue{}, err
	}
	moduleID, err := parseID(row[3])
	if err != nil {
		return component.ConcreteValue{}, err
	}
	sourceID, err := parseID(row[4])
	if err != nil {
		return component.ConcreteValue{}, err
	}
	group, err := strconv.ParseInt(row[6], 10, 32)
	if err != nil {
		return component.ConcreteValue{}, err
	}
	typeID, err := parseID(row[7])
	if err != nil {
		return component.ConcreteValue{}, err
	}
	charTypeID, err := parseID(row[8])
	if err != nil {
		return component.ConcreteValue{}, err
	}
	modifierID, err := parseID(row[9])
	if err != nil {
		return component.ConcreteValue{}, err
	}
	return component.ConcreteValue{
		ID:                   id,
		EffectiveTime:        et,
		Active:               active,
		ModuleID:             moduleID,
		SourceID:             sourceID,
		Value:                stripConcreteValueMarkers(row[5]),
		RelationshipGroup:    int32(group),
		TypeID:               typeID,
		CharacteristicTypeID: charTypeID,
		ModifierID:           modifierID,
	}, nil
}

func stripConcreteValueMarkers(s string) string {
	s = strings.TrimPrefix(s, "#")
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// namedRefsetFields maps a refset name (as found in the filename, e.g.
// "Language", "ExtendedMap") to its well-known field layout. Distributions
// vary the exact name — association files ship as "AssociationReference",
// MRCM files carry an "International" suffix — so lookup falls back to the
// longest matching prefix; a name matching nothing is decoded with generic
// "field1".."fieldN" names instead of failing, because the pattern-string
// itself, not the name, is authoritative.
var namedRefsetFields = map[string][]component.FieldSpec{
	"Simple":               component.FieldsSimple,
	"Association":          component.FieldsAssociation,
	"AssociationReference": component.FieldsAssociation,
	"Language":             component.FieldsLanguage,
	"RefsetDescriptor":     component.FieldsRefsetDescriptor,
	"SimpleMap":            component.FieldsSimpleMap,
	"ComplexMap":           component.FieldsComplexMap,
	"ExtendedMap":          component.FieldsExtendedMap,
	"AttributeValue":       component.FieldsAttributeValue,
	"OWLExpression":        component.FieldsOWLExpression,
	"ModuleDependency":     component.FieldsModuleDependency,
	"MRCMDomain":           component.FieldsMRCMDomain,
	"MRCMAttributeDomain":  component.FieldsMRCMAttributeDomain,
	"MRCMAttributeRange":   component.FieldsMRCMAttributeRange,
	"MRCMModuleScope":      component.FieldsMRCMModuleScope,
}

// ParseRefsetRow decodes one reference set item row. The 6-column header
// (id, effectiveTime, active, moduleId, refsetId, referencedComponentId) is
// fixed; remaining columns are decoded according to pattern, one letter per
// column ('c' concept id, 'i' 32-bit integer, 's' raw string). refsetName,
// from the release filename, supplies friendly field names for well-known
// refset shapes; when it is unrecognised, fields are named "field1".."fieldN".
func ParseRefsetRow(pattern, refsetName string, row []string) (component.RefsetItem, error) {
	if len(row) < refsetHeaderColumns+len(pattern) {
		return component.RefsetItem{}, fmt.Errorf("refset row: expected at least %d columns for pattern %q, got %d",
			refsetHeaderColumns+len(pattern), pattern, len(row))
	}
	et, err := parseBasicISODate(row[1])
	if err != nil {
		return component.RefsetItem{}, err
	}
	active, err := parseBool(row[2])
	if err != nil {
		return component.RefsetItem{}, err
	}
	moduleID, err := parseID(row[3])
	if err != nil {
		return component.RefsetItem{}, err
	}
	refsetID, err := parseID(row[4])
	if err != nil {
		return component.RefsetItem{}, err
	}
	referencedID, err := parseID(row[5])
	if err != nil {
		return component.RefsetItem{}, err
	}

	fields := make([]component.Field, len(pattern))
	names := fieldNamesFor(refsetName, pattern)
	for i, letter := range pattern {
		col := row[refsetHeaderColumns+i]
		name := names[i]
		switch letter {
		case 'c':
			v, err := parseID(col)
			if err != nil {
				return component.RefsetItem{}, fmt.Errorf("refset field %s: %w", name, err)
			}
			fields[i] = component.Field{Name: name, Kind: component.FieldConcept, Concept: v}
		case 'i':
			v, err := strconv.ParseInt(col, 10, 32)
			if err != nil {
				return component.RefsetItem{}, fmt.Errorf("refset field %s: %w", name, err)
			}
			fields[i] = component.Field{Name: name, Kind: component.FieldInt, Int: int32(v)}
		case 's':
			fields[i] = component.Field{Name: name, Kind: component.FieldString, Str: col}
		default:
			return component.RefsetItem{}, fmt.Errorf("unknown refset pattern letter %q", letter)
		}
	}

	itemID, err := identifier.ParseItemID(row[0])
	if err != nil {
		return component.RefsetItem{}, err
	}
	return component.RefsetItem{
		ID:                    itemID,
		EffectiveTime:         et,
		Active:                active,
		ModuleID:              moduleID,
		RefsetID:              refsetID,
		ReferencedComponentID: referencedID,
		Pattern:               pattern,
		Fields:                fields,
	}, nil
}

func fieldNamesFor(refsetName, pattern string) []string {
	if names, ok := knownFieldNames(refsetName, len(pattern)); ok {
		return names
	}
	names := make([]string, len(pattern))
	for i := range names {
		names[i] = fmt.Sprintf("field%d", i+1)
	}
	return names
}

// knownFieldNames resolves refsetName against the well-known layouts: an
// exact match first, then the longest known name the filename's name starts
// with (so "MRCMAttributeDomainInternational" resolves to
// "MRCMAttributeDomain"). A layout only applies when its column count
// matches the pattern.
func knownFieldNames(refsetName string, columns int) ([]string, bool) {
	specs, ok := namedRefsetFields[refsetName]
	if !ok || len(specs) != columns {
		specs = nil
		best := 0
		for name, s := range namedRefsetFields {
			if len(name) > best && len(s) == columns && strings.HasPrefix(refsetName, name) {
				best = len(name)
				specs = s
			}
		}
		if specs == nil {
			return nil, false
		}
	}
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	return names, true
}
