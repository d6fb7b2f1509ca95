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

// Package component defines the RF2 component types shared by the store,
// importer and search indices: concepts, descriptions, relationships,
// concrete values and reference set items.
//
// Reference set items are modelled as a tagged variant: a fixed 6-column
// header plus a Pattern string (e.g. "ccs") and a slice of decoded Fields,
// rather than one Go struct per refset shape. The pattern-string is itself
// data, and the decoder is (pattern, row) -> fields. See rf2.ParseRefsetRow.
package component

import "time"

// Metadata concept identifiers used throughout the domain (a small, fixed
// subset of the SNOMED CT metadata hierarchy needed to interpret records).
const (
	IsA = 116680003

	Primitive = 900000000000074008
	Defined   = 900000000000073002

	FullySpecifiedName = 900000000000003001
	Synonym            = 900000000000013009
	Definition         = 900000000000550004

	EntireTermCaseSensitive       = 900000000000017005
	EntireTermCaseInsensitive     = 900000000000448009
	InitialCharacterCaseSensitive = 900000000000020002

	Acceptable = 900000000000549004
	Preferred  = 900000000000548007

	RefsetDescriptorRefset = 900000000000456007

	// Historical association reference sets, all descendants of the
	// historical association root.
	HistoricalAssociationRoot = 900000000000522004
	SameAsAssociation         = 900000000000527005
	PossiblyEquivalentTo      = 900000000000523009
	ReplacedByAssociation     = 900000000000526001
	WasAAssociation           = 900000000000528000
	MovedToAssociation        = 900000000000524003
	MovedFromAssociation      = 900000000000525002
	AlternativeAssociation    = 900000000000530003
	ReferToAssociation        = 900000000000531004

	ModuleDependencyRefset = 900000000000534007
	CoreModule             = 900000000000207008
	ModelModule            = 900000000000012004

	SnomedRoot = 138875005
)

// Concept represents a SNOMED CT concept. Only the latest version observed
// across all imported files is retained (snapshot semantics).
type Concept struct {
	ID                 int64
	EffectiveTime       time.Time
	Active             bool
	ModuleID           int64
	DefinitionStatusID int64
}

// IsPrimitive reports whether the concept is primitive rather than sufficiently defined.
func (c *Concept) IsPrimitive() bool { return c.DefinitionStatusID == Primitive }

// Description describes a concept: its fully specified name, a synonym, or a definition.
type Description struct {
	ID               int64
	EffectiveTime    time.Time
	Active           bool
	ModuleID         int64
	ConceptID        int64
	LanguageCode     string
	TypeID           int64
	Term             string
	CaseSignificance int64
}

// IsFullySpecifiedName reports whether this description is the FSN.
func (d *Description) IsFullySpecifiedName() bool { return d.TypeID == FullySpecifiedName }

// IsSynonym reports whether this description is a synonym (potentially preferred).
func (d *Description) IsSynonym() bool { return d.TypeID == Synonym }

// Relationship defines a typed directed edge between two concepts.
type Relationship struct {
	ID                   int64
	EffectiveTime        time.Time
	Active               bool
	ModuleID             int64
	SourceID             int64
	DestinationID        int64
	RelationshipGroup    int32
	TypeID               int64
	CharacteristicTypeID int64
	ModifierID           int64
}

// ConcreteValue is analogous to Relationship but carries a literal value
// rather than a destination concept (RF2 RelationshipConcreteValues rows).
type ConcreteValue struct {
	ID                   int64
	EffectiveTime        time.Time
	Active               bool
	ModuleID             int64
	SourceID             int64
	Value                string
	RelationshipGroup    int32
	TypeID               int64
	CharacteristicTypeID int64
	ModifierID           int64
}

// FieldKind identifies the decoded type of one extra refset column, per the
// pattern letter that produced it ('c' concept id, 'i' integer, 's' string).
type FieldKind byte

// Field kinds, named after the filename-pattern letters that produce them.
const (
	FieldConcept FieldKind = 'c'
	FieldInt     FieldKind = 'i'
	FieldString  FieldKind = 's'
)

// Field is one decoded extra column of a reference set item.
type Field struct {
	Name string
	Kind FieldKind
	// Concept/Int hold the decoded numeric value when Kind is FieldConcept
	// or FieldInt; Str holds the raw column text when Kind is FieldString.
	Concept int64
	Int     int32
	Str     string
}

// RefsetItem is a single member of a reference set. All refsets share the
// 6-column header; Pattern together with Fields reifies the extra columns
// particular to the refset's shape (Simple, Language, Simple/Complex Map, …).
type RefsetItem struct {
	ID                    string // UUID
	EffectiveTime         time.Time
	Active                bool
	ModuleID              int64
	RefsetID              int64
	ReferencedComponentID int64

	Pattern string  // e.g. "c", "i", "ccsccs" — see rf2.Descriptor.Pattern
	Fields  []Field // decoded per Pattern, in column order
}

// Field looks up a decoded field by name, returning ok=false if absent.
func (r *RefsetItem) Field(name string) (Field, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// StringField returns the named string-typed field's value, or "" if absent.
func (r *RefsetItem) StringField(name string) string {
	f, ok := r.Field(name)
	if !ok || f.Kind != FieldString {
		return ""
	}
	return f.Str
}

// IntField returns the named integer-typed field's value, or 0 if absent.
func (r *RefsetItem) IntField(name string) int32 {
	f, ok := r.Field(name)
	if !ok || f.Kind != FieldInt {
		return 0
	}
	return f.Int
}

// ConceptField returns the named concept-typed field's value, or 0 if absent.
func (r *RefsetItem) ConceptField(name string) int64 {
	f, ok := r.Field(name)
	if !ok || f.Kind != FieldConcept {
		return 0
	}
	return f.Concept
}

// FieldSpec names one extra refset column and its decoded kind.
type FieldSpec struct {
	Name string
	Kind FieldKind
}

// Well-known refset field layouts, named by release filename pattern. Each
// entry is the ordered list of (name, kind) pairs for the extra columns
// beyond the fixed 6-column header.
var (
	FieldsSimple      = []FieldSpec{}
	FieldsAssociation = []FieldSpec{{"targetComponentId", FieldConcept}}
	FieldsLanguage    = []FieldSpec{{"acceptabilityId", FieldConcept}}
	FieldsRefsetDescriptor = []FieldSpec{
		{"attributeDescriptionId", FieldConcept},
		{"attributeTypeId", FieldConcept},
		{"attributeOrder", FieldInt},
	}
	FieldsSimpleMap = []FieldSpec{{"mapTarget", FieldString}}
	FieldsComplexMap = []FieldSpec{
		{"mapGroup", FieldInt},
		{"mapPriority", FieldInt},
		{"mapRule", FieldString},
		{"mapAdvice", FieldString},
		{"mapTarget", FieldString},
		{"correlationId", FieldConcept},
	}
	FieldsExtendedMap = append(append([]FieldSpec{}, FieldsComplexMap...), FieldSpec{"mapCategoryId", FieldConcept})
	FieldsAttributeValue = []FieldSpec{{"valueId", FieldConcept}}
	FieldsOWLExpression   = []FieldSpec{{"owlExpression", FieldString}}
	FieldsModuleDependency = []FieldSpec{
		{"sourceEffectiveTime", FieldString},
		{"targetEffectiveTime", FieldString},
	}
	FieldsMRCMDomain = []FieldSpec{
		{"domainConstraint", FieldString},
		{"parentDomain", FieldString},
		{"proximalPrimitiveConstraint", FieldString},
		{"proximalPrimitiveRefinement", FieldString},
		{"domainTemplateForPrecoordination", FieldString},
		{"domainTemplateForPostcoordination", FieldString},
		{"guideURL", FieldString},
	}
	FieldsMRCMAttributeDomain = []FieldSpec{
		{"domainId", FieldConcept},
		{"grouped", FieldString},
		{"attributeCardinality", FieldString},
		{"attributeInGroupCardinality", FieldString},
		{"ruleStrengthId", FieldConcept},
		{"contentTypeId", FieldConcept},
	}
	FieldsMRCMAttributeRange = []FieldSpec{
		{"rangeConstraint", FieldString},
		{"attributeRule", FieldString},
		{"ruleStrengthId", FieldConcept},
		{"contentTypeId", FieldConcept},
	}
	FieldsMRCMModuleScope = []FieldSpec{{"mrcmRuleRefsetId", FieldConcept}}
)
