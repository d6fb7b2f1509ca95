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

// Package locale resolves RFC 3066 language priority lists against the set
// of language reference sets actually installed in a database, and uses the
// resulting ordered list to pick a concept's preferred term or fully
// specified name. A Resolver is built from whatever language refsets the
// imported distribution installed rather than a fixed list, so an extension
// distribution's dialects resolve without code changes.
package locale

import (
	"sort"

	"golang.org/x/text/language"

	"github.com/eldrix/snomed-engine/component"
	"github.com/eldrix/snomed-engine/store"
)

// Entry associates one language tag with the language reference set that
// carries acceptability judgements for it.
type Entry struct {
	Tag      language.Tag
	RefsetID int64
}

// wellKnown is the corpus of (tag, refset id) pairs a Resolver will offer to
// golang.org/x/text/language's matcher, restricted at Open time to whichever
// of these refsets are actually installed (see store.InstalledRefsets).
// These are the language reference sets distributed with the SNOMED CT
// International Edition and the UK clinical extension.
var wellKnown = []Entry{
	{language.BritishEnglish, 999001261000000100},
	{language.AmericanEnglish, 900000000000509007},
	{language.MustParse("en"), 900000000000508004},
	{language.French, 722131000},
	{language.Spanish, 450828004},
	{language.MustParse("da"), 554831000005107},
	{language.MustParse("sv"), 46011000052107},
	{language.MustParse("nl"), 31000146106},
}

// Resolver matches RFC 3066 language ranges to the ordered list of
// installed language reference set ids that best satisfy them.
type Resolver struct {
	installed     []Entry
	defaultLocale []int64
}

// Open builds a Resolver from the refsets installed in s. defaultLanguage is
// used by Match when fallback is requested and no range matches.
func Open(s store.Store, defaultLanguage language.Tag) (*Resolver, error) {
	ids, err := store.InstalledRefsets(s)
	if err != nil {
		return nil, err
	}
	installedSet := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		installedSet[id] = struct{}{}
	}

	var installed []Entry
	for _, e := range wellKnown {
		if _, ok := installedSet[e.RefsetID]; ok {
			installed = append(installed, e)
		}
	}
	sort.Slice(installed, func(i, j int) bool { return installed[i].RefsetID < installed[j].RefsetID })

	r := &Resolver{installed: installed}
	for _, e := range installed {
		if e.Tag == defaultLanguage || e.Tag.Parent() == defaultLanguage {
			r.defaultLocale = []int64{e.RefsetID}
			break
		}
	}
	return r, nil
}

// InstalledRefsetIDs returns every language refset id known to the resolver.
func (r *Resolver) InstalledRefsetIDs() []int64 {
	out := make([]int64, len(r.installed))
	for i, e := range r.installed {
		out[i] = e.RefsetID
	}
	return out
}

// Match parses languageRange (an Accept-Language-style priority list, e.g.
// "en-GB;q=0.9,fr;q=0.5") and returns the ordered list of installed language
// refset ids that best match it. A parse failure or empty range yields no
// match: "no match" is not an error, it returns an empty list unless
// fallback is requested, in which case the configured default locale is
// returned.
func (r *Resolver) Match(languageRange string, fallback bool) []int64 {
	tags, _, err := language.ParseAcceptLanguage(languageRange)
	if err != nil || len(tags) == 0 {
		if fallback {
			return r.defaultLocale
		}
		return nil
	}
	var out []int64
	seen := make(map[int64]struct{})
	add := func(refsetID int64) {
		if _, dup := seen[refsetID]; !dup {
			seen[refsetID] = struct{}{}
			out = append(out, refsetID)
		}
	}
	for _, want := range tags {
		// an exact tag match outranks a match on base language alone, so
		// "en-GB" prefers a British refset over an American one even when
		// both are installed
		for _, e := range r.installed {
			if e.Tag == want {
				add(e.RefsetID)
			}
		}
		for _, e := range r.installed {
			base, baseConf := e.Tag.Base()
			wantBase, wantConf := want.Base()
			if baseConf == language.No || wantConf == language.No {
				continue
			}
			if base == wantBase {
				add(e.RefsetID)
			}
		}
	}
	if len(out) == 0 && fallback {
		return r.defaultLocale
	}
	return out
}

// PreferredSynonym walks conceptID's active synonym descriptions and returns
// the first whose acceptability in any of langRefsetIDs (checked in order)
// is Preferred.
func PreferredSynonym(s store.Store, conceptID int64, langRefsetIDs []int64) (component.Description, bool, error) {
	return bestDescription(s, conceptID, component.Synonym, langRefsetIDs)
}

// FullySpecifiedName is analogous to PreferredSynonym but restricted to the
// concept's FSN description(s).
func FullySpecifiedName(s store.Store, conceptID int64, langRefsetIDs []int64) (component.Description, bool, error) {
	return bestDescription(s, conceptID, component.FullySpecifiedName, langRefsetIDs)
}

func bestDescription(s store.Store, conceptID, typeID int64, langRefsetIDs []int64) (component.Description, bool, error) {
	descs, err := store.DescriptionsForConcept(s, conceptID)
	if err != nil {
		return component.Description{}, false, err
	}
	for _, refsetID := range langRefsetIDs {
		for _, d := range descs {
			if !d.Active || d.TypeID != typeID {
				continue
			}
			items, err := store.ItemsForComponent(s, d.ID, refsetID)
			if err != nil {
				return component.Description{}, false, err
			}
			for _, item := range items {
				if item.Active && item.ConceptField("acceptabilityId") == component.Preferred {
					return d, true, nil
				}
			}
		}
	}
	return component.Description{}, false, nil
}
