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
	"context"
	"errors"
	"time"

	"github.com/eldrix/snomed-engine/component"
	"github.com/eldrix/snomed-engine/store"
)

// ModuleDependency is one edge of the module dependency graph, derived from
// the module dependency reference set: SourceModule, at SourceVersion,
// requires TargetModule at TargetVersion or later. Valid reports whether the
// installed distribution satisfies the requirement.
type ModuleDependency struct {
	SourceModule  int64
	TargetModule  int64
	SourceVersion time.Time
	TargetVersion time.Time
	Valid         bool
}

// ModuleDependencies derives the module dependency graph from the module
// dependency refset, validating each edge against the installed version of
// its target module. When imputeModelVersion is set, the Model module, whose
// own version often lags its content, is imputed to the Core module's
// version; disable it for strict RF2 semantics.
func (svc *Svc) ModuleDependencies(imputeModelVersion bool) ([]ModuleDependency, error) {
	var deps []ModuleDependency
	err := store.IterateRefsetItems(svc.store, func(item component.RefsetItem) error {
		if !item.Active || item.RefsetID != component.ModuleDependencyRefset {
			return nil
		}
		dep := ModuleDependency{
			SourceModule: item.ModuleID,
			TargetModule: item.ReferencedComponentID,
		}
		if t, err := time.Parse("20060102", item.StringField("sourceEffectiveTime")); err == nil {
			dep.SourceVersion = t
		}
		if t, err := time.Parse("20060102", item.StringField("targetEffectiveTime")); err == nil {
			dep.TargetVersion = t
		}
		deps = append(deps, dep)
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i := range deps {
		installed, err := svc.moduleVersion(deps[i].TargetModule, imputeModelVersion)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		deps[i].Valid = !deps[i].TargetVersion.After(installed)
	}
	return deps, nil
}

// moduleVersion reports the installed version of a module: the effectiveTime
// of the module's own concept. The Model module imputes the Core module's
// version when imputation is enabled, reflecting distribution practice.
func (svc *Svc) moduleVersion(moduleID int64, impute bool) (time.Time, error) {
	if impute && moduleID == component.ModelModule {
		moduleID = component.CoreModule
	}
	c, err := svc.Concept(moduleID)
	if err != nil {
		return time.Time{}, err
	}
	return c.EffectiveTime, nil
}

// StatusOptions selects the optional sections of a Status report.
type StatusOptions struct {
	Counts  bool // include component counts, a full store scan
	Refsets bool // include the installed refset list
	Modules bool // include the installed module list
}

// Release identifies one imported release: the root concept's module and
// effective time, with its preferred term for display.
type Release struct {
	ModuleID      int64
	EffectiveTime time.Time
	Term          string
}

// Status summarises an opened database.
type Status struct {
	Releases   []Release
	Locales    []int64 // installed language refset ids
	Statistics *store.Statistics
	Refsets    []int64
	Modules    map[int64]string // module id -> preferred term
}

// Status reports the releases, installed locales and, optionally, component
// counts, installed refsets and modules of the opened database.
func (svc *Svc) Status(opts StatusOptions) (*Status, error) {
	st := &Status{Locales: svc.locale.InstalledRefsetIDs()}

	if root, err := svc.Concept(component.SnomedRoot); err == nil {
		release := Release{ModuleID: root.ModuleID, EffectiveTime: root.EffectiveTime}
		if d, ok, err := localePreferred(svc, component.SnomedRoot, st.Locales); err == nil && ok {
			release.Term = d.Term
		}
		st.Releases = append(st.Releases, release)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if opts.Counts {
		stats, err := store.Stats(svc.store)
		if err != nil {
			return nil, err
		}
		st.Statistics = &stats
	}
	if opts.Refsets {
		refsets, err := store.InstalledRefsets(svc.store)
		if err != nil {
			return nil, err
		}
		st.Refsets = refsets
	}
	if opts.Modules {
		modules, err := svc.installedModules()
		if err != nil {
			return nil, err
		}
		st.Modules = modules
	}
	return st, nil
}

// installedModules collects the distinct module ids referenced by concepts,
// naming each by its preferred term where one resolves.
func (svc *Svc) installedModules() (map[int64]string, error) {
	modules := make(map[int64]string)
	ch := make(chan component.Concept, 512)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for c := range ch {
			if _, ok := modules[c.ModuleID]; !ok {
				modules[c.ModuleID] = ""
			}
		}
	}()
	if err := svc.StreamAllConcepts(context.Background(), ch); err != nil {
		return nil, err
	}
	<-done
	locales := svc.locale.InstalledRefsetIDs()
	for moduleID := range modules {
		if d, ok, err := localePreferred(svc, moduleID, locales); err == nil && ok {
			modules[moduleID] = d.Term
		}
	}
	return modules, nil
}
