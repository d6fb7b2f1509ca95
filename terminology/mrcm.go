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
	"sync"

	"github.com/eldrix/snomed-engine/store"
)

// MRCM domain reference sets: the international edition publishes the MRCM
// domain model as refsets whose members are the domain concepts themselves.
const (
	mrcmDomainInternational = 723560006
	mrcmDomainRoot          = 723589008
)

// mrcmClassifier answers which MRCM domains apply to a concept. Domain
// membership is derived lazily from the installed MRCM domain refsets and
// then answered by subsumption: a concept belongs to every domain concept
// that subsumes it.
type mrcmClassifier struct {
	svc  *Svc
	once sync.Once
	// domains lists the referenced components of every installed MRCM
	// domain refset.
	domains []int64
	loadErr error
}

func newMRCMClassifier(svc *Svc) *mrcmClassifier {
	return &mrcmClassifier{svc: svc}
}

func (mc *mrcmClassifier) load() {
	installed, err := store.InstalledRefsets(mc.svc.store)
	if err != nil {
		mc.loadErr = err
		return
	}
	for _, refsetID := range installed {
		if refsetID != mrcmDomainInternational {
			ok, err := store.IsA(mc.svc.store, refsetID, mrcmDomainRoot)
			if err != nil {
				mc.loadErr = err
				return
			}
			if !ok {
				continue
			}
		}
		members, err := mc.svc.members.QueryRefsetID(refsetID)
		if err != nil {
			mc.loadErr = err
			return
		}
		mc.domains = append(mc.domains, members...)
	}
}

// Domains returns the MRCM domain concepts that subsume conceptID.
func (mc *mrcmClassifier) Domains(conceptID int64) ([]int64, error) {
	mc.once.Do(mc.load)
	if mc.loadErr != nil {
		return nil, mc.loadErr
	}
	var out []int64
	for _, domain := range mc.domains {
		ok, err := store.IsA(mc.svc.store, conceptID, domain)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, domain)
		}
	}
	return out, nil
}

// MRCMDomains returns the MRCM domain concepts applicable to conceptID.
func (svc *Svc) MRCMDomains(conceptID int64) ([]int64, error) {
	return svc.mrcm.Domains(conceptID)
}
