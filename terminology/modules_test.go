package terminology

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eldrix/snomed-engine/component"
	"github.com/eldrix/snomed-engine/store"
)

const ukModule = 999000011000000103

func newModuleFixture(t *testing.T) *Svc {
	t.Helper()
	svc, err := Open(t.TempDir(), withWritable())
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	core := concept(component.CoreModule, true)
	core.EffectiveTime = time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)
	uk := concept(ukModule, true)
	uk.EffectiveTime = time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.PutConcepts(svc.store, []component.Concept{core, uk}))

	items := []component.RefsetItem{
		{
			ID: "55555555-0000-0000-0000-000000000001", EffectiveTime: fixtureTime, Active: true,
			ModuleID: ukModule, RefsetID: component.ModuleDependencyRefset,
			ReferencedComponentID: component.CoreModule, Pattern: "ss",
			Fields: []component.Field{
				{Name: "sourceEffectiveTime", Kind: component.FieldString, Str: "20230601"},
				{Name: "targetEffectiveTime", Kind: component.FieldString, Str: "20230401"},
			},
		},
		{
			ID: "55555555-0000-0000-0000-000000000002", EffectiveTime: fixtureTime, Active: true,
			ModuleID: ukModule, RefsetID: component.ModuleDependencyRefset,
			ReferencedComponentID: component.ModelModule, Pattern: "ss",
			Fields: []component.Field{
				{Name: "sourceEffectiveTime", Kind: component.FieldString, Str: "20230601"},
				{Name: "targetEffectiveTime", Kind: component.FieldString, Str: "20230401"},
			},
		},
	}
	require.NoError(t, store.PutRefsetItems(svc.store, items))
	return svc
}

func TestModuleDependencies(t *testing.T) {
	svc := newModuleFixture(t)
	deps, err := svc.ModuleDependencies(true)
	require.NoError(t, err)
	require.Len(t, deps, 2)
	for _, dep := range deps {
		require.Equal(t, int64(ukModule), dep.SourceModule)
		// the Model module has no concept of its own in this fixture but
		// imputes to Core, so both dependencies validate
		require.True(t, dep.Valid, "dependency on %d should be valid", dep.TargetModule)
	}
}

func TestModuleDependenciesStrict(t *testing.T) {
	svc := newModuleFixture(t)
	deps, err := svc.ModuleDependencies(false)
	require.NoError(t, err)
	for _, dep := range deps {
		if dep.TargetModule == component.ModelModule {
			require.False(t, dep.Valid, "without imputation the Model module cannot validate")
		} else {
			require.True(t, dep.Valid)
		}
	}
}

func TestHistoryProfileRefsets(t *testing.T) {
	svc := newTestService(t)
	min, err := HistoryMin.RefsetIDs(svc)
	require.NoError(t, err)
	require.Equal(t, []int64{component.SameAsAssociation}, min)

	mod, err := HistoryMod.RefsetIDs(svc)
	require.NoError(t, err)
	require.Contains(t, mod, int64(component.ReplacedByAssociation))

	max, err := HistoryMax.RefsetIDs(svc)
	require.NoError(t, err)
	require.Equal(t, []int64{component.SameAsAssociation}, max) // the only installed association refset
}