package importer

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/eldrix/snomed-engine/rf2"
	"github.com/eldrix/snomed-engine/store"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestImportEndToEnd(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "sct2_Concept_Snapshot_INT_20240101.txt",
		"id\teffectiveTime\tactive\tmoduleId\tdefinitionStatusId\n"+
			"24700007\t20020131\t1\t900000000000207008\t900000000000074008\n"+
			"6118003\t20020131\t1\t900000000000207008\t900000000000074008\n")
	writeFile(t, root, "sct2_Description_Snapshot-en_INT_20240101.txt",
		"id\teffectiveTime\tactive\tmoduleId\tconceptId\tlanguageCode\ttypeId\tterm\tcaseSignificanceId\n"+
			"84923010\t20020131\t1\t900000000000207008\t24700007\ten\t900000000000003001\tMultiple sclerosis (disorder)\t900000000000448009\n")
	writeFile(t, root, "sct2_Relationship_Snapshot_INT_20240101.txt",
		"id\teffectiveTime\tactive\tmoduleId\tsourceId\tdestinationId\trelationshipGroup\ttypeId\tcharacteristicTypeId\tmodifierId\n"+
			"123456029\t20020131\t1\t900000000000207008\t24700007\t6118003\t0\t116680003\t900000000000011006\t900000000000451002\n")
	writeFile(t, root, "der2_sRefset_SimpleMapSnapshot_INT_20240101.txt",
		"id\teffectiveTime\tactive\tmoduleId\trefsetId\treferencedComponentId\tmapTarget\n"+
			"bba5806d-8d8e-5295-ac6a-962b67c8ed50\t20040131\t1\t999000011000000103\t447562003\t24700007\tG35\n")
	writeFile(t, root, "der2_cRefset_AssociationReferenceSnapshot_INT_20240101.txt",
		"id\teffectiveTime\tactive\tmoduleId\trefsetId\treferencedComponentId\ttargetComponentId\n"+
			"bba5806d-8d8e-5295-ac6a-962b67c8ed51\t20040131\t1\t900000000000207008\t900000000000527005\t192928003\t24700007\n")

	s, err := store.Open(filepath.Join(t.TempDir(), "db"), false)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	im := New(s, log.New(os.Stderr, "", 0))
	if err := im.Import(context.Background(), root); err != nil {
		t.Fatal(err)
	}

	st, err := store.Stats(s)
	if err != nil {
		t.Fatal(err)
	}
	if st.Concepts != 2 || st.Descriptions != 1 || st.Relationships != 1 || st.RefsetItems != 2 {
		t.Errorf("unexpected stats: %+v", st)
	}
	if len(st.Refsets) != 2 {
		t.Errorf("expected 2 installed refsets, got %+v", st.Refsets)
	}

	// the association file's field names come from the real filename-derived
	// refset name, so the target survives under "targetComponentId"
	items, err := store.ItemsForComponent(s, 192928003, 900000000000527005)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ConceptField("targetComponentId") != 24700007 {
		t.Errorf("expected association to 24700007, got %+v", items)
	}
}

func TestImportAbortsOnMalformedRow(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "sct2_Concept_Snapshot_INT_20240101.txt",
		"id\teffectiveTime\tactive\tmoduleId\tdefinitionStatusId\n"+
			"24700007\t20020131\t1\t900000000000207008\t900000000000074008\n"+
			"24700008\t20020131\t1\t900000000000207008\t900000000000074008\n") // bad check digit

	s, err := store.Open(filepath.Join(t.TempDir(), "db"), false)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	im := New(s, log.New(os.Stderr, "", 0))
	err = im.Import(context.Background(), root)
	var parseErr *rf2.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected a ParseError, got %v", err)
	}
	if parseErr.Line != 3 {
		t.Errorf("expected the failure reported against line 3, got %d", parseErr.Line)
	}
}

func TestScanClassifiesFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "sct2_Concept_Snapshot_INT_20240101.txt", "id\n")
	writeFile(t, root, "der2_Refset_SimpleSnapshot_INT_20240101.txt", "id\n")
	writeFile(t, root, "sct2_Concept_Delta_INT_20240101.txt", "id\n") // not importable

	files, err := scan(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(files.core) != 1 || len(files.refset) != 1 {
		t.Errorf("unexpected classification: %+v", files)
	}
}
