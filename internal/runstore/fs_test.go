package runstore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveArtifact_NeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	name := "minería-Lima-2026-03-09.xlsx"

	first, err := SaveArtifact(dir, name, []byte("one"), ExportRecord{Category: "minería", Region: "Lima", Rows: 2})
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	second, err := SaveArtifact(dir, name, []byte("two"), ExportRecord{Category: "minería", Region: "Lima", Rows: 3})
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	third, err := SaveArtifact(dir, name, []byte("three"), ExportRecord{})
	if err != nil {
		t.Fatalf("third save: %v", err)
	}

	if filepath.Base(first) != name {
		t.Fatalf("unexpected first path %s", first)
	}
	if filepath.Base(second) != "minería-Lima-2026-03-09 (1).xlsx" {
		t.Fatalf("unexpected second path %s", second)
	}
	if filepath.Base(third) != "minería-Lima-2026-03-09 (2).xlsx" {
		t.Fatalf("unexpected third path %s", third)
	}

	data, err := os.ReadFile(first)
	if err != nil {
		t.Fatalf("read first: %v", err)
	}
	if string(data) != "one" {
		t.Fatalf("first artifact was overwritten: %q", data)
	}

	records, err := LoadExportIndex(dir)
	if err != nil {
		t.Fatalf("load index: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 index records, got %d", len(records))
	}
	if records[1].File != filepath.Base(second) || records[1].Rows != 3 || records[1].Bytes != 3 {
		t.Fatalf("unexpected record: %+v", records[1])
	}

	if _, err := os.Stat(filepath.Join(dir, dirLockName)); !os.IsNotExist(err) {
		t.Fatalf("expected lock to be released, stat err=%v", err)
	}
}

func TestSaveArtifact_FailsWhileLocked(t *testing.T) {
	dir := t.TempDir()
	lock, err := AcquireDirLock(dir)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer func() { _ = lock.Release() }()

	if _, err := SaveArtifact(dir, "a.xlsx", []byte("x"), ExportRecord{}); err == nil {
		t.Fatal("expected locked directory error")
	}
}

func TestUniquePath_RejectsPathNames(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"", "../escape.xlsx", "sub/dir.xlsx"} {
		if _, err := UniquePath(dir, name); err == nil {
			t.Fatalf("expected error for %q", name)
		}
	}
}

func TestLoadExportIndex_MissingIsEmpty(t *testing.T) {
	records, err := LoadExportIndex(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}

func TestWriteBytes_ReplacesAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "file.json")
	if err := WriteJSON(path, map[string]int{"n": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := WriteJSON(path, map[string]int{"n": 2}); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	var got map[string]int
	if err := ReadJSON(path, &got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got["n"] != 2 {
		t.Fatalf("unexpected content %+v", got)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %d entries", len(entries))
	}
}
