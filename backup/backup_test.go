package backup

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

// writeBackup lays out a minimal valid export under a temp dir.
func writeBackup(t *testing.T, plurkFiles, responseFiles map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for _, d := range []string{PlurksDir(root), ResponsesDir(root)} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(root, "data", "indexes.js"), []byte("BackupData.indexes=[];"), 0o644); err != nil {
		t.Fatal(err)
	}
	for name, body := range plurkFiles {
		if err := os.WriteFile(filepath.Join(PlurksDir(root), name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	for name, body := range responseFiles {
		if err := os.WriteFile(filepath.Join(ResponsesDir(root), name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

// WHAT: validates the required export layout.
// WHY: a wrong path should fail fast with a structural error, not mid-import.
func TestValidateDir(t *testing.T) {
	root := writeBackup(t, nil, nil)
	if err := ValidateDir(root); err != nil {
		t.Fatalf("valid dir rejected: %v", err)
	}
	if err := ValidateDir(t.TempDir()); err == nil {
		t.Fatal("empty dir accepted")
	}
}

// WHAT: month range filtering on plurk files.
// WHY: partial imports select by "YYYY-MM" keys against YYYY_MM.js stems.
func TestPlurkFilesRange(t *testing.T) {
	root := writeBackup(t, map[string]string{
		"2008_12.js": `BackupData.plurks["2008_12"]=[];`,
		"2009_01.js": `BackupData.plurks["2009_01"]=[];`,
		"2009_02.js": `BackupData.plurks["2009_02"]=[];`,
	}, nil)

	all, err := PlurkFiles(PlurksDir(root), "", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("want 3 files, got %d", len(all))
	}

	some, err := PlurkFiles(PlurksDir(root), "2009-01", "2009-01")
	if err != nil {
		t.Fatal(err)
	}
	if len(some) != 1 || filepath.Base(some[0]) != "2009_01.js" {
		t.Fatalf("range filter wrong: %v", some)
	}
}

// WHAT: response files are selected by plurk base id, others ignored.
func TestResponseFiles(t *testing.T) {
	root := writeBackup(t, nil, map[string]string{
		"100o22.js": `BackupData.responses["100o22"]=[];`,
		"zzz.js":    `BackupData.responses["zzz"]=[];`,
	})
	files, err := ResponseFiles(ResponsesDir(root), map[string]bool{"100o22": true})
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || filepath.Base(files[0]) != "100o22.js" {
		t.Fatalf("want only 100o22.js, got %v", files)
	}
}

func TestMonthKey(t *testing.T) {
	got, err := MonthKey("200812")
	if err != nil || got != "2008-12" {
		t.Fatalf("MonthKey(200812) = %q, %v", got, err)
	}
	for _, bad := range []string{"2008", "2008-12", "200813", "20081a"} {
		if _, err := MonthKey(bad); err == nil {
			t.Errorf("MonthKey(%q) accepted", bad)
		}
	}
}

// WHAT: BaseIDs aggregates the base ids across month files.
func TestBaseIDs(t *testing.T) {
	root := writeBackup(t, map[string]string{
		"2008_12.js": `BackupData.plurks["2008_12"]=[{"id": 1}, {"id": 36}];`,
	}, nil)
	files, err := PlurkFiles(PlurksDir(root), "", "")
	if err != nil {
		t.Fatal(err)
	}
	ids, err := NewParser(slog.Default()).BaseIDs(files)
	if err != nil {
		t.Fatal(err)
	}
	if !ids["1"] || !ids["10"] {
		t.Fatalf("want base ids {1, 10}, got %v", ids)
	}
}
