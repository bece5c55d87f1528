package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/lexgrove/caselaw-search/internal/core/domain"
)

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestLoadJSONCatalogKeysByFilename(t *testing.T) {
	path := writeFixture(t, "metadata.json", `[
		{"filename": "smith-v-jones.pdf", "case": "Smith v. Jones", "year": 1998, "court": "Court of Appeal", "citation": "[1998] EWCA Civ 12"},
		{"case": "orphan record without filename"}
	]`)

	records, err := NewFileCatalog(path, nil).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 keyed record, got %d", len(records))
	}
	rec := records["smith-v-jones.pdf"]
	if rec == nil {
		t.Fatalf("expected record keyed by filename")
	}
	if rec["case"] != "Smith v. Jones" {
		t.Fatalf("unexpected case field %q", rec["case"])
	}
	if rec["year"] != "1998" {
		t.Fatalf("numeric fields must normalize to strings, got %q", rec["year"])
	}
}

func TestLoadYAMLCatalog(t *testing.T) {
	path := writeFixture(t, "metadata.yaml", `
- filename: rex-v-blake.pdf
  case: Rex v. Blake
  year: 2003
  court: High Court
  citation: "[2003] EWHC 44"
`)

	records, err := NewFileCatalog(path, nil).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	rec := records["rex-v-blake.pdf"]
	if rec == nil {
		t.Fatalf("expected yaml record keyed by filename")
	}
	if rec["court"] != "High Court" || rec["year"] != "2003" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestLoadRejectsUnsupportedFormat(t *testing.T) {
	path := writeFixture(t, "metadata.csv", "filename,case\n")
	_, err := NewFileCatalog(path, nil).Load(context.Background())
	if !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.json")
	if _, err := NewFileCatalog(path, nil).Load(context.Background()); err == nil {
		t.Fatalf("expected error for missing catalog file")
	}
}
