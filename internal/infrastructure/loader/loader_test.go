package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/lexgrove/caselaw-search/internal/infrastructure/extractor"
)

type catalogFake struct {
	records map[string]map[string]string
	err     error
}

func (f *catalogFake) Load(context.Context) (map[string]map[string]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func writeCorpusFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write corpus file: %v", err)
	}
}

func TestLoadAllPairsDocumentsWithCatalogEntries(t *testing.T) {
	dir := t.TempDir()
	writeCorpusFile(t, dir, "smith.txt", "the appellant contends...")
	writeCorpusFile(t, dir, "blake.txt", "the respondent argues...")
	writeCorpusFile(t, dir, "ignored.bin", "binary")

	cat := &catalogFake{records: map[string]map[string]string{
		"smith.txt": {"filename": "smith.txt", "case": "Smith v. Jones"},
		"blake.txt": {"filename": "blake.txt", "case": "Rex v. Blake"},
	}}

	l := New(dir, cat, extractor.NewRegistry(), 2, nil)
	docs, err := l.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}

	byName := map[string]bool{}
	for _, d := range docs {
		if byName[d.Filename] {
			t.Fatalf("document %s appeared twice", d.Filename)
		}
		byName[d.Filename] = true
		if d.Metadata["filename"] != d.Filename {
			t.Fatalf("metadata filename mismatch for %s", d.Filename)
		}
		if d.Text == "" {
			t.Fatalf("document %s has no text", d.Filename)
		}
	}
}

func TestLoadAllSkipsDocumentsWithoutCatalogEntry(t *testing.T) {
	dir := t.TempDir()
	writeCorpusFile(t, dir, "known.txt", "text")
	writeCorpusFile(t, dir, "unknown.txt", "text")

	cat := &catalogFake{records: map[string]map[string]string{
		"known.txt": {"filename": "known.txt"},
	}}

	docs, err := New(dir, cat, extractor.NewRegistry(), 3, nil).LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(docs) != 1 || docs[0].Filename != "known.txt" {
		t.Fatalf("expected only the cataloged document, got %+v", docs)
	}
}

func TestLoadAllSkipsUnreadableDocuments(t *testing.T) {
	dir := t.TempDir()
	writeCorpusFile(t, dir, "good.txt", "fine")
	// Invalid UTF-8 makes the plaintext extractor fail for this file only.
	if err := os.WriteFile(filepath.Join(dir, "bad.txt"), []byte{0xff, 0xfe}, 0o644); err != nil {
		t.Fatalf("write corpus file: %v", err)
	}

	cat := &catalogFake{records: map[string]map[string]string{
		"good.txt": {"filename": "good.txt"},
		"bad.txt":  {"filename": "bad.txt"},
	}}

	docs, err := New(dir, cat, extractor.NewRegistry(), 2, nil).LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(docs) != 1 || docs[0].Filename != "good.txt" {
		t.Fatalf("expected the readable document only, got %+v", docs)
	}
}

func TestLoadAllPropagatesCatalogFailure(t *testing.T) {
	cat := &catalogFake{err: os.ErrNotExist}
	_, err := New(t.TempDir(), cat, extractor.NewRegistry(), 1, nil).LoadAll(context.Background())
	if err == nil {
		t.Fatalf("expected catalog failure to abort the load")
	}
}
