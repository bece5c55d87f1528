package extractor

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/lexgrove/caselaw-search/internal/core/ports"
)

// Registry maps lowercase file extensions to text extractors. Files with an
// unregistered extension are not part of the corpus.
type Registry struct {
	byExt map[string]ports.TextExtractor
}

func NewRegistry() *Registry {
	pdf := NewPDF()
	plain := NewPlaintext()
	return &Registry{
		byExt: map[string]ports.TextExtractor{
			".pdf": pdf,
			".txt": plain,
			".md":  plain,
		},
	}
}

func (r *Registry) ForFile(path string) (ports.TextExtractor, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	e, ok := r.byExt[ext]
	return e, ok
}

func (r *Registry) Extensions() []string {
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}
