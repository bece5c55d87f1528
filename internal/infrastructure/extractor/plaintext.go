package extractor

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// Plaintext extracts UTF-8 text files verbatim.
type Plaintext struct{}

func NewPlaintext() *Plaintext {
	return &Plaintext{}
}

func (e *Plaintext) Extract(_ context.Context, path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read source document: %w", err)
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("file is not valid utf-8: %s", path)
	}
	return strings.TrimSpace(string(raw)), nil
}
