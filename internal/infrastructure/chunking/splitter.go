package chunking

import (
	"fmt"

	"github.com/lexgrove/caselaw-search/internal/core/domain"
)

// Splitter cuts text into fixed-size windows that overlap by Overlap runes.
// Offsets in chunk metadata are rune offsets into the original text.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, domain.WrapError(domain.ErrConfiguration, "chunking",
			fmt.Errorf("chunk size must be positive, got %d", chunkSize))
	}
	if overlap < 0 {
		return nil, domain.WrapError(domain.ErrConfiguration, "chunking",
			fmt.Errorf("overlap must be non-negative, got %d", overlap))
	}
	if overlap >= chunkSize {
		return nil, domain.WrapError(domain.ErrConfiguration, "chunking",
			fmt.Errorf("overlap %d must be smaller than chunk size %d", overlap, chunkSize))
	}
	return &Splitter{ChunkSize: chunkSize, Overlap: overlap}, nil
}

func (s *Splitter) Split(text string, metadata map[string]string) ([]domain.Chunk, error) {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}

	filename := metadata["filename"]
	step := s.ChunkSize - s.Overlap

	out := make([]domain.Chunk, 0, len(runes)/step+1)
	for start, index := 0, 0; start < len(runes); start, index = start+step, index+1 {
		end := start + s.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}

		meta := make(map[string]string, len(metadata))
		for k, v := range metadata {
			meta[k] = v
		}

		out = append(out, domain.Chunk{
			ID:       domain.ChunkID(filename, index),
			Content:  string(runes[start:end]),
			Metadata: meta,
			Index:    index,
			Start:    start,
			End:      end,
			First:    index == 0,
		})

		if end == len(runes) {
			break
		}
	}
	return out, nil
}
