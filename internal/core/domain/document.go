package domain

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// chunkNamespace seeds UUIDv5 chunk identifiers so that re-ingesting an
// unchanged corpus produces the same IDs run after run.
var chunkNamespace = uuid.MustParse("8a0e6147-2f3b-4d0c-9c5e-5b1f0c7d2ab4")

// Document pairs extracted text with its catalog metadata. It is a value
// object: created by the loader, never mutated afterwards.
type Document struct {
	Filename string
	Text     string
	Metadata map[string]string
}

// Chunk is one bounded window of a document's text.
type Chunk struct {
	ID       string
	Content  string
	Metadata map[string]string

	Index int
	Start int
	End   int
	First bool
}

// ChunkID derives a stable identifier from the document filename and the
// chunk's position in it.
func ChunkID(filename string, index int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(fmt.Sprintf("%s#%d", filename, index))).String()
}

// Vector is the unit stored in the vector index. Metadata carries the chunk
// metadata, position fields, the chunk content and a processing timestamp.
type Vector struct {
	ID       string            `json:"id"`
	Values   []float32         `json:"values"`
	Metadata map[string]string `json:"metadata"`
}

// VectorFromChunk builds the stored representation of an embedded chunk.
func VectorFromChunk(chunk Chunk, values []float32, processedAt time.Time) Vector {
	meta := make(map[string]string, len(chunk.Metadata)+6)
	for k, v := range chunk.Metadata {
		meta[k] = v
	}
	meta["content"] = chunk.Content
	meta["chunk_index"] = strconv.Itoa(chunk.Index)
	meta["chunk_start"] = strconv.Itoa(chunk.Start)
	meta["chunk_end"] = strconv.Itoa(chunk.End)
	meta["is_first_chunk"] = strconv.FormatBool(chunk.First)
	meta["processed_at"] = processedAt.UTC().Format(time.RFC3339)

	return Vector{
		ID:       chunk.ID,
		Values:   values,
		Metadata: meta,
	}
}

// RunStats summarizes one ingestion run.
type RunStats struct {
	DocumentsLoaded  int     `json:"documents_loaded"`
	ChunksCreated    int     `json:"chunks_created"`
	NewVectors       int     `json:"new_vectors_created"`
	BatchesProcessed int     `json:"batches_processed"`
	ElapsedSeconds   float64 `json:"elapsed_seconds"`
}
