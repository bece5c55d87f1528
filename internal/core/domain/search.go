package domain

// ResultMetadata is the caller-facing subset of vector metadata. Missing
// fields stay empty strings.
type ResultMetadata struct {
	Case     string `json:"case"`
	Year     string `json:"year"`
	Court    string `json:"court"`
	Citation string `json:"citation"`
}

type SearchResult struct {
	Content  string         `json:"content"`
	Metadata ResultMetadata `json:"metadata"`
	Score    float64        `json:"similarity_score"`
}

// SearchResponse is the cached unit: one fully shaped answer for a
// (query, topK) pair.
type SearchResponse struct {
	Results        []SearchResult `json:"results"`
	TotalResults   int            `json:"total_results"`
	ProcessingTime string         `json:"processing_time"`
}

// ResultFromMetadata shapes one stored match into the caller-facing result.
// The chunk content travels inside vector metadata under "content".
func ResultFromMetadata(meta map[string]string, score float64) SearchResult {
	return SearchResult{
		Content: meta["content"],
		Metadata: ResultMetadata{
			Case:     meta["case"],
			Year:     meta["year"],
			Court:    meta["court"],
			Citation: meta["citation"],
		},
		Score: score,
	}
}

type IndexStats struct {
	TotalVectorCount int64   `json:"total_vector_count"`
	IndexFullness    float64 `json:"index_fullness"`
}

type HealthStatus struct {
	Status         string `json:"status"`
	Error          string `json:"error,omitempty"`
	CacheSize      int    `json:"cache_size"`
	AvailableSlots int64  `json:"available_slots"`
}
