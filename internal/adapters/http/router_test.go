package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lexgrove/caselaw-search/internal/core/domain"
)

type ingestorFake struct {
	stats     domain.RunStats
	index     domain.IndexStats
	runErr    error
	statusErr error
	runs      int
}

func (f *ingestorFake) Run(context.Context) (domain.RunStats, error) {
	f.runs++
	return f.stats, f.runErr
}

func (f *ingestorFake) Status(context.Context) (domain.IndexStats, error) {
	return f.index, f.statusErr
}

type searcherFake struct {
	response *domain.SearchResponse
	health   domain.HealthStatus
	err      error
	query    string
	topK     int
}

func (f *searcherFake) Search(_ context.Context, query string, topK int) (*domain.SearchResponse, error) {
	f.query = query
	f.topK = topK
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func (f *searcherFake) HealthCheck(context.Context) domain.HealthStatus {
	return f.health
}

type queueFake struct {
	reasons []string
	err     error
}

func (f *queueFake) PublishReindexRequested(_ context.Context, reason string) error {
	if f.err != nil {
		return f.err
	}
	f.reasons = append(f.reasons, reason)
	return nil
}

func (f *queueFake) SubscribeReindexRequested(context.Context, func(context.Context, string) error) error {
	return nil
}

func newTestRouter(ingestor *ingestorFake, searcher *searcherFake, queue *queueFake) http.Handler {
	// A typed nil would make the interface non-nil inside the router.
	if queue == nil {
		return NewRouter(ingestor, searcher, nil, nil, "api").Handler()
	}
	return NewRouter(ingestor, searcher, queue, nil, "api").Handler()
}

func TestHealthz(t *testing.T) {
	handler := newTestRouter(&ingestorFake{}, &searcherFake{}, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected a request id header")
	}
}

func TestBootstrapRunsIngestion(t *testing.T) {
	ingestor := &ingestorFake{stats: domain.RunStats{DocumentsLoaded: 3, ChunksCreated: 9, NewVectors: 9}}
	handler := newTestRouter(ingestor, &searcherFake{}, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/bootstrap/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Status        string          `json:"status"`
		Stats         domain.RunStats `json:"stats"`
		ExecutionTime string          `json:"execution_time"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Status != "completed" || payload.Stats.NewVectors != 9 || ingestor.runs != 1 {
		t.Fatalf("unexpected outcome: %+v runs=%d", payload, ingestor.runs)
	}
}

func TestBootstrapRejectsGet(t *testing.T) {
	handler := newTestRouter(&ingestorFake{}, &searcherFake{}, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bootstrap/", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestBootstrapAsyncQueuesRequest(t *testing.T) {
	queue := &queueFake{}
	handler := newTestRouter(&ingestorFake{}, &searcherFake{}, queue)

	body := strings.NewReader(`{"reason": "nightly refresh"}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/bootstrap/async", body))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(queue.reasons) != 1 || queue.reasons[0] != "nightly refresh" {
		t.Fatalf("unexpected queued reasons: %v", queue.reasons)
	}
}

func TestBootstrapAsyncWithoutQueue(t *testing.T) {
	handler := NewRouter(&ingestorFake{}, &searcherFake{}, nil, nil, "api").Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/bootstrap/async", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestBootstrapStatus(t *testing.T) {
	ingestor := &ingestorFake{index: domain.IndexStats{TotalVectorCount: 12, IndexFullness: 0.1}}
	handler := newTestRouter(ingestor, &searcherFake{}, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bootstrap/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload struct {
		Status        string  `json:"status"`
		VectorCount   int64   `json:"vector_count"`
		IndexFullness float64 `json:"index_fullness"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Status != "ready" || payload.VectorCount != 12 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestSearchReturnsResults(t *testing.T) {
	searcher := &searcherFake{response: &domain.SearchResponse{
		Results:      []domain.SearchResult{{Content: "held", Score: 0.9}},
		TotalResults: 1,
	}}
	handler := newTestRouter(&ingestorFake{}, searcher, nil)

	body := strings.NewReader(`{"query": "breach of contract", "top_k": 3}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/search/", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if searcher.query != "breach of contract" || searcher.topK != 3 {
		t.Fatalf("unexpected search args: %q %d", searcher.query, searcher.topK)
	}
	var response domain.SearchResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response.TotalResults != 1 || response.Results[0].Score != 0.9 {
		t.Fatalf("unexpected response: %+v", response)
	}
}

func TestSearchRejectsMissingQuery(t *testing.T) {
	handler := newTestRouter(&ingestorFake{}, &searcherFake{}, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/search/", strings.NewReader(`{"top_k": 3}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSearchRejectsInvalidJSON(t *testing.T) {
	handler := newTestRouter(&ingestorFake{}, &searcherFake{}, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/search/", strings.NewReader("{")))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestErrorKindsMapToStatusCodes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", domain.WrapError(domain.ErrInvalidInput, "search", errors.New("bad")), http.StatusBadRequest},
		{"not found", domain.WrapError(domain.ErrNotFound, "search", errors.New("missing")), http.StatusNotFound},
		{"timeout", domain.WrapError(domain.ErrTimeout, "search", errors.New("slow")), http.StatusGatewayTimeout},
		{"provider", domain.WrapError(domain.ErrProvider, "search", errors.New("down")), http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := newTestRouter(&ingestorFake{}, &searcherFake{err: tc.err}, nil)

			body := strings.NewReader(`{"query": "q"}`)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/search/", body))

			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
			var payload map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if payload["error"] == "" {
				t.Fatalf("expected an error message")
			}
		})
	}
}

func TestSearchHealthAlwaysOK(t *testing.T) {
	searcher := &searcherFake{health: domain.HealthStatus{
		Status:         "unhealthy",
		Error:          "index gone",
		AvailableSlots: 5,
	}}
	handler := newTestRouter(&ingestorFake{}, searcher, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 even when degraded, got %d", rec.Code)
	}
	var status domain.HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if status.Status != "unhealthy" || status.AvailableSlots != 5 {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestUnknownBootstrapSubpath(t *testing.T) {
	handler := newTestRouter(&ingestorFake{}, &searcherFake{}, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/bootstrap/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
