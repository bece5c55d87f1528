package pinecone

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/lexgrove/caselaw-search/internal/core/domain"
	"github.com/lexgrove/caselaw-search/internal/infrastructure/resilience"
)

// Client implements the vector store against Pinecone's REST API: the control
// plane for index lifecycle, the per-index data plane for vectors.
type Client struct {
	controlURL string
	indexName  string
	cloud      string
	region     string
	apiKey     string
	httpClient *http.Client
	executor   *resilience.Executor

	hostMu    sync.Mutex
	indexHost string
}

type Options struct {
	ControlURL string
	IndexHost  string
	IndexName  string
	Cloud      string
	Region     string
	APIKey     string
	Executor   *resilience.Executor
}

func New(opts Options) *Client {
	return &Client{
		controlURL: strings.TrimRight(opts.ControlURL, "/"),
		indexName:  opts.IndexName,
		cloud:      opts.Cloud,
		region:     opts.Region,
		apiKey:     opts.APIKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		executor:   opts.Executor,
		indexHost:  normalizeHost(opts.IndexHost),
	}
}

type indexDescription struct {
	Name   string `json:"name"`
	Host   string `json:"host"`
	Status struct {
		Ready bool   `json:"ready"`
		State string `json:"state"`
	} `json:"status"`
}

// EnsureIndex creates the index with cosine metric if absent and blocks until
// the control plane reports it ready, resolving the data-plane host on the way.
func (c *Client) EnsureIndex(ctx context.Context, dimension int) error {
	desc, err := c.describeIndex(ctx)
	if err != nil {
		var statusErr *HTTPStatusError
		if !asStatus(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
			return wrapProviderError("describe index", err)
		}
		slog.Info("index_create", "index", c.indexName, "dimension", dimension)
		if err := c.createIndex(ctx, dimension); err != nil {
			return wrapProviderError("create index", err)
		}
	}

	// Poll readiness; freshly created serverless indexes take a few seconds.
	deadline := time.Now().Add(2 * time.Minute)
	for {
		if desc != nil && desc.Status.Ready {
			c.setHost(desc.Host)
			return nil
		}
		if time.Now().After(deadline) {
			return domain.WrapError(domain.ErrProvider, "ensure index",
				fmt.Errorf("index %s not ready before deadline", c.indexName))
		}

		timer := time.NewTimer(2 * time.Second)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		desc, err = c.describeIndex(ctx)
		if err != nil {
			return wrapProviderError("describe index", err)
		}
	}
}

func (c *Client) Exists(ctx context.Context, id string) (bool, error) {
	var response struct {
		Vectors map[string]struct {
			ID string `json:"id"`
		} `json:"vectors"`
	}

	path := "/vectors/fetch?ids=" + url.QueryEscape(id)
	err := c.execute(ctx, "pinecone.fetch", func(callCtx context.Context) error {
		return c.dataJSON(callCtx, http.MethodGet, path, nil, &response, "fetch")
	})
	if err != nil {
		return false, wrapProviderError("fetch vector", err)
	}
	return len(response.Vectors) > 0, nil
}

func (c *Client) Upsert(ctx context.Context, vectors []domain.Vector) error {
	if len(vectors) == 0 {
		return nil
	}

	request := map[string]any{"vectors": vectors}
	var response struct {
		UpsertedCount int `json:"upsertedCount"`
	}

	err := c.execute(ctx, "pinecone.upsert", func(callCtx context.Context) error {
		return c.dataJSON(callCtx, http.MethodPost, "/vectors/upsert", request, &response, "upsert")
	})
	if err != nil {
		return wrapProviderError("upsert vectors", err)
	}
	return nil
}

func (c *Client) Query(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	request := map[string]any{
		"vector":          vector,
		"topK":            topK,
		"includeMetadata": true,
	}
	var response struct {
		Matches []struct {
			ID       string            `json:"id"`
			Score    float64           `json:"score"`
			Metadata map[string]string `json:"metadata"`
		} `json:"matches"`
	}

	err := c.execute(ctx, "pinecone.query", func(callCtx context.Context) error {
		return c.dataJSON(callCtx, http.MethodPost, "/query", request, &response, "query")
	})
	if err != nil {
		return nil, wrapProviderError("query index", err)
	}

	out := make([]domain.SearchResult, 0, len(response.Matches))
	for _, match := range response.Matches {
		out = append(out, domain.ResultFromMetadata(match.Metadata, match.Score))
	}
	return out, nil
}

func (c *Client) DescribeStats(ctx context.Context) (domain.IndexStats, error) {
	var response struct {
		TotalVectorCount int64   `json:"totalVectorCount"`
		IndexFullness    float64 `json:"indexFullness"`
	}

	err := c.execute(ctx, "pinecone.stats", func(callCtx context.Context) error {
		return c.dataJSON(callCtx, http.MethodPost, "/describe_index_stats", map[string]any{}, &response, "stats")
	})
	if err != nil {
		return domain.IndexStats{}, wrapProviderError("describe index stats", err)
	}
	return domain.IndexStats{
		TotalVectorCount: response.TotalVectorCount,
		IndexFullness:    response.IndexFullness,
	}, nil
}

func (c *Client) describeIndex(ctx context.Context) (*indexDescription, error) {
	var desc indexDescription
	err := c.controlJSON(ctx, http.MethodGet, "/indexes/"+c.indexName, nil, &desc, "describe index")
	if err != nil {
		return nil, err
	}
	return &desc, nil
}

func (c *Client) createIndex(ctx context.Context, dimension int) error {
	request := map[string]any{
		"name":      c.indexName,
		"dimension": dimension,
		"metric":    "cosine",
		"spec": map[string]any{
			"serverless": map[string]any{
				"cloud":  c.cloud,
				"region": c.region,
			},
		},
	}
	var desc indexDescription
	err := c.controlJSON(ctx, http.MethodPost, "/indexes", request, &desc, "create index")
	if err != nil {
		// Concurrent creation is fine; the readiness poll takes over.
		var statusErr *HTTPStatusError
		if asStatus(err, &statusErr) && statusErr.StatusCode == http.StatusConflict {
			return nil
		}
		return err
	}
	return nil
}

func (c *Client) execute(ctx context.Context, operation string, call func(context.Context) error) error {
	if c.executor == nil {
		return call(ctx)
	}
	return c.executor.Execute(ctx, operation, call, classifyStoreError)
}

func (c *Client) setHost(host string) {
	host = normalizeHost(host)
	if host == "" {
		return
	}
	c.hostMu.Lock()
	c.indexHost = host
	c.hostMu.Unlock()
}

func (c *Client) host() string {
	c.hostMu.Lock()
	defer c.hostMu.Unlock()
	return c.indexHost
}

func normalizeHost(host string) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		return ""
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	return host
}
