package cache

import (
	"testing"
	"time"

	"github.com/lexgrove/caselaw-search/internal/core/domain"
)

func TestKeyNormalizesQuery(t *testing.T) {
	if Key("  Contract Breach  ", 5) != "contract breach:5" {
		t.Fatalf("unexpected key: %q", Key("  Contract Breach  ", 5))
	}
	if Key("contract breach", 5) == Key("contract breach", 10) {
		t.Fatalf("top_k must be part of the key")
	}
}

func TestGetAfterAdd(t *testing.T) {
	c := NewSearchCache(3, time.Minute)
	response := &domain.SearchResponse{TotalResults: 1}

	if _, ok := c.Get("q:5"); ok {
		t.Fatalf("expected miss on empty cache")
	}
	c.Add("q:5", response)
	got, ok := c.Get("q:5")
	if !ok || got != response {
		t.Fatalf("expected cached response back, got %v %v", got, ok)
	}
	if c.Len() != 1 {
		t.Fatalf("expected len 1, got %d", c.Len())
	}
}

func TestEvictsBeyondCapacity(t *testing.T) {
	c := NewSearchCache(2, time.Minute)
	c.Add("a:5", &domain.SearchResponse{})
	c.Add("b:5", &domain.SearchResponse{})
	c.Add("c:5", &domain.SearchResponse{})

	if _, ok := c.Get("a:5"); ok {
		t.Fatalf("oldest entry should have been evicted")
	}
	if c.Len() != 2 {
		t.Fatalf("expected len 2, got %d", c.Len())
	}
}

func TestExpiresAfterTTL(t *testing.T) {
	c := NewSearchCache(3, 20*time.Millisecond)
	c.Add("q:5", &domain.SearchResponse{})

	time.Sleep(50 * time.Millisecond)
	if _, ok := c.Get("q:5"); ok {
		t.Fatalf("entry should have expired")
	}
}

func TestDisabledCacheNeverStores(t *testing.T) {
	c := NewSearchCache(0, time.Minute)
	c.Add("q:5", &domain.SearchResponse{})
	if _, ok := c.Get("q:5"); ok {
		t.Fatalf("disabled cache must not store")
	}
	if c.Len() != 0 {
		t.Fatalf("disabled cache must report len 0")
	}
}
