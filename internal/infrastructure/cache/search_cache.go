// Package cache holds the TTL-bounded LRU of recent search responses.
package cache

import (
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/lexgrove/caselaw-search/internal/core/domain"
)

// SearchCache keys responses by the normalized query text plus the requested
// result count, so the same question with a different top_k never aliases.
type SearchCache struct {
	lru *expirable.LRU[string, *domain.SearchResponse]
}

func NewSearchCache(size int, ttl time.Duration) *SearchCache {
	if size <= 0 || ttl <= 0 {
		return &SearchCache{}
	}
	return &SearchCache{
		lru: expirable.NewLRU[string, *domain.SearchResponse](size, nil, ttl),
	}
}

func Key(query string, topK int) string {
	return strings.ToLower(strings.TrimSpace(query)) + ":" + strconv.Itoa(topK)
}

func (c *SearchCache) Get(key string) (*domain.SearchResponse, bool) {
	if c.lru == nil {
		return nil, false
	}
	return c.lru.Get(key)
}

func (c *SearchCache) Add(key string, response *domain.SearchResponse) {
	if c.lru == nil || response == nil {
		return
	}
	c.lru.Add(key, response)
}

func (c *SearchCache) Len() int {
	if c.lru == nil {
		return 0
	}
	return c.lru.Len()
}
