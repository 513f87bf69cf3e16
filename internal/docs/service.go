package docs

import (
	"context"
	"time"

	"github.com/docfoundry/docfoundry/internal/cache"
	"github.com/docfoundry/docfoundry/pkg/errors"
	"github.com/docfoundry/docfoundry/pkg/logging"
	"github.com/docfoundry/docfoundry/pkg/resilience"
)

// Operation names used with the resilience layer. Each name gets its own
// circuit breaker, so an outage of the fetch path never gates search.
const (
	OpFetchDocument = "docs.fetch"
	OpSearch        = "docs.search"
)

// fetcher is the upstream surface the service needs
type fetcher interface {
	FetchDocument(ctx context.Context, id string) (*Document, error)
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

// Service serves documentation lookups through the cache and the resilience
// coordinator.
type Service struct {
	client      fetcher
	cache       *cache.Service
	coordinator *resilience.Coordinator
	logger      *logging.Logger
}

// NewService creates a documentation lookup service
func NewService(client fetcher, cacheService *cache.Service, coordinator *resilience.Coordinator) *Service {
	return &Service{
		client:      client,
		cache:       cacheService,
		coordinator: coordinator,
		logger:      logging.GetLogger(),
	}
}

// GetDocument returns a document, preferring the cache. Cache misses go
// upstream under retry and circuit breaking; cache failures degrade to a
// direct upstream call rather than failing the lookup.
func (s *Service) GetDocument(ctx context.Context, id string) (*Document, error) {
	if s.cache != nil {
		var doc Document
		err := s.cache.Get(ctx, cache.DocKey(id), &doc)
		if err == nil {
			return &doc, nil
		}
		if !errors.IsNotFound(err) {
			s.logger.WithError(err).Warn("Document cache read failed, falling through to upstream")
		}
	}

	result, err := s.coordinator.Execute(ctx, OpFetchDocument, func(ctx context.Context) (any, error) {
		return s.client.FetchDocument(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	doc := result.(*Document)

	if s.cache != nil {
		if err := s.cache.Set(ctx, cache.DocKey(id), doc, 0); err != nil {
			s.logger.WithError(err).Warn("Failed to cache document")
		}
	}

	return doc, nil
}

// Search runs a full-text query upstream under the resilience layer with a
// per-call budget tighter than the default: interactive search should fail
// fast rather than ride out the full backoff schedule.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if s.cache != nil {
		var cached []SearchResult
		if err := s.cache.Get(ctx, cache.SearchKey(query), &cached); err == nil {
			return cached, nil
		}
	}

	result, err := s.coordinator.Execute(ctx, OpSearch, func(ctx context.Context) (any, error) {
		return s.client.Search(ctx, query, limit)
	},
		resilience.WithMaxAttempts(2),
		resilience.WithTimeout(5*time.Second),
	)
	if err != nil {
		return nil, err
	}

	results := result.([]SearchResult)

	if s.cache != nil {
		if err := s.cache.Set(ctx, cache.SearchKey(query), results, 0); err != nil {
			s.logger.WithError(err).Warn("Failed to cache search results")
		}
	}

	return results, nil
}
