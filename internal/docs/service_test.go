package docs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docfoundry/docfoundry/pkg/errors"
	"github.com/docfoundry/docfoundry/pkg/resilience"
)

type fakeFetcher struct {
	fetchCalls  int
	searchCalls int
	failFirst   int
	doc         *Document
	results     []SearchResult
}

func (f *fakeFetcher) FetchDocument(ctx context.Context, id string) (*Document, error) {
	f.fetchCalls++
	if f.fetchCalls <= f.failFirst {
		return nil, errors.NewTransientError("upstream hiccup")
	}
	return f.doc, nil
}

func (f *fakeFetcher) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	f.searchCalls++
	if f.searchCalls <= f.failFirst {
		return nil, errors.NewTransientError("upstream hiccup")
	}
	return f.results, nil
}

func newTestCoordinator() *resilience.Coordinator {
	cfg := resilience.DefaultConfig()
	cfg.Retry = resilience.RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Millisecond,
		MaxDelay:    10 * time.Millisecond,
	}
	cfg.HealthCheckEnabled = false
	cfg.BackupEnabled = false

	return resilience.NewCoordinator(cfg, nil)
}

func TestService_GetDocumentRetriesTransientFailures(t *testing.T) {
	fetcher := &fakeFetcher{
		failFirst: 2,
		doc:       &Document{ID: "go-contexts", Title: "Contexts"},
	}

	service := NewService(fetcher, nil, newTestCoordinator())

	doc, err := service.GetDocument(context.Background(), "go-contexts")

	require.NoError(t, err)
	assert.Equal(t, "go-contexts", doc.ID)
	assert.Equal(t, 3, fetcher.fetchCalls)
}

func TestService_GetDocumentExhaustsRetries(t *testing.T) {
	fetcher := &fakeFetcher{failFirst: 10}
	service := NewService(fetcher, nil, newTestCoordinator())

	_, err := service.GetDocument(context.Background(), "go-contexts")

	require.Error(t, err)
	assert.True(t, resilience.IsRetryExhausted(err))
	assert.Equal(t, 3, fetcher.fetchCalls)
}

func TestService_SearchUsesTighterBudget(t *testing.T) {
	fetcher := &fakeFetcher{failFirst: 10}
	service := NewService(fetcher, nil, newTestCoordinator())

	_, err := service.Search(context.Background(), "goroutine leaks", 5)

	require.Error(t, err)
	// Interactive path caps at two attempts
	assert.Equal(t, 2, fetcher.searchCalls)
}

func TestService_SearchSuccess(t *testing.T) {
	fetcher := &fakeFetcher{
		results: []SearchResult{{ID: "doc-1", Title: "Finding goroutine leaks"}},
	}
	service := NewService(fetcher, nil, newTestCoordinator())

	results, err := service.Search(context.Background(), "goroutine leaks", 5)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-1", results[0].ID)
}

func TestService_FetchAndSearchHaveIndependentBreakers(t *testing.T) {
	fetcher := &fakeFetcher{
		failFirst: 1000,
		results:   []SearchResult{{ID: "doc-1"}},
	}
	coordinator := newTestCoordinator()
	service := NewService(fetcher, nil, coordinator)

	// Exhaust the fetch path until its breaker opens
	for i := 0; i < 5; i++ {
		_, _ = service.GetDocument(context.Background(), "go-contexts")
	}

	states := coordinator.BreakerStates()
	require.Contains(t, states, OpFetchDocument)
	assert.Equal(t, resilience.StateOpen, states[OpFetchDocument].State)

	// Search is still admitted: its breaker never saw a failure
	fetcher.failFirst = 0
	results, err := service.Search(context.Background(), "goroutine leaks", 5)
	require.NoError(t, err)
	assert.NotNil(t, results)
}
