package assets

import (
	"context"
	"sync"
)

// MockGenerator implements ImageGenerator for testing
type MockGenerator struct {
	URI     string
	Err     error
	Prompts []string
}

func (m *MockGenerator) Generate(_ context.Context, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	return m.URI, m.Err
}

type MockStore struct {
	mu          sync.Mutex
	Err         error
	Collections []string
	Data        []map[string]any
}

func (m *MockStore) WriteOnce(_ context.Context, collection string, data map[string]any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	m.Collections = append(m.Collections, collection)
	m.Data = append(m.Data, data)
	return "asset-1", nil
}

type MockMetrics struct {
	Results        []string
	PersistFailure int
}

func (m *MockMetrics) ObserveGeneration(result string) { m.Results = append(m.Results, result) }
func (m *MockMetrics) AssetPersistFailed()             { m.PersistFailure++ }
