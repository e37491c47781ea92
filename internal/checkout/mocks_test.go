package checkout

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fjod/storefront/domain"
)

type write struct {
	Collection string
	Data       map[string]any
}

// MockStore implements Writer and fails writes to collections containing a
// key of FailOn.
type MockStore struct {
	mu     sync.Mutex
	FailOn map[string]error
	Writes []write
	nextID int
}

func (m *MockStore) WriteOnce(_ context.Context, collection string, data map[string]any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for fragment, err := range m.FailOn {
		if strings.Contains(collection, fragment) {
			return "", err
		}
	}
	m.Writes = append(m.Writes, write{Collection: collection, Data: data})
	m.nextID++
	return "doc-" + strconv.Itoa(m.nextID), nil
}

func (m *MockStore) WriteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Writes)
}

// MockPublisher implements Publisher for testing
type MockPublisher struct {
	mu     sync.Mutex
	Orders []domain.Order
	Err    error
}

func (m *MockPublisher) OrderPlaced(_ context.Context, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Orders = append(m.Orders, order)
	return m.Err
}

type MockMetrics struct {
	mu      sync.Mutex
	Results []string
}

func (m *MockMetrics) ObserveCheckout(result string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Results = append(m.Results, result)
}
