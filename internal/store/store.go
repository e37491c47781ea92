// Package store is the persistence gateway: one-shot writes, document reads and
// live queries over a hierarchical document store.
//
// Paths are slash separated. Collections alternate with document ids, so an
// order lives at artifacts/{appId}/users/{uid}/orders/{orderId}.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/clock"
)

var (
	ErrNotFound = errors.New("document not found")
	ErrClosed   = errors.New("store is closed")
	ErrBadPath  = errors.New("invalid document path")
)

// Gateway is implemented by every backend.
type Gateway interface {
	WriteOnce(ctx context.Context, collection string, data map[string]any) (string, error)
	Put(ctx context.Context, docPath string, data map[string]any) error
	ReadOnce(ctx context.Context, docPath string) (Document, error)
	Subscribe(ctx context.Context, q Query) (*Subscription, error)
	Close() error
}

type serverTimestamp struct{}

// ServerTimestamp marks a top-level field the gateway fills with its own
// write time.
var ServerTimestamp any = serverTimestamp{}

type Direction int

const (
	Ascending Direction = iota
	Descending
)

type Query struct {
	Collection string
	OrderBy    string
	Direction  Direction
}

type Document struct {
	ID         string
	Path       string
	Data       map[string]any
	Seq        int64
	CreateTime time.Time
}

// Snapshot is the full, ordered result set of a query at one point in time.
type Snapshot struct {
	Collection string
	Docs       []Document
}

// Decode unmarshals the document data into v. The document id is exposed as
// "id" unless the data already carries one.
func Decode(doc Document, v any) error {
	data := make(map[string]any, len(doc.Data)+1)
	for k, val := range doc.Data {
		data[k] = val
	}
	if _, ok := data["id"]; !ok && doc.ID != "" {
		data["id"] = doc.ID
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", doc.Path, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode document %s: %w", doc.Path, err)
	}
	return nil
}

func PrivateCollection(appID, uid, name string) string {
	return fmt.Sprintf("artifacts/%s/users/%s/%s", appID, uid, name)
}

func PublicCollection(appID, name string) string {
	return fmt.Sprintf("artifacts/%s/public/data/%s", appID, name)
}

func Doc(collection, id string) string {
	return collection + "/" + id
}

// SplitDoc separates a document path into its collection and id.
func SplitDoc(docPath string) (collection, id string, err error) {
	i := strings.LastIndex(docPath, "/")
	if i <= 0 || i == len(docPath)-1 {
		return "", "", fmt.Errorf("%w: %q", ErrBadPath, docPath)
	}
	return docPath[:i], docPath[i+1:], nil
}

func validCollection(collection string) error {
	if collection == "" || strings.HasPrefix(collection, "/") || strings.HasSuffix(collection, "/") {
		return fmt.Errorf("%w: %q", ErrBadPath, collection)
	}
	return nil
}

// stamper hands out write times that never go backwards, together with an
// arrival sequence.
type stamper struct {
	mu    sync.Mutex
	clock clock.Clock
	last  time.Time
	seq   int64
}

func newStamper(c clock.Clock) *stamper {
	if c == nil {
		c = clock.Real{}
	}
	return &stamper{clock: c}
}

func (s *stamper) next() (time.Time, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now().UTC().Truncate(time.Microsecond)
	if !now.After(s.last) {
		now = s.last.Add(time.Microsecond)
	}
	s.last = now
	s.seq++
	return now, s.seq
}

// resolve returns a deep copy of data with server timestamps replaced by ts.
func resolve(data map[string]any, ts time.Time) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if v == ServerTimestamp {
			out[k] = ts
			continue
		}
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = cloneValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = cloneValue(inner)
		}
		return out
	default:
		return v
	}
}

func cloneDocument(d Document) Document {
	d.Data = cloneValue(d.Data).(map[string]any)
	return d
}
