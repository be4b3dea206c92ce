// Package remote handles the remote blob store for extracted figure images
// and its metadata index. Upload is decoupled from extraction correctness:
// a failed upload leaves the local files as the source of truth, and the
// Sync pass later reconciles anything missing.
package remote

import (
	"context"
	"sort"
	"sync"
)

// Store is the remote storage collaborator. Keys are "<paper_id>/<figure_id>.png".
// Put is idempotent: repeating a put with the same key and bytes is safe.
type Store interface {
	// Put uploads a blob and returns its public URL.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)

	// GetURL returns the public URL for a stored figure image, if any.
	GetURL(ctx context.Context, paperID, figureID string) (string, bool)

	// GetCaption returns the caption recorded for a stored figure, if any.
	GetCaption(ctx context.Context, paperID, figureID string) (string, bool)

	// FigureIDs lists the figure ids stored for a paper, sorted.
	FigureIDs(ctx context.Context, paperID string) ([]string, error)

	// RecordCaption stores caption metadata alongside an uploaded figure.
	RecordCaption(ctx context.Context, paperID, figureID, caption string) error
}

// Key builds the storage key for a figure image.
func Key(paperID, figureID string) string {
	return paperID + "/" + figureID + ".png"
}

// MemoryStore is an in-memory Store used in tests and as a local stand-in
// when no remote backend is configured.
type MemoryStore struct {
	mu       sync.Mutex
	BaseURL  string
	blobs    map[string][]byte
	captions map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		BaseURL:  "memory://figures",
		blobs:    make(map[string][]byte),
		captions: make(map[string]string),
	}
}

func (m *MemoryStore) urlFor(key string) string {
	return m.BaseURL + "/" + key
}

// Put stores the blob in memory and returns its synthetic URL.
func (m *MemoryStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = data
	return m.urlFor(key), nil
}

// GetURL reports the URL of a stored figure image.
func (m *MemoryStore) GetURL(_ context.Context, paperID, figureID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := Key(paperID, figureID)
	if _, ok := m.blobs[key]; !ok {
		return "", false
	}
	return m.urlFor(key), true
}

// GetCaption reports the caption recorded for a figure.
func (m *MemoryStore) GetCaption(_ context.Context, paperID, figureID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.captions[Key(paperID, figureID)]
	return c, ok
}

// FigureIDs lists stored figure ids for a paper.
func (m *MemoryStore) FigureIDs(_ context.Context, paperID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := paperID + "/"
	var ids []string
	for key := range m.blobs {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			id := key[len(prefix):]
			if len(id) > 4 && id[len(id)-4:] == ".png" {
				id = id[:len(id)-4]
			}
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// RecordCaption stores a caption for an uploaded figure.
func (m *MemoryStore) RecordCaption(_ context.Context, paperID, figureID, caption string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captions[Key(paperID, figureID)] = caption
	return nil
}

// Has reports whether a key is stored (test helper).
func (m *MemoryStore) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[key]
	return ok
}

// Count reports the number of stored blobs (test helper).
func (m *MemoryStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}
