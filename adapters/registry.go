// Package adapters holds the concrete ObjectStore backends of the drive and
// the registry that builds one from a raw configuration section.
package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/brettbedarf/webdrive"
)

// StoreProviderFunc adapts a plain function to [webdrive.StoreProvider]
type StoreProviderFunc func(ctx context.Context, raw []byte) (webdrive.ObjectStore, error)

func (f StoreProviderFunc) NewStore(ctx context.Context, raw []byte) (webdrive.ObjectStore, error) {
	return f(ctx, raw)
}

// Registry ties store providers to the "type" key of a backend section
type Registry struct {
	mu        sync.RWMutex
	providers map[string]webdrive.StoreProvider
}

func NewRegistry() *Registry {
	return &Registry{providers: map[string]webdrive.StoreProvider{}}
}

// Register adds provider under storeType. The first registration of a type
// wins; later ones are ignored.
func (r *Registry) Register(storeType string, provider webdrive.StoreProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[storeType]; ok {
		return
	}
	r.providers[storeType] = provider
}

func (r *Registry) GetProvider(storeType string) (webdrive.StoreProvider, error) {
	r.mu.RLock()
	p, ok := r.providers[storeType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no store provider for %q", storeType)
	}
	return p, nil
}

// NewStore picks the provider named by the "type" field of raw and builds a
// store from the whole section.
func (r *Registry) NewStore(ctx context.Context, raw []byte) (webdrive.ObjectStore, error) {
	var meta struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("invalid storage section: %w", err)
	}
	if meta.Type == "" {
		return nil, fmt.Errorf("storage section has no type")
	}
	p, err := r.GetProvider(meta.Type)
	if err != nil {
		return nil, err
	}
	return p.NewStore(ctx, raw)
}

var defaultRegistry = NewRegistry()

// Register adds provider to the default registry
func Register(storeType string, provider webdrive.StoreProvider) {
	defaultRegistry.Register(storeType, provider)
}

// NewStore builds a store through the default registry. All expected store
// types should be registered (see [RegisterBuiltins]) before calling it.
func NewStore(ctx context.Context, raw []byte) (webdrive.ObjectStore, error) {
	return defaultRegistry.NewStore(ctx, raw)
}
