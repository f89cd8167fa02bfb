// Copyright (C) 2025 Aare AI (engineering@aare.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ontology

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/aare-ai/aare-core/services/verifier/ontology/enforcement"
	"golang.org/x/sync/singleflight"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Store fetches raw ontology documents by name.
//
// Implementations return ErrOntologyNotFound when the name is unknown to
// them; any other error means the store itself failed.
type Store interface {
	// Fetch returns the raw JSON document for the named ontology.
	Fetch(ctx context.Context, name string) ([]byte, error)

	// List returns the ontology names the store can serve.
	List(ctx context.Context) ([]string, error)
}

// GCSStore serves ontology documents from a Google Cloud Storage bucket,
// one object per ontology named "<name>.json".
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore creates a store backed by the given bucket.
//
// credentialsFile may be empty, in which case application default
// credentials are used.
func NewGCSStore(ctx context.Context, bucket, credentialsFile string) (*GCSStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

// Fetch downloads "<name>.json" from the bucket.
func (s *GCSStore) Fetch(ctx context.Context, name string) ([]byte, error) {
	rc, err := s.client.Bucket(s.bucket).Object(name + ".json").NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrOntologyNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("open gs://%s/%s.json: %w", s.bucket, name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read gs://%s/%s.json: %w", s.bucket, name, err)
	}
	return data, nil
}

// List returns the names of all *.json objects in the bucket.
func (s *GCSStore) List(ctx context.Context) ([]string, error) {
	var names []string
	it := s.client.Bucket(s.bucket).Objects(ctx, nil)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list bucket %s: %w", s.bucket, err)
		}
		if strings.HasSuffix(attrs.Name, ".json") {
			names = append(names, strings.TrimSuffix(attrs.Name, ".json"))
		}
	}
	return names, nil
}

// EmbeddedStore serves the rule sets baked into the binary.
type EmbeddedStore struct{}

// Fetch returns the embedded document for the name, if shipped.
func (EmbeddedStore) Fetch(_ context.Context, name string) ([]byte, error) {
	data, ok := enforcement.Embedded[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOntologyNotFound, name)
	}
	return data, nil
}

// List returns the embedded ontology names, sorted.
func (EmbeddedStore) List(context.Context) ([]string, error) {
	names := make([]string, 0, len(enforcement.Embedded))
	for name := range enforcement.Embedded {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Loader resolves ontology names to validated, immutable Ontology values.
//
// Loaded ontologies are cached by name for the process lifetime and never
// invalidated; a new process picks up new versions. The first load of a
// given name runs at most once even under concurrent requests (singleflight
// discipline); later requests share the cached value without locking on the
// load path.
//
// Thread Safety:
//
//	Loader is safe for concurrent use.
type Loader struct {
	stores []Store

	mu    sync.RWMutex
	cache map[string]*Ontology
	group singleflight.Group
}

// NewLoader creates a loader that consults the stores in order. The first
// store that knows the name wins; store failures are logged and fall through
// to the next store so a flaky bucket degrades to the embedded rule sets.
func NewLoader(stores ...Store) *Loader {
	return &Loader{
		stores: stores,
		cache:  make(map[string]*Ontology),
	}
}

// Load returns the named ontology, fetching and validating it on first use.
//
// Returns ErrOntologyNotFound when no store knows the name, or
// ErrMalformedOntology when the document fails validation. Neither outcome
// is cached, so a fixed document becomes loadable without a restart only if
// it never loaded successfully before.
func (l *Loader) Load(ctx context.Context, name string) (*Ontology, error) {
	l.mu.RLock()
	ont, ok := l.cache[name]
	l.mu.RUnlock()
	if ok {
		return ont, nil
	}

	loaded, err, _ := l.group.Do(name, func() (any, error) {
		// Re-check under the group: a concurrent caller may have
		// filled the cache between our miss and this closure.
		l.mu.RLock()
		cached, ok := l.cache[name]
		l.mu.RUnlock()
		if ok {
			return cached, nil
		}

		data, err := l.fetch(ctx, name)
		if err != nil {
			return nil, err
		}
		parsed, err := Parse(data)
		if err != nil {
			return nil, err
		}

		slog.Info("Ontology loaded",
			"name", parsed.Name,
			"version", parsed.Version,
			"constraints", len(parsed.Constraints))

		l.mu.Lock()
		l.cache[name] = parsed
		l.mu.Unlock()
		return parsed, nil
	})
	if err != nil {
		return nil, err
	}
	return loaded.(*Ontology), nil
}

func (l *Loader) fetch(ctx context.Context, name string) ([]byte, error) {
	for _, store := range l.stores {
		data, err := store.Fetch(ctx, name)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, ErrOntologyNotFound) {
			slog.Warn("Ontology store failed, trying next", "name", name, "error", err)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrOntologyNotFound, name)
}

// List returns the union of ontology names across all stores, sorted.
// Store failures degrade to the names the remaining stores can serve.
func (l *Loader) List(ctx context.Context) []string {
	seen := make(map[string]bool)
	var names []string
	for _, store := range l.stores {
		stored, err := store.List(ctx)
		if err != nil {
			slog.Warn("Failed to list ontology store", "error", err)
			continue
		}
		for _, name := range stored {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

// CachedCount returns the number of ontologies resident in the cache.
func (l *Loader) CachedCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.cache)
}
