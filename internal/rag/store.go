package rag

import (
	"context"

	"github.com/maxbolgarin/abstract"
	"github.com/maxbolgarin/errm"
)

// Store keeps one index snapshot per repository.
// Get returns nil without error when the repository has no index.
type Store interface {
	Get(ctx context.Context, repositoryID string) (*RepositoryIndex, error)
	Put(ctx context.Context, index *RepositoryIndex) error
	Delete(ctx context.Context, repositoryID string) error
}

// MemoryStore holds snapshots in process memory. Put swaps the snapshot
// pointer, so readers observe either the previous or the new index.
type MemoryStore struct {
	indexes *abstract.SafeMap[string, *RepositoryIndex]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		indexes: abstract.NewSafeMap[string, *RepositoryIndex](),
	}
}

func (s *MemoryStore) Get(_ context.Context, repositoryID string) (*RepositoryIndex, error) {
	idx, ok := s.indexes.Lookup(repositoryID)
	if !ok {
		return nil, nil
	}
	return idx, nil
}

func (s *MemoryStore) Put(_ context.Context, index *RepositoryIndex) error {
	if index == nil {
		return errm.New("nil index")
	}
	s.indexes.Set(index.RepositoryID, index)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, repositoryID string) error {
	s.indexes.Delete(repositoryID)
	return nil
}

// CachedStore serves snapshots from memory and writes through to a durable backend
type CachedStore struct {
	cache   *MemoryStore
	backend Store
}

func NewCachedStore(backend Store) *CachedStore {
	return &CachedStore{
		cache:   NewMemoryStore(),
		backend: backend,
	}
}

func (s *CachedStore) Get(ctx context.Context, repositoryID string) (*RepositoryIndex, error) {
	if idx, _ := s.cache.Get(ctx, repositoryID); idx != nil {
		return idx, nil
	}

	idx, err := s.backend.Get(ctx, repositoryID)
	if err != nil {
		return nil, errm.Wrap(err, "load index", "repository_id", repositoryID)
	}
	if idx == nil {
		return nil, nil
	}

	if err := s.cache.Put(ctx, idx); err != nil {
		return nil, err
	}
	return idx, nil
}

func (s *CachedStore) Put(ctx context.Context, index *RepositoryIndex) error {
	if index == nil {
		return errm.New("nil index")
	}
	if err := s.backend.Put(ctx, index); err != nil {
		return errm.Wrap(err, "save index", "repository_id", index.RepositoryID)
	}
	return s.cache.Put(ctx, index)
}

func (s *CachedStore) Delete(ctx context.Context, repositoryID string) error {
	if err := s.backend.Delete(ctx, repositoryID); err != nil {
		return errm.Wrap(err, "delete index", "repository_id", repositoryID)
	}
	return s.cache.Delete(ctx, repositoryID)
}
