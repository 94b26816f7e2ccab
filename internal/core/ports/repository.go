package ports

import "go.trai.ch/rebuild/internal/core/domain"

// Repository is a build repository opened for a set of settings.
//
//go:generate go run go.uber.org/mock/mockgen -source=repository.go -destination=mocks/mock_repository.go -package=mocks
type Repository interface {
	domain.Repository

	// Entries lists the values stored in the cache, ordered by hash.
	Entries() ([]domain.CacheEntry, error)

	// Clean removes every cached value and build record.
	Clean() error

	// BuildInfo returns the store of build records kept next to the cache.
	BuildInfo() BuildInfoStore
}

// RepositoryOpener opens build repositories.
type RepositoryOpener interface {
	// Open creates the repository directories if needed and returns the repository.
	Open(settings domain.Settings) (Repository, error)
}
