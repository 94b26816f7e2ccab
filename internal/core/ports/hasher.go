package ports

import "go.trai.ch/rebuild/internal/core/domain"

// Hasher defines the interface for obtaining content digesters.
//
//go:generate go run go.uber.org/mock/mockgen -source=hasher.go -destination=mocks/mock_hasher.go -package=mocks
type Hasher interface {
	// Digester returns the digester implementing alg.
	Digester(alg domain.HashAlgorithm) (domain.Digester, error)
}
