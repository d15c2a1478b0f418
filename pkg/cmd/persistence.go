// Package cmd provides shared bootstrap helpers for the service binaries.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ImpactInc/azkaban/pkg/persistence"
	"github.com/ImpactInc/azkaban/pkg/persistence/memory"
	"github.com/ImpactInc/azkaban/pkg/persistence/postgresql"
)

// NewPersistence selects the persistence backend from the database URL
// scheme. An empty URL yields the in-memory backend.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	case "memory":
		return memory.NewPersistence(), nil
	default:
		return nil, fmt.Errorf("unsupported persistence provider in %q", databaseURL)
	}
}

func parsePersistenceProvider(databaseURL string) string {
	if databaseURL == "" {
		return "memory"
	}

	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "memory"
	}

	return provider
}
