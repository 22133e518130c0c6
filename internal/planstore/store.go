package planstore

import (
	"context"

	"github.com/starford/vitalplan/internal/models"
)

// Store defines the persistence operations the plan service relies on.
// Consumers should depend on this interface rather than the concrete *DB
// type to facilitate testing with fakes.
type Store interface {
	ReplacePlan(ctx context.Context, ownerID int64, domain models.Domain, records []models.Record) (int, error)
	Records(ctx context.Context, ownerID int64, domain models.Domain) ([]models.Record, error)
	DeletePlan(ctx context.Context, ownerID int64, domain models.Domain) (int, error)
	Ping(ctx context.Context) error
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
