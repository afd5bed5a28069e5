package report

import (
	"context"

	"github.com/google/uuid"
)

type VersionRepository interface {
	Insert(ctx context.Context, v *Version) error
	GetByID(ctx context.Context, id uuid.UUID) (*Version, error)
	// ListByPartition returns the partition's versions ordered ascending by
	// version number. Implementations run in a degraded mode when the
	// filtered query fails; see repo_pg.go.
	ListByPartition(ctx context.Context, patientID uuid.UUID, kind Kind) ([]*Version, error)
	UpdateNumber(ctx context.Context, id uuid.UUID, version int) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type CurrentRepository interface {
	Get(ctx context.Context, patientID uuid.UUID, kind Kind) (*Current, error)
	Upsert(ctx context.Context, c *Current) error
}

// TxRunner runs a function with all repository calls inside one transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
