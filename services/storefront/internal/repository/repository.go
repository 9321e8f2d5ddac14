package repository

import (
	"context"

	"github.com/utafrali/RentMarket/services/storefront/internal/domain"
	"github.com/utafrali/RentMarket/services/storefront/internal/form"
)

// FormStateRepository stores review form state per viewer and entity.
type FormStateRepository interface {
	// Load returns the stored state or an apperrors NotFound error.
	Load(ctx context.Context, viewerID string, kind domain.EntityKind, entityID string) (form.State, error)

	// SaveIfVersion writes state only when the stored version still equals
	// expected (0 meaning nothing is stored). A lost race is an apperrors Conflict.
	SaveIfVersion(ctx context.Context, viewerID string, state form.State, expected int64) error

	// Delete removes the stored state.
	Delete(ctx context.Context, viewerID string, kind domain.EntityKind, entityID string) error
}
