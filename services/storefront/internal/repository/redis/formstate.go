package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/utafrali/RentMarket/pkg/errors"
	"github.com/utafrali/RentMarket/services/storefront/internal/domain"
	"github.com/utafrali/RentMarket/services/storefront/internal/form"
)

const keyPrefix = "storefront:review-form:"

// FormStateRepository implements repository.FormStateRepository using Redis.
type FormStateRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewFormStateRepository creates a Redis-backed form state store. Entries
// expire ttl after their last write.
func NewFormStateRepository(client *redis.Client, ttl time.Duration) *FormStateRepository {
	return &FormStateRepository{
		client: client,
		ttl:    ttl,
	}
}

func formKey(viewerID string, kind domain.EntityKind, entityID string) string {
	return fmt.Sprintf("%s%s:%s:%s", keyPrefix, viewerID, kind, entityID)
}

// Load retrieves the form state for a viewer and entity.
func (r *FormStateRepository) Load(ctx context.Context, viewerID string, kind domain.EntityKind, entityID string) (form.State, error) {
	key := formKey(viewerID, kind, entityID)

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return form.State{}, apperrors.NotFound("review form", string(kind)+":"+entityID)
		}
		return form.State{}, fmt.Errorf("redis get review form: %w", err)
	}

	var st form.State
	if err := json.Unmarshal(data, &st); err != nil {
		return form.State{}, fmt.Errorf("unmarshal review form: %w", err)
	}
	return st, nil
}

// SaveIfVersion writes the state inside a WATCH/MULTI transaction so two
// requests for the same form cannot both win.
func (r *FormStateRepository) SaveIfVersion(ctx context.Context, viewerID string, st form.State, expected int64) error {
	key := formKey(viewerID, st.Kind, st.EntityID)

	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal review form: %w", err)
	}

	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			if expected != 0 {
				return apperrors.Conflict("review form was closed in another request")
			}
		case err != nil:
			return fmt.Errorf("redis get review form: %w", err)
		default:
			var stored form.State
			if err := json.Unmarshal(current, &stored); err != nil {
				return fmt.Errorf("unmarshal review form: %w", err)
			}
			if stored.Version != expected {
				return apperrors.Conflict("review form changed in another request")
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.ttl)
			return nil
		})
		return err
	}

	if err := r.client.Watch(ctx, txf, key); err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return apperrors.Conflict("review form changed in another request")
		}
		return err
	}
	return nil
}

// Delete removes the form state for a viewer and entity.
func (r *FormStateRepository) Delete(ctx context.Context, viewerID string, kind domain.EntityKind, entityID string) error {
	if err := r.client.Del(ctx, formKey(viewerID, kind, entityID)).Err(); err != nil {
		return fmt.Errorf("redis del review form: %w", err)
	}
	return nil
}
