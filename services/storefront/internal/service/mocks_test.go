package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	apperrors "github.com/utafrali/RentMarket/pkg/errors"
	"github.com/utafrali/RentMarket/services/storefront/internal/domain"
	"github.com/utafrali/RentMarket/services/storefront/internal/form"
	"github.com/utafrali/RentMarket/services/storefront/internal/identity"
	"github.com/utafrali/RentMarket/services/storefront/internal/normalize"
)

type mockRatingsAPI struct {
	mock.Mock
}

func (m *mockRatingsAPI) FetchSummary(ctx context.Context, kind domain.EntityKind, entityID, token string) ([]byte, error) {
	args := m.Called(ctx, kind, entityID, token)
	raw, _ := args.Get(0).([]byte)
	return raw, args.Error(1)
}

func (m *mockRatingsAPI) CreateReview(ctx context.Context, token string, sub domain.Submission) error {
	return m.Called(ctx, token, sub).Error(0)
}

func (m *mockRatingsAPI) UpdateReview(ctx context.Context, token string, sub domain.Submission) error {
	return m.Called(ctx, token, sub).Error(0)
}

func (m *mockRatingsAPI) DeleteReview(ctx context.Context, token string, kind domain.EntityKind, reviewID string) error {
	return m.Called(ctx, token, kind, reviewID).Error(0)
}

type mockEvents struct {
	mock.Mock
}

func (m *mockEvents) ReviewSubmitted(ctx context.Context, viewerID string, sub domain.Submission) error {
	return m.Called(ctx, viewerID, sub).Error(0)
}

func (m *mockEvents) ReviewDeleted(ctx context.Context, viewerID string, kind domain.EntityKind, entityID, reviewID string) error {
	return m.Called(ctx, viewerID, kind, entityID, reviewID).Error(0)
}

// memForms is an in-memory FormStateRepository with the same version check
// as the Redis store.
type memForms struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMemForms() *memForms {
	return &memForms{items: make(map[string][]byte)}
}

func memKey(viewerID string, kind domain.EntityKind, entityID string) string {
	return viewerID + ":" + string(kind) + ":" + entityID
}

func (m *memForms) Load(_ context.Context, viewerID string, kind domain.EntityKind, entityID string) (form.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.items[memKey(viewerID, kind, entityID)]
	if !ok {
		return form.State{}, apperrors.NotFound("review form", entityID)
	}
	var st form.State
	err := json.Unmarshal(raw, &st)
	return st, err
}

func (m *memForms) SaveIfVersion(_ context.Context, viewerID string, st form.State, expected int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memKey(viewerID, st.Kind, st.EntityID)
	if raw, ok := m.items[key]; ok {
		var stored form.State
		if err := json.Unmarshal(raw, &stored); err != nil {
			return err
		}
		if stored.Version != expected {
			return apperrors.Conflict("review form changed in another request")
		}
	} else if expected != 0 {
		return apperrors.Conflict("review form was closed in another request")
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	m.items[key] = raw
	return nil
}

func (m *memForms) Delete(_ context.Context, viewerID string, kind domain.EntityKind, entityID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, memKey(viewerID, kind, entityID))
	return nil
}

func (m *memForms) state(viewerID string, kind domain.EntityKind, entityID string) (form.State, bool) {
	st, err := m.Load(context.Background(), viewerID, kind, entityID)
	return st, err == nil
}

var (
	viewerU1  = identity.Viewer{Token: "tok-u1", UserID: "u1"}
	anonymous = identity.Anonymous()
	testNow   = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestService(api *mockRatingsAPI, events *mockEvents, forms *memForms) *RatingService {
	svc := NewRatingService(api, normalize.New(normalize.DefaultFieldChains(), nil), events, forms, discardLogger(), Options{
		SubmitTimeout:    50 * time.Millisecond,
		StaleSubmitAfter: 30 * time.Second,
	})
	svc.now = func() time.Time { return testNow }
	return svc
}
