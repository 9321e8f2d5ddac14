package form

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/RentMarket/services/storefront/internal/domain"
	"github.com/utafrali/RentMarket/services/storefront/internal/normalize"
)

var now = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

func TestOpen_CreateMode(t *testing.T) {
	c := NewController(domain.KindItem, "i1")
	v, err := c.Open(&domain.RatingSummary{})
	require.NoError(t, err)

	assert.Equal(t, Visible, v.Visibility)
	assert.Equal(t, ModeCreate, v.Mode)
	assert.Empty(t, v.ReviewID)
	assert.Equal(t, Fields{}, v.Fields)
	assert.True(t, v.ScrollIntoView)
	assert.False(t, v.TriggerDisabled)
}

func TestOpen_EditModePrefilled(t *testing.T) {
	raw := `{"data":[{"id":"r1","score":4,"userId":"u1","comment":"solid"}],"count":1}`
	summary := normalize.Normalize([]byte(raw), domain.KindItem, "i1", "u1")
	require.Equal(t, "r1", summary.ViewerReviewID)

	c := NewController(domain.KindItem, "i1")
	v, err := c.Open(summary)
	require.NoError(t, err)

	assert.Equal(t, ModeEdit, v.Mode)
	assert.Equal(t, "r1", v.ReviewID)
	assert.Equal(t, 4, v.Fields.Score)
	assert.Equal(t, 4, v.SelectedStars)
	assert.Equal(t, "solid", v.Fields.Comment)
}

func TestOpen_EditModeForReviewWithoutID(t *testing.T) {
	raw := `{"data":[{"score":4,"userId":"u1"}],"count":1}`
	summary := normalize.Normalize([]byte(raw), domain.KindItem, "i1", "u1")
	require.NotEmpty(t, summary.ViewerReviewID)

	c := NewController(domain.KindItem, "i1")
	v, err := c.Open(summary)
	require.NoError(t, err)

	assert.Equal(t, ModeEdit, v.Mode)
	assert.Empty(t, v.ReviewID)
	assert.Equal(t, 4, v.Fields.Score)
	assert.Equal(t, 4, v.SelectedStars)

	require.NoError(t, c.SetComment("still good"))
	sub, err := c.BeginSubmit(now)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeUpdate, sub.Mode)
	assert.Empty(t, sub.ReviewID)
	assert.Equal(t, 4, sub.Score)
}

func TestOpen_EditOwnerPrefillsCategories(t *testing.T) {
	summary := &domain.RatingSummary{
		EntityKind: domain.KindOwner,
		Reviews: []domain.Review{{
			ID: "r1", AuthorID: "u1", Score: 5,
			Categories: &domain.CategoryScores{Communication: 4, Reliability: 3, ItemCondition: 5},
		}},
		ViewerReviewID: "r1",
	}
	c := NewController(domain.KindOwner, "o1")
	v, err := c.Open(summary)
	require.NoError(t, err)
	assert.Equal(t, Fields{Score: 5, Communication: 4, Reliability: 3, ItemCondition: 5}, v.Fields)
}

func TestOpen_ModeCapturedOnce(t *testing.T) {
	summary := &domain.RatingSummary{
		Reviews:        []domain.Review{{ID: "r1", AuthorID: "u1", Score: 3}},
		ViewerReviewID: "r1",
	}
	c := NewController(domain.KindItem, "i1")
	_, err := c.Open(summary)
	require.NoError(t, err)

	v, err := c.Open(&domain.RatingSummary{})
	require.NoError(t, err)
	assert.Equal(t, ModeEdit, v.Mode)
	assert.Equal(t, "r1", v.ReviewID)
	assert.False(t, v.ScrollIntoView)
}

func TestToggle(t *testing.T) {
	c := NewController(domain.KindItem, "i1")

	v, err := c.Toggle(nil)
	require.NoError(t, err)
	assert.Equal(t, Visible, v.Visibility)

	require.NoError(t, c.SetScore(3))
	v, err = c.Toggle(nil)
	require.NoError(t, err)
	assert.Equal(t, Hidden, v.Visibility)
	assert.Equal(t, Fields{}, v.Fields)
}

func TestSubmitting_RejectsInteraction(t *testing.T) {
	c := openFilled(t, domain.KindItem)
	_, err := c.BeginSubmit(now)
	require.NoError(t, err)
	assert.True(t, c.View().TriggerDisabled)

	_, err = c.Toggle(nil)
	assert.ErrorIs(t, err, ErrSubmitting)
	_, err = c.Open(nil)
	assert.ErrorIs(t, err, ErrSubmitting)
	_, err = c.Close()
	assert.ErrorIs(t, err, ErrSubmitting)
	assert.ErrorIs(t, c.SetScore(1), ErrSubmitting)
	_, err = c.BeginSubmit(now)
	assert.ErrorIs(t, err, ErrSubmitting)
}

func TestSetters_RequireOpenForm(t *testing.T) {
	c := NewController(domain.KindOwner, "o1")
	assert.ErrorIs(t, c.SetScore(3), ErrNotOpen)
	assert.ErrorIs(t, c.SetComment("x"), ErrNotOpen)
	assert.ErrorIs(t, c.SetCategory(FieldReliability, 3), ErrNotOpen)
	_, err := c.BeginSubmit(now)
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestSetCategory(t *testing.T) {
	c := NewController(domain.KindOwner, "o1")
	_, err := c.Open(nil)
	require.NoError(t, err)

	require.NoError(t, c.SetCategory(FieldCommunication, 4))
	require.NoError(t, c.SetCategory(FieldReliability, 3))
	require.NoError(t, c.SetCategory(FieldItemCondition, 2))
	assert.Equal(t, Fields{Communication: 4, Reliability: 3, ItemCondition: 2}, c.View().Fields)
	assert.ErrorIs(t, c.SetCategory("punctuality", 5), ErrUnknownCategory)

	item := NewController(domain.KindItem, "i1")
	_, err = item.Open(nil)
	require.NoError(t, err)
	assert.ErrorIs(t, item.SetCategory(FieldCommunication, 4), ErrUnknownCategory)
}

func TestBeginSubmit_ZeroScoreBlocked(t *testing.T) {
	c := NewController(domain.KindItem, "i1")
	_, err := c.Open(nil)
	require.NoError(t, err)
	require.NoError(t, c.SetComment("fine"))

	_, err = c.BeginSubmit(now)
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, FieldScore, fe.Field)
	assert.Contains(t, fe.Message, "rating")
	assert.Equal(t, Visible, c.View().Visibility)
}

func TestBeginSubmit_CreatePayload(t *testing.T) {
	c := openFilled(t, domain.KindItem)
	sub, err := c.BeginSubmit(now)
	require.NoError(t, err)

	assert.Equal(t, domain.Submission{
		Kind: domain.KindItem, EntityID: "i1", Mode: domain.ModeCreate,
		Score: 4, Comment: "great item",
	}, sub)
	st := c.State()
	assert.Equal(t, Submitting, st.Visibility)
	require.NotNil(t, st.SubmittingSince)
	assert.Equal(t, now, *st.SubmittingSince)
}

func TestBeginSubmit_UpdateOwnerPayload(t *testing.T) {
	summary := &domain.RatingSummary{
		EntityKind: domain.KindOwner,
		Reviews: []domain.Review{{
			ID: "r9", AuthorID: "u1", Score: 2, Comment: "meh",
			Categories: &domain.CategoryScores{Communication: 2, Reliability: 2, ItemCondition: 2},
		}},
		ViewerReviewID: "r9",
	}
	c := NewController(domain.KindOwner, "o1")
	_, err := c.Open(summary)
	require.NoError(t, err)
	require.NoError(t, c.SetScore(5))

	sub, err := c.BeginSubmit(now)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeUpdate, sub.Mode)
	assert.Equal(t, "r9", sub.ReviewID)
	assert.Equal(t, 5, sub.Score)
	require.NotNil(t, sub.Categories)
	assert.Equal(t, 2.0, sub.Categories.Reliability)
}

func TestComplete_ResetsToHidden(t *testing.T) {
	c := openFilled(t, domain.KindItem)
	_, err := c.BeginSubmit(now)
	require.NoError(t, err)

	c.Complete()
	v := c.View()
	assert.Equal(t, Hidden, v.Visibility)
	assert.Equal(t, ModeCreate, v.Mode)
	assert.Equal(t, Fields{}, v.Fields)
	assert.Nil(t, c.State().SubmittingSince)
}

func TestFail_KeepsFieldsForRetry(t *testing.T) {
	c := openFilled(t, domain.KindItem)
	_, err := c.BeginSubmit(now)
	require.NoError(t, err)

	c.Fail()
	v := c.View()
	assert.Equal(t, Visible, v.Visibility)
	assert.Equal(t, 4, v.Fields.Score)

	_, err = c.BeginSubmit(now)
	assert.NoError(t, err)
}

func TestExpire(t *testing.T) {
	c := openFilled(t, domain.KindItem)
	_, err := c.BeginSubmit(now)
	require.NoError(t, err)

	assert.False(t, c.Expire(now.Add(10*time.Second), 30*time.Second))
	assert.Equal(t, Submitting, c.View().Visibility)

	assert.True(t, c.Expire(now.Add(31*time.Second), 30*time.Second))
	assert.Equal(t, Visible, c.View().Visibility)
	assert.False(t, c.Expire(now.Add(time.Hour), 30*time.Second))
}

func TestVersionIncreasesOnMutation(t *testing.T) {
	c := NewController(domain.KindItem, "i1")
	v0 := c.State().Version
	_, err := c.Open(nil)
	require.NoError(t, err)
	v1 := c.State().Version
	require.NoError(t, c.SetScore(3))
	v2 := c.State().Version

	assert.Greater(t, v1, v0)
	assert.Greater(t, v2, v1)

	before := c.State().Version
	c.View()
	assert.Equal(t, before, c.State().Version)
}

func TestStateRoundTripsThroughRestore(t *testing.T) {
	c := openFilled(t, domain.KindOwner)
	_, err := c.BeginSubmit(now)
	require.NoError(t, err)

	raw, err := json.Marshal(c.State())
	require.NoError(t, err)
	var st State
	require.NoError(t, json.Unmarshal(raw, &st))

	restored := Restore(st)
	assert.Equal(t, c.View(), restored.View())
	assert.True(t, restored.Expire(now.Add(time.Minute), 30*time.Second))
}

func TestRestore_DefaultsEmptyState(t *testing.T) {
	c := Restore(State{Kind: domain.KindItem, EntityID: "i1"})
	assert.Equal(t, Hidden, c.View().Visibility)
	assert.Equal(t, ModeCreate, c.View().Mode)
}

func openFilled(t *testing.T, kind domain.EntityKind) *Controller {
	t.Helper()
	id := "i1"
	if kind == domain.KindOwner {
		id = "o1"
	}
	c := NewController(kind, id)
	_, err := c.Open(nil)
	require.NoError(t, err)
	require.NoError(t, c.SetScore(4))
	require.NoError(t, c.SetComment("  great item  "))
	if kind == domain.KindOwner {
		require.NoError(t, c.SetCategory(FieldCommunication, 5))
		require.NoError(t, c.SetCategory(FieldReliability, 4))
		require.NoError(t, c.SetCategory(FieldItemCondition, 3))
	}
	return c
}
