package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/RentMarket/pkg/errors"
	"github.com/utafrali/RentMarket/services/storefront/internal/domain"
	"github.com/utafrali/RentMarket/services/storefront/internal/form"
)

func TestOpenForm_EditModeStored(t *testing.T) {
	api := new(mockRatingsAPI)
	api.On("FetchSummary", mock.Anything, domain.KindItem, "i1", "tok-u1").Return([]byte(itemWithViewerReview), nil)
	forms := newMemForms()
	svc := newTestService(api, new(mockEvents), forms)

	v, err := svc.OpenForm(context.Background(), viewerU1, domain.KindItem, "i1")
	require.NoError(t, err)
	assert.Equal(t, form.Visible, v.Visibility)
	assert.Equal(t, form.ModeEdit, v.Mode)
	assert.Equal(t, 4, v.SelectedStars)
	assert.True(t, v.ScrollIntoView)

	st, ok := forms.state("u1", domain.KindItem, "i1")
	require.True(t, ok)
	assert.Equal(t, "r1", st.ReviewID)

	again, err := svc.OpenForm(context.Background(), viewerU1, domain.KindItem, "i1")
	require.NoError(t, err)
	assert.False(t, again.ScrollIntoView)
	api.AssertNumberOfCalls(t, "FetchSummary", 1)
}

func TestForm_RequiresViewer(t *testing.T) {
	svc := newTestService(new(mockRatingsAPI), new(mockEvents), newMemForms())
	_, err := svc.OpenForm(context.Background(), anonymous, domain.KindItem, "i1")
	assert.ErrorIs(t, err, ErrViewerRequired)
	_, err = svc.SubmitFields(context.Background(), anonymous, domain.KindItem, "i1", form.Fields{}, nil)
	assert.ErrorIs(t, err, ErrViewerRequired)
}

func TestToggleAndCloseForm(t *testing.T) {
	api := new(mockRatingsAPI)
	api.On("FetchSummary", mock.Anything, domain.KindOwner, "o1", "tok-u1").Return([]byte(`[]`), nil)
	forms := newMemForms()
	svc := newTestService(api, new(mockEvents), forms)
	ctx := context.Background()

	v, err := svc.ToggleForm(ctx, viewerU1, domain.KindOwner, "o1")
	require.NoError(t, err)
	assert.Equal(t, form.Visible, v.Visibility)
	assert.Equal(t, form.ModeCreate, v.Mode)

	v, err = svc.ToggleForm(ctx, viewerU1, domain.KindOwner, "o1")
	require.NoError(t, err)
	assert.Equal(t, form.Hidden, v.Visibility)

	_, err = svc.OpenForm(ctx, viewerU1, domain.KindOwner, "o1")
	require.NoError(t, err)
	v, err = svc.CloseForm(ctx, viewerU1, domain.KindOwner, "o1")
	require.NoError(t, err)
	assert.Equal(t, form.Hidden, v.Visibility)

	st, ok := forms.state("u1", domain.KindOwner, "o1")
	require.True(t, ok)
	assert.Equal(t, form.Hidden, st.Visibility)
}

func TestSubmitFields_Success(t *testing.T) {
	api := new(mockRatingsAPI)
	events := new(mockEvents)
	api.On("FetchSummary", mock.Anything, domain.KindOwner, "o1", "tok-u1").Return([]byte(`[]`), nil).Once()
	api.On("CreateReview", mock.Anything, "tok-u1", domain.Submission{
		Kind: domain.KindOwner, EntityID: "o1", Mode: domain.ModeCreate, Score: 5, Comment: "great host",
		Categories: &domain.CategoryScores{Communication: 5, Reliability: 4, ItemCondition: 5},
	}).Return(nil).Once()
	api.On("FetchSummary", mock.Anything, domain.KindOwner, "o1", "tok-u1").
		Return([]byte(`[{"id":"n1","userId":"u1","score":5}]`), nil).Once()
	events.On("ReviewSubmitted", mock.Anything, "u1", mock.Anything).Return(nil)
	forms := newMemForms()
	svc := newTestService(api, events, forms)

	msgs := &Messages{}
	res, err := svc.SubmitFields(context.Background(), viewerU1, domain.KindOwner, "o1", form.Fields{
		Score: 5, Comment: " great host ", Communication: 5, Reliability: 4, ItemCondition: 5,
	}, msgs)
	require.NoError(t, err)
	assert.Equal(t, "n1", res.Summary.ViewerReviewID)
	assert.Equal(t, form.Hidden, res.Form.Visibility)
	assert.Equal(t, []string{MsgCreated}, msgs.Successes)

	st, ok := forms.state("u1", domain.KindOwner, "o1")
	require.True(t, ok)
	assert.Equal(t, form.Hidden, st.Visibility)
	assert.Nil(t, st.SubmittingSince)
	api.AssertExpectations(t)
}

func TestSubmitFields_ValidationStoresFields(t *testing.T) {
	api := new(mockRatingsAPI)
	api.On("FetchSummary", mock.Anything, domain.KindItem, "i1", "tok-u1").Return([]byte(`[]`), nil)
	forms := newMemForms()
	svc := newTestService(api, new(mockEvents), forms)

	msgs := &Messages{}
	_, err := svc.SubmitFields(context.Background(), viewerU1, domain.KindItem, "i1", form.Fields{Score: 4, Comment: "  "}, msgs)

	var fe *form.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, form.FieldComment, fe.Field)
	assert.Len(t, msgs.Errors, 1)

	st, ok := forms.state("u1", domain.KindItem, "i1")
	require.True(t, ok)
	assert.Equal(t, form.Visible, st.Visibility)
	assert.Equal(t, 4, st.Fields.Score)
	api.AssertNotCalled(t, "CreateReview", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitFields_RejectedWhileSubmitting(t *testing.T) {
	forms := newMemForms()
	since := testNow.Add(-5 * time.Second)
	require.NoError(t, forms.SaveIfVersion(context.Background(), "u1", form.State{
		Version: 4, Kind: domain.KindItem, EntityID: "i1",
		Visibility: form.Submitting, Mode: form.ModeCreate,
		Fields:          form.Fields{Score: 4, Comment: "x"},
		SubmittingSince: &since,
	}, 0))
	api := new(mockRatingsAPI)
	svc := newTestService(api, new(mockEvents), forms)

	_, err := svc.SubmitFields(context.Background(), viewerU1, domain.KindItem, "i1", form.Fields{Score: 5, Comment: "y"}, nil)
	assert.ErrorIs(t, err, form.ErrSubmitting)

	_, err = svc.ToggleForm(context.Background(), viewerU1, domain.KindItem, "i1")
	assert.ErrorIs(t, err, form.ErrSubmitting)
	api.AssertNotCalled(t, "CreateReview", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitFields_StaleSubmittingReleased(t *testing.T) {
	forms := newMemForms()
	since := testNow.Add(-time.Minute)
	require.NoError(t, forms.SaveIfVersion(context.Background(), "u1", form.State{
		Version: 4, Kind: domain.KindItem, EntityID: "i1",
		Visibility: form.Submitting, Mode: form.ModeCreate,
		Fields:          form.Fields{Score: 4, Comment: "x"},
		SubmittingSince: &since,
	}, 0))
	api := new(mockRatingsAPI)
	events := new(mockEvents)
	api.On("CreateReview", mock.Anything, "tok-u1", mock.Anything).Return(nil)
	api.On("FetchSummary", mock.Anything, domain.KindItem, "i1", "tok-u1").Return([]byte(`[]`), nil)
	events.On("ReviewSubmitted", mock.Anything, "u1", mock.Anything).Return(nil)
	svc := newTestService(api, events, forms)

	res, err := svc.SubmitFields(context.Background(), viewerU1, domain.KindItem, "i1", form.Fields{Score: 5, Comment: "y"}, nil)
	require.NoError(t, err)
	assert.Equal(t, form.Hidden, res.Form.Visibility)
	api.AssertNumberOfCalls(t, "CreateReview", 1)
}

func TestSubmitFields_FailureReopens(t *testing.T) {
	api := new(mockRatingsAPI)
	api.On("FetchSummary", mock.Anything, domain.KindItem, "i1", "tok-u1").Return([]byte(`[]`), nil)
	api.On("CreateReview", mock.Anything, "tok-u1", mock.Anything).Return(apperrors.Unauthorized("token expired"))
	forms := newMemForms()
	svc := newTestService(api, new(mockEvents), forms)

	msgs := &Messages{}
	_, err := svc.SubmitFields(context.Background(), viewerU1, domain.KindItem, "i1", form.Fields{Score: 3, Comment: "ok"}, msgs)

	var se *SubmitError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, KindUnauthorized, se.Kind)
	assert.Equal(t, []string{"token expired"}, msgs.Errors)

	st, ok := forms.state("u1", domain.KindItem, "i1")
	require.True(t, ok)
	assert.Equal(t, form.Visible, st.Visibility)
	assert.Equal(t, 3, st.Fields.Score)
}

func TestTransition_ConflictSurfaces(t *testing.T) {
	api := new(mockRatingsAPI)
	api.On("FetchSummary", mock.Anything, domain.KindItem, "i1", "tok-u1").Return([]byte(`[]`), nil)
	forms := newMemForms()
	svc := newTestService(api, new(mockEvents), forms)

	// Another request stores a newer version between load and save.
	api.On("FetchSummary", mock.Anything, domain.KindItem, "i2", "tok-u1").
		Run(func(mock.Arguments) {
			_ = forms.SaveIfVersion(context.Background(), "u1", form.State{Version: 9, Kind: domain.KindItem, EntityID: "i2", Visibility: form.Hidden}, 0)
		}).
		Return([]byte(`[]`), nil)

	_, err := svc.OpenForm(context.Background(), viewerU1, domain.KindItem, "i2")
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}
