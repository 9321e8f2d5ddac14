package service

import (
	"context"
	"errors"
	"log/slog"

	apperrors "github.com/utafrali/RentMarket/pkg/errors"
	"github.com/utafrali/RentMarket/services/storefront/internal/domain"
	"github.com/utafrali/RentMarket/services/storefront/internal/form"
	"github.com/utafrali/RentMarket/services/storefront/internal/identity"
)

// SubmitResult is the outcome of SubmitFields.
type SubmitResult struct {
	Summary *domain.RatingSummary
	Form    form.View
}

// OpenForm opens the viewer's stored review form for an entity. The mode is
// decided from a freshly loaded summary.
func (s *RatingService) OpenForm(ctx context.Context, viewer identity.Viewer, kind domain.EntityKind, entityID string) (form.View, error) {
	return s.transition(ctx, viewer, kind, entityID, func(ctrl *form.Controller, summary *domain.RatingSummary) (form.View, error) {
		return ctrl.Open(summary)
	})
}

// ToggleForm opens a hidden form and closes a visible one.
func (s *RatingService) ToggleForm(ctx context.Context, viewer identity.Viewer, kind domain.EntityKind, entityID string) (form.View, error) {
	return s.transition(ctx, viewer, kind, entityID, func(ctrl *form.Controller, summary *domain.RatingSummary) (form.View, error) {
		return ctrl.Toggle(summary)
	})
}

// CloseForm hides the form and discards its inputs.
func (s *RatingService) CloseForm(ctx context.Context, viewer identity.Viewer, kind domain.EntityKind, entityID string) (form.View, error) {
	return s.transition(ctx, viewer, kind, entityID, func(ctrl *form.Controller, _ *domain.RatingSummary) (form.View, error) {
		return ctrl.Close()
	})
}

// SubmitFields fills the stored form with fields and submits it. A hidden
// form is opened first. On a *ReloadError the result still carries the
// settled form, without a summary. The submitting state is stored before the backend is
// called, so a second submit for the same form is rejected until this one
// settles or goes stale.
func (s *RatingService) SubmitFields(ctx context.Context, viewer identity.Viewer, kind domain.EntityKind, entityID string, fields form.Fields, sink MessageSink) (*SubmitResult, error) {
	if !viewer.Identified() {
		return nil, ErrViewerRequired
	}
	sink = sinkOrDiscard(sink)

	ctrl, version, err := s.loadForm(ctx, viewer, kind, entityID)
	if err != nil {
		return nil, err
	}

	if ctrl.View().Visibility == form.Hidden {
		summary, err := s.LoadSummary(ctx, viewer, kind, entityID)
		if err != nil {
			return nil, err
		}
		if _, err := ctrl.Open(summary); err != nil {
			return nil, err
		}
	}
	if err := ctrl.SetFields(fields); err != nil {
		return nil, err
	}

	sub, err := s.beginSubmit(ctrl, sink)
	if err != nil {
		if saveErr := s.saveForm(ctx, viewer, ctrl, version); saveErr != nil {
			return nil, saveErr
		}
		return nil, err
	}
	if err := s.saveForm(ctx, viewer, ctrl, version); err != nil {
		return nil, err
	}
	version = ctrl.State().Version

	summary, submitErr := s.settle(ctx, viewer, ctrl, sub, sink)

	// The backend call already happened; a failed save here only leaves a
	// stale submitting state behind, which expires on its own.
	if err := s.saveForm(ctx, viewer, ctrl, version); err != nil {
		s.logger.WarnContext(ctx, "failed to store review form after submit",
			slog.String("entity_id", entityID),
			slog.String("error", err.Error()),
		)
	}

	if submitErr != nil {
		var reloadErr *ReloadError
		if errors.As(submitErr, &reloadErr) {
			return &SubmitResult{Form: ctrl.View()}, submitErr
		}
		return nil, submitErr
	}
	return &SubmitResult{Summary: summary, Form: ctrl.View()}, nil
}

type transitionFunc func(ctrl *form.Controller, summary *domain.RatingSummary) (form.View, error)

func (s *RatingService) transition(ctx context.Context, viewer identity.Viewer, kind domain.EntityKind, entityID string, fn transitionFunc) (form.View, error) {
	if !viewer.Identified() {
		return form.View{}, ErrViewerRequired
	}

	ctrl, version, err := s.loadForm(ctx, viewer, kind, entityID)
	if err != nil {
		return form.View{}, err
	}

	var summary *domain.RatingSummary
	if ctrl.View().Visibility == form.Hidden {
		summary, err = s.LoadSummary(ctx, viewer, kind, entityID)
		if err != nil {
			return form.View{}, err
		}
	}

	before := ctrl.State().Version
	view, err := fn(ctrl, summary)
	if err != nil {
		return view, err
	}
	if ctrl.State().Version != before {
		if err := s.saveForm(ctx, viewer, ctrl, version); err != nil {
			return form.View{}, err
		}
	}
	return view, nil
}

// loadForm returns the stored controller and the version it was stored
// with (0 when nothing was stored). A stale submitting form is released.
func (s *RatingService) loadForm(ctx context.Context, viewer identity.Viewer, kind domain.EntityKind, entityID string) (*form.Controller, int64, error) {
	st, err := s.forms.Load(ctx, viewer.UserID, kind, entityID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return form.NewController(kind, entityID), 0, nil
		}
		return nil, 0, err
	}

	ctrl := form.Restore(st)
	if ctrl.Expire(s.now(), s.opts.StaleSubmitAfter) {
		s.logger.WarnContext(ctx, "released review form stuck in submitting",
			slog.String("kind", string(kind)),
			slog.String("entity_id", entityID),
		)
	}
	return ctrl, st.Version, nil
}

func (s *RatingService) saveForm(ctx context.Context, viewer identity.Viewer, ctrl *form.Controller, expected int64) error {
	return s.forms.SaveIfVersion(ctx, viewer.UserID, ctrl.State(), expected)
}
