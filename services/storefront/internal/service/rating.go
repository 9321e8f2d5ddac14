package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/RentMarket/pkg/tracing"
	"github.com/utafrali/RentMarket/services/storefront/internal/domain"
	"github.com/utafrali/RentMarket/services/storefront/internal/form"
	"github.com/utafrali/RentMarket/services/storefront/internal/identity"
	"github.com/utafrali/RentMarket/services/storefront/internal/normalize"
	"github.com/utafrali/RentMarket/services/storefront/internal/repository"
)

// RatingsAPI is the ratings backend as seen by the service.
type RatingsAPI interface {
	FetchSummary(ctx context.Context, kind domain.EntityKind, entityID, token string) ([]byte, error)
	CreateReview(ctx context.Context, token string, sub domain.Submission) error
	UpdateReview(ctx context.Context, token string, sub domain.Submission) error
	DeleteReview(ctx context.Context, token string, kind domain.EntityKind, reviewID string) error
}

// EventPublisher announces completed mutations.
type EventPublisher interface {
	ReviewSubmitted(ctx context.Context, viewerID string, sub domain.Submission) error
	ReviewDeleted(ctx context.Context, viewerID string, kind domain.EntityKind, entityID, reviewID string) error
}

// Options tune the submission protocol.
type Options struct {
	// SubmitTimeout bounds each create, update or delete call.
	SubmitTimeout time.Duration
	// StaleSubmitAfter releases a stored form stuck in submitting.
	StaleSubmitAfter time.Duration
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		SubmitTimeout:    15 * time.Second,
		StaleSubmitAfter: 30 * time.Second,
	}
}

// RatingService loads rating summaries and runs the review submission
// protocol. The viewer is passed to every call; nothing about the viewer is
// kept between calls.
type RatingService struct {
	api        RatingsAPI
	normalizer *normalize.Normalizer
	events     EventPublisher
	forms      repository.FormStateRepository
	logger     *slog.Logger
	tracer     trace.Tracer
	opts       Options
	now        func() time.Time
}

// NewRatingService creates a new rating service.
func NewRatingService(
	api RatingsAPI,
	normalizer *normalize.Normalizer,
	events EventPublisher,
	forms repository.FormStateRepository,
	logger *slog.Logger,
	opts Options,
) *RatingService {
	defaults := DefaultOptions()
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = defaults.SubmitTimeout
	}
	if opts.StaleSubmitAfter <= 0 {
		opts.StaleSubmitAfter = defaults.StaleSubmitAfter
	}
	return &RatingService{
		api:        api,
		normalizer: normalizer,
		events:     events,
		forms:      forms,
		logger:     logger,
		tracer:     tracing.Tracer("github.com/utafrali/RentMarket/services/storefront/internal/service"),
		opts:       opts,
		now:        time.Now,
	}
}

// LoadSummary fetches and normalizes the ratings of one entity for viewer.
func (s *RatingService) LoadSummary(ctx context.Context, viewer identity.Viewer, kind domain.EntityKind, entityID string) (_ *domain.RatingSummary, err error) {
	ctx, span := tracing.Start(ctx, s.tracer, "RatingService.LoadSummary",
		"rating.kind", string(kind), "rating.entity_id", entityID)
	defer func() { tracing.End(span, err) }()

	if !kind.Valid() {
		return nil, fmt.Errorf("load ratings: unknown entity kind %q", kind)
	}

	raw, err := s.api.FetchSummary(ctx, kind, entityID, viewer.Token)
	if err != nil {
		return nil, fmt.Errorf("fetch ratings: %w", err)
	}
	return s.normalizer.Normalize(raw, kind, entityID, viewer.UserID), nil
}

// Submit sends a validated submission and, on success, reloads the summary
// once, publishes an event and emits one success message. A *SubmitError
// means nothing changed; a *ReloadError means the review was saved but the
// summary could not be refreshed.
func (s *RatingService) Submit(ctx context.Context, viewer identity.Viewer, sub domain.Submission, sink MessageSink) (_ *domain.RatingSummary, err error) {
	ctx, span := tracing.Start(ctx, s.tracer, "RatingService.Submit",
		"rating.kind", string(sub.Kind), "rating.entity_id", sub.EntityID, "rating.mode", string(sub.Mode))
	defer func() { tracing.End(span, err) }()

	if !viewer.Identified() {
		return nil, ErrViewerRequired
	}
	sink = sinkOrDiscard(sink)

	callCtx, cancel := context.WithTimeout(ctx, s.opts.SubmitTimeout)
	if sub.Mode == domain.ModeUpdate {
		err = s.api.UpdateReview(callCtx, viewer.Token, sub)
	} else {
		err = s.api.CreateReview(callCtx, viewer.Token, sub)
	}
	cancel()
	if err != nil {
		se := classifySubmitError(err)
		submissions.WithLabelValues(string(sub.Kind), string(sub.Mode), string(se.Kind)).Inc()
		s.logger.WarnContext(ctx, "review submission failed",
			slog.String("kind", string(sub.Kind)),
			slog.String("entity_id", sub.EntityID),
			slog.String("mode", string(sub.Mode)),
			slog.String("error_kind", string(se.Kind)),
			slog.String("error", err.Error()),
		)
		return nil, se
	}

	summary, reloadErr := s.LoadSummary(ctx, viewer, sub.Kind, sub.EntityID)

	if err := s.events.ReviewSubmitted(ctx, viewer.UserID, sub); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review submitted event",
			slog.String("entity_id", sub.EntityID),
			slog.String("error", err.Error()),
		)
	}

	if sub.Mode == domain.ModeUpdate {
		sink.Success(MsgUpdated)
	} else {
		sink.Success(MsgCreated)
	}

	s.logger.InfoContext(ctx, "review submitted",
		slog.String("kind", string(sub.Kind)),
		slog.String("entity_id", sub.EntityID),
		slog.String("mode", string(sub.Mode)),
	)

	if reloadErr != nil {
		submissions.WithLabelValues(string(sub.Kind), string(sub.Mode), outcomeReload).Inc()
		return nil, &ReloadError{Err: reloadErr}
	}
	submissions.WithLabelValues(string(sub.Kind), string(sub.Mode), outcomeSuccess).Inc()
	return summary, nil
}

// SubmitForm runs a whole submission for a form controller: validate, send,
// then hide the form on success or reopen it for a retry on failure. Every
// failure is also reported to sink. Validation failures never reach the backend.
func (s *RatingService) SubmitForm(ctx context.Context, viewer identity.Viewer, ctrl *form.Controller, sink MessageSink) (*domain.RatingSummary, error) {
	sink = sinkOrDiscard(sink)
	sub, err := s.beginSubmit(ctrl, sink)
	if err != nil {
		return nil, err
	}
	return s.settle(ctx, viewer, ctrl, sub, sink)
}

func (s *RatingService) beginSubmit(ctrl *form.Controller, sink MessageSink) (domain.Submission, error) {
	sub, err := ctrl.BeginSubmit(s.now())
	if err != nil {
		var fe *form.FieldError
		if errors.As(err, &fe) {
			st := ctrl.State()
			submissions.WithLabelValues(string(st.Kind), string(modeOf(st)), outcomeValidation).Inc()
			sink.Error(fe.Message)
		}
		return domain.Submission{}, err
	}
	return sub, nil
}

func (s *RatingService) settle(ctx context.Context, viewer identity.Viewer, ctrl *form.Controller, sub domain.Submission, sink MessageSink) (*domain.RatingSummary, error) {
	summary, err := s.Submit(ctx, viewer, sub, sink)

	var reloadErr *ReloadError
	switch {
	case err == nil:
		ctrl.Complete()
	case errors.As(err, &reloadErr):
		ctrl.Complete()
		s.logger.WarnContext(ctx, "review saved but reload failed",
			slog.String("entity_id", sub.EntityID),
			slog.String("error", reloadErr.Err.Error()),
		)
	default:
		ctrl.Fail()
		sink.Error(userMessage(err))
	}
	return summary, err
}

// Delete removes the viewer's review after confirm agrees, then reloads the
// summary once, publishes an event and emits one success message.
func (s *RatingService) Delete(ctx context.Context, viewer identity.Viewer, kind domain.EntityKind, entityID, reviewID string, confirm Confirmer, sink MessageSink) (_ *domain.RatingSummary, err error) {
	ctx, span := tracing.Start(ctx, s.tracer, "RatingService.Delete",
		"rating.kind", string(kind), "rating.entity_id", entityID, "rating.review_id", reviewID)
	defer func() { tracing.End(span, err) }()

	sink = sinkOrDiscard(sink)
	if !viewer.Identified() {
		sink.Error(msgLoginNeeded)
		return nil, ErrViewerRequired
	}
	if confirm == nil || !confirm(ctx, DeleteConfirmPrompt) {
		return nil, ErrDeleteNotConfirmed
	}

	const mode = "delete"
	callCtx, cancel := context.WithTimeout(ctx, s.opts.SubmitTimeout)
	err = s.api.DeleteReview(callCtx, viewer.Token, kind, reviewID)
	cancel()
	if err != nil {
		se := classifySubmitError(err)
		submissions.WithLabelValues(string(kind), mode, string(se.Kind)).Inc()
		s.logger.WarnContext(ctx, "review deletion failed",
			slog.String("kind", string(kind)),
			slog.String("review_id", reviewID),
			slog.String("error_kind", string(se.Kind)),
			slog.String("error", err.Error()),
		)
		sink.Error(se.Message)
		return nil, se
	}

	summary, reloadErr := s.LoadSummary(ctx, viewer, kind, entityID)

	if err := s.events.ReviewDeleted(ctx, viewer.UserID, kind, entityID, reviewID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review deleted event",
			slog.String("review_id", reviewID),
			slog.String("error", err.Error()),
		)
	}
	if s.forms != nil {
		if err := s.forms.Delete(ctx, viewer.UserID, kind, entityID); err != nil {
			s.logger.WarnContext(ctx, "failed to clear review form after delete",
				slog.String("entity_id", entityID),
				slog.String("error", err.Error()),
			)
		}
	}

	sink.Success(MsgDeleted)
	s.logger.InfoContext(ctx, "review deleted",
		slog.String("kind", string(kind)),
		slog.String("entity_id", entityID),
		slog.String("review_id", reviewID),
	)

	if reloadErr != nil {
		submissions.WithLabelValues(string(kind), mode, outcomeReload).Inc()
		return nil, &ReloadError{Err: reloadErr}
	}
	submissions.WithLabelValues(string(kind), mode, outcomeSuccess).Inc()
	return summary, nil
}

func modeOf(st form.State) domain.SubmitMode {
	if st.Mode == form.ModeEdit {
		return domain.ModeUpdate
	}
	return domain.ModeCreate
}
