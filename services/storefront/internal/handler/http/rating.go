package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/utafrali/RentMarket/pkg/errors"
	"github.com/utafrali/RentMarket/pkg/httputil"
	"github.com/utafrali/RentMarket/pkg/validator"
	"github.com/utafrali/RentMarket/services/storefront/internal/domain"
	"github.com/utafrali/RentMarket/services/storefront/internal/form"
	"github.com/utafrali/RentMarket/services/storefront/internal/identity"
	"github.com/utafrali/RentMarket/services/storefront/internal/render"
	"github.com/utafrali/RentMarket/services/storefront/internal/service"
)

const maxBodyBytes = 1 << 20

// RatingHandler handles HTTP requests for the ratings section.
type RatingHandler struct {
	service *service.RatingService
	logger  *slog.Logger
	now     func() time.Time
}

// NewRatingHandler creates a new ratings HTTP handler.
func NewRatingHandler(svc *service.RatingService, logger *slog.Logger) *RatingHandler {
	return &RatingHandler{
		service: svc,
		logger:  logger,
		now:     time.Now,
	}
}

// --- Request DTOs ---

// SubmitReviewRequest is the JSON request body for submitting the review form.
// Range checks happen in the form so the messages match the form's wording.
type SubmitReviewRequest struct {
	Score         int    `json:"score"`
	Comment       string `json:"comment" validate:"max=10000"`
	Communication int    `json:"communication"`
	Reliability   int    `json:"reliability"`
	ItemCondition int    `json:"itemCondition"`
}

// DeleteReviewRequest carries the viewer's answer to the delete prompt.
type DeleteReviewRequest struct {
	Confirmed bool `json:"confirmed"`
}

// --- Response DTOs ---

// MutationResponse is returned by submit and delete. Model is nil when the
// mutation went through but the refreshed ratings could not be loaded.
type MutationResponse struct {
	Model        *render.DisplayModel `json:"model,omitempty"`
	Form         *form.View           `json:"form,omitempty"`
	Messages     service.Messages     `json:"messages"`
	ReloadFailed bool                 `json:"reloadFailed,omitempty"`
}

// --- Handlers ---

// GetRatings handles GET /api/v1/{kind}/{entityId}/ratings
func (h *RatingHandler) GetRatings(w http.ResponseWriter, r *http.Request) {
	kind, entityID, ok := h.target(w, r)
	if !ok {
		return
	}
	h.writeModel(w, r, kind, entityID)
}

// QueryRatings handles GET /api/v1/ratings?kind=items&listingId=...
// The kind may be omitted when the id parameter already names it.
func (h *RatingHandler) QueryRatings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var kind domain.EntityKind
	if raw := q.Get("kind"); raw != "" {
		k, err := domain.ParseEntityKind(raw)
		if err != nil {
			httputil.WriteError(w, r, apperrors.InvalidInput(err.Error()), h.logger)
			return
		}
		kind = k
	}

	itemID := firstParam(q.Get, "listingId", "itemId")
	ownerID := firstParam(q.Get, "ownerId", "sellerId")
	if kind == "" {
		switch {
		case itemID != "":
			kind = domain.KindItem
		case ownerID != "":
			kind = domain.KindOwner
		default:
			httputil.WriteError(w, r, apperrors.InvalidInput("kind is required"), h.logger)
			return
		}
	}

	entityID := itemID
	if kind == domain.KindOwner {
		entityID = ownerID
	}
	if entityID == "" {
		entityID = q.Get("id")
	}
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		httputil.WriteError(w, r, apperrors.InvalidInput("an entity id is required"), h.logger)
		return
	}

	h.writeModel(w, r, kind, entityID)
}

// OpenForm handles POST /api/v1/{kind}/{entityId}/review-form/open
func (h *RatingHandler) OpenForm(w http.ResponseWriter, r *http.Request) {
	h.formTransition(w, r, h.service.OpenForm)
}

// ToggleForm handles POST /api/v1/{kind}/{entityId}/review-form/toggle
func (h *RatingHandler) ToggleForm(w http.ResponseWriter, r *http.Request) {
	h.formTransition(w, r, h.service.ToggleForm)
}

// CloseForm handles POST /api/v1/{kind}/{entityId}/review-form/close
func (h *RatingHandler) CloseForm(w http.ResponseWriter, r *http.Request) {
	h.formTransition(w, r, h.service.CloseForm)
}

// SubmitReview handles POST /api/v1/{kind}/{entityId}/review-form/submit
func (h *RatingHandler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	kind, entityID, ok := h.target(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req SubmitReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{
				Code:    "INVALID_INPUT",
				Message: "invalid request body: " + err.Error(),
			},
		})
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	viewer := identity.FromContext(r.Context())
	var messages service.Messages
	fields := form.Fields{
		Score:         req.Score,
		Comment:       req.Comment,
		Communication: req.Communication,
		Reliability:   req.Reliability,
		ItemCondition: req.ItemCondition,
	}

	result, err := h.service.SubmitFields(r.Context(), viewer, kind, entityID, fields, &messages)
	if err != nil {
		var reloadErr *service.ReloadError
		if errors.As(err, &reloadErr) && result != nil {
			httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: MutationResponse{
				Form:         &result.Form,
				Messages:     messages,
				ReloadFailed: true,
			}})
			return
		}
		h.writeServiceError(w, r, err)
		return
	}

	model := render.ToDisplayModel(result.Summary, viewer.UserID, h.now())
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: MutationResponse{
		Model:    &model,
		Form:     &result.Form,
		Messages: messages,
	}})
}

// DeleteReview handles DELETE /api/v1/{kind}/{entityId}/reviews/{reviewId}
// The body is optional; without {"confirmed": true} (or ?confirm=true) the
// request is refused with the confirmation prompt.
func (h *RatingHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	kind, entityID, ok := h.target(w, r)
	if !ok {
		return
	}
	reviewID := strings.TrimSpace(chi.URLParam(r, "reviewId"))
	if reviewID == "" {
		httputil.WriteError(w, r, apperrors.InvalidInput("review id is required"), h.logger)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req DeleteReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{
				Code:    "INVALID_INPUT",
				Message: "invalid request body: " + err.Error(),
			},
		})
		return
	}
	if confirm, err := strconv.ParseBool(r.URL.Query().Get("confirm")); err == nil && confirm {
		req.Confirmed = true
	}

	viewer := identity.FromContext(r.Context())
	var messages service.Messages

	summary, err := h.service.Delete(r.Context(), viewer, kind, entityID, reviewID, service.Confirmed(req.Confirmed), &messages)
	if err != nil {
		var reloadErr *service.ReloadError
		if errors.As(err, &reloadErr) {
			httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: MutationResponse{
				Messages:     messages,
				ReloadFailed: true,
			}})
			return
		}
		h.writeServiceError(w, r, err)
		return
	}

	model := render.ToDisplayModel(summary, viewer.UserID, h.now())
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: MutationResponse{
		Model:    &model,
		Messages: messages,
	}})
}

// --- Helpers ---

type transitionFunc func(ctx context.Context, viewer identity.Viewer, kind domain.EntityKind, entityID string) (form.View, error)

func (h *RatingHandler) formTransition(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	kind, entityID, ok := h.target(w, r)
	if !ok {
		return
	}

	view, err := fn(r.Context(), identity.FromContext(r.Context()), kind, entityID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: view})
}

func (h *RatingHandler) writeModel(w http.ResponseWriter, r *http.Request, kind domain.EntityKind, entityID string) {
	viewer := identity.FromContext(r.Context())

	summary, err := h.service.LoadSummary(r.Context(), viewer, kind, entityID)
	if err != nil {
		httputil.WriteError(w, r, upstreamError(err), h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: render.ToDisplayModel(summary, viewer.UserID, h.now()),
	})
}

// target reads the kind and entity id path parameters.
func (h *RatingHandler) target(w http.ResponseWriter, r *http.Request) (domain.EntityKind, string, bool) {
	kind, err := domain.ParseEntityKind(chi.URLParam(r, "kind"))
	if err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput(err.Error()), h.logger)
		return "", "", false
	}
	entityID := strings.TrimSpace(chi.URLParam(r, "entityId"))
	if entityID == "" {
		httputil.WriteError(w, r, apperrors.InvalidInput("an entity id is required"), h.logger)
		return "", "", false
	}
	return kind, entityID, true
}

// writeServiceError maps service and form errors onto the error envelope.
func (h *RatingHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		fieldErr  *form.FieldError
		submitErr *service.SubmitError
	)
	switch {
	case errors.As(err, &fieldErr):
		httputil.WriteError(w, r, apperrors.InvalidField(fieldErr.Field, fieldErr.Message), h.logger)
	case errors.As(err, &submitErr):
		httputil.WriteError(w, r, &apperrors.AppError{
			Code:    strings.ToUpper(string(submitErr.Kind)),
			Message: submitErr.Message,
			Status:  submitErr.Status,
			Err:     err,
		}, h.logger)
	case errors.Is(err, service.ErrDeleteNotConfirmed):
		httputil.WriteError(w, r, &apperrors.AppError{
			Code:    "CONFIRMATION_REQUIRED",
			Message: service.DeleteConfirmPrompt,
			Status:  http.StatusConflict,
			Err:     err,
		}, h.logger)
	case errors.Is(err, service.ErrViewerRequired):
		httputil.WriteError(w, r, apperrors.Unauthorized("please log in to continue"), h.logger)
	case errors.Is(err, form.ErrSubmitting):
		httputil.WriteError(w, r, apperrors.Conflict("your review is already being submitted"), h.logger)
	case errors.Is(err, form.ErrNotOpen):
		httputil.WriteError(w, r, apperrors.Conflict("the review form is not open"), h.logger)
	case errors.Is(err, form.ErrUnknownCategory):
		httputil.WriteError(w, r, apperrors.InvalidInput(err.Error()), h.logger)
	case errors.Is(err, apperrors.ErrConflict):
		httputil.WriteError(w, r, err, h.logger)
	default:
		httputil.WriteError(w, r, upstreamError(err), h.logger)
	}
}

// upstreamError keeps 4xx answers from the ratings backend and turns
// everything else into a 502.
func upstreamError(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Status >= 400 && appErr.Status < 500 {
		return appErr
	}
	return &apperrors.AppError{
		Code:    "UPSTREAM_ERROR",
		Message: "ratings are temporarily unavailable",
		Status:  http.StatusBadGateway,
		Err:     err,
	}
}

func firstParam(get func(string) string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(get(k)); v != "" {
			return v
		}
	}
	return ""
}
