package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/utafrali/RentMarket/pkg/kafka"
	"github.com/utafrali/RentMarket/pkg/logger"
	"github.com/utafrali/RentMarket/services/storefront/internal/domain"
)

// Kafka topics for rating events.
var (
	TopicReviewSubmitted = pkgkafka.Topic("rating", "review-submitted")
	TopicReviewDeleted   = pkgkafka.Topic("rating", "review-deleted")
)

// Event types carried in the envelope.
const (
	EventReviewSubmitted = "rating.review.submitted"
	EventReviewDeleted   = "rating.review.deleted"
)

// AggregateTypeRating is the aggregate type; the aggregate id is "kind:entityID".
const AggregateTypeRating = "rating"

// SourceStorefront identifies events originating from the storefront service.
const SourceStorefront = "storefront"

// ReviewSubmittedData is the payload of a rating.review.submitted event.
type ReviewSubmittedData struct {
	Kind     domain.EntityKind `json:"kind"`
	EntityID string            `json:"entity_id"`
	ViewerID string            `json:"viewer_id"`
	Mode     domain.SubmitMode `json:"mode"`
	ReviewID string            `json:"review_id,omitempty"`
	Score    int               `json:"score"`
}

// ReviewDeletedData is the payload of a rating.review.deleted event.
type ReviewDeletedData struct {
	Kind     domain.EntityKind `json:"kind"`
	EntityID string            `json:"entity_id"`
	ViewerID string            `json:"viewer_id"`
	ReviewID string            `json:"review_id"`
}

// Publisher is the subset of pkg/kafka.Producer used here.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes rating domain events.
type Producer struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewProducer creates a new event producer for the storefront service.
func NewProducer(publisher Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		publisher: publisher,
		logger:    logger,
	}
}

func aggregateID(kind domain.EntityKind, entityID string) string {
	return string(kind) + ":" + entityID
}

// ReviewSubmitted publishes a rating.review.submitted event.
func (p *Producer) ReviewSubmitted(ctx context.Context, viewerID string, sub domain.Submission) error {
	data := ReviewSubmittedData{
		Kind:     sub.Kind,
		EntityID: sub.EntityID,
		ViewerID: viewerID,
		Mode:     sub.Mode,
		ReviewID: sub.ReviewID,
		Score:    sub.Score,
	}
	return p.publish(ctx, TopicReviewSubmitted, EventReviewSubmitted, aggregateID(sub.Kind, sub.EntityID), data)
}

// ReviewDeleted publishes a rating.review.deleted event.
func (p *Producer) ReviewDeleted(ctx context.Context, viewerID string, kind domain.EntityKind, entityID, reviewID string) error {
	data := ReviewDeletedData{
		Kind:     kind,
		EntityID: entityID,
		ViewerID: viewerID,
		ReviewID: reviewID,
	}
	return p.publish(ctx, TopicReviewDeleted, EventReviewDeleted, aggregateID(kind, entityID), data)
}

func (p *Producer) publish(ctx context.Context, topic, eventType, aggID string, data any) error {
	evt, err := pkgkafka.NewEvent(eventType, aggID, AggregateTypeRating, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", eventType, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}

	if err := p.publisher.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}

	p.logger.DebugContext(ctx, "published rating event",
		slog.String("event_type", eventType),
		slog.String("aggregate_id", aggID),
	)
	return nil
}

// NopPublisher drops every event. It stands in when Kafka is disabled.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, string, *pkgkafka.Event) error { return nil }
