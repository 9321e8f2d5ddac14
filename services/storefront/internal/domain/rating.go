package domain

import (
	"fmt"
	"strings"
	"time"
)

// EntityKind says whether a rating summary concerns an item (listing) or its owner (seller).
type EntityKind string

const (
	KindItem  EntityKind = "item"
	KindOwner EntityKind = "owner"
)

// ParseEntityKind accepts the singular and plural route forms plus the
// marketplace aliases (listing, seller).
func ParseEntityKind(s string) (EntityKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "item", "items", "listing", "listings":
		return KindItem, nil
	case "owner", "owners", "seller", "sellers":
		return KindOwner, nil
	default:
		return "", fmt.Errorf("unknown entity kind %q", s)
	}
}

// Valid reports whether k is one of the known kinds.
func (k EntityKind) Valid() bool {
	return k == KindItem || k == KindOwner
}

// Author is the display identity of a review's author.
type Author struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// CategoryScores holds the per-category breakdown used for owner ratings.
type CategoryScores struct {
	Communication float64 `json:"communication"`
	Reliability   float64 `json:"reliability"`
	ItemCondition float64 `json:"itemCondition"`
}

// Review is a single canonical review.
type Review struct {
	ID         string          `json:"id"`
	AuthorID   string          `json:"authorId"`
	Author     Author          `json:"author"`
	Score      float64         `json:"score"`
	Comment    string          `json:"comment"`
	CreatedAt  *time.Time      `json:"createdAt,omitempty"`
	Categories *CategoryScores `json:"categories,omitempty"`
}

// RatingSummary is the canonical, fully populated rating state of one entity.
// It is built fresh on every load and never patched in place.
//
// The JSON names match what the normalizer reads, so feeding a marshalled
// summary back through normalization yields the same summary.
type RatingSummary struct {
	EntityKind     EntityKind     `json:"entityKind"`
	EntityID       string         `json:"entityId"`
	AverageScore   float64        `json:"averageScore"`
	Count          int            `json:"count"`
	Distribution   Distribution   `json:"distribution"`
	Reviews        []Review       `json:"ratings"`
	CategoryScores CategoryScores `json:"categoryScores"`
	ViewerReviewID string         `json:"viewerReviewId,omitempty"`
}

// FindReview returns the review with the given id.
func (s *RatingSummary) FindReview(id string) (Review, bool) {
	if id == "" {
		return Review{}, false
	}
	for _, r := range s.Reviews {
		if r.ID == id {
			return r, true
		}
	}
	return Review{}, false
}

// authorKeyPrefix marks a ViewerReviewID derived from the author because the
// backend sent the viewer's review without an id.
const authorKeyPrefix = "author:"

// ViewerKey is the ViewerReviewID recorded for r: its own id, or a key derived
// from its author when the id is missing.
func ViewerKey(r Review) string {
	if r.ID != "" {
		return r.ID
	}
	if r.AuthorID == "" {
		return ""
	}
	return authorKeyPrefix + r.AuthorID
}

// ViewerReview returns the review authored by the current viewer, if any.
func (s *RatingSummary) ViewerReview() (Review, bool) {
	if r, ok := s.FindReview(s.ViewerReviewID); ok {
		return r, true
	}
	author, ok := strings.CutPrefix(s.ViewerReviewID, authorKeyPrefix)
	if !ok || author == "" {
		return Review{}, false
	}
	for _, r := range s.Reviews {
		if r.ID == "" && r.AuthorID == author {
			return r, true
		}
	}
	return Review{}, false
}

// AverageOf is the mean score of reviews, 0 for none.
func AverageOf(reviews []Review) float64 {
	if len(reviews) == 0 {
		return 0
	}
	var sum float64
	for _, r := range reviews {
		sum += r.Score
	}
	return sum / float64(len(reviews))
}

// Trusted-owner badge thresholds.
const (
	TrustedMinAverage = 4.5
	TrustedMinCount   = 5
)

// TrustedBadge is derived, never stored: owner summaries averaging at least
// 4.5 over at least five reviews.
func TrustedBadge(s *RatingSummary) bool {
	if s == nil || s.EntityKind != KindOwner {
		return false
	}
	return s.AverageScore >= TrustedMinAverage && s.Count >= TrustedMinCount
}

// SubmitMode selects between creating a review and updating the viewer's existing one.
type SubmitMode string

const (
	ModeCreate SubmitMode = "create"
	ModeUpdate SubmitMode = "update"
)

// Submission is a validated review mutation ready to send to the backend.
// ReviewID is set only for updates.
type Submission struct {
	Kind       EntityKind      `json:"kind"`
	EntityID   string          `json:"entityId"`
	Mode       SubmitMode      `json:"mode"`
	ReviewID   string          `json:"reviewId,omitempty"`
	Score      int             `json:"score"`
	Comment    string          `json:"comment"`
	Categories *CategoryScores `json:"categories,omitempty"`
}
