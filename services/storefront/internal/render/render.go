// Package render builds the display model for a rating summary. It performs
// no I/O and emits no markup; the caller binds interactivity to the model.
package render

import (
	"fmt"
	"sort"
	"time"

	"github.com/utafrali/RentMarket/services/storefront/internal/domain"
)

const (
	EmptyPlaceholder = "No reviews yet"
	NoComment        = "No comment provided."
	UnknownDate      = "Unknown date"
)

// Form mode hints for the viewer block.
const (
	FormModeCreate = "create"
	FormModeEdit   = "edit"
)

// DisplayModel is everything a page needs to draw the ratings section.
type DisplayModel struct {
	Kind        domain.EntityKind `json:"kind"`
	EntityID    string            `json:"entityId"`
	Empty       bool              `json:"empty"`
	Placeholder string            `json:"placeholder,omitempty"`
	Summary     *SummaryBlock     `json:"summary,omitempty"`
	Reviews     []ReviewCard      `json:"reviews"`
	Viewer      ViewerBlock       `json:"viewer"`
}

// SummaryBlock is the aggregate header above the review list.
type SummaryBlock struct {
	Average      float64        `json:"average"`
	AverageLabel string         `json:"averageLabel"`
	Stars        [5]StarKind    `json:"stars"`
	Count        int            `json:"count"`
	CountLabel   string         `json:"countLabel"`
	Histogram    []HistogramRow `json:"histogram"`
	Categories   []CategoryRow  `json:"categories,omitempty"`
	Trusted      bool           `json:"trusted"`
}

// HistogramRow is one star level of the distribution bar chart.
type HistogramRow struct {
	Stars   int `json:"stars"`
	Count   int `json:"count"`
	Percent int `json:"percent"`
}

// CategoryRow is one owner category score.
type CategoryRow struct {
	Key   string      `json:"key"`
	Label string      `json:"label"`
	Score float64     `json:"score"`
	Value string      `json:"value"`
	Stars [5]StarKind `json:"stars"`
}

// ReviewCard is a single rendered review.
type ReviewCard struct {
	ID         string        `json:"id"`
	AuthorName string        `json:"authorName"`
	AvatarURL  string        `json:"avatarUrl,omitempty"`
	Score      float64       `json:"score"`
	Stars      [5]StarKind   `json:"stars"`
	Comment    string        `json:"comment"`
	DateLabel  string        `json:"dateLabel"`
	CreatedAt  *time.Time    `json:"createdAt,omitempty"`
	Categories []CategoryRow `json:"categories,omitempty"`
	IsOwn      bool          `json:"isOwn"`
	CanEdit    bool          `json:"canEdit"`
	CanDelete  bool          `json:"canDelete"`
}

// ViewerBlock tells the page what the current viewer may do.
type ViewerBlock struct {
	CanReview bool   `json:"canReview"`
	HasReview bool   `json:"hasReview"`
	ReviewID  string `json:"reviewId,omitempty"`
	FormMode  string `json:"formMode"`
}

// ToDisplayModel renders a summary for the given viewer. now anchors the
// relative date labels.
func ToDisplayModel(s *domain.RatingSummary, viewerID string, now time.Time) DisplayModel {
	if s == nil {
		s = &domain.RatingSummary{}
	}

	m := DisplayModel{
		Kind:     s.EntityKind,
		EntityID: s.EntityID,
		Reviews:  reviewCards(s, viewerID, now),
		Viewer:   viewerBlock(s, viewerID),
	}

	if len(s.Reviews) == 0 && s.Count == 0 {
		m.Empty = true
		m.Placeholder = EmptyPlaceholder
		return m
	}

	m.Summary = summaryBlock(s)
	return m
}

func summaryBlock(s *domain.RatingSummary) *SummaryBlock {
	b := &SummaryBlock{
		Average:      s.AverageScore,
		AverageLabel: fmt.Sprintf("%.1f", s.AverageScore),
		Stars:        Stars(s.AverageScore),
		Count:        s.Count,
		CountLabel:   CountLabel(s.Count),
		Trusted:      domain.TrustedBadge(s),
	}

	pct := s.Distribution.Percentages(s.Count)
	for star := 5; star >= 1; star-- {
		b.Histogram = append(b.Histogram, HistogramRow{
			Stars:   star,
			Count:   s.Distribution.Bucket(star),
			Percent: pct[star-1],
		})
	}

	if s.EntityKind == domain.KindOwner {
		b.Categories = categoryRows(s.CategoryScores)
	}
	return b
}

// CountLabel pluralizes the review count.
func CountLabel(n int) string {
	if n == 1 {
		return "1 review"
	}
	return fmt.Sprintf("%d reviews", n)
}

func categoryRows(cs domain.CategoryScores) []CategoryRow {
	row := func(key, label string, score float64) CategoryRow {
		return CategoryRow{
			Key:   key,
			Label: label,
			Score: score,
			Value: fmt.Sprintf("%.1f", score),
			Stars: Stars(score),
		}
	}
	return []CategoryRow{
		row("communication", "Communication", cs.Communication),
		row("reliability", "Reliability", cs.Reliability),
		row("itemCondition", "Item condition", cs.ItemCondition),
	}
}

func reviewCards(s *domain.RatingSummary, viewerID string, now time.Time) []ReviewCard {
	sorted := make([]domain.Review, len(s.Reviews))
	copy(sorted, s.Reviews)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].CreatedAt, sorted[j].CreatedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})

	cards := make([]ReviewCard, 0, len(sorted))
	for _, r := range sorted {
		own := viewerID != "" && r.AuthorID == viewerID
		c := ReviewCard{
			ID:         r.ID,
			AuthorName: r.Author.Name,
			AvatarURL:  r.Author.AvatarURL,
			Score:      r.Score,
			Stars:      Stars(r.Score),
			Comment:    r.Comment,
			DateLabel:  DateLabel(r.CreatedAt, now),
			CreatedAt:  r.CreatedAt,
			IsOwn:      own,
			CanEdit:    own,
			CanDelete:  own && r.ID != "",
		}
		if c.Comment == "" {
			c.Comment = NoComment
		}
		if r.Categories != nil && s.EntityKind == domain.KindOwner {
			c.Categories = categoryRows(*r.Categories)
		}
		cards = append(cards, c)
	}
	return cards
}

// DateLabel renders a review date relative to now.
func DateLabel(t *time.Time, now time.Time) string {
	if t == nil {
		return UnknownDate
	}
	day := func(x time.Time) time.Time {
		y, m, d := x.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	switch day(now).Sub(day(*t)) {
	case 0:
		return "Today"
	case 24 * time.Hour:
		return "Yesterday"
	default:
		return t.UTC().Format("Jan 2, 2006")
	}
}

func viewerBlock(s *domain.RatingSummary, viewerID string) ViewerBlock {
	v := ViewerBlock{
		CanReview: viewerID != "",
		FormMode:  FormModeCreate,
	}
	if viewerID == "" {
		return v
	}
	if r, ok := s.ViewerReview(); ok {
		v.HasReview = true
		v.ReviewID = r.ID
		v.FormMode = FormModeEdit
	}
	return v
}
