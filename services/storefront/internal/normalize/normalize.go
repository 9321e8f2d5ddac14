// Package normalize turns any ratings payload the backend produces into one
// canonical, fully populated domain.RatingSummary.
package normalize

import (
	"bytes"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/utafrali/RentMarket/services/storefront/internal/domain"
)

// Normalizer applies a fixed set of field chains. It is safe for concurrent use.
type Normalizer struct {
	chains FieldChains
	logger *slog.Logger
}

// New creates a Normalizer. A nil logger discards output.
func New(chains FieldChains, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Normalizer{chains: chains, logger: logger}
}

var defaultNormalizer = New(DefaultFieldChains(), nil)

// Normalize uses the default field chains.
func Normalize(raw []byte, kind domain.EntityKind, entityID, viewerID string) *domain.RatingSummary {
	return defaultNormalizer.Normalize(raw, kind, entityID, viewerID)
}

// Normalize never fails. Unusable payloads produce an empty summary.
func (n *Normalizer) Normalize(raw []byte, kind domain.EntityKind, entityID, viewerID string) *domain.RatingSummary {
	shape := Classify(raw)
	payloadShapes.WithLabelValues(string(kind), shape.String()).Inc()

	var (
		summaryObj gjson.Result
		reviewsRaw []gjson.Result
	)
	switch shape {
	case ShapeList:
		reviewsRaw = gjson.ParseBytes(bytes.TrimSpace(raw)).Array()
	case ShapeEnvelope:
		root := gjson.ParseBytes(bytes.TrimSpace(raw))
		data := root.Get("data")
		if data.IsArray() {
			summaryObj = root
			reviewsRaw = data.Array()
		} else {
			summaryObj = data
			reviewsRaw = n.reviewArray(data)
		}
	case ShapeSummary:
		summaryObj = gjson.ParseBytes(bytes.TrimSpace(raw))
		reviewsRaw = n.reviewArray(summaryObj)
	case ShapeUnknown:
		n.logger.Warn("unrecognized ratings payload",
			slog.String("kind", string(kind)),
			slog.String("entity_id", entityID),
		)
	}

	// Entries that are not objects still count as reviews; every field
	// falls back to its zero value.
	reviews := make([]domain.Review, 0, len(reviewsRaw))
	for _, item := range reviewsRaw {
		if !item.IsObject() {
			n.logger.Debug("zero-filling malformed review entry",
				slog.String("kind", string(kind)),
				slog.String("entity_id", entityID),
				slog.String("raw", item.Raw),
			)
		}
		reviews = append(reviews, n.review(item, kind))
	}

	s := &domain.RatingSummary{
		EntityKind: kind,
		EntityID:   entityID,
		Reviews:    reviews,
	}

	s.Count = len(reviews)
	if s.Count == 0 {
		if c, ok := firstNumber(summaryObj, n.chains.Count); ok {
			s.Count = countOf(c)
		}
	}

	if s.Count > 0 {
		avg, ok := firstNumber(summaryObj, n.chains.Average)
		if (!ok || avg == 0) && len(reviews) > 0 {
			avg = domain.AverageOf(reviews)
		}
		s.AverageScore = clamp(avg, 0, 5)
	}

	if d, ok := n.distribution(summaryObj); ok {
		s.Distribution = d
	} else {
		s.Distribution = domain.BuildDistribution(reviews)
	}

	if kind == domain.KindOwner {
		if cs, ok := n.summaryCategories(summaryObj); ok {
			s.CategoryScores = cs
		} else {
			s.CategoryScores = averageCategories(reviews)
		}
	}

	if viewerID != "" {
		for _, r := range reviews {
			if r.AuthorID == viewerID {
				s.ViewerReviewID = domain.ViewerKey(r)
				break
			}
		}
	}

	n.logger.Debug("ratings payload normalized",
		slog.String("kind", string(kind)),
		slog.String("entity_id", entityID),
		slog.String("shape", shape.String()),
		slog.Int("count", s.Count),
	)
	return s
}

func (n *Normalizer) reviewArray(obj gjson.Result) []gjson.Result {
	for _, p := range n.chains.Reviews {
		if v := obj.Get(p); v.IsArray() {
			return v.Array()
		}
	}
	return nil
}

func (n *Normalizer) review(item gjson.Result, kind domain.EntityKind) domain.Review {
	r := domain.Review{
		ID:       firstString(item, n.chains.ID),
		AuthorID: firstString(item, n.chains.AuthorID),
		Author: domain.Author{
			Name:      n.authorName(item),
			AvatarURL: firstText(item, n.chains.Avatar),
		},
		Comment:   firstText(item, n.chains.Comment),
		CreatedAt: firstTime(item, n.chains.CreatedAt),
	}
	if score, ok := firstNumber(item, n.chains.Score); ok {
		r.Score = score
	}
	if kind == domain.KindOwner {
		r.Categories = n.reviewCategories(item)
	}
	return r
}

func (n *Normalizer) authorName(item gjson.Result) string {
	for _, p := range n.chains.AuthorName {
		v := item.Get(p)
		if v.Type != gjson.String || strings.TrimSpace(v.String()) == "" {
			continue
		}
		name := strings.TrimSpace(v.String())
		if prefix, ok := strings.CutSuffix(p, "firstName"); ok {
			if last := item.Get(prefix + "lastName"); last.Type == gjson.String && strings.TrimSpace(last.String()) != "" {
				name += " " + strings.TrimSpace(last.String())
			}
		}
		return name
	}
	return AnonymousName
}

func (n *Normalizer) reviewCategories(item gjson.Result) *domain.CategoryScores {
	for _, p := range n.chains.ReviewCategories {
		obj := item
		if p != "" {
			obj = item.Get(p)
		}
		if !obj.IsObject() {
			continue
		}
		if cs, ok := readCategories(obj); ok {
			return &cs
		}
	}
	return nil
}

func (n *Normalizer) summaryCategories(obj gjson.Result) (domain.CategoryScores, bool) {
	for _, p := range n.chains.CategoryScores {
		if v := obj.Get(p); v.IsObject() {
			cs, _ := readCategories(v)
			return cs, true
		}
	}
	return domain.CategoryScores{}, false
}

func (n *Normalizer) distribution(obj gjson.Result) (domain.Distribution, bool) {
	for _, p := range n.chains.Distribution {
		v := obj.Get(p)
		if !v.IsObject() {
			continue
		}
		buckets := make(map[int]int, 5)
		v.ForEach(func(key, value gjson.Result) bool {
			star, err := strconv.Atoi(strings.TrimSpace(key.String()))
			if err != nil {
				return true
			}
			if f, ok := numberOf(value); ok {
				buckets[star] = countOf(f)
			}
			return true
		})
		return domain.FillDistribution(buckets), true
	}
	return domain.Distribution{}, false
}

// readCategories reads the three category scores. ok is false when none is present.
func readCategories(obj gjson.Result) (domain.CategoryScores, bool) {
	var (
		cs    domain.CategoryScores
		found bool
	)
	if v, ok := numberOf(obj.Get("communication")); ok {
		cs.Communication, found = v, true
	}
	if v, ok := numberOf(obj.Get("reliability")); ok {
		cs.Reliability, found = v, true
	}
	if v, ok := numberOf(obj.Get("itemCondition")); ok {
		cs.ItemCondition, found = v, true
	}
	return cs, found
}

// averageCategories averages category scores over the reviews that carry them.
func averageCategories(reviews []domain.Review) domain.CategoryScores {
	var (
		sum domain.CategoryScores
		n   int
	)
	for _, r := range reviews {
		if r.Categories == nil {
			continue
		}
		sum.Communication += r.Categories.Communication
		sum.Reliability += r.Categories.Reliability
		sum.ItemCondition += r.Categories.ItemCondition
		n++
	}
	if n == 0 {
		return domain.CategoryScores{}
	}
	return domain.CategoryScores{
		Communication: sum.Communication / float64(n),
		Reliability:   sum.Reliability / float64(n),
		ItemCondition: sum.ItemCondition / float64(n),
	}
}

// firstString accepts non-blank strings and integral numbers.
func firstString(obj gjson.Result, paths []string) string {
	for _, p := range paths {
		v := obj.Get(p)
		switch v.Type {
		case gjson.String:
			if s := strings.TrimSpace(v.String()); s != "" {
				return s
			}
		case gjson.Number:
			if f := v.Float(); f == math.Trunc(f) && !math.IsInf(f, 0) {
				return strconv.FormatFloat(f, 'f', 0, 64)
			}
			return v.Raw
		}
	}
	return ""
}

// firstText accepts non-blank strings only.
func firstText(obj gjson.Result, paths []string) string {
	for _, p := range paths {
		if v := obj.Get(p); v.Type == gjson.String {
			if s := strings.TrimSpace(v.String()); s != "" {
				return s
			}
		}
	}
	return ""
}

func firstNumber(obj gjson.Result, paths []string) (float64, bool) {
	if !obj.Exists() {
		return 0, false
	}
	for _, p := range paths {
		if f, ok := numberOf(obj.Get(p)); ok {
			return f, true
		}
	}
	return 0, false
}

// numberOf reads JSON numbers and numeric strings.
func numberOf(v gjson.Result) (float64, bool) {
	var f float64
	switch v.Type {
	case gjson.Number:
		f = v.Float()
	case gjson.String:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v.String()), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

var timeLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// millisThreshold separates unix seconds from unix milliseconds.
const millisThreshold = 1e11

func firstTime(obj gjson.Result, paths []string) *time.Time {
	for _, p := range paths {
		v := obj.Get(p)
		switch v.Type {
		case gjson.String:
			s := strings.TrimSpace(v.String())
			for _, layout := range timeLayouts {
				if t, err := time.Parse(layout, s); err == nil {
					t = t.UTC()
					return &t
				}
			}
		case gjson.Number:
			f := v.Float()
			if f <= 0 || math.IsInf(f, 0) {
				continue
			}
			var t time.Time
			if f >= millisThreshold {
				t = time.UnixMilli(int64(f)).UTC()
			} else {
				t = time.Unix(int64(f), 0).UTC()
			}
			return &t
		}
	}
	return nil
}

// maxCount bounds server-reported counts so they always fit an int.
const maxCount = math.MaxInt32

// countOf truncates a finite number to a count in [0, maxCount].
func countOf(f float64) int {
	return int(clamp(math.Trunc(f), 0, maxCount))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
