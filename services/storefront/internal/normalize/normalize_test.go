package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/RentMarket/services/storefront/internal/domain"
)

func TestNormalize_BareList(t *testing.T) {
	s := Normalize([]byte(`[{"score":5},{"score":3},{"score":1}]`), domain.KindItem, "i1", "")

	assert.Equal(t, 3, s.Count)
	assert.InDelta(t, 3.0, s.AverageScore, 1e-9)
	assert.Equal(t, domain.Distribution{1, 0, 1, 0, 1}, s.Distribution)
	assert.Empty(t, s.ViewerReviewID)
}

func TestNormalize_ViewerReview(t *testing.T) {
	raw := `{"data":[{"id":"r1","score":4,"userId":"u1","comment":"great"}],"count":1}`
	s := Normalize([]byte(raw), domain.KindItem, "i1", "u1")

	require.Len(t, s.Reviews, 1)
	assert.Equal(t, "r1", s.ViewerReviewID)
	assert.Equal(t, 1, s.Count)
	assert.InDelta(t, 4.0, s.AverageScore, 1e-9)

	anon := Normalize([]byte(raw), domain.KindItem, "i1", "")
	assert.Empty(t, anon.ViewerReviewID)
}

func TestNormalize_ViewerReviewWithoutID(t *testing.T) {
	s := Normalize([]byte(`{"data":[{"score":4,"userId":"u1"}],"count":1}`), domain.KindItem, "i1", "u1")

	assert.Equal(t, "author:u1", s.ViewerReviewID)
	r, ok := s.ViewerReview()
	require.True(t, ok)
	assert.Empty(t, r.ID)
	assert.Equal(t, 4.0, r.Score)

	other := Normalize([]byte(`{"data":[{"score":4,"userId":"u1"}],"count":1}`), domain.KindItem, "i1", "u2")
	assert.Empty(t, other.ViewerReviewID)
}

func TestNormalize_EmptyShapes(t *testing.T) {
	for _, raw := range []string{"", "null", "garbage", "[]", `{"ratings":[]}`, `{"message":"nope"}`} {
		t.Run(raw, func(t *testing.T) {
			s := Normalize([]byte(raw), domain.KindOwner, "o1", "u1")
			assert.Equal(t, domain.KindOwner, s.EntityKind)
			assert.Equal(t, "o1", s.EntityID)
			assert.Equal(t, 0, s.Count)
			assert.Equal(t, 0.0, s.AverageScore)
			assert.Equal(t, domain.Distribution{}, s.Distribution)
			assert.NotNil(t, s.Reviews)
			assert.Empty(t, s.ViewerReviewID)
		})
	}
}

func TestNormalize_FieldChains(t *testing.T) {
	raw := `[
		{"_id":"a","user":{"_id":"u1","firstName":"Ada","lastName":"Lovelace","profileImage":"https://img/a.png"},"rating":4,"text":"nice","created_at":"2024-03-01"},
		{"ratingId":"b","user_id":7,"userName":"bob","content":"ok","score":"3","date":1709251200000},
		{"id":"c","author":{"id":"u3","name":"Cy"},"score":5,"comment":"  ","createdAt":1709251200},
		{"id":"d","user":"u4","author":"Dee","score":2},
		{"id":"e"}
	]`
	s := Normalize([]byte(raw), domain.KindItem, "i1", "")
	require.Len(t, s.Reviews, 5)

	a := s.Reviews[0]
	assert.Equal(t, "a", a.ID)
	assert.Equal(t, "u1", a.AuthorID)
	assert.Equal(t, "Ada Lovelace", a.Author.Name)
	assert.Equal(t, "https://img/a.png", a.Author.AvatarURL)
	assert.Equal(t, 4.0, a.Score)
	assert.Equal(t, "nice", a.Comment)
	require.NotNil(t, a.CreatedAt)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *a.CreatedAt)

	b := s.Reviews[1]
	assert.Equal(t, "b", b.ID)
	assert.Equal(t, "7", b.AuthorID)
	assert.Equal(t, "bob", b.Author.Name)
	assert.Equal(t, 3.0, b.Score)
	require.NotNil(t, b.CreatedAt)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *b.CreatedAt)

	c := s.Reviews[2]
	assert.Equal(t, "u3", c.AuthorID)
	assert.Equal(t, "Cy", c.Author.Name)
	assert.Empty(t, c.Comment)
	require.NotNil(t, c.CreatedAt)
	assert.Equal(t, int64(1709251200), c.CreatedAt.Unix())

	d := s.Reviews[3]
	assert.Equal(t, "u4", d.AuthorID)
	assert.Equal(t, "Dee", d.Author.Name)

	e := s.Reviews[4]
	assert.Equal(t, AnonymousName, e.Author.Name)
	assert.Equal(t, 0.0, e.Score)
	assert.Nil(t, e.CreatedAt)
}

func TestNormalize_ReviewsWithoutScoreAreKept(t *testing.T) {
	s := Normalize([]byte(`[{"id":"a","score":4},{"id":"b"}]`), domain.KindItem, "i1", "")

	assert.Equal(t, 2, s.Count)
	assert.InDelta(t, 2.0, s.AverageScore, 1e-9)
	assert.Equal(t, 1, s.Distribution.Total())
}

func TestNormalize_InvalidDateIsNil(t *testing.T) {
	s := Normalize([]byte(`[{"score":4,"createdAt":"yesterday"},{"score":4,"createdAt":-5}]`), domain.KindItem, "i1", "")
	require.Len(t, s.Reviews, 2)
	assert.Nil(t, s.Reviews[0].CreatedAt)
	assert.Nil(t, s.Reviews[1].CreatedAt)
}

func TestNormalize_Average(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want float64
	}{
		{"server value trusted", `{"ratings":[{"score":5},{"score":1}],"averageScore":4.2}`, 4.2},
		{"missing recomputed", `{"ratings":[{"score":5},{"score":4}]}`, 4.5},
		{"zero recomputed with reviews", `{"ratings":[{"score":5},{"score":4}],"averageScore":0}`, 4.5},
		{"alternate key", `{"ratings":[{"score":5}],"averageRating":3.5}`, 3.5},
		{"clamped high", `{"ratings":[{"score":5}],"averageScore":9}`, 5},
		{"zero when no count", `{"ratings":[],"averageScore":4.8}`, 0},
		{"server average with count only", `{"count":4,"averageScore":4.25}`, 4.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Normalize([]byte(tt.raw), domain.KindItem, "i1", "")
			assert.InDelta(t, tt.want, s.AverageScore, 1e-9)
		})
	}
}

func TestNormalize_Count(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"reviews win over server count", `{"ratings":[{"score":5}],"count":10}`, 1},
		{"server count without reviews", `{"count":10}`, 10},
		{"total count alias", `{"data":[],"totalCount":3}`, 3},
		{"negative clamps", `{"count":-4}`, 0},
		{"fraction truncates", `{"count":2.9}`, 2},
		{"huge clamps", `{"ratings":[],"count":1e30,"averageScore":4}`, math.MaxInt32},
		{"huge string clamps", `{"count":"9e99"}`, math.MaxInt32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Normalize([]byte(tt.raw), domain.KindItem, "i1", "")
			assert.Equal(t, tt.want, s.Count)
		})
	}
}

func TestNormalize_ServerDistributionTrusted(t *testing.T) {
	raw := `{"ratings":[{"score":5}],"distribution":{"5":7,"4":"2","9":1}}`
	s := Normalize([]byte(raw), domain.KindItem, "i1", "")
	assert.Equal(t, domain.Distribution{0, 0, 0, 2, 7}, s.Distribution)
}

func TestNormalize_ServerDistributionClamped(t *testing.T) {
	raw := `{"count":3,"distribution":{"5":1e30,"4":-2,"3":1.7}}`
	s := Normalize([]byte(raw), domain.KindItem, "i1", "")
	assert.Equal(t, domain.Distribution{0, 0, 1, 0, math.MaxInt32}, s.Distribution)
}

func TestNormalize_CountWithoutReviewsOrDistribution(t *testing.T) {
	s := Normalize([]byte(`{"count":4,"averageScore":4.25}`), domain.KindItem, "i1", "")

	assert.Equal(t, 4, s.Count)
	assert.Empty(t, s.Reviews)
	assert.Equal(t, domain.Distribution{}, s.Distribution)
}

func TestNormalize_NonObjectEntriesZeroFilled(t *testing.T) {
	s := Normalize([]byte(`{"ratings":[{"id":"a","score":5},null,"oops",3]}`), domain.KindItem, "i1", "")

	require.Len(t, s.Reviews, 4)
	assert.Equal(t, 4, s.Count)
	for _, r := range s.Reviews[1:] {
		assert.Empty(t, r.ID)
		assert.Equal(t, 0.0, r.Score)
		assert.Equal(t, AnonymousName, r.Author.Name)
		assert.Nil(t, r.CreatedAt)
	}
	assert.InDelta(t, 1.25, s.AverageScore, 1e-9)
	assert.Equal(t, domain.Distribution{0, 0, 0, 0, 1}, s.Distribution)
}

func TestNormalize_EnvelopeWrappingSummary(t *testing.T) {
	raw := `{"success":true,"data":{"reviews":[{"id":"r1","score":2,"authorId":"u2"}],"averageScore":2}}`
	s := Normalize([]byte(raw), domain.KindItem, "i1", "u2")
	assert.Equal(t, 1, s.Count)
	assert.Equal(t, "r1", s.ViewerReviewID)
}

func TestNormalize_OwnerCategories(t *testing.T) {
	raw := `{
		"ratings":[
			{"id":"r1","score":5,"categories":{"communication":5,"reliability":4,"itemCondition":3}},
			{"id":"r2","score":4,"communication":3,"reliability":2}
		],
		"categoryScores":{"communication":4.5,"reliability":3}
	}`
	s := Normalize([]byte(raw), domain.KindOwner, "o1", "")
	assert.Equal(t, domain.CategoryScores{Communication: 4.5, Reliability: 3, ItemCondition: 0}, s.CategoryScores)

	require.NotNil(t, s.Reviews[0].Categories)
	assert.Equal(t, 3.0, s.Reviews[0].Categories.ItemCondition)
	require.NotNil(t, s.Reviews[1].Categories)
	assert.Equal(t, domain.CategoryScores{Communication: 3, Reliability: 2}, *s.Reviews[1].Categories)
}

func TestNormalize_OwnerCategoriesAveragedWhenAbsent(t *testing.T) {
	raw := `[
		{"score":5,"categories":{"communication":5,"reliability":4,"itemCondition":3}},
		{"score":4,"categories":{"communication":3,"reliability":2,"itemCondition":5}},
		{"score":4}
	]`
	s := Normalize([]byte(raw), domain.KindOwner, "o1", "")
	assert.Equal(t, domain.CategoryScores{Communication: 4, Reliability: 3, ItemCondition: 4}, s.CategoryScores)
}

func TestNormalize_ItemKindIgnoresCategories(t *testing.T) {
	raw := `{"ratings":[{"score":5,"communication":5}],"categoryScores":{"communication":5}}`
	s := Normalize([]byte(raw), domain.KindItem, "i1", "")
	assert.Equal(t, domain.CategoryScores{}, s.CategoryScores)
	assert.Nil(t, s.Reviews[0].Categories)
}

func TestNormalize_CustomChains(t *testing.T) {
	chains := DefaultFieldChains()
	chains.Score = []string{"stars"}
	n := New(chains, nil)

	s := n.Normalize([]byte(`[{"stars":2,"score":5}]`), domain.KindItem, "i1", "")
	assert.Equal(t, 2.0, s.Reviews[0].Score)
}

func TestNormalize_CountsShapes(t *testing.T) {
	c := payloadShapes.WithLabelValues("owner", "list")
	before := testutil.ToFloat64(c)
	Normalize([]byte(`[]`), domain.KindOwner, "o1", "")
	assert.Equal(t, before+1, testutil.ToFloat64(c))
}

func TestNormalize_Idempotent(t *testing.T) {
	payloads := []string{
		`[{"id":"a","userId":"u1","user":{"firstName":"Ada"},"score":5,"comment":"x","createdAt":"2024-03-01T10:00:00Z"},{"id":"b","score":2}]`,
		`{"data":[{"id":"r1","score":4,"userId":"u1"}],"count":1,"averageScore":4}`,
		`{"ratings":[{"id":"r1","score":5,"categories":{"communication":5,"reliability":4,"itemCondition":3}}],"distribution":{"5":1}}`,
		`{"count":7,"averageScore":4.1}`,
		`{"data":[{"score":4,"userId":"u1"},null],"count":2}`,
		`garbage`,
	}
	for _, kind := range []domain.EntityKind{domain.KindItem, domain.KindOwner} {
		for i, raw := range payloads {
			t.Run(fmt.Sprintf("%s/%d", kind, i), func(t *testing.T) {
				assertIdempotent(t, Normalize([]byte(raw), kind, "e1", "u1"))
			})
		}
	}
}

func TestNormalize_IdempotentRandom(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	for i := 0; i < 100; i++ {
		n := r.IntN(12)
		items := make([]map[string]any, n)
		for j := range items {
			items[j] = map[string]any{
				"id":     fmt.Sprintf("r%d", j),
				"userId": fmt.Sprintf("u%d", r.IntN(4)),
				"score":  r.IntN(6),
				"categories": map[string]any{
					"communication": 1 + r.IntN(5),
					"reliability":   1 + r.IntN(5),
					"itemCondition": 1 + r.IntN(5),
				},
				"createdAt": time.Unix(1700000000+int64(r.IntN(1e6)), 0).UTC().Format(time.RFC3339),
			}
		}
		raw, err := json.Marshal(items)
		require.NoError(t, err)

		s := Normalize(raw, domain.KindOwner, "o1", "u1")
		assert.Equal(t, s.Count, len(s.Reviews))
		assert.GreaterOrEqual(t, s.AverageScore, 0.0)
		assert.LessOrEqual(t, s.AverageScore, 5.0)
		assertIdempotent(t, s)
	}
}

func assertIdempotent(t *testing.T, s *domain.RatingSummary) {
	t.Helper()
	raw, err := json.Marshal(s)
	require.NoError(t, err)
	again := Normalize(raw, s.EntityKind, s.EntityID, "u1")
	assert.Equal(t, s, again)
}
