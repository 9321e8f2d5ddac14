package normalize

// FieldChains lists, per canonical field, the payload paths consulted in
// order. The first path holding a usable value wins. Paths use gjson syntax
// relative to the review or summary object.
//
// A path in AuthorName ending in "firstName" also appends the sibling
// "lastName" when present.
type FieldChains struct {
	// Review fields.
	ID         []string
	AuthorID   []string
	Score      []string
	Comment    []string
	AuthorName []string
	Avatar     []string
	CreatedAt  []string
	// Objects holding a review's category scores. An empty path means the
	// review object itself.
	ReviewCategories []string

	// Summary fields.
	Reviews        []string
	Count          []string
	Average        []string
	Distribution   []string
	CategoryScores []string
}

// AnonymousName is used when no author name path resolves.
const AnonymousName = "Anonymous"

// DefaultFieldChains returns the chains matching every payload variant the
// ratings backend has produced so far.
func DefaultFieldChains() FieldChains {
	return FieldChains{
		ID:       []string{"id", "_id", "ratingId"},
		AuthorID: []string{"userId", "user_id", "user.id", "user._id", "user", "authorId", "author.id", "author._id"},
		Score:    []string{"score", "rating"},
		Comment:  []string{"comment", "text", "content"},
		AuthorName: []string{
			"user.firstName", "userName", "user.username", "username",
			"author.name", "author", "authorName",
		},
		Avatar:           []string{"user.profileImage", "user.avatar", "author.profileImage", "author.avatarUrl", "avatarUrl"},
		CreatedAt:        []string{"createdAt", "created_at", "date"},
		ReviewCategories: []string{"categories", "categoryScores", ""},

		Reviews:        []string{"ratings", "reviews"},
		Count:          []string{"count", "totalCount", "total"},
		Average:        []string{"averageScore", "averageRating", "average"},
		Distribution:   []string{"distribution"},
		CategoryScores: []string{"categoryScores"},
	}
}
