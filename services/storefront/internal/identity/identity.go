// Package identity derives the viewer's user id from an opaque bearer token.
//
// The storefront never verifies tokens. It only reads the claims segment so it
// can tell which review on a page belongs to the viewer. The ratings backend
// verifies the signature on every call that matters.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/utafrali/RentMarket/pkg/middleware"
)

// userIDClaims is the order in which claims are consulted.
var userIDClaims = []string{"userId", "id", "_id", "user_id", "sub"}

var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

// ResolveUserID returns the user id carried in the token's claims segment.
// It never fails: a missing, malformed or undecodable token yields ("", false).
func ResolveUserID(token string) (id string, ok bool) {
	defer func() {
		if recover() != nil {
			id, ok = "", false
		}
	}()

	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", false
	}

	payload, err := segmentParser.DecodeSegment(parts[1])
	if err != nil {
		return "", false
	}

	claims := jwt.MapClaims{}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&claims); err != nil {
		return "", false
	}

	for _, name := range userIDClaims {
		if v, found := claimString(claims[name]); found {
			return v, true
		}
	}
	return "", false
}

func claimString(v any) (string, bool) {
	switch c := v.(type) {
	case string:
		if strings.TrimSpace(c) == "" {
			return "", false
		}
		return c, true
	case json.Number:
		if n, err := c.Int64(); err == nil {
			return strconv.FormatInt(n, 10), true
		}
		f, err := c.Float64()
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return "", false
		}
		if f == math.Trunc(f) {
			return strconv.FormatFloat(f, 'f', 0, 64), true
		}
		return c.String(), true
	default:
		return "", false
	}
}

// Viewer is the identity attached to one request. It is rebuilt on every
// call, so a token refreshed mid-session is picked up immediately.
type Viewer struct {
	Token  string
	UserID string
}

// NewViewer resolves the token once. A token that does not decode still
// travels with the viewer so the backend can reject it properly.
func NewViewer(token string) Viewer {
	token = strings.TrimSpace(token)
	id, _ := ResolveUserID(token)
	return Viewer{Token: token, UserID: id}
}

// Anonymous returns a viewer with no token.
func Anonymous() Viewer {
	return Viewer{}
}

// Identified reports whether a user id was resolved.
func (v Viewer) Identified() bool {
	return v.UserID != ""
}

// FromContext rebuilds the viewer from the token stored by middleware.Viewer.
func FromContext(ctx context.Context) Viewer {
	return NewViewer(middleware.TokenFromContext(ctx))
}
