package identity

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/RentMarket/pkg/middleware"
)

func tokenWithClaims(claims string) string {
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`)) + "." +
		enc.EncodeToString([]byte(claims)) + ".signature"
}

func TestResolveUserID(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		want   string
		wantOK bool
	}{
		{"userId claim", tokenWithClaims(`{"userId":"u1"}`), "u1", true},
		{"id claim", tokenWithClaims(`{"id":"u2"}`), "u2", true},
		{"mongo style id", tokenWithClaims(`{"_id":"64f0"}`), "64f0", true},
		{"snake case", tokenWithClaims(`{"user_id":"u3"}`), "u3", true},
		{"subject", tokenWithClaims(`{"sub":"u4"}`), "u4", true},
		{"userId wins over sub", tokenWithClaims(`{"sub":"s","userId":"u5"}`), "u5", true},
		{"empty userId skipped", tokenWithClaims(`{"userId":"","sub":"u6"}`), "u6", true},
		{"numeric id", tokenWithClaims(`{"id":42}`), "42", true},
		{"large numeric id", tokenWithClaims(`{"id":12345678901234}`), "12345678901234", true},
		{"no known claim", tokenWithClaims(`{"email":"a@b.c"}`), "", false},
		{"object claim ignored", tokenWithClaims(`{"userId":{"x":1}}`), "", false},
		{"claims not json", tokenWithClaims(`not-json`), "", false},
		{"claims is array", tokenWithClaims(`["u1"]`), "", false},
		{"empty token", "", "", false},
		{"whitespace token", "   ", "", false},
		{"one segment", "abc", "", false},
		{"two segments", "abc.def", "", false},
		{"four segments", "a.b.c.d", "", false},
		{"bad base64", "aaa.!!!.ccc", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveUserID(tt.token)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveUserID_PaddedSegment(t *testing.T) {
	claims := base64.URLEncoding.EncodeToString([]byte(`{"userId":"u1"}`))
	got, ok := ResolveUserID("h." + claims + ".s")
	require.True(t, ok)
	assert.Equal(t, "u1", got)
}

func TestResolveUserID_IgnoresHeaderAndSignature(t *testing.T) {
	claims := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"u9"}`))
	got, ok := ResolveUserID("garbage." + claims + ".")
	require.True(t, ok)
	assert.Equal(t, "u9", got)
}

func TestNewViewer(t *testing.T) {
	v := NewViewer(tokenWithClaims(`{"userId":"u1"}`))
	assert.True(t, v.Identified())
	assert.Equal(t, "u1", v.UserID)
	assert.NotEmpty(t, v.Token)

	bad := NewViewer("not-a-token")
	assert.False(t, bad.Identified())
	assert.Equal(t, "not-a-token", bad.Token)

	assert.False(t, Anonymous().Identified())
	assert.Empty(t, Anonymous().Token)
}

func TestFromContext_ReadsTokenPerRequest(t *testing.T) {
	var seen []Viewer
	h := middleware.Viewer(ResolveUserID)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, FromContext(r.Context()))
	}))

	for _, claims := range []string{`{"userId":"u1"}`, `{"userId":"u2"}`} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tokenWithClaims(claims))
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.Len(t, seen, 3)
	assert.Equal(t, "u1", seen[0].UserID)
	assert.Equal(t, "u2", seen[1].UserID)
	assert.False(t, seen[2].Identified())

	assert.False(t, FromContext(context.Background()).Identified())
}
