// Package ratingapi talks to the marketplace ratings backend.
package ratingapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"

	"github.com/utafrali/RentMarket/pkg/httpclient"
	"github.com/utafrali/RentMarket/services/storefront/internal/domain"
)

const (
	serviceName = "ratings-api"
	maxBody     = 4 << 20
)

// Client calls the ratings backend. Every method takes the viewer's token
// explicitly; nothing is cached between calls.
type Client struct {
	http    httpclient.Doer
	baseURL string
	logger  *slog.Logger
}

// New creates a ratings backend client rooted at baseURL.
func New(doer httpclient.Doer, baseURL string, logger *slog.Logger) *Client {
	return &Client{
		http:    doer,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

type itemReviewRequest struct {
	ListingID string `json:"listingId"`
	Score     int    `json:"score"`
	Comment   string `json:"comment"`
}

type ownerReviewRequest struct {
	OwnerID       string `json:"ownerId"`
	Score         int    `json:"score"`
	Comment       string `json:"comment"`
	Communication int    `json:"communication"`
	Reliability   int    `json:"reliability"`
	ItemCondition int    `json:"itemCondition"`
}

// FetchSummary returns the raw ratings payload for an entity. The backend
// answers 404 for entities nobody has rated yet; that comes back as an empty
// payload.
func (c *Client) FetchSummary(ctx context.Context, kind domain.EntityKind, entityID, token string) ([]byte, error) {
	var path string
	switch kind {
	case domain.KindItem:
		path = "/ratings/listing/" + url.PathEscape(entityID)
	case domain.KindOwner:
		path = "/owner-ratings/" + url.PathEscape(entityID)
	default:
		return nil, fmt.Errorf("fetch ratings: unknown entity kind %q", kind)
	}

	resp, err := c.send(ctx, http.MethodGet, path, token, nil)
	if err != nil {
		return nil, fmt.Errorf("call ratings api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return nil, nil
	}
	if !httpclient.IsSuccess(resp.StatusCode) {
		return nil, httpclient.ParseResponseError(resp, serviceName)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read ratings payload: %w", err)
	}
	return body, nil
}

// CreateReview posts a new review for the viewer.
func (c *Client) CreateReview(ctx context.Context, token string, sub domain.Submission) error {
	switch sub.Kind {
	case domain.KindItem:
		return c.mutate(ctx, http.MethodPost, "/ratings", token, itemBody(sub))
	case domain.KindOwner:
		return c.mutate(ctx, http.MethodPost, "/owner-ratings", token, ownerBody(sub))
	default:
		return fmt.Errorf("create review: unknown entity kind %q", sub.Kind)
	}
}

// UpdateReview changes the viewer's existing review. Owner reviews have no
// update route, and neither does an item review the backend listed without an
// id; the backend upserts a re-post by the same viewer.
func (c *Client) UpdateReview(ctx context.Context, token string, sub domain.Submission) error {
	switch sub.Kind {
	case domain.KindItem:
		if sub.ReviewID == "" {
			return c.mutate(ctx, http.MethodPost, "/ratings", token, itemBody(sub))
		}
		return c.mutate(ctx, http.MethodPut, "/ratings/"+url.PathEscape(sub.ReviewID), token, itemBody(sub))
	case domain.KindOwner:
		return c.mutate(ctx, http.MethodPost, "/owner-ratings", token, ownerBody(sub))
	default:
		return fmt.Errorf("update review: unknown entity kind %q", sub.Kind)
	}
}

// DeleteReview removes one of the viewer's reviews.
func (c *Client) DeleteReview(ctx context.Context, token string, kind domain.EntityKind, reviewID string) error {
	if reviewID == "" {
		return fmt.Errorf("delete review: missing review id")
	}
	switch kind {
	case domain.KindItem:
		return c.mutate(ctx, http.MethodDelete, "/ratings/"+url.PathEscape(reviewID), token, nil)
	case domain.KindOwner:
		return c.mutate(ctx, http.MethodDelete, "/owner-ratings/"+url.PathEscape(reviewID), token, nil)
	default:
		return fmt.Errorf("delete review: unknown entity kind %q", kind)
	}
}

// Ping reports whether the backend answers at all. Any status below 500 counts.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.send(ctx, http.MethodGet, "/health", "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%s health returned status %d", serviceName, resp.StatusCode)
	}
	return nil
}

func (c *Client) mutate(ctx context.Context, method, path, token string, payload any) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal review request: %w", err)
		}
	}

	resp, err := c.send(ctx, method, path, token, body)
	if err != nil {
		return fmt.Errorf("call ratings api: %w", err)
	}
	defer resp.Body.Close()

	if !httpclient.IsSuccess(resp.StatusCode) {
		return httpclient.ParseResponseError(resp, serviceName)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))

	c.logger.DebugContext(ctx, "ratings api mutation accepted",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
	)
	return nil
}

func (c *Client) send(ctx context.Context, method, path, token string, body []byte) (*http.Response, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.http.Do(ctx, req)
}

func itemBody(sub domain.Submission) itemReviewRequest {
	return itemReviewRequest{
		ListingID: sub.EntityID,
		Score:     sub.Score,
		Comment:   sub.Comment,
	}
}

func ownerBody(sub domain.Submission) ownerReviewRequest {
	req := ownerReviewRequest{
		OwnerID: sub.EntityID,
		Score:   sub.Score,
		Comment: sub.Comment,
	}
	if sub.Categories != nil {
		req.Communication = int(math.Round(sub.Categories.Communication))
		req.Reliability = int(math.Round(sub.Categories.Reliability))
		req.ItemCondition = int(math.Round(sub.Categories.ItemCondition))
	}
	return req
}
