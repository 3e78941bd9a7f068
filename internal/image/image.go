// Package image resolves topic keywords to photographs through an
// Unsplash-compatible search API. Every failure is typed so the state
// machine can map it to the static fallback set.
package image

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Failure kinds. The caller treats all of them the same way (fall back
// to the static set) but keeps the kind for diagnostics.
var (
	ErrUnauthorized      = errors.New("image provider: unauthorized")
	ErrRateLimited       = errors.New("image provider: rate limited")
	ErrMalformedResponse = errors.New("image provider: malformed response")
	ErrNetwork           = errors.New("image provider: network error")
)

const defaultBaseURL = "https://api.unsplash.com"

// Client queries the image search API.
type Client struct {
	http      *http.Client
	baseURL   string
	accessKey string
}

// New creates an image client. An empty baseURL selects the public
// endpoint.
func New(baseURL, accessKey string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		http:      &http.Client{Timeout: 10 * time.Second},
		baseURL:   baseURL,
		accessKey: accessKey,
	}
}

type searchResponse struct {
	Results []struct {
		URLs struct {
			Regular string `json:"regular"`
		} `json:"urls"`
	} `json:"results"`
}

// Search returns the URL of a photo matching the topic keyword.
func (c *Client) Search(ctx context.Context, topic string) (string, error) {
	if c.accessKey == "" {
		return "", fmt.Errorf("%w: no access key configured", ErrUnauthorized)
	}

	q := url.Values{}
	q.Set("query", topic)
	q.Set("per_page", "1")
	q.Set("orientation", "landscape")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search/photos?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	req.Header.Set("Authorization", "Client-ID "+c.accessKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("%w: unexpected status %d", ErrMalformedResponse, resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(body.Results) == 0 || body.Results[0].URLs.Regular == "" {
		return "", fmt.Errorf("%w: no results for %q", ErrMalformedResponse, topic)
	}
	return body.Results[0].URLs.Regular, nil
}
