// Package client talks to the vau-explorer HTTP API. It provides the POI
// provider and hit logger used by tools that run tracking sessions outside
// the server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"vau-explorer/models"
	"vau-explorer/utils/errors"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListPOIs fetches the published POIs localised for lang.
func (c *Client) ListPOIs(ctx context.Context, lang string) ([]models.POI, error) {
	u := c.baseURL + "/pois"
	if lang != "" {
		u += "?lang=" + url.QueryEscape(lang)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		POIs []models.POI `json:"pois"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, fmt.Errorf("list pois: %w", err)
	}
	return out.POIs, nil
}

// LogHit posts a hit to the server.
func (c *Client) LogHit(ctx context.Context, hit models.Hit) error {
	body, err := json.Marshal(hit)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/hits", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if hit.UserAgent != "" {
		req.Header.Set("User-Agent", hit.UserAgent)
	}
	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("log hit: %w", err)
	}
	return nil
}

// do sends req and decodes a 2xx body into out. Error responses are returned
// as *errors.APIError.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &errors.APIError{}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Code == "" {
			return errors.NewAPIError("HTTP_ERROR", resp.Status, resp.StatusCode)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
