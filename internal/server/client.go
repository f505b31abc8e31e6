/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"nexusmap/internal/domain"
)

// Client reads from a running viewer.
type Client struct {
	BaseURL string
	client  *http.Client
}

// NewClient normalises baseURL; a trailing slash is fine.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)
		if body.Error != "" {
			return nil, fmt.Errorf("server GET %s: %s: %s", u.Path, resp.Status, body.Error)
		}
		return nil, fmt.Errorf("server GET %s: %s", u.Path, resp.Status)
	}
	return resp, nil
}

// ListLayouts returns the layout summaries.
func (c *Client) ListLayouts(ctx context.Context) ([]domain.Summary, error) {
	resp, err := c.get(ctx, "/layouts")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var list []domain.Summary
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode layouts: %w", err)
	}
	return list, nil
}

// MapQuery selects the map image fetched by Map.
type MapQuery struct {
	Format    string // "svg" or "png"
	FocusID   string
	ShowPrice bool
	Width     int
	Height    int
}

// Map downloads a rendered map.
func (c *Client) Map(ctx context.Context, layoutID string, q MapQuery) ([]byte, error) {
	format := q.Format
	if format == "" {
		format = "svg"
	}
	v := url.Values{}
	if q.FocusID != "" {
		v.Set("plot", q.FocusID)
	}
	if q.ShowPrice {
		v.Set("price", "1")
	}
	if q.Width > 0 && q.Height > 0 {
		v.Set("w", strconv.Itoa(q.Width))
		v.Set("h", strconv.Itoa(q.Height))
	}
	path := "/layouts/" + url.PathEscape(layoutID) + "/map." + format
	if len(v) > 0 {
		path += "?" + v.Encode()
	}
	resp, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}
