// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/blendvc/blendvc/modules/blend/exchange"
)

// Client submits Sync packets to a peer's Server over POST /v1/sync. Its
// Request method satisfies repo.Requester.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a Client against baseURL (e.g. "http://peer:8080").
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

// Request implements repo.Requester: it encodes s, POSTs it, and decodes
// the peer's Exchange reply.
func (c *Client) Request(s exchange.Sync) (exchange.Exchange, error) {
	return c.RequestContext(context.Background(), s)
}

func (c *Client) RequestContext(ctx context.Context, s exchange.Sync) (exchange.Exchange, error) {
	encoded, err := exchange.EncodeSync(s)
	if err != nil {
		return exchange.Exchange{}, fmt.Errorf("encode sync request: %w", err)
	}

	u, err := url.JoinPath(c.baseURL, SyncPath)
	if err != nil {
		return exchange.Exchange{}, fmt.Errorf("build sync url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(encoded))
	if err != nil {
		return exchange.Exchange{}, fmt.Errorf("build sync request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return exchange.Exchange{}, fmt.Errorf("sync request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return exchange.Exchange{}, fmt.Errorf("read sync response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var eb errorBody
		if jsonErr := json.Unmarshal(body, &eb); jsonErr == nil && eb.Message != "" {
			return exchange.Exchange{}, fmt.Errorf("sync failed (status %d): %s", resp.StatusCode, eb.Message)
		}
		return exchange.Exchange{}, fmt.Errorf("sync failed: status %d", resp.StatusCode)
	}
	return exchange.DecodeExchange(body)
}
