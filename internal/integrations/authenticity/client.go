// internal/integrations/authenticity/client.go
package authenticity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bartek5186/mosync/internal/apperr"
	"github.com/bartek5186/mosync/internal/integrations/upstream"
)

// Source is what the ledger sync needs from the authenticity API.
type Source interface {
	Warehouse(ctx context.Context, transferID int64) ([]Item, error)
	Vendor(ctx context.Context, roll string) ([]Item, error)
}

// Client talks to the warehouse authenticity API with a cached bearer token.
type Client struct {
	baseURL    string
	username   string
	password   string
	vendorPage int
	http       *http.Client
	tokens     *TokenCache
}

func NewClient(cfg Config) *Client {
	cfg.fillDefaults()
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		username:   cfg.Username,
		password:   cfg.Password,
		vendorPage: cfg.VendorPageLimit,
		http:       &http.Client{Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond},
	}
	c.tokens = NewTokenCache(time.Duration(cfg.TokenTTLMinutes)*time.Minute, c.fetchToken)
	return c
}

type tokenResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
	Message     string `json:"message"`
	Data        struct {
		Token string `json:"token"`
	} `json:"data"`
}

func (c *Client) fetchToken(ctx context.Context) (string, error) {
	body, _ := json.Marshal(map[string]string{"username": c.username, "password": c.password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/get-token", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	upstream.SetCommon(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", apperr.Upstream(err, "get-token")
	}
	var tr tokenResponse
	if err := upstream.Decode(resp, &tr, "get-token"); err != nil {
		return "", err
	}
	for _, t := range []string{tr.Token, tr.Data.Token, tr.AccessToken} {
		if t != "" {
			return t, nil
		}
	}
	return "", apperr.Upstream(errors.New("token not found in response"), "get-token")
}

// getJSON performs an authenticated GET and decodes the body loosely.
func (c *Client) getJSON(ctx context.Context, path string, q url.Values) (any, error) {
	tok, err := c.tokens.Get(ctx)
	if err != nil {
		return nil, err
	}
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	upstream.SetCommon(req)
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.Upstream(err, "GET %s", path)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		// next call fetches a fresh token
		c.tokens.Invalidate()
	}
	var raw json.RawMessage
	if err := upstream.Decode(resp, &raw, "GET "+path); err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var body any
	if err := dec.Decode(&body); err != nil {
		return nil, apperr.Upstream(err, "GET %s: decode", path)
	}
	return body, nil
}

func (c *Client) Warehouse(ctx context.Context, transferID int64) ([]Item, error) {
	body, err := c.getJSON(ctx, "/authenticity/warehouse", url.Values{
		"transfer_id": {strconv.FormatInt(transferID, 10)},
	})
	if err != nil {
		return nil, err
	}
	return Unwrap(body, warehouseShapes), nil
}

func (c *Client) Vendor(ctx context.Context, roll string) ([]Item, error) {
	body, err := c.getJSON(ctx, "/authenticity/vendor", url.Values{
		"serial": {roll},
		"limit":  {strconv.Itoa(c.vendorPage)},
		"page":   {"1"},
	})
	if err != nil {
		return nil, err
	}
	return Unwrap(body, vendorShapes), nil
}
