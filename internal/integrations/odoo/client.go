// internal/integrations/odoo/client.go
package odoo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bartek5186/mosync/internal/apperr"
	"github.com/bartek5186/mosync/internal/integrations/upstream"
)

// Domain is an Odoo search domain: terms and prefix operators ("|", "&").
type Domain []any

// Term builds a single [field, op, value] condition.
func Term(field, op string, value any) []any {
	return []any{field, op, value}
}

// AnyOf joins terms with OR using Odoo's prefix notation.
func AnyOf(terms ...[]any) Domain {
	var d Domain
	for i := 0; i < len(terms)-1; i++ {
		d = append(d, "|")
	}
	for _, t := range terms {
		d = append(d, t)
	}
	return d
}

type Kwargs struct {
	Fields []string `json:"fields,omitempty"`
	Limit  int      `json:"limit,omitempty"`
	Offset int      `json:"offset,omitempty"`
	Order  string   `json:"order,omitempty"`
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	ID      int64     `json:"id"`
	Params  rpcParams `json:"params"`
}

type rpcParams struct {
	Model  string `json:"model"`
	Method string `json:"method"`
	Args   []any  `json:"args"`
	Kwargs Kwargs `json:"kwargs"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"data"`
}

func (e *rpcError) Error() string {
	msg := e.Message
	if e.Data.Message != "" {
		msg += ": " + e.Data.Message
	}
	if msg == "" {
		msg = "odoo error"
	}
	return msg
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// Client calls the Odoo JSON-RPC dataset endpoint with a browser session
// cookie.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// SearchRead runs model.search_read and decodes the result list into out.
func (c *Client) SearchRead(ctx context.Context, sessionID, model string, domain Domain, kw Kwargs, out any) error {
	args := []any{}
	if len(domain) > 0 {
		args = append(args, domain)
	}
	payload := rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		ID:      time.Now().UnixNano(),
		Params: rpcParams{
			Model:  model,
			Method: "search_read",
			Args:   args,
			Kwargs: kw,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("odoo encode: %w", err)
	}

	endpoint := c.baseURL + "/web/dataset/call_kw/" + url.PathEscape(model) + "/search_read"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	upstream.SetCommon(req)
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "session_id", Value: sessionID})

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Upstream(err, "odoo %s", model)
	}
	var rpc rpcResponse
	if err := upstream.Decode(resp, &rpc, "odoo "+model); err != nil {
		return err
	}
	if rpc.Error != nil {
		return apperr.Upstream(rpc.Error, "odoo %s", model)
	}
	if len(rpc.Result) == 0 || bytes.Equal(rpc.Result, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(rpc.Result, out); err != nil {
		return apperr.Upstream(err, "odoo %s: result", model)
	}
	return nil
}
