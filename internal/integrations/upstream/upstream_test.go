package upstream

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/bartek5186/mosync/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func response(code int, ct, body string) *http.Response {
	h := http.Header{}
	if ct != "" {
		h.Set("Content-Type", ct)
	}
	return &http.Response{StatusCode: code, Header: h, Body: io.NopCloser(strings.NewReader(body))}
}

func TestDecode_Latin1(t *testing.T) {
	// "Café" in ISO-8859-1
	body := "{\"name\":\"Caf\xe9\"}"
	var out struct {
		Name string `json:"name"`
	}
	require.NoError(t, Decode(response(200, "application/json; charset=latin1", body), &out, "test"))
	assert.Equal(t, "Café", out.Name)
}

func TestDecode_StatusError(t *testing.T) {
	var out map[string]any
	err := Decode(response(502, "application/json", `{"message":"bad gateway"}`), &out, "vendor")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 502, se.Code)
	assert.Contains(t, se.Body, "bad gateway")
}

func TestDecode_Garbage(t *testing.T) {
	var out map[string]any
	err := Decode(response(200, "", "<html>"), &out, "x")
	assert.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)
}
