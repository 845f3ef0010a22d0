// Package upstream holds the HTTP plumbing shared by the ERP and
// authenticity clients: status checks and charset-aware JSON decoding.
package upstream

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/bartek5186/mosync/internal/apperr"
	"golang.org/x/net/html/charset"
)

// UserAgent sent with every upstream request.
const UserAgent = "mosync/1.0"

// bodyPreview caps how much of an error body ends up in a message.
const bodyPreview = 512

// StatusError is a non-2xx answer from an upstream.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d", e.Code)
	}
	return fmt.Sprintf("http %d: %s", e.Code, e.Body)
}

// Decode checks the status of resp and decodes its JSON body into v,
// transcoding from the charset declared in Content-Type. The body is always
// closed. what names the call in error messages.
func Decode(resp *http.Response, v any, what string) error {
	defer resp.Body.Close()

	body, err := Reader(resp)
	if err != nil {
		return apperr.Upstream(err, "%s: charset", what)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(body, bodyPreview))
		return apperr.Upstream(&StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}, "%s", what)
	}
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return apperr.Upstream(err, "%s: decode", what)
	}
	return nil
}

// Reader returns resp.Body transcoded to UTF-8.
func Reader(resp *http.Response) (io.Reader, error) {
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		return resp.Body, nil
	}
	_, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return resp.Body, nil
	}
	cs := normalizeCharset(params["charset"])
	if cs == "" || cs == "utf-8" || cs == "utf8" {
		return resp.Body, nil
	}
	return charset.NewReaderLabel(cs, resp.Body)
}

// normalizeCharset maps odd labels to names known to
// charset.NewReaderLabel.
func normalizeCharset(cs string) string {
	c := strings.TrimSpace(strings.ToLower(cs))
	switch c {
	case "latin-1", "latin1", "iso8859-1", "iso_8859-1":
		return "iso-8859-1"
	case "cp1252", "windows1252", "win-1252":
		return "windows-1252"
	default:
		return c
	}
}

// SetCommon sets the headers every upstream call carries.
func SetCommon(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)
}
