package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/bartek5186/mosync/internal/apperr"
	"github.com/bartek5186/mosync/internal/store"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// FlexString accepts a JSON string or number. Operators type codes and
// leader ids into numeric fields; "007" must survive, 7 becomes "7".
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*f = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return errors.New("expected a string or a number")
		}
		*f = FlexString(n.String())
	}
	return nil
}

func (f FlexString) String() string { return strings.TrimSpace(string(f)) }

type requestValidator struct {
	v *validator.Validate
}

func newValidator() *requestValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &requestValidator{v: v}
}

func (rv *requestValidator) Validate(i any) error {
	err := rv.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Invalid("%s", err.Error())
	}
	var required, other []string
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			required = append(required, fe.Field())
		} else {
			other = append(other, fe.Field()+" is invalid ("+fe.Tag()+")")
		}
	}
	if len(required) > 0 {
		verb := "is"
		if len(required) > 1 {
			verb = "are"
		}
		return apperr.Invalid("%s %s required", joinFields(required), verb)
	}
	return apperr.Invalid("%s", strings.Join(other, "; "))
}

func joinFields(f []string) string {
	if len(f) <= 1 {
		return strings.Join(f, "")
	}
	return strings.Join(f[:len(f)-1], ", ") + " and " + f[len(f)-1]
}

// bindBody decodes and validates a JSON body.
func bindBody(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return apperr.Invalid("invalid request body")
		}
		return err
	}
	return c.Validate(v)
}

// page reads limit/offset; garbage falls back to the defaults.
func page(c echo.Context) store.Page {
	p := store.Page{Limit: store.DefaultPageLimit}
	if n, err := strconv.Atoi(c.QueryParam("limit")); err == nil && n > 0 {
		p.Limit = n
	}
	if n, err := strconv.Atoi(c.QueryParam("offset")); err == nil && n > 0 {
		p.Offset = n
	}
	return p
}

type envelope struct {
	OK         bool             `json:"ok"`
	Data       any              `json:"data"`
	Pagination store.Pagination `json:"pagination"`
	Source     string           `json:"_source,omitempty"`
}

type dataBody struct {
	Data any `json:"data"`
}
