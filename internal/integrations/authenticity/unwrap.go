// internal/integrations/authenticity/unwrap.go
package authenticity

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Item is one loosely-typed element of an API list.
type Item map[string]any

// Unwrapper extracts the item list from one known response shape.
type Unwrapper func(body any) ([]Item, bool)

// TopLevel matches a body that is itself the list.
func TopLevel(body any) ([]Item, bool) {
	arr, ok := body.([]any)
	if !ok {
		return nil, false
	}
	return toItems(arr), true
}

// Under matches {"<key>": [...]}.
func Under(key string) Unwrapper {
	return func(body any) ([]Item, bool) {
		obj, ok := body.(map[string]any)
		if !ok {
			return nil, false
		}
		arr, ok := obj[key].([]any)
		if !ok {
			return nil, false
		}
		return toItems(arr), true
	}
}

var (
	warehouseShapes = []Unwrapper{TopLevel, Under("data"), Under("authenticities")}
	vendorShapes    = []Unwrapper{TopLevel, Under("data"), Under("vendors"), Under("items"), Under("results")}
)

// Unwrap tries the strategies in order; the first match wins. No match is an
// empty list.
func Unwrap(body any, shapes []Unwrapper) []Item {
	for _, u := range shapes {
		if items, ok := u(body); ok {
			return items
		}
	}
	return nil
}

func toItems(arr []any) []Item {
	out := make([]Item, 0, len(arr))
	for _, v := range arr {
		if m, ok := v.(map[string]any); ok {
			out = append(out, Item(m))
		}
	}
	return out
}

// First returns the first non-empty value among keys, rendered as a string.
// Numbers keep their literal form.
func (it Item) First(keys ...string) string {
	for _, k := range keys {
		if s := asString(it[k]); s != "" {
			return s
		}
	}
	return ""
}

func (it Item) firstPtr(keys ...string) *string {
	if s := it.First(keys...); s != "" {
		return &s
	}
	return nil
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		if f, err := t.Float64(); err == nil && f == 0 {
			return ""
		}
		return t.String()
	case float64:
		if t == 0 {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

var (
	warehouseCodeKeys = []string{"authenticity", "authenticity_id", "code", "id"}

	vendorRollKeys     = []string{"roll", "serial", "roll_number", "serial_number"}
	vendorCodeKeys     = []string{"authenticity", "authenticity_id", "code", "authenticity_code"}
	vendorMarketingKey = []string{"marketing_id", "marketing_code", "marketingCode"}
	vendorDeliveryKeys = []string{"delivery_date", "tanggal_kirim", "date_delivery", "deliveryDate"}
	vendorNameKeys     = []string{"vendor_name", "nama_vendor", "vendor", "vendorName"}
)
