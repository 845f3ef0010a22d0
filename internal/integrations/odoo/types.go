// internal/integrations/odoo/types.go
package odoo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Odoo sends `false` instead of null for empty fields of any type.
func isEmptyJSON(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) == 0 || bytes.Equal(b, []byte("false")) || bytes.Equal(b, []byte("null"))
}

// Value is a nullable ERP scalar; false and null both decode as absent.
type Value[T any] struct {
	V     T
	Valid bool
}

func (v *Value[T]) UnmarshalJSON(b []byte) error {
	if isEmptyJSON(b) {
		*v = Value[T]{}
		return nil
	}
	if err := json.Unmarshal(b, &v.V); err != nil {
		return err
	}
	v.Valid = true
	return nil
}

func (v Value[T]) Ptr() *T {
	if !v.Valid {
		return nil
	}
	out := v.V
	return &out
}

// Many2One is an ERP relation rendered as [id, "display name"] or false.
type Many2One struct {
	ID    int64
	Name  string
	Valid bool
}

func (m *Many2One) UnmarshalJSON(b []byte) error {
	*m = Many2One{}
	if isEmptyJSON(b) {
		return nil
	}
	b = bytes.TrimSpace(b)
	if b[0] != '[' {
		// bare id (some API versions)
		if err := json.Unmarshal(b, &m.ID); err != nil {
			return fmt.Errorf("many2one: %w", err)
		}
		m.Valid = true
		return nil
	}
	var pair []json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return fmt.Errorf("many2one: %w", err)
	}
	if len(pair) == 0 {
		return nil
	}
	if err := json.Unmarshal(pair[0], &m.ID); err != nil {
		return fmt.Errorf("many2one id: %w", err)
	}
	m.Valid = true
	if len(pair) > 1 && !isEmptyJSON(pair[1]) {
		if err := json.Unmarshal(pair[1], &m.Name); err != nil {
			return fmt.Errorf("many2one name: %w", err)
		}
	}
	return nil
}

func (m Many2One) IDPtr() *int64 {
	if !m.Valid {
		return nil
	}
	id := m.ID
	return &id
}

func (m Many2One) NamePtr() *string {
	if !m.Valid || m.Name == "" {
		return nil
	}
	n := m.Name
	return &n
}

// Order is one mrp.production row as returned by search_read.
type Order struct {
	ID               int64          `json:"id"`
	Name             string         `json:"name"`
	State            Value[string]  `json:"state"`
	GroupWorker      Many2One       `json:"group_worker"`
	Note             Value[string]  `json:"note"`
	Product          Many2One       `json:"product_id"`
	ProductQty       Value[float64] `json:"product_qty"`
	ProductUom       Many2One       `json:"product_uom_id"`
	InitialQtyTarget Value[float64] `json:"initial_qty_target"`
	CreateDate       Value[string]  `json:"create_date"`
	DateStart        Value[string]  `json:"date_start"`
	DateFinished     Value[string]  `json:"date_finished"`
	Origin           Value[string]  `json:"origin"`
}

var orderFields = []string{
	"id", "name", "state", "group_worker", "note",
	"product_id", "product_qty", "product_uom_id",
	"initial_qty_target", "create_date", "date_start", "date_finished",
	"origin",
}

// Picking is the projection of stock.picking used to resolve transfers.
type Picking struct {
	ID     int64         `json:"id"`
	Name   Value[string] `json:"name"`
	Origin Value[string] `json:"origin"`
}

var pickingFields = []string{"id", "name", "origin", "scheduled_date", "date_done", "state", "picking_type_id"}

// nonEmpty maps blank strings to nil.
func nonEmpty(v Value[string]) *string {
	if !v.Valid || strings.TrimSpace(v.V) == "" {
		return nil
	}
	s := v.V
	return &s
}
