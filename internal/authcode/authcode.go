// Package authcode holds the arithmetic on authenticity codes: sequential
// numeric identifiers stored as strings that double as a production counter.
package authcode

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Parse reads an integral authenticity code. Codes may exceed int64, so they
// are kept as decimals.
func Parse(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsInteger() {
		return decimal.Zero, false
	}
	return d, true
}

// Boundary splits the code range at n: the closing order ends at n-1 and the
// following order starts at n.
func Boundary(n decimal.Decimal) (prevLast, nextFirst string) {
	return n.Sub(decimal.NewFromInt(1)).String(), n.String()
}

// Used is last-first+1 when both codes parse.
func Used(first, last *string) (decimal.Decimal, bool) {
	if first == nil || last == nil {
		return decimal.Zero, false
	}
	f, ok := Parse(*first)
	if !ok {
		return decimal.Zero, false
	}
	l, ok := Parse(*last)
	if !ok {
		return decimal.Zero, false
	}
	return l.Sub(f).Add(decimal.NewFromInt(1)), true
}

// DoneQty is Used as an int64 pointer, nil when unknown.
func DoneQty(first, last *string) *int64 {
	u, ok := Used(first, last)
	if !ok {
		return nil
	}
	v := u.IntPart()
	return &v
}

// Loss holds the derived loss columns of an order.
type Loss struct {
	AuthUsed       *float64
	LossValue      *float64
	PercentageLoss *float64
}

// ComputeLoss derives auth_used, loss_value and percentage_loss. target is
// initial_qty_target falling back to product_qty; percentage_loss needs a
// positive target.
func ComputeLoss(target *float64, first, last *string) Loss {
	var out Loss
	used, ok := Used(first, last)
	if !ok {
		return out
	}
	u := used.InexactFloat64()
	out.AuthUsed = &u
	if target == nil {
		return out
	}
	t := decimal.NewFromFloat(*target)
	loss := t.Sub(used)
	lv := loss.InexactFloat64()
	out.LossValue = &lv
	if t.IsPositive() {
		pct := loss.Mul(decimal.NewFromInt(100)).DivRound(t, 6).InexactFloat64()
		out.PercentageLoss = &pct
	}
	return out
}
