// Package cart holds the shopping cart, its unit arithmetic and the frozen
// snapshot that checkout works from.
package cart

import (
	"github.com/shopspring/decimal"
)

// UnitType says whether a product is sold in whole counts or by weight.
type UnitType string

const (
	Discrete UnitType = "DISCRETE"
	Weight   UnitType = "WEIGHT"
)

func (u UnitType) Valid() bool {
	return u == Discrete || u == Weight
}

// Line is one product in the cart.
type Line struct {
	ProductID      int64           `json:"productId"`
	ProductName    string          `json:"productName"`
	UnitType       UnitType        `json:"unitType"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	Units          decimal.Decimal `json:"units"`
	UnitsAvailable decimal.Decimal `json:"unitsAvailable"`
}

// Subtotal is UnitPrice*Units, unrounded.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(l.Units)
}

var (
	minWeightUnits   = decimal.RequireFromString("0.25")
	minDiscreteUnits = decimal.NewFromInt(1)
)

// ClampUnits normalises a requested quantity for line.
//
// WEIGHT lines are rounded to 2 places with a floor of 0.25. DISCRETE lines
// are rounded to the nearest integer with a floor of 1. Both are capped at
// UnitsAvailable (truncated to the line's precision). When stock is below
// the floor the cap wins, so the result never exceeds availability.
func ClampUnits(line Line, requested decimal.Decimal) decimal.Decimal {
	var v, floor, ceil decimal.Decimal
	switch line.UnitType {
	case Weight:
		v = requested.Round(2)
		floor = minWeightUnits
		ceil = line.UnitsAvailable.Truncate(2)
	default:
		v = requested.Round(0)
		floor = minDiscreteUnits
		ceil = line.UnitsAvailable.Floor()
	}
	if v.LessThan(floor) {
		v = floor
	}
	if v.GreaterThan(ceil) {
		v = ceil
	}
	return v
}

// ComputeTotal sums UnitPrice*Units over lines without intermediate rounding.
func ComputeTotal(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// RoundForDisplay rounds an amount to cents. Only presentation and the wire use it.
func RoundForDisplay(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}
