package core

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidComposition is returned when component fractions do not sum to one.
var ErrInvalidComposition = errors.New("composition fractions must sum to 1")

// LotComponent identifies one grape component of a wine lot.
type LotComponent struct {
	Variety     string `json:"variety"`
	Appellation string `json:"appellation"`
	Vintage     int    `json:"vintage"`
}

// ComponentAmount is the storable form of one component and its fraction of a lot.
type ComponentAmount struct {
	Component LotComponent    `json:"component"`
	Percent   decimal.Decimal `json:"percent"`
}

// Composition describes what fractions of which components make up a wine lot.
// The zero value is an empty composition.
type Composition struct {
	Components map[LotComponent]decimal.Decimal
}

// BuildComposition creates a Composition from component amounts.
func BuildComposition(amounts []ComponentAmount) Composition {
	components := make(map[LotComponent]decimal.Decimal, len(amounts))
	for _, amount := range amounts {
		components[amount.Component] = components[amount.Component].Add(amount.Percent)
	}

	return Composition{Components: components}
}

// Amounts returns the composition as storable component amounts.
func (c Composition) Amounts() []ComponentAmount {
	amounts := make([]ComponentAmount, 0, len(c.Components))
	for component, percent := range c.Components {
		amounts = append(amounts, ComponentAmount{Component: component, Percent: percent})
	}

	return amounts
}

var (
	compositionToleranceLow  = decimal.RequireFromString("0.9999")
	compositionToleranceHigh = decimal.RequireFromString("1.0001")
)

// Validate checks that the fractions sum to one, within decimal tolerance.
// An empty composition is valid; it describes a lot with no contents.
func (c Composition) Validate() error {
	if len(c.Components) == 0 {
		return nil
	}

	total := decimal.Zero
	for _, percent := range c.Components {
		total = total.Add(percent)
	}

	if total.LessThanOrEqual(compositionToleranceLow) || total.GreaterThanOrEqual(compositionToleranceHigh) {
		return fmt.Errorf("%w: got %s", ErrInvalidComposition, total.String())
	}

	return nil
}
