package domain

import (
	"slices"

	"github.com/shopspring/decimal"
)

// CartLine is one distinct product in a cart. Price and display fields are
// copied from the catalog when the product is first added and never refreshed.
type CartLine struct {
	ProductID   ProductID       `json:"product_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	ImageURL    string          `json:"image_url,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
}

// LineTotal returns unit price times quantity.
func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CartState is an ordered set of cart lines keyed by product id.
//
// A CartState is a value: transitions return a new state and never modify
// the receiver, so a state handed to a reader stays valid after later
// mutations. Every line has quantity >= 1 and product ids are unique.
type CartState struct {
	lines []CartLine
}

// NewCartState builds a state from lines, dropping lines with quantity < 1 and
// repeated product ids (the first occurrence wins).
func NewCartState(lines []CartLine) CartState {
	out := make([]CartLine, 0, len(lines))
	for _, l := range lines {
		if l.Quantity < 1 || indexOf(out, l.ProductID) >= 0 {
			continue
		}
		out = append(out, l)
	}
	return CartState{lines: out}
}

func indexOf(lines []CartLine, id ProductID) int {
	return slices.IndexFunc(lines, func(l CartLine) bool { return l.ProductID == id })
}

// AddItem increments the quantity of p's line, or appends a new line with
// quantity 1 when p is not in the cart yet.
func (c CartState) AddItem(p Product) CartState {
	lines := slices.Clone(c.lines)
	if i := indexOf(lines, p.ID); i >= 0 {
		lines[i].Quantity++
		return CartState{lines: lines}
	}
	return CartState{lines: append(lines, CartLine{
		ProductID:   p.ID,
		Name:        p.Name,
		Description: p.Description,
		ImageURL:    p.ImageURL,
		UnitPrice:   p.Price,
		Quantity:    1,
	})}
}

// RemoveItem deletes id's line. The bool reports whether anything changed.
func (c CartState) RemoveItem(id ProductID) (CartState, bool) {
	i := indexOf(c.lines, id)
	if i < 0 {
		return c, false
	}
	return CartState{lines: slices.Delete(slices.Clone(c.lines), i, i+1)}, true
}

// UpdateQuantity sets id's quantity to n. n <= 0 removes the line. An id that
// is not in the cart is left alone whatever n is.
func (c CartState) UpdateQuantity(id ProductID, n int) (CartState, bool) {
	if n <= 0 {
		return c.RemoveItem(id)
	}
	i := indexOf(c.lines, id)
	if i < 0 || c.lines[i].Quantity == n {
		return c, false
	}
	lines := slices.Clone(c.lines)
	lines[i].Quantity = n
	return CartState{lines: lines}, true
}

// Clear empties the cart.
func (c CartState) Clear() (CartState, bool) {
	if len(c.lines) == 0 {
		return c, false
	}
	return CartState{}, true
}

// Contains reports whether id has a line.
func (c CartState) Contains(id ProductID) bool {
	return indexOf(c.lines, id) >= 0
}

// Line returns id's line.
func (c CartState) Line(id ProductID) (CartLine, bool) {
	if i := indexOf(c.lines, id); i >= 0 {
		return c.lines[i], true
	}
	return CartLine{}, false
}

// Lines returns a copy of the lines in insertion order. Never nil.
func (c CartState) Lines() []CartLine {
	out := make([]CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c CartState) IsEmpty() bool { return len(c.lines) == 0 }

// LineCount is the number of distinct products, shown on the navbar badge.
func (c CartState) LineCount() int { return len(c.lines) }

// ItemCount is the sum of all quantities.
func (c CartState) ItemCount() int {
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

// Subtotal is the exact sum of unit price times quantity over all lines.
// No discount, tax or shipping is applied here.
func (c CartState) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.LineTotal())
	}
	return total
}
