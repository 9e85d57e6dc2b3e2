package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// ProductID is an opaque catalog identifier. The catalog API returns numeric
// ids, older persisted carts may carry strings; both decode to the same value.
type ProductID string

func (id *ProductID) UnmarshalJSON(data []byte) error {
	s, err := decodeOpaqueID(data)
	if err != nil {
		return fmt.Errorf("product id: %w", err)
	}
	*id = ProductID(s)
	return nil
}

func (id ProductID) String() string { return string(id) }

// decodeOpaqueID accepts a JSON string, a JSON number or null.
func decodeOpaqueID(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		return "", nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return s, nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return "", fmt.Errorf("expected string or number, got %s", data)
		}
		return n.String(), nil
	}
}

// Product is a catalog record as served by the storefront API.
type Product struct {
	ID          ProductID       `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url"`
	Category    string          `json:"category"`
	InStock     bool            `json:"in_stock"`
}

// UnmarshalJSON treats a missing in_stock as available; the catalog only
// sends the flag for products it has explicitly marked.
func (p *Product) UnmarshalJSON(data []byte) error {
	type alias Product
	aux := struct {
		*alias
		InStock *bool `json:"in_stock"`
	}{alias: (*alias)(p)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.InStock = aux.InStock == nil || *aux.InStock
	return nil
}
