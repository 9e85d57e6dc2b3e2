package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is the read model handed to cart consumers.
type Snapshot struct {
	SessionID string          `json:"session_id"`
	Lines     []CartLine      `json:"lines"`
	LineCount int             `json:"line_count"`
	ItemCount int             `json:"item_count"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewSnapshot derives a snapshot from state.
func NewSnapshot(sessionID string, state CartState, updatedAt time.Time) Snapshot {
	return Snapshot{
		SessionID: sessionID,
		Lines:     state.Lines(),
		LineCount: state.LineCount(),
		ItemCount: state.ItemCount(),
		Subtotal:  state.Subtotal(),
		UpdatedAt: updatedAt,
	}
}

// MarshalJSON renders money with two decimals ("20.00").
func (s Snapshot) MarshalJSON() ([]byte, error) {
	type alias Snapshot
	return json.Marshal(struct {
		alias
		Subtotal string `json:"subtotal"`
	}{alias: alias(s), Subtotal: s.Subtotal.StringFixed(2)})
}

// SnapshotVersion is the envelope version written by EncodeSnapshot.
const SnapshotVersion = 1

var (
	// ErrCorruptSnapshot is returned for payloads that are not a snapshot at all.
	ErrCorruptSnapshot = errors.New("corrupt cart snapshot")
	// ErrSnapshotVersion is returned for envelopes written by a newer release.
	ErrSnapshotVersion = errors.New("unsupported cart snapshot version")
)

// storedLine uses the field names of the original browser-side cart, so the
// legacy bare-array layout decodes into the same type.
type storedLine struct {
	ID          ProductID       `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	ImageURL    string          `json:"image_url,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
}

type envelope struct {
	Version   int          `json:"version"`
	Lines     []storedLine `json:"lines"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// EncodeSnapshot serializes state into the versioned persistence envelope.
func EncodeSnapshot(state CartState, updatedAt time.Time) ([]byte, error) {
	env := envelope{
		Version:   SnapshotVersion,
		Lines:     make([]storedLine, 0, state.LineCount()),
		UpdatedAt: updatedAt.UTC(),
	}
	for _, l := range state.lines {
		env.Lines = append(env.Lines, storedLine{
			ID:          l.ProductID,
			Name:        l.Name,
			Description: l.Description,
			ImageURL:    l.ImageURL,
			Price:       l.UnitPrice,
			Quantity:    l.Quantity,
		})
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal cart snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses a persisted snapshot. Both the versioned envelope and
// the legacy unversioned array of product records are accepted. Lines without
// an id, with quantity < 1 or with a negative price are dropped; a repeated id
// keeps its first line. The zero time is returned when the payload has none.
func DecodeSnapshot(data []byte) (CartState, time.Time, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return CartState{}, time.Time{}, ErrCorruptSnapshot
	}

	var (
		lines     []storedLine
		updatedAt time.Time
	)
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &lines); err != nil {
			return CartState{}, time.Time{}, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
		}
	case '{':
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return CartState{}, time.Time{}, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
		}
		if env.Version < 1 {
			return CartState{}, time.Time{}, fmt.Errorf("%w: missing version", ErrCorruptSnapshot)
		}
		if env.Version > SnapshotVersion {
			return CartState{}, time.Time{}, fmt.Errorf("%w: %d", ErrSnapshotVersion, env.Version)
		}
		lines, updatedAt = env.Lines, env.UpdatedAt
	default:
		return CartState{}, time.Time{}, fmt.Errorf("%w: unexpected leading byte %q", ErrCorruptSnapshot, data[0])
	}

	out := make([]CartLine, 0, len(lines))
	for _, l := range lines {
		if l.ID == "" || l.Price.IsNegative() {
			continue
		}
		out = append(out, CartLine{
			ProductID:   l.ID,
			Name:        l.Name,
			Description: l.Description,
			ImageURL:    l.ImageURL,
			UnitPrice:   l.Price,
			Quantity:    l.Quantity,
		})
	}
	return NewCartState(out), updatedAt, nil
}
