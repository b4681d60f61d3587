package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

var ErrUnknownKind = errors.New("unknown entity kind")

// ChangeEvent is a single local mutation. One is appended to the outbox per
// add/update/delete, in causal (insertion) order, and carries a full snapshot
// of the entity at mutation time.
type ChangeEvent struct {
	ID        string     `json:"id"`
	Kind      EntityKind `json:"entity_kind"`
	Op        Operation  `json:"operation"`
	Row       EntityRow  `json:"-"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Valid reports whether the event carries enough structure to apply: a row
// snapshot with a non-empty id.
func (e ChangeEvent) Valid() bool {
	return e.Row != nil && e.Row.EntityID() != ""
}

type changeEventWire struct {
	ID        string          `json:"id"`
	Kind      EntityKind      `json:"entity_kind"`
	Op        Operation       `json:"operation"`
	Row       json.RawMessage `json:"row,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
	DeletedAt *time.Time      `json:"deleted_at,omitempty"`
}

func (e ChangeEvent) MarshalJSON() ([]byte, error) {
	wire := changeEventWire{
		ID:        e.ID,
		Kind:      e.Kind,
		Op:        e.Op,
		UpdatedAt: e.UpdatedAt,
		DeletedAt: e.DeletedAt,
	}
	if e.Row != nil {
		row, err := json.Marshal(e.Row)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s row: %w", e.Kind, err)
		}
		wire.Row = row
	}
	return json.Marshal(wire)
}

func (e *ChangeEvent) UnmarshalJSON(data []byte) error {
	var wire changeEventWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	e.ID = wire.ID
	e.Kind = wire.Kind
	e.Op = wire.Op
	e.UpdatedAt = wire.UpdatedAt
	e.DeletedAt = wire.DeletedAt
	e.Row = nil
	if len(wire.Row) > 0 && string(wire.Row) != "null" {
		row, err := DecodeRow(wire.Kind, wire.Row)
		if err != nil {
			return err
		}
		e.Row = row
	}
	return nil
}

// NewRow returns an empty entity struct for the given kind.
func NewRow(kind EntityKind) (EntityRow, error) {
	switch kind {
	case KindCustomer:
		return &Customer{}, nil
	case KindPart:
		return &Part{}, nil
	case KindLaborItem:
		return &LaborItem{}, nil
	case KindJob:
		return &Job{}, nil
	case KindQuote:
		return &Quote{}, nil
	case KindInvoice:
		return &Invoice{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// DecodeRow unmarshals a row snapshot into the entity struct for its kind.
func DecodeRow(kind EntityKind, data []byte) (EntityRow, error) {
	row, err := NewRow(kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, row); err != nil {
		return nil, fmt.Errorf("failed to decode %s row: %w", kind, err)
	}
	return row, nil
}
