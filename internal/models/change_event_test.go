package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangeEventJSONRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	event := ChangeEvent{
		ID:   "evt-1",
		Kind: KindQuote,
		Op:   OpUpdate,
		Row: &Quote{
			ID:         "q1",
			CustomerID: "c1",
			JobID:      "j1",
			Status:     "sent",
			TotalCents: 125000,
			UpdatedAt:  now,
		},
		UpdatedAt: now,
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded ChangeEvent
	require.NoError(t, json.Unmarshal(data, &decoded))

	require.True(t, decoded.Valid())
	quote, ok := decoded.Row.(*Quote)
	require.True(t, ok, "row decodes into the struct for its kind")
	assert.Equal(t, "q1", quote.ID)
	assert.Equal(t, int64(125000), quote.TotalCents)
	assert.Equal(t, OpUpdate, decoded.Op)
}

func TestChangeEventUnknownKindRejected(t *testing.T) {
	payload := `{"id":"evt-1","entity_kind":"widgets","operation":"create","row":{"id":"w1"}}`

	var decoded ChangeEvent
	err := json.Unmarshal([]byte(payload), &decoded)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestChangeEventWithoutRowIsInvalid(t *testing.T) {
	payload := `{"id":"evt-1","entity_kind":"customers","operation":"create"}`

	var decoded ChangeEvent
	require.NoError(t, json.Unmarshal([]byte(payload), &decoded))
	assert.False(t, decoded.Valid())
}

func TestMarkDeletedSetsBothTimestamps(t *testing.T) {
	now := time.Now().UTC()
	c := &Customer{ID: "c1", UpdatedAt: now.Add(-time.Hour)}

	c.MarkDeleted(now)

	require.NotNil(t, c.Tombstone())
	assert.True(t, c.UpdatedAt.Equal(now), "delete counts as a modification for conflict resolution")
}

func TestCloneIsDeep(t *testing.T) {
	now := time.Now().UTC()
	c := &Customer{ID: "c1", DeletedAt: &now}

	clone := c.Clone().(*Customer)
	later := now.Add(time.Minute)
	*clone.DeletedAt = later

	assert.True(t, c.DeletedAt.Equal(now), "clone must not share the tombstone pointer")
}
