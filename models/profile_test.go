package models

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileApplyUpdate(t *testing.T) {
	p := NewProfile("u1")
	now := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)

	changes, err := p.ApplyUpdate(map[string]json.RawMessage{
		"summary":  raw(`"Backend engineer"`),
		"skills":   raw(`["Go","SQL"]`),
		"links":    raw(`{}`),
		"unknown":  raw(`123`),
	}, now)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, "skills", changes[0].Field)
	assert.Equal(t, "summary", changes[1].Field)
	assert.Equal(t, "", changes[1].OldValue)
	assert.Equal(t, "Backend engineer", changes[1].NewValue)
	assert.Equal(t, "Backend engineer", p.Summary)
	assert.JSONEq(t, `["Go","SQL"]`, string(p.Skills))
	assert.Len(t, p.HistoryLog, 2)

	changes, err = p.ApplyUpdate(map[string]json.RawMessage{"skills": raw(`[ "Go", "SQL" ]`)}, now)
	require.NoError(t, err)
	assert.Empty(t, changes)
	assert.Len(t, p.HistoryLog, 2)
}

func TestProfileApplyUpdateValidation(t *testing.T) {
	p := NewProfile("u1")
	tests := map[string]json.RawMessage{
		"links":      raw(`[]`),
		"education":  raw(`{}`),
		"summary":    raw(`["x"]`),
		"experience": raw(`null`),
		"projects":   raw(`{bad`),
	}
	for field, value := range tests {
		t.Run(field, func(t *testing.T) {
			_, err := p.ApplyUpdate(map[string]json.RawMessage{field: value}, time.Now())
			assert.ErrorIs(t, err, ErrInvalidField)
		})
	}
	assert.Empty(t, p.HistoryLog)
}

func TestProfileHistoryBounded(t *testing.T) {
	p := NewProfile("u1")
	for i := 0; i < MaxHistoryEntries+25; i++ {
		_, err := p.ApplyUpdate(map[string]json.RawMessage{
			"summary": raw(fmt.Sprintf(`"v%d"`, i)),
		}, time.Now())
		require.NoError(t, err)
	}
	require.Len(t, p.HistoryLog, MaxHistoryEntries)
	assert.Equal(t, "v25", p.HistoryLog[0].NewValue)
	assert.Equal(t, fmt.Sprintf("v%d", MaxHistoryEntries+24), p.HistoryLog[MaxHistoryEntries-1].NewValue)
}
