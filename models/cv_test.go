package models

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func raw(s string) json.RawMessage { return json.RawMessage(s) }

func TestNewCVDefaults(t *testing.T) {
	cv, err := NewCV("u1", "Backend CV", "", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, cv.Version)
	assert.Equal(t, "clean", cv.TemplateKey)
	assert.JSONEq(t, `{}`, string(cv.Sections))

	_, err = NewCV("u1", "  ", "", nil)
	assert.ErrorIs(t, err, ErrInvalidField)
	_, err = NewCV("u1", "x", "fancy", nil)
	assert.ErrorIs(t, err, ErrInvalidField)
	_, err = NewCV("u1", "x", "clean", raw(`[]`))
	assert.ErrorIs(t, err, ErrInvalidField)
}

func TestCVUpdateVersioning(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	cv, err := NewCV("u1", "Backend CV", "clean", raw(`{"summary":"old"}`))
	require.NoError(t, err)

	entry, err := cv.ApplyUpdate(map[string]json.RawMessage{
		"title":    raw(`"Platform CV"`),
		"sections": raw(`{"summary": "old"}`),
	}, now)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 2, cv.Version)
	assert.Equal(t, 2, entry.Version)
	assert.Equal(t, "Platform CV", cv.Title)
	assert.Contains(t, entry.Changes, "title")
	assert.NotContains(t, entry.Changes, "sections", "semantically equal JSON is not a change")
	assert.Equal(t, "Backend CV", entry.Changes["title"].Old)
	require.Len(t, cv.Changelog, 1)

	entry, err = cv.ApplyUpdate(map[string]json.RawMessage{"title": raw(`"Platform CV"`)}, now)
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.Equal(t, 3, cv.Version, "version advances even without changes")
	assert.Len(t, cv.Changelog, 1)
}

func TestCVUpdateRejectsInvalidInput(t *testing.T) {
	cv, err := NewCV("u1", "CV", "", nil)
	require.NoError(t, err)

	cases := []map[string]json.RawMessage{
		{"template_key": raw(`"neon"`)},
		{"sections": raw(`"text"`)},
		{"title": raw(`""`)},
		{"title": raw(`42`)},
	}
	for i, updates := range cases {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			_, err := cv.ApplyUpdate(updates, time.Now())
			assert.ErrorIs(t, err, ErrInvalidField)
			assert.Equal(t, 1, cv.Version)
		})
	}
}

func TestCVChangelogBounded(t *testing.T) {
	cv, err := NewCV("u1", "CV", "", nil)
	require.NoError(t, err)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < MaxChangelogEntries+10; i++ {
		title := fmt.Sprintf(`"CV %d"`, i)
		_, err := cv.ApplyUpdate(map[string]json.RawMessage{"title": raw(title)}, start.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
	}

	assert.Len(t, cv.Changelog, MaxChangelogEntries)
	assert.Equal(t, MaxChangelogEntries+11, cv.Version)
	assert.Equal(t, 12, cv.Changelog[0].Version, "oldest entries are evicted first")
	assert.Equal(t, cv.Version, cv.Changelog[len(cv.Changelog)-1].Version)
}
