package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// MaxChangelogEntries bounds CV.Changelog.
const MaxChangelogEntries = 50

const DefaultTemplateKey = "clean"

// TemplateKeys lists the CV layouts the exporter knows how to render.
var TemplateKeys = []string{"clean", "two-column", "modern", "professional"}

func ValidTemplateKey(key string) bool {
	for _, k := range TemplateKeys {
		if k == key {
			return true
		}
	}
	return false
}

type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

type ChangelogEntry struct {
	Version int                    `json:"version"`
	TS      time.Time              `json:"ts"`
	Changes map[string]FieldChange `json:"changes"`
}

type CV struct {
	ID             string                              `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID         string                              `gorm:"type:uuid;not null;index" json:"user_id"`
	Title          string                              `gorm:"size:255;not null" json:"title"`
	TemplateKey    string                              `gorm:"size:50;not null;default:'clean'" json:"template_key"`
	Sections       datatypes.JSON                      `gorm:"type:jsonb;not null;default:'{}'" json:"sections"`
	RenderedPDFURL string                              `gorm:"size:500" json:"rendered_pdf_url"`
	Version        int                                 `gorm:"not null;default:1" json:"version"`
	Changelog      datatypes.JSONSlice[ChangelogEntry] `gorm:"type:jsonb;not null;default:'[]'" json:"changelog"`
	CreatedAt      time.Time                           `json:"created_at"`
	UpdatedAt      time.Time                           `json:"updated_at"`
}

// NewCV validates the creation input and returns a version 1 CV.
func NewCV(userID, title, templateKey string, sections json.RawMessage) (*CV, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidField)
	}
	if templateKey == "" {
		templateKey = DefaultTemplateKey
	}
	if !ValidTemplateKey(templateKey) {
		return nil, fmt.Errorf("%w: unknown template_key %q", ErrInvalidField, templateKey)
	}
	if len(sections) == 0 {
		sections = json.RawMessage(`{}`)
	}
	if err := checkKind("sections", kindObject, sections); err != nil {
		return nil, err
	}
	return &CV{
		UserID:      userID,
		Title:       title,
		TemplateKey: templateKey,
		Sections:    datatypes.JSON(sections),
		Version:     1,
		Changelog:   datatypes.JSONSlice[ChangelogEntry]{},
	}, nil
}

// SectionsMap decodes the sections document. An empty document yields an empty map.
func (c *CV) SectionsMap() map[string]any {
	out := map[string]any{}
	if len(c.Sections) == 0 {
		return out
	}
	_ = json.Unmarshal(c.Sections, &out)
	return out
}

func (c *CV) value(field string) any {
	switch field {
	case "title":
		return c.Title
	case "template_key":
		return c.TemplateKey
	case "sections":
		return decodeValue(json.RawMessage(c.Sections))
	}
	return nil
}

// ApplyUpdate merges a partial update. The version always advances by one; a changelog
// entry is recorded only when a submitted field differs from its stored value.
func (c *CV) ApplyUpdate(updates map[string]json.RawMessage, now time.Time) (*ChangelogEntry, error) {
	var title, templateKey string
	if raw, ok := updates["title"]; ok {
		if err := checkKind("title", kindString, raw); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(raw, &title)
		if strings.TrimSpace(title) == "" {
			return nil, fmt.Errorf("%w: title may not be blank", ErrInvalidField)
		}
	}
	if raw, ok := updates["template_key"]; ok {
		if err := checkKind("template_key", kindString, raw); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(raw, &templateKey)
		if !ValidTemplateKey(templateKey) {
			return nil, fmt.Errorf("%w: unknown template_key %q", ErrInvalidField, templateKey)
		}
	}
	if raw, ok := updates["sections"]; ok {
		if err := checkKind("sections", kindObject, raw); err != nil {
			return nil, err
		}
	}

	c.Version++
	entry := &ChangelogEntry{Version: c.Version, TS: now, Changes: map[string]FieldChange{}}
	for _, field := range []string{"title", "template_key", "sections"} {
		raw, ok := updates[field]
		if !ok {
			continue
		}
		oldValue := c.value(field)
		newValue := decodeValue(raw)
		if !sameValue(oldValue, newValue) {
			entry.Changes[field] = FieldChange{Old: oldValue, New: newValue}
		}
		switch field {
		case "title":
			c.Title = title
		case "template_key":
			c.TemplateKey = templateKey
		case "sections":
			c.Sections = datatypes.JSON(append([]byte(nil), raw...))
		}
	}

	if len(entry.Changes) == 0 {
		return nil, nil
	}
	c.Changelog = appendBounded(c.Changelog, []ChangelogEntry{*entry}, MaxChangelogEntries)
	return entry, nil
}
