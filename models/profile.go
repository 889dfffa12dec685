package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// MaxHistoryEntries bounds Profile.HistoryLog.
const MaxHistoryEntries = 100

type HistoryEntry struct {
	Field    string    `json:"field"`
	OldValue any       `json:"old_value"`
	NewValue any       `json:"new_value"`
	TS       time.Time `json:"ts"`
}

type Profile struct {
	ID          string                            `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID      string                            `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	Links       datatypes.JSON                    `gorm:"type:jsonb;not null;default:'{}'" json:"links"`
	Education   datatypes.JSON                    `gorm:"type:jsonb;not null;default:'[]'" json:"education"`
	Experience  datatypes.JSON                    `gorm:"type:jsonb;not null;default:'[]'" json:"experience"`
	Skills      datatypes.JSON                    `gorm:"type:jsonb;not null;default:'[]'" json:"skills"`
	Projects    datatypes.JSON                    `gorm:"type:jsonb;not null;default:'[]'" json:"projects"`
	Summary     string                            `gorm:"type:text;not null;default:''" json:"summary"`
	Preferences datatypes.JSON                    `gorm:"type:jsonb;not null;default:'{}'" json:"preferences"`
	HistoryLog  datatypes.JSONSlice[HistoryEntry] `gorm:"type:jsonb;not null;default:'[]'" json:"history_log"`
	CreatedAt   time.Time                         `json:"created_at"`
	UpdatedAt   time.Time                         `json:"updated_at"`
}

var profileFields = []struct {
	name string
	kind jsonKind
}{
	{"links", kindObject},
	{"education", kindArray},
	{"experience", kindArray},
	{"skills", kindArray},
	{"projects", kindArray},
	{"summary", kindString},
	{"preferences", kindObject},
}

// NewProfile returns an empty profile for a user.
func NewProfile(userID string) *Profile {
	return &Profile{
		UserID:      userID,
		Links:       datatypes.JSON(`{}`),
		Education:   datatypes.JSON(`[]`),
		Experience:  datatypes.JSON(`[]`),
		Skills:      datatypes.JSON(`[]`),
		Projects:    datatypes.JSON(`[]`),
		Preferences: datatypes.JSON(`{}`),
		HistoryLog:  datatypes.JSONSlice[HistoryEntry]{},
	}
}

func (p *Profile) jsonField(name string) *datatypes.JSON {
	switch name {
	case "links":
		return &p.Links
	case "education":
		return &p.Education
	case "experience":
		return &p.Experience
	case "skills":
		return &p.Skills
	case "projects":
		return &p.Projects
	case "preferences":
		return &p.Preferences
	}
	return nil
}

func (p *Profile) value(name string) any {
	if name == "summary" {
		return p.Summary
	}
	return decodeValue(json.RawMessage(*p.jsonField(name)))
}

// ApplyUpdate merges a partial update into the profile. Unknown keys are ignored.
// Every submitted field whose value differs from the stored one is appended to the
// history log, which keeps the newest MaxHistoryEntries records.
func (p *Profile) ApplyUpdate(updates map[string]json.RawMessage, now time.Time) ([]HistoryEntry, error) {
	for _, f := range profileFields {
		raw, ok := updates[f.name]
		if !ok {
			continue
		}
		if err := checkKind(f.name, f.kind, raw); err != nil {
			return nil, err
		}
	}

	var changes []HistoryEntry
	for _, f := range profileFields {
		raw, ok := updates[f.name]
		if !ok {
			continue
		}
		oldValue := p.value(f.name)
		newValue := decodeValue(raw)
		if !sameValue(oldValue, newValue) {
			changes = append(changes, HistoryEntry{
				Field:    f.name,
				OldValue: oldValue,
				NewValue: newValue,
				TS:       now,
			})
		}

		if f.kind == kindString {
			if err := json.Unmarshal(raw, &p.Summary); err != nil {
				return nil, err
			}
			continue
		}
		*p.jsonField(f.name) = datatypes.JSON(append([]byte(nil), raw...))
	}

	if len(changes) > 0 {
		p.HistoryLog = appendBounded(p.HistoryLog, changes, MaxHistoryEntries)
	}
	return changes, nil
}
