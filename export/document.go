// Package export renders CVs to HTML, PDF and DOCX and extracts text from uploaded
// resumes.
package export

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/careerhub/backend/models"
)

// Document is the normalised view of a CV's sections shared by every output format.
type Document struct {
	Title      string
	Template   string
	Personal   Personal
	Summary    string
	Experience []Experience
	Education  []Education
	Skills     []SkillGroup
	Projects   []Project
}

type Personal struct {
	Name     string
	Email    string
	Phone    string
	Location string
	Links    []Link
}

// ContactLine joins email, phone and location with " | ".
func (p Personal) ContactLine() string {
	return joinNonEmpty(" | ", p.Email, p.Phone, p.Location)
}

type Link struct {
	Label string
	URL   string
}

type Experience struct {
	Position     string
	Company      string
	Location     string
	Start        string
	End          string
	Description  string
	Achievements []string
}

// Period renders "start - end", using Present for an open end date.
func (e Experience) Period() string {
	if e.Start == "" {
		return ""
	}
	end := e.End
	if end == "" {
		end = "Present"
	}
	return e.Start + " - " + end
}

type Education struct {
	Degree      string
	Institution string
	Dates       string
	Description string
}

// SkillGroup is a category of skills. Plain string lists produce one group with an
// empty category.
type SkillGroup struct {
	Category string
	Names    []string
}

func (g SkillGroup) Joined() string { return strings.Join(g.Names, ", ") }

type Project struct {
	Name         string
	Description  string
	Technologies string
	URL          string
}

// NewDocument normalises a CV. Alternate keys written by older editors (title for
// position, tech for technologies, link for url, year for dates) are accepted.
func NewDocument(cv *models.CV) Document {
	sections := cv.SectionsMap()
	doc := Document{
		Title:    cv.Title,
		Template: cv.TemplateKey,
		Summary:  str(sections, "summary"),
	}

	personal := obj(sections["personal"])
	doc.Personal = Personal{
		Name:     str(personal, "name"),
		Email:    str(personal, "email"),
		Phone:    str(personal, "phone"),
		Location: str(personal, "location"),
	}
	links := obj(personal["links"])
	for _, l := range []struct{ key, label string }{
		{"linkedin", "LinkedIn"},
		{"github", "GitHub"},
		{"portfolio", "Portfolio"},
		{"website", "Website"},
	} {
		url := str(links, l.key)
		if url == "" {
			url = str(personal, l.key)
		}
		if url != "" {
			doc.Personal.Links = append(doc.Personal.Links, Link{Label: l.label, URL: url})
		}
	}

	for _, item := range list(sections["experience"]) {
		e := obj(item)
		doc.Experience = append(doc.Experience, Experience{
			Position:     str(e, "position", "title"),
			Company:      str(e, "company"),
			Location:     str(e, "location"),
			Start:        str(e, "start_date", "start"),
			End:          str(e, "end_date", "end"),
			Description:  str(e, "description"),
			Achievements: strs(e["achievements"]),
		})
	}

	for _, item := range list(sections["education"]) {
		e := obj(item)
		var dates string
		if start, end := str(e, "start_date"), str(e, "end_date"); start != "" && end != "" {
			dates = start + " - " + end
		} else {
			dates = str(e, "year", "start_date")
		}
		doc.Education = append(doc.Education, Education{
			Degree:      str(e, "degree"),
			Institution: str(e, "institution"),
			Dates:       dates,
			Description: str(e, "description"),
		})
	}

	doc.Skills = skillGroups(sections["skills"])

	for _, item := range list(sections["projects"]) {
		p := obj(item)
		tech := strings.Join(strs(p["technologies"]), ", ")
		if tech == "" {
			tech = str(p, "technologies", "tech")
		}
		doc.Projects = append(doc.Projects, Project{
			Name:         str(p, "name", "title"),
			Description:  str(p, "description"),
			Technologies: tech,
			URL:          str(p, "url", "link"),
		})
	}
	return doc
}

func skillGroups(v any) []SkillGroup {
	var plain []string
	var groups []SkillGroup
	index := map[string]int{}
	for _, item := range list(v) {
		switch s := item.(type) {
		case string:
			if s != "" {
				plain = append(plain, s)
			}
		case map[string]any:
			name := str(s, "name")
			if name == "" {
				continue
			}
			category := str(s, "category")
			if category == "" {
				category = "General"
			}
			i, ok := index[category]
			if !ok {
				i = len(groups)
				index[category] = i
				groups = append(groups, SkillGroup{Category: category})
			}
			groups[i].Names = append(groups[i].Names, name)
		}
	}
	if len(plain) > 0 {
		groups = append([]SkillGroup{{Names: plain}}, groups...)
	}
	return groups
}

func obj(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func list(v any) []any {
	if l, ok := v.([]any); ok {
		return l
	}
	return nil
}

// str returns the first non-empty value among keys, formatting numbers as text.
func str(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return fmt.Sprintf("%g", v)
		}
	}
	return ""
}

func strs(v any) []string {
	var out []string
	for _, item := range list(v) {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

// Filename builds "<Title>_YYYYMMDD.<ext>" with spaces turned into underscores. Letters
// and digits of any script are kept along with '_' and '-'; everything else is dropped.
func Filename(title, ext string, now time.Time) string {
	base := strings.Map(func(r rune) rune {
		switch {
		case r == ' ':
			return '_'
		case r == '_' || r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r):
			return r
		default:
			return -1
		}
	}, strings.TrimSpace(title))
	if base == "" {
		base = "CV"
	}
	return fmt.Sprintf("%s_%s.%s", base, now.Format("20060102"), ext)
}

// ContentDisposition is the attachment header for a file called name. A name outside
// ASCII is sent as an RFC 5987 filename* with an ASCII filename beside it for older
// clients.
func ContentDisposition(name string) string {
	ascii := strings.Map(func(r rune) rune {
		if r >= utf8.RuneSelf {
			return -1
		}
		return r
	}, name)
	if ascii == name {
		return fmt.Sprintf(`attachment; filename="%s"`, name)
	}
	if strings.HasPrefix(ascii, "_") {
		ascii = "CV" + ascii
	}
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, ascii, url.PathEscape(name))
}
