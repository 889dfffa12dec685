package export

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/careerhub/backend/models"
)

const (
	contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>
</Types>`

	packageRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

	documentRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>
</Relationships>`

	stylesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:docDefaults><w:rPrDefault><w:rPr><w:rFonts w:ascii="Calibri" w:hAnsi="Calibri"/><w:sz w:val="22"/></w:rPr></w:rPrDefault></w:docDefaults>
<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/><w:pPr><w:spacing w:after="80"/></w:pPr></w:style>
<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:basedOn w:val="Normal"/><w:pPr><w:spacing w:before="0" w:after="120"/></w:pPr><w:rPr><w:b/><w:sz w:val="36"/></w:rPr></w:style>
<w:style w:type="paragraph" w:styleId="Heading2"><w:name w:val="heading 2"/><w:basedOn w:val="Normal"/><w:pPr><w:spacing w:before="240" w:after="80"/><w:pBdr><w:bottom w:val="single" w:sz="4" w:space="1" w:color="999999"/></w:pBdr></w:pPr><w:rPr><w:b/><w:sz w:val="26"/></w:rPr></w:style>
</w:styles>`

	documentHead = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`
	documentTail = `<w:sectPr><w:pgSz w:w="11906" w:h="16838"/><w:pgMar w:top="1134" w:right="1134" w:bottom="1134" w:left="1134"/></w:sectPr></w:body></w:document>`
)

type run struct {
	text   string
	bold   bool
	italic bool
}

type docxBody struct {
	buf bytes.Buffer
}

func (b *docxBody) paragraph(style string, centered bool, runs ...run) {
	b.buf.WriteString("<w:p>")
	if style != "" || centered {
		b.buf.WriteString("<w:pPr>")
		if style != "" {
			fmt.Fprintf(&b.buf, `<w:pStyle w:val="%s"/>`, style)
		}
		if centered {
			b.buf.WriteString(`<w:jc w:val="center"/>`)
		}
		b.buf.WriteString("</w:pPr>")
	}
	for _, r := range runs {
		if r.text == "" {
			continue
		}
		b.buf.WriteString("<w:r>")
		if r.bold || r.italic {
			b.buf.WriteString("<w:rPr>")
			if r.bold {
				b.buf.WriteString("<w:b/>")
			}
			if r.italic {
				b.buf.WriteString("<w:i/>")
			}
			b.buf.WriteString("</w:rPr>")
		}
		b.buf.WriteString(`<w:t xml:space="preserve">`)
		xml.EscapeText(&b.buf, []byte(r.text))
		b.buf.WriteString("</w:t></w:r>")
	}
	b.buf.WriteString("</w:p>")
}

func (b *docxBody) text(s string) {
	for _, line := range strings.Split(s, "\n") {
		b.paragraph("", false, run{text: line})
	}
}

func (b *docxBody) heading(s string) {
	b.paragraph("Heading2", false, run{text: s})
}

// DOCX renders the CV as a WordprocessingML package.
func DOCX(cv *models.CV) ([]byte, error) {
	return BuildDOCX(NewDocument(cv))
}

func BuildDOCX(doc Document) ([]byte, error) {
	var body docxBody

	if doc.Personal.Name != "" {
		body.paragraph("Heading1", true, run{text: doc.Personal.Name})
	}
	if contact := doc.Personal.ContactLine(); contact != "" {
		body.paragraph("", true, run{text: contact})
	}
	if len(doc.Personal.Links) > 0 {
		parts := make([]string, 0, len(doc.Personal.Links))
		for _, l := range doc.Personal.Links {
			parts = append(parts, l.Label+": "+l.URL)
		}
		body.paragraph("", true, run{text: strings.Join(parts, " | ")})
	}

	if doc.Summary != "" {
		body.heading("Professional Summary")
		body.text(doc.Summary)
	}

	if len(doc.Experience) > 0 {
		body.heading("Work Experience")
		for _, e := range doc.Experience {
			position := e.Position
			if position == "" {
				position = "Position"
			}
			body.paragraph("", false, run{text: position, bold: true})
			if e.Company != "" {
				body.paragraph("", false, run{text: e.Company, italic: true})
			}
			if period := e.Period(); period != "" {
				body.paragraph("", false, run{text: period})
			}
			if e.Description != "" {
				body.text(e.Description)
			}
			for _, a := range e.Achievements {
				body.paragraph("", false, run{text: "• " + a})
			}
		}
	}

	if len(doc.Education) > 0 {
		body.heading("Education")
		for _, e := range doc.Education {
			degree := e.Degree
			if degree == "" {
				degree = "Degree"
			}
			body.paragraph("", false, run{text: degree, bold: true})
			if e.Institution != "" {
				body.paragraph("", false, run{text: e.Institution, italic: true})
			}
			if e.Dates != "" {
				body.paragraph("", false, run{text: e.Dates})
			}
			if e.Description != "" {
				body.text(e.Description)
			}
		}
	}

	if len(doc.Skills) > 0 {
		body.heading("Skills")
		for _, g := range doc.Skills {
			if g.Category == "" {
				body.paragraph("", false, run{text: g.Joined()})
				continue
			}
			body.paragraph("", false, run{text: g.Category + ": ", bold: true}, run{text: g.Joined()})
		}
	}

	if len(doc.Projects) > 0 {
		body.heading("Projects")
		for _, p := range doc.Projects {
			name := p.Name
			if name == "" {
				name = "Project"
			}
			body.paragraph("", false, run{text: name, bold: true})
			if p.Description != "" {
				body.text(p.Description)
			}
			if p.Technologies != "" {
				body.paragraph("", false, run{text: "Technologies: ", italic: true}, run{text: p.Technologies})
			}
			if p.URL != "" {
				body.paragraph("", false, run{text: "Link: ", italic: true}, run{text: p.URL})
			}
		}
	}

	var out bytes.Buffer
	zw := zip.NewWriter(&out)
	parts := []struct {
		name    string
		content string
	}{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", packageRelsXML},
		{"word/_rels/document.xml.rels", documentRelsXML},
		{"word/styles.xml", stylesXML},
		{"word/document.xml", documentHead + body.buf.String() + documentTail},
	}
	for _, p := range parts {
		w, err := zw.Create(p.name)
		if err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", p.name, err)
		}
		if _, err := w.Write([]byte(p.content)); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
