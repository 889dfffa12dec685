package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

type CVSkills struct {
	Technical []string `json:"technical"`
	Soft      []string `json:"soft"`
	Tools     []string `json:"tools"`
}

// CVContent is a generated draft of CV sections.
type CVContent struct {
	Summary    string           `json:"summary"`
	Experience []map[string]any `json:"experience"`
	Skills     CVSkills         `json:"skills"`
	Projects   []map[string]any `json:"projects"`
}

const cvSystemPrompt = `You are an expert resume writer. Using only facts from the candidate profile,
write CV content tailored to the job description. Reply with one JSON object:
{"summary": string,
 "experience": [{"title": string, "company": string, "start_date": string, "end_date": string, "description": string}],
 "skills": {"technical": [string], "soft": [string], "tools": [string]},
 "projects": [{"name": string, "description": string, "technologies": [string]}]}`

// GenerateCV drafts CV sections from a profile document and a job description.
func (a *Assistant) GenerateCV(ctx context.Context, profile map[string]any, jobDescription string) (*CVContent, error) {
	data, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return nil, err
	}
	prompt := fmt.Sprintf("Candidate profile:\n%s\n\nJob description:\n%s", data, jobDescription)
	if strings.TrimSpace(jobDescription) == "" {
		prompt = fmt.Sprintf("Candidate profile:\n%s\n\nNo job description given; write a general-purpose CV.", data)
	}

	reply, err := a.ask(ctx, cvSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}
	var out CVContent
	if err := ExtractJSON(reply, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

var sectionPrompts = map[string]string{
	"summary":    "Rewrite this professional summary in three to four confident sentences. Keep every fact.",
	"experience": "Rewrite these work experience descriptions as concise achievement-focused bullet points using strong action verbs. Do not invent metrics.",
	"skills":     "Organise these skills into clear groups and remove duplicates.",
	"projects":   "Rewrite these project descriptions to highlight the problem, the approach and the outcome.",
}

// EnhanceSection polishes one CV section. Callers keep the original content on error.
func (a *Assistant) EnhanceSection(ctx context.Context, section, content, roleContext string) (string, error) {
	instruction, ok := sectionPrompts[section]
	if !ok {
		instruction = "Improve the wording of this CV section while keeping every fact."
	}
	system := "You are an expert resume editor. Reply with the improved text only, no preamble."
	prompt := fmt.Sprintf("%s\n\nSection (%s):\n%s", instruction, section, content)
	if strings.TrimSpace(roleContext) != "" {
		prompt += "\n\nTarget role context:\n" + roleContext
	}

	reply, err := a.ask(ctx, system, prompt)
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("empty enhancement for section %s", section)
	}
	return reply, nil
}
