package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/careerhub/backend/models"
	"github.com/google/uuid"
)

const (
	demoEmail    = "demo@example.com"
	demoPassword = "password"
)

var demoProfile = map[string]json.RawMessage{
	"summary": json.RawMessage(`"Frontend engineer with five years of experience building accessible React applications."`),
	"links":   json.RawMessage(`{"github": "https://github.com/demo", "linkedin": "https://linkedin.com/in/demo"}`),
	"experience": json.RawMessage(`[
		{"position": "Frontend Engineer", "company": "Acme", "start_date": "2021-03", "end_date": "", "description": "Led the design system migration."},
		{"position": "Web Developer", "company": "Initech", "start_date": "2019-01", "end_date": "2021-02", "description": "Built internal dashboards."}
	]`),
	"education": json.RawMessage(`[{"degree": "BSc Computer Science", "institution": "State University", "year": "2018"}]`),
	"skills": json.RawMessage(`[
		{"name": "TypeScript", "category": "Technical"},
		{"name": "React", "category": "Technical"},
		{"name": "Mentoring", "category": "Soft"}
	]`),
	"projects": json.RawMessage(`[{"name": "Portfolio", "description": "Personal site", "technologies": ["Astro"], "url": "https://demo.dev"}]`),
}

// DatabaseSeeder creates the demo account used in development.
type DatabaseSeeder struct {
	store Store
}

func NewDatabaseSeeder(store Store) *DatabaseSeeder {
	return &DatabaseSeeder{store: store}
}

// SeedDatabase is idempotent: an existing demo user means seeding already ran.
func (s *DatabaseSeeder) SeedDatabase(ctx context.Context) error {
	existing, err := s.store.GetUserByEmail(ctx, demoEmail)
	if err != nil {
		return fmt.Errorf("error checking user %s: %w", demoEmail, err)
	}
	if existing != nil {
		slog.Info("Database seeding already completed, skipping")
		return nil
	}

	hashed, err := HashPassword(demoPassword)
	if err != nil {
		return err
	}
	user := &models.User{
		ID:       uuid.New().String(),
		Email:    demoEmail,
		Password: hashed,
		FullName: "Demo User",
		Locale:   "en",
		Role:     models.RoleUser,
		IsActive: true,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("failed to create user %s: %w", demoEmail, err)
	}
	slog.Info("Created user", "email", user.Email)

	_, err = s.store.UpdateProfile(ctx, user.ID, func(p *models.Profile) error {
		_, err := p.ApplyUpdate(demoProfile, time.Now())
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to build demo profile: %w", err)
	}

	sections, err := json.Marshal(map[string]json.RawMessage{
		"personal":   json.RawMessage(`{"name": "Demo User", "email": "demo@example.com", "location": "Remote"}`),
		"summary":    demoProfile["summary"],
		"experience": demoProfile["experience"],
		"education":  demoProfile["education"],
		"skills":     demoProfile["skills"],
		"projects":   demoProfile["projects"],
	})
	if err != nil {
		return err
	}
	cv, err := models.NewCV(user.ID, "Frontend CV", models.DefaultTemplateKey, sections)
	if err != nil {
		return err
	}
	cv.ID = uuid.New().String()
	if err := s.store.CreateCV(ctx, cv); err != nil {
		return fmt.Errorf("failed to create demo cv: %w", err)
	}

	slog.Info("Database seeding completed successfully", "user_id", user.ID)
	return nil
}
