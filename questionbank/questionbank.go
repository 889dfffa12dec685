// Package questionbank holds the built-in interview topics and trainer quiz modules.
package questionbank

import (
	"embed"
	"fmt"
	"math/rand/v2"

	"github.com/careerhub/backend/models"
	"go.yaml.in/yaml/v4"
)

//go:embed interview.yaml trainer.yaml
var files embed.FS

type Topic struct {
	Key       string            `yaml:"key" json:"key"`
	Name      string            `yaml:"name" json:"name"`
	Questions []models.Question `yaml:"questions" json:"-"`
}

type Module struct {
	Key       string                `yaml:"key" json:"key"`
	Name      string                `yaml:"name" json:"name"`
	Questions []models.QuizQuestion `yaml:"questions" json:"-"`
}

type interviewFile struct {
	Default    string  `yaml:"default"`
	PerSession int     `yaml:"per_session"`
	Topics     []Topic `yaml:"topics"`
}

type trainerFile struct {
	Default string   `yaml:"default"`
	Modules []Module `yaml:"modules"`
}

// Bank is read-only after Load and safe for concurrent use.
type Bank struct {
	defaultTopic  string
	perSession    int
	topics        []Topic
	defaultModule string
	modules       []Module
}

// Load parses the embedded banks.
func Load() (*Bank, error) {
	var iv interviewFile
	if err := decode("interview.yaml", &iv); err != nil {
		return nil, err
	}
	var tr trainerFile
	if err := decode("trainer.yaml", &tr); err != nil {
		return nil, err
	}
	b := &Bank{
		defaultTopic:  iv.Default,
		perSession:    iv.PerSession,
		topics:        iv.Topics,
		defaultModule: tr.Default,
		modules:       tr.Modules,
	}
	if _, ok := b.Topic(b.defaultTopic); !ok {
		return nil, fmt.Errorf("default interview topic %q not found", b.defaultTopic)
	}
	if _, ok := b.Module(b.defaultModule); !ok {
		return nil, fmt.Errorf("default trainer module %q not found", b.defaultModule)
	}
	if b.perSession <= 0 {
		b.perSession = 5
	}
	return b, nil
}

func decode(name string, v any) error {
	data, err := files.ReadFile(name)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return nil
}

func (b *Bank) DefaultTopic() string { return b.defaultTopic }

func (b *Bank) Topics() []Topic { return b.topics }

func (b *Bank) Topic(key string) (Topic, bool) {
	for _, t := range b.topics {
		if t.Key == key {
			return t, true
		}
	}
	return Topic{}, false
}

// InterviewQuestions returns the first questions of a topic, falling back to the
// default topic when the key is unknown. The resolved topic key is returned too.
func (b *Bank) InterviewQuestions(key string) (string, []models.Question) {
	t, ok := b.Topic(key)
	if !ok {
		t, _ = b.Topic(b.defaultTopic)
	}
	n := min(b.perSession, len(t.Questions))
	out := make([]models.Question, n)
	copy(out, t.Questions[:n])
	return t.Key, out
}

func (b *Bank) DefaultModule() string { return b.defaultModule }

func (b *Bank) Modules() []Module { return b.modules }

func (b *Bank) Module(key string) (Module, bool) {
	for _, m := range b.modules {
		if m.Key == key {
			return m, true
		}
	}
	return Module{}, false
}

// ModuleOrDefault resolves a module key, falling back to the default module.
func (b *Bank) ModuleOrDefault(key string) Module {
	if m, ok := b.Module(key); ok {
		return m
	}
	m, _ := b.Module(b.defaultModule)
	return m
}

// Sample returns n questions of a module in random order. n <= 0 or larger than the
// module returns every question.
func (b *Bank) Sample(key string, n int, r *rand.Rand) ([]models.QuizQuestion, bool) {
	m, ok := b.Module(key)
	if !ok {
		return nil, false
	}
	out := make([]models.QuizQuestion, len(m.Questions))
	copy(out, m.Questions)
	r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out, true
}
