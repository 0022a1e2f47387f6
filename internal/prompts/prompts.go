// Package prompts renders the instruction text handed to an agent run.
package prompts

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/nibzard/baton/internal/tracker"
)

// DefaultTemplateName names the built-in template in error messages.
const DefaultTemplateName = "agent.tmpl"

//go:embed agent.tmpl
var defaultTemplate string

// DefaultTemplate returns the built-in prompt template.
func DefaultTemplate() string {
	return defaultTemplate
}

// Data holds prompt template variables.
type Data struct {
	Agent        string
	ProjectName  string
	Repo         string
	RepoDir      string
	TrackerIssue int
	SkillsDir    string
	EveryonePath string
	RolePath     string
	ActiveLabel  string
	NextLabel    string
	Now          string
}

// NewData builds prompt data for one agent run. Role file paths are derived
// from skillsDir as <skillsDir>/everyone.md and <skillsDir>/<agent>.md.
func NewData(agent, projectName, repo, repoDir string, issue int, skillsDir string, now time.Time) Data {
	return Data{
		Agent:        agent,
		ProjectName:  projectName,
		Repo:         repo,
		RepoDir:      repoDir,
		TrackerIssue: issue,
		SkillsDir:    skillsDir,
		EveryonePath: filepath.Join(skillsDir, "everyone.md"),
		RolePath:     filepath.Join(skillsDir, agent+".md"),
		ActiveLabel:  tracker.ActiveLabel(agent),
		NextLabel:    tracker.NextLabel(agent),
		Now:          now.UTC().Format(time.RFC3339),
	}
}

// Renderer renders templates with strict missing-key behavior.
type Renderer struct {
	name string
	tmpl *template.Template
}

// NewRenderer parses the template at path, or the built-in one when path is
// empty.
func NewRenderer(path string) (*Renderer, error) {
	name, raw := DefaultTemplateName, defaultTemplate
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read prompt %q: %w", path, err)
		}
		name, raw = filepath.Base(path), string(data)
	}
	tmpl, err := template.New(name).Option("missingkey=error").Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse prompt %q: %w", name, err)
	}
	return &Renderer{name: name, tmpl: tmpl}, nil
}

// Name returns the template name.
func (r *Renderer) Name() string {
	return r.name
}

// Render executes the template for one agent.
func (r *Renderer) Render(data Data) (string, error) {
	if r == nil || r.tmpl == nil {
		return "", errors.New("prompt renderer is not initialized")
	}
	if err := validateRequired(data); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt %q: %w", r.name, err)
	}
	return buf.String(), nil
}

func validateRequired(data Data) error {
	switch {
	case data.Agent == "":
		return errors.New("prompt requires Agent")
	case data.RepoDir == "":
		return errors.New("prompt requires RepoDir")
	case data.TrackerIssue <= 0:
		return errors.New("prompt requires TrackerIssue > 0")
	case data.SkillsDir == "":
		return errors.New("prompt requires SkillsDir")
	}
	return nil
}
