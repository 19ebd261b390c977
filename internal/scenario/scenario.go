// Package scenario describes the ordered browser steps of a verification run.
package scenario

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Action names a single browser operation.
type Action string

const (
	ActionGoto       Action = "goto"
	ActionExpectText Action = "expect_text"
	ActionScreenshot Action = "screenshot"
	ActionClickFirst Action = "click_first"
	ActionWait       Action = "wait"
)

// DefaultRole is clicked by click_first when a step names no role.
const DefaultRole = "button"

// Screenshot names written by the built-in log viewer scenario.
const (
	InitialShot = "log-viewer-initial.png"
	ContentShot = "log-viewer-with-content.png"
)

// Step is one entry of a scenario. Only the fields relevant to Action are read.
type Step struct {
	Action   Action        `yaml:"action" json:"action"`
	URL      string        `yaml:"url,omitempty" json:"url,omitempty"`
	Text     string        `yaml:"text,omitempty" json:"text,omitempty"`
	Role     string        `yaml:"role,omitempty" json:"role,omitempty"`
	File     string        `yaml:"file,omitempty" json:"file,omitempty"`
	Duration time.Duration `yaml:"duration,omitempty" json:"duration,omitempty"`
}

// Scenario is a named, ordered list of steps.
type Scenario struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Steps       []Step `yaml:"steps" json:"steps"`
}

// LogViewer returns the smoke check for the log viewer: load the page, wait for label,
// capture it, open the first log file and capture again.
func LogViewer(label string) Scenario {
	return Scenario{
		Name:        "log-viewer",
		Description: "before/after screenshots of the log viewer",
		Steps: []Step{
			{Action: ActionGoto},
			{Action: ActionExpectText, Text: label},
			{Action: ActionScreenshot, File: InitialShot},
			{Action: ActionClickFirst, Role: DefaultRole},
			{Action: ActionScreenshot, File: ContentShot},
		},
	}
}

// Capture returns a single screenshot of the target page.
func Capture(file string) Scenario {
	return Scenario{
		Name: "capture",
		Steps: []Step{
			{Action: ActionGoto},
			{Action: ActionScreenshot, File: file},
		},
	}
}

// Parse reads a YAML scenario from path and validates it.
func Parse(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, err
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Scenario{}, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	for i := range s.Steps {
		s.Steps[i].Action = Action(strings.ToLower(strings.TrimSpace(string(s.Steps[i].Action))))
	}
	if err := s.Validate(); err != nil {
		return Scenario{}, err
	}
	return s, nil
}

// Validate checks every step can be executed as written.
func (s Scenario) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("scenario: missing name")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario %s: no steps", s.Name)
	}
	seen := make(map[string]bool)
	for i, st := range s.Steps {
		switch st.Action {
		case ActionGoto, ActionClickFirst:
		case ActionExpectText:
			if strings.TrimSpace(st.Text) == "" {
				return fmt.Errorf("scenario %s: step %d: expect_text needs text", s.Name, i+1)
			}
		case ActionScreenshot:
			if st.File == "" || filepath.Base(st.File) != st.File {
				return fmt.Errorf("scenario %s: step %d: screenshot needs a bare file name", s.Name, i+1)
			}
			if !strings.EqualFold(filepath.Ext(st.File), ".png") {
				return fmt.Errorf("scenario %s: step %d: screenshot %q must be a .png", s.Name, i+1, st.File)
			}
			if seen[st.File] {
				return fmt.Errorf("scenario %s: step %d: duplicate screenshot %q", s.Name, i+1, st.File)
			}
			seen[st.File] = true
		case ActionWait:
			if st.Duration <= 0 {
				return fmt.Errorf("scenario %s: step %d: wait needs a positive duration", s.Name, i+1)
			}
		default:
			return fmt.Errorf("scenario %s: step %d: unknown action %q", s.Name, i+1, st.Action)
		}
	}
	return nil
}

// Screenshots lists screenshot file names in step order.
func (s Scenario) Screenshots() []string {
	var out []string
	for _, st := range s.Steps {
		if st.Action == ActionScreenshot {
			out = append(out, st.File)
		}
	}
	return out
}

// String renders a step for logs and manifests.
func (st Step) String() string {
	switch st.Action {
	case ActionGoto:
		if st.URL == "" {
			return "goto"
		}
		return "goto " + st.URL
	case ActionExpectText:
		return fmt.Sprintf("expect_text %q", st.Text)
	case ActionScreenshot:
		return "screenshot " + st.File
	case ActionClickFirst:
		role := st.Role
		if role == "" {
			role = DefaultRole
		}
		return "click_first " + role
	case ActionWait:
		return "wait " + st.Duration.String()
	}
	return string(st.Action)
}
