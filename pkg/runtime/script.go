package runtime

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Script is a pre-recorded sequence of player intents, used to replay a
// playthrough non-interactively. With a fixed resolver seed the same
// script against the same story reproduces the same event chain.
type Script struct {
	Name  string       `yaml:"name,omitempty"`
	Steps []ScriptStep `yaml:"steps"`
}

// ScriptStep is one intent. Exactly one field should be set; Choose
// matches a choice by title first, then by id.
type ScriptStep struct {
	Choose   string `yaml:"choose,omitempty"`
	Input    string `yaml:"input,omitempty"`
	Loopback bool   `yaml:"loopback,omitempty"`
	Restart  bool   `yaml:"restart,omitempty"`
}

// LoadScript reads a script from a YAML file. Unknown fields are
// rejected so a typoed intent fails loudly instead of being skipped.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	var s Script
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse script %s: %w", path, err)
	}
	if len(s.Steps) == 0 {
		return nil, fmt.Errorf("script %s has no steps", path)
	}
	return &s, nil
}

// ScriptResult is the outcome of one replayed step.
type ScriptResult struct {
	Step       int
	Transition Transition
}

// RunScript plays the script's intents in order against the session.
// A blocked transition is recorded and the script keeps going on the
// unchanged passage; a structural error aborts the run.
func RunScript(ctx context.Context, s *Session, script *Script) ([]ScriptResult, error) {
	out := make([]ScriptResult, 0, len(script.Steps))
	for i, step := range script.Steps {
		tr, err := applyStep(ctx, s, step)
		if err != nil {
			return out, fmt.Errorf("step %d: %w", i+1, err)
		}
		out = append(out, ScriptResult{Step: i + 1, Transition: tr})
	}
	return out, nil
}

func applyStep(ctx context.Context, s *Session, step ScriptStep) (Transition, error) {
	switch {
	case step.Restart:
		return s.Restart(ctx)
	case step.Loopback:
		return s.Loopback(ctx)
	case step.Input != "":
		v, err := s.View()
		if err != nil {
			return Transition{}, err
		}
		if v.Input == nil {
			return Transition{}, fmt.Errorf("passage %s takes no input", v.Passage.ID)
		}
		return s.AdvanceByInput(ctx, v.Input.ID, step.Input)
	case step.Choose != "":
		v, err := s.View()
		if err != nil {
			return Transition{}, err
		}
		for _, c := range v.Choices {
			if c.Title == step.Choose {
				return s.AdvanceByChoice(ctx, c.ID)
			}
		}
		for _, c := range v.Choices {
			if c.ID == step.Choose {
				return s.AdvanceByChoice(ctx, c.ID)
			}
		}
		return Transition{}, fmt.Errorf("no open choice %q on passage %s", step.Choose, v.Passage.ID)
	}
	return Transition{}, fmt.Errorf("empty script step")
}
