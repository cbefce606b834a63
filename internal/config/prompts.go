package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// PromptPair holds a system and user prompt template.
type PromptPair struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

// SinglePrompt holds a single system prompt (no user template).
type SinglePrompt struct {
	System string `yaml:"system"`
}

// Prompts is the top-level prompt configuration loaded from YAML.
// One PromptPair per query type; General is system-only since the raw
// user query is forwarded unmodified.
type Prompts struct {
	Recipe    PromptPair   `yaml:"recipe"`
	Technique PromptPair   `yaml:"technique"`
	Equipment PromptPair   `yaml:"equipment"`
	General   SinglePrompt `yaml:"general"`
}

// promptsFile is the on-disk YAML layout: prompt templates plus the
// voice catalog offered to clients.
type promptsFile struct {
	Prompts Prompts `yaml:"prompts"`
	Voices  []Voice `yaml:"voices"`
}

// LoadPrompts reads and parses the YAML prompt configuration file,
// returning the prompt templates and the voice catalog.
func LoadPrompts(path string) (*Prompts, []Voice, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	var pf promptsFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, nil, fmt.Errorf("failed to parse prompts YAML: %w", err)
	}

	return &pf.Prompts, pf.Voices, nil
}

// RenderPrompt executes Go template interpolation on a prompt string.
// The data map provides values for placeholders like {{.Query}}.
func RenderPrompt(tmpl string, data map[string]interface{}) (string, error) {
	t, err := template.New("prompt").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("failed to parse prompt template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render prompt template: %w", err)
	}

	return strings.TrimSpace(buf.String()), nil
}
