package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Persona carries the system prompts for the three collaborator calls.
// Each interaction type keeps its own prompt, matching the distinct
// assistant / analyzer / search behaviors of the application.
type Persona struct {
	ChatPrompt     string `yaml:"chatPrompt"`
	AnalyzerPrompt string `yaml:"analyzerPrompt"`
	SearchPrompt   string `yaml:"searchPrompt"`
}

func DefaultPersona() Persona {
	return Persona{
		ChatPrompt:     "You are a helpful AI assistant. Provide clear, informative, and engaging responses.",
		AnalyzerPrompt: "You are an expert file analyzer. Describe the content of uploaded files in detail.",
		SearchPrompt: "Format your response as if you've searched the web and are providing a summary " +
			"of the most relevant and useful information. Include key facts, current context, and " +
			"multiple perspectives where applicable.",
	}
}

// LoadPersona reads prompt overrides from a YAML file. A missing path keeps
// the defaults; fields left empty in the file keep their defaults too.
func LoadPersona(path string) (Persona, error) {
	persona := DefaultPersona()
	if path == "" {
		return persona, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return persona, nil
	}
	if err != nil {
		return persona, fmt.Errorf("read persona file: %w", err)
	}

	var override Persona
	if err := yaml.Unmarshal(data, &override); err != nil {
		return persona, fmt.Errorf("parse persona file %s: %w", path, err)
	}
	if override.ChatPrompt != "" {
		persona.ChatPrompt = override.ChatPrompt
	}
	if override.AnalyzerPrompt != "" {
		persona.AnalyzerPrompt = override.AnalyzerPrompt
	}
	if override.SearchPrompt != "" {
		persona.SearchPrompt = override.SearchPrompt
	}
	return persona, nil
}
