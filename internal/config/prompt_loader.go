package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// defaultPromptDir is the subdirectory of the user's home directory
// where relative prompt paths are resolved.
const defaultPromptDir = ".config/copilot/prompts"

// LoadSystemPrompt reads the configured system prompt override. An
// empty path means "use the built-in prompt" and returns "" without
// error. Relative paths are resolved against ~/.config/copilot/prompts.
func LoadSystemPrompt(configuredPath string) (string, error) {
	if configuredPath == "" {
		return "", nil
	}

	finalPath := configuredPath
	if !filepath.IsAbs(configuredPath) {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		finalPath = filepath.Join(homeDir, defaultPromptDir, configuredPath)
	}

	promptBytes, err := os.ReadFile(finalPath)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt file %q: %w", finalPath, err)
	}
	return string(promptBytes), nil
}
