package llm

import (
	"fmt"
	"strings"

	"github.com/finarena/finarena/internal/config"
	"github.com/finarena/finarena/internal/core/ports"
)

// Build creates an LLM client from configuration. It hides local/remote
// backend selection from callers.
func Build(cfg config.LLMConfig) (ports.LLMClient, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	switch mode {
	case "", "local":
		return NewOllamaClient(strings.TrimSpace(cfg.BaseURL), strings.TrimSpace(cfg.Model)), nil
	case "remote":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, fmt.Errorf("llm api key is required when mode=remote")
		}
		return NewOpenAIClient(
			strings.TrimSpace(cfg.BaseURL),
			strings.TrimSpace(cfg.APIKey),
			strings.TrimSpace(cfg.Model),
		), nil
	default:
		return nil, fmt.Errorf("unsupported llm mode: %s", cfg.Mode)
	}
}
