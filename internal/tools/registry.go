package tools

import (
	"fmt"
	"log/slog"

	"github.com/finarena/finarena/internal/core/domain"
	"github.com/finarena/finarena/internal/core/ports"
)

// BuildRegistry assembles the assessor's tool registry. Registration order
// is the order tools appear in discovery responses.
func BuildRegistry(logger *slog.Logger, cache ports.FilingCache, docs *DocumentStore) (*domain.ToolRegistry, error) {
	registry := domain.NewToolRegistry()

	for _, tool := range []*domain.Tool{
		NewEdgarSearchTool(),
		NewStockQuoteTool(),
		NewFetchFilingTool(cache, docs),
		NewReadFilingTool(docs),
	} {
		if err := registry.Register(tool); err != nil {
			return nil, fmt.Errorf("register tool: %w", err)
		}
	}

	logger.Info("tool registry assembled", "count", registry.Len())
	return registry, nil
}
