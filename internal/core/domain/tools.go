package domain

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// ToolDescriptor describes one callable capability. Parameters is a JSON
// schema for the arguments object; descriptors are stable for the duration
// of a question's evaluation (the registry is fixed at agent start).
type ToolDescriptor struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Parameters  *openapi3.Schema `json:"parameters"`
}

// ToolCall is a single invocation request produced by the executor's
// reasoning step. One ToolCall yields exactly one ToolResult.
type ToolCall struct {
	Tool      string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResultStatus is ok or error; error results are data, not failures.
type ToolResultStatus string

const (
	ToolOK    ToolResultStatus = "ok"
	ToolError ToolResultStatus = "error"
)

// ToolResult is the outcome of one ToolCall.
type ToolResult struct {
	Status      ToolResultStatus `json:"status"`
	Payload     any              `json:"payload,omitempty"`
	ErrorDetail string           `json:"error_detail,omitempty"`
}

func errorResult(format string, args ...any) ToolResult {
	return ToolResult{Status: ToolError, ErrorDetail: fmt.Sprintf(format, args...)}
}

// ToolInvoker executes a tool with validated arguments.
type ToolInvoker func(ctx context.Context, args map[string]any) (any, error)

// Tool pairs a descriptor with its invoker.
type Tool struct {
	Descriptor ToolDescriptor
	Invoke     ToolInvoker
}

// ToolRegistry maps tool names to {schema, invoker}. Argument validation is
// generic against the descriptor schema, never per-tool special-cased.
// Registration order is preserved for discovery responses.
type ToolRegistry struct {
	tools map[string]*Tool
	order []string
}

// NewToolRegistry creates a new empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]*Tool)}
}

// Register adds a tool to the registry. Names must be unique and non-empty.
func (r *ToolRegistry) Register(tool *Tool) error {
	name := tool.Descriptor.Name
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool already registered: %s", name)
	}
	if tool.Invoke == nil {
		return fmt.Errorf("tool %s has no invoker", name)
	}
	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

// Descriptors returns all registered descriptors in registration order.
func (r *ToolRegistry) Descriptors() []ToolDescriptor {
	out := make([]ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Descriptor)
	}
	return out
}

// Len returns the number of registered tools.
func (r *ToolRegistry) Len() int { return len(r.order) }

// Invoke validates and executes a ToolCall. It never returns an error and
// never panics past this boundary: an unknown name, a schema violation, or
// a provider failure all come back as a ToolResult with status error.
func (r *ToolRegistry) Invoke(ctx context.Context, call ToolCall) (result ToolResult) {
	defer func() {
		if rec := recover(); rec != nil {
			result = errorResult("tool %s panicked: %v", call.Tool, rec)
		}
	}()

	tool, ok := r.tools[call.Tool]
	if !ok {
		return errorResult("unknown tool: %s", call.Tool)
	}

	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}
	if schema := tool.Descriptor.Parameters; schema != nil {
		if err := schema.VisitJSON(args); err != nil {
			return errorResult("invalid arguments for %s: %v", call.Tool, err)
		}
	}

	payload, err := tool.Invoke(ctx, args)
	if err != nil {
		return errorResult("tool %s failed: %v", call.Tool, err)
	}
	return ToolResult{Status: ToolOK, Payload: payload}
}

// FormatToolsForPrompt generates a concise description of the given tools
// for an LLM prompt: name — description plus a compact parameter listing.
func FormatToolsForPrompt(tools []ToolDescriptor) string {
	result := "Available Tools:\n"
	for _, t := range tools {
		paramsList := ""
		if t.Parameters != nil && len(t.Parameters.Properties) > 0 {
			parts := make([]string, 0, len(t.Parameters.Properties))
			for pName, pRef := range t.Parameters.Properties {
				pType := "any"
				if pRef != nil && pRef.Value != nil && pRef.Value.Type != nil && len(*pRef.Value.Type) > 0 {
					pType = (*pRef.Value.Type)[0]
				}
				parts = append(parts, pName+":"+pType)
			}
			sort.Strings(parts)
			paramsList = " | params: {" + strings.Join(parts, ", ") + "}"
		}
		reqParams := ""
		if t.Parameters != nil && len(t.Parameters.Required) > 0 {
			reqParams = " | required: " + strings.Join(t.Parameters.Required, ", ")
		}
		result += fmt.Sprintf("- %s: %s%s%s\n", t.Name, t.Description, paramsList, reqParams)
	}
	return result
}
