package domain

import (
	"context"
	"fmt"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool(name string) *Tool {
	schema := openapi3.NewObjectSchema().
		WithProperty("query", openapi3.NewStringSchema())
	schema.Required = []string{"query"}

	return &Tool{
		Descriptor: ToolDescriptor{
			Name:        name,
			Description: "echoes the query back",
			Parameters:  schema,
		},
		Invoke: func(ctx context.Context, args map[string]any) (any, error) {
			return map[string]any{"echo": args["query"]}, nil
		},
	}
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	registry := NewToolRegistry()
	require.NoError(t, registry.Register(echoTool("echo")))

	err := registry.Register(echoTool("echo"))
	assert.ErrorContains(t, err, "already registered")
	assert.Equal(t, 1, registry.Len())
}

func TestRegistryRejectsEmptyName(t *testing.T) {
	registry := NewToolRegistry()
	assert.Error(t, registry.Register(echoTool("")))
}

func TestDescriptorsPreserveRegistrationOrder(t *testing.T) {
	registry := NewToolRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, registry.Register(echoTool(name)))
	}

	descriptors := registry.Descriptors()
	require.Len(t, descriptors, 3)
	assert.Equal(t, "zeta", descriptors[0].Name)
	assert.Equal(t, "alpha", descriptors[1].Name)
	assert.Equal(t, "mid", descriptors[2].Name)
}

func TestInvokeUnknownToolReturnsErrorResult(t *testing.T) {
	registry := NewToolRegistry()

	result := registry.Invoke(context.Background(), ToolCall{Tool: "foo"})
	assert.Equal(t, ToolError, result.Status)
	assert.Contains(t, result.ErrorDetail, "unknown tool")
}

func TestInvokeValidatesArguments(t *testing.T) {
	registry := NewToolRegistry()
	require.NoError(t, registry.Register(echoTool("echo")))

	// Missing required argument.
	result := registry.Invoke(context.Background(), ToolCall{Tool: "echo", Arguments: map[string]any{}})
	assert.Equal(t, ToolError, result.Status)
	assert.Contains(t, result.ErrorDetail, "invalid arguments")

	// Wrong type.
	result = registry.Invoke(context.Background(), ToolCall{Tool: "echo", Arguments: map[string]any{"query": 42.0}})
	assert.Equal(t, ToolError, result.Status)

	// Valid call.
	result = registry.Invoke(context.Background(), ToolCall{Tool: "echo", Arguments: map[string]any{"query": "hello"}})
	assert.Equal(t, ToolOK, result.Status)
}

func TestInvokeWrapsProviderErrors(t *testing.T) {
	registry := NewToolRegistry()
	require.NoError(t, registry.Register(&Tool{
		Descriptor: ToolDescriptor{Name: "boom", Description: "always fails"},
		Invoke: func(ctx context.Context, args map[string]any) (any, error) {
			return nil, fmt.Errorf("provider exploded")
		},
	}))

	result := registry.Invoke(context.Background(), ToolCall{Tool: "boom"})
	assert.Equal(t, ToolError, result.Status)
	assert.Contains(t, result.ErrorDetail, "provider exploded")
}

func TestInvokeRecoversPanics(t *testing.T) {
	registry := NewToolRegistry()
	require.NoError(t, registry.Register(&Tool{
		Descriptor: ToolDescriptor{Name: "panicky", Description: "panics"},
		Invoke: func(ctx context.Context, args map[string]any) (any, error) {
			panic("provider bug")
		},
	}))

	result := registry.Invoke(context.Background(), ToolCall{Tool: "panicky"})
	assert.Equal(t, ToolError, result.Status)
	assert.Contains(t, result.ErrorDetail, "panicked")
}

func TestFormatToolsForPrompt(t *testing.T) {
	registry := NewToolRegistry()
	require.NoError(t, registry.Register(echoTool("echo")))

	prompt := FormatToolsForPrompt(registry.Descriptors())
	assert.Contains(t, prompt, "echo: echoes the query back")
	assert.Contains(t, prompt, "query:string")
	assert.Contains(t, prompt, "required: query")
}
