package tools

import "github.com/getkin/kin-openapi/openapi3"

func stringParam(desc string) *openapi3.Schema {
	s := openapi3.NewStringSchema()
	s.Description = desc
	return s
}

func intParam(desc string) *openapi3.Schema {
	s := openapi3.NewIntegerSchema()
	s.Description = desc
	return s
}

func strArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// intArg reads an integer argument. JSON decoding yields float64 for all
// numbers, so both representations are accepted.
func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}
