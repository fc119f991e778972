// Package tool declares the fixed calculator tool set exposed to the language
// model and validates tool-call arguments before any calculator runs.
package tool

// ParamType is the declared wire type of a tool parameter.
type ParamType string

const (
	TypeNumber  ParamType = "number"
	TypeInteger ParamType = "integer"
	TypeString  ParamType = "string"
)

// Param describes one tool parameter.
type Param struct {
	Type        ParamType
	Description string
}

// Definition declares a tool's name, purpose and argument schema. Definitions
// are immutable and fixed at process start.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]Param
	Required    []string
}

// Schema renders the definition as a JSON-schema object of the shape the
// chat-completion APIs expect for function parameters.
func (d Definition) Schema() map[string]any {
	props := make(map[string]any, len(d.Parameters))
	for name, p := range d.Parameters {
		props[name] = map[string]any{
			"type":        string(p.Type),
			"description": p.Description,
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   d.Required,
	}
}
