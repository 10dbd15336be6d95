// Package tools implements the tool dispatch table: a declarative mapping
// from tool name and input schema to an executable capability.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// ErrUnknownTool is returned when the reasoning engine requests a tool name
// that was never registered.
var ErrUnknownTool = errors.New("unknown tool")

// InvalidArgumentsError reports tool input that failed schema validation.
type InvalidArgumentsError struct {
	Tool       string
	Violations []string
}

func (e *InvalidArgumentsError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, strings.Join(e.Violations, "; "))
}

// Registry manages available tools.
type Registry struct {
	tools map[string]*Tool
	mu    sync.RWMutex
}

// NewRegistry creates a new tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*Tool),
	}
}

// Register adds a tool to the registry.
func (r *Registry) Register(tool *Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name] = tool
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Definitions returns all tool definitions (for the LLM), sorted by name so
// the catalog the reasoning engine sees is deterministic.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t.ToDefinition())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CatalogText renders the tool catalog as text. The context assembler counts
// this block against the token budget.
func (r *Registry) CatalogText() string {
	var b strings.Builder
	for _, d := range r.Definitions() {
		fmt.Fprintf(&b, "%s: %s\n", d.Name, d.Description)
	}
	return b.String()
}

// Execute validates the input against the tool's declared schema and runs
// its handler. Validation failures return *InvalidArgumentsError; unknown
// names return ErrUnknownTool. Neither reaches the transport layer: the
// agent loop folds both into error tool results.
func (r *Registry) Execute(ctx context.Context, scope Scope, name string, input map[string]any) (string, error) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	if input == nil {
		input = map[string]any{}
	}

	if err := validateInput(tool, input); err != nil {
		return "", err
	}

	return tool.Handler(ctx, scope, input)
}

func validateInput(tool *Tool, input map[string]any) error {
	if tool.Parameters == nil {
		return nil
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(tool.Parameters),
		gojsonschema.NewGoLoader(input),
	)
	if err != nil {
		return &InvalidArgumentsError{Tool: tool.Name, Violations: []string{err.Error()}}
	}

	if !result.Valid() {
		violations := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			violations = append(violations, desc.String())
		}
		return &InvalidArgumentsError{Tool: tool.Name, Violations: violations}
	}

	return nil
}
