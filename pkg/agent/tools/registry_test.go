package tools

import (
	"context"
	"errors"
	"testing"
)

func echoTool(name string) *Tool {
	return &Tool{
		Name:        name,
		Description: "Echoes the query back",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Text to echo",
				},
			},
			"required": []string{"query"},
		},
		Handler: func(ctx context.Context, scope Scope, input map[string]any) (string, error) {
			return input["query"].(string), nil
		},
	}
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()

	t.Run("registers and retrieves tools", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register(echoTool("echo"))

		tool, ok := registry.Get("echo")
		if !ok {
			t.Fatal("expected to find tool")
		}
		if tool.Description != "Echoes the query back" {
			t.Errorf("unexpected description: %s", tool.Description)
		}
	})

	t.Run("executes a tool with valid arguments", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register(echoTool("echo"))

		out, err := registry.Execute(ctx, Scope{UserID: "u1"}, "echo", map[string]any{"query": "hi"})
		if err != nil {
			t.Fatalf("execute: %v", err)
		}
		if out != "hi" {
			t.Errorf("expected 'hi', got %q", out)
		}
	})

	t.Run("rejects unknown tool names", func(t *testing.T) {
		registry := NewRegistry()

		_, err := registry.Execute(ctx, Scope{}, "nope", nil)
		if !errors.Is(err, ErrUnknownTool) {
			t.Errorf("expected ErrUnknownTool, got %v", err)
		}
	})

	t.Run("rejects missing required arguments", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register(echoTool("echo"))

		_, err := registry.Execute(ctx, Scope{}, "echo", map[string]any{})
		var invalid *InvalidArgumentsError
		if !errors.As(err, &invalid) {
			t.Fatalf("expected InvalidArgumentsError, got %v", err)
		}
		if invalid.Tool != "echo" {
			t.Errorf("expected tool name in error, got %q", invalid.Tool)
		}
	})

	t.Run("rejects wrongly typed arguments", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register(echoTool("echo"))

		_, err := registry.Execute(ctx, Scope{}, "echo", map[string]any{"query": 42})
		var invalid *InvalidArgumentsError
		if !errors.As(err, &invalid) {
			t.Fatalf("expected InvalidArgumentsError, got %v", err)
		}
	})

	t.Run("definitions and catalog are deterministic", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register(echoTool("zeta"))
		registry.Register(echoTool("alpha"))
		registry.Register(echoTool("mid"))

		defs := registry.Definitions()
		if len(defs) != 3 {
			t.Fatalf("expected 3 definitions, got %d", len(defs))
		}
		if defs[0].Name != "alpha" || defs[1].Name != "mid" || defs[2].Name != "zeta" {
			t.Errorf("definitions not sorted: %v", defs)
		}

		if registry.CatalogText() != registry.CatalogText() {
			t.Error("catalog text is not stable")
		}
	})
}
