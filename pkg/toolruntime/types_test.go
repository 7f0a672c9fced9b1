package toolruntime

import (
	"context"
	"testing"
)

func TestRegistryPreservesRegistrationOrder(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Tool{Definition: Definition{Name: "b"}})
	reg.Register(&Tool{Definition: Definition{Name: "a"}})
	reg.Register(&Tool{Definition: Definition{Name: "b"}}) // re-register, order unchanged

	defs := reg.Definitions()
	if len(defs) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(defs))
	}
	if defs[0].Name != "b" || defs[1].Name != "a" {
		t.Fatalf("expected order [b, a], got [%s, %s]", defs[0].Name, defs[1].Name)
	}
}

func TestExecutorUnknownTool(t *testing.T) {
	executor := NewExecutor(NewRegistry())
	result, err := executor.Execute(context.Background(), "nonexistent", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != ResultError {
		t.Fatalf("expected error status, got %s", result.Status)
	}
}

func TestExecutorDispatchesToTool(t *testing.T) {
	reg := NewRegistry()
	called := false
	reg.Register(&Tool{
		Definition: Definition{Name: "echo"},
		Execute: func(ctx context.Context, args map[string]any) (*Result, error) {
			called = true
			return &Result{Status: ResultSuccess, Text: args["msg"].(string)}, nil
		},
	})
	executor := NewExecutor(reg)

	result, err := executor.Execute(context.Background(), "echo", map[string]any{"msg": "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatalf("expected tool to be called")
	}
	if result.Text != "hi" {
		t.Fatalf("expected echoed text, got %q", result.Text)
	}
}

func TestReadStringRequiredMissing(t *testing.T) {
	_, err := readString(map[string]any{}, "query", true)
	if err == nil {
		t.Fatalf("expected error for missing required param")
	}
}

func TestReadStringTrimsWhitespace(t *testing.T) {
	s, err := readString(map[string]any{"q": "  hello  "}, "q", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s != "hello" {
		t.Fatalf("expected trimmed string, got %q", s)
	}
}

func TestReadIntDefaultFallsBackOnMissing(t *testing.T) {
	if n := readIntDefault(map[string]any{}, "limit", 8); n != 8 {
		t.Fatalf("expected default 8, got %d", n)
	}
}

func TestReadIntDefaultAcceptsFloat64FromJSON(t *testing.T) {
	if n := readIntDefault(map[string]any{"limit": float64(5)}, "limit", 8); n != 5 {
		t.Fatalf("expected 5, got %d", n)
	}
}
