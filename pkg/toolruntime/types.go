// Package toolruntime implements the Tool Runtime (C9, §4.9): the
// generate_image, search_memories, and search_web tools the orchestrator
// exposes to the model, plus a small registry/executor/param-reading
// layer grounded on the teacher's pkg/agents/tools package — minus its
// MCP-server wiring (the retrieval pack's modelcontextprotocol/go-sdk
// dependency is dropped per DESIGN.md; this core's tool set is closed and
// does not load remote MCP tool servers).
package toolruntime

import (
	"context"
	"strconv"
	"strings"
)

// ResultStatus is a tool's outcome, success or error (§4.9).
type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultError   ResultStatus = "error"
)

// Result is a tool's structured response, re-injected into the
// conversation as a RoleTool message by the orchestrator.
type Result struct {
	Status  ResultStatus
	Text    string
	Details map[string]any
}

// ErrorResult builds a failed Result carrying a user-safe message.
func ErrorResult(message string) *Result {
	return &Result{Status: ResultError, Text: message}
}

// Definition is a JSON-Schema tool signature, convertible to
// provider.ToolDefinition at the call site.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Tool pairs a Definition with its local executor.
type Tool struct {
	Definition
	Execute func(ctx context.Context, args map[string]any) (*Result, error)
}

// Registry holds the fixed tool set available to a chat.
type Registry struct {
	tools map[string]*Tool
	order []string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds t, replacing any existing tool with the same name.
func (r *Registry) Register(t *Tool) {
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// Get returns the tool named name, or nil.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// All returns every registered tool in registration order.
func (r *Registry) All() []*Tool {
	out := make([]*Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Definitions returns the Definition of every registered tool, for
// advertising to a provider.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Definition)
	}
	return out
}

// Executor dispatches a named tool call against its input, following the
// teacher's Executor.Execute shape (pkg/agents/tools/executor.go) minus
// policy/guard enforcement, which this module's orchestrator handles at the
// tool-loop level instead (bounded resume count, §4.11 step 5).
type Executor struct {
	registry *Registry
}

// NewExecutor returns an Executor dispatching against registry.
func NewExecutor(registry *Registry) *Executor {
	return &Executor{registry: registry}
}

// Execute runs the named tool, or returns an error Result if it is unknown.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any) (*Result, error) {
	tool := e.registry.Get(name)
	if tool == nil {
		return ErrorResult("unknown tool: " + name), nil
	}
	return tool.Execute(ctx, args)
}

// readString reads a required or optional string parameter, grounded on
// the teacher's ReadString (pkg/agents/tools/params.go).
func readString(args map[string]any, key string, required bool) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		if required {
			return "", &missingParamError{key}
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", &missingParamError{key}
	}
	return strings.TrimSpace(s), nil
}

func readIntDefault(args map[string]any, key string, def int) int {
	v, ok := args[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		if parsed, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return parsed
		}
	}
	return def
}

type missingParamError struct{ key string }

func (e *missingParamError) Error() string { return "parameter \"" + e.key + "\" is required and must be a string" }
