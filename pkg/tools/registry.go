// Package tools hosts the registry of client-side functions the model may
// call during a live session.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Tool is a callable function exposed to the model.
type Tool interface {
	// Name is the function name the model calls.
	Name() string

	// Call invokes the tool. Errors are converted by the registry into a
	// structured failure payload; they never propagate to the session.
	Call(ctx context.Context, args map[string]any) (map[string]any, error)
}

// Registry resolves tool names to implementations.
type Registry struct {
	tools map[string]Tool
	log   *slog.Logger
}

// NewRegistry creates a registry holding the given tools.
func NewRegistry(log *slog.Logger, tools ...Tool) *Registry {
	if log == nil {
		log = slog.Default()
	}
	r := &Registry{tools: make(map[string]Tool, len(tools)), log: log}
	for _, t := range tools {
		r.tools[strings.TrimSpace(t.Name())] = t
	}
	return r
}

// Names returns the registered tool names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Dispatch resolves and invokes the named tool synchronously. Unknown names
// and execution errors both yield a structured failure payload.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]any) map[string]any {
	tool, ok := r.tools[strings.TrimSpace(name)]
	if !ok {
		r.log.Warn("tool call for unknown tool", "name", name)
		return map[string]any{
			"success": false,
			"error":   fmt.Sprintf("unknown tool: %s", name),
		}
	}

	result, err := tool.Call(ctx, args)
	if err != nil {
		r.log.Warn("tool execution failed", "name", name, "err", err)
		return map[string]any{
			"success": false,
			"error":   err.Error(),
		}
	}
	return result
}
