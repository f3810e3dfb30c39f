// Package provider maps gate names to the pulse segments that implement
// them. Registries are validated when built: a registry missing one of its
// required gates is never constructed.
package provider

import (
	"maps"
	"slices"

	"github.com/pkg/errors"

	"github.com/haikusw/JaqalPaw/internal/ir"
)

// Gates every circuit may use. Both take the channel count as their only
// argument.
const (
	PrepareAll = "prepare_all"
	MeasureAll = "measure_all"
)

// DefaultRequired lists the gates New requires when none are given.
var DefaultRequired = []string{PrepareAll, MeasureAll}

// Handler produces the segments of one gate for resolved arguments. A nil
// or empty result is a no-op gate.
type Handler func(args []float64) ([]ir.PulseSegment, error)

// Registry is an explicit gate name → Handler mapping.
type Registry struct {
	handlers map[string]Handler
}

// New builds a registry from handlers, failing when a required gate has no
// handler. With no required names, DefaultRequired applies.
func New(handlers map[string]Handler, required ...string) (*Registry, error) {
	if len(required) == 0 {
		required = DefaultRequired
	}
	for _, name := range required {
		if h, ok := handlers[name]; !ok || h == nil {
			return nil, ir.NewCompileError(ir.ErrCodeUnknownGate, name, "required gate has no handler")
		}
	}
	return &Registry{handlers: maps.Clone(handlers)}, nil
}

// Names lists the gates of the registry, sorted.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.handlers))
}

// Has reports whether name has a handler.
func (r *Registry) Has(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

// Gate runs the handler of name.
func (r *Registry) Gate(name string, args []float64) ([]ir.PulseSegment, error) {
	h, ok := r.handlers[name]
	if !ok {
		return nil, ir.NewCompileError(ir.ErrCodeUnknownGate, name, "gate not found")
	}
	segs, err := h(args)
	if err != nil {
		var ce *ir.CompileError
		var de *DefinitionError
		if errors.As(err, &ce) || errors.As(err, &de) {
			return nil, err
		}
		return nil, ir.NewCompileError(ir.ErrCodeBadArguments, name, "%v", err)
	}
	return segs, nil
}
