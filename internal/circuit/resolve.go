package circuit

import (
	"maps"
	"math"
	"slices"

	"github.com/haikusw/JaqalPaw/internal/ir"
)

// Op is a resolved statement: every argument is a number and every register
// element a channel index.
type Op struct {
	Gate     string
	Args     []float64
	Parallel bool
	Block    []Op // nil for gates
	Repeats  int  // > 0 for loops
}

// IsGate reports whether o is a gate call.
func (o Op) IsGate() bool { return o.Gate != "" }

// IsLoop reports whether o is a loop.
func (o Op) IsLoop() bool { return o.Repeats > 0 }

// Circuit is a resolved circuit.
type Circuit struct {
	Channels int // sum of register sizes
	Body     []Op
}

// Constants returns the let constants of the AST with overrides applied.
// An override must name an existing constant.
func (a *AST) Constants(overrides map[string]float64) (map[string]float64, error) {
	out := maps.Clone(a.Let)
	if out == nil {
		out = make(map[string]float64)
	}
	for _, name := range slices.Sorted(maps.Keys(overrides)) {
		if _, ok := a.Let[name]; !ok {
			return nil, invalid("override %s names no let constant", name)
		}
		out[name] = overrides[name]
	}
	return out, nil
}

// Resolve binds constants (with overrides) and lays registers out on
// consecutive channels, in declaration order.
func (a *AST) Resolve(overrides map[string]float64) (*Circuit, error) {
	consts, err := a.Constants(overrides)
	if err != nil {
		return nil, err
	}
	r := resolver{consts: consts, regs: make(map[string]span)}
	channels := 0
	for _, reg := range a.Registers {
		r.regs[reg.Name] = span{base: channels, size: reg.Size}
		channels += reg.Size
	}
	body, err := r.body(a.Body)
	if err != nil {
		return nil, err
	}
	return &Circuit{Channels: channels, Body: body}, nil
}

type span struct {
	base, size int
}

type resolver struct {
	consts map[string]float64
	regs   map[string]span
}

func (r *resolver) channel(a Arg) (float64, error) {
	reg, ok := r.regs[a.Name]
	if !ok {
		return 0, invalid("unknown register %s", a.Name)
	}
	if a.Index >= reg.size {
		return 0, invalid("%s out of range for register of size %d", a, reg.size)
	}
	return float64(reg.base + a.Index), nil
}

func (r *resolver) arg(a Arg) (float64, error) {
	switch {
	case a.Register:
		return r.channel(a)
	case a.Name != "":
		v, ok := r.consts[a.Name]
		if !ok {
			return 0, invalid("unknown constant %s", a.Name)
		}
		return v, nil
	}
	return a.Value, nil
}

func (r *resolver) body(stmts []Statement) ([]Op, error) {
	ops := make([]Op, 0, len(stmts))
	for _, s := range stmts {
		op, err := r.statement(s)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func (r *resolver) statement(s Statement) (Op, error) {
	switch {
	case s.Gate != "":
		args := make([]float64, len(s.Args))
		for i, a := range s.Args {
			v, err := r.arg(a)
			if err != nil {
				return Op{}, err
			}
			args[i] = v
		}
		return Op{Gate: s.Gate, Args: args}, nil
	case s.Parallel != nil:
		block, err := r.body(s.Parallel)
		return Op{Block: block, Parallel: true}, err
	case s.Sequential != nil:
		block, err := r.body(s.Sequential)
		return Op{Block: block}, err
	}
	n, err := r.arg(s.Loop.Repeats)
	if err != nil {
		return Op{}, err
	}
	if n < 1 || n != math.Trunc(n) {
		return Op{}, invalid("loop repeat count %v is not a positive integer", n)
	}
	block, err := r.body(s.Loop.Body)
	if err != nil {
		return Op{}, err
	}
	return Op{Block: block, Repeats: int(n)}, nil
}
