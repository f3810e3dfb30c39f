package provider

import (
	"fmt"
	"math"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/pkg/errors"

	"github.com/haikusw/JaqalPaw/internal/ir"
	"github.com/haikusw/JaqalPaw/internal/wire"
)

// DefinitionError is a malformed gate definition in a CUE pulse file.
type DefinitionError struct {
	Gate    string
	Message string
	Pos     token.Pos
}

func (e *DefinitionError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Gate, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Gate, e.Message)
}

// cueSegment mirrors one element of a gate's segments list. Numbers are
// decoded as floats so definitions may compute them; they must still land on
// integers once rounded.
type cueSegment struct {
	Channel     int       `json:"channel"`
	Mod         string    `json:"mod"`
	Duration    float64   `json:"duration"`
	U           []float64 `json:"u"`
	Shift       uint8     `json:"shift"`
	WaitTrigger bool      `json:"wait_trigger"`
	EnableMask  *uint8    `json:"enable_mask"`
}

// LoadCUE builds a registry from CUE gate templates:
//
//	gates: Sx: {
//	    params: ["q"]
//	    args: q: int
//	    segments: [{channel: args.q, mod: "a0", duration: 200, u: [1000, 0, 0, 0]}]
//	}
//
// Arguments are filled positionally into args.<param>, then segments is
// evaluated and decoded. Durations are in clock cycles.
func LoadCUE(src []byte, filename string, required ...string) (*Registry, error) {
	ctx := cuecontext.New()
	root := ctx.CompileBytes(src, cue.Filename(filename))
	if err := root.Err(); err != nil {
		return nil, formatCUEError("pulses", err)
	}

	gates := root.LookupPath(cue.ParsePath("gates"))
	if !gates.Exists() {
		return nil, &DefinitionError{Gate: "gates", Message: "gates is required", Pos: root.Pos()}
	}
	iter, err := gates.Fields()
	if err != nil {
		return nil, formatCUEError("gates", err)
	}

	// cue values are not safe for concurrent evaluation
	var mu sync.Mutex
	handlers := make(map[string]Handler)
	for iter.Next() {
		name := iter.Selector().Unquoted()
		tmpl := iter.Value()
		params, err := parseParams(name, tmpl)
		if err != nil {
			return nil, err
		}
		handlers[name] = func(args []float64) ([]ir.PulseSegment, error) {
			mu.Lock()
			defer mu.Unlock()
			return instantiate(name, tmpl, params, args)
		}
	}
	return New(handlers, required...)
}

func parseParams(name string, tmpl cue.Value) ([]string, error) {
	v := tmpl.LookupPath(cue.ParsePath("params"))
	if !v.Exists() {
		return nil, nil
	}
	var params []string
	if err := v.Decode(&params); err != nil {
		return nil, formatCUEError(name, err)
	}
	return params, nil
}

func instantiate(name string, tmpl cue.Value, params []string, args []float64) ([]ir.PulseSegment, error) {
	if len(args) != len(params) {
		return nil, ir.NewCompileError(ir.ErrCodeBadArguments, name,
			"expected %d arguments, got %d", len(params), len(args))
	}
	v := tmpl
	for i, p := range params {
		path := cue.MakePath(cue.Str("args"), cue.Str(p))
		if a := args[i]; a == math.Trunc(a) {
			v = v.FillPath(path, int64(a))
		} else {
			v = v.FillPath(path, a)
		}
	}

	segsVal := v.LookupPath(cue.ParsePath("segments"))
	if !segsVal.Exists() {
		return nil, nil
	}
	if err := segsVal.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(name, err)
	}
	var raw []cueSegment
	if err := segsVal.Decode(&raw); err != nil {
		return nil, formatCUEError(name, err)
	}

	segs := make([]ir.PulseSegment, 0, len(raw))
	for i, r := range raw {
		s, err := r.segment()
		if err != nil {
			return nil, errors.Wrapf(err, "gate %s segment %d", name, i)
		}
		segs = append(segs, s)
	}
	return segs, nil
}

func (r cueSegment) segment() (ir.PulseSegment, error) {
	mod, err := wire.ParseModType(r.Mod)
	if err != nil {
		return ir.PulseSegment{}, err
	}
	if len(r.U) > 4 {
		return ir.PulseSegment{}, errors.Errorf("%d spline terms, at most 4 allowed", len(r.U))
	}
	s := ir.PulseSegment{
		Channel:     r.Channel,
		ModType:     mod,
		Duration:    int64(math.Round(r.Duration)),
		Shift:       r.Shift,
		WaitTrigger: r.WaitTrigger,
		EnableMask:  ir.DefaultEnableMask,
	}
	for i, u := range r.U {
		s.U[i] = int64(math.Round(u))
	}
	if r.EnableMask != nil {
		s.EnableMask = *r.EnableMask
	}
	return s, s.Validate()
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(gate string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	pos := token.NoPos
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		pos = positions[0]
	}
	return &DefinitionError{Gate: gate, Message: first.Error(), Pos: pos}
}
