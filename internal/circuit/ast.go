package circuit

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/haikusw/JaqalPaw/internal/ir"
)

// AST is a parsed circuit source. It is shared through the parse cache and
// must not be modified.
type AST struct {
	Registers []Register         `yaml:"registers"`
	Let       map[string]float64 `yaml:"let,omitempty"`
	UsePulses string             `yaml:"usepulses,omitempty"`
	Body      []Statement        `yaml:"body"`
}

// Register declares Size consecutive channels under Name.
type Register struct {
	Name string `yaml:"name"`
	Size int    `yaml:"size"`
}

// Statement is one body element. Exactly one of Gate, Parallel, Sequential
// or Loop is set.
type Statement struct {
	Gate       string      `yaml:"gate,omitempty"`
	Args       []Arg       `yaml:"args,omitempty"`
	Parallel   []Statement `yaml:"parallel,omitempty"`
	Sequential []Statement `yaml:"sequential,omitempty"`
	Loop       *Loop       `yaml:"loop,omitempty"`
}

// Loop repeats Body.
type Loop struct {
	Repeats Arg         `yaml:"repeats"`
	Body    []Statement `yaml:"body"`
}

// Arg is a gate argument or repeat count: a number, a let constant, or a
// register element such as q[2].
type Arg struct {
	Value    float64
	Name     string // constant or register name; empty for a literal
	Index    int    // register element
	Register bool
}

var registerRef = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\[(\d+)\]$`)
var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// UnmarshalYAML accepts a number, an identifier, or name[index].
func (a *Arg) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return errors.Errorf("line %d: argument must be a scalar", node.Line)
	}
	if v, err := strconv.ParseFloat(node.Value, 64); err == nil && node.Tag != "!!str" {
		*a = Arg{Value: v}
		return nil
	}
	if m := registerRef.FindStringSubmatch(node.Value); m != nil {
		idx, err := strconv.Atoi(m[2])
		if err != nil {
			return errors.Wrapf(err, "line %d", node.Line)
		}
		*a = Arg{Name: m[1], Index: idx, Register: true}
		return nil
	}
	if identifier.MatchString(node.Value) {
		*a = Arg{Name: node.Value}
		return nil
	}
	return errors.Errorf("line %d: invalid argument %q", node.Line, node.Value)
}

func (a Arg) String() string {
	switch {
	case a.Register:
		return fmt.Sprintf("%s[%d]", a.Name, a.Index)
	case a.Name != "":
		return a.Name
	}
	return strconv.FormatFloat(a.Value, 'g', -1, 64)
}

func (s Statement) kinds() int {
	n := 0
	if s.Gate != "" {
		n++
	}
	if s.Parallel != nil {
		n++
	}
	if s.Sequential != nil {
		n++
	}
	if s.Loop != nil {
		n++
	}
	return n
}

func validateBody(body []Statement, path string) error {
	for i, s := range body {
		at := fmt.Sprintf("%s[%d]", path, i)
		if s.kinds() != 1 {
			return invalid("%s: expected exactly one of gate, parallel, sequential, loop", at)
		}
		if s.Gate == "" && len(s.Args) > 0 {
			return invalid("%s: args only apply to gates", at)
		}
		var err error
		switch {
		case s.Parallel != nil:
			err = validateBody(s.Parallel, at+".parallel")
		case s.Sequential != nil:
			err = validateBody(s.Sequential, at+".sequential")
		case s.Loop != nil:
			err = validateBody(s.Loop.Body, at+".loop.body")
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func invalid(format string, args ...any) *ir.CompileError {
	return ir.NewCompileError(ir.ErrCodeInvalidCircuit, "", format, args...)
}

// Parse decodes a circuit source. With strict set, the source must name its
// pulse definitions with usepulses. Unknown keys are rejected.
func Parse(text string, strict bool) (*AST, error) {
	if len(bytes.TrimSpace([]byte(text))) == 0 {
		return nil, ir.NewCompileError(ir.ErrCodeMissingSource, "", "circuit source is empty")
	}
	dec := yaml.NewDecoder(bytes.NewReader([]byte(text)))
	dec.KnownFields(true)

	var ast AST
	if err := dec.Decode(&ast); err != nil {
		return nil, invalid("%v", err)
	}
	if strict && ast.UsePulses == "" {
		return nil, invalid("usepulses is required")
	}

	seen := make(map[string]bool)
	for _, r := range ast.Registers {
		switch {
		case !identifier.MatchString(r.Name):
			return nil, invalid("invalid register name %q", r.Name)
		case r.Size < 1:
			return nil, invalid("register %s has size %d", r.Name, r.Size)
		case seen[r.Name]:
			return nil, invalid("register %s declared twice", r.Name)
		}
		seen[r.Name] = true
	}
	for name := range ast.Let {
		if seen[name] {
			return nil, invalid("constant %s shadows a register", name)
		}
	}
	if err := validateBody(ast.Body, "body"); err != nil {
		return nil, err
	}
	return &ast, nil
}
