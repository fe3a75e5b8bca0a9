package command

import (
	"strings"

	"github.com/spf13/cast"

	"github.com/narratek/storyvars/internal/path"
	"github.com/narratek/storyvars/internal/vars"
)

// execSetVar handles both surface forms of setVar: the attribute form
// (name="X" value="Y", dotted names allowed) and the content form of
// ;-separated assignment expressions.
func (in *Interpreter) execSetVar(store *vars.Store, attrs map[string]string, body string, res *Result) bool {
	name, hasName := attrs["name"]
	value, hasValue := attrs["value"]

	if hasName && hasValue {
		in.assign(store, strings.TrimSpace(name), value, res)
		return false
	}

	for _, expr := range strings.Split(body, ";") {
		expr = strings.TrimSpace(expr)
		if expr == "" {
			continue
		}
		in.applyAssignment(store, expr, res)
	}
	return false
}

// applyAssignment executes one content-form expression: name = value,
// name += value, name -= value, name++, name--.
func (in *Interpreter) applyAssignment(store *vars.Store, expr string, res *Result) {
	switch {
	case strings.HasSuffix(expr, "++"):
		in.increment(store, strings.TrimSpace(strings.TrimSuffix(expr, "++")), 1, res)
	case strings.HasSuffix(expr, "--"):
		in.increment(store, strings.TrimSpace(strings.TrimSuffix(expr, "--")), -1, res)
	case strings.Contains(expr, "+="):
		parts := strings.SplitN(expr, "+=", 2)
		in.compound(store, strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), "+=", res)
	case strings.Contains(expr, "-="):
		parts := strings.SplitN(expr, "-=", 2)
		in.compound(store, strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), "-=", res)
	case strings.Contains(expr, "="):
		parts := strings.SplitN(expr, "=", 2)
		in.assign(store, strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), res)
	default:
		res.warn("setVar: unrecognized expression %q ignored", expr)
	}
}

// assign sets a variable (or a dotted path inside one) to a literal value.
// Undeclared plain names are auto-registered with an inferred type; dotted
// paths auto-register their root as an object and auto-create intermediate
// containers.
func (in *Interpreter) assign(store *vars.Store, name, literal string, res *Result) {
	if name == "" {
		res.warn("setVar: missing variable name")
		return
	}

	if strings.Contains(name, ".") {
		in.assignPath(store, name, literal, res)
		return
	}

	existing, ok := store.Variable(name)
	if !ok {
		t, val := vars.ParseInferred(literal)
		store.SetVariable(name, &vars.Variable{Type: t, Value: val})
		res.info("Variable %q auto-registered (%s) = %s", name, t, vars.RenderValue(val))
		res.Changed = true
		return
	}

	old := existing.Value
	existing.Value = vars.ParseValue(literal, existing.Type)
	res.info("Variable %q updated: %s -> %s", name, vars.RenderValue(old), vars.RenderValue(existing.Value))
	res.Changed = true
}

// assignPath addresses a nested path inside an object/array-typed root
// variable, auto-creating the root and every intermediate container.
func (in *Interpreter) assignPath(store *vars.Store, dotted, literal string, res *Result) {
	segs := path.Parse(dotted)
	if len(segs) < 2 || segs[0].IsIndex {
		res.warn("setVar: invalid path %q", dotted)
		return
	}
	rootName := segs[0].Key

	root, ok := store.Variable(rootName)
	if !ok {
		root = &vars.Variable{Type: vars.TypeObject, Value: map[string]any{}}
		store.SetVariable(rootName, root)
		res.info("Variable %q auto-registered (object)", rootName)
	}
	if root.Type != vars.TypeObject && root.Type != vars.TypeArray {
		res.warn("setVar: variable %q is %s, not addressable by path", rootName, root.Type)
		return
	}
	if root.Value == nil {
		if root.Type == vars.TypeArray {
			root.Value = []any{}
		} else {
			root.Value = map[string]any{}
		}
	}

	_, leaf := vars.ParseInferred(literal)
	updated, ok := path.Set(root.Value, segs[1:], leaf)
	if !ok {
		res.warn("setVar: cannot set path %q", dotted)
		return
	}
	root.Value = updated
	res.info("Variable path %q set to %s", dotted, vars.RenderValue(leaf))
	res.Changed = true
}

// increment applies ++ or -- to a number-typed variable.
func (in *Interpreter) increment(store *vars.Store, name string, delta float64, res *Result) {
	v, ok := store.Variable(name)
	if !ok {
		res.warn("setVar: variable %q not registered, cannot increment", name)
		return
	}
	if v.Type != vars.TypeNumber {
		res.warn("setVar: %s%s ignored, %q is %s", name, opSymbol(delta), name, v.Type)
		return
	}
	old, err := cast.ToFloat64E(v.Value)
	if err != nil {
		old = 0
	}
	v.Value = old + delta
	res.info("Variable %q updated: %s -> %s", name, vars.RenderValue(old), vars.RenderValue(v.Value))
	res.Changed = true
}

func opSymbol(delta float64) string {
	if delta < 0 {
		return "--"
	}
	return "++"
}

// compound applies += or -=. += is arithmetic for numbers and concatenation
// for strings; -= is numbers only. Any other type/operator combination is
// ignored with a log entry.
func (in *Interpreter) compound(store *vars.Store, name, literal, op string, res *Result) {
	v, ok := store.Variable(name)
	if !ok {
		res.warn("setVar: variable %q not registered, %s ignored", name, op)
		return
	}

	switch {
	case v.Type == vars.TypeNumber:
		old, err := cast.ToFloat64E(v.Value)
		if err != nil {
			old = 0
		}
		operand, err := cast.ToFloat64E(strings.TrimSpace(literal))
		if err != nil {
			res.warn("setVar: %q %s %q ignored, operand is not a number", name, op, literal)
			return
		}
		if op == "-=" {
			operand = -operand
		}
		v.Value = old + operand
		res.info("Variable %q updated: %s -> %s", name, vars.RenderValue(old), vars.RenderValue(v.Value))
		res.Changed = true

	case v.Type == vars.TypeString && op == "+=":
		old, _ := v.Value.(string)
		v.Value = old + literal
		res.info("Variable %q updated: %q -> %q", name, old, v.Value)
		res.Changed = true

	default:
		res.warn("setVar: operator %s not supported for %s variable %q", op, v.Type, name)
	}
}
