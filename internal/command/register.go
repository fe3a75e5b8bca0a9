package command

import (
	"encoding/json"
	"strings"

	"github.com/buger/jsonparser"

	"github.com/narratek/storyvars/internal/vars"
)

// literalFromJSON converts one jsonparser-extracted value into the typed
// representation the store uses.
func literalFromJSON(val []byte, vt jsonparser.ValueType) any {
	switch vt {
	case jsonparser.String:
		s, err := jsonparser.ParseString(val)
		if err != nil {
			return string(val)
		}
		return s
	case jsonparser.Number:
		n, err := jsonparser.ParseFloat(val)
		if err != nil {
			return float64(0)
		}
		return n
	case jsonparser.Boolean:
		b, _ := jsonparser.ParseBoolean(val)
		return b
	case jsonparser.Object:
		var m map[string]any
		if err := json.Unmarshal(val, &m); err != nil {
			return map[string]any{}
		}
		return m
	case jsonparser.Array:
		var s []any
		if err := json.Unmarshal(val, &s); err != nil {
			return []any{}
		}
		return s
	default:
		return nil
	}
}

// parseBranches decodes a conditional-branch list literal. Fails on any
// entry without a value.
func parseBranches(data []byte) ([]vars.ConditionBranch, error) {
	var branches []vars.ConditionBranch
	var bad error
	_, err := jsonparser.ArrayEach(data, func(entry []byte, dataType jsonparser.ValueType, _ int, cbErr error) {
		if bad != nil {
			return
		}
		if cbErr != nil {
			bad = cbErr
			return
		}
		condition, _ := jsonparser.GetString(entry, "condition")
		val, vt, _, valErr := jsonparser.Get(entry, "value")
		if valErr != nil {
			bad = valErr
			return
		}
		branches = append(branches, vars.ConditionBranch{
			Condition: condition,
			Value:     literalFromJSON(val, vt),
		})
	})
	if err != nil {
		return nil, err
	}
	if bad != nil {
		return nil, bad
	}
	return branches, nil
}

// normalizeBranches enforces deterministic evaluation: anything after the
// first unconditioned branch can never match and is dropped.
func normalizeBranches(branches []vars.ConditionBranch, res *Result, name string) []vars.ConditionBranch {
	for i, b := range branches {
		if strings.TrimSpace(b.Condition) == "" && i < len(branches)-1 {
			res.warn("registerVar: %q branches after the else-branch are unreachable and were dropped", name)
			return branches[:i+1]
		}
	}
	return branches
}

// execRegisterVar declares one variable. The conditional branch list may
// arrive as a "conditional" attribute or as the tag body; a malformed list
// leaves the tag in the text and reports an error.
func (in *Interpreter) execRegisterVar(store *vars.Store, attrs map[string]string, body string, res *Result) bool {
	name := strings.TrimSpace(attrs["name"])
	if name == "" {
		res.warn("registerVar: missing variable name")
		return false
	}

	initVal := attrs["initVal"]
	t := vars.Type(attrs["type"])
	if !t.Valid() {
		t = vars.InferType(initVal)
	}

	conditional := attrs["conditional"]
	if conditional == "" {
		conditional = strings.TrimSpace(body)
	}

	v := &vars.Variable{Type: t, Value: vars.ParseValue(initVal, t)}
	if conditional != "" {
		branches, err := parseBranches([]byte(conditional))
		if err != nil || len(branches) == 0 {
			res.errorf("registerVar: %q has a malformed conditional branch list", name)
			return true
		}
		v.IsConditional = true
		v.Branches = normalizeBranches(branches, res, name)
	}

	store.SetVariable(name, v)
	res.info("Variable %q registered (%s) = %s", name, t, vars.RenderValue(v.Value))
	res.Changed = true
	return false
}

// execRegisterVars declares a batch of variables from a JSON array body of
// {name, type, initVal, conditional} objects. The batch is all-or-nothing:
// every entry is validated before any is applied, so a malformed entry never
// leaves the store half-updated behind a retained tag.
func (in *Interpreter) execRegisterVars(store *vars.Store, body string, res *Result) bool {
	type pending struct {
		name string
		v    *vars.Variable
	}
	var batch []pending
	malformed := false
	_, err := jsonparser.ArrayEach([]byte(strings.TrimSpace(body)), func(entry []byte, dataType jsonparser.ValueType, _ int, cbErr error) {
		if malformed {
			return
		}
		if cbErr != nil || dataType != jsonparser.Object {
			malformed = true
			return
		}
		name, nameErr := jsonparser.GetString(entry, "name")
		if nameErr != nil || name == "" {
			malformed = true
			return
		}

		initVal, _ := jsonparser.GetString(entry, "initVal")
		t := vars.Type("")
		if ts, tErr := jsonparser.GetString(entry, "type"); tErr == nil {
			t = vars.Type(ts)
		}
		if !t.Valid() {
			t = vars.InferType(initVal)
		}

		v := &vars.Variable{Type: t, Value: vars.ParseValue(initVal, t)}
		if condRaw, vt, _, condErr := jsonparser.Get(entry, "conditional"); condErr == nil && vt == jsonparser.Array {
			branches, brErr := parseBranches(condRaw)
			if brErr != nil {
				malformed = true
				return
			}
			v.IsConditional = true
			v.Branches = normalizeBranches(branches, res, name)
		}
		batch = append(batch, pending{name: name, v: v})
	})
	if err != nil || malformed {
		res.errorf("registerVars: malformed variable list, no variables registered")
		return true
	}
	if len(batch) == 0 {
		res.warn("registerVars: empty variable list")
		return false
	}

	for _, p := range batch {
		store.SetVariable(p.name, p.v)
		res.info("Variable %q registered (%s) = %s", p.name, p.v.Type, vars.RenderValue(p.v.Value))
	}
	res.Changed = true
	return false
}

// execUnregisterVar removes a variable; absent names are a no-op.
func (in *Interpreter) execUnregisterVar(store *vars.Store, attrs map[string]string, res *Result) bool {
	name := strings.TrimSpace(attrs["name"])
	if store.RemoveVariable(name) {
		res.info("Variable %q unregistered", name)
		res.Changed = true
	} else {
		res.info("Variable %q was not registered", name)
	}
	return false
}

// execUnregisterVars removes a list of variables named in the "names"
// attribute or the tag body, separated by commas or semicolons.
func (in *Interpreter) execUnregisterVars(store *vars.Store, attrs map[string]string, body string, res *Result) bool {
	list := attrs["names"]
	if list == "" {
		list = body
	}
	for _, name := range strings.FieldsFunc(list, func(r rune) bool { return r == ',' || r == ';' }) {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if store.RemoveVariable(name) {
			res.info("Variable %q unregistered", name)
			res.Changed = true
		}
	}
	return false
}

// execRegisterTable creates an empty table from a column-definition literal,
// replacing any prior table of the same name. A malformed literal leaves the
// tag in the text.
func (in *Interpreter) execRegisterTable(store *vars.Store, attrs map[string]string, body string, res *Result) bool {
	name := strings.TrimSpace(attrs["name"])
	if name == "" {
		res.warn("registerTable: missing table name")
		return false
	}

	var columns []vars.Column
	malformed := false
	_, err := jsonparser.ArrayEach([]byte(strings.TrimSpace(body)), func(entry []byte, dataType jsonparser.ValueType, _ int, cbErr error) {
		if cbErr != nil || dataType != jsonparser.Object {
			malformed = true
			return
		}
		colName, nameErr := jsonparser.GetString(entry, "name")
		if nameErr != nil || colName == "" {
			malformed = true
			return
		}
		colType := vars.TypeString
		if ts, tErr := jsonparser.GetString(entry, "type"); tErr == nil && vars.Type(ts).Valid() {
			colType = vars.Type(ts)
		}
		required, _ := jsonparser.GetBoolean(entry, "required")
		columns = append(columns, vars.Column{Name: colName, Type: colType, Required: required})
	})
	if err != nil || malformed || len(columns) == 0 {
		res.errorf("registerTable: %q has a malformed column definition list", name)
		return true
	}

	store.SetTable(&vars.Table{Name: name, Columns: columns, Rows: []vars.Row{}})
	res.info("Table %q registered with %d columns", name, len(columns))
	res.Changed = true
	return false
}

// execUnregisterTable removes a table; absent names are a no-op.
func (in *Interpreter) execUnregisterTable(store *vars.Store, attrs map[string]string, res *Result) bool {
	name := strings.TrimSpace(attrs["name"])
	if store.RemoveTable(name) {
		res.info("Table %q unregistered", name)
		res.Changed = true
	} else {
		res.info("Table %q was not registered", name)
	}
	return false
}

// execRegisterHiddenVar declares or overwrites a hidden variable. The tag
// body is the concealed value.
func (in *Interpreter) execRegisterHiddenVar(store *vars.Store, attrs map[string]string, body string, res *Result, logTransition bool) bool {
	name := strings.TrimSpace(attrs["name"])
	if name == "" {
		res.warn("registerHiddenVar: missing variable name")
		return false
	}

	hasExpiration := attrs["hasExpiration"] == "true"
	h := &vars.HiddenVariable{
		Condition:     attrs["condition"],
		Value:         body,
		HasExpiration: hasExpiration,
	}

	if prior, ok := store.HiddenVariable(name); ok && logTransition {
		res.info("Hidden variable %q updated: %s -> %s", name, vars.RenderValue(prior.Value), vars.RenderValue(h.Value))
	} else {
		res.info("Hidden variable %q registered", name)
	}
	store.SetHidden(name, h)
	res.Changed = true
	return false
}

// execSetHiddenVar has the same surface form as registerHiddenVar and always
// overwrites, logging the old-to-new transition when a prior value existed.
func (in *Interpreter) execSetHiddenVar(store *vars.Store, attrs map[string]string, body string, res *Result) bool {
	return in.execRegisterHiddenVar(store, attrs, body, res, true)
}

// execUnregisterHiddenVar removes a hidden variable; absent names are a
// no-op.
func (in *Interpreter) execUnregisterHiddenVar(store *vars.Store, attrs map[string]string, res *Result) bool {
	name := strings.TrimSpace(attrs["name"])
	if store.RemoveHidden(name) {
		res.info("Hidden variable %q unregistered", name)
		res.Changed = true
	} else {
		res.info("Hidden variable %q was not registered", name)
	}
	return false
}
