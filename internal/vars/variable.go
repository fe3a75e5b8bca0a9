// Package vars implements the variable data model for one scope: plain
// variables, relational-style tables, and condition-gated hidden variables.
package vars

// Type identifies the declared type of a variable or table column.
type Type string

const (
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
	TypeObject  Type = "object"
	TypeArray   Type = "array"
)

// Valid reports whether t is one of the five declared types.
func (t Type) Valid() bool {
	switch t {
	case TypeString, TypeNumber, TypeBoolean, TypeObject, TypeArray:
		return true
	}
	return false
}

// ConditionBranch is one entry of a conditional variable's branch list.
// An empty Condition always matches (else-branch) and must come last.
type ConditionBranch struct {
	Condition string `json:"condition,omitempty"`
	Value     any    `json:"value"`
}

// Variable holds one typed value. Value is string, float64, bool,
// map[string]any, or []any depending on Type. When IsConditional is set the
// effective value is chosen from Branches at read time and Value is the
// last-resort fallback.
type Variable struct {
	Type          Type              `json:"type"`
	Value         any               `json:"value"`
	IsConditional bool              `json:"isConditional,omitempty"`
	Branches      []ConditionBranch `json:"branches,omitempty"`
}

// HiddenVariable is a value revealed only while Condition holds. With
// HasExpiration set, the first successful reveal flips IsExpired and every
// later read resolves empty regardless of the condition.
type HiddenVariable struct {
	Condition     string `json:"condition"`
	Value         any    `json:"value"`
	HasExpiration bool   `json:"hasExpiration,omitempty"`
	IsExpired     bool   `json:"isExpired,omitempty"`
}

// Clone returns a deep copy of the variable.
func (v *Variable) Clone() *Variable {
	if v == nil {
		return nil
	}
	c := &Variable{
		Type:          v.Type,
		Value:         CopyValue(v.Value),
		IsConditional: v.IsConditional,
	}
	if v.Branches != nil {
		c.Branches = make([]ConditionBranch, len(v.Branches))
		for i, b := range v.Branches {
			c.Branches[i] = ConditionBranch{Condition: b.Condition, Value: CopyValue(b.Value)}
		}
	}
	return c
}

// Clone returns a deep copy of the hidden variable.
func (h *HiddenVariable) Clone() *HiddenVariable {
	if h == nil {
		return nil
	}
	return &HiddenVariable{
		Condition:     h.Condition,
		Value:         CopyValue(h.Value),
		HasExpiration: h.HasExpiration,
		IsExpired:     h.IsExpired,
	}
}

// CopyValue deep-copies a typed value. Scalars are returned as-is; maps and
// slices are copied recursively.
func CopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, e := range val {
			m[k] = CopyValue(e)
		}
		return m
	case []any:
		s := make([]any, len(val))
		for i, e := range val {
			s[i] = CopyValue(e)
		}
		return s
	default:
		return v
	}
}
