// Package cond evaluates the boolean-condition subset used by hidden
// variables and conditional-variable branches. Conditions are rewritten into
// Lua expressions (identifiers replaced by variable values, C-style boolean
// operators normalized to and/or/not) and run in a restricted Lua state with
// no libraries loaded. Every failure evaluates to false.
package cond

import (
	"strconv"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// Lookup resolves a bare identifier to a variable value. The second return
// is false for unknown names, which leaves the identifier in place so the
// expression fails closed.
type Lookup func(name string) (any, bool)

// reserved words that are never treated as variable identifiers.
var reserved = map[string]bool{
	"and": true, "or": true, "not": true,
	"true": true, "false": true, "nil": true,
}

// Evaluator owns one Lua state. Safe for concurrent use.
type Evaluator struct {
	mu    sync.Mutex
	state *lua.LState
}

// NewEvaluator creates an evaluator with a fresh restricted Lua state.
func NewEvaluator() *Evaluator {
	return &Evaluator{state: newState()}
}

func newState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	// Reading an undefined global raises, so expressions over unknown
	// identifiers fail closed instead of comparing nils.
	mt := L.NewTable()
	L.SetField(mt, "__index", L.NewFunction(func(L *lua.LState) int {
		L.RaiseError("undefined identifier %v", L.Get(2))
		return 0
	}))
	L.SetMetatable(L.G.Global, mt)
	return L
}

// Close releases the underlying Lua state.
func (e *Evaluator) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != nil {
		e.state.Close()
		e.state = nil
	}
}

// Eval evaluates a condition expression against the given lookup. An empty
// expression is true (unconditioned branch); any parse or runtime failure,
// including comparisons against unknown identifiers, is false.
func (e *Evaluator) Eval(expr string, lookup Lookup) bool {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return true
	}

	rewritten := Rewrite(expr, lookup)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		e.state = newState()
	}
	L := e.state
	top := L.GetTop()
	if err := L.DoString("return (" + rewritten + ")"); err != nil {
		L.SetTop(top)
		return false
	}
	ret := L.Get(-1)
	L.SetTop(top)
	return lua.LVAsBool(ret)
}

// Rewrite turns a condition expression into a Lua expression: boolean
// operators are normalized and every resolvable identifier is replaced by a
// literal rendering of its value. Quoted string literals pass through
// untouched.
func Rewrite(expr string, lookup Lookup) string {
	var out strings.Builder
	out.Grow(len(expr) * 2)

	i := 0
	for i < len(expr) {
		ch := expr[i]

		// String literals are copied verbatim.
		if ch == '"' || ch == '\'' {
			j := i + 1
			for j < len(expr) {
				if expr[j] == '\\' && j+1 < len(expr) {
					j += 2
					continue
				}
				if expr[j] == ch {
					j++
					break
				}
				j++
			}
			out.WriteString(expr[i:j])
			i = j
			continue
		}

		// Operator normalization.
		if strings.HasPrefix(expr[i:], "&&") {
			out.WriteString(" and ")
			i += 2
			continue
		}
		if strings.HasPrefix(expr[i:], "||") {
			out.WriteString(" or ")
			i += 2
			continue
		}
		if strings.HasPrefix(expr[i:], "===") {
			out.WriteString("==")
			i += 3
			continue
		}
		if strings.HasPrefix(expr[i:], "!==") {
			out.WriteString("~=")
			i += 3
			continue
		}
		if strings.HasPrefix(expr[i:], "!=") {
			out.WriteString("~=")
			i += 2
			continue
		}
		if ch == '!' {
			out.WriteString(" not ")
			i++
			continue
		}

		// Identifier tokens.
		if isIdentStart(ch) {
			j := i + 1
			for j < len(expr) && isIdentPart(expr[j]) {
				j++
			}
			word := expr[i:j]
			out.WriteString(substituteIdent(word, lookup))
			i = j
			continue
		}

		out.WriteByte(ch)
		i++
	}
	return out.String()
}

func substituteIdent(word string, lookup Lookup) string {
	if reserved[word] {
		return word
	}
	if lookup == nil {
		return word
	}
	val, ok := lookup(word)
	if !ok {
		return word
	}
	switch v := val.(type) {
	case string:
		return strconv.Quote(v)
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	default:
		// Containers have no literal form; the identifier stays and the
		// expression fails closed.
		return word
	}
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || (ch >= '0' && ch <= '9')
}
