// Package macro resolves ${...} references in narrative text against one
// scope's variable store: scalar lookups, dotted table and object paths,
// conditional variables, hidden-variable reveals, and deferred dynamic
// macros for externally-fetched history.
package macro

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/narratek/storyvars/internal/cond"
	"github.com/narratek/storyvars/internal/path"
	"github.com/narratek/storyvars/internal/vars"
)

// MaxPasses bounds nested macro resolution: a value that itself contains a
// macro reference is resolved inside-out across passes.
const MaxPasses = 10

// macroPattern matches innermost ${...} bodies.
var macroPattern = regexp.MustCompile(`\$\{([^${}]+)\}`)

// Engine resolves macros. It is read-mostly and takes no scope lock; the one
// side effect, hidden-variable expiry, is reported to the caller for a
// lock-protected persist.
type Engine struct {
	eval      *cond.Evaluator
	maxPasses int
}

// NewEngine creates a macro engine sharing the given condition evaluator.
func NewEngine(eval *cond.Evaluator) *Engine {
	return &Engine{eval: eval, maxPasses: MaxPasses}
}

// SetMaxPasses overrides the nested-resolution pass limit. Values below one
// are ignored.
func (e *Engine) SetMaxPasses(n int) {
	if n >= 1 {
		e.maxPasses = n
	}
}

// Replace substitutes every ${...} occurrence in text. defaultID is the
// scope's own identity, used when a dynamic macro names no explicit id. The
// second return lists hidden variables that expired during resolution; the
// caller persists that mutation on its next lock-protected write.
func (e *Engine) Replace(text string, store *vars.Store, defaultID string) (string, []string) {
	var expired []string

	for pass := 0; pass < e.maxPasses; pass++ {
		substituted := false
		text = macroPattern.ReplaceAllStringFunc(text, func(match string) string {
			body := match[2 : len(match)-1]
			replacement, names := e.resolve(strings.TrimSpace(body), store, defaultID)
			expired = append(expired, names...)
			substituted = true
			return replacement
		})
		if !substituted {
			break
		}
	}
	return text, expired
}

// lookup builds the identifier resolver for condition evaluation: bare
// identifiers read the raw value of same-scope variables.
func (e *Engine) lookup(store *vars.Store) cond.Lookup {
	return func(name string) (any, bool) {
		v, ok := store.Variable(name)
		if !ok {
			return nil, false
		}
		return v.Value, true
	}
}

// resolve produces the replacement for one macro body, trying in order:
// table row-0 column, table column with row index, object/array dotted path,
// hidden variable, dynamic macro, conditional variable, plain variable. An
// unresolvable name is an empty string, never an error.
func (e *Engine) resolve(body string, store *vars.Store, defaultID string) (string, []string) {
	if body == "" {
		return "", nil
	}

	if strings.Contains(body, ".") {
		return e.resolvePath(body, store), nil
	}

	if h, ok := store.HiddenVariable(body); ok {
		return e.resolveHidden(body, h, store)
	}

	if replacement, ok := e.resolveDynamic(body, defaultID); ok {
		return replacement, nil
	}

	if v, ok := store.Variable(body); ok {
		if v.IsConditional {
			return vars.RenderValue(e.conditionalValue(v, store)), nil
		}
		return vars.RenderValue(v.Value), nil
	}

	return "", nil
}

// resolvePath handles dotted macro bodies. Two segments over a registered
// table read row 0; three segments read an explicit row, with a
// number-variable indirection allowed for the index; anything else is an
// object/array path on a declared variable.
func (e *Engine) resolvePath(body string, store *vars.Store) string {
	segs := path.Parse(body)
	if len(segs) == 0 {
		return ""
	}

	if table, ok := store.Table(segs[0].Key); ok {
		switch len(segs) {
		case 2:
			return e.tableCell(table, segs[1].Key, 0)
		case 3:
			rowIdx, ok := e.rowIndex(segs[2], store)
			if !ok {
				return ""
			}
			return e.tableCell(table, segs[1].Key, rowIdx)
		}
		return ""
	}

	root, ok := store.Variable(segs[0].Key)
	if !ok || len(segs) < 2 {
		return ""
	}
	val, ok := path.Get(root.Value, segs[1:])
	if !ok {
		return ""
	}
	return vars.RenderValue(val)
}

// rowIndex resolves the third path segment: a literal integer, or the name
// of a number-typed variable supplying the index.
func (e *Engine) rowIndex(seg path.Segment, store *vars.Store) (int, bool) {
	if seg.IsIndex {
		return seg.Index, true
	}
	v, ok := store.Variable(seg.Key)
	if !ok || v.Type != vars.TypeNumber {
		return 0, false
	}
	idx, err := cast.ToIntE(v.Value)
	if err != nil {
		return 0, false
	}
	return idx, true
}

func (e *Engine) tableCell(table *vars.Table, column string, rowIdx int) string {
	if rowIdx < 0 || rowIdx >= len(table.Rows) {
		return ""
	}
	val, ok := table.Rows[rowIdx][column]
	if !ok {
		return ""
	}
	return vars.RenderValue(val)
}

// resolveHidden gates a hidden variable behind its condition. With
// expiration, the first successful reveal marks the variable expired and
// every later read is empty regardless of the condition.
func (e *Engine) resolveHidden(name string, h *vars.HiddenVariable, store *vars.Store) (string, []string) {
	if h.HasExpiration && h.IsExpired {
		return "", nil
	}
	if !e.eval.Eval(h.Condition, e.lookup(store)) {
		return "", nil
	}
	value := vars.RenderValue(h.Value)
	if h.HasExpiration {
		h.IsExpired = true
		return value, []string{name}
	}
	return value, nil
}

// conditionalValue evaluates branches in order; the first true condition
// wins, an unconditioned branch always matches, and no match falls back to
// the variable's own value.
func (e *Engine) conditionalValue(v *vars.Variable, store *vars.Store) any {
	for _, b := range v.Branches {
		if strings.TrimSpace(b.Condition) == "" || e.eval.Eval(b.Condition, e.lookup(store)) {
			return b.Value
		}
	}
	return v.Value
}

// resolveDynamic rewrites the fixed dynamic macro names into deferred
// placeholder tokens. Optional :id:count arguments default to the scope's
// own identity and 10 entries.
func (e *Engine) resolveDynamic(body, defaultID string) (string, bool) {
	parts := strings.Split(body, ":")

	var kind Kind
	switch parts[0] {
	case "scriptHistoryRecent":
		kind = ScriptHistory
	case "characterChatRecent":
		kind = ChatHistory
	default:
		return "", false
	}

	id := defaultID
	count := DefaultCount
	if len(parts) > 1 && parts[1] != "" {
		id = parts[1]
	}
	if len(parts) > 2 {
		if n, err := strconv.Atoi(parts[2]); err == nil && n > 0 {
			count = n
		}
	}
	return Placeholder(kind, id, count), true
}
