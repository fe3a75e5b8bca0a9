// Package command implements the tag-based directive interpreter. Directives
// are HTML-style tags embedded in free-form narrative text; each recognized
// tag mutates the scope's variable store, is removed from the text, and
// yields a human-readable change-log line. Recognition is literal markup
// matching over the raw text, no AST.
package command

import (
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"

	"github.com/narratek/storyvars/internal/vars"
)

// Level classifies a change-log entry.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

// String returns the level's display name.
func (l Level) String() string {
	switch l {
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// LogEntry is one human-readable line describing a directive's effect.
type LogEntry struct {
	Level   Level
	Message string
}

// Result is the outcome of one parse pass over a block of text.
type Result struct {
	CleanText string
	Logs      []LogEntry
	Changed   bool
	Errors    []string
}

func (r *Result) info(format string, args ...any) {
	r.Logs = append(r.Logs, LogEntry{LevelInfo, fmt.Sprintf(format, args...)})
}

func (r *Result) warn(format string, args ...any) {
	r.Logs = append(r.Logs, LogEntry{LevelWarn, fmt.Sprintf(format, args...)})
}

func (r *Result) errorf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.Logs = append(r.Logs, LogEntry{LevelError, msg})
	r.Errors = append(r.Errors, msg)
}

// TagNames maps command kinds to their literal tag tokens. Callers may remap
// individual tokens; the attribute/content grammar per kind is fixed.
type TagNames struct {
	SetVar            string
	RegisterVar       string
	RegisterVars      string
	UnregisterVar     string
	UnregisterVars    string
	RegisterTable     string
	UnregisterTable   string
	RegisterHiddenVar string
	UnregisterHidden  string
	SetTable          string
	AddTableRow       string
	RemoveTableRow    string
	SetHiddenVar      string
}

// DefaultTagNames returns the fixed default tag vocabulary.
func DefaultTagNames() TagNames {
	return TagNames{
		SetVar:            "setVar",
		RegisterVar:       "registerVar",
		RegisterVars:      "registerVars",
		UnregisterVar:     "unregisterVar",
		UnregisterVars:    "unregisterVars",
		RegisterTable:     "registerTable",
		UnregisterTable:   "unregisterTable",
		RegisterHiddenVar: "registerHiddenVar",
		UnregisterHidden:  "unregisterHiddenVar",
		SetTable:          "setTable",
		AddTableRow:       "addTableRow",
		RemoveTableRow:    "removeTableRow",
		SetHiddenVar:      "setHiddenVar",
	}
}

// Interpreter recognizes and executes directives against a variable store.
// Safe for concurrent use; it holds no store state of its own.
type Interpreter struct {
	names     TagNames
	verbosity int

	mu       sync.Mutex
	patterns map[string]*regexp.Regexp
}

// New creates an interpreter with the given tag vocabulary.
func New(names TagNames) *Interpreter {
	return &Interpreter{
		names:    names,
		patterns: make(map[string]*regexp.Regexp),
	}
}

// SetVerbosity sets the diagnostic logging level (0 = silent).
func (in *Interpreter) SetVerbosity(level int) {
	in.verbosity = level
}

// tagPattern returns the compiled pattern for one tag token. Matches both
// the self-closing form <tag attrs/> and the paired form <tag attrs>body</tag>.
// Group 1 is the attribute text, group 2 the body (empty when self-closing).
func (in *Interpreter) tagPattern(name string) *regexp.Regexp {
	in.mu.Lock()
	defer in.mu.Unlock()
	if p, ok := in.patterns[name]; ok {
		return p
	}
	quoted := regexp.QuoteMeta(name)
	p := regexp.MustCompile(`(?s)<` + quoted + `\b([^>]*?)(?:/>|>(.*?)</` + quoted + `\s*>)`)
	in.patterns[name] = p
	return p
}

var attrPattern = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(?:"([^"]*)"|'([^']*)')`)

// parseAttrs extracts attribute key/value pairs from a tag's attribute text.
func parseAttrs(attrText string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range attrPattern.FindAllStringSubmatch(attrText, -1) {
		val := m[2]
		if val == "" && m[3] != "" {
			val = m[3]
		}
		attrs[m[1]] = val
	}
	return attrs
}

// decodeEntities reverses HTML-style entity encoding of markup-significant
// characters. &amp; is decoded last to avoid double-decoding.
func decodeEntities(text string) string {
	if !strings.Contains(text, "&") {
		return text
	}
	text = strings.ReplaceAll(text, "&quot;", `"`)
	text = strings.ReplaceAll(text, "&#39;", "'")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&amp;", "&")
	return text
}

// tagHandler executes one matched directive. Returning keep=true leaves the
// raw tag in the output text (malformed-payload policy); otherwise the tag
// is consumed regardless of whether it had an effect.
type tagHandler func(attrs map[string]string, body string, res *Result) (keep bool)

// apply runs one tag's handler over every occurrence in text.
func (in *Interpreter) apply(text, tag string, res *Result, h tagHandler) string {
	if tag == "" || !strings.Contains(text, "<"+tag) {
		return text
	}
	return in.tagPattern(tag).ReplaceAllStringFunc(text, func(match string) string {
		sub := in.tagPattern(tag).FindStringSubmatch(match)
		attrs := parseAttrs(sub[1])
		body := sub[2]
		if in.verbosity >= 3 {
			log.Printf("[v3] directive %s attrs=%v", tag, attrs)
		}
		if h(attrs, body, res) {
			return match
		}
		return ""
	})
}

// ParseCommands recognizes and executes the mutation directives in order:
// setVar, setTable, addTableRow, removeTableRow, setHiddenVar. Register and
// unregister directives are handled by ParseRegisterCommands, which must run
// first when both may be present; when one text carries both kinds, use
// ParseAllCommands so entities are decoded exactly once.
func (in *Interpreter) ParseCommands(text string, store *vars.Store) Result {
	res := Result{}
	res.CleanText = in.runCommands(decodeEntities(text), store, &res)
	return res
}

func (in *Interpreter) runCommands(text string, store *vars.Store, res *Result) string {
	text = in.apply(text, in.names.SetVar, res, func(attrs map[string]string, body string, r *Result) bool {
		return in.execSetVar(store, attrs, body, r)
	})
	text = in.apply(text, in.names.SetTable, res, func(attrs map[string]string, body string, r *Result) bool {
		return in.execSetTable(store, attrs, body, r)
	})
	text = in.apply(text, in.names.AddTableRow, res, func(attrs map[string]string, body string, r *Result) bool {
		return in.execAddTableRow(store, attrs, body, r)
	})
	text = in.apply(text, in.names.RemoveTableRow, res, func(attrs map[string]string, body string, r *Result) bool {
		return in.execRemoveTableRow(store, attrs, r)
	})
	text = in.apply(text, in.names.SetHiddenVar, res, func(attrs map[string]string, body string, r *Result) bool {
		return in.execSetHiddenVar(store, attrs, body, r)
	})
	return text
}

// ParseRegisterCommands recognizes and executes declaration directives:
// registerVar, registerVars, unregisterVar, unregisterVars, registerTable,
// unregisterTable, registerHiddenVar, unregisterHiddenVar.
func (in *Interpreter) ParseRegisterCommands(text string, store *vars.Store) Result {
	res := Result{}
	res.CleanText = in.runRegisterCommands(decodeEntities(text), store, &res)
	return res
}

// ParseAllCommands runs the declaration directives and then the mutation
// directives over a single entity decode of text, for inputs that may carry
// both kinds. Chaining the two single-kind entry points instead would decode
// entities twice.
func (in *Interpreter) ParseAllCommands(text string, store *vars.Store) Result {
	res := Result{}
	text = decodeEntities(text)
	text = in.runRegisterCommands(text, store, &res)
	res.CleanText = in.runCommands(text, store, &res)
	return res
}

func (in *Interpreter) runRegisterCommands(text string, store *vars.Store, res *Result) string {
	text = in.apply(text, in.names.RegisterVar, res, func(attrs map[string]string, body string, r *Result) bool {
		return in.execRegisterVar(store, attrs, body, r)
	})
	text = in.apply(text, in.names.RegisterVars, res, func(attrs map[string]string, body string, r *Result) bool {
		return in.execRegisterVars(store, body, r)
	})
	text = in.apply(text, in.names.UnregisterVar, res, func(attrs map[string]string, body string, r *Result) bool {
		return in.execUnregisterVar(store, attrs, r)
	})
	text = in.apply(text, in.names.UnregisterVars, res, func(attrs map[string]string, body string, r *Result) bool {
		return in.execUnregisterVars(store, attrs, body, r)
	})
	text = in.apply(text, in.names.RegisterTable, res, func(attrs map[string]string, body string, r *Result) bool {
		return in.execRegisterTable(store, attrs, body, r)
	})
	text = in.apply(text, in.names.UnregisterTable, res, func(attrs map[string]string, body string, r *Result) bool {
		return in.execUnregisterTable(store, attrs, r)
	})
	text = in.apply(text, in.names.RegisterHiddenVar, res, func(attrs map[string]string, body string, r *Result) bool {
		return in.execRegisterHiddenVar(store, attrs, body, r, false)
	})
	text = in.apply(text, in.names.UnregisterHidden, res, func(attrs map[string]string, body string, r *Result) bool {
		return in.execUnregisterHiddenVar(store, attrs, r)
	})
	return text
}
