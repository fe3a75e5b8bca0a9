package command

import (
	"strings"
	"testing"

	"github.com/narratek/storyvars/internal/vars"
)

func newTestInterpreter() *Interpreter {
	return New(DefaultTagNames())
}

func hasLevel(logs []LogEntry, level Level) bool {
	for _, l := range logs {
		if l.Level == level {
			return true
		}
	}
	return false
}

// TestSetVarAutoRegister verifies type inference for undeclared variables.
func TestSetVarAutoRegister(t *testing.T) {
	tests := []struct {
		value    string
		wantType vars.Type
		wantVal  any
	}{
		{"42", vars.TypeNumber, float64(42)},
		{"true", vars.TypeBoolean, true},
		{"hello", vars.TypeString, "hello"},
	}

	for _, tt := range tests {
		in := newTestInterpreter()
		store := vars.NewStore()
		res := in.ParseCommands(`before <setVar name="x" value="`+tt.value+`"/> after`, store)

		if res.CleanText != "before  after" {
			t.Errorf("value %q: CleanText = %q", tt.value, res.CleanText)
		}
		if !res.Changed {
			t.Errorf("value %q: expected Changed", tt.value)
		}
		v, ok := store.Variable("x")
		if !ok {
			t.Fatalf("value %q: variable not created", tt.value)
		}
		if v.Type != tt.wantType || v.Value != tt.wantVal {
			t.Errorf("value %q: got (%s, %#v), want (%s, %#v)", tt.value, v.Type, v.Value, tt.wantType, tt.wantVal)
		}
	}
}

// TestSetVarUpdateDeclared verifies coercion by the declared type.
func TestSetVarUpdateDeclared(t *testing.T) {
	in := newTestInterpreter()
	store := vars.NewStore()
	store.SetVariable("hp", &vars.Variable{Type: vars.TypeNumber, Value: float64(10)})

	res := in.ParseCommands(`<setVar name="hp" value="7"/>`, store)
	if !res.Changed {
		t.Fatal("expected Changed")
	}
	if v, _ := store.Variable("hp"); v.Value != float64(7) {
		t.Errorf("hp = %#v, want 7", v.Value)
	}
}

// TestSetVarContentForm verifies the ;-separated assignment expressions.
func TestSetVarContentForm(t *testing.T) {
	in := newTestInterpreter()
	store := vars.NewStore()
	store.SetVariable("gold", &vars.Variable{Type: vars.TypeNumber, Value: float64(100)})
	store.SetVariable("hp", &vars.Variable{Type: vars.TypeNumber, Value: float64(5)})
	store.SetVariable("title", &vars.Variable{Type: vars.TypeString, Value: "Sir "})

	res := in.ParseCommands(`<setVar>gold += 50; hp--; title += Galahad; mood = wary</setVar>`, store)

	if v, _ := store.Variable("gold"); v.Value != float64(150) {
		t.Errorf("gold = %#v", v.Value)
	}
	if v, _ := store.Variable("hp"); v.Value != float64(4) {
		t.Errorf("hp = %#v", v.Value)
	}
	if v, _ := store.Variable("title"); v.Value != "Sir Galahad" {
		t.Errorf("title = %#v", v.Value)
	}
	v, ok := store.Variable("mood")
	if !ok || v.Type != vars.TypeString || v.Value != "wary" {
		t.Errorf("mood auto-registration failed: %#v", v)
	}
	if res.CleanText != "" {
		t.Errorf("CleanText = %q", res.CleanText)
	}
}

// TestSetVarWrongTypeOperator verifies unsupported operator/type combos are
// ignored with a warning, not an error.
func TestSetVarWrongTypeOperator(t *testing.T) {
	in := newTestInterpreter()
	store := vars.NewStore()
	store.SetVariable("name", &vars.Variable{Type: vars.TypeString, Value: "bob"})
	store.SetVariable("ok", &vars.Variable{Type: vars.TypeBoolean, Value: true})

	res := in.ParseCommands(`<setVar>name -= x; ok += 1; name++</setVar>`, store)

	if res.Changed {
		t.Error("no mutation expected")
	}
	if !hasLevel(res.Logs, LevelWarn) {
		t.Error("expected warning entries")
	}
	if len(res.Errors) != 0 {
		t.Errorf("expected no errors, got %v", res.Errors)
	}
	if v, _ := store.Variable("name"); v.Value != "bob" {
		t.Errorf("name changed: %#v", v.Value)
	}
}

// TestSetVarDottedPath verifies auto-creation of the root and intermediate
// containers.
func TestSetVarDottedPath(t *testing.T) {
	in := newTestInterpreter()
	store := vars.NewStore()

	res := in.ParseCommands(`<setVar name="Foo.bar.0" value="x"/>`, store)
	if !res.Changed {
		t.Fatal("expected Changed")
	}

	root, ok := store.Variable("Foo")
	if !ok || root.Type != vars.TypeObject {
		t.Fatalf("Foo not auto-registered as object: %#v", root)
	}
	obj, ok := root.Value.(map[string]any)
	if !ok {
		t.Fatalf("Foo value is %T", root.Value)
	}
	arr, ok := obj["bar"].([]any)
	if !ok || len(arr) != 1 || arr[0] != "x" {
		t.Errorf("Foo.bar = %#v, want [x]", obj["bar"])
	}
}

// TestEntityDecoding verifies encoded markup is decoded before recognition,
// with &amp; decoded last.
func TestEntityDecoding(t *testing.T) {
	in := newTestInterpreter()
	store := vars.NewStore()

	res := in.ParseCommands(`&lt;setVar name=&quot;x&quot; value=&quot;1&quot;/&gt;`, store)
	if v, ok := store.Variable("x"); !ok || v.Value != float64(1) {
		t.Errorf("encoded directive not applied: %#v", v)
	}
	if strings.Contains(res.CleanText, "setVar") {
		t.Errorf("CleanText = %q", res.CleanText)
	}

	// &amp;quot; decodes to &quot; (literal), not to a double-decoded quote.
	res = in.ParseCommands(`keep &amp;quot; literal`, store)
	if res.CleanText != `keep &quot; literal` {
		t.Errorf("double decoding: %q", res.CleanText)
	}
}

// TestParseAllDecodesOnce verifies the combined register+mutation pass
// decodes entities a single time: &amp;lt; must survive as &lt;, not
// collapse to < through a second decode.
func TestParseAllDecodesOnce(t *testing.T) {
	in := newTestInterpreter()
	store := vars.NewStore()

	res := in.ParseAllCommands(`<registerVar name="hp" type="number" initVal="1"/> keep &amp;lt; literal <setVar name="hp" value="2"/>`, store)
	if res.CleanText != " keep &lt; literal " {
		t.Errorf("CleanText = %q", res.CleanText)
	}
	if v, _ := store.Variable("hp"); v == nil || v.Value != float64(2) {
		t.Errorf("hp = %#v, both directive kinds should run", v)
	}
}

// TestTagRemapping verifies a remapped vocabulary recognizes the new token
// and ignores the default one.
func TestTagRemapping(t *testing.T) {
	names := DefaultTagNames()
	names.SetVar = "sv"
	in := New(names)
	store := vars.NewStore()

	res := in.ParseCommands(`<sv name="x" value="1"/> <setVar name="y" value="2"/>`, store)
	if _, ok := store.Variable("x"); !ok {
		t.Error("remapped tag not recognized")
	}
	if _, ok := store.Variable("y"); ok {
		t.Error("default tag should not be recognized after remap")
	}
	if !strings.Contains(res.CleanText, "setVar") {
		t.Error("unrecognized tag should stay in text")
	}
}

// TestUnknownTagsUntouched verifies free text and unknown markup pass
// through.
func TestUnknownTagsUntouched(t *testing.T) {
	in := newTestInterpreter()
	store := vars.NewStore()

	text := "The <b>bold</b> knight said ${nothing} here."
	res := in.ParseCommands(text, store)
	if res.CleanText != text {
		t.Errorf("CleanText = %q", res.CleanText)
	}
	if res.Changed {
		t.Error("nothing should have changed")
	}
}
