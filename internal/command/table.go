package command

import (
	"strconv"
	"strings"

	"github.com/narratek/storyvars/internal/vars"
)

// parseRowAssignments splits a ;-separated column=value body into literal
// pairs, preserving order.
func parseRowAssignments(body string) [][2]string {
	var out [][2]string
	for _, part := range strings.Split(body, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		out = append(out, [2]string{strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])})
	}
	return out
}

// execSetTable updates columns of an existing row. Out-of-range rows and
// unknown columns are ignored silently; known columns are coerced to their
// declared type.
func (in *Interpreter) execSetTable(store *vars.Store, attrs map[string]string, body string, res *Result) bool {
	name := attrs["table"]
	table, ok := store.Table(name)
	if !ok {
		res.warn("setTable: table %q not registered", name)
		return false
	}

	rowIdx, err := strconv.Atoi(strings.TrimSpace(attrs["row"]))
	if err != nil || rowIdx < 0 || rowIdx >= len(table.Rows) {
		return false
	}

	row := table.Rows[rowIdx]
	for _, kv := range parseRowAssignments(body) {
		col, ok := table.Column(kv[0])
		if !ok {
			continue
		}
		row[col.Name] = vars.ParseValue(kv[1], col.Type)
		res.info("Table %q row %d column %q set to %s", name, rowIdx, col.Name, vars.RenderValue(row[col.Name]))
		res.Changed = true
	}
	return false
}

// execAddTableRow appends a row if and only if every required column
// received a value; otherwise the whole row is discarded.
func (in *Interpreter) execAddTableRow(store *vars.Store, attrs map[string]string, body string, res *Result) bool {
	name := attrs["table"]
	table, ok := store.Table(name)
	if !ok {
		res.warn("addTableRow: table %q not registered", name)
		return false
	}

	row := make(vars.Row)
	for _, kv := range parseRowAssignments(body) {
		col, ok := table.Column(kv[0])
		if !ok {
			continue
		}
		row[col.Name] = vars.ParseValue(kv[1], col.Type)
	}

	if missing := table.MissingRequired(row); len(missing) > 0 {
		res.errorf("addTableRow: table %q row discarded, missing required columns: %s",
			name, strings.Join(missing, ", "))
		return false
	}

	table.Rows = append(table.Rows, row)
	res.info("Table %q row %d added: %s", name, len(table.Rows)-1, vars.RenderValue(map[string]any(row)))
	res.Changed = true
	return false
}

// execRemoveTableRow removes the row at the given index, renumbering every
// following row.
func (in *Interpreter) execRemoveTableRow(store *vars.Store, attrs map[string]string, res *Result) bool {
	name := attrs["table"]
	table, ok := store.Table(name)
	if !ok {
		res.warn("removeTableRow: table %q not registered", name)
		return false
	}

	rowIdx, err := strconv.Atoi(strings.TrimSpace(attrs["row"]))
	if err != nil || rowIdx < 0 || rowIdx >= len(table.Rows) {
		res.warn("removeTableRow: table %q has no row %s", name, attrs["row"])
		return false
	}

	removed := table.Rows[rowIdx]
	table.Rows = append(table.Rows[:rowIdx], table.Rows[rowIdx+1:]...)
	res.info("Table %q row %d removed: %s", name, rowIdx, vars.RenderValue(map[string]any(removed)))
	res.Changed = true
	return false
}
