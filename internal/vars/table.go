package vars

// Column describes one column of a table: its name, declared type, and
// whether a row must supply it.
type Column struct {
	Name     string `json:"name"`
	Type     Type   `json:"type"`
	Required bool   `json:"required,omitempty"`
}

// Row maps column name to a typed value.
type Row map[string]any

// Table is an ordered set of rows over a fixed column list. Rows have no
// stable identity: they are addressed by position, and removal renumbers
// every following row.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Column returns the column definition for name.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// MissingRequired returns the names of required columns absent from row,
// in column order.
func (t *Table) MissingRequired(row Row) []string {
	var missing []string
	for _, c := range t.Columns {
		if !c.Required {
			continue
		}
		if _, ok := row[c.Name]; !ok {
			missing = append(missing, c.Name)
		}
	}
	return missing
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	c := &Table{Name: t.Name}
	c.Columns = append([]Column(nil), t.Columns...)
	if t.Rows != nil {
		c.Rows = make([]Row, len(t.Rows))
		for i, r := range t.Rows {
			row := make(Row, len(r))
			for k, v := range r {
				row[k] = CopyValue(v)
			}
			c.Rows[i] = row
		}
	}
	return c
}
