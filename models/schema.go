package models

// Schema is the set of source columns present in a table, with the effective
// kind of each. It is a value type; mutators return a modified copy.
type Schema struct {
	kinds map[string]Kind
}

// NewSchema returns a schema holding the named columns with their declared
// kinds. Unknown names are ignored.
func NewSchema(names ...string) Schema {
	s := Schema{kinds: make(map[string]Kind, len(names))}
	for _, n := range names {
		if c, ok := LookupColumn(n); ok {
			s.kinds[c.Name] = c.Kind
		}
	}
	return s
}

// FullSchema returns a schema holding every known column.
func FullSchema() Schema {
	names := make([]string, len(Columns))
	for i, c := range Columns {
		names[i] = c.Name
	}
	return NewSchema(names...)
}

func (s Schema) clone() Schema {
	out := Schema{kinds: make(map[string]Kind, len(s.kinds))}
	for k, v := range s.kinds {
		out.kinds[k] = v
	}
	return out
}

// Has reports whether the column is present.
func (s Schema) Has(name string) bool {
	_, ok := s.kinds[name]
	return ok
}

// KindOf returns the effective kind of a present column.
func (s Schema) KindOf(name string) (Kind, bool) {
	k, ok := s.kinds[name]
	return k, ok
}

// Without returns a copy of the schema with the column removed.
func (s Schema) Without(name string) Schema {
	out := s.clone()
	delete(out.kinds, name)
	return out
}

// WithKind returns a copy with the column's effective kind replaced.
func (s Schema) WithKind(name string, k Kind) Schema {
	if !s.Has(name) {
		return s
	}
	out := s.clone()
	out.kinds[name] = k
	return out
}

// Columns lists the present columns in canonical order.
func (s Schema) Columns() []Column {
	out := make([]Column, 0, len(s.kinds))
	for _, c := range Columns {
		if k, ok := s.kinds[c.Name]; ok {
			c.Kind = k
			out = append(out, c)
		}
	}
	return out
}

// Names lists the present column names in canonical order.
func (s Schema) Names() []string {
	cols := s.Columns()
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

// Len returns the number of present columns.
func (s Schema) Len() int {
	return len(s.kinds)
}

// NumericColumns lists the present numeric columns in canonical order.
func (s Schema) NumericColumns() []Column {
	var out []Column
	for _, c := range s.Columns() {
		if c.Kind == Numeric {
			out = append(out, c)
		}
	}
	return out
}
