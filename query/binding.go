package query

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/syssam/portsql/schema/field"
)

// Binding is one named SQL parameter.
type Binding struct {
	Name  string
	Value any
	// Type is the semantic type the value is cast to at bind time.
	// TypeUnset passes the value through.
	Type field.Type
}

// As sets the semantic type of the binding.
func (b *Binding) As(t field.Type) *Binding {
	b.Type = t
	return b
}

// resolve returns the driver value of the binding.
func (b *Binding) resolve() (any, error) {
	if field.IsNull(b.Value) {
		return nil, nil
	}
	if b.Type == field.TypeUnset {
		return b.Value, nil
	}
	return field.Cast(b.Value, b.Type)
}

// bindingList logs as a group of name=value attributes.
type bindingList []*Binding

// LogValue implements slog.LogValuer.
func (l bindingList) LogValue() slog.Value {
	attrs := make([]slog.Attr, len(l))
	for i, b := range l {
		attrs[i] = slog.Any(b.Name, b.Value)
	}
	return slog.GroupValue(attrs...)
}

// bindArgs resolves bindings into driver arguments for d. Dialects that bind
// by name receive sql.Named arguments and the query is left untouched.
// Positional dialects get every prefix+name token outside quoted text
// rewritten into a positional mark, with the values ordered to match.
func bindArgs(d Dialect, query string, bindings []*Binding) (string, []any, error) {
	values := make([]any, len(bindings))
	for i, b := range bindings {
		v, err := b.resolve()
		if err != nil {
			return "", nil, fmt.Errorf("binding %q: %w", b.Name, err)
		}
		values[i] = v
	}
	caps := d.Capabilities()
	if caps.NamedArgs {
		args := make([]any, len(bindings))
		for i, b := range bindings {
			args[i] = sql.Named(b.Name, values[i])
		}
		return query, args, nil
	}
	index := make(map[string]int, len(bindings))
	for i, b := range bindings {
		if _, ok := index[b.Name]; ok {
			return "", nil, fmt.Errorf("duplicate parameter name %q", b.Name)
		}
		index[b.Name] = i
	}
	mark := caps.Placeholder
	if mark == nil {
		mark = func(int) string { return "?" }
	}
	q, args := rewritePositional(query, d.BindPrefix(), index, values, mark, caps.BackslashEscapes)
	return q, args, nil
}

func rewritePositional(q, prefix string, index map[string]int, values []any, mark func(int) string, backslash bool) (string, []any) {
	var (
		b    strings.Builder
		args = make([]any, 0, len(values))
	)
	b.Grow(len(q))
	for i := 0; i < len(q); {
		c := q[i]
		if c == '\'' || c == '"' || c == '`' {
			j := skipQuoted(q, i, backslash)
			b.WriteString(q[i:j])
			i = j
			continue
		}
		if strings.HasPrefix(q[i:], prefix) && (i == 0 || (!isIdentByte(q[i-1]) && q[i-1] != prefix[0])) {
			j := i + len(prefix)
			for j < len(q) && isIdentByte(q[j]) {
				j++
			}
			if pos, ok := index[q[i+len(prefix):j]]; ok && j > i+len(prefix) {
				args = append(args, values[pos])
				b.WriteString(mark(len(args)))
				i = j
				continue
			}
		}
		b.WriteByte(c)
		i++
	}
	return b.String(), args
}

// skipQuoted returns the index just past the quoted span starting at i.
// A doubled quote character inside the span is an escaped quote, and so is
// a backslash followed by any character when backslash is set.
func skipQuoted(q string, i int, backslash bool) int {
	quote := q[i]
	j := i + 1
	for j < len(q) {
		if backslash && q[j] == '\\' && quote != '`' {
			j += 2
			continue
		}
		if q[j] == quote {
			if j+1 < len(q) && q[j+1] == quote {
				j += 2
				continue
			}
			return j + 1
		}
		j++
	}
	return min(j, len(q))
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
