// Package placeholder fills {name} placeholders from a flat mapping.
//
// A placeholder is an identifier ([A-Za-z_][A-Za-z0-9_.-]*) between single
// braces. "{{" and "}}" produce literal braces. Braces around anything that is
// not an identifier (shell blocks, awk programs) are copied unchanged.
// Substitution is all or nothing: an unresolved name fails the whole call.
package placeholder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sourceplane/slurmster/internal/errors"
	"github.com/sourceplane/slurmster/internal/model"
)

// MissingKeyError names the placeholder that had no value
type MissingKeyError struct {
	Key      string
	Template string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("unresolved placeholder {%s}", e.Key)
}

// Substitute replaces every placeholder in template with its value.
// A missing name returns a *MissingKeyError marked errors.ErrTemplate.
func Substitute(template string, values map[string]string) (string, error) {
	var b strings.Builder
	b.Grow(len(template))

	err := scan(template, func(literal string) {
		b.WriteString(literal)
	}, func(name string) error {
		v, ok := values[name]
		if !ok {
			return errors.Mark(&MissingKeyError{Key: name, Template: template}, errors.ErrTemplate)
		}
		b.WriteString(v)
		return nil
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

// Names returns the distinct placeholder names referenced by template, in first-use order
func Names(template string) []string {
	var names []string
	seen := map[string]bool{}
	_ = scan(template, func(string) {}, func(name string) error {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
		return nil
	})
	return names
}

// Mapping builds the substitution mapping for one run: the user parameters
// plus the reserved keys, which always win. Shadowed returns the user keys
// that were overridden, sorted.
func Mapping(params model.Params, reserved map[string]string) (values map[string]string, shadowed []string) {
	values = make(map[string]string, len(params)+len(reserved))
	for _, p := range params {
		values[p.Key] = p.Value
	}
	for k, v := range reserved {
		if _, ok := values[k]; ok {
			shadowed = append(shadowed, k)
		}
		values[k] = v
	}
	sort.Strings(shadowed)
	return values, shadowed
}

// scan walks template, emitting literal text and placeholder names
func scan(template string, literal func(string), placeholder func(string) error) error {
	start := 0
	for i := 0; i < len(template); {
		c := template[i]
		switch {
		case c == '{' && i+1 < len(template) && template[i+1] == '{':
			literal(template[start:i])
			literal("{")
			i += 2
			start = i
		case c == '}' && i+1 < len(template) && template[i+1] == '}':
			literal(template[start:i])
			literal("}")
			i += 2
			start = i
		case c == '{':
			end := strings.IndexByte(template[i+1:], '}')
			if end < 0 {
				i++
				continue
			}
			name := template[i+1 : i+1+end]
			if !IsIdentifier(name) {
				i++
				continue
			}
			literal(template[start:i])
			if err := placeholder(name); err != nil {
				return err
			}
			i += end + 2
			start = i
		default:
			i++
		}
	}
	literal(template[start:])
	return nil
}

// IsIdentifier reports whether s can be written as a {placeholder}
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case i > 0 && ((r >= '0' && r <= '9') || r == '.' || r == '-'):
		default:
			return false
		}
	}
	return true
}
