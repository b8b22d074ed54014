package envfile

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/buger/jsonparser"
	"github.com/joho/godotenv"

	"github.com/live-labs/labkeys/internal/settings"
)

// KeySeparator joins the names of nested members
const KeySeparator = "__"

// quoteTriggers are the characters that make a value get double quotes
const quoteTriggers = " \"'=#"

// Flatten converts a decrypted settings document into KEY=VALUE lines.
// Nested objects are walked depth-first in document order and their keys
// joined with "__"; every key is upper-cased.
//
// Values containing a space, quote, '=' or '#' are wrapped in double quotes
// as-is. Embedded double quotes are not escaped.
func Flatten(doc *settings.Document) ([]string, error) {
	var lines []string
	for _, f := range doc.Fields() {
		value, dataType, _, err := jsonparser.Get(f.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Key, err)
		}
		lines, err = appendField(lines, "", f.Key, value, dataType)
		if err != nil {
			return nil, err
		}
	}
	return lines, nil
}

func appendField(lines []string, prefix, key string, value []byte, dataType jsonparser.ValueType) ([]string, error) {
	fullKey := key
	if prefix != "" {
		fullKey = prefix + KeySeparator + key
	}
	fullKey = strings.ToUpper(fullKey)

	if dataType == jsonparser.Object {
		err := jsonparser.ObjectEach(value, func(k, v []byte, dt jsonparser.ValueType, _ int) error {
			var err error
			lines, err = appendField(lines, fullKey, string(k), v, dt)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fullKey, err)
		}
		return lines, nil
	}

	s, err := stringify(value, dataType)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fullKey, err)
	}
	if strings.ContainsAny(s, quoteTriggers) {
		s = `"` + s + `"`
	}
	return append(lines, fullKey+"="+s), nil
}

// stringify renders a top-level (non-object) value the way Python's str()
// prints what json.loads returns: strings as-is, null as empty, booleans
// as True/False, floats in repr form and arrays as list literals.
func stringify(value []byte, dataType jsonparser.ValueType) (string, error) {
	switch dataType {
	case jsonparser.String:
		return jsonparser.ParseString(value)
	case jsonparser.Null:
		return "", nil
	default:
		var b strings.Builder
		if err := writeRepr(&b, value, dataType); err != nil {
			return "", err
		}
		return b.String(), nil
	}
}

// writeRepr writes the Python repr of a JSON value. Strings are always
// single-quoted and double quotes inside them are backslash-escaped, so a
// list never puts a bare '"' into a quoted env value.
func writeRepr(b *strings.Builder, value []byte, dataType jsonparser.ValueType) error {
	switch dataType {
	case jsonparser.String:
		s, err := jsonparser.ParseString(value)
		if err != nil {
			return err
		}
		writeReprString(b, s)
	case jsonparser.Null:
		b.WriteString("None")
	case jsonparser.Boolean:
		if string(value) == "true" {
			b.WriteString("True")
		} else {
			b.WriteString("False")
		}
	case jsonparser.Number:
		n, err := reprNumber(string(value))
		if err != nil {
			return err
		}
		b.WriteString(n)
	case jsonparser.Array:
		b.WriteByte('[')
		first := true
		var elemErr error
		_, err := jsonparser.ArrayEach(value, func(v []byte, dt jsonparser.ValueType, _ int, err error) {
			if elemErr != nil {
				return
			}
			if err != nil {
				elemErr = err
				return
			}
			if !first {
				b.WriteString(", ")
			}
			first = false
			elemErr = writeRepr(b, v, dt)
		})
		if err != nil {
			return err
		}
		if elemErr != nil {
			return elemErr
		}
		b.WriteByte(']')
	case jsonparser.Object:
		b.WriteByte('{')
		first := true
		err := jsonparser.ObjectEach(value, func(k, v []byte, dt jsonparser.ValueType, _ int) error {
			key, err := jsonparser.ParseString(k)
			if err != nil {
				return err
			}
			if !first {
				b.WriteString(", ")
			}
			first = false
			writeReprString(b, key)
			b.WriteString(": ")
			return writeRepr(b, v, dt)
		})
		if err != nil {
			return err
		}
		b.WriteByte('}')
	default:
		return fmt.Errorf("unsupported JSON value %q", value)
	}
	return nil
}

func writeReprString(b *strings.Builder, s string) {
	b.WriteByte('\'')
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == '\'':
			b.WriteString(`\'`)
		case r == '"':
			b.WriteString(`\"`)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(b, `\x%02x`, r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
}

// reprNumber keeps integer literals and prints other numbers as Python
// floats: shortest round-trip digits, at least one decimal place, and
// exponent form outside [1e-4, 1e16).
func reprNumber(literal string) (string, error) {
	if !strings.ContainsAny(literal, ".eE") {
		return literal, nil
	}

	f, err := strconv.ParseFloat(literal, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) && math.IsInf(f, 0) {
			if f > 0 {
				return "inf", nil
			}
			return "-inf", nil
		}
		return "", err
	}

	if f == 0 {
		if math.Signbit(f) {
			return "-0.0", nil
		}
		return "0.0", nil
	}

	e := strconv.FormatFloat(f, 'e', -1, 64)
	exp, err := strconv.Atoi(e[strings.LastIndexByte(e, 'e')+1:])
	if err != nil {
		return "", err
	}
	if exp < -4 || exp >= 16 {
		return e, nil
	}

	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s, nil
}

// Render joins lines with newlines, ending with a trailing newline
func Render(lines []string) []byte {
	return []byte(strings.Join(lines, "\n") + "\n")
}

// Parse reads KEY=VALUE content back into a map
func Parse(data []byte) (map[string]string, error) {
	return godotenv.Unmarshal(string(data))
}

// Names returns the variable names of an environment file, sorted
func Names(vars map[string]string) []string {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
