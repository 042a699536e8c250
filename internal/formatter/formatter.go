package formatter

import (
	"bytes"
	"fmt"

	"github.com/mcncl/pdxquery/internal/models"
)

// Formatter writes documents back out as Clausewitz text in the layout the
// game uses for saves: tab indentation, top-level sections opened on the
// header line, and nested blocks opened on the line after their key.
type Formatter struct{}

// NewFormatter creates a new Formatter instance
func NewFormatter() *Formatter {
	return &Formatter{}
}

// Format serializes root as Windows-1252 Clausewitz text. Strings are always
// quoted. Null values cannot be represented and are rejected.
func (f *Formatter) Format(root *models.Object) ([]byte, error) {
	var buf bytes.Buffer
	if root == nil {
		return buf.Bytes(), nil
	}
	for _, m := range root.Members() {
		if err := f.writeMember(&buf, m, 0); err != nil {
			return nil, err
		}
	}
	return models.EncodeWindows1252(buf.String()), nil
}

// FormatString is Format for callers that want UTF-8 text rather than save
// bytes.
func (f *Formatter) FormatString(root *models.Object) (string, error) {
	out, err := f.Format(root)
	if err != nil {
		return "", err
	}
	return models.DecodeWindows1252(out), nil
}

func (f *Formatter) writeMember(buf *bytes.Buffer, m models.Member, depth int) error {
	indent(buf, depth)
	writeKey(buf, m.Key)
	buf.WriteByte('=')

	switch v := m.Value.(type) {
	case *models.Object, models.Array:
		if arr, ok := v.(models.Array); depth == 0 || ok && isScalarArray(arr) {
			buf.WriteByte('{')
		} else {
			buf.WriteByte('\n')
			indent(buf, depth)
			buf.WriteByte('{')
		}
		if err := f.writeBlockBody(buf, v, depth); err != nil {
			return fmt.Errorf("key %q: %w", m.Key, err)
		}
	default:
		if err := writeScalar(buf, v); err != nil {
			return fmt.Errorf("key %q: %w", m.Key, err)
		}
	}
	buf.WriteByte('\n')
	return nil
}

// writeBlockBody writes everything after the opening brace of a block,
// including the closing brace.
func (f *Formatter) writeBlockBody(buf *bytes.Buffer, v models.Value, depth int) error {
	switch t := v.(type) {
	case *models.Object:
		buf.WriteByte('\n')
		for _, m := range t.Members() {
			if err := f.writeMember(buf, m, depth+1); err != nil {
				return err
			}
		}
		indent(buf, depth)
		buf.WriteByte('}')
		return nil

	case models.Array:
		if isScalarArray(t) {
			buf.WriteByte(' ')
			for _, elem := range t {
				if err := writeScalar(buf, elem); err != nil {
					return err
				}
				buf.WriteByte(' ')
			}
			buf.WriteByte('}')
			return nil
		}
		buf.WriteByte('\n')
		for _, elem := range t {
			indent(buf, depth+1)
			switch elem.(type) {
			case *models.Object, models.Array:
				buf.WriteByte('{')
				if err := f.writeBlockBody(buf, elem, depth+1); err != nil {
					return err
				}
			default:
				if err := writeScalar(buf, elem); err != nil {
					return err
				}
			}
			buf.WriteByte('\n')
		}
		indent(buf, depth)
		buf.WriteByte('}')
		return nil
	}
	return fmt.Errorf("unexpected block value of kind %s", v.Kind())
}

func isScalarArray(a models.Array) bool {
	if len(a) == 0 {
		return false
	}
	for _, v := range a {
		switch v.(type) {
		case *models.Object, models.Array:
			return false
		}
	}
	return true
}

func writeScalar(buf *bytes.Buffer, v models.Value) error {
	switch t := v.(type) {
	case models.String:
		writeQuoted(buf, string(t))
	case models.Bool, models.Number:
		text, _ := models.ScalarText(t)
		buf.WriteString(text)
	case models.Null, nil:
		return fmt.Errorf("null values have no Clausewitz form")
	default:
		return fmt.Errorf("unexpected scalar of kind %s", v.Kind())
	}
	return nil
}

func writeQuoted(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			buf.WriteByte('\\')
		}
		buf.WriteByte(s[i])
	}
	buf.WriteByte('"')
}

// writeKey writes key bare when the lexer would read it back as one bare
// token, and quoted otherwise.
func writeKey(buf *bytes.Buffer, key string) {
	if key == "" {
		writeQuoted(buf, key)
		return
	}
	for i := 0; i < len(key); i++ {
		switch key[i] {
		case ' ', '\t', '\r', '\n', '\f', '\v', '{', '}', '"', '=', '<', '>', '#', '!', '?':
			writeQuoted(buf, key)
			return
		}
	}
	buf.WriteString(key)
}

func indent(buf *bytes.Buffer, depth int) {
	for i := 0; i < depth; i++ {
		buf.WriteByte('\t')
	}
}
