package models

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// DecodeWindows1252 decodes save-file bytes into text. Every byte value has a
// mapping, so decoding never fails.
func DecodeWindows1252(b []byte) string {
	ascii := true
	for _, c := range b {
		if c >= utf8.RuneSelf {
			ascii = false
			break
		}
	}
	if ascii {
		return string(b)
	}
	out := make([]byte, 0, len(b)+len(b)/4)
	for _, c := range b {
		if c < utf8.RuneSelf {
			out = append(out, c)
			continue
		}
		out = utf8.AppendRune(out, charmap.Windows1252.DecodeByte(c))
	}
	return string(out)
}

// EncodeWindows1252 is the inverse of DecodeWindows1252. Runes with no
// Windows-1252 byte are written as '?'.
func EncodeWindows1252(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r < utf8.RuneSelf {
			out = append(out, byte(r))
			continue
		}
		if b, ok := charmap.Windows1252.EncodeRune(r); ok {
			out = append(out, b)
			continue
		}
		out = append(out, '?')
	}
	return out
}
