// Package rawtext recovers entries and repeated fields directly from the
// original save bytes. The document tree keeps only the last value of a
// repeated key; these lookups see every occurrence.
//
// Lookups assume the layout the game writes: a top-level section opens with
// "name={" at column zero, its entries are keyed one tab deep, and the
// section closes with a '}' at column zero.
package rawtext

import (
	"bytes"

	"github.com/mcncl/pdxquery/internal/models"
)

// Range is a half-open byte range into a buffer.
type Range struct {
	Start int
	End   int
}

// Len returns the number of bytes in the range.
func (r Range) Len() int { return r.End - r.Start }

// SectionOffsets caches the content range of each section looked up so far.
// A missing section is cached with a negative Start. The zero value (nil) is
// valid and disables caching.
type SectionOffsets map[string]Range

// FindSection locates a top-level section and returns the range between its
// opening brace (exclusive) and its closing brace at column zero. A header
// whose value is not a block is skipped in favour of a later one.
func FindSection(buf []byte, section string) (Range, bool) {
	header := []byte(section + "=")
	marker := append([]byte{'\n'}, header...)

	at := 0
	if !bytes.HasPrefix(buf, header) {
		at = headerAfter(buf, 0, marker)
	}
	for at >= 0 {
		open := skipSpace(buf, at+len(header))
		if open < len(buf) && buf[open] == '{' {
			start := open + 1
			end := bytes.Index(buf[start:], []byte("\n}"))
			if end < 0 {
				return Range{Start: start, End: len(buf)}, true
			}
			return Range{Start: start, End: start + end + 1}, true
		}
		at = headerAfter(buf, at, marker)
	}
	return Range{}, false
}

// headerAfter returns the offset of the next section header past from, or -1.
func headerAfter(buf []byte, from int, marker []byte) int {
	i := bytes.Index(buf[from:], marker)
	if i < 0 {
		return -1
	}
	return from + i + 1
}

// Section returns the section range, consulting and filling the cache.
func (o SectionOffsets) Section(buf []byte, section string) (Range, bool) {
	if o != nil {
		if r, ok := o[section]; ok {
			return r, r.Start >= 0
		}
	}
	r, ok := FindSection(buf, section)
	if o != nil {
		if !ok {
			o[section] = Range{Start: -1, End: -1}
		} else {
			o[section] = r
		}
	}
	return r, ok
}

// ExtractEntryBlock locates the entry key inside section and returns the
// range of its text, from the key through the brace that closes its block.
// An entry whose value is a scalar ends at the end of its line.
func ExtractEntryBlock(buf []byte, section, key string, offsets SectionOffsets) (Range, bool) {
	sec, ok := offsets.Section(buf, section)
	if !ok {
		return Range{}, false
	}

	patterns := [...]string{
		"\n\t" + key + "=\n\t{",
		"\n\t" + key + "={",
		"\n\t" + key + " =",
	}
	body := buf[sec.Start:sec.End]

	start := -1
	for _, p := range patterns {
		if i := bytes.Index(body, []byte(p)); i >= 0 {
			start = sec.Start + i + 2
			break
		}
	}
	if start < 0 {
		return Range{}, false
	}

	eq := start + len(key)
	for eq < len(buf) && buf[eq] != '=' {
		eq++
	}
	value := skipSpace(buf, eq+1)
	if value < len(buf) && buf[value] == '{' {
		return Range{Start: start, End: balancedEnd(buf, value)}, true
	}

	end := bytes.IndexByte(buf[value:], '\n')
	if end < 0 {
		return Range{Start: start, End: len(buf)}, true
	}
	return Range{Start: start, End: value + end}, true
}

// ExtractEntryText returns the located entry block verbatim, decoded from
// Windows-1252.
func ExtractEntryText(buf []byte, section, key string, offsets SectionOffsets) (string, bool) {
	r, ok := ExtractEntryBlock(buf, section, key, offsets)
	if !ok {
		return "", false
	}
	return models.DecodeWindows1252(buf[r.Start:r.End]), true
}

// ExtractFieldValues returns every quoted value of field inside block, in
// source order. Matching is literal: field="value".
func ExtractFieldValues(block []byte, field string) []string {
	pattern := []byte(field + "=\"")
	values := []string{}
	pos := 0
	for {
		i := bytes.Index(block[pos:], pattern)
		if i < 0 {
			return values
		}
		valueStart := pos + i + len(pattern)
		j := bytes.IndexByte(block[valueStart:], '"')
		if j < 0 {
			return values
		}
		values = append(values, models.DecodeWindows1252(block[valueStart:valueStart+j]))
		pos = valueStart + j + 1
	}
}

// DuplicateValues locates an entry and returns all quoted values of field
// within it. found reports whether the entry itself was located.
func DuplicateValues(buf []byte, section, key, field string, offsets SectionOffsets) (values []string, found bool) {
	r, ok := ExtractEntryBlock(buf, section, key, offsets)
	if !ok {
		return []string{}, false
	}
	return ExtractFieldValues(buf[r.Start:r.End], field), true
}

// balancedEnd returns the offset just past the brace that closes the block
// opened at open. Braces inside quoted strings are ignored. An unbalanced
// block runs to the end of the buffer.
func balancedEnd(buf []byte, open int) int {
	depth := 0
	for i := open; i < len(buf); i++ {
		switch buf[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		case '"':
			i = skipQuoted(buf, i)
		}
	}
	return len(buf)
}

// skipQuoted returns the offset of the quote closing the string opened at i.
func skipQuoted(buf []byte, i int) int {
	for i++; i < len(buf); i++ {
		switch buf[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return len(buf)
}

func skipSpace(buf []byte, i int) int {
	for i < len(buf) {
		switch buf[i] {
		case ' ', '\t', '\r', '\n':
			i++
		default:
			return i
		}
	}
	return i
}
