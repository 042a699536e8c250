package models

import (
	"strconv"
	"strings"
)

// Number is a decimal literal. Integers that fit in int64 are kept exact;
// everything else is held as float64.
type Number struct {
	i       int64
	f       float64
	integer bool
}

// Int creates an integer number.
func Int(v int64) Number {
	return Number{i: v, f: float64(v), integer: true}
}

// Float creates a floating point number.
func Float(v float64) Number {
	return Number{f: v}
}

func (Number) Kind() Kind { return KindNumber }

// IsInt reports whether the number was written without a fractional part
// and fits in an int64.
func (n Number) IsInt() bool { return n.integer }

// Int64 returns the value truncated to an integer.
func (n Number) Int64() int64 {
	if n.integer {
		return n.i
	}
	return int64(n.f)
}

// Float64 returns the value as a float.
func (n Number) Float64() float64 { return n.f }

// Equal compares by canonical form.
func (n Number) Equal(o Number) bool {
	if n.integer && o.integer {
		return n.i == o.i
	}
	return n.String() == o.String()
}

// String returns the canonical decimal text: integers without a fractional
// part, floats with at least one fractional digit.
func (n Number) String() string {
	if n.integer {
		return strconv.FormatInt(n.i, 10)
	}
	s := strconv.FormatFloat(n.f, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

// ParseNumber classifies a bare token as a decimal number. It accepts an
// optional sign, at least one digit, and an optional fractional part with
// at least one digit. Tokens such as dates (2200.01.01) are not numbers.
func ParseNumber(s string) (Number, bool) {
	if !isDecimal(s) {
		return Number{}, false
	}
	if !strings.ContainsRune(s, '.') {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Int(v), true
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Number{}, false
	}
	return Float(f), true
}

func isDecimal(s string) bool {
	i := 0
	if i < len(s) && s[i] == '-' {
		i++
	}
	digits := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
		digits++
	}
	if digits == 0 {
		return false
	}
	if i == len(s) {
		return true
	}
	if s[i] != '.' {
		return false
	}
	i++
	frac := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
		frac++
	}
	return frac > 0 && i == len(s)
}
