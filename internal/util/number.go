package util

import (
	"regexp"
	"strconv"
	"strings"
)

var reAllSpace = regexp.MustCompile(`\s+`)

// CoerceNumber parses a raw dataset cell as float64. Thousands separators
// and interior whitespace are removed first; values that still fail to
// parse come back nil rather than erroring.
func CoerceNumber(input string) *float64 {
	s := strings.ReplaceAll(input, " ", " ")
	s = reAllSpace.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || s == "-" {
		return nil
	}
	parsed, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return FloatPtr(parsed)
}

// CoerceInt is CoerceNumber truncated to int, for year/month cells.
func CoerceInt(input string) *int {
	f := CoerceNumber(input)
	if f == nil {
		return nil
	}
	v := int(*f)
	return &v
}
