package validation

import (
	"net/url"
	"strings"
	"unicode/utf8"
)

type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// First returns one violated field and its message, for callers that surface
// only the first problem. Fields are checked in the order given.
func (v Violations) First(fields ...string) (string, string) {
	for _, f := range fields {
		if msg, ok := v[f]; ok {
			return f, msg
		}
	}
	for f, msg := range v {
		return f, msg
	}
	return "", ""
}

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

func Length(field, value string, minLen, maxLen int, v Violations) {
	n := utf8.RuneCountInString(value)
	if n < minLen || n > maxLen {
		v[field] = "length_out_of_range"
	}
}

func NonNegativeInt(field string, val int, v Violations) {
	if val < 0 {
		v[field] = "must_be_non_negative"
	}
}

// URL accepts empty values; pair with Required when the field is mandatory.
func URL(field, value string, v Violations) {
	if value == "" {
		return
	}
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		v[field] = "invalid_url"
	}
}

func OneOf(field, value string, allowed []string, v Violations) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v[field] = "invalid_value"
}
