package pointers

import "strings"

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

func String(v string) *string { return &v }

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// NonEmpty returns nil for blank strings.
func NonEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// EqualStrings compares two optional strings by value.
func EqualStrings(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
