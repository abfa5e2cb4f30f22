package utils

import (
	"strings"
	"unicode"
)

const maxFilenamePart = 40

// NormalizeSpace collapses repeated whitespace into a single space.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// SafeFilenamePart strips characters that break Content-Disposition filenames.
func SafeFilenamePart(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "NA"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_", ";", "_")
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			return -1
		}
		return r
	}, replacer.Replace(s))
	if r := []rune(s); len(r) > maxFilenamePart {
		s = string(r[:maxFilenamePart])
	}
	if s == "" {
		return "NA"
	}
	return s
}

// Fallback returns v trimmed, or fallback when v is blank.
func Fallback(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	return v
}
