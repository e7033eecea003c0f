// Package interp substitutes ${name} placeholders in text.
//
// Substitution is single-pass: a substituted value is never rescanned.
// Placeholders the lookup does not resolve are left verbatim.
package interp

import "regexp"

// placeholderPattern matches ${key} where key is any run of non-"}" characters.
var placeholderPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// LookupFunc resolves a placeholder key. ok=false keeps the placeholder.
type LookupFunc func(key string) (value string, ok bool)

// Expand replaces every ${key} in text with the value lookup returns for it.
func Expand(text string, lookup LookupFunc) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		// match is "${key}"; strip the delimiters
		if value, ok := lookup(match[2 : len(match)-1]); ok {
			return value
		}
		return match
	})
}

// Interpolate replaces every ${key} in text with vars[key].
// Unknown keys, and keys mapped to "", keep the original placeholder text.
func Interpolate(text string, vars map[string]string) string {
	if len(vars) == 0 {
		return text
	}
	return Expand(text, func(key string) (string, bool) {
		value, ok := vars[key]
		return value, ok && value != ""
	})
}
