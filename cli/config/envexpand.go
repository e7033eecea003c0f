package config

import (
	"os"
	"regexp"
	"strings"

	"github.com/pithecene-io/tagrelay/interp"
)

// envName matches a valid environment variable name.
var envName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ExpandEnv expands ${VAR} and ${VAR:-default} in a config file.
//
// An unset or empty VAR takes the default, or "" without one; a missing
// secret surfaces later as a validation error (e.g. no server domain).
// Placeholders that are not variable references are left untouched.
func ExpandEnv(input string) string {
	return interp.Expand(input, lookupEnv)
}

func lookupEnv(ref string) (string, bool) {
	name, def, _ := strings.Cut(ref, ":-")
	if !envName.MatchString(name) {
		return "", false
	}
	if value := os.Getenv(name); value != "" {
		return value, true
	}
	return def, true
}
