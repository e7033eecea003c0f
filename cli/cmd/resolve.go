package cmd

import (
	"time"

	"github.com/urfave/cli/v2"

	relayconfig "github.com/pithecene-io/tagrelay/cli/config"
)

// Precedence for every setting: explicit CLI flag, then config file, then
// the flag's urfave default.

// configVal reads a value from cfg, or the zero value when cfg is nil.
func configVal[T any](cfg *relayconfig.Config, get func(*relayconfig.Config) T) T {
	var zero T
	if cfg == nil {
		return zero
	}
	return get(cfg)
}

func resolveString(c *cli.Context, name, fromConfig string) string {
	if c.IsSet(name) || fromConfig == "" {
		return c.String(name)
	}
	return fromConfig
}

func resolveInt(c *cli.Context, name string, fromConfig int) int {
	if c.IsSet(name) || fromConfig == 0 {
		return c.Int(name)
	}
	return fromConfig
}

func resolveBool(c *cli.Context, name string, fromConfig bool) bool {
	if c.IsSet(name) {
		return c.Bool(name)
	}
	return fromConfig || c.Bool(name)
}

func resolveDuration(c *cli.Context, name string, fromConfig time.Duration) time.Duration {
	if c.IsSet(name) || fromConfig == 0 {
		return c.Duration(name)
	}
	return fromConfig
}
