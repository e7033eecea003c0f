package cmd

import (
	"flag"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	relayconfig "github.com/pithecene-io/tagrelay/cli/config"
)

func TestReadOnlyFlags_IncludesTUI(t *testing.T) {
	hasTUI := false
	for _, f := range ReadOnlyFlags() {
		if f.Names()[0] == "tui" {
			hasTUI = true
			break
		}
	}
	if !hasTUI {
		t.Error("ReadOnlyFlags should include --tui flag for explicit error handling")
	}
}

// newTestCLIContext builds a minimal *cli.Context with the given flags set.
// flagValues are registered and marked as explicitly set (c.IsSet returns
// true); defaultFlags are registered with defaults only.
func newTestCLIContext(t *testing.T, flagValues map[string]string, defaultFlags map[string]string) *cli.Context {
	t.Helper()
	app := cli.NewApp()

	allFlags := make(map[string]string)
	for k, v := range defaultFlags {
		allFlags[k] = v
	}
	for k, v := range flagValues {
		allFlags[k] = v
	}

	var cliFlags []cli.Flag
	for name, val := range allFlags {
		cliFlags = append(cliFlags, &cli.StringFlag{Name: name, Value: val})
	}
	app.Flags = cliFlags

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	for name, val := range allFlags {
		fs.String(name, val, "")
	}
	for name, val := range flagValues {
		if err := fs.Set(name, val); err != nil {
			t.Fatalf("failed to set flag %s: %v", name, err)
		}
	}

	return cli.NewContext(app, fs, nil)
}

func TestResolveString_CLIWins(t *testing.T) {
	c := newTestCLIContext(t, map[string]string{"domain": "https://cli.example.com"}, nil)
	if got := resolveString(c, "domain", "https://config.example.com"); got != "https://cli.example.com" {
		t.Errorf("expected CLI to win, got %q", got)
	}
}

func TestResolveString_ConfigFallback(t *testing.T) {
	c := newTestCLIContext(t, nil, map[string]string{"domain": ""})
	if got := resolveString(c, "domain", "https://config.example.com"); got != "https://config.example.com" {
		t.Errorf("expected config fallback, got %q", got)
	}
}

func TestResolveString_UrfaveDefault(t *testing.T) {
	c := newTestCLIContext(t, nil, map[string]string{"transport": "fetch"})
	if got := resolveString(c, "transport", ""); got != "fetch" {
		t.Errorf("expected urfave default, got %q", got)
	}
}

func TestConfigVal(t *testing.T) {
	get := func(c *relayconfig.Config) string { return c.Server.Domain }
	if got := configVal(nil, get); got != "" {
		t.Errorf("expected empty for nil config, got %q", got)
	}
	cfg := &relayconfig.Config{Server: relayconfig.ServerConfig{Domain: "https://sgtm.example.com"}}
	if got := configVal(cfg, get); got != "https://sgtm.example.com" {
		t.Errorf("expected config value, got %q", got)
	}
}

func TestResolveInt(t *testing.T) {
	app := cli.NewApp()
	app.Flags = []cli.Flag{&cli.IntFlag{Name: "beacon-queue"}}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Int("beacon-queue", 0, "")
	c := cli.NewContext(app, fs, nil)
	if got := resolveInt(c, "beacon-queue", 16); got != 16 {
		t.Errorf("expected config fallback 16, got %d", got)
	}

	_ = fs.Set("beacon-queue", "4")
	if got := resolveInt(c, "beacon-queue", 16); got != 4 {
		t.Errorf("expected CLI 4 to win, got %d", got)
	}
}

func TestResolveBool(t *testing.T) {
	app := cli.NewApp()
	app.Flags = []cli.Flag{&cli.BoolFlag{Name: "always-send"}}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Bool("always-send", false, "")
	c := cli.NewContext(app, fs, nil)
	if !resolveBool(c, "always-send", true) {
		t.Error("expected config true when flag unset")
	}

	_ = fs.Set("always-send", "false")
	if resolveBool(c, "always-send", true) {
		t.Error("expected explicit CLI false to win")
	}
}

func TestResolveDuration(t *testing.T) {
	app := cli.NewApp()
	app.Flags = []cli.Flag{&cli.DurationFlag{Name: "timeout"}}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Duration("timeout", 0, "")
	c := cli.NewContext(app, fs, nil)
	if got := resolveDuration(c, "timeout", 10*time.Second); got != 10*time.Second {
		t.Errorf("expected config fallback 10s, got %v", got)
	}

	_ = fs.Set("timeout", "30s")
	if got := resolveDuration(c, "timeout", 10*time.Second); got != 30*time.Second {
		t.Errorf("expected CLI 30s to win, got %v", got)
	}
}

func TestVersionAction_RejectsTUI(t *testing.T) {
	app := &cli.App{
		Name:           "tagrelay",
		Commands:       []*cli.Command{VersionCommand("", "abc123")},
		ExitErrHandler: func(*cli.Context, error) {},
	}
	if err := app.Run([]string{"tagrelay", "version", "--tui"}); err == nil {
		t.Error("expected error for version --tui")
	}
	if err := app.Run([]string{"tagrelay", "version", "--format", "json"}); err != nil {
		t.Errorf("version error = %v", err)
	}
}
