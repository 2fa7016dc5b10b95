package main

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// captureStdout redirects os.Stdout for the duration of fn and returns
// everything written to it.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()

	require.NoError(t, w.Close())
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}

func contextWithFormat(format string) *cli.Context {
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	set.String("format", format, "")
	return cli.NewContext(nil, set, nil)
}

func TestPrintOutputDefaultsToJSON(t *testing.T) {
	c := contextWithFormat("")
	out := captureStdout(t, func() {
		require.NoError(t, printOutput(c, map[string]string{"headword": "Apfel"}))
	})
	require.Contains(t, out, `"headword": "Apfel"`)
}

func TestPrintOutputEncodesTOML(t *testing.T) {
	c := contextWithFormat("toml")
	out := captureStdout(t, func() {
		require.NoError(t, printOutput(c, map[string]string{"headword": "Apfel"}))
	})
	require.Contains(t, out, "headword")
	require.Contains(t, out, "Apfel")
	require.NotContains(t, out, "{")
}

func contextWithZipArg(t *testing.T, extra ...string) *cli.Context {
	t.Helper()
	zipPath := filepath.Join(t.TempDir(), "dataset.zip")
	require.NoError(t, os.WriteFile(zipPath, []byte("not a real zip, only stat'd"), 0o644))

	set := flag.NewFlagSet("test", flag.ContinueOnError)
	require.NoError(t, set.Parse(append([]string{zipPath}, extra...)))
	return cli.NewContext(cli.NewApp(), set, nil)
}

func TestResolveLinkCommandRejectsMissingHref(t *testing.T) {
	c := contextWithZipArg(t)
	err := resolveLinkCommand(c)
	require.ErrorContains(t, err, "href required")
}

func TestResolveMediaCommandRejectsMissingHref(t *testing.T) {
	c := contextWithZipArg(t)
	err := resolveMediaCommand(c)
	require.ErrorContains(t, err, "href required")
}

func TestZipArgRejectsEmptyArgWithoutManagedZip(t *testing.T) {
	defer func() { loaded = nil }()
	loaded = nil

	tmp := t.TempDir()
	kdl := "cache {\n  root \"" + tmp + "/cache\"\n}\n"
	require.NoError(t, os.WriteFile(tmp+"/.dictd.kdl", []byte(kdl), 0o644))

	set := flag.NewFlagSet("test", flag.ContinueOnError)
	set.String("root", tmp, "")
	app := cli.NewApp()
	c := cli.NewContext(app, set, nil)

	_, err := zipArg(c)
	require.Error(t, err)
}
