package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp() (*App, *bytes.Buffer, *bytes.Buffer) {
	app := NewApp("cppillr")
	app.Commands = []Command{{"run", "Run main"}, {"parse", "Parse only"}}
	var stdout, stderr bytes.Buffer
	app.Stdout, app.Stderr = &stdout, &stderr
	return app, &stdout, &stderr
}

func TestFlagForms(t *testing.T) {
	var (
		threads  int
		filelist string
		verbose  bool
		wall     bool
	)
	fs := NewFlagSet("test")
	fs.Int(&threads, "threads", "j", 1, "Worker threads", "n")
	fs.String(&filelist, "filelist", "", "", "File list", "file")
	fs.Bool(&verbose, "verbose", "v", false, "Verbose")
	fs.Bool(&wall, "Wall", "", false, "All warnings")

	require.NoError(t, fs.Parse([]string{"-j4", "--filelist=list.txt", "a.c", "-v", "-Wall", "-", "--", "-b.c"}))
	assert.Equal(t, 4, threads)
	assert.Equal(t, "list.txt", filelist)
	assert.True(t, verbose)
	assert.True(t, wall)
	assert.Equal(t, []string{"a.c", "-", "-b.c"}, fs.Args())

	require.NoError(t, fs.Parse([]string{"--threads", "8", "-j", "2"}))
	assert.Equal(t, 2, threads)

	assert.EqualError(t, fs.Parse([]string{"--threads"}), "flag needs an argument: --threads")
	assert.EqualError(t, fs.Parse([]string{"-j", "x"}), "invalid integer value 'x'")
	assert.EqualError(t, fs.Parse([]string{"--nope"}), "unknown flag: --nope")
	assert.EqualError(t, fs.Parse([]string{"-q"}), "unknown shorthand flag: -q")
}

func TestFlagGroups(t *testing.T) {
	on, off := true, false
	entries := []FlagGroupEntry{{Name: "overflow", Prefix: "W", Usage: "Overflow", Enabled: &on, Disabled: &off}}
	fs := NewFlagSet("test")
	fs.AddFlagGroup("Warning Flags", "", "warning", "Available Warnings:", entries)

	require.NoError(t, fs.Parse([]string{"-Wno-overflow"}))
	assert.True(t, *entries[0].Disabled)
	require.NotNil(t, fs.Lookup("Woverflow"))
}

func TestAppCommands(t *testing.T) {
	app, _, stderr := newTestApp()
	var gotCmd string
	var gotArgs []string
	app.Action = func(cmd string, args []string) error {
		gotCmd, gotArgs = cmd, args
		return nil
	}
	require.NoError(t, app.Run([]string{"run", "a.c", "b.c"}))
	assert.Equal(t, "run", gotCmd)
	assert.Equal(t, []string{"a.c", "b.c"}, gotArgs)
	assert.Empty(t, stderr.String())

	app, _, stderr = newTestApp()
	assert.EqualError(t, app.Run([]string{"build", "a.c"}), "unknown command: build")
	assert.Contains(t, stderr.String(), "Usage: cppillr <command> [options] <files...>")

	app, _, _ = newTestApp()
	assert.EqualError(t, app.Run(nil), "no command given")
}

func TestHelpPage(t *testing.T) {
	app, stdout, _ := newTestApp()
	app.Description = "Analyzes C-family sources."
	var threads int
	app.FlagSet.Int(&threads, "threads", "j", 4, "Number of worker threads.", "n")
	on, off := true, false
	app.FlagSet.AddFlagGroup("Feature Flags", "", "feature", "Available Features:",
		[]FlagGroupEntry{{Name: "comments", Prefix: "F", Usage: "Keep comments.", Enabled: &on, Disabled: &off}})

	called := false
	app.Action = func(string, []string) error { called = true; return nil }
	require.NoError(t, app.Run([]string{"--help"}))
	assert.False(t, called)

	out := stdout.String()
	assert.Contains(t, out, "Commands")
	assert.Contains(t, out, "run")
	assert.Contains(t, out, "-j <n>, --threads <n>")
	assert.Contains(t, out, "|4|")
	assert.Contains(t, out, "-F<feature>")
	assert.Contains(t, out, "|x|")
	assert.NotContains(t, out, "Fno-comments")
}

func TestWrapText(t *testing.T) {
	assert.Equal(t, []string{"aaa bb", "cccc"}, wrapText("aaa bb cccc", 7))
	assert.Equal(t, []string{}, wrapText("   ", 10))
	assert.Equal(t, []string{"x y"}, wrapText("x y", 0))
}
