package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/tesys/internal/app"
	"github.com/specialistvlad/tesys/internal/cli"
	"github.com/specialistvlad/tesys/internal/module"
	"github.com/specialistvlad/tesys/internal/testutil"
	"github.com/specialistvlad/tesys/pluginapi"
	"github.com/specialistvlad/tesys/plugins/example/demo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_MissingConfigExitsWithUsage(t *testing.T) {
	t.Parallel()
	out := &bytes.Buffer{}

	err := run(context.Background(), out, nil)

	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
	assert.Contains(t, exitErr.Message, "Usage:")
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()
	out := &bytes.Buffer{}

	err := run(context.Background(), out, []string{"-h"})

	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_InvalidConfigFails(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "main.hcl")
	require.NoError(t, os.WriteFile(path, []byte("peer {\n"), 0600))

	err := run(context.Background(), &bytes.Buffer{}, []string{path})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestRun_CancelledContextStopsCleanly(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteModuleFiles(t, dir, "demo")
	src := "peer {\n  search_dirs = [\"" + filepath.ToSlash(dir) + "\"]\n}\nplugin \"demo\" {}\n"
	path := filepath.Join(dir, "tesys.hcl")
	require.NoError(t, os.WriteFile(path, []byte(src), 0600))
	static := module.NewStatic().Add("demo.so", module.Symbols{
		pluginapi.CreateSymbol:  demo.Create,
		pluginapi.DestroySymbol: demo.Destroy,
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := &bytes.Buffer{}

	err := run(ctx, out, []string{path}, app.WithOpener(static))

	require.NoError(t, err)
	assert.Contains(t, out.String(), "Plugin loaded.")
	assert.Contains(t, out.String(), "Peer stopped.")
	assert.Equal(t, 0, static.OpenCount("demo.so"))
}

func TestRun_PluginsCommand(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteModuleFiles(t, dir, "demo")
	src := "search_dirs: [\"" + filepath.ToSlash(dir) + "\"]\nplugins:\n  - name: demo\n"
	path := filepath.Join(dir, "tesys.yaml")
	require.NoError(t, os.WriteFile(path, []byte(src), 0600))
	static := module.NewStatic().Add("demo.so", module.Symbols{
		pluginapi.CreateSymbol:  demo.Create,
		pluginapi.DestroySymbol: demo.Destroy,
	})
	out := &bytes.Buffer{}

	err := run(context.Background(), out, []string{"plugins", "--log-level", "error", path}, app.WithOpener(static))

	require.NoError(t, err)
	assert.Contains(t, out.String(), "test_handler")
}

func TestRun_CallAndSendCommands(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteModuleFiles(t, dir, "demo")
	src := "search_dirs: [\"" + filepath.ToSlash(dir) + "\"]\nplugins:\n  - name: demo\n"
	path := filepath.Join(dir, "tesys.yaml")
	require.NoError(t, os.WriteFile(path, []byte(src), 0600))
	static := module.NewStatic().Add("demo.so", module.Symbols{
		pluginapi.CreateSymbol:  demo.Create,
		pluginapi.DestroySymbol: demo.Destroy,
	})

	out := &bytes.Buffer{}
	err := run(context.Background(), out, []string{"call", "--log-level", "error", path, "demo", "test_handler"}, app.WithOpener(static))
	require.NoError(t, err)
	assert.Contains(t, out.String(), `"Testing function call."`)

	out.Reset()
	err = run(context.Background(), out, []string{"send", "--log-level", "error", path, "ping"}, app.WithOpener(static))
	require.NoError(t, err)
	assert.Contains(t, out.String(), `"pong"`)
	assert.Equal(t, 0, static.OpenCount("demo.so"))
}
