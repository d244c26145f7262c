package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failingOpener(context.Context) (*App, error) {
	return nil, errors.New("no database")
}

func TestNewRootCommand(t *testing.T) {
	root := NewRootCommand(failingOpener)

	assert.Equal(t, "teamctl", root.Name)
	assert.NotNil(t, root.Flags)

	expectedCommands := []string{
		"migrate",
		"seed-roles",
		"create-user",
		"list-users",
		"purge-team",
		"switch-team",
		"check-permission",
		"maintain",
	}
	for _, name := range expectedCommands {
		require.Contains(t, root.Subcommands, name)
		assert.NotNil(t, root.Subcommands[name].Run, "subcommand %s has no Run", name)
	}
	assert.Len(t, root.Subcommands, len(expectedCommands))
}

func TestCommandUsage(t *testing.T) {
	root := NewRootCommand(failingOpener)
	var buf bytes.Buffer
	root.out = &buf

	for _, args := range [][]string{nil, {"-h"}, {"--HELP"}, {"help"}} {
		buf.Reset()
		require.NoError(t, root.Execute(context.Background(), args))

		output := buf.String()
		assert.Contains(t, output, "Usage: teamctl <command> [args]")
		assert.Contains(t, output, "purge-team")
		assert.Less(t, bytes.Index(buf.Bytes(), []byte("list-users")), bytes.Index(buf.Bytes(), []byte("switch-team")), "commands are sorted")
	}
}

func TestCommandExecute(t *testing.T) {
	t.Run("unknown command", func(t *testing.T) {
		err := NewRootCommand(failingOpener).Execute(context.Background(), []string{"nonexistent"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown command: nonexistent")
	})

	t.Run("open failure", func(t *testing.T) {
		err := NewRootCommand(failingOpener).Execute(context.Background(), []string{"migrate"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to initialize")
	})

	t.Run("passes remaining args", func(t *testing.T) {
		app := newTestApp(t)
		root := NewRootCommand(func(context.Context) (*App, error) { return app, nil })

		var received []string
		root.Subcommands["test"] = &Command{
			Name: "test",
			Run: func(_ context.Context, got *App, args []string) error {
				assert.Same(t, app, got)
				received = args
				return nil
			},
		}

		require.NoError(t, root.Execute(context.Background(), []string{"test", "arg1", "-flag"}))
		assert.Equal(t, []string{"arg1", "-flag"}, received)
	})
}
