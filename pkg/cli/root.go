package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(ctx context.Context, app *App, args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet

	open Opener
	out  io.Writer
}

// NewRootCommand creates the root command. open is called once per
// subcommand run.
func NewRootCommand(open Opener) *Command {
	root := &Command{
		Name:        "teamctl",
		Description: "teamctl - team and tenant administration",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("teamctl", flag.ExitOnError),
		open:        open,
		out:         os.Stdout,
	}

	root.Subcommands["migrate"] = newMigrateCommand()
	root.Subcommands["seed-roles"] = newSeedRolesCommand()
	root.Subcommands["create-user"] = newCreateUserCommand()
	root.Subcommands["list-users"] = newListUsersCommand()
	root.Subcommands["purge-team"] = newPurgeTeamCommand()
	root.Subcommands["switch-team"] = newSwitchTeamCommand()
	root.Subcommands["check-permission"] = newCheckPermissionCommand()
	root.Subcommands["maintain"] = newMaintainCommand()

	return root
}

// Execute runs the subcommand named by args[0]
func (c *Command) Execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return c.usage()
	}

	switch strings.ToLower(args[0]) {
	case "-h", "--help", "help":
		return c.usage()
	}

	subcmd, ok := c.Subcommands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command: %s", args[0])
	}

	app, err := c.open(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer app.Close()

	return subcmd.Run(ctx, app, args[1:])
}

// usage prints the command usage
func (c *Command) usage() error {
	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(c.out, "Usage: %s <command> [args]\n\n", c.Name)
	fmt.Fprintf(c.out, "Commands:\n")
	for _, name := range names {
		fmt.Fprintf(c.out, "  %-15s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}
