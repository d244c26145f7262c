package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/fsnotify/fsnotify"

	"github.com/platinummonkey/tenantry/pkg/accounts"
	"github.com/platinummonkey/tenantry/pkg/audit"
	"github.com/platinummonkey/tenantry/pkg/rbac"
	"github.com/platinummonkey/tenantry/pkg/storage"
	"github.com/platinummonkey/tenantry/pkg/tenancy"
)

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ContinueOnError)
}

func newMigrateCommand() *Command {
	return &Command{
		Name:        "migrate",
		Description: "Apply pending schema migrations",
		Run:         runMigrate,
	}
}

func runMigrate(ctx context.Context, app *App, args []string) error {
	if err := newFlagSet("migrate").Parse(args); err != nil {
		return err
	}

	applied, err := storage.Migrate(ctx, app.DB, Migrations...)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	app.Log.WithField("applied", applied).Info("Migrations complete")
	fmt.Fprintf(app.Out, "Applied %d migration(s)\n", applied)
	return nil
}

func newSeedRolesCommand() *Command {
	return &Command{
		Name:        "seed-roles",
		Description: "Install the permission and role seed",
		Run:         runSeedRoles,
	}
}

func runSeedRoles(ctx context.Context, app *App, args []string) error {
	fs := newFlagSet("seed-roles")
	file := fs.String("file", "", "YAML seed file (default: built-in admin and editor roles)")
	watch := fs.Bool("watch", false, "Re-apply the seed file whenever it changes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *watch && *file == "" {
		return fmt.Errorf("--watch requires --file")
	}

	if err := applySeed(ctx, app, *file); err != nil {
		return err
	}
	if !*watch {
		return nil
	}
	return watchSeed(ctx, app, *file)
}

func applySeed(ctx context.Context, app *App, path string) error {
	seed := rbac.DefaultSeed()
	if path != "" {
		var err error
		if seed, err = rbac.LoadSeed(path); err != nil {
			return err
		}
	}
	if err := app.Catalog.ApplySeed(ctx, seed); err != nil {
		return fmt.Errorf("failed to apply role seed: %w", err)
	}
	app.Log.WithField("roles", len(seed.Roles)).WithField("permissions", len(seed.Permissions)).Info("Role seed applied")
	fmt.Fprintf(app.Out, "Seeded %d role(s)\n", len(seed.Roles))
	return nil
}

// watchSeed re-applies the seed on every write until ctx is done. The
// directory is watched so editors that replace the file are picked up.
func watchSeed(ctx context.Context, app *App, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	path = filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	app.Log.WithField("file", path).Info("Watching role seed for changes")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := applySeed(ctx, app, path); err != nil {
				app.Log.WithError(err).Error("Failed to re-apply role seed")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			app.Log.WithError(err).Warn("Watcher error")
		}
	}
}

func newCreateUserCommand() *Command {
	return &Command{
		Name:        "create-user",
		Description: "Register a user with a personal team",
		Run:         runCreateUser,
	}
}

func runCreateUser(ctx context.Context, app *App, args []string) error {
	fs := newFlagSet("create-user")
	name := fs.String("name", "", "Display name (required)")
	email := fs.String("email", "", "Email address (required)")
	password := fs.String("password", "", "Initial password (required)")
	slug := fs.String("tenant", "", "Register inside the tenant with this slug")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ec, err := tenantContext(ctx, app, *slug)
	if err != nil {
		return err
	}

	u, err := app.Accounts.Register(ctx, ec, accounts.RegisterInput{
		Name:     *name,
		Email:    *email,
		Password: *password,
	})
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	fmt.Fprintf(app.Out, "Created user %d (%s)\n", u.ID, u.Email)
	return nil
}

// tenantContext returns BatchContext, or a context pinned to the tenant
// with slug when one is given
func tenantContext(ctx context.Context, app *App, slug string) (tenancy.ExecutionContext, error) {
	if slug == "" {
		return tenancy.BatchContext{}, nil
	}
	tenant, err := app.Tenants.GetTenantBySlug(ctx, slug)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("tenant %q not found", slug)
	}
	if err != nil {
		return nil, err
	}
	return tenancy.StaticContext{Tenant: tenant}, nil
}

func newListUsersCommand() *Command {
	return &Command{
		Name:        "list-users",
		Description: "List users, optionally within one tenant",
		Run:         runListUsers,
	}
}

func runListUsers(ctx context.Context, app *App, args []string) error {
	fs := newFlagSet("list-users")
	slug := fs.String("tenant", "", "Only list users of the tenant with this slug")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ec, err := tenantContext(ctx, app, *slug)
	if err != nil {
		return err
	}

	list, err := app.Users.List(ctx, ec)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	w := tabwriter.NewWriter(app.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tTENANT\tCURRENT TEAM")
	for _, u := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, optionalID(u.TenantID), optionalID(u.CurrentTeamID))
	}
	return w.Flush()
}

func optionalID(id *int64) string {
	if id == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *id)
}

func newPurgeTeamCommand() *Command {
	return &Command{
		Name:        "purge-team",
		Description: "Delete a team with its memberships and invitations",
		Run:         runPurgeTeam,
	}
}

func runPurgeTeam(ctx context.Context, app *App, args []string) error {
	fs := newFlagSet("purge-team")
	teamID := fs.Int64("team", 0, "Team id (required)")
	soft := fs.Bool("soft", false, "Soft-delete instead of purging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *teamID == 0 {
		return fmt.Errorf("--team is required")
	}

	team, err := app.Teams.Store().GetTeam(ctx, *teamID)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("team %d not found", *teamID)
	}
	if err != nil {
		return err
	}

	if *soft {
		if err := app.Teams.DeleteTeam(ctx, team); err != nil {
			return err
		}
		fmt.Fprintf(app.Out, "Soft-deleted team %d (%s)\n", team.ID, team.Name)
		return nil
	}

	if err := app.Teams.PurgeTeam(ctx, team); err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "Purged team %d (%s)\n", team.ID, team.Name)
	return nil
}

func newSwitchTeamCommand() *Command {
	return &Command{
		Name:        "switch-team",
		Description: "Set a user's current team",
		Run:         runSwitchTeam,
	}
}

func runSwitchTeam(ctx context.Context, app *App, args []string) error {
	fs := newFlagSet("switch-team")
	userID := fs.Int64("user", 0, "User id (required)")
	teamID := fs.Int64("team", 0, "Team id (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userID == 0 || *teamID == 0 {
		return fmt.Errorf("--user and --team are required")
	}

	user, err := app.Users.Store().Get(ctx, *userID)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("user %d not found", *userID)
	}
	if err != nil {
		return err
	}
	team, err := app.Teams.Store().GetTeam(ctx, *teamID)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("team %d not found", *teamID)
	}
	if err != nil {
		return err
	}

	switched, err := app.Current.SwitchTeam(ctx, user, team)
	if err != nil {
		return err
	}
	event := audit.NewEvent(ctx, audit.EventTypeTeamSwitch, audit.EventStatusSuccess).
		ForTeam(team.ID, audit.ResourceTypeUser, user.ID).
		With("source", "teamctl")
	var denied error
	if !switched {
		denied = fmt.Errorf("user %d does not belong to team %d", user.ID, team.ID)
		event.Failed(denied)
	}
	if err := app.Audit.Log(ctx, event); err != nil {
		app.Log.WithError(err).Warn("Failed to record team switch")
	}
	if denied != nil {
		return denied
	}
	fmt.Fprintf(app.Out, "User %d now on team %d (%s)\n", user.ID, team.ID, team.Name)
	return nil
}

func newCheckPermissionCommand() *Command {
	return &Command{
		Name:        "check-permission",
		Description: "Explain whether a user holds a permission in a team",
		Run:         runCheckPermission,
	}
}

func runCheckPermission(ctx context.Context, app *App, args []string) error {
	fs := newFlagSet("check-permission")
	userID := fs.Int64("user", 0, "User id (required)")
	teamID := fs.Int64("team", 0, "Team id (required)")
	permission := fs.String("permission", "", "Permission name (required)")
	slug := fs.String("tenant", "", "Evaluate inside the tenant with this slug")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userID == 0 || *teamID == 0 || *permission == "" {
		return fmt.Errorf("--user, --team and --permission are required")
	}

	ec, err := tenantContext(ctx, app, *slug)
	if err != nil {
		return err
	}
	user, err := app.Users.Store().Get(ctx, *userID)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("user %d not found", *userID)
	}
	if err != nil {
		return err
	}
	team, err := app.Teams.Store().GetTeam(ctx, *teamID)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("team %d not found", *teamID)
	}
	if err != nil {
		return err
	}

	decision, err := app.Authz.Decide(ctx, ec, user, team, *permission)
	if err != nil {
		return err
	}
	verdict := "denied"
	if decision.Allowed {
		verdict = "allowed"
	}
	fmt.Fprintf(app.Out, "%s: %s (%s)\n", *permission, verdict, decision.Reason)
	return nil
}
