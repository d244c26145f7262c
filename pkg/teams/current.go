package teams

import (
	"context"
	"errors"
	"fmt"

	"github.com/platinummonkey/tenantry/pkg/observability"
	"github.com/platinummonkey/tenantry/pkg/storage"
	"github.com/platinummonkey/tenantry/pkg/users"
)

// State is the condition of a user's current team reference
type State int

const (
	// Unset means no current team is stored
	Unset State = iota
	// Set means the stored team exists and the user still belongs to it
	Set
	// Stale means the stored team is gone or the user no longer belongs to
	// it. It is detected on read and never written.
	Stale
)

func (s State) String() string {
	switch s {
	case Unset:
		return "unset"
	case Set:
		return "set"
	case Stale:
		return "stale"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// CurrentTeam tracks the team a user is operating in. Reading the current
// team never writes; Initialize is the only implicit assignment.
type CurrentTeam struct {
	users    *users.Store
	teams    *Store
	resolver *Resolver
	logger   *observability.Logger
	metrics  *observability.Metrics
	otel     *observability.OTelMetrics
}

// NewCurrentTeam creates the current-team state machine
func NewCurrentTeam(db storage.Querier, resolver *Resolver, logger *observability.Logger, metrics *observability.Metrics, otelMetrics *observability.OTelMetrics) *CurrentTeam {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &CurrentTeam{
		users:    users.NewStore(db),
		teams:    NewStore(db),
		resolver: resolver,
		logger:   logger,
		metrics:  metrics,
		otel:     otelMetrics,
	}
}

// lookup resolves the stored current team, returning nil when unset or stale
func (c *CurrentTeam) lookup(ctx context.Context, user *users.User) (*Team, State, error) {
	if user == nil || user.CurrentTeamID == nil {
		return nil, Unset, nil
	}
	team, err := c.teams.GetTeam(ctx, *user.CurrentTeamID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, Stale, nil
	}
	if err != nil {
		return nil, Unset, err
	}
	if team.Trashed() {
		return nil, Stale, nil
	}
	member, err := c.resolver.IsMember(ctx, user, team)
	if err != nil {
		return nil, Unset, err
	}
	if !member {
		return nil, Stale, nil
	}
	return team, Set, nil
}

// State reports whether user's current team is unset, set or stale
func (c *CurrentTeam) State(ctx context.Context, user *users.User) (State, error) {
	_, state, err := c.lookup(ctx, user)
	return state, err
}

// GetCurrentTeam returns user's current team, or nil when unset or stale.
// It never initializes and never writes.
func (c *CurrentTeam) GetCurrentTeam(ctx context.Context, user *users.User) (*Team, error) {
	team, _, err := c.lookup(ctx, user)
	return team, err
}

// IsCurrentTeam reports whether team is user's current team
func (c *CurrentTeam) IsCurrentTeam(ctx context.Context, user *users.User, team *Team) (bool, error) {
	if team == nil {
		return false, nil
	}
	current, err := c.GetCurrentTeam(ctx, user)
	if err != nil || current == nil {
		return false, err
	}
	return current.ID == team.ID, nil
}

// Initialize assigns a current team to a user that has none: the personal
// team first, then the first team the user owns or belongs to. A stored
// value, even a stale one, is never overwritten. It reports whether a team
// was assigned.
func (c *CurrentTeam) Initialize(ctx context.Context, user *users.User) (bool, error) {
	if user == nil {
		return false, fmt.Errorf("user is required: %w", ErrInvalidArgument)
	}
	if user.CurrentTeamID != nil {
		return false, nil
	}

	team, err := c.resolver.PersonalTeam(ctx, user)
	if err != nil {
		return false, err
	}
	if team == nil {
		all, err := c.resolver.AllTeams(ctx, user)
		if err != nil {
			return false, err
		}
		if len(all) == 0 {
			return false, nil
		}
		team = all[0]
	}

	ok, err := c.users.SetCurrentTeamIfUnset(ctx, user.ID, team.ID)
	if err != nil || !ok {
		return false, err
	}
	id := team.ID
	user.CurrentTeamID = &id
	c.logger.WithFields(map[string]interface{}{
		"user_id": user.ID,
		"team_id": team.ID,
	}).Debug("current team initialized")
	return true, nil
}

// SwitchTeam makes team the user's current team. It returns false without
// writing when team is nil, gone or soft-deleted, or when the user neither
// owns nor belongs to it.
func (c *CurrentTeam) SwitchTeam(ctx context.Context, user *users.User, team *Team) (bool, error) {
	if user == nil {
		return false, fmt.Errorf("user is required: %w", ErrInvalidArgument)
	}
	switched, err := c.switchTeam(ctx, user, team)
	if err == nil {
		c.metrics.RecordTeamSwitch(switched)
		c.otel.RecordTeamSwitch(ctx, switched)
	}
	return switched, err
}

func (c *CurrentTeam) switchTeam(ctx context.Context, user *users.User, team *Team) (bool, error) {
	if team == nil {
		return false, nil
	}
	stored, err := c.teams.GetTeam(ctx, team.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if stored.Trashed() {
		return false, nil
	}
	member, err := c.resolver.IsMember(ctx, user, stored)
	if err != nil || !member {
		return false, err
	}

	id := stored.ID
	if err := c.users.SetCurrentTeam(ctx, user.ID, &id); err != nil {
		return false, err
	}
	user.CurrentTeamID = &id
	c.logger.WithFields(map[string]interface{}{
		"user_id": user.ID,
		"team_id": team.ID,
	}).Info("switched current team")
	return true, nil
}
