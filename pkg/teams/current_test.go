package teams

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/tenantry/pkg/observability"
	"github.com/platinummonkey/tenantry/pkg/users"
)

func TestCurrentTeam_ReadNeverMutates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "fresh")
	before := f.reload(t, u)

	for i := 0; i < 3; i++ {
		team, err := f.current.GetCurrentTeam(ctx, u)
		require.NoError(t, err)
		assert.Nil(t, team)

		after := f.reload(t, u)
		assert.Nil(t, after.CurrentTeamID)
		assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
	}

	state, err := f.current.State(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, Unset, state)
}

func TestCurrentTeam_SwitchRequiresMembership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.user(t, "owner")
	fresh := f.user(t, "fresh")
	team := f.team(t, owner, "Acme", false)

	switched, err := f.current.SwitchTeam(ctx, fresh, team)
	require.NoError(t, err)
	assert.False(t, switched)
	assert.Nil(t, fresh.CurrentTeamID)
	assert.Nil(t, f.reload(t, fresh).CurrentTeamID)

	t.Run("nil team", func(t *testing.T) {
		switched, err := f.current.SwitchTeam(ctx, fresh, nil)
		require.NoError(t, err)
		assert.False(t, switched)
	})

	t.Run("nil user", func(t *testing.T) {
		_, err := f.current.SwitchTeam(ctx, nil, team)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("member", func(t *testing.T) {
		_, err := f.service.AddMember(ctx, team, fresh, "editor")
		require.NoError(t, err)

		switched, err := f.current.SwitchTeam(ctx, fresh, team)
		require.NoError(t, err)
		assert.True(t, switched)
		require.NotNil(t, f.reload(t, fresh).CurrentTeamID)
		assert.Equal(t, team.ID, *f.reload(t, fresh).CurrentTeamID)

		current, err := f.current.IsCurrentTeam(ctx, fresh, team)
		require.NoError(t, err)
		assert.True(t, current)
	})

	t.Run("owner", func(t *testing.T) {
		switched, err := f.current.SwitchTeam(ctx, owner, team)
		require.NoError(t, err)
		assert.True(t, switched)
	})

	t.Run("soft-deleted team", func(t *testing.T) {
		archived := f.team(t, owner, "Archived", false)
		_, err := f.service.AddMember(ctx, archived, fresh, "editor")
		require.NoError(t, err)
		require.NoError(t, f.service.DeleteTeam(ctx, archived))

		for _, u := range []*users.User{owner, fresh} {
			switched, err := f.current.SwitchTeam(ctx, u, archived)
			require.NoError(t, err)
			assert.False(t, switched)

			reloaded := f.reload(t, u)
			require.NotNil(t, reloaded.CurrentTeamID)
			assert.Equal(t, team.ID, *reloaded.CurrentTeamID, "stored team is unchanged")

			state, err := f.current.State(ctx, reloaded)
			require.NoError(t, err)
			assert.Equal(t, Set, state)
		}
	})

	t.Run("team gone", func(t *testing.T) {
		switched, err := f.current.SwitchTeam(ctx, owner, &Team{ID: team.ID + 1000, UserID: &owner.ID})
		require.NoError(t, err)
		assert.False(t, switched)
	})
}

func TestCurrentTeam_SwitchMetrics(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	current := NewCurrentTeam(f.db, f.resolver, nil, metrics, nil)

	owner := f.user(t, "owner")
	stranger := f.user(t, "stranger")
	team := f.team(t, owner, "Acme", false)

	_, err := current.SwitchTeam(ctx, owner, team)
	require.NoError(t, err)
	_, err = current.SwitchTeam(ctx, stranger, team)
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.TeamSwitchesTotal.WithLabelValues("switched")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.TeamSwitchesTotal.WithLabelValues("rejected")))
}

func TestCurrentTeam_Initialize(t *testing.T) {
	ctx := context.Background()

	t.Run("prefers personal team", func(t *testing.T) {
		f := newFixture(t)
		u := f.user(t, "alice")
		f.team(t, u, "Shared", false)
		personal := f.team(t, u, "Alice's Team", true)

		ok, err := f.current.Initialize(ctx, u)
		require.NoError(t, err)
		assert.True(t, ok)
		require.NotNil(t, u.CurrentTeamID)
		assert.Equal(t, personal.ID, *u.CurrentTeamID)
		assert.Equal(t, personal.ID, *f.reload(t, u).CurrentTeamID)
	})

	t.Run("falls back to first team", func(t *testing.T) {
		f := newFixture(t)
		owner := f.user(t, "owner")
		u := f.user(t, "bob")
		first := f.team(t, owner, "First", false)
		second := f.team(t, owner, "Second", false)
		_, err := f.service.AddMember(ctx, second, u, "editor")
		require.NoError(t, err)
		_, err = f.service.AddMember(ctx, first, u, "editor")
		require.NoError(t, err)

		ok, err := f.current.Initialize(ctx, u)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, first.ID, *f.reload(t, u).CurrentTeamID)
	})

	t.Run("no teams stays unset", func(t *testing.T) {
		f := newFixture(t)
		u := f.user(t, "lonely")

		ok, err := f.current.Initialize(ctx, u)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, f.reload(t, u).CurrentTeamID)
	})

	t.Run("never overwrites stale value", func(t *testing.T) {
		f := newFixture(t)
		owner := f.user(t, "owner")
		u := f.user(t, "carol")
		team := f.team(t, owner, "Acme", false)
		f.team(t, u, "Carol's Team", true)

		_, err := f.service.AddMember(ctx, team, u, "editor")
		require.NoError(t, err)
		_, err = f.current.SwitchTeam(ctx, u, team)
		require.NoError(t, err)

		// drop the row directly so the reference goes stale
		_, err = f.service.Store().DeleteMembership(ctx, team.ID, u.ID)
		require.NoError(t, err)

		state, err := f.current.State(ctx, u)
		require.NoError(t, err)
		assert.Equal(t, Stale, state)

		got, err := f.current.GetCurrentTeam(ctx, u)
		require.NoError(t, err)
		assert.Nil(t, got)

		ok, err := f.current.Initialize(ctx, u)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, team.ID, *f.reload(t, u).CurrentTeamID)
	})

	t.Run("conditional write loses to concurrent set", func(t *testing.T) {
		f := newFixture(t)
		u := f.user(t, "dave")
		personal := f.team(t, u, "Dave's Team", true)
		other := f.team(t, u, "Other", false)

		// another request already stored a team
		require.NoError(t, f.users.SetCurrentTeam(ctx, u.ID, &other.ID))

		ok, err := f.current.Initialize(ctx, u)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, u.CurrentTeamID)
		assert.NotEqual(t, personal.ID, *f.reload(t, u).CurrentTeamID)
	})

	t.Run("nil user", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.current.Initialize(ctx, nil)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})
}

func TestCurrentTeam_TrashedTeamIsStale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "erin")
	team := f.team(t, u, "Erin's Team", true)

	ok, err := f.current.Initialize(ctx, u)
	require.NoError(t, err)
	require.True(t, ok)

	state, err := f.current.State(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, Set, state)

	require.NoError(t, f.service.DeleteTeam(ctx, team))

	state, err = f.current.State(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, Stale, state)
	assert.Equal(t, "stale", state.String())
}
