package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/platinummonkey/tenantry/pkg/httputil"
	"github.com/platinummonkey/tenantry/pkg/storage"
	"github.com/platinummonkey/tenantry/pkg/teams"
	"github.com/platinummonkey/tenantry/pkg/tenancy"
	"github.com/platinummonkey/tenantry/pkg/users"
)

// PermissionChecker decides whether a user may exercise a permission in a team
type PermissionChecker interface {
	Can(ctx context.Context, ec tenancy.ExecutionContext, user *users.User, team *teams.Team, permission string) (bool, error)
}

// TeamLookup finds a team by id
type TeamLookup interface {
	GetTeam(ctx context.Context, id int64) (*teams.Team, error)
}

// CurrentTeamReader returns the user's current team without side effects
type CurrentTeamReader interface {
	GetCurrentTeam(ctx context.Context, user *users.User) (*teams.Team, error)
}

// TeamGuard gates routes on a team permission. The team comes from the
// {team_id} route variable, or else the user's current team.
type TeamGuard struct {
	checker PermissionChecker
	teams   TeamLookup
	current CurrentTeamReader
}

// NewTeamGuard creates a team guard
func NewTeamGuard(checker PermissionChecker, teams TeamLookup, current CurrentTeamReader) *TeamGuard {
	return &TeamGuard{checker: checker, teams: teams, current: current}
}

// Require returns middleware that answers 403 unless the authenticated user
// holds permission in the resolved team
func (g *TeamGuard) Require(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := UserFromContext(r.Context())
			if u == nil {
				httputil.WriteErrorMessage(w, http.StatusUnauthorized, "authentication required")
				return
			}

			team, status := g.resolveTeam(r, u)
			if team == nil {
				switch status {
				case http.StatusBadRequest:
					httputil.WriteErrorMessage(w, status, "invalid team id")
				case http.StatusInternalServerError:
					httputil.WriteErrorMessage(w, status, "failed to resolve team")
				default:
					httputil.WriteErrorMessage(w, http.StatusForbidden, "no team selected")
				}
				return
			}

			ok, err := g.checker.Can(r.Context(), tenancy.RequestContext{}, u, team, permission)
			if err != nil {
				httputil.WriteErrorMessage(w, http.StatusInternalServerError, "authorization failed")
				return
			}
			if !ok {
				httputil.WriteErrorMessage(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (g *TeamGuard) resolveTeam(r *http.Request, u *users.User) (*teams.Team, int) {
	id, ok, err := httputil.PathInt64(r, "team_id")
	if err != nil {
		return nil, http.StatusBadRequest
	}
	if ok {
		team, err := g.teams.GetTeam(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, http.StatusForbidden
		}
		if err != nil {
			return nil, http.StatusInternalServerError
		}
		return team, http.StatusOK
	}

	team, err := g.current.GetCurrentTeam(r.Context(), u)
	if err != nil {
		return nil, http.StatusInternalServerError
	}
	return team, http.StatusOK
}
