package teams

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/platinummonkey/tenantry/pkg/audit"
	"github.com/platinummonkey/tenantry/pkg/observability"
	"github.com/platinummonkey/tenantry/pkg/rbac"
	"github.com/platinummonkey/tenantry/pkg/storage"
	"github.com/platinummonkey/tenantry/pkg/users"
)

var teamsTracer = otel.Tracer("tenantry/teams")

// Service manages team lifecycle: creation, membership, invitations,
// ownership and deletion
type Service struct {
	db      *storage.DB
	store   *Store
	catalog *rbac.Catalog
	audit   audit.Logger
	logger  *observability.Logger
	metrics *observability.Metrics
	otel    *observability.OTelMetrics
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the logger
func WithLogger(logger *observability.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records operation counts in Prometheus
func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Service) { s.metrics = metrics }
}

// WithOTelMetrics records operation counts through OpenTelemetry
func WithOTelMetrics(metrics *observability.OTelMetrics) Option {
	return func(s *Service) { s.otel = metrics }
}

// WithAuditLogger records lifecycle events
func WithAuditLogger(logger audit.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.audit = logger
		}
	}
}

// WithCatalog removes team-scoped roles and assignments when a team is
// hard-deleted
func WithCatalog(catalog *rbac.Catalog) Option {
	return func(s *Service) { s.catalog = catalog }
}

// NewService creates a team lifecycle service
func NewService(db *storage.DB, opts ...Option) *Service {
	s := &Service{
		db:     db,
		store:  NewStore(db),
		audit:  audit.NopLogger{},
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying store
func (s *Service) Store() *Store {
	return s.store
}

// begin opens a span for op and returns a function that records the outcome
func (s *Service) begin(ctx context.Context, op string, teamID int64) (context.Context, func(error)) {
	ctx, span := teamsTracer.Start(ctx, "teams."+op)
	if teamID != 0 {
		span.SetAttributes(attribute.Int64("team.id", teamID))
	}
	return ctx, func(err error) {
		s.metrics.RecordMembershipOperation(op, err)
		s.otel.RecordMembershipOperation(ctx, op, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, op+" failed")
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

// log returns the service logger tagged with the trace of ctx
func (s *Service) log(ctx context.Context) *observability.Logger {
	return observability.UpdateLoggerWithTraceContext(ctx, s.logger)
}

func (s *Service) record(ctx context.Context, event *audit.AuditEvent) {
	if err := s.audit.Log(ctx, event); err != nil {
		s.log(ctx).WithError(err).WithField("audit_event", string(event.EventType)).Error("failed to record audit event")
	}
}

func requireTeam(team *Team) error {
	if team == nil {
		return fmt.Errorf("team is required: %w", ErrInvalidArgument)
	}
	return nil
}

func requireTeamAndUser(team *Team, user *users.User) error {
	if err := requireTeam(team); err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("user is required: %w", ErrInvalidArgument)
	}
	return nil
}

// CreateTeam creates a team owned by owner. The owner gets no membership
// row. An owner may hold only one personal team.
func (s *Service) CreateTeam(ctx context.Context, owner *users.User, name string, personal bool) (team *Team, err error) {
	ctx, done := s.begin(ctx, "create_team", 0)
	defer func() { done(err) }()

	if owner == nil {
		return nil, fmt.Errorf("owner is required: %w", ErrInvalidArgument)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("team name is required: %w", ErrInvalidArgument)
	}

	if personal {
		existing, err := s.store.PersonalTeam(ctx, owner.ID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		if existing != nil {
			return nil, fmt.Errorf("user %d: %w", owner.ID, ErrPersonalTeamExists)
		}
	}

	ownerID := owner.ID
	team = &Team{UserID: &ownerID, Name: name, PersonalTeam: personal}
	if err := s.store.CreateTeam(ctx, team); err != nil {
		return nil, err
	}

	s.log(ctx).WithFields(map[string]interface{}{
		"team_id":  team.ID,
		"owner_id": owner.ID,
		"personal": personal,
	}).Info("team created")
	s.record(ctx, audit.NewEvent(ctx, audit.EventTypeTeamCreate, audit.EventStatusSuccess).
		ForTeam(team.ID, audit.ResourceTypeTeam, team.ID).
		With("personal", personal))
	return team, nil
}

// UpdateTeamName renames a team
func (s *Service) UpdateTeamName(ctx context.Context, team *Team, name string) (err error) {
	if err := requireTeam(team); err != nil {
		return err
	}
	ctx, done := s.begin(ctx, "update_team", team.ID)
	defer func() { done(err) }()

	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("team name is required: %w", ErrInvalidArgument)
	}
	previous := team.Name
	team.Name = name
	if err := s.store.UpdateTeam(ctx, team); err != nil {
		team.Name = previous
		return err
	}
	s.record(ctx, audit.NewEvent(ctx, audit.EventTypeTeamUpdate, audit.EventStatusSuccess).
		ForTeam(team.ID, audit.ResourceTypeTeam, team.ID).
		With("previous_name", previous))
	return nil
}

// AddMember attaches user to team with role. Adding an existing member
// updates the role of the existing row instead of creating a second one.
func (s *Service) AddMember(ctx context.Context, team *Team, user *users.User, role string) (m *Membership, err error) {
	if err := requireTeamAndUser(team, user); err != nil {
		return nil, err
	}
	ctx, done := s.begin(ctx, "add_member", team.ID)
	defer func() { done(err) }()

	m = &Membership{TeamID: team.ID, UserID: user.ID, Role: role}
	err = s.store.InsertMembership(ctx, m)
	if storage.IsUniqueViolation(err) {
		s.log(ctx).WithFields(map[string]interface{}{
			"team_id": team.ID,
			"user_id": user.ID,
		}).Debug("member already attached, updating role")
		if err := s.store.UpdateMembership(ctx, team.ID, user.ID, role, nil); err != nil {
			return nil, err
		}
		m, err = s.store.GetMembership(ctx, team.ID, user.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to add member: %w", err)
	}

	s.record(ctx, audit.NewEvent(ctx, audit.EventTypeMemberAdd, audit.EventStatusSuccess).
		ForTeam(team.ID, audit.ResourceTypeMembership, user.ID).
		With("role", role))
	return m, nil
}

// RemoveMember detaches user from team and clears the user's current team
// when it points at team
func (s *Service) RemoveMember(ctx context.Context, team *Team, user *users.User) (err error) {
	if err := requireTeamAndUser(team, user); err != nil {
		return err
	}
	ctx, done := s.begin(ctx, "remove_member", team.ID)
	defer func() { done(err) }()

	owner := team.UserID != nil && *team.UserID == user.ID
	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := NewStore(tx).DeleteMembership(ctx, team.ID, user.ID); err != nil {
			return err
		}
		if owner {
			return nil
		}
		_, err := users.NewStore(tx).ClearCurrentTeam(ctx, team.ID, user.ID)
		return err
	})
	if err != nil {
		return err
	}
	if !owner && user.CurrentTeamID != nil && *user.CurrentTeamID == team.ID {
		user.CurrentTeamID = nil
	}

	s.record(ctx, audit.NewEvent(ctx, audit.EventTypeMemberRemove, audit.EventStatusSuccess).
		ForTeam(team.ID, audit.ResourceTypeMembership, user.ID))
	return nil
}

// UpdateMemberRole changes a member's role. The membership permissions are
// replaced only when permissions is non-nil.
func (s *Service) UpdateMemberRole(ctx context.Context, team *Team, user *users.User, role string, permissions []string) (err error) {
	if err := requireTeamAndUser(team, user); err != nil {
		return err
	}
	ctx, done := s.begin(ctx, "update_member_role", team.ID)
	defer func() { done(err) }()

	err = s.store.UpdateMembership(ctx, team.ID, user.ID, role, permissions)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("user %d in team %d: %w", user.ID, team.ID, ErrNotAMember)
	}
	if err != nil {
		return err
	}

	s.record(ctx, audit.NewEvent(ctx, audit.EventTypeMemberRoleChange, audit.EventStatusSuccess).
		ForTeam(team.ID, audit.ResourceTypeMembership, user.ID).
		With("role", role))
	return nil
}

// Members lists the membership rows of team
func (s *Service) Members(ctx context.Context, team *Team) ([]*Membership, error) {
	if err := requireTeam(team); err != nil {
		return nil, err
	}
	return s.store.Members(ctx, team.ID)
}

// CreateInvitation invites email to join team with role. Several pending
// invitations for the same address are allowed.
func (s *Service) CreateInvitation(ctx context.Context, team *Team, inviter *users.User, email, role string) (inv *Invitation, err error) {
	if err := requireTeam(team); err != nil {
		return nil, err
	}
	ctx, done := s.begin(ctx, "create_invitation", team.ID)
	defer func() { done(err) }()

	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("email is required: %w", ErrInvalidArgument)
	}
	inv = &Invitation{
		TeamID: team.ID,
		Email:  email,
		Role:   role,
		Token:  strings.ReplaceAll(uuid.NewString(), "-", ""),
	}
	if inviter != nil {
		id := inviter.ID
		inv.InviterID = &id
	}
	if err := s.store.CreateInvitation(ctx, inv); err != nil {
		return nil, err
	}

	s.record(ctx, audit.NewEvent(ctx, audit.EventTypeInvitationCreate, audit.EventStatusSuccess).
		ForTeam(team.ID, audit.ResourceTypeInvitation, inv.ID).
		With("email", inv.Email).
		With("role", role))
	return inv, nil
}

// InvitationByToken finds a pending invitation by its token
func (s *Service) InvitationByToken(ctx context.Context, token string) (*Invitation, error) {
	return s.store.GetInvitationByToken(ctx, token)
}

// PendingInvitations lists the invitations of team
func (s *Service) PendingInvitations(ctx context.Context, team *Team) ([]*Invitation, error) {
	if err := requireTeam(team); err != nil {
		return nil, err
	}
	return s.store.Invitations(ctx, team.ID)
}

// AcceptInvitation makes user a member of the invitation's team with the
// invited role and deletes the invitation, atomically
func (s *Service) AcceptInvitation(ctx context.Context, inv *Invitation, user *users.User) (m *Membership, err error) {
	if inv == nil {
		return nil, fmt.Errorf("invitation is required: %w", ErrInvalidArgument)
	}
	if user == nil {
		return nil, fmt.Errorf("user is required: %w", ErrInvalidArgument)
	}
	ctx, done := s.begin(ctx, "accept_invitation", inv.TeamID)
	defer func() { done(err) }()

	m = &Membership{TeamID: inv.TeamID, UserID: user.ID, Role: inv.Role}
	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		store := NewStore(tx)
		if err := store.UpsertMembership(ctx, m); err != nil {
			return err
		}
		return store.DeleteInvitation(ctx, inv.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to accept invitation: %w", err)
	}

	s.record(ctx, audit.NewEvent(ctx, audit.EventTypeInvitationAccept, audit.EventStatusSuccess).
		ForTeam(inv.TeamID, audit.ResourceTypeInvitation, inv.ID).
		With("user_id", user.ID).
		With("role", inv.Role))
	return m, nil
}

// DeclineInvitation deletes the invitation
func (s *Service) DeclineInvitation(ctx context.Context, inv *Invitation) (err error) {
	if inv == nil {
		return fmt.Errorf("invitation is required: %w", ErrInvalidArgument)
	}
	ctx, done := s.begin(ctx, "decline_invitation", inv.TeamID)
	defer func() { done(err) }()

	if err := s.store.DeleteInvitation(ctx, inv.ID); err != nil {
		return err
	}
	s.record(ctx, audit.NewEvent(ctx, audit.EventTypeInvitationDecline, audit.EventStatusSuccess).
		ForTeam(inv.TeamID, audit.ResourceTypeInvitation, inv.ID))
	return nil
}

// PurgeTeam clears every current team reference to team, detaches all
// members and invitations, and deletes the team, in one transaction
func (s *Service) PurgeTeam(ctx context.Context, team *Team) (err error) {
	if err := requireTeam(team); err != nil {
		return err
	}
	ctx, done := s.begin(ctx, "purge_team", team.ID)
	defer func() { done(err) }()

	if err := s.purge(ctx, team); err != nil {
		return err
	}
	s.record(ctx, audit.NewEvent(ctx, audit.EventTypeTeamPurge, audit.EventStatusSuccess).
		ForTeam(team.ID, audit.ResourceTypeTeam, team.ID))
	return nil
}

// ForceDeleteTeam hard-deletes a team, detaching members and clearing
// dangling current team references
func (s *Service) ForceDeleteTeam(ctx context.Context, team *Team) (err error) {
	if err := requireTeam(team); err != nil {
		return err
	}
	ctx, done := s.begin(ctx, "force_delete_team", team.ID)
	defer func() { done(err) }()

	if err := s.purge(ctx, team); err != nil {
		return err
	}
	s.record(ctx, audit.NewEvent(ctx, audit.EventTypeTeamForceDelete, audit.EventStatusSuccess).
		ForTeam(team.ID, audit.ResourceTypeTeam, team.ID))
	return nil
}

// PurgeTeamIn is PurgeTeam running on q, a transaction owned by the caller.
// It records no audit event, since the caller may still roll back.
func (s *Service) PurgeTeamIn(ctx context.Context, q storage.Querier, team *Team) (err error) {
	if err := requireTeam(team); err != nil {
		return err
	}
	ctx, done := s.begin(ctx, "purge_team", team.ID)
	defer func() { done(err) }()

	cleared, detached, err := s.purgeRows(ctx, q, team.ID)
	if err != nil {
		return err
	}
	s.logPurge(ctx, team.ID, cleared, detached)
	return nil
}

func (s *Service) purge(ctx context.Context, team *Team) error {
	var cleared, detached int64
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		cleared, detached, err = s.purgeRows(ctx, tx, team.ID)
		return err
	})
	if err != nil {
		return err
	}
	s.logPurge(ctx, team.ID, cleared, detached)
	return nil
}

func (s *Service) purgeRows(ctx context.Context, q storage.Querier, teamID int64) (cleared, detached int64, err error) {
	if cleared, err = users.NewStore(q).ClearCurrentTeam(ctx, teamID); err != nil {
		return 0, 0, err
	}
	store := NewStore(q)
	if detached, err = store.DeleteMemberships(ctx, teamID); err != nil {
		return 0, 0, err
	}
	if err := store.DeleteInvitations(ctx, teamID); err != nil {
		return 0, 0, err
	}
	if s.catalog != nil {
		if err := s.catalog.WithQuerier(q).ForgetTeam(ctx, teamID); err != nil {
			return 0, 0, err
		}
	}
	return cleared, detached, store.DeleteTeam(ctx, teamID)
}

func (s *Service) logPurge(ctx context.Context, teamID, cleared, detached int64) {
	s.log(ctx).WithFields(map[string]interface{}{
		"team_id":               teamID,
		"current_teams_cleared": cleared,
		"members_detached":      detached,
	}).Info("team purged")
}

// DeleteTeam soft-deletes a team. Memberships are kept so the team can be
// restored.
func (s *Service) DeleteTeam(ctx context.Context, team *Team) (err error) {
	if err := requireTeam(team); err != nil {
		return err
	}
	ctx, done := s.begin(ctx, "delete_team", team.ID)
	defer func() { done(err) }()

	deletedAt, err := s.store.SoftDeleteTeam(ctx, team.ID)
	if err != nil {
		return err
	}
	team.DeletedAt = &deletedAt
	s.record(ctx, audit.NewEvent(ctx, audit.EventTypeTeamDelete, audit.EventStatusSuccess).
		ForTeam(team.ID, audit.ResourceTypeTeam, team.ID))
	return nil
}

// TransferOwnership makes newOwner, an existing member, the owner of team.
// The new owner's membership row is removed and the former owner becomes a
// member with formerOwnerRole. Personal teams cannot be transferred.
func (s *Service) TransferOwnership(ctx context.Context, team *Team, newOwner *users.User, formerOwnerRole string) (err error) {
	if err := requireTeamAndUser(team, newOwner); err != nil {
		return err
	}
	ctx, done := s.begin(ctx, "transfer_ownership", team.ID)
	defer func() { done(err) }()

	if team.PersonalTeam {
		return fmt.Errorf("cannot transfer personal team %d: %w", team.ID, ErrInvalidArgument)
	}
	if team.UserID != nil && *team.UserID == newOwner.ID {
		return nil
	}

	formerOwner := team.UserID
	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		store := NewStore(tx)
		removed, err := store.DeleteMembership(ctx, team.ID, newOwner.ID)
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("user %d in team %d: %w", newOwner.ID, team.ID, ErrNotAMember)
		}
		if formerOwner != nil {
			if err := store.UpsertMembership(ctx, &Membership{
				TeamID: team.ID,
				UserID: *formerOwner,
				Role:   formerOwnerRole,
			}); err != nil {
				return err
			}
		}
		updated := *team
		id := newOwner.ID
		updated.UserID = &id
		return store.UpdateTeam(ctx, &updated)
	})
	if err != nil {
		return err
	}
	id := newOwner.ID
	team.UserID = &id

	event := audit.NewEvent(ctx, audit.EventTypeTeamOwnershipTransfer, audit.EventStatusSuccess).
		ForTeam(team.ID, audit.ResourceTypeTeam, team.ID).
		With("new_owner_id", newOwner.ID)
	if formerOwner != nil {
		event.With("former_owner_id", *formerOwner)
	}
	s.record(ctx, event)
	return nil
}

// ClearStaleCurrentTeams unsets current team references that no longer
// point at a team the user belongs to
func (s *Service) ClearStaleCurrentTeams(ctx context.Context) (n int64, err error) {
	ctx, done := s.begin(ctx, "clear_stale_current_teams", 0)
	defer func() { done(err) }()

	n, err = s.store.ClearStaleCurrentTeams(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log(ctx).WithField("users", n).Info("cleared stale current teams")
	}
	return n, nil
}
