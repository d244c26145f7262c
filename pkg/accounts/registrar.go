package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/platinummonkey/tenantry/pkg/audit"
	"github.com/platinummonkey/tenantry/pkg/observability"
	"github.com/platinummonkey/tenantry/pkg/rbac"
	"github.com/platinummonkey/tenantry/pkg/storage"
	"github.com/platinummonkey/tenantry/pkg/teams"
	"github.com/platinummonkey/tenantry/pkg/tenancy"
	"github.com/platinummonkey/tenantry/pkg/users"
)

var (
	// ErrInvalidCredentials is returned when the email or password is wrong
	// or the account is inactive
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrOwnsTeams is returned when deleting a user that still owns shared
	// teams
	ErrOwnsTeams = errors.New("user still owns teams")
)

const minPasswordLength = 8

// RegisterInput holds the fields of a new account
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Validate checks the input before any write happens
func (in RegisterInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("name is required: %w", storage.ErrInvalidArgument)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return fmt.Errorf("invalid email %q: %w", in.Email, storage.ErrInvalidArgument)
	}
	if len(in.Password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters: %w", minPasswordLength, storage.ErrInvalidArgument)
	}
	return nil
}

// Registrar creates, authenticates and deletes accounts. Registration and
// deletion each run in a single transaction.
type Registrar struct {
	db      *storage.DB
	users   *users.Service
	tenants *tenancy.Store
	teams   *teams.Service
	catalog *rbac.Catalog
	hasher  *users.Hasher
	audit   audit.Logger
	logger  *observability.Logger
}

// Config wires the collaborators of a Registrar. Tenants, Catalog and Audit
// are optional.
type Config struct {
	DB      *storage.DB
	Users   *users.Service
	Tenants *tenancy.Store
	Teams   *teams.Service
	Catalog *rbac.Catalog
	Hasher  *users.Hasher
	Audit   audit.Logger
	Logger  *observability.Logger
}

// NewRegistrar creates a registrar
func NewRegistrar(cfg Config) *Registrar {
	r := &Registrar{
		db:      cfg.DB,
		users:   cfg.Users,
		tenants: cfg.Tenants,
		teams:   cfg.Teams,
		catalog: cfg.Catalog,
		hasher:  cfg.Hasher,
		audit:   cfg.Audit,
		logger:  cfg.Logger,
	}
	if r.hasher == nil {
		r.hasher = users.NewHasher(0)
	}
	if r.audit == nil {
		r.audit = audit.NopLogger{}
	}
	if r.logger == nil {
		r.logger = observability.NopLogger()
	}
	return r
}

// PersonalTeamName names the personal team created for a new account
func PersonalTeamName(name string) string {
	first := strings.Fields(name)
	if len(first) == 0 {
		return "Personal Team"
	}
	return first[0] + "'s Team"
}

// Register creates an account in the active tenant, gives it a personal
// team and makes that team current. Nothing is written unless every step
// succeeds.
func (r *Registrar) Register(ctx context.Context, ec tenancy.ExecutionContext, in RegisterInput) (*users.User, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	hash, err := r.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &users.User{
		Name:     strings.TrimSpace(in.Name),
		Email:    in.Email,
		Password: hash,
		IsActive: true,
	}
	var team *teams.Team
	err = r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := r.users.WithQuerier(tx).Create(ctx, ec, u); err != nil {
			return err
		}
		if r.tenants != nil && u.TenantID != nil {
			if err := r.tenants.WithQuerier(tx).AttachUser(ctx, *u.TenantID, u.ID); err != nil {
				return err
			}
		}

		ownerID := u.ID
		team = &teams.Team{UserID: &ownerID, Name: PersonalTeamName(u.Name), PersonalTeam: true}
		if err := teams.NewStore(tx).CreateTeam(ctx, team); err != nil {
			return fmt.Errorf("failed to create personal team: %w", err)
		}
		_, err := users.NewStore(tx).SetCurrentTeamIfUnset(ctx, u.ID, team.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	teamID := team.ID
	u.CurrentTeamID = &teamID

	r.logger.WithFields(map[string]interface{}{
		"user_id": u.ID,
		"team_id": team.ID,
	}).Info("user registered")
	r.record(ctx, audit.NewEvent(ctx, audit.EventTypeTeamCreate, audit.EventStatusSuccess).
		ForTeam(team.ID, audit.ResourceTypeTeam, team.ID).
		With("personal", true))
	r.record(ctx, audit.NewEvent(ctx, audit.EventTypeUserRegister, audit.EventStatusSuccess).
		ForUser(u.ID).
		With("personal_team_id", team.ID))
	return u, nil
}

func (r *Registrar) record(ctx context.Context, event *audit.AuditEvent) {
	if err := r.audit.Log(ctx, event); err != nil {
		r.logger.WithError(err).Error("failed to record audit event")
	}
}

// Authenticate returns the active user matching email and password
func (r *Registrar) Authenticate(ctx context.Context, email, password string) (*users.User, error) {
	u, err := r.users.Store().GetByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrInvalidCredentials
	}
	if err := r.hasher.Compare(u.Password, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// DeleteUser purges the user's personal team, detaches the user from every
// team and soft-deletes the account, in one transaction. Users owning shared
// teams must transfer or delete them first.
func (r *Registrar) DeleteUser(ctx context.Context, u *users.User) error {
	if u == nil {
		return fmt.Errorf("user is required: %w", storage.ErrInvalidArgument)
	}

	var personal *teams.Team
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		store := teams.NewStore(tx)
		shared, err := store.SharedTeamCount(ctx, u.ID)
		if err != nil {
			return err
		}
		if shared > 0 {
			return fmt.Errorf("user %d owns %d teams: %w", u.ID, shared, ErrOwnsTeams)
		}

		personal, err = store.PersonalTeam(ctx, u.ID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		if personal != nil {
			if err := r.teams.PurgeTeamIn(ctx, tx, personal); err != nil {
				return err
			}
		}

		if _, err := store.DeleteUserMemberships(ctx, u.ID); err != nil {
			return err
		}
		accounts := users.NewStore(tx)
		if err := accounts.SetCurrentTeam(ctx, u.ID, nil); err != nil {
			return err
		}
		if err := accounts.SoftDelete(ctx, u.ID); err != nil {
			return err
		}
		if r.catalog != nil {
			return r.catalog.WithQuerier(tx).ForgetUser(ctx, u.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	u.CurrentTeamID = nil

	r.logger.WithField("user_id", u.ID).Info("user deleted")
	if personal != nil {
		r.record(ctx, audit.NewEvent(ctx, audit.EventTypeTeamPurge, audit.EventStatusSuccess).
			ForTeam(personal.ID, audit.ResourceTypeTeam, personal.ID))
	}
	r.record(ctx, audit.NewEvent(ctx, audit.EventTypeUserDelete, audit.EventStatusSuccess).ForUser(u.ID))
	return nil
}
