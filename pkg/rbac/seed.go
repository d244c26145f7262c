package rbac

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/tenantry/pkg/storage"
)

//go:embed default_roles.yaml
var defaultSeed []byte

// Seed describes permissions and global roles to install
type Seed struct {
	Guard       string     `yaml:"guard"`
	Permissions []string   `yaml:"permissions"`
	Roles       []SeedRole `yaml:"roles"`
}

// SeedRole is a role entry in a seed file. A role is synced to exactly the
// listed permissions.
type SeedRole struct {
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

// DefaultSeed returns the built-in admin and editor roles
func DefaultSeed() *Seed {
	seed, err := ParseSeed(bytes.NewReader(defaultSeed))
	if err != nil {
		panic(fmt.Sprintf("invalid built-in role seed: %v", err))
	}
	return seed
}

// ParseSeed decodes a YAML seed
func ParseSeed(r io.Reader) (*Seed, error) {
	var seed Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse role seed: %w", err)
	}
	for i, role := range seed.Roles {
		if role.Name == "" {
			return nil, fmt.Errorf("role %d has no name: %w", i, storage.ErrInvalidArgument)
		}
	}
	return &seed, nil
}

// LoadSeed reads a YAML seed file
func LoadSeed(path string) (*Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open role seed: %w", err)
	}
	defer f.Close()
	return ParseSeed(f)
}

// ApplySeed creates the seed's permissions and roles, syncing the
// permissions of roles that already exist. A seed guard other than the
// catalog's is rejected.
func (c *Catalog) ApplySeed(ctx context.Context, seed *Seed) error {
	if seed == nil {
		return fmt.Errorf("seed is required: %w", storage.ErrInvalidArgument)
	}
	if seed.Guard != "" && seed.Guard != c.guard {
		return fmt.Errorf("seed guard %q does not match catalog guard %q: %w", seed.Guard, c.guard, storage.ErrInvalidArgument)
	}

	for _, name := range seed.Permissions {
		if _, err := c.CreatePermission(ctx, name); err != nil {
			return err
		}
	}
	for _, role := range seed.Roles {
		_, err := c.FindRole(ctx, role.Name, nil)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			if _, err := c.CreateRole(ctx, role.Name, nil, role.Permissions...); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if err := c.SyncPermissions(ctx, role.Name, nil, role.Permissions...); err != nil {
				return err
			}
		}
	}
	c.logger.WithField("roles", len(seed.Roles)).Info("role seed applied")
	return nil
}
