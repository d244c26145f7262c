package tenancy

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrTenantUnresolved is returned by an ExecutionContext that cannot
	// determine the active tenant.
	ErrTenantUnresolved = errors.New("active tenant could not be resolved")

	// ErrSlugTaken is returned when a tenant name slugs to an existing slug.
	ErrSlugTaken = errors.New("tenant slug already taken")
)

// Tenant is an isolation boundary for tenant-scoped entities
type Tenant struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TenantScoped is implemented by entities that carry a tenant id.
type TenantScoped interface {
	GetTenantID() *int64
	SetTenantID(id int64)
}

// Slugify derives a URL-safe slug from a name: lowercase ASCII letters and
// digits, with every other run of characters collapsed to a single dash.
// Names without any ASCII letter or digit get "tenant-" followed by a hash
// of the name, so a non-empty name never yields an empty slug.
func Slugify(name string) string {
	name = strings.TrimSpace(name)
	if slug := asciiSlug(name); slug != "" || name == "" {
		return slug
	}
	sum := uuid.NewSHA1(uuid.NameSpaceURL, []byte(name))
	return "tenant-" + strings.ReplaceAll(sum.String(), "-", "")[:12]
}

func asciiSlug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
