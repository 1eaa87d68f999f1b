package account

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is a membership role within an account.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

var slugRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// Account is the tenant root. Every other row in the system hangs off an
// account id, and every query is scoped to one.
type Account struct {
	ID        uuid.UUID
	Name      string
	Slug      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewAccount constructs an account, validating the slug format up front.
func NewAccount(name, slug string) (*Account, error) {
	if name == "" {
		return nil, ErrEmptyAccountName
	}
	if !slugRegex.MatchString(slug) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSlug, slug)
	}

	now := time.Now().UTC()
	return &Account{
		ID:        uuid.New(),
		Name:      name,
		Slug:      slug,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// UserAccount links a user identity to an account with a role.
// Exactly one membership exists per (user, account) pair.
type UserAccount struct {
	ID        uuid.UUID
	UserID    string
	AccountID uuid.UUID
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewMembership constructs a membership record.
func NewMembership(userID string, accountID uuid.UUID, role Role) *UserAccount {
	now := time.Now().UTC()
	return &UserAccount{
		ID:        uuid.New(),
		UserID:    userID,
		AccountID: accountID,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

var slugCleanup = regexp.MustCompile(`[^a-z0-9-]`)

// DefaultSlug derives a unique account slug from a user identity and a fresh
// account id, used on the self-healing creation path. The uuid suffix makes
// collisions between users with similar identities practically impossible.
func DefaultSlug(userID string, accountID uuid.UUID) string {
	base := slugCleanup.ReplaceAllString(strings.ToLower(userID), "-")
	if len(base) > 12 {
		base = base[:12]
	}
	base = strings.Trim(base, "-")
	if base == "" {
		base = "account"
	}
	return base + "-" + accountID.String()[:8]
}

// DefaultName derives a display name for a self-created account.
func DefaultName(userID string) string {
	short := userID
	if len(short) > 8 {
		short = short[:8]
	}
	return "Account for " + short
}
