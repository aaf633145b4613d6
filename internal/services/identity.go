package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/campuslife/apiserver/internal/apperr"
	"github.com/campuslife/apiserver/internal/store"
	"github.com/campuslife/apiserver/types"
)

// IdentityUserRepository defines the persistence operations the resolver needs.
type IdentityUserRepository interface {
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
}

// IdentityResolver turns an authenticated email into a Principal, lazily
// provisioning the user record on first sight.
type IdentityResolver struct {
	repo        IdentityUserRepository
	adminEmails map[string]bool
	logger      *slog.Logger
}

func NewIdentityResolver(repo IdentityUserRepository, adminEmails []string, logger *slog.Logger) *IdentityResolver {
	allowList := make(map[string]bool, len(adminEmails))
	for _, email := range adminEmails {
		if normalized := NormalizeEmail(email); normalized != "" {
			allowList[normalized] = true
		}
	}
	return &IdentityResolver{repo: repo, adminEmails: allowList, logger: logger}
}

// NormalizeEmail lowercases and trims an email. All identity comparisons use
// this form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsAdminEmail reports whether the email is on the admin allow-list.
func (r *IdentityResolver) IsAdminEmail(email string) bool {
	return r.adminEmails[NormalizeEmail(email)]
}

// Resolve finds or provisions the user record for the given email and returns
// the Principal. cached carries the previous session's view of the identity;
// when the store is unavailable the resolver degrades to it rather than
// failing the request, so the returned principal may be stale by one write.
func (r *IdentityResolver) Resolve(ctx context.Context, email, name string, cached types.Principal) (types.Principal, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return types.Principal{}, apperr.New(apperr.ErrUnauthorized, "valid access token is required")
	}

	user, err := r.repo.GetByEmail(ctx, normalized)
	switch {
	case err == nil:
		if r.adminEmails[normalized] && user.Role != types.RoleAdmin {
			user.Role = types.RoleAdmin
			if _, updateErr := r.repo.Update(ctx, user); updateErr != nil {
				// Promotion is retried on the next request; the derived role
				// still applies to this one.
				r.logger.ErrorContext(ctx, "admin role sync failed", "user_id", user.ID, "error", updateErr)
			}
		}
	case errors.Is(err, store.ErrNotFound):
		role := types.RoleUser
		if r.adminEmails[normalized] {
			role = types.RoleAdmin
		}
		user, err = r.repo.Create(ctx, types.User{Email: normalized, Name: name, Role: role})
		if err != nil {
			return r.degraded(ctx, normalized, name, cached, err), nil
		}
	default:
		return r.degraded(ctx, normalized, name, cached, err), nil
	}

	return types.Principal{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
	}, nil
}

// degraded builds a principal from the cached session identity when the user
// store cannot be reached. Availability over consistency.
func (r *IdentityResolver) degraded(ctx context.Context, email, name string, cached types.Principal, cause error) types.Principal {
	r.logger.ErrorContext(ctx, "identity resolution degraded", "error", cause)

	role := cached.Role
	if role == "" {
		role = types.RoleUser
		if r.adminEmails[email] {
			role = types.RoleAdmin
		}
	}
	if name == "" {
		name = cached.Name
	}
	return types.Principal{
		ID:    cached.ID,
		Email: email,
		Name:  name,
		Role:  role,
	}
}
