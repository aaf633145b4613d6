package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/campuslife/apiserver/internal/apperr"
	"github.com/campuslife/apiserver/internal/events"
	"github.com/campuslife/apiserver/internal/rules"
	"github.com/campuslife/apiserver/internal/store"
	"github.com/campuslife/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	List(ctx context.Context) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id int) error
}

// UserPatch is a partial user update; nil fields were absent from the request.
type UserPatch struct {
	Name  *string
	Email *string
	Role  *string
}

// UserService enforces the self-or-admin visibility and mutation rules over
// the user directory.
type UserService struct {
	repo      UserRepository
	publisher *events.Publisher
	logger    *slog.Logger
}

func NewUserService(repo UserRepository, publisher *events.Publisher, logger *slog.Logger) *UserService {
	return &UserService{repo: repo, publisher: publisher, logger: logger}
}

// List returns every user for admins, ordered by id ascending, and a
// singleton list holding only the caller's own record otherwise.
func (s *UserService) List(ctx context.Context, principal types.Principal) ([]types.User, error) {
	if !principal.IsAdmin() {
		return []types.User{{
			ID:    principal.ID,
			Email: principal.Email,
			Name:  principal.Name,
			Role:  principal.Role,
		}}, nil
	}

	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.Dependency("list users", err)
	}
	return users, nil
}

// Get returns a user record, visible to admins and to the record's owner.
func (s *UserService) Get(ctx context.Context, principal types.Principal, userID int) (types.User, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return types.User{}, err
	}
	if err := s.authorizeAccess(principal, user); err != nil {
		return types.User{}, err
	}
	return user, nil
}

// Update applies a patch to a user record. Name is mutable by self or admin;
// email and role only by admin. A non-admin patch to those fields is
// silently ignored, since only recognized, permission-gated fields are copied.
func (s *UserService) Update(ctx context.Context, principal types.Principal, userID int, patch UserPatch) (types.User, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return types.User{}, err
	}
	if err := s.authorizeAccess(principal, user); err != nil {
		return types.User{}, err
	}

	changed := false
	if patch.Name != nil {
		user.Name = *patch.Name
		changed = true
	}
	if principal.IsAdmin() {
		if patch.Email != nil {
			user.Email = NormalizeEmail(*patch.Email)
			changed = true
		}
		if patch.Role != nil {
			user.Role = *patch.Role
			changed = true
		}
	}

	if !changed {
		return user, nil
	}

	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.User{}, apperr.New(apperr.ErrConflict, "email already exists")
		}
		return types.User{}, apperr.Dependency("update user", err)
	}
	return updated, nil
}

// Delete removes a user record, permitted to admins and the record's owner.
func (s *UserService) Delete(ctx context.Context, principal types.Principal, userID int) error {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.authorizeAccess(principal, user); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.New(apperr.ErrNotFound, "not found")
		}
		return apperr.Dependency("delete user", err)
	}

	s.publisher.Emit(ctx, events.TopicUsers, events.UserDeleted, principal.ID, userID)
	return nil
}

// Create adds a user record. The admin-only gate is enforced by the router,
// not here.
func (s *UserService) Create(ctx context.Context, principal types.Principal, name, email, role string) (types.User, error) {
	if name == "" || email == "" {
		return types.User{}, apperr.Validation("name and email required")
	}
	if role == "" {
		role = types.RoleUser
	}

	created, err := s.repo.Create(ctx, types.User{
		Email: NormalizeEmail(email),
		Name:  name,
		Role:  role,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.User{}, apperr.New(apperr.ErrConflict, "email already exists")
		}
		return types.User{}, apperr.Dependency("create user", err)
	}

	s.publisher.Emit(ctx, events.TopicUsers, events.UserCreated, principal.ID, created.ID)
	return created, nil
}

func (s *UserService) getUser(ctx context.Context, userID int) (types.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, apperr.New(apperr.ErrNotFound, "not found")
		}
		return types.User{}, apperr.Dependency("fetch user", err)
	}
	return user, nil
}

// authorizeAccess reuses the post modification relation for user records:
// admins pass, otherwise the target must be the caller's own record. The
// email is the identity token here rather than the numeric id so that a
// degraded principal (no id) can still reach its own record.
func (s *UserService) authorizeAccess(principal types.Principal, target types.User) error {
	if !rules.CanModify(NormalizeEmail(principal.Email), target.Email, principal.Role) {
		return apperr.New(apperr.ErrForbidden, "forbidden")
	}
	return nil
}
