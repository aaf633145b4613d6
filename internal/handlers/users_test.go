package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/campuslife/apiserver/types"
	"github.com/stretchr/testify/require"
)

func TestListUsersAdminSeesEveryone(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "Alice", "alice@campus.edu", types.RoleUser)
	env.seedUser(t, "Bob", "bob@campus.edu", types.RoleUser)
	dean := env.seedUser(t, "Dean", "dean@admin.example", types.RoleAdmin)

	rec := env.do(t, http.MethodGet, "/users/", env.tokenFor(t, dean), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[UserListResponse](t, rec)
	require.Len(t, resp.Users, 3)
	require.Equal(t, "alice@campus.edu", resp.Users[0].Email)
}

func TestListUsersNonAdminSeesOnlySelf(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedUser(t, "Alice", "alice@campus.edu", types.RoleUser)
	env.seedUser(t, "Bob", "bob@campus.edu", types.RoleUser)

	rec := env.do(t, http.MethodGet, "/users/", env.tokenFor(t, alice), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[UserListResponse](t, rec)
	require.Len(t, resp.Users, 1)
	require.Equal(t, alice.ID, resp.Users[0].ID)
}

func TestUsersMeRequiresAuthentication(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/users/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Unauthorized", decodeBody[ErrorResponse](t, rec).Error)
}

func TestUsersMeReturnsOwnRecord(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedUser(t, "Alice", "alice@campus.edu", types.RoleUser)

	rec := env.do(t, http.MethodGet, "/users/me", env.tokenFor(t, alice), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	me := decodeBody[types.User](t, rec)
	require.Equal(t, alice.ID, me.ID)
	require.Equal(t, "alice@campus.edu", me.Email)
}

func TestGetUserVisibility(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedUser(t, "Alice", "alice@campus.edu", types.RoleUser)
	bob := env.seedUser(t, "Bob", "bob@campus.edu", types.RoleUser)
	dean := env.seedUser(t, "Dean", "dean@admin.example", types.RoleAdmin)

	path := fmt.Sprintf("/users/%d", bob.ID)

	rec := env.do(t, http.MethodGet, path, env.tokenFor(t, alice), nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, path, env.tokenFor(t, bob), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, path, env.tokenFor(t, dean), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "bob@campus.edu", decodeBody[types.User](t, rec).Email)
}

func TestUpdateOwnName(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedUser(t, "Alice", "alice@campus.edu", types.RoleUser)

	name := "Alice B."
	rec := env.do(t, http.MethodPut, fmt.Sprintf("/users/%d", alice.ID), env.tokenFor(t, alice), upsertUserRequest{Name: &name})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Alice B.", decodeBody[types.User](t, rec).Name)
}

func TestUpdateRoleIgnoredForNonAdmin(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedUser(t, "Alice", "alice@campus.edu", types.RoleUser)

	role := types.RoleAdmin
	rec := env.do(t, http.MethodPut, fmt.Sprintf("/users/%d", alice.ID), env.tokenFor(t, alice), upsertUserRequest{Role: &role})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, types.RoleUser, decodeBody[types.User](t, rec).Role)
}

func TestAdminUpdatesRole(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedUser(t, "Alice", "alice@campus.edu", types.RoleUser)
	dean := env.seedUser(t, "Dean", "dean@admin.example", types.RoleAdmin)

	role := types.RoleAdmin
	rec := env.do(t, http.MethodPut, fmt.Sprintf("/users/%d", alice.ID), env.tokenFor(t, dean), upsertUserRequest{Role: &role})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, types.RoleAdmin, decodeBody[types.User](t, rec).Role)
}

func TestDeleteUser(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedUser(t, "Alice", "alice@campus.edu", types.RoleUser)
	bob := env.seedUser(t, "Bob", "bob@campus.edu", types.RoleUser)

	rec := env.do(t, http.MethodDelete, fmt.Sprintf("/users/%d", bob.ID), env.tokenFor(t, alice), nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/users/%d", alice.ID), env.tokenFor(t, alice), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, alice.ID, decodeBody[map[string]int](t, rec)["deleted"])
}

func TestCreateUserRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedUser(t, "Alice", "alice@campus.edu", types.RoleUser)

	name, email := "Carol", "carol@campus.edu"
	rec := env.do(t, http.MethodPost, "/users/", env.tokenFor(t, alice), upsertUserRequest{Name: &name, Email: &email})
	require.Equal(t, http.StatusForbidden, rec.Code)

	resp := decodeBody[ErrorResponse](t, rec)
	require.Equal(t, "Admin access required", resp.Message)
}

func TestAdminCreatesUser(t *testing.T) {
	env := newTestEnv(t)
	dean := env.seedUser(t, "Dean", "dean@admin.example", types.RoleAdmin)

	name, email := "Carol", "Carol@Campus.EDU"
	rec := env.do(t, http.MethodPost, "/users/", env.tokenFor(t, dean), upsertUserRequest{Name: &name, Email: &email})
	require.Equal(t, http.StatusCreated, rec.Code)

	created := decodeBody[types.User](t, rec)
	require.Equal(t, "carol@campus.edu", created.Email)
	require.Equal(t, types.RoleUser, created.Role)

	rec = env.do(t, http.MethodPost, "/users/", env.tokenFor(t, dean), upsertUserRequest{Name: &name, Email: &email})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "email already exists", decodeBody[ErrorResponse](t, rec).Error)
}
