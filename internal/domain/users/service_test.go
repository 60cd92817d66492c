package users

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrportal/internal/domain/apperror"
	"hrportal/internal/domain/auth"
)

type memoryStore struct {
	users map[string]User
}

func newMemoryStore(users ...User) *memoryStore {
	m := &memoryStore{users: map[string]User{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memoryStore) Get(_ context.Context, id string) (User, error) {
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *memoryStore) List(_ context.Context, q string) ([]User, error) {
	var out []User
	for _, u := range m.users {
		if q == "" || strings.Contains(strings.ToLower(u.FullName), strings.ToLower(q)) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memoryStore) ListTeamLeads(context.Context) ([]TeamLead, error) {
	var out []TeamLead
	for _, u := range m.users {
		if u.CanLeadTeam() {
			out = append(out, TeamLead{ID: u.ID, FullName: u.FullName})
		}
	}
	return out, nil
}

func (m *memoryStore) Update(_ context.Context, id string, patch Patch) (User, error) {
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	if patch.FullName != nil {
		u.FullName = *patch.FullName
	}
	if patch.Email != nil {
		u.Email = *patch.Email
	}
	if patch.IsApproved != nil {
		u.IsApproved = *patch.IsApproved
	}
	if patch.Role != nil {
		u.Role = *patch.Role
	}
	m.users[id] = u
	return u, nil
}

func (m *memoryStore) SetTeamLead(_ context.Context, id string, isTeamLead bool) (User, error) {
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	u.IsTeamLead = isTeamLead
	m.users[id] = u
	return u, nil
}

func (m *memoryStore) Delete(_ context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func ptr[T any](v T) *T { return &v }

func TestUpdateRoleRequiresSuperAdmin(t *testing.T) {
	svc := NewService(newMemoryStore(User{ID: "u1", Role: auth.RoleEmployee}))

	_, err := svc.Update(context.Background(), auth.UserContext{UserID: "a1", RoleName: auth.RoleAdmin}, "u1", UpdateInput{Role: ptr(auth.RoleHR)})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))

	updated, err := svc.Update(context.Background(), auth.UserContext{UserID: "s1", RoleName: auth.RoleSuperAdmin}, "u1", UpdateInput{Role: ptr(auth.RoleHR)})
	require.NoError(t, err)
	assert.Equal(t, auth.RoleHR, updated.Role)
}

func TestUpdateOwnRoleRejected(t *testing.T) {
	svc := NewService(newMemoryStore(User{ID: "s1", Role: auth.RoleSuperAdmin}))
	_, err := svc.Update(context.Background(), auth.UserContext{UserID: "s1", RoleName: auth.RoleSuperAdmin}, "s1", UpdateInput{Role: ptr(auth.RoleAdmin)})
	require.Error(t, err)
	assert.Equal(t, "You cannot change your own role.", err.Error())
}

func TestUpdateValidatesFields(t *testing.T) {
	svc := NewService(newMemoryStore(User{ID: "u1"}))
	actor := auth.UserContext{UserID: "a1", RoleName: auth.RoleAdmin}

	_, err := svc.Update(context.Background(), actor, "u1", UpdateInput{Email: ptr("not-an-email")})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	_, err = svc.Update(context.Background(), actor, "u1", UpdateInput{Role: ptr("manager")})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	updated, err := svc.Update(context.Background(), actor, "u1", UpdateInput{Email: ptr(" Jane@Example.com "), IsApproved: ptr(true)})
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", updated.Email)
	assert.True(t, updated.IsApproved)
}

func TestDeleteGuards(t *testing.T) {
	store := newMemoryStore(
		User{ID: "s1", Role: auth.RoleSuperAdmin},
		User{ID: "e1", Role: auth.RoleEmployee},
	)
	svc := NewService(store)
	admin := auth.UserContext{UserID: "a1", RoleName: auth.RoleAdmin}

	err := svc.Delete(context.Background(), admin, "a1")
	assert.Equal(t, "You cannot delete your own account.", err.Error())

	err = svc.Delete(context.Background(), admin, "s1")
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))

	err = svc.Delete(context.Background(), admin, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, svc.Delete(context.Background(), admin, "e1"))
	_, ok := store.users["e1"]
	assert.False(t, ok)
}

func TestSetSelfTeamLead(t *testing.T) {
	store := newMemoryStore(User{ID: "e1", Role: auth.RoleEmployee, IsApproved: true})
	svc := NewService(store)

	u, err := svc.SetSelfTeamLead(context.Background(), auth.UserContext{UserID: "e1", RoleName: auth.RoleEmployee}, true)
	require.NoError(t, err)
	assert.True(t, u.IsTeamLead)

	leads, err := svc.ListTeamLeads(context.Background())
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "e1", leads[0].ID)
}
