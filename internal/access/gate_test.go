package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cowork-market/cowork/internal/rbac"
	"github.com/cowork-market/cowork/internal/session"
)

func TestEvaluateTransitionFunction(t *testing.T) {
	cases := []struct {
		name     string
		in       Input
		required []rbac.Role
		want     Status
	}{
		{
			name:     "loading wins over everything",
			in:       Input{IsLoading: true, IsAuthenticated: false},
			required: []rbac.Role{rbac.RoleAdmin},
			want:     StatusLoading,
		},
		{
			name:     "loading even when authenticated with the role",
			in:       Input{IsLoading: true, IsAuthenticated: true, Roles: []rbac.Role{rbac.RoleAdmin}},
			required: []rbac.Role{rbac.RoleAdmin},
			want:     StatusLoading,
		},
		{
			name: "unauthenticated with no required roles",
			in:   Input{IsLoading: false, IsAuthenticated: false},
			want: StatusUnauthenticated,
		},
		{
			name:     "coworker on admin route",
			in:       Input{IsAuthenticated: true, Roles: []rbac.Role{rbac.RoleCoworker}},
			required: []rbac.Role{rbac.RoleAdmin},
			want:     StatusUnauthorized,
		},
		{
			name:     "host on host or admin route",
			in:       Input{IsAuthenticated: true, Roles: []rbac.Role{rbac.RoleHost}},
			required: []rbac.Role{rbac.RoleHost, rbac.RoleAdmin},
			want:     StatusAuthorized,
		},
		{
			name: "any authenticated identity",
			in:   Input{IsAuthenticated: true},
			want: StatusAuthorized,
		},
		{
			name:     "authenticated without roles on gated route",
			in:       Input{IsAuthenticated: true},
			required: []rbac.Role{rbac.RoleModerator},
			want:     StatusUnauthorized,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Evaluate(tc.in, tc.required))
		})
	}
}

func TestEvaluateIsIdempotent(t *testing.T) {
	in := Input{IsAuthenticated: true, Roles: []rbac.Role{rbac.RoleHost}}
	required := []rbac.Role{rbac.RoleAdmin}
	first := Decide(in, required)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Decide(in, required))
	}
}

func TestDecideFallbacks(t *testing.T) {
	d := Decide(Input{IsLoading: true}, nil)
	require.NotNil(t, d.Fallback)
	assert.Equal(t, FallbackLoading, d.Fallback.Kind)
	assert.False(t, d.Allowed())

	d = Decide(Input{}, nil)
	require.NotNil(t, d.Fallback)
	assert.Equal(t, FallbackDenied, d.Fallback.Kind)
	assert.Equal(t, StatusUnauthenticated, d.Fallback.Reason)

	d = Decide(Input{IsAuthenticated: true}, []rbac.Role{rbac.RoleAdmin})
	require.NotNil(t, d.Fallback)
	assert.Equal(t, StatusUnauthorized, d.Fallback.Reason)

	d = Decide(Input{IsAuthenticated: true}, nil)
	assert.Nil(t, d.Fallback)
	assert.True(t, d.Allowed())
}

func TestInitialStoreSnapshotEvaluatesToLoading(t *testing.T) {
	store := session.NewStore(session.NewFakeBackend())
	defer store.Close()
	assert.Equal(t, StatusLoading, Evaluate(InputFrom(store.Snapshot()), nil))
}

func TestInputFromErroredSnapshotIsUnauthenticated(t *testing.T) {
	snap := session.Anonymous()
	assert.Equal(t, StatusUnauthenticated, Evaluate(InputFrom(snap), nil))
}
