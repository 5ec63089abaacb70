package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/auth"
)

func principal(role auth.Role) *auth.Principal {
	return &auth.Principal{UserID: "u-1", Role: role, SessionID: "s-1"}
}

func TestAuthorize_PolicyTable(t *testing.T) {
	gate := NewGate(DefaultRules([]string{"/api/profile", "/api/admin", "/api/enrollments"}))

	tests := []struct {
		name string
		path string
		who  *auth.Principal
		want Decision
	}{
		{"admin area as user", "/admin/x", principal(auth.RoleUser), Decision{Reason: ReasonForbidden}},
		{"admin area as admin", "/admin/x", principal(auth.RoleAdmin), Decision{Allowed: true}},
		{"admin area anonymous", "/admin/x", nil, Decision{Reason: ReasonUnauthenticated}},
		{"admin api as instructor", "/api/admin/stats", principal(auth.RoleInstructor), Decision{Reason: ReasonForbidden}},
		{"instructor area as instructor", "/instructor/courses", principal(auth.RoleInstructor), Decision{Allowed: true}},
		{"instructor area as admin", "/instructor", principal(auth.RoleAdmin), Decision{Allowed: true}},
		{"instructor area as user", "/instructor/courses", principal(auth.RoleUser), Decision{Reason: ReasonForbidden}},
		{"dashboard anonymous", "/dashboard", nil, Decision{Reason: ReasonUnauthenticated}},
		{"dashboard as user", "/dashboard/settings", principal(auth.RoleUser), Decision{Allowed: true}},
		{"protected api anonymous", "/api/profile", nil, Decision{Reason: ReasonUnauthenticated}},
		{"protected api as user", "/api/enrollments/3", principal(auth.RoleUser), Decision{Allowed: true}},
		{"public page", "/courses", nil, Decision{Allowed: true}},
		{"prefix is segment aware", "/administrator", nil, Decision{Allowed: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, gate.Authorize(tt.path, tt.who))
		})
	}
}

func TestMatch_FirstRuleWins(t *testing.T) {
	gate := NewGate([]Rule{
		{Prefix: "/api/admin", Roles: []auth.Role{auth.RoleAdmin}},
		{Prefix: "/api"},
	})

	rule, ok := gate.Match("/api/admin/users")
	assert.True(t, ok)
	assert.Equal(t, "/api/admin", rule.Prefix)

	assert.True(t, gate.RequiresIdentity("/api/other"))
	assert.False(t, gate.RequiresIdentity("/health"))
}

func TestReasonString(t *testing.T) {
	assert.Equal(t, "unauthenticated", ReasonUnauthenticated.String())
	assert.Equal(t, "forbidden", ReasonForbidden.String())
	assert.Equal(t, "none", ReasonNone.String())
}
